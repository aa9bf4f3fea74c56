package uv

import "context"

// Poll returns the next event.
//
// Cached events are returned without touching the reactor. When the cache
// is empty Poll runs one reactor tick, which blocks until some registered
// operation completes, and looks again. If there is still nothing to
// deliver it returns ErrDrained when nothing registered can produce an event
// any more, or ErrTimeout when the caller should simply poll again.
//
// Cancelling ctx interrupts a blocking tick and returns ctx.Err().
func (l *Loop) Poll(ctx context.Context) (Event, error) {
	if l.closed {
		return Event{}, ErrLoopClosed
	}
	if ev, ok := l.pollCache(); ok {
		return ev, nil
	}
	alive, err := l.runOnce(ctx)
	if err != nil {
		return Event{}, err
	}
	if ev, ok := l.pollCache(); ok {
		return ev, nil
	}
	if !alive {
		return Event{}, ErrDrained
	}
	return Event{}, ErrTimeout
}
