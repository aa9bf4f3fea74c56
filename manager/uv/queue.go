package uv

import "github.com/eapache/queue"

// readyQueue is the FIFO of handles with at least one undelivered event.
// A handle is pushed only when its mask goes from zero to non-zero, so it
// is present at most once. Entries whose mask was cleared by close
// completion are skipped when they reach the head.
type readyQueue struct {
	q *queue.Queue
}

func newReadyQueue() readyQueue {
	return readyQueue{q: queue.New()}
}

func (r readyQueue) push(h *Handle) {
	r.q.Add(h)
}

// head returns the first handle with pending events, discarding stale
// entries in front of it.
func (r readyQueue) head() *Handle {
	for r.q.Length() > 0 {
		h := r.q.Peek().(*Handle)
		if h.mask != 0 {
			return h
		}
		r.q.Remove()
	}
	return nil
}

func (r readyQueue) pop() {
	r.q.Remove()
}

func (r readyQueue) len() int {
	return r.q.Length()
}

// recordEvent stores p in the slot for its kind, replacing any undelivered
// payload of that kind, and queues h if nothing else was pending on it.
// Handles that are closing or closed get no further events.
func (l *Loop) recordEvent(h *Handle, p Payload) {
	if h.state != StateOpen {
		l.log.Debug().Uint32("handle", uint32(h.id)).Stringer("event", p.Kind()).Msg("event dropped for closing handle")
		return
	}
	k := p.Kind()
	h.slots[k] = p
	if h.mask == 0 {
		l.ready.push(h)
	}
	h.mask |= 1 << k
}

// pollCache pops the lowest pending event kind of the handle at the head of
// the ready queue. The handle leaves the queue once its mask is empty.
func (l *Loop) pollCache() (Event, bool) {
	h := l.ready.head()
	if h == nil {
		return Event{}, false
	}
	for k := EventInactive + 1; k < eventKinds; k++ {
		if h.mask&(1<<k) == 0 {
			continue
		}
		h.mask &^= 1 << k
		p := h.slots[k]
		h.slots[k] = nil
		if h.mask == 0 {
			l.ready.pop()
		}
		return Event{Handle: h.id, Kind: k, Payload: p}, true
	}
	return Event{}, false
}
