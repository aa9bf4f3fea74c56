// Package uv is the reactor side of the bridge: handles, the event cache
// that sits in front of the reactor, the network and timer operations that
// feed it, and the mark-and-sweep collector for handles the guest forgot.
//
// A Loop is single-threaded. Every exported method must be called from the
// goroutine that polls it. Blocking work runs in helper goroutines whose only
// way back into loop state is a completion posted to the loop and executed
// during a later reactor tick.
package uv

import (
	"context"
	"time"

	"github.com/OpenListTeam/wazero-uv/internal/resource"

	"github.com/rs/zerolog"
)

const defaultCompletionBacklog = 256

// Loop is one reactor instance. It is itself a handle so that it has an id
// the guest can hold.
type Loop struct {
	hdr *Handle
	log zerolog.Logger

	handles *resource.Table[*Handle]
	ready   readyQueue

	completions chan func()
	done        chan struct{}
	closing     []*Handle

	// active counts registered reactor interest: armed timers, listeners
	// and in-flight requests. Together with closing handles and queued
	// completions it decides whether a tick may block.
	active int

	resolver *resolver
	closed   bool
}

// Option configures a Loop.
type Option func(*Loop)

// WithLogger sets the logger for handle lifecycle and dropped completions.
func WithLogger(log zerolog.Logger) Option {
	return func(l *Loop) {
		l.log = log
	}
}

// WithResolverCache caches successful name lookups for ttl, keeping at most
// size names. A size of 0 disables the cache.
func WithResolverCache(size int, ttl time.Duration) Option {
	return func(l *Loop) {
		l.resolver.setCache(size, ttl)
	}
}

// WithCompletionBacklog sets how many completions may be queued before the
// goroutines producing them block.
func WithCompletionBacklog(n int) Option {
	return func(l *Loop) {
		if n > 0 {
			l.completions = make(chan func(), n)
		}
	}
}

// NewLoop creates a reactor with no handles.
func NewLoop(opts ...Option) *Loop {
	l := &Loop{
		hdr:         &Handle{id: nextID(), kind: KindLoop},
		log:         zerolog.Nop(),
		handles:     resource.NewTable[*Handle](),
		ready:       newReadyQueue(),
		completions: make(chan func(), defaultCompletionBacklog),
		done:        make(chan struct{}),
		resolver:    newResolver(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.log = l.log.With().Uint32("loop", uint32(l.hdr.id)).Logger()
	return l
}

// ID is the loop's own handle id.
func (l *Loop) ID() ID { return l.hdr.id }

// Post schedules fn to run on the loop goroutine during a later tick. It is
// safe to call from any goroutine and reports false once the loop is closed.
func (l *Loop) Post(fn func()) bool {
	return l.post(fn)
}

func (l *Loop) post(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.completions <- fn:
		return true
	case <-l.done:
		return false
	}
}

func (l *Loop) ref()   { l.active++ }
func (l *Loop) unref() { l.active-- }

func (l *Loop) alive() bool {
	return l.active > 0 || len(l.closing) > 0 || len(l.completions) > 0
}

// dispatch runs one completion. A panicking completion is logged and the
// loop carries on with the next one.
func (l *Loop) dispatch(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error().Interface("panic", r).Msg("completion panicked")
		}
	}()
	fn()
}

// runOnce is one reactor tick. It blocks for the first completion unless
// close completions are already due, then runs everything that has arrived
// and finishes pending closes. It reports whether the loop is still alive.
func (l *Loop) runOnce(ctx context.Context) (bool, error) {
	if !l.alive() {
		return false, nil
	}
	if len(l.closing) == 0 {
		select {
		case fn := <-l.completions:
			l.dispatch(fn)
		case <-ctx.Done():
			return true, ctx.Err()
		}
	}
	for n := len(l.completions); n > 0; n-- {
		l.dispatch(<-l.completions)
	}
	l.runClosing()
	return l.alive(), nil
}

// Shutdown closes every handle, waits for their in-flight requests to report
// back and releases the loop. Polling a shut down loop returns ErrLoopClosed.
func (l *Loop) Shutdown() error {
	if l.closed {
		return ErrLoopClosed
	}
	l.handles.Range(func(_ uint32, h *Handle) bool {
		if h.state == StateOpen {
			l.closeHandle(h)
		}
		return true
	})
	for {
		alive, err := l.runOnce(context.Background())
		if err != nil || !alive {
			break
		}
	}
	l.closed = true
	l.hdr.state = StateClosed
	close(l.done)
	l.log.Debug().Msg("loop closed")
	return nil
}
