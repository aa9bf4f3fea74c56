// Package fault installs a last-chance handler for fatal signals.
//
// When one of the watched signals arrives the hook stops watching, writes a
// native traceback to a writer that was opened up front, and hands control
// to a single recovery callback, typically one that asks the guest to print
// its own traceback. Go turns synchronous faults raised by Go code into
// panics; the hook sees signals delivered to the process from outside, or
// raised by foreign code the runtime does not own.
package fault

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Hook is an installed fault handler.
type Hook struct {
	out     io.Writer
	onFault func()
	log     zerolog.Logger

	sigs  chan os.Signal
	done  chan struct{}
	once  sync.Once
	fired atomic.Bool
	stop  sync.Once

	crash  *os.File
	ignore func(...os.Signal)
}

// Option configures a Hook.
type Option func(*Hook)

// WithLogger logs the intercepted signal in addition to the traceback.
func WithLogger(log zerolog.Logger) Option {
	return func(h *Hook) {
		h.log = log
	}
}

// WithCrashOutput sends the Go runtime's own fatal error reports to f as
// well as to stderr.
func WithCrashOutput(f *os.File) Option {
	return func(h *Hook) {
		h.crash = f
	}
}

// Signals is the set of signals Install watches on this platform.
func Signals() []os.Signal {
	return append([]os.Signal(nil), fatalSignals...)
}

// Install starts watching the fatal signal set. out receives the traceback
// and must already be open, since no file is opened once a signal has
// arrived. onFault runs at most once and may be nil.
func Install(out io.Writer, onFault func(), opts ...Option) (*Hook, error) {
	h := &Hook{
		out:     out,
		onFault: onFault,
		log:     zerolog.Nop(),
		sigs:    make(chan os.Signal, 1),
		done:    make(chan struct{}),
		ignore:  signal.Ignore,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.crash != nil {
		if err := debug.SetCrashOutput(h.crash, debug.CrashOptions{}); err != nil {
			return nil, fmt.Errorf("fault: set crash output: %w", err)
		}
	}
	if len(fatalSignals) > 0 {
		signal.Notify(h.sigs, fatalSignals...)
	}
	go h.watch()
	return h, nil
}

func (h *Hook) watch() {
	for {
		select {
		case sig := <-h.sigs:
			h.handle(sig)
		case <-h.done:
			return
		}
	}
}

func (h *Hook) handle(sig os.Signal) {
	h.once.Do(func() {
		h.fired.Store(true)
		// Anything arriving while we report is dropped.
		h.ignore(fatalSignals...)
		h.log.Error().Stringer("signal", sig).Msg("fatal signal intercepted")

		fmt.Fprintf(h.out, "native traceback: %s\n", sig)
		h.out.Write(stacks())

		if h.onFault != nil {
			h.onFault()
		}
	})
}

// Fired reports whether a signal has been handled.
func (h *Hook) Fired() bool {
	return h.fired.Load()
}

// Stop stops watching. Signals already ignored by a fired hook stay ignored
// and the crash output, if any, stays in place.
func (h *Hook) Stop() {
	h.stop.Do(func() {
		signal.Stop(h.sigs)
		close(h.done)
	})
}

// stacks returns the traces of all goroutines, growing the buffer until
// the dump fits.
func stacks() []byte {
	buf := make([]byte, 64<<10)
	for {
		n := runtime.Stack(buf, true)
		if n < len(buf) {
			return buf[:n]
		}
		buf = make([]byte, 2*len(buf))
	}
}
