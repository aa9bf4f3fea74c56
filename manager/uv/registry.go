package uv

import (
	"errors"
	"fmt"
	"io"
)

func (l *Loop) newHandle(kind Kind) *Handle {
	h := &Handle{id: nextID(), kind: kind}
	l.handles.Put(uint32(h.id), h)
	l.log.Debug().Uint32("handle", uint32(h.id)).Stringer("kind", kind).Msg("handle created")
	return h
}

// lookup returns the open handle registered under id.
func (l *Loop) lookup(id ID) (*Handle, error) {
	if l.closed {
		return nil, ErrLoopClosed
	}
	h, ok := l.handles.Get(uint32(id))
	if !ok || h.state != StateOpen {
		return nil, fmt.Errorf("%w: %d", ErrInvalidHandle, id)
	}
	return h, nil
}

func (l *Loop) lookupKind(id ID, kind Kind) (*Handle, error) {
	h, err := l.lookup(id)
	if err != nil {
		return nil, err
	}
	if h.kind != kind {
		return nil, fmt.Errorf("%w: handle %d is %s, not %s", ErrWrongKind, id, h.kind, kind)
	}
	return h, nil
}

// Handle returns the handle registered under id, open or closing.
func (l *Loop) Handle(id ID) (*Handle, bool) {
	return l.handles.Get(uint32(id))
}

// Close starts closing a handle. The handle stops receiving events at once,
// but it is only released during a later reactor tick; until then its id
// still shows up in HandleCount and HandleDump. Closing an id twice returns
// ErrInvalidHandle.
//
// Events cached before Close are still returned by Poll until the tick that
// completes the close has run; after that they are discarded undelivered.
func (l *Loop) Close(id ID) error {
	h, err := l.lookup(id)
	if err != nil {
		return err
	}
	l.closeHandle(h)
	return nil
}

// closeHandle moves h to StateClosing and tears down its resource. In-flight
// requests are cancelled; their completions still arrive and are dropped.
func (l *Loop) closeHandle(h *Handle) {
	h.state = StateClosing

	if h.resolveCancel != nil {
		h.resolveCancel()
	}
	if h.connectCancel != nil {
		h.connectCancel()
	}
	if h.timer != nil {
		l.stopTimer(h)
	}
	var errs []error
	if h.listener != nil {
		errs = append(errs, h.listener.Close())
		l.unref()
	}
	if h.conn != nil {
		errs = append(errs, h.conn.Close())
	}
	if err := errors.Join(errs...); err != nil {
		l.log.Debug().Err(err).Uint32("handle", uint32(h.id)).Msg("close resource")
	}

	l.closing = append(l.closing, h)
}

func (l *Loop) runClosing() {
	closing := l.closing
	l.closing = nil
	for _, h := range closing {
		l.finishClose(h)
	}
}

// finishClose is the close completion. Owned requests are dropped, pending
// events are discarded and the id is forgotten.
func (l *Loop) finishClose(h *Handle) {
	h.state = StateClosed
	h.mask = 0
	h.slots = [eventKinds]Payload{}
	h.resolveCancel = nil
	h.connectCancel = nil
	h.listener = nil
	h.conn = nil
	h.timer = nil
	l.handles.Remove(uint32(h.id))
	l.log.Debug().Uint32("handle", uint32(h.id)).Stringer("kind", h.kind).Msg("handle closed")
}

// HandleCount is the number of handles known to the loop, including those
// still closing.
func (l *Loop) HandleCount() int {
	return l.handles.Len()
}

// HandleDump writes one line per known handle. The format is for people,
// not for parsing.
func (l *Loop) HandleDump(w io.Writer) {
	l.handles.Range(func(_ uint32, h *Handle) bool {
		fmt.Fprintf(w, "h=%d type=%s active=%t state=%s\n", h.id, h.kind, h.active(), h.state)
		return true
	})
}
