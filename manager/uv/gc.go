package uv

// The collector lets the guest decide which handles are still reachable.
// A collection is ClearMarks, then Keep for every handle the guest still
// references, then Sweep. Nothing here runs on its own.

// ClearMarks resets the keep mark of every handle.
func (l *Loop) ClearMarks() {
	l.handles.Range(func(_ uint32, h *Handle) bool {
		h.marks = 0
		return true
	})
}

// Keep marks a handle as still referenced. Handles that are already closing
// may be marked; it has no effect on them.
func (l *Loop) Keep(id ID) error {
	if l.closed {
		return ErrLoopClosed
	}
	h, ok := l.handles.Get(uint32(id))
	if !ok {
		return ErrInvalidHandle
	}
	h.marks |= MarkKeep
	return nil
}

// Sweep closes every open handle that was not kept since the last
// ClearMarks and returns how many it closed.
func (l *Loop) Sweep() int {
	n := 0
	l.handles.Range(func(_ uint32, h *Handle) bool {
		if h.marks&MarkKeep == 0 && h.state == StateOpen {
			l.closeHandle(h)
			n++
		}
		return true
	})
	if n > 0 {
		l.log.Debug().Int("closed", n).Int("remaining", l.handles.Len()).Msg("sweep")
	}
	return n
}

// Kept reports whether id carries the keep mark.
func (l *Loop) Kept(id ID) bool {
	h, ok := l.handles.Get(uint32(id))
	return ok && h.marks&MarkKeep != 0
}
