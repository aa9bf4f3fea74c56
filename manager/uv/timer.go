package uv

import "time"

type timerState struct {
	timeout time.Duration
	repeat  time.Duration

	armed bool
	// gen is bumped on every start so that firings posted by a previous
	// run are recognised and dropped.
	gen  uint64
	stop chan struct{}
}

// SetTimer creates a timer handle that fires a read event after timeoutMs
// and then every repeatMs. A repeatMs of 0 makes it one-shot.
func (l *Loop) SetTimer(timeoutMs, repeatMs uint32) (ID, error) {
	if l.closed {
		return 0, ErrLoopClosed
	}
	h := l.newHandle(KindTimer)
	h.timer = &timerState{}
	l.startTimer(h, timeoutMs, repeatMs)
	return h.id, nil
}

// StartTimer re-arms an existing timer with new settings. A timer that is
// still armed is stopped first.
func (l *Loop) StartTimer(id ID, timeoutMs, repeatMs uint32) error {
	h, err := l.lookupKind(id, KindTimer)
	if err != nil {
		return err
	}
	l.stopTimer(h)
	l.startTimer(h, timeoutMs, repeatMs)
	return nil
}

// StopTimer halts further firings. The handle stays open and an event that
// is already cached is still delivered.
func (l *Loop) StopTimer(id ID) error {
	h, err := l.lookupKind(id, KindTimer)
	if err != nil {
		return err
	}
	l.stopTimer(h)
	return nil
}

func (l *Loop) startTimer(h *Handle, timeoutMs, repeatMs uint32) {
	t := h.timer
	t.timeout = time.Duration(timeoutMs) * time.Millisecond
	t.repeat = time.Duration(repeatMs) * time.Millisecond
	t.gen++
	t.armed = true
	t.stop = make(chan struct{})
	l.ref()

	gen, timeout, repeat, stop := t.gen, t.timeout, t.repeat, t.stop
	go func() {
		tm := time.NewTimer(timeout)
		defer tm.Stop()
		for {
			select {
			case <-tm.C:
				if !l.post(func() { l.onTimer(h, gen) }) || repeat == 0 {
					return
				}
				tm.Reset(repeat)
			case <-stop:
				return
			case <-l.done:
				return
			}
		}
	}()
}

func (l *Loop) stopTimer(h *Handle) {
	t := h.timer
	if !t.armed {
		return
	}
	t.armed = false
	close(t.stop)
	l.unref()
}

func (l *Loop) onTimer(h *Handle, gen uint64) {
	t := h.timer
	if t == nil || !t.armed || t.gen != gen {
		return
	}
	if t.repeat == 0 {
		t.armed = false
		l.unref()
	}
	l.recordEvent(h, ReadPayload{})
}
