package uv

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"syscall"
)

var (
	// ErrInvalidHandle is returned for ids that are unknown, closing or
	// already closed. Double close is reported the same way.
	ErrInvalidHandle = errors.New("uv: invalid handle")
	// ErrWrongKind is returned when an operation is applied to a handle of
	// the wrong resource kind, e.g. StopTimer on a TCP handle.
	ErrWrongKind = errors.New("uv: wrong handle kind")
	// ErrBusy is returned when the handle already has an operation of the
	// same sort in flight or is in a state that forbids it.
	ErrBusy = errors.New("uv: handle busy")
	// ErrInvalidAddress is returned when a listen address cannot be parsed.
	ErrInvalidAddress = errors.New("uv: invalid address")
	// ErrNotConnected is returned by Read and Write on a TCP handle without
	// an established connection.
	ErrNotConnected = errors.New("uv: not connected")
	// ErrLoopClosed is returned by every operation after Loop.Shutdown.
	ErrLoopClosed = errors.New("uv: loop closed")

	// ErrDrained is returned by Poll when no event is cached and nothing
	// registered with the loop can produce one. Callers should stop polling.
	ErrDrained = errors.New("uv: loop drained")
	// ErrTimeout is returned by Poll when a reactor tick made progress but
	// produced no deliverable event. Callers should poll again.
	ErrTimeout = errors.New("uv: no event ready")
)

// Status codes carried in event payloads and returned across the guest
// boundary. Zero is success; failures are negative. Errno values are negated
// the way libuv reports them.
const (
	StatusOK        int32 = 0
	StatusNoAddress int32 = -1

	StatusInvalidHandle  int32 = -9
	StatusBusy           int32 = -16
	StatusWrongKind      int32 = -22
	StatusInvalidAddress int32 = -97
	StatusNotConnected   int32 = -107

	StatusResolveAgain  int32 = -3001
	StatusResolveFail   int32 = -3002
	StatusResolveNoName int32 = -3008

	StatusCanceled int32 = -4081
	StatusUnknown  int32 = -4094
	StatusEOF      int32 = -4095
)

// StatusOf maps an error to a status code. Errors returned synchronously
// by Loop methods map to the matching Status* constant; I/O errors observed
// by completions map to a negated errno where one can be found.
func StatusOf(err error) int32 {
	if err == nil {
		return StatusOK
	}
	switch {
	case errors.Is(err, ErrInvalidHandle), errors.Is(err, ErrLoopClosed):
		return StatusInvalidHandle
	case errors.Is(err, ErrWrongKind):
		return StatusWrongKind
	case errors.Is(err, ErrBusy):
		return StatusBusy
	case errors.Is(err, ErrInvalidAddress):
		return StatusInvalidAddress
	case errors.Is(err, ErrNotConnected):
		return StatusNotConnected
	case errors.Is(err, errNoAddress):
		return StatusNoAddress
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return StatusEOF
	case errors.Is(err, context.Canceled), errors.Is(err, net.ErrClosed):
		return StatusCanceled
	case errors.Is(err, os.ErrDeadlineExceeded), errors.Is(err, context.DeadlineExceeded):
		return -int32(syscall.ETIMEDOUT)
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		switch {
		case dnsErr.IsTemporary, dnsErr.IsTimeout:
			return StatusResolveAgain
		case dnsErr.IsNotFound:
			return StatusResolveNoName
		}
		return StatusResolveFail
	}

	var errno syscall.Errno
	if errors.As(err, &errno) && errno != 0 {
		return -int32(errno)
	}
	return StatusUnknown
}
