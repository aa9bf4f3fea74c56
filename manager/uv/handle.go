package uv

import (
	"context"
	"net"
	"sync/atomic"

	"github.com/OpenListTeam/wazero-uv/common/bytebuf"
)

// ID identifies a handle across the guest boundary. Ids are unique for the
// process and never reused; 0 never names a handle.
type ID uint32

var lastID atomic.Uint32

func nextID() ID { return ID(lastID.Add(1)) }

// Kind is the resource a handle stands for.
type Kind uint8

const (
	KindLoop Kind = iota
	KindTCP
	KindTimer
)

func (k Kind) String() string {
	switch k {
	case KindLoop:
		return "loop"
	case KindTCP:
		return "tcp"
	case KindTimer:
		return "timer"
	default:
		return "?"
	}
}

// State is the lifecycle of a handle. Storage is released on the transition
// to StateClosed, which only happens inside a reactor tick.
type State uint8

const (
	StateOpen State = iota
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	default:
		return "closed"
	}
}

// EventKind is the type of an event. Lower kinds are delivered first when
// several are pending on one handle.
type EventKind uint8

const (
	EventInactive EventKind = iota
	EventWrite
	EventRead
	EventConnect
	eventKinds
)

func (k EventKind) String() string {
	switch k {
	case EventWrite:
		return "write"
	case EventRead:
		return "read"
	case EventConnect:
		return "connect"
	default:
		return "inactive"
	}
}

// Mark is a collector flag.
type Mark uint8

const MarkKeep Mark = 1 << iota

// Payload is the kind-specific part of an event.
type Payload interface {
	Kind() EventKind
}

// ConnectPayload reports an outbound connect or an accepted connection.
// Accepted is 0 unless a listener accepted a new connection.
type ConnectPayload struct {
	Accepted ID
	Status   int32
}

func (ConnectPayload) Kind() EventKind { return EventConnect }

// ReadPayload reports a finished read. Timer firings carry the zero value.
type ReadPayload struct {
	Filled int
	Status int32
}

func (ReadPayload) Kind() EventKind { return EventRead }

// WritePayload reports a finished write.
type WritePayload struct {
	Written int
	Status  int32
}

func (WritePayload) Kind() EventKind { return EventWrite }

// Event is what Poll hands to the caller. It is not retained by the loop.
type Event struct {
	Handle  ID
	Kind    EventKind
	Payload Payload
}

type readState struct {
	target *bytebuf.Buffer
	filled int
}

// Handle is the header of one reactor-tracked resource. All fields are owned
// by the loop goroutine.
type Handle struct {
	id    ID
	kind  Kind
	state State
	marks Mark

	mask  uint8
	slots [eventKinds]Payload

	// Pending sub-requests owned by this handle. Each cancel func is
	// dropped when the request completes and called at close.
	resolveCancel context.CancelFunc
	connectCancel context.CancelFunc

	read    *readState
	writing bool

	conn     *net.TCPConn
	listener *net.TCPListener
	timer    *timerState
}

func (h *Handle) ID() ID       { return h.id }
func (h *Handle) Kind() Kind   { return h.kind }
func (h *Handle) State() State { return h.state }

// Pending reports whether an event of kind k is waiting to be delivered.
func (h *Handle) Pending(k EventKind) bool {
	return h.mask&(1<<k) != 0
}

// active reports whether the handle currently has reactor interest
// registered, mirroring uv_is_active.
func (h *Handle) active() bool {
	if h.state != StateOpen {
		return false
	}
	switch h.kind {
	case KindTimer:
		return h.timer != nil && h.timer.armed
	case KindTCP:
		return h.listener != nil || h.read != nil || h.writing ||
			h.resolveCancel != nil || h.connectCancel != nil
	}
	return false
}
