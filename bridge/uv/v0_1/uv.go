package v0_1

import (
	"context"
	"errors"
	"net"

	"github.com/OpenListTeam/wazero-uv/bridge"
	"github.com/OpenListTeam/wazero-uv/internal/abi"
	"github.com/OpenListTeam/wazero-uv/manager/uv"

	"github.com/rs/zerolog"
	"github.com/tetratelabs/wazero/api"
)

// Poll results.
const (
	pollEvent   int32 = 1
	pollTimeout int32 = 0
	pollDrained int32 = -1
)

type uvImpl struct {
	host *bridge.Host
	loop *uv.Loop
	log  zerolog.Logger
}

func newUVImpl(h *bridge.Host) *uvImpl {
	return &uvImpl{
		host: h,
		loop: h.Loop(),
		log:  h.Logger().With().Str("module", "uv").Logger(),
	}
}

// Loop returns the id of the loop handle.
func (i *uvImpl) Loop(_ context.Context) uint32 {
	return uint32(i.loop.ID())
}

// Poll waits for the next event and stores it at eventPtr.
func (i *uvImpl) Poll(ctx context.Context, m api.Module, eventPtr uint32) int32 {
	// Check the destination first so an event is never taken and then lost.
	if _, ok := abi.Read(m, eventPtr, abi.EventSize); !ok {
		i.log.Error().Uint32("ptr", eventPtr).Msg("poll: event pointer out of range")
		return pollDrained
	}
	ev, err := i.loop.Poll(ctx)
	switch {
	case errors.Is(err, uv.ErrTimeout):
		return pollTimeout
	case err != nil:
		if !errors.Is(err, uv.ErrDrained) {
			i.log.Debug().Err(err).Msg("poll stopped")
		}
		return pollDrained
	}
	abi.WriteEvent(m, eventPtr, eventRecord(ev))
	return pollEvent
}

// eventRecord flattens an event into the guest layout. Statuses are stored
// as their two's complement bit pattern.
func eventRecord(ev uv.Event) abi.EventRecord {
	r := abi.EventRecord{Handle: uint32(ev.Handle), Kind: uint32(ev.Kind)}
	switch p := ev.Payload.(type) {
	case uv.ConnectPayload:
		r.Arg0, r.Arg1 = uint32(p.Accepted), uint32(p.Status)
	case uv.ReadPayload:
		r.Arg0, r.Arg1 = uint32(p.Filled), uint32(p.Status)
	case uv.WritePayload:
		r.Arg0, r.Arg1 = uint32(p.Written), uint32(p.Status)
	}
	return r
}

// TCPNew returns a new TCP handle, or 0 once the loop is shut down.
func (i *uvImpl) TCPNew(_ context.Context) uint32 {
	id, err := i.loop.TCPNew()
	if err != nil {
		return 0
	}
	return uint32(id)
}

func (i *uvImpl) Connect(_ context.Context, m api.Module, h, hostPtr, hostLen, portPtr, portLen uint32) int32 {
	host, ok := abi.ReadString(m, hostPtr, hostLen)
	if !ok {
		return uv.StatusInvalidAddress
	}
	port, ok := abi.ReadString(m, portPtr, portLen)
	if !ok {
		return uv.StatusInvalidAddress
	}
	return uv.StatusOf(i.loop.Connect(uv.ID(h), host, port))
}

func (i *uvImpl) Listen6(_ context.Context, m api.Module, h, ipPtr, ipLen, port, backlog uint32) int32 {
	ip, ok := abi.ReadString(m, ipPtr, ipLen)
	if !ok {
		return uv.StatusInvalidAddress
	}
	err := i.loop.Listen6(uv.ID(h), ip, int(port), int(backlog))
	if err != nil {
		i.log.Debug().Err(err).Uint32("handle", h).Msg("listen failed")
	}
	return uv.StatusOf(err)
}

func (i *uvImpl) Read(_ context.Context, h, buf uint32) int32 {
	b, ok := i.host.Buffer(buf)
	if !ok {
		return uv.StatusInvalidHandle
	}
	return uv.StatusOf(i.loop.Read(uv.ID(h), b))
}

func (i *uvImpl) Write(_ context.Context, h, buf uint32) int32 {
	b, ok := i.host.Buffer(buf)
	if !ok {
		return uv.StatusInvalidHandle
	}
	return uv.StatusOf(i.loop.Write(uv.ID(h), b))
}

// SetTimer returns a new timer handle, or 0 once the loop is shut down.
func (i *uvImpl) SetTimer(_ context.Context, timeoutMs, repeatMs uint32) uint32 {
	id, err := i.loop.SetTimer(timeoutMs, repeatMs)
	if err != nil {
		return 0
	}
	return uint32(id)
}

func (i *uvImpl) StartTimer(_ context.Context, h, timeoutMs, repeatMs uint32) int32 {
	return uv.StatusOf(i.loop.StartTimer(uv.ID(h), timeoutMs, repeatMs))
}

func (i *uvImpl) StopTimer(_ context.Context, h uint32) int32 {
	return uv.StatusOf(i.loop.StopTimer(uv.ID(h)))
}

func (i *uvImpl) Close(_ context.Context, h uint32) int32 {
	return uv.StatusOf(i.loop.Close(uv.ID(h)))
}

func (i *uvImpl) HandleCount(_ context.Context) uint32 {
	return uint32(i.loop.HandleCount())
}

// HandleDump logs one line per handle.
func (i *uvImpl) HandleDump(_ context.Context) {
	i.loop.HandleDump(i.log)
}

func (i *uvImpl) WalkClearMark(_ context.Context) {
	i.loop.ClearMarks()
}

func (i *uvImpl) MarkKeep(_ context.Context, h uint32) int32 {
	return uv.StatusOf(i.loop.Keep(uv.ID(h)))
}

// WalkGC returns how many handles were closed.
func (i *uvImpl) WalkGC(_ context.Context) uint32 {
	return uint32(i.loop.Sweep())
}

// LocalPort returns the port a listening or connected handle is bound to.
func (i *uvImpl) LocalPort(_ context.Context, h uint32) int32 {
	addr, err := i.loop.LocalAddr(uv.ID(h))
	if err != nil {
		return uv.StatusOf(err)
	}
	tcp, ok := addr.(*net.TCPAddr)
	if !ok {
		return uv.StatusNotConnected
	}
	return int32(tcp.Port)
}
