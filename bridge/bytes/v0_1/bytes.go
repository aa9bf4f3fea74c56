package v0_1

import (
	"context"

	"github.com/OpenListTeam/wazero-uv/bridge"
	"github.com/OpenListTeam/wazero-uv/common/bytebuf"
	"github.com/OpenListTeam/wazero-uv/internal/abi"
	"github.com/OpenListTeam/wazero-uv/internal/resource"
	"github.com/OpenListTeam/wazero-uv/manager/uv"

	"github.com/tetratelabs/wazero/api"
)

// maxNew caps the declared length a guest may ask for in one call.
const maxNew = 64 << 20

type bytesImpl struct {
	host    *bridge.Host
	buffers *resource.Table[*bytebuf.Buffer]
}

func newBytesImpl(h *bridge.Host) *bytesImpl {
	return &bytesImpl{host: h, buffers: h.Buffers()}
}

// New allocates a zero-filled buffer of length n and returns its id, or 0
// if n is too large.
func (i *bytesImpl) New(_ context.Context, n uint32) uint32 {
	if n > maxNew {
		return 0
	}
	return i.host.AddBuffer(bytebuf.New(int(n)))
}

// Free releases a buffer. Unknown ids are ignored.
func (i *bytesImpl) Free(_ context.Context, b uint32) {
	if buf, ok := i.buffers.Remove(b); ok {
		buf.Free()
	}
}

// Append copies the contents of src onto the end of dst.
func (i *bytesImpl) Append(_ context.Context, dst, src uint32) int32 {
	d, ok := i.buffers.Get(dst)
	if !ok {
		return uv.StatusInvalidHandle
	}
	s, ok := i.buffers.Get(src)
	if !ok {
		return uv.StatusInvalidHandle
	}
	d.Append(s)
	return uv.StatusOK
}

// ID returns the buffer's identity, or 0 for an unknown id.
func (i *bytesImpl) ID(_ context.Context, b uint32) uint32 {
	buf, ok := i.buffers.Get(b)
	if !ok {
		return 0
	}
	return buf.ID()
}

func (i *bytesImpl) Len(_ context.Context, b uint32) uint32 {
	buf, ok := i.buffers.Get(b)
	if !ok {
		return 0
	}
	return uint32(buf.Len())
}

func (i *bytesImpl) ReadUintBE(_ context.Context, b, pos, width uint32) uint32 {
	buf, ok := i.buffers.Get(b)
	if !ok {
		return 0
	}
	return buf.ReadUint(int(pos), int(width))
}

func (i *bytesImpl) WriteUintBE(_ context.Context, b, pos, width, v uint32) {
	if buf, ok := i.buffers.Get(b); ok {
		buf.WriteUint(int(pos), int(width), v)
	}
}

func (i *bytesImpl) AppendUintBE(_ context.Context, b, v, width uint32) {
	if buf, ok := i.buffers.Get(b); ok {
		buf.AppendUint(v, int(width))
	}
}

// Hexdump16 writes the dump of up to 16 bytes at pos to outPtr, truncated
// to outCap, and returns the full length of the dump.
func (i *bytesImpl) Hexdump16(_ context.Context, m api.Module, b, pos, outPtr, outCap uint32) uint32 {
	buf, ok := i.buffers.Get(b)
	if !ok {
		return 0
	}
	s := buf.HexDump16(int(pos))
	n := min(uint32(len(s)), outCap)
	if !abi.Write(m, outPtr, []byte(s[:n])) {
		return 0
	}
	return uint32(len(s))
}

// Load copies n bytes of guest memory at ptr into the buffer at pos,
// without growing it, and returns how many bytes were copied.
func (i *bytesImpl) Load(_ context.Context, m api.Module, b, pos, ptr, n uint32) uint32 {
	buf, ok := i.buffers.Get(b)
	if !ok {
		return 0
	}
	p, ok := abi.Read(m, ptr, n)
	if !ok {
		return 0
	}
	return uint32(buf.CopyIn(int(pos), p))
}

// Store copies up to n bytes from the buffer at pos into guest memory at
// ptr and returns how many bytes were copied.
func (i *bytesImpl) Store(_ context.Context, m api.Module, b, pos, ptr, n uint32) uint32 {
	buf, ok := i.buffers.Get(b)
	if !ok {
		return 0
	}
	dst, ok := abi.Read(m, ptr, n)
	if !ok {
		return 0
	}
	return uint32(buf.CopyOut(int(pos), dst))
}
