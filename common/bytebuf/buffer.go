// Package bytebuf implements the growable byte buffer used for every I/O
// payload that crosses the guest boundary.
//
// Integer accessors are unsigned and big-endian with widths of 1 to 4 bytes.
// Out-of-range reads return 0 and out-of-range writes do nothing; callers get
// no error for either.
package bytebuf

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/OpenListTeam/wazero-uv/common/bytespool"
)

const (
	// MaxWidth is the widest integer the codec handles.
	MaxWidth = 4
	// DumpWidth is how many bytes HexDump16 renders at most.
	DumpWidth = 16
)

var lastID atomic.Uint32

// Buffer is a contiguous byte region with a logical length tracked
// separately from its capacity. A Buffer has a single owner at a time.
type Buffer struct {
	id  uint32
	buf []byte
}

// New returns a zero-filled buffer whose declared length is n.
func New(n int) *Buffer {
	if n < 0 {
		n = 0
	}
	return &Buffer{
		id:  lastID.Add(1),
		buf: bytespool.Alloc(n),
	}
}

// From returns a buffer holding a copy of p.
func From(p []byte) *Buffer {
	b := New(len(p))
	copy(b.buf, p)
	return b
}

// ID is the buffer's diagnostic identity. It is unique for the process.
func (b *Buffer) ID() uint32 { return b.id }

// Len is the logical length.
func (b *Buffer) Len() int { return len(b.buf) }

// Cap is the allocated capacity.
func (b *Buffer) Cap() int { return cap(b.buf) }

// Bytes returns the logical contents. The slice aliases the buffer and is
// only valid until the next call that grows it.
func (b *Buffer) Bytes() []byte { return b.buf }

// Free returns the storage to the pool. The buffer is empty afterwards.
func (b *Buffer) Free() {
	bytespool.Free(b.buf)
	b.buf = nil
}

// grow extends the logical length by n zero bytes and returns the offset of
// the first new byte.
func (b *Buffer) grow(n int) int {
	off := len(b.buf)
	need := off + n
	if need > cap(b.buf) {
		c := 2 * cap(b.buf)
		if c < need {
			c = need
		}
		nb := bytespool.Alloc(c)[:need]
		copy(nb, b.buf)
		bytespool.Free(b.buf)
		b.buf = nb
	} else {
		b.buf = b.buf[:need]
	}
	clear(b.buf[off:])
	return off
}

// Append copies other's logical bytes onto the end of b.
func (b *Buffer) Append(other *Buffer) {
	if other == nil || other.Len() == 0 {
		return
	}
	src := other.buf
	if other == b {
		src = append([]byte(nil), src...)
	}
	off := b.grow(len(src))
	copy(b.buf[off:], src)
}

// AppendUint grows b by width bytes and stores v big-endian in them.
// An unsupported width leaves b untouched.
func (b *Buffer) AppendUint(v uint32, width int) {
	if width < 1 || width > MaxWidth {
		return
	}
	off := b.grow(width)
	putUint(b.buf[off:off+width], v)
}

func (b *Buffer) inBounds(pos, width int) bool {
	return width >= 1 && width <= MaxWidth && pos >= 0 && pos <= len(b.buf)-width
}

// ReadUint returns the big-endian integer of width bytes at pos, or 0 when
// the range is not inside the logical length.
func (b *Buffer) ReadUint(pos, width int) uint32 {
	if !b.inBounds(pos, width) {
		return 0
	}
	var v uint32
	for _, c := range b.buf[pos : pos+width] {
		v = v<<8 | uint32(c)
	}
	return v
}

// WriteUint stores v big-endian in width bytes at pos. Ranges outside the
// logical length are ignored.
func (b *Buffer) WriteUint(pos, width int, v uint32) {
	if !b.inBounds(pos, width) {
		return
	}
	putUint(b.buf[pos:pos+width], v)
}

func putUint(dst []byte, v uint32) {
	for i := len(dst) - 1; i >= 0; i-- {
		dst[i] = byte(v)
		v >>= 8
	}
}

// HexDump16 renders up to 16 bytes from pos as upper-case hex pairs
// separated by single spaces. It is meant for logs, not for parsing.
func (b *Buffer) HexDump16(pos int) string {
	if pos < 0 || pos >= len(b.buf) {
		return ""
	}
	end := min(pos+DumpWidth, len(b.buf))
	var sb strings.Builder
	sb.Grow((end - pos) * 3)
	for i, c := range b.buf[pos:end] {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%02X", c)
	}
	return sb.String()
}

// CopyOut copies bytes starting at pos into p and returns how many were
// copied.
func (b *Buffer) CopyOut(pos int, p []byte) int {
	if pos < 0 || pos >= len(b.buf) {
		return 0
	}
	return copy(p, b.buf[pos:])
}

// CopyIn copies p into the buffer at pos without growing it and returns how
// many bytes fit.
func (b *Buffer) CopyIn(pos int, p []byte) int {
	if pos < 0 || pos >= len(b.buf) {
		return 0
	}
	return copy(b.buf[pos:], p)
}
