package uv

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/OpenListTeam/wazero-uv/common/bytebuf"
	"github.com/OpenListTeam/wazero-uv/common/bytespool"
)

// acceptBackoff is how long the accept goroutine waits after a failed
// accept before trying again.
const acceptBackoff = 10 * time.Millisecond

// TCPNew creates an unconnected TCP handle. It produces no events until it
// is connected, listening or read from.
func (l *Loop) TCPNew() (ID, error) {
	if l.closed {
		return 0, ErrLoopClosed
	}
	return l.newHandle(KindTCP).id, nil
}

func (h *Handle) idle() bool {
	return h.conn == nil && h.listener == nil && h.resolveCancel == nil && h.connectCancel == nil
}

// Connect resolves host and connects to the first IPv4 address found. The
// outcome arrives as a connect event: status 0 on success, StatusNoAddress
// when the name has no IPv4 address, or another negative status when
// resolution or the connect itself fails. Nothing is retried.
func (l *Loop) Connect(id ID, host, port string) error {
	h, err := l.lookupKind(id, KindTCP)
	if err != nil {
		return err
	}
	if !h.idle() {
		return fmt.Errorf("%w: handle %d is already in use", ErrBusy, id)
	}

	ctx, cancel := context.WithCancel(context.Background())
	h.resolveCancel = cancel
	l.ref()
	go func() {
		addr, err := l.resolver.resolve4(ctx, host, port)
		l.post(func() { l.onResolved(h, addr, err) })
	}()
	return nil
}

func (l *Loop) onResolved(h *Handle, addr *net.TCPAddr, err error) {
	l.unref()
	if h.resolveCancel != nil {
		h.resolveCancel()
		h.resolveCancel = nil
	}
	if h.state != StateOpen {
		return
	}
	if err != nil {
		l.log.Debug().Err(err).Uint32("handle", uint32(h.id)).Msg("resolve failed")
		l.recordEvent(h, ConnectPayload{Status: StatusOf(err)})
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	h.connectCancel = cancel
	l.ref()
	go func() {
		var d net.Dialer
		c, err := d.DialContext(ctx, "tcp4", addr.String())
		if !l.post(func() { l.onConnected(h, c, err) }) && c != nil {
			c.Close()
		}
	}()
}

func (l *Loop) onConnected(h *Handle, c net.Conn, err error) {
	l.unref()
	if h.connectCancel != nil {
		h.connectCancel()
		h.connectCancel = nil
	}
	if h.state != StateOpen {
		if c != nil {
			c.Close()
		}
		return
	}
	if err != nil {
		l.recordEvent(h, ConnectPayload{Status: StatusOf(err)})
		return
	}
	h.conn = c.(*net.TCPConn)
	l.recordEvent(h, ConnectPayload{Status: StatusOK})
}

// Listen6 binds the handle to addr:port and starts accepting. IPv6 addresses
// also accept IPv4-mapped peers; an IPv4 literal listens on IPv4 only. Each
// inbound connection is reported as a connect event carrying a new TCP
// handle, or no handle and a negative status if accepting failed.
func (l *Loop) Listen6(id ID, addr string, port, backlog int) error {
	h, err := l.lookupKind(id, KindTCP)
	if err != nil {
		return err
	}
	if !h.idle() {
		return fmt.Errorf("%w: handle %d is already in use", ErrBusy, id)
	}
	ip := net.ParseIP(addr)
	if ip == nil || port < 0 || port > 0xFFFF {
		return fmt.Errorf("%w: %q port %d", ErrInvalidAddress, addr, port)
	}
	network := "tcp6"
	if !strings.Contains(addr, ":") {
		network = "tcp4"
	}

	lc := net.ListenConfig{Control: listenControl(network)}
	ln, err := lc.Listen(context.Background(), network, net.JoinHostPort(addr, strconv.Itoa(port)))
	if err != nil {
		return fmt.Errorf("uv: listen %s: %w", addr, err)
	}
	tl := ln.(*net.TCPListener)
	if err := setBacklog(tl, backlog); err != nil {
		tl.Close()
		return fmt.Errorf("uv: listen backlog: %w", err)
	}

	h.listener = tl
	l.ref()
	go l.acceptLoop(h, tl)
	return nil
}

func (l *Loop) acceptLoop(h *Handle, ln *net.TCPListener) {
	for {
		c, err := ln.AcceptTCP()
		if errors.Is(err, net.ErrClosed) {
			return
		}
		if !l.post(func() { l.onAccepted(h, c, err) }) {
			if c != nil {
				c.Close()
			}
			return
		}
		if err != nil {
			time.Sleep(acceptBackoff)
		}
	}
}

func (l *Loop) onAccepted(h *Handle, c *net.TCPConn, err error) {
	if h.state != StateOpen || h.listener == nil {
		if c != nil {
			c.Close()
		}
		return
	}
	if err != nil {
		l.log.Warn().Err(err).Uint32("handle", uint32(h.id)).Msg("accept failed")
		l.recordEvent(h, ConnectPayload{Status: StatusOf(err)})
		return
	}
	client := l.newHandle(KindTCP)
	client.conn = c
	l.recordEvent(h, ConnectPayload{Accepted: client.id, Status: StatusOK})
}

// Read fills buf from offset 0. A read event fires once the buffer is full
// or the stream ends or fails, carrying the number of bytes filled. Reading
// then stops; call Read again to continue.
//
// The socket is read into private storage sized to buf's length at the time
// of the call, and the bytes are copied into buf when the read completes.
// Growing, shrinking or freeing buf in the meantime is safe; Filled counts
// only the bytes that still fit.
func (l *Loop) Read(id ID, buf *bytebuf.Buffer) error {
	h, err := l.lookupKind(id, KindTCP)
	if err != nil {
		return err
	}
	if buf == nil {
		return fmt.Errorf("%w: nil buffer", ErrInvalidHandle)
	}
	if h.conn == nil {
		return fmt.Errorf("%w: handle %d", ErrNotConnected, id)
	}
	if h.read != nil {
		return fmt.Errorf("%w: handle %d is already reading", ErrBusy, id)
	}

	h.read = &readState{target: buf}
	l.ref()
	conn, scratch := h.conn, bytespool.Alloc(buf.Len())
	go func() {
		n, err := io.ReadFull(conn, scratch)
		l.post(func() { l.onRead(h, scratch, n, err) })
	}()
	return nil
}

func (l *Loop) onRead(h *Handle, scratch []byte, n int, err error) {
	defer bytespool.Free(scratch)
	l.unref()
	rs := h.read
	h.read = nil
	if h.state != StateOpen || rs == nil {
		return
	}
	rs.filled = rs.target.CopyIn(0, scratch[:n])
	l.recordEvent(h, ReadPayload{Filled: rs.filled, Status: StatusOf(err)})
}

// Write sends the current contents of buf. The bytes are copied, so buf may
// be reused immediately. A write event reports how much was written.
func (l *Loop) Write(id ID, buf *bytebuf.Buffer) error {
	h, err := l.lookupKind(id, KindTCP)
	if err != nil {
		return err
	}
	if buf == nil {
		return fmt.Errorf("%w: nil buffer", ErrInvalidHandle)
	}
	if h.conn == nil {
		return fmt.Errorf("%w: handle %d", ErrNotConnected, id)
	}
	if h.writing {
		return fmt.Errorf("%w: handle %d is already writing", ErrBusy, id)
	}

	h.writing = true
	l.ref()
	conn, data := h.conn, bytes.Clone(buf.Bytes())
	go func() {
		n, err := conn.Write(data)
		l.post(func() { l.onWritten(h, n, err) })
	}()
	return nil
}

func (l *Loop) onWritten(h *Handle, n int, err error) {
	l.unref()
	h.writing = false
	if h.state != StateOpen {
		return
	}
	l.recordEvent(h, WritePayload{Written: n, Status: StatusOf(err)})
}

// LocalAddr is the address a listening or connected handle is bound to.
func (l *Loop) LocalAddr(id ID) (net.Addr, error) {
	h, err := l.lookupKind(id, KindTCP)
	if err != nil {
		return nil, err
	}
	switch {
	case h.listener != nil:
		return h.listener.Addr(), nil
	case h.conn != nil:
		return h.conn.LocalAddr(), nil
	}
	return nil, fmt.Errorf("%w: handle %d", ErrNotConnected, id)
}

// RemoteAddr is the peer of a connected handle.
func (l *Loop) RemoteAddr(id ID) (net.Addr, error) {
	h, err := l.lookupKind(id, KindTCP)
	if err != nil {
		return nil, err
	}
	if h.conn == nil {
		return nil, fmt.Errorf("%w: handle %d", ErrNotConnected, id)
	}
	return h.conn.RemoteAddr(), nil
}
