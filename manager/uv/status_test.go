package uv

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int32
	}{
		{"nil", nil, StatusOK},
		{"invalid handle", fmt.Errorf("%w: 7", ErrInvalidHandle), StatusInvalidHandle},
		{"loop closed", ErrLoopClosed, StatusInvalidHandle},
		{"wrong kind", ErrWrongKind, StatusWrongKind},
		{"busy", ErrBusy, StatusBusy},
		{"address", ErrInvalidAddress, StatusInvalidAddress},
		{"not connected", ErrNotConnected, StatusNotConnected},
		{"no ipv4", errNoAddress, StatusNoAddress},
		{"eof", io.EOF, StatusEOF},
		{"short read", io.ErrUnexpectedEOF, StatusEOF},
		{"canceled", context.Canceled, StatusCanceled},
		{"closed conn", net.ErrClosed, StatusCanceled},
		{"deadline", os.ErrDeadlineExceeded, -int32(syscall.ETIMEDOUT)},
		{"dns not found", &net.DNSError{Err: "no such host", IsNotFound: true}, StatusResolveNoName},
		{"dns temporary", &net.DNSError{Err: "try again", IsTemporary: true}, StatusResolveAgain},
		{"dns other", &net.DNSError{Err: "server misbehaving"}, StatusResolveFail},
		{"errno", &net.OpError{Op: "dial", Err: os.NewSyscallError("connect", syscall.ECONNREFUSED)}, -int32(syscall.ECONNREFUSED)},
		{"opaque", fmt.Errorf("something else"), StatusUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusOf(tt.err))
		})
	}
}

func TestResolverLiteral(t *testing.T) {
	r := newResolver()
	addr, err := r.resolve4(context.Background(), "10.1.2.3", "8080")
	require.NoError(t, err)
	assert.Equal(t, "10.1.2.3:8080", addr.String())

	_, err = r.resolve4(context.Background(), "fe80::1", "80")
	assert.ErrorIs(t, err, errNoAddress)
}

func TestResolverCache(t *testing.T) {
	r := newResolver()
	r.setCache(4, time.Minute)
	r.cache.Add("service.internal", []net.IP{net.ParseIP("::1"), net.ParseIP("192.0.2.7")})

	addr, err := r.resolve4(context.Background(), "service.internal", "443")
	require.NoError(t, err)
	assert.Equal(t, "192.0.2.7:443", addr.String(), "the first IPv4 address wins")

	r.setCache(0, 0)
	assert.Nil(t, r.cache)
}

func TestWithResolverCache(t *testing.T) {
	l := NewLoop(WithResolverCache(8, time.Minute))
	require.NotNil(t, l.resolver.cache)

	l.resolver.cache.Add("db.example", []net.IP{net.ParseIP("127.0.0.1")})
	h := newTCP(t, l)
	require.NoError(t, l.Connect(h.ID(), "db.example", "1"))

	ev := nextEvent(t, l)
	p := ev.Payload.(ConnectPayload)
	assert.NotEqual(t, StatusNoAddress, p.Status)
	assert.NotEqual(t, StatusResolveNoName, p.Status)
}
