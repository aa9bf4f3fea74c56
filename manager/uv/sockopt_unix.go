//go:build unix

package uv

import (
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// listenControl prepares a listening socket before bind: address reuse, and
// dual-stack operation for IPv6 so IPv4-mapped peers are accepted.
func listenControl(network string) func(network, address string, c syscall.RawConn) error {
	return func(_, _ string, c syscall.RawConn) error {
		var optErr error
		err := c.Control(func(fd uintptr) {
			optErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
			if optErr == nil && network == "tcp6" {
				optErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_IPV6, unix.IPV6_V6ONLY, 0)
			}
		})
		if err != nil {
			return err
		}
		return optErr
	}
}

// setBacklog re-issues listen(2) on the bound socket. The net package always
// uses the system maximum; calling listen again adjusts the queue length.
func setBacklog(ln *net.TCPListener, backlog int) error {
	if backlog <= 0 {
		return nil
	}
	rc, err := ln.SyscallConn()
	if err != nil {
		return err
	}
	var listenErr error
	err = rc.Control(func(fd uintptr) {
		listenErr = unix.Listen(int(fd), backlog)
	})
	if err != nil {
		return err
	}
	return listenErr
}
