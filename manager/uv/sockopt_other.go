//go:build !unix

package uv

import (
	"net"
	"syscall"
)

// listenControl sets nothing here. IPv6 listeners keep the platform
// default for IPV6_V6ONLY.
func listenControl(string) func(network, address string, c syscall.RawConn) error {
	return nil
}

// setBacklog is a no-op; the system default backlog is used.
func setBacklog(*net.TCPListener, int) error {
	return nil
}
