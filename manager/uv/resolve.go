package uv

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// errNoAddress is reported when a name resolves but has no IPv4 address.
var errNoAddress = errors.New("uv: no IPv4 address")

// resolver turns host/port strings into an IPv4 TCP address. It is used
// from request goroutines, so it must be safe for concurrent use.
type resolver struct {
	r     *net.Resolver
	cache *expirable.LRU[string, []net.IP]
}

func newResolver() *resolver {
	return &resolver{r: net.DefaultResolver}
}

func (r *resolver) setCache(size int, ttl time.Duration) {
	if size <= 0 {
		r.cache = nil
		return
	}
	r.cache = expirable.NewLRU[string, []net.IP](size, nil, ttl)
}

// resolve4 returns the first IPv4 address of host. The port may be a number
// or a service name.
func (r *resolver) resolve4(ctx context.Context, host, port string) (*net.TCPAddr, error) {
	p, err := r.r.LookupPort(ctx, "tcp", port)
	if err != nil {
		return nil, err
	}
	ips, err := r.lookup(ctx, host)
	if err != nil {
		return nil, err
	}
	for _, ip := range ips {
		if ip4 := ip.To4(); ip4 != nil {
			return &net.TCPAddr{IP: ip4, Port: p}, nil
		}
	}
	return nil, errNoAddress
}

func (r *resolver) lookup(ctx context.Context, host string) ([]net.IP, error) {
	// Literal addresses need no query.
	if ip := net.ParseIP(host); ip != nil {
		return []net.IP{ip}, nil
	}
	if r.cache != nil {
		if ips, ok := r.cache.Get(host); ok {
			return ips, nil
		}
	}
	addrs, err := r.r.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, err
	}
	ips := make([]net.IP, len(addrs))
	for i, a := range addrs {
		ips[i] = a.IP
	}
	if r.cache != nil {
		r.cache.Add(host, ips)
	}
	return ips, nil
}
