// Package transport
// Author: momentics <momentics@gmail.com>
//
// Platform-independent address resolution.

package transport

import (
	"context"
	"fmt"
	"net"
	"net/netip"

	"github.com/momentics/hioload-fiber/api"
)

// Resolve turns a host and a service into socket endpoints. An empty host
// resolves to the wildcard address when passive is set and to loopback
// otherwise.
func Resolve(ctx context.Context, host, service string, passive bool) ([]netip.AddrPort, error) {
	port, err := net.DefaultResolver.LookupPort(ctx, "tcp", service)
	if err != nil {
		return nil, api.Resolve("resolve "+service, err)
	}
	if port < 0 || port > 0xffff {
		return nil, api.Resolve("resolve "+service, fmt.Errorf("port %d: %w", port, api.ErrInvalidArgument))
	}
	p := uint16(port)
	if host == "" {
		if passive {
			return []netip.AddrPort{netip.AddrPortFrom(netip.IPv4Unspecified(), p)}, nil
		}
		return []netip.AddrPort{netip.AddrPortFrom(netip.AddrFrom4([4]byte{127, 0, 0, 1}), p)}, nil
	}
	if ip, err := netip.ParseAddr(host); err == nil {
		return []netip.AddrPort{netip.AddrPortFrom(ip.Unmap(), p)}, nil
	}
	ips, err := net.DefaultResolver.LookupNetIP(ctx, "ip", host)
	if err != nil {
		return nil, api.Resolve("resolve "+host, err)
	}
	out := make([]netip.AddrPort, 0, len(ips))
	for _, ip := range ips {
		out = append(out, netip.AddrPortFrom(ip.Unmap(), p))
	}
	if len(out) == 0 {
		return nil, api.Resolve("resolve "+host, fmt.Errorf("no addresses: %w", api.ErrInvalidArgument))
	}
	return out, nil
}

// Listen binds the first endpoint of host:service that accepts a
// listening socket.
func Listen(ctx context.Context, host, service string, backlog int) (Socket, error) {
	eps, err := Resolve(ctx, host, service, true)
	if err != nil {
		return InvalidSocket, err
	}
	var last error
	for _, ep := range eps {
		s, err := ListenAddr(ep, backlog)
		if err == nil {
			return s, nil
		}
		last = err
	}
	return InvalidSocket, last
}
