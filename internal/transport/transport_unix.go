// internal/transport/transport_unix.go
//go:build darwin || dragonfly || freebsd || linux || netbsd || openbsd || solaris
// +build darwin dragonfly freebsd linux netbsd openbsd solaris

//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// POSIX sockets: nonblocking, close-on-exec, TCP_NODELAY on streams.

package transport

import (
	"errors"
	"net/netip"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-fiber/api"
)

// Socket is an OS socket descriptor.
type Socket int

// InvalidSocket marks an absent socket.
const InvalidSocket Socket = -1

func sockaddr(ep netip.AddrPort) (unix.Sockaddr, int) {
	if ep.Addr().Is4() {
		return &unix.SockaddrInet4{Port: int(ep.Port()), Addr: ep.Addr().As4()}, unix.AF_INET
	}
	return &unix.SockaddrInet6{Port: int(ep.Port()), Addr: ep.Addr().As16()}, unix.AF_INET6
}

func prepare(fd int) error {
	unix.CloseOnExec(fd)
	if err := unix.SetNonblock(fd, true); err != nil {
		return api.Errno("set nonblock", err)
	}
	return nil
}

func open(family int) (Socket, error) {
	fd, err := unix.Socket(family, unix.SOCK_STREAM, 0)
	if err != nil {
		return InvalidSocket, api.Errno("socket", err)
	}
	if err := prepare(fd); err != nil {
		_ = unix.Close(fd)
		return InvalidSocket, err
	}
	return Socket(fd), nil
}

// ListenAddr opens a nonblocking listening socket on ep.
func ListenAddr(ep netip.AddrPort, backlog int) (Socket, error) {
	sa, family := sockaddr(ep)
	s, err := open(family)
	if err != nil {
		return InvalidSocket, err
	}
	fd := int(s)
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		_ = unix.Close(fd)
		return InvalidSocket, api.Errno("setsockopt SO_REUSEADDR", err)
	}
	if err := unix.Bind(fd, sa); err != nil {
		_ = unix.Close(fd)
		return InvalidSocket, api.Errno("bind "+ep.String(), err)
	}
	if err := unix.Listen(fd, backlog); err != nil {
		_ = unix.Close(fd)
		return InvalidSocket, api.Errno("listen", err)
	}
	return s, nil
}

// Open creates a nonblocking stream socket suited to ep.
func Open(ep netip.AddrPort) (Socket, error) {
	_, family := sockaddr(ep)
	return open(family)
}

// Connect starts a connection. A nonblocking connect reports
// IsInProgress(err) until the socket turns writable.
func Connect(s Socket, ep netip.AddrPort) error {
	sa, _ := sockaddr(ep)
	if err := unix.Connect(int(s), sa); err != nil {
		return api.Errno("connect "+ep.String(), err)
	}
	_ = unix.SetsockoptInt(int(s), unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
	return nil
}

// ConnectResult fetches the outcome of a connect that was in progress.
func ConnectResult(s Socket) error {
	code, err := unix.GetsockoptInt(int(s), unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return api.Errno("getsockopt SO_ERROR", err)
	}
	if code != 0 {
		return api.Errno("connect", unix.Errno(code))
	}
	_ = unix.SetsockoptInt(int(s), unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
	return nil
}

// Accept takes one pending connection off a listening socket.
func Accept(s Socket) (Socket, error) {
	fd, err := accept(int(s))
	if err != nil {
		return InvalidSocket, api.Errno("accept", err)
	}
	_ = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
	return Socket(fd), nil
}

// Read performs one read(2).
func Read(s Socket, p []byte) (int, error) {
	n, err := unix.Read(int(s), p)
	if err != nil {
		return 0, api.Errno("read", err)
	}
	return n, nil
}

// Write performs one write(2).
func Write(s Socket, p []byte) (int, error) {
	n, err := unix.Write(int(s), p)
	if err != nil {
		return 0, api.Errno("write", err)
	}
	return n, nil
}

// Close releases the socket.
func Close(s Socket) error {
	return api.Errno("close", unix.Close(int(s)))
}

// Pair returns two connected nonblocking stream sockets.
func Pair() (Socket, Socket, error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		return InvalidSocket, InvalidSocket, api.Errno("socketpair", err)
	}
	for _, fd := range fds {
		if err := prepare(fd); err != nil {
			_ = unix.Close(fds[0])
			_ = unix.Close(fds[1])
			return InvalidSocket, InvalidSocket, err
		}
	}
	return Socket(fds[0]), Socket(fds[1]), nil
}

// LocalAddr returns the bound address of an IP socket.
func LocalAddr(s Socket) (netip.AddrPort, error) {
	sa, err := unix.Getsockname(int(s))
	if err != nil {
		return netip.AddrPort{}, api.Errno("getsockname", err)
	}
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return netip.AddrPortFrom(netip.AddrFrom4(a.Addr), uint16(a.Port)), nil
	case *unix.SockaddrInet6:
		return netip.AddrPortFrom(netip.AddrFrom16(a.Addr), uint16(a.Port)), nil
	}
	return netip.AddrPort{}, api.Wrap("getsockname", api.ErrNotSupported)
}

// ListenUnix opens a nonblocking unix-domain listener at path.
func ListenUnix(path string, backlog int) (Socket, error) {
	s, err := open(unix.AF_UNIX)
	if err != nil {
		return InvalidSocket, err
	}
	if err := unix.Bind(int(s), &unix.SockaddrUnix{Name: path}); err != nil {
		_ = unix.Close(int(s))
		return InvalidSocket, api.Errno("bind "+path, err)
	}
	if err := unix.Listen(int(s), backlog); err != nil {
		_ = unix.Close(int(s))
		return InvalidSocket, api.Errno("listen", err)
	}
	return s, nil
}

// ConnectUnix starts a unix-domain connection on a socket from OpenUnix.
func ConnectUnix(s Socket, path string) error {
	return api.Errno("connect "+path, unix.Connect(int(s), &unix.SockaddrUnix{Name: path}))
}

// OpenUnix creates a nonblocking unix-domain stream socket.
func OpenUnix() (Socket, error) { return open(unix.AF_UNIX) }

// IsWouldBlock reports a transient EAGAIN.
func IsWouldBlock(err error) bool {
	return errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK)
}

// IsInProgress reports a connect that completes asynchronously.
func IsInProgress(err error) bool {
	return errors.Is(err, unix.EINPROGRESS) || errors.Is(err, unix.EALREADY) || errors.Is(err, unix.EAGAIN)
}
