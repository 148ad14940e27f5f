// File: internal/transport/transport_windows.go
//go:build windows
// +build windows

//
// Overlapped Winsock sockets. Accept, receive and send are issued by the
// completion port backend of the event queue; this file covers setup.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package transport

import (
	"errors"
	"net/netip"
	"sync"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/momentics/hioload-fiber/api"
)

// Socket is a Winsock handle.
type Socket = windows.Handle

// InvalidSocket marks an absent socket.
const InvalidSocket = windows.InvalidHandle

var (
	wsaOnce sync.Once
	wsaErr  error
)

func startup() error {
	wsaOnce.Do(func() {
		var d windows.WSAData
		wsaErr = api.Errno("WSAStartup", windows.WSAStartup(uint32(0x202), &d))
	})
	return wsaErr
}

func sockaddr(ep netip.AddrPort) (windows.Sockaddr, int32) {
	if ep.Addr().Is4() {
		return &windows.SockaddrInet4{Port: int(ep.Port()), Addr: ep.Addr().As4()}, windows.AF_INET
	}
	return &windows.SockaddrInet6{Port: int(ep.Port()), Addr: ep.Addr().As16()}, windows.AF_INET6
}

func open(family int32) (Socket, error) {
	if err := startup(); err != nil {
		return InvalidSocket, err
	}
	s, err := windows.WSASocket(family, windows.SOCK_STREAM, windows.IPPROTO_TCP, nil, 0, windows.WSA_FLAG_OVERLAPPED)
	if err != nil {
		return InvalidSocket, api.Errno("WSASocket", err)
	}
	return s, nil
}

// ListenAddr opens an overlapped listening socket on ep.
func ListenAddr(ep netip.AddrPort, backlog int) (Socket, error) {
	sa, family := sockaddr(ep)
	s, err := open(family)
	if err != nil {
		return InvalidSocket, err
	}
	if err := windows.Bind(s, sa); err != nil {
		_ = windows.Closesocket(s)
		return InvalidSocket, api.Errno("bind "+ep.String(), err)
	}
	if err := windows.Listen(s, backlog); err != nil {
		_ = windows.Closesocket(s)
		return InvalidSocket, api.Errno("listen", err)
	}
	return s, nil
}

// Open creates an overlapped stream socket suited to ep.
func Open(ep netip.AddrPort) (Socket, error) {
	_, family := sockaddr(ep)
	return open(family)
}

// OpenLike creates an overlapped socket of the listener's family, ready to
// be handed to AcceptEx.
func OpenLike(listener Socket) (Socket, error) {
	sa, err := windows.Getsockname(listener)
	if err != nil {
		return InvalidSocket, api.Errno("getsockname", err)
	}
	if _, ok := sa.(*windows.SockaddrInet6); ok {
		return open(windows.AF_INET6)
	}
	return open(windows.AF_INET)
}

// Connect connects synchronously; the handle stays overlapped for later
// I/O.
func Connect(s Socket, ep netip.AddrPort) error {
	sa, _ := sockaddr(ep)
	if err := windows.Connect(s, sa); err != nil {
		return api.Errno("connect "+ep.String(), err)
	}
	_ = windows.SetsockoptInt(s, windows.IPPROTO_TCP, windows.TCP_NODELAY, 1)
	return nil
}

// ConnectResult is a no-op: Connect never completes asynchronously here.
func ConnectResult(Socket) error { return nil }

// UpdateAcceptContext finishes an AcceptEx so the accepted socket
// inherits the listener's properties.
func UpdateAcceptContext(accepted, listener Socket) error {
	err := windows.Setsockopt(accepted, windows.SOL_SOCKET, windows.SO_UPDATE_ACCEPT_CONTEXT,
		(*byte)(unsafe.Pointer(&listener)), int32(unsafe.Sizeof(listener)))
	if err != nil {
		return api.Errno("setsockopt SO_UPDATE_ACCEPT_CONTEXT", err)
	}
	_ = windows.SetsockoptInt(accepted, windows.IPPROTO_TCP, windows.TCP_NODELAY, 1)
	return nil
}

// Close releases the socket.
func Close(s Socket) error {
	return api.Errno("closesocket", windows.Closesocket(s))
}

// LocalAddr returns the bound address of the socket.
func LocalAddr(s Socket) (netip.AddrPort, error) {
	sa, err := windows.Getsockname(s)
	if err != nil {
		return netip.AddrPort{}, api.Errno("getsockname", err)
	}
	switch a := sa.(type) {
	case *windows.SockaddrInet4:
		return netip.AddrPortFrom(netip.AddrFrom4(a.Addr), uint16(a.Port)), nil
	case *windows.SockaddrInet6:
		return netip.AddrPortFrom(netip.AddrFrom16(a.Addr), uint16(a.Port)), nil
	}
	return netip.AddrPort{}, api.Wrap("getsockname", api.ErrNotSupported)
}

// Pair returns two connected loopback sockets. Windows has no
// socketpair, so a throwaway listener brokers the connection.
func Pair() (Socket, Socket, error) {
	lep := netip.AddrPortFrom(netip.AddrFrom4([4]byte{127, 0, 0, 1}), 0)
	ln, err := ListenAddr(lep, 1)
	if err != nil {
		return InvalidSocket, InvalidSocket, err
	}
	defer windows.Closesocket(ln)
	addr, err := LocalAddr(ln)
	if err != nil {
		return InvalidSocket, InvalidSocket, err
	}
	acc, err := OpenLike(ln)
	if err != nil {
		return InvalidSocket, InvalidSocket, err
	}
	ev, err := windows.CreateEvent(nil, 1, 0, nil)
	if err != nil {
		_ = windows.Closesocket(acc)
		return InvalidSocket, InvalidSocket, api.Errno("CreateEvent", err)
	}
	defer windows.CloseHandle(ev)

	var (
		ol   = windows.Overlapped{HEvent: ev}
		buf  [2 * (unsafe.Sizeof(windows.RawSockaddrAny{}) + 16)]byte
		recv uint32
	)
	alen := uint32(unsafe.Sizeof(windows.RawSockaddrAny{}) + 16)
	err = windows.AcceptEx(ln, acc, &buf[0], 0, alen, alen, &recv, &ol)
	if err != nil && !errors.Is(err, windows.ERROR_IO_PENDING) {
		_ = windows.Closesocket(acc)
		return InvalidSocket, InvalidSocket, api.Errno("AcceptEx", err)
	}
	conn, err := Open(addr)
	if err == nil {
		err = Connect(conn, addr)
		if err != nil {
			_ = windows.Closesocket(conn)
		}
	}
	if err != nil {
		_ = windows.CancelIoEx(ln, &ol)
		_ = windows.GetOverlappedResult(ln, &ol, &recv, true)
		_ = windows.Closesocket(acc)
		return InvalidSocket, InvalidSocket, err
	}
	if err := windows.GetOverlappedResult(ln, &ol, &recv, true); err != nil {
		_ = windows.Closesocket(acc)
		_ = windows.Closesocket(conn)
		return InvalidSocket, InvalidSocket, api.Errno("AcceptEx", err)
	}
	if err := UpdateAcceptContext(acc, ln); err != nil {
		_ = windows.Closesocket(acc)
		_ = windows.Closesocket(conn)
		return InvalidSocket, InvalidSocket, err
	}
	return acc, conn, nil
}

// ListenUnix is not offered on Windows.
func ListenUnix(string, int) (Socket, error) {
	return InvalidSocket, api.Wrap("listen unix", api.ErrNotSupported)
}

// OpenUnix is not offered on Windows.
func OpenUnix() (Socket, error) {
	return InvalidSocket, api.Wrap("socket unix", api.ErrNotSupported)
}

// ConnectUnix is not offered on Windows.
func ConnectUnix(Socket, string) error {
	return api.Wrap("connect unix", api.ErrNotSupported)
}

const wsaEWouldBlock = syscall.Errno(10035)

// IsWouldBlock reports WSAEWOULDBLOCK.
func IsWouldBlock(err error) bool {
	return errors.Is(err, wsaEWouldBlock)
}

// IsInProgress is always false: Connect is synchronous on Windows.
func IsInProgress(error) bool { return false }
