// Copyright 2025 momentics@gmail.com
// License: Apache 2.0

package equeue

import (
	"context"
	"io"
	"net/netip"

	"github.com/momentics/hioload-fiber/api"
	"github.com/momentics/hioload-fiber/internal/transport"
)

// Server is a listening socket registered with an Equeue.
type Server struct {
	e *Equeue
	h *handle
}

// Client is a connected stream socket registered with an Equeue. Recv and
// Send make a single attempt, parking the task at most once; Read and
// Write adapt them to io.Reader and io.Writer.
type Client struct {
	e *Equeue
	h *handle
}

var _ api.Conn = (*Client)(nil)

// NewServer registers a listening socket. The socket must be nonblocking.
func (e *Equeue) NewServer(sock transport.Socket) (*Server, error) {
	h, err := e.register(sock)
	if err != nil {
		return nil, err
	}
	return &Server{e: e, h: h}, nil
}

// NewClient registers a connected socket. The socket must be nonblocking.
func (e *Equeue) NewClient(sock transport.Socket) (*Client, error) {
	h, err := e.register(sock)
	if err != nil {
		return nil, err
	}
	return &Client{e: e, h: h}, nil
}

// Listen opens a listening socket on host:service and registers it.
func (e *Equeue) Listen(ctx context.Context, host, service string, backlog int) (*Server, error) {
	sock, err := transport.Listen(ctx, host, service, backlog)
	if err != nil {
		return nil, err
	}
	srv, err := e.NewServer(sock)
	if err != nil {
		_ = transport.Close(sock)
		return nil, err
	}
	e.log.Debug().Str("host", host).Str("service", service).Msg("listening")
	return srv, nil
}

// Dial connects to the first reachable endpoint of host:service. The
// calling task parks while a nonblocking connect is in flight.
func (e *Equeue) Dial(ctx context.Context, host, service string) (*Client, error) {
	eps, err := transport.Resolve(ctx, host, service, false)
	if err != nil {
		return nil, err
	}
	var last error
	for _, ep := range eps {
		c, err := e.dialAddr(ep)
		if err == nil {
			return c, nil
		}
		if e.s.Canceled() {
			return nil, err
		}
		last = err
	}
	return nil, last
}

func (e *Equeue) dialAddr(ep netip.AddrPort) (*Client, error) {
	sock, err := transport.Open(ep)
	if err != nil {
		return nil, err
	}
	return e.connect(sock, transport.Connect(sock, ep))
}

// ListenUnix opens a unix-domain listener at path and registers it.
func (e *Equeue) ListenUnix(path string, backlog int) (*Server, error) {
	sock, err := transport.ListenUnix(path, backlog)
	if err != nil {
		return nil, err
	}
	srv, err := e.NewServer(sock)
	if err != nil {
		_ = transport.Close(sock)
		return nil, err
	}
	return srv, nil
}

// DialUnix connects to the unix-domain socket at path.
func (e *Equeue) DialUnix(path string) (*Client, error) {
	sock, err := transport.OpenUnix()
	if err != nil {
		return nil, err
	}
	return e.connect(sock, transport.ConnectUnix(sock, path))
}

// connect registers sock and finishes the connect whose first attempt
// returned err.
func (e *Equeue) connect(sock transport.Socket, err error) (*Client, error) {
	if err != nil && !transport.IsInProgress(err) {
		_ = transport.Close(sock)
		return nil, err
	}
	c, rerr := e.NewClient(sock)
	if rerr != nil {
		_ = transport.Close(sock)
		return nil, rerr
	}
	if err != nil {
		if err := e.finishConnect(c.h); err != nil {
			_ = c.Close()
			return nil, err
		}
	}
	return c, nil
}

// Accept returns the next pending connection as a raw nonblocking socket.
func (srv *Server) Accept() (transport.Socket, error) {
	return srv.e.accept(srv.h)
}

// AcceptClient accepts a connection and registers it with the same queue.
func (srv *Server) AcceptClient() (*Client, error) {
	sock, err := srv.Accept()
	if err != nil {
		return nil, err
	}
	c, err := srv.e.NewClient(sock)
	if err != nil {
		_ = transport.Close(sock)
		return nil, err
	}
	return c, nil
}

// Addr returns the bound address of an IP listener.
func (srv *Server) Addr() (netip.AddrPort, error) {
	return transport.LocalAddr(srv.h.sock)
}

// Close unregisters and closes the listening socket. Tasks parked in
// Accept resume with api.ErrClosed.
func (srv *Server) Close() error {
	return srv.e.closeHandle(srv.h)
}

// Recv reads into p. Zero bytes with a nil error means the peer closed.
func (c *Client) Recv(p []byte) (int, error) {
	return c.e.recv(c.h, p)
}

// Send writes a prefix of p and returns its length.
func (c *Client) Send(p []byte) (int, error) {
	return c.e.send(c.h, p)
}

// Read implements io.Reader on top of Recv, retrying spurious wake-ups.
func (c *Client) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for {
		n, err := c.Recv(p)
		switch {
		case err == nil && n == 0:
			return 0, io.EOF
		case err == nil:
			return n, nil
		case !transport.IsWouldBlock(err):
			return 0, err
		}
	}
}

// Write implements io.Writer: it keeps sending until p is written or an
// error occurs.
func (c *Client) Write(p []byte) (int, error) {
	done := 0
	for done < len(p) {
		n, err := c.Send(p[done:])
		if err != nil && !transport.IsWouldBlock(err) {
			return done, err
		}
		done += n
	}
	return done, nil
}

// Socket exposes the underlying socket.
func (c *Client) Socket() transport.Socket { return c.h.sock }

// Close unregisters and closes the socket. Tasks parked on it resume with
// api.ErrClosed.
func (c *Client) Close() error {
	return c.e.closeHandle(c.h)
}

func (e *Equeue) closeHandle(h *handle) error {
	if h.closed {
		return nil
	}
	e.unregister(h)
	e.wakeOwners(h, true, true)
	return transport.Close(h.sock)
}
