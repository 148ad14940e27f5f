// File: client/client.go
// Package client provides the line client for the echo server.
// Author: momentics <momentics.com>
// License: Apache-2.0
//
// The client connects with a bounded number of attempts, then sends its
// input chunk by chunk, waiting for each chunk's echo before sending the
// next one and copying the echoes to its output. It runs as a single task
// on its own scheduler and event queue.

package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"time"

	"github.com/rs/zerolog"

	"github.com/momentics/hioload-fiber/api"
	"github.com/momentics/hioload-fiber/control"
	"github.com/momentics/hioload-fiber/equeue"
	"github.com/momentics/hioload-fiber/internal/logging"
	"github.com/momentics/hioload-fiber/sched"
)

// ConnEventHandler defines lifecycle callback signatures. Callbacks run on
// the client task and must not block.
type ConnEventHandler interface {
	OnConnect()
	OnClose()
	OnError(err error)
}

// Stats counts what one Run moved.
type Stats struct {
	Attempts int
	Sent     uint64
	Received uint64
}

// Client copies in to the server and the server's replies to out.
type Client struct {
	cfg      control.ClientConfig
	in       io.Reader
	out      io.Writer
	log      zerolog.Logger
	handlers []ConnEventHandler
	stats    Stats
	conn     *equeue.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithLogger overrides the process logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithHandler registers lifecycle callbacks.
func WithHandler(h ConnEventHandler) Option {
	return func(c *Client) { c.handlers = append(c.handlers, h) }
}

// New builds a client reading in and writing out.
func New(cfg control.ClientConfig, in io.Reader, out io.Writer, opts ...Option) *Client {
	c := &Client{cfg: cfg, in: in, out: out, log: logging.Component("client")}
	for _, o := range opts {
		o(c)
	}
	if c.cfg.Chunk <= 0 {
		c.cfg.Chunk = control.Default().Client.Chunk
	}
	if c.cfg.ConnectRetries <= 0 {
		c.cfg.ConnectRetries = 1
	}
	return c
}

// Stats returns the counters of the last Run.
func (c *Client) Stats() Stats { return c.stats }

// Run connects and copies until the input ends, the server closes the
// connection or ctx is done.
func (c *Client) Run(ctx context.Context) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	c.stats = Stats{}

	s := sched.New(sched.WithLogger(c.log.With().Str("component", "sched").Logger()))
	e, err := equeue.New(s, equeue.WithLogger(c.log.With().Str("component", "equeue").Logger()))
	if err != nil {
		return err
	}
	defer e.Close()

	var runErr error
	session, err := s.Create(0, func(any) { runErr = c.session(ctx, e) }, nil)
	if err != nil {
		return err
	}
	loop := equeue.NewLoop(e, 0)
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = loop.Stop()
		case <-done:
		}
	}()
	err = loop.Run()
	alive := s.State(session) != sched.StateFree
	if cerr := s.Close(); err == nil {
		err = cerr
	}
	// A session destroyed mid-call never reached its own close.
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	if err != nil {
		return fmt.Errorf("client: %w", err)
	}
	if alive {
		return fmt.Errorf("client: %w", context.Cause(ctx))
	}
	if runErr != nil {
		c.notifyError(runErr)
	}
	return runErr
}

// session runs on the client task. It must not defer anything that
// enters the scheduler: a stopped Run destroys the task mid-call.
func (c *Client) session(ctx context.Context, e *equeue.Equeue) error {
	conn, err := c.connect(ctx, e)
	if err != nil {
		return err
	}
	c.conn = conn
	for _, h := range c.handlers {
		h.OnConnect()
	}
	err = c.copyLoop(conn)
	c.conn = nil
	if cerr := conn.Close(); err == nil {
		err = cerr
	}
	for _, h := range c.handlers {
		h.OnClose()
	}
	return err
}

func (c *Client) copyLoop(conn *equeue.Client) error {
	buf := make([]byte, c.cfg.Chunk)
	for {
		n, err := c.in.Read(buf)
		if n > 0 {
			if err := c.roundTrip(conn, buf[:n]); err != nil {
				if errors.Is(err, io.EOF) {
					c.log.Debug().Msg("server closed the connection")
					return nil
				}
				return err
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("client: read input: %w", err)
		}
	}
}

// roundTrip sends p and copies its echo, which is read back into p.
func (c *Client) roundTrip(conn *equeue.Client, p []byte) error {
	if _, err := conn.Write(p); err != nil {
		return err
	}
	c.stats.Sent += uint64(len(p))
	n, err := io.ReadFull(conn, p)
	c.stats.Received += uint64(n)
	if n > 0 {
		if _, werr := c.out.Write(p[:n]); werr != nil {
			return fmt.Errorf("client: write output: %w", werr)
		}
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return io.EOF
	}
	return err
}

// connect dials with up to ConnectRetries attempts, RetryDelay apart. The
// driver thread sleeps between attempts: nothing else runs on it yet.
func (c *Client) connect(ctx context.Context, e *equeue.Equeue) (*equeue.Client, error) {
	var last error
	for i := 0; i < c.cfg.ConnectRetries; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, api.Wrap("connect", context.Cause(ctx))
			case <-time.After(c.cfg.RetryDelay.Duration):
			}
		}
		c.stats.Attempts++
		conn, err := e.Dial(ctx, c.cfg.Host, c.cfg.Port)
		if err == nil {
			c.log.Debug().Int("attempt", i+1).Msg("connected")
			return conn, nil
		}
		c.log.Debug().Err(err).Int("attempt", i+1).Msg("connect failed")
		last = err
	}
	return nil, fmt.Errorf("client: connect %s:%s after %d attempts: %w", c.cfg.Host, c.cfg.Port, c.cfg.ConnectRetries, last)
}

func (c *Client) notifyError(err error) {
	for _, h := range c.handlers {
		h.OnError(err)
	}
}
