// File: server/server.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"runtime"
	"sync"

	"github.com/rs/zerolog"

	"github.com/momentics/hioload-fiber/affinity"
	"github.com/momentics/hioload-fiber/api"
	"github.com/momentics/hioload-fiber/control"
	"github.com/momentics/hioload-fiber/equeue"
	"github.com/momentics/hioload-fiber/internal/logging"
	"github.com/momentics/hioload-fiber/sched"
)

var ErrAlreadyRunning = errors.New("server already running")

// Server is the echo server. Run owns the driver thread; Addr, Ready,
// Metrics and Shutdown may be used from other goroutines.
type Server struct {
	cfg     control.ServerConfig
	log     zerolog.Logger
	metrics *control.MetricsRegistry
	probes  *control.DebugProbes

	mu       sync.Mutex
	running  bool
	stopReq  bool
	loop     *equeue.Loop
	addr     netip.AddrPort
	ready    chan struct{}
	readyErr error

	// Driver state, touched only by tasks of s.
	s        *sched.Scheduler
	e        *equeue.Equeue
	listener *equeue.Server
	conns    map[*conn]struct{}
	stopping bool
}

// Option customizes a Server.
type Option func(*Server)

// WithLogger overrides the process logger.
func WithLogger(l zerolog.Logger) Option {
	return func(srv *Server) { srv.log = l }
}

// WithMetrics shares a metrics registry with the caller.
func WithMetrics(mr *control.MetricsRegistry) Option {
	return func(srv *Server) { srv.metrics = mr }
}

// WithProbes shares a probe registry with the caller.
func WithProbes(dp *control.DebugProbes) Option {
	return func(srv *Server) { srv.probes = dp }
}

// New builds an echo server for cfg.
func New(cfg control.ServerConfig, opts ...Option) *Server {
	srv := &Server{
		cfg:   cfg,
		log:   logging.Component("server"),
		ready: make(chan struct{}),
	}
	for _, o := range opts {
		o(srv)
	}
	if srv.metrics == nil {
		srv.metrics = control.NewMetricsRegistry()
	}
	if srv.probes == nil {
		srv.probes = control.NewDebugProbes()
	}
	return srv
}

// Ready is closed once Run has bound the listener or failed to.
func (srv *Server) Ready() <-chan struct{} { return srv.ready }

// Addr returns the bound address after Ready is closed.
func (srv *Server) Addr() (netip.AddrPort, error) {
	<-srv.ready
	srv.mu.Lock()
	defer srv.mu.Unlock()
	return srv.addr, srv.readyErr
}

// Metrics exposes the server counters.
func (srv *Server) Metrics() *control.MetricsRegistry { return srv.metrics }

// Probes exposes the debug probes.
func (srv *Server) Probes() *control.DebugProbes { return srv.probes }

// Shutdown makes Run tear down and return. It may be called before Run
// starts and from any goroutine.
func (srv *Server) Shutdown() error {
	srv.mu.Lock()
	srv.stopReq = true
	loop := srv.loop
	srv.mu.Unlock()
	if loop == nil {
		return nil
	}
	return loop.Stop()
}

// Run serves until ctx is done, Shutdown is called or accepting fails. It
// locks the calling goroutine to its OS thread for the duration.
func (srv *Server) Run(ctx context.Context) (err error) {
	srv.mu.Lock()
	if srv.running {
		srv.mu.Unlock()
		return ErrAlreadyRunning
	}
	srv.running = true
	srv.mu.Unlock()

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	if srv.cfg.CPU >= 0 {
		if err := affinity.SetAffinity(srv.cfg.CPU); err != nil {
			srv.log.Warn().Err(err).Int("cpu", srv.cfg.CPU).Msg("cpu pinning failed")
		}
	}

	if err := srv.open(ctx); err != nil {
		srv.publishReady(netip.AddrPort{}, err)
		return err
	}
	defer func() {
		if cerr := srv.teardown(); err == nil {
			err = cerr
		}
	}()

	addr, err := srv.listener.Addr()
	if err != nil {
		srv.publishReady(netip.AddrPort{}, err)
		return err
	}
	if _, err := srv.s.Create(srv.cfg.StackSize, srv.acceptLoop, nil); err != nil {
		srv.publishReady(netip.AddrPort{}, err)
		return err
	}

	loop := equeue.NewLoop(srv.e, srv.cfg.EventBatch)
	srv.mu.Lock()
	srv.loop = loop
	stop := srv.stopReq
	srv.mu.Unlock()
	if stop {
		_ = loop.Stop()
	}
	srv.publishReady(addr, nil)
	srv.log.Info().Stringer("addr", addr).Str("backend", srv.e.Backend()).Msg("serving")

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = srv.Shutdown()
		case <-done:
		}
	}()

	if err := loop.Run(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

func (srv *Server) publishReady(addr netip.AddrPort, err error) {
	srv.mu.Lock()
	srv.addr, srv.readyErr = addr, err
	srv.mu.Unlock()
	close(srv.ready)
}

func (srv *Server) open(ctx context.Context) error {
	srv.s = sched.New(sched.WithLogger(srv.log.With().Str("component", "sched").Logger()))
	e, err := equeue.New(srv.s, equeue.WithLogger(srv.log.With().Str("component", "equeue").Logger()))
	if err != nil {
		return err
	}
	srv.e = e
	srv.conns = make(map[*conn]struct{})
	srv.registerProbes()

	srv.listener, err = e.Listen(ctx, srv.cfg.Host, srv.cfg.Port, srv.cfg.Backlog)
	if err != nil {
		_ = e.Close()
		return err
	}
	return nil
}

func (srv *Server) registerProbes() {
	control.RegisterPlatformProbes(srv.probes)
	srv.probes.RegisterProbe("sched", func() any { return srv.s.Stats().Map() })
	srv.probes.RegisterProbe("equeue", func() any { return srv.e.Stats().Map() })
	srv.probes.RegisterProbe("server.connections", func() any { return len(srv.conns) })
}

// teardown runs on the driver thread after the loop returned.
func (srv *Server) teardown() error {
	srv.stopping = true
	var errs []error
	if err := srv.listener.Close(); err != nil {
		errs = append(errs, err)
	}
	for cn := range srv.conns {
		srv.destroyConn(cn)
	}
	srv.metrics.Publish("sched", srv.s.Stats().Map())
	srv.metrics.Publish("equeue", srv.e.Stats().Map())
	srv.log.Debug().Interface("probes", srv.probes.DumpState()).Msg("final state")
	if err := srv.s.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := srv.e.Close(); err != nil {
		errs = append(errs, err)
	}
	srv.log.Info().
		Uint64("accepted", srv.metrics.Counter("server.accepted")).
		Uint64("closed", srv.metrics.Counter("server.closed")).
		Msg("server stopped")
	return errors.Join(errs...)
}

// acceptLoop is the listener task.
func (srv *Server) acceptLoop(any) {
	for !srv.stopping {
		c, err := srv.listener.AcceptClient()
		if err != nil {
			if errors.Is(err, api.ErrClosed) || errors.Is(err, api.ErrCanceled) {
				return
			}
			if api.IsTemporary(err) {
				continue
			}
			srv.log.Error().Err(err).Msg("accept failed")
			_ = srv.Shutdown()
			return
		}
		if err := srv.spawn(c); err != nil {
			srv.log.Error().Err(err).Msg("client setup failed")
			_ = c.Close()
			continue
		}
		srv.metrics.Add("server.accepted", 1)
		srv.log.Debug().Int("connections", len(srv.conns)).Msg("accepted client")
	}
}
