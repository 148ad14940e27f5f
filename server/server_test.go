// File: server/server_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/momentics/hioload-fiber/control"
	"github.com/momentics/hioload-fiber/server"
)

func testConfig() control.ServerConfig {
	cfg := control.Default().Server
	cfg.Host = "127.0.0.1"
	cfg.Port = "0"
	return cfg
}

func start(t *testing.T, srv *server.Server) (string, <-chan error) {
	t.Helper()
	errc := make(chan error, 1)
	go func() { errc <- srv.Run(context.Background()) }()
	addr, err := srv.Addr()
	require.NoError(t, err)
	return addr.String(), errc
}

func stop(t *testing.T, srv *server.Server, errc <-chan error) {
	t.Helper()
	require.NoError(t, srv.Shutdown())
	select {
	case err := <-errc:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServer_EchoesConcurrentClients(t *testing.T) {
	srv := server.New(testConfig())
	addr, errc := start(t, srv)

	const clients = 8
	var g errgroup.Group
	for i := 0; i < clients; i++ {
		payload := bytes.Repeat([]byte(fmt.Sprintf("client-%d;", i)), 700)
		g.Go(func() error {
			c, err := net.DialTimeout("tcp", addr, time.Second)
			if err != nil {
				return err
			}
			defer c.Close()
			_ = c.SetDeadline(time.Now().Add(5 * time.Second))
			wg := errgroup.Group{}
			wg.Go(func() error {
				_, err := c.Write(payload)
				return err
			})
			got := make([]byte, len(payload))
			if _, err := io.ReadFull(c, got); err != nil {
				return err
			}
			if err := wg.Wait(); err != nil {
				return err
			}
			if !bytes.Equal(payload, got) {
				return fmt.Errorf("echo mismatch for %d bytes", len(payload))
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	stop(t, srv, errc)
	assert.Equal(t, uint64(clients), srv.Metrics().Counter("server.accepted"))
	assert.GreaterOrEqual(t, srv.Metrics().Counter("server.bytes"), uint64(clients*700*9))
}

func TestServer_ClosesSessionOnPeerEOF(t *testing.T) {
	srv := server.New(testConfig())
	addr, errc := start(t, srv)

	c, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	_, err = c.Write([]byte("bye"))
	require.NoError(t, err)
	require.NoError(t, c.(*net.TCPConn).CloseWrite())
	_ = c.SetReadDeadline(time.Now().Add(5 * time.Second))
	got, err := io.ReadAll(c)
	require.NoError(t, err)
	assert.Equal(t, "bye", string(got))
	require.NoError(t, c.Close())

	require.Eventually(t, func() bool {
		return srv.Metrics().Counter("server.closed") == 1
	}, 5*time.Second, 10*time.Millisecond)
	stop(t, srv, errc)
}

func TestServer_ShutdownWithOpenSessions(t *testing.T) {
	srv := server.New(testConfig())
	addr, errc := start(t, srv)

	conns := make([]net.Conn, 3)
	for i := range conns {
		c, err := net.Dial("tcp", addr)
		require.NoError(t, err)
		defer c.Close()
		conns[i] = c
	}
	require.Eventually(t, func() bool {
		return srv.Metrics().Counter("server.accepted") == uint64(len(conns))
	}, 5*time.Second, 10*time.Millisecond)

	stop(t, srv, errc)
	assert.Equal(t, uint64(len(conns)), srv.Metrics().Counter("server.closed"))
	snap := srv.Metrics().GetSnapshot()
	assert.Contains(t, snap, "sched.switches")
	assert.Contains(t, snap, "equeue.registrations")

	_ = conns[0].SetReadDeadline(time.Now().Add(5 * time.Second))
	_, err := conns[0].Read(make([]byte, 1))
	assert.Error(t, err, "sessions are closed on shutdown")
}

func TestServer_ContextCancelStops(t *testing.T) {
	srv := server.New(testConfig())
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- srv.Run(ctx) }()
	<-srv.Ready()
	cancel()
	select {
	case err := <-errc:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server ignored cancellation")
	}
}

func TestServer_ShutdownBeforeRun(t *testing.T) {
	srv := server.New(testConfig())
	require.NoError(t, srv.Shutdown())
	require.NoError(t, srv.Run(context.Background()))
	assert.ErrorIs(t, srv.Run(context.Background()), server.ErrAlreadyRunning)
}

func TestServer_ListenFailureIsReported(t *testing.T) {
	cfg := testConfig()
	cfg.Port = "no-such-service-name"
	srv := server.New(cfg)
	err := srv.Run(context.Background())
	require.Error(t, err)
	_, aerr := srv.Addr()
	assert.Error(t, aerr)
}
