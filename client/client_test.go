// File: client/client_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package client_test

import (
	"bytes"
	"context"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-fiber/client"
	"github.com/momentics/hioload-fiber/control"
	"github.com/momentics/hioload-fiber/server"
)

type recorder struct {
	connects, closes int
	errs             []error
}

func (r *recorder) OnConnect()        { r.connects++ }
func (r *recorder) OnClose()          { r.closes++ }
func (r *recorder) OnError(err error) { r.errs = append(r.errs, err) }

func echoServer(t *testing.T) string {
	t.Helper()
	cfg := control.Default().Server
	cfg.Host, cfg.Port = "127.0.0.1", "0"
	srv := server.New(cfg)
	errc := make(chan error, 1)
	go func() { errc <- srv.Run(context.Background()) }()
	addr, err := srv.Addr()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, srv.Shutdown())
		require.NoError(t, <-errc)
	})
	return strconv.Itoa(int(addr.Port()))
}

func clientConfig(port string) control.ClientConfig {
	cfg := control.Default().Client
	cfg.Host, cfg.Port = "127.0.0.1", port
	return cfg
}

func TestClient_CopiesThroughEcho(t *testing.T) {
	port := echoServer(t)
	input := strings.Repeat("the quick brown fox\n", 50)
	var out bytes.Buffer
	rec := &recorder{}

	c := client.New(clientConfig(port), strings.NewReader(input), &out, client.WithHandler(rec))
	require.NoError(t, c.Run(context.Background()))
	assert.Equal(t, input, out.String())
	assert.Equal(t, uint64(len(input)), c.Stats().Sent)
	assert.Equal(t, uint64(len(input)), c.Stats().Received)
	assert.Equal(t, 1, c.Stats().Attempts)
	assert.Equal(t, 1, rec.connects)
	assert.Equal(t, 1, rec.closes)
	assert.Empty(t, rec.errs)
}

func TestClient_EmptyInput(t *testing.T) {
	port := echoServer(t)
	var out bytes.Buffer
	c := client.New(clientConfig(port), strings.NewReader(""), &out)
	require.NoError(t, c.Run(context.Background()))
	assert.Zero(t, out.Len())
}

func TestClient_GivesUpAfterRetries(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := strconv.Itoa(l.Addr().(*net.TCPAddr).Port)
	require.NoError(t, l.Close())

	cfg := clientConfig(port)
	cfg.RetryDelay = control.Duration{Duration: 20 * time.Millisecond}
	rec := &recorder{}
	c := client.New(cfg, strings.NewReader("x"), &bytes.Buffer{}, client.WithHandler(rec))

	start := time.Now()
	err = c.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Equal(t, 3, c.Stats().Attempts)
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
	assert.Zero(t, rec.connects)
	assert.Len(t, rec.errs, 1)
}
