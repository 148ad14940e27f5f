package transport

import (
	"context"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-fiber/api"
)

func TestResolve_Literals(t *testing.T) {
	eps, err := Resolve(context.Background(), "127.0.0.1", "8080", false)
	require.NoError(t, err)
	require.Len(t, eps, 1)
	assert.Equal(t, netip.MustParseAddrPort("127.0.0.1:8080"), eps[0])

	eps, err = Resolve(context.Background(), "", "9", true)
	require.NoError(t, err)
	assert.True(t, eps[0].Addr().IsUnspecified())

	eps, err = Resolve(context.Background(), "", "9", false)
	require.NoError(t, err)
	assert.True(t, eps[0].Addr().IsLoopback())
}

func TestResolve_BadService(t *testing.T) {
	_, err := Resolve(context.Background(), "127.0.0.1", "no-such-service-xyz", false)
	require.Error(t, err)
	var tagged *api.Error
	require.ErrorAs(t, err, &tagged)
	assert.Equal(t, api.DomainResolve, tagged.Domain)
}

func TestListen_EphemeralPort(t *testing.T) {
	s, err := Listen(context.Background(), "127.0.0.1", "0", 16)
	require.NoError(t, err)
	defer Close(s)
	addr, err := LocalAddr(s)
	require.NoError(t, err)
	assert.NotZero(t, addr.Port())
}
