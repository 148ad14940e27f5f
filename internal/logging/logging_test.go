package logging

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSONLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(&buf, "warn", "json")
	require.NoError(t, err)

	l.Info().Msg("dropped")
	l.Warn().Str("component", "sched").Msg("kept")

	out := buf.String()
	assert.NotContains(t, out, "dropped")
	assert.Contains(t, out, `"component":"sched"`)
}

func TestNew_Rejects(t *testing.T) {
	_, err := New(&bytes.Buffer{}, "loud", "json")
	assert.Error(t, err)
	_, err = New(&bytes.Buffer{}, "info", "xml")
	assert.Error(t, err)
}

func TestSet_Component(t *testing.T) {
	prev := *L()
	defer Set(prev)

	var buf bytes.Buffer
	Set(zerolog.New(&buf))
	c := Component("equeue")
	c.Info().Msg("hello")
	assert.Contains(t, buf.String(), `"component":"equeue"`)
}
