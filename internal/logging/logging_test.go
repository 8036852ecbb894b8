package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLogger_FiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelWarn)
	l.Info().Msg("should not appear")
	require.Empty(t, buf.Bytes())

	l.Warn().Str("topic", "foo").Int("count", 3).Msg("evicted subscriber")
	require.NotEmpty(t, buf.Bytes())

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Equal(t, "warn", decoded["level"])
	require.Equal(t, "evicted subscriber", decoded["msg"])
	require.Equal(t, "foo", decoded["topic"])
	require.Equal(t, float64(3), decoded["count"])
}

func TestLogger_With(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelDebug).With("component", "busd")
	l.Debug().Msg("starting")

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Equal(t, "busd", decoded["component"])
}
