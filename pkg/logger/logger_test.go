package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func capture(t *testing.T, l Level) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(l)
	t.Cleanup(func() {
		SetLevel(LevelInfo)
		SetOutput(os.Stderr)
	})
	return &buf
}

func lines(buf *bytes.Buffer) []map[string]any {
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var rec map[string]any
		if err := json.Unmarshal([]byte(line), &rec); err == nil {
			out = append(out, rec)
		}
	}
	return out
}

func TestParseLevel(t *testing.T) {
	for raw, want := range map[string]Level{
		"trace":   LevelTrace,
		"DEBUG":   LevelDebug,
		"":        LevelInfo,
		" info ":  LevelInfo,
		"warning": LevelWarn,
		"error":   LevelError,
	} {
		got, err := ParseLevel(raw)
		require.NoError(t, err, raw)
		require.Equal(t, want, got, raw)
	}
	_, err := ParseLevel("loud")
	require.Error(t, err)
	require.Equal(t, "warn", LevelWarn.String())
	require.Equal(t, "level(9)", Level(9).String())
}

func TestLevelFiltering(t *testing.T) {
	buf := capture(t, LevelWarn)
	Infof("[kms] hidden %d", 1)
	Warnf("[kms] shown %d", 2)
	Errorf("[call] failed")

	recs := lines(buf)
	require.Len(t, recs, 2)
	require.Equal(t, "warn", recs[0]["level"])
	require.Equal(t, "[kms] shown 2", recs[0]["message"])
	require.Equal(t, "error", recs[1]["level"])

	require.False(t, Enabled(LevelInfo))
	require.True(t, Enabled(LevelError))
}

func TestTraceIsEmittedWhenEnabled(t *testing.T) {
	buf := capture(t, LevelTrace)
	Tracef("frame %s", "x")
	Debugf("debug")

	recs := lines(buf)
	require.Len(t, recs, 2)
	require.Equal(t, "trace", recs[0]["level"])
	require.Equal(t, "frame x", recs[0]["message"])
}
