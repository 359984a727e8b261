package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitAndLevelString(t *testing.T) {
	defer Init("info")
	Init("debug")
	require.Equal(t, "debug", LevelString())
	Init("WARN")
	require.Equal(t, "warn", LevelString())
	Init("Error")
	require.Equal(t, "error", LevelString())
	Init("nonsense")
	require.Equal(t, "info", LevelString(), "unknown input falls back to info")
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	defer SetOutput(&buf)()
	defer Init("info")

	Init("warn")
	Debugf("debug-msg")
	Infof("info-msg")
	Warnf("warn-msg %d", 1)
	Errorf("error-msg")

	out := buf.String()
	require.NotContains(t, out, "debug-msg")
	require.NotContains(t, out, "info-msg")
	require.Contains(t, out, "[WARN] warn-msg 1")
	require.Contains(t, out, "[ERROR] error-msg")

	Init("debug")
	buf.Reset()
	Debugf("now visible")
	require.True(t, strings.Contains(buf.String(), "[DEBUG] now visible"))
}

func TestFields(t *testing.T) {
	require.Equal(t, " kind=article item=a1", Fields("kind", "article", "item", "a1"))
	require.Equal(t, ` reason="too short" version=3`, Fields("reason", "too short", "version", 3))
	require.Equal(t, ` from=""`, Fields("from", ""))
	require.Equal(t, " orphan=(missing)", Fields("orphan"))
	require.Equal(t, "", Fields())
}

func TestStructuredAndWriter(t *testing.T) {
	var buf bytes.Buffer
	defer SetOutput(&buf)()
	defer Init("info")
	Init("info")

	Debugw("hidden", "k", "v")
	Warnw("hook failed", "item", "a1", "err", "boom")
	_, err := Writer(LevelInfo).Write([]byte("GET /api/v1/content/article 200\n"))
	require.NoError(t, err)
	_, err = Writer(LevelDebug).Write([]byte("dropped\n"))
	require.NoError(t, err)

	out := buf.String()
	require.NotContains(t, out, "hidden")
	require.NotContains(t, out, "dropped")
	require.Contains(t, out, "[WARN] hook failed item=a1 err=boom")
	require.Contains(t, out, "[INFO] GET /api/v1/content/article 200\n")
}
