package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warn"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("whatever"))
}

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer

	log := New("info", "json", &buf).With("upload_id", "abc")
	log.Info("processed", "records", 3)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "processed", line["msg"])
	assert.Equal(t, "abc", line["upload_id"])
	assert.EqualValues(t, 3, line["records"])
}

func TestSetLevel_AppliesToChildren(t *testing.T) {
	var buf bytes.Buffer

	log := New("info", "text", &buf)
	child := log.With("component", "test")

	child.Debug("hidden")
	assert.Empty(t, buf.String())

	log.SetLevel("debug")
	child.Debug("shown")
	assert.True(t, strings.Contains(buf.String(), "shown"))
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer

	fallback := Discard()
	scoped := New("info", "json", &buf).With("upload_id", "abc")

	assert.Same(t, fallback, FromContext(context.Background(), fallback))

	ctx := WithContext(context.Background(), scoped)
	FromContext(ctx, fallback).Info("hello")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "abc", line["upload_id"])
	assert.Equal(t, "hello", line["msg"])
}
