package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogger_Disabled(t *testing.T) {
	var buf bytes.Buffer

	log := New().WithWriter(&buf)

	log.Info("hello", nil)

	assert.Empty(t, buf.String(), "root logger is disabled until configured")
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer

	log := New().
		WithConfig(ConfigMap{"": LevelWarn}).
		WithWriter(&buf).
		WithNamespaceAppended("server")

	log.Info("not written", nil)
	assert.Empty(t, buf.String())

	log.Warn("written", nil)
	assert.Contains(t, buf.String(), "written")
}

func TestLogger_NamespaceAppended(t *testing.T) {
	log := New().
		WithNamespaceAppended("server").
		WithNamespaceAppended("client")

	assert.Equal(t, "server:client", log.Namespace())
}

func TestLogger_ConfigFallback(t *testing.T) {
	config := ConfigMap{
		"":           LevelInfo,
		"client":     LevelTrace,
		"server:tcp": LevelError,
	}

	assert.Equal(t, LevelError, config.LevelForNamespace("server:tcp"), "exact match wins")
	assert.Equal(t, LevelTrace, config.LevelForNamespace("server:client"), "last segment match")
	assert.Equal(t, LevelInfo, config.LevelForNamespace("server:udpmux"), "root fallback")
}

func TestLogger_Ctx(t *testing.T) {
	var buf bytes.Buffer

	log := New().
		WithConfig(ConfigMap{"": LevelInfo}).
		WithWriter(&buf).
		WithCtx(Ctx{"client_id": "abc"})

	log.Info("message", Ctx{"room": "lobby"})

	line := buf.String()
	assert.Contains(t, line, "client_id=abc")
	assert.Contains(t, line, "room=lobby")
	assert.Contains(t, line, "message")
}

func TestLogger_CtxMergeDoesNotMutate(t *testing.T) {
	base := Ctx{"a": 1}
	merged := base.WithCtx(Ctx{"b": 2})

	assert.Len(t, base, 1)
	assert.Len(t, merged, 2)
}

func TestNewConfigFromString(t *testing.T) {
	config := NewConfigFromString("server:debug,udpmux:trace,room")

	assert.Equal(t, LevelDebug, config.LevelForNamespace("server"))
	assert.Equal(t, LevelTrace, config.LevelForNamespace("udpmux"))
	assert.Equal(t, LevelInfo, config.LevelForNamespace("room"), "bare namespace defaults to info")
	assert.Equal(t, LevelDisabled, config.LevelForNamespace("other"))

	assert.Nil(t, NewConfigFromString(""))
}

func TestLevelFromString(t *testing.T) {
	level, ok := LevelFromString("warn")
	assert.True(t, ok)
	assert.Equal(t, LevelWarn, level)

	_, ok = LevelFromString("bogus")
	assert.False(t, ok)
}
