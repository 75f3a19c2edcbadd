package log

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(zapcore.AddSync(&buf))
	t.Cleanup(func() {
		SetLevel(LevelInfo)
		SetOutput(zapcore.AddSync(&bytes.Buffer{}))
	})
	return &buf
}

func TestInfoWritesKeyValues(t *testing.T) {
	buf := captureOutput(t)
	SetLevel(LevelInfo)

	Info("import finished", "success", 4, "errors", 1)

	out := buf.String()
	assert.Contains(t, out, "import finished")
	assert.Contains(t, out, `"success": 4`)
	assert.Contains(t, out, `"errors": 1`)
}

func TestDebugFilteredAtInfo(t *testing.T) {
	buf := captureOutput(t)
	SetLevel(LevelInfo)

	Debug("noisy detail", "k", "v")
	assert.Empty(t, buf.String())

	SetLevel(LevelDebug)
	Debug("noisy detail", "k", "v")
	assert.Contains(t, buf.String(), "noisy detail")
}

func TestErrorIncludesErr(t *testing.T) {
	buf := captureOutput(t)
	SetLevel(LevelError)

	Info("dropped")
	Error("create failed", errors.New("boom"), "title", "Launch")

	out := buf.String()
	assert.NotContains(t, out, "dropped")
	assert.Contains(t, out, "create failed")
	assert.Contains(t, out, "boom")
	assert.Contains(t, out, "Launch")
}

func TestOddKeyValueDropped(t *testing.T) {
	buf := captureOutput(t)
	SetLevel(LevelInfo)

	Info("odd", "key", "value", "dangling")
	assert.Contains(t, buf.String(), `"key": "value"`)
	assert.NotContains(t, buf.String(), "dangling")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelError, ParseLevel(" ERROR "))
	assert.Equal(t, LevelInfo, ParseLevel("verbose"))
}
