package logger

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogger(t *testing.T) {
	t.Run("Should write structured fields to the configured output", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewLogger(&Config{Level: DebugLevel, Output: &buf})
		log.Info("execution finished", "backend", "vm")
		assert.Contains(t, buf.String(), "execution finished")
		assert.Contains(t, buf.String(), "backend")
	})
	t.Run("Should suppress entries below the configured level", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewLogger(&Config{Level: ErrorLevel, Output: &buf})
		log.Info("hidden")
		assert.Empty(t, buf.String())
	})
	t.Run("Should carry With fields into child loggers", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewLogger(&Config{Level: InfoLevel, Output: &buf}).With("execution_id", "abc")
		log.Info("step")
		assert.Contains(t, buf.String(), "abc")
	})
	t.Run("Should emit JSON when configured", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewLogger(&Config{Level: InfoLevel, Output: &buf, JSON: true})
		log.Info("hello")
		assert.Contains(t, buf.String(), `"msg":"hello"`)
	})
}

func TestContext(t *testing.T) {
	t.Run("Should round-trip a logger through context", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewLogger(&Config{Level: InfoLevel, Output: &buf})
		ctx := ContextWith(context.Background(), log)
		FromContext(ctx).Info("from ctx")
		assert.Contains(t, buf.String(), "from ctx")
	})
	t.Run("Should fall back to the default logger", func(t *testing.T) {
		assert.NotNil(t, FromContext(context.Background()))
		assert.NotNil(t, FromContext(nil)) //nolint:staticcheck
	})
}
