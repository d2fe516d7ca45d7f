package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDebugError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *DebugError
		expected string
	}{
		{
			name:     "message only",
			err:      &DebugError{Message: "boom"},
			expected: "boom",
		},
		{
			name:     "code and component",
			err:      NewConfigError("ERR_PORT", "bad port").WithComponent("config"),
			expected: "[ERR_PORT] component:config bad port",
		},
		{
			name:     "with cause",
			err:      NewIOError("ERR_WRITE", "write roles", errors.New("disk full")),
			expected: "[ERR_WRITE] write roles: disk full",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestDebugError_IsAndUnwrap(t *testing.T) {
	cause := errors.New("underlying")
	err := NewInternalError("ERR_RENDER", "render failed", cause)
	wrapped := fmt.Errorf("shutdown: %w", err)

	assert.True(t, errors.Is(wrapped, cause))
	assert.True(t, errors.Is(wrapped, &DebugError{Type: ErrorTypeInternal, Code: "ERR_RENDER"}))
	assert.False(t, errors.Is(wrapped, &DebugError{Type: ErrorTypeIO, Code: "ERR_RENDER"}))
	assert.True(t, IsType(wrapped, ErrorTypeInternal))
	assert.False(t, IsType(cause, ErrorTypeInternal))
}

func TestDebugError_WithContext(t *testing.T) {
	err := NewValidationError("ERR_FLAG", "unknown flag").WithContext("flag", "KB_NOPE")

	assert.Equal(t, "KB_NOPE", err.Context["flag"])
}

type recordingLogger struct {
	level  string
	msg    string
	fields []interface{}
}

func (r *recordingLogger) Error(_ context.Context, _ error, msg string, fields ...interface{}) {
	r.level, r.msg, r.fields = "error", msg, fields
}

func (r *recordingLogger) Warn(_ context.Context, _ error, msg string, fields ...interface{}) {
	r.level, r.msg, r.fields = "warn", msg, fields
}

func TestReport(t *testing.T) {
	t.Run("config errors are warnings", func(t *testing.T) {
		logger := &recordingLogger{}
		Report(context.Background(), logger, NewConfigError("ERR_X", "bad"))

		assert.Equal(t, "warn", logger.level)
		assert.Equal(t, "bad", logger.msg)
		assert.Contains(t, logger.fields, "ERR_X")
	})

	t.Run("io errors are errors", func(t *testing.T) {
		logger := &recordingLogger{}
		Report(context.Background(), logger, NewIOError("ERR_Y", "write", nil).WithComponent("roles"))

		assert.Equal(t, "error", logger.level)
		assert.Contains(t, logger.fields, "roles")
	})

	t.Run("plain errors", func(t *testing.T) {
		logger := &recordingLogger{}
		Report(context.Background(), logger, errors.New("plain"))

		assert.Equal(t, "error", logger.level)
		assert.Equal(t, "Unexpected error", logger.msg)
	})

	t.Run("nil error is ignored", func(t *testing.T) {
		logger := &recordingLogger{}
		Report(context.Background(), logger, nil)

		assert.Empty(t, logger.level)
	})
}
