package utils

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestErrorTaxonomy(t *testing.T) {
	in := NewInputError("INVALID_DATE", "malformed start date %q", "2024-13-01")
	assert.True(t, IsInputError(in))
	assert.False(t, IsDataUnavailable(in))
	assert.Equal(t, `[INPUT:INVALID_DATE] malformed start date "2024-13-01"`, in.Error())

	down := NewDataUnavailable(errors.New("dial tcp: connection refused"), ComponentStorage)
	wrapped := fmt.Errorf("simple transfers: %w", down)
	assert.True(t, IsDataUnavailable(wrapped))
	assert.True(t, IsRetryableError(wrapped))
	assert.Equal(t, "UPSTREAM_UNAVAILABLE", GetErrorCode(wrapped))
	assert.ErrorContains(t, errors.Unwrap(down), "connection refused")

	assert.Equal(t, ErrorTypeInternal, GetErrorType(errors.New("boom")))
	assert.Equal(t, "UNKNOWN", GetErrorCode(errors.New("boom")))
	assert.False(t, IsInputError(nil))
}

func TestIsRetryableError(t *testing.T) {
	assert.True(t, IsRetryableError(errors.New("i/o timeout")))
	assert.True(t, IsRetryableError(errors.New("read: Connection reset by peer")))
	assert.False(t, IsRetryableError(errors.New("permission denied")))
	assert.False(t, IsRetryableError(nil))

	// an explicit AppError decides for itself
	appErr := NewAppError(ErrorTypeCache, "CACHE_DOWN", "timeout talking to redis", ComponentCache)
	assert.False(t, IsRetryableError(appErr))
}

func TestLogErrorAddsStructuredFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := zap.New(core)

	err := NewAppError(ErrorTypeConfig, "NO_BROKERS", "no brokers", ComponentIngest).WithContext("topic", "axelar.gmp")
	LogError(log, err, "consumer not started", zap.String("feed", "message_events"))

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		fields := entries[0].ContextMap()
		assert.Equal(t, "CONFIG", fields["errorType"])
		assert.Equal(t, "NO_BROKERS", fields["errorCode"])
		assert.Equal(t, "axelar.gmp", fields["topic"])
		assert.Equal(t, "message_events", fields["feed"])
		assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	}
}
