package util

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, ParseLevel("warning"))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("verbose"))
}

func TestNewLoggerWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "dashboard.log")
	logger, err := NewLogger("debug", path)
	require.NoError(t, err)
	logger.Info("hello")
	_ = logger.Sync()
	assert.FileExists(t, path)
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "short", TruncateString("short", 10))
	assert.Equal(t, "배터리...", TruncateString("배터리 수명", 3))
}

func TestSafeFilename(t *testing.T) {
	assert.Equal(t, "reviews.csv", SafeFilename("../../etc/reviews.csv"))
	assert.Equal(t, "my_reviews.csv", SafeFilename(`C:\Users\me\my reviews.csv`))
	assert.Equal(t, "upload.csv", SafeFilename(".."))
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "10MB", FormatSize(10<<20))
	assert.Equal(t, "1.5KB", FormatSize(1536))
	assert.Equal(t, "512B", FormatSize(512))
	assert.Equal(t, "2GB", FormatSize(2<<30))
}

func TestCircuitBreakerOpensAndRecovers(t *testing.T) {
	cb := NewCircuitBreaker("gemini", 2, time.Minute, zap.NewNop())
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	cb.now = func() time.Time { return now }

	cb.RecordFailure()
	assert.True(t, cb.CanExecute())
	cb.RecordFailure()
	assert.False(t, cb.CanExecute())
	require.NotNil(t, cb.Status().NextRetryTime)

	now = now.Add(time.Minute)
	assert.Equal(t, CircuitStateHalfOpen, cb.State())

	cb.RecordFailure()
	assert.Equal(t, CircuitStateOpen, cb.State())

	now = now.Add(time.Minute)
	assert.True(t, cb.CanExecute())
	cb.RecordSuccess()
	assert.Equal(t, CircuitStateClosed, cb.State())
	assert.Zero(t, cb.Status().FailureCount)
}
