package pullback

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newBufLogger() (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	log := NewLogger(slog.NewTextHandler(&buf, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	return log, &buf
}

func TestLoggerWithFields(t *testing.T) {
	log, buf := newBufLogger()
	log.WithDimension(2).WithSamples(100).WithRank(1).
		LogGenerate(context.Background(), 100, 2, nil)

	out := buf.String()
	assert.Contains(t, out, "sample generation completed")
	assert.Contains(t, out, "dimension=2")
	assert.Contains(t, out, "samples=100")
	assert.Contains(t, out, "rank=1")
}

func TestLoggerErrorPaths(t *testing.T) {
	log, buf := newBufLogger()
	log.WithIteration(3).LogUpdate(context.Background(), 3, errors.New("boom"))
	assert.Contains(t, buf.String(), "data-consistent update failed")
	assert.Contains(t, buf.String(), "error=boom")

	buf.Reset()
	log.LogCompare(context.Background(), 500, 0.25, nil)
	assert.Contains(t, buf.String(), "comparison completed")
	assert.Contains(t, buf.String(), "value=0.25")

	buf.Reset()
	log.LogVolumeEstimate(context.Background(), 10, 1000, errors.New("bad"))
	assert.Contains(t, buf.String(), "volume estimation failed")
}

func TestNoopLoggerDiscards(t *testing.T) {
	log := NoopLogger()
	assert.False(t, log.Enabled(context.Background(), slog.LevelError))
}
