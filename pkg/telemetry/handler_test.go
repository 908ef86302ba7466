package telemetry

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler(t *testing.T) (*ParquetHandler, string) {
	t.Helper()
	dir := t.TempDir()
	next := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug})
	h, err := NewParquetHandler(next, dir)
	require.NoError(t, err)
	return h, dir
}

func parquetFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var files []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".parquet") {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	return files
}

func TestHandlerBuffersOnlyErrors(t *testing.T) {
	h, dir := newTestHandler(t)
	logger := slog.New(h)

	logger.Info("routine read")
	logger.Warn("slow query")
	logger.Error("write failed", "entity", "alice")

	require.NoError(t, h.Flush())

	files := parquetFiles(t, dir)
	require.Len(t, files, 1)

	rows, err := parquet.ReadFile[LogRecord](files[0])
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "write failed", rows[0].Message)
	assert.Equal(t, "ERROR", rows[0].Level)
	assert.NotEmpty(t, rows[0].ID)
	assert.Contains(t, rows[0].Attributes, `"entity":"alice"`)
}

func TestHandlerCapturesContextKeys(t *testing.T) {
	h, dir := newTestHandler(t)
	logger := slog.New(h)

	ctx := context.WithValue(context.Background(), ContextKeySessionID, "session-7")
	ctx = context.WithValue(ctx, ContextKeyActor, "agent-1")
	logger.ErrorContext(ctx, "relation write failed")

	require.NoError(t, h.Flush())

	files := parquetFiles(t, dir)
	require.Len(t, files, 1)
	rows, err := parquet.ReadFile[LogRecord](files[0])
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "session-7", rows[0].SessionID)
	assert.Equal(t, "agent-1", rows[0].Actor)
}

func TestHandlerFlushEmptyBuffer(t *testing.T) {
	h, dir := newTestHandler(t)
	require.NoError(t, h.Flush())
	assert.Empty(t, parquetFiles(t, dir))
}

func TestHandlerWithAttrsStillForwards(t *testing.T) {
	h, dir := newTestHandler(t)
	child := h.WithAttrs([]slog.Attr{slog.String("component", "store")})
	logger := slog.New(child)

	logger.Error("index update failed")
	require.NoError(t, child.(*ParquetHandler).Flush())

	files := parquetFiles(t, dir)
	require.Len(t, files, 1)
}
