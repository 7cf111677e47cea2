package log

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfoliotree/app/src/pkg/model"
)

func TestWriterLogger_LevelThreshold(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf, LevelInfo)

	ctx := context.Background()
	logger.Info(ctx, "kept", Fields{"portfolioID": 7})
	logger.Debug(ctx, "dropped", nil)
	logger.Error(ctx, "failed", Fields{"error": errors.New("boom")})
	require.NoError(t, logger.Close())

	out := buf.String()
	assert.Contains(t, out, `"msg":"kept"`)
	assert.Contains(t, out, `"portfolioID":7`)
	assert.Contains(t, out, `"error":"boom"`)
	assert.NotContains(t, out, "dropped")
}

func TestLogger_AfterCloseDoesNotBlock(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf, LevelDebug)
	require.NoError(t, logger.Close())
	require.NoError(t, logger.Close())

	for i := 0; i < 500; i++ {
		logger.Info(context.Background(), "late", nil)
	}
	assert.NotContains(t, buf.String(), "late")
}

func TestNewLogger_RoutesToFiles(t *testing.T) {
	dir := t.TempDir()
	cfg := &model.Config{LogFolder: dir, CommandLog: "commands.log", ErrorLog: "errors.log", InfoLog: "info.log"}

	logger, err := NewLogger(cfg, LevelInfo)
	require.NoError(t, err)
	logger.Command(context.Background(), "GET /api/me", nil)
	logger.Error(context.Background(), "bad", nil)
	logger.Info(context.Background(), "hello", nil)
	require.NoError(t, logger.Close())

	read := func(name string) string {
		data, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err)
		return string(data)
	}
	assert.True(t, strings.Contains(read("commands.log"), "GET /api/me"))
	assert.True(t, strings.Contains(read("errors.log"), "bad"))
	assert.True(t, strings.Contains(read("info.log"), "hello"))
	assert.NotContains(t, read("info.log"), "bad")
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("DEBUG")
	require.NoError(t, err)
	assert.Equal(t, LevelDebug, level)

	level, err = ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, LevelInfo, level)

	_, err = ParseLevel("verbose")
	assert.Error(t, err)
}
