package logger

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, zapcore.WarnLevel, ParseLevel("warn"))
	assert.Equal(t, zapcore.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("info"))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("verbose"))
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cluster.log")
	log := New(&Config{Level: "debug", Format: "json", Output: "file", FilePath: path, MaxSize: 1})

	log.Debug("写入文件", zap.Int("tasks", 3))
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"tasks":3`)
	assert.Contains(t, string(data), "写入文件")
}

func TestNew_DefaultConfig(t *testing.T) {
	log := New(nil)
	require.NotNil(t, log)
	assert.False(t, log.Core().Enabled(zapcore.DebugLevel))
	assert.True(t, log.Core().Enabled(zapcore.InfoLevel))
}

func TestWatermillAdapter(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	var adapter watermill.LoggerAdapter = NewWatermillAdapter(zap.New(core))

	adapter = adapter.With(watermill.LogFields{"topic": "cluster.completed"})
	adapter.Info("已发布", watermill.LogFields{"uuid": "abc"})
	adapter.Trace("跟踪", nil)
	adapter.Error("失败", errors.New("boom"), nil)

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, "cluster.completed", entries[0].ContextMap()["topic"])
	assert.Equal(t, "abc", entries[0].ContextMap()["uuid"])
	assert.Equal(t, zapcore.DebugLevel, entries[1].Level)
	assert.Equal(t, "boom", entries[2].ContextMap()["error"])
}
