package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    zapcore.Level
		wantErr bool
	}{
		{"debug", zapcore.DebugLevel, false},
		{"INFO", zapcore.InfoLevel, false},
		{"", zapcore.InfoLevel, false},
		{"warning", zapcore.WarnLevel, false},
		{"error", zapcore.ErrorLevel, false},
		{"loud", zapcore.InfoLevel, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(Config{Level: "chatty"})
	assert.Error(t, err)
}

func TestNewBuildsLogger(t *testing.T) {
	l, err := New(Config{Level: "debug", OutputPaths: []string{t.TempDir() + "/log.jsonl"}})
	require.NoError(t, err)
	l.Info("hello", String("k", "v"))
	_ = l.Sync()
}

func TestWithAndRoundFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := FromZap(zap.New(core)).With(String("session_id", "s1"))

	l.Info("round started", Round(2, 1), Float64("mAP50", 0.4))

	entries := logs.All()
	require.Len(t, entries, 1)
	ctx := entries[0].ContextMap()
	assert.Equal(t, "s1", ctx["session_id"])
	assert.Equal(t, map[string]any{"index": 2, "attempt": 1}, ctx["round"])
	assert.Equal(t, 0.4, ctx["mAP50"])
}

func TestContextRoundTrip(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	l := FromZap(zap.New(core))

	ctx := WithContext(context.Background(), l)
	FromContext(ctx).Info("from context")
	assert.Equal(t, 1, logs.Len())

	// Missing logger falls back to a no-op.
	FromContext(context.Background()).Info("dropped")
	assert.Equal(t, 1, logs.Len())
}
