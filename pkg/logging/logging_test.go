package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/petrijr/stepflow/pkg/api"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, api.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, api.LevelWarn, ParseLevel(" WARN "))
	assert.Equal(t, api.LevelError, ParseLevel("error"))
	assert.Equal(t, api.LevelInfo, ParseLevel(""))
	assert.Equal(t, api.LevelInfo, ParseLevel("verbose"))
}

func TestSlogLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSlogLogger("info", &buf)

	logger.Log(context.Background(), api.LevelDebug, api.LogMessage{Message: "hidden"})
	logger.Log(context.Background(), api.LevelWarn, api.LogMessage{
		Type:            api.LogTypeStep,
		Message:         "Step s1 completed",
		WorkflowName:    "wf",
		DestinationPath: "workflows/wf",
		StepID:          "s1",
		RunID:           "run-1",
		Data:            map[string]any{"attempts": 2},
	})

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "Step s1 completed", entry["msg"])
	assert.Equal(t, "STEP", entry["type"])
	assert.Equal(t, "workflows/wf", entry["destination"])
	assert.Equal(t, "s1", entry["step_id"])
	assert.Equal(t, "run-1", entry["run_id"])
	assert.Equal(t, map[string]any{"attempts": float64(2)}, entry["data"])
}

func TestZapLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := NewZapLogger(zap.New(core))

	logger.Log(context.Background(), api.LevelDebug, api.LogMessage{Message: "hidden"})
	logger.Log(context.Background(), api.LevelError, api.LogMessage{
		Type:         api.LogTypeWorkflow,
		Message:      "Workflow failed",
		WorkflowName: "wf",
		RunID:        "run-2",
	})

	entries := logs.AllUntimed()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	assert.Equal(t, "Workflow failed", entries[0].Message)
	assert.Equal(t, "stepflow", entries[0].LoggerName)

	fields := entries[0].ContextMap()
	assert.Equal(t, "WORKFLOW", fields["type"])
	assert.Equal(t, "run-2", fields["run_id"])
	assert.NotContains(t, fields, "step_id")
}

func TestNewZap_WritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZap("debug", &buf)

	logger.Log(context.Background(), api.LevelDebug, api.LogMessage{Message: "hello", RunID: "r"})

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "hello", entry["msg"])
	assert.Equal(t, "debug", entry["level"])
	assert.Equal(t, "r", entry["run_id"])
}
