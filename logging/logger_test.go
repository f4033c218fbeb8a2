package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(buf *bytes.Buffer) *PipelineLogger {
	return NewLogger(&LoggerConfig{
		Level:  LogLevelDebug,
		Format: "json",
		Output: buf,
	})
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	return line
}

func TestPipelineLogger_KeyValueArgsBecomeAttributes(t *testing.T) {
	var buf bytes.Buffer
	l := newBufferLogger(&buf)

	l.WithComponent("gateway").Warn("serving fallback response",
		"capability", "classify", "cause", "circuit open")

	line := decodeLine(t, &buf)
	assert.Equal(t, "serving fallback response", line["msg"])
	assert.Equal(t, "gateway", line["component"])
	assert.Equal(t, "classify", line["capability"])
	assert.Equal(t, "circuit open", line["cause"])
}

func TestPipelineLogger_TurnIdentifiersAttached(t *testing.T) {
	var buf bytes.Buffer
	l := newBufferLogger(&buf)

	l.WithTurn("conv-1", "task-9").Info("duplicate task, serving cached reply")

	line := decodeLine(t, &buf)
	assert.Equal(t, "conv-1", line["conversation_id"])
	assert.Equal(t, "task-9", line["task_id"])
}

func TestPipelineLogger_DanglingValueKeptUnderBadKey(t *testing.T) {
	var buf bytes.Buffer
	l := newBufferLogger(&buf)

	l.Info("odd args", "count", 3, "dangling")

	line := decodeLine(t, &buf)
	assert.Equal(t, float64(3), line["count"])
	assert.Equal(t, "dangling", line["!BADKEY"])
}

func TestPipelineLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&LoggerConfig{Level: LogLevelError, Format: "json", Output: &buf})

	l.Info("should be dropped")
	assert.Zero(t, buf.Len())

	l.Error("should be emitted")
	assert.NotZero(t, buf.Len())
}

func TestPipelineLogger_LogModelCall(t *testing.T) {
	var buf bytes.Buffer
	l := newBufferLogger(&buf)

	l.LogModelCall("classify", 120, 80*time.Millisecond, false, nil)

	line := decodeLine(t, &buf)
	assert.Equal(t, "Model call completed", line["msg"])
	assert.Equal(t, "classify", line["capability"])
	assert.Equal(t, float64(120), line["token_count"])
}

func TestPipelineLogger_LogDeliveryFailure(t *testing.T) {
	var buf bytes.Buffer
	l := newBufferLogger(&buf)

	l.LogDelivery("inbound", 5*time.Millisecond, 2, errors.New("handler failed"))

	line := decodeLine(t, &buf)
	assert.Equal(t, "Message delivery failed", line["msg"])
	assert.Equal(t, "inbound", line["topic"])
	assert.Equal(t, "handler failed", line["error"])
}
