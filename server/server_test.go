package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	replypipe "github.com/replypipe/replypipe"
	"github.com/replypipe/replypipe/core"
	"github.com/replypipe/replypipe/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	pipe := replypipe.New(func(o *replypipe.Options) {
		o.Logger = logging.NewLogger(&logging.LoggerConfig{
			Level:  logging.LogLevelError,
			Format: "json",
			Output: io.Discard,
		})
	})
	t.Cleanup(pipe.Close)
	return New(pipe)
}

func postJSON(t *testing.T, s *Server, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	rec := httptest.NewRecorder()
	s.http.Handler.ServeHTTP(rec, req)
	return rec
}

func TestMessages_SyncTurn(t *testing.T) {
	s := newTestServer(t)

	rec := postJSON(t, s, "/v1/messages", core.Envelope{
		ConversationID: "conv-1",
		Content:        core.Content{Text: "I need to return order #10125"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var out core.Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.NotNil(t, out.Metadata)
	assert.Equal(t, "RETURN_REQUEST", out.Metadata.Intent)
	assert.False(t, out.Metadata.Escalated)
	assert.Contains(t, out.Content.Text, "RMA-")
}

func TestMessages_RejectsEmptyText(t *testing.T) {
	s := newTestServer(t)

	rec := postJSON(t, s, "/v1/messages", core.Envelope{ConversationID: "conv-1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMessages_AsyncAccepted(t *testing.T) {
	s := newTestServer(t)

	rec := postJSON(t, s, "/v1/messages/async", core.Envelope{
		ConversationID: "conv-1",
		Content:        core.Content{Text: "where is my order #10125?"},
	})
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.http.Handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStatus_ExposesCircuitAndPool(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	s.http.Handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var st map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, "closed", st["circuit_state"])
	assert.EqualValues(t, 8, st["pool_available"])
}
