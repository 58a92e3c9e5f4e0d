package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONLoggerHonoursLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("LOG_FORMAT", "")
	var buf bytes.Buffer
	log := New(Options{Level: "warn", Format: "json", Output: &buf})

	log.Info("dropped")
	log.WithError(errors.New("boom")).Warn("kept")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "kept", line["msg"])
	assert.Equal(t, "boom", line["error"])
	assert.Equal(t, "warning", line["level"])
}

func TestWithRequestUsesCallerRequestID(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("LOG_FORMAT", "json")
	var buf bytes.Buffer
	log := New(Options{Output: &buf})

	req := httptest.NewRequest("GET", "/api/audits", nil)
	req.Header.Set("X-Request-ID", "req-123")
	log.WithRequest(req).Info("handled")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "req-123", line["req_id"])
	assert.Equal(t, "/api/audits", line["path"])

	fresh := httptest.NewRequest("GET", "/", nil)
	assert.NotEmpty(t, RequestID(fresh))
}
