package shared

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/miniminder/internal/platform/logger"
)

func TestRespondWithJSON(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		data         any
		expectedBody string
	}{
		{
			name:         "object",
			status:       http.StatusOK,
			data:         map[string]any{"id": 1},
			expectedBody: `{"id":1}`,
		},
		{
			name:         "nil response",
			status:       http.StatusOK,
			data:         nil,
			expectedBody: `null`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			w := httptest.NewRecorder()

			RespondWithJSON(w, req, tc.status, tc.data)

			assert.Equal(t, tc.status, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			assert.JSONEq(t, tc.expectedBody, w.Body.String())
		})
	}
}

func TestRespondWithError_IncludesTraceID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req = req.WithContext(WithTraceID(req.Context(), "trace-1"))
	w := httptest.NewRecorder()

	RespondWithError(w, req, http.StatusBadRequest, "bad input")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, ErrorResponse{Error: "bad input", TraceID: "trace-1"}, body)
}

func TestRespondWithErrorAndLog(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantLevel string
	}{
		{"server error", http.StatusInternalServerError, "ERROR"},
		{"rate limited", http.StatusTooManyRequests, "WARN"},
		{"client error", http.StatusBadRequest, "DEBUG"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			log := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

			req := httptest.NewRequest(http.MethodPost, "/api/schedule", nil)
			req = req.WithContext(logger.WithLogger(req.Context(), log))
			w := httptest.NewRecorder()

			err := errors.New("insert failed: password=hunter2")
			RespondWithErrorAndLog(w, req, tc.status, "Something went wrong", err)

			assert.Equal(t, tc.status, w.Code)
			assert.NotContains(t, w.Body.String(), "insert failed", "internal error leaked to client")

			var entry map[string]any
			require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
			assert.Equal(t, tc.wantLevel, entry["level"])
			assert.Equal(t, "Something went wrong", entry["user_message"])
			assert.NotContains(t, buf.String(), "hunter2", "secret leaked to logs")
		})
	}
}
