package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/benvon/assistant-chat/internal/middleware"
	"github.com/benvon/assistant-chat/internal/models"
	"github.com/benvon/assistant-chat/internal/services/ai"
	"github.com/benvon/assistant-chat/internal/services/chat"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	ts, ok := body["timestamp"].(string)
	if !ok {
		t.Fatal("timestamp missing")
	}
	if _, err := time.Parse(time.RFC3339, ts); err != nil {
		t.Errorf("timestamp %q is not RFC3339: %v", ts, err)
	}
	return body
}

func TestRespondJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		status   int
		data     any
		wantData any
	}{
		{name: "object", status: http.StatusOK, data: map[string]string{"title": "hello"}, wantData: map[string]any{"title": "hello"}},
		{name: "nil data", status: http.StatusCreated, data: nil, wantData: nil},
		{name: "array", status: http.StatusOK, data: []string{"a", "b"}, wantData: []any{"a", "b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			w := httptest.NewRecorder()
			respondJSON(w, tt.status, tt.data)

			if w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
			body := decodeEnvelope(t, w)
			if body["success"] != true {
				t.Errorf("success = %v, want true", body["success"])
			}
			got, _ := json.Marshal(body["data"])
			want, _ := json.Marshal(tt.wantData)
			if !bytes.Equal(got, want) {
				t.Errorf("data = %s, want %s", got, want)
			}
		})
	}
}

func TestRespondJSONError(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("x", 300)
	tests := []struct {
		name        string
		message     string
		wantMessage string
	}{
		{name: "short message", message: "Invalid input", wantMessage: "Invalid input"},
		{name: "long message truncated", message: long, wantMessage: long[:200] + "..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			w := httptest.NewRecorder()
			respondJSONError(w, http.StatusBadRequest, "Bad Request", tt.message)

			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
			body := decodeEnvelope(t, w)
			if body["success"] != false || body["error"] != "Bad Request" {
				t.Errorf("unexpected envelope: %v", body)
			}
			if body["message"] != tt.wantMessage {
				t.Errorf("message = %v, want %q", body["message"], tt.wantMessage)
			}
		})
	}
}

func TestPathUUID(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	tests := []struct {
		name   string
		value  string
		wantOK bool
	}{
		{name: "valid", value: id.String(), wantOK: true},
		{name: "garbage", value: "not-a-uuid", wantOK: false},
		{name: "empty", value: "", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/", nil), map[string]string{"id": tt.value})
			w := httptest.NewRecorder()

			got, ok := pathUUID(w, r, "id")
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && got != id {
				t.Errorf("id = %s, want %s", got, id)
			}
			if !ok && w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}
}

func TestDecodeAndValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		body      string
		wantOK    bool
		wantError string
	}{
		{name: "valid", body: `{"content":"hello"}`, wantOK: true},
		{name: "malformed", body: `{"content":`, wantError: "Bad Request"},
		{name: "missing content", body: `{}`, wantError: "Validation Error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			w := httptest.NewRecorder()

			var req SendMessageRequest
			ok := decodeAndValidate(w, r, &req)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok {
				return
			}
			body := decodeEnvelope(t, w)
			if body["error"] != tt.wantError {
				t.Errorf("error = %v, want %q", body["error"], tt.wantError)
			}
		})
	}
}

func TestRequireUser(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	if requireUser(w, httptest.NewRequest(http.MethodGet, "/", nil)) != nil {
		t.Fatal("expected nil user without auth context")
	}
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}

	user := &models.User{ID: uuid.New()}
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r = r.WithContext(middleware.SetUserInContext(r.Context(), user))
	if got := requireUser(httptest.NewRecorder(), r); got == nil || got.ID != user.ID {
		t.Errorf("requireUser = %v, want %s", got, user.ID)
	}
}

func TestRespondServiceError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "not found", err: fmt.Errorf("conversation x: %w", chat.ErrNotFound), want: http.StatusNotFound},
		{name: "invalid operation", err: chat.ErrInvalidOperation, want: http.StatusConflict},
		{name: "empty content", err: chat.ErrEmptyContent, want: http.StatusBadRequest},
		{name: "provider", err: &chat.ProviderError{Err: errors.New("boom")}, want: http.StatusBadGateway},
		{name: "provider rate limited", err: &chat.ProviderError{Err: &ai.APIError{StatusCode: 429, RetryAfter: 20 * time.Second}}, want: http.StatusTooManyRequests},
		{name: "provider quota", err: &chat.ProviderError{Err: &ai.APIError{StatusCode: 429, Code: "insufficient_quota"}}, want: http.StatusServiceUnavailable},
		{name: "other", err: errors.New("disk full"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			w := httptest.NewRecorder()
			respondServiceError(w, tt.err)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestHealthCheck(t *testing.T) {
	t.Parallel()

	h := NewHealthChecker(map[string]CheckFunc{
		"database": func(context.Context) error { return nil },
		"rabbitmq": func(context.Context) error { return errors.New("connection refused") },
	})

	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantChecks int
	}{
		{name: "basic", wantStatus: http.StatusOK},
		{name: "extended", query: "?mode=extended", wantStatus: http.StatusServiceUnavailable, wantChecks: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			w := httptest.NewRecorder()
			h.HealthCheck(w, httptest.NewRequest("GET", "/healthz"+tt.query, nil))

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			var resp HealthResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if len(resp.Checks) != tt.wantChecks {
				t.Errorf("checks = %v", resp.Checks)
			}
			if tt.wantChecks > 0 && resp.Checks["database"] != "healthy" {
				t.Errorf("database check = %q", resp.Checks["database"])
			}
		})
	}
}

func newTestRequest(method, path string, body any) *http.Request {
	var payload []byte
	if body != nil {
		payload, _ = json.Marshal(body)
	}
	return httptest.NewRequest(method, path, bytes.NewReader(payload))
}
