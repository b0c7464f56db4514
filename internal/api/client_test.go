package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// TestNewClient tests client construction with various options.
func TestNewClient(t *testing.T) {
	t.Run("default values", func(t *testing.T) {
		c := NewClient("http://localhost:8123/", "test-token")

		if c.baseURL != "http://localhost:8123" {
			t.Errorf("baseURL = %q, want %q", c.baseURL, "http://localhost:8123")
		}
		if c.token != "test-token" {
			t.Errorf("token = %q, want %q", c.token, "test-token")
		}
		if c.httpClient.Timeout != 10*time.Second {
			t.Errorf("Timeout = %v, want %v", c.httpClient.Timeout, 10*time.Second)
		}
		if c.maxRetries != 2 {
			t.Errorf("maxRetries = %d, want %d", c.maxRetries, 2)
		}
		if c.logger == nil {
			t.Error("logger should not be nil")
		}
	})

	t.Run("with multiple options", func(t *testing.T) {
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		customClient := &http.Client{Timeout: 3 * time.Second}
		c := NewClient("http://localhost:8123", "token",
			WithHTTPClient(customClient),
			WithTimeout(15*time.Second),
			WithRetries(5, 50*time.Millisecond),
			WithLogger(logger),
		)
		if c.httpClient != customClient {
			t.Error("custom HTTP client not set")
		}
		if c.httpClient.Timeout != 15*time.Second {
			t.Errorf("Timeout = %v, want %v", c.httpClient.Timeout, 15*time.Second)
		}
		if c.maxRetries != 5 {
			t.Errorf("maxRetries = %d, want %d", c.maxRetries, 5)
		}
		if c.retryBackoff != 50*time.Millisecond {
			t.Errorf("retryBackoff = %v, want %v", c.retryBackoff, 50*time.Millisecond)
		}
		if c.logger != logger {
			t.Error("logger not set correctly")
		}
	})
}

// TestAPIError tests the APIError type.
func TestAPIError(t *testing.T) {
	t.Run("Error method", func(t *testing.T) {
		err := &APIError{StatusCode: 401, Message: "Unauthorized"}
		expected := "home assistant api error 401: Unauthorized"
		if err.Error() != expected {
			t.Errorf("Error() = %q, want %q", err.Error(), expected)
		}
	})

	t.Run("IsRetryable", func(t *testing.T) {
		tests := []struct {
			code     int
			expected bool
		}{
			{500, true},
			{502, true},
			{503, true},
			{429, true},
			{400, false},
			{401, false},
			{404, false},
		}

		for _, tt := range tests {
			err := &APIError{StatusCode: tt.code}
			if got := err.IsRetryable(); got != tt.expected {
				t.Errorf("IsRetryable() for status %d = %v, want %v", tt.code, got, tt.expected)
			}
		}
	})

	t.Run("IsUnauthorized", func(t *testing.T) {
		if !(&APIError{StatusCode: 401}).IsUnauthorized() {
			t.Error("401 should be unauthorized")
		}
		if (&APIError{StatusCode: 500}).IsUnauthorized() {
			t.Error("500 should not be unauthorized")
		}
	})
}

// TestDoRequest tests the HTTP request functionality.
func TestDoRequest(t *testing.T) {
	t.Run("sends bearer token and json headers", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer test-token" {
				t.Errorf("Authorization header = %q, want %q", r.Header.Get("Authorization"), "Bearer test-token")
			}
			if r.Header.Get("Content-Type") != "application/json" {
				t.Errorf("Content-Type header = %q, want %q", r.Header.Get("Content-Type"), "application/json")
			}
			w.Write([]byte(`{"status": "ok"}`))
		}))
		defer server.Close()

		c := NewClient(server.URL, "test-token")
		body, err := c.doRequest(context.Background(), http.MethodGet, "/api", nil, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(body) != `{"status": "ok"}` {
			t.Errorf("body = %q, want %q", string(body), `{"status": "ok"}`)
		}
	})

	t.Run("sends json body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			data, _ := io.ReadAll(r.Body)
			var got map[string]any
			if err := json.Unmarshal(data, &got); err != nil {
				t.Errorf("body is not json: %v", err)
			}
			if got["entity_id"] != "light.kitchen" {
				t.Errorf("entity_id = %v, want light.kitchen", got["entity_id"])
			}
			w.Write([]byte(`[]`))
		}))
		defer server.Close()

		c := NewClient(server.URL, "token")
		_, err := c.doRequest(context.Background(), http.MethodPost, "/api/services/light/turn_on", nil,
			map[string]any{"entity_id": "light.kitchen"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("error body message is surfaced", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"message": "Unauthorized"}`))
		}))
		defer server.Close()

		c := NewClient(server.URL, "bad")
		_, err := c.doRequest(context.Background(), http.MethodGet, "/api", nil, nil)

		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("expected *APIError, got %T", err)
		}
		if apiErr.StatusCode != 401 {
			t.Errorf("StatusCode = %d, want %d", apiErr.StatusCode, 401)
		}
		if apiErr.Message != "Unauthorized" {
			t.Errorf("Message = %q, want %q", apiErr.Message, "Unauthorized")
		}
	})

	t.Run("unreachable host", func(t *testing.T) {
		c := NewClient("http://127.0.0.1:1", "token", WithTimeout(time.Second))
		_, err := c.doRequest(context.Background(), http.MethodGet, "/api", nil, nil)
		if err == nil {
			t.Fatal("expected error, got nil")
		}
		if !strings.Contains(err.Error(), "do request") {
			t.Errorf("error should contain 'do request', got %v", err)
		}
	})
}

// TestDoWithRetry tests the retry logic.
func TestDoWithRetry(t *testing.T) {
	t.Run("retries on 5xx and succeeds", func(t *testing.T) {
		var attempts int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			n := atomic.AddInt32(&attempts, 1)
			if n < 3 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			w.Write([]byte(`{"ok": true}`))
		}))
		defer server.Close()

		c := NewClient(server.URL, "token", WithRetries(3, 10*time.Millisecond))
		body, err := c.doWithRetry(context.Background(), http.MethodGet, "/api", nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(body) != `{"ok": true}` {
			t.Errorf("body = %q, want %q", string(body), `{"ok": true}`)
		}
		if attempts != 3 {
			t.Errorf("attempts = %d, want 3", attempts)
		}
	})

	t.Run("does not retry 401", func(t *testing.T) {
		var attempts int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&attempts, 1)
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer server.Close()

		c := NewClient(server.URL, "token", WithRetries(3, 10*time.Millisecond))
		_, err := c.doWithRetry(context.Background(), http.MethodGet, "/api", nil)
		if err == nil {
			t.Fatal("expected error, got nil")
		}
		if attempts != 1 {
			t.Errorf("attempts = %d, want 1", attempts)
		}
	})

	t.Run("max retries exceeded", func(t *testing.T) {
		var attempts int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&attempts, 1)
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		c := NewClient(server.URL, "token", WithRetries(2, 5*time.Millisecond))
		_, err := c.doWithRetry(context.Background(), http.MethodGet, "/api", nil)
		if err == nil {
			t.Fatal("expected error, got nil")
		}
		if !strings.Contains(err.Error(), "max retries exceeded") {
			t.Errorf("error should contain 'max retries exceeded', got %v", err)
		}
		if attempts != 3 {
			t.Errorf("attempts = %d, want 3", attempts)
		}
	})
}

func TestProbe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api" {
			t.Errorf("path = %q, want %q", r.URL.Path, "/api")
		}
		w.Write([]byte(`{"message": "API running.", "version": "2023.3.0"}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, "token")
	status, err := c.Probe(context.Background())
	if err != nil {
		t.Fatalf("Probe failed: %v", err)
	}
	if status.Message != "API running." {
		t.Errorf("Message = %q, want %q", status.Message, "API running.")
	}

	version, err := c.GetVersion(context.Background())
	if err != nil {
		t.Fatalf("GetVersion failed: %v", err)
	}
	if version != "2023.3.0" {
		t.Errorf("version = %q, want %q", version, "2023.3.0")
	}
}

func TestGetStates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/states":
			w.Write([]byte(`[
				{"entity_id": "light.living_room", "state": "off", "attributes": {"friendly_name": "Living Room Light"}},
				{"entity_id": "sun.sun", "state": "above_horizon", "attributes": {}}
			]`))
		case "/api/states/light.living_room":
			w.Write([]byte(`{"entity_id": "light.living_room", "state": "off", "attributes": {}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"message": "Entity not found"}`))
		}
	}))
	defer server.Close()

	c := NewClient(server.URL, "token", WithRetries(0, time.Millisecond))

	states, err := c.GetStates(context.Background())
	if err != nil {
		t.Fatalf("GetStates failed: %v", err)
	}
	if len(states) != 2 {
		t.Fatalf("len(states) = %d, want 2", len(states))
	}
	if states[0].FriendlyName() != "Living Room Light" {
		t.Errorf("FriendlyName() = %q, want %q", states[0].FriendlyName(), "Living Room Light")
	}
	if states[1].FriendlyName() != "sun.sun" {
		t.Errorf("FriendlyName() = %q, want fallback %q", states[1].FriendlyName(), "sun.sun")
	}
	if states[1].Domain() != "sun" {
		t.Errorf("Domain() = %q, want %q", states[1].Domain(), "sun")
	}

	state, err := c.GetState(context.Background(), "light.living_room")
	if err != nil {
		t.Fatalf("GetState failed: %v", err)
	}
	if state.State != "off" {
		t.Errorf("State = %q, want %q", state.State, "off")
	}

	_, err = c.GetState(context.Background(), "light.missing")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != 404 {
		t.Errorf("expected 404 APIError, got %v", err)
	}
}

func TestCallService(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/api/services/automation/trigger" {
			t.Errorf("path = %q, want %q", r.URL.Path, "/api/services/automation/trigger")
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := NewClient(server.URL, "token", WithRetries(3, time.Millisecond))
	_, err := c.CallService(context.Background(), "automation", "trigger", map[string]any{"entity_id": "automation.x"})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 (service calls are not retried)", attempts)
	}

	if _, err := c.CallService(context.Background(), "", "trigger", nil); err == nil {
		t.Error("expected error for empty domain")
	}
}

func TestCallService_EmptyBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := NewClient(server.URL, "token")
	resp, err := c.CallService(context.Background(), "automation", "toggle", nil)
	if err != nil {
		t.Fatalf("CallService failed: %v", err)
	}
	if string(resp) != "null" {
		t.Errorf("resp = %q, want %q", string(resp), "null")
	}
}
