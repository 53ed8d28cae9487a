package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

// mockHealthChecker is a mock implementation of HealthChecker for testing.
type mockHealthChecker struct {
	err error
}

func (m *mockHealthChecker) Ping(ctx context.Context) error {
	return m.err
}

func TestHealthHandler_Healthz(t *testing.T) {
	h := NewHealthHandler(nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	h.Healthz(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}

	var response HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if response.Status != "ok" {
		t.Errorf("expected status 'ok', got %s", response.Status)
	}
}

func TestHealthHandler_Readyz(t *testing.T) {
	tests := []struct {
		name       string
		store      HealthChecker
		cache      HealthChecker
		wantStatus int
		wantChecks map[string]string
	}{
		{
			name:       "all healthy",
			store:      &mockHealthChecker{},
			cache:      &mockHealthChecker{},
			wantStatus: http.StatusOK,
			wantChecks: map[string]string{"store": "ok", "redis": "ok"},
		},
		{
			name:       "redis is optional",
			store:      &mockHealthChecker{},
			cache:      nil,
			wantStatus: http.StatusOK,
			wantChecks: map[string]string{"store": "ok", "redis": "not configured"},
		},
		{
			name:       "store down",
			store:      &mockHealthChecker{err: errors.New("connection refused")},
			cache:      &mockHealthChecker{},
			wantStatus: http.StatusServiceUnavailable,
			wantChecks: map[string]string{"store": "error: connection refused", "redis": "ok"},
		},
		{
			name:       "configured redis down",
			store:      &mockHealthChecker{},
			cache:      &mockHealthChecker{err: errors.New("timeout")},
			wantStatus: http.StatusServiceUnavailable,
			wantChecks: map[string]string{"store": "ok", "redis": "error: timeout"},
		},
		{
			name:       "no store",
			store:      nil,
			cache:      nil,
			wantStatus: http.StatusServiceUnavailable,
			wantChecks: map[string]string{"store": "not configured", "redis": "not configured"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(tt.store, tt.cache)

			req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
			rec := httptest.NewRecorder()

			h.Readyz(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}

			var response HealthResponse
			if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}

			for name, want := range tt.wantChecks {
				if got := response.Checks[name]; got != want {
					t.Errorf("check %s = %q, want %q", name, got, want)
				}
			}
		})
	}
}
