package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockPinger is a Pinger returning a fixed error.
type mockPinger struct {
	pingErr error
}

func (m *mockPinger) Ping(ctx context.Context) error {
	return m.pingErr
}

// setupHealthRouter registers the health routes on a bare router.
func setupHealthRouter(handler *HealthHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/health", handler.Health)
	router.GET("/health/ready", handler.Ready)
	router.GET("/api/v1/info", handler.Info)
	return router
}

func TestHealthHandler_Health(t *testing.T) {
	handler := NewHealthHandler(&mockPinger{}, "test", "memory")
	router := setupHealthRouter(handler)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var response HealthResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, HealthResponse{Status: "healthy"}, response)
}

func TestHealthHandler_Ready(t *testing.T) {
	tests := []struct {
		name           string
		pingErr        error
		expectedStatus int
		expectedBody   ReadyResponse
	}{
		{
			name:           "returns 200 when store is reachable",
			expectedStatus: http.StatusOK,
			expectedBody:   ReadyResponse{Status: "ready", Store: "connected"},
		},
		{
			name:           "returns 503 when store ping fails",
			pingErr:        errors.New("connection refused"),
			expectedStatus: http.StatusServiceUnavailable,
			expectedBody:   ReadyResponse{Status: "not_ready", Store: "disconnected"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewHealthHandler(&mockPinger{pingErr: tt.pingErr}, "test", "postgres")
			router := setupHealthRouter(handler)

			req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			var response ReadyResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
			assert.Equal(t, tt.expectedBody, response)
		})
	}
}

func TestHealthHandler_Info(t *testing.T) {
	handler := NewHealthHandler(&mockPinger{}, "production", "postgres")
	handler.startTime = time.Now().Add(-1 * time.Hour)
	router := setupHealthRouter(handler)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/info", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var response InfoResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, APIVersion, response.Version)
	assert.Equal(t, "production", response.Environment)
	assert.Equal(t, "postgres", response.Store)
	assert.Contains(t, response.Uptime, "1h")
}

func TestFormatUptime(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		expected string
	}{
		{"zero duration", 0, "0h 0m 0s"},
		{"seconds only", 45 * time.Second, "0h 0m 45s"},
		{"hours minutes and seconds", 2*time.Hour + 30*time.Minute + 15*time.Second, "2h 30m 15s"},
		{"one day", 24 * time.Hour, "1d 0h 0m 0s"},
		{"multiple days", 3*24*time.Hour + 5*time.Hour + 10*time.Minute + 30*time.Second, "3d 5h 10m 30s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, formatUptime(tt.duration))
		})
	}
}
