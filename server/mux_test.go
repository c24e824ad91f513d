package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wireline/wireline/server/clock"
	"github.com/wireline/wireline/server/logger"
)

func newTestMux(accessToken string) *Mux {
	mock := clock.NewMock(time.Now())

	uptime := NewUptimeMonitor(mock)
	uptime.Start()
	mock.Add(3 * time.Second)

	return NewMux(MuxParams{
		Log:        logger.NewFromEnv("WIRELINE_LOG"),
		Prometheus: PrometheusConfig{AccessToken: accessToken},
		Uptime:     uptime,
		Version:    "v0.0.0-test",
	})
}

func TestMux_Liveness(t *testing.T) {
	mux := newTestMux("")

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/probes/liveness", nil))

	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))

	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "v0.0.0-test", body["version"])
	assert.Equal(t, float64(3), body["uptime_seconds"])
}

func TestMux_Health(t *testing.T) {
	mux := newTestMux("")

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/probes/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMux_Metrics(t *testing.T) {
	mux := newTestMux("sekrit")

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code, "no token")

	w = httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	r.Header.Set("Authorization", "Bearer wrong")
	mux.ServeHTTP(w, r)
	assert.Equal(t, http.StatusUnauthorized, w.Code, "wrong token")

	w = httptest.NewRecorder()
	r = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	r.Header.Set("Authorization", "Bearer sekrit")
	mux.ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Code, "bearer token")

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics?access_token=sekrit", nil))
	assert.Equal(t, http.StatusOK, w.Code, "query token")
}

func TestMux_MetricsDisabledWithoutToken(t *testing.T) {
	mux := newTestMux("")

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
