package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wireline/wireline/server/logger"
)

type MuxParams struct {
	Log        *logger.Logger
	Prometheus PrometheusConfig
	Uptime     *UptimeMonitor
	WSHandler  http.Handler
	Version    string
}

// Mux is the HTTP surface: liveness and health probes, the metrics
// endpoint, and the WebSocket upgrade endpoint when that transport is
// configured.
type Mux struct {
	*chi.Mux
}

func NewMux(params MuxParams) *Mux {
	router := chi.NewRouter()

	router.Route("/probes", func(r chi.Router) {
		r.Get("/liveness", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")

			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"status":         "ok",
				"version":        params.Version,
				"uptime_seconds": int64(params.Uptime.Uptime().Seconds()),
			})
		})

		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
	})

	router.Handle("/metrics", metricsGuard(params.Prometheus.AccessToken, promhttp.Handler()))

	if params.WSHandler != nil {
		router.Handle("/ws/*", params.WSHandler)
		router.Handle("/ws", params.WSHandler)
	}

	return &Mux{Mux: router}
}

// metricsGuard requires the configured access token either as a bearer
// token or an access_token query parameter.
func metricsGuard(accessToken string, h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if accessToken == "" {
			w.WriteHeader(http.StatusUnauthorized)

			return
		}

		bearer := r.Header.Get("Authorization")
		token := r.URL.Query().Get("access_token")

		if bearer != "Bearer "+accessToken && token != accessToken {
			w.WriteHeader(http.StatusUnauthorized)

			return
		}

		h.ServeHTTP(w, r)
	})
}
