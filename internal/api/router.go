package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/wonny/equitysim/pkg/logger"
)

// NewRouter creates and configures the HTTP router. limiter may be nil.
// ⭐ SSOT: 라우팅 설정은 이 함수에서만
func NewRouter(handler *Handler, hub *Hub, limiter Limiter, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthCheckHandler).Methods("GET")

	// Runs
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/runs/latest", handler.GetLatestRun).Methods("GET")
	api.HandleFunc("/runs/latest/portfolio", handler.GetPortfolio).Methods("GET")
	api.HandleFunc("/runs/latest/snapshots", handler.GetSnapshots).Methods("GET")
	api.HandleFunc("/runs/latest/audit", handler.GetAudit).Methods("GET")
	api.HandleFunc("/runs/latest/risk", handler.GetRisk).Methods("GET")

	// Audit stream
	if hub != nil {
		r.HandleFunc("/ws/audit", hub.ServeWS).Methods("GET")
	}

	// Apply middleware
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))
	if limiter != nil {
		r.Use(rateLimitMiddleware(limiter, log))
	}

	return r
}
