package web

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/elys-network/stablevault/internal/harvester"
	"github.com/elys-network/stablevault/internal/logger"
	"github.com/elys-network/stablevault/internal/state"
	"github.com/elys-network/stablevault/internal/types"
	"github.com/elys-network/stablevault/internal/vault"
)

// HarvestService is the public face of the harvester.
type HarvestService interface {
	PublicHarvestAndSwap(ctx context.Context, rewardee, strategy string) (harvester.Result, error)
	RewardTokenConfigs() []types.RewardTokenConfig
	TargetAsset() string
}

// History serves recorded keeper cycles.
type History interface {
	RecentCycles(ctx context.Context, limit int) ([]types.CycleSnapshot, error)
	Cycle(ctx context.Context, cycleID string) (*types.CycleSnapshot, error)
	Summary(ctx context.Context) (*state.VaultSummary, error)
	IndexHistory(ctx context.Context, since time.Time) ([]state.IndexPoint, error)
	RecentEvents(ctx context.Context, eventType string, limit int) ([]state.StoredEvent, error)
	Healthy() error
}

// Config holds what the web server exposes. Only Vault is required.
type Config struct {
	Port      string
	Vault     vault.Manager
	Harvester HarvestService
	History   History
	Gatherer  prometheus.Gatherer
	Now       func() time.Time
}

// WebServer serves the vault's read API, the public harvest endpoint and metrics.
type WebServer struct {
	router    *mux.Router
	port      string
	logger    zerolog.Logger
	vault     vault.Manager
	harvester HarvestService
	history   History
	gatherer  prometheus.Gatherer
	now       func() time.Time
	server    *http.Server
}

// NewWebServer creates a new web server instance
func NewWebServer(cfg Config) *WebServer {
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	ws := &WebServer{
		router:    mux.NewRouter(),
		port:      cfg.Port,
		logger:    logger.GetForComponent("web_server"),
		vault:     cfg.Vault,
		harvester: cfg.Harvester,
		history:   cfg.History,
		gatherer:  cfg.Gatherer,
		now:       cfg.Now,
	}
	ws.setupRoutes()
	ws.server = &http.Server{
		Addr:         ":" + ws.port,
		Handler:      ws.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return ws
}

// setupRoutes configures all HTTP routes
func (ws *WebServer) setupRoutes() {
	ws.router.HandleFunc("/health", ws.handleHealth).Methods("GET")
	if ws.gatherer != nil {
		ws.router.Handle("/metrics", promhttp.HandlerFor(ws.gatherer, promhttp.HandlerOpts{})).Methods("GET")
	}

	api := ws.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", ws.handleHealth).Methods("GET")
	api.HandleFunc("/vault", ws.handleGetVault).Methods("GET")
	api.HandleFunc("/vault/summary", ws.handleGetVaultSummary).Methods("GET")
	api.HandleFunc("/collateral", ws.handleGetCollateral).Methods("GET")
	api.HandleFunc("/strategies", ws.handleGetStrategies).Methods("GET")
	api.HandleFunc("/reward-tokens", ws.handleGetRewardTokens).Methods("GET")
	api.HandleFunc("/harvest/{strategy}", ws.handleHarvest).Methods("POST")
	api.HandleFunc("/cycles", ws.handleGetCycles).Methods("GET")
	api.HandleFunc("/cycles/latest", ws.handleGetLatestCycle).Methods("GET")
	api.HandleFunc("/cycles/{id}", ws.handleGetCycle).Methods("GET")
	api.HandleFunc("/apy", ws.handleGetAPY).Methods("GET")
	api.HandleFunc("/events", ws.handleGetEvents).Methods("GET")

	ws.router.Use(ws.corsMiddleware)
	ws.router.Use(ws.loggingMiddleware)
}

// Handler exposes the router, mainly for tests.
func (ws *WebServer) Handler() http.Handler {
	return ws.router
}

// Start serves until Shutdown is called. It returns http.ErrServerClosed after a clean shutdown.
func (ws *WebServer) Start() error {
	ws.logger.Info().Str("port", ws.port).Msg("Starting web server")
	return ws.server.ListenAndServe()
}

// Shutdown stops the server gracefully.
func (ws *WebServer) Shutdown(ctx context.Context) error {
	ws.logger.Info().Msg("Shutting down web server")
	return ws.server.Shutdown(ctx)
}

// writeJSONResponse writes a JSON response
func (ws *WebServer) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		ws.logger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeErrorResponse writes an error response
func (ws *WebServer) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	response := map[string]interface{}{
		"error":     true,
		"message":   message,
		"timestamp": ws.now().UTC(),
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// corsMiddleware adds CORS headers
func (ws *WebServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (ws *WebServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Create a response writer wrapper to capture status code
		wrapper := &responseWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		ws.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Int("status", wrapper.statusCode).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}

// responseWriterWrapper wraps http.ResponseWriter to capture status code
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
