// Package dashboard exposes a read-only HTTP API over the audit ledger:
// aggregate stats, recent alerts, system health, and chain verification.
package dashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/guardian-iot/guardian-sim/internal/ledger"
	"github.com/guardian-iot/guardian-sim/internal/logger"
	"github.com/guardian-iot/guardian-sim/internal/models"
)

// staleAfter is how long without a new block before health reports STALE.
const staleAfter = 5 * time.Minute

const defaultAlertLimit = 20

// Alert is the per-block summary returned by /api/alerts.
type Alert struct {
	Timestamp string          `json:"timestamp"`
	Type      string          `json:"type"`
	SensorID  string          `json:"sensor_id,omitempty"`
	FundID    string          `json:"fund_id,omitempty"`
	Anomaly   string          `json:"anomaly,omitempty"`
	Severity  models.Severity `json:"severity"`
}

// HealthResponse is the /api/health payload.
type HealthResponse struct {
	Status   string `json:"status"`
	LastData string `json:"last_data"`
}

// Server serves the dashboard API over one ledger.
type Server struct {
	ledger *ledger.Ledger
	server *http.Server
}

// New creates a dashboard server listening on addr.
func New(addr string, l *ledger.Ledger) *Server {
	s := &Server{ledger: l}
	s.server = &http.Server{
		Addr:         addr,
		Handler:      handlers.LoggingHandler(os.Stdout, s.router()),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/stats", s.getStats).Methods("GET")
	r.HandleFunc("/api/alerts", s.getAlerts).Methods("GET")
	r.HandleFunc("/api/health", s.getHealth).Methods("GET")
	r.HandleFunc("/api/blockchain/verify", s.verifyChain).Methods("GET")

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	}
}

func (s *Server) getStats(w http.ResponseWriter, _ *http.Request) {
	stats, err := s.ledger.GetStats()
	if err != nil {
		logger.Error("Failed to read ledger stats: %v", err)
		http.Error(w, "ledger unavailable", http.StatusInternalServerError)
		return
	}
	writeJSON(w, stats)
}

func (s *Server) getAlerts(w http.ResponseWriter, r *http.Request) {
	limit := defaultAlertLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	blocks, err := s.ledger.RecentBlocks(limit)
	if err != nil {
		logger.Error("Failed to read recent blocks: %v", err)
		http.Error(w, "ledger unavailable", http.StatusInternalServerError)
		return
	}

	alerts := make([]Alert, 0, len(blocks))
	for _, b := range blocks {
		alerts = append(alerts, Alert{
			Timestamp: b.Timestamp,
			Type:      b.DataType,
			SensorID:  b.SensorID,
			FundID:    b.FundID,
			Anomaly:   b.AnomalyType,
			Severity:  b.Severity,
		})
	}

	writeJSON(w, map[string]any{"alerts": alerts, "count": len(alerts)})
}

func (s *Server) getHealth(w http.ResponseWriter, _ *http.Request) {
	last, ok, err := s.ledger.LastBlockTime()
	if err != nil {
		logger.Error("Failed to read last block time: %v", err)
		http.Error(w, "ledger unavailable", http.StatusInternalServerError)
		return
	}

	resp := HealthResponse{Status: "NO_DATA", LastData: "Never"}
	if ok {
		resp.LastData = last.Format(models.TimestampLayout)
		if time.Since(last) < staleAfter {
			resp.Status = "HEALTHY"
		} else {
			resp.Status = "STALE"
		}
	}
	writeJSON(w, resp)
}

func (s *Server) verifyChain(w http.ResponseWriter, _ *http.Request) {
	result, err := s.ledger.VerifyChain()
	if err != nil {
		logger.Error("Failed to verify chain: %v", err)
		http.Error(w, "ledger unavailable", http.StatusInternalServerError)
		return
	}
	writeJSON(w, result)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to encode response: %v", err)
	}
}
