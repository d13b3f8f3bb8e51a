// Package httpapi serves the engine's operational state as a JSON REST API:
// per-symbol data status reports, the live portfolio document, and the feed
// table depths.
package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"quantd/internal/domain"
)

// StatusReporter computes a data status report for one symbol.
type StatusReporter interface {
	Status(ctx context.Context, symbol string) (domain.DataStatusReport, error)
}

// PortfolioViewer exposes a read-only snapshot of the portfolio document.
type PortfolioViewer interface {
	Document() *domain.PortfolioDocument
}

// FeedViewer reports the depth of one synchronized feed table.
type FeedViewer interface {
	TableLen(name string) int
}

// Server is the read-only operational API.
type Server struct {
	symbols   []string
	status    StatusReporter
	portfolio PortfolioViewer
	feed      FeedViewer
	log       *slog.Logger
}

// NewServer creates the API over the given views. Any view may be nil; its
// endpoints then answer 404.
func NewServer(symbols []string, status StatusReporter, portfolio PortfolioViewer, feed FeedViewer) *Server {
	return &Server{
		symbols:   symbols,
		status:    status,
		portfolio: portfolio,
		feed:      feed,
		log:       slog.Default().With("component", "httpapi"),
	}
}

// RegisterRoutes registers all API routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.status != nil {
		mux.HandleFunc("GET /api/status/{symbol}", s.handleStatus)
	}
	if s.portfolio != nil {
		mux.HandleFunc("GET /api/portfolio", s.handlePortfolio)
	}
	if s.feed != nil {
		mux.HandleFunc("GET /api/feed/{table}", s.handleFeedTable)
	}
}

// Handler returns an http.Handler with CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return corsMiddleware(mux)
}

// ListenAndServe runs the API on addr until the context is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler()}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.log.Info("api listening", "addr", addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errc:
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	symbol := r.PathValue("symbol")
	if !s.watched(symbol) {
		writeError(w, http.StatusNotFound, "unknown symbol")
		return
	}
	report, err := s.status.Status(r.Context(), symbol)
	if err != nil {
		s.log.Error("status report", "symbol", symbol, "error", err)
		writeError(w, http.StatusInternalServerError, "status unavailable")
		return
	}
	writeJSON(w, report)
}

func (s *Server) handlePortfolio(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.portfolio.Document())
}

func (s *Server) handleFeedTable(w http.ResponseWriter, r *http.Request) {
	table := r.PathValue("table")
	writeJSON(w, map[string]any{"table": table, "records": s.feed.TableLen(table)})
}

func (s *Server) watched(symbol string) bool {
	for _, want := range s.symbols {
		if want == symbol {
			return true
		}
	}
	return false
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
