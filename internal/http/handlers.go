package http

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"lana/internal/log"
	"lana/internal/scheduler"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	switch {
	case s.db == nil:
		checks["database"] = "not_configured"
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	default:
		if err := s.db.Ping(ctx); err != nil {
			checks["database"] = "failed: " + err.Error()
			status, httpStatus = "not_ready", http.StatusServiceUnavailable
		} else {
			checks["database"] = "ok"
		}
	}

	if s.jobs != nil {
		checks["jobs"] = len(s.jobs.Status())
	}
	checks["rate_limiter"] = map[string]any{
		"active_clients": s.rateLimiter.activeClients(),
		"hits":           atomic.LoadInt64(&s.metrics.rateLimitHits),
	}

	writeJSON(w, httpStatus, map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleRunFixedPayments runs a due scan now and returns its summary.
func (s *Server) handleRunFixedPayments(w http.ResponseWriter, r *http.Request) {
	logger := log.FromContext(r.Context())
	if s.runner == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "engine not configured"})
		return
	}

	s.runMu.Lock()
	defer s.runMu.Unlock()

	summary, err := s.runner.RunNow(r.Context())
	if err != nil {
		logger.ErrorContext(r.Context(), "Manual fixed-payment run failed",
			log.NewFields().WithOperation(log.OpExecute).WithError(err).ToSlice()...)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "run failed"})
		return
	}

	logger.InfoContext(r.Context(), "Manual fixed-payment run complete",
		"executed", summary.Executed,
		"skipped_budget", summary.SkippedBudget,
		"skipped_balance", summary.SkippedBalance)
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	jobs := []scheduler.JobStatus{}
	if s.jobs != nil {
		jobs = s.jobs.Status()
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}
