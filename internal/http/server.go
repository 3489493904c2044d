package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"lana/internal/log"
	"lana/internal/scheduler"
	"lana/internal/services"
)

// Runner executes an on-demand due-payment scan.
type Runner interface {
	RunNow(ctx context.Context) (services.RunSummary, error)
}

// JobLister reports scheduler jobs.
type JobLister interface {
	Status() []scheduler.JobStatus
}

// Pinger checks the ledger store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server is the admin surface of the ledger worker.
type Server struct {
	http.Server
	runner      Runner
	jobs        JobLister
	db          Pinger
	rateLimiter *rateLimiter
	metrics     *securityMetrics
	started     time.Time

	// serializes manual runs so two admin calls cannot race each other
	runMu sync.Mutex

	shutdownOnce sync.Once
}

// NewServer wires the admin routes, returning a ready-to-run http.Server.
func NewServer(addr string, runner Runner, jobs JobLister, db Pinger, logger *log.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
		},
		runner:      runner,
		jobs:        jobs,
		db:          db,
		rateLimiter: newRateLimiter(),
		metrics:     &securityMetrics{},
		started:     time.Now(),
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("POST /admin/fixed-payments/run", s.withRateLimit(s.handleRunFixedPayments))
	mux.HandleFunc("GET /admin/jobs", s.handleJobs)

	s.Handler = log.Middleware(logger)(s.withSecurityHeaders(mux))
	return s
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
