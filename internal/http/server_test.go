package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"lana/internal/log"
	"lana/internal/scheduler"
	"lana/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	summary services.RunSummary
	err     error
	calls   int
}

func (f *fakeRunner) RunNow(context.Context) (services.RunSummary, error) {
	f.calls++
	return f.summary, f.err
}

type fakeJobs []scheduler.JobStatus

func (f fakeJobs) Status() []scheduler.JobStatus { return f }

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func testLogger() *log.Logger {
	return log.New(log.Config{Output: &bytes.Buffer{}, Component: log.ComponentHTTP})
}

func newTestServer(r Runner, j JobLister, p Pinger) *Server {
	return NewServer(":0", r, j, p, testLogger())
}

func do(t *testing.T, s *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = "203.0.113.7:5555"
	s.Handler.ServeHTTP(rr, req)
	return rr
}

func TestHealthAndReady(t *testing.T) {
	s := newTestServer(nil, fakeJobs{}, fakePinger{})

	rr := do(t, s, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))

	rr = do(t, s, http.MethodGet, "/readyz")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"database":"ok"`)
}

func TestReadyReportsDatabaseFailure(t *testing.T) {
	s := newTestServer(nil, nil, fakePinger{err: errors.New("disk I/O error")})

	rr := do(t, s, http.MethodGet, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), "not_ready")
}

func TestRunFixedPaymentsReturnsSummary(t *testing.T) {
	runner := &fakeRunner{summary: services.RunSummary{Executed: 2, SkippedBudget: 1, SkippedBalance: 3}}
	s := newTestServer(runner, nil, fakePinger{})

	rr := do(t, s, http.MethodPost, "/admin/fixed-payments/run")
	require.Equal(t, http.StatusOK, rr.Code)

	var got map[string]int
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, 2, got["executed"])
	assert.Equal(t, 1, got["skipped_budget"])
	assert.Equal(t, 3, got["skipped_balance"])
	assert.Equal(t, 1, runner.calls)
}

func TestRunFixedPaymentsRequiresPost(t *testing.T) {
	runner := &fakeRunner{}
	s := newTestServer(runner, nil, fakePinger{})

	rr := do(t, s, http.MethodGet, "/admin/fixed-payments/run")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	assert.Zero(t, runner.calls)
}

func TestRunFixedPaymentsError(t *testing.T) {
	s := newTestServer(&fakeRunner{err: errors.New("database is locked")}, nil, fakePinger{})

	rr := do(t, s, http.MethodPost, "/admin/fixed-payments/run")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.NotContains(t, rr.Body.String(), "locked")
}

func TestRunFixedPaymentsRateLimited(t *testing.T) {
	s := newTestServer(&fakeRunner{}, nil, fakePinger{})

	for i := 0; i < rateLimitRequests; i++ {
		require.Equal(t, http.StatusOK, do(t, s, http.MethodPost, "/admin/fixed-payments/run").Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, do(t, s, http.MethodPost, "/admin/fixed-payments/run").Code)
}

func TestJobsListing(t *testing.T) {
	jobs := fakeJobs{{Name: "due-payments", Interval: time.Minute, Runs: 4}}
	s := newTestServer(nil, jobs, fakePinger{})

	rr := do(t, s, http.MethodGet, "/admin/jobs")
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Jobs []scheduler.JobStatus `json:"jobs"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Len(t, body.Jobs, 1)
	assert.Equal(t, "due-payments", body.Jobs[0].Name)
	assert.Equal(t, int64(4), body.Jobs[0].Runs)
}

func TestExtractClientIP(t *testing.T) {
	tests := []struct {
		name   string
		remote string
		xff    string
		want   string
	}{
		{"direct", "203.0.113.7:1234", "", "203.0.113.7"},
		{"untrusted proxy ignored", "203.0.113.7:1234", "198.51.100.1", "203.0.113.7"},
		{"trusted proxy honoured", "10.0.0.5:1234", "198.51.100.1, 10.0.0.5", "198.51.100.1"},
		{"garbage forwarded", "127.0.0.1:1234", "not-an-ip", "127.0.0.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			assert.Equal(t, tt.want, extractClientIP(r))
		})
	}
}

func TestRateLimiterWindowResets(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	rl := newRateLimiter()
	rl.now = func() time.Time { return now }

	for i := 0; i < rateLimitRequests; i++ {
		assert.True(t, rl.allow("a", nil))
	}
	assert.False(t, rl.allow("a", nil))

	now = now.Add(rateLimitWindow + time.Second)
	assert.True(t, rl.allow("a", nil))

	now = now.Add(staleClientAfter + 6*time.Minute)
	rl.allow("b", nil)
	assert.Equal(t, 1, rl.activeClients())
}
