// Package scheduler runs named periodic jobs. A job never overlaps itself,
// and when a LeaseStore is configured only the process holding a job's
// lease runs it.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"lana/internal/log"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Job is a unit of periodic work. Run receives the scheduler's clock
// reading for the tick.
type Job struct {
	Name       string
	Interval   time.Duration
	RunOnStart bool
	// Local jobs work on per-process state and run without a lease.
	Local bool
	Run   func(ctx context.Context, now time.Time) error
}

// LeaseStore hands out named, expiring leases. storage.SQLiteRepository
// implements it.
type LeaseStore interface {
	AcquireLease(ctx context.Context, name, owner string, now time.Time, ttl time.Duration) (bool, error)
	ReleaseLease(ctx context.Context, name, owner string) error
}

// JobStatus is a snapshot of a job for the admin surface.
type JobStatus struct {
	Name      string        `json:"name"`
	Interval  time.Duration `json:"interval_ns"`
	Runs      int64         `json:"runs"`
	Skipped   int64         `json:"skipped"`
	Running   bool          `json:"running"`
	LastRun   time.Time     `json:"last_run,omitempty"`
	LastError string        `json:"last_error,omitempty"`
}

var (
	ErrAlreadyStarted = errors.New("scheduler already started")
	ErrUnknownJob     = errors.New("unknown job")
)

type jobState struct {
	Job
	running atomic.Bool
	runs    atomic.Int64
	skipped atomic.Int64

	mu      sync.Mutex
	lastRun time.Time
	lastErr error
}

type Scheduler struct {
	owner    string
	leases   LeaseStore
	leaseTTL time.Duration
	now      func() time.Time

	mu      sync.Mutex
	jobs    []*jobState
	byName  map[string]*jobState
	cancel  context.CancelFunc
	group   *errgroup.Group
	started bool
}

type Option func(*Scheduler)

// WithLeases makes every run conditional on holding the job's lease.
func WithLeases(store LeaseStore, ttl time.Duration) Option {
	return func(s *Scheduler) {
		s.leases = store
		s.leaseTTL = ttl
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithOwner fixes the lease owner id instead of a random one.
func WithOwner(owner string) Option {
	return func(s *Scheduler) { s.owner = owner }
}

func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		owner:    uuid.NewString(),
		leaseTTL: 5 * time.Minute,
		now:      time.Now,
		byName:   make(map[string]*jobState),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Scheduler) Owner() string { return s.owner }

// Register adds a job. Names must be unique and intervals positive.
func (s *Scheduler) Register(job Job) error {
	if job.Name == "" || job.Run == nil {
		return errors.New("job needs a name and a run function")
	}
	if job.Interval <= 0 {
		return fmt.Errorf("job %s: interval must be positive", job.Name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrAlreadyStarted
	}
	if _, dup := s.byName[job.Name]; dup {
		return fmt.Errorf("job %s already registered", job.Name)
	}
	js := &jobState{Job: job}
	s.jobs = append(s.jobs, js)
	s.byName[job.Name] = js
	return nil
}

// Start launches one loop per job and returns immediately.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrAlreadyStarted
	}

	ctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	for _, js := range s.jobs {
		g.Go(func() error {
			s.loop(gctx, js)
			return nil
		})
	}

	s.cancel = cancel
	s.group = g
	s.started = true

	slog.InfoContext(ctx, "Scheduler started", "jobs", len(s.jobs), "owner", s.owner)
	return nil
}

// Stop cancels all loops, waits for in-flight runs and releases held
// leases. It is safe to call more than once.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	cancel, g := s.cancel, s.group
	s.cancel, s.group = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	err := g.Wait()

	if s.leases != nil {
		ctx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		for _, js := range s.jobs {
			if js.Local {
				continue
			}
			if rerr := s.leases.ReleaseLease(ctx, leaseName(js.Name), s.owner); rerr != nil {
				slog.WarnContext(ctx, "Failed to release lease", log.FieldJob, js.Name, "error", rerr)
			}
		}
	}
	return err
}

func (s *Scheduler) loop(ctx context.Context, js *jobState) {
	ticker := time.NewTicker(js.Interval)
	defer ticker.Stop()

	if js.RunOnStart {
		s.runOnce(ctx, js)
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx, js)
		}
	}
}

// RunJob runs the named job immediately, subject to the same overlap and
// lease rules as a tick. It reports whether the job actually ran.
func (s *Scheduler) RunJob(ctx context.Context, name string) (bool, error) {
	s.mu.Lock()
	js, ok := s.byName[name]
	s.mu.Unlock()
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return s.runOnce(ctx, js)
}

func (s *Scheduler) runOnce(ctx context.Context, js *jobState) (bool, error) {
	if !js.running.CompareAndSwap(false, true) {
		js.skipped.Add(1)
		slog.DebugContext(ctx, "Job still running, skipping tick", log.FieldJob, js.Name)
		return false, nil
	}
	defer js.running.Store(false)

	now := s.now()
	if s.leases != nil && !js.Local {
		held, err := s.leases.AcquireLease(ctx, leaseName(js.Name), s.owner, now, s.ttlFor(js))
		if err != nil {
			slog.ErrorContext(ctx, "Failed to acquire job lease", log.FieldJob, js.Name, "error", err)
			js.record(now, err)
			return false, err
		}
		if !held {
			js.skipped.Add(1)
			slog.DebugContext(ctx, "Job lease held elsewhere, skipping tick", log.FieldJob, js.Name)
			return false, nil
		}
	}

	start := time.Now()
	err := js.Run(ctx, now)
	js.runs.Add(1)
	js.record(now, err)

	fields := log.NewFields().WithComponent(log.ComponentScheduler).WithJob(js.Name)
	fields[log.FieldDuration] = time.Since(start).Milliseconds()
	if err != nil && !errors.Is(err, context.Canceled) {
		slog.ErrorContext(ctx, "Job failed", fields.WithError(err).ToSlice()...)
		return true, err
	}
	slog.DebugContext(ctx, "Job finished", fields.ToSlice()...)
	return true, err
}

// ttlFor keeps a lease alive across at least two ticks of its job.
func (s *Scheduler) ttlFor(js *jobState) time.Duration {
	if ttl := 2 * js.Interval; ttl > s.leaseTTL {
		return ttl
	}
	return s.leaseTTL
}

func (js *jobState) record(now time.Time, err error) {
	js.mu.Lock()
	defer js.mu.Unlock()
	js.lastRun = now
	js.lastErr = err
}

// Status returns a snapshot of all jobs sorted by name.
func (s *Scheduler) Status() []JobStatus {
	s.mu.Lock()
	jobs := append([]*jobState(nil), s.jobs...)
	s.mu.Unlock()

	out := make([]JobStatus, 0, len(jobs))
	for _, js := range jobs {
		js.mu.Lock()
		st := JobStatus{
			Name:     js.Name,
			Interval: js.Interval,
			Runs:     js.runs.Load(),
			Skipped:  js.skipped.Load(),
			Running:  js.running.Load(),
			LastRun:  js.lastRun,
		}
		if js.lastErr != nil {
			st.LastError = js.lastErr.Error()
		}
		js.mu.Unlock()
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func leaseName(job string) string { return "job:" + job }
