package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"lana/internal/cache"
	"lana/internal/cli"
	adminhttp "lana/internal/http"
	"lana/internal/log"
	"lana/internal/notify"
	"lana/internal/scheduler"
	"lana/internal/services"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg.LogLevel, log.ComponentApp)

	logger.Info("Starting ledger-worker")

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	amqpClient := cli.InitAMQP(logger, cfg)
	var (
		events   services.EventPublisher
		notifPub notify.NotificationPublisher
	)
	if amqpClient != nil {
		defer amqpClient.Close()
		events = amqpClient
		notifPub = amqpClient
	}

	dispatcher := cli.Dispatcher(logger, cfg, notifPub)

	engine := services.NewPaymentEngine(repo,
		services.WithBudgetCalculator(services.NewBudgetCalculator(repo)),
		services.WithNotifier(dispatcher),
		services.WithEventPublisher(events),
		services.WithWarningLeadDays(cfg.WarningLeadDays),
	)
	sweep := services.NewThresholdSweep(repo, dispatcher, cfg.BudgetAlertPercent)

	caches := cache.NewManager()
	if c, ok := engine.WarningCache().(cache.Cleaner); ok {
		caches.Register(c)
	}

	engineLog := logger.WithComponent(log.ComponentEngine)
	sweepLog := logger.WithComponent(log.ComponentSweep)

	sched := scheduler.New(scheduler.WithLeases(repo, cfg.SchedulerLeaseTTL))
	jobs := []scheduler.Job{
		{
			Name:       "due-payments",
			Interval:   cfg.DueScanInterval,
			RunOnStart: true,
			Run: func(ctx context.Context, now time.Time) error {
				summary, err := engine.ProcessDue(ctx, now)
				if err != nil {
					return err
				}
				engineLog.InfoContext(ctx, "Due scan complete",
					"executed", summary.Executed,
					"skipped_budget", summary.SkippedBudget,
					"skipped_balance", summary.SkippedBalance,
					"orphaned", summary.Orphaned,
					"failed", summary.Failed)
				return nil
			},
		},
		{
			Name:       "pre-warnings",
			Interval:   cfg.WarningScanInterval,
			RunOnStart: true,
			Run: func(ctx context.Context, now time.Time) error {
				summary, err := engine.WarnUpcoming(ctx, now)
				if err != nil {
					return err
				}
				engineLog.DebugContext(ctx, "Pre-warning scan complete",
					"checked", summary.Checked,
					"budget_warnings", summary.BudgetWarnings,
					"balance_warnings", summary.BalanceWarnings)
				return nil
			},
		},
		{
			Name:     "budget-thresholds",
			Interval: cfg.ThresholdSweepInterval,
			Run: func(ctx context.Context, now time.Time) error {
				summary, err := sweep.Sweep(ctx, now)
				if err != nil {
					return err
				}
				sweepLog.InfoContext(ctx, "Threshold sweep complete",
					"checked", summary.Checked,
					"near_limit", summary.NearLimit,
					"exceeded", summary.Exceeded)
				return nil
			},
		},
		{
			Name:     "cache-cleanup",
			Interval: time.Hour,
			Local:    true,
			Run:      caches.CleanupJob,
		},
	}
	for _, job := range jobs {
		if err := sched.Register(job); err != nil {
			logger.Error("Failed to register job", "job", job.Name, "error", err)
			os.Exit(1)
		}
	}

	admin := adminhttp.NewServer(":"+cfg.AdminPort, engine, sched, repo, logger.WithComponent(log.ComponentHTTP))

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := admin.Shutdown(shutdownCtx); err != nil {
			logger.Error("Admin server shutdown failed", "error", err)
		}
		if err := sched.Stop(); err != nil {
			logger.Error("Scheduler stop failed", "error", err)
		}
	})

	if err := sched.Start(ctx); err != nil {
		logger.Error("Failed to start scheduler", "error", err)
		os.Exit(1)
	}
	logger.Info("Scheduler started",
		"owner", sched.Owner(),
		"due_interval", cfg.DueScanInterval,
		"warning_interval", cfg.WarningScanInterval,
		"sweep_interval", cfg.ThresholdSweepInterval)

	go func() {
		logger.Info("Admin server listening", "addr", admin.Addr)
		if err := admin.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Admin server failed", "error", err)
		}
	}()

	cli.WaitForShutdown(ctx, done)
}
