package main

import (
	"context"
	"errors"
	"os"
	"time"

	"lana/internal/cli"
	"lana/internal/log"
	"lana/internal/sheets"
	gsheet "lana/internal/sheets/google"
	"lana/internal/sheets/memory"
	"lana/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg.LogLevel, log.ComponentWorker)

	logger.Info("Starting ledger-sync-worker")

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	amqpClient := cli.InitAMQP(logger, cfg)
	if amqpClient == nil {
		logger.Error("ledger-sync-worker requires a reachable AMQP broker")
		os.Exit(1)
	}
	defer amqpClient.Close()

	var (
		writer     sheets.TransactionWriter
		categories sheets.CategoryReader
	)
	if cfg.GoogleSpreadsheetID != "" {
		client, err := gsheet.New(context.Background(), gsheet.Config{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			SheetName:       cfg.GoogleSheetName,
			CredentialsFile: cfg.GoogleServiceAccountFile,
			CredentialsJSON: cfg.GoogleServiceAccountJSON,
		})
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", "error", err)
			os.Exit(1)
		}
		writer, categories = client, client
		logger.Info("Google Sheets export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		store := memory.NewFromFiles("data")
		writer, categories = store, store
		logger.Info("Google Sheets disabled - exporting to memory")
	}

	syncWorker := worker.NewSyncWorker(repo, writer, categories)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	if n, err := syncWorker.SyncCategories(ctx); err != nil {
		logger.Error("Failed to sync categories", "error", err)
	} else {
		logger.Info("Categories synced", "count", n)
	}

	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := syncWorker.Exported().CleanExpired(); n > 0 {
					logger.Debug("Export guard cleanup", "removed", n)
				}
			}
		}
	}()

	go func() {
		err := amqpClient.ConsumeTransactionPosted(ctx, syncWorker.HandleTransactionPosted)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", "error", err)
			os.Exit(1)
		}
	}()

	cli.WaitForShutdown(ctx, done)
}
