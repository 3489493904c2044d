package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"lana/internal/amqp"
	"lana/internal/cli"
	"lana/internal/config"
	"lana/internal/core"
	"lana/internal/log"
	"lana/internal/notify"
	"lana/internal/services"
	"lana/internal/storage"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// app carries the per-invocation settings shared by subcommands.
type app struct {
	v      *viper.Viper
	logger *log.Logger

	broker     *amqp.Client
	brokerOnce sync.Once
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:           "ledgerctl",
		Short:         "Operate the lana ledger: migrations, fixed payments, budgets",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if a.broker != nil {
				return a.broker.Close()
			}
			return nil
		},
	}

	root.PersistentFlags().String("db", "", "SQLite database path (env SQLITE_DB_PATH)")
	root.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error (env LOG_LEVEL)")
	root.PersistentFlags().String("date", "", "reference date YYYY-MM-DD (default today)")

	_ = a.v.BindPFlag("db", root.PersistentFlags().Lookup("db"))
	_ = a.v.BindPFlag("log_level", root.PersistentFlags().Lookup("log-level"))
	_ = a.v.BindPFlag("date", root.PersistentFlags().Lookup("date"))
	_ = a.v.BindEnv("db", "SQLITE_DB_PATH")
	_ = a.v.BindEnv("log_level", "LOG_LEVEL")
	a.v.SetDefault("db", "./data/lana.db")
	a.v.SetDefault("log_level", "warn")

	root.AddCommand(
		a.migrateCmd(),
		a.runDueCmd(),
		a.warnUpcomingCmd(),
		a.sweepBudgetsCmd(),
		a.postCmd(),
		a.commitmentCmd(),
		a.userCmd(),
		a.budgetCmd(),
		a.fixedPaymentCmd(),
	)
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	cfg := log.DefaultConfig()
	cfg.Level = log.ParseLevel(a.v.GetString("log_level"))
	cfg.Component = log.ComponentApp
	cfg.Output = cmd.ErrOrStderr()
	a.logger = log.New(cfg)
	log.SetDefault(a.logger)
	return nil
}

func (a *app) dbPath() string { return a.v.GetString("db") }

func (a *app) openStore() (*storage.SQLiteRepository, error) {
	store, err := storage.NewSQLiteRepository(a.dbPath())
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	return store, nil
}

// referenceTime is the --date flag at noon UTC, or the current time.
func (a *app) referenceTime() (time.Time, error) {
	s := a.v.GetString("date")
	if s == "" {
		return time.Now(), nil
	}
	d, err := core.ParseDate(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --date %q: %w", s, err)
	}
	return d.Add(12 * time.Hour), nil
}

// amqpClient connects at most once per invocation; nil when AMQP_URL is unset.
func (a *app) amqpClient() *amqp.Client {
	a.brokerOnce.Do(func() {
		a.broker = cli.InitAMQP(a.logger, config.Load())
	})
	return a.broker
}

// dispatcher builds notification channels from the environment, the same
// way the worker does.
func (a *app) dispatcher() services.Notifier {
	var pub notify.NotificationPublisher
	if c := a.amqpClient(); c != nil {
		pub = c
	}
	return cli.Dispatcher(a.logger, config.Load(), pub)
}

func (a *app) publisher() services.EventPublisher {
	if c := a.amqpClient(); c != nil {
		return c
	}
	return nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	cli.LoadEnvFile()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
