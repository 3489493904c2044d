package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"lana/internal/cache"
	"lana/internal/core"
	"lana/internal/log"
	"lana/internal/storage"
)

// Outcome is what happened to one due fixed payment during a scan.
type Outcome string

const (
	OutcomeExecuted       Outcome = "executed"
	OutcomeSkippedBudget  Outcome = "skipped_budget"
	OutcomeSkippedBalance Outcome = "skipped_balance"
	OutcomeOrphaned       Outcome = "orphaned"
	OutcomeFailed         Outcome = "failed"
)

const fixedPaymentPrefix = "Fixed payment: "

// RunSummary counts the outcomes of one due scan.
type RunSummary struct {
	Executed       int `json:"executed"`
	SkippedBudget  int `json:"skipped_budget"`
	SkippedBalance int `json:"skipped_balance"`
	Orphaned       int `json:"orphaned"`
	Failed         int `json:"failed"`
}

func (s *RunSummary) add(o Outcome) {
	switch o {
	case OutcomeExecuted:
		s.Executed++
	case OutcomeSkippedBudget:
		s.SkippedBudget++
	case OutcomeSkippedBalance:
		s.SkippedBalance++
	case OutcomeOrphaned:
		s.Orphaned++
	case OutcomeFailed:
		s.Failed++
	}
}

// WarnSummary counts the pre-warnings sent by one upcoming scan.
type WarnSummary struct {
	Checked         int `json:"checked"`
	BudgetWarnings  int `json:"budget_warnings"`
	BalanceWarnings int `json:"balance_warnings"`
}

// PaymentEngine executes due fixed payments and warns about upcoming ones.
type PaymentEngine struct {
	store     *storage.SQLiteRepository
	budget    *BudgetCalculator
	notifier  Notifier
	publisher EventPublisher
	warned    cache.Cache[struct{}]
	leadDays  int
	now       func() time.Time
}

// EngineOption configures a PaymentEngine.
type EngineOption func(*PaymentEngine)

// WithBudgetCalculator enables the budget check for categorized payments.
// Without it every payment is treated as having unlimited budget.
func WithBudgetCalculator(c *BudgetCalculator) EngineOption {
	return func(e *PaymentEngine) { e.budget = c }
}

// WithNotifier sets where outcome and pre-warning messages go.
func WithNotifier(n Notifier) EngineOption {
	return func(e *PaymentEngine) { e.notifier = n }
}

// WithEventPublisher publishes executed payments after commit. Nil disables it.
func WithEventPublisher(p EventPublisher) EngineOption {
	return func(e *PaymentEngine) { e.publisher = p }
}

// WithWarningLeadDays sets how many days ahead WarnUpcoming looks.
func WithWarningLeadDays(days int) EngineOption {
	return func(e *PaymentEngine) {
		if days > 0 {
			e.leadDays = days
		}
	}
}

// WithWarningCache replaces the cache that suppresses repeated pre-warnings.
func WithWarningCache(c cache.Cache[struct{}]) EngineOption {
	return func(e *PaymentEngine) { e.warned = c }
}

// WithClock sets the clock RunNow reads.
func WithClock(now func() time.Time) EngineOption {
	return func(e *PaymentEngine) { e.now = now }
}

func NewPaymentEngine(store *storage.SQLiteRepository, opts ...EngineOption) *PaymentEngine {
	e := &PaymentEngine{
		store:    store,
		notifier: nopNotifier{},
		leadDays: 2,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.warned == nil {
		e.warned = cache.NewLRUCache[struct{}](10000, 48*time.Hour)
	}
	return e
}

// WarningCache exposes the dedup cache so it can be registered for cleanup.
func (e *PaymentEngine) WarningCache() cache.Cache[struct{}] {
	return e.warned
}

type paymentResult struct {
	outcome     Outcome
	user        core.User
	transaction *core.Transaction
	nextRun     core.Date
	active      bool
}

// ProcessDue runs every active fixed payment whose next run date is on or
// before the day of now. Each payment is checked, executed and rescheduled
// in its own store transaction; a failure on one payment is logged and the
// scan moves on.
func (e *PaymentEngine) ProcessDue(ctx context.Context, now time.Time) (RunSummary, error) {
	var summary RunSummary
	now = now.UTC()
	today := core.DateOf(now)

	due, err := e.store.ListDueFixedPayments(ctx, today)
	if err != nil {
		return summary, fmt.Errorf("list due fixed payments: %w", err)
	}

	slog.InfoContext(ctx, "Processing due fixed payments",
		"due", len(due),
		"processing_date", today.String())

	for _, p := range due {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		fields := log.NewFields().
			WithComponent(log.ComponentEngine).
			WithPayment(p.ID, p.UserID, p.Description, p.Amount.StringFixed(2), p.NextRunDate.String())

		res, err := e.processPayment(ctx, p, now)
		if err != nil {
			summary.add(OutcomeFailed)
			slog.ErrorContext(ctx, "Fixed payment failed, will retry on next scan",
				fields.WithOutcome(string(OutcomeFailed)).WithError(err).ToSlice()...)
			continue
		}
		summary.add(res.outcome)

		if res.outcome == OutcomeOrphaned {
			slog.WarnContext(ctx, "Skipping fixed payment of unknown user",
				fields.WithOutcome(string(res.outcome)).ToSlice()...)
			continue
		}

		slog.InfoContext(ctx, "Fixed payment processed",
			fields.WithOutcome(string(res.outcome)).ToSlice()...)
		e.afterCommit(ctx, p, res)
	}

	slog.InfoContext(ctx, "Fixed payment scan complete",
		"executed", summary.Executed,
		"skipped_budget", summary.SkippedBudget,
		"skipped_balance", summary.SkippedBalance,
		"orphaned", summary.Orphaned,
		"failed", summary.Failed)

	return summary, nil
}

// RunNow is ProcessDue at the engine's clock.
func (e *PaymentEngine) RunNow(ctx context.Context) (RunSummary, error) {
	return e.ProcessDue(ctx, e.now())
}

func (e *PaymentEngine) processPayment(ctx context.Context, p core.FixedPayment, now time.Time) (paymentResult, error) {
	var res paymentResult
	today := core.DateOf(now)

	err := e.store.InTx(ctx, func(q *storage.Queries) error {
		user, err := q.GetUser(ctx, p.UserID)
		if errors.Is(err, storage.ErrNotFound) {
			res.outcome = OutcomeOrphaned
			return nil
		}
		if err != nil {
			return err
		}
		res.user = user

		categoryID, err := resolveCategory(ctx, q, p.CategoryID)
		if err != nil {
			return err
		}

		res.outcome, err = e.decide(ctx, q, p, user, categoryID, now)
		if err != nil {
			return err
		}

		if res.outcome == OutcomeExecuted {
			t, err := q.InsertTransaction(ctx, core.Transaction{
				UserID:      user.ID,
				Kind:        core.TransactionExpense,
				Amount:      p.Amount,
				CategoryID:  categoryID,
				Description: fixedPaymentPrefix + p.Description,
				Status:      core.StatusCompleted,
				OccurredAt:  now,
			})
			if err != nil {
				return err
			}
			if err := q.UpdateBalance(ctx, user.ID, user.Balance.Sub(p.Amount), user.Version); err != nil {
				return err
			}
			res.transaction = &t
			res.user.Balance = user.Balance.Sub(p.Amount)
		}

		res.nextRun, res.active, err = NextSchedule(p, today)
		if err != nil {
			return err
		}
		return q.AdvanceFixedPayment(ctx, p.ID, p.NextRunDate, res.nextRun, res.active)
	})
	if err != nil {
		return paymentResult{}, err
	}
	return res, nil
}

// decide applies the policy: budget first, then balance.
func (e *PaymentEngine) decide(ctx context.Context, q *storage.Queries, p core.FixedPayment, user core.User, categoryID *int64, now time.Time) (Outcome, error) {
	if categoryID != nil && e.budget != nil {
		avail, err := e.budget.Within(q).Available(ctx, user.ID, *categoryID, now)
		if err != nil {
			return "", err
		}
		if !avail.Covers(p.Amount) {
			return OutcomeSkippedBudget, nil
		}
	}
	if user.Balance.LessThan(p.Amount) {
		return OutcomeSkippedBalance, nil
	}
	return OutcomeExecuted, nil
}

// resolveCategory drops a category reference that no longer resolves.
func resolveCategory(ctx context.Context, q *storage.Queries, id *int64) (*int64, error) {
	if id == nil {
		return nil, nil
	}
	if _, err := q.GetCategory(ctx, *id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return id, nil
}

func (e *PaymentEngine) afterCommit(ctx context.Context, p core.FixedPayment, res paymentResult) {
	switch res.outcome {
	case OutcomeExecuted:
		e.notifier.Notify(ctx, res.user, subjectExecuted, executedMessage(p))
		if e.publisher != nil && res.transaction != nil {
			if err := e.publisher.PublishTransactionPosted(ctx, *res.transaction); err != nil {
				slog.ErrorContext(ctx, "Failed to publish transaction event",
					"transaction_id", res.transaction.ID, "error", err)
			}
		}
	case OutcomeSkippedBudget:
		e.notifier.Notify(ctx, res.user, subjectSkippedBudget, skippedBudgetMessage(p))
	case OutcomeSkippedBalance:
		e.notifier.Notify(ctx, res.user, subjectSkippedBalance, skippedBalanceMessage(p))
	}
}

// WarnUpcoming looks at payments due exactly lead days after now and warns
// their owners about each check that would fail today. Budgets are read for
// the current month, not the month of the run date. It never writes to
// the ledger and sends a given warning at most once per payment per day.
func (e *PaymentEngine) WarnUpcoming(ctx context.Context, now time.Time) (WarnSummary, error) {
	var summary WarnSummary
	now = now.UTC()
	today := core.DateOf(now)
	target := today.AddDays(e.leadDays)

	upcoming, err := e.store.ListFixedPaymentsDueOn(ctx, target)
	if err != nil {
		return summary, fmt.Errorf("list upcoming fixed payments: %w", err)
	}

	for _, p := range upcoming {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		summary.Checked++

		user, err := e.store.GetUser(ctx, p.UserID)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			slog.ErrorContext(ctx, "Failed to load user for pre-warning",
				"payment_id", p.ID, "user_id", p.UserID, "error", err)
			continue
		}

		if p.CategoryID != nil && e.budget != nil {
			avail, err := e.budget.Available(ctx, user.ID, *p.CategoryID, now)
			if err != nil {
				slog.ErrorContext(ctx, "Failed to check budget for pre-warning",
					"payment_id", p.ID, "error", err)
			} else if !avail.Covers(p.Amount) && e.firstWarning(p, "budget", today) {
				e.notifier.Notify(ctx, user, subjectWarnBudget, warnBudgetMessage(p, e.leadDays))
				summary.BudgetWarnings++
			}
		}

		if user.Balance.LessThan(p.Amount) && e.firstWarning(p, "balance", today) {
			e.notifier.Notify(ctx, user, subjectWarnBalance, warnBalanceMessage(p, e.leadDays))
			summary.BalanceWarnings++
		}
	}

	if summary.BudgetWarnings+summary.BalanceWarnings > 0 {
		slog.InfoContext(ctx, "Pre-warnings sent",
			"checked", summary.Checked,
			"budget", summary.BudgetWarnings,
			"balance", summary.BalanceWarnings)
	}
	return summary, nil
}

func (e *PaymentEngine) firstWarning(p core.FixedPayment, check string, day core.Date) bool {
	key := fmt.Sprintf("%d:%s:%s:%s", p.ID, p.NextRunDate, check, day)
	return e.warned.SetIfAbsent(key, struct{}{})
}
