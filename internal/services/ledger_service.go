package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"lana/internal/core"
	"lana/internal/storage"

	"github.com/shopspring/decimal"
)

var ErrInsufficientBalance = errors.New("insufficient balance")

// maxPostAttempts bounds retries after a concurrent balance update.
const maxPostAttempts = 3

// LedgerService records manual income and expense postings.
type LedgerService struct {
	storage   *storage.SQLiteRepository
	publisher EventPublisher
	now       func() time.Time
}

// NewLedgerService builds the service. publisher may be nil.
func NewLedgerService(storage *storage.SQLiteRepository, publisher EventPublisher) *LedgerService {
	return &LedgerService{
		storage:   storage,
		publisher: publisher,
		now:       time.Now,
	}
}

// PostIncome credits the user's balance.
func (s *LedgerService) PostIncome(ctx context.Context, userID int64, amount decimal.Decimal, description string) (core.Transaction, error) {
	return s.post(ctx, userID, amount, description, core.TransactionIncome)
}

// PostExpense debits the user's balance. It fails with
// ErrInsufficientBalance when the balance does not cover amount.
func (s *LedgerService) PostExpense(ctx context.Context, userID int64, amount decimal.Decimal, description string) (core.Transaction, error) {
	return s.post(ctx, userID, amount, description, core.TransactionExpense)
}

func (s *LedgerService) post(ctx context.Context, userID int64, amount decimal.Decimal, description string, kind core.TransactionKind) (core.Transaction, error) {
	if err := core.ValidateAmount(amount); err != nil {
		return core.Transaction{}, err
	}
	description = strings.TrimSpace(description)
	if description == "" {
		return core.Transaction{}, core.ErrEmptyDescription
	}

	categoryKind := core.CategoryExpense
	if kind == core.TransactionIncome {
		categoryKind = core.CategoryIncome
	}

	var (
		posted core.Transaction
		err    error
	)
	for attempt := 1; attempt <= maxPostAttempts; attempt++ {
		err = s.storage.InTx(ctx, func(q *storage.Queries) error {
			user, err := q.GetUser(ctx, userID)
			if err != nil {
				return err
			}

			balance := user.Balance.Add(amount)
			if kind == core.TransactionExpense {
				if user.Balance.LessThan(amount) {
					return ErrInsufficientBalance
				}
				balance = user.Balance.Sub(amount)
			}

			category, err := q.EnsureCategory(ctx, description, categoryKind)
			if err != nil {
				return fmt.Errorf("ensure category: %w", err)
			}

			posted, err = q.InsertTransaction(ctx, core.Transaction{
				UserID:      userID,
				Kind:        kind,
				Amount:      amount,
				CategoryID:  &category.ID,
				Description: description,
				Status:      core.StatusCompleted,
				OccurredAt:  s.now(),
			})
			if err != nil {
				return err
			}
			return q.UpdateBalance(ctx, userID, balance, user.Version)
		})
		if !errors.Is(err, storage.ErrConflict) {
			break
		}
		slog.WarnContext(ctx, "Balance changed concurrently, retrying posting",
			"user_id", userID, "attempt", attempt)
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("post %s: %w", kind, err)
	}

	if s.publisher != nil {
		if err := s.publisher.PublishTransactionPosted(ctx, posted); err != nil {
			slog.ErrorContext(ctx, "Failed to publish transaction event",
				"transaction_id", posted.ID, "error", err)
		}
	} else {
		slog.DebugContext(ctx, "No event publisher, skipping transaction event")
	}

	return posted, nil
}
