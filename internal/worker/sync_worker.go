package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"lana/internal/amqp"
	"lana/internal/cache"
	"lana/internal/core"
	"lana/internal/sheets"
	"lana/internal/storage"
)

const uncategorized = "Uncategorized"

// Store is the slice of the ledger the exporter reads.
type Store interface {
	GetTransaction(ctx context.Context, id int64) (core.Transaction, error)
	GetUser(ctx context.Context, id int64) (core.User, error)
	GetCategory(ctx context.Context, id int64) (core.Category, error)
	EnsureCategory(ctx context.Context, name string, kind core.CategoryKind) (core.Category, error)
}

// SyncWorker exports posted ledger transactions to a spreadsheet.
type SyncWorker struct {
	store      Store
	writer     sheets.TransactionWriter
	categories sheets.CategoryReader
	exported   *cache.LRUCache[string]
}

func NewSyncWorker(store Store, writer sheets.TransactionWriter, categories sheets.CategoryReader) *SyncWorker {
	return &SyncWorker{
		store:      store,
		writer:     writer,
		categories: categories,
		exported:   cache.NewLRUCache[string](5000, 24*time.Hour),
	}
}

// Exported exposes the redelivery guard so it can be swept periodically.
func (w *SyncWorker) Exported() *cache.LRUCache[string] { return w.exported }

// HandleTransactionPosted appends the referenced transaction to the sheet.
// A redelivered event for an already exported transaction is acknowledged
// without writing a second row.
func (w *SyncWorker) HandleTransactionPosted(ctx context.Context, msg *amqp.TransactionPostedMessage) error {
	slog.InfoContext(ctx, "Processing transaction event",
		"event_id", msg.EventID,
		"transaction_id", msg.TransactionID)

	key := strconv.FormatInt(msg.TransactionID, 10)
	if ref, ok := w.exported.Get(key); ok {
		slog.InfoContext(ctx, "Transaction already exported, skipping",
			"transaction_id", msg.TransactionID,
			"row_ref", ref)
		return nil
	}

	row, err := w.buildRow(ctx, msg.TransactionID)
	if err != nil {
		return err
	}

	ref, err := w.writer.Append(ctx, row)
	if err != nil {
		return fmt.Errorf("append to sheets: %w", err)
	}
	w.exported.Set(key, ref)

	slog.InfoContext(ctx, "Successfully exported transaction",
		"transaction_id", msg.TransactionID,
		"row_ref", ref)
	return nil
}

func (w *SyncWorker) buildRow(ctx context.Context, id int64) (sheets.Row, error) {
	t, err := w.store.GetTransaction(ctx, id)
	if err != nil {
		return sheets.Row{}, fmt.Errorf("get transaction from storage: %w", err)
	}

	user := fmt.Sprintf("user #%d", t.UserID)
	if u, err := w.store.GetUser(ctx, t.UserID); err == nil {
		user = u.Name
	} else if !errors.Is(err, storage.ErrNotFound) {
		return sheets.Row{}, fmt.Errorf("get user: %w", err)
	}

	category := uncategorized
	if t.CategoryID != nil {
		c, err := w.store.GetCategory(ctx, *t.CategoryID)
		switch {
		case err == nil:
			category = c.Name
		case errors.Is(err, storage.ErrNotFound):
		default:
			return sheets.Row{}, fmt.Errorf("get category: %w", err)
		}
	}

	return sheets.Row{
		TransactionID: t.ID,
		Date:          core.DateOf(t.OccurredAt),
		User:          user,
		Kind:          t.Kind,
		Category:      category,
		Description:   t.Description,
		Amount:        t.Amount,
	}, nil
}

// SyncCategories seeds expense categories listed in the sheet into the ledger.
func (w *SyncWorker) SyncCategories(ctx context.Context) (int, error) {
	if w.categories == nil {
		return 0, nil
	}
	names, err := w.categories.ListCategories(ctx)
	if err != nil {
		return 0, fmt.Errorf("load categories from sheets: %w", err)
	}
	for _, name := range names {
		if _, err := w.store.EnsureCategory(ctx, name, core.CategoryExpense); err != nil {
			return 0, fmt.Errorf("ensure category %q: %w", name, err)
		}
	}
	slog.InfoContext(ctx, "Categories successfully synced", "count", len(names))
	return len(names), nil
}
