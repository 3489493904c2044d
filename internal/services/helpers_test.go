package services

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"lana/internal/core"
	"lana/internal/storage"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type sentNotification struct {
	UserID  int64
	Subject string
	Message string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (n *recordingNotifier) Notify(_ context.Context, u core.User, subject, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{UserID: u.ID, Subject: subject, Message: message})
}

func (n *recordingNotifier) subjects() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.sent))
	for _, s := range n.sent {
		out = append(out, s.Subject)
	}
	return out
}

type recordingPublisher struct {
	mu        sync.Mutex
	published []core.Transaction
	err       error
}

func (p *recordingPublisher) PublishTransactionPosted(_ context.Context, t core.Transaction) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, t)
	return p.err
}

var errBrokerDown = errors.New("broker down")

type fixture struct {
	t     *testing.T
	ctx   context.Context
	path  string
	store *storage.SQLiteRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledger.db")
	store, err := storage.NewSQLiteRepository(path)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return &fixture{t: t, ctx: context.Background(), path: path, store: store}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func (f *fixture) user(email, balance string) core.User {
	f.t.Helper()
	u, err := f.store.CreateUser(f.ctx, storage.CreateUserParams{Name: email, Email: email, Balance: dec(balance)})
	require.NoError(f.t, err)
	return u
}

func (f *fixture) category(name string) core.Category {
	f.t.Helper()
	c, err := f.store.CreateCategory(f.ctx, name, core.CategoryExpense)
	require.NoError(f.t, err)
	return c
}

func (f *fixture) budget(u core.User, c core.Category, amount string, year, month int) {
	f.t.Helper()
	_, err := f.store.UpsertBudget(f.ctx, core.Budget{
		UserID: u.ID, CategoryID: c.ID, MonthlyAmount: dec(amount), Month: month, Year: year,
	})
	require.NoError(f.t, err)
}

func (f *fixture) payment(u core.User, desc, amount string, category *core.Category, r core.RecurrenceType, next core.Date) core.FixedPayment {
	f.t.Helper()
	p := core.FixedPayment{
		UserID: u.ID, Description: desc, Amount: dec(amount),
		Recurrence: r, NextRunDate: next, Active: true,
	}
	if category != nil {
		id := category.ID
		p.CategoryID = &id
	}
	p, err := f.store.CreateFixedPayment(f.ctx, p)
	require.NoError(f.t, err)
	return p
}

func (f *fixture) reload(p core.FixedPayment) core.FixedPayment {
	f.t.Helper()
	got, err := f.store.GetFixedPayment(f.ctx, p.ID)
	require.NoError(f.t, err)
	return got
}

func (f *fixture) balance(u core.User) decimal.Decimal {
	f.t.Helper()
	got, err := f.store.GetUser(f.ctx, u.ID)
	require.NoError(f.t, err)
	return got.Balance
}

func (f *fixture) transactions(u core.User) []core.Transaction {
	f.t.Helper()
	txs, err := f.store.ListTransactions(f.ctx, u.ID)
	require.NoError(f.t, err)
	return txs
}

// orphan removes the user row behind the store's back, leaving its
// payments in place.
func (f *fixture) orphan(u core.User) {
	f.t.Helper()
	db, err := sql.Open("sqlite", f.path)
	require.NoError(f.t, err)
	defer db.Close()
	db.SetMaxOpenConns(1)
	_, err = db.ExecContext(f.ctx, `PRAGMA foreign_keys = OFF`)
	require.NoError(f.t, err)
	_, err = db.ExecContext(f.ctx, `DELETE FROM users WHERE id = ?`, u.ID)
	require.NoError(f.t, err)
}

// execRaw runs a statement on a separate connection to the same file.
func (f *fixture) execRaw(query string) {
	f.t.Helper()
	db, err := sql.Open("sqlite", f.path)
	require.NoError(f.t, err)
	defer db.Close()
	_, err = db.ExecContext(f.ctx, query)
	require.NoError(f.t, err)
}

var est = time.FixedZone("EST", -5*60*60)
