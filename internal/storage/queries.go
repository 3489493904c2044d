package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"lana/internal/core"

	"github.com/shopspring/decimal"
)

// TimestampLayout is fixed width so TEXT comparisons order like time.
const TimestampLayout = "2006-01-02T15:04:05Z"

var (
	ErrNotFound = errors.New("not found")
	// ErrConflict means a row changed between read and write.
	ErrConflict = errors.New("concurrent modification")
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Queries holds every statement the ledger runs. It works the same on the
// pool and inside a transaction.
type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

func parseTimestamp(s string) (time.Time, error) {
	return time.Parse(TimestampLayout, s)
}

func nullableID(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}

func idPtr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// Users

type CreateUserParams struct {
	Name    string
	Email   string
	Phone   string
	Balance decimal.Decimal
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (core.User, error) {
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO users (name, email, phone, balance_cents) VALUES (?, ?, ?, ?)`,
		arg.Name, strings.ToLower(strings.TrimSpace(arg.Email)), arg.Phone, core.ToCents(arg.Balance))
	if err != nil {
		return core.User{}, fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.User{}, fmt.Errorf("user id: %w", err)
	}
	return q.GetUser(ctx, id)
}

const userColumns = `id, name, email, phone, balance_cents, version, created_at`

func scanUser(row interface{ Scan(...any) error }) (core.User, error) {
	var (
		u         core.User
		cents     int64
		createdAt string
	)
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Phone, &cents, &u.Version, &createdAt); err != nil {
		return core.User{}, err
	}
	u.Balance = core.FromCents(cents)
	if t, err := parseTimestamp(createdAt); err == nil {
		u.CreatedAt = t
	}
	return u, nil
}

func (q *Queries) GetUser(ctx context.Context, id int64) (core.User, error) {
	u, err := scanUser(q.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get user %d: %w", id, err)
	}
	return u, nil
}

func (q *Queries) ListUsers(ctx context.Context) ([]core.User, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []core.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (q *Queries) DeleteUser(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user %d: %w", id, err)
	}
	return nil
}

// UpdateBalance writes a new balance if the row still carries
// expectedVersion, and bumps the version. ErrConflict otherwise.
func (q *Queries) UpdateBalance(ctx context.Context, userID int64, balance decimal.Decimal, expectedVersion int64) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE users SET balance_cents = ?, version = version + 1 WHERE id = ? AND version = ?`,
		core.ToCents(balance), userID, expectedVersion)
	if err != nil {
		return fmt.Errorf("update balance: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update balance: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("balance of user %d: %w", userID, ErrConflict)
	}
	return nil
}

// Categories

func (q *Queries) CreateCategory(ctx context.Context, name string, kind core.CategoryKind) (core.Category, error) {
	c := core.Category{Name: strings.TrimSpace(name), Kind: kind}
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	res, err := q.db.ExecContext(ctx, `INSERT INTO categories (name, kind) VALUES (?, ?)`, c.Name, string(c.Kind))
	if err != nil {
		return core.Category{}, fmt.Errorf("insert category: %w", err)
	}
	if c.ID, err = res.LastInsertId(); err != nil {
		return core.Category{}, fmt.Errorf("category id: %w", err)
	}
	return c, nil
}

func (q *Queries) GetCategory(ctx context.Context, id int64) (core.Category, error) {
	var c core.Category
	err := q.db.QueryRowContext(ctx, `SELECT id, name, kind FROM categories WHERE id = ?`, id).
		Scan(&c.ID, &c.Name, &c.Kind)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, fmt.Errorf("category %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("get category %d: %w", id, err)
	}
	return c, nil
}

func (q *Queries) GetCategoryByName(ctx context.Context, name string) (core.Category, error) {
	var c core.Category
	err := q.db.QueryRowContext(ctx, `SELECT id, name, kind FROM categories WHERE name = ?`, strings.TrimSpace(name)).
		Scan(&c.ID, &c.Name, &c.Kind)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, fmt.Errorf("category %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("get category %q: %w", name, err)
	}
	return c, nil
}

// EnsureCategory returns the category called name, creating it with kind
// when missing. An existing category keeps its kind.
func (q *Queries) EnsureCategory(ctx context.Context, name string, kind core.CategoryKind) (core.Category, error) {
	c, err := q.GetCategoryByName(ctx, name)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return core.Category{}, err
	}
	return q.CreateCategory(ctx, name, kind)
}

// Budgets

// UpsertBudget sets the monthly amount for (user, category, month, year).
func (q *Queries) UpsertBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}
	err := q.db.QueryRowContext(ctx, `
		INSERT INTO budgets (user_id, category_id, monthly_amount_cents, month, year)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id, category_id, month, year)
		DO UPDATE SET monthly_amount_cents = excluded.monthly_amount_cents
		RETURNING id`,
		b.UserID, b.CategoryID, core.ToCents(b.MonthlyAmount), b.Month, b.Year).Scan(&b.ID)
	if err != nil {
		return core.Budget{}, fmt.Errorf("upsert budget: %w", err)
	}
	return b, nil
}

const budgetColumns = `id, user_id, category_id, monthly_amount_cents, month, year`

func scanBudget(row interface{ Scan(...any) error }) (core.Budget, error) {
	var (
		b     core.Budget
		cents int64
	)
	if err := row.Scan(&b.ID, &b.UserID, &b.CategoryID, &cents, &b.Month, &b.Year); err != nil {
		return core.Budget{}, err
	}
	b.MonthlyAmount = core.FromCents(cents)
	return b, nil
}

// FindBudget returns the budget for the given key, or ErrNotFound.
func (q *Queries) FindBudget(ctx context.Context, userID, categoryID int64, year, month int) (core.Budget, error) {
	b, err := scanBudget(q.db.QueryRowContext(ctx,
		`SELECT `+budgetColumns+` FROM budgets WHERE user_id = ? AND category_id = ? AND month = ? AND year = ?`,
		userID, categoryID, month, year))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Budget{}, ErrNotFound
	}
	if err != nil {
		return core.Budget{}, fmt.Errorf("find budget: %w", err)
	}
	return b, nil
}

func (q *Queries) ListBudgetsForMonth(ctx context.Context, userID int64, year, month int) ([]core.Budget, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+budgetColumns+` FROM budgets WHERE user_id = ? AND month = ? AND year = ? ORDER BY category_id`,
		userID, month, year)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	var budgets []core.Budget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		budgets = append(budgets, b)
	}
	return budgets, rows.Err()
}

// Transactions

func (q *Queries) InsertTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO transactions (user_id, kind, amount_cents, category_id, description, counterparty_id, status, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.UserID, string(t.Kind), core.ToCents(t.Amount), nullableID(t.CategoryID), t.Description,
		nullableID(t.CounterpartyID), string(t.Status), formatTimestamp(t.OccurredAt))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}
	if t.ID, err = res.LastInsertId(); err != nil {
		return core.Transaction{}, fmt.Errorf("transaction id: %w", err)
	}
	t.OccurredAt = t.OccurredAt.UTC().Truncate(time.Second)
	return t, nil
}

const transactionColumns = `id, user_id, kind, amount_cents, category_id, description, counterparty_id, status, occurred_at`

func scanTransaction(row interface{ Scan(...any) error }) (core.Transaction, error) {
	var (
		t            core.Transaction
		cents        int64
		category     sql.NullInt64
		counterparty sql.NullInt64
		occurredAt   string
	)
	if err := row.Scan(&t.ID, &t.UserID, &t.Kind, &cents, &category, &t.Description, &counterparty, &t.Status, &occurredAt); err != nil {
		return core.Transaction{}, err
	}
	t.Amount = core.FromCents(cents)
	t.CategoryID = idPtr(category)
	t.CounterpartyID = idPtr(counterparty)
	ts, err := parseTimestamp(occurredAt)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parse occurred_at %q: %w", occurredAt, err)
	}
	t.OccurredAt = ts
	return t, nil
}

func (q *Queries) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	t, err := scanTransaction(q.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, fmt.Errorf("transaction %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %d: %w", id, err)
	}
	return t, nil
}

func (q *Queries) ListTransactions(ctx context.Context, userID int64) ([]core.Transaction, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE user_id = ? ORDER BY occurred_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// SumExpenses totals expense transactions of a user in a category for the
// calendar month of (year, month). Every expense counts, whatever its status.
func (q *Queries) SumExpenses(ctx context.Context, userID, categoryID int64, year, month int) (decimal.Decimal, error) {
	start, end := core.NewDate(year, month, 1).MonthBounds()
	var total int64
	err := q.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount_cents), 0) FROM transactions
		WHERE user_id = ? AND category_id = ? AND kind = 'expense'
		  AND occurred_at >= ? AND occurred_at < ?`,
		userID, categoryID, formatTimestamp(start.Time), formatTimestamp(end.Time)).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum expenses: %w", err)
	}
	return core.FromCents(total), nil
}

// Fixed payments

func (q *Queries) CreateFixedPayment(ctx context.Context, p core.FixedPayment) (core.FixedPayment, error) {
	if err := p.Validate(); err != nil {
		return core.FixedPayment{}, err
	}
	if p.ScheduledFor.IsZero() {
		p.ScheduledFor = p.NextRunDate
	}
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO fixed_payments (user_id, description, amount_cents, category_id, recurrence, scheduled_for, next_run_date, active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.UserID, p.Description, core.ToCents(p.Amount), nullableID(p.CategoryID), string(p.Recurrence),
		p.ScheduledFor.String(), p.NextRunDate.String(), boolInt(p.Active))
	if err != nil {
		return core.FixedPayment{}, fmt.Errorf("insert fixed payment: %w", err)
	}
	if p.ID, err = res.LastInsertId(); err != nil {
		return core.FixedPayment{}, fmt.Errorf("fixed payment id: %w", err)
	}
	return p, nil
}

const fixedPaymentColumns = `id, user_id, description, amount_cents, category_id, recurrence, scheduled_for, next_run_date, active`

func scanFixedPayment(row interface{ Scan(...any) error }) (core.FixedPayment, error) {
	var (
		p            core.FixedPayment
		cents        int64
		category     sql.NullInt64
		scheduledFor string
		nextRun      string
		active       int64
	)
	if err := row.Scan(&p.ID, &p.UserID, &p.Description, &cents, &category, &p.Recurrence, &scheduledFor, &nextRun, &active); err != nil {
		return core.FixedPayment{}, err
	}
	var err error
	if p.ScheduledFor, err = core.ParseDate(scheduledFor); err != nil {
		return core.FixedPayment{}, fmt.Errorf("parse scheduled_for %q: %w", scheduledFor, err)
	}
	if p.NextRunDate, err = core.ParseDate(nextRun); err != nil {
		return core.FixedPayment{}, fmt.Errorf("parse next_run_date %q: %w", nextRun, err)
	}
	p.Amount = core.FromCents(cents)
	p.CategoryID = idPtr(category)
	p.Active = active != 0
	return p, nil
}

func (q *Queries) listFixedPayments(ctx context.Context, where string, args ...any) ([]core.FixedPayment, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+fixedPaymentColumns+` FROM fixed_payments WHERE `+where+` ORDER BY next_run_date, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("list fixed payments: %w", err)
	}
	defer rows.Close()

	var out []core.FixedPayment
	for rows.Next() {
		p, err := scanFixedPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan fixed payment: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (q *Queries) GetFixedPayment(ctx context.Context, id int64) (core.FixedPayment, error) {
	p, err := scanFixedPayment(q.db.QueryRowContext(ctx, `SELECT `+fixedPaymentColumns+` FROM fixed_payments WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.FixedPayment{}, fmt.Errorf("fixed payment %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return core.FixedPayment{}, fmt.Errorf("get fixed payment %d: %w", id, err)
	}
	return p, nil
}

// ListDueFixedPayments returns active payments whose next run is on or before day.
func (q *Queries) ListDueFixedPayments(ctx context.Context, day core.Date) ([]core.FixedPayment, error) {
	return q.listFixedPayments(ctx, `active = 1 AND next_run_date <= ?`, day.String())
}

// ListFixedPaymentsDueOn returns active payments whose next run is exactly day.
func (q *Queries) ListFixedPaymentsDueOn(ctx context.Context, day core.Date) ([]core.FixedPayment, error) {
	return q.listFixedPayments(ctx, `active = 1 AND next_run_date = ?`, day.String())
}

func (q *Queries) ListActiveFixedPaymentsByUser(ctx context.Context, userID int64) ([]core.FixedPayment, error) {
	return q.listFixedPayments(ctx, `active = 1 AND user_id = ?`, userID)
}

// AdvanceFixedPayment moves a payment from expectedNext to next (or
// deactivates it). It only applies while the row is still active at
// expectedNext, so a second scan that lost the race gets ErrConflict.
func (q *Queries) AdvanceFixedPayment(ctx context.Context, id int64, expectedNext, next core.Date, active bool) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE fixed_payments SET next_run_date = ?, active = ?
		WHERE id = ? AND next_run_date = ? AND active = 1`,
		next.String(), boolInt(active), id, expectedNext.String())
	if err != nil {
		return fmt.Errorf("advance fixed payment %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("advance fixed payment %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("fixed payment %d: %w", id, ErrConflict)
	}
	return nil
}

// Leases

// AcquireLease takes or renews the named lease for owner until now+ttl.
// It fails without error when another owner holds an unexpired lease.
func (q *Queries) AcquireLease(ctx context.Context, name, owner string, now time.Time, ttl time.Duration) (bool, error) {
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO scheduler_leases (name, owner, expires_at) VALUES (?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET owner = excluded.owner, expires_at = excluded.expires_at
		WHERE scheduler_leases.owner = excluded.owner OR scheduler_leases.expires_at <= ?`,
		name, owner, formatTimestamp(now.Add(ttl)), formatTimestamp(now))
	if err != nil {
		return false, fmt.Errorf("acquire lease %s: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("acquire lease %s: %w", name, err)
	}
	return n > 0, nil
}

func (q *Queries) ReleaseLease(ctx context.Context, name, owner string) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM scheduler_leases WHERE name = ? AND owner = ?`, name, owner)
	if err != nil {
		return fmt.Errorf("release lease %s: %w", name, err)
	}
	return nil
}
