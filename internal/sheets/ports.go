package sheets

import (
	"context"
	"errors"
	"strings"

	"lana/internal/core"

	"github.com/shopspring/decimal"
)

// Row is one exported ledger transaction.
type Row struct {
	TransactionID int64
	Date          core.Date
	User          string
	Kind          core.TransactionKind
	Category      string
	Description   string
	Amount        decimal.Decimal
}

func (r Row) Validate() error {
	if r.TransactionID <= 0 {
		return errors.New("missing transaction id")
	}
	if err := r.Date.Validate(); err != nil {
		return err
	}
	if !r.Kind.Valid() {
		return core.ErrInvalidKind
	}
	if strings.TrimSpace(r.User) == "" {
		return core.ErrEmptyName
	}
	return core.ValidateAmount(r.Amount)
}

// Values renders the row in sheet column order:
// Date, User, Kind, Category, Description, Amount, Transaction ID.
func (r Row) Values() []any {
	return []any{
		r.Date.String(),
		r.User,
		string(r.Kind),
		r.Category,
		r.Description,
		r.Amount.StringFixed(2),
		r.TransactionID,
	}
}

// Ports for outbound adapters.
type (
	TransactionWriter interface {
		Append(ctx context.Context, r Row) (rowRef string, err error)
	}

	CategoryReader interface {
		ListCategories(ctx context.Context) ([]string, error)
	}
)
