package services

import (
	"testing"

	"lana/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerService_PostIncomeAndExpense(t *testing.T) {
	f := newFixture(t)
	pub := &recordingPublisher{}
	u := f.user("ana@example.com", "0")
	svc := NewLedgerService(f.store, pub)

	income, err := svc.PostIncome(f.ctx, u.ID, dec("1500"), "Salary")
	require.NoError(t, err)
	assert.Equal(t, core.TransactionIncome, income.Kind)

	expense, err := svc.PostExpense(f.ctx, u.ID, dec("200.50"), "Groceries")
	require.NoError(t, err)
	assert.Equal(t, core.TransactionExpense, expense.Kind)

	assert.True(t, f.balance(u).Equal(dec("1299.50")))
	assert.Len(t, pub.published, 2)

	cat, err := f.store.GetCategoryByName(f.ctx, "Groceries")
	require.NoError(t, err)
	assert.Equal(t, core.CategoryExpense, cat.Kind)
	require.NotNil(t, expense.CategoryID)
	assert.Equal(t, cat.ID, *expense.CategoryID)

	salary, err := f.store.GetCategoryByName(f.ctx, "Salary")
	require.NoError(t, err)
	assert.Equal(t, core.CategoryIncome, salary.Kind)
}

func TestLedgerService_RejectsOverdraft(t *testing.T) {
	f := newFixture(t)
	u := f.user("ana@example.com", "10")
	svc := NewLedgerService(f.store, nil)

	_, err := svc.PostExpense(f.ctx, u.ID, dec("10.01"), "Dinner")
	require.ErrorIs(t, err, ErrInsufficientBalance)
	assert.True(t, f.balance(u).Equal(dec("10")))
	assert.Empty(t, f.transactions(u))

	_, err = f.store.GetCategoryByName(f.ctx, "Dinner")
	assert.Error(t, err, "rolled back with the posting")
}

func TestLedgerService_Validation(t *testing.T) {
	f := newFixture(t)
	u := f.user("ana@example.com", "10")
	svc := NewLedgerService(f.store, nil)

	_, err := svc.PostIncome(f.ctx, u.ID, dec("0"), "Nothing")
	require.ErrorIs(t, err, core.ErrInvalidAmount)
	_, err = svc.PostIncome(f.ctx, u.ID, dec("5"), "  ")
	require.ErrorIs(t, err, core.ErrEmptyDescription)
}

func TestLedgerService_PublishFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	u := f.user("ana@example.com", "10")
	svc := NewLedgerService(f.store, &recordingPublisher{err: errBrokerDown})

	_, err := svc.PostIncome(f.ctx, u.ID, dec("5"), "Gift")
	require.NoError(t, err)
	assert.True(t, f.balance(u).Equal(dec("15")))
}
