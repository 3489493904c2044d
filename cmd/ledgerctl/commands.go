package main

import (
	"fmt"
	"strings"

	"lana/internal/core"
	"lana/internal/services"
	"lana/internal/storage"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func (a *app) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := a.openStore()
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			defer store.Close()
			fmt.Fprintf(cmd.OutOrStdout(), "database %s is up to date\n", a.dbPath())
			return nil
		},
	}
}

func (a *app) runDueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run-due",
		Short: "Execute fixed payments due on or before --date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			now, err := a.referenceTime()
			if err != nil {
				return err
			}
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			engine := services.NewPaymentEngine(store,
				services.WithBudgetCalculator(services.NewBudgetCalculator(store)),
				services.WithNotifier(a.dispatcher()),
				services.WithEventPublisher(a.publisher()))
			summary, err := engine.ProcessDue(cmd.Context(), now)
			if err != nil {
				return err
			}
			return printJSON(cmd, summary)
		},
	}
}

func (a *app) warnUpcomingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "warn-upcoming",
		Short: "Warn users about fixed payments that would fail in a few days",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			lead, _ := cmd.Flags().GetInt("lead-days")
			now, err := a.referenceTime()
			if err != nil {
				return err
			}
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			engine := services.NewPaymentEngine(store,
				services.WithBudgetCalculator(services.NewBudgetCalculator(store)),
				services.WithNotifier(a.dispatcher()),
				services.WithWarningLeadDays(lead))
			summary, err := engine.WarnUpcoming(cmd.Context(), now)
			if err != nil {
				return err
			}
			return printJSON(cmd, summary)
		},
	}
	cmd.Flags().Int("lead-days", 2, "days ahead to look for upcoming payments")
	return cmd
}

func (a *app) sweepBudgetsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep-budgets",
		Short: "Alert users whose monthly spending crossed a budget threshold",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			percent, _ := cmd.Flags().GetInt("percent")
			now, err := a.referenceTime()
			if err != nil {
				return err
			}
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			summary, err := services.NewThresholdSweep(store, a.dispatcher(), percent).Sweep(cmd.Context(), now)
			if err != nil {
				return err
			}
			return printJSON(cmd, summary)
		},
	}
	cmd.Flags().Int("percent", 80, "alert threshold as a percentage of the budget")
	return cmd
}

func (a *app) postCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:       "post income|expense",
		Short:     "Post a manual income or expense",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"income", "expense"},
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, _ := cmd.Flags().GetInt64("user")
			rawAmount, _ := cmd.Flags().GetString("amount")
			desc, _ := cmd.Flags().GetString("description")

			amount, err := core.ParseAmount(rawAmount)
			if err != nil {
				return fmt.Errorf("invalid --amount %q: %w", rawAmount, err)
			}
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			ledger := services.NewLedgerService(store, a.publisher())
			var t core.Transaction
			if args[0] == "income" {
				t, err = ledger.PostIncome(cmd.Context(), userID, amount, desc)
			} else {
				t, err = ledger.PostExpense(cmd.Context(), userID, amount, desc)
			}
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{
				"transaction_id": t.ID,
				"kind":           t.Kind,
				"amount":         t.Amount.StringFixed(2),
				"description":    t.Description,
			})
		},
	}
	cmd.Flags().Int64("user", 0, "user id")
	cmd.Flags().String("amount", "", "amount, e.g. 12.50")
	cmd.Flags().String("description", "", "description, also used as the category name")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("description")
	return cmd
}

func (a *app) commitmentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "commitment",
		Short: "Report a user's monthly fixed-payment obligations against their balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			userID, _ := cmd.Flags().GetInt64("user")
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			report, err := services.Commitment(cmd.Context(), store, userID)
			if err != nil {
				return err
			}
			return printJSON(cmd, report)
		},
	}
	cmd.Flags().Int64("user", 0, "user id")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func (a *app) userCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "user", Short: "Manage users"}
	add := &cobra.Command{
		Use:   "add",
		Short: "Create a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			name, _ := cmd.Flags().GetString("name")
			email, _ := cmd.Flags().GetString("email")
			phone, _ := cmd.Flags().GetString("phone")
			rawBalance, _ := cmd.Flags().GetString("balance")

			balance, err := parseBalance(rawBalance)
			if err != nil {
				return err
			}
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			u, err := store.CreateUser(cmd.Context(), storage.CreateUserParams{
				Name: name, Email: email, Phone: phone, Balance: balance,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{"id": u.ID, "email": u.Email, "balance": u.Balance.StringFixed(2)})
		},
	}
	add.Flags().String("name", "", "display name")
	add.Flags().String("email", "", "email address")
	add.Flags().String("phone", "", "phone number for SMS notifications")
	add.Flags().String("balance", "0", "opening balance")
	_ = add.MarkFlagRequired("name")
	_ = add.MarkFlagRequired("email")
	cmd.AddCommand(add)
	return cmd
}

func (a *app) budgetCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "budget", Short: "Manage monthly category budgets"}
	set := &cobra.Command{
		Use:   "set",
		Short: "Set a user's monthly budget for a category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			userID, _ := cmd.Flags().GetInt64("user")
			category, _ := cmd.Flags().GetString("category")
			rawAmount, _ := cmd.Flags().GetString("amount")
			month, _ := cmd.Flags().GetString("month")

			amount, err := parseBalance(rawAmount)
			if err != nil {
				return err
			}
			ym, err := core.ParseDate(month + "-01")
			if err != nil {
				return fmt.Errorf("invalid --month %q: want YYYY-MM", month)
			}
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			c, err := store.EnsureCategory(cmd.Context(), category, core.CategoryExpense)
			if err != nil {
				return err
			}
			b, err := store.UpsertBudget(cmd.Context(), core.Budget{
				UserID:        userID,
				CategoryID:    c.ID,
				MonthlyAmount: amount,
				Month:         int(ym.Month()),
				Year:          ym.Year(),
			})
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{
				"id": b.ID, "category_id": c.ID, "month": b.Month, "year": b.Year,
				"monthly_amount": b.MonthlyAmount.StringFixed(2),
			})
		},
	}
	set.Flags().Int64("user", 0, "user id")
	set.Flags().String("category", "", "category name")
	set.Flags().String("amount", "", "monthly amount")
	set.Flags().String("month", "", "month as YYYY-MM")
	for _, f := range []string{"user", "category", "amount", "month"} {
		_ = set.MarkFlagRequired(f)
	}
	cmd.AddCommand(set)
	return cmd
}

func (a *app) fixedPaymentCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "fixed-payment", Short: "Manage fixed payments"}
	add := &cobra.Command{
		Use:   "add",
		Short: "Schedule a fixed payment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			userID, _ := cmd.Flags().GetInt64("user")
			desc, _ := cmd.Flags().GetString("description")
			rawAmount, _ := cmd.Flags().GetString("amount")
			category, _ := cmd.Flags().GetString("category")
			recurrence, _ := cmd.Flags().GetString("recurrence")
			start, _ := cmd.Flags().GetString("start")

			amount, err := core.ParseAmount(rawAmount)
			if err != nil {
				return fmt.Errorf("invalid --amount %q: %w", rawAmount, err)
			}
			first, err := core.ParseDate(start)
			if err != nil {
				return fmt.Errorf("invalid --start %q: %w", start, err)
			}
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			p := core.FixedPayment{
				UserID:      userID,
				Description: desc,
				Amount:      amount,
				Recurrence:  core.RecurrenceType(strings.ToLower(recurrence)),
				NextRunDate: first,
				Active:      true,
			}
			if category != "" {
				c, err := store.EnsureCategory(cmd.Context(), category, core.CategoryExpense)
				if err != nil {
					return err
				}
				p.CategoryID = &c.ID
			}
			p, err = store.CreateFixedPayment(cmd.Context(), p)
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{
				"id": p.ID, "next_run_date": p.NextRunDate.String(), "recurrence": p.Recurrence,
			})
		},
	}
	add.Flags().Int64("user", 0, "user id")
	add.Flags().String("description", "", "payment description")
	add.Flags().String("amount", "", "amount per run")
	add.Flags().String("category", "", "budget category (optional)")
	add.Flags().String("recurrence", string(core.RecurrenceMonthly), "none, weekly or monthly")
	add.Flags().String("start", "", "first run date YYYY-MM-DD")
	for _, f := range []string{"user", "description", "amount", "start"} {
		_ = add.MarkFlagRequired(f)
	}
	cmd.AddCommand(add)
	return cmd
}

// parseBalance accepts zero, unlike ParseAmount.
func parseBalance(s string) (decimal.Decimal, error) {
	if strings.TrimSpace(s) == "" || strings.TrimSpace(s) == "0" {
		return decimal.Zero, nil
	}
	return core.ParseAmount(s)
}
