package repository

import (
	"context"
	"fmt"

	"github.com/kjannette/mtf-backend/internal/models"
)

func (t *pgTx) GetLedger(ctx context.Context) (*models.BudgetLedger, error) {
	var l models.BudgetLedger
	err := t.tx.QueryRow(ctx,
		`SELECT owner_id, total_budget, reserve_fund, active_fund, fund_per_trade,
		        available_budget, trades_made, total_profit_loss, version, created_at, updated_at
		 FROM budget_ledgers WHERE owner_id = $1 FOR UPDATE`, t.owner,
	).Scan(
		&l.OwnerID, &l.TotalBudget, &l.ReserveFund, &l.ActiveFund, &l.FundPerTrade,
		&l.AvailableBudget, &l.TradesMade, &l.TotalProfitLoss, &l.Version, &l.CreatedAt, &l.UpdatedAt,
	)
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get ledger: %w", err)
	}
	return &l, nil
}

// SaveLedger inserts a new ledger (Version 0) or updates the stored one if it
// still carries l.Version. On success l.Version is advanced.
func (t *pgTx) SaveLedger(ctx context.Context, l *models.BudgetLedger) error {
	if l.Version == 0 {
		_, err := t.tx.Exec(ctx,
			`INSERT INTO budget_ledgers
			 (owner_id, total_budget, reserve_fund, active_fund, fund_per_trade,
			  available_budget, trades_made, total_profit_loss, version, created_at, updated_at)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,1,$9,$10)`,
			t.owner, l.TotalBudget, l.ReserveFund, l.ActiveFund, l.FundPerTrade,
			l.AvailableBudget, l.TradesMade, l.TotalProfitLoss, l.CreatedAt, l.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert ledger: %w", err)
		}
		l.Version = 1
		return nil
	}

	tag, err := t.tx.Exec(ctx,
		`UPDATE budget_ledgers SET
		   total_budget = $3, reserve_fund = $4, active_fund = $5, fund_per_trade = $6,
		   available_budget = $7, trades_made = $8, total_profit_loss = $9,
		   updated_at = $10, version = version + 1
		 WHERE owner_id = $1 AND version = $2`,
		t.owner, l.Version, l.TotalBudget, l.ReserveFund, l.ActiveFund, l.FundPerTrade,
		l.AvailableBudget, l.TradesMade, l.TotalProfitLoss, l.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update ledger: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrVersionConflict
	}
	l.Version++
	return nil
}
