package service

import (
	"context"

	"github.com/kjannette/mtf-backend/internal/ledger"
	"github.com/kjannette/mtf-backend/internal/models"
	"github.com/kjannette/mtf-backend/internal/repository"
)

// BudgetView is the ledger plus its derived utilization. Ledger is nil until
// the owner sets up a budget.
type BudgetView struct {
	Configured bool                 `json:"configured"`
	Ledger     *models.BudgetLedger `json:"ledger,omitempty"`
	Stats      ledger.Stats         `json:"stats"`
	MaxTrades  int                  `json:"maxTrades"`
}

func view(l *models.BudgetLedger) BudgetView {
	v := BudgetView{Ledger: l, MaxTrades: ledger.MaxOpenTrades}
	if l != nil {
		v.Configured = true
		v.Stats = ledger.Utilization(l)
	}
	return v
}

// Budget returns the owner's ledger, or an unconfigured view.
func (s *Service) Budget(ctx context.Context, owner string) (BudgetView, error) {
	var l *models.BudgetLedger
	err := s.store.InTx(ctx, owner, func(tx repository.Tx) error {
		var err error
		l, err = tx.GetLedger(ctx)
		return err
	})
	if err != nil {
		return BudgetView{}, err
	}
	return view(l), nil
}

// SetupBudget allocates totalBudget. Running balance, realized P&L and open
// trade count carry over when a ledger already exists.
func (s *Service) SetupBudget(ctx context.Context, owner string, totalBudget float64) (BudgetView, error) {
	var out *models.BudgetLedger
	err := s.store.InTx(ctx, owner, func(tx repository.Tx) error {
		existing, err := tx.GetLedger(ctx)
		if err != nil {
			return err
		}
		l, err := ledger.Allocate(existing, owner, totalBudget, s.now())
		if err != nil {
			return err
		}
		l.UpdatedAt = s.now()
		if err := tx.SaveLedger(ctx, l); err != nil {
			return err
		}
		out = l
		return nil
	})
	if err != nil {
		return BudgetView{}, err
	}
	s.log.Info().Str("owner", owner).Float64("total", out.TotalBudget).
		Float64("per_trade", out.FundPerTrade).Msg("Budget allocated")
	return view(out), nil
}

func budgetPerTrade(l *models.BudgetLedger) float64 {
	if l == nil {
		return 0
	}
	return l.FundPerTrade
}
