package models

import "time"

// BudgetLedger is the per-owner running allocation of trading capital.
type BudgetLedger struct {
	OwnerID         string    `json:"-"`
	TotalBudget     float64   `json:"totalBudget"`
	ReserveFund     float64   `json:"reserveFund"`
	ActiveFund      float64   `json:"activeFund"`
	FundPerTrade    float64   `json:"fundPerTrade"`
	AvailableBudget float64   `json:"availableBudget"`
	TradesMade      int       `json:"tradesMade"`
	TotalProfitLoss float64   `json:"totalProfitLoss"`
	Version         int64     `json:"version"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Clone returns a copy safe to mutate.
func (l *BudgetLedger) Clone() *BudgetLedger {
	if l == nil {
		return nil
	}
	c := *l
	return &c
}
