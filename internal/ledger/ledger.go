// Package ledger holds the budget allocation state transitions. Every
// function returns a new ledger and leaves its argument untouched, so a
// rejected operation can never leave partial state behind.
package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kjannette/mtf-backend/internal/calc"
	"github.com/kjannette/mtf-backend/internal/models"
)

const (
	// MaxOpenTrades is the number of slots the active fund is divided into.
	MaxOpenTrades = 12
	// ReserveShare of the total budget is held back; ActiveShare funds trades.
	ReserveShare = 0.25
	ActiveShare  = 0.75
)

var (
	// ErrInsufficientBudget rejects a reservation larger than the available budget.
	ErrInsufficientBudget = errors.New("insufficient budget")
	// ErrTradeLimitReached rejects a new trade while MaxOpenTrades are open.
	ErrTradeLimitReached = errors.New("trade limit reached")
)

func dec(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

func flt(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

// Allocate splits totalBudget into reserve and active funds. For an existing
// ledger the running balance, realized P&L and open-trade count carry over.
func Allocate(existing *models.BudgetLedger, ownerID string, totalBudget float64, now time.Time) (*models.BudgetLedger, error) {
	if totalBudget <= 0 {
		return nil, &calc.ValidationError{Field: "totalBudget", Message: "must be greater than 0"}
	}

	total := dec(totalBudget)
	active := total.Mul(dec(ActiveShare))

	l := &models.BudgetLedger{
		OwnerID:         ownerID,
		TotalBudget:     totalBudget,
		ReserveFund:     flt(total.Mul(dec(ReserveShare))),
		ActiveFund:      flt(active),
		FundPerTrade:    flt(active.Div(decimal.NewFromInt(MaxOpenTrades))),
		AvailableBudget: flt(active),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if existing != nil {
		l.AvailableBudget = existing.AvailableBudget
		l.TotalProfitLoss = existing.TotalProfitLoss
		l.TradesMade = existing.TradesMade
		l.Version = existing.Version
		l.CreatedAt = existing.CreatedAt
	}
	return l, nil
}

// ReserveForNewTrade deducts the trade's own fund and margin from the
// available balance and takes one trade slot.
func ReserveForNewTrade(l *models.BudgetLedger, ownFund, additionalMargin float64) (*models.BudgetLedger, error) {
	required := dec(ownFund).Add(dec(additionalMargin))
	available := dec(l.AvailableBudget)

	if available.LessThan(required) {
		return nil, fmt.Errorf("%w: need ₹%s, available ₹%s",
			ErrInsufficientBudget, required.StringFixed(2), available.StringFixed(2))
	}
	if l.TradesMade >= MaxOpenTrades {
		return nil, fmt.Errorf("%w: %d of %d trades already open",
			ErrTradeLimitReached, l.TradesMade, MaxOpenTrades)
	}

	out := l.Clone()
	out.AvailableBudget = flt(available.Sub(required))
	out.TradesMade++
	return out, nil
}

// RestoreOnClosure returns the trade's capital plus its realized P&L to the
// available balance. Apply it once, on the open to closed transition.
func RestoreOnClosure(l *models.BudgetLedger, t *models.Trade) *models.BudgetLedger {
	pl := dec(t.NetProfitLoss)
	restoration := dec(t.OwnFund).Add(dec(t.AdditionalMargin)).Add(pl)

	out := l.Clone()
	out.AvailableBudget = flt(dec(l.AvailableBudget).Add(restoration))
	out.TotalProfitLoss = flt(dec(l.TotalProfitLoss).Add(pl))
	out.TradesMade = releaseSlot(l.TradesMade)
	return out
}

// ReleaseOnDelete undoes the reservation of an open trade that is removed
// without being closed. Closed trades were already settled.
func ReleaseOnDelete(l *models.BudgetLedger, t *models.Trade) *models.BudgetLedger {
	out := l.Clone()
	if t.IsClosed() {
		return out
	}
	out.AvailableBudget = flt(dec(l.AvailableBudget).Add(dec(t.OwnFund)).Add(dec(t.AdditionalMargin)))
	out.TradesMade = releaseSlot(l.TradesMade)
	return out
}

// AdjustReservation moves a change in an open trade's own fund or margin in
// or out of the available balance. Margin top-ups draw on the reserve, so the
// balance may dip below zero here.
func AdjustReservation(l *models.BudgetLedger, delta float64) *models.BudgetLedger {
	out := l.Clone()
	out.AvailableBudget = flt(dec(l.AvailableBudget).Sub(dec(delta)))
	return out
}

// RecordRealized books the P&L of a trade that was entered already closed.
// Its capital was never reserved, so only the result moves the balance.
func RecordRealized(l *models.BudgetLedger, netProfitLoss float64) *models.BudgetLedger {
	pl := dec(netProfitLoss)
	out := l.Clone()
	out.AvailableBudget = flt(dec(l.AvailableBudget).Add(pl))
	out.TotalProfitLoss = flt(dec(l.TotalProfitLoss).Add(pl))
	return out
}

func releaseSlot(n int) int {
	if n <= 0 {
		return 0
	}
	return n - 1
}

// Stats is the utilization view of a ledger.
type Stats struct {
	AllocatedAmount float64 `json:"allocatedAmount"`
	UtilizationPct  float64 `json:"utilizationPercentage"`
	ReserveUsage    float64 `json:"reserveUsage"`
	SlotsRemaining  int     `json:"slotsRemaining"`
}

// Utilization reports how much of the total budget is committed.
func Utilization(l *models.BudgetLedger) Stats {
	var s Stats
	allocated := dec(l.TotalBudget).Sub(dec(l.AvailableBudget))
	s.AllocatedAmount = flt(allocated)
	if l.TotalBudget > 0 {
		s.UtilizationPct = flt(allocated.Div(dec(l.TotalBudget)).Mul(decimal.NewFromInt(100)))
	}
	if usage := dec(l.ReserveFund).Sub(dec(l.AvailableBudget)); usage.IsPositive() {
		s.ReserveUsage = flt(usage)
	}
	if remaining := MaxOpenTrades - l.TradesMade; remaining > 0 {
		s.SlotsRemaining = remaining
	}
	return s
}
