package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kjannette/mtf-backend/internal/calc"
	"github.com/kjannette/mtf-backend/internal/ledger"
	"github.com/kjannette/mtf-backend/internal/models"
	"github.com/kjannette/mtf-backend/internal/repository"
)

// TradeDraft is a new trade as entered by the user. A zero CMP starts at the
// buy price.
type TradeDraft struct {
	ScripCode        string
	BuyPrice         float64
	BuyDate          time.Time
	Qty              int
	TargetPrice      float64
	Source           models.TradeSource
	AdditionalMargin float64
	CMP              float64
	SellPrice        *float64
	SellDate         *time.Time
}

func (d TradeDraft) inputs() calc.Inputs {
	return calc.Inputs{
		BuyPrice:         d.BuyPrice,
		BuyDate:          d.BuyDate,
		Qty:              d.Qty,
		AdditionalMargin: d.AdditionalMargin,
		CMP:              d.CMP,
		SellPrice:        d.SellPrice,
		SellDate:         d.SellDate,
	}
}

// TradePatch holds the fields to change; nil fields are left alone.
type TradePatch struct {
	ScripCode        *string
	BuyPrice         *float64
	BuyDate          *time.Time
	Qty              *int
	TargetPrice      *float64
	Source           *models.TradeSource
	AdditionalMargin *float64
	CMP              *float64
	SellPrice        *float64
	SellDate         *time.Time
}

func (p TradePatch) apply(t *models.Trade) error {
	if t.IsClosed() {
		if p.AdditionalMargin != nil && *p.AdditionalMargin != t.AdditionalMargin {
			return fmt.Errorf("%w: margin cannot change after closure", ErrTradeClosed)
		}
		if p.CMP != nil && *p.CMP != t.CMP {
			return fmt.Errorf("%w: cmp cannot change after closure", ErrTradeClosed)
		}
	}
	if p.ScripCode != nil {
		t.ScripCode = normalizeScrip(*p.ScripCode)
	}
	if p.BuyPrice != nil {
		t.BuyPrice = *p.BuyPrice
	}
	if p.BuyDate != nil {
		t.BuyDate = calc.CivilDate(*p.BuyDate)
	}
	if p.Qty != nil {
		t.Qty = *p.Qty
	}
	if p.TargetPrice != nil {
		t.TargetPrice = *p.TargetPrice
	}
	if p.Source != nil {
		t.Source = *p.Source
	}
	if p.AdditionalMargin != nil {
		t.AdditionalMargin = *p.AdditionalMargin
	}
	if p.CMP != nil {
		t.CMP = *p.CMP
	}
	if p.SellPrice != nil {
		v := *p.SellPrice
		t.SellPrice = &v
	}
	if p.SellDate != nil {
		d := calc.CivilDate(*p.SellDate)
		t.SellDate = &d
	}
	return nil
}

func normalizeScrip(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

func validateTrade(t *models.Trade, today time.Time) error {
	if err := calc.Validate(t.ScripCode, calc.FromTrade(t), today); err != nil {
		return err
	}
	if t.TargetPrice < 0 {
		return &calc.ValidationError{Field: "targetPrice", Message: "cannot be negative"}
	}
	return nil
}

// Preview computes metrics for a draft without storing anything. Partially
// filled drafts are allowed; only a future buy date or a closure dated before
// the buy is rejected.
func (s *Service) Preview(ctx context.Context, owner string, d TradeDraft) (calc.Metrics, error) {
	today := s.today()
	if d.BuyDate.IsZero() {
		d.BuyDate = today
	}
	in := d.inputs()
	if calc.CivilDate(in.BuyDate).After(today) {
		return calc.Metrics{}, &calc.ValidationError{Field: "buyDate", Message: "cannot be in the future"}
	}
	if in.SellPrice != nil && in.SellDate != nil && calc.DaysBetween(in.BuyDate, *in.SellDate) < 0 {
		return calc.Metrics{}, &calc.ValidationError{Field: "sellDate", Message: "cannot be before buyDate"}
	}

	var m calc.Metrics
	err := s.store.InTx(ctx, owner, func(tx repository.Tx) error {
		rates, err := s.loadSettings(ctx, tx, owner)
		if err != nil {
			return err
		}
		l, err := tx.GetLedger(ctx)
		if err != nil {
			return err
		}
		m = calc.Compute(in, rates, budgetPerTrade(l), today)
		return nil
	})
	return m, err
}

// Create validates and stores a new trade. When the owner has a ledger, an
// open trade reserves its own fund and margin first; a rejected reservation
// stores nothing. A trade entered already closed only books its P&L.
func (s *Service) Create(ctx context.Context, owner string, d TradeDraft) (*models.Trade, error) {
	now := s.now()
	today := s.today()

	t := &models.Trade{
		ID:               s.newID(),
		OwnerID:          owner,
		ScripCode:        normalizeScrip(d.ScripCode),
		BuyPrice:         d.BuyPrice,
		BuyDate:          calc.CivilDate(d.BuyDate),
		Qty:              d.Qty,
		TargetPrice:      d.TargetPrice,
		Source:           d.Source,
		AdditionalMargin: d.AdditionalMargin,
		CMP:              d.CMP,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if t.CMP == 0 {
		t.CMP = t.BuyPrice
	}
	if d.SellPrice != nil {
		v := *d.SellPrice
		t.SellPrice = &v
	}
	if d.SellDate != nil {
		sd := calc.CivilDate(*d.SellDate)
		t.SellDate = &sd
	}
	if err := validateTrade(t, today); err != nil {
		return nil, err
	}

	err := s.store.InTx(ctx, owner, func(tx repository.Tx) error {
		rates, err := s.loadSettings(ctx, tx, owner)
		if err != nil {
			return err
		}
		l, err := tx.GetLedger(ctx)
		if err != nil {
			return err
		}
		calc.Apply(t, calc.Compute(calc.FromTrade(t), rates, budgetPerTrade(l), today))

		if l != nil {
			if t.IsClosed() {
				l = ledger.RecordRealized(l, t.NetProfitLoss)
			} else if l, err = ledger.ReserveForNewTrade(l, t.OwnFund, t.AdditionalMargin); err != nil {
				return err
			}
			l.UpdatedAt = now
			if err := tx.SaveLedger(ctx, l); err != nil {
				return err
			}
		}
		return tx.InsertTrade(ctx, t)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("owner", owner).Str("trade", t.ID).Str("scrip", t.ScripCode).
		Int("qty", t.Qty).Float64("own_fund", t.OwnFund).Msg("Trade recorded")
	return t, nil
}

func (s *Service) Get(ctx context.Context, owner, id string) (*models.Trade, error) {
	var t *models.Trade
	err := s.store.InTx(ctx, owner, func(tx repository.Tx) error {
		var err error
		t, err = tx.GetTrade(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, fmt.Errorf("trade %s: %w", id, ErrNotFound)
	}
	return t, nil
}

func (s *Service) List(ctx context.Context, owner string, f repository.TradeFilter) ([]models.Trade, error) {
	var out []models.Trade
	err := s.store.InTx(ctx, owner, func(tx repository.Tx) error {
		var err error
		out, err = tx.ListTrades(ctx, f)
		return err
	})
	return out, err
}

// mutate applies change to a stored trade, recomputes its metrics and keeps
// the ledger in step:
//   - an open trade whose own fund or margin moved has the difference
//     reserved or released;
//   - the open to closed transition restores capital plus P&L, exactly once.
func (s *Service) mutate(ctx context.Context, owner, id string, change func(*models.Trade) error) (*models.Trade, error) {
	now := s.now()
	today := s.today()
	var (
		updated  *models.Trade
		closedUp bool
	)

	err := s.store.InTx(ctx, owner, func(tx repository.Tx) error {
		old, err := tx.GetTrade(ctx, id)
		if err != nil {
			return err
		}
		if old == nil {
			return fmt.Errorf("trade %s: %w", id, ErrNotFound)
		}

		t := old.Clone()
		if err := change(&t); err != nil {
			return err
		}
		if err := validateTrade(&t, today); err != nil {
			return err
		}

		rates, err := s.loadSettings(ctx, tx, owner)
		if err != nil {
			return err
		}
		l, err := tx.GetLedger(ctx)
		if err != nil {
			return err
		}
		calc.Apply(&t, calc.Compute(calc.FromTrade(&t), rates, budgetPerTrade(l), today))
		t.UpdatedAt = now

		if l != nil && !old.IsClosed() {
			delta := calc.Round2((t.OwnFund + t.AdditionalMargin) - (old.OwnFund + old.AdditionalMargin))
			if delta != 0 {
				l = ledger.AdjustReservation(l, delta)
			}
			if t.IsClosed() {
				l = ledger.RestoreOnClosure(l, &t)
			}
			if delta != 0 || t.IsClosed() {
				l.UpdatedAt = now
				if err := tx.SaveLedger(ctx, l); err != nil {
					return err
				}
			}
		}
		closedUp = !old.IsClosed() && t.IsClosed()

		if err := tx.UpdateTrade(ctx, &t); err != nil {
			if errors.Is(err, repository.ErrTradeNotFound) {
				return fmt.Errorf("trade %s: %w", id, ErrNotFound)
			}
			return err
		}
		updated = &t
		return nil
	})
	if err != nil {
		return nil, err
	}

	if closedUp {
		s.log.Info().Str("owner", owner).Str("trade", id).Float64("net_pl", updated.NetProfitLoss).Msg("Trade closed")
		if s.notifier != nil {
			c := updated.Clone()
			go s.notifier.TradeClosed(owner, &c)
		}
	}
	return updated, nil
}

// Update applies a partial edit.
func (s *Service) Update(ctx context.Context, owner, id string, p TradePatch) (*models.Trade, error) {
	return s.mutate(ctx, owner, id, p.apply)
}

// Close records the exit of an open trade. A zero sellDate means today.
func (s *Service) Close(ctx context.Context, owner, id string, sellPrice float64, sellDate time.Time) (*models.Trade, error) {
	if sellDate.IsZero() {
		sellDate = s.today()
	}
	return s.mutate(ctx, owner, id, func(t *models.Trade) error {
		if t.IsClosed() {
			return fmt.Errorf("%w: already closed on %s", ErrTradeClosed, t.SellDate.Format(models.DateLayout))
		}
		d := calc.CivilDate(sellDate)
		t.SellPrice = &sellPrice
		t.SellDate = &d
		return nil
	})
}

// TopUpMargin adds margin to an open trade, reducing its MTF balance.
func (s *Service) TopUpMargin(ctx context.Context, owner, id string, amount float64) (*models.Trade, error) {
	if amount <= 0 {
		return nil, &calc.ValidationError{Field: "amount", Message: "must be greater than 0"}
	}
	return s.mutate(ctx, owner, id, func(t *models.Trade) error {
		if t.IsClosed() {
			return fmt.Errorf("%w: margin cannot change after closure", ErrTradeClosed)
		}
		t.AdditionalMargin = calc.Round2(t.AdditionalMargin + amount)
		return nil
	})
}

// SetCMP records a manually entered market price.
func (s *Service) SetCMP(ctx context.Context, owner, id string, cmp float64) (*models.Trade, error) {
	return s.Update(ctx, owner, id, TradePatch{CMP: &cmp})
}

func (s *Service) setQuote(ctx context.Context, owner, id string, q *models.Quote) (*models.Trade, error) {
	return s.mutate(ctx, owner, id, func(t *models.Trade) error {
		if t.IsClosed() {
			return fmt.Errorf("%w: cmp cannot change after closure", ErrTradeClosed)
		}
		at := q.AsOf
		t.CMP = q.Price
		t.CMPUpdatedAt = &at
		return nil
	})
}

// RefreshCMP fetches the market price for one open trade. When no price can
// be had the trade is returned unchanged with a warning instead of an error.
func (s *Service) RefreshCMP(ctx context.Context, owner, id string) (*models.Trade, string, error) {
	t, err := s.Get(ctx, owner, id)
	if err != nil {
		return nil, "", err
	}
	if t.IsClosed() {
		return nil, "", fmt.Errorf("%w: cmp cannot change after closure", ErrTradeClosed)
	}
	if s.prices == nil {
		return t, "price lookup is disabled; CMP unchanged", nil
	}

	q, err := s.prices.Quote(ctx, t.ScripCode)
	if err != nil {
		s.log.Warn().Err(err).Str("scrip", t.ScripCode).Msg("CMP refresh failed")
		return t, fmt.Sprintf("price unavailable for %s; CMP unchanged", t.ScripCode), nil
	}
	updated, err := s.setQuote(ctx, owner, id, q)
	if err != nil {
		return nil, "", err
	}
	return updated, "", nil
}

// Delete removes a trade. Deleting an open trade releases its reservation.
func (s *Service) Delete(ctx context.Context, owner, id string) error {
	err := s.store.InTx(ctx, owner, func(tx repository.Tx) error {
		t, err := tx.GetTrade(ctx, id)
		if err != nil {
			return err
		}
		if t == nil {
			return fmt.Errorf("trade %s: %w", id, ErrNotFound)
		}
		if _, err := tx.DeleteTrade(ctx, id); err != nil {
			return err
		}
		if t.IsClosed() {
			return nil
		}
		l, err := tx.GetLedger(ctx)
		if err != nil || l == nil {
			return err
		}
		l = ledger.ReleaseOnDelete(l, t)
		l.UpdatedAt = s.now()
		return tx.SaveLedger(ctx, l)
	})
	if err != nil {
		return err
	}
	s.log.Info().Str("owner", owner).Str("trade", id).Msg("Trade deleted")
	return nil
}

// RefreshResult summarizes one RefreshOpenTrades pass.
type RefreshResult struct {
	Updated int      `json:"updated"`
	Failed  []string `json:"failed,omitempty"`
}

// RefreshOpenTrades prices every open trade of owner, one quote per scrip,
// and recomputes them all so days held and interest accrue even when a
// price is missing.
func (s *Service) RefreshOpenTrades(ctx context.Context, owner string) (RefreshResult, error) {
	var res RefreshResult
	open, err := s.List(ctx, owner, repository.TradeFilter{Status: models.StatusOpen})
	if err != nil {
		return res, err
	}
	if len(open) == 0 {
		return res, nil
	}

	quotes := map[string]*models.Quote{}
	if s.prices != nil {
		for _, t := range open {
			if _, seen := quotes[t.ScripCode]; seen {
				continue
			}
			q, err := s.prices.Quote(ctx, t.ScripCode)
			if err != nil {
				if ctx.Err() != nil {
					return res, ctx.Err()
				}
				res.Failed = append(res.Failed, t.ScripCode)
			}
			quotes[t.ScripCode] = q
		}
	}

	for _, t := range open {
		q := quotes[t.ScripCode]
		_, err := s.mutate(ctx, owner, t.ID, func(tr *models.Trade) error {
			if tr.IsClosed() {
				return ErrTradeClosed
			}
			if q != nil {
				at := q.AsOf
				tr.CMP = q.Price
				tr.CMPUpdatedAt = &at
			}
			return nil
		})
		switch {
		case err == nil:
			res.Updated++
		case errors.Is(err, ErrNotFound), errors.Is(err, ErrTradeClosed):
			// changed underneath us
		default:
			return res, err
		}
	}

	s.log.Info().Str("owner", owner).Int("updated", res.Updated).Strs("failed", res.Failed).Msg("Open trades refreshed")
	if len(res.Failed) > 0 && s.notifier != nil {
		failed := append([]string(nil), res.Failed...)
		go s.notifier.RefreshFailed(failed)
	}
	return res, nil
}
