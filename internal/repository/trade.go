package repository

import (
	"context"
	"fmt"

	"github.com/kjannette/mtf-backend/internal/models"
)

const tradeColumns = `id, owner_id, scrip_code, buy_price, buy_date, qty, target_price, source,
	additional_margin, cmp, cmp_updated_at, sell_price, sell_date,
	total, own_fund, mtf_fund, suggested_qty, days_held, interest_paid, turnover,
	total_charges_paid, net_profit_loss, roi, created_at, updated_at`

func (t *pgTx) GetTrade(ctx context.Context, id string) (*models.Trade, error) {
	row := t.tx.QueryRow(ctx,
		`SELECT `+tradeColumns+` FROM trades WHERE owner_id = $1 AND id = $2`,
		t.owner, id,
	)
	tr, err := scanTrade(row)
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get trade %s: %w", id, err)
	}
	return tr, nil
}

func (t *pgTx) ListTrades(ctx context.Context, f TradeFilter) ([]models.Trade, error) {
	query, args := buildFilteredQuery(
		`SELECT `+tradeColumns+` FROM trades WHERE owner_id = $1`,
		[]any{t.owner},
		f,
	)
	rows, err := t.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list trades: %w", err)
	}
	defer rows.Close()
	return collectTrades(rows)
}

func (t *pgTx) InsertTrade(ctx context.Context, tr *models.Trade) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO trades (`+tradeColumns+`)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25)`,
		tradeArgs(t.owner, tr)...,
	)
	if err != nil {
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

func (t *pgTx) UpdateTrade(ctx context.Context, tr *models.Trade) error {
	args := tradeArgs(t.owner, tr)
	args = append(args[:23], tr.UpdatedAt) // created_at is immutable
	tag, err := t.tx.Exec(ctx,
		`UPDATE trades SET
		   scrip_code = $3, buy_price = $4, buy_date = $5, qty = $6, target_price = $7, source = $8,
		   additional_margin = $9, cmp = $10, cmp_updated_at = $11, sell_price = $12, sell_date = $13,
		   total = $14, own_fund = $15, mtf_fund = $16, suggested_qty = $17, days_held = $18,
		   interest_paid = $19, turnover = $20, total_charges_paid = $21, net_profit_loss = $22,
		   roi = $23, updated_at = $24
		 WHERE id = $1 AND owner_id = $2`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("update trade %s: %w", tr.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update trade %s: %w", tr.ID, ErrTradeNotFound)
	}
	return nil
}

func (t *pgTx) DeleteTrade(ctx context.Context, id string) (bool, error) {
	tag, err := t.tx.Exec(ctx, `DELETE FROM trades WHERE owner_id = $1 AND id = $2`, t.owner, id)
	if err != nil {
		return false, fmt.Errorf("delete trade %s: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

func tradeArgs(owner string, tr *models.Trade) []any {
	return []any{
		tr.ID, owner, tr.ScripCode, tr.BuyPrice, tr.BuyDate, tr.Qty, tr.TargetPrice, tr.Source.String(),
		tr.AdditionalMargin, tr.CMP, tr.CMPUpdatedAt, tr.SellPrice, tr.SellDate,
		tr.Total, tr.OwnFund, tr.MTFFund, tr.SuggestedQty, tr.DaysHeld, tr.InterestPaid, tr.Turnover,
		tr.TotalChargesPaid, tr.NetProfitLoss, tr.ROI, tr.CreatedAt, tr.UpdatedAt,
	}
}

// buildFilteredQuery appends one numbered clause per set filter field.
func buildFilteredQuery(baseQuery string, baseArgs []any, f TradeFilter) (string, []any) {
	query, args := baseQuery, baseArgs
	add := func(clause string, v any) {
		args = append(args, v)
		query += fmt.Sprintf(clause, len(args))
	}

	if f.From != nil {
		add(" AND buy_date >= $%d", *f.From)
	}
	if f.To != nil {
		add(" AND buy_date <= $%d", *f.To)
	}
	switch f.Status {
	case models.StatusOpen:
		query += " AND sell_date IS NULL"
	case models.StatusClosed:
		query += " AND sell_date IS NOT NULL"
	}
	if f.Scrip != "" {
		add(" AND scrip_code = $%d", f.Scrip)
	}

	query += " ORDER BY buy_date ASC, created_at ASC, id ASC"
	if f.Limit > 0 {
		add(" LIMIT $%d", f.Limit)
	}
	return query, args
}

// --- scan helpers ---

func scanTrade(row scannable) (*models.Trade, error) {
	var t models.Trade
	var source string
	err := row.Scan(
		&t.ID, &t.OwnerID, &t.ScripCode, &t.BuyPrice, &t.BuyDate, &t.Qty, &t.TargetPrice, &source,
		&t.AdditionalMargin, &t.CMP, &t.CMPUpdatedAt, &t.SellPrice, &t.SellDate,
		&t.Total, &t.OwnFund, &t.MTFFund, &t.SuggestedQty, &t.DaysHeld, &t.InterestPaid, &t.Turnover,
		&t.TotalChargesPaid, &t.NetProfitLoss, &t.ROI, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.Source = models.ParseTradeSource(source)
	return &t, nil
}

func collectTrades(rows rowsIter) ([]models.Trade, error) {
	out := []models.Trade{}
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}
