package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kjannette/mtf-backend/internal/models"
)

// QuoteRepo keeps a history of fetched market quotes.
type QuoteRepo struct {
	pool *pgxpool.Pool
}

func NewQuoteRepo(pool *pgxpool.Pool) *QuoteRepo {
	return &QuoteRepo{pool: pool}
}

func (r *QuoteRepo) Record(ctx context.Context, q *models.Quote) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO price_quotes
		 (symbol, price, previous_close, change, change_percent, day_high, day_low,
		  volume, company_name, exchange, currency, source, fetched_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		q.Symbol, q.Price, q.PreviousClose, q.Change, q.ChangePercent, q.DayHigh, q.DayLow,
		q.Volume, q.CompanyName, q.Exchange, q.Currency, q.Source, q.AsOf,
	)
	if err != nil {
		return fmt.Errorf("record quote %s: %w", q.Symbol, err)
	}
	return nil
}

// LatestSince returns the newest quote per symbol fetched at or after since.
func (r *QuoteRepo) LatestSince(ctx context.Context, since time.Time) ([]models.Quote, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT DISTINCT ON (symbol)
		   symbol, price, previous_close, change, change_percent, day_high, day_low,
		   volume, company_name, exchange, currency, source, fetched_at
		 FROM price_quotes
		 WHERE fetched_at >= $1
		 ORDER BY symbol, fetched_at DESC`,
		since,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectQuotes(rows)
}

func collectQuotes(rows rowsIter) ([]models.Quote, error) {
	var out []models.Quote
	for rows.Next() {
		var q models.Quote
		if err := rows.Scan(
			&q.Symbol, &q.Price, &q.PreviousClose, &q.Change, &q.ChangePercent, &q.DayHigh, &q.DayLow,
			&q.Volume, &q.CompanyName, &q.Exchange, &q.Currency, &q.Source, &q.AsOf,
		); err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}
