package repository

import (
	"context"
	"fmt"

	"github.com/kjannette/mtf-backend/internal/models"
)

func (t *pgTx) GetSettings(ctx context.Context) (*models.RateConfig, error) {
	var s models.RateConfig
	err := t.tx.QueryRow(ctx,
		`SELECT owner_id, interest_rate_per_day, brokerage_rate, pledge_charges, unpledge_charges, updated_at
		 FROM rate_settings WHERE owner_id = $1`, t.owner,
	).Scan(&s.OwnerID, &s.InterestRatePerDay, &s.BrokerageRate, &s.PledgeCharges, &s.UnpledgeCharges, &s.UpdatedAt)
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}
	return &s, nil
}

func (t *pgTx) SaveSettings(ctx context.Context, s *models.RateConfig) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO rate_settings
		 (owner_id, interest_rate_per_day, brokerage_rate, pledge_charges, unpledge_charges, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6)
		 ON CONFLICT (owner_id) DO UPDATE SET
		   interest_rate_per_day = EXCLUDED.interest_rate_per_day,
		   brokerage_rate = EXCLUDED.brokerage_rate,
		   pledge_charges = EXCLUDED.pledge_charges,
		   unpledge_charges = EXCLUDED.unpledge_charges,
		   updated_at = EXCLUDED.updated_at`,
		t.owner, s.InterestRatePerDay, s.BrokerageRate, s.PledgeCharges, s.UnpledgeCharges, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}
