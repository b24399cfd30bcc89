package models

import "time"

// RateConfig holds the per-owner charge parameters used by every trade
// computation.
type RateConfig struct {
	OwnerID            string    `json:"-"`
	InterestRatePerDay float64   `json:"interestRatePerDay"`
	BrokerageRate      float64   `json:"brokerageRate"`
	PledgeCharges      float64   `json:"pledgeCharges"`
	UnpledgeCharges    float64   `json:"unpledgeCharges"`
	UpdatedAt          time.Time `json:"updatedAt"`
}
