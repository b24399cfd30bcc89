package models

import (
	"encoding/json"
	"strings"
	"time"
)

// DateLayout is the wire and storage layout for civil dates.
const DateLayout = "2006-01-02"

type Trade struct {
	ID      string `json:"id"`
	OwnerID string `json:"-"`

	// Inputs
	ScripCode        string      `json:"scripCode"`
	BuyPrice         float64     `json:"buyPrice"`
	BuyDate          time.Time   `json:"buyDate"`
	Qty              int         `json:"qty"`
	TargetPrice      float64     `json:"targetPrice"`
	Source           TradeSource `json:"source"`
	AdditionalMargin float64     `json:"additionalMargin"`
	CMP              float64     `json:"cmp"`
	CMPUpdatedAt     *time.Time  `json:"cmpUpdatedAt,omitempty"`
	SellPrice        *float64    `json:"sellPrice,omitempty"`
	SellDate         *time.Time  `json:"sellDate,omitempty"`

	// Derived
	Total            float64 `json:"total"`
	OwnFund          float64 `json:"ownFund"`
	MTFFund          float64 `json:"mtfFund"`
	SuggestedQty     int     `json:"suggestedQty"`
	DaysHeld         int     `json:"daysHeld"`
	InterestPaid     float64 `json:"interestPaid"`
	Turnover         float64 `json:"turnover"`
	TotalChargesPaid float64 `json:"totalChargesPaid"`
	NetProfitLoss    float64 `json:"netProfitLoss"`
	ROI              float64 `json:"roi"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// IsClosed reports whether both closure fields are present.
func (t *Trade) IsClosed() bool {
	return t.SellPrice != nil && t.SellDate != nil
}

// Status is "open" or "closed".
func (t *Trade) Status() string {
	if t.IsClosed() {
		return StatusClosed
	}
	return StatusOpen
}

const (
	StatusOpen   = "open"
	StatusClosed = "closed"
)

// SourceKind enumerates the recommendation sources offered by the trade form.
type SourceKind string

const (
	SourceSelfResearch        SourceKind = "Self Research"
	SourceTechnicalAnalysis   SourceKind = "Technical Analysis"
	SourceFundamentalAnalysis SourceKind = "Fundamental Analysis"
	SourceBroker              SourceKind = "Broker Recommendation"
	SourceNews                SourceKind = "News"
	SourceSocialMedia         SourceKind = "Social Media"
)

var knownSources = []SourceKind{
	SourceSelfResearch,
	SourceTechnicalAnalysis,
	SourceFundamentalAnalysis,
	SourceBroker,
	SourceNews,
	SourceSocialMedia,
}

// KnownSources lists the fixed source kinds in display order.
func KnownSources() []SourceKind {
	out := make([]SourceKind, len(knownSources))
	copy(out, knownSources)
	return out
}

// TradeSource is either one of the known kinds or free text.
// Exactly one of Kind and Custom is set; the zero value is an empty source.
type TradeSource struct {
	Kind   SourceKind
	Custom string
}

func KnownSource(k SourceKind) TradeSource { return TradeSource{Kind: k} }

func CustomSource(text string) TradeSource { return TradeSource{Custom: strings.TrimSpace(text)} }

// ParseTradeSource maps a display string onto a known kind (case-insensitive)
// and falls back to a custom source.
func ParseTradeSource(s string) TradeSource {
	s = strings.TrimSpace(s)
	for _, k := range knownSources {
		if strings.EqualFold(s, string(k)) {
			return TradeSource{Kind: k}
		}
	}
	return CustomSource(s)
}

func (s TradeSource) IsCustom() bool { return s.Kind == "" && s.Custom != "" }

func (s TradeSource) IsZero() bool { return s.Kind == "" && s.Custom == "" }

func (s TradeSource) String() string {
	if s.Kind != "" {
		return string(s.Kind)
	}
	return s.Custom
}

func (s TradeSource) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *TradeSource) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = ParseTradeSource(raw)
	return nil
}

// Clone deep-copies t, including the optional pointer fields.
func (t *Trade) Clone() Trade {
	c := *t
	if t.SellPrice != nil {
		v := *t.SellPrice
		c.SellPrice = &v
	}
	if t.SellDate != nil {
		v := *t.SellDate
		c.SellDate = &v
	}
	if t.CMPUpdatedAt != nil {
		v := *t.CMPUpdatedAt
		c.CMPUpdatedAt = &v
	}
	return c
}
