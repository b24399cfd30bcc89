package models

import "time"

// Quote is a point-in-time market price for one exchange symbol.
type Quote struct {
	Symbol        string    `json:"symbol"`
	Price         float64   `json:"currentPrice"`
	PreviousClose float64   `json:"previousClose"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"changePercent"`
	DayHigh       float64   `json:"dayHigh"`
	DayLow        float64   `json:"dayLow"`
	Volume        int64     `json:"volume"`
	CompanyName   string    `json:"companyName"`
	Exchange      string    `json:"exchange"`
	Currency      string    `json:"currency"`
	Source        string    `json:"dataSource"`
	AsOf          time.Time `json:"lastUpdated"`
}

// PriceBar is one daily OHLCV candle.
type PriceBar struct {
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
}

// SymbolMatch is a stock search hit.
type SymbolMatch struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}
