package external

import (
	"sort"
	"strings"
)

const (
	SuffixNSE = ".NS"
	SuffixBSE = ".BO"
)

// NormalizeSymbol upper-cases s and defaults it to the NSE listing.
func NormalizeSymbol(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" || strings.HasSuffix(s, SuffixNSE) || strings.HasSuffix(s, SuffixBSE) {
		return s
	}
	return s + SuffixNSE
}

// BaseSymbol strips the exchange suffix.
func BaseSymbol(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.TrimSuffix(s, SuffixNSE)
	return strings.TrimSuffix(s, SuffixBSE)
}

// commonSymbols are the large-cap NSE names offered by search before any
// upstream lookup.
var commonSymbols = map[string]string{
	"RELIANCE":   "Reliance Industries Ltd",
	"TCS":        "Tata Consultancy Services Ltd",
	"HDFCBANK":   "HDFC Bank Ltd",
	"INFY":       "Infosys Ltd",
	"HDFC":       "Housing Development Finance Corp Ltd",
	"ICICIBANK":  "ICICI Bank Ltd",
	"KOTAKBANK":  "Kotak Mahindra Bank Ltd",
	"HINDUNILVR": "Hindustan Unilever Ltd",
	"SBIN":       "State Bank of India",
	"BHARTIARTL": "Bharti Airtel Ltd",
	"ASIANPAINT": "Asian Paints Ltd",
	"ITC":        "ITC Ltd",
	"AXISBANK":   "Axis Bank Ltd",
	"LT":         "Larsen & Toubro Ltd",
	"DMART":      "Avenue Supermarts Ltd",
	"SUNPHARMA":  "Sun Pharmaceutical Industries Ltd",
	"ULTRACEMCO": "UltraTech Cement Ltd",
	"TITAN":      "Titan Company Ltd",
	"BAJFINANCE": "Bajaj Finance Ltd",
	"MARUTI":     "Maruti Suzuki India Ltd",
}

// matchCommon returns common symbols whose code or name contains q,
// prefix matches first.
func matchCommon(q string) []string {
	q = strings.ToUpper(strings.TrimSpace(q))
	if q == "" {
		return nil
	}
	var prefix, contains []string
	for sym, name := range commonSymbols {
		switch {
		case strings.HasPrefix(sym, q):
			prefix = append(prefix, sym)
		case strings.Contains(sym, q) || strings.Contains(strings.ToUpper(name), q):
			contains = append(contains, sym)
		}
	}
	sort.Strings(prefix)
	sort.Strings(contains)
	return append(prefix, contains...)
}
