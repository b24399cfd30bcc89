package reports

import (
	"fmt"
	"time"

	"github.com/kjannette/mtf-backend/internal/calc"
	"github.com/kjannette/mtf-backend/internal/models"
)

// Period names a reporting window such as current_month or all_time.
type Period string

const (
	CurrentMonth    Period = "current_month"
	PreviousMonth   Period = "previous_month"
	CurrentQuarter  Period = "current_quarter"
	PreviousQuarter Period = "previous_quarter"
	CurrentFY       Period = "current_fy"
	PreviousFY      Period = "previous_fy"
	YearToDate      Period = "ytd"
	Last12Months    Period = "last_12_months"
	AllTime         Period = "all_time"
)

var periodLabels = []struct {
	p     Period
	label string
}{
	{CurrentMonth, "Current Month"},
	{PreviousMonth, "Previous Month"},
	{CurrentQuarter, "Current Quarter"},
	{PreviousQuarter, "Previous Quarter"},
	{CurrentFY, "Current Financial Year"},
	{PreviousFY, "Previous Financial Year"},
	{YearToDate, "Year to Date"},
	{Last12Months, "Last 12 Months"},
	{AllTime, "All Time"},
}

// Epoch is the start of the All Time range.
var Epoch = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

// DateRange is an inclusive range of civil dates.
type DateRange struct {
	Start time.Time
	End   time.Time
}

func (r DateRange) Contains(t time.Time) bool {
	d := calc.CivilDate(t)
	return !d.Before(r.Start) && !d.After(r.End)
}

// PeriodInfo describes one entry of the period catalog.
type PeriodInfo struct {
	Key   Period `json:"key"`
	Label string `json:"label"`
	Start string `json:"startDate"`
	End   string `json:"endDate"`
}

// Catalog resolves every named period against today.
func Catalog(today time.Time) []PeriodInfo {
	out := make([]PeriodInfo, 0, len(periodLabels))
	for _, pl := range periodLabels {
		r, _ := Resolve(pl.p, today)
		out = append(out, PeriodInfo{
			Key:   pl.p,
			Label: pl.label,
			Start: r.Start.Format("2006-01-02"),
			End:   r.End.Format("2006-01-02"),
		})
	}
	return out
}

// Resolve maps a named period onto a date range relative to today.
// Quarters are calendar quarters; financial years run April to March.
func Resolve(p Period, today time.Time) (DateRange, error) {
	today = calc.CivilDate(today)
	y, m, _ := today.Date()

	switch p {
	case CurrentMonth:
		start := monthStart(y, m, 0)
		return DateRange{start, start.AddDate(0, 1, -1)}, nil
	case PreviousMonth:
		start := monthStart(y, m, -1)
		return DateRange{start, start.AddDate(0, 1, -1)}, nil
	case CurrentQuarter:
		start := quarterStart(y, m)
		return DateRange{start, start.AddDate(0, 3, -1)}, nil
	case PreviousQuarter:
		start := quarterStart(y, m).AddDate(0, -3, 0)
		return DateRange{start, start.AddDate(0, 3, -1)}, nil
	case CurrentFY:
		start := fyStart(y, m)
		return DateRange{start, start.AddDate(1, 0, -1)}, nil
	case PreviousFY:
		start := fyStart(y, m).AddDate(-1, 0, 0)
		return DateRange{start, start.AddDate(1, 0, -1)}, nil
	case YearToDate:
		return DateRange{time.Date(y, time.January, 1, 0, 0, 0, 0, time.UTC), today}, nil
	case Last12Months:
		return DateRange{today.AddDate(-1, 0, 0), today}, nil
	case AllTime:
		return DateRange{Epoch, today}, nil
	}
	return DateRange{}, &calc.ValidationError{Field: "period", Message: fmt.Sprintf("unknown period %q", p)}
}

func monthStart(y int, m time.Month, offset int) time.Time {
	return time.Date(y, m+time.Month(offset), 1, 0, 0, 0, 0, time.UTC)
}

func quarterStart(y int, m time.Month) time.Time {
	q := (int(m) - 1) / 3
	return time.Date(y, time.Month(q*3+1), 1, 0, 0, 0, 0, time.UTC)
}

func fyStart(y int, m time.Month) time.Time {
	if m < time.April {
		y--
	}
	return time.Date(y, time.April, 1, 0, 0, 0, 0, time.UTC)
}

// InRange keeps trades whose buy date falls in r.
func InRange(trades []models.Trade, r DateRange) []models.Trade {
	var out []models.Trade
	for _, t := range trades {
		if r.Contains(t.BuyDate) {
			out = append(out, t)
		}
	}
	return out
}
