package feed

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"tableside/internal/domain"
)

type Period string

const (
	PeriodToday Period = "today"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
)

func ParsePeriod(s string) (Period, error) {
	switch p := Period(strings.ToLower(strings.TrimSpace(s))); p {
	case PeriodToday, PeriodWeek, PeriodMonth:
		return p, nil
	}
	return "", fmt.Errorf("unknown period %q", s)
}

// Range returns the inclusive window for p ending at now. Every period starts
// at a local midnight: today's, 7 days earlier or 30 days earlier.
func (p Period) Range(now time.Time, loc *time.Location) (since, until time.Time) {
	if loc == nil {
		loc = time.Local
	}
	local := now.In(loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	switch p {
	case PeriodWeek:
		midnight = midnight.AddDate(0, 0, -7)
	case PeriodMonth:
		midnight = midnight.AddDate(0, 0, -30)
	}
	return midnight, now
}

func InRange(t, since, until time.Time) bool {
	return !t.Before(since) && !t.After(until)
}

type DaySummary struct {
	Date    string  `json:"date"`
	Count   int     `json:"count"`
	Revenue float64 `json:"revenue"`
}

type Summary struct {
	Period  Period       `json:"period"`
	Since   time.Time    `json:"since"`
	Until   time.Time    `json:"until"`
	Count   int          `json:"count"`
	Revenue float64      `json:"revenue"`
	Average float64      `json:"average"`
	Days    []DaySummary `json:"days"`
}

// Summarize reports the paid orders among orders that fall in the window.
// Days are keyed by local date, newest first.
func Summarize(p Period, orders []domain.Order, since, until time.Time, loc *time.Location) Summary {
	if loc == nil {
		loc = time.Local
	}
	sum := Summary{Period: p, Since: since, Until: until, Days: make([]DaySummary, 0)}
	revenue := decimal.Zero
	days := make(map[string]decimal.Decimal)
	counts := make(map[string]int)

	for _, o := range orders {
		if o.PaymentStatus != domain.PaymentPaid || !InRange(o.Timestamp, since, until) {
			continue
		}
		total := decimal.NewFromFloat(o.TotalPrice)
		revenue = revenue.Add(total)
		sum.Count++

		key := o.Timestamp.In(loc).Format(time.DateOnly)
		days[key] = days[key].Add(total)
		counts[key]++
	}

	sum.Revenue = revenue.InexactFloat64()
	if sum.Count > 0 {
		sum.Average = revenue.Div(decimal.NewFromInt(int64(sum.Count))).Round(0).InexactFloat64()
	}
	for key, rev := range days {
		sum.Days = append(sum.Days, DaySummary{Date: key, Count: counts[key], Revenue: rev.InexactFloat64()})
	}
	sort.Slice(sum.Days, func(i, j int) bool { return sum.Days[i].Date > sum.Days[j].Date })
	return sum
}
