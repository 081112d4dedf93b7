package feed

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tableside/internal/domain"
)

func TestParsePeriod(t *testing.T) {
	for in, want := range map[string]Period{"today": PeriodToday, " Week ": PeriodWeek, "MONTH": PeriodMonth} {
		got, err := ParsePeriod(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParsePeriod("year")
	assert.Error(t, err)
}

func TestPeriodRange(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	now := time.Date(2026, 4, 10, 22, 30, 0, 0, time.UTC) // 01:30 on the 11th locally

	since, until := PeriodToday.Range(now, loc)
	assert.Equal(t, time.Date(2026, 4, 11, 0, 0, 0, 0, loc), since)
	assert.Equal(t, now, until)

	since, _ = PeriodWeek.Range(now, loc)
	assert.Equal(t, time.Date(2026, 4, 4, 0, 0, 0, 0, loc), since)

	since, _ = PeriodMonth.Range(now, loc)
	assert.Equal(t, time.Date(2026, 3, 12, 0, 0, 0, 0, loc), since)
}

func TestSummarize(t *testing.T) {
	since := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	until := time.Date(2026, 4, 8, 12, 0, 0, 0, time.UTC)
	paid := func(total float64, ts time.Time) domain.Order {
		return domain.Order{PaymentStatus: domain.PaymentPaid, TotalPrice: total, Timestamp: ts}
	}
	orders := []domain.Order{
		paid(10.10, time.Date(2026, 4, 8, 9, 0, 0, 0, time.UTC)),
		paid(20.20, time.Date(2026, 4, 8, 10, 0, 0, 0, time.UTC)),
		paid(5, time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)),
		{PaymentStatus: domain.PaymentPending, TotalPrice: 99, Timestamp: time.Date(2026, 4, 8, 10, 0, 0, 0, time.UTC)},
		paid(1000, time.Date(2026, 3, 31, 23, 0, 0, 0, time.UTC)),
	}

	s := Summarize(PeriodWeek, orders, since, until, time.UTC)

	assert.Equal(t, 3, s.Count)
	assert.Equal(t, 35.3, s.Revenue)
	assert.Equal(t, 12.0, s.Average)
	assert.Equal(t, []DaySummary{
		{Date: "2026-04-08", Count: 2, Revenue: 30.3},
		{Date: "2026-04-02", Count: 1, Revenue: 5},
	}, s.Days)
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(PeriodToday, nil, time.Time{}, time.Now(), time.UTC)
	assert.Zero(t, s.Count)
	assert.Zero(t, s.Average)
	assert.NotNil(t, s.Days)
}
