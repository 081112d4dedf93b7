package app

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tableside/internal/domain"
	"tableside/internal/microservices/feed"
	"tableside/internal/repository"
)

func TestReportReadsPaidOrdersInPeriod(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 6, 20, 21, 0, 0, 0, time.UTC)
	st := repository.NewMemoryStore()

	order := func(total float64, paid domain.PaymentStatus, ts time.Time) domain.WriteIntent {
		items := []domain.LineItem{{ID: "dish", Name: "Dish", Price: total, Quantity: 1}}
		return domain.CreateIntent(domain.Order{TableID: "1", Items: items, PaymentStatus: paid, TotalPrice: total, Timestamp: ts})
	}
	_, err := st.Apply(ctx,
		order(30, domain.PaymentPaid, now.Add(-time.Hour)),
		order(12, domain.PaymentPaid, now.Add(-49*time.Hour)),
		order(99, domain.PaymentPending, now.Add(-time.Hour)),
		order(500, domain.PaymentPaid, now.AddDate(0, 0, -10)),
	)
	require.NoError(t, err)

	sum, err := Report(ctx, st, feed.PeriodWeek, now, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Count)
	assert.Equal(t, 42.0, sum.Revenue)
	assert.Equal(t, 21.0, sum.Average)
	require.Len(t, sum.Days, 2)
	assert.Equal(t, "2026-06-20", sum.Days[0].Date)

	var buf bytes.Buffer
	require.NoError(t, WriteSummary(&buf, sum))
	assert.Contains(t, buf.String(), "revenue  42.00")
	assert.Contains(t, buf.String(), "2026-06-18")
}

func TestReportSurfacesStoreErrors(t *testing.T) {
	st := repository.NewMemoryStore()
	st.SetFault(func(op string) error {
		if op == "find" {
			return assert.AnError
		}
		return nil
	})
	_, err := Report(context.Background(), st, feed.PeriodToday, time.Now(), time.UTC)
	assert.True(t, domain.IsRetryable(err))
}
