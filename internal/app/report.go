package app

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"tableside/internal/common/logger"
	"tableside/internal/config"
	"tableside/internal/domain"
	"tableside/internal/microservices/feed"
	"tableside/internal/repository"
)

// Report summarizes the paid orders of period p read straight from the store.
func Report(ctx context.Context, store repository.Store, p feed.Period, now time.Time, loc *time.Location) (feed.Summary, error) {
	since, until := p.Range(now, loc)
	orders, err := store.FindOrders(ctx, repository.Query{PaymentStatus: domain.PaymentPaid, Since: since})
	if err != nil {
		return feed.Summary{}, fmt.Errorf("report %s: %w", p, err)
	}
	return feed.Summarize(p, orders, since, until, loc), nil
}

func RunReport(ctx context.Context, cfg config.Config, p feed.Period, w io.Writer) error {
	lg := logger.New("report")
	rt, err := Open(ctx, cfg, lg)
	if err != nil {
		return err
	}
	defer rt.Close()

	sum, err := Report(ctx, rt.Store, p, time.Now(), time.Local)
	if err != nil {
		return err
	}
	return WriteSummary(w, sum)
}

func WriteSummary(w io.Writer, s feed.Summary) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "period\t%s\n", s.Period)
	fmt.Fprintf(tw, "from\t%s\n", s.Since.Format(time.RFC3339))
	fmt.Fprintf(tw, "to\t%s\n", s.Until.Format(time.RFC3339))
	fmt.Fprintf(tw, "orders\t%d\n", s.Count)
	fmt.Fprintf(tw, "revenue\t%.2f\n", s.Revenue)
	fmt.Fprintf(tw, "average\t%.0f\n", s.Average)
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "DATE\tORDERS\tREVENUE")
	for _, d := range s.Days {
		fmt.Fprintf(tw, "%s\t%d\t%.2f\n", d.Date, d.Count, d.Revenue)
	}
	return tw.Flush()
}
