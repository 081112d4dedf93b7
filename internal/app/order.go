package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tableside/internal/common/logger"
	"tableside/internal/config"
	"tableside/internal/microservices/feed"
	"tableside/internal/microservices/notificator/service"
	"tableside/internal/microservices/order"
)

// RunOrderService serves the order API and follows the live feed in the same
// process until ctx ends.
func RunOrderService(ctx context.Context, cfg config.Config) error {
	lg := logger.New("order-service")
	period, err := feed.ParsePeriod(cfg.Feed.HistoryPeriod)
	if err != nil {
		return fmt.Errorf("feed.history_period: %w", err)
	}

	rt, err := Open(ctx, cfg, lg)
	if err != nil {
		return err
	}
	defer rt.Close()

	alerts := service.MultiAlerter{service.NewLogAlerter(logger.New("alerts"))}
	if rt.Rabbit != nil {
		alerts = append(alerts, service.NewBrokerAlerter(rt.Rabbit))
	}
	ctrl := feed.NewController(rt.Store, alerts, feed.Config{
		ResubscribeDelay: cfg.Feed.ResubscribeDelay,
		DefaultPeriod:    period,
		Location:         time.Local,
		Roster:           cfg.Tables,
	}, logger.New("feed"))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ctrl.Run(ctx)
	}()

	lg.Info("service_started", map[string]any{"port": cfg.Service.HTTPPort, "store": cfg.Store.Driver})
	err = order.Run(ctx, order.Config{
		Port:      cfg.Service.HTTPPort,
		RateLimit: cfg.Service.RateLimit,
		Burst:     cfg.Service.Burst,
		Tables:    cfg.Tables,
	}, rt.Store, rt.Gate, ctrl, lg)
	cancel()
	wg.Wait()
	lg.Info("service_stopped", nil)
	return err
}
