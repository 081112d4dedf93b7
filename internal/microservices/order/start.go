package order

import (
	"context"
	"strconv"

	"tableside/internal/common/httpx"
	"tableside/internal/common/logger"
	"tableside/internal/domain"
	"tableside/internal/microservices/order/handlers"
	"tableside/internal/microservices/order/service"
	"tableside/internal/repository"
)

type Config struct {
	Port      int
	RateLimit float64
	Burst     int
	Tables    []domain.Table
}

// Run serves the order API until ctx ends.
func Run(ctx context.Context, cfg Config, store repository.Store, gate service.CallGate, view handlers.FeedView, lg *logger.Logger) error {
	svc := service.New(store, cfg.Tables, gate, lg)
	h := handlers.New(svc, view, lg)

	var limiter *handlers.IPLimiter
	if cfg.RateLimit > 0 {
		limiter = handlers.NewIPLimiter(cfg.RateLimit, cfg.Burst, lg)
	}

	addr := ":" + strconv.Itoa(cfg.Port)
	srv := httpx.New(addr, handlers.Router(h, limiter, view.Live, lg))
	lg.Info("http_listening", map[string]any{"addr": addr, "tables": len(cfg.Tables)})
	return srv.Run(ctx)
}
