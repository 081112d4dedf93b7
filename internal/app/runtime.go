package app

import (
	"context"
	"fmt"
	"time"

	"tableside/internal/cache"
	"tableside/internal/common/db"
	"tableside/internal/common/logger"
	"tableside/internal/config"
	"tableside/internal/connections/rabbitmq"
	"tableside/internal/microservices/order/service"
	"tableside/internal/repository"
)

const (
	dialAttempts = 10
	dialDelay    = 2 * time.Second
)

// Runtime holds the connections a service mode needs.
type Runtime struct {
	Config config.Config
	Store  repository.Store
	Gate   service.CallGate
	Rabbit *rabbitmq.Client
	DB     *db.Conn

	closers []func()
}

func (rt *Runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
}

// Open connects the store, the broker and the cache named by cfg.
func Open(ctx context.Context, cfg config.Config, lg *logger.Logger) (*Runtime, error) {
	rt := &Runtime{Config: cfg}

	if cfg.RabbitMQ.Enabled() {
		rmq, err := rabbitmq.DialRetry(ctx, rabbitConfig(cfg.RabbitMQ), dialAttempts, dialDelay)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, rmq.Close)
		if err := rmq.DeclareTopology(); err != nil {
			rt.Close()
			return nil, fmt.Errorf("declare topology: %w", err)
		}
		rt.Rabbit = rmq
		lg.Info("rabbitmq_connected", map[string]any{"host": cfg.RabbitMQ.Host, "port": cfg.RabbitMQ.Port, "vhost": cfg.RabbitMQ.VHost})
	}

	switch cfg.Store.Driver {
	case "memory":
		rt.Store = repository.NewMemoryStore()
	case "postgres":
		conn, err := db.Connect(ctx, cfg.Database)
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.closers = append(rt.closers, conn.Close)
		rt.DB = conn
		pcfg := repository.PGStoreConfig{Resync: cfg.Feed.ResyncInterval, Logger: logger.New("store")}
		if rt.Rabbit != nil {
			pcfg.Notifier = rt.Rabbit
			pcfg.Source = rt.Rabbit
		}
		rt.Store = repository.NewPGStore(conn.Pool, pcfg)
		lg.Info("db_connected", map[string]any{"host": cfg.Database.Host, "port": cfg.Database.Port, "database": cfg.Database.Database})
	default:
		rt.Close()
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	if err := rt.openGate(ctx, lg); err != nil {
		rt.Close()
		return nil, err
	}
	return rt, nil
}

func (rt *Runtime) openGate(ctx context.Context, lg *logger.Logger) error {
	cooldown := rt.Config.WaiterCalls.Cooldown
	if cooldown == 0 {
		return nil
	}
	if rt.Config.Redis.URL == "" {
		rt.Gate = cache.NewLocalCooldown(cooldown)
		return nil
	}
	client, err := cache.Connect(ctx, rt.Config.Redis.URL)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	rt.closers = append(rt.closers, func() { _ = client.Close() })
	rt.Gate = cache.NewRedisCooldown(client, "tableside:waiter-call:", cooldown)
	lg.Info("redis_connected", map[string]any{"cooldown": cooldown.String()})
	return nil
}

func rabbitConfig(c config.RabbitMQConfig) rabbitmq.Config {
	return rabbitmq.Config{Host: c.Host, Port: c.Port, User: c.User, Password: c.Password, VHost: c.VHost}
}
