package app

import (
	"context"
	"errors"

	"tableside/internal/common/logger"
	"tableside/internal/config"
	"tableside/internal/connections/rabbitmq"
	"tableside/internal/microservices/notificator"
)

// RunNotificationSubscriber prints alerts published by any order service.
func RunNotificationSubscriber(ctx context.Context, cfg config.Config) error {
	if !cfg.RabbitMQ.Enabled() {
		return errors.New("notification-subscriber needs rabbitmq.host")
	}
	lg := logger.New("notification-subscriber")
	rmq, err := rabbitmq.DialRetry(ctx, rabbitConfig(cfg.RabbitMQ), dialAttempts, dialDelay)
	if err != nil {
		return err
	}
	defer rmq.Close()

	lg.Info("service_started", map[string]any{"queue": rabbitmq.NotificationsQueue})
	return notificator.Start(ctx, rmq, lg)
}
