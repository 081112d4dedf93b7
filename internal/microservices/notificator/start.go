package notificator

import (
	"context"
	"fmt"

	"tableside/internal/common/logger"
	"tableside/internal/connections/rabbitmq"
	"tableside/internal/microservices/notificator/service"
)

// Start prints every alert the feed publishes until ctx ends.
func Start(ctx context.Context, rmqClient *rabbitmq.Client, lg *logger.Logger) error {
	if err := rmqClient.DeclareTopology(); err != nil {
		return fmt.Errorf("declare topology: %w", err)
	}
	svc := service.New(rmqClient, rabbitmq.NotificationsQueue, lg)
	return svc.NotificatorService.Run(ctx)
}
