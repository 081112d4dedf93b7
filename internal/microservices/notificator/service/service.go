package service

import "tableside/internal/common/logger"

type Service struct {
	NotificatorService *NotificatorService
}

func New(consumer Consumer, queue string, lg *logger.Logger) *Service {
	return &Service{NotificatorService: NewNotificatorService(consumer, NewLogAlerter(lg), queue, lg)}
}
