package handlers

import (
	"tableside/internal/common/logger"
	"tableside/internal/domain"
	"tableside/internal/microservices/feed"
	"tableside/internal/microservices/order/service"
)

// FeedView is the read side served to staff.
type FeedView interface {
	Queue() []domain.Order
	History(p feed.Period) feed.HistoryView
	PendingCalls() []domain.WaiterCall
	Live() bool
}

type Handler struct {
	OrderHandler *OrderHandler
	AdminHandler *AdminHandler
}

func New(svc *service.Service, view FeedView, lg *logger.Logger) *Handler {
	return &Handler{
		OrderHandler: NewOrderHandler(svc.OrderService, svc.WaiterService, lg),
		AdminHandler: NewAdminHandler(svc.OrderService, svc.WaiterService, view, lg),
	}
}
