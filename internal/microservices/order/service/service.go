package service

import (
	"tableside/internal/common/logger"
	"tableside/internal/domain"
	"tableside/internal/repository"
)

type Service struct {
	OrderService  OrderServiceInterface
	WaiterService WaiterServiceInterface
}

func New(store repository.Store, roster []domain.Table, gate CallGate, lg *logger.Logger) *Service {
	orders := NewOrderService(store, roster, lg)
	return &Service{
		OrderService:  orders,
		WaiterService: NewWaiterService(store, gate, orders, lg),
	}
}
