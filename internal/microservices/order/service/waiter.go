package service

import (
	"context"
	"fmt"
	"time"

	"tableside/internal/common/logger"
	"tableside/internal/domain"
	"tableside/internal/repository"
)

// CallGate limits how often a table may call the waiter. Release hands back
// a key whose call was never recorded.
type CallGate interface {
	Acquire(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

type WaiterServiceInterface interface {
	Call(ctx context.Context, tableID string) (domain.WaiterCallResponse, error)
	Acknowledge(ctx context.Context, callID string) error
}

type WaiterService struct {
	store  repository.Store
	gate   CallGate
	orders *OrderService
	log    *logger.Logger
	now    func() time.Time
}

// NewWaiterService shares the table roster check of orders. gate may be nil.
func NewWaiterService(store repository.Store, gate CallGate, orders *OrderService, lg *logger.Logger) *WaiterService {
	return &WaiterService{
		store:  store,
		gate:   gate,
		orders: orders,
		log:    lg,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *WaiterService) Call(ctx context.Context, tableID string) (domain.WaiterCallResponse, error) {
	if err := s.orders.checkTable(tableID); err != nil {
		return domain.WaiterCallResponse{}, err
	}
	held := false
	if s.gate != nil {
		ok, err := s.gate.Acquire(ctx, tableID)
		held = ok && err == nil
		switch {
		case err != nil:
			// fail open when the cache is down
			s.log.Warn("waiter_cooldown_unavailable", map[string]any{"table_id": tableID, "error": err.Error()})
		case !ok:
			return domain.WaiterCallResponse{}, domain.ErrCallCooldown
		}
	}

	call := domain.WaiterCall{TableID: tableID, Status: domain.CallPending, Timestamp: s.now()}
	id, err := s.store.AddWaiterCall(ctx, call)
	if err != nil {
		s.log.Error("waiter_call_failed", err, map[string]any{"table_id": tableID})
		if held {
			if rerr := s.gate.Release(ctx, tableID); rerr != nil {
				s.log.Warn("waiter_cooldown_release_failed", map[string]any{"table_id": tableID, "error": rerr.Error()})
			}
		}
		return domain.WaiterCallResponse{}, fmt.Errorf("call waiter for %s: %w", tableID, err)
	}
	s.log.Info("waiter_called", map[string]any{"table_id": tableID, "call_id": id})
	return domain.WaiterCallResponse{CallID: id, TableID: tableID, Status: string(domain.CallPending)}, nil
}

func (s *WaiterService) Acknowledge(ctx context.Context, callID string) error {
	if err := s.store.PatchWaiterCall(ctx, callID, domain.CallAcknowledged); err != nil {
		return fmt.Errorf("acknowledge call %s: %w", callID, err)
	}
	s.log.Info("waiter_call_acknowledged", map[string]any{"call_id": callID})
	return nil
}
