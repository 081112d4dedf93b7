package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"tableside/internal/common/logger"
	"tableside/internal/domain"
	"tableside/internal/repository"
)

type OrderServiceInterface interface {
	Tables() []domain.Table
	Checkout(ctx context.Context, tableID string, req domain.CheckoutRequest) (domain.CheckoutResponse, error)
	Transfer(ctx context.Context, req domain.TransferRequest) (domain.TransferResponse, error)
	UpdateStatus(ctx context.Context, orderID, status string) error
	SetPaymentStatus(ctx context.Context, orderID, status string) error
}

type OrderService struct {
	store  repository.Store
	roster []domain.Table
	log    *logger.Logger

	now        func() time.Time
	newSession func() string
}

func NewOrderService(store repository.Store, roster []domain.Table, lg *logger.Logger) *OrderService {
	return &OrderService{
		store:      store,
		roster:     roster,
		log:        lg,
		now:        func() time.Time { return time.Now().UTC() },
		newSession: uuid.NewString,
	}
}

func (s *OrderService) Tables() []domain.Table {
	return append([]domain.Table(nil), s.roster...)
}

// checkTable accepts any non-empty id when no roster is configured.
func (s *OrderService) checkTable(id string) error {
	if strings.TrimSpace(id) == "" {
		return domain.ErrMissingTable
	}
	if len(s.roster) == 0 {
		return nil
	}
	for _, t := range s.roster {
		if t.ID == id {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", domain.ErrUnknownTable, id)
}

func (s *OrderService) Checkout(ctx context.Context, tableID string, req domain.CheckoutRequest) (domain.CheckoutResponse, error) {
	if err := s.checkTable(tableID); err != nil {
		return domain.CheckoutResponse{}, err
	}
	cart := domain.Aggregate(domain.NormalizeItems(req.Items))
	if len(cart) == 0 {
		return domain.CheckoutResponse{}, domain.ErrEmptyCart
	}

	var (
		intent domain.WriteIntent
		ids    []string
	)
	err := s.store.WithinTables(ctx, []string{tableID}, func(ctx context.Context, tx repository.Tx) error {
		open, err := tx.FindOrders(ctx, repository.Query{TableID: tableID, PaymentStatus: domain.PaymentPending})
		if err != nil {
			return err
		}
		intent = ResolveCheckout(tableID, cart, req.Note, open, s.now(), s.newSession)
		ids, err = tx.Apply(ctx, intent)
		return err
	})
	if err != nil {
		s.log.Error("checkout_failed", err, map[string]any{"table_id": tableID, "retryable": domain.IsRetryable(err)})
		return domain.CheckoutResponse{}, fmt.Errorf("checkout table %s: %w", tableID, err)
	}

	resp := domain.CheckoutResponse{OrderID: ids[0], Merged: intent.Kind == domain.IntentUpdate}
	if resp.Merged {
		resp.TotalPrice = *intent.Patch.TotalPrice
	} else {
		resp.TotalPrice = intent.Order.TotalPrice
	}
	s.log.Info("checkout_applied", map[string]any{
		"table_id": tableID, "order_id": resp.OrderID, "merged": resp.Merged,
		"items": len(cart), "total_price": resp.TotalPrice,
	})
	return resp, nil
}

func (s *OrderService) Transfer(ctx context.Context, req domain.TransferRequest) (domain.TransferResponse, error) {
	src, dst := strings.TrimSpace(req.SourceTableID), strings.TrimSpace(req.TargetTableID)
	if src == "" || dst == "" || src == dst {
		return domain.TransferResponse{}, domain.ErrInvalidTransfer
	}
	if err := s.checkTable(src); err != nil {
		return domain.TransferResponse{}, err
	}
	if err := s.checkTable(dst); err != nil {
		return domain.TransferResponse{}, err
	}

	var (
		plan TransferPlan
		ids  []string
	)
	err := s.store.WithinTables(ctx, []string{src, dst}, func(ctx context.Context, tx repository.Tx) error {
		sources, err := tx.FindOrders(ctx, repository.Query{TableID: src, PaymentStatus: domain.PaymentPending})
		if err != nil {
			return err
		}
		targets, err := tx.FindOrders(ctx, repository.Query{TableID: dst, PaymentStatus: domain.PaymentPending, Limit: 1})
		if err != nil {
			return err
		}
		in := TransferInput{
			SourceTableID: src,
			TargetTableID: dst,
			SourceLabel:   domain.TableLabel(s.roster, src),
			TargetLabel:   domain.TableLabel(s.roster, dst),
			Sources:       sources,
			Now:           s.now(),
		}
		if len(targets) > 0 {
			in.Target = &targets[0]
		}
		if plan, err = ResolveTransfer(in); err != nil {
			return err
		}
		ids, err = tx.Apply(ctx, plan.Batch.Writes...)
		return err
	})
	if err != nil {
		s.log.Error("transfer_failed", err, map[string]any{"source_table_id": src, "target_table_id": dst})
		return domain.TransferResponse{}, fmt.Errorf("transfer %s to %s: %w", src, dst, err)
	}

	resp := domain.TransferResponse{
		TargetOrderID: ids[0],
		Created:       plan.TargetCreated,
		ClosedOrders:  plan.SourceIDs,
		TotalPrice:    plan.TotalPrice,
	}
	s.log.Info("transfer_applied", map[string]any{
		"source_table_id": src, "target_table_id": dst, "target_order_id": resp.TargetOrderID,
		"created": resp.Created, "closed_orders": len(resp.ClosedOrders),
	})
	return resp, nil
}

func (s *OrderService) UpdateStatus(ctx context.Context, orderID, status string) error {
	st := domain.OrderStatus(status)
	if !st.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidStatus, status)
	}
	now := s.now()
	if err := s.store.PatchOrder(ctx, orderID, domain.OrderPatch{Status: &st, Timestamp: &now}); err != nil {
		return fmt.Errorf("update status of %s: %w", orderID, err)
	}
	s.log.Info("order_status_changed", map[string]any{"order_id": orderID, "status": st})
	return nil
}

func (s *OrderService) SetPaymentStatus(ctx context.Context, orderID, status string) error {
	ps := domain.PaymentStatus(status)
	if !ps.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidPaymentStatus, status)
	}
	now := s.now()
	if err := s.store.PatchOrder(ctx, orderID, domain.OrderPatch{PaymentStatus: &ps, Timestamp: &now}); err != nil {
		return fmt.Errorf("update payment of %s: %w", orderID, err)
	}
	s.log.Info("order_payment_changed", map[string]any{"order_id": orderID, "payment_status": ps})
	return nil
}
