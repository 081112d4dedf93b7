package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"tableside/internal/domain"
)

type Collection string

const (
	CollectionOrders      Collection = "orders"
	CollectionWaiterCalls Collection = "waiter_calls"
)

type ChangeType string

const (
	ChangeAdded    ChangeType = "added"
	ChangeModified ChangeType = "modified"
	ChangeRemoved  ChangeType = "removed"
)

type Change struct {
	Type ChangeType
	Doc  domain.Document
}

// Snapshot is one change-feed delivery: the full current set of documents in
// feed order (timestamp descending, id ascending) and the per-document
// changes since the previous delivery on the same subscription. The first
// delivery reports every document as added.
type Snapshot struct {
	Collection Collection
	Docs       []domain.Document
	Changes    []Change
}

// Query filters orders by equality on table and payment status and by a
// timestamp range. Results are sorted by timestamp descending, id ascending.
type Query struct {
	TableID       string
	PaymentStatus domain.PaymentStatus
	Since         time.Time // inclusive, zero means unbounded
	Until         time.Time // exclusive, zero means unbounded
	Limit         int
}

// Match applies the query predicates to an already normalized order.
func (q Query) Match(o domain.Order) bool {
	if q.TableID != "" && o.TableID != q.TableID {
		return false
	}
	if q.PaymentStatus != "" && o.PaymentStatus != q.PaymentStatus {
		return false
	}
	if !q.Since.IsZero() && o.Timestamp.Before(q.Since) {
		return false
	}
	if !q.Until.IsZero() && !o.Timestamp.Before(q.Until) {
		return false
	}
	return true
}

// Tx is the view handed to a WithinTables callback. Writes staged through
// Apply become visible only when the callback returns nil.
type Tx interface {
	FindOrders(ctx context.Context, q Query) ([]domain.Order, error)
	Apply(ctx context.Context, writes ...domain.WriteIntent) ([]string, error)
}

type Store interface {
	FindOrders(ctx context.Context, q Query) ([]domain.Order, error)
	GetOrder(ctx context.Context, id string) (domain.Order, error)
	PatchOrder(ctx context.Context, id string, patch domain.OrderPatch) error

	// Apply commits the writes as one all-or-nothing batch and returns the
	// order id each write landed on.
	Apply(ctx context.Context, writes ...domain.WriteIntent) ([]string, error)

	// WithinTables runs fn with writers to the given tables serialized, so
	// that what fn reads is still current when its writes commit.
	WithinTables(ctx context.Context, tableIDs []string, fn func(ctx context.Context, tx Tx) error) error

	AddWaiterCall(ctx context.Context, call domain.WaiterCall) (string, error)
	PatchWaiterCall(ctx context.Context, id string, status domain.CallStatus) error

	Subscribe(ctx context.Context, coll Collection, onSnapshot func(Snapshot), onError func(error)) (*Subscription, error)
}

// Subscription is a live change-feed registration.
type Subscription struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func newSubscription(cancel context.CancelFunc) *Subscription {
	return &Subscription{cancel: cancel, done: make(chan struct{})}
}

// Close stops deliveries. It is safe to call more than once.
func (s *Subscription) Close() { s.cancel() }

// Done is closed once the subscription has stopped, either because it was
// closed or because the underlying feed failed.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// assignIDs gives every create intent an id up front, so that staged batches
// can report ids before they commit.
func assignIDs(writes []domain.WriteIntent) ([]domain.WriteIntent, []string) {
	out := make([]domain.WriteIntent, len(writes))
	ids := make([]string, len(writes))
	for i, w := range writes {
		if w.Kind == domain.IntentCreate && w.Order.ID == "" {
			w.Order.ID = uuid.NewString()
		}
		out[i] = w
		if w.Kind == domain.IntentCreate {
			ids[i] = w.Order.ID
		} else {
			ids[i] = w.OrderID
		}
	}
	return out, ids
}
