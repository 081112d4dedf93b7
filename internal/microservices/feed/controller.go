package feed

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tableside/internal/common/logger"
	"tableside/internal/domain"
	"tableside/internal/repository"
)

const alertTimeout = 5 * time.Second

// Alerter receives the feed's side effects.
type Alerter interface {
	Alert(ctx context.Context, msg domain.AlertMessage) error
}

type Config struct {
	ResubscribeDelay time.Duration
	DefaultPeriod    Period
	Location         *time.Location
	Roster           []domain.Table
}

// Controller follows the order and waiter-call feeds, keeps the latest
// normalized view of both and raises alerts. A failed subscription is
// retried; the last known view stays readable meanwhile.
type Controller struct {
	store   repository.Store
	alerter Alerter
	log     *logger.Logger
	cfg     Config
	now     func() time.Time

	mu         sync.RWMutex
	orders     []domain.Order
	orderState OrderFeedState
	calls      []domain.WaiterCall
	callState  *WaiterFeedState
	live       map[repository.Collection]bool
}

func NewController(store repository.Store, alerter Alerter, cfg Config, lg *logger.Logger) *Controller {
	if cfg.DefaultPeriod == "" {
		cfg.DefaultPeriod = PeriodToday
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.ResubscribeDelay <= 0 {
		cfg.ResubscribeDelay = 2 * time.Second
	}
	return &Controller{
		store:     store,
		alerter:   alerter,
		log:       lg,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
		orders:    make([]domain.Order, 0),
		calls:     make([]domain.WaiterCall, 0),
		callState: NewWaiterFeedState(),
		live:      make(map[repository.Collection]bool),
	}
}

// Run blocks until ctx ends.
func (c *Controller) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		c.follow(ctx, repository.CollectionOrders, c.HandleOrders, c.resetOrders)
	}()
	go func() {
		defer wg.Done()
		c.follow(ctx, repository.CollectionWaiterCalls, c.HandleWaiterCalls, nil)
	}()
	wg.Wait()
}

func (c *Controller) follow(ctx context.Context, coll repository.Collection, handle func(repository.Snapshot), reset func()) {
	for {
		if reset != nil {
			reset()
		}
		sub, err := c.store.Subscribe(ctx, coll, handle, func(err error) {
			c.log.Error("feed_error", err, map[string]any{"collection": coll})
		})
		if err != nil {
			c.log.Error("feed_subscribe_failed", err, map[string]any{"collection": coll})
		} else {
			c.setLive(coll, true)
			c.log.Info("feed_subscribed", map[string]any{"collection": coll})
			select {
			case <-ctx.Done():
				sub.Close()
				<-sub.Done()
				c.setLive(coll, false)
				return
			case <-sub.Done():
				c.setLive(coll, false)
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(c.cfg.ResubscribeDelay):
			c.log.Info("feed_resubscribing", map[string]any{"collection": coll})
		}
	}
}

func (c *Controller) setLive(coll repository.Collection, live bool) {
	c.mu.Lock()
	c.live[coll] = live
	c.mu.Unlock()
}

// Live reports whether both feeds currently have an active subscription.
func (c *Controller) Live() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.live[repository.CollectionOrders] && c.live[repository.CollectionWaiterCalls]
}

// resetOrders makes the next delivery count as the first one again.
func (c *Controller) resetOrders() {
	c.mu.Lock()
	c.orderState = OrderFeedState{}
	c.mu.Unlock()
}

func (c *Controller) HandleOrders(snap repository.Snapshot) {
	orders := make([]domain.Order, 0, len(snap.Docs))
	for _, d := range snap.Docs {
		orders = append(orders, domain.NormalizeDocument(d))
	}
	repository.SortOrders(orders)

	c.mu.Lock()
	next, grew := FoldOrders(c.orderState, len(orders))
	added := next.Count - c.orderState.Count
	c.orderState = next
	c.orders = orders
	c.mu.Unlock()

	c.log.Debug("feed_orders_delivered", map[string]any{"count": next.Count, "changes": len(snap.Changes)})
	if grew {
		c.alert(domain.AlertMessage{
			Kind:      domain.AlertNewOrder,
			Message:   fmt.Sprintf("%d new order(s)", added),
			Timestamp: c.now(),
		})
	}
}

func (c *Controller) HandleWaiterCalls(snap repository.Snapshot) {
	calls := make([]domain.WaiterCall, 0, len(snap.Docs))
	for _, d := range snap.Docs {
		calls = append(calls, domain.NormalizeWaiterCall(d))
	}

	c.mu.Lock()
	fresh := c.callState.Fold(snap.Changes)
	c.calls = calls
	c.mu.Unlock()

	for _, call := range fresh {
		c.alert(domain.AlertMessage{
			Kind:      domain.AlertWaiterCall,
			TableID:   call.TableID,
			CallID:    call.ID,
			Message:   "Waiter requested at " + domain.TableLabel(c.cfg.Roster, call.TableID),
			Timestamp: c.now(),
		})
	}
}

func (c *Controller) alert(msg domain.AlertMessage) {
	if c.alerter == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), alertTimeout)
	defer cancel()
	if err := c.alerter.Alert(ctx, msg); err != nil {
		c.log.Error("alert_failed", err, map[string]any{"kind": msg.Kind, "table_id": msg.TableID})
		return
	}
	c.log.Info("alert_triggered", map[string]any{"kind": msg.Kind, "table_id": msg.TableID, "call_id": msg.CallID})
}

// Queue lists the open orders, newest first.
func (c *Controller) Queue() []domain.Order {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.Order, 0, len(c.orders))
	for _, o := range c.orders {
		if o.Open() {
			out = append(out, o)
		}
	}
	return out
}

type HistoryView struct {
	Summary Summary        `json:"summary"`
	Orders  []domain.Order `json:"-"`
}

// History filters the feed's full order set to the period window. An empty
// period selects the configured default.
func (c *Controller) History(p Period) HistoryView {
	if p == "" {
		p = c.cfg.DefaultPeriod
	}
	since, until := p.Range(c.now(), c.cfg.Location)

	c.mu.RLock()
	inRange := make([]domain.Order, 0)
	for _, o := range c.orders {
		if InRange(o.Timestamp, since, until) {
			inRange = append(inRange, o)
		}
	}
	c.mu.RUnlock()

	return HistoryView{
		Summary: Summarize(p, inRange, since, until, c.cfg.Location),
		Orders:  inRange,
	}
}

// PendingCalls lists waiter calls nobody has acknowledged yet.
func (c *Controller) PendingCalls() []domain.WaiterCall {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.WaiterCall, 0)
	for _, call := range c.calls {
		if call.Status == domain.CallPending {
			out = append(out, call)
		}
	}
	return out
}
