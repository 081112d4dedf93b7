package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tableside/internal/cache"
	"tableside/internal/common/logger"
	"tableside/internal/domain"
	"tableside/internal/microservices/feed"
	"tableside/internal/microservices/order/service"
	"tableside/internal/repository"
)

type fakeView struct {
	queue []domain.Order
	calls []domain.WaiterCall
	asked feed.Period
}

func (f *fakeView) Queue() []domain.Order { return f.queue }

func (f *fakeView) History(p feed.Period) feed.HistoryView {
	f.asked = p
	return feed.HistoryView{Summary: feed.Summary{Period: p, Days: []feed.DaySummary{}}, Orders: f.queue}
}

func (f *fakeView) PendingCalls() []domain.WaiterCall { return f.calls }
func (f *fakeView) Live() bool                        { return true }

type fixture struct {
	srv   *httptest.Server
	store *repository.MemoryStore
	view  *fakeView
}

func newFixture(t *testing.T, limiter *IPLimiter, roster ...domain.Table) *fixture {
	t.Helper()
	lg := logger.NewWithWriter("test", io.Discard)
	st := repository.NewMemoryStore()
	svc := service.New(st, roster, cache.NewLocalCooldown(time.Minute), lg)
	view := &fakeView{}
	srv := httptest.NewServer(Router(New(svc, view, lg), limiter, view.Live, lg))
	t.Cleanup(srv.Close)
	return &fixture{srv: srv, store: st, view: view}
}

func (f *fixture) do(t *testing.T, method, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, f.srv.URL+path, rd)
	require.NoError(t, err)
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	out := map[string]any{}
	_ = json.NewDecoder(res.Body).Decode(&out)
	return res, out
}

var pizza = map[string]any{"id": "p1", "name": "Margherita", "price": 10, "quantity": 2}

func TestCheckoutCreatesThenMerges(t *testing.T) {
	f := newFixture(t, nil)

	res, body := f.do(t, http.MethodPost, "/api/v1/tables/5/checkout", map[string]any{"items": []any{pizza}})
	require.Equal(t, http.StatusCreated, res.StatusCode)
	assert.Equal(t, false, body["merged"])
	assert.Equal(t, 20.0, body["total_price"])
	first := body["order_id"]

	res, body = f.do(t, http.MethodPost, "/api/v1/tables/5/checkout", map[string]any{"items": []any{pizza}, "note": "no basil"})
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, true, body["merged"])
	assert.Equal(t, first, body["order_id"])
	assert.Equal(t, 40.0, body["total_price"])
}

func TestCheckoutValidation(t *testing.T) {
	f := newFixture(t, nil, domain.Table{ID: "1", Name: "Window"})

	res, body := f.do(t, http.MethodPost, "/api/v1/tables/1/checkout", map[string]any{"items": []any{}})
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Equal(t, "validation_error", body["type"])

	res, body = f.do(t, http.MethodPost, "/api/v1/tables/1/checkout", "{oops")
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Equal(t, "bad_json", body["type"])

	res, _ = f.do(t, http.MethodPost, "/api/v1/tables/99/checkout", map[string]any{"items": []any{pizza}})
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestCheckoutStoreFailureIsUnavailable(t *testing.T) {
	f := newFixture(t, nil)
	f.store.SetFault(func(op string) error {
		if op == "commit" {
			return assert.AnError
		}
		return nil
	})

	res, body := f.do(t, http.MethodPost, "/api/v1/tables/1/checkout", map[string]any{"items": []any{pizza}})
	assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)
	assert.Equal(t, "store_unavailable", body["type"])
}

func TestTransferEndpoint(t *testing.T) {
	f := newFixture(t, nil)

	res, _ := f.do(t, http.MethodPost, "/api/v1/admin/transfers", map[string]any{"source_table_id": "1", "target_table_id": "1"})
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	res, body := f.do(t, http.MethodPost, "/api/v1/admin/transfers", map[string]any{"source_table_id": "1", "target_table_id": "2"})
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	assert.Equal(t, "nothing_to_transfer", body["type"])

	_, body = f.do(t, http.MethodPost, "/api/v1/tables/1/checkout", map[string]any{"items": []any{pizza}})
	src := body["order_id"]

	res, body = f.do(t, http.MethodPost, "/api/v1/admin/transfers", map[string]any{"source_table_id": "1", "target_table_id": "2"})
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, true, body["created"])
	assert.Equal(t, []any{src}, body["closed_orders"])
	assert.Equal(t, 20.0, body["total_price"])
}

func TestStatusAndPaymentEndpoints(t *testing.T) {
	f := newFixture(t, nil)
	_, body := f.do(t, http.MethodPost, "/api/v1/tables/3/checkout", map[string]any{"items": []any{pizza}})
	id := body["order_id"].(string)

	res, _ := f.do(t, http.MethodPatch, "/api/v1/admin/orders/"+id+"/status", map[string]any{"status": "ready"})
	assert.Equal(t, http.StatusOK, res.StatusCode)

	res, _ = f.do(t, http.MethodPatch, "/api/v1/admin/orders/"+id+"/status", map[string]any{"status": "eaten"})
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	res, _ = f.do(t, http.MethodPatch, "/api/v1/admin/orders/missing/status", map[string]any{"status": "ready"})
	assert.Equal(t, http.StatusNotFound, res.StatusCode)

	res, _ = f.do(t, http.MethodPatch, "/api/v1/admin/orders/"+id+"/payment", map[string]any{"payment_status": "paid"})
	assert.Equal(t, http.StatusOK, res.StatusCode)

	o, err := f.store.GetOrder(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReady, o.Status)
	assert.Equal(t, domain.PaymentPaid, o.PaymentStatus)
}

func TestWaiterCallCooldownAndAck(t *testing.T) {
	f := newFixture(t, nil)

	res, body := f.do(t, http.MethodPost, "/api/v1/tables/8/waiter-calls", nil)
	require.Equal(t, http.StatusCreated, res.StatusCode)
	id := body["call_id"].(string)

	res, body = f.do(t, http.MethodPost, "/api/v1/tables/8/waiter-calls", nil)
	assert.Equal(t, http.StatusTooManyRequests, res.StatusCode)
	assert.Equal(t, "cooldown", body["type"])

	res, _ = f.do(t, http.MethodPatch, "/api/v1/admin/waiter-calls/"+id+"/ack", nil)
	assert.Equal(t, http.StatusOK, res.StatusCode)

	res, _ = f.do(t, http.MethodPatch, "/api/v1/admin/waiter-calls/nope/ack", nil)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestFeedViews(t *testing.T) {
	f := newFixture(t, nil)
	f.view.queue = []domain.Order{{ID: "o1", TableID: "2", Status: domain.StatusNew, PaymentStatus: domain.PaymentPending, Timestamp: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}}
	f.view.calls = []domain.WaiterCall{{ID: "w1", TableID: "2", Status: domain.CallPending}}

	res, body := f.do(t, http.MethodGet, "/api/v1/admin/queue", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	orders := body["orders"].([]any)
	require.Len(t, orders, 1)
	assert.Equal(t, "o1", orders[0].(map[string]any)["id"])

	res, _ = f.do(t, http.MethodGet, "/api/v1/admin/history?period=week", nil)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, feed.PeriodWeek, f.view.asked)

	res, _ = f.do(t, http.MethodGet, "/api/v1/admin/history?period=decade", nil)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	res, body = f.do(t, http.MethodGet, "/api/v1/admin/waiter-calls", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Len(t, body["waiter_calls"], 1)

	res, body = f.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, true, body["feed_live"])
}

func TestTablesEndpoint(t *testing.T) {
	f := newFixture(t, nil, domain.Table{ID: "1", Name: "Window"}, domain.Table{ID: "2", Name: "Patio"})
	res, body := f.do(t, http.MethodGet, "/api/v1/tables", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Len(t, body["tables"], 2)
}

func TestRateLimitedCheckout(t *testing.T) {
	f := newFixture(t, NewIPLimiter(0, 1, logger.NewWithWriter("test", io.Discard)))

	res, _ := f.do(t, http.MethodPost, "/api/v1/tables/1/checkout", map[string]any{"items": []any{pizza}})
	assert.Equal(t, http.StatusCreated, res.StatusCode)

	res, body := f.do(t, http.MethodPost, "/api/v1/tables/1/checkout", map[string]any{"items": []any{pizza}})
	assert.Equal(t, http.StatusTooManyRequests, res.StatusCode)
	assert.Equal(t, "rate_limited", body["type"])

	res, _ = f.do(t, http.MethodGet, "/api/v1/admin/queue", nil)
	assert.Equal(t, http.StatusOK, res.StatusCode, "staff endpoints are not throttled")
}

func TestIPLimiterForgetsIdleClients(t *testing.T) {
	l := NewIPLimiter(0, 1, logger.NewWithWriter("test", io.Discard))
	now := time.Now()
	assert.True(t, l.allow("10.0.0.1", now))
	assert.False(t, l.allow("10.0.0.1", now))
	assert.True(t, l.allow("10.0.0.2", now))
	assert.True(t, l.allow("10.0.0.1", now.Add(2*clientIdle)))
}
