package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tableside/internal/domain"
)

var base = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func order(table string, paid bool, at time.Time, items ...domain.LineItem) domain.Order {
	o := domain.Order{
		TableID:       table,
		SessionID:     "s-" + table,
		Items:         items,
		Status:        domain.StatusNew,
		PaymentStatus: domain.PaymentPending,
		TotalPrice:    domain.Total(items),
		Timestamp:     at,
	}
	if paid {
		o.PaymentStatus = domain.PaymentPaid
	}
	return o
}

func TestMemoryApplyAndFind(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()

	ids, err := st.Apply(ctx,
		domain.CreateIntent(order("t1", false, base, domain.LineItem{ID: "a", Name: "Tea", Price: 2, Quantity: 1})),
		domain.CreateIntent(order("t1", true, base.Add(time.Minute))),
		domain.CreateIntent(order("t2", false, base.Add(2*time.Minute))),
	)
	require.NoError(t, err)
	require.Len(t, ids, 3)

	pending, err := st.FindOrders(ctx, Query{TableID: "t1", PaymentStatus: domain.PaymentPending})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, ids[0], pending[0].ID)
	assert.Equal(t, 2.0, pending[0].TotalPrice)
	assert.True(t, pending[0].Timestamp.Equal(base))

	all, err := st.FindOrders(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{ids[2], ids[1], ids[0]}, []string{all[0].ID, all[1].ID, all[2].ID})

	ranged, err := st.FindOrders(ctx, Query{Since: base.Add(time.Minute), Until: base.Add(2 * time.Minute)})
	require.NoError(t, err)
	require.Len(t, ranged, 1)
	assert.Equal(t, ids[1], ranged[0].ID)

	limited, err := st.FindOrders(ctx, Query{Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, ids[2], limited[0].ID)
}

func TestMemoryFindTieBreaksByID(t *testing.T) {
	st := NewMemoryStore()
	st.Seed(CollectionOrders, "b", map[string]any{"table_id": "t1", "timestamp": base.Format(time.RFC3339Nano)})
	st.Seed(CollectionOrders, "a", map[string]any{"table_id": "t1", "timestamp": base.Format(time.RFC3339Nano)})

	got, err := st.FindOrders(context.Background(), Query{TableID: "t1"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "b", got[1].ID)
}

func TestMemoryPatchOrder(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	ids, err := st.Apply(ctx, domain.CreateIntent(order("t1", false, base)))
	require.NoError(t, err)

	status := domain.StatusReady
	require.NoError(t, st.PatchOrder(ctx, ids[0], domain.OrderPatch{Status: &status}))

	got, err := st.GetOrder(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReady, got.Status)
	assert.Equal(t, "t1", got.TableID)

	err = st.PatchOrder(ctx, "missing", domain.OrderPatch{Status: &status})
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)

	_, err = st.GetOrder(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestMemoryApplyIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	ids, err := st.Apply(ctx, domain.CreateIntent(order("t1", false, base)))
	require.NoError(t, err)

	paid := domain.PaymentPaid
	_, err = st.Apply(ctx,
		domain.CreateIntent(order("t2", false, base)),
		domain.UpdateIntent(ids[0], domain.OrderPatch{PaymentStatus: &paid}),
		domain.UpdateIntent("missing", domain.OrderPatch{PaymentStatus: &paid}),
	)
	require.ErrorIs(t, err, domain.ErrOrderNotFound)

	all, err := st.FindOrders(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, domain.PaymentPending, all[0].PaymentStatus)
}

func TestMemoryFaultInjection(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	boom := errors.New("unavailable")

	st.SetFault(func(op string) error {
		if op == "commit" {
			return boom
		}
		return nil
	})
	_, err := st.Apply(ctx, domain.CreateIntent(order("t1", false, base)))
	require.ErrorIs(t, err, boom)
	assert.True(t, domain.IsRetryable(err))

	st.SetFault(nil)
	all, err := st.FindOrders(ctx, Query{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestMemoryWithinTablesStagesUntilReturn(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()

	err := st.WithinTables(ctx, []string{"t1"}, func(ctx context.Context, tx Tx) error {
		_, err := tx.Apply(ctx, domain.CreateIntent(order("t1", false, base)))
		require.NoError(t, err)

		inside, err := tx.FindOrders(ctx, Query{TableID: "t1"})
		require.NoError(t, err)
		assert.Len(t, inside, 1)

		outside, err := st.FindOrders(ctx, Query{TableID: "t1"})
		require.NoError(t, err)
		assert.Empty(t, outside)
		return errors.New("abort")
	})
	require.EqualError(t, err, "abort")

	all, err := st.FindOrders(ctx, Query{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestMemoryWithinTablesSerializesWriters(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = st.WithinTables(ctx, []string{"t1"}, func(ctx context.Context, tx Tx) error {
				open, err := tx.FindOrders(ctx, Query{TableID: "t1", PaymentStatus: domain.PaymentPending})
				if err != nil {
					return err
				}
				if len(open) > 0 {
					return nil
				}
				_, err = tx.Apply(ctx, domain.CreateIntent(order("t1", false, base)))
				return err
			})
		}()
	}
	wg.Wait()

	open, err := st.FindOrders(ctx, Query{TableID: "t1", PaymentStatus: domain.PaymentPending})
	require.NoError(t, err)
	assert.Len(t, open, 1)
}

func TestMemoryWaiterCalls(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()

	id, err := st.AddWaiterCall(ctx, domain.WaiterCall{TableID: "t4", Status: domain.CallPending, Timestamp: base})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	require.NoError(t, st.PatchWaiterCall(ctx, id, domain.CallAcknowledged))
	assert.ErrorIs(t, st.PatchWaiterCall(ctx, "nope", domain.CallAcknowledged), domain.ErrWaiterCallNotFound)

	docs := st.read(CollectionWaiterCalls)
	require.Len(t, docs, 1)
	call := domain.NormalizeWaiterCall(docs[0].doc)
	assert.Equal(t, domain.CallAcknowledged, call.Status)
	assert.Equal(t, "t4", call.TableID)
}

type recorder struct {
	mu    sync.Mutex
	snaps []Snapshot
	errs  []error
}

func (r *recorder) onSnapshot(s Snapshot) {
	r.mu.Lock()
	r.snaps = append(r.snaps, s)
	r.mu.Unlock()
}

func (r *recorder) onError(err error) {
	r.mu.Lock()
	r.errs = append(r.errs, err)
	r.mu.Unlock()
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snaps)
}

func (r *recorder) last() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snaps[len(r.snaps)-1]
}

func TestMemorySubscribeDeliversDiffs(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	st.Seed(CollectionOrders, "o1", map[string]any{"table_id": "t1", "timestamp": base.Format(time.RFC3339Nano)})

	rec := &recorder{}
	sub, err := st.Subscribe(ctx, CollectionOrders, rec.onSnapshot, rec.onError)
	require.NoError(t, err)
	defer sub.Close()

	require.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, 5*time.Millisecond)
	first := rec.last()
	require.Len(t, first.Changes, 1)
	assert.Equal(t, ChangeAdded, first.Changes[0].Type)

	status := domain.StatusPreparing
	require.NoError(t, st.PatchOrder(ctx, "o1", domain.OrderPatch{Status: &status}))
	require.Eventually(t, func() bool { return rec.count() == 2 }, time.Second, 5*time.Millisecond)
	second := rec.last()
	require.Len(t, second.Changes, 1)
	assert.Equal(t, ChangeModified, second.Changes[0].Type)

	st.Remove(CollectionOrders, "o1")
	require.Eventually(t, func() bool { return rec.count() == 3 }, time.Second, 5*time.Millisecond)
	third := rec.last()
	assert.Empty(t, third.Docs)
	require.Len(t, third.Changes, 1)
	assert.Equal(t, ChangeRemoved, third.Changes[0].Type)
	assert.Equal(t, "o1", third.Changes[0].Doc.ID)
}

func TestMemorySubscribeIgnoresOtherCollections(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	rec := &recorder{}
	sub, err := st.Subscribe(ctx, CollectionWaiterCalls, rec.onSnapshot, rec.onError)
	require.NoError(t, err)
	defer sub.Close()

	require.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, 5*time.Millisecond)
	_, err = st.Apply(ctx, domain.CreateIntent(order("t1", false, base)))
	require.NoError(t, err)

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 1, rec.count())
}

func TestMemorySubscriptionFailureEndsSubscription(t *testing.T) {
	st := NewMemoryStore()
	rec := &recorder{}
	sub, err := st.Subscribe(context.Background(), CollectionOrders, rec.onSnapshot, rec.onError)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, 5*time.Millisecond)

	st.FailSubscriptions(errors.New("feed lost"))
	select {
	case <-sub.Done():
	case <-time.After(time.Second):
		t.Fatal("subscription did not stop")
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.errs, 1)
	assert.EqualError(t, rec.errs[0], "feed lost")
}

func TestMemorySubscriptionClose(t *testing.T) {
	st := NewMemoryStore()
	sub, err := st.Subscribe(context.Background(), CollectionOrders, func(Snapshot) {}, nil)
	require.NoError(t, err)
	sub.Close()
	sub.Close()
	select {
	case <-sub.Done():
	case <-time.After(time.Second):
		t.Fatal("subscription did not stop")
	}
}
