package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"sort"
	"sync"

	"github.com/google/uuid"

	"tableside/internal/domain"
)

// MemoryStore keeps documents in process. Writers are serialized store-wide,
// so WithinTables ignores the table list and simply holds the writer lock.
// Documents are kept in their encoded map form, exactly as a remote document
// store would hand them back.
type MemoryStore struct {
	txMu sync.Mutex
	mu   sync.RWMutex
	docs map[Collection]map[string]versionedDoc

	faultMu sync.RWMutex
	fault   func(op string) error

	subsMu sync.Mutex
	subs   map[*memSubscriber]struct{}
}

type memSubscriber struct {
	coll Collection
	wake chan struct{}
	fail chan error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs: map[Collection]map[string]versionedDoc{
			CollectionOrders:      {},
			CollectionWaiterCalls: {},
		},
		subs: make(map[*memSubscriber]struct{}),
	}
}

// SetFault installs a hook consulted before every store step. Op names are
// "find", "get", "apply.create", "apply.update", "commit", "add_call" and
// "patch_call". A non-nil return fails that step with a StoreError.
func (s *MemoryStore) SetFault(fn func(op string) error) {
	s.faultMu.Lock()
	s.fault = fn
	s.faultMu.Unlock()
}

func (s *MemoryStore) inject(op string) error {
	s.faultMu.RLock()
	fn := s.fault
	s.faultMu.RUnlock()
	if fn == nil {
		return nil
	}
	return domain.NewStoreError(op, fn(op))
}

// Seed stores raw document data under id, bypassing encoding. It exists so
// that malformed documents can be placed in the store.
func (s *MemoryStore) Seed(coll Collection, id string, data map[string]any) {
	s.txMu.Lock()
	s.mu.Lock()
	cur := s.docs[coll][id]
	s.docs[coll][id] = versionedDoc{doc: domain.Document{ID: id, Data: data}, version: cur.version + 1}
	s.mu.Unlock()
	s.txMu.Unlock()
	s.notify(coll)
}

// Remove deletes a document.
func (s *MemoryStore) Remove(coll Collection, id string) {
	s.txMu.Lock()
	s.mu.Lock()
	delete(s.docs[coll], id)
	s.mu.Unlock()
	s.txMu.Unlock()
	s.notify(coll)
}

// FailSubscriptions terminates every live subscription with err.
func (s *MemoryStore) FailSubscriptions(err error) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for sub := range s.subs {
		select {
		case sub.fail <- err:
		default:
		}
	}
}

func (s *MemoryStore) FindOrders(ctx context.Context, q Query) ([]domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.inject("find"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return findOrders(s.docs[CollectionOrders], nil, q), nil
}

func (s *MemoryStore) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return domain.Order{}, err
	}
	if err := s.inject("get"); err != nil {
		return domain.Order{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	vd, ok := s.docs[CollectionOrders][id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return domain.NormalizeDocument(vd.doc), nil
}

func (s *MemoryStore) PatchOrder(ctx context.Context, id string, patch domain.OrderPatch) error {
	_, err := s.Apply(ctx, domain.UpdateIntent(id, patch))
	return err
}

func (s *MemoryStore) Apply(ctx context.Context, writes ...domain.WriteIntent) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	writes, ids := assignIDs(writes)

	s.txMu.Lock()
	staged := make(map[string]versionedDoc, len(writes))
	err := s.stage(staged, writes)
	if err == nil {
		err = s.commit(staged)
	}
	s.txMu.Unlock()
	if err != nil {
		return nil, err
	}
	s.notify(CollectionOrders)
	return ids, nil
}

func (s *MemoryStore) WithinTables(ctx context.Context, tableIDs []string, fn func(ctx context.Context, tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.txMu.Lock()
	tx := &memTx{store: s, staged: make(map[string]versionedDoc)}
	err := fn(ctx, tx)
	if err == nil && len(tx.staged) > 0 {
		err = s.commit(tx.staged)
	}
	s.txMu.Unlock()
	if err != nil {
		return err
	}
	if len(tx.staged) > 0 {
		s.notify(CollectionOrders)
	}
	return nil
}

func (s *MemoryStore) AddWaiterCall(ctx context.Context, call domain.WaiterCall) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := s.inject("add_call"); err != nil {
		return "", err
	}
	data, err := encode(call)
	if err != nil {
		return "", domain.NewStoreError("add_call", err)
	}
	id := call.ID
	if id == "" {
		id = uuid.NewString()
	}
	s.txMu.Lock()
	s.mu.Lock()
	s.docs[CollectionWaiterCalls][id] = versionedDoc{doc: domain.Document{ID: id, Data: data}, version: 1}
	s.mu.Unlock()
	s.txMu.Unlock()
	s.notify(CollectionWaiterCalls)
	return id, nil
}

func (s *MemoryStore) PatchWaiterCall(ctx context.Context, id string, status domain.CallStatus) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.inject("patch_call"); err != nil {
		return err
	}
	s.txMu.Lock()
	s.mu.Lock()
	cur, ok := s.docs[CollectionWaiterCalls][id]
	if ok {
		data := maps.Clone(cur.doc.Data)
		if data == nil {
			data = make(map[string]any)
		}
		data["status"] = string(status)
		s.docs[CollectionWaiterCalls][id] = versionedDoc{doc: domain.Document{ID: id, Data: data}, version: cur.version + 1}
	}
	s.mu.Unlock()
	s.txMu.Unlock()
	if !ok {
		return domain.ErrWaiterCallNotFound
	}
	s.notify(CollectionWaiterCalls)
	return nil
}

// Subscribe delivers snapshots from a dedicated goroutine, one at a time.
// Writes only wake the goroutine; it re-reads the collection, so a burst of
// writes may be folded into a single delivery.
func (s *MemoryStore) Subscribe(ctx context.Context, coll Collection, onSnapshot func(Snapshot), onError func(error)) (*Subscription, error) {
	if _, ok := s.docs[coll]; !ok {
		return nil, fmt.Errorf("unknown collection %q", coll)
	}
	ctx, cancel := context.WithCancel(ctx)
	sub := newSubscription(cancel)
	ms := &memSubscriber{coll: coll, wake: make(chan struct{}, 1), fail: make(chan error, 1)}
	ms.wake <- struct{}{}

	s.subsMu.Lock()
	s.subs[ms] = struct{}{}
	s.subsMu.Unlock()

	go func() {
		defer close(sub.done)
		defer func() {
			s.subsMu.Lock()
			delete(s.subs, ms)
			s.subsMu.Unlock()
		}()
		d := newDiffer(coll)
		for {
			select {
			case <-ctx.Done():
				return
			case err := <-ms.fail:
				if onError != nil {
					onError(err)
				}
				return
			case <-ms.wake:
				if snap, ok := d.next(s.read(coll)); ok {
					onSnapshot(snap)
				}
			}
		}
	}()
	return sub, nil
}

func (s *MemoryStore) read(coll Collection) []versionedDoc {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]versionedDoc, 0, len(s.docs[coll]))
	for _, vd := range s.docs[coll] {
		out = append(out, vd)
	}
	return out
}

func (s *MemoryStore) notify(coll Collection) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for sub := range s.subs {
		if sub.coll != coll {
			continue
		}
		select {
		case sub.wake <- struct{}{}:
		default:
		}
	}
}

// stage applies writes on top of staged and the committed orders. The caller
// holds txMu. On error staged may hold a partial result and must be dropped.
func (s *MemoryStore) stage(staged map[string]versionedDoc, writes []domain.WriteIntent) error {
	for _, w := range writes {
		if err := s.inject("apply." + string(w.Kind)); err != nil {
			return err
		}
		switch w.Kind {
		case domain.IntentCreate:
			data, err := encode(w.Order)
			if err != nil {
				return domain.NewStoreError("apply", err)
			}
			staged[w.Order.ID] = versionedDoc{doc: domain.Document{ID: w.Order.ID, Data: data}, version: 1}
		case domain.IntentUpdate:
			cur, ok := staged[w.OrderID]
			if !ok {
				cur, ok = s.docs[CollectionOrders][w.OrderID]
			}
			if !ok {
				return fmt.Errorf("update %s: %w", w.OrderID, domain.ErrOrderNotFound)
			}
			patch, err := encode(w.Patch)
			if err != nil {
				return domain.NewStoreError("apply", err)
			}
			data := maps.Clone(cur.doc.Data)
			if data == nil {
				data = make(map[string]any, len(patch))
			}
			maps.Copy(data, patch)
			staged[w.OrderID] = versionedDoc{doc: domain.Document{ID: w.OrderID, Data: data}, version: cur.version + 1}
		default:
			return fmt.Errorf("unknown write kind %q", w.Kind)
		}
	}
	return nil
}

func (s *MemoryStore) commit(staged map[string]versionedDoc) error {
	if err := s.inject("commit"); err != nil {
		return err
	}
	s.mu.Lock()
	maps.Copy(s.docs[CollectionOrders], staged)
	s.mu.Unlock()
	return nil
}

type memTx struct {
	store  *MemoryStore
	staged map[string]versionedDoc
}

// FindOrders sees committed orders overlaid with this transaction's writes.
func (t *memTx) FindOrders(ctx context.Context, q Query) ([]domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := t.store.inject("find"); err != nil {
		return nil, err
	}
	return findOrders(t.store.docs[CollectionOrders], t.staged, q), nil
}

func (t *memTx) Apply(ctx context.Context, writes ...domain.WriteIntent) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	writes, ids := assignIDs(writes)
	next := maps.Clone(t.staged)
	if err := t.store.stage(next, writes); err != nil {
		return nil, err
	}
	t.staged = next
	return ids, nil
}

func findOrders(committed, overlay map[string]versionedDoc, q Query) []domain.Order {
	out := make([]domain.Order, 0)
	consider := func(vd versionedDoc) {
		if o := domain.NormalizeDocument(vd.doc); q.Match(o) {
			out = append(out, o)
		}
	}
	for id, vd := range committed {
		if _, ok := overlay[id]; ok {
			continue
		}
		consider(vd)
	}
	for _, vd := range overlay {
		consider(vd)
	}
	SortOrders(out)
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

// SortOrders puts orders in feed order: newest first, ties by id.
func SortOrders(orders []domain.Order) {
	sort.SliceStable(orders, func(i, j int) bool {
		if !orders[i].Timestamp.Equal(orders[j].Timestamp) {
			return orders[i].Timestamp.After(orders[j].Timestamp)
		}
		return orders[i].ID < orders[j].ID
	})
}

// encode converts a value to the generic map form documents are stored in.
func encode(v any) (map[string]any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}
