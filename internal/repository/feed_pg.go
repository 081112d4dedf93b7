package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tableside/internal/domain"
)

var errFeedClosed = errors.New("change notifications closed")

var feedTables = map[Collection]string{
	CollectionOrders:      "orders",
	CollectionWaiterCalls: "waiter_calls",
}

// Subscribe re-reads the collection whenever a change notification for it
// arrives, and on every resync tick, and delivers the diff. The subscription
// ends with onError if a read fails or the notification stream closes.
func (s *PGStore) Subscribe(ctx context.Context, coll Collection, onSnapshot func(Snapshot), onError func(error)) (*Subscription, error) {
	table, ok := feedTables[coll]
	if !ok {
		return nil, fmt.Errorf("unknown collection %q", coll)
	}
	ctx, cancel := context.WithCancel(ctx)

	var changes <-chan domain.ChangeMessage
	if s.source != nil {
		ch, err := s.source.Listen(ctx)
		if err != nil {
			cancel()
			return nil, domain.NewStoreError("subscribe", err)
		}
		changes = ch
	}

	sub := newSubscription(cancel)
	go s.follow(ctx, sub, coll, table, changes, onSnapshot, onError)
	return sub, nil
}

func (s *PGStore) follow(ctx context.Context, sub *Subscription, coll Collection, table string,
	changes <-chan domain.ChangeMessage, onSnapshot func(Snapshot), onError func(error)) {

	defer close(sub.done)

	fail := func(err error) {
		if ctx.Err() != nil {
			return
		}
		s.log.Error("feed_failed", err, map[string]any{"collection": coll})
		if onError != nil {
			onError(err)
		}
	}

	d := newDiffer(coll)
	deliver := func() error {
		docs, err := s.readAll(ctx, table)
		if err != nil {
			return err
		}
		if snap, ok := d.next(docs); ok {
			onSnapshot(snap)
		}
		return nil
	}

	if err := deliver(); err != nil {
		fail(err)
		return
	}

	var tick <-chan time.Time
	if s.resync > 0 {
		t := time.NewTicker(s.resync)
		defer t.Stop()
		tick = t.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-changes:
			if !ok {
				fail(errFeedClosed)
				return
			}
			if msg.Collection != string(coll) {
				continue
			}
		case <-tick:
		}
		if err := deliver(); err != nil {
			fail(err)
			return
		}
	}
}

func (s *PGStore) readAll(ctx context.Context, table string) ([]versionedDoc, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, body, version FROM `+table)
	if err != nil {
		return nil, domain.NewStoreError("feed", err)
	}
	defer rows.Close()

	out := make([]versionedDoc, 0)
	for rows.Next() {
		var vd versionedDoc
		var body map[string]any
		if err := rows.Scan(&vd.doc.ID, &body, &vd.version); err != nil {
			return nil, domain.NewStoreError("feed", err)
		}
		vd.doc.Data = body
		out = append(out, vd)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewStoreError("feed", err)
	}
	return out, nil
}
