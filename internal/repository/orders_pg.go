package repository

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"tableside/internal/common/logger"
	"tableside/internal/domain"
)

//go:embed schema.sql
var schema string

// ChangeNotifier is told about every committed write.
type ChangeNotifier interface {
	PublishChange(ctx context.Context, msg domain.ChangeMessage) error
}

// ChangeSource yields change notifications published by any process sharing
// the database.
type ChangeSource interface {
	Listen(ctx context.Context) (<-chan domain.ChangeMessage, error)
}

type PGStoreConfig struct {
	Notifier ChangeNotifier
	Source   ChangeSource
	// Resync re-reads subscribed collections on this interval even without a
	// notification. Zero disables it.
	Resync time.Duration
	Logger *logger.Logger
}

// PGStore keeps documents as JSONB rows. Table-scoped transactions take
// transaction-level advisory locks keyed by table id.
type PGStore struct {
	pool     *pgxpool.Pool
	notifier ChangeNotifier
	source   ChangeSource
	resync   time.Duration
	log      *logger.Logger
}

func NewPGStore(pool *pgxpool.Pool, cfg PGStoreConfig) *PGStore {
	lg := cfg.Logger
	if lg == nil {
		lg = logger.New("store")
	}
	return &PGStore{pool: pool, notifier: cfg.Notifier, source: cfg.Source, resync: cfg.Resync, log: lg}
}

// Migrate creates the tables and indexes when missing.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *PGStore) FindOrders(ctx context.Context, q Query) ([]domain.Order, error) {
	return findOrdersPG(ctx, s.pool, q)
}

func (s *PGStore) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	var body map[string]any
	err := s.pool.QueryRow(ctx, `SELECT body FROM orders WHERE id = $1`, id).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	if err != nil {
		return domain.Order{}, domain.NewStoreError("get", err)
	}
	return domain.NormalizeDocument(domain.Document{ID: id, Data: body}), nil
}

func (s *PGStore) PatchOrder(ctx context.Context, id string, patch domain.OrderPatch) error {
	_, err := s.Apply(ctx, domain.UpdateIntent(id, patch))
	return err
}

func (s *PGStore) Apply(ctx context.Context, writes ...domain.WriteIntent) ([]string, error) {
	writes, ids := assignIDs(writes)
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		return applyWrites(ctx, tx, writes)
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, CollectionOrders, ids)
	return ids, nil
}

func (s *PGStore) WithinTables(ctx context.Context, tableIDs []string, fn func(ctx context.Context, tx Tx) error) error {
	keys := uniqueSorted(tableIDs)
	var touched []string
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		// Sorted lock order keeps two multi-table transactions from deadlocking.
		for _, k := range keys {
			if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, k); err != nil {
				return domain.NewStoreError("lock", err)
			}
		}
		ptx := &pgTx{tx: tx}
		if err := fn(ctx, ptx); err != nil {
			return err
		}
		touched = ptx.touched
		return nil
	})
	if err != nil {
		return err
	}
	if len(touched) > 0 {
		s.publish(ctx, CollectionOrders, touched)
	}
	return nil
}

func (s *PGStore) AddWaiterCall(ctx context.Context, call domain.WaiterCall) (string, error) {
	if call.ID == "" {
		call.ID = uuid.NewString()
	}
	body, err := json.Marshal(call)
	if err != nil {
		return "", domain.NewStoreError("add_call", err)
	}
	ts := call.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	if _, err := s.pool.Exec(ctx,
		`INSERT INTO waiter_calls (id, body, ts) VALUES ($1, $2::jsonb, $3)`,
		call.ID, string(body), ts,
	); err != nil {
		return "", domain.NewStoreError("add_call", err)
	}
	s.publish(ctx, CollectionWaiterCalls, []string{call.ID})
	return call.ID, nil
}

func (s *PGStore) PatchWaiterCall(ctx context.Context, id string, status domain.CallStatus) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE waiter_calls
		   SET body = jsonb_set(body, '{status}', to_jsonb($2::text)),
		       version = version + 1
		 WHERE id = $1`, id, string(status))
	if err != nil {
		return domain.NewStoreError("patch_call", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrWaiterCallNotFound
	}
	s.publish(ctx, CollectionWaiterCalls, []string{id})
	return nil
}

func (s *PGStore) inTx(ctx context.Context, fn func(tx pgx.Tx) error) (err error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.NewStoreError("begin", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()
	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		return domain.NewStoreError("commit", err)
	}
	return nil
}

// publish failures are logged only: subscribers also resync on a timer.
func (s *PGStore) publish(ctx context.Context, coll Collection, ids []string) {
	if s.notifier == nil {
		return
	}
	msg := domain.ChangeMessage{Collection: string(coll), IDs: ids, Timestamp: time.Now().UTC()}
	if err := s.notifier.PublishChange(ctx, msg); err != nil {
		s.log.Error("change_publish_failed", err, map[string]any{"collection": coll, "ids": ids})
	}
}

type pgTx struct {
	tx      pgx.Tx
	touched []string
}

func (t *pgTx) FindOrders(ctx context.Context, q Query) ([]domain.Order, error) {
	return findOrdersPG(ctx, t.tx, q)
}

// Apply runs the batch under a savepoint so a failed batch leaves nothing
// behind even if the caller goes on using the transaction.
func (t *pgTx) Apply(ctx context.Context, writes ...domain.WriteIntent) ([]string, error) {
	writes, ids := assignIDs(writes)
	sp, err := t.tx.Begin(ctx)
	if err != nil {
		return nil, domain.NewStoreError("savepoint", err)
	}
	if err := applyWrites(ctx, sp, writes); err != nil {
		_ = sp.Rollback(ctx)
		return nil, err
	}
	if err := sp.Commit(ctx); err != nil {
		return nil, domain.NewStoreError("savepoint", err)
	}
	t.touched = append(t.touched, ids...)
	return ids, nil
}

func applyWrites(ctx context.Context, q querier, writes []domain.WriteIntent) error {
	for _, w := range writes {
		switch w.Kind {
		case domain.IntentCreate:
			body, err := json.Marshal(w.Order)
			if err != nil {
				return domain.NewStoreError("apply", err)
			}
			ts := w.Order.Timestamp
			if ts.IsZero() {
				ts = time.Now().UTC()
			}
			if _, err := q.Exec(ctx,
				`INSERT INTO orders (id, body, ts) VALUES ($1, $2::jsonb, $3)`,
				w.Order.ID, string(body), ts,
			); err != nil {
				return domain.NewStoreError("apply", err)
			}
		case domain.IntentUpdate:
			body, err := json.Marshal(w.Patch)
			if err != nil {
				return domain.NewStoreError("apply", err)
			}
			tag, err := q.Exec(ctx, `
				UPDATE orders
				   SET body = body || $2::jsonb,
				       ts = COALESCE($3::timestamptz, ts),
				       version = version + 1
				 WHERE id = $1`,
				w.OrderID, string(body), w.Patch.Timestamp,
			)
			if err != nil {
				return domain.NewStoreError("apply", err)
			}
			if tag.RowsAffected() == 0 {
				return fmt.Errorf("update %s: %w", w.OrderID, domain.ErrOrderNotFound)
			}
		default:
			return fmt.Errorf("unknown write kind %q", w.Kind)
		}
	}
	return nil
}

// findOrdersPG narrows by the indexed columns, then applies the same
// predicates to the normalized documents so that rows with malformed fields
// are judged exactly as the normalizer sees them.
func findOrdersPG(ctx context.Context, q querier, query Query) ([]domain.Order, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if query.TableID != "" {
		where = append(where, "table_id = "+arg(query.TableID))
	}
	switch query.PaymentStatus {
	case domain.PaymentPaid:
		where = append(where, "payment_status = 'paid'")
	case domain.PaymentPending:
		where = append(where, "payment_status <> 'paid'")
	}
	if !query.Since.IsZero() {
		where = append(where, "ts >= "+arg(query.Since))
	}
	if !query.Until.IsZero() {
		where = append(where, "ts < "+arg(query.Until))
	}

	sql := `SELECT id, body FROM orders`
	if len(where) > 0 {
		sql += " WHERE " + strings.Join(where, " AND ")
	}
	sql += " ORDER BY ts DESC, id ASC"

	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, domain.NewStoreError("find", err)
	}
	defer rows.Close()

	out := make([]domain.Order, 0)
	for rows.Next() {
		var (
			id   string
			body map[string]any
		)
		if err := rows.Scan(&id, &body); err != nil {
			return nil, domain.NewStoreError("find", err)
		}
		if o := domain.NormalizeDocument(domain.Document{ID: id, Data: body}); query.Match(o) {
			out = append(out, o)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewStoreError("find", err)
	}
	SortOrders(out)
	if query.Limit > 0 && len(out) > query.Limit {
		out = out[:query.Limit]
	}
	return out, nil
}

func uniqueSorted(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
