package domain

import (
	"encoding/json"
	"math"
	"strconv"
	"time"
)

// UnnamedItem replaces a missing line item name.
const UnnamedItem = "Unnamed item"

// MaxQuantity bounds a line item quantity. Larger inputs count as invalid and
// aggregated sums saturate at it.
const MaxQuantity = math.MaxInt32

// Document is a persisted record as delivered by the store: an id plus
// whatever fields happen to be stored under it.
type Document struct {
	ID   string
	Data map[string]any
}

// Timestamp returns the document's normalized timestamp field.
func (d Document) Timestamp() time.Time { return normalizeTime(d.Data["timestamp"]) }

// instant is satisfied by timestamp values that can convert themselves.
type instant interface {
	Time() time.Time
}

var now = func() time.Time { return time.Now().UTC() }

// NormalizeDocument decodes a stored order document. It is the only path by
// which persisted data becomes an Order.
func NormalizeDocument(d Document) Order {
	o := NormalizeOrder(d.Data)
	if d.ID != "" {
		o.ID = d.ID
	}
	return o
}

// NormalizeOrder converts an arbitrary value into a well-typed Order. It never
// fails: every field falls back to a safe default. TotalPrice is derived from
// the normalized items and never taken from the input.
func NormalizeOrder(raw any) Order {
	m, _ := raw.(map[string]any)

	o := Order{
		ID:            stringID(m["id"]),
		TableID:       nonEmptyString(m["table_id"]),
		SessionID:     nonEmptyString(m["session_id"]),
		Items:         NormalizeItems(m["items"]),
		Status:        StatusNew,
		PaymentStatus: PaymentPending,
		OrderNote:     nonEmptyString(m["order_note"]),
		Timestamp:     normalizeTime(m["timestamp"]),
	}
	if s, ok := m["status"].(string); ok && OrderStatus(s).Valid() {
		o.Status = OrderStatus(s)
	}
	if s, ok := m["payment_status"].(string); ok && s == string(PaymentPaid) {
		o.PaymentStatus = PaymentPaid
	}
	o.TotalPrice = Total(o.Items)
	return o
}

// NormalizeItems accepts an array of objects and normalizes each entry.
// Anything else yields an empty list.
func NormalizeItems(raw any) []LineItem {
	var entries []any
	switch v := raw.(type) {
	case []any:
		entries = v
	case []map[string]any:
		entries = make([]any, 0, len(v))
		for _, e := range v {
			entries = append(entries, e)
		}
	}
	items := make([]LineItem, 0, len(entries))
	for _, e := range entries {
		m, ok := e.(map[string]any)
		if !ok || m == nil {
			continue
		}
		items = append(items, normalizeItem(m))
	}
	return items
}

func normalizeItem(m map[string]any) LineItem {
	it := LineItem{
		ID:   stringID(m["id"]),
		Name: UnnamedItem,
	}
	if s, ok := m["name"].(string); ok && s != "" {
		it.Name = s
	}
	if p, ok := finite(m["price"]); ok && p > 0 {
		it.Price = p
	}
	if q, ok := finite(m["quantity"]); ok && q > 0 && q <= MaxQuantity {
		it.Quantity = int(math.Trunc(q))
	}
	return it
}

// NormalizeWaiterCall decodes a stored waiter call document.
func NormalizeWaiterCall(d Document) WaiterCall {
	c := WaiterCall{
		ID:        d.ID,
		TableID:   nonEmptyString(d.Data["table_id"]),
		Status:    CallPending,
		Timestamp: normalizeTime(d.Data["timestamp"]),
	}
	if s, ok := d.Data["status"].(string); ok && s != "" {
		c.Status = CallStatus(s)
	}
	return c
}

func nonEmptyString(v any) string {
	s, _ := v.(string)
	return s
}

// stringID accepts string ids as-is and renders numeric ids in their
// shortest decimal form, so 7 and "7" name the same item.
func stringID(v any) string {
	switch id := v.(type) {
	case string:
		return id
	case json.Number:
		return id.String()
	}
	if f, ok := finite(v); ok {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return ""
}

// finite reports v as a float64 when it is a finite number.
func finite(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func normalizeTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		if !t.IsZero() {
			return t
		}
	case *time.Time:
		if t != nil && !t.IsZero() {
			return *t
		}
	case instant:
		if tt := t.Time(); !tt.IsZero() {
			return tt
		}
	case string:
		if parsed, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return parsed
		}
	}
	return now()
}
