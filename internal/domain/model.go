package domain

import "time"

type OrderStatus string

const (
	StatusNew       OrderStatus = "new"
	StatusPreparing OrderStatus = "preparing"
	StatusReady     OrderStatus = "ready"
	StatusDelivered OrderStatus = "delivered"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case StatusNew, StatusPreparing, StatusReady, StatusDelivered:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
)

func (p PaymentStatus) Valid() bool { return p == PaymentPending || p == PaymentPaid }

type CallStatus string

const (
	CallPending      CallStatus = "pending"
	CallAcknowledged CallStatus = "acknowledged"
)

// Order is one table's current visit segment. An order with PaymentStatus
// paid is closed and never becomes a merge target again.
type Order struct {
	ID            string        `json:"-"`
	TableID       string        `json:"table_id"`
	SessionID     string        `json:"session_id"`
	Items         []LineItem    `json:"items"`
	Status        OrderStatus   `json:"status"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	TotalPrice    float64       `json:"total_price"`
	OrderNote     string        `json:"order_note"`
	Timestamp     time.Time     `json:"timestamp"`
}

func (o Order) Open() bool { return o.PaymentStatus != PaymentPaid }

type LineItem struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

type WaiterCall struct {
	ID        string     `json:"-"`
	TableID   string     `json:"table_id"`
	Status    CallStatus `json:"status"`
	Timestamp time.Time  `json:"timestamp"`
}

// Table is an entry of the restaurant's fixed roster.
type Table struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// TableLabel returns the roster name for id, or id itself when the table is
// not on the roster.
func TableLabel(roster []Table, id string) string {
	for _, t := range roster {
		if t.ID == id && t.Name != "" {
			return t.Name
		}
	}
	return id
}

// OrderPatch lists the fields an update touches; nil fields stay as stored.
type OrderPatch struct {
	Items         *[]LineItem    `json:"items,omitempty"`
	Status        *OrderStatus   `json:"status,omitempty"`
	PaymentStatus *PaymentStatus `json:"payment_status,omitempty"`
	TotalPrice    *float64       `json:"total_price,omitempty"`
	OrderNote     *string        `json:"order_note,omitempty"`
	Timestamp     *time.Time     `json:"timestamp,omitempty"`
}

// ApplyTo returns o with the patch applied.
func (p OrderPatch) ApplyTo(o Order) Order {
	if p.Items != nil {
		o.Items = append(make([]LineItem, 0, len(*p.Items)), *p.Items...)
	}
	if p.Status != nil {
		o.Status = *p.Status
	}
	if p.PaymentStatus != nil {
		o.PaymentStatus = *p.PaymentStatus
	}
	if p.TotalPrice != nil {
		o.TotalPrice = *p.TotalPrice
	}
	if p.OrderNote != nil {
		o.OrderNote = *p.OrderNote
	}
	if p.Timestamp != nil {
		o.Timestamp = *p.Timestamp
	}
	return o
}

type IntentKind string

const (
	IntentCreate IntentKind = "create"
	IntentUpdate IntentKind = "update"
)

// WriteIntent is the create-or-update payload computed by a resolver before
// it is applied to the store.
type WriteIntent struct {
	Kind    IntentKind
	OrderID string     // update only
	Order   Order      // create only; ID is assigned by the store
	Patch   OrderPatch // update only
}

func CreateIntent(o Order) WriteIntent { return WriteIntent{Kind: IntentCreate, Order: o} }

func UpdateIntent(id string, p OrderPatch) WriteIntent {
	return WriteIntent{Kind: IntentUpdate, OrderID: id, Patch: p}
}

// BatchIntent must be applied all-or-nothing.
type BatchIntent struct {
	Writes []WriteIntent
}
