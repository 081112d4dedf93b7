package domain

import "time"

// CheckoutRequest carries a patron's cart. Items are decoded loosely and run
// through NormalizeItems, since the cart comes straight from the client.
type CheckoutRequest struct {
	Items []any  `json:"items"`
	Note  string `json:"note"`
}

type CheckoutResponse struct {
	OrderID    string  `json:"order_id"`
	Merged     bool    `json:"merged"`
	TotalPrice float64 `json:"total_price"`
}

type TransferRequest struct {
	SourceTableID string `json:"source_table_id"`
	TargetTableID string `json:"target_table_id"`
}

type TransferResponse struct {
	TargetOrderID string   `json:"target_order_id"`
	Created       bool     `json:"created"`
	ClosedOrders  []string `json:"closed_orders"`
	TotalPrice    float64  `json:"total_price"`
}

type StatusRequest struct {
	Status string `json:"status"`
}

type PaymentRequest struct {
	PaymentStatus string `json:"payment_status"`
}

type WaiterCallResponse struct {
	CallID  string `json:"call_id"`
	TableID string `json:"table_id"`
	Status  string `json:"status"`
}

// OrderView is the wire form of an order in admin listings.
type OrderView struct {
	ID            string        `json:"id"`
	TableID       string        `json:"table_id"`
	SessionID     string        `json:"session_id"`
	Items         []LineItem    `json:"items"`
	Status        OrderStatus   `json:"status"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	TotalPrice    float64       `json:"total_price"`
	OrderNote     string        `json:"order_note,omitempty"`
	Timestamp     string        `json:"timestamp"`
}

func ViewOf(o Order) OrderView {
	return OrderView{
		ID:            o.ID,
		TableID:       o.TableID,
		SessionID:     o.SessionID,
		Items:         o.Items,
		Status:        o.Status,
		PaymentStatus: o.PaymentStatus,
		TotalPrice:    o.TotalPrice,
		OrderNote:     o.OrderNote,
		Timestamp:     o.Timestamp.UTC().Format(time.RFC3339Nano),
	}
}

type WaiterCallView struct {
	ID        string `json:"id"`
	TableID   string `json:"table_id"`
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

func CallViewOf(c WaiterCall) WaiterCallView {
	return WaiterCallView{
		ID:        c.ID,
		TableID:   c.TableID,
		Status:    string(c.Status),
		Timestamp: c.Timestamp.UTC().Format(time.RFC3339Nano),
	}
}
