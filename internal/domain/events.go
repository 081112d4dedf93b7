package domain

import "time"

// ChangeMessage is published after every committed store write so that feed
// subscribers know to refresh the named collection.
type ChangeMessage struct {
	Collection string    `json:"collection"`
	IDs        []string  `json:"ids"`
	Timestamp  time.Time `json:"timestamp"`
}

type AlertKind string

const (
	AlertNewOrder   AlertKind = "new_order"
	AlertWaiterCall AlertKind = "waiter_call"
)

// AlertMessage is what the alert surface receives.
type AlertMessage struct {
	Kind      AlertKind `json:"kind"`
	TableID   string    `json:"table_id,omitempty"`
	CallID    string    `json:"call_id,omitempty"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}
