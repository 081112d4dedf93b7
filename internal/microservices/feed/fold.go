package feed

import (
	"tableside/internal/domain"
	"tableside/internal/repository"
)

// OrderFeedState is what the order feed remembers between deliveries.
// The zero value is the state right after (re)subscribing.
type OrderFeedState struct {
	Count  int
	Primed bool
}

// FoldOrders advances the state by one delivery of count documents. grew is
// true when the delivery increased the count and was not the first one since
// subscribing, which is when a single new-order alert is due.
func FoldOrders(prev OrderFeedState, count int) (next OrderFeedState, grew bool) {
	next = OrderFeedState{Count: count, Primed: true}
	return next, prev.Primed && count > prev.Count
}

// WaiterFeedState tracks every waiter call id ever reported as added.
type WaiterFeedState struct {
	seen map[string]struct{}
}

func NewWaiterFeedState() *WaiterFeedState {
	return &WaiterFeedState{seen: make(map[string]struct{})}
}

// Fold returns the calls that deserve an alert: added, never seen before and
// still pending. Modified and removed changes never alert.
func (s *WaiterFeedState) Fold(changes []repository.Change) []domain.WaiterCall {
	var fresh []domain.WaiterCall
	for _, ch := range changes {
		if ch.Type != repository.ChangeAdded {
			continue
		}
		if _, ok := s.seen[ch.Doc.ID]; ok {
			continue
		}
		s.seen[ch.Doc.ID] = struct{}{}
		if call := domain.NormalizeWaiterCall(ch.Doc); call.Status == domain.CallPending {
			fresh = append(fresh, call)
		}
	}
	return fresh
}
