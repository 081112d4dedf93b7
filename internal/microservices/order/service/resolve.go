package service

import (
	"time"

	"tableside/internal/domain"
)

// TransferTagPrefix starts every note written by a table transfer.
const TransferTagPrefix = "Transferred: "

// ResolveCheckout decides how a cart lands on a table. open holds the
// table's pending orders in feed order; the first one is the canonical tab.
// With no open tab a new order is created, otherwise the cart is merged into
// the tab, leaving its status and session untouched.
func ResolveCheckout(tableID string, cart []domain.LineItem, note string, open []domain.Order,
	now time.Time, newSession func() string) domain.WriteIntent {

	if len(open) == 0 {
		items := domain.Aggregate(cart)
		return domain.CreateIntent(domain.Order{
			TableID:       tableID,
			SessionID:     newSession(),
			Items:         items,
			Status:        domain.StatusNew,
			PaymentStatus: domain.PaymentPending,
			TotalPrice:    domain.Total(items),
			OrderNote:     domain.JoinNotes(note),
			Timestamp:     now,
		})
	}

	tab := open[0]
	items := domain.Aggregate(tab.Items, cart)
	total := domain.Total(items)
	merged := domain.JoinNotes(tab.OrderNote, note)
	return domain.UpdateIntent(tab.ID, domain.OrderPatch{
		Items:      &items,
		TotalPrice: &total,
		OrderNote:  &merged,
		Timestamp:  &now,
	})
}

type TransferInput struct {
	SourceTableID string
	TargetTableID string
	SourceLabel   string
	TargetLabel   string
	// Sources are the pending orders at the source table in feed order.
	Sources []domain.Order
	// Target is the canonical pending order at the target table, if any.
	Target *domain.Order
	Now    time.Time
}

type TransferPlan struct {
	Batch         domain.BatchIntent
	TargetCreated bool
	TotalPrice    float64
	SourceIDs     []string
}

func TransferTag(sourceLabel, targetLabel string) string {
	return TransferTagPrefix + sourceLabel + " → " + targetLabel
}

// ResolveTransfer moves every pending order of the source table onto the
// target table. The first write of the batch is always the target order,
// followed by one closing update per source order.
func ResolveTransfer(in TransferInput) (TransferPlan, error) {
	if in.SourceTableID == "" || in.TargetTableID == "" || in.SourceTableID == in.TargetTableID {
		return TransferPlan{}, domain.ErrInvalidTransfer
	}
	if len(in.Sources) == 0 {
		return TransferPlan{}, domain.ErrNothingToTransfer
	}

	lists := make([][]domain.LineItem, 0, len(in.Sources))
	notes := make([]string, 0, len(in.Sources))
	ids := make([]string, 0, len(in.Sources))
	for _, src := range in.Sources {
		lists = append(lists, src.Items)
		notes = append(notes, src.OrderNote)
		ids = append(ids, src.ID)
	}
	moved := domain.Aggregate(lists...)
	sourceNotes := domain.JoinNotes(notes...)
	tag := TransferTag(in.SourceLabel, in.TargetLabel)
	now := in.Now

	plan := TransferPlan{SourceIDs: ids}
	writes := make([]domain.WriteIntent, 0, len(in.Sources)+1)

	if in.Target != nil {
		items := domain.Aggregate(in.Target.Items, moved)
		total := domain.Total(items)
		note := domain.JoinNotes(in.Target.OrderNote, sourceNotes, tag)
		writes = append(writes, domain.UpdateIntent(in.Target.ID, domain.OrderPatch{
			Items:      &items,
			TotalPrice: &total,
			OrderNote:  &note,
			Timestamp:  &now,
		}))
		plan.TotalPrice = total
	} else {
		total := domain.Total(moved)
		writes = append(writes, domain.CreateIntent(domain.Order{
			TableID:       in.TargetTableID,
			Items:         moved,
			Status:        domain.StatusNew,
			PaymentStatus: domain.PaymentPending,
			TotalPrice:    total,
			OrderNote:     domain.JoinNotes(sourceNotes, tag),
			Timestamp:     now,
		}))
		plan.TargetCreated = true
		plan.TotalPrice = total
	}

	paid := domain.PaymentPaid
	for _, src := range in.Sources {
		note := domain.JoinNotes(tag, src.OrderNote)
		writes = append(writes, domain.UpdateIntent(src.ID, domain.OrderPatch{
			PaymentStatus: &paid,
			OrderNote:     &note,
			Timestamp:     &now,
		}))
	}

	plan.Batch = domain.BatchIntent{Writes: writes}
	return plan, nil
}
