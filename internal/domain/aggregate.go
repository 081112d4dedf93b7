package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// NoteSeparator joins merged order notes.
const NoteSeparator = " | "

// Aggregate merges item lists in the given priority order. Equal ids have
// their quantities summed while the first recorded price and name are kept;
// items with an empty id are dropped. The result follows the order of first
// appearance and never shares memory with the inputs.
func Aggregate(lists ...[]LineItem) []LineItem {
	index := make(map[string]int)
	out := make([]LineItem, 0)
	for _, list := range lists {
		for _, it := range list {
			if it.ID == "" {
				continue
			}
			if i, ok := index[it.ID]; ok {
				out[i].Quantity = addQuantity(out[i].Quantity, it.Quantity)
				continue
			}
			index[it.ID] = len(out)
			out = append(out, it)
		}
	}
	return out
}

func addQuantity(a, b int) int {
	if b <= 0 {
		return a
	}
	if a > MaxQuantity-b {
		return MaxQuantity
	}
	return a + b
}

// Total is Σ price × quantity, summed in decimal so that totals of
// two-decimal prices come out exact.
func Total(items []LineItem) float64 {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(decimal.NewFromFloat(it.Price).Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	f, _ := sum.Float64()
	return f
}

// JoinNotes concatenates the non-empty trimmed parts with NoteSeparator.
func JoinNotes(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, NoteSeparator)
}
