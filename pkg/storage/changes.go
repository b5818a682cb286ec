package storage

import (
	"sort"

	"github.com/sw33tLie/pricescope/pkg/product"
)

const defaultChangesLimit = 50

// historyChanges lists every consecutive pair of observations of p whose
// amount differs, oldest first.
func historyChanges(p product.Product) []Change {
	sorted := p.History.Sorted()
	var out []Change
	for i := 1; i < len(sorted); i++ {
		m := product.Between(sorted[i-1], sorted[i])
		if !m.HasChanged {
			continue
		}
		c := Change{
			OccurredAt: sorted[i].Timestamp,
			ASIN:       p.ASIN,
			Title:      p.Title,
			Category:   p.Category,
			Previous:   sorted[i-1].Amount,
			Current:    sorted[i].Amount,
			Currency:   sorted[i].Currency,
			Percentage: m.Percentage,
			ChangeType: "increase",
		}
		if m.Direction() == product.Down {
			c.ChangeType = "decrease"
		}
		out = append(out, c)
	}
	return out
}

// recentChanges merges the changes of all products, newest first.
func recentChanges(products []product.Product, limit int) []Change {
	if limit <= 0 {
		limit = defaultChangesLimit
	}
	changes := []Change{}
	for _, p := range products {
		changes = append(changes, historyChanges(p)...)
	}
	sort.SliceStable(changes, func(i, j int) bool {
		return changes[i].OccurredAt.After(changes[j].OccurredAt)
	})
	if len(changes) > limit {
		changes = changes[:limit]
	}
	return changes
}
