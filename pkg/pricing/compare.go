package pricing

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/sw33tLie/pricescope/pkg/product"
)

// Row is one ranked product of a comparison.
type Row struct {
	Product   product.Product  `json:"product"`
	UnitPrice Result           `json:"unit_price"`
	Total     *decimal.Decimal `json:"total,omitempty"`
	Currency  string           `json:"currency,omitempty"`
}

// CompareOptions narrows and shapes a comparison.
type CompareOptions struct {
	// TargetUnit enables unit-price ranking when every row shares this base unit.
	TargetUnit string
	// Category keeps only products of this category (case-insensitive).
	Category string
	// Limit caps the number of rows returned; 0 means no cap.
	Limit int
}

// Compare ranks products. Products without a unit price are left out.
//
// When targetUnit is set and every row is priced per targetUnit the rows are
// ordered by unit price. Otherwise they are ordered by total price, rows
// without a total last.
func Compare(products []product.Product, targetUnit string) []Row {
	rows, _ := rank(products, targetUnit)
	return rows
}

// rank orders products like Compare and reports whether unit prices were used.
func rank(products []product.Product, targetUnit string) ([]Row, bool) {
	rows := make([]Row, 0, len(products))
	for _, p := range products {
		up, ok := UnitPrice(p)
		if !ok {
			continue
		}
		row := Row{Product: p, UnitPrice: up}
		if cur, ok := p.CurrentPrice(); ok {
			total := cur.Amount
			row.Total = &total
			row.Currency = cur.Currency
		}
		rows = append(rows, row)
	}

	if rankedByUnit(rows, targetUnit) {
		sort.SliceStable(rows, func(i, j int) bool {
			return rows[i].UnitPrice.Amount.LessThan(rows[j].UnitPrice.Amount)
		})
		return rows, true
	}

	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i].Total, rows[j].Total
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		}
		return a.LessThan(*b)
	})
	return rows, false
}

// CompareWith applies the category filter, ranks, then applies the limit.
// byUnit tells whether the whole selection was ranked by unit price, which
// the truncated rows alone cannot show.
func CompareWith(products []product.Product, opts CompareOptions) (rows []Row, byUnit bool) {
	selected := products
	if opts.Category != "" {
		selected = make([]product.Product, 0, len(products))
		for _, p := range products {
			if strings.EqualFold(p.Category, opts.Category) {
				selected = append(selected, p)
			}
		}
	}
	rows, byUnit = rank(selected, opts.TargetUnit)
	if opts.Limit > 0 && len(rows) > opts.Limit {
		rows = rows[:opts.Limit]
	}
	return rows, byUnit
}

func rankedByUnit(rows []Row, targetUnit string) bool {
	return targetUnit != "" && len(rows) > 0 && sameUnit(rows, targetUnit)
}

func sameUnit(rows []Row, unit string) bool {
	for _, r := range rows {
		if r.UnitPrice.Quantity.Unit != unit {
			return false
		}
	}
	return true
}
