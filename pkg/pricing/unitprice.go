// Package pricing derives comparable per-unit prices for products and ranks
// products by them.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/sw33tLie/pricescope/pkg/product"
	"github.com/sw33tLie/pricescope/pkg/units"
)

// Tier tells which source a unit price was derived from.
type Tier string

const (
	TierDeclared  Tier = "declared"
	TierAttribute Tier = "attribute"
	TierItem      Tier = "item"
)

// AttributeKeys are the detail-table keys searched for a quantity, in priority order.
var AttributeKeys = []string{"size", "weight", "quantity", "volume", "dimensions"}

// Result is the price of one base unit of a product.
type Result struct {
	Amount   decimal.Decimal `json:"amount"`
	Quantity units.Quantity  `json:"quantity"`
	Original string          `json:"original"`
	Currency string          `json:"currency"`
	Tier     Tier            `json:"tier"`
}

// Per renders the unit the amount refers to, e.g. "g" or "item".
func (r Result) Per() string {
	return r.Quantity.Unit
}

// UnitPrice computes the price per base unit for the current observation of p.
// It returns false only when the product has no observation at all.
//
// Sources are tried in order: a per-unit price published by the listing, a
// quantity found in the product attributes, and finally the item price.
// Every source yields an amount per base unit of its quantity.
func UnitPrice(p product.Product) (Result, bool) {
	cur, ok := p.CurrentPrice()
	if !ok {
		return Result{}, false
	}

	if r, ok := declared(cur); ok {
		return r, true
	}
	if r, ok := fromAttributes(cur, p.Attributes); ok {
		return r, true
	}
	return Result{
		Amount:   cur.Amount,
		Quantity: units.One,
		Original: "each",
		Currency: cur.Currency,
		Tier:     TierItem,
	}, true
}

func declared(o product.Observation) (Result, bool) {
	if !o.HasDeclaredUnitPrice() {
		return Result{}, false
	}
	q := units.Normalize(o.UnitExpression)
	amount, ok := perUnit(*o.PerUnitAmount, q)
	if !ok {
		return Result{}, false
	}
	return Result{
		Amount:   amount,
		Quantity: q,
		Original: o.UnitExpression,
		Currency: o.Currency,
		Tier:     TierDeclared,
	}, true
}

func fromAttributes(o product.Observation, attrs product.Attributes) (Result, bool) {
	for _, key := range AttributeKeys {
		value, found := attrs.Lookup(key)
		if !found {
			continue
		}
		_, _, raw, matched := units.Match(value)
		if !matched {
			continue
		}
		q := units.Normalize(raw)
		amount, ok := perUnit(o.Amount, q)
		if !ok {
			continue
		}
		return Result{
			Amount:   amount,
			Quantity: q,
			Original: raw,
			Currency: o.Currency,
			Tier:     TierAttribute,
		}, true
	}
	return Result{}, false
}

// perUnit divides amount by the magnitude of q. A non-positive magnitude is
// reported as not applicable. The quotient keeps decimal.DivisionPrecision
// places; rounding happens only when it is displayed.
func perUnit(amount decimal.Decimal, q units.Quantity) (decimal.Decimal, bool) {
	if q.Magnitude <= 0 {
		return decimal.Decimal{}, false
	}
	return amount.Div(decimal.NewFromFloat(q.Magnitude)), true
}
