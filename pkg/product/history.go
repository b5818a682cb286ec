package product

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// History is the price time series of one product. Order of the slice is
// not meaningful; the timestamp is the ordering key.
type History []Observation

// Direction of a price movement.
type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
	Flat Direction = "flat"
)

// ChangeMetrics describes the move between the two most recent observations.
// A negative Absolute/Percentage means the price went down.
type ChangeMetrics struct {
	Percentage float64          `json:"percentage"`
	Absolute   decimal.Decimal  `json:"absolute"`
	HasChanged bool             `json:"has_changed"`
	Current    *decimal.Decimal `json:"current,omitempty"`
	Previous   *decimal.Decimal `json:"previous,omitempty"`
	Currency   string           `json:"currency,omitempty"`
}

// Direction maps the sign of Absolute to a Direction.
func (c ChangeMetrics) Direction() Direction {
	switch c.Absolute.Sign() {
	case 1:
		return Up
	case -1:
		return Down
	}
	return Flat
}

// Current returns the observation with the latest timestamp. When several
// observations share that timestamp the one supplied last wins.
func (h History) Current() (Observation, bool) {
	if len(h) == 0 {
		return Observation{}, false
	}
	best := 0
	for i := 1; i < len(h); i++ {
		if !h[i].Timestamp.Before(h[best].Timestamp) {
			best = i
		}
	}
	return h[best], true
}

// Sorted returns a copy ordered by ascending timestamp. Equal timestamps keep
// their supplied order.
func (h History) Sorted() History {
	out := make(History, len(h))
	copy(out, h)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

// Change compares the last two observations by timestamp. With fewer than
// two observations it returns the zero, unchanged metrics.
func (h History) Change() ChangeMetrics {
	if len(h) < 2 {
		return ChangeMetrics{Absolute: decimal.Zero}
	}
	sorted := h.Sorted()
	return Between(sorted[len(sorted)-2], sorted[len(sorted)-1])
}

// Between computes the change going from previous to current.
func Between(previous, current Observation) ChangeMetrics {
	prev, cur := previous.Amount, current.Amount
	abs := cur.Sub(prev)

	var pct float64
	if !prev.IsZero() {
		pct, _ = abs.Div(prev).Mul(decimal.NewFromInt(100)).Float64()
	}

	return ChangeMetrics{
		Percentage: pct,
		Absolute:   abs,
		HasChanged: !cur.Equal(prev),
		Current:    &cur,
		Previous:   &prev,
		Currency:   current.Currency,
	}
}

// Since returns the observations taken at or after t, in ascending order.
func (h History) Since(t time.Time) History {
	var out History
	for _, o := range h.Sorted() {
		if !o.Timestamp.Before(t) {
			out = append(out, o)
		}
	}
	return out
}

// MinMax returns the lowest and highest observed amounts.
func (h History) MinMax() (lowest, highest Observation, ok bool) {
	if len(h) == 0 {
		return Observation{}, Observation{}, false
	}
	lowest, highest = h[0], h[0]
	for _, o := range h[1:] {
		if o.Amount.LessThan(lowest.Amount) {
			lowest = o
		}
		if o.Amount.GreaterThan(highest.Amount) {
			highest = o
		}
	}
	return lowest, highest, true
}
