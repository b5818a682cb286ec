// Package notify delivers price change alerts and tracking summaries.
package notify

import (
	"context"
	"errors"
	"math"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/sw33tLie/pricescope/internal/config"
	"github.com/sw33tLie/pricescope/pkg/product"
)

// ErrNothingToSend is returned for unchanged prices and empty summaries.
var ErrNothingToSend = errors.New("nothing to send")

type Notifier interface {
	Name() string
	NotifyPriceChange(ctx context.Context, p product.Product, change product.ChangeMetrics) error
	SendSummary(ctx context.Context, products []product.Product) error
}

// FromConfig builds every notifier that has enough settings to work.
func FromConfig(cfg config.Config) []Notifier {
	var out []Notifier
	if cfg.Email.Enabled() {
		out = append(out, NewEmail(cfg.Email))
	}
	if cfg.Slack.Enabled() {
		out = append(out, NewSlack(cfg.Slack, cfg.Scraper.Timeout, cfg.Scraper.Retries))
	}
	return out
}

// alert is the rendering model shared by the notifiers.
type alert struct {
	Product    product.Product
	Direction  string // increased | decreased
	Decrease   bool
	Currency   string
	Previous   string
	Current    string
	Absolute   string
	Percentage string
	ImageURL   string
}

func newAlert(p product.Product, change product.ChangeMetrics) (alert, error) {
	if !change.HasChanged {
		return alert{}, ErrNothingToSend
	}
	a := alert{
		Product:    p,
		Direction:  "increased",
		Currency:   change.Currency,
		Previous:   absString(change.Previous),
		Current:    absString(change.Current),
		Absolute:   change.Absolute.Abs().String(),
		Percentage: formatPercent(change.Percentage),
	}
	if change.Direction() == product.Down {
		a.Direction = "decreased"
		a.Decrease = true
	}
	if img, ok := p.PrimaryImage(); ok {
		a.ImageURL = img.URL
	}
	return a, nil
}

// summaryLine is one product row of a summary.
type summaryLine struct {
	Product  product.Product
	Price    string
	Changed  bool
	Decrease bool
	Change   string // absolute percentage, e.g. "12.5"
}

func newSummaryLine(p product.Product) summaryLine {
	l := summaryLine{Product: p, Price: "N/A"}
	if cur, ok := p.CurrentPrice(); ok {
		l.Price = cur.Currency + " " + cur.Amount.String()
	}
	change := p.PriceChange()
	if change.HasChanged {
		l.Changed = true
		l.Decrease = change.Direction() == product.Down
		l.Change = formatPercent(math.Abs(change.Percentage))
	}
	return l
}

func absString(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	return d.Abs().String()
}

// formatPercent rounds to two decimals without trailing zeros.
func formatPercent(p float64) string {
	return strconv.FormatFloat(math.Round(p*100)/100, 'f', -1, 64)
}
