// Package report renders products and comparisons for terminals and browsers.
package report

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"math"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"github.com/sw33tLie/pricescope/internal/utils"
	"github.com/sw33tLie/pricescope/pkg/pricing"
	"github.com/sw33tLie/pricescope/pkg/product"
	"github.com/sw33tLie/pricescope/pkg/storage"
)

const (
	titleWidth = 60
	// unitPriceDigits is how many significant digits of a unit price are shown.
	unitPriceDigits = 4
)

// UnitPriceText renders a unit price as "<currency> <amount> per <unit>".
func UnitPriceText(r pricing.Result) string {
	return fmt.Sprintf("%s %s per %s", r.Currency, unitAmountText(r.Amount), r.Per())
}

// unitAmountText rounds d to unitPriceDigits significant digits, keeping at
// least two decimal places.
func unitAmountText(d decimal.Decimal) string {
	f, _ := d.Abs().Float64()
	if f == 0 {
		return "0"
	}
	places := unitPriceDigits - 1 - int(math.Floor(math.Log10(f)))
	if places < 2 {
		places = 2
	}
	return d.Round(int32(places)).String()
}

func totalText(row pricing.Row) string {
	if row.Total == nil {
		return "N/A"
	}
	return row.Currency + " " + row.Total.StringFixed(2)
}

func WriteComparisonTable(w io.Writer, rows []pricing.Row) error {
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintln(tw, "PRODUCT\tBRAND\tPRICE\tUNIT PRICE\t")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t\n",
			utils.ShortText(r.Product.Title, titleWidth),
			orDash(r.Product.Brand),
			totalText(r),
			UnitPriceText(r.UnitPrice))
	}
	return tw.Flush()
}

var comparisonTemplate = template.Must(template.New("comparison").Funcs(template.FuncMap{
	"unitPrice": UnitPriceText,
	"total":     totalText,
}).Parse(`<table class="comparison">
  <thead>
    <tr><th>Product</th><th>Brand</th><th>Price</th><th>Unit Price</th></tr>
  </thead>
  <tbody>
    {{- range .}}
    <tr>
      <td><a href="{{.Product.URL}}">{{.Product.Title}}</a></td>
      <td>{{.Product.Brand}}</td>
      <td>{{total .}}</td>
      <td>{{unitPrice .UnitPrice}}</td>
    </tr>
    {{- end}}
  </tbody>
</table>
`))

// ComparisonHTML renders rows as an HTML table fragment.
func ComparisonHTML(rows []pricing.Row) (string, error) {
	var buf bytes.Buffer
	if err := comparisonTemplate.Execute(&buf, rows); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func WriteProductList(w io.Writer, products []product.Product) error {
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintln(tw, "ASIN\tTITLE\tCATEGORY\tPRICE\tCHANGE\t")
	for _, p := range products {
		price := "N/A"
		if cur, ok := p.CurrentPrice(); ok {
			price = cur.Currency + " " + cur.Amount.StringFixed(2)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t\n", p.ASIN, utils.ShortText(p.Title, titleWidth), p.Category, price, changeText(p.PriceChange()))
	}
	return tw.Flush()
}

// WriteHistory prints every observation of p, oldest first.
func WriteHistory(w io.Writer, p product.Product) error {
	fmt.Fprintf(w, "%s  %s\n\n", p.ASIN, p.Title)
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintln(tw, "TIMESTAMP\tPRICE\tUNIT PRICE\t")
	for _, o := range p.History.Sorted() {
		unit := "-"
		if o.HasDeclaredUnitPrice() {
			unit = fmt.Sprintf("%s %s / %s", o.Currency, o.PerUnitAmount.String(), o.UnitExpression)
		}
		fmt.Fprintf(tw, "%s\t%s %s\t%s\t\n", o.Timestamp.Format("2006-01-02 15:04:05"), o.Currency, o.Amount.StringFixed(2), unit)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if low, high, ok := p.History.MinMax(); ok {
		fmt.Fprintf(w, "\nLowest: %s %s (%s)  Highest: %s %s (%s)\n",
			low.Currency, low.Amount.StringFixed(2), low.Timestamp.Format("2006-01-02"),
			high.Currency, high.Amount.StringFixed(2), high.Timestamp.Format("2006-01-02"))
	}
	return nil
}

func WriteChanges(w io.Writer, changes []storage.Change) error {
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintln(tw, "TIMESTAMP\tASIN\tTITLE\tCHANGE\tFROM\tTO\t")
	for _, c := range changes {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%+.2f%%\t%s %s\t%s %s\t\n",
			c.OccurredAt.Format("2006-01-02 15:04:05"), c.ASIN, utils.ShortText(c.Title, 40), c.Percentage,
			c.Currency, c.Previous.StringFixed(2), c.Currency, c.Current.StringFixed(2))
	}
	return tw.Flush()
}

func WriteStats(w io.Writer, stats []storage.CategoryStats) error {
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "CATEGORY\tPRODUCTS\tOBSERVATIONS\t")

	var totalProducts, totalObservations int
	for _, s := range stats {
		fmt.Fprintf(tw, "%s\t%d\t%d\t\n", s.Category, s.ProductCount, s.ObservationCount)
		totalProducts += s.ProductCount
		totalObservations += s.ObservationCount
	}

	fmt.Fprintln(tw, " \t \t \t")
	fmt.Fprintf(tw, "TOTAL\t%d\t%d\t\n", totalProducts, totalObservations)
	return tw.Flush()
}

func changeText(c product.ChangeMetrics) string {
	if !c.HasChanged {
		return "-"
	}
	arrow := "▲"
	if c.Direction() == product.Down {
		arrow = "▼"
	}
	return fmt.Sprintf("%s %.2f%%", arrow, c.Percentage)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
