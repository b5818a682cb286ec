package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sw33tLie/pricescope/pkg/pricing"
	"github.com/sw33tLie/pricescope/pkg/product"
	"github.com/sw33tLie/pricescope/pkg/storage"
)

var day = time.Date(2024, 4, 2, 8, 0, 0, 0, time.UTC)

func item(asin, brand string, attrs []string, prices ...string) product.Product {
	p := product.Product{ASIN: asin, Title: "Title " + asin, Brand: brand, Category: "Grocery", URL: "https://www.amazon.com/dp/" + asin}
	for i := 0; i+1 < len(attrs); i += 2 {
		p.Attributes.Set(attrs[i], attrs[i+1])
	}
	for i, price := range prices {
		p.AddObservation(product.Observation{Amount: decimal.RequireFromString(price), Currency: "USD", Timestamp: day.Add(time.Duration(i) * 24 * time.Hour)})
	}
	return p
}

func TestWriteComparisonTable(t *testing.T) {
	rows := pricing.Compare([]product.Product{
		item("A", "Acme", []string{"weight", "200g"}, "5.00"),
		item("B", "", []string{"weight", "1 kg"}, "4.00"),
	}, "g")

	var buf bytes.Buffer
	if err := WriteComparisonTable(&buf, rows); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header and 2 rows, got %q", buf.String())
	}
	if !strings.HasPrefix(lines[0], "PRODUCT") || !strings.Contains(lines[0], "UNIT PRICE") {
		t.Fatalf("unexpected header %q", lines[0])
	}
	if !strings.Contains(lines[1], "Title B") || !strings.Contains(lines[1], "USD 0.004 per g") || !strings.Contains(lines[1], "USD 4.00") {
		t.Fatalf("unexpected first row %q", lines[1])
	}
	if !strings.Contains(lines[2], "Acme") || !strings.Contains(lines[2], "USD 0.025 per g") {
		t.Fatalf("unexpected second row %q", lines[2])
	}
}

func TestComparisonHTML(t *testing.T) {
	p := item("A", "Acme & Sons", nil, "2.50")
	p.Title = "<script>x</script>"
	out, err := ComparisonHTML(pricing.Compare([]product.Product{p}, ""))
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"<th>Unit Price</th>", "Acme &amp; Sons", "&lt;script&gt;", "USD 2.5 per item", "USD 2.50", `href="https://www.amazon.com/dp/A"`} {
		if !strings.Contains(out, want) {
			t.Errorf("html is missing %q:\n%s", want, out)
		}
	}
}

func TestUnitPriceTextSignificantDigits(t *testing.T) {
	tests := []struct {
		amount, want string
	}{
		{"0.00000025", "USD 0.00000025 per ml"},
		{"0.0123456789", "USD 0.01235 per ml"},
		{"3.3333333333333333", "USD 3.333 per ml"},
		{"1234.5678", "USD 1234.57 per ml"},
		{"0", "USD 0 per ml"},
	}
	for _, tt := range tests {
		r := pricing.Result{Amount: decimal.RequireFromString(tt.amount), Currency: "USD"}
		r.Quantity.Unit = "ml"
		if got := UnitPriceText(r); got != tt.want {
			t.Errorf("UnitPriceText(%s) = %q, want %q", tt.amount, got, tt.want)
		}
	}
}

func TestWriteProductList(t *testing.T) {
	var buf bytes.Buffer
	err := WriteProductList(&buf, []product.Product{
		item("A", "", nil, "10.00", "8.00"),
		item("B", "", nil),
	})
	if err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "USD 8.00") || !strings.Contains(out, "▼ -20.00%") || !strings.Contains(out, "N/A") {
		t.Fatalf("unexpected list:\n%s", out)
	}
}

func TestWriteHistory(t *testing.T) {
	p := item("A", "", nil, "10.00", "8.00", "9.00")
	per := decimal.RequireFromString("0.90")
	p.History[2].PerUnitAmount = &per
	p.History[2].UnitExpression = "100g"

	var buf bytes.Buffer
	if err := WriteHistory(&buf, p); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"2024-04-02 08:00:00", "USD 0.9 / 100g", "Lowest: USD 8.00 (2024-04-03)", "Highest: USD 10.00 (2024-04-02)"} {
		if !strings.Contains(out, want) {
			t.Errorf("history is missing %q:\n%s", want, out)
		}
	}
}

func TestWriteChangesAndStats(t *testing.T) {
	var buf bytes.Buffer
	err := WriteChanges(&buf, []storage.Change{{
		OccurredAt: day, ASIN: "A", Title: "Coffee", Currency: "USD",
		Previous: decimal.RequireFromString("10"), Current: decimal.RequireFromString("8"), Percentage: -20,
	}})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "-20.00%") || !strings.Contains(buf.String(), "USD 10.00") {
		t.Fatalf("unexpected changes:\n%s", buf.String())
	}

	buf.Reset()
	if err := WriteStats(&buf, []storage.CategoryStats{{Category: "Grocery", ProductCount: 2, ObservationCount: 5}, {Category: "Toys", ProductCount: 1, ObservationCount: 1}}); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	last := strings.Fields(lines[len(lines)-1])
	if len(last) != 3 || last[0] != "TOTAL" || last[1] != "3" || last[2] != "6" {
		t.Fatalf("unexpected totals %q", lines[len(lines)-1])
	}
}
