package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sw33tLie/pricescope/pkg/product"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.sqlite"))
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func observation(amount string, at time.Time) product.Observation {
	return product.Observation{Amount: decimal.RequireFromString(amount), Currency: "USD", Timestamp: at}
}

func sampleProduct(asin, category string, prices ...string) product.Product {
	p := product.Product{
		ASIN:     asin,
		Title:    "Item " + asin,
		Category: category,
		URL:      "https://www.amazon.com/dp/" + asin,
		Brand:    "Acme",
		Images: []product.Image{
			{URL: "https://img.example/" + asin + "-1.jpg", IsPrimary: true},
			{URL: "https://img.example/" + asin + "-2.jpg"},
		},
	}
	p.Attributes.Set("Weight", "200 g")
	p.Attributes.Set("Brand", "Acme")
	for i, price := range prices {
		p.AddObservation(observation(price, t0.Add(time.Duration(i)*time.Hour)))
	}
	return p
}

func TestSaveAndGetProduct(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	p := sampleProduct("B000000001", "Grocery", "5.00", "4.50")
	perUnit := decimal.RequireFromString("2.25")
	p.History[1].PerUnitAmount = &perUnit
	p.History[1].UnitExpression = "100g"

	if err := db.SaveProduct(ctx, p); err != nil {
		t.Fatalf("SaveProduct: %v", err)
	}
	got, err := db.GetProduct(ctx, p.ASIN)
	if err != nil {
		t.Fatalf("GetProduct: %v", err)
	}

	if got.Title != p.Title || got.Category != "Grocery" || got.Brand != "Acme" {
		t.Fatalf("metadata mismatch: %+v", got)
	}
	if len(got.Images) != 2 || !got.Images[0].IsPrimary || got.Images[1].IsPrimary {
		t.Fatalf("images mismatch: %+v", got.Images)
	}
	if v, _ := got.Attributes.Get("Weight"); v != "200 g" || got.Attributes[0].Key != "Weight" {
		t.Fatalf("attributes mismatch: %+v", got.Attributes)
	}
	if len(got.History) != 2 {
		t.Fatalf("expected 2 observations, got %d", len(got.History))
	}
	if !got.History[0].Amount.Equal(p.History[0].Amount) || !got.History[0].Timestamp.Equal(t0) {
		t.Fatalf("first observation mismatch: %+v", got.History[0])
	}
	last := got.History[1]
	if last.PerUnitAmount == nil || !last.PerUnitAmount.Equal(perUnit) || last.UnitExpression != "100g" {
		t.Fatalf("declared unit price lost: %+v", last)
	}
	if got.History[0].PerUnitAmount != nil {
		t.Fatal("unexpected per unit amount on first observation")
	}
}

func TestGetProductNotFound(t *testing.T) {
	db := openTestDB(t)
	if _, err := db.GetProduct(context.Background(), "NOPE"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSaveProductDeduplicatesObservations(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	p := sampleProduct("B000000002", "Grocery", "3.00")
	if err := db.SaveProduct(ctx, p); err != nil {
		t.Fatal(err)
	}
	// saving the merged product again must not duplicate the stored reading
	p.AddObservation(observation("2.00", t0.Add(24*time.Hour)))
	p.Images = p.Images[:1]
	if err := db.SaveProduct(ctx, p); err != nil {
		t.Fatal(err)
	}

	got, err := db.GetProduct(ctx, p.ASIN)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.History) != 2 {
		t.Fatalf("expected 2 observations, got %d", len(got.History))
	}
	if len(got.Images) != 1 {
		t.Fatalf("expected images to be replaced, got %d", len(got.Images))
	}
}

func TestAddObservation(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	ok, err := db.AddObservation(ctx, "UNKNOWN", observation("1.00", t0))
	if err != nil || ok {
		t.Fatalf("expected false for unknown product, got %v %v", ok, err)
	}

	p := sampleProduct("B000000003", "Toys", "10.00")
	if err := db.SaveProduct(ctx, p); err != nil {
		t.Fatal(err)
	}
	ok, err = db.AddObservation(ctx, p.ASIN, observation("8.00", t0.Add(time.Hour)))
	if err != nil || !ok {
		t.Fatalf("AddObservation: %v %v", ok, err)
	}
	got, _ := db.GetProduct(ctx, p.ASIN)
	cur, _ := got.CurrentPrice()
	if !cur.Amount.Equal(decimal.RequireFromString("8")) {
		t.Fatalf("unexpected current price %s", cur.Amount)
	}
}

func TestListProductsAndRemove(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	for _, p := range []product.Product{
		sampleProduct("B000000010", "Grocery", "1.00"),
		sampleProduct("B000000011", "grocery", "2.00"),
		sampleProduct("B000000012", "Toys", "3.00"),
		sampleProduct("B000000013", "", "4.00"),
	} {
		if err := db.SaveProduct(ctx, p); err != nil {
			t.Fatal(err)
		}
	}

	all, err := db.ListProducts(ctx, ListOptions{})
	if err != nil || len(all) != 4 {
		t.Fatalf("expected 4 products, got %d (%v)", len(all), err)
	}
	grocery, _ := db.ListProducts(ctx, ListOptions{Category: "GROCERY"})
	if len(grocery) != 2 {
		t.Fatalf("expected 2 grocery products, got %d", len(grocery))
	}
	unknown, _ := db.ListProducts(ctx, ListOptions{Category: product.UnknownCategory})
	if len(unknown) != 1 {
		t.Fatalf("expected empty category to be stored as Unknown, got %d", len(unknown))
	}

	if err := db.RemoveProduct(ctx, "B000000012"); err != nil {
		t.Fatalf("RemoveProduct: %v", err)
	}
	if err := db.RemoveProduct(ctx, "B000000012"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second removal, got %v", err)
	}
	if _, err := db.GetProduct(ctx, "B000000012"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected removed product to be gone, got %v", err)
	}
}

func TestListRecentChanges(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.SaveProduct(ctx, sampleProduct("B000000020", "Grocery", "10.00", "10.00", "8.00", "9.00")); err != nil {
		t.Fatal(err)
	}
	if err := db.SaveProduct(ctx, sampleProduct("B000000021", "Grocery", "5.00")); err != nil {
		t.Fatal(err)
	}

	changes, err := db.ListRecentChanges(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(changes) != 2 {
		t.Fatalf("expected 2 changes, got %d", len(changes))
	}
	if changes[0].ChangeType != "increase" || !changes[0].Current.Equal(decimal.RequireFromString("9")) {
		t.Fatalf("expected newest change first, got %+v", changes[0])
	}
	if changes[1].ChangeType != "decrease" || changes[1].Percentage != -20 {
		t.Fatalf("unexpected older change: %+v", changes[1])
	}

	limited, _ := db.ListRecentChanges(ctx, 1)
	if len(limited) != 1 {
		t.Fatalf("expected limit to apply, got %d", len(limited))
	}
}

func TestGetStats(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	db.SaveProduct(ctx, sampleProduct("B000000030", "Grocery", "1.00", "2.00"))
	db.SaveProduct(ctx, sampleProduct("B000000031", "Grocery", "1.00"))
	db.SaveProduct(ctx, sampleProduct("B000000032", "Toys"))

	stats, err := db.GetStats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := []CategoryStats{
		{Category: "Grocery", ProductCount: 2, ObservationCount: 3},
		{Category: "Toys", ProductCount: 1, ObservationCount: 0},
	}
	if len(stats) != len(want) {
		t.Fatalf("want %v, got %v", want, stats)
	}
	for i := range want {
		if stats[i] != want[i] {
			t.Fatalf("want %v, got %v", want[i], stats[i])
		}
	}
}

func TestNormalizeProductURL(t *testing.T) {
	tests := []struct {
		raw, asin, want string
	}{
		{"https://www.amazon.com/Some-Thing/dp/B000000001/ref=sr_1_1?keywords=x", "B000000001", "https://www.amazon.com/dp/B000000001"},
		{"http://AMAZON.co.uk/gp/product/b000000001", "b000000001", "https://www.amazon.co.uk/dp/B000000001"},
		{"amazon.de/dp/B000000001", "B000000001", "https://www.amazon.de/dp/B000000001"},
		{"https://smile.amazon.com/dp/B000000001", "B000000001", "https://smile.amazon.com/dp/B000000001"},
		{"  ", "B000000001", ""},
		{"https://www.amazon.com/x", "", "https://www.amazon.com/x"},
	}
	for _, tt := range tests {
		if got := NormalizeProductURL(tt.raw, tt.asin); got != tt.want {
			t.Errorf("NormalizeProductURL(%q, %q) = %q, want %q", tt.raw, tt.asin, got, tt.want)
		}
	}
}

func TestMarketplace(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"https://www.amazon.com/dp/B000000001", "amazon.com", true},
		{"smile.amazon.co.uk", "amazon.co.uk", true},
		{"www.amazon.co.jp", "amazon.co.jp", true},
		{"localhost", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := Marketplace(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("Marketplace(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestIsPostgresURL(t *testing.T) {
	if !IsPostgresURL("postgres://u:p@localhost/db") || !IsPostgresURL("postgresql://localhost/db") {
		t.Fatal("expected postgres URLs to be recognised")
	}
	if IsPostgresURL("/tmp/pricescope.sqlite") {
		t.Fatal("file path must not be treated as postgres")
	}
}
