package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/shopspring/decimal"

	"github.com/sw33tLie/pricescope/internal/utils"
	"github.com/sw33tLie/pricescope/pkg/product"
	"github.com/sw33tLie/pricescope/pkg/scrapers/amazon"
	"github.com/sw33tLie/pricescope/pkg/storage"
	"github.com/sw33tLie/pricescope/pkg/tracker"
)

var t0 = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

func seed(t *testing.T) *storage.DB {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "pricescope.sqlite"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	items := []struct {
		asin, category, weight string
		prices                 []string
	}{
		{"B000000001", "Coffee", "1 kg", []string{"20.00", "18.00"}},
		{"B000000002", "Coffee", "250g", []string{"6.00"}},
		{"B000000003", "Tea", "100g", []string{"3.00"}},
	}
	for _, it := range items {
		p := product.Product{ASIN: it.asin, Title: "Product " + it.asin, Category: it.category, URL: amazon.ProductURL(it.asin)}
		p.Attributes.Set("weight", it.weight)
		for i, price := range it.prices {
			p.AddObservation(product.Observation{Amount: decimal.RequireFromString(price), Currency: "USD", Timestamp: t0.Add(time.Duration(i) * time.Hour)})
		}
		if err := db.SaveProduct(context.Background(), p); err != nil {
			t.Fatalf("seed %s: %v", it.asin, err)
		}
	}
	return db
}

func do(t *testing.T, h http.Handler, method, target string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestBasicAuth(t *testing.T) {
	srv := New(seed(t), "admin", "secret")
	h := srv.Handler()

	if rec := do(t, h, "GET", "/api/stats", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without credentials, got %d", rec.Code)
	}

	req := httptest.NewRequest("GET", "/api/stats", nil)
	req.SetBasicAuth("admin", "secret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with credentials, got %d", rec.Code)
	}
}

func TestProductsEndpoints(t *testing.T) {
	h := New(seed(t), "", "").Handler()

	rec := do(t, h, "GET", "/api/products?category=coffee", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: status %d", rec.Code)
	}
	var list []productSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 coffee products, got %d", len(list))
	}

	rec = do(t, h, "GET", "/api/products/b000000001", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get: status %d", rec.Code)
	}
	var p product.Product
	if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
		t.Fatal(err)
	}
	if p.ASIN != "B000000001" || len(p.History) != 2 {
		t.Fatalf("unexpected product %+v", p)
	}

	if rec := do(t, h, "GET", "/api/products/B999999999", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHistoryEndpoint(t *testing.T) {
	h := New(seed(t), "", "").Handler()
	rec := do(t, h, "GET", "/api/products/B000000001/history", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var resp historyResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.History) != 2 || !resp.Change.HasChanged || resp.Change.Percentage != -10 {
		t.Fatalf("unexpected history %+v", resp)
	}
	if resp.Lowest == nil || !resp.Lowest.Amount.Equal(decimal.NewFromInt(18)) {
		t.Fatalf("unexpected lowest %+v", resp.Lowest)
	}
}

func TestCompareEndpoint(t *testing.T) {
	h := New(seed(t), "", "").Handler()
	rec := do(t, h, "GET", "/api/compare?unit=g&limit=2", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var resp struct {
		RankedByUnit bool         `json:"ranked_by_unit"`
		Rows         []compareRow `json:"rows"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.RankedByUnit || len(resp.Rows) != 2 {
		t.Fatalf("unexpected comparison %+v", resp)
	}
	// 18.00 per kg is the cheapest gram
	if resp.Rows[0].Product.ASIN != "B000000001" || resp.Rows[1].Product.ASIN != "B000000002" {
		t.Fatalf("unexpected order %+v", resp.Rows)
	}
}

func TestCompareEndpointLimitOnMixedUnits(t *testing.T) {
	db := seed(t)
	juice := product.Product{ASIN: "B000000004", Title: "Juice", Category: "Coffee", URL: amazon.ProductURL("B000000004")}
	juice.Attributes.Set("volume", "1 l")
	juice.AddObservation(product.Observation{Amount: decimal.NewFromInt(30), Currency: "USD", Timestamp: t0})
	if err := db.SaveProduct(context.Background(), juice); err != nil {
		t.Fatal(err)
	}

	rec := do(t, New(db, "", "").Handler(), "GET", "/api/compare?unit=g&limit=1", nil)
	var resp struct {
		RankedByUnit bool         `json:"ranked_by_unit"`
		Rows         []compareRow `json:"rows"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	// the juice is priced per ml, so totals rank and the tea comes first
	if len(resp.Rows) != 1 || resp.Rows[0].Product.ASIN != "B000000003" || resp.RankedByUnit {
		t.Fatalf("unexpected comparison %+v", resp)
	}
}

// compareRow decodes the fields of a comparison row the tests look at.
type compareRow struct {
	Product struct {
		ASIN string `json:"asin"`
	} `json:"product"`
}

func TestChangesAndStats(t *testing.T) {
	h := New(seed(t), "", "").Handler()

	rec := do(t, h, "GET", "/api/changes", nil)
	var changes []storage.Change
	if err := json.Unmarshal(rec.Body.Bytes(), &changes); err != nil {
		t.Fatal(err)
	}
	if len(changes) != 1 || changes[0].ChangeType != "decrease" {
		t.Fatalf("unexpected changes %+v", changes)
	}

	rec = do(t, h, "GET", "/api/stats", nil)
	var stats []storage.CategoryStats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatal(err)
	}
	if len(stats) != 2 {
		t.Fatalf("expected 2 categories, got %+v", stats)
	}
}

type stubScraper struct{}

func (stubScraper) Name() string { return "stub" }

func (stubScraper) ScrapeProduct(_ context.Context, url string) (*product.Product, error) {
	asin, ok := amazon.ExtractASIN(url)
	if !ok {
		return nil, amazon.ErrNoASIN
	}
	p := &product.Product{ASIN: asin, Title: "Scraped " + asin, Category: "Snacks", URL: url}
	p.AddObservation(product.Observation{Amount: decimal.NewFromInt(2), Currency: "USD", Timestamp: t0.Add(48 * time.Hour)})
	return p, nil
}

func (stubScraper) ScrapeCategory(context.Context, string, int) ([]product.Product, error) {
	return nil, nil
}

func TestTrackAndRemove(t *testing.T) {
	db := seed(t)
	srv := New(db, "", "")
	h := srv.Handler()

	if rec := do(t, h, "POST", "/api/products", []byte(`{"target":"B0NEW00001"}`)); rec.Code != http.StatusNotImplemented {
		t.Fatalf("expected 501 without a scraper, got %d", rec.Code)
	}

	srv.Tracker = tracker.Config{Scraper: stubScraper{}}
	rec := do(t, h, "POST", "/api/products", []byte(`{"target":"https://www.amazon.com/dp/B0NEW00001"}`))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec := do(t, h, "POST", "/api/products", []byte(`{"target":"https://www.amazon.com/s?k=x"}`)); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a URL without ASIN, got %d", rec.Code)
	}
	if rec := do(t, h, "POST", "/api/products", []byte(`{"target":"hello"}`)); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a target that is not an ASIN, got %d", rec.Code)
	}
	if rec := do(t, h, "POST", "/api/products", []byte(`{"target":"B000000003"}`)); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for a known product, got %d", rec.Code)
	}

	if rec := do(t, h, "DELETE", "/api/products/B0NEW00001", nil); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if rec := do(t, h, "DELETE", "/api/products/B0NEW00001", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on second delete, got %d", rec.Code)
	}
}

// lockCheckingScraper records whether the database lock was held while scraping.
type lockCheckingScraper struct {
	stubScraper
	lockPath string
	held     bool
}

func (l *lockCheckingScraper) ScrapeProduct(ctx context.Context, url string) (*product.Product, error) {
	f := flock.New(l.lockPath)
	locked, err := f.TryLock()
	if locked {
		f.Unlock()
	}
	l.held = err == nil && !locked
	return l.stubScraper.ScrapeProduct(ctx, url)
}

func TestWritesHoldDatabaseLock(t *testing.T) {
	lock, err := utils.NewDBLock(filepath.Join(t.TempDir(), "pricescope.sqlite"))
	if err != nil {
		t.Fatal(err)
	}
	scraper := &lockCheckingScraper{lockPath: lock.Path()}
	srv := New(seed(t), "", "")
	srv.Lock = lock
	srv.Tracker = tracker.Config{Scraper: scraper}
	h := srv.Handler()

	if rec := do(t, h, "POST", "/api/products", []byte(`{"target":"B0NEW00001"}`)); rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if !scraper.held {
		t.Fatal("expected the lock to be held during the update")
	}
	if rec := do(t, h, "DELETE", "/api/products/B0NEW00001", nil); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}

	other := flock.New(lock.Path())
	locked, err := other.TryLock()
	if err != nil || !locked {
		t.Fatalf("expected the lock to be released, got %v %v", locked, err)
	}
	other.Unlock()
}

func TestIndexPage(t *testing.T) {
	h := New(seed(t), "", "").Handler()
	rec := do(t, h, "GET", "/?category=Tea", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `<table class="comparison">`) || !strings.Contains(body, "Product B000000003") || strings.Contains(body, "Product B000000001") {
		t.Fatalf("unexpected page:\n%s", body)
	}
	if rec := do(t, h, "GET", "/missing", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown paths, got %d", rec.Code)
	}
}
