package storage

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"
)

// openTestPG connects to the database named by PRICESCOPE_TEST_DATABASE_URL
// and skips the test when it is not set.
func openTestPG(t *testing.T) *PG {
	t.Helper()
	url := os.Getenv("PRICESCOPE_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("PRICESCOPE_TEST_DATABASE_URL not set")
	}
	db, err := OpenPostgres(context.Background(), url)
	if err != nil {
		t.Fatalf("failed to open postgres: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestPostgresRoundTrip(t *testing.T) {
	db := openTestPG(t)
	ctx := context.Background()

	const asin = "BPGTEST001"
	t.Cleanup(func() { _ = db.RemoveProduct(context.Background(), asin) })

	p := sampleProduct(asin, "Grocery", "10.00", "8.00")
	if err := db.SaveProduct(ctx, p); err != nil {
		t.Fatalf("SaveProduct: %v", err)
	}
	// saving again must not duplicate observations
	if err := db.SaveProduct(ctx, p); err != nil {
		t.Fatalf("SaveProduct: %v", err)
	}

	got, err := db.GetProduct(ctx, asin)
	if err != nil {
		t.Fatalf("GetProduct: %v", err)
	}
	if len(got.History) != 2 || len(got.Images) != 2 {
		t.Fatalf("unexpected product %+v", got)
	}
	if c := got.PriceChange(); c.Percentage != -20 {
		t.Fatalf("expected -20%%, got %v", c.Percentage)
	}

	ok, err := db.AddObservation(ctx, asin, observation("9.00", t0.Add(5*time.Hour)))
	if err != nil || !ok {
		t.Fatalf("AddObservation: %v %v", ok, err)
	}

	if err := db.RemoveProduct(ctx, asin); err != nil {
		t.Fatalf("RemoveProduct: %v", err)
	}
	if _, err := db.GetProduct(ctx, asin); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
