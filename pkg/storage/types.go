package storage

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sw33tLie/pricescope/pkg/product"
)

// ErrNotFound is returned when a product is not stored.
var ErrNotFound = errors.New("product not found")

// Store persists products and their price history.
type Store interface {
	// SaveProduct upserts metadata, replaces images and adds any observation
	// not already stored for the same timestamp.
	SaveProduct(ctx context.Context, p product.Product) error
	GetProduct(ctx context.Context, asin string) (*product.Product, error)
	ListProducts(ctx context.Context, opts ListOptions) ([]product.Product, error)
	// AddObservation reports false when the product is unknown.
	AddObservation(ctx context.Context, asin string, o product.Observation) (bool, error)
	RemoveProduct(ctx context.Context, asin string) error
	ListRecentChanges(ctx context.Context, limit int) ([]Change, error)
	GetStats(ctx context.Context) ([]CategoryStats, error)
	Close() error
}

// ListOptions controls selection when listing products.
type ListOptions struct {
	Category string // case-insensitive, empty means all
}

// Change is a price move between two consecutive observations of a product.
type Change struct {
	OccurredAt time.Time       `json:"occurred_at"`
	ASIN       string          `json:"asin"`
	Title      string          `json:"title"`
	Category   string          `json:"category"`
	Previous   decimal.Decimal `json:"previous"`
	Current    decimal.Decimal `json:"current"`
	Currency   string          `json:"currency"`
	Percentage float64         `json:"percentage"`
	ChangeType string          `json:"change_type"` // increase | decrease
}

type CategoryStats struct {
	Category         string `json:"category" db:"category"`
	ProductCount     int    `json:"product_count" db:"product_count"`
	ObservationCount int    `json:"observation_count" db:"observation_count"`
}
