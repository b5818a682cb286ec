package scrapers

import (
	"context"

	"github.com/sw33tLie/pricescope/pkg/product"
)

// Scraper abstracts a store specific product page parser.
type Scraper interface {
	Name() string
	// ScrapeProduct fetches a listing. The returned product carries at most
	// one observation, stamped with the time of the scrape.
	ScrapeProduct(ctx context.Context, url string) (*product.Product, error)
	// ScrapeCategory scrapes up to max listings linked from a search or
	// category page.
	ScrapeCategory(ctx context.Context, url string, max int) ([]product.Product, error)
}
