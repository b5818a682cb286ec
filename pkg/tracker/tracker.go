// Package tracker refreshes tracked products and dispatches notifications.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/sw33tLie/pricescope/pkg/notify"
	"github.com/sw33tLie/pricescope/pkg/product"
	"github.com/sw33tLie/pricescope/pkg/scrapers"
	"github.com/sw33tLie/pricescope/pkg/scrapers/amazon"
	"github.com/sw33tLie/pricescope/pkg/storage"
)

// Logger abstracts logging so callers can use logrus, stdlib log, or any
// other logger that satisfies this interface.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

// nopLogger silently discards all messages.
type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}
func (nopLogger) Debugf(string, ...interface{}) {}

const DefaultConcurrency = 3

// Config holds everything the tracker needs.
type Config struct {
	Scraper     scrapers.Scraper
	Store       storage.Store
	Notifiers   []notify.Notifier
	Threshold   float64 // minimum absolute percentage change that notifies
	Concurrency int     // defaults to DefaultConcurrency if <= 0
	Log         Logger  // optional; nil = no logging

	// OnProductDone is called after each product is saved (from worker
	// goroutines during UpdateAll). Nil = no callback.
	OnProductDone func(r *Result)
}

func (cfg Config) log() Logger {
	if cfg.Log == nil {
		return nopLogger{}
	}
	return cfg.Log
}

// Result is the outcome of refreshing one product.
type Result struct {
	Product product.Product
	Change  product.ChangeMetrics
	IsNew   bool
	// Notified lists the notifiers that delivered an alert.
	Notified []string
	// NotifyErrors are non-fatal delivery failures.
	NotifyErrors []error
}

// Significant reports whether the change crosses threshold.
func Significant(change product.ChangeMetrics, threshold float64) bool {
	return change.HasChanged && math.Abs(change.Percentage) >= threshold
}

// Resolve turns a bare ASIN or a listing URL into the URL to scrape and its ASIN.
func Resolve(asinOrURL string) (url, asin string, err error) {
	s := strings.TrimSpace(asinOrURL)
	if strings.HasPrefix(s, "http") {
		asin, ok := amazon.ExtractASIN(s)
		if !ok {
			return "", "", fmt.Errorf("%w: %s", amazon.ErrNoASIN, s)
		}
		return s, asin, nil
	}
	if s == "" {
		return "", "", fmt.Errorf("%w: empty input", amazon.ErrNoASIN)
	}
	asin = strings.ToUpper(s)
	if !amazon.IsASIN(asin) {
		return "", "", fmt.Errorf("%w: %s", amazon.ErrNoASIN, s)
	}
	return amazon.ProductURL(asin), asin, nil
}

// UpdateProduct scrapes a product, appends the new observation to the stored
// history, saves it and notifies when the price moved by at least the
// configured threshold. Newly tracked products never notify.
func UpdateProduct(ctx context.Context, cfg Config, asinOrURL string) (*Result, error) {
	log := cfg.log()

	url, asin, err := Resolve(asinOrURL)
	if err != nil {
		return nil, err
	}

	existing, err := cfg.Store.GetProduct(ctx, asin)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		existing = nil
	case err != nil:
		return nil, err
	}
	// keep the marketplace a product was first tracked on
	if existing != nil && existing.URL != "" && !strings.HasPrefix(strings.TrimSpace(asinOrURL), "http") {
		url = existing.URL
	}

	scraped, err := cfg.Scraper.ScrapeProduct(ctx, url)
	if err != nil {
		log.Errorf("Failed to scrape product %s: %v", url, err)
		return nil, err
	}
	return record(ctx, cfg, existing, *scraped)
}

// record merges a scraped product into its stored history, saves it and
// dispatches notifications.
func record(ctx context.Context, cfg Config, existing *product.Product, scraped product.Product) (*Result, error) {
	log := cfg.log()

	merged := product.Merge(existing, scraped)
	if err := cfg.Store.SaveProduct(ctx, merged); err != nil {
		return nil, fmt.Errorf("save %s: %w", merged.ASIN, err)
	}
	log.Infof("Successfully updated product: %s", merged.Title)

	r := &Result{Product: merged, IsNew: existing == nil}
	if existing != nil && observedNewPrice(existing, scraped) {
		r.Change = merged.PriceChange()
	}

	if !r.IsNew && Significant(r.Change, cfg.Threshold) {
		for _, n := range cfg.Notifiers {
			err := n.NotifyPriceChange(ctx, merged, r.Change)
			switch {
			case err == nil:
				r.Notified = append(r.Notified, n.Name())
				log.Infof("Sent %s price change notification for %s", n.Name(), merged.Title)
			case errors.Is(err, notify.ErrNothingToSend):
			default:
				log.Warnf("%s notification for %s failed: %v", n.Name(), merged.ASIN, err)
				r.NotifyErrors = append(r.NotifyErrors, fmt.Errorf("%s: %w", n.Name(), err))
			}
		}
	}

	if cfg.OnProductDone != nil {
		cfg.OnProductDone(r)
	}
	return r, nil
}

// observedNewPrice reports whether scraped carries a price newer than the
// latest stored one. A scrape without a price leaves the stored history as it
// was, and its last move must not be reported again.
func observedNewPrice(existing *product.Product, scraped product.Product) bool {
	cur, ok := scraped.CurrentPrice()
	if !ok {
		return false
	}
	prev, ok := existing.CurrentPrice()
	return !ok || cur.Timestamp.After(prev.Timestamp)
}

// TrackCategory scrapes up to max listings of a category or search page and
// records each one like UpdateProduct does.
func TrackCategory(ctx context.Context, cfg Config, categoryURL string, max int) ([]*Result, error) {
	scraped, err := cfg.Scraper.ScrapeCategory(ctx, categoryURL, max)
	if err != nil {
		return nil, err
	}
	results := make([]*Result, 0, len(scraped))
	for _, p := range scraped {
		existing, err := cfg.Store.GetProduct(ctx, p.ASIN)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			existing = nil
		case err != nil:
			return results, err
		}
		r, err := record(ctx, cfg, existing, p)
		if err != nil {
			return results, err
		}
		results = append(results, r)
	}
	return results, nil
}

// UpdateAllResult holds the outcome of a full refresh.
type UpdateAllResult struct {
	Results []*Result
	Errors  []error // per-product failures
}

// UpdateAll refreshes every stored product using a worker pool.
func UpdateAll(ctx context.Context, cfg Config) (*UpdateAllResult, error) {
	log := cfg.log()
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	products, err := cfg.Store.ListProducts(ctx, storage.ListOptions{})
	if err != nil {
		return nil, err
	}
	out := &UpdateAllResult{}
	if len(products) == 0 {
		return out, nil
	}
	log.Infof("Updating %d products", len(products))

	jobs := make(chan product.Product, len(products))

	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range jobs {
				if ctx.Err() != nil {
					mu.Lock()
					out.Errors = append(out.Errors, fmt.Errorf("%s: %w", p.ASIN, ctx.Err()))
					mu.Unlock()
					continue
				}
				target := p.ASIN
				if p.URL != "" {
					target = p.URL
				}
				r, err := UpdateProduct(ctx, cfg, target)

				mu.Lock()
				if err != nil {
					out.Errors = append(out.Errors, fmt.Errorf("%s: %w", p.ASIN, err))
				} else {
					out.Results = append(out.Results, r)
				}
				mu.Unlock()
			}
		}()
	}

	for _, p := range products {
		jobs <- p
	}
	close(jobs)
	wg.Wait()

	return out, nil
}

// Summarize sends a summary of every tracked product through each notifier
// and returns the names of the notifiers that delivered it.
func Summarize(ctx context.Context, cfg Config) ([]string, error) {
	log := cfg.log()
	products, err := cfg.Store.ListProducts(ctx, storage.ListOptions{})
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, notify.ErrNothingToSend
	}

	var (
		sent []string
		errs []error
	)
	for _, n := range cfg.Notifiers {
		if err := n.SendSummary(ctx, products); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
			continue
		}
		log.Infof("Sent %s summary of %d products", n.Name(), len(products))
		sent = append(sent, n.Name())
	}
	return sent, errors.Join(errs...)
}
