// Package amazon scrapes Amazon product and search pages.
package amazon

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/sw33tLie/pricescope/internal/config"
	"github.com/sw33tLie/pricescope/internal/utils"
	"github.com/sw33tLie/pricescope/pkg/product"
	"github.com/sw33tLie/pricescope/pkg/scrapers"
	"github.com/sw33tLie/pricescope/pkg/storage"
	"github.com/sw33tLie/pricescope/pkg/whttp"
)

var (
	ErrNoASIN    = errors.New("could not extract ASIN from URL")
	ErrNoPrice   = errors.New("no price found on page")
	ErrBadStatus = errors.New("unexpected HTTP status")
)

var asinRegex = regexp.MustCompile(`^[A-Z0-9]{10}$`)

type Options struct {
	CacheExpiry time.Duration
	Timeout     time.Duration
	Retries     int
	UserAgent   string
	MinDelay    time.Duration // lower bound of the random pause before each fetch
	MaxDelay    time.Duration
}

func OptionsFromConfig(cfg config.Scraper) Options {
	return Options{
		CacheExpiry: cfg.CacheExpiry,
		Timeout:     cfg.Timeout,
		Retries:     cfg.Retries,
		UserAgent:   cfg.UserAgent,
		MinDelay:    cfg.MinDelay,
		MaxDelay:    cfg.MaxDelay,
	}
}

type Scraper struct {
	opts   Options
	client *retryablehttp.Client
	cache  *pageCache
	now    func() time.Time
}

var _ scrapers.Scraper = (*Scraper)(nil)

func New(opts Options) *Scraper {
	if opts.UserAgent == "" {
		opts.UserAgent = config.DefaultUserAgent
	}
	return &Scraper{
		opts:   opts,
		client: whttp.NewClient(opts.Timeout, opts.Retries),
		cache:  newPageCache(opts.CacheExpiry),
		now:    time.Now,
	}
}

func (s *Scraper) Name() string {
	return "amazon"
}

// ExtractASIN finds the ASIN in a listing URL.
func ExtractASIN(rawURL string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", false
	}
	parts := strings.Split(u.Path, "/")

	for i, part := range parts {
		if part == "dp" && i+1 < len(parts) && parts[i+1] != "" {
			return parts[i+1], true
		}
		if part == "gp" && i+2 < len(parts) && parts[i+1] == "product" && parts[i+2] != "" {
			return parts[i+2], true
		}
	}
	for _, part := range parts {
		if asinRegex.MatchString(part) {
			return part, true
		}
	}
	if asin := u.Query().Get("ASIN"); asin != "" {
		return asin, true
	}
	return "", false
}

// IsASIN reports whether s looks like a bare ASIN.
func IsASIN(s string) bool {
	return asinRegex.MatchString(s)
}

// ProductURL is the canonical amazon.com URL for a bare ASIN.
func ProductURL(asin string) string {
	return "https://www.amazon.com/dp/" + asin
}

func (s *Scraper) ScrapeProduct(ctx context.Context, rawURL string) (*product.Product, error) {
	asin, ok := ExtractASIN(rawURL)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoASIN, rawURL)
	}

	page, err := s.fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.body))
	if err != nil {
		return nil, err
	}

	p := &product.Product{
		ASIN:        asin,
		Title:       parseTitle(doc, page.title),
		Category:    parseCategory(doc),
		URL:         storage.NormalizeProductURL(rawURL, asin),
		Brand:       parseBrand(doc),
		Description: cleanText(doc.Find("#productDescription").First().Text()),
		Images:      parseImages(doc),
		Attributes:  parseDetails(doc),
	}

	o, err := parsePrice(doc, s.now())
	switch {
	case err == nil:
		p.AddObservation(o)
	case errors.Is(err, ErrNoPrice):
		utils.Log.Warnf("No price found for %s", asin)
	default:
		return nil, fmt.Errorf("parse price of %s: %w", asin, err)
	}
	return p, nil
}

type page struct {
	body  string
	title string
}

func (s *Scraper) fetch(ctx context.Context, rawURL string) (page, error) {
	if cached, ok := s.cache.get(rawURL); ok {
		utils.Log.Debugf("Cache hit for %s", rawURL)
		return cached, nil
	}

	if err := s.pause(ctx); err != nil {
		return page{}, err
	}

	res, err := whttp.SendHTTPRequest(ctx, &whttp.WHTTPReq{
		URL:     rawURL,
		Method:  "GET",
		Headers: []whttp.WHTTPHeader{{Name: "User-Agent", Value: s.opts.UserAgent}},
	}, s.client)
	if err != nil {
		return page{}, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	if res.StatusCode != http.StatusOK {
		return page{}, fmt.Errorf("%w: %d fetching %s", ErrBadStatus, res.StatusCode, rawURL)
	}

	p := page{body: res.BodyString, title: res.HTTPTitle}
	s.cache.put(rawURL, p)
	return p, nil
}

// pause sleeps a random duration between MinDelay and MaxDelay.
func (s *Scraper) pause(ctx context.Context) error {
	d := jitter(s.opts.MinDelay, s.opts.MaxDelay)
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func jitter(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int63n(int64(max-min)))
}

type cacheEntry struct {
	at   time.Time
	page page
}

// pageCache keeps fetched pages for a fixed time. A zero expiry disables it.
type pageCache struct {
	mu      sync.Mutex
	expiry  time.Duration
	entries map[string]cacheEntry
	now     func() time.Time
}

func newPageCache(expiry time.Duration) *pageCache {
	return &pageCache{expiry: expiry, entries: make(map[string]cacheEntry), now: time.Now}
}

func (c *pageCache) get(key string) (page, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return page{}, false
	}
	if c.now().Sub(e.at) >= c.expiry {
		delete(c.entries, key)
		return page{}, false
	}
	return e.page, true
}

func (c *pageCache) put(key string, p page) {
	if c.expiry <= 0 {
		return
	}
	c.mu.Lock()
	c.entries[key] = cacheEntry{at: c.now(), page: p}
	c.mu.Unlock()
}
