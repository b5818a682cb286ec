package amazon

import (
	"context"
	"fmt"

	"github.com/gocolly/colly/v2"

	"github.com/sw33tLie/pricescope/internal/utils"
	"github.com/sw33tLie/pricescope/pkg/product"
)

// ListingLinks crawls a search or category page and returns up to max
// listing URLs in page order.
func (s *Scraper) ListingLinks(ctx context.Context, categoryURL string, max int) ([]string, error) {
	c := colly.NewCollector(
		colly.UserAgent(s.opts.UserAgent),
	)
	if s.opts.Timeout > 0 {
		c.SetRequestTimeout(s.opts.Timeout)
	}
	if s.opts.MaxDelay > 0 {
		c.Limit(&colly.LimitRule{
			DomainGlob:  "*",
			Parallelism: 1,
			Delay:       s.opts.MinDelay,
			RandomDelay: s.opts.MaxDelay - s.opts.MinDelay,
		})
	}

	var links []string
	seen := make(map[string]bool)

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept-Language", "en-US,en;q=0.9")
		utils.Log.Debugf("Crawling %s", r.URL.String())
	})

	c.OnHTML("div.s-result-item[data-asin]", func(e *colly.HTMLElement) {
		if max > 0 && len(links) >= max {
			return
		}
		asin := e.Attr("data-asin")
		if len(asin) != 10 || seen[asin] {
			return
		}
		href := e.ChildAttr("a.a-link-normal.s-no-outline", "href")
		if href == "" {
			return
		}
		seen[asin] = true
		links = append(links, e.Request.AbsoluteURL(href))
	})

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := c.Visit(categoryURL); err != nil {
		return nil, fmt.Errorf("crawl %s: %w", categoryURL, err)
	}
	c.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return links, nil
}

// ScrapeCategory scrapes the listings linked from a category page. Listings
// that fail to scrape are skipped and do not count toward max.
func (s *Scraper) ScrapeCategory(ctx context.Context, categoryURL string, max int) ([]product.Product, error) {
	links, err := s.ListingLinks(ctx, categoryURL, 0)
	if err != nil {
		return nil, err
	}

	var products []product.Product
	for _, link := range links {
		if max > 0 && len(products) >= max {
			break
		}
		if err := ctx.Err(); err != nil {
			return products, err
		}
		p, err := s.ScrapeProduct(ctx, link)
		if err != nil {
			utils.Log.Warnf("Skipping %s: %v", link, err)
			continue
		}
		products = append(products, *p)
	}
	return products, nil
}
