package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/sw33tLie/pricescope/pkg/pricing"
	"github.com/sw33tLie/pricescope/pkg/report"
	"github.com/sw33tLie/pricescope/pkg/scrapers/amazon"
	"github.com/sw33tLie/pricescope/pkg/storage"
	"github.com/sw33tLie/pricescope/pkg/tracker"
)

func main() {
	// Usage: go run *.go -db prices.sqlite https://www.amazon.com/dp/B07FZ8S74R ...

	dbFlag := flag.String("db", "prices.sqlite", "SQLite database file")
	unitFlag := flag.String("unit", "", "Base unit to rank by (g, ml, item, cm)")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Println("At least one product URL or ASIN is required.")
		return
	}

	store, err := storage.Open(*dbFlag)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer store.Close()

	scraper := amazon.New(amazon.Options{
		CacheExpiry: time.Hour,
		Timeout:     10 * time.Second,
		Retries:     2,
		MinDelay:    time.Second,
		MaxDelay:    3 * time.Second,
	})

	ctx := context.Background()
	cfg := tracker.Config{Scraper: scraper, Store: store, Threshold: 5}
	for _, target := range flag.Args() {
		r, err := tracker.UpdateProduct(ctx, cfg, target)
		if err != nil {
			fmt.Printf("%s: %v\n", target, err)
			continue
		}
		if up, ok := pricing.UnitPrice(r.Product); ok {
			fmt.Printf("%s  %s\n", r.Product.Title, report.UnitPriceText(up))
		}
	}

	products, err := store.ListProducts(ctx, storage.ListOptions{})
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	fmt.Println()
	report.WriteComparisonTable(os.Stdout, pricing.Compare(products, *unitFlag))
}
