package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/viper"
	"github.com/sw33tLie/pricescope/internal/config"
	"github.com/sw33tLie/pricescope/internal/utils"
	"github.com/sw33tLie/pricescope/pkg/notify"
	"github.com/sw33tLie/pricescope/pkg/scrapers/amazon"
	"github.com/sw33tLie/pricescope/pkg/storage"
	"github.com/sw33tLie/pricescope/pkg/tracker"
)

func loadConfig() config.Config {
	return config.Load(viper.GetViper())
}

// withStore opens the configured store for the duration of fn. Writers take
// the SQLite file lock so concurrent pricescope runs queue up.
func withStore(ctx context.Context, write bool, fn func(cfg config.Config, store storage.Store) error) error {
	cfg := loadConfig()

	if write && !storage.IsPostgresURL(cfg.Database.URL) {
		lock, err := utils.NewDBLock(cfg.Database.Path)
		if err != nil {
			return err
		}
		if err := lock.Lock(); err != nil {
			return err
		}
		defer func() {
			if err := lock.Unlock(); err != nil {
				utils.Log.Warn(err)
			}
		}()
	}

	store, err := storage.OpenStore(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()

	return fn(cfg, store)
}

func trackerConfig(cfg config.Config, store storage.Store) tracker.Config {
	return tracker.Config{
		Scraper:     amazon.New(amazon.OptionsFromConfig(cfg.Scraper)),
		Store:       store,
		Notifiers:   notify.FromConfig(cfg),
		Threshold:   cfg.Tracker.Threshold,
		Concurrency: cfg.Tracker.Concurrency,
		Log:         utils.Log,
	}
}
