package storage

import (
	"context"
	"strings"

	"github.com/sw33tLie/pricescope/internal/config"
	"github.com/sw33tLie/pricescope/internal/utils"
)

// OpenStore opens PostgreSQL when a database URL is configured and the
// SQLite file otherwise.
func OpenStore(ctx context.Context, cfg config.Database) (Store, error) {
	if IsPostgresURL(cfg.URL) {
		utils.Log.Debug("Using PostgreSQL storage")
		return OpenPostgres(ctx, cfg.URL)
	}
	path, err := utils.GetAbsDBPath(cfg.Path)
	if err != nil {
		return nil, err
	}
	utils.Log.Debugf("Using SQLite storage at %s", path)
	return Open(path)
}

func IsPostgresURL(s string) bool {
	return strings.HasPrefix(s, "postgres://") || strings.HasPrefix(s, "postgresql://")
}
