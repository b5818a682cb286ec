package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/sw33tLie/pricescope/pkg/product"
)

// Amounts are stored as TEXT to keep the exact decimal representation.
const postgresSchema = `
CREATE TABLE IF NOT EXISTS products (
  asin        TEXT PRIMARY KEY,
  title       TEXT NOT NULL,
  category    TEXT NOT NULL DEFAULT 'Unknown',
  url         TEXT NOT NULL,
  brand       TEXT,
  description TEXT,
  attributes  JSONB,
  created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_products_category ON products(category);
CREATE TABLE IF NOT EXISTS product_images (
  id         BIGSERIAL PRIMARY KEY,
  asin       TEXT NOT NULL,
  url        TEXT NOT NULL,
  is_primary BOOLEAN NOT NULL DEFAULT FALSE,
  position   INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_images_asin ON product_images(asin);
CREATE TABLE IF NOT EXISTS price_history (
  id              BIGSERIAL PRIMARY KEY,
  asin            TEXT NOT NULL,
  amount          TEXT NOT NULL,
  currency        TEXT NOT NULL DEFAULT 'USD',
  observed_at     TIMESTAMPTZ NOT NULL,
  per_unit_amount TEXT,
  unit_expression TEXT,
  UNIQUE(asin, observed_at)
);
CREATE INDEX IF NOT EXISTS idx_history_asin ON price_history(asin, observed_at);
`

// PG is the PostgreSQL backed Store.
type PG struct {
	pool *pgxpool.Pool
}

var _ Store = (*PG)(nil)

func OpenPostgres(ctx context.Context, url string) (*PG, error) {
	config, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, err
	}
	config.MaxConns = 10
	config.MinConns = 1
	config.MaxConnLifetime = time.Hour

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres connection failed: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, err
	}
	return &PG{pool: pool}, nil
}

func (d *PG) Close() error {
	if d != nil && d.pool != nil {
		d.pool.Close()
	}
	return nil
}

func (d *PG) SaveProduct(ctx context.Context, p product.Product) error {
	if p.ASIN == "" {
		return errors.New("product has no ASIN")
	}
	attrs, err := json.Marshal(p.Attributes)
	if err != nil {
		return err
	}
	category := p.Category
	if category == "" {
		category = product.UnknownCategory
	}

	return pgx.BeginFunc(ctx, d.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
INSERT INTO products(asin, title, category, url, brand, description, attributes)
VALUES($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT(asin) DO UPDATE SET
  title = EXCLUDED.title,
  category = EXCLUDED.category,
  url = EXCLUDED.url,
  brand = EXCLUDED.brand,
  description = EXCLUDED.description,
  attributes = EXCLUDED.attributes,
  updated_at = now()`,
			p.ASIN, p.Title, category, p.URL, nullIfEmpty(p.Brand), nullIfEmpty(p.Description), attrs)
		if err != nil {
			return fmt.Errorf("upsert product %s: %w", p.ASIN, err)
		}

		if _, err := tx.Exec(ctx, "DELETE FROM product_images WHERE asin = $1", p.ASIN); err != nil {
			return err
		}
		for i, img := range p.Images {
			if _, err := tx.Exec(ctx, "INSERT INTO product_images(asin, url, is_primary, position) VALUES($1,$2,$3,$4)", p.ASIN, img.URL, img.IsPrimary, i); err != nil {
				return err
			}
		}

		for _, o := range p.History {
			if err := pgInsertObservation(ctx, tx, p.ASIN, o); err != nil {
				return err
			}
		}
		return nil
	})
}

func pgInsertObservation(ctx context.Context, tx pgx.Tx, asin string, o product.Observation) error {
	currency := o.Currency
	if currency == "" {
		currency = product.DefaultCurrency
	}
	var perUnit *string
	if o.PerUnitAmount != nil {
		s := o.PerUnitAmount.String()
		perUnit = &s
	}
	_, err := tx.Exec(ctx, `INSERT INTO price_history(asin, amount, currency, observed_at, per_unit_amount, unit_expression) VALUES($1,$2,$3,$4,$5,$6) ON CONFLICT(asin, observed_at) DO NOTHING`,
		asin, o.Amount.String(), currency, o.Timestamp.UTC(), perUnit, nullIfEmpty(o.UnitExpression))
	if err != nil {
		return fmt.Errorf("insert observation for %s: %w", asin, err)
	}
	return nil
}

const pgProductColumns = "asin, title, category, url, COALESCE(brand, ''), COALESCE(description, ''), attributes"

func scanPGProduct(row pgx.Row) (product.Product, error) {
	var (
		p     product.Product
		attrs []byte
	)
	if err := row.Scan(&p.ASIN, &p.Title, &p.Category, &p.URL, &p.Brand, &p.Description, &attrs); err != nil {
		return p, err
	}
	if len(attrs) > 0 {
		if err := json.Unmarshal(attrs, &p.Attributes); err != nil {
			return p, fmt.Errorf("attributes of %s: %w", p.ASIN, err)
		}
	}
	return p, nil
}

func (d *PG) GetProduct(ctx context.Context, asin string) (*product.Product, error) {
	p, err := scanPGProduct(d.pool.QueryRow(ctx, "SELECT "+pgProductColumns+" FROM products WHERE asin = $1", asin))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := d.hydrate(ctx, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (d *PG) ListProducts(ctx context.Context, opts ListOptions) ([]product.Product, error) {
	q := "SELECT " + pgProductColumns + " FROM products"
	args := []any{}
	if opts.Category != "" {
		q += " WHERE lower(category) = lower($1)"
		args = append(args, opts.Category)
	}
	q += " ORDER BY lower(title), asin"

	rows, err := d.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	var out []product.Product
	for rows.Next() {
		p, err := scanPGProduct(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		if err := d.hydrate(ctx, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (d *PG) hydrate(ctx context.Context, p *product.Product) error {
	rows, err := d.pool.Query(ctx, "SELECT url, is_primary FROM product_images WHERE asin = $1 ORDER BY position, id", p.ASIN)
	if err != nil {
		return err
	}
	for rows.Next() {
		var img product.Image
		if err := rows.Scan(&img.URL, &img.IsPrimary); err != nil {
			rows.Close()
			return err
		}
		p.Images = append(p.Images, img)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = d.pool.Query(ctx, "SELECT amount, currency, observed_at, per_unit_amount, COALESCE(unit_expression, '') FROM price_history WHERE asin = $1 ORDER BY observed_at, id", p.ASIN)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			o       product.Observation
			amount  string
			perUnit *string
		)
		if err := rows.Scan(&amount, &o.Currency, &o.Timestamp, &perUnit, &o.UnitExpression); err != nil {
			return err
		}
		if o.Amount, err = decimal.NewFromString(amount); err != nil {
			return fmt.Errorf("amount of %s: %w", p.ASIN, err)
		}
		if perUnit != nil {
			v, err := decimal.NewFromString(*perUnit)
			if err != nil {
				return fmt.Errorf("per unit amount of %s: %w", p.ASIN, err)
			}
			o.PerUnitAmount = &v
		}
		o.Timestamp = o.Timestamp.UTC()
		p.History = append(p.History, o)
	}
	return rows.Err()
}

func (d *PG) AddObservation(ctx context.Context, asin string, o product.Observation) (bool, error) {
	var exists bool
	if err := d.pool.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM products WHERE asin = $1)", asin).Scan(&exists); err != nil {
		return false, err
	}
	if !exists {
		return false, nil
	}
	err := pgx.BeginFunc(ctx, d.pool, func(tx pgx.Tx) error {
		return pgInsertObservation(ctx, tx, asin, o)
	})
	return err == nil, err
}

func (d *PG) RemoveProduct(ctx context.Context, asin string) error {
	return pgx.BeginFunc(ctx, d.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "DELETE FROM price_history WHERE asin = $1", asin); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, "DELETE FROM product_images WHERE asin = $1", asin); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, "DELETE FROM products WHERE asin = $1", asin)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (d *PG) ListRecentChanges(ctx context.Context, limit int) ([]Change, error) {
	products, err := d.ListProducts(ctx, ListOptions{})
	if err != nil {
		return nil, err
	}
	return recentChanges(products, limit), nil
}

func (d *PG) GetStats(ctx context.Context) ([]CategoryStats, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT p.category, COUNT(DISTINCT p.asin), COUNT(h.id)
		FROM products p
		LEFT JOIN price_history h ON h.asin = p.asin
		GROUP BY p.category
		ORDER BY p.category`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []CategoryStats
	for rows.Next() {
		var s CategoryStats
		if err := rows.Scan(&s.Category, &s.ProductCount, &s.ObservationCount); err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}
