package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/sw33tLie/pricescope/pkg/product"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS products (
  asin        TEXT PRIMARY KEY,
  title       TEXT NOT NULL,
  category    TEXT NOT NULL DEFAULT 'Unknown',
  url         TEXT NOT NULL,
  brand       TEXT,
  description TEXT,
  attributes  TEXT,
  created_at  TEXT NOT NULL,
  updated_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_products_category ON products(category);
CREATE TABLE IF NOT EXISTS product_images (
  id         INTEGER PRIMARY KEY,
  asin       TEXT NOT NULL,
  url        TEXT NOT NULL,
  is_primary INTEGER NOT NULL CHECK (is_primary IN (0,1)),
  position   INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_images_asin ON product_images(asin);
CREATE TABLE IF NOT EXISTS price_history (
  id              INTEGER PRIMARY KEY,
  asin            TEXT NOT NULL,
  amount          TEXT NOT NULL,
  currency        TEXT NOT NULL DEFAULT 'USD',
  observed_at     TEXT NOT NULL,
  per_unit_amount TEXT,
  unit_expression TEXT,
  UNIQUE(asin, observed_at)
);
CREATE INDEX IF NOT EXISTS idx_history_asin ON price_history(asin, observed_at);
`

// DB is the SQLite backed Store.
type DB struct {
	sql *sqlx.DB
}

var _ Store = (*DB)(nil)

type productRow struct {
	ASIN        string         `db:"asin"`
	Title       string         `db:"title"`
	Category    string         `db:"category"`
	URL         string         `db:"url"`
	Brand       sql.NullString `db:"brand"`
	Description sql.NullString `db:"description"`
	Attributes  sql.NullString `db:"attributes"`
}

type imageRow struct {
	URL       string `db:"url"`
	IsPrimary int    `db:"is_primary"`
}

type observationRow struct {
	Amount         decimal.Decimal     `db:"amount"`
	Currency       string              `db:"currency"`
	ObservedAt     string              `db:"observed_at"`
	PerUnitAmount  decimal.NullDecimal `db:"per_unit_amount"`
	UnitExpression sql.NullString      `db:"unit_expression"`
}

func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, err
	}
	return &DB{sql: db}, nil
}

func (d *DB) Close() error {
	if d == nil || d.sql == nil {
		return nil
	}
	return d.sql.Close()
}

func (d *DB) SaveProduct(ctx context.Context, p product.Product) (err error) {
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

	tx, err := d.sql.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := formatTime(time.Now())
	_, err = tx.NamedExecContext(ctx, `
INSERT INTO products(asin, title, category, url, brand, description, attributes, created_at, updated_at)
VALUES(:asin, :title, :category, :url, :brand, :description, :attributes, :now, :now)
ON CONFLICT(asin) DO UPDATE SET
  title = excluded.title,
  category = excluded.category,
  url = excluded.url,
  brand = excluded.brand,
  description = excluded.description,
  attributes = excluded.attributes,
  updated_at = excluded.updated_at`,
		map[string]interface{}{
			"asin":        p.ASIN,
			"title":       p.Title,
			"category":    category,
			"url":         p.URL,
			"brand":       nullIfEmpty(p.Brand),
			"description": nullIfEmpty(p.Description),
			"attributes":  string(attrs),
			"now":         now,
		})
	if err != nil {
		return fmt.Errorf("upsert product %s: %w", p.ASIN, err)
	}

	if _, err = tx.ExecContext(ctx, "DELETE FROM product_images WHERE asin = ?", p.ASIN); err != nil {
		return err
	}
	for i, img := range p.Images {
		if _, err = tx.ExecContext(ctx, "INSERT INTO product_images(asin, url, is_primary, position) VALUES(?,?,?,?)", p.ASIN, img.URL, boolToInt(img.IsPrimary), i); err != nil {
			return err
		}
	}

	for _, o := range p.History {
		if err = insertObservation(ctx, tx, p.ASIN, o); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func insertObservation(ctx context.Context, ex sqlx.ExecerContext, asin string, o product.Observation) error {
	currency := o.Currency
	if currency == "" {
		currency = product.DefaultCurrency
	}
	var perUnit decimal.NullDecimal
	if o.PerUnitAmount != nil {
		perUnit = decimal.NewNullDecimal(*o.PerUnitAmount)
	}
	_, err := ex.ExecContext(ctx, `INSERT INTO price_history(asin, amount, currency, observed_at, per_unit_amount, unit_expression) VALUES(?,?,?,?,?,?) ON CONFLICT(asin, observed_at) DO NOTHING`,
		asin, o.Amount, currency, formatTime(o.Timestamp), perUnit, nullIfEmpty(o.UnitExpression))
	if err != nil {
		return fmt.Errorf("insert observation for %s: %w", asin, err)
	}
	return nil
}

func (d *DB) GetProduct(ctx context.Context, asin string) (*product.Product, error) {
	var row productRow
	err := d.sql.GetContext(ctx, &row, "SELECT asin, title, category, url, brand, description, attributes FROM products WHERE asin = ?", asin)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p, err := d.hydrate(ctx, row)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (d *DB) ListProducts(ctx context.Context, opts ListOptions) ([]product.Product, error) {
	q := "SELECT asin, title, category, url, brand, description, attributes FROM products"
	args := []interface{}{}
	if opts.Category != "" {
		q += " WHERE lower(category) = lower(?)"
		args = append(args, opts.Category)
	}
	q += " ORDER BY lower(title), asin"

	var rows []productRow
	if err := d.sql.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, err
	}
	out := make([]product.Product, 0, len(rows))
	for _, row := range rows {
		p, err := d.hydrate(ctx, row)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (d *DB) hydrate(ctx context.Context, row productRow) (product.Product, error) {
	p := product.Product{
		ASIN:        row.ASIN,
		Title:       row.Title,
		Category:    row.Category,
		URL:         row.URL,
		Brand:       row.Brand.String,
		Description: row.Description.String,
	}
	if row.Attributes.Valid && row.Attributes.String != "" {
		if err := json.Unmarshal([]byte(row.Attributes.String), &p.Attributes); err != nil {
			return p, fmt.Errorf("attributes of %s: %w", row.ASIN, err)
		}
	}

	var images []imageRow
	if err := d.sql.SelectContext(ctx, &images, "SELECT url, is_primary FROM product_images WHERE asin = ? ORDER BY position, id", row.ASIN); err != nil {
		return p, err
	}
	for _, img := range images {
		p.Images = append(p.Images, product.Image{URL: img.URL, IsPrimary: img.IsPrimary == 1})
	}

	var history []observationRow
	if err := d.sql.SelectContext(ctx, &history, "SELECT amount, currency, observed_at, per_unit_amount, unit_expression FROM price_history WHERE asin = ? ORDER BY observed_at, id", row.ASIN); err != nil {
		return p, err
	}
	for _, h := range history {
		ts, err := parseTime(h.ObservedAt)
		if err != nil {
			return p, err
		}
		o := product.Observation{
			Amount:         h.Amount,
			Currency:       h.Currency,
			Timestamp:      ts,
			UnitExpression: h.UnitExpression.String,
		}
		if h.PerUnitAmount.Valid {
			v := h.PerUnitAmount.Decimal
			o.PerUnitAmount = &v
		}
		p.History = append(p.History, o)
	}
	return p, nil
}

func (d *DB) AddObservation(ctx context.Context, asin string, o product.Observation) (bool, error) {
	var n int
	if err := d.sql.GetContext(ctx, &n, "SELECT COUNT(*) FROM products WHERE asin = ?", asin); err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}
	if err := insertObservation(ctx, d.sql, asin, o); err != nil {
		return false, err
	}
	return true, nil
}

func (d *DB) RemoveProduct(ctx context.Context, asin string) (err error) {
	tx, err := d.sql.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, "DELETE FROM price_history WHERE asin = ?", asin); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, "DELETE FROM product_images WHERE asin = ?", asin); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM products WHERE asin = ?", asin)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		err = ErrNotFound
		return err
	}
	return tx.Commit()
}

// ListRecentChanges returns the most recent price moves across all products.
func (d *DB) ListRecentChanges(ctx context.Context, limit int) ([]Change, error) {
	products, err := d.ListProducts(ctx, ListOptions{})
	if err != nil {
		return nil, err
	}
	return recentChanges(products, limit), nil
}

func (d *DB) GetStats(ctx context.Context) ([]CategoryStats, error) {
	query := `
		SELECT
			p.category AS category,
			COUNT(DISTINCT p.asin) AS product_count,
			COUNT(h.id) AS observation_count
		FROM
			products p
			LEFT JOIN price_history h ON h.asin = p.asin
		GROUP BY
			p.category
		ORDER BY
			p.category;
	`
	var stats []CategoryStats
	if err := d.sql.SelectContext(ctx, &stats, query); err != nil {
		return nil, err
	}
	return stats, nil
}
