package catalog

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
)

// PGStore implements Store using the products table.
type PGStore struct {
	DB *sql.DB
}

// Get returns a product by id.
func (s *PGStore) Get(ctx context.Context, id string) (Entity, error) {
	const query = `
SELECT id, name, sku, price, description, array_to_string(categories, ','), stock_status
FROM products
WHERE id = $1
LIMIT 1`
	var e Entity
	var price string
	var categories sql.NullString
	err := s.DB.QueryRowContext(ctx, query, id).Scan(
		&e.ID,
		&e.Name,
		&e.SKU,
		&price,
		&e.Description,
		&categories,
		&e.StockStatus,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entity{}, ErrNotFound
		}
		return Entity{}, err
	}
	e.Price, _ = strconv.ParseFloat(price, 64)
	if categories.Valid && categories.String != "" {
		e.Categories = strings.Split(categories.String, ",")
	}
	return e, nil
}

// Upsert inserts or updates a product.
func (s *PGStore) Upsert(ctx context.Context, e Entity) error {
	const query = `
INSERT INTO products (id, name, sku, price, description, categories, stock_status)
VALUES ($1, $2, $3, $4, $5, string_to_array(NULLIF($6, ''), ','), $7)
ON CONFLICT (id) DO UPDATE
SET name = EXCLUDED.name,
    sku = EXCLUDED.sku,
    price = EXCLUDED.price,
    description = EXCLUDED.description,
    categories = COALESCE(EXCLUDED.categories, '{}'),
    stock_status = EXCLUDED.stock_status,
    updated_at = now()`
	stock := e.StockStatus
	if stock == "" {
		stock = "unknown"
	}
	_, err := s.DB.ExecContext(ctx, query,
		e.ID,
		e.Name,
		e.SKU,
		e.Price,
		e.Description,
		strings.Join(e.Categories, ","),
		stock,
	)
	return err
}
