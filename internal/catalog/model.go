package catalog

import (
	"context"
	"errors"
)

// ErrNotFound is returned when an entity does not exist.
var ErrNotFound = errors.New("entity not found")

// Entity is a catalog item whose competitors are analyzed.
type Entity struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	SKU         string   `json:"sku"`
	Price       float64  `json:"price"`
	Description string   `json:"description"`
	Categories  []string `json:"categories"`
	StockStatus string   `json:"stockStatus"`
}

// Store resolves catalog entities.
type Store interface {
	Get(ctx context.Context, id string) (Entity, error)
	Upsert(ctx context.Context, e Entity) error
}
