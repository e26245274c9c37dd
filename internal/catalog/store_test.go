package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestMemoryStoreGet(t *testing.T) {
	store := NewMemoryStore(Entity{ID: "p1", Name: "Widget", Categories: []string{"tools"}})
	e, err := store.Get(context.Background(), "p1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	e.Categories[0] = "mutated"
	again, _ := store.Get(context.Background(), "p1")
	if again.Categories[0] != "tools" {
		t.Fatalf("store leaked internal slice")
	}
	if _, err := store.Get(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGStoreGet(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectQuery("SELECT id, name, sku, price").
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "sku", "price", "description", "categories", "stock_status"}).
			AddRow("p1", "Widget", "W-1", "100.00", "desc", "tools,hardware", "in_stock"))

	store := &PGStore{DB: db}
	e, err := store.Get(context.Background(), "p1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if e.Price != 100 || len(e.Categories) != 2 || e.Categories[1] != "hardware" {
		t.Fatalf("unexpected entity: %+v", e)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGStoreGetNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectQuery("FROM products").WithArgs("nope").WillReturnRows(sqlmock.NewRows([]string{"id"}))
	store := &PGStore{DB: db}
	if _, err := store.Get(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
