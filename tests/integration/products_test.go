package integration

import (
	"context"
	"database/sql"
	"sync"
	"testing"

	"github.com/minhng/go-pos-ledger/internal/database"
	"github.com/minhng/go-pos-ledger/internal/store"
	"github.com/shopspring/decimal"
)

func TestConcurrentStockDecrement(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	product, err := store.CreateProduct(ctx, db, "TEST-001", "Test Product", "Components", decimal.NewFromInt(100), 10)
	if err != nil {
		t.Fatalf("Create product: %v", err)
	}

	concurrency := 5
	var wg sync.WaitGroup
	errs := make(chan error, concurrency)

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			err := database.WithRetry(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
				return store.DecrementStock(ctx, tx, product.ID, 2)
			})

			errs <- err
		}()
	}

	wg.Wait()
	close(errs)

	successCount := 0
	for err := range errs {
		if err == nil {
			successCount++
		} else if !database.IsInsufficientStock(err) {
			t.Errorf("Unexpected error: %v", err)
		}
	}

	finalProduct, err := store.GetProduct(ctx, db, product.ID)
	if err != nil {
		t.Fatalf("Get product: %v", err)
	}

	expectedStock := 10 - (successCount * 2)
	if finalProduct.Quantity != expectedStock {
		t.Errorf("Expected stock %d, got %d", expectedStock, finalProduct.Quantity)
	}
	if finalProduct.Quantity < 0 {
		t.Errorf("Stock must never be negative, got %d", finalProduct.Quantity)
	}
}

func TestDecrementStockGuard(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	product, err := store.CreateProduct(ctx, db, "TEST-002", "Test Product 2", "Components", decimal.NewFromInt(100), 1)
	if err != nil {
		t.Fatalf("Create product: %v", err)
	}

	err = database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		return store.DecrementStock(ctx, tx, product.ID, 3)
	})
	if !database.IsInsufficientStock(err) {
		t.Errorf("Expected insufficient stock error, got: %v", err)
	}

	after, err := store.GetProduct(ctx, db, product.ID)
	if err != nil {
		t.Fatalf("Get product: %v", err)
	}
	if after.Quantity != 1 {
		t.Errorf("Stock should remain unchanged at 1, got %d", after.Quantity)
	}
}

func TestLockProductNoWait(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	product, err := store.CreateProduct(ctx, db, "TEST-003", "Test Product 3", "Components", decimal.NewFromInt(100), 20)
	if err != nil {
		t.Fatalf("Create product: %v", err)
	}

	tx1, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("Begin tx1: %v", err)
	}
	defer func() { _ = tx1.Rollback() }()

	if _, err := store.LockProduct(ctx, tx1, product.ID); err != nil {
		t.Fatalf("Lock product in tx1: %v", err)
	}

	tx2, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("Begin tx2: %v", err)
	}
	defer func() { _ = tx2.Rollback() }()

	if _, err := store.LockProduct(ctx, tx2, product.ID); err != database.ErrLockTimeout {
		t.Errorf("Expected lock timeout, got: %v", err)
	}
}

func TestGetProductBySKU(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	created, err := store.CreateProduct(ctx, db, "TEST-004", "Test Product 4", "Storage", decimal.NewFromInt(250), 7)
	if err != nil {
		t.Fatalf("Create product: %v", err)
	}

	found, err := store.GetProductBySKU(ctx, db, "TEST-004")
	if err != nil {
		t.Fatalf("Get product by sku: %v", err)
	}
	if found.ID != created.ID {
		t.Errorf("Expected product %d, got %d", created.ID, found.ID)
	}

	if _, err := store.GetProductBySKU(ctx, db, "NOPE"); err != database.ErrProductNotFound {
		t.Errorf("Expected not found, got: %v", err)
	}
}
