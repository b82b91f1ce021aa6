package integration

import (
	"context"
	"errors"
	"testing"

	"github.com/minhng/go-pos-ledger/internal/database"
	"github.com/minhng/go-pos-ledger/internal/store"
	"github.com/shopspring/decimal"
)

func TestFindByNameOrPhone(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	if _, err := store.CreateCustomer(ctx, db, "Nguyen Van A", "0900000000", "", ""); err != nil {
		t.Fatalf("Create customer: %v", err)
	}

	byName, err := store.FindByNameOrPhone(ctx, db, "nguyen van a", "")
	if err != nil {
		t.Fatalf("Find by name: %v", err)
	}
	if len(byName) != 1 {
		t.Errorf("Case-insensitive name match should hit once, got %d", len(byName))
	}

	byPhone, err := store.FindByNameOrPhone(ctx, db, "", "0900000000")
	if err != nil {
		t.Fatalf("Find by phone: %v", err)
	}
	if len(byPhone) != 1 {
		t.Errorf("Exact phone match should hit once, got %d", len(byPhone))
	}

	none, err := store.FindByNameOrPhone(ctx, db, "", "")
	if err != nil {
		t.Fatalf("Find with blanks: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("Blank inputs must match nothing, got %d", len(none))
	}
}

func TestResolveCustomerLazyCreate(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	res, err := store.ResolveCustomer(ctx, db, store.CustomerSelection{
		Name:  "New Walk-in",
		Phone: "0911222333",
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !res.Created || res.Customer == nil {
		t.Fatal("Zero matches should create the customer lazily")
	}

	again, err := store.ResolveCustomer(ctx, db, store.CustomerSelection{
		Name:  "New Walk-in",
		Phone: "0911222333",
	})
	if err != nil {
		t.Fatalf("Resolve again: %v", err)
	}
	if again.Created {
		t.Error("Second resolve should reuse the existing customer")
	}
	if again.Customer == nil || again.Customer.ID != res.Customer.ID {
		t.Error("Second resolve should link the same customer")
	}
}

func TestResolveCustomerAmbiguous(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	if _, err := store.CreateCustomer(ctx, db, "Tran B", "0901111111", "", ""); err != nil {
		t.Fatalf("Create customer: %v", err)
	}
	if _, err := store.CreateCustomer(ctx, db, "Tran B", "0902222222", "", ""); err != nil {
		t.Fatalf("Create customer: %v", err)
	}

	res, err := store.ResolveCustomer(ctx, db, store.CustomerSelection{Name: "Tran B"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !res.Ambiguous {
		t.Error("Two name hits should flag ambiguity")
	}
	if res.Customer != nil {
		t.Error("Ambiguous resolution must not link a customer")
	}

	if _, err := store.RequireCustomer(ctx, db, store.CustomerSelection{Name: "Tran B"}); !errors.Is(err, database.ErrCustomerAmbiguous) {
		t.Errorf("RequireCustomer should reject ambiguity, got: %v", err)
	}
}

func TestResolveCustomerExplicitID(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	created, err := store.CreateCustomer(ctx, db, "Le C", "0903333333", "", "")
	if err != nil {
		t.Fatalf("Create customer: %v", err)
	}

	res, err := store.ResolveCustomer(ctx, db, store.CustomerSelection{ID: created.ID, Name: "ignored"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Customer == nil || res.Customer.ID != created.ID {
		t.Error("Explicit id should resolve directly")
	}
}

func TestCustomerStatsFromOrderHistory(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	ledger := newLedger(t)

	customer, err := store.CreateCustomer(ctx, db, "Nguyen A", "0900000000", "", "")
	if err != nil {
		t.Fatalf("Create customer: %v", err)
	}

	product, err := store.CreateProduct(ctx, db, "STAT-001", "RAM", "Components", decimal.NewFromInt(500000), 10)
	if err != nil {
		t.Fatalf("Create product: %v", err)
	}

	// Checkout by phone only: the order still denormalizes the matched
	// customer's identity and counts toward the recomputed stats.
	result, err := ledger.Submit(ctx, db, store.SubmitRequest{
		Customer: store.CustomerSelection{Phone: "0900000000"},
		Items: []store.SubmitItem{
			{ProductID: product.ID, Quantity: 2, UnitPrice: decimal.NewFromInt(500000)},
		},
		PaymentMethod: "cash",
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if result.CustomerID != customer.ID {
		t.Errorf("Expected linkage to customer %d, got %d", customer.ID, result.CustomerID)
	}
	if result.Order.CustomerPhone != "0900000000" {
		t.Errorf("Order should denormalize the phone, got %q", result.Order.CustomerPhone)
	}

	totalSpent, totalOrders, err := store.CustomerStats(ctx, db, customer)
	if err != nil {
		t.Fatalf("Customer stats: %v", err)
	}
	if totalOrders != 1 {
		t.Errorf("Expected 1 order in history, got %d", totalOrders)
	}
	if !totalSpent.Equal(decimal.NewFromInt(1000000)) {
		t.Errorf("Expected total spent 1000000, got %s", totalSpent)
	}
}
