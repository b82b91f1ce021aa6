package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID        int64           `json:"id"`
	SKU       string          `json:"sku"`
	Name      string          `json:"name"`
	Category  string          `json:"category,omitempty"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	Version   int             `json:"version"`
}

// SerialUnit is one physical unit of a serialized product. Status moves
// available -> sold exactly once; sold is terminal.
type SerialUnit struct {
	ID             int64            `json:"id"`
	ProductID      int64            `json:"product_id"`
	SerialNumber   string           `json:"serial_number"`
	Status         string           `json:"status"`
	ConditionGrade string           `json:"condition_grade,omitempty"`
	Location       string           `json:"location,omitempty"`
	SoldOrderID    *int64           `json:"sold_order_id,omitempty"`
	SoldPrice      *decimal.Decimal `json:"sold_price,omitempty"`
	SoldAt         *time.Time       `json:"sold_at,omitempty"`
	Notes          string           `json:"notes,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// Customer identity. TotalSpent and TotalOrders are recomputed from order
// history on read; they are never stored.
type Customer struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Phone       string          `json:"phone"`
	Email       string          `json:"email,omitempty"`
	Address     string          `json:"address,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	TotalSpent  decimal.Decimal `json:"total_spent"`
	TotalOrders int             `json:"total_orders"`
}

// Order stores the customer as denormalized name/phone strings, not a
// foreign key. Orders are immutable once written.
type Order struct {
	ID             int64           `json:"id"`
	OrderNumber    string          `json:"order_number"`
	IdempotencyKey string          `json:"idempotency_key"`
	CustomerName   string          `json:"customer_name"`
	CustomerPhone  string          `json:"customer_phone"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	PaymentMethod  string          `json:"payment_method"`
	Status         string          `json:"status"`
	Notes          string          `json:"notes,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	Items          []OrderItem     `json:"items,omitempty"`
}

type OrderItem struct {
	ID           int64           `json:"id"`
	OrderID      int64           `json:"order_id"`
	ProductID    int64           `json:"product_id"`
	ProductName  string          `json:"product_name"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Subtotal     decimal.Decimal `json:"subtotal"`
	SerialNumber *string         `json:"serial_number,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

const (
	SerialStatusAvailable = "available"
	SerialStatusSold      = "sold"

	OrderStatusCompleted = "completed"
)
