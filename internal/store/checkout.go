package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/minhng/go-pos-ledger/internal/database"
	"github.com/minhng/go-pos-ledger/internal/models"
	"github.com/shopspring/decimal"
)

// Ledger converts carts into durable orders. One Ledger per terminal; the
// terminal id seeds the order-number generator so concurrent terminals
// never collide.
type Ledger struct {
	node *snowflake.Node
}

func NewLedger(terminalID int64) (*Ledger, error) {
	node, err := snowflake.NewNode(terminalID)
	if err != nil {
		return nil, fmt.Errorf("create order number node: %w", err)
	}
	return &Ledger{node: node}, nil
}

func (l *Ledger) nextOrderNumber() string {
	return "ORD-" + l.node.Generate().String()
}

// SubmitItem is one cart line at submission time. UnitPrice is the client's
// add-time snapshot and is written as-is; prices are never re-read live, so
// historical orders stay stable under later catalog changes.
type SubmitItem struct {
	ProductID    int64
	Quantity     int
	UnitPrice    decimal.Decimal
	SerialNumber string
}

type SubmitRequest struct {
	Customer      CustomerSelection
	Items         []SubmitItem
	PaymentMethod string
	Notes         string

	// IdempotencyKey identifies this submission attempt. Submitting the
	// same key twice is rejected; a blank key gets a generated one.
	IdempotencyKey string
}

type CheckoutResult struct {
	Order *models.Order

	// CustomerID is the statistics linkage from resolution, zero when no
	// single match existed. The order itself stores only name/phone.
	CustomerID        int64
	CustomerCreated   bool
	CustomerAmbiguous bool
}

func validateSubmit(req *SubmitRequest) error {
	if len(req.Items) == 0 {
		return &database.ValidationError{Field: "items", Reason: "cart is empty"}
	}
	if req.PaymentMethod == "" {
		return &database.ValidationError{Field: "payment_method", Reason: "required"}
	}

	seen := make(map[string]struct{})
	for i, item := range req.Items {
		if item.ProductID <= 0 {
			return &database.ValidationError{Field: fmt.Sprintf("items[%d].product_id", i), Reason: "required"}
		}
		if item.Quantity < 1 {
			return &database.ValidationError{Field: fmt.Sprintf("items[%d].quantity", i), Reason: "must be at least 1"}
		}
		if item.UnitPrice.IsNegative() {
			return &database.ValidationError{Field: fmt.Sprintf("items[%d].unit_price", i), Reason: "must not be negative"}
		}
		if item.SerialNumber != "" {
			if item.Quantity != 1 {
				return &database.ValidationError{Field: fmt.Sprintf("items[%d].quantity", i), Reason: "serialized lines carry exactly one unit"}
			}
			if _, dup := seen[item.SerialNumber]; dup {
				return database.ErrDuplicateSerialInCart
			}
			seen[item.SerialNumber] = struct{}{}
		}
	}

	return nil
}

// Submit runs the whole sale as one commit boundary: customer resolution,
// order header and item inserts with submission-time snapshots, conditional
// stock decrements, and serial transitions. Any failure rolls back every
// write of the attempt; on return the caller's cart is untouched.
func (l *Ledger) Submit(ctx context.Context, db *sql.DB, req SubmitRequest) (*CheckoutResult, error) {
	if err := validateSubmit(&req); err != nil {
		return nil, err
	}

	if req.IdempotencyKey == "" {
		req.IdempotencyKey = uuid.NewString()
	}

	result := &CheckoutResult{}

	err := database.WithRetry(ctx, db, database.TxOptions{
		IsolationLevel: sql.LevelSerializable,
		MaxRetries:     3,
	}, func(tx *sql.Tx) error {
		resolution, err := ResolveCustomer(ctx, tx, req.Customer)
		if err != nil {
			return err
		}

		customerName := req.Customer.Name
		customerPhone := req.Customer.Phone
		if resolution.Customer != nil {
			result.CustomerID = resolution.Customer.ID
			if customerName == "" {
				customerName = resolution.Customer.Name
			}
			if customerPhone == "" {
				customerPhone = resolution.Customer.Phone
			}
		}
		result.CustomerCreated = resolution.Created
		result.CustomerAmbiguous = resolution.Ambiguous

		// Lock every product up front: existence check, name snapshot,
		// and an early stock read. The conditional decrement below stays
		// the authority on stock.
		productNames := make(map[int64]string, len(req.Items))
		for _, item := range req.Items {
			product, err := LockProduct(ctx, tx, item.ProductID)
			if err != nil {
				return err
			}
			if product.Quantity < item.Quantity {
				return &database.InsufficientStockError{ProductID: item.ProductID}
			}
			productNames[item.ProductID] = product.Name
		}

		totalAmount := decimal.Zero
		for _, item := range req.Items {
			totalAmount = totalAmount.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
		}

		var orderID int64
		err = tx.QueryRowContext(ctx,
			`INSERT INTO orders (order_number, idempotency_key, customer_name, customer_phone,
			                     total_amount, payment_method, status, notes, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
			 RETURNING id`,
			l.nextOrderNumber(), req.IdempotencyKey, customerName, customerPhone,
			totalAmount, req.PaymentMethod, models.OrderStatusCompleted, req.Notes).Scan(&orderID)
		if err != nil {
			return fmt.Errorf("create order: %w", err)
		}

		for _, item := range req.Items {
			subtotal := item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))

			var serial interface{}
			if item.SerialNumber != "" {
				serial = item.SerialNumber
			}

			_, err = tx.ExecContext(ctx,
				`INSERT INTO order_items (order_id, product_id, product_name, quantity,
				                          unit_price, subtotal, serial_number, created_at)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())`,
				orderID, item.ProductID, productNames[item.ProductID], item.Quantity,
				item.UnitPrice, subtotal, serial)
			if err != nil {
				return fmt.Errorf("create order item: %w", err)
			}
		}

		for _, item := range req.Items {
			if err := DecrementStock(ctx, tx, item.ProductID, item.Quantity); err != nil {
				return err
			}
		}

		for _, item := range req.Items {
			if item.SerialNumber == "" {
				continue
			}

			var serialProductID int64
			err := tx.QueryRowContext(ctx,
				`SELECT product_id FROM serial_units WHERE serial_number = $1`,
				item.SerialNumber).Scan(&serialProductID)
			if err != nil {
				if err == sql.ErrNoRows {
					return database.ErrSerialNotFound
				}
				return fmt.Errorf("check serial product: %w", err)
			}
			if serialProductID != item.ProductID {
				return &database.ValidationError{
					Field:  "serial_number",
					Reason: fmt.Sprintf("serial %s belongs to a different product", item.SerialNumber),
				}
			}

			if err := MarkSold(ctx, tx, item.SerialNumber, orderID, item.UnitPrice, ""); err != nil {
				return err
			}
		}

		order, err := fetchOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		result.Order = order

		return nil
	})

	if err != nil {
		if database.IsUniqueViolation(err, "orders_idempotency_key_key") ||
			database.IsUniqueViolation(err, "orders_order_number_key") {
			return nil, database.ErrDuplicateSubmission
		}
		return nil, err
	}

	return result, nil
}
