package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/minhng/go-pos-ledger/internal/database"
	"github.com/minhng/go-pos-ledger/internal/models"
)

const orderColumns = `id, order_number, idempotency_key, customer_name, customer_phone,
	total_amount, payment_method, status, notes, created_at`

const orderItemColumns = `id, order_id, product_id, product_name, quantity, unit_price, subtotal,
	serial_number, created_at`

func scanOrder(row interface{ Scan(...interface{}) error }, o *models.Order) error {
	return row.Scan(
		&o.ID,
		&o.OrderNumber,
		&o.IdempotencyKey,
		&o.CustomerName,
		&o.CustomerPhone,
		&o.TotalAmount,
		&o.PaymentMethod,
		&o.Status,
		&o.Notes,
		&o.CreatedAt,
	)
}

func scanOrderItem(row interface{ Scan(...interface{}) error }, i *models.OrderItem) error {
	return row.Scan(
		&i.ID,
		&i.OrderID,
		&i.ProductID,
		&i.ProductName,
		&i.Quantity,
		&i.UnitPrice,
		&i.Subtotal,
		&i.SerialNumber,
		&i.CreatedAt,
	)
}

func fetchOrder(ctx context.Context, q Querier, id int64) (*models.Order, error) {
	order := &models.Order{}

	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	err := scanOrder(q.QueryRowContext(ctx, query, id), order)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	items, err := fetchOrderItems(ctx, q, id)
	if err != nil {
		return nil, err
	}
	order.Items = items

	return order, nil
}

func fetchOrderItems(ctx context.Context, q Querier, orderID int64) ([]models.OrderItem, error) {
	query := `SELECT ` + orderItemColumns + ` FROM order_items WHERE order_id = $1 ORDER BY id`

	rows, err := q.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order items: %w", err)
	}
	defer rows.Close()

	var items []models.OrderItem
	for rows.Next() {
		var item models.OrderItem
		if err := scanOrderItem(rows, &item); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return items, nil
}

// GetOrder returns the persisted header plus items: the wire contract for
// receipt printing and historical reporting.
func GetOrder(ctx context.Context, db *sql.DB, id int64) (*models.Order, error) {
	return fetchOrder(ctx, db, id)
}

func GetOrderByNumber(ctx context.Context, db *sql.DB, orderNumber string) (*models.Order, error) {
	var id int64
	err := db.QueryRowContext(ctx, `SELECT id FROM orders WHERE order_number = $1`, orderNumber).Scan(&id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order by number: %w", err)
	}
	return fetchOrder(ctx, db, id)
}

func ListOrdersCursor(ctx context.Context, db *sql.DB, cursor string, limit int) (*CursorPage, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE (created_at, id) < ($1, $2)
		ORDER BY created_at DESC, id DESC
		LIMIT $3`

	return listOrders(ctx, db, query, cursor, limit)
}

// ListOrdersForCustomer re-runs the same lossy name/phone match used by the
// directory; inconsistent name entry will miss orders, which is inherent to
// the denormalized linkage.
func ListOrdersForCustomer(ctx context.Context, db *sql.DB, name, phone, cursor string, limit int) (*CursorPage, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE ((lower(customer_name) = lower($4) AND $4 <> '')
		   OR (customer_phone = $5 AND $5 <> ''))
		  AND (created_at, id) < ($1, $2)
		ORDER BY created_at DESC, id DESC
		LIMIT $3`

	return listOrders(ctx, db, query, cursor, limit, name, phone)
}

func listOrders(ctx context.Context, db *sql.DB, query, cursor string, limit int, extraArgs ...interface{}) (*CursorPage, error) {
	cursorData, err := DecodeCursor(cursor)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}

	args := append([]interface{}{cursorData.CreatedAt, cursorData.ID, limit + 1}, extraArgs...)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		var order models.Order
		if err := scanOrder(rows, &order); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	hasMore := len(orders) > limit
	if hasMore {
		orders = orders[:limit]
	}

	var nextCursor string
	if hasMore && len(orders) > 0 {
		lastOrder := orders[len(orders)-1]
		nextCursor = EncodeCursor(OrderCursor{
			CreatedAt: lastOrder.CreatedAt,
			ID:        lastOrder.ID,
		})
	}

	return &CursorPage{
		Items:      orders,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}
