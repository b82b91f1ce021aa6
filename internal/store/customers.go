package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/minhng/go-pos-ledger/internal/database"
	"github.com/minhng/go-pos-ledger/internal/models"
	"github.com/shopspring/decimal"
)

// Querier is satisfied by both *sql.DB and *sql.Tx, so directory lookups
// can run standalone or inside the checkout transaction.
type Querier interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

const customerColumns = `id, name, phone, email, address, created_at, updated_at`

func scanCustomer(row interface{ Scan(...interface{}) error }, c *models.Customer) error {
	return row.Scan(
		&c.ID,
		&c.Name,
		&c.Phone,
		&c.Email,
		&c.Address,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
}

func CreateCustomer(ctx context.Context, q Querier, name, phone, email, address string) (*models.Customer, error) {
	customer := &models.Customer{}

	query := `
		INSERT INTO customers (name, phone, email, address, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING ` + customerColumns

	err := scanCustomer(q.QueryRowContext(ctx, query, name, phone, email, address), customer)
	if err != nil {
		return nil, fmt.Errorf("create customer: %w", err)
	}

	return customer, nil
}

func GetCustomer(ctx context.Context, q Querier, id int64) (*models.Customer, error) {
	customer := &models.Customer{}

	query := `SELECT ` + customerColumns + ` FROM customers WHERE id = $1`

	err := scanCustomer(q.QueryRowContext(ctx, query, id), customer)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrCustomerNotFound
		}
		return nil, fmt.Errorf("get customer: %w", err)
	}

	return customer, nil
}

// FindByNameOrPhone returns every customer matching the name exactly
// (case-insensitive) or the phone exactly. Blank inputs match nothing.
func FindByNameOrPhone(ctx context.Context, q Querier, name, phone string) ([]models.Customer, error) {
	query := `
		SELECT ` + customerColumns + `
		FROM customers
		WHERE (lower(name) = lower($1) AND $1 <> '')
		   OR (phone = $2 AND $2 <> '')
		ORDER BY id`

	rows, err := q.QueryContext(ctx, query, strings.TrimSpace(name), strings.TrimSpace(phone))
	if err != nil {
		return nil, fmt.Errorf("find customers: %w", err)
	}
	defer rows.Close()

	var customers []models.Customer
	for rows.Next() {
		var customer models.Customer
		if err := scanCustomer(rows, &customer); err != nil {
			return nil, fmt.Errorf("scan customer: %w", err)
		}
		customers = append(customers, customer)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return customers, nil
}

// CustomerSelection is what the terminal knows about the buyer: either an
// explicit prior-selected id, or free-text identity fields.
type CustomerSelection struct {
	ID      int64
	Name    string
	Phone   string
	Email   string
	Address string
}

// Resolution is the outcome of a directory lookup, captured once at
// submission time. Customer is nil when no single match existed; the order
// keeps only the denormalized name/phone either way.
type Resolution struct {
	Customer  *models.Customer
	Ambiguous bool
	Created   bool
}

// ResolveCustomer applies the directory rules: an explicit id wins; exactly
// one name-or-phone hit links for statistics only; zero hits creates the
// customer lazily; more than one hit links nothing and flags the ambiguity.
func ResolveCustomer(ctx context.Context, q Querier, sel CustomerSelection) (*Resolution, error) {
	if sel.ID > 0 {
		customer, err := GetCustomer(ctx, q, sel.ID)
		if err != nil {
			return nil, err
		}
		return &Resolution{Customer: customer}, nil
	}

	matches, err := FindByNameOrPhone(ctx, q, sel.Name, sel.Phone)
	if err != nil {
		return nil, err
	}

	switch len(matches) {
	case 1:
		return &Resolution{Customer: &matches[0]}, nil
	case 0:
		if strings.TrimSpace(sel.Name) == "" && strings.TrimSpace(sel.Phone) == "" {
			return &Resolution{}, nil
		}
		customer, err := CreateCustomer(ctx, q, sel.Name, sel.Phone, sel.Email, sel.Address)
		if err != nil {
			return nil, err
		}
		return &Resolution{Customer: customer, Created: true}, nil
	default:
		return &Resolution{Ambiguous: true}, nil
	}
}

// RequireCustomer is the strict form of ResolveCustomer for callers that
// need a single identity: ambiguity is an error instead of a flag.
func RequireCustomer(ctx context.Context, q Querier, sel CustomerSelection) (*models.Customer, error) {
	res, err := ResolveCustomer(ctx, q, sel)
	if err != nil {
		return nil, err
	}
	if res.Ambiguous {
		return nil, database.ErrCustomerAmbiguous
	}
	if res.Customer == nil {
		return nil, database.ErrCustomerNotFound
	}
	return res.Customer, nil
}

// CustomerStats recomputes total_spent and total_orders from order history
// using the same lossy name/phone match the directory searches with. These
// are derived numbers, never stored on the customer row.
func CustomerStats(ctx context.Context, q Querier, customer *models.Customer) (decimal.Decimal, int, error) {
	var totalSpent decimal.Decimal
	var totalOrders int

	err := q.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(total_amount), 0), COUNT(*)
		 FROM orders
		 WHERE (lower(customer_name) = lower($1) AND $1 <> '')
		    OR (customer_phone = $2 AND $2 <> '')`,
		customer.Name, customer.Phone).Scan(&totalSpent, &totalOrders)
	if err != nil {
		return decimal.Zero, 0, fmt.Errorf("customer stats: %w", err)
	}

	return totalSpent, totalOrders, nil
}

func ListCustomers(ctx context.Context, db *sql.DB, page, pageSize int) (*OffsetPage, error) {
	var total int64
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM customers`).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("count customers: %w", err)
	}

	offset := (page - 1) * pageSize
	query := `
		SELECT ` + customerColumns + `
		FROM customers
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`

	rows, err := db.QueryContext(ctx, query, pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	defer rows.Close()

	var customers []models.Customer
	for rows.Next() {
		var customer models.Customer
		if err := scanCustomer(rows, &customer); err != nil {
			return nil, fmt.Errorf("scan customer: %w", err)
		}
		customers = append(customers, customer)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	totalPages := int(total) / pageSize
	if int(total)%pageSize > 0 {
		totalPages++
	}

	return &OffsetPage{
		Items:      customers,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}, nil
}
