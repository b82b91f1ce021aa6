package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/minhng/go-pos-ledger/internal/database"
	"github.com/minhng/go-pos-ledger/internal/models"
	"github.com/shopspring/decimal"
)

const serialColumns = `id, product_id, serial_number, status, condition_grade, location,
	sold_order_id, sold_price, sold_at, notes, created_at, updated_at`

func scanSerial(row interface{ Scan(...interface{}) error }, s *models.SerialUnit) error {
	return row.Scan(
		&s.ID,
		&s.ProductID,
		&s.SerialNumber,
		&s.Status,
		&s.ConditionGrade,
		&s.Location,
		&s.SoldOrderID,
		&s.SoldPrice,
		&s.SoldAt,
		&s.Notes,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
}

// ReceiveSerialUnit registers one physical unit at stock receipt. Units
// start available; the only later mutation is MarkSold.
func ReceiveSerialUnit(ctx context.Context, db *sql.DB, productID int64, serialNumber, conditionGrade, location string) (*models.SerialUnit, error) {
	unit := &models.SerialUnit{}

	query := `
		INSERT INTO serial_units (product_id, serial_number, status, condition_grade, location, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING ` + serialColumns

	err := scanSerial(db.QueryRowContext(ctx, query,
		productID, serialNumber, models.SerialStatusAvailable, conditionGrade, location), unit)
	if err != nil {
		return nil, fmt.Errorf("receive serial unit: %w", err)
	}

	return unit, nil
}

func GetSerialUnit(ctx context.Context, db *sql.DB, serialNumber string) (*models.SerialUnit, error) {
	unit := &models.SerialUnit{}

	query := `SELECT ` + serialColumns + ` FROM serial_units WHERE serial_number = $1`

	err := scanSerial(db.QueryRowContext(ctx, query, serialNumber), unit)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrSerialNotFound
		}
		return nil, fmt.Errorf("get serial unit: %w", err)
	}

	return unit, nil
}

func ListAvailableSerialUnits(ctx context.Context, db *sql.DB, productID int64) ([]models.SerialUnit, error) {
	query := `
		SELECT ` + serialColumns + `
		FROM serial_units
		WHERE product_id = $1 AND status = $2
		ORDER BY serial_number`

	rows, err := db.QueryContext(ctx, query, productID, models.SerialStatusAvailable)
	if err != nil {
		return nil, fmt.Errorf("list available serial units: %w", err)
	}
	defer rows.Close()

	var units []models.SerialUnit
	for rows.Next() {
		var unit models.SerialUnit
		if err := scanSerial(rows, &unit); err != nil {
			return nil, fmt.Errorf("scan serial unit: %w", err)
		}
		units = append(units, unit)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return units, nil
}

// MarkSold flips one unit available -> sold as a single conditional write.
// Zero affected rows means another submission claimed the unit (or the
// serial does not exist), and the enclosing transaction must abort.
func MarkSold(ctx context.Context, tx *sql.Tx, serialNumber string, orderID int64, soldPrice decimal.Decimal, notes string) error {
	result, err := tx.ExecContext(ctx,
		`UPDATE serial_units
		 SET status = $1,
		     sold_order_id = $2,
		     sold_price = $3,
		     sold_at = NOW(),
		     notes = CASE WHEN $4 <> '' THEN $4 ELSE notes END,
		     updated_at = NOW()
		 WHERE serial_number = $5
		   AND status = $6`,
		models.SerialStatusSold, orderID, soldPrice, notes, serialNumber, models.SerialStatusAvailable)
	if err != nil {
		return fmt.Errorf("mark serial sold: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		var exists bool
		err := tx.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM serial_units WHERE serial_number = $1)`,
			serialNumber).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check serial exists: %w", err)
		}
		if !exists {
			return database.ErrSerialNotFound
		}
		return &database.SerialAlreadySoldError{SerialNumber: serialNumber}
	}

	return nil
}
