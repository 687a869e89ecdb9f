package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/leafpress/go-bookstore/internal/database"
	"github.com/leafpress/go-bookstore/internal/models"
)

type PromotionInput struct {
	Code          string
	Type          models.PromotionType
	Value         decimal.Decimal
	MinOrderValue decimal.Decimal
	Active        bool
	ExpiresAt     *time.Time
}

func CreatePromotion(ctx context.Context, db *sql.DB, in PromotionInput) (*models.Promotion, error) {
	promo := &models.Promotion{}

	query := `
		INSERT INTO promotions (code, type, value, min_order_value, active, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING id, code, type, value, min_order_value, active, expires_at, created_at, updated_at`

	err := db.QueryRowContext(ctx, query,
		strings.ToUpper(in.Code), in.Type, in.Value, in.MinOrderValue, in.Active, in.ExpiresAt).Scan(
		&promo.ID,
		&promo.Code,
		&promo.Type,
		&promo.Value,
		&promo.MinOrderValue,
		&promo.Active,
		&promo.ExpiresAt,
		&promo.CreatedAt,
		&promo.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create promotion: %w", err)
	}

	return promo, nil
}

func UpdatePromotion(ctx context.Context, db *sql.DB, id int64, in PromotionInput) (*models.Promotion, error) {
	promo := &models.Promotion{}

	query := `
		UPDATE promotions
		SET code = $1, type = $2, value = $3, min_order_value = $4, active = $5,
		    expires_at = $6, updated_at = NOW()
		WHERE id = $7
		RETURNING id, code, type, value, min_order_value, active, expires_at, created_at, updated_at`

	err := db.QueryRowContext(ctx, query,
		strings.ToUpper(in.Code), in.Type, in.Value, in.MinOrderValue, in.Active, in.ExpiresAt, id).Scan(
		&promo.ID,
		&promo.Code,
		&promo.Type,
		&promo.Value,
		&promo.MinOrderValue,
		&promo.Active,
		&promo.ExpiresAt,
		&promo.CreatedAt,
		&promo.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrPromotionNotFound
		}
		return nil, fmt.Errorf("update promotion: %w", err)
	}

	return promo, nil
}

func DeletePromotion(ctx context.Context, db *sql.DB, id int64) error {
	result, err := db.ExecContext(ctx, `DELETE FROM promotions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete promotion: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return database.ErrPromotionNotFound
	}

	return nil
}

func GetPromotionByCode(ctx context.Context, db *sql.DB, code string) (*models.Promotion, error) {
	promo := &models.Promotion{}

	query := `
		SELECT id, code, type, value, min_order_value, active, expires_at, created_at, updated_at
		FROM promotions
		WHERE code = $1`

	err := db.QueryRowContext(ctx, query, strings.ToUpper(code)).Scan(
		&promo.ID,
		&promo.Code,
		&promo.Type,
		&promo.Value,
		&promo.MinOrderValue,
		&promo.Active,
		&promo.ExpiresAt,
		&promo.CreatedAt,
		&promo.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrPromotionNotFound
		}
		return nil, fmt.Errorf("get promotion: %w", err)
	}

	return promo, nil
}

func ListPromotions(ctx context.Context, db *sql.DB) ([]models.Promotion, error) {
	query := `
		SELECT id, code, type, value, min_order_value, active, expires_at, created_at, updated_at
		FROM promotions
		ORDER BY created_at DESC`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list promotions: %w", err)
	}
	defer rows.Close()

	var promos []models.Promotion
	for rows.Next() {
		var promo models.Promotion
		err := rows.Scan(
			&promo.ID,
			&promo.Code,
			&promo.Type,
			&promo.Value,
			&promo.MinOrderValue,
			&promo.Active,
			&promo.ExpiresAt,
			&promo.CreatedAt,
			&promo.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan promotion: %w", err)
		}
		promos = append(promos, promo)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return promos, nil
}

// ComputeDiscount validates a promotion against the current subtotal and
// returns the discount it grants. Percent promotions take a share of the
// subtotal; flat promotions are clamped so the discount never exceeds it.
func ComputeDiscount(promo *models.Promotion, subtotal decimal.Decimal, now time.Time) (decimal.Decimal, error) {
	if !promo.Active {
		return decimal.Zero, database.ErrPromotionInactive
	}
	if promo.ExpiresAt != nil && now.After(*promo.ExpiresAt) {
		return decimal.Zero, database.ErrPromotionExpired
	}
	if subtotal.LessThan(promo.MinOrderValue) {
		return decimal.Zero, database.ErrPromotionMinNotMet
	}

	var discount decimal.Decimal
	switch promo.Type {
	case models.PromotionPercent:
		discount = subtotal.Mul(promo.Value).Div(decimal.NewFromInt(100))
	case models.PromotionFlat:
		discount = promo.Value
	default:
		return decimal.Zero, fmt.Errorf("unknown promotion type %q", promo.Type)
	}

	if discount.GreaterThan(subtotal) {
		discount = subtotal
	}
	if discount.IsNegative() {
		discount = decimal.Zero
	}

	return discount.Round(2), nil
}
