package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/leafpress/go-bookstore/internal/models"
)

type SalesSummary struct {
	TotalOrders       int64           `json:"total_orders"`
	TotalRevenue      decimal.Decimal `json:"total_revenue"`
	TotalUnits        int64           `json:"total_units"`
	AverageOrderValue decimal.Decimal `json:"average_order_value"`
}

type DailySales struct {
	Day     time.Time       `json:"day"`
	Orders  int64           `json:"orders"`
	Revenue decimal.Decimal `json:"revenue"`
}

type CategorySales struct {
	Category string          `json:"category"`
	Units    int64           `json:"units"`
	Revenue  decimal.Decimal `json:"revenue"`
}

// GetSalesSummary aggregates over all non-cancelled orders.
func GetSalesSummary(ctx context.Context, db *sql.DB) (*SalesSummary, error) {
	summary := &SalesSummary{}

	query := `
		SELECT COUNT(*),
		       COALESCE(SUM(o.total_amount), 0),
		       COALESCE((SELECT SUM(oi.quantity)
		                 FROM order_items oi
		                 JOIN orders o2 ON o2.id = oi.order_id
		                 WHERE o2.status <> $1), 0),
		       COALESCE(ROUND(AVG(o.total_amount), 2), 0)
		FROM orders o
		WHERE o.status <> $1`

	err := db.QueryRowContext(ctx, query, models.OrderStatusCancelled).Scan(
		&summary.TotalOrders,
		&summary.TotalRevenue,
		&summary.TotalUnits,
		&summary.AverageOrderValue,
	)
	if err != nil {
		return nil, fmt.Errorf("sales summary: %w", err)
	}

	return summary, nil
}

func GetDailySales(ctx context.Context, db *sql.DB, days int) ([]DailySales, error) {
	query := `
		SELECT DATE_TRUNC('day', created_at) AS day,
		       COUNT(*),
		       COALESCE(SUM(total_amount), 0)
		FROM orders
		WHERE status <> $1
		  AND created_at >= NOW() - make_interval(days => $2)
		GROUP BY day
		ORDER BY day`

	rows, err := db.QueryContext(ctx, query, models.OrderStatusCancelled, days)
	if err != nil {
		return nil, fmt.Errorf("daily sales: %w", err)
	}
	defer rows.Close()

	var series []DailySales
	for rows.Next() {
		var d DailySales
		if err := rows.Scan(&d.Day, &d.Orders, &d.Revenue); err != nil {
			return nil, fmt.Errorf("scan daily sales: %w", err)
		}
		series = append(series, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return series, nil
}

// GetCategorySales joins order lines back to the live catalog for the
// category. Lines whose book has since been deleted fall under "unknown".
func GetCategorySales(ctx context.Context, db *sql.DB) ([]CategorySales, error) {
	query := `
		SELECT COALESCE(b.category, 'unknown'),
		       SUM(oi.quantity),
		       COALESCE(SUM(oi.line_total), 0)
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		LEFT JOIN books b ON b.id = oi.book_id
		WHERE o.status <> $1
		GROUP BY COALESCE(b.category, 'unknown')
		ORDER BY SUM(oi.line_total) DESC`

	rows, err := db.QueryContext(ctx, query, models.OrderStatusCancelled)
	if err != nil {
		return nil, fmt.Errorf("category sales: %w", err)
	}
	defer rows.Close()

	var breakdown []CategorySales
	for rows.Next() {
		var c CategorySales
		if err := rows.Scan(&c.Category, &c.Units, &c.Revenue); err != nil {
			return nil, fmt.Errorf("scan category sales: %w", err)
		}
		breakdown = append(breakdown, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return breakdown, nil
}
