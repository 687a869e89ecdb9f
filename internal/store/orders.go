package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/leafpress/go-bookstore/internal/database"
	"github.com/leafpress/go-bookstore/internal/models"
)

type PlaceOrderRequest struct {
	UserID          int64
	Items           []OrderItemRequest
	PromotionCode   string
	PaymentID       string
	ShippingAddress string
}

type OrderItemRequest struct {
	BookID   int64
	Quantity int
}

func generateOrderNumber() string {
	return "ORD-" + strings.ToUpper(uuid.NewString()[:8])
}

// PlaceOrder converts a priced cart into a persisted order. Prices and stock
// are re-read inside the transaction; client-supplied prices are never
// trusted. Either every line decrements stock and the order is written, or
// nothing is.
func PlaceOrder(ctx context.Context, db *sql.DB, req PlaceOrderRequest) (*models.Order, error) {
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("order has no items")
	}

	var order *models.Order

	err := database.WithRetry(ctx, db, database.TxOptions{
		IsolationLevel: sql.LevelSerializable,
		MaxRetries:     3,
	}, func(tx *sql.Tx) error {
		subtotal := decimal.Zero

		type lineSnapshot struct {
			title string
			price decimal.Decimal
		}
		snapshots := make(map[int64]lineSnapshot)

		for _, item := range req.Items {
			if item.Quantity <= 0 {
				return fmt.Errorf("invalid quantity %d for book %d", item.Quantity, item.BookID)
			}

			var title string
			var price decimal.Decimal
			var stock int

			err := tx.QueryRowContext(ctx,
				`SELECT title, price, stock
				 FROM books
				 WHERE id = $1
				 FOR UPDATE NOWAIT`,
				item.BookID).Scan(&title, &price, &stock)
			if err != nil {
				if err == sql.ErrNoRows {
					return database.ErrBookNotFound
				}
				return fmt.Errorf("lock book %d: %w", item.BookID, err)
			}

			if stock < item.Quantity {
				return database.ErrInsufficientStock
			}

			snapshots[item.BookID] = lineSnapshot{title: title, price: price}
			subtotal = subtotal.Add(price.Mul(decimal.NewFromInt(int64(item.Quantity))))
		}

		discount := decimal.Zero
		var promoCode *string
		if req.PromotionCode != "" {
			code := strings.ToUpper(req.PromotionCode)
			promo := &models.Promotion{}
			err := tx.QueryRowContext(ctx,
				`SELECT id, code, type, value, min_order_value, active, expires_at
				 FROM promotions
				 WHERE code = $1`,
				code).Scan(
				&promo.ID,
				&promo.Code,
				&promo.Type,
				&promo.Value,
				&promo.MinOrderValue,
				&promo.Active,
				&promo.ExpiresAt,
			)
			if err != nil {
				if err == sql.ErrNoRows {
					return database.ErrPromotionNotFound
				}
				return fmt.Errorf("get promotion: %w", err)
			}

			discount, err = ComputeDiscount(promo, subtotal, time.Now())
			if err != nil {
				return err
			}
			promoCode = &code
		}

		total := subtotal.Sub(discount).Round(2)

		orderNumber := generateOrderNumber()
		var orderID int64
		err := tx.QueryRowContext(ctx,
			`INSERT INTO orders (user_id, order_number, status, subtotal, discount, total_amount,
				promotion_code, payment_id, shipping_address, created_at, updated_at, version)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW(), 1)
			 RETURNING id`,
			req.UserID, orderNumber, models.OrderStatusPending,
			subtotal.Round(2), discount, total,
			promoCode, req.PaymentID, req.ShippingAddress).Scan(&orderID)
		if err != nil {
			if database.IsUniqueViolation(err) {
				return database.ErrPaymentAlreadyUsed
			}
			return fmt.Errorf("create order: %w", err)
		}

		for _, item := range req.Items {
			snap := snapshots[item.BookID]
			lineTotal := snap.price.Mul(decimal.NewFromInt(int64(item.Quantity)))

			_, err = tx.ExecContext(ctx,
				`INSERT INTO order_items (order_id, book_id, title, quantity, unit_price, line_total, created_at)
				 VALUES ($1, $2, $3, $4, $5, $6, NOW())`,
				orderID, item.BookID, snap.title, item.Quantity, snap.price, lineTotal)
			if err != nil {
				return fmt.Errorf("create order item: %w", err)
			}
		}

		for _, item := range req.Items {
			if err := DecrementStock(ctx, tx, item.BookID, item.Quantity); err != nil {
				return err
			}
		}

		order = &models.Order{ID: orderID}
		err = tx.QueryRowContext(ctx,
			`SELECT order_number, user_id, status, subtotal, discount, total_amount,
				promotion_code, payment_id, shipping_address, created_at, updated_at, version
			 FROM orders WHERE id = $1`,
			orderID).Scan(
			&order.OrderNumber,
			&order.UserID,
			&order.Status,
			&order.Subtotal,
			&order.Discount,
			&order.TotalAmount,
			&order.PromotionCode,
			&order.PaymentID,
			&order.ShippingAddress,
			&order.CreatedAt,
			&order.UpdatedAt,
			&order.Version,
		)
		if err != nil {
			return fmt.Errorf("fetch created order: %w", err)
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	order.Items, err = getOrderItems(ctx, db, order.ID)
	if err != nil {
		return nil, err
	}

	return order, nil
}

// CancelOrder is owner-only and permitted only while the order is pending.
// Stock and units-sold counters are restored line by line.
func CancelOrder(ctx context.Context, db *sql.DB, orderID, userID int64) (*models.Order, error) {
	var order *models.Order

	err := database.WithRetry(ctx, db, database.TxOptions{
		IsolationLevel: sql.LevelSerializable,
		MaxRetries:     3,
	}, func(tx *sql.Tx) error {
		var ownerID int64
		var status string
		err := tx.QueryRowContext(ctx,
			`SELECT user_id, status FROM orders WHERE id = $1 FOR UPDATE`,
			orderID).Scan(&ownerID, &status)
		if err != nil {
			if err == sql.ErrNoRows {
				return database.ErrOrderNotFound
			}
			return fmt.Errorf("lock order: %w", err)
		}

		if ownerID != userID {
			return database.ErrOrderNotFound
		}
		if status != models.OrderStatusPending {
			return database.ErrOrderNotCancellable
		}

		rows, err := tx.QueryContext(ctx,
			`SELECT book_id, quantity FROM order_items WHERE order_id = $1`,
			orderID)
		if err != nil {
			return fmt.Errorf("get order items: %w", err)
		}

		type line struct {
			bookID int64
			qty    int
		}
		var lines []line
		for rows.Next() {
			var l line
			if err := rows.Scan(&l.bookID, &l.qty); err != nil {
				rows.Close()
				return fmt.Errorf("scan order item: %w", err)
			}
			lines = append(lines, l)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return fmt.Errorf("rows error: %w", err)
		}
		rows.Close()

		for _, l := range lines {
			if err := RestoreStock(ctx, tx, l.bookID, l.qty); err != nil {
				return err
			}
		}

		order = &models.Order{ID: orderID}
		err = tx.QueryRowContext(ctx,
			`UPDATE orders
			 SET status = $1, updated_at = NOW(), version = version + 1
			 WHERE id = $2
			 RETURNING order_number, user_id, status, subtotal, discount, total_amount,
				promotion_code, payment_id, shipping_address, created_at, updated_at, version`,
			models.OrderStatusCancelled, orderID).Scan(
			&order.OrderNumber,
			&order.UserID,
			&order.Status,
			&order.Subtotal,
			&order.Discount,
			&order.TotalAmount,
			&order.PromotionCode,
			&order.PaymentID,
			&order.ShippingAddress,
			&order.CreatedAt,
			&order.UpdatedAt,
			&order.Version,
		)
		if err != nil {
			return fmt.Errorf("cancel order: %w", err)
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	order.Items, err = getOrderItems(ctx, db, order.ID)
	if err != nil {
		return nil, err
	}

	return order, nil
}

// nextStatus holds the only legal forward transition per status. Cancellation
// goes through CancelOrder, never through here.
var nextStatus = map[string]string{
	models.OrderStatusPending:    models.OrderStatusProcessing,
	models.OrderStatusProcessing: models.OrderStatusShipped,
	models.OrderStatusShipped:    models.OrderStatusDelivered,
}

func UpdateOrderStatus(ctx context.Context, db *sql.DB, orderID int64, status string) (*models.Order, error) {
	var order *models.Order

	err := database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		var current string
		err := tx.QueryRowContext(ctx,
			`SELECT status FROM orders WHERE id = $1 FOR UPDATE`,
			orderID).Scan(&current)
		if err != nil {
			if err == sql.ErrNoRows {
				return database.ErrOrderNotFound
			}
			return fmt.Errorf("lock order: %w", err)
		}

		if nextStatus[current] != status {
			return database.ErrInvalidTransition
		}

		order = &models.Order{ID: orderID}
		err = tx.QueryRowContext(ctx,
			`UPDATE orders
			 SET status = $1, updated_at = NOW(), version = version + 1
			 WHERE id = $2
			 RETURNING order_number, user_id, status, subtotal, discount, total_amount,
				promotion_code, payment_id, shipping_address, created_at, updated_at, version`,
			status, orderID).Scan(
			&order.OrderNumber,
			&order.UserID,
			&order.Status,
			&order.Subtotal,
			&order.Discount,
			&order.TotalAmount,
			&order.PromotionCode,
			&order.PaymentID,
			&order.ShippingAddress,
			&order.CreatedAt,
			&order.UpdatedAt,
			&order.Version,
		)
		if err != nil {
			return fmt.Errorf("update order status: %w", err)
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	return order, nil
}

func GetOrder(ctx context.Context, db *sql.DB, id int64) (*models.Order, error) {
	order := &models.Order{}

	query := `
		SELECT id, user_id, order_number, status, subtotal, discount, total_amount,
			promotion_code, payment_id, shipping_address, created_at, updated_at, version
		FROM orders
		WHERE id = $1`

	err := db.QueryRowContext(ctx, query, id).Scan(
		&order.ID,
		&order.UserID,
		&order.OrderNumber,
		&order.Status,
		&order.Subtotal,
		&order.Discount,
		&order.TotalAmount,
		&order.PromotionCode,
		&order.PaymentID,
		&order.ShippingAddress,
		&order.CreatedAt,
		&order.UpdatedAt,
		&order.Version,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	order.Items, err = getOrderItems(ctx, db, id)
	if err != nil {
		return nil, err
	}

	return order, nil
}

func getOrderItems(ctx context.Context, db *sql.DB, orderID int64) ([]models.OrderItem, error) {
	query := `
		SELECT id, order_id, book_id, title, quantity, unit_price, line_total, created_at
		FROM order_items
		WHERE order_id = $1`

	rows, err := db.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order items: %w", err)
	}
	defer rows.Close()

	var items []models.OrderItem
	for rows.Next() {
		var item models.OrderItem
		err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.BookID,
			&item.Title,
			&item.Quantity,
			&item.UnitPrice,
			&item.LineTotal,
			&item.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return items, nil
}

func ListOrdersCursor(ctx context.Context, db *sql.DB, userID int64, cursor string, limit int) (*CursorPage, error) {
	cursorData, err := DecodeCursor(cursor)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}

	query := `
		SELECT id, user_id, order_number, status, subtotal, discount, total_amount,
			promotion_code, payment_id, shipping_address, created_at, updated_at, version
		FROM orders
		WHERE user_id = $1
		  AND (created_at, id) < ($2, $3)
		ORDER BY created_at DESC, id DESC
		LIMIT $4`

	rows, err := db.QueryContext(ctx, query, userID, cursorData.CreatedAt, cursorData.ID, limit+1)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		var order models.Order
		err := rows.Scan(
			&order.ID,
			&order.UserID,
			&order.OrderNumber,
			&order.Status,
			&order.Subtotal,
			&order.Discount,
			&order.TotalAmount,
			&order.PromotionCode,
			&order.PaymentID,
			&order.ShippingAddress,
			&order.CreatedAt,
			&order.UpdatedAt,
			&order.Version,
		)
		if err != nil {
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

// ListOrders is the admin view: every order, newest first, optionally
// filtered by status.
func ListOrders(ctx context.Context, db *sql.DB, status string, page, pageSize int) (*OffsetPage, error) {
	where := ""
	args := []interface{}{}
	if status != "" {
		args = append(args, status)
		where = " WHERE status = $1"
	}

	var total int64
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`+where, args...).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("count orders: %w", err)
	}

	offset := (page - 1) * pageSize
	args = append(args, pageSize, offset)
	query := `
		SELECT id, user_id, order_number, status, subtotal, discount, total_amount,
			promotion_code, payment_id, shipping_address, created_at, updated_at, version
		FROM orders` + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		var order models.Order
		err := rows.Scan(
			&order.ID,
			&order.UserID,
			&order.OrderNumber,
			&order.Status,
			&order.Subtotal,
			&order.Discount,
			&order.TotalAmount,
			&order.PromotionCode,
			&order.PaymentID,
			&order.ShippingAddress,
			&order.CreatedAt,
			&order.UpdatedAt,
			&order.Version,
		)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	totalPages := int(total) / pageSize
	if int(total)%pageSize > 0 {
		totalPages++
	}

	return &OffsetPage{
		Items:      orders,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}, nil
}
