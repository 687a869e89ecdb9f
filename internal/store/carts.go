package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/leafpress/go-bookstore/internal/database"
	"github.com/leafpress/go-bookstore/internal/models"
)

func GetCart(ctx context.Context, db *sql.DB, userID int64) ([]models.CartItem, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT book_id, quantity FROM cart_items WHERE user_id = $1 ORDER BY book_id`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}
	defer rows.Close()

	var items []models.CartItem
	for rows.Next() {
		var item models.CartItem
		if err := rows.Scan(&item.BookID, &item.Quantity); err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return items, nil
}

// ReplaceCart overwrites the server-side cart snapshot with the client's.
func ReplaceCart(ctx context.Context, db *sql.DB, userID int64, items []models.CartItem) error {
	return database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM cart_items WHERE user_id = $1`, userID); err != nil {
			return fmt.Errorf("clear cart: %w", err)
		}

		for _, item := range items {
			if item.Quantity <= 0 {
				continue
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO cart_items (user_id, book_id, quantity)
				 VALUES ($1, $2, $3)
				 ON CONFLICT (user_id, book_id) DO UPDATE SET quantity = EXCLUDED.quantity`,
				userID, item.BookID, item.Quantity); err != nil {
				return fmt.Errorf("insert cart item: %w", err)
			}
		}

		return nil
	})
}

// MergeCart unions a client-side cart into the server snapshot at login.
// Union is by book id, quantity resolves to the larger of the two sides.
func MergeCart(ctx context.Context, db *sql.DB, userID int64, items []models.CartItem) ([]models.CartItem, error) {
	err := database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		for _, item := range items {
			if item.Quantity <= 0 {
				continue
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO cart_items (user_id, book_id, quantity)
				 VALUES ($1, $2, $3)
				 ON CONFLICT (user_id, book_id)
				 DO UPDATE SET quantity = GREATEST(cart_items.quantity, EXCLUDED.quantity)`,
				userID, item.BookID, item.Quantity); err != nil {
				return fmt.Errorf("merge cart item: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return GetCart(ctx, db, userID)
}

func ClearCart(ctx context.Context, db *sql.DB, userID int64) error {
	if _, err := db.ExecContext(ctx,
		`DELETE FROM cart_items WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

func AddToWishlist(ctx context.Context, db *sql.DB, userID, bookID int64) error {
	result, err := db.ExecContext(ctx,
		`INSERT INTO wishlist_items (user_id, book_id, added_at)
		 SELECT $1, id, NOW() FROM books WHERE id = $2
		 ON CONFLICT (user_id, book_id) DO NOTHING`,
		userID, bookID)
	if err != nil {
		return fmt.Errorf("add to wishlist: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		// Either the book does not exist or it is already wishlisted.
		var exists bool
		if err := db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM books WHERE id = $1)`, bookID).Scan(&exists); err != nil {
			return fmt.Errorf("check book exists: %w", err)
		}
		if !exists {
			return database.ErrBookNotFound
		}
	}

	return nil
}

func RemoveFromWishlist(ctx context.Context, db *sql.DB, userID, bookID int64) error {
	if _, err := db.ExecContext(ctx,
		`DELETE FROM wishlist_items WHERE user_id = $1 AND book_id = $2`,
		userID, bookID); err != nil {
		return fmt.Errorf("remove from wishlist: %w", err)
	}
	return nil
}

func GetWishlist(ctx context.Context, db *sql.DB, userID int64) ([]models.WishlistItem, error) {
	query := `
		SELECT w.book_id, b.title, b.author, b.price, w.added_at
		FROM wishlist_items w
		JOIN books b ON b.id = w.book_id
		WHERE w.user_id = $1
		ORDER BY w.added_at DESC`

	rows, err := db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("get wishlist: %w", err)
	}
	defer rows.Close()

	var items []models.WishlistItem
	for rows.Next() {
		var item models.WishlistItem
		if err := rows.Scan(&item.BookID, &item.Title, &item.Author, &item.Price, &item.AddedAt); err != nil {
			return nil, fmt.Errorf("scan wishlist item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return items, nil
}
