package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/leafpress/go-bookstore/internal/database"
	"github.com/leafpress/go-bookstore/internal/models"
)

const bookColumns = `id, title, author, description, isbn, category, cover_image_url,
		price, stock, units_sold, rating, num_reviews, created_at, updated_at, version`

func scanBook(row interface{ Scan(...interface{}) error }, b *models.Book) error {
	return row.Scan(
		&b.ID,
		&b.Title,
		&b.Author,
		&b.Description,
		&b.ISBN,
		&b.Category,
		&b.CoverImageURL,
		&b.Price,
		&b.Stock,
		&b.UnitsSold,
		&b.Rating,
		&b.NumReviews,
		&b.CreatedAt,
		&b.UpdatedAt,
		&b.Version,
	)
}

type BookInput struct {
	Title         string
	Author        string
	Description   string
	ISBN          string
	Category      string
	CoverImageURL string
	Price         decimal.Decimal
	Stock         int
}

func CreateBook(ctx context.Context, db *sql.DB, in BookInput) (*models.Book, error) {
	book := &models.Book{}

	query := `
		INSERT INTO books (title, author, description, isbn, category, cover_image_url,
			price, stock, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW(), 1)
		RETURNING ` + bookColumns

	row := db.QueryRowContext(ctx, query,
		in.Title, in.Author, in.Description, in.ISBN, in.Category, in.CoverImageURL,
		in.Price, in.Stock)
	if err := scanBook(row, book); err != nil {
		return nil, fmt.Errorf("create book: %w", err)
	}

	return book, nil
}

func UpdateBook(ctx context.Context, db *sql.DB, id int64, in BookInput) (*models.Book, error) {
	book := &models.Book{}

	query := `
		UPDATE books
		SET title = $1, author = $2, description = $3, isbn = $4, category = $5,
		    cover_image_url = $6, price = $7, stock = $8,
		    updated_at = NOW(), version = version + 1
		WHERE id = $9
		RETURNING ` + bookColumns

	row := db.QueryRowContext(ctx, query,
		in.Title, in.Author, in.Description, in.ISBN, in.Category, in.CoverImageURL,
		in.Price, in.Stock, id)
	if err := scanBook(row, book); err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrBookNotFound
		}
		return nil, fmt.Errorf("update book: %w", err)
	}

	return book, nil
}

func DeleteBook(ctx context.Context, db *sql.DB, id int64) error {
	result, err := db.ExecContext(ctx, `DELETE FROM books WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete book: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return database.ErrBookNotFound
	}

	return nil
}

func GetBook(ctx context.Context, db *sql.DB, id int64) (*models.Book, error) {
	book := &models.Book{}

	query := `SELECT ` + bookColumns + ` FROM books WHERE id = $1`

	if err := scanBook(db.QueryRowContext(ctx, query, id), book); err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrBookNotFound
		}
		return nil, fmt.Errorf("get book: %w", err)
	}

	return book, nil
}

type BookFilter struct {
	Category string
	Keyword  string
}

func ListBooks(ctx context.Context, db *sql.DB, filter BookFilter, page, pageSize int) (*OffsetPage, error) {
	where := ` WHERE 1=1`
	args := []interface{}{}

	if filter.Category != "" {
		args = append(args, filter.Category)
		where += fmt.Sprintf(" AND category = $%d", len(args))
	}
	if filter.Keyword != "" {
		args = append(args, "%"+filter.Keyword+"%")
		where += fmt.Sprintf(" AND (title ILIKE $%d OR author ILIKE $%d)", len(args), len(args))
	}

	var total int64
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM books`+where, args...).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("count books: %w", err)
	}

	offset := (page - 1) * pageSize
	args = append(args, pageSize, offset)
	query := `SELECT ` + bookColumns + ` FROM books` + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	defer rows.Close()

	var books []models.Book
	for rows.Next() {
		var book models.Book
		if err := scanBook(rows, &book); err != nil {
			return nil, fmt.Errorf("scan book: %w", err)
		}
		books = append(books, book)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	totalPages := int(total) / pageSize
	if int(total)%pageSize > 0 {
		totalPages++
	}

	return &OffsetPage{
		Items:      books,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}, nil
}

// SearchBooks is the retrieval step for the shopping assistant. It returns at
// most limit books whose title, author, or category matches the keyword.
func SearchBooks(ctx context.Context, db *sql.DB, keyword string, limit int) ([]models.Book, error) {
	query := `
		SELECT ` + bookColumns + `
		FROM books
		WHERE title ILIKE $1 OR author ILIKE $1 OR category ILIKE $1
		ORDER BY units_sold DESC, rating DESC
		LIMIT $2`

	rows, err := db.QueryContext(ctx, query, "%"+keyword+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("search books: %w", err)
	}
	defer rows.Close()

	var books []models.Book
	for rows.Next() {
		var book models.Book
		if err := scanBook(rows, &book); err != nil {
			return nil, fmt.Errorf("scan book: %w", err)
		}
		books = append(books, book)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return books, nil
}

// DecrementStock takes stock for one purchased line. The stock floor check is
// part of the UPDATE itself, so a concurrent checkout can never drive stock
// negative regardless of interleaving.
func DecrementStock(ctx context.Context, tx *sql.Tx, bookID int64, quantity int) error {
	result, err := tx.ExecContext(ctx,
		`UPDATE books
		 SET stock = stock - $1,
		     units_sold = units_sold + $1,
		     updated_at = NOW()
		 WHERE id = $2
		   AND stock >= $1`,
		quantity, bookID)
	if err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return database.ErrInsufficientStock
	}

	return nil
}

// RestoreStock reverses DecrementStock when a pending order is cancelled.
func RestoreStock(ctx context.Context, tx *sql.Tx, bookID int64, quantity int) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE books
		 SET stock = stock + $1,
		     units_sold = GREATEST(units_sold - $1, 0),
		     updated_at = NOW()
		 WHERE id = $2`,
		quantity, bookID)
	if err != nil {
		return fmt.Errorf("restore stock: %w", err)
	}

	return nil
}
