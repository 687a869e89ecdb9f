package integration

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/leafpress/go-bookstore/internal/database"
	"github.com/leafpress/go-bookstore/internal/models"
	"github.com/leafpress/go-bookstore/internal/store"
)

func TestBookCRUD(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	book, err := store.CreateBook(ctx, db, store.BookInput{
		Title:       "The Left Hand of Darkness",
		Author:      "Ursula K. Le Guin",
		Description: "A novel of Winter",
		Category:    "sci-fi",
		Price:       decimal.RequireFromString("14.50"),
		Stock:       12,
	})
	if err != nil {
		t.Fatalf("Create book: %v", err)
	}
	if book.ID == 0 {
		t.Error("Book ID should not be 0")
	}
	if !book.Rating.IsZero() || book.NumReviews != 0 {
		t.Error("New book should start without any rating")
	}

	updated, err := store.UpdateBook(ctx, db, book.ID, store.BookInput{
		Title:       book.Title,
		Author:      book.Author,
		Description: book.Description,
		Category:    book.Category,
		Price:       decimal.RequireFromString("11.99"),
		Stock:       8,
	})
	if err != nil {
		t.Fatalf("Update book: %v", err)
	}
	if !updated.Price.Equal(decimal.RequireFromString("11.99")) {
		t.Errorf("Expected price 11.99, got %s", updated.Price)
	}
	if updated.Stock != 8 {
		t.Errorf("Expected stock 8, got %d", updated.Stock)
	}

	if err := store.DeleteBook(ctx, db, book.ID); err != nil {
		t.Fatalf("Delete book: %v", err)
	}

	_, err = store.GetBook(ctx, db, book.ID)
	if !errors.Is(err, database.ErrBookNotFound) {
		t.Errorf("Expected not found error, got: %v", err)
	}
}

func TestListBooksFiltering(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	createTestBook(t, db, "Dune", 12, 10)
	createTestBook(t, db, "Dune Messiah", 13, 10)
	history, err := store.CreateBook(ctx, db, store.BookInput{
		Title:    "SPQR",
		Author:   "Mary Beard",
		Category: "history",
		Price:    decimal.NewFromInt(20),
		Stock:    5,
	})
	if err != nil {
		t.Fatalf("Create book: %v", err)
	}

	page, err := store.ListBooks(ctx, db, store.BookFilter{Keyword: "dune"}, 1, 10)
	if err != nil {
		t.Fatalf("List books: %v", err)
	}
	if page.Total != 2 {
		t.Errorf("Expected 2 keyword matches, got %d", page.Total)
	}

	page, err = store.ListBooks(ctx, db, store.BookFilter{Category: "history"}, 1, 10)
	if err != nil {
		t.Fatalf("List books: %v", err)
	}
	if page.Total != 1 {
		t.Fatalf("Expected 1 category match, got %d", page.Total)
	}
	books, ok := page.Items.([]models.Book)
	if !ok {
		t.Fatalf("Expected []models.Book items, got %T", page.Items)
	}
	if books[0].ID != history.ID {
		t.Errorf("Expected book %d, got %d", history.ID, books[0].ID)
	}
}

func TestConcurrentStockDecrement(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	book := createTestBook(t, db, "Scarce Book", 10, 10)

	concurrency := 20
	var wg sync.WaitGroup
	results := make(chan error, concurrency)

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			err := database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
				return store.DecrementStock(ctx, tx, book.ID, 1)
			})
			results <- err
		}()
	}

	wg.Wait()
	close(results)

	successCount := 0
	for err := range results {
		switch {
		case err == nil:
			successCount++
		case errors.Is(err, database.ErrInsufficientStock):
		default:
			t.Errorf("Unexpected error: %v", err)
		}
	}

	if successCount != 10 {
		t.Errorf("Expected exactly 10 successful decrements, got %d", successCount)
	}

	bookAfter, err := store.GetBook(ctx, db, book.ID)
	if err != nil {
		t.Fatalf("Get book: %v", err)
	}
	if bookAfter.Stock != 0 {
		t.Errorf("Expected final stock 0, got %d", bookAfter.Stock)
	}
	if bookAfter.UnitsSold != 10 {
		t.Errorf("Expected units sold 10, got %d", bookAfter.UnitsSold)
	}
}

func TestImportBooksCSV(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	csvData := strings.Join([]string{
		"title,author,description,category,price,stock",
		"Dune,Frank Herbert,Desert planet,sci-fi,12.99,30",
		",Missing Title,whoops,sci-fi,9.99,5",
		"Hyperion,Dan Simmons,Pilgrimage,sci-fi,not-a-price,5",
		"SPQR,Mary Beard,Rome,history,24.00,10",
	}, "\n")

	result, err := store.ImportBooksCSV(ctx, db, strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("Import CSV: %v", err)
	}

	if result.Imported != 2 {
		t.Errorf("Expected 2 imported rows, got %d", result.Imported)
	}
	if result.Skipped != 2 {
		t.Errorf("Expected 2 skipped rows, got %d", result.Skipped)
	}
	if len(result.Errors) != 2 {
		t.Errorf("Expected 2 row errors, got %d: %v", len(result.Errors), result.Errors)
	}

	page, err := store.ListBooks(ctx, db, store.BookFilter{}, 1, 10)
	if err != nil {
		t.Fatalf("List books: %v", err)
	}
	if page.Total != 2 {
		t.Errorf("Expected 2 books in catalog, got %d", page.Total)
	}
}
