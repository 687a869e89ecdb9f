package integration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/leafpress/go-bookstore/internal/database"
	"github.com/leafpress/go-bookstore/internal/models"
	"github.com/leafpress/go-bookstore/internal/store"
)

var userSeq int

func createTestUser(t *testing.T, db *sql.DB) *models.User {
	t.Helper()
	userSeq++
	user, err := store.CreateUser(context.Background(), db,
		fmt.Sprintf("test%d@example.com", userSeq), "Test User", "x", models.RoleCustomer)
	if err != nil {
		t.Fatalf("Create user: %v", err)
	}
	return user
}

func createTestBook(t *testing.T, db *sql.DB, title string, price int64, stock int) *models.Book {
	t.Helper()
	book, err := store.CreateBook(context.Background(), db, store.BookInput{
		Title:    title,
		Author:   "Test Author",
		Category: "fiction",
		Price:    decimal.NewFromInt(price),
		Stock:    stock,
	})
	if err != nil {
		t.Fatalf("Create book: %v", err)
	}
	return book
}

var paymentSeq int

func nextPaymentID() string {
	paymentSeq++
	return fmt.Sprintf("pi_test_%d", paymentSeq)
}

func TestPlaceOrder(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	user := createTestUser(t, db)
	book1 := createTestBook(t, db, "Order Book 1", 100, 50)
	book2 := createTestBook(t, db, "Order Book 2", 200, 30)

	order, err := store.PlaceOrder(ctx, db, store.PlaceOrderRequest{
		UserID: user.ID,
		Items: []store.OrderItemRequest{
			{BookID: book1.ID, Quantity: 5},
			{BookID: book2.ID, Quantity: 3},
		},
		PaymentID:       nextPaymentID(),
		ShippingAddress: "1 Test Street",
	})
	if err != nil {
		t.Fatalf("Place order: %v", err)
	}

	if order.ID == 0 {
		t.Error("Order ID should not be 0")
	}
	if order.Status != models.OrderStatusPending {
		t.Errorf("Expected status pending, got %s", order.Status)
	}

	expectedSubtotal := decimal.NewFromInt(100*5 + 200*3)
	if !order.Subtotal.Equal(expectedSubtotal) {
		t.Errorf("Expected subtotal %s, got %s", expectedSubtotal, order.Subtotal)
	}
	if !order.TotalAmount.Equal(order.Subtotal.Sub(order.Discount).Round(2)) {
		t.Errorf("total %s != round(subtotal - discount)", order.TotalAmount)
	}

	if len(order.Items) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(order.Items))
	}
	for _, item := range order.Items {
		if item.Title == "" {
			t.Error("Order item should snapshot the book title")
		}
	}

	book1After, err := store.GetBook(ctx, db, book1.ID)
	if err != nil {
		t.Fatalf("Get book 1: %v", err)
	}
	if book1After.Stock != 45 {
		t.Errorf("Expected book 1 stock 45, got %d", book1After.Stock)
	}
	if book1After.UnitsSold != 5 {
		t.Errorf("Expected book 1 units sold 5, got %d", book1After.UnitsSold)
	}

	book2After, err := store.GetBook(ctx, db, book2.ID)
	if err != nil {
		t.Fatalf("Get book 2: %v", err)
	}
	if book2After.Stock != 27 {
		t.Errorf("Expected book 2 stock 27, got %d", book2After.Stock)
	}
}

func TestPlaceOrderWithFlatPromotion(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	user := createTestUser(t, db)
	book1 := createTestBook(t, db, "Promo Book 1", 100, 10)
	book2 := createTestBook(t, db, "Promo Book 2", 50, 10)

	_, err := store.CreatePromotion(ctx, db, store.PromotionInput{
		Code:          "FLAT100",
		Type:          models.PromotionFlat,
		Value:         decimal.NewFromInt(100),
		MinOrderValue: decimal.NewFromInt(100),
		Active:        true,
	})
	if err != nil {
		t.Fatalf("Create promotion: %v", err)
	}

	order, err := store.PlaceOrder(ctx, db, store.PlaceOrderRequest{
		UserID: user.ID,
		Items: []store.OrderItemRequest{
			{BookID: book1.ID, Quantity: 2},
			{BookID: book2.ID, Quantity: 1},
		},
		PromotionCode:   "flat100",
		PaymentID:       nextPaymentID(),
		ShippingAddress: "1 Test Street",
	})
	if err != nil {
		t.Fatalf("Place order: %v", err)
	}

	if !order.Subtotal.Equal(decimal.NewFromInt(250)) {
		t.Errorf("Expected subtotal 250, got %s", order.Subtotal)
	}
	if !order.Discount.Equal(decimal.NewFromInt(100)) {
		t.Errorf("Expected discount 100, got %s", order.Discount)
	}
	if !order.TotalAmount.Equal(decimal.NewFromInt(150)) {
		t.Errorf("Expected total 150, got %s", order.TotalAmount)
	}
	if order.PromotionCode == nil || *order.PromotionCode != "FLAT100" {
		t.Errorf("Expected applied promotion FLAT100, got %v", order.PromotionCode)
	}
}

func TestPlaceOrderPromotionMinimumNotMet(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	user := createTestUser(t, db)
	book := createTestBook(t, db, "Cheap Book", 10, 10)

	_, err := store.CreatePromotion(ctx, db, store.PromotionInput{
		Code:          "BIGSPEND",
		Type:          models.PromotionFlat,
		Value:         decimal.NewFromInt(5),
		MinOrderValue: decimal.NewFromInt(100),
		Active:        true,
	})
	if err != nil {
		t.Fatalf("Create promotion: %v", err)
	}

	_, err = store.PlaceOrder(ctx, db, store.PlaceOrderRequest{
		UserID:          user.ID,
		Items:           []store.OrderItemRequest{{BookID: book.ID, Quantity: 1}},
		PromotionCode:   "BIGSPEND",
		PaymentID:       nextPaymentID(),
		ShippingAddress: "1 Test Street",
	})
	if !errors.Is(err, database.ErrPromotionMinNotMet) {
		t.Errorf("Expected promotion minimum error, got: %v", err)
	}

	bookAfter, err := store.GetBook(ctx, db, book.ID)
	if err != nil {
		t.Fatalf("Get book: %v", err)
	}
	if bookAfter.Stock != 10 {
		t.Errorf("Stock should remain unchanged at 10, got %d", bookAfter.Stock)
	}
}

func TestPlaceOrderInsufficientStock(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	user := createTestUser(t, db)
	book := createTestBook(t, db, "Low Stock Book", 100, 5)

	_, err := store.PlaceOrder(ctx, db, store.PlaceOrderRequest{
		UserID:          user.ID,
		Items:           []store.OrderItemRequest{{BookID: book.ID, Quantity: 10}},
		PaymentID:       nextPaymentID(),
		ShippingAddress: "1 Test Street",
	})
	if !errors.Is(err, database.ErrInsufficientStock) {
		t.Errorf("Expected insufficient stock error, got: %v", err)
	}

	bookAfter, err := store.GetBook(ctx, db, book.ID)
	if err != nil {
		t.Fatalf("Get book: %v", err)
	}
	if bookAfter.Stock != 5 {
		t.Errorf("Stock should remain unchanged at 5, got %d", bookAfter.Stock)
	}
	if bookAfter.UnitsSold != 0 {
		t.Errorf("Units sold should remain 0, got %d", bookAfter.UnitsSold)
	}
}

func TestPlaceOrderDuplicatePayment(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	user := createTestUser(t, db)
	book := createTestBook(t, db, "Dup Payment Book", 100, 10)
	paymentID := nextPaymentID()

	_, err := store.PlaceOrder(ctx, db, store.PlaceOrderRequest{
		UserID:          user.ID,
		Items:           []store.OrderItemRequest{{BookID: book.ID, Quantity: 1}},
		PaymentID:       paymentID,
		ShippingAddress: "1 Test Street",
	})
	if err != nil {
		t.Fatalf("Place first order: %v", err)
	}

	_, err = store.PlaceOrder(ctx, db, store.PlaceOrderRequest{
		UserID:          user.ID,
		Items:           []store.OrderItemRequest{{BookID: book.ID, Quantity: 1}},
		PaymentID:       paymentID,
		ShippingAddress: "1 Test Street",
	})
	if !errors.Is(err, database.ErrPaymentAlreadyUsed) {
		t.Errorf("Expected payment already used error, got: %v", err)
	}
}

func TestCancelOrderRestoresStock(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	user := createTestUser(t, db)
	book := createTestBook(t, db, "Cancel Book", 100, 20)

	order, err := store.PlaceOrder(ctx, db, store.PlaceOrderRequest{
		UserID:          user.ID,
		Items:           []store.OrderItemRequest{{BookID: book.ID, Quantity: 4}},
		PaymentID:       nextPaymentID(),
		ShippingAddress: "1 Test Street",
	})
	if err != nil {
		t.Fatalf("Place order: %v", err)
	}

	cancelled, err := store.CancelOrder(ctx, db, order.ID, user.ID)
	if err != nil {
		t.Fatalf("Cancel order: %v", err)
	}
	if cancelled.Status != models.OrderStatusCancelled {
		t.Errorf("Expected status cancelled, got %s", cancelled.Status)
	}

	bookAfter, err := store.GetBook(ctx, db, book.ID)
	if err != nil {
		t.Fatalf("Get book: %v", err)
	}
	if bookAfter.Stock != 20 {
		t.Errorf("Expected stock restored to 20, got %d", bookAfter.Stock)
	}
	if bookAfter.UnitsSold != 0 {
		t.Errorf("Expected units sold back to 0, got %d", bookAfter.UnitsSold)
	}
}

func TestCancelNonPendingOrderRejected(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	user := createTestUser(t, db)
	book := createTestBook(t, db, "Shipped Book", 100, 20)

	order, err := store.PlaceOrder(ctx, db, store.PlaceOrderRequest{
		UserID:          user.ID,
		Items:           []store.OrderItemRequest{{BookID: book.ID, Quantity: 2}},
		PaymentID:       nextPaymentID(),
		ShippingAddress: "1 Test Street",
	})
	if err != nil {
		t.Fatalf("Place order: %v", err)
	}

	if _, err := store.UpdateOrderStatus(ctx, db, order.ID, models.OrderStatusProcessing); err != nil {
		t.Fatalf("Update status: %v", err)
	}

	_, err = store.CancelOrder(ctx, db, order.ID, user.ID)
	if !errors.Is(err, database.ErrOrderNotCancellable) {
		t.Errorf("Expected not cancellable error, got: %v", err)
	}

	bookAfter, err := store.GetBook(ctx, db, book.ID)
	if err != nil {
		t.Fatalf("Get book: %v", err)
	}
	if bookAfter.Stock != 18 {
		t.Errorf("Stock should stay decremented at 18, got %d", bookAfter.Stock)
	}
}

func TestUpdateOrderStatusTransitions(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	user := createTestUser(t, db)
	book := createTestBook(t, db, "Status Book", 100, 20)

	order, err := store.PlaceOrder(ctx, db, store.PlaceOrderRequest{
		UserID:          user.ID,
		Items:           []store.OrderItemRequest{{BookID: book.ID, Quantity: 1}},
		PaymentID:       nextPaymentID(),
		ShippingAddress: "1 Test Street",
	})
	if err != nil {
		t.Fatalf("Place order: %v", err)
	}

	// Skipping a step is rejected.
	if _, err := store.UpdateOrderStatus(ctx, db, order.ID, models.OrderStatusShipped); !errors.Is(err, database.ErrInvalidTransition) {
		t.Errorf("Expected invalid transition error, got: %v", err)
	}

	for _, status := range []string{
		models.OrderStatusProcessing,
		models.OrderStatusShipped,
		models.OrderStatusDelivered,
	} {
		updated, err := store.UpdateOrderStatus(ctx, db, order.ID, status)
		if err != nil {
			t.Fatalf("Transition to %s: %v", status, err)
		}
		if updated.Status != status {
			t.Errorf("Expected status %s, got %s", status, updated.Status)
		}
	}

	// Delivered is terminal.
	if _, err := store.UpdateOrderStatus(ctx, db, order.ID, models.OrderStatusPending); !errors.Is(err, database.ErrInvalidTransition) {
		t.Errorf("Expected invalid transition error, got: %v", err)
	}
}

func TestConcurrentOrderPlacement(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	user := createTestUser(t, db)
	book := createTestBook(t, db, "Contended Book", 100, 20)

	concurrency := 10
	var wg sync.WaitGroup
	results := make(chan error, concurrency)

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()

			_, err := store.PlaceOrder(ctx, db, store.PlaceOrderRequest{
				UserID:          user.ID,
				Items:           []store.OrderItemRequest{{BookID: book.ID, Quantity: 2}},
				PaymentID:       fmt.Sprintf("pi_concurrent_%d", n),
				ShippingAddress: "1 Test Street",
			})
			results <- err
		}(i)
	}

	wg.Wait()
	close(results)

	// Lock contention can exhaust retries for some placements, but every
	// committed order must be reflected in the final stock exactly once.
	successCount := 0
	for err := range results {
		if err == nil {
			successCount++
		}
	}

	if successCount == 0 {
		t.Fatal("Expected at least one successful order")
	}

	bookAfter, err := store.GetBook(ctx, db, book.ID)
	if err != nil {
		t.Fatalf("Get book: %v", err)
	}

	expectedStock := 20 - (successCount * 2)
	if bookAfter.Stock != expectedStock {
		t.Errorf("Expected final stock %d, got %d", expectedStock, bookAfter.Stock)
	}
	if bookAfter.UnitsSold != successCount*2 {
		t.Errorf("Expected units sold %d, got %d", successCount*2, bookAfter.UnitsSold)
	}
}

func TestListOrdersCursor(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	user := createTestUser(t, db)
	book := createTestBook(t, db, "Cursor Book", 100, 100)

	for i := 0; i < 15; i++ {
		_, err := store.PlaceOrder(ctx, db, store.PlaceOrderRequest{
			UserID:          user.ID,
			Items:           []store.OrderItemRequest{{BookID: book.ID, Quantity: 1}},
			PaymentID:       nextPaymentID(),
			ShippingAddress: "1 Test Street",
		})
		if err != nil {
			t.Fatalf("Place order %d: %v", i, err)
		}
	}

	page1, err := store.ListOrdersCursor(ctx, db, user.ID, "", 10)
	if err != nil {
		t.Fatalf("List orders page 1: %v", err)
	}

	if !page1.HasMore {
		t.Error("Page 1 should have more results")
	}
	if page1.NextCursor == "" {
		t.Error("Page 1 should have a next cursor")
	}

	page2, err := store.ListOrdersCursor(ctx, db, user.ID, page1.NextCursor, 10)
	if err != nil {
		t.Fatalf("List orders page 2: %v", err)
	}

	if page2.HasMore {
		t.Error("Page 2 should not have more results")
	}
}
