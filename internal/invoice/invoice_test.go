package invoice

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leafpress/go-bookstore/internal/models"
)

func TestRender(t *testing.T) {
	code := "FLAT100"
	order := &models.Order{
		OrderNumber:     "ORD-ABC12345",
		Subtotal:        decimal.RequireFromString("250.00"),
		Discount:        decimal.RequireFromString("100.00"),
		TotalAmount:     decimal.RequireFromString("150.00"),
		PromotionCode:   &code,
		ShippingAddress: "1 Example Street",
		CreatedAt:       time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		Items: []models.OrderItem{
			{Title: "Dune", Quantity: 2, UnitPrice: decimal.RequireFromString("100.00"), LineTotal: decimal.RequireFromString("200.00")},
			{Title: "Hyperion", Quantity: 1, UnitPrice: decimal.RequireFromString("50.00"), LineTotal: decimal.RequireFromString("50.00")},
		},
	}
	customer := &models.User{Name: "Test Customer", Email: "customer@example.com"}

	pdf, err := Render(order, customer)
	require.NoError(t, err)
	require.NotEmpty(t, pdf)
	assert.Equal(t, "%PDF", string(pdf[:4]))
}

func TestRenderNoDiscount(t *testing.T) {
	order := &models.Order{
		OrderNumber: "ORD-DEF67890",
		Subtotal:    decimal.RequireFromString("50.00"),
		Discount:    decimal.Zero,
		TotalAmount: decimal.RequireFromString("50.00"),
		CreatedAt:   time.Now(),
		Items: []models.OrderItem{
			{Title: "Hyperion", Quantity: 1, UnitPrice: decimal.RequireFromString("50.00"), LineTotal: decimal.RequireFromString("50.00")},
		},
	}
	customer := &models.User{Name: "Test Customer", Email: "customer@example.com"}

	pdf, err := Render(order, customer)
	require.NoError(t, err)
	assert.NotEmpty(t, pdf)
}
