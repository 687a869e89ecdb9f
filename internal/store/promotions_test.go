package store

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leafpress/go-bookstore/internal/database"
	"github.com/leafpress/go-bookstore/internal/models"
)

func promo(t models.PromotionType, value, minOrder string, active bool, expiresAt *time.Time) *models.Promotion {
	return &models.Promotion{
		Code:          "TEST",
		Type:          t,
		Value:         decimal.RequireFromString(value),
		MinOrderValue: decimal.RequireFromString(minOrder),
		Active:        active,
		ExpiresAt:     expiresAt,
	}
}

func TestComputeDiscountFlat(t *testing.T) {
	// Cart of 100x2 + 50x1 with FLAT100 (flat 100, min 100).
	subtotal := decimal.RequireFromString("250")
	p := promo(models.PromotionFlat, "100", "100", true, nil)

	discount, err := ComputeDiscount(p, subtotal, time.Now())
	require.NoError(t, err)
	assert.True(t, discount.Equal(decimal.RequireFromString("100")), "discount = %s", discount)

	total := subtotal.Sub(discount).Round(2)
	assert.True(t, total.Equal(decimal.RequireFromString("150")), "total = %s", total)
}

func TestComputeDiscountPercent(t *testing.T) {
	subtotal := decimal.RequireFromString("80")
	p := promo(models.PromotionPercent, "25", "0", true, nil)

	discount, err := ComputeDiscount(p, subtotal, time.Now())
	require.NoError(t, err)
	assert.True(t, discount.Equal(decimal.RequireFromString("20")), "discount = %s", discount)
}

func TestComputeDiscountPercentRounds(t *testing.T) {
	subtotal := decimal.RequireFromString("9.99")
	p := promo(models.PromotionPercent, "10", "0", true, nil)

	discount, err := ComputeDiscount(p, subtotal, time.Now())
	require.NoError(t, err)
	assert.True(t, discount.Equal(decimal.RequireFromString("1.00")), "discount = %s", discount)
}

func TestComputeDiscountFlatClampedToSubtotal(t *testing.T) {
	subtotal := decimal.RequireFromString("30")
	p := promo(models.PromotionFlat, "100", "0", true, nil)

	discount, err := ComputeDiscount(p, subtotal, time.Now())
	require.NoError(t, err)
	assert.True(t, discount.Equal(subtotal), "discount must not exceed subtotal, got %s", discount)
	assert.False(t, subtotal.Sub(discount).IsNegative())
}

func TestComputeDiscountMinimumNotMet(t *testing.T) {
	subtotal := decimal.RequireFromString("99.99")
	p := promo(models.PromotionFlat, "10", "100", true, nil)

	discount, err := ComputeDiscount(p, subtotal, time.Now())
	assert.ErrorIs(t, err, database.ErrPromotionMinNotMet)
	assert.True(t, discount.IsZero())
}

func TestComputeDiscountInactive(t *testing.T) {
	p := promo(models.PromotionFlat, "10", "0", false, nil)

	_, err := ComputeDiscount(p, decimal.RequireFromString("50"), time.Now())
	assert.ErrorIs(t, err, database.ErrPromotionInactive)
}

func TestComputeDiscountExpired(t *testing.T) {
	expired := time.Now().Add(-time.Hour)
	p := promo(models.PromotionFlat, "10", "0", true, &expired)

	_, err := ComputeDiscount(p, decimal.RequireFromString("50"), time.Now())
	assert.ErrorIs(t, err, database.ErrPromotionExpired)
}

func TestComputeDiscountNotYetExpired(t *testing.T) {
	expires := time.Now().Add(time.Hour)
	p := promo(models.PromotionFlat, "10", "0", true, &expires)

	discount, err := ComputeDiscount(p, decimal.RequireFromString("50"), time.Now())
	require.NoError(t, err)
	assert.True(t, discount.Equal(decimal.RequireFromString("10")))
}

func TestComputeDiscountUnknownType(t *testing.T) {
	p := promo(models.PromotionType("bogus"), "10", "0", true, nil)

	_, err := ComputeDiscount(p, decimal.RequireFromString("50"), time.Now())
	assert.Error(t, err)
}
