package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProduct_EffectivePriceCents(t *testing.T) {
	sale := int64(800)
	badSale := int64(1200)

	tests := []struct {
		name     string
		product  Product
		expected int64
	}{
		{"no sale price", Product{PriceCents: 1000}, 1000},
		{"valid sale price", Product{PriceCents: 1000, SalePriceCents: &sale}, 800},
		{"sale above regular price is ignored", Product{PriceCents: 1000, SalePriceCents: &badSale}, 1000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.product.EffectivePriceCents())
		})
	}
}

func TestCoupon_IsRedeemable(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	assert.True(t, (&Coupon{IsActive: true}).IsRedeemable(now))
	assert.True(t, (&Coupon{IsActive: true, ExpiresAt: &future}).IsRedeemable(now))
	assert.False(t, (&Coupon{IsActive: true, ExpiresAt: &past}).IsRedeemable(now))
	assert.False(t, (&Coupon{IsActive: false}).IsRedeemable(now))
}

func TestCoupon_DiscountFor(t *testing.T) {
	percent := &Coupon{DiscountType: CouponTypePercent, Amount: 10}
	assert.Equal(t, int64(100), percent.DiscountFor(1000))

	fixed := &Coupon{DiscountType: CouponTypeFixed, Amount: 250}
	assert.Equal(t, int64(250), fixed.DiscountFor(1000))

	// Discount never exceeds the subtotal
	bigFixed := &Coupon{DiscountType: CouponTypeFixed, Amount: 5000}
	assert.Equal(t, int64(1000), bigFixed.DiscountFor(1000))

	// Unknown type discounts nothing
	unknown := &Coupon{DiscountType: "bogus", Amount: 50}
	assert.Equal(t, int64(0), unknown.DiscountFor(1000))
}
