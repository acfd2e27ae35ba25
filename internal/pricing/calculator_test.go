package pricing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Additional-Code/emporia/internal/entity"
)

type fixedDiscounter struct {
	amount float64
}

func (f fixedDiscounter) Discount(*entity.Cart) float64 { return f.amount }

func cartWithSubtotal(subtotal float64) *entity.Cart {
	return &entity.Cart{
		Items: []*entity.CartItem{{ProductID: 1, Quantity: 1, Price: subtotal}},
	}
}

func TestCalculate_ShippingBelowThreshold(t *testing.T) {
	calc := NewCalculator(Config{
		FreeShippingThreshold: 300,
		ShippingBaseCost:      50,
	}, nil)

	totals := calc.Calculate(cartWithSubtotal(250))

	assert.Equal(t, 250.0, totals.Subtotal)
	assert.Equal(t, 0.0, totals.Discount)
	assert.Equal(t, 0.0, totals.Tax)
	assert.Equal(t, 50.0, totals.Shipping)
	assert.Equal(t, 300.0, totals.Total)
}

func TestCalculate_FreeShippingAtThreshold(t *testing.T) {
	calc := NewCalculator(Config{
		FreeShippingThreshold: 300,
		ShippingBaseCost:      50,
	}, nil)

	totals := calc.Calculate(cartWithSubtotal(400))

	assert.Equal(t, 0.0, totals.Shipping)
	assert.Equal(t, 400.0, totals.Total)
}

func TestCalculate_TaxOnDiscountedSubtotal(t *testing.T) {
	calc := NewCalculator(Config{
		FreeShippingThreshold: 1000,
		ShippingBaseCost:      10,
		TaxEnabled:            true,
		TaxRate:               0.21,
	}, fixedDiscounter{amount: 100})

	totals := calc.Calculate(cartWithSubtotal(200))

	assert.Equal(t, 100.0, totals.Discount)
	assert.Equal(t, 21.0, totals.Tax) // (200-100) * 0.21
	assert.Equal(t, 131.0, totals.Total)
}

func TestCalculate_TaxSkippedWhenIncludedInPrices(t *testing.T) {
	calc := NewCalculator(Config{
		TaxEnabled:          true,
		TaxIncludedInPrices: true,
		TaxRate:             0.21,
	}, nil)

	totals := calc.Calculate(cartWithSubtotal(100))

	assert.Equal(t, 0.0, totals.Tax)
}

func TestCalculate_TotalFlooredAtZero(t *testing.T) {
	calc := NewCalculator(Config{}, fixedDiscounter{amount: 500})

	totals := calc.Calculate(cartWithSubtotal(100))

	assert.Equal(t, 0.0, totals.Total)
	assert.Equal(t, 0.0, totals.Tax, "taxable base floors at zero")
}

func TestCalculate_RoundsEachFigureToTwoDecimals(t *testing.T) {
	calc := NewCalculator(Config{
		TaxEnabled: true,
		TaxRate:    0.105,
	}, fixedDiscounter{amount: 0.333})

	cart := &entity.Cart{
		Items: []*entity.CartItem{{ProductID: 1, Quantity: 3, Price: 3.333}},
	}

	totals := calc.Calculate(cart)

	assert.Equal(t, 10.0, totals.Subtotal) // 9.999 rounds up
	assert.Equal(t, 0.33, totals.Discount)
	assert.Equal(t, 1.02, totals.Tax) // (10 - 0.33) * 0.105 = 1.01535
	assert.Equal(t, 10.69, totals.Total)
}

func TestCouponDiscounter(t *testing.T) {
	past := time.Now().Add(-time.Hour)

	tests := []struct {
		name   string
		coupon *entity.Coupon
		want   float64
	}{
		{"no coupon", nil, 0},
		{"percentage", &entity.Coupon{Kind: entity.CouponPercentage, Value: 10, Active: true}, 20},
		{"fixed", &entity.Coupon{Kind: entity.CouponFixed, Value: 30, Active: true}, 30},
		{"fixed capped at subtotal", &entity.Coupon{Kind: entity.CouponFixed, Value: 500, Active: true}, 200},
		{"inactive", &entity.Coupon{Kind: entity.CouponFixed, Value: 30}, 0},
		{"expired", &entity.Coupon{Kind: entity.CouponFixed, Value: 30, Active: true, ExpiresAt: &past}, 0},
		{"under minimum", &entity.Coupon{Kind: entity.CouponFixed, Value: 30, Active: true, MinSubtotal: 1000}, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cart := cartWithSubtotal(200)
			cart.Coupon = tc.coupon
			got := NewCouponDiscounter().Discount(cart)
			assert.Equal(t, tc.want, got)
		})
	}
}
