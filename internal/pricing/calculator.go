package pricing

import (
	"math"

	"github.com/Additional-Code/emporia/internal/entity"
)

// Config carries the store-level knobs the calculator needs, injected at
// construction instead of read from an ambient settings store.
type Config struct {
	FreeShippingThreshold float64
	ShippingBaseCost      float64
	TaxEnabled            bool
	TaxIncludedInPrices   bool
	TaxRate               float64
}

// Discounter computes the discount for a cart. Coupon rule evaluation lives
// behind this interface so the calculator stays a pure function of its inputs.
type Discounter interface {
	Discount(cart *entity.Cart) float64
}

// Totals is the monetary breakdown of an order. Each figure is rounded to two
// decimals independently so currency semantics hold without compounding float
// error.
type Totals struct {
	Subtotal float64
	Discount float64
	Tax      float64
	Shipping float64
	Total    float64
}

// Calculator derives order totals from a cart.
type Calculator struct {
	cfg        Config
	discounter Discounter
}

// NewCalculator builds a Calculator with explicit configuration.
func NewCalculator(cfg Config, discounter Discounter) *Calculator {
	return &Calculator{cfg: cfg, discounter: discounter}
}

// Calculate derives subtotal, discount, shipping, tax and total for the cart.
// Shipping is waived at or above the free-shipping threshold; tax applies to
// the discounted subtotal unless disabled or already included in displayed
// prices; the total is floored at zero.
func (c *Calculator) Calculate(cart *entity.Cart) Totals {
	subtotal := round2(cart.Subtotal())

	var discount float64
	if c.discounter != nil {
		discount = round2(c.discounter.Discount(cart))
	}

	shipping := c.cfg.ShippingBaseCost
	if subtotal >= c.cfg.FreeShippingThreshold {
		shipping = 0
	}
	shipping = round2(shipping)

	taxable := math.Max(0, subtotal-discount)
	var tax float64
	if c.cfg.TaxEnabled && !c.cfg.TaxIncludedInPrices {
		tax = round2(taxable * c.cfg.TaxRate)
	}

	total := round2(math.Max(0, subtotal-discount+tax+shipping))

	return Totals{
		Subtotal: subtotal,
		Discount: discount,
		Tax:      tax,
		Shipping: shipping,
		Total:    total,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
