package cart

import (
	"context"

	"go.uber.org/fx"

	"github.com/Additional-Code/emporia/internal/entity"
	productrepo "github.com/Additional-Code/emporia/internal/repository/product"
)

// Catalog exposes the product lookups validation needs.
type Catalog interface {
	GetByIDs(ctx context.Context, ids []int64) (map[int64]*entity.Product, error)
}

// Problem describes one cart line that cannot be checked out as-is.
type Problem struct {
	ProductID int64   `json:"product_id"`
	Reason    string  `json:"reason"`
	Requested int     `json:"requested,omitempty"`
	Available int     `json:"available,omitempty"`
	CartPrice float64 `json:"cart_price,omitempty"`
	Price     float64 `json:"price,omitempty"`
}

const (
	ReasonUnavailable  = "product_unavailable"
	ReasonOutOfStock   = "insufficient_stock"
	ReasonPriceChanged = "price_changed"
)

// Validator re-checks cart lines against the live catalog right before
// checkout commits. Prices and stock may have moved since the line was added.
type Validator struct {
	catalog Catalog
}

// NewValidator wires a Validator backed by the product repository.
func NewValidator(products *productrepo.Repository) *Validator {
	return &Validator{catalog: products}
}

// NewValidatorWith builds a Validator over any catalog. Used by composition
// roots that supply a narrower dependency.
func NewValidatorWith(catalog Catalog) *Validator {
	return &Validator{catalog: catalog}
}

// Validate returns one Problem per cart line that is unavailable, short on
// stock, or priced differently than when it was added. An empty slice means
// the cart can be committed.
func (v *Validator) Validate(ctx context.Context, cart *entity.Cart) ([]Problem, error) {
	ids := make([]int64, 0, len(cart.Items))
	for _, item := range cart.Items {
		ids = append(ids, item.ProductID)
	}

	products, err := v.catalog.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	var problems []Problem
	for _, item := range cart.Items {
		product, ok := products[item.ProductID]
		if !ok || !product.Active {
			problems = append(problems, Problem{
				ProductID: item.ProductID,
				Reason:    ReasonUnavailable,
			})
			continue
		}
		if product.Stock < item.Quantity {
			problems = append(problems, Problem{
				ProductID: item.ProductID,
				Reason:    ReasonOutOfStock,
				Requested: item.Quantity,
				Available: product.Stock,
			})
			continue
		}
		if product.Price != item.Price {
			problems = append(problems, Problem{
				ProductID: item.ProductID,
				Reason:    ReasonPriceChanged,
				CartPrice: item.Price,
				Price:     product.Price,
			})
		}
	}
	return problems, nil
}

// Module wires the cart validator.
var Module = fx.Provide(NewValidator)
