package cart

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/emporia/internal/entity"
)

type fakeCatalog struct {
	products map[int64]*entity.Product
	err      error
}

func (f *fakeCatalog) GetByIDs(context.Context, []int64) (map[int64]*entity.Product, error) {
	return f.products, f.err
}

func TestValidateCleanCart(t *testing.T) {
	validator := NewValidatorWith(&fakeCatalog{products: map[int64]*entity.Product{
		1: {ID: 1, Active: true, Stock: 10, Price: 100},
	}})

	problems, err := validator.Validate(context.Background(), &entity.Cart{
		Items: []*entity.CartItem{{ProductID: 1, Quantity: 2, Price: 100}},
	})
	require.NoError(t, err)
	assert.Empty(t, problems)
}

func TestValidateProblems(t *testing.T) {
	validator := NewValidatorWith(&fakeCatalog{products: map[int64]*entity.Product{
		1: {ID: 1, Active: true, Stock: 1, Price: 100},
		2: {ID: 2, Active: false, Stock: 10, Price: 50},
		3: {ID: 3, Active: true, Stock: 10, Price: 80},
	}})

	problems, err := validator.Validate(context.Background(), &entity.Cart{
		Items: []*entity.CartItem{
			{ProductID: 1, Quantity: 3, Price: 100}, // short on stock
			{ProductID: 2, Quantity: 1, Price: 50},  // inactive
			{ProductID: 3, Quantity: 1, Price: 70},  // repriced
			{ProductID: 9, Quantity: 1, Price: 10},  // gone from catalog
		},
	})
	require.NoError(t, err)
	require.Len(t, problems, 4)

	byProduct := make(map[int64]Problem, len(problems))
	for _, p := range problems {
		byProduct[p.ProductID] = p
	}
	assert.Equal(t, ReasonOutOfStock, byProduct[1].Reason)
	assert.Equal(t, 1, byProduct[1].Available)
	assert.Equal(t, ReasonUnavailable, byProduct[2].Reason)
	assert.Equal(t, ReasonPriceChanged, byProduct[3].Reason)
	assert.Equal(t, 80.0, byProduct[3].Price)
	assert.Equal(t, ReasonUnavailable, byProduct[9].Reason)
}

func TestValidateCatalogError(t *testing.T) {
	validator := NewValidatorWith(&fakeCatalog{err: errors.New("replica down")})

	_, err := validator.Validate(context.Background(), &entity.Cart{
		Items: []*entity.CartItem{{ProductID: 1, Quantity: 1}},
	})
	assert.Error(t, err)
}
