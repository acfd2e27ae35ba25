package checkout

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/emporia/internal/config"
	"github.com/Additional-Code/emporia/internal/entity"
	cartrepo "github.com/Additional-Code/emporia/internal/repository/cart"
	orderrepo "github.com/Additional-Code/emporia/internal/repository/order"
	productrepo "github.com/Additional-Code/emporia/internal/repository/product"
	cartsvc "github.com/Additional-Code/emporia/internal/service/cart"
	"github.com/Additional-Code/emporia/pkg/errorbank"
)

type fakeCartLoader struct {
	cart *entity.Cart
	err  error
}

func (f *fakeCartLoader) GetByID(context.Context, int64) (*entity.Cart, error) {
	return f.cart, f.err
}

type fakeOrderWriter struct {
	write *orderrepo.CheckoutWrite
	err   error
}

func (f *fakeOrderWriter) CreateFromCheckout(_ context.Context, w *orderrepo.CheckoutWrite) (*entity.Order, error) {
	f.write = w
	if f.err != nil {
		return nil, f.err
	}
	w.Order.ID = 42
	w.Order.Items = w.Items
	return w.Order, nil
}

type fakeValidator struct {
	problems []cartsvc.Problem
	err      error
}

func (f *fakeValidator) Validate(context.Context, *entity.Cart) ([]cartsvc.Problem, error) {
	return f.problems, f.err
}

func storeConfig() config.Config {
	return config.Config{
		Store: config.Store{
			Currency:              "ARS",
			FreeShippingThreshold: 300,
		},
		Shipping: config.Shipping{BaseCost: 50},
	}
}

func cartWithItems() *entity.Cart {
	return &entity.Cart{
		ID: 7,
		Items: []*entity.CartItem{
			{
				ProductID: 1,
				Quantity:  2,
				Price:     100,
				Product:   &entity.Product{ID: 1, Name: "Mate Imperial", SKU: "MATE-01"},
			},
		},
	}
}

func TestCheckout(t *testing.T) {
	writer := &fakeOrderWriter{}
	svc := NewService(storeConfig(), &fakeCartLoader{cart: cartWithItems()}, writer, &fakeValidator{}, nil, nil, nil)

	userID := int64(3)
	order, err := svc.Checkout(context.Background(), Input{
		CartID:          7,
		UserID:          &userID,
		ShippingAddress: entity.OrderAddress{Name: "Ana", PostalCode: "1406"},
	})
	require.NoError(t, err)

	assert.Equal(t, entity.OrderPending, order.Status)
	assert.Equal(t, entity.PaymentPending, order.PaymentStatus)
	assert.True(t, strings.HasPrefix(order.Number, "ORD-"))
	assert.Equal(t, 200.0, order.Subtotal)
	assert.Equal(t, 50.0, order.Shipping)
	assert.Equal(t, 250.0, order.Total)

	require.NotNil(t, writer.write)
	assert.Equal(t, int64(7), writer.write.CartID)
	require.Len(t, writer.write.Items, 1)
	assert.Equal(t, "Mate Imperial", writer.write.Items[0].Name)
	assert.Equal(t, "MATE-01", writer.write.Items[0].SKU)
	assert.Equal(t, 200.0, writer.write.Items[0].Total)
	assert.Nil(t, writer.write.BillingAddress)
}

func TestCheckoutEmptyCart(t *testing.T) {
	svc := NewService(storeConfig(), &fakeCartLoader{cart: &entity.Cart{ID: 7}}, &fakeOrderWriter{}, &fakeValidator{}, nil, nil, nil)

	_, err := svc.Checkout(context.Background(), Input{CartID: 7})
	appErr := errorbank.From(err)
	assert.Equal(t, errorbank.KindUnprocessableEntity, appErr.Kind())
	assert.Equal(t, errorbank.CodeEmptyCart, appErr.Code())
}

func TestCheckoutCartNotFound(t *testing.T) {
	svc := NewService(storeConfig(), &fakeCartLoader{err: cartrepo.ErrNotFound}, &fakeOrderWriter{}, &fakeValidator{}, nil, nil, nil)

	_, err := svc.Checkout(context.Background(), Input{CartID: 404})
	assert.Equal(t, errorbank.KindNotFound, errorbank.From(err).Kind())
}

func TestCheckoutValidationProblems(t *testing.T) {
	validator := &fakeValidator{problems: []cartsvc.Problem{
		{ProductID: 1, Reason: cartsvc.ReasonOutOfStock, Requested: 2, Available: 1},
	}}
	svc := NewService(storeConfig(), &fakeCartLoader{cart: cartWithItems()}, &fakeOrderWriter{}, validator, nil, nil, nil)

	_, err := svc.Checkout(context.Background(), Input{CartID: 7})
	appErr := errorbank.From(err)
	assert.Equal(t, errorbank.KindUnprocessableEntity, appErr.Kind())
	assert.Equal(t, errorbank.CodeCartValidationFailed, appErr.Code())
	assert.Contains(t, appErr.Details(), "problems")
}

func TestCheckoutInsufficientStock(t *testing.T) {
	writer := &fakeOrderWriter{err: productrepo.ErrInsufficientStock}
	svc := NewService(storeConfig(), &fakeCartLoader{cart: cartWithItems()}, writer, &fakeValidator{}, nil, nil, nil)

	_, err := svc.Checkout(context.Background(), Input{CartID: 7})
	appErr := errorbank.From(err)
	assert.Equal(t, errorbank.KindUnprocessableEntity, appErr.Kind())
	assert.Equal(t, errorbank.CodeCartValidationFailed, appErr.Code())
}

func TestCheckoutWriteFailure(t *testing.T) {
	writer := &fakeOrderWriter{err: errors.New("connection reset")}
	svc := NewService(storeConfig(), &fakeCartLoader{cart: cartWithItems()}, writer, &fakeValidator{}, nil, nil, nil)

	_, err := svc.Checkout(context.Background(), Input{CartID: 7})
	assert.Equal(t, errorbank.KindInternal, errorbank.From(err).Kind())
}

func TestCheckoutBillingAddressCopied(t *testing.T) {
	writer := &fakeOrderWriter{}
	svc := NewService(storeConfig(), &fakeCartLoader{cart: cartWithItems()}, writer, &fakeValidator{}, nil, nil, nil)

	billing := &entity.OrderAddress{Name: "Facturación", PostalCode: "5000"}
	_, err := svc.Checkout(context.Background(), Input{
		CartID:          7,
		ShippingAddress: entity.OrderAddress{Name: "Ana"},
		BillingAddress:  billing,
	})
	require.NoError(t, err)
	require.NotNil(t, writer.write.BillingAddress)
	assert.Equal(t, "Facturación", writer.write.BillingAddress.Name)
	assert.NotSame(t, billing, writer.write.BillingAddress)
}
