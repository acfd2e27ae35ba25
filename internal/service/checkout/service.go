package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Additional-Code/emporia/internal/cache"
	"github.com/Additional-Code/emporia/internal/config"
	"github.com/Additional-Code/emporia/internal/entity"
	"github.com/Additional-Code/emporia/internal/event"
	"github.com/Additional-Code/emporia/internal/pricing"
	cartsvc "github.com/Additional-Code/emporia/internal/service/cart"

	cartrepo "github.com/Additional-Code/emporia/internal/repository/cart"
	orderrepo "github.com/Additional-Code/emporia/internal/repository/order"
	productrepo "github.com/Additional-Code/emporia/internal/repository/product"
	"github.com/Additional-Code/emporia/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/Additional-Code/emporia/service/checkout")

// CartLoader loads the cart being checked out.
type CartLoader interface {
	GetByID(ctx context.Context, id int64) (*entity.Cart, error)
}

// OrderWriter commits the checkout unit of work.
type OrderWriter interface {
	CreateFromCheckout(ctx context.Context, w *orderrepo.CheckoutWrite) (*entity.Order, error)
}

// Validator re-checks cart lines against the live catalog.
type Validator interface {
	Validate(ctx context.Context, cart *entity.Cart) ([]cartsvc.Problem, error)
}

// Input is everything checkout needs from the caller. BillingAddress may be
// nil when it matches the shipping address.
type Input struct {
	CartID          int64
	UserID          *int64
	Notes           string
	ShippingAddress entity.OrderAddress
	BillingAddress  *entity.OrderAddress
}

// Service converts a cart into a committed order.
type Service struct {
	carts      CartLoader
	orders     OrderWriter
	validator  Validator
	calculator *pricing.Calculator
	cache      cache.Store
	cacheTTL   time.Duration
	emitter    *event.Emitter
	logger     *zap.Logger
}

// NewService wires a checkout Service from configuration.
func NewService(cfg config.Config, carts CartLoader, orders OrderWriter, validator Validator, store cache.Store, emitter *event.Emitter, logger *zap.Logger) *Service {
	calculator := pricing.NewCalculator(pricing.Config{
		FreeShippingThreshold: cfg.Store.FreeShippingThreshold,
		ShippingBaseCost:      cfg.Shipping.BaseCost,
		TaxEnabled:            cfg.Store.TaxEnabled,
		TaxIncludedInPrices:   cfg.Store.TaxIncludedInPrices,
		TaxRate:               cfg.Store.TaxRate,
	}, pricing.NewCouponDiscounter())

	return &Service{
		carts:      carts,
		orders:     orders,
		validator:  validator,
		calculator: calculator,
		cache:      store,
		cacheTTL:   cfg.Cache.DefaultTTL,
		emitter:    emitter,
		logger:     logger,
	}
}

// Checkout validates the cart, prices it, and commits the order in one
// transactional write. The committed order starts pending on both tracks.
func (s *Service) Checkout(ctx context.Context, in Input) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "CheckoutService.Checkout", trace.WithAttributes(attribute.Int64("cart.id", in.CartID)))
	defer span.End()

	cart, err := s.carts.GetByID(ctx, in.CartID)
	if err != nil {
		if errors.Is(err, cartrepo.ErrNotFound) {
			return nil, errorbank.NotFound("cart not found")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "cart load failed")
		return nil, errorbank.Internal("failed to load cart", errorbank.WithCause(err))
	}

	if len(cart.Items) == 0 {
		return nil, errorbank.Unprocessable("cart is empty",
			errorbank.WithCode(errorbank.CodeEmptyCart))
	}

	problems, err := s.validator.Validate(ctx, cart)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation failed")
		return nil, errorbank.Internal("failed to validate cart", errorbank.WithCause(err))
	}
	if len(problems) > 0 {
		return nil, errorbank.Unprocessable("cart failed validation",
			errorbank.WithCode(errorbank.CodeCartValidationFailed),
			errorbank.WithDetail("problems", problems))
	}

	totals := s.calculator.Calculate(cart)
	now := time.Now().UTC()

	order := &entity.Order{
		Number:        newOrderNumber(),
		UserID:        in.UserID,
		Status:        entity.OrderPending,
		PaymentStatus: entity.PaymentPending,
		Subtotal:      totals.Subtotal,
		Discount:      totals.Discount,
		Tax:           totals.Tax,
		Shipping:      totals.Shipping,
		Total:         totals.Total,
		Notes:         in.Notes,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	items := make([]*entity.OrderItem, 0, len(cart.Items))
	for _, line := range cart.Items {
		item := &entity.OrderItem{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			Price:     line.Price,
			Total:     line.Price * float64(line.Quantity),
			Options:   line.Options,
			CreatedAt: now,
		}
		if line.Product != nil {
			item.Name = line.Product.Name
			item.SKU = line.Product.SKU
		}
		items = append(items, item)
	}

	shipping := in.ShippingAddress
	shipping.CreatedAt = now
	write := &orderrepo.CheckoutWrite{
		Order:           order,
		Items:           items,
		ShippingAddress: &shipping,
		CartID:          cart.ID,
	}
	if in.BillingAddress != nil {
		billing := *in.BillingAddress
		billing.CreatedAt = now
		write.BillingAddress = &billing
	}

	committed, err := s.orders.CreateFromCheckout(ctx, write)
	if err != nil {
		if errors.Is(err, productrepo.ErrInsufficientStock) {
			return nil, errorbank.Unprocessable("insufficient stock for cart items",
				errorbank.WithCode(errorbank.CodeCartValidationFailed))
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "checkout write failed")
		return nil, errorbank.Internal("failed to create order", errorbank.WithCause(err))
	}

	s.storeInCache(ctx, committed)
	s.emitter.Emit(ctx, event.TypeOrderCreated, committed)

	return committed, nil
}

func (s *Service) storeInCache(ctx context.Context, order *entity.Order) {
	if s.cache == nil {
		return
	}
	payload, err := json.Marshal(order)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, cache.OrderKey(order.ID), payload, s.cacheTTL); err != nil {
		if s.logger != nil {
			s.logger.Warn("orders cache write failed", zap.Int64("id", order.ID), zap.Error(err))
		}
	}
}

func newOrderNumber() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "ORD-" + strings.ToUpper(raw[:12])
}
