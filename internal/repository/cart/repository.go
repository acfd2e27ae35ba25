package cart

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/emporia/internal/database"
	"github.com/Additional-Code/emporia/internal/entity"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/emporia/repository/cart")

// ErrNotFound is returned when a cart is missing.
var ErrNotFound = errors.New("cart not found")

// Repository encapsulates read/write access for carts.
type Repository struct {
	writer *bun.DB
	reader *bun.DB
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{
		writer: conns.Writer,
		reader: conns.Reader,
	}
}

// GetByID loads a cart with its items, live products, and attached coupon.
func (r *Repository) GetByID(ctx context.Context, id int64) (*entity.Cart, error) {
	ctx, span := repoTracer.Start(ctx, "CartRepository.GetByID", trace.WithAttributes(attribute.Int64("cart.id", id)))
	defer span.End()

	cart := new(entity.Cart)
	err := r.reader.NewSelect().
		Model(cart).
		Relation("Items").
		Relation("Items.Product").
		Relation("Coupon").
		Where("cart.id = ?", id).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return cart, nil
}

// Clear removes all cart lines and detaches the coupon inside the caller's
// transaction. Checkout calls this as the final write of its unit of work.
func Clear(ctx context.Context, db bun.IDB, cartID int64) error {
	if _, err := db.NewDelete().
		Model((*entity.CartItem)(nil)).
		Where("cart_id = ?", cartID).
		Exec(ctx); err != nil {
		return err
	}
	_, err := db.NewUpdate().
		Model((*entity.Cart)(nil)).
		Set("coupon_id = NULL").
		Set("updated_at = CURRENT_TIMESTAMP").
		Where("id = ?", cartID).
		Exec(ctx)
	return err
}
