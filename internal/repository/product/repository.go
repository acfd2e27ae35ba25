package product

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

var repoTracer = otel.Tracer("github.com/Additional-Code/emporia/repository/product")

// ErrNotFound is returned when a product is missing.
var ErrNotFound = errors.New("product not found")

// ErrInsufficientStock is returned when a stock decrement would go negative.
var ErrInsufficientStock = errors.New("insufficient stock")

// Repository encapsulates read/write access for products.
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

// GetByID fetches a product by primary key using the read replica when
// available.
func (r *Repository) GetByID(ctx context.Context, id int64) (*entity.Product, error) {
	ctx, span := repoTracer.Start(ctx, "ProductRepository.GetByID", trace.WithAttributes(attribute.Int64("product.id", id)))
	defer span.End()

	product := new(entity.Product)
	err := r.reader.NewSelect().Model(product).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return product, nil
}

// GetByIDs fetches the products for a set of ids, keyed by id.
func (r *Repository) GetByIDs(ctx context.Context, ids []int64) (map[int64]*entity.Product, error) {
	ctx, span := repoTracer.Start(ctx, "ProductRepository.GetByIDs", trace.WithAttributes(attribute.Int("product.count", len(ids))))
	defer span.End()

	if len(ids) == 0 {
		return map[int64]*entity.Product{}, nil
	}

	var products []*entity.Product
	if err := r.reader.NewSelect().Model(&products).Where("id IN (?)", bun.In(ids)).Scan(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}

	byID := make(map[int64]*entity.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	return byID, nil
}

// DecrementStock atomically reduces a product's stock inside the caller's
// transaction, failing when the remaining stock cannot cover the quantity.
func DecrementStock(ctx context.Context, db bun.IDB, productID int64, quantity int) error {
	res, err := db.NewUpdate().
		Model((*entity.Product)(nil)).
		Set("stock = stock - ?", quantity).
		Set("updated_at = CURRENT_TIMESTAMP").
		Where("id = ?", productID).
		Where("stock >= ?", quantity).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrInsufficientStock
	}
	return nil
}

// RestoreStock returns previously decremented stock inside the caller's
// transaction.
func RestoreStock(ctx context.Context, db bun.IDB, productID int64, quantity int) error {
	_, err := db.NewUpdate().
		Model((*entity.Product)(nil)).
		Set("stock = stock + ?", quantity).
		Set("updated_at = CURRENT_TIMESTAMP").
		Where("id = ?", productID).
		Exec(ctx)
	return err
}
