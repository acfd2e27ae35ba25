package payment

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/emporia/internal/database"
	"github.com/Additional-Code/emporia/internal/entity"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/emporia/repository/payment")

// ErrNotFound is returned when a payment attempt is missing.
var ErrNotFound = errors.New("payment not found")

// Repository encapsulates read/write access for payment attempts. Attempts
// are append-only; the order's payment_status column carries the current
// truth.
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

// Create persists a new payment attempt.
func (r *Repository) Create(ctx context.Context, payment *entity.Payment) error {
	ctx, span := repoTracer.Start(ctx, "PaymentRepository.Create", trace.WithAttributes(attribute.Int64("order.id", payment.OrderID)))
	defer span.End()

	_, err := r.writer.NewInsert().Model(payment).Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
	}
	return err
}

// GetByID fetches a payment attempt by primary key.
func (r *Repository) GetByID(ctx context.Context, id int64) (*entity.Payment, error) {
	ctx, span := repoTracer.Start(ctx, "PaymentRepository.GetByID", trace.WithAttributes(attribute.Int64("payment.id", id)))
	defer span.End()

	payment := new(entity.Payment)
	err := r.reader.NewSelect().Model(payment).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return payment, nil
}

// GetByExternalID fetches the attempt the gateway knows by its own payment id.
func (r *Repository) GetByExternalID(ctx context.Context, externalID string) (*entity.Payment, error) {
	ctx, span := repoTracer.Start(ctx, "PaymentRepository.GetByExternalID", trace.WithAttributes(attribute.String("payment.external_id", externalID)))
	defer span.End()

	payment := new(entity.Payment)
	err := r.reader.NewSelect().Model(payment).Where("external_id = ?", externalID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return payment, nil
}

// GetLatestByOrderID returns the most recent attempt for an order.
func (r *Repository) GetLatestByOrderID(ctx context.Context, orderID int64) (*entity.Payment, error) {
	ctx, span := repoTracer.Start(ctx, "PaymentRepository.GetLatestByOrderID", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	payment := new(entity.Payment)
	err := r.reader.NewSelect().
		Model(payment).
		Where("order_id = ?", orderID).
		Order("created_at DESC").
		Limit(1).
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
	return payment, nil
}

// SetExternalID stores the gateway-assigned identifier on the attempt.
func (r *Repository) SetExternalID(ctx context.Context, id int64, externalID string) error {
	_, err := r.writer.NewUpdate().
		Model((*entity.Payment)(nil)).
		Set("external_id = ?", externalID).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

// SetPreference records the gateway checkout preference on the attempt's
// metadata. The external_id column is reserved for the gateway payment id
// reported later by webhooks.
func (r *Repository) SetPreference(ctx context.Context, id int64, preferenceID string) error {
	_, err := r.writer.NewUpdate().
		Model((*entity.Payment)(nil)).
		Set("metadata = jsonb_set(COALESCE(metadata, '{}'::jsonb), '{preference_id}', to_jsonb(?::text))", preferenceID).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

// MarkFailed records a failed attempt. It runs as a single standalone write
// so the marker survives when the caller's surrounding operation is aborted
// by the failure that triggered it.
func (r *Repository) MarkFailed(ctx context.Context, id int64, reason string) error {
	ctx, span := repoTracer.Start(ctx, "PaymentRepository.MarkFailed", trace.WithAttributes(attribute.Int64("payment.id", id)))
	defer span.End()

	_, err := r.writer.NewUpdate().
		Model((*entity.Payment)(nil)).
		Set("status = ?", entity.PaymentFailed).
		Set("metadata = jsonb_set(COALESCE(metadata, '{}'::jsonb), '{error}', to_jsonb(?::text))", reason).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
	}
	return err
}
