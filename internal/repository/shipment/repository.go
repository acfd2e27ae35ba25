package shipment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/emporia/internal/database"
	"github.com/Additional-Code/emporia/internal/entity"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/emporia/repository/shipment")

// ErrNotFound is returned when a shipment is missing.
var ErrNotFound = errors.New("shipment not found")

// Repository encapsulates read/write access for shipments, including the
// order cascades that carrier milestones trigger.
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

// Create persists a new shipment row.
func (r *Repository) Create(ctx context.Context, shipment *entity.Shipment) error {
	ctx, span := repoTracer.Start(ctx, "ShipmentRepository.Create", trace.WithAttributes(attribute.Int64("order.id", shipment.OrderID)))
	defer span.End()

	_, err := r.writer.NewInsert().Model(shipment).Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
	}
	return err
}

// GetByOrderID fetches the shipment for an order.
func (r *Repository) GetByOrderID(ctx context.Context, orderID int64) (*entity.Shipment, error) {
	ctx, span := repoTracer.Start(ctx, "ShipmentRepository.GetByOrderID", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	shipment := new(entity.Shipment)
	err := r.reader.NewSelect().Model(shipment).Where("order_id = ?", orderID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return shipment, nil
}

// MarkShipped records the carrier's acceptance and transitions the owning
// order to shipped in the same transaction, with the tracking number in the
// history note.
func (r *Repository) MarkShipped(ctx context.Context, shipmentID int64, trackingNumber, labelURL string, eta *time.Time) (*entity.Shipment, error) {
	ctx, span := repoTracer.Start(ctx, "ShipmentRepository.MarkShipped", trace.WithAttributes(
		attribute.Int64("shipment.id", shipmentID),
		attribute.String("shipment.tracking_number", trackingNumber),
	))
	defer span.End()

	var shipment *entity.Shipment
	err := r.writer.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		locked, err := lockShipment(ctx, tx, shipmentID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		locked.TrackingNumber = trackingNumber
		locked.LabelURL = labelURL
		locked.EstimatedDelivery = eta
		locked.Status = entity.ShippingShipped
		locked.ShippedAt = &now
		locked.UpdatedAt = now

		if _, err := tx.NewUpdate().Model(locked).WherePK().Exec(ctx); err != nil {
			return err
		}

		order := new(entity.Order)
		if err := tx.NewSelect().Model(order).Where("id = ?", locked.OrderID).For("UPDATE").Scan(ctx); err != nil {
			return err
		}

		note := fmt.Sprintf("Shipment created, tracking %s", trackingNumber)
		change, err := entity.Transition(order, entity.OrderShipped, note, "system", now)
		if err != nil {
			return err
		}
		if _, err := tx.NewUpdate().
			Model(order).
			Column("status", "payment_status", "paid_at", "shipped_at", "delivered_at", "updated_at").
			WherePK().
			Exec(ctx); err != nil {
			return err
		}
		if _, err := tx.NewInsert().Model(change.History(order.ID)).Exec(ctx); err != nil {
			return err
		}

		shipment = locked
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "mark shipped failed")
		return nil, err
	}
	return shipment, nil
}

// MarkFailed records a failed carrier call with the error in metadata. It
// runs as a single standalone write so the marker survives when the caller
// re-raises the failure that triggered it.
func (r *Repository) MarkFailed(ctx context.Context, shipmentID int64, reason string) error {
	ctx, span := repoTracer.Start(ctx, "ShipmentRepository.MarkFailed", trace.WithAttributes(attribute.Int64("shipment.id", shipmentID)))
	defer span.End()

	_, err := r.writer.NewUpdate().
		Model((*entity.Shipment)(nil)).
		Set("status = ?", entity.ShippingFailed).
		Set("metadata = jsonb_set(COALESCE(metadata, '{}'::jsonb), '{error}', to_jsonb(?::text))", reason).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", shipmentID).
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
	}
	return err
}

// ApplyCarrierUpdate reconciles a carrier-reported status onto the shipment
// located by tracking number, merging the raw payload into metadata as an
// audit trail. The first transition into delivered cascades the owning order
// to delivered in the same transaction.
func (r *Repository) ApplyCarrierUpdate(ctx context.Context, trackingNumber string, status entity.ShippingStatus, raw map[string]any) (entity.ShipmentReconciliation, *entity.Shipment, error) {
	ctx, span := repoTracer.Start(ctx, "ShipmentRepository.ApplyCarrierUpdate", trace.WithAttributes(
		attribute.String("shipment.tracking_number", trackingNumber),
		attribute.String("shipment.status", string(status)),
	))
	defer span.End()

	var result entity.ShipmentReconciliation
	var shipment *entity.Shipment
	err := r.writer.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		locked := new(entity.Shipment)
		err := tx.NewSelect().
			Model(locked).
			Where("tracking_number = ?", trackingNumber).
			For("UPDATE").
			Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		result = entity.ApplyShipmentStatus(locked, status, now)

		if len(raw) > 0 {
			if locked.Metadata == nil {
				locked.Metadata = make(map[string]any, len(raw))
			}
			for k, v := range raw {
				locked.Metadata[k] = v
			}
			locked.UpdatedAt = now
		}

		if _, err := tx.NewUpdate().Model(locked).WherePK().Exec(ctx); err != nil {
			return err
		}

		if result.FirstDelivered {
			order := new(entity.Order)
			if err := tx.NewSelect().Model(order).Where("id = ?", locked.OrderID).For("UPDATE").Scan(ctx); err != nil {
				return err
			}
			change, err := entity.Transition(order, entity.OrderDelivered, "Delivered by carrier", "system", now)

			var invalid *entity.ErrInvalidTransition
			if errors.As(err, &invalid) {
				// The carrier reports delivery but the order never reached
				// shipped. Keep the shipment's delivered stamp and flag the
				// order instead of rolling everything back.
				result.CascadeFailed = true
				if locked.Metadata == nil {
					locked.Metadata = make(map[string]any, 1)
				}
				locked.Metadata["cascade_error"] = invalid.Error()
				if _, err := tx.NewUpdate().Model(locked).WherePK().Exec(ctx); err != nil {
					return err
				}
				review := &entity.OrderStatusHistory{
					OrderID:   order.ID,
					Status:    string(order.Status),
					Notes:     "carrier reported delivery in state " + string(order.Status) + ", manual review required",
					ChangedBy: "system",
					CreatedAt: now,
				}
				if _, err := tx.NewInsert().Model(review).Exec(ctx); err != nil {
					return err
				}
			} else if err != nil {
				return err
			} else {
				if _, err := tx.NewUpdate().
					Model(order).
					Column("status", "payment_status", "paid_at", "shipped_at", "delivered_at", "updated_at").
					WherePK().
					Exec(ctx); err != nil {
					return err
				}
				if _, err := tx.NewInsert().Model(change.History(order.ID)).Exec(ctx); err != nil {
					return err
				}
			}
		}

		shipment = locked
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "carrier reconcile failed")
		return entity.ShipmentReconciliation{}, nil, err
	}
	return result, shipment, nil
}

func lockShipment(ctx context.Context, tx bun.Tx, id int64) (*entity.Shipment, error) {
	shipment := new(entity.Shipment)
	err := tx.NewSelect().
		Model(shipment).
		Where("id = ?", id).
		For("UPDATE").
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return shipment, nil
}
