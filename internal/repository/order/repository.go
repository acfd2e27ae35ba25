package order

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
	cartrepo "github.com/Additional-Code/emporia/internal/repository/cart"
	productrepo "github.com/Additional-Code/emporia/internal/repository/product"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/emporia/repository/order")

// ErrNotFound is returned when an order is missing.
var ErrNotFound = errors.New("order not found")

// Repository encapsulates read/write access for the order aggregate. All
// status transitions go through a writer transaction that re-reads the order
// row under a FOR UPDATE lock, so concurrent webhooks, user actions, and the
// expiration sweep cannot lose each other's updates.
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

// CheckoutWrite bundles the rows checkout persists in one unit of work.
// BillingAddress may be nil when it matches the shipping address.
type CheckoutWrite struct {
	Order           *entity.Order
	Items           []*entity.OrderItem
	ShippingAddress *entity.OrderAddress
	BillingAddress  *entity.OrderAddress
	CartID          int64
}

// CreateFromCheckout persists an order with its snapshots, decrements product
// stock per line, appends the initial history entry, and clears the cart, all
// in one transaction. Any failure rolls back every write.
func (r *Repository) CreateFromCheckout(ctx context.Context, w *CheckoutWrite) (*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.CreateFromCheckout", trace.WithAttributes(attribute.String("order.number", w.Order.Number)))
	defer span.End()

	err := r.writer.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(w.ShippingAddress).Exec(ctx); err != nil {
			return err
		}
		w.Order.ShippingAddressID = w.ShippingAddress.ID
		w.Order.BillingAddressID = w.ShippingAddress.ID

		if w.BillingAddress != nil {
			if _, err := tx.NewInsert().Model(w.BillingAddress).Exec(ctx); err != nil {
				return err
			}
			w.Order.BillingAddressID = w.BillingAddress.ID
		}

		if _, err := tx.NewInsert().Model(w.Order).Exec(ctx); err != nil {
			return err
		}

		for _, item := range w.Items {
			item.OrderID = w.Order.ID
			if _, err := tx.NewInsert().Model(item).Exec(ctx); err != nil {
				return err
			}
			if err := productrepo.DecrementStock(ctx, tx, item.ProductID, item.Quantity); err != nil {
				return err
			}
		}

		history := &entity.OrderStatusHistory{
			OrderID:   w.Order.ID,
			Status:    string(w.Order.Status),
			Notes:     "Order created",
			ChangedBy: "system",
			CreatedAt: w.Order.CreatedAt,
		}
		if _, err := tx.NewInsert().Model(history).Exec(ctx); err != nil {
			return err
		}

		return cartrepo.Clear(ctx, tx, w.CartID)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "checkout write failed")
		return nil, err
	}

	w.Order.Items = w.Items
	w.Order.ShippingAddress = w.ShippingAddress
	if w.BillingAddress != nil {
		w.Order.BillingAddress = w.BillingAddress
	} else {
		w.Order.BillingAddress = w.ShippingAddress
	}
	return w.Order, nil
}

// GetByID fetches an order with items and addresses using the read replica
// when available.
func (r *Repository) GetByID(ctx context.Context, id int64) (*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.GetByID", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order := new(entity.Order)
	err := r.reader.NewSelect().
		Model(order).
		Relation("Items").
		Relation("ShippingAddress").
		Relation("BillingAddress").
		Where("\"order\".id = ?", id).
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
	return order, nil
}

// ListByUser returns a user's orders, most recent first.
func (r *Repository) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.ListByUser", trace.WithAttributes(attribute.Int64("user.id", userID)))
	defer span.End()

	if limit <= 0 || limit > 100 {
		limit = 20
	}

	var orders []*entity.Order
	err := r.reader.NewSelect().
		Model(&orders).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Scan(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return orders, nil
}

// History returns the order's audit trail ordered by creation time.
func (r *Repository) History(ctx context.Context, orderID int64) ([]*entity.OrderStatusHistory, error) {
	var rows []*entity.OrderStatusHistory
	err := r.reader.NewSelect().
		Model(&rows).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Scan(ctx)
	return rows, err
}

// Transition moves the order to a new status under a row lock, appending the
// history entry in the same transaction. Illegal transitions surface as
// entity.ErrInvalidTransition.
func (r *Repository) Transition(ctx context.Context, orderID int64, to entity.OrderStatus, notes, changedBy string) (*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Transition", trace.WithAttributes(
		attribute.Int64("order.id", orderID),
		attribute.String("order.to_status", string(to)),
	))
	defer span.End()

	var order *entity.Order
	err := r.writer.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		locked, err := lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}

		change, err := entity.Transition(locked, to, notes, changedBy, time.Now().UTC())
		if err != nil {
			return err
		}

		if err := updateOrder(ctx, tx, locked); err != nil {
			return err
		}
		if _, err := tx.NewInsert().Model(change.History(locked.ID)).Exec(ctx); err != nil {
			return err
		}

		order = locked
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transition failed")
		return nil, err
	}
	return order, nil
}

// Cancel cancels an order and restores the stock its items took, in one
// transaction. A pending payment track is cancelled alongside.
func (r *Repository) Cancel(ctx context.Context, orderID int64, notes, changedBy string) (*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Cancel", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	var order *entity.Order
	err := r.writer.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		locked, err := lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		change, err := entity.Transition(locked, entity.OrderCancelled, notes, changedBy, now)
		if err != nil {
			return err
		}
		if locked.PaymentStatus == entity.PaymentPending {
			locked.PaymentStatus = entity.PaymentCancelled
		}

		if err := restoreOrderStock(ctx, tx, locked.ID); err != nil {
			return err
		}
		if err := updateOrder(ctx, tx, locked); err != nil {
			return err
		}
		if _, err := tx.NewInsert().Model(change.History(locked.ID)).Exec(ctx); err != nil {
			return err
		}

		order = locked
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "cancel failed")
		return nil, err
	}
	return order, nil
}

// SelectExpiredCandidates returns ids of orders still pending on both tracks
// created at or before the cutoff. Candidates are re-checked under lock
// before anything is written.
func (r *Repository) SelectExpiredCandidates(ctx context.Context, cutoff time.Time) ([]int64, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.SelectExpiredCandidates")
	defer span.End()

	var ids []int64
	err := r.reader.NewSelect().
		Model((*entity.Order)(nil)).
		Column("id").
		Where("status = ?", entity.OrderPending).
		Where("payment_status = ?", entity.PaymentPending).
		Where("created_at <= ?", cutoff).
		Order("created_at ASC").
		Scan(ctx, &ids)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return ids, nil
}

// ExpireUnpaid cancels one stale unpaid order in its own short transaction.
// The order is re-read under lock and its eligibility re-checked, so an order
// reconciled by a payment webhook between selection and processing is left
// alone. Returns whether the order was expired.
func (r *Repository) ExpireUnpaid(ctx context.Context, orderID int64, cutoff time.Time, notes string) (bool, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.ExpireUnpaid", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	applied := false
	err := r.writer.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		locked, err := lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}

		if locked.Status != entity.OrderPending ||
			locked.PaymentStatus != entity.PaymentPending ||
			locked.CreatedAt.After(cutoff) {
			return nil
		}

		now := time.Now().UTC()
		change, err := entity.Transition(locked, entity.OrderCancelled, notes, "system", now)
		if err != nil {
			return err
		}
		locked.PaymentStatus = entity.PaymentCancelled

		if err := restoreOrderStock(ctx, tx, locked.ID); err != nil {
			return err
		}
		if err := updateOrder(ctx, tx, locked); err != nil {
			return err
		}
		if _, err := tx.NewInsert().Model(change.History(locked.ID)).Exec(ctx); err != nil {
			return err
		}

		applied = true
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "expire failed")
		return false, err
	}
	return applied, nil
}

// ApplyPaymentUpdate reconciles a gateway-reported status onto the payment
// attempt and its order under a row lock, merging gateway metadata and
// appending history in the same transaction.
func (r *Repository) ApplyPaymentUpdate(ctx context.Context, paymentID int64, status entity.PaymentStatus, detail string, metadata map[string]any) (entity.PaymentReconciliation, *entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.ApplyPaymentUpdate", trace.WithAttributes(
		attribute.Int64("payment.id", paymentID),
		attribute.String("payment.status", string(status)),
	))
	defer span.End()

	var result entity.PaymentReconciliation
	var order *entity.Order
	err := r.writer.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		payment := new(entity.Payment)
		if err := tx.NewSelect().Model(payment).Where("id = ?", paymentID).Scan(ctx); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}

		locked, err := lockOrder(ctx, tx, payment.OrderID)
		if err != nil {
			return err
		}

		// Re-read the attempt under the order lock; a concurrent webhook may
		// have advanced it between the unlocked read and here.
		if err := tx.NewSelect().Model(payment).Where("id = ?", paymentID).For("UPDATE").Scan(ctx); err != nil {
			return err
		}

		result = entity.ApplyPaymentStatus(locked, payment, status, detail, time.Now().UTC())

		if len(metadata) > 0 {
			if payment.Metadata == nil {
				payment.Metadata = make(map[string]any, len(metadata))
			}
			for k, v := range metadata {
				payment.Metadata[k] = v
			}
		}

		if _, err := tx.NewUpdate().
			Model(payment).
			Column("status", "metadata", "updated_at").
			WherePK().
			Exec(ctx); err != nil {
			return err
		}

		if err := updateOrder(ctx, tx, locked); err != nil {
			return err
		}

		if result.History != nil {
			if _, err := tx.NewInsert().Model(result.History).Exec(ctx); err != nil {
				return err
			}
		}

		order = locked
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "payment reconcile failed")
		return entity.PaymentReconciliation{}, nil, err
	}
	return result, order, nil
}

func lockOrder(ctx context.Context, tx bun.Tx, orderID int64) (*entity.Order, error) {
	order := new(entity.Order)
	err := tx.NewSelect().
		Model(order).
		Where("id = ?", orderID).
		For("UPDATE").
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return order, nil
}

func updateOrder(ctx context.Context, tx bun.Tx, order *entity.Order) error {
	_, err := tx.NewUpdate().
		Model(order).
		Column("status", "payment_status", "paid_at", "shipped_at", "delivered_at", "updated_at").
		WherePK().
		Exec(ctx)
	return err
}

func restoreOrderStock(ctx context.Context, tx bun.Tx, orderID int64) error {
	var items []*entity.OrderItem
	if err := tx.NewSelect().Model(&items).Where("order_id = ?", orderID).Scan(ctx); err != nil {
		return err
	}
	for _, item := range items {
		if err := productrepo.RestoreStock(ctx, tx, item.ProductID, item.Quantity); err != nil {
			return err
		}
	}
	return nil
}
