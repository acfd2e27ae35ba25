package seeder

import (
	"context"
	"time"

	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/Additional-Code/emporia/internal/database"
	"github.com/Additional-Code/emporia/internal/entity"
)

// Seeder performs database seeding for local/dev setups.
type Seeder struct {
	db     *bun.DB
	logger *zap.Logger
}

// New constructs a Seeder backed by the primary database connection.
func New(conns *database.Connections, logger *zap.Logger) *Seeder {
	return &Seeder{db: conns.Writer, logger: logger}
}

// Catalog seeds products and coupons if they are missing. Inserts are
// conflict-safe so the command can be rerun.
func (s *Seeder) Catalog(ctx context.Context) error {
	if err := s.products(ctx); err != nil {
		return err
	}
	return s.coupons(ctx)
}

func (s *Seeder) products(ctx context.Context) error {
	now := time.Now().UTC()
	samples := []entity.Product{
		{Name: "Ceramic Mug", SKU: "MUG-001", Price: 12.50, WeightKg: 0.4, Stock: 120, Active: true, CreatedAt: now, UpdatedAt: now},
		{Name: "Canvas Tote Bag", SKU: "TOTE-001", Price: 18.00, WeightKg: 0.2, Stock: 80, Active: true, CreatedAt: now, UpdatedAt: now},
		{Name: "Notebook A5", SKU: "NB-A5", Price: 7.90, WeightKg: 0.3, Stock: 200, Active: true, CreatedAt: now, UpdatedAt: now},
		{Name: "Desk Lamp", SKU: "LAMP-001", Price: 54.00, WeightKg: 1.1, Stock: 35, Active: true, CreatedAt: now, UpdatedAt: now},
		{Name: "Vintage Poster", SKU: "POST-001", Price: 22.00, WeightKg: 0.1, Stock: 0, Active: false, CreatedAt: now, UpdatedAt: now},
	}

	for _, sample := range samples {
		product := sample
		_, err := s.db.NewInsert().Model(&product).
			On("CONFLICT (sku) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return err
		}
	}

	if s.logger != nil {
		s.logger.Info("seeded products", zap.Int("count", len(samples)))
	}
	return nil
}

func (s *Seeder) coupons(ctx context.Context) error {
	now := time.Now().UTC()
	expires := now.AddDate(0, 3, 0)
	samples := []entity.Coupon{
		{Code: "WELCOME10", Kind: entity.CouponPercentage, Value: 10, MinSubtotal: 0, Active: true, ExpiresAt: &expires, CreatedAt: now},
		{Code: "SAVE5", Kind: entity.CouponFixed, Value: 5, MinSubtotal: 30, Active: true, CreatedAt: now},
		{Code: "EXPIRED20", Kind: entity.CouponPercentage, Value: 20, MinSubtotal: 0, Active: false, CreatedAt: now},
	}

	for _, sample := range samples {
		coupon := sample
		_, err := s.db.NewInsert().Model(&coupon).
			On("CONFLICT (code) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return err
		}
	}

	if s.logger != nil {
		s.logger.Info("seeded coupons", zap.Int("count", len(samples)))
	}
	return nil
}
