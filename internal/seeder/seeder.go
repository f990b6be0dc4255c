package seeder

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/cargomesh/freightbid/internal/database"
	"github.com/cargomesh/freightbid/internal/entity"
)

// Module provides the seeder to Fx.
var Module = fx.Provide(New)

// Fixed ids so repeated seeding is idempotent.
var (
	seedOrgID     = uuid.MustParse("7f1c1f60-0000-4000-8000-000000000001")
	seedVendorAID = uuid.MustParse("7f1c1f60-0000-4000-8000-000000000002")
	seedVendorBID = uuid.MustParse("7f1c1f60-0000-4000-8000-000000000003")
	seedAdminID   = uuid.MustParse("7f1c1f60-0000-4000-8000-000000000004")
	seedRFQID     = uuid.MustParse("7f1c1f60-0000-4000-8000-000000000010")
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

// Marketplace seeds demo accounts and an example RFQ if missing.
func (s *Seeder) Marketplace(ctx context.Context) error {
	now := time.Now().UTC()

	profiles := []entity.Profile{
		{ID: seedOrgID, Role: entity.RoleOrg, CompanyName: "Harbor Logistics", ContactName: "Dana Reyes", ContactPhone: "+1-555-0100", CreatedAt: now},
		{ID: seedVendorAID, Role: entity.RoleVendor, CompanyName: "Northstar Freight", ContactName: "Sam Okafor", ContactPhone: "+1-555-0101", CreatedAt: now},
		{ID: seedVendorBID, Role: entity.RoleVendor, CompanyName: "Pacific Carriers", ContactName: "Mia Tanaka", ContactPhone: "+1-555-0102", CreatedAt: now},
		{ID: seedAdminID, Role: entity.RoleAdmin, CompanyName: "Freightbid Ops", ContactName: "Alex Eriksen", CreatedAt: now},
	}
	for _, sample := range profiles {
		profile := sample
		_, err := s.db.NewInsert().Model(&profile).
			On("CONFLICT (id) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return err
		}
	}

	rfq := entity.RFQ{
		ID:          seedRFQID,
		OrgID:       seedOrgID,
		Origin:      "Rotterdam",
		Destination: "Singapore",
		Description: "Two 40ft reefer containers, pharma-grade, continuous cold chain.",
		Status:      entity.RFQDraft,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	_, err := s.db.NewInsert().Model(&rfq).
		On("CONFLICT (id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return err
	}

	if s.logger != nil {
		s.logger.Info("seeded marketplace", zap.Int("profiles", len(profiles)), zap.Int("rfqs", 1))
	}
	return nil
}
