package stats

import (
	"context"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/cargomesh/freightbid/internal/database"
	"github.com/cargomesh/freightbid/internal/entity"
	"github.com/cargomesh/freightbid/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/cargomesh/freightbid/service/stats")

// Summary is the admin control-panel aggregate, computed on read.
type Summary struct {
	TotalRFQs      int `json:"total_rfqs"`
	DraftRFQs      int `json:"draft_rfqs"`
	LiveRFQs       int `json:"live_rfqs"`
	ClosedRFQs     int `json:"closed_rfqs"`
	TotalBids      int `json:"total_bids"`
	BiddingVendors int `json:"bidding_vendors"`
	Organizations  int `json:"organizations"`
	Vendors        int `json:"vendors"`
}

// Service computes marketplace aggregates from the read replica.
type Service struct {
	reader *bun.DB
	logger *zap.Logger
}

// NewService wires the stats service.
func NewService(conns *database.Connections, logger *zap.Logger) *Service {
	return &Service{reader: conns.Reader, logger: logger}
}

// Summarize counts RFQs by status, bids, and participating accounts.
func (s *Service) Summarize(ctx context.Context) (*Summary, error) {
	ctx, span := serviceTracer.Start(ctx, "StatsService.Summarize")
	defer span.End()

	summary := new(Summary)

	type statusCount struct {
		Status entity.RFQStatus `bun:"status"`
		Count  int              `bun:"count"`
	}
	var byStatus []statusCount
	err := s.reader.NewSelect().Model((*entity.RFQ)(nil)).
		Column("status").
		ColumnExpr("COUNT(*) AS count").
		Group("status").
		Scan(ctx, &byStatus)
	if err != nil {
		span.RecordError(err)
		return nil, errorbank.Internal("failed to count rfqs", errorbank.WithCause(err))
	}
	for _, sc := range byStatus {
		summary.TotalRFQs += sc.Count
		switch sc.Status {
		case entity.RFQDraft:
			summary.DraftRFQs = sc.Count
		case entity.RFQLive:
			summary.LiveRFQs = sc.Count
		case entity.RFQClosed:
			summary.ClosedRFQs = sc.Count
		}
	}

	summary.TotalBids, err = s.reader.NewSelect().Model((*entity.Bid)(nil)).Count(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, errorbank.Internal("failed to count bids", errorbank.WithCause(err))
	}

	err = s.reader.NewSelect().Model((*entity.Bid)(nil)).
		ColumnExpr("COUNT(DISTINCT vendor_id)").
		Scan(ctx, &summary.BiddingVendors)
	if err != nil {
		span.RecordError(err)
		return nil, errorbank.Internal("failed to count bidding vendors", errorbank.WithCause(err))
	}

	summary.Organizations, err = s.reader.NewSelect().Model((*entity.Profile)(nil)).
		Where("role = ?", entity.RoleOrg).
		Count(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, errorbank.Internal("failed to count organizations", errorbank.WithCause(err))
	}

	summary.Vendors, err = s.reader.NewSelect().Model((*entity.Profile)(nil)).
		Where("role = ?", entity.RoleVendor).
		Count(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, errorbank.Internal("failed to count vendors", errorbank.WithCause(err))
	}

	return summary, nil
}
