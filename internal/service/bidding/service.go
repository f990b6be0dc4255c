package bidding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/cargomesh/freightbid/internal/cache"
	"github.com/cargomesh/freightbid/internal/config"
	"github.com/cargomesh/freightbid/internal/entity"
	"github.com/cargomesh/freightbid/internal/messaging"
	bidrepo "github.com/cargomesh/freightbid/internal/repository/bid"
	rfqrepo "github.com/cargomesh/freightbid/internal/repository/rfq"
	"github.com/cargomesh/freightbid/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/cargomesh/freightbid/service/bidding")

// RFQStore is the persistence surface the engine drives RFQ and round
// state through. Implementations must apply each transition atomically
// with its status precondition and report the rfq repository sentinels
// (ErrNotFound, ErrStatusConflict, ErrRoundHasBids, ErrBidNotFound,
// ErrNoActiveRound) on rejection.
type RFQStore interface {
	Create(ctx context.Context, rfq *entity.RFQ) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.RFQ, error)
	ListByOrg(ctx context.Context, orgID uuid.UUID) ([]entity.RFQ, error)
	ListByStatus(ctx context.Context, statuses ...entity.RFQStatus) ([]entity.RFQ, error)
	ListAll(ctx context.Context) ([]entity.RFQ, error)
	ActiveRound(ctx context.Context, rfqID uuid.UUID) (*entity.Round, error)
	Publish(ctx context.Context, rfqID uuid.UUID) (*entity.RFQ, *entity.Round, error)
	Unpublish(ctx context.Context, rfqID uuid.UUID) (*entity.RFQ, error)
	Close(ctx context.Context, rfqID uuid.UUID) (*entity.RFQ, error)
	SelectWinner(ctx context.Context, rfqID, bidID uuid.UUID) (*entity.RFQ, *entity.Bid, error)
}

// BidLedger is the persistence surface for bids. Insert must enforce
// one bid per (round, vendor) via a uniqueness constraint and report
// the bid repository's ErrDuplicate when it fires.
type BidLedger interface {
	Insert(ctx context.Context, b *entity.Bid) error
	ListByRound(ctx context.Context, roundID uuid.UUID) ([]entity.Bid, error)
	ListByRFQ(ctx context.Context, rfqID uuid.UUID) ([]entity.Bid, error)
}

// Service is the bidding engine: the only component that mutates RFQ
// status, round status, or the winner flag.
type Service struct {
	rfqs      RFQStore
	bids      BidLedger
	cache     cache.Store
	cacheTTL  time.Duration
	logger    *zap.Logger
	publisher messaging.Client
	messaging messagingConfig
}

// messagingConfig contains messaging specific knobs we care about.
type messagingConfig struct {
	enabled bool
	topic   string
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	RFQs      *rfqrepo.Repository
	Bids      *bidrepo.Repository
	Cache     cache.Store
	Config    config.Config
	Logger    *zap.Logger
	Publisher messaging.Client
}

// New wires the engine from the Fx graph.
func New(p Params) *Service {
	return NewService(p.RFQs, p.Bids, p.Cache, p.Config, p.Logger, p.Publisher)
}

// NewService constructs the engine from explicit collaborators.
func NewService(rfqs RFQStore, bids BidLedger, cacheStore cache.Store, cfg config.Config, logger *zap.Logger, publisher messaging.Client) *Service {
	return &Service{
		rfqs:      rfqs,
		bids:      bids,
		cache:     cacheStore,
		cacheTTL:  cfg.Cache.DefaultTTL,
		logger:    logger,
		publisher: publisher,
		messaging: messagingConfig{
			enabled: cfg.Messaging.Enabled,
			topic:   cfg.Messaging.Kafka.Topic,
		},
	}
}

// CreateRFQ creates a new RFQ in DRAFT for the calling organization.
func (s *Service) CreateRFQ(ctx context.Context, p Principal, origin, destination, description string) (*entity.RFQ, error) {
	if !p.IsOrg() {
		return nil, errForbidden("only organizations can create rfqs")
	}
	if strings.TrimSpace(origin) == "" || strings.TrimSpace(destination) == "" {
		return nil, errorbank.BadRequest("origin and destination are required")
	}

	ctx, span := serviceTracer.Start(ctx, "BiddingService.CreateRFQ")
	defer span.End()

	now := time.Now().UTC()
	rfq := &entity.RFQ{
		ID:          uuid.New(),
		OrgID:       p.ID,
		Origin:      origin,
		Destination: destination,
		Description: description,
		Status:      entity.RFQDraft,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.rfqs.Create(ctx, rfq); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to create rfq", errorbank.WithCause(err))
	}

	if s.logger != nil {
		s.logger.Info("rfq created",
			zap.String("rfq_id", rfq.ID.String()),
			zap.String("org_id", p.ID.String()),
		)
	}
	return rfq, nil
}

// Publish transitions an owned RFQ DRAFT -> LIVE and opens the next
// bidding round.
func (s *Service) Publish(ctx context.Context, p Principal, rfqID uuid.UUID) (*entity.RFQ, error) {
	ctx, span := serviceTracer.Start(ctx, "BiddingService.Publish", trace.WithAttributes(attribute.String("rfq.id", rfqID.String())))
	defer span.End()

	rfq, err := s.loadOwned(ctx, p, rfqID)
	if err != nil {
		return nil, err
	}
	if rfq.Status != entity.RFQDraft {
		return nil, errInvalidTransition(fmt.Sprintf("cannot publish rfq in status %s", rfq.Status))
	}

	updated, round, err := s.rfqs.Publish(ctx, rfqID)
	if errors.Is(err, rfqrepo.ErrStatusConflict) {
		return nil, errInvalidTransition("rfq is no longer in draft")
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to publish rfq", errorbank.WithCause(err))
	}

	s.invalidate(ctx, rfqID)
	s.publishEvent(ctx, LifecycleEvent{
		Type:       EventRFQPublished,
		RFQID:      updated.ID,
		OrgID:      updated.OrgID,
		RoundNo:    round.RoundNo,
		OccurredAt: time.Now().UTC(),
	})

	if s.logger != nil {
		s.logger.Info("rfq published",
			zap.String("rfq_id", rfqID.String()),
			zap.Int("round_no", round.RoundNo),
		)
	}
	return updated, nil
}

// Unpublish returns an owned RFQ LIVE -> DRAFT, closing the active
// round. Blocked once the round has bids: reopening after vendors have
// committed would silently invalidate their work.
func (s *Service) Unpublish(ctx context.Context, p Principal, rfqID uuid.UUID) (*entity.RFQ, error) {
	ctx, span := serviceTracer.Start(ctx, "BiddingService.Unpublish", trace.WithAttributes(attribute.String("rfq.id", rfqID.String())))
	defer span.End()

	rfq, err := s.loadOwned(ctx, p, rfqID)
	if err != nil {
		return nil, err
	}
	if rfq.Status != entity.RFQLive {
		return nil, errInvalidTransition(fmt.Sprintf("cannot unpublish rfq in status %s", rfq.Status))
	}

	updated, err := s.rfqs.Unpublish(ctx, rfqID)
	switch {
	case errors.Is(err, rfqrepo.ErrRoundHasBids):
		return nil, errRoundHasBids()
	case errors.Is(err, rfqrepo.ErrStatusConflict), errors.Is(err, rfqrepo.ErrNoActiveRound):
		return nil, errInvalidTransition("rfq is no longer live")
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to unpublish rfq", errorbank.WithCause(err))
	}

	s.invalidate(ctx, rfqID)

	if s.logger != nil {
		s.logger.Info("rfq unpublished", zap.String("rfq_id", rfqID.String()))
	}
	return updated, nil
}

// Close transitions an owned RFQ LIVE -> CLOSED without a winner.
func (s *Service) Close(ctx context.Context, p Principal, rfqID uuid.UUID) (*entity.RFQ, error) {
	ctx, span := serviceTracer.Start(ctx, "BiddingService.Close", trace.WithAttributes(attribute.String("rfq.id", rfqID.String())))
	defer span.End()

	rfq, err := s.loadOwned(ctx, p, rfqID)
	if err != nil {
		return nil, err
	}
	if rfq.Status != entity.RFQLive {
		return nil, errInvalidTransition(fmt.Sprintf("cannot close rfq in status %s", rfq.Status))
	}

	updated, err := s.rfqs.Close(ctx, rfqID)
	if errors.Is(err, rfqrepo.ErrStatusConflict) {
		return nil, errInvalidTransition("rfq is no longer live")
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to close rfq", errorbank.WithCause(err))
	}

	s.invalidate(ctx, rfqID)
	s.publishEvent(ctx, LifecycleEvent{
		Type:       EventRFQClosed,
		RFQID:      updated.ID,
		OrgID:      updated.OrgID,
		OccurredAt: time.Now().UTC(),
	})

	if s.logger != nil {
		s.logger.Info("rfq closed", zap.String("rfq_id", rfqID.String()))
	}
	return updated, nil
}

// SelectWinner flags the bid as winner and closes the RFQ and its
// active round in one atomic step. Of two racing selections exactly one
// succeeds; the loser gets AlreadyDecided.
func (s *Service) SelectWinner(ctx context.Context, p Principal, rfqID, bidID uuid.UUID) (*entity.RFQ, *entity.Bid, error) {
	ctx, span := serviceTracer.Start(ctx, "BiddingService.SelectWinner", trace.WithAttributes(
		attribute.String("rfq.id", rfqID.String()),
		attribute.String("bid.id", bidID.String()),
	))
	defer span.End()

	rfq, err := s.loadOwned(ctx, p, rfqID)
	if err != nil {
		return nil, nil, err
	}
	switch rfq.Status {
	case entity.RFQClosed:
		return nil, nil, errAlreadyDecided()
	case entity.RFQDraft:
		return nil, nil, errInvalidTransition("cannot select a winner on a draft rfq")
	}

	updated, winner, err := s.rfqs.SelectWinner(ctx, rfqID, bidID)
	switch {
	case errors.Is(err, rfqrepo.ErrStatusConflict):
		return nil, nil, errAlreadyDecided()
	case errors.Is(err, rfqrepo.ErrBidNotFound):
		return nil, nil, errBidNotFound()
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, nil, errorbank.Internal("failed to select winner", errorbank.WithCause(err))
	}

	s.invalidate(ctx, rfqID)
	s.publishEvent(ctx, LifecycleEvent{
		Type:       EventRFQAwarded,
		RFQID:      updated.ID,
		OrgID:      updated.OrgID,
		BidID:      &winner.ID,
		VendorID:   &winner.VendorID,
		Price:      &winner.Price,
		OccurredAt: time.Now().UTC(),
	})

	if s.logger != nil {
		s.logger.Info("rfq awarded",
			zap.String("rfq_id", rfqID.String()),
			zap.String("bid_id", bidID.String()),
			zap.String("vendor_id", winner.VendorID.String()),
		)
	}
	return updated, winner, nil
}

// SubmitBid records a vendor's offer against the RFQ's active round.
func (s *Service) SubmitBid(ctx context.Context, p Principal, rfqID uuid.UUID, price decimal.Decimal, transitDays int) (*entity.Bid, error) {
	if !p.IsVendor() {
		return nil, errForbidden("only vendors can submit bids")
	}
	if !price.IsPositive() {
		return nil, errInvalidBidValue("price must be positive")
	}
	if transitDays <= 0 {
		return nil, errInvalidBidValue("transit days must be positive")
	}

	ctx, span := serviceTracer.Start(ctx, "BiddingService.SubmitBid", trace.WithAttributes(attribute.String("rfq.id", rfqID.String())))
	defer span.End()

	rfq, err := s.rfqs.GetByID(ctx, rfqID)
	if errors.Is(err, rfqrepo.ErrNotFound) {
		return nil, errNotFound("rfq not found")
	}
	if err != nil {
		span.RecordError(err)
		return nil, errorbank.Internal("failed to load rfq", errorbank.WithCause(err))
	}
	if rfq.Status != entity.RFQLive {
		return nil, errRFQNotOpen()
	}

	round, err := s.rfqs.ActiveRound(ctx, rfqID)
	if errors.Is(err, rfqrepo.ErrNoActiveRound) {
		return nil, errRFQNotOpen()
	}
	if err != nil {
		span.RecordError(err)
		return nil, errorbank.Internal("failed to load active round", errorbank.WithCause(err))
	}

	b := &entity.Bid{
		ID:          uuid.New(),
		RFQID:       rfqID,
		RoundID:     round.ID,
		VendorID:    p.ID,
		Price:       price,
		TransitDays: transitDays,
		SubmittedAt: time.Now().UTC(),
	}
	if err := s.bids.Insert(ctx, b); err != nil {
		if errors.Is(err, bidrepo.ErrDuplicate) {
			return nil, errDuplicateBid()
		}
		if errors.Is(err, bidrepo.ErrRoundClosed) {
			return nil, errRFQNotOpen()
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to submit bid", errorbank.WithCause(err))
	}

	s.publishEvent(ctx, LifecycleEvent{
		Type:       EventBidSubmitted,
		RFQID:      rfqID,
		OrgID:      rfq.OrgID,
		RoundNo:    round.RoundNo,
		BidID:      &b.ID,
		VendorID:   &b.VendorID,
		OccurredAt: time.Now().UTC(),
	})

	if s.logger != nil {
		s.logger.Info("bid submitted",
			zap.String("rfq_id", rfqID.String()),
			zap.String("vendor_id", p.ID.String()),
			zap.Int("round_no", round.RoundNo),
		)
	}
	return b, nil
}

// ListRanked returns the RFQ's bids in rank order, filtered to what the
// caller is allowed to see. While the RFQ is live the set is the active
// round; once closed it is every bid across rounds.
func (s *Service) ListRanked(ctx context.Context, p Principal, rfqID uuid.UUID) ([]RankedBid, error) {
	ctx, span := serviceTracer.Start(ctx, "BiddingService.ListRanked", trace.WithAttributes(attribute.String("rfq.id", rfqID.String())))
	defer span.End()

	rfq, err := s.visibleRFQ(ctx, p, rfqID)
	if err != nil {
		return nil, err
	}

	var bids []entity.Bid
	if rfq.Status == entity.RFQClosed {
		bids, err = s.bids.ListByRFQ(ctx, rfqID)
	} else {
		round, roundErr := s.rfqs.ActiveRound(ctx, rfqID)
		if errors.Is(roundErr, rfqrepo.ErrNoActiveRound) {
			return []RankedBid{}, nil
		}
		if roundErr != nil {
			span.RecordError(roundErr)
			return nil, errorbank.Internal("failed to load active round", errorbank.WithCause(roundErr))
		}
		bids, err = s.bids.ListByRound(ctx, round.ID)
	}
	if err != nil {
		span.RecordError(err)
		return nil, errorbank.Internal("failed to load bids", errorbank.WithCause(err))
	}

	ranked := Rank(bids)
	if p.IsVendor() {
		own := make([]RankedBid, 0, 1)
		for _, rb := range ranked {
			if rb.Bid.VendorID == p.ID {
				own = append(own, rb)
			}
		}
		return own, nil
	}
	return ranked, nil
}

// GetRFQ returns the RFQ detail when the caller is entitled to see it,
// consulting cache when available.
func (s *Service) GetRFQ(ctx context.Context, p Principal, rfqID uuid.UUID) (*entity.RFQ, error) {
	ctx, span := serviceTracer.Start(ctx, "BiddingService.GetRFQ", trace.WithAttributes(attribute.String("rfq.id", rfqID.String())))
	defer span.End()

	return s.visibleRFQ(ctx, p, rfqID)
}

// ListRFQs returns the role-scoped RFQ listing: organizations see their
// own, vendors see the LIVE/CLOSED inbox, admins see everything.
func (s *Service) ListRFQs(ctx context.Context, p Principal) ([]entity.RFQ, error) {
	ctx, span := serviceTracer.Start(ctx, "BiddingService.ListRFQs")
	defer span.End()

	var (
		rfqs []entity.RFQ
		err  error
	)
	switch {
	case p.IsAdmin():
		rfqs, err = s.rfqs.ListAll(ctx)
	case p.IsOrg():
		rfqs, err = s.rfqs.ListByOrg(ctx, p.ID)
	case p.IsVendor():
		rfqs, err = s.rfqs.ListByStatus(ctx, entity.RFQLive, entity.RFQClosed)
	default:
		return nil, errForbidden("unknown role")
	}
	if err != nil {
		span.RecordError(err)
		return nil, errorbank.Internal("failed to list rfqs", errorbank.WithCause(err))
	}
	return rfqs, nil
}

// loadOwned resolves an RFQ for an organization-scoped operation. A
// non-ORG caller gets Forbidden; an RFQ owned by another organization
// reads as NotFound so ownership probes reveal nothing.
func (s *Service) loadOwned(ctx context.Context, p Principal, rfqID uuid.UUID) (*entity.RFQ, error) {
	if !p.IsOrg() {
		return nil, errForbidden("operation requires the organization role")
	}
	rfq, err := s.rfqs.GetByID(ctx, rfqID)
	if errors.Is(err, rfqrepo.ErrNotFound) {
		return nil, errNotFound("rfq not found")
	}
	if err != nil {
		return nil, errorbank.Internal("failed to load rfq", errorbank.WithCause(err))
	}
	if rfq.OrgID != p.ID {
		return nil, errNotFound("rfq not found")
	}
	return rfq, nil
}

// visibleRFQ resolves an RFQ for a read, applying role visibility:
// admins see everything, organizations their own, vendors only
// LIVE/CLOSED. Invisible collapses to NotFound.
func (s *Service) visibleRFQ(ctx context.Context, p Principal, rfqID uuid.UUID) (*entity.RFQ, error) {
	if rfq, err := s.getFromCache(ctx, rfqID); err == nil {
		return s.filterVisible(p, rfq)
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		if s.logger != nil {
			s.logger.Warn("rfq cache read failed", zap.String("rfq_id", rfqID.String()), zap.Error(err))
		}
	}

	rfq, err := s.rfqs.GetByID(ctx, rfqID)
	if errors.Is(err, rfqrepo.ErrNotFound) {
		return nil, errNotFound("rfq not found")
	}
	if err != nil {
		return nil, errorbank.Internal("failed to load rfq", errorbank.WithCause(err))
	}

	if err := s.storeInCache(ctx, rfq); err != nil {
		if s.logger != nil {
			s.logger.Warn("rfq cache write failed", zap.String("rfq_id", rfqID.String()), zap.Error(err))
		}
	}
	return s.filterVisible(p, rfq)
}

func (s *Service) filterVisible(p Principal, rfq *entity.RFQ) (*entity.RFQ, error) {
	switch {
	case p.IsAdmin():
		return rfq, nil
	case p.IsOrg():
		if rfq.OrgID == p.ID {
			return rfq, nil
		}
	case p.IsVendor():
		if rfq.Status == entity.RFQLive || rfq.Status == entity.RFQClosed {
			return rfq, nil
		}
	}
	return nil, errNotFound("rfq not found")
}

func (s *Service) publishEvent(ctx context.Context, event LifecycleEvent) {
	if !s.messaging.enabled || s.publisher == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("marshal lifecycle event", zap.Error(err))
		}
		return
	}
	key := []byte(fmt.Sprintf("rfq-%s", event.RFQID))
	if err := s.publisher.Publish(ctx, key, payload); err != nil {
		if s.logger != nil {
			s.logger.Error("publish lifecycle event", zap.String("type", event.Type), zap.Error(err))
		}
	}
}

func (s *Service) cacheKey(id uuid.UUID) string {
	return fmt.Sprintf("rfqs:%s", id)
}

func (s *Service) getFromCache(ctx context.Context, id uuid.UUID) (*entity.RFQ, error) {
	if s.cache == nil {
		return nil, cache.ErrCacheMiss
	}
	bytes, err := s.cache.Get(ctx, s.cacheKey(id))
	if err != nil {
		return nil, err
	}
	var rfq entity.RFQ
	if err := json.Unmarshal(bytes, &rfq); err != nil {
		return nil, err
	}
	return &rfq, nil
}

func (s *Service) storeInCache(ctx context.Context, rfq *entity.RFQ) error {
	if s.cache == nil || rfq == nil {
		return nil
	}
	bytes, err := json.Marshal(rfq)
	if err != nil {
		return err
	}
	return s.cache.Set(ctx, s.cacheKey(rfq.ID), bytes, s.cacheTTL)
}

func (s *Service) invalidate(ctx context.Context, id uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, s.cacheKey(id)); err != nil {
		if s.logger != nil {
			s.logger.Warn("rfq cache invalidation failed", zap.String("rfq_id", id.String()), zap.Error(err))
		}
	}
}
