package rfq

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/cargomesh/freightbid/internal/database"
	"github.com/cargomesh/freightbid/internal/entity"
)

var repoTracer = otel.Tracer("github.com/cargomesh/freightbid/repository/rfq")

// Sentinel errors reported by the RFQ store. The bidding engine maps
// these onto its public error taxonomy.
var (
	ErrNotFound       = errors.New("rfq not found")
	ErrNoActiveRound  = errors.New("no active round")
	ErrStatusConflict = errors.New("rfq status changed concurrently")
	ErrRoundHasBids   = errors.New("active round has bids")
	ErrBidNotFound    = errors.New("bid not in active round")
)

// Repository owns the rfqs and rfq_rounds tables. Every status
// transition asserts the pre-transition status in the UPDATE itself, so
// concurrent transitions are serialized by the database rather than by
// check-then-write sequences.
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

// Create persists a new RFQ in DRAFT.
func (r *Repository) Create(ctx context.Context, rfq *entity.RFQ) error {
	if rfq == nil {
		return errors.New("nil rfq")
	}
	ctx, span := repoTracer.Start(ctx, "RFQRepository.Create", trace.WithAttributes(attribute.String("rfq.id", rfq.ID.String())))
	defer span.End()

	_, err := r.writer.NewInsert().Model(rfq).Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
	}
	return err
}

// GetByID fetches an RFQ by primary key using the read replica when available.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*entity.RFQ, error) {
	ctx, span := repoTracer.Start(ctx, "RFQRepository.GetByID", trace.WithAttributes(attribute.String("rfq.id", id.String())))
	defer span.End()

	rfq := new(entity.RFQ)
	err := r.reader.NewSelect().Model(rfq).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return rfq, nil
}

// ListByOrg returns all RFQs owned by the organization, newest first.
func (r *Repository) ListByOrg(ctx context.Context, orgID uuid.UUID) ([]entity.RFQ, error) {
	ctx, span := repoTracer.Start(ctx, "RFQRepository.ListByOrg")
	defer span.End()

	var rfqs []entity.RFQ
	err := r.reader.NewSelect().Model(&rfqs).
		Where("org_id = ?", orgID).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return rfqs, nil
}

// ListByStatus returns RFQs in any of the given statuses, newest first.
func (r *Repository) ListByStatus(ctx context.Context, statuses ...entity.RFQStatus) ([]entity.RFQ, error) {
	ctx, span := repoTracer.Start(ctx, "RFQRepository.ListByStatus")
	defer span.End()

	var rfqs []entity.RFQ
	err := r.reader.NewSelect().Model(&rfqs).
		Where("status IN (?)", bun.In(statuses)).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return rfqs, nil
}

// ListAll returns every RFQ, newest first.
func (r *Repository) ListAll(ctx context.Context) ([]entity.RFQ, error) {
	ctx, span := repoTracer.Start(ctx, "RFQRepository.ListAll")
	defer span.End()

	var rfqs []entity.RFQ
	err := r.reader.NewSelect().Model(&rfqs).Order("created_at DESC").Scan(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return rfqs, nil
}

// ActiveRound returns the single LIVE round of an RFQ.
func (r *Repository) ActiveRound(ctx context.Context, rfqID uuid.UUID) (*entity.Round, error) {
	ctx, span := repoTracer.Start(ctx, "RFQRepository.ActiveRound", trace.WithAttributes(attribute.String("rfq.id", rfqID.String())))
	defer span.End()

	round := new(entity.Round)
	err := r.reader.NewSelect().Model(round).
		Where("rfq_id = ?", rfqID).
		Where("status = ?", entity.RoundLive).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoActiveRound
	}
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return round, nil
}

// Publish moves the RFQ DRAFT -> LIVE and opens the next round, both in
// one transaction. Returns ErrStatusConflict when the RFQ is not DRAFT
// at commit time.
func (r *Repository) Publish(ctx context.Context, rfqID uuid.UUID) (*entity.RFQ, *entity.Round, error) {
	ctx, span := repoTracer.Start(ctx, "RFQRepository.Publish", trace.WithAttributes(attribute.String("rfq.id", rfqID.String())))
	defer span.End()

	var (
		rfq   entity.RFQ
		round entity.Round
	)
	err := r.writer.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().Model((*entity.RFQ)(nil)).
			Set("status = ?", entity.RFQLive).
			Set("updated_at = ?", time.Now().UTC()).
			Where("id = ?", rfqID).
			Where("status = ?", entity.RFQDraft).
			Exec(ctx)
		if err != nil {
			return err
		}
		if affected, _ := res.RowsAffected(); affected == 0 {
			return ErrStatusConflict
		}

		var maxNo int
		err = tx.NewSelect().Model((*entity.Round)(nil)).
			ColumnExpr("COALESCE(MAX(round_no), 0)").
			Where("rfq_id = ?", rfqID).
			Scan(ctx, &maxNo)
		if err != nil {
			return err
		}

		round = entity.Round{
			ID:        uuid.New(),
			RFQID:     rfqID,
			RoundNo:   maxNo + 1,
			Status:    entity.RoundLive,
			CreatedAt: time.Now().UTC(),
		}
		if _, err := tx.NewInsert().Model(&round).Exec(ctx); err != nil {
			return err
		}

		return tx.NewSelect().Model(&rfq).Where("id = ?", rfqID).Scan(ctx)
	})
	if err != nil {
		if !errors.Is(err, ErrStatusConflict) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "publish failed")
		}
		return nil, nil, err
	}
	return &rfq, &round, nil
}

// Unpublish moves the RFQ LIVE -> DRAFT and closes the active round.
// The bid check runs inside the same transaction so a bid landing
// concurrently cannot be stranded silently; in that case the whole
// transition rolls back with ErrRoundHasBids.
func (r *Repository) Unpublish(ctx context.Context, rfqID uuid.UUID) (*entity.RFQ, error) {
	ctx, span := repoTracer.Start(ctx, "RFQRepository.Unpublish", trace.WithAttributes(attribute.String("rfq.id", rfqID.String())))
	defer span.End()

	var rfq entity.RFQ
	err := r.writer.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().Model((*entity.RFQ)(nil)).
			Set("status = ?", entity.RFQDraft).
			Set("updated_at = ?", time.Now().UTC()).
			Where("id = ?", rfqID).
			Where("status = ?", entity.RFQLive).
			Exec(ctx)
		if err != nil {
			return err
		}
		if affected, _ := res.RowsAffected(); affected == 0 {
			return ErrStatusConflict
		}

		round := new(entity.Round)
		err = tx.NewSelect().Model(round).
			Where("rfq_id = ?", rfqID).
			Where("status = ?", entity.RoundLive).
			For("UPDATE").
			Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNoActiveRound
		}
		if err != nil {
			return err
		}

		bidCount, err := tx.NewSelect().Model((*entity.Bid)(nil)).
			Where("round_id = ?", round.ID).
			Count(ctx)
		if err != nil {
			return err
		}
		if bidCount > 0 {
			return ErrRoundHasBids
		}

		if _, err := tx.NewUpdate().Model((*entity.Round)(nil)).
			Set("status = ?", entity.RoundClosed).
			Where("id = ?", round.ID).
			Exec(ctx); err != nil {
			return err
		}

		return tx.NewSelect().Model(&rfq).Where("id = ?", rfqID).Scan(ctx)
	})
	if err != nil {
		if !errors.Is(err, ErrStatusConflict) && !errors.Is(err, ErrRoundHasBids) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "unpublish failed")
		}
		return nil, err
	}
	return &rfq, nil
}

// Close moves the RFQ LIVE -> CLOSED without a winner and closes the
// active round.
func (r *Repository) Close(ctx context.Context, rfqID uuid.UUID) (*entity.RFQ, error) {
	ctx, span := repoTracer.Start(ctx, "RFQRepository.Close", trace.WithAttributes(attribute.String("rfq.id", rfqID.String())))
	defer span.End()

	var rfq entity.RFQ
	err := r.writer.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().Model((*entity.RFQ)(nil)).
			Set("status = ?", entity.RFQClosed).
			Set("updated_at = ?", time.Now().UTC()).
			Where("id = ?", rfqID).
			Where("status = ?", entity.RFQLive).
			Exec(ctx)
		if err != nil {
			return err
		}
		if affected, _ := res.RowsAffected(); affected == 0 {
			return ErrStatusConflict
		}

		if _, err := tx.NewUpdate().Model((*entity.Round)(nil)).
			Set("status = ?", entity.RoundClosed).
			Where("rfq_id = ?", rfqID).
			Where("status = ?", entity.RoundLive).
			Exec(ctx); err != nil {
			return err
		}

		return tx.NewSelect().Model(&rfq).Where("id = ?", rfqID).Scan(ctx)
	})
	if err != nil {
		if !errors.Is(err, ErrStatusConflict) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "close failed")
		}
		return nil, err
	}
	return &rfq, nil
}

// SelectWinner flags the bid, closes the RFQ, and closes the active
// round in one transaction. The RFQ status CAS is the guard: exactly
// one of two racing selections commits, the loser sees
// ErrStatusConflict and the engine reports the RFQ as already decided.
// A bid id outside the active round rolls the whole transition back.
func (r *Repository) SelectWinner(ctx context.Context, rfqID, bidID uuid.UUID) (*entity.RFQ, *entity.Bid, error) {
	ctx, span := repoTracer.Start(ctx, "RFQRepository.SelectWinner", trace.WithAttributes(
		attribute.String("rfq.id", rfqID.String()),
		attribute.String("bid.id", bidID.String()),
	))
	defer span.End()

	var (
		rfq entity.RFQ
		bid entity.Bid
	)
	err := r.writer.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().Model((*entity.RFQ)(nil)).
			Set("status = ?", entity.RFQClosed).
			Set("updated_at = ?", time.Now().UTC()).
			Where("id = ?", rfqID).
			Where("status = ?", entity.RFQLive).
			Exec(ctx)
		if err != nil {
			return err
		}
		if affected, _ := res.RowsAffected(); affected == 0 {
			return ErrStatusConflict
		}

		round := new(entity.Round)
		err = tx.NewSelect().Model(round).
			Where("rfq_id = ?", rfqID).
			Where("status = ?", entity.RoundLive).
			Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNoActiveRound
		}
		if err != nil {
			return err
		}

		res, err = tx.NewUpdate().Model((*entity.Bid)(nil)).
			Set("is_winner = ?", true).
			Where("id = ?", bidID).
			Where("round_id = ?", round.ID).
			Exec(ctx)
		if err != nil {
			return err
		}
		if affected, _ := res.RowsAffected(); affected == 0 {
			return ErrBidNotFound
		}

		if _, err := tx.NewUpdate().Model((*entity.Round)(nil)).
			Set("status = ?", entity.RoundClosed).
			Where("id = ?", round.ID).
			Exec(ctx); err != nil {
			return err
		}

		if err := tx.NewSelect().Model(&rfq).Where("id = ?", rfqID).Scan(ctx); err != nil {
			return err
		}
		return tx.NewSelect().Model(&bid).Where("id = ?", bidID).Scan(ctx)
	})
	if err != nil {
		if !errors.Is(err, ErrStatusConflict) && !errors.Is(err, ErrBidNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "select winner failed")
		}
		return nil, nil, err
	}
	return &rfq, &bid, nil
}
