package bid

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/cargomesh/freightbid/internal/database"
	"github.com/cargomesh/freightbid/internal/entity"
)

var repoTracer = otel.Tracer("github.com/cargomesh/freightbid/repository/bid")

// pgUniqueViolation is the SQLSTATE for unique constraint violations.
const pgUniqueViolation = "23505"

var (
	// ErrDuplicate is returned when a vendor already has a bid in the
	// round. The uniqueness lives in the (round_id, vendor_id)
	// constraint, so two concurrent submissions can never both land.
	ErrDuplicate = errors.New("vendor already bid in this round")

	// ErrRoundClosed is returned when the round is no longer LIVE at
	// insert time.
	ErrRoundClosed = errors.New("round is not live")
)

// Repository is the append-mostly bid ledger.
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

// Insert appends a bid to the ledger. The round row is locked FOR
// SHARE inside the same transaction, so the insert serializes against
// the transitions that close the round: either the bid commits before
// the round closes or it is rejected with ErrRoundClosed.
func (r *Repository) Insert(ctx context.Context, b *entity.Bid) error {
	if b == nil {
		return errors.New("nil bid")
	}
	ctx, span := repoTracer.Start(ctx, "BidRepository.Insert", trace.WithAttributes(
		attribute.String("rfq.id", b.RFQID.String()),
		attribute.String("bid.vendor_id", b.VendorID.String()),
	))
	defer span.End()

	err := r.writer.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		round := new(entity.Round)
		err := tx.NewSelect().Model(round).
			Where("id = ?", b.RoundID).
			Where("status = ?", entity.RoundLive).
			For("SHARE").
			Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrRoundClosed
		}
		if err != nil {
			return err
		}

		_, err = tx.NewInsert().Model(b).Exec(ctx)
		return err
	})
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil && !errors.Is(err, ErrRoundClosed) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
	}
	return err
}

// ListByRound returns all bids submitted in a round.
func (r *Repository) ListByRound(ctx context.Context, roundID uuid.UUID) ([]entity.Bid, error) {
	ctx, span := repoTracer.Start(ctx, "BidRepository.ListByRound", trace.WithAttributes(attribute.String("round.id", roundID.String())))
	defer span.End()

	var bids []entity.Bid
	err := r.reader.NewSelect().Model(&bids).
		Where("round_id = ?", roundID).
		Order("submitted_at ASC").
		Scan(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return bids, nil
}

// ListByRFQ returns every bid ever submitted for the RFQ across rounds.
func (r *Repository) ListByRFQ(ctx context.Context, rfqID uuid.UUID) ([]entity.Bid, error) {
	ctx, span := repoTracer.Start(ctx, "BidRepository.ListByRFQ", trace.WithAttributes(attribute.String("rfq.id", rfqID.String())))
	defer span.End()

	var bids []entity.Bid
	err := r.reader.NewSelect().Model(&bids).
		Where("rfq_id = ?", rfqID).
		Order("submitted_at ASC").
		Scan(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return bids, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		return pgErr.Field('C') == pgUniqueViolation
	}
	return false
}
