// Package biddingtest provides in-memory doubles for the bidding
// engine's persistence and messaging dependencies.
package biddingtest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cargomesh/freightbid/internal/entity"
	"github.com/cargomesh/freightbid/internal/messaging"
	bidrepo "github.com/cargomesh/freightbid/internal/repository/bid"
	rfqrepo "github.com/cargomesh/freightbid/internal/repository/rfq"
)

// Backend is an in-memory stand-in for the rfq and bid repositories.
// A single mutex covers both stores so the compare-and-swap transitions
// behave like the database transactions they replace.
type Backend struct {
	mu     sync.Mutex
	rfqs   map[uuid.UUID]entity.RFQ
	rounds []entity.Round
	bids   []entity.Bid
}

// NewBackend returns an empty Backend.
func NewBackend() *Backend {
	return &Backend{rfqs: make(map[uuid.UUID]entity.RFQ)}
}

func (f *Backend) Create(_ context.Context, rfq *entity.RFQ) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rfqs[rfq.ID] = *rfq
	return nil
}

func (f *Backend) GetByID(_ context.Context, id uuid.UUID) (*entity.RFQ, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rfq, ok := f.rfqs[id]
	if !ok {
		return nil, rfqrepo.ErrNotFound
	}
	out := rfq
	return &out, nil
}

func (f *Backend) ListByOrg(_ context.Context, orgID uuid.UUID) ([]entity.RFQ, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []entity.RFQ
	for _, rfq := range f.rfqs {
		if rfq.OrgID == orgID {
			out = append(out, rfq)
		}
	}
	return out, nil
}

func (f *Backend) ListByStatus(_ context.Context, statuses ...entity.RFQStatus) ([]entity.RFQ, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []entity.RFQ
	for _, rfq := range f.rfqs {
		for _, st := range statuses {
			if rfq.Status == st {
				out = append(out, rfq)
				break
			}
		}
	}
	return out, nil
}

func (f *Backend) ListAll(_ context.Context) ([]entity.RFQ, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]entity.RFQ, 0, len(f.rfqs))
	for _, rfq := range f.rfqs {
		out = append(out, rfq)
	}
	return out, nil
}

func (f *Backend) ActiveRound(_ context.Context, rfqID uuid.UUID) (*entity.Round, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if round := f.liveRoundLocked(rfqID); round != nil {
		out := *round
		return &out, nil
	}
	return nil, rfqrepo.ErrNoActiveRound
}

func (f *Backend) Publish(_ context.Context, rfqID uuid.UUID) (*entity.RFQ, *entity.Round, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rfq, ok := f.rfqs[rfqID]
	if !ok || rfq.Status != entity.RFQDraft {
		return nil, nil, rfqrepo.ErrStatusConflict
	}
	rfq.Status = entity.RFQLive
	rfq.UpdatedAt = time.Now().UTC()
	f.rfqs[rfqID] = rfq

	maxNo := 0
	for _, r := range f.rounds {
		if r.RFQID == rfqID && r.RoundNo > maxNo {
			maxNo = r.RoundNo
		}
	}
	round := entity.Round{
		ID:        uuid.New(),
		RFQID:     rfqID,
		RoundNo:   maxNo + 1,
		Status:    entity.RoundLive,
		CreatedAt: time.Now().UTC(),
	}
	f.rounds = append(f.rounds, round)

	out := rfq
	return &out, &round, nil
}

func (f *Backend) Unpublish(_ context.Context, rfqID uuid.UUID) (*entity.RFQ, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rfq, ok := f.rfqs[rfqID]
	if !ok || rfq.Status != entity.RFQLive {
		return nil, rfqrepo.ErrStatusConflict
	}
	round := f.liveRoundLocked(rfqID)
	if round == nil {
		return nil, rfqrepo.ErrNoActiveRound
	}
	for _, b := range f.bids {
		if b.RoundID == round.ID {
			return nil, rfqrepo.ErrRoundHasBids
		}
	}
	round.Status = entity.RoundClosed
	rfq.Status = entity.RFQDraft
	rfq.UpdatedAt = time.Now().UTC()
	f.rfqs[rfqID] = rfq

	out := rfq
	return &out, nil
}

func (f *Backend) Close(_ context.Context, rfqID uuid.UUID) (*entity.RFQ, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rfq, ok := f.rfqs[rfqID]
	if !ok || rfq.Status != entity.RFQLive {
		return nil, rfqrepo.ErrStatusConflict
	}
	if round := f.liveRoundLocked(rfqID); round != nil {
		round.Status = entity.RoundClosed
	}
	rfq.Status = entity.RFQClosed
	rfq.UpdatedAt = time.Now().UTC()
	f.rfqs[rfqID] = rfq

	out := rfq
	return &out, nil
}

func (f *Backend) SelectWinner(_ context.Context, rfqID, bidID uuid.UUID) (*entity.RFQ, *entity.Bid, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rfq, ok := f.rfqs[rfqID]
	if !ok || rfq.Status != entity.RFQLive {
		return nil, nil, rfqrepo.ErrStatusConflict
	}
	round := f.liveRoundLocked(rfqID)
	if round == nil {
		return nil, nil, rfqrepo.ErrNoActiveRound
	}
	winnerIdx := -1
	for i, b := range f.bids {
		if b.ID == bidID && b.RoundID == round.ID {
			winnerIdx = i
			break
		}
	}
	if winnerIdx < 0 {
		return nil, nil, rfqrepo.ErrBidNotFound
	}

	f.bids[winnerIdx].IsWinner = true
	round.Status = entity.RoundClosed
	rfq.Status = entity.RFQClosed
	rfq.UpdatedAt = time.Now().UTC()
	f.rfqs[rfqID] = rfq

	outRFQ := rfq
	outBid := f.bids[winnerIdx]
	return &outRFQ, &outBid, nil
}

func (f *Backend) Insert(_ context.Context, b *entity.Bid) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var round *entity.Round
	for i := range f.rounds {
		if f.rounds[i].ID == b.RoundID {
			round = &f.rounds[i]
			break
		}
	}
	if round == nil || round.Status != entity.RoundLive {
		return bidrepo.ErrRoundClosed
	}
	for _, existing := range f.bids {
		if existing.RoundID == b.RoundID && existing.VendorID == b.VendorID {
			return bidrepo.ErrDuplicate
		}
	}
	f.bids = append(f.bids, *b)
	return nil
}

func (f *Backend) ListByRound(_ context.Context, roundID uuid.UUID) ([]entity.Bid, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []entity.Bid
	for _, b := range f.bids {
		if b.RoundID == roundID {
			out = append(out, b)
		}
	}
	sortBySubmission(out)
	return out, nil
}

func (f *Backend) ListByRFQ(_ context.Context, rfqID uuid.UUID) ([]entity.Bid, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []entity.Bid
	for _, b := range f.bids {
		if b.RFQID == rfqID {
			out = append(out, b)
		}
	}
	sortBySubmission(out)
	return out, nil
}

func (f *Backend) liveRoundLocked(rfqID uuid.UUID) *entity.Round {
	for i := range f.rounds {
		if f.rounds[i].RFQID == rfqID && f.rounds[i].Status == entity.RoundLive {
			return &f.rounds[i]
		}
	}
	return nil
}

func sortBySubmission(bids []entity.Bid) {
	sort.Slice(bids, func(i, j int) bool {
		return bids[i].SubmittedAt.Before(bids[j].SubmittedAt)
	})
}

// Publisher captures lifecycle events instead of writing to Kafka.
type Publisher struct {
	mu       sync.Mutex
	payloads [][]byte
}

func (p *Publisher) Publish(_ context.Context, _ []byte, value []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.payloads = append(p.payloads, value)
	return nil
}

func (p *Publisher) Consume(context.Context, messaging.Handler) error { return nil }

func (p *Publisher) Topic() string { return "rfq.events" }

// Published returns copies of the captured event payloads.
func (p *Publisher) Published() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([][]byte, len(p.payloads))
	copy(out, p.payloads)
	return out
}
