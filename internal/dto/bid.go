package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cargomesh/freightbid/internal/entity"
	"github.com/cargomesh/freightbid/internal/service/bidding"
)

// BidResponse represents a bid as exposed via transport layers.
type BidResponse struct {
	ID          uuid.UUID       `json:"id"`
	RFQID       uuid.UUID       `json:"rfq_id"`
	RoundID     uuid.UUID       `json:"round_id"`
	VendorID    uuid.UUID       `json:"vendor_id"`
	Price       decimal.Decimal `json:"price"`
	TransitDays int             `json:"transit_days"`
	IsWinner    bool            `json:"is_winner"`
	SubmittedAt time.Time       `json:"submitted_at"`
}

// RankedBidResponse is a bid together with its position in the ranking.
type RankedBidResponse struct {
	Rank int         `json:"rank"`
	Bid  BidResponse `json:"bid"`
}

// FromBid maps a bid entity into its transport representation.
func FromBid(b *entity.Bid) BidResponse {
	return BidResponse{
		ID:          b.ID,
		RFQID:       b.RFQID,
		RoundID:     b.RoundID,
		VendorID:    b.VendorID,
		Price:       b.Price,
		TransitDays: b.TransitDays,
		IsWinner:    b.IsWinner,
		SubmittedAt: b.SubmittedAt,
	}
}

// FromRankedBids maps a ranked bid sequence.
func FromRankedBids(ranked []bidding.RankedBid) []RankedBidResponse {
	out := make([]RankedBidResponse, len(ranked))
	for i, rb := range ranked {
		out[i] = RankedBidResponse{Rank: rb.Rank, Bid: FromBid(&rb.Bid)}
	}
	return out
}
