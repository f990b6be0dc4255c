package bidding_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/cargomesh/freightbid/internal/entity"
	"github.com/cargomesh/freightbid/internal/service/bidding"
)

func bidAt(price int64, transitDays int, at time.Time) entity.Bid {
	return entity.Bid{
		ID:          uuid.New(),
		Price:       decimal.NewFromInt(price),
		TransitDays: transitDays,
		SubmittedAt: at,
	}
}

func TestRankOrdering(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	cheap := bidAt(400, 10, base.Add(2*time.Minute))
	fast := bidAt(500, 3, base.Add(time.Minute))
	slow := bidAt(500, 5, base)

	ranked := bidding.Rank([]entity.Bid{slow, fast, cheap})
	require.Len(t, ranked, 3)
	require.Equal(t, cheap.ID, ranked[0].Bid.ID)
	require.Equal(t, fast.ID, ranked[1].Bid.ID)
	require.Equal(t, slow.ID, ranked[2].Bid.ID)
	for i, rb := range ranked {
		require.Equal(t, i+1, rb.Rank)
	}
}

func TestRankBreaksTiesBySubmissionTime(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	early := bidAt(500, 5, base)
	late := bidAt(500, 5, base.Add(time.Second))

	ranked := bidding.Rank([]entity.Bid{late, early})
	require.Equal(t, early.ID, ranked[0].Bid.ID)
	require.Equal(t, late.ID, ranked[1].Bid.ID)
}

func TestRankEqualScale(t *testing.T) {
	// 500 and 500.00 are the same price; order falls through to the
	// later tie breakers.
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	plain := bidAt(500, 5, base)
	scaled := entity.Bid{
		ID:          uuid.New(),
		Price:       decimal.RequireFromString("500.00"),
		TransitDays: 5,
		SubmittedAt: base.Add(time.Second),
	}

	ranked := bidding.Rank([]entity.Bid{scaled, plain})
	require.Equal(t, plain.ID, ranked[0].Bid.ID)
	require.Equal(t, scaled.ID, ranked[1].Bid.ID)
}

func TestRankTotalOrderOnIdenticalBids(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	a := bidAt(500, 5, base)
	b := bidAt(500, 5, base)

	first := bidding.Rank([]entity.Bid{a, b})
	second := bidding.Rank([]entity.Bid{b, a})
	require.Equal(t, first[0].Bid.ID, second[0].Bid.ID)
	require.Equal(t, first[1].Bid.ID, second[1].Bid.ID)
}

func TestRankEmpty(t *testing.T) {
	require.Empty(t, bidding.Rank(nil))
}
