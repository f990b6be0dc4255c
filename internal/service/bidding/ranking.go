package bidding

import (
	"sort"

	"github.com/cargomesh/freightbid/internal/entity"
)

// RankedBid pairs a bid with its positional rank, starting at 1.
type RankedBid struct {
	Rank int
	Bid  entity.Bid
}

// Rank orders bids by ascending price, breaking ties by ascending
// transit days, then earliest submission. Bid id is the last resort so
// the order is total even for simultaneous submissions. The ranking is
// recomputed on every read; bid sets are small and mutate rarely.
func Rank(bids []entity.Bid) []RankedBid {
	ordered := make([]entity.Bid, len(bids))
	copy(ordered, bids)

	sort.Slice(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if cmp := a.Price.Cmp(b.Price); cmp != 0 {
			return cmp < 0
		}
		if a.TransitDays != b.TransitDays {
			return a.TransitDays < b.TransitDays
		}
		if !a.SubmittedAt.Equal(b.SubmittedAt) {
			return a.SubmittedAt.Before(b.SubmittedAt)
		}
		return a.ID.String() < b.ID.String()
	})

	ranked := make([]RankedBid, len(ordered))
	for i, b := range ordered {
		ranked[i] = RankedBid{Rank: i + 1, Bid: b}
	}
	return ranked
}
