package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// Bid is a vendor's price/transit-time offer against an RFQ round.
// A unique constraint on (round_id, vendor_id) enforces one bid per
// vendor per round at the database level. The winner flag is set at
// most once, by winner selection, and never reverts.
type Bid struct {
	bun.BaseModel `bun:"table:bids"`

	ID          uuid.UUID       `bun:"id,pk,type:uuid"`
	RFQID       uuid.UUID       `bun:"rfq_id,type:uuid,notnull"`
	RoundID     uuid.UUID       `bun:"round_id,type:uuid,notnull"`
	VendorID    uuid.UUID       `bun:"vendor_id,type:uuid,notnull"`
	Price       decimal.Decimal `bun:"price,type:numeric,notnull"`
	TransitDays int             `bun:"transit_days,notnull"`
	IsWinner    bool            `bun:"is_winner,notnull,default:false"`
	SubmittedAt time.Time       `bun:"submitted_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
}
