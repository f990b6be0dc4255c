package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RFQStatus is the lifecycle state of a request for quote.
type RFQStatus string

const (
	RFQDraft  RFQStatus = "DRAFT"
	RFQLive   RFQStatus = "LIVE"
	RFQClosed RFQStatus = "CLOSED"
)

// RoundStatus is the lifecycle state of a bidding round.
type RoundStatus string

const (
	RoundLive   RoundStatus = "LIVE"
	RoundClosed RoundStatus = "CLOSED"
)

// RFQ is a shipment an organization wants vendors to quote.
// Status moves DRAFT -> LIVE -> CLOSED; CLOSED is terminal. All status
// writes go through the bidding engine's compare-and-swap updates.
type RFQ struct {
	bun.BaseModel `bun:"table:rfqs"`

	ID          uuid.UUID `bun:"id,pk,type:uuid"`
	OrgID       uuid.UUID `bun:"org_id,type:uuid,notnull"`
	Origin      string    `bun:"origin,notnull"`
	Destination string    `bun:"destination,notnull"`
	Description string    `bun:"description"`
	Status      RFQStatus `bun:"status,notnull"`
	CreatedAt   time.Time `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time `bun:"updated_at,nullzero"`
}

// Round is a discrete bidding window within an RFQ's LIVE lifetime.
// Round numbers are monotonic per RFQ starting at 1; a partial unique
// index guarantees at most one LIVE round per RFQ.
type Round struct {
	bun.BaseModel `bun:"table:rfq_rounds"`

	ID        uuid.UUID   `bun:"id,pk,type:uuid"`
	RFQID     uuid.UUID   `bun:"rfq_id,type:uuid,notnull"`
	RoundNo   int         `bun:"round_no,notnull"`
	Status    RoundStatus `bun:"status,notnull"`
	CreatedAt time.Time   `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
}
