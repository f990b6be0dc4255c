package bidding

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event types emitted on the message bus when the engine mutates state.
const (
	EventRFQPublished = "rfq.published"
	EventRFQClosed    = "rfq.closed"
	EventRFQAwarded   = "rfq.awarded"
	EventBidSubmitted = "bid.submitted"
)

// LifecycleEvent is published after every committed engine mutation.
// Consumers treat it as a notification to refresh their view; the
// payload carries ids, not full entities.
type LifecycleEvent struct {
	Type       string           `json:"type"`
	RFQID      uuid.UUID        `json:"rfq_id"`
	OrgID      uuid.UUID        `json:"org_id"`
	RoundNo    int              `json:"round_no,omitempty"`
	BidID      *uuid.UUID       `json:"bid_id,omitempty"`
	VendorID   *uuid.UUID       `json:"vendor_id,omitempty"`
	Price      *decimal.Decimal `json:"price,omitempty"`
	OccurredAt time.Time        `json:"occurred_at"`
}
