package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/cargomesh/freightbid/internal/entity"
)

// RFQResponse represents an RFQ as exposed via transport layers.
type RFQResponse struct {
	ID          uuid.UUID        `json:"id"`
	OrgID       uuid.UUID        `json:"org_id"`
	Origin      string           `json:"origin"`
	Destination string           `json:"destination"`
	Description string           `json:"description"`
	Status      entity.RFQStatus `json:"status"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// FromRFQ maps an RFQ entity into its transport representation.
func FromRFQ(rfq *entity.RFQ) RFQResponse {
	return RFQResponse{
		ID:          rfq.ID,
		OrgID:       rfq.OrgID,
		Origin:      rfq.Origin,
		Destination: rfq.Destination,
		Description: rfq.Description,
		Status:      rfq.Status,
		CreatedAt:   rfq.CreatedAt,
		UpdatedAt:   rfq.UpdatedAt,
	}
}

// FromRFQs maps a slice of RFQ entities.
func FromRFQs(rfqs []entity.RFQ) []RFQResponse {
	out := make([]RFQResponse, len(rfqs))
	for i := range rfqs {
		out[i] = FromRFQ(&rfqs[i])
	}
	return out
}
