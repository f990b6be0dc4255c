package bidding

import "github.com/cargomesh/freightbid/pkg/errorbank"

// Stable machine codes for every way the engine can reject an
// operation. Callers branch on these via errorbank.HasCode; the HTTP
// status comes from the errorbank kind.
const (
	CodeForbidden         = "FORBIDDEN"
	CodeNotFound          = "NOT_FOUND"
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeRFQNotOpen        = "RFQ_NOT_OPEN"
	CodeDuplicateBid      = "DUPLICATE_BID"
	CodeInvalidBidValue   = "INVALID_BID_VALUE"
	CodeAlreadyDecided    = "ALREADY_DECIDED"
	CodeRoundHasBids      = "ROUND_HAS_BIDS"
	CodeBidNotFound       = "BID_NOT_FOUND"
)

func errForbidden(message string) *errorbank.AppError {
	return errorbank.Forbidden(message, errorbank.WithCode(CodeForbidden))
}

// errNotFound covers both unresolved ids and entities outside the
// caller's visibility; the two collapse to one response so callers
// cannot probe for existence.
func errNotFound(message string) *errorbank.AppError {
	return errorbank.NotFound(message, errorbank.WithCode(CodeNotFound))
}

func errInvalidTransition(message string) *errorbank.AppError {
	return errorbank.Conflict(message, errorbank.WithCode(CodeInvalidTransition))
}

func errRFQNotOpen() *errorbank.AppError {
	return errorbank.Conflict("rfq is not open for bidding", errorbank.WithCode(CodeRFQNotOpen))
}

func errDuplicateBid() *errorbank.AppError {
	return errorbank.Conflict("vendor already submitted a bid in this round", errorbank.WithCode(CodeDuplicateBid))
}

func errInvalidBidValue(message string) *errorbank.AppError {
	return errorbank.Unprocessable(message, errorbank.WithCode(CodeInvalidBidValue))
}

func errAlreadyDecided() *errorbank.AppError {
	return errorbank.Conflict("rfq is already closed", errorbank.WithCode(CodeAlreadyDecided))
}

func errRoundHasBids() *errorbank.AppError {
	return errorbank.Conflict("active round already has bids", errorbank.WithCode(CodeRoundHasBids))
}

func errBidNotFound() *errorbank.AppError {
	return errorbank.NotFound("bid is not part of the active round", errorbank.WithCode(CodeBidNotFound))
}
