package bid

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/cargomesh/freightbid/internal/dto"
	"github.com/cargomesh/freightbid/internal/presentation/http/response"
	"github.com/cargomesh/freightbid/internal/service/bidding"
	"github.com/cargomesh/freightbid/internal/transport/http/middleware"
	"github.com/cargomesh/freightbid/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/cargomesh/freightbid/transport/http/bid")

// Handler exposes bid submission and the ranked board over HTTP.
type Handler struct {
	svc *bidding.Service
}

// NewHandler constructs a bid Handler.
func NewHandler(svc *bidding.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with the provided Echo instance.
func Register(e *echo.Echo, h *Handler) {
	g := e.Group("/rfqs/:id/bids", middleware.Principal())
	g.POST("", h.submit)
	g.GET("", h.listRanked)
}

func (h *Handler) submit(c echo.Context) error {
	b := response.New(c)

	p, ok := middleware.FromContext(c)
	if !ok {
		return b.WithError(errorbank.Forbidden("missing principal")).Build()
	}
	rfqID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return b.WithError(errorbank.BadRequest("invalid rfq id", errorbank.WithCause(err))).Build()
	}

	var payload struct {
		Price       decimal.Decimal `json:"price"`
		TransitDays int             `json:"transit_days"`
	}
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "bids.submit", trace.WithAttributes(attribute.String("rfq.id", rfqID.String())))
	defer span.End()

	created, err := h.svc.SubmitBid(ctx, p, rfqID, payload.Price, payload.TransitDays)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithStatus(http.StatusCreated).WithData(dto.FromBid(created)).Build()
}

func (h *Handler) listRanked(c echo.Context) error {
	b := response.New(c)

	p, ok := middleware.FromContext(c)
	if !ok {
		return b.WithError(errorbank.Forbidden("missing principal")).Build()
	}
	rfqID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return b.WithError(errorbank.BadRequest("invalid rfq id", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "bids.listRanked", trace.WithAttributes(attribute.String("rfq.id", rfqID.String())))
	defer span.End()

	ranked, err := h.svc.ListRanked(ctx, p, rfqID)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithData(dto.FromRankedBids(ranked)).Build()
}
