package rfq

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/cargomesh/freightbid/internal/dto"
	"github.com/cargomesh/freightbid/internal/entity"
	"github.com/cargomesh/freightbid/internal/presentation/http/response"
	"github.com/cargomesh/freightbid/internal/service/bidding"
	"github.com/cargomesh/freightbid/internal/transport/http/middleware"
	"github.com/cargomesh/freightbid/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/cargomesh/freightbid/transport/http/rfq")

// Handler exposes RFQ lifecycle endpoints over HTTP.
type Handler struct {
	svc *bidding.Service
}

// NewHandler constructs an RFQ Handler.
func NewHandler(svc *bidding.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with the provided Echo instance.
func Register(e *echo.Echo, h *Handler) {
	g := e.Group("/rfqs", middleware.Principal())
	g.POST("", h.create)
	g.GET("", h.list)
	g.GET("/:id", h.getByID)
	g.POST("/:id/publish", h.publish)
	g.POST("/:id/unpublish", h.unpublish)
	g.POST("/:id/close", h.close)
	g.POST("/:id/award", h.award)
}

func (h *Handler) create(c echo.Context) error {
	b := response.New(c)

	p, ok := middleware.FromContext(c)
	if !ok {
		return b.WithError(errorbank.Forbidden("missing principal")).Build()
	}

	var payload struct {
		Origin      string `json:"origin"`
		Destination string `json:"destination"`
		Description string `json:"description"`
	}
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "rfqs.create")
	defer span.End()

	rfq, err := h.svc.CreateRFQ(ctx, p, payload.Origin, payload.Destination, payload.Description)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithStatus(http.StatusCreated).WithData(dto.FromRFQ(rfq)).Build()
}

func (h *Handler) list(c echo.Context) error {
	b := response.New(c)

	p, ok := middleware.FromContext(c)
	if !ok {
		return b.WithError(errorbank.Forbidden("missing principal")).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "rfqs.list")
	defer span.End()

	rfqs, err := h.svc.ListRFQs(ctx, p)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithData(dto.FromRFQs(rfqs)).Build()
}

func (h *Handler) getByID(c echo.Context) error {
	b := response.New(c)

	p, ok := middleware.FromContext(c)
	if !ok {
		return b.WithError(errorbank.Forbidden("missing principal")).Build()
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return b.WithError(errorbank.BadRequest("invalid rfq id", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "rfqs.getByID", trace.WithAttributes(attribute.String("rfq.id", id.String())))
	defer span.End()

	rfq, err := h.svc.GetRFQ(ctx, p, id)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithData(dto.FromRFQ(rfq)).Build()
}

func (h *Handler) publish(c echo.Context) error {
	return h.transition(c, "rfqs.publish", h.svc.Publish)
}

func (h *Handler) unpublish(c echo.Context) error {
	return h.transition(c, "rfqs.unpublish", h.svc.Unpublish)
}

func (h *Handler) close(c echo.Context) error {
	return h.transition(c, "rfqs.close", h.svc.Close)
}

func (h *Handler) award(c echo.Context) error {
	b := response.New(c)

	p, ok := middleware.FromContext(c)
	if !ok {
		return b.WithError(errorbank.Forbidden("missing principal")).Build()
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return b.WithError(errorbank.BadRequest("invalid rfq id", errorbank.WithCause(err))).Build()
	}

	var payload struct {
		BidID uuid.UUID `json:"bid_id"`
	}
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}
	if payload.BidID == uuid.Nil {
		return b.WithError(errorbank.BadRequest("bid_id is required")).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "rfqs.award", trace.WithAttributes(
		attribute.String("rfq.id", id.String()),
		attribute.String("bid.id", payload.BidID.String()),
	))
	defer span.End()

	rfq, winner, err := h.svc.SelectWinner(ctx, p, id, payload.BidID)
	if err != nil {
		return b.WithError(err).Build()
	}

	result := struct {
		RFQ dto.RFQResponse `json:"rfq"`
		Bid dto.BidResponse `json:"bid"`
	}{
		RFQ: dto.FromRFQ(rfq),
		Bid: dto.FromBid(winner),
	}
	return b.WithData(result).Build()
}

func (h *Handler) transition(c echo.Context, spanName string, op func(context.Context, bidding.Principal, uuid.UUID) (*entity.RFQ, error)) error {
	b := response.New(c)

	p, ok := middleware.FromContext(c)
	if !ok {
		return b.WithError(errorbank.Forbidden("missing principal")).Build()
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return b.WithError(errorbank.BadRequest("invalid rfq id", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), spanName, trace.WithAttributes(attribute.String("rfq.id", id.String())))
	defer span.End()

	rfq, err := op(ctx, p, id)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithData(dto.FromRFQ(rfq)).Build()
}
