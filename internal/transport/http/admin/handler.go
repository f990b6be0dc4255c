package admin

import (
	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"

	"github.com/cargomesh/freightbid/internal/presentation/http/response"
	"github.com/cargomesh/freightbid/internal/service/stats"
	"github.com/cargomesh/freightbid/internal/transport/http/middleware"
	"github.com/cargomesh/freightbid/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/cargomesh/freightbid/transport/http/admin")

// Handler exposes the admin control-panel endpoints.
type Handler struct {
	stats *stats.Service
}

// NewHandler constructs an admin Handler.
func NewHandler(statsSvc *stats.Service) *Handler {
	return &Handler{stats: statsSvc}
}

// Register routes with the provided Echo instance.
func Register(e *echo.Echo, h *Handler) {
	g := e.Group("/admin", middleware.Principal())
	g.GET("/stats", h.getStats)
}

func (h *Handler) getStats(c echo.Context) error {
	b := response.New(c)

	p, ok := middleware.FromContext(c)
	if !ok || !p.IsAdmin() {
		return b.WithError(errorbank.Forbidden("administrator access required")).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "admin.stats")
	defer span.End()

	summary, err := h.stats.Summarize(ctx)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithData(summary).Build()
}
