package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/cargomesh/freightbid/internal/entity"
	"github.com/cargomesh/freightbid/internal/presentation/http/response"
	"github.com/cargomesh/freightbid/internal/service/bidding"
	"github.com/cargomesh/freightbid/pkg/errorbank"
)

const (
	headerAccountID   = "X-Account-Id"
	headerAccountRole = "X-Account-Role"

	principalKey = "principal"
)

// Principal resolves the authenticated caller from the identity headers
// set by the upstream gateway. Identity resolution itself happens
// there; this middleware only materializes the already-resolved
// principal for handlers.
func Principal() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, err := uuid.Parse(c.Request().Header.Get(headerAccountID))
			if err != nil {
				return response.New(c).
					WithError(errorbank.Forbidden("missing or invalid account identity")).
					Build()
			}
			role := entity.Role(c.Request().Header.Get(headerAccountRole))
			if !entity.ValidRole(role) {
				return response.New(c).
					WithError(errorbank.Forbidden("missing or invalid account role")).
					Build()
			}
			c.Set(principalKey, bidding.Principal{ID: id, Role: role})
			return next(c)
		}
	}
}

// FromContext returns the principal stored by the Principal middleware.
func FromContext(c echo.Context) (bidding.Principal, bool) {
	p, ok := c.Get(principalKey).(bidding.Principal)
	return p, ok
}
