package http

import (
	"go.uber.org/fx"

	admintransport "github.com/cargomesh/freightbid/internal/transport/http/admin"
	bidtransport "github.com/cargomesh/freightbid/internal/transport/http/bid"
	rfqtransport "github.com/cargomesh/freightbid/internal/transport/http/rfq"
)

// Module aggregates all HTTP transport handlers.
var Module = fx.Options(
	rfqtransport.Module,
	bidtransport.Module,
	admintransport.Module,
)
