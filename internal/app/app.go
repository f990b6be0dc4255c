package app

import (
	"go.uber.org/fx"

	"github.com/cargomesh/freightbid/internal/cache"
	"github.com/cargomesh/freightbid/internal/config"
	"github.com/cargomesh/freightbid/internal/database"
	"github.com/cargomesh/freightbid/internal/logger"
	"github.com/cargomesh/freightbid/internal/messaging"
	"github.com/cargomesh/freightbid/internal/observability"
	repositorybid "github.com/cargomesh/freightbid/internal/repository/bid"
	repositoryrfq "github.com/cargomesh/freightbid/internal/repository/rfq"
	grpcserver "github.com/cargomesh/freightbid/internal/server/grpc"
	httpserver "github.com/cargomesh/freightbid/internal/server/http"
	servicebidding "github.com/cargomesh/freightbid/internal/service/bidding"
	servicestats "github.com/cargomesh/freightbid/internal/service/stats"
	transporthttp "github.com/cargomesh/freightbid/internal/transport/http"
	"github.com/cargomesh/freightbid/internal/worker"
	workerrfq "github.com/cargomesh/freightbid/internal/worker/rfq"
)

// Core provides the foundational modules shared across executables.
var Core = fx.Options(
	config.Module,
	cache.Module,
	database.Module,
	logger.Module,
	messaging.Module,
	observability.Module,
	repositoryrfq.Module,
	repositorybid.Module,
	servicebidding.Module,
	servicestats.Module,
)

// HTTP wires the HTTP transport on top of the core modules.
var HTTP = fx.Options(
	Core,
	httpserver.Module,
	transporthttp.Module,
)

// GRPC exposes the gRPC surface on top of the core modules.
var GRPC = fx.Options(
	Core,
	grpcserver.Module,
)

// Worker exposes background event processing.
var Worker = fx.Options(
	Core,
	worker.Module,
	workerrfq.Module,
)

// Module is the default application wiring (HTTP only).
var Module = HTTP
