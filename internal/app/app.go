package app

import (
	"go.uber.org/fx"

	"github.com/Additional-Code/emporia/internal/cache"
	"github.com/Additional-Code/emporia/internal/carrier/andreani"
	"github.com/Additional-Code/emporia/internal/config"
	"github.com/Additional-Code/emporia/internal/database"
	"github.com/Additional-Code/emporia/internal/event"
	"github.com/Additional-Code/emporia/internal/gateway/mercadopago"
	"github.com/Additional-Code/emporia/internal/logger"
	"github.com/Additional-Code/emporia/internal/messaging"
	"github.com/Additional-Code/emporia/internal/observability"
	repositorycart "github.com/Additional-Code/emporia/internal/repository/cart"
	repositoryorder "github.com/Additional-Code/emporia/internal/repository/order"
	repositorypayment "github.com/Additional-Code/emporia/internal/repository/payment"
	repositoryproduct "github.com/Additional-Code/emporia/internal/repository/product"
	repositoryshipment "github.com/Additional-Code/emporia/internal/repository/shipment"
	httpserver "github.com/Additional-Code/emporia/internal/server/http"
	servicecart "github.com/Additional-Code/emporia/internal/service/cart"
	servicecheckout "github.com/Additional-Code/emporia/internal/service/checkout"
	serviceexpiration "github.com/Additional-Code/emporia/internal/service/expiration"
	serviceorder "github.com/Additional-Code/emporia/internal/service/order"
	servicepayment "github.com/Additional-Code/emporia/internal/service/payment"
	serviceshipping "github.com/Additional-Code/emporia/internal/service/shipping"
	transporthttp "github.com/Additional-Code/emporia/internal/transport/http"
	"github.com/Additional-Code/emporia/internal/worker"
	workerorder "github.com/Additional-Code/emporia/internal/worker/order"
)

// Core provides the foundational modules shared across executables.
var Core = fx.Options(
	config.Module,
	cache.Module,
	database.Module,
	logger.Module,
	messaging.Module,
	observability.Module,
	event.Module,
	repositorycart.Module,
	repositoryorder.Module,
	repositorypayment.Module,
	repositoryproduct.Module,
	repositoryshipment.Module,
	mercadopago.Module,
	andreani.Module,
	servicecart.Module,
	servicecheckout.Module,
	serviceorder.Module,
	servicepayment.Module,
	serviceshipping.Module,
)

// HTTP wires the HTTP transport on top of the core modules.
var HTTP = fx.Options(
	Core,
	httpserver.Module,
	transporthttp.Module,
)

// Worker exposes background processing: lifecycle event consumers plus the
// unpaid order sweep.
var Worker = fx.Options(
	Core,
	worker.Module,
	workerorder.Module,
	serviceexpiration.SweeperModule,
)

// Module is the default application wiring (HTTP only).
var Module = HTTP
