package http

import (
	"go.uber.org/fx"

	checkouttransport "github.com/Additional-Code/emporia/internal/transport/http/checkout"
	ordertransport "github.com/Additional-Code/emporia/internal/transport/http/order"
	paymenttransport "github.com/Additional-Code/emporia/internal/transport/http/payment"
	shippingtransport "github.com/Additional-Code/emporia/internal/transport/http/shipping"
)

// Module aggregates all HTTP transport handlers.
var Module = fx.Options(
	checkouttransport.Module,
	ordertransport.Module,
	paymenttransport.Module,
	shippingtransport.Module,
)
