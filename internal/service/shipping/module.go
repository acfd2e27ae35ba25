package shipping

import (
	"go.uber.org/fx"

	"github.com/Additional-Code/emporia/internal/carrier/andreani"
	orderrepo "github.com/Additional-Code/emporia/internal/repository/order"
	shipmentrepo "github.com/Additional-Code/emporia/internal/repository/shipment"
)

// Module wires the shipping service, binding repositories and the carrier
// client to the narrow interfaces the service consumes.
var Module = fx.Options(
	fx.Provide(func(r *orderrepo.Repository) Orders { return r }),
	fx.Provide(func(r *shipmentrepo.Repository) Shipments { return r }),
	fx.Provide(func(c *andreani.Client) Carrier { return c }),
	fx.Provide(NewService),
)
