package checkout

import (
	"go.uber.org/fx"

	cartrepo "github.com/Additional-Code/emporia/internal/repository/cart"
	orderrepo "github.com/Additional-Code/emporia/internal/repository/order"
	cartsvc "github.com/Additional-Code/emporia/internal/service/cart"
)

// Module wires the checkout service, binding repositories to the narrow
// interfaces the service consumes.
var Module = fx.Options(
	fx.Provide(func(r *cartrepo.Repository) CartLoader { return r }),
	fx.Provide(func(r *orderrepo.Repository) OrderWriter { return r }),
	fx.Provide(func(v *cartsvc.Validator) Validator { return v }),
	fx.Provide(NewService),
)
