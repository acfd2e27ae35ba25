package order

import (
	"go.uber.org/fx"

	orderrepo "github.com/Additional-Code/emporia/internal/repository/order"
)

// Module provides the order service to Fx.
var Module = fx.Options(
	fx.Provide(func(r *orderrepo.Repository) Repository { return r }),
	fx.Provide(NewService),
)
