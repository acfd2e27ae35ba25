package payment

import (
	"go.uber.org/fx"

	"github.com/Additional-Code/emporia/internal/gateway/mercadopago"
	orderrepo "github.com/Additional-Code/emporia/internal/repository/order"
	paymentrepo "github.com/Additional-Code/emporia/internal/repository/payment"
)

// Module wires the payment service, binding repositories and the gateway
// client to the narrow interfaces the service consumes.
var Module = fx.Options(
	fx.Provide(func(r *orderrepo.Repository) Orders { return r }),
	fx.Provide(func(r *paymentrepo.Repository) Attempts { return r }),
	fx.Provide(func(c *mercadopago.Client) Gateway { return c }),
	fx.Provide(NewService),
)
