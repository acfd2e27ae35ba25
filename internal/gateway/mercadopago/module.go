package mercadopago

import "go.uber.org/fx"

// Module provides the payment gateway client to Fx.
var Module = fx.Provide(NewClient)
