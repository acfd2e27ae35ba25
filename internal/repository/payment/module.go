package payment

import "go.uber.org/fx"

// Module provides the payment repository to Fx.
var Module = fx.Provide(NewRepository)
