package cart

import "go.uber.org/fx"

// Module provides the cart repository to Fx.
var Module = fx.Provide(NewRepository)
