package andreani

import "go.uber.org/fx"

// Module provides the shipping carrier client to Fx.
var Module = fx.Provide(NewClient)
