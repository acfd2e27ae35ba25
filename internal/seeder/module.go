package seeder

import "go.uber.org/fx"

// Module provides the seeder.
var Module = fx.Provide(New)
