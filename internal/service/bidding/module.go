package bidding

import "go.uber.org/fx"

// Module provides the bidding engine to Fx.
var Module = fx.Provide(New)
