package rfq

import "go.uber.org/fx"

// Module provides the RFQ repository to Fx.
var Module = fx.Provide(NewRepository)
