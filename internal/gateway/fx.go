package gateway

import "go.uber.org/fx"

var Module = fx.Module("gateway",
	fx.Provide(NewResolver),
	fx.Provide(func(r *Resolver) Provider { return r }),
)
