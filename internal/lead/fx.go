package lead

import (
	"go.uber.org/fx"

	"github.com/Romeobluesky/callup-api/internal/config"
	"github.com/Romeobluesky/callup-api/internal/lead/service"
)

var Module = fx.Module("lead.service",
	fx.Provide(func(cfg config.Config) service.Config {
		return service.Config{ClaimCeiling: cfg.ClaimCeiling}
	}),
	fx.Provide(service.NewService),
)
