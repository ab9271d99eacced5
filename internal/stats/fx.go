package stats

import (
	"go.uber.org/fx"

	"github.com/Romeobluesky/callup-api/internal/stats/service"
)

var Module = fx.Module("stats.service",
	fx.Provide(service.NewService),
	fx.Provide(service.NewWriter),
	fx.Provide(service.NewReader),
)
