package disposition

import (
	"go.uber.org/fx"

	"github.com/Romeobluesky/callup-api/internal/config"
	"github.com/Romeobluesky/callup-api/internal/disposition/domain"
	"github.com/Romeobluesky/callup-api/internal/disposition/service"
)

// Module wires the disposition recorder and its result classifier.
var Module = fx.Module("disposition",
	fx.Provide(func() domain.Classifier { return domain.KeywordClassifier{} }),
	fx.Provide(func(cfg config.Config) service.Config {
		return service.Config{
			DedupWindow: cfg.DispositionDedupWindow,
			Strict:      cfg.StrictDispositions,
		}
	}),
	fx.Provide(service.NewService),
)
