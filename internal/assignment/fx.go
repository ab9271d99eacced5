package assignment

import (
	"go.uber.org/fx"

	"github.com/Romeobluesky/callup-api/internal/assignment/service"
)

// Module wires the administrator bulk assigner.
var Module = fx.Module("assignment",
	fx.Provide(service.NewService),
)
