package events

import "go.uber.org/fx"

// Module wires the transactional call-event outbox.
var Module = fx.Module("events",
	fx.Provide(NewOutbox),
)
