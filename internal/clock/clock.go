package clock

import (
	"time"

	"go.uber.org/fx"
)

var Module = fx.Module("clock",
	fx.Provide(New),
)

// Clock returns the current time. All sweeps and usage periods read time through it.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func New() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}
