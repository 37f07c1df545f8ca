package farm

import "time"

// Clock returns "now". Growth timing reads time only through a Clock so tests
// and replays can advance it deterministically.
type Clock func() time.Time

// WallClock reads the system clock.
func WallClock() time.Time { return time.Now() }

const (
	DefaultStages        = 4
	DefaultStageDuration = 60 * time.Second
)

// Growth holds the crop timer parameters shared by every field of a farm.
type Growth struct {
	Stages        int
	StageDuration time.Duration
	Clock         Clock
}

func DefaultGrowth() Growth {
	return Growth{Stages: DefaultStages, StageDuration: DefaultStageDuration, Clock: WallClock}
}

func (g Growth) Total() time.Duration {
	return time.Duration(g.Stages) * g.StageDuration
}

func (g Growth) now() time.Time {
	if g.Clock == nil {
		return time.Now()
	}
	return g.Clock()
}

// progress maps the elapsed time since planting onto [0,1].
func (g Growth) progress(plantedAt time.Time) float64 {
	total := g.Total()
	if total <= 0 {
		return 1
	}
	elapsed := g.now().Sub(plantedAt)
	if elapsed <= 0 {
		return 0
	}
	if elapsed >= total {
		return 1
	}
	return float64(elapsed) / float64(total)
}

// TickClock derives "now" from a tick counter so a run is reproducible.
type TickClock struct {
	Epoch        time.Time
	TickDuration time.Duration
	tick         uint64
}

func NewTickClock(epoch time.Time, tickDuration time.Duration) *TickClock {
	return &TickClock{Epoch: epoch, TickDuration: tickDuration}
}

func (c *TickClock) Now() time.Time {
	return c.Epoch.Add(time.Duration(c.tick) * c.TickDuration)
}

func (c *TickClock) Advance()     { c.tick++ }
func (c *TickClock) Tick() uint64 { return c.tick }
