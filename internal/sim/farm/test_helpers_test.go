package farm

import (
	"testing"
	"time"
)

var testEpoch = time.Date(2024, 3, 1, 6, 0, 0, 0, time.UTC)

type fakeClock struct{ now time.Time }

func newFakeClock() *fakeClock { return &fakeClock{now: testEpoch} }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestFarm(t *testing.T, width, height int, clk *fakeClock) *Farm {
	t.Helper()
	f, err := NewFarm(width, height, Growth{Stages: DefaultStages, StageDuration: DefaultStageDuration, Clock: clk.Now})
	if err != nil {
		t.Fatalf("NewFarm: %v", err)
	}
	return f
}

// fillBusy puts every field into plowed+planted+watered, mid-growth.
func fillBusy(f *Farm, clk *fakeClock) {
	f.Each(func(fd *Field) {
		fd.ForceState(WorkState{Plowed: true, Planted: true, Watered: true}, clk.Now())
	})
}
