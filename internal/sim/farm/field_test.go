package farm

import (
	"testing"
	"time"

	"farmhands.ai/internal/sim/tasks"
)

func TestField_TransitionsAreIdempotent(t *testing.T) {
	clk := newFakeClock()
	f := newTestFarm(t, 1, 1, clk).Field(1, 1)

	if !f.Plow() {
		t.Fatalf("first plow should apply")
	}
	if f.Plow() {
		t.Fatalf("second plow should be a no-op")
	}
	if !f.Plant() {
		t.Fatalf("first plant should apply")
	}
	at, _ := f.PlantedAt()
	clk.Advance(5 * time.Second)
	if f.Plant() {
		t.Fatalf("second plant should be a no-op")
	}
	if at2, _ := f.PlantedAt(); !at2.Equal(at) {
		t.Fatalf("no-op plant moved plantedAt: %v -> %v", at, at2)
	}
	if !f.Water() || f.Water() {
		t.Fatalf("water should apply exactly once")
	}
	if f.Harvest() {
		t.Fatalf("harvest of unripe crop should be a no-op")
	}
	clk.Advance(DefaultStageDuration * DefaultStages)
	if !f.Harvest() || f.Harvest() {
		t.Fatalf("harvest should apply exactly once")
	}
}

func TestField_PlantRequiresPlowedAndUnplanted(t *testing.T) {
	clk := newFakeClock()
	f := newTestFarm(t, 1, 1, clk).Field(1, 1)

	if f.Plant() || f.IsPlanted() {
		t.Fatalf("plant on unplowed field should be a no-op")
	}
	if _, ok := f.PlantedAt(); ok {
		t.Fatalf("plantedAt should be unset before planting")
	}
	f.Plow()
	if !f.Plant() {
		t.Fatalf("plant on plowed field should apply")
	}
	at, ok := f.PlantedAt()
	if !ok || !at.Equal(clk.Now()) {
		t.Fatalf("plantedAt: got %v ok=%v want %v", at, ok, clk.Now())
	}
}

func TestField_GrowProgress(t *testing.T) {
	clk := newFakeClock()
	f := newTestFarm(t, 1, 1, clk).Field(1, 1)

	if got := f.GrowProgress(); got != 0 {
		t.Fatalf("unplanted progress: got %v want 0", got)
	}
	f.Plow()
	f.Plant()
	if got := f.GrowProgress(); got != 0 {
		t.Fatalf("progress at planting: got %v want 0", got)
	}

	prev := 0.0
	for i := 0; i < 8; i++ {
		clk.Advance(30 * time.Second)
		got := f.GrowProgress()
		if got <= prev {
			t.Fatalf("progress should increase: step %d got %v prev %v", i, got, prev)
		}
		if got > 1 {
			t.Fatalf("progress above 1: %v", got)
		}
		prev = got
	}
	if prev != 1 {
		t.Fatalf("progress after full duration: got %v want 1", prev)
	}
	clk.Advance(time.Hour)
	if got := f.GrowProgress(); got != 1 {
		t.Fatalf("progress should stay clamped: got %v", got)
	}
}

func TestField_GrowProgressNeverNegative(t *testing.T) {
	clk := newFakeClock()
	f := newTestFarm(t, 1, 1, clk).Field(1, 1)
	f.ForceState(WorkState{Plowed: true, Planted: true}, clk.Now().Add(time.Minute))
	if got := f.GrowProgress(); got != 0 {
		t.Fatalf("future plantedAt: got %v want 0", got)
	}
}

func TestField_GrowStage(t *testing.T) {
	clk := newFakeClock()
	f := newTestFarm(t, 1, 1, clk).Field(1, 1)
	f.Plow()
	f.Plant()
	for want := 0; want < DefaultStages; want++ {
		if got := f.GrowStage(); got != want {
			t.Fatalf("stage: got %d want %d", got, want)
		}
		clk.Advance(DefaultStageDuration)
	}
	if got := f.GrowStage(); got != DefaultStages-1 {
		t.Fatalf("ripe stage: got %d want %d", got, DefaultStages-1)
	}
}

func TestField_HarvestKeepsPlowedAndWatered(t *testing.T) {
	clk := newFakeClock()
	f := newTestFarm(t, 1, 1, clk).Field(1, 1)

	f.Plow()
	f.Plant()
	f.Water()
	clk.Advance(DefaultStageDuration*DefaultStages - time.Millisecond)
	if f.CanHarvest() {
		t.Fatalf("crop should not be ripe before the full duration")
	}
	clk.Advance(time.Millisecond)
	if !f.Harvest() {
		t.Fatalf("harvest should apply once ripe")
	}
	if f.IsPlanted() {
		t.Fatalf("harvest should clear planted")
	}
	if _, ok := f.PlantedAt(); ok {
		t.Fatalf("harvest should clear plantedAt")
	}
	if !f.IsPlowed() || !f.IsWatered() {
		t.Fatalf("harvest must not touch plowed/watered: %+v", f.State())
	}
	if k, ok := f.NextEligibleWork(); !ok || k != tasks.KindPlant {
		t.Fatalf("next work after harvest: got %q ok=%v want PLANT", k, ok)
	}
}

func TestField_HarvestLeavesUnwateredFlagAlone(t *testing.T) {
	clk := newFakeClock()
	f := newTestFarm(t, 1, 1, clk).Field(1, 1)
	f.ForceState(WorkState{Plowed: true, Planted: true}, clk.Now())
	clk.Advance(DefaultStageDuration * DefaultStages)
	if !f.Harvest() {
		t.Fatalf("harvest should apply")
	}
	if f.IsWatered() || !f.IsPlowed() {
		t.Fatalf("flags changed by harvest: %+v", f.State())
	}
}

func TestField_NextEligibleWorkPriority(t *testing.T) {
	clk := newFakeClock()
	f := newTestFarm(t, 1, 1, clk).Field(1, 1)
	ripe := clk.Now().Add(-DefaultStageDuration * DefaultStages)

	cases := []struct {
		name  string
		state WorkState
		want  tasks.Kind
		ok    bool
	}{
		{"fresh", WorkState{}, tasks.KindPlow, true},
		// Unreachable through transitions, but storable: plow still wins.
		{"planted_unplowed", WorkState{Planted: true}, tasks.KindPlow, true},
		{"plowed", WorkState{Plowed: true}, tasks.KindPlant, true},
		{"plowed_watered", WorkState{Plowed: true, Watered: true}, tasks.KindPlant, true},
		{"planted_ripe_dry", WorkState{Plowed: true, Planted: true}, tasks.KindWater, true},
		{"planted_ripe_wet", WorkState{Plowed: true, Planted: true, Watered: true}, tasks.KindHarvest, true},
	}
	for _, tc := range cases {
		f.ForceState(tc.state, ripe)
		got, ok := f.NextEligibleWork()
		if ok != tc.ok || got != tc.want {
			t.Fatalf("%s: got %q ok=%v want %q ok=%v", tc.name, got, ok, tc.want, tc.ok)
		}
	}

	f.ForceState(WorkState{Plowed: true, Planted: true, Watered: true}, clk.Now())
	if k, ok := f.NextEligibleWork(); ok {
		t.Fatalf("growing field should have no work, got %q", k)
	}
}

func TestField_AssignedFieldIsNeverWorkable(t *testing.T) {
	clk := newFakeClock()
	f := newTestFarm(t, 1, 1, clk).Field(1, 1)
	states := []WorkState{
		{},
		{Plowed: true},
		{Plowed: true, Planted: true},
		{Plowed: true, Planted: true, Watered: true},
	}
	for _, st := range states {
		f.ForceState(st, clk.Now().Add(-time.Hour))
		f.ReleaseWorker()
		if !f.IsWorkable() {
			t.Fatalf("%+v: unassigned field should be workable", st)
		}
		f.AssignWorker("A1")
		if f.IsWorkable() {
			t.Fatalf("%+v: assigned field must not be workable", st)
		}
		if id, ok := f.AssignedWorker(); !ok || id != "A1" {
			t.Fatalf("assigned worker: got %q ok=%v", id, ok)
		}
	}
}

func TestField_UnknownKindPanics(t *testing.T) {
	clk := newFakeClock()
	f := newTestFarm(t, 1, 1, clk).Field(1, 1)
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for unknown kind")
		}
	}()
	f.Do(tasks.Kind("FERTILIZE"))
}

func TestField_ReplantRoundTrip(t *testing.T) {
	clk := newFakeClock()
	f := newTestFarm(t, 1, 1, clk).Field(1, 1)

	f.Plow()
	f.Plant()
	f.Water()
	clk.Advance(DefaultStageDuration * DefaultStages)
	if !f.Harvest() {
		t.Fatalf("harvest should apply")
	}
	if !f.IsPlowed() || !f.IsWatered() || f.IsPlanted() {
		t.Fatalf("after harvest: %+v", f.State())
	}
	if !f.Plant() {
		t.Fatalf("replant should apply without re-plowing")
	}
	if f.CanWater() || f.CanPlow() {
		t.Fatalf("replanted field should not need plow or water: %+v", f.State())
	}
}
