package farm

import (
	"fmt"
	"time"

	"farmhands.ai/internal/sim/tasks"
)

// WorkState holds independent cultivation flags. Any combination is
// storable, even ones the transitions never produce.
type WorkState struct {
	Plowed  bool
	Planted bool
	Watered bool
}

// Field is one grid cell's cultivation state machine.
//
// Transitions are self-guarding: calling one whose precondition does not hold
// leaves the field untouched and reports false.
type Field struct {
	row, col int
	growth   *Growth

	state     WorkState
	plantedAt time.Time // zero unless state.Planted

	// assigned is the agent currently holding this field's lock ("" = none).
	assigned AgentID
}

func newField(row, col int, growth *Growth) *Field {
	return &Field{row: row, col: col, growth: growth}
}

func (f *Field) Row() int { return f.row }
func (f *Field) Col() int { return f.col }

func (f *Field) Cell() tasks.Cell { return tasks.Cell{Row: f.row, Col: f.col} }

func (f *Field) State() WorkState { return f.state }

func (f *Field) IsPlowed() bool  { return f.state.Plowed }
func (f *Field) IsPlanted() bool { return f.state.Planted }
func (f *Field) IsWatered() bool { return f.state.Watered }

func (f *Field) PlantedAt() (time.Time, bool) {
	return f.plantedAt, f.state.Planted
}

func (f *Field) CanPlow() bool    { return !f.state.Plowed }
func (f *Field) CanPlant() bool   { return f.state.Plowed && !f.state.Planted }
func (f *Field) CanWater() bool   { return f.state.Plowed && !f.state.Watered }
func (f *Field) CanHarvest() bool { return f.state.Planted && f.GrowProgress() == 1 }

func (f *Field) Plow() bool {
	if !f.CanPlow() {
		return false
	}
	f.state.Plowed = true
	return true
}

func (f *Field) Plant() bool {
	if !f.CanPlant() {
		return false
	}
	f.state.Planted = true
	f.plantedAt = f.growth.now()
	return true
}

func (f *Field) Water() bool {
	if !f.CanWater() {
		return false
	}
	f.state.Watered = true
	return true
}

// Harvest clears the crop only; the plowed and watered flags carry over so
// the field can be replanted straight away.
func (f *Field) Harvest() bool {
	if !f.CanHarvest() {
		return false
	}
	f.state.Planted = false
	f.plantedAt = time.Time{}
	return true
}

// GrowProgress is the normalized time since planting, 0 when nothing is planted.
func (f *Field) GrowProgress() float64 {
	if !f.state.Planted {
		return 0
	}
	return f.growth.progress(f.plantedAt)
}

// GrowStage buckets GrowProgress into the configured number of stages.
func (f *Field) GrowStage() int {
	stages := f.growth.Stages
	if stages <= 0 || !f.state.Planted {
		return 0
	}
	s := int(f.GrowProgress() * float64(stages))
	if s >= stages {
		s = stages - 1
	}
	return s
}

// CanDo reports whether one specific kind of work is eligible right now.
func (f *Field) CanDo(kind tasks.Kind) bool {
	switch kind {
	case tasks.KindPlow:
		return f.CanPlow()
	case tasks.KindPlant:
		return f.CanPlant()
	case tasks.KindWater:
		return f.CanWater()
	case tasks.KindHarvest:
		return f.CanHarvest()
	default:
		panic(fmt.Sprintf("farm: unknown work kind %q", kind))
	}
}

// Do runs the transition for kind and reports whether it applied.
func (f *Field) Do(kind tasks.Kind) bool {
	switch kind {
	case tasks.KindPlow:
		return f.Plow()
	case tasks.KindPlant:
		return f.Plant()
	case tasks.KindWater:
		return f.Water()
	case tasks.KindHarvest:
		return f.Harvest()
	default:
		panic(fmt.Sprintf("farm: unknown work kind %q", kind))
	}
}

// NextEligibleWork returns the highest-priority eligible work:
// plow, then plant, then water, then harvest.
func (f *Field) NextEligibleWork() (tasks.Kind, bool) {
	for _, k := range tasks.Kinds {
		if f.CanDo(k) {
			return k, true
		}
	}
	return "", false
}

// IsWorkable is true for an unclaimed field with some eligible work.
func (f *Field) IsWorkable() bool {
	if f.assigned != "" {
		return false
	}
	_, ok := f.NextEligibleWork()
	return ok
}

func (f *Field) AssignedWorker() (AgentID, bool) {
	return f.assigned, f.assigned != ""
}

func (f *Field) AssignWorker(id AgentID) { f.assigned = id }
func (f *Field) ReleaseWorker()          { f.assigned = "" }

// ForceState overwrites the cultivation flags directly. It bypasses the
// transition guards and exists for seeding farms in bootstrap code and tests.
// plantedAt is ignored unless st.Planted is set.
func (f *Field) ForceState(st WorkState, plantedAt time.Time) {
	f.state = st
	if st.Planted {
		f.plantedAt = plantedAt
	} else {
		f.plantedAt = time.Time{}
	}
}

func (f *Field) String() string {
	return fmt.Sprintf("field(%d,%d)", f.row, f.col)
}
