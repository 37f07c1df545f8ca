package farm

import (
	"fmt"
	"math"

	"farmhands.ai/internal/sim/tasks"
)

type AgentID string

// Pos is a continuous position in grid units; (1,1) is the centre of the
// top-left field.
type Pos struct {
	Row float64 `json:"row"`
	Col float64 `json:"col"`
}

// Movement tunes how far an agent travels per tick and how close it has to
// get before it starts working.
type Movement struct {
	Step          float64
	ArriveEpsilon float64
}

const DefaultMoveStep = 0.05

func DefaultMovement() Movement {
	return Movement{Step: DefaultMoveStep, ArriveEpsilon: DefaultMoveStep}
}

// Task is an agent's commitment to one kind of work on one field. While it
// exists the field's assignment slot names the owning agent.
type Task struct {
	ID    string
	Kind  tasks.Kind
	Field *Field
}

// Completion describes a task that finished during Act.
type Completion struct {
	AgentID AgentID
	TaskID  string
	Kind    tasks.Kind
	Cell    tasks.Cell
	// Applied is false when the field's precondition no longer held on arrival.
	Applied bool
}

type Agent struct {
	ID  AgentID
	Pos Pos

	move Movement
	task *Task

	taskSeq uint64
	done    map[tasks.Kind]int
}

func NewAgent(id AgentID, row, col float64, move Movement) *Agent {
	return &Agent{
		ID:   id,
		Pos:  Pos{Row: row, Col: col},
		move: move,
		done: map[tasks.Kind]int{},
	}
}

func (a *Agent) IsIdle() bool { return a.task == nil }

// CurrentTask returns a copy of the in-flight task, if any.
func (a *Agent) CurrentTask() (Task, bool) {
	if a.task == nil {
		return Task{}, false
	}
	return *a.task, true
}

// Completed returns how many tasks of kind this agent has finished with effect.
func (a *Agent) Completed(kind tasks.Kind) int { return a.done[kind] }

// CommitTask takes the field's lock and starts a task, provided kind is still
// eligible on field and nobody else holds it. Otherwise it is a no-op.
func (a *Agent) CommitTask(kind tasks.Kind, field *Field) bool {
	if a.task != nil {
		panic(fmt.Sprintf("farm: agent %s already has task %s", a.ID, a.task.ID))
	}
	if field == nil {
		return false
	}
	if !field.CanDo(kind) {
		return false
	}
	if holder, ok := field.AssignedWorker(); ok && holder != a.ID {
		return false
	}
	a.taskSeq++
	a.task = &Task{
		ID:    fmt.Sprintf("%s-T%05d", a.ID, a.taskSeq),
		Kind:  kind,
		Field: field,
	}
	field.AssignWorker(a.ID)
	return true
}

// Act advances the agent by one tick: one step along the row axis until that
// gap is closed, then along the column axis, then the work itself.
func (a *Agent) Act() *Completion {
	t := a.task
	if t == nil {
		return nil
	}
	dr := float64(t.Field.Row()) - a.Pos.Row
	dc := float64(t.Field.Col()) - a.Pos.Col
	eps := a.move.ArriveEpsilon

	if math.Abs(dr) >= eps {
		a.Pos.Row += math.Copysign(a.move.Step, dr)
		return nil
	}
	if math.Abs(dc) >= eps {
		a.Pos.Col += math.Copysign(a.move.Step, dc)
		return nil
	}

	applied := t.Field.Do(t.Kind)
	t.Field.ReleaseWorker()
	a.task = nil
	if applied {
		a.done[t.Kind]++
	}
	return &Completion{
		AgentID: a.ID,
		TaskID:  t.ID,
		Kind:    t.Kind,
		Cell:    t.Field.Cell(),
		Applied: applied,
	}
}
