package farm

import (
	"time"

	"farmhands.ai/internal/sim/tasks"
)

type ClockMode string

const (
	ClockWall ClockMode = "wall"
	ClockTick ClockMode = "tick"
)

type AgentSpec struct {
	ID  string
	Row float64
	Col float64
}

type SimConfig struct {
	RunID      string
	Width      int
	Height     int
	TickRateHz int

	Stages        int
	StageDuration time.Duration
	Movement      Movement

	// Clock picks where growth timing reads "now" from. ClockTick derives it
	// from Epoch plus elapsed ticks, which makes runs reproducible.
	Clock ClockMode
	Epoch time.Time

	Agents []AgentSpec
}

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

const (
	EventTaskAssigned = "TASK_ASSIGNED"
	EventTaskDone     = "TASK_DONE"
)

type Event struct {
	Type     string     `json:"type"`
	AgentID  AgentID    `json:"agent_id"`
	TaskID   string     `json:"task_id"`
	Kind     tasks.Kind `json:"kind"`
	Row      int        `json:"row"`
	Col      int        `json:"col"`
	Distance int        `json:"distance,omitempty"`
	// Noop marks a TASK_DONE whose transition found its precondition gone.
	Noop bool `json:"noop,omitempty"`
}

type TickLogEntry struct {
	Tick   uint64  `json:"tick"`
	RunID  string  `json:"run_id,omitempty"`
	Events []Event `json:"events,omitempty"`
	Digest string  `json:"digest"`
}

type Stats struct {
	Ticks     uint64             `json:"ticks"`
	Assigned  int                `json:"assigned"`
	Completed map[tasks.Kind]int `json:"completed"`
	Noops     int                `json:"noops"`
}

type FieldView struct {
	Row        int     `json:"row"`
	Col        int     `json:"col"`
	Plowed     bool    `json:"plowed"`
	Planted    bool    `json:"planted"`
	Watered    bool    `json:"watered"`
	Progress   float64 `json:"progress"`
	Stage      int     `json:"stage"`
	AssignedTo AgentID `json:"assigned_to,omitempty"`
}

type AgentView struct {
	ID     AgentID    `json:"id"`
	Pos    Pos        `json:"pos"`
	Task   tasks.Kind `json:"task,omitempty"`
	Target tasks.Cell `json:"target"`
}

// View is a read-only copy of everything a renderer needs for one frame.
type View struct {
	Tick   uint64      `json:"tick"`
	Width  int         `json:"width"`
	Height int         `json:"height"`
	Fields []FieldView `json:"fields"`
	Agents []AgentView `json:"agents"`
}
