package farm

import (
	"math"

	"farmhands.ai/internal/sim/tasks"
)

// Assignment records one task handed out by Coordinate.
type Assignment struct {
	AgentID  AgentID
	TaskID   string
	Kind     tasks.Kind
	Cell     tasks.Cell
	Distance int
}

// Coordinator matches idle agents to the nearest workable field.
//
// Agents are processed one at a time in roster order. Each commit takes the
// field's assignment slot before the next agent searches, which is what keeps
// two agents off the same field in a single pass. Parallelising this loop
// would need a compare-and-set on Field.assigned.
type Coordinator struct {
	farm   *Farm
	agents []*Agent
}

func NewCoordinator(f *Farm, agents []*Agent) *Coordinator {
	return &Coordinator{farm: f, agents: agents}
}

func (c *Coordinator) Coordinate() []Assignment {
	var out []Assignment
	for _, a := range c.agents {
		if !a.IsIdle() {
			continue
		}
		row, col := roundPos(a.Pos)
		field, dist := c.NearestWorkable(row, col)
		if field == nil {
			continue
		}
		kind, ok := field.NextEligibleWork()
		if !ok {
			continue
		}
		if !a.CommitTask(kind, field) {
			continue
		}
		t, _ := a.CurrentTask()
		out = append(out, Assignment{
			AgentID:  a.ID,
			TaskID:   t.ID,
			Kind:     kind,
			Cell:     field.Cell(),
			Distance: dist,
		})
	}
	return out
}

// NearestWorkable scans Manhattan rings around (row, col), nearest first.
// Within a ring rows ascend, and columns ascend within each row, so ties go to
// the lowest row and then the lowest column. It returns nil, -1 when nothing
// on the farm is workable.
func (c *Coordinator) NearestWorkable(row, col int) (*Field, int) {
	w, h := c.farm.Width(), c.farm.Height()
	maxDist := cornerDistance(row, col, w, h)
	for d := 0; d <= maxDist; d++ {
		for r := max(row-d, 1); r <= min(row+d, h); r++ {
			budget := d - absInt(r-row)
			// Columns strictly inside the budget were covered by nearer rings.
			for _, cc := range [2]int{col - budget, col + budget} {
				if cc >= 1 && cc <= w && c.farm.Field(r, cc).IsWorkable() {
					return c.farm.Field(r, cc), d
				}
				if budget == 0 {
					break
				}
			}
		}
	}
	return nil, -1
}

// cornerDistance is the largest Manhattan distance from (row, col) to any of
// the four farm corners.
func cornerDistance(row, col, w, h int) int {
	best := 0
	for _, corner := range [4][2]int{{1, 1}, {1, w}, {h, 1}, {h, w}} {
		if d := absInt(row-corner[0]) + absInt(col-corner[1]); d > best {
			best = d
		}
	}
	return best
}

func roundPos(p Pos) (int, int) {
	return int(math.Round(p.Row)), int(math.Round(p.Col))
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
