package farm

import (
	"fmt"

	"farmhands.ai/internal/sim/grid"
)

// Farm owns a fixed width×height grid of fields.
type Farm struct {
	width  int
	height int
	growth *Growth
	fields *grid.Grid[*Field]
}

func NewFarm(width, height int, growth Growth) (*Farm, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("farm size must be positive: %dx%d", width, height)
	}
	if growth.Stages <= 0 || growth.StageDuration <= 0 {
		return nil, fmt.Errorf("growth needs positive stages and stage duration: %d x %s", growth.Stages, growth.StageDuration)
	}
	if growth.Clock == nil {
		growth.Clock = WallClock
	}
	g := &growth
	fields := grid.New[*Field](width, height)
	for r := 1; r <= height; r++ {
		for c := 1; c <= width; c++ {
			fields.Set(r, c, newField(r, c, g))
		}
	}
	return &Farm{width: width, height: height, growth: g, fields: fields}, nil
}

func (f *Farm) Width() int  { return f.width }
func (f *Farm) Height() int { return f.height }

func (f *Farm) Growth() Growth { return *f.growth }

// Field returns the field at 1-indexed (row, col). It panics out of range.
func (f *Farm) Field(row, col int) *Field {
	return f.fields.Get(row, col)
}

func (f *Farm) Contains(row, col int) bool {
	return f.fields.Contains(row, col)
}

// Each visits every field in row-major order.
func (f *Farm) Each(fn func(*Field)) {
	f.fields.Each(func(_, _ int, fd *Field) { fn(fd) })
}

// Counts tallies fields per cultivation flag.
type Counts struct {
	Fields   int `json:"fields"`
	Plowed   int `json:"plowed"`
	Planted  int `json:"planted"`
	Watered  int `json:"watered"`
	Ripe     int `json:"ripe"`
	Assigned int `json:"assigned"`
}

func (f *Farm) Counts() Counts {
	var c Counts
	f.Each(func(fd *Field) {
		c.Fields++
		if fd.IsPlowed() {
			c.Plowed++
		}
		if fd.IsPlanted() {
			c.Planted++
		}
		if fd.IsWatered() {
			c.Watered++
		}
		if fd.CanHarvest() {
			c.Ripe++
		}
		if _, ok := fd.AssignedWorker(); ok {
			c.Assigned++
		}
	})
	return c
}
