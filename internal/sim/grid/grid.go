package grid

import "fmt"

// Grid is a dense width×height store addressed by 1-indexed (row, col).
// Slots are laid out row-major.
type Grid[T any] struct {
	width  int
	height int
	cells  []T
}

func New[T any](width, height int) *Grid[T] {
	if width <= 0 || height <= 0 {
		panic(fmt.Sprintf("grid: invalid size %dx%d", width, height))
	}
	return &Grid[T]{
		width:  width,
		height: height,
		cells:  make([]T, width*height),
	}
}

func (g *Grid[T]) Width() int  { return g.width }
func (g *Grid[T]) Height() int { return g.height }

// Contains reports whether (row, col) addresses a slot.
func (g *Grid[T]) Contains(row, col int) bool {
	return row >= 1 && row <= g.height && col >= 1 && col <= g.width
}

func (g *Grid[T]) Get(row, col int) T {
	return g.cells[g.index(row, col)]
}

func (g *Grid[T]) Set(row, col int, v T) {
	g.cells[g.index(row, col)] = v
}

// Each visits every slot in row-major order.
func (g *Grid[T]) Each(fn func(row, col int, v T)) {
	for i, v := range g.cells {
		fn(i/g.width+1, i%g.width+1, v)
	}
}

func (g *Grid[T]) index(row, col int) int {
	// A column past the edge would otherwise alias into the next row.
	if !g.Contains(row, col) {
		panic(fmt.Sprintf("grid: (%d,%d) outside %dx%d", row, col, g.width, g.height))
	}
	return (row-1)*g.width + (col - 1)
}
