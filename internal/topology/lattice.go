package topology

import (
	"math"

	"github.com/talgya/spatial-dilemma/internal/model"
)

// mooreDirections are the eight (row, col) offsets of the Moore neighborhood.
var mooreDirections = [8][2]int{
	{-1, -1}, {-1, 0}, {-1, 1},
	{0, -1}, {0, 1},
	{1, -1}, {1, 0}, {1, 1},
}

// LatticeSide returns sqrt(n) when n is a perfect square.
func LatticeSide(n int) (int, bool) {
	side := int(math.Round(math.Sqrt(float64(n))))
	return side, side*side == n
}

// buildLattice wires an n×n torus with 8 neighbors per cell. Node id is
// row*side + col.
//
// Construction runs in three passes: the open 4-neighbor grid, the
// diagonals of every interior cell, then the wrap-around edges of every
// border row, column, and corner. After the last pass every cell has
// exactly 8 distinct neighbors.
func buildLattice(b *builder, n int) (int, error) {
	side, ok := LatticeSide(n)
	if !ok {
		return 0, model.Configf("population", "lattice needs a perfect square, got %d", n)
	}
	if side < 3 {
		return 0, model.Configf("population", "lattice side must be at least 3 for 8 distinct neighbors, got %d", side)
	}

	id := func(row, col int) int { return row*side + col }

	// Open grid: right and down.
	for row := 0; row < side; row++ {
		for col := 0; col < side; col++ {
			if row+1 < side {
				b.link(id(row, col), id(row+1, col))
			}
			if col+1 < side {
				b.link(id(row, col), id(row, col+1))
			}
		}
	}

	// Interior diagonals.
	for row := 1; row < side-1; row++ {
		for col := 1; col < side-1; col++ {
			b.link(id(row, col), id(row+1, col+1))
			b.link(id(row, col), id(row+1, col-1))
			b.link(id(row, col), id(row-1, col+1))
			b.link(id(row, col), id(row-1, col-1))
		}
	}

	// Periodic boundary: each border cell links to its Moore neighbors taken
	// modulo side, which covers the wrapped row/column and the corners.
	for row := 0; row < side; row++ {
		for col := 0; col < side; col++ {
			if row != 0 && row != side-1 && col != 0 && col != side-1 {
				continue
			}
			for _, d := range mooreDirections {
				r := (row + d[0] + side) % side
				c := (col + d[1] + side) % side
				b.link(id(row, col), id(r, c))
			}
		}
	}

	return side, nil
}

func buildRing(b *builder, n int) error {
	if n < 3 {
		return model.Configf("population", "ring needs at least 3 agents, got %d", n)
	}
	for i := 0; i < n; i++ {
		b.link(i, (i+1)%n)
	}
	return nil
}

func buildComplete(b *builder, n int) error {
	if n < 2 {
		return model.Configf("population", "complete graph needs at least 2 agents, got %d", n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			b.link(i, j)
		}
	}
	return nil
}
