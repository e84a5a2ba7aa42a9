// Package sudoku generates number-placement puzzles from a seeded stream.
//
// Generation consumes the stream in a fixed order (solution backtracking first,
// then the removal shuffle), so a client holding the same seed reproduces the
// same solution and the same mask.
package sudoku

import (
	"errors"
	"math"
)

// DefaultStepLimit bounds the backtracking search. Timestamp seeds for sizes up
// to 9 finish in a few hundred steps and most 16x16 seeds in under 50k. A seed
// that hits the limit fails its round instead of stalling the room.
const DefaultStepLimit = 2_000_000

var ErrExhausted = errors.New("GENERATOR_EXHAUSTED: Puzzle generation did not complete")

// SupportedSizes are the grid sizes with a dedicated box geometry.
var SupportedSizes = []int{4, 6, 9, 16}

type Grid [][]int

type Geometry struct {
	BoxWidth  int
	BoxHeight int
}

// GeometryFor returns the box shape for size. Unknown sizes use 3x3 boxes.
func GeometryFor(size int) Geometry {
	switch size {
	case 4:
		return Geometry{BoxWidth: 2, BoxHeight: 2}
	case 6:
		return Geometry{BoxWidth: 3, BoxHeight: 2}
	case 9:
		return Geometry{BoxWidth: 3, BoxHeight: 3}
	case 16:
		return Geometry{BoxWidth: 4, BoxHeight: 4}
	default:
		return Geometry{BoxWidth: 3, BoxHeight: 3}
	}
}

type Difficulty string

const (
	Easy   Difficulty = "easy"
	Medium Difficulty = "medium"
	Hard   Difficulty = "hard"
)

// RemovalRatio is the share of cells blanked for a difficulty. Anything
// unrecognised is treated as easy.
func RemovalRatio(d Difficulty) float64 {
	switch d {
	case Medium:
		return 0.55
	case Hard:
		return 0.65
	default:
		return 0.40
	}
}

// CellsToRemove is floor(size² × ratio).
func CellsToRemove(size int, d Difficulty) int {
	return int(math.Floor(float64(size*size) * RemovalRatio(d)))
}

func NewGrid(size int) Grid {
	g := make(Grid, size)
	for i := range g {
		g[i] = make([]int, size)
	}
	return g
}

func (g Grid) Clone() Grid {
	out := make(Grid, len(g))
	for i, row := range g {
		out[i] = append([]int(nil), row...)
	}
	return out
}

// Valid reports whether g is completely filled with 1..n and has no repeated
// value in any row, column or box.
func (g Grid) Valid() bool {
	n := len(g)
	geo := GeometryFor(n)

	for i := range n {
		if len(g[i]) != n {
			return false
		}
	}

	for r := range n {
		for c := range n {
			v := g[r][c]
			if v < 1 || v > n {
				return false
			}
			g[r][c] = 0
			ok := placeable(g, geo, r, c, v)
			g[r][c] = v
			if !ok {
				return false
			}
		}
	}
	return true
}

// placeable reports whether v may go at (row, col) without repeating in the
// row, the column or the box. Box cells falling outside the grid are ignored.
func placeable(g Grid, geo Geometry, row, col, v int) bool {
	n := len(g)
	for x := range n {
		if g[row][x] == v {
			return false
		}
	}
	for y := range n {
		if g[y][col] == v {
			return false
		}
	}

	startRow := row - row%geo.BoxHeight
	startCol := col - col%geo.BoxWidth
	for i := range geo.BoxHeight {
		r := startRow + i
		if r >= n {
			break
		}
		for j := range geo.BoxWidth {
			c := startCol + j
			if c >= n {
				break
			}
			if g[r][c] == v {
				return false
			}
		}
	}
	return true
}
