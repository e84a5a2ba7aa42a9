package sudoku

import (
	"fmt"

	"math-io-server/internal/prng"
)

type Generator struct {
	size      int
	geo       Geometry
	rng       *prng.Rand
	stepLimit int
	steps     int
}

type Option func(*Generator)

// WithStepLimit caps the number of backtracking steps. Values below 1 keep the
// default.
func WithStepLimit(limit int) Option {
	return func(g *Generator) {
		if limit > 0 {
			g.stepLimit = limit
		}
	}
}

func NewGenerator(size int, rng *prng.Rand, opts ...Option) *Generator {
	g := &Generator{
		size:      size,
		geo:       GeometryFor(size),
		rng:       rng,
		stepLimit: DefaultStepLimit,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Generator) Size() int          { return g.size }
func (g *Generator) Geometry() Geometry { return g.geo }

// Solution fills an empty grid by randomized backtracking. It never returns a
// partially filled grid: on failure the grid is discarded and ErrExhausted is
// returned.
func (g *Generator) Solution() (Grid, error) {
	if g.size < 1 {
		return nil, fmt.Errorf("%w: invalid size %d", ErrExhausted, g.size)
	}

	g.steps = 0
	grid := NewGrid(g.size)

	solved, err := g.fill(grid)
	if err != nil {
		return nil, err
	}
	if !solved {
		return nil, fmt.Errorf("%w: no solution for size %d", ErrExhausted, g.size)
	}
	return grid, nil
}

func (g *Generator) fill(grid Grid) (bool, error) {
	g.steps++
	if g.steps > g.stepLimit {
		return false, fmt.Errorf("%w: step limit %d reached for size %d", ErrExhausted, g.stepLimit, g.size)
	}

	row, col, found := firstEmpty(grid)
	if !found {
		return true, nil
	}

	nums := make([]int, g.size)
	for i := range nums {
		nums[i] = i + 1
	}
	g.rng.Shuffle(len(nums), func(i, j int) { nums[i], nums[j] = nums[j], nums[i] })

	for _, v := range nums {
		if !placeable(grid, g.geo, row, col, v) {
			continue
		}
		grid[row][col] = v
		solved, err := g.fill(grid)
		if err != nil {
			return false, err
		}
		if solved {
			return true, nil
		}
		grid[row][col] = 0
	}
	return false, nil
}

func firstEmpty(grid Grid) (int, int, bool) {
	for r, cells := range grid {
		for c, v := range cells {
			if v == 0 {
				return r, c, true
			}
		}
	}
	return -1, -1, false
}

type Cell struct {
	Value int  `json:"value"` // 0 when blanked
	Fixed bool `json:"fixed"`
}

type Puzzle struct {
	Size       int        `json:"size"`
	Difficulty Difficulty `json:"difficulty"`
	Solution   Grid       `json:"solution"`
	Cells      [][]Cell   `json:"cells"`
	Removed    int        `json:"removed"`
}

// Mask blanks CellsToRemove(size, d) cells of solution, chosen by shuffling all
// coordinates in row-major order with the generator's stream.
func (g *Generator) Mask(solution Grid, d Difficulty) *Puzzle {
	n := len(solution)
	cells := make([][]Cell, n)
	for y := range n {
		cells[y] = make([]Cell, n)
		for x := range n {
			cells[y][x] = Cell{Value: solution[y][x], Fixed: true}
		}
	}

	type coord struct{ x, y int }
	coords := make([]coord, 0, n*n)
	for y := range n {
		for x := range n {
			coords = append(coords, coord{x, y})
		}
	}
	g.rng.Shuffle(len(coords), func(i, j int) { coords[i], coords[j] = coords[j], coords[i] })

	remove := min(CellsToRemove(n, d), len(coords))
	for _, c := range coords[:remove] {
		cells[c.y][c.x] = Cell{}
	}

	return &Puzzle{
		Size:       n,
		Difficulty: d,
		Solution:   solution,
		Cells:      cells,
		Removed:    remove,
	}
}

// Generate builds the solution and the mask for a round seed.
func Generate(size int, seed int64, d Difficulty, opts ...Option) (*Puzzle, error) {
	g := NewGenerator(size, prng.New(seed), opts...)

	solution, err := g.Solution()
	if err != nil {
		return nil, err
	}
	return g.Mask(solution, d), nil
}

// InBounds reports whether (x, y) addresses a cell of the puzzle.
func (p *Puzzle) InBounds(x, y int) bool {
	return x >= 0 && y >= 0 && x < p.Size && y < p.Size
}

// Accepts reports whether value is the solution for a blanked cell.
func (p *Puzzle) Accepts(x, y, value int) bool {
	if !p.InBounds(x, y) {
		return false
	}
	if p.Cells[y][x].Fixed {
		return false
	}
	return p.Solution[y][x] == value
}
