package sequencer

// Cell is one (row, step) slot of the pattern
type Cell struct {
	Active   bool    `json:"active"`
	Velocity float64 `json:"velocity"` // 0-1, not used for playback yet
	Shift    float64 `json:"shift"`    // reserved timing offset
}

// Coord addresses a cell
type Coord struct {
	Row, Step int
}

// Grid is the rows x steps pattern. Its size never changes after NewGrid, so
// row i always belongs to voice i.
type Grid struct {
	rows  int
	steps int
	cells [][]Cell
}

// NewGrid allocates every cell up front with default velocity
func NewGrid(rows, steps int) *Grid {
	if rows < 0 {
		rows = 0
	}
	if steps < 1 {
		steps = 1
	}
	g := &Grid{rows: rows, steps: steps, cells: make([][]Cell, rows)}
	for r := range g.cells {
		g.cells[r] = make([]Cell, steps)
		for s := range g.cells[r] {
			g.cells[r][s] = Cell{Velocity: 1}
		}
	}
	return g
}

func (g *Grid) Rows() int  { return g.rows }
func (g *Grid) Steps() int { return g.steps }

// InRange reports whether (row, step) addresses a cell
func (g *Grid) InRange(row, step int) bool {
	return row >= 0 && row < g.rows && step >= 0 && step < g.steps
}

// Cell returns a copy of the cell (zero Cell when out of range)
func (g *Grid) Cell(row, step int) Cell {
	if !g.InRange(row, step) {
		return Cell{}
	}
	return g.cells[row][step]
}

// Active reports whether the cell is on
func (g *Grid) Active(row, step int) bool {
	return g.InRange(row, step) && g.cells[row][step].Active
}

// Toggle flips a cell and returns its new state
func (g *Grid) Toggle(row, step int) bool {
	if !g.InRange(row, step) {
		return false
	}
	c := &g.cells[row][step]
	c.Active = !c.Active
	return c.Active
}

// Set sets a cell and reports whether it changed
func (g *Grid) Set(row, step int, active bool) bool {
	if !g.InRange(row, step) {
		return false
	}
	c := &g.cells[row][step]
	if c.Active == active {
		return false
	}
	c.Active = active
	return true
}

// Row returns the on/off pattern of one row
func (g *Grid) Row(row int) []bool {
	out := make([]bool, g.steps)
	if row < 0 || row >= g.rows {
		return out
	}
	for s, c := range g.cells[row] {
		out[s] = c.Active
	}
	return out
}

// Clear turns every cell off in place and returns the cells that changed
func (g *Grid) Clear() []Coord {
	var changed []Coord
	for r := range g.cells {
		for s := range g.cells[r] {
			if g.cells[r][s].Active {
				g.cells[r][s].Active = false
				changed = append(changed, Coord{Row: r, Step: s})
			}
		}
	}
	return changed
}

// ActiveCount returns the number of active cells in a row
func (g *Grid) ActiveCount(row int) int {
	n := 0
	for _, on := range g.Row(row) {
		if on {
			n++
		}
	}
	return n
}
