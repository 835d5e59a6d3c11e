package grid

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/google/uuid"
)

var (
	ErrOutOfRange  = errors.New("pad out of range")
	ErrInvalidSize = errors.New("grid must be at least 1x1")
)

// Pad is one cell of the grid. Active implies SoundID != "".
type Pad struct {
	ID      string `json:"id"`
	Row     int    `json:"row"`
	Col     int    `json:"col"`
	SoundID string `json:"soundId,omitempty"`
	Active  bool   `json:"active"`
}

// Grid is an immutable rows x cols matrix of pads. Every edit returns a
// fresh Grid; nothing mutable is shared between a grid and its edits.
type Grid struct {
	rows, cols int
	pads       [][]Pad
}

func newPad(row, col int) Pad {
	return Pad{ID: uuid.NewString(), Row: row, Col: col}
}

// New creates an empty grid with every pad unassigned and inactive
func New(rows, cols int) (*Grid, error) {
	if rows < 1 || cols < 1 {
		return nil, invalidSize(rows, cols)
	}
	g := &Grid{rows: rows, cols: cols, pads: make([][]Pad, rows)}
	for r := range g.pads {
		g.pads[r] = make([]Pad, cols)
		for c := range g.pads[r] {
			g.pads[r][c] = newPad(r, c)
		}
	}
	return g, nil
}

// Seed assigns soundIDs[i] to every pad of row i (inactive). Rows past the
// end of soundIDs and empty ids are left alone. A nil grid stays nil.
func Seed(g *Grid, soundIDs []string) *Grid {
	if g == nil {
		return nil
	}
	out := g.clone()
	for r := 0; r < out.rows && r < len(soundIDs); r++ {
		if soundIDs[r] == "" {
			continue
		}
		for c := range out.pads[r] {
			out.pads[r][c].SoundID = soundIDs[r]
		}
	}
	return out
}

// Rows returns the number of rows (0 for a nil grid)
func (g *Grid) Rows() int {
	if g == nil {
		return 0
	}
	return g.rows
}

// Cols returns the number of columns (0 for a nil grid)
func (g *Grid) Cols() int {
	if g == nil {
		return 0
	}
	return g.cols
}

// Pad returns a copy of the pad at row, col
func (g *Grid) Pad(row, col int) (Pad, bool) {
	if !g.inRange(row, col) {
		return Pad{}, false
	}
	return g.pads[row][col], true
}

// Pads returns a copy of every pad, row-major
func (g *Grid) Pads() [][]Pad {
	if g == nil {
		return nil
	}
	return g.clone().pads
}

// ActiveInColumn returns the sound ids of the active pads in col, top row first
func (g *Grid) ActiveInColumn(col int) []string {
	if g == nil || col < 0 || col >= g.cols {
		return nil
	}
	var ids []string
	for r := 0; r < g.rows; r++ {
		p := g.pads[r][col]
		if p.Active && p.SoundID != "" {
			ids = append(ids, p.SoundID)
		}
	}
	return ids
}

// ActiveCount returns how many pads are switched on
func (g *Grid) ActiveCount() int {
	n := 0
	if g == nil {
		return n
	}
	for _, row := range g.pads {
		for _, p := range row {
			if p.Active {
				n++
			}
		}
	}
	return n
}

// SoundIDs returns the distinct sound ids referenced by the grid, in row-major order
func (g *Grid) SoundIDs() []string {
	if g == nil {
		return nil
	}
	seen := make(map[string]bool)
	var ids []string
	for _, row := range g.pads {
		for _, p := range row {
			if p.SoundID != "" && !seen[p.SoundID] {
				seen[p.SoundID] = true
				ids = append(ids, p.SoundID)
			}
		}
	}
	return ids
}

// Equal reports whether two grids have the same shape and pad contents
func (g *Grid) Equal(other *Grid) bool {
	if g.Rows() != other.Rows() || g.Cols() != other.Cols() {
		return false
	}
	for r := 0; r < g.Rows(); r++ {
		for c := 0; c < g.Cols(); c++ {
			if g.pads[r][c] != other.pads[r][c] {
				return false
			}
		}
	}
	return true
}

// String renders the grid as rows of '.', 'o' (assigned) and 'x' (active)
func (g *Grid) String() string {
	if g == nil {
		return "<nil grid>"
	}
	buf := make([]byte, 0, g.rows*(g.cols+1))
	for r, row := range g.pads {
		if r > 0 {
			buf = append(buf, '\n')
		}
		for _, p := range row {
			switch {
			case p.Active:
				buf = append(buf, 'x')
			case p.SoundID != "":
				buf = append(buf, 'o')
			default:
				buf = append(buf, '.')
			}
		}
	}
	return string(buf)
}

func (g *Grid) inRange(row, col int) bool {
	return g != nil && row >= 0 && row < g.rows && col >= 0 && col < g.cols
}

func (g *Grid) clone() *Grid {
	out := &Grid{rows: g.rows, cols: g.cols, pads: make([][]Pad, g.rows)}
	for r := range g.pads {
		out.pads[r] = make([]Pad, g.cols)
		copy(out.pads[r], g.pads[r])
	}
	return out
}

func outOfRange(g *Grid, row, col int) error {
	return fault.Wrap(ErrOutOfRange,
		fmsg.WithDesc(
			fmt.Sprintf("pad (%d,%d) outside %dx%d grid", row, col, g.Rows(), g.Cols()),
			"That pad is not on the grid"),
		ftag.With(ftag.InvalidArgument),
	)
}

func invalidSize(rows, cols int) error {
	return fault.Wrap(ErrInvalidSize,
		fmsg.WithDesc(
			fmt.Sprintf("cannot build %dx%d grid", rows, cols),
			"The grid needs at least one row and one column"),
		ftag.With(ftag.InvalidArgument),
	)
}

type gridJSON struct {
	Rows int     `json:"rows"`
	Cols int     `json:"cols"`
	Pads [][]Pad `json:"pads"`
}

func (g *Grid) MarshalJSON() ([]byte, error) {
	if g == nil {
		return []byte("null"), nil
	}
	return json.Marshal(gridJSON{Rows: g.rows, Cols: g.cols, Pads: g.pads})
}

// UnmarshalJSON restores a grid, re-deriving pad coordinates from their
// position and dropping the active flag on pads without a sound.
func (g *Grid) UnmarshalJSON(data []byte) error {
	var raw gridJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Rows < 1 || raw.Cols < 1 || len(raw.Pads) != raw.Rows {
		return invalidSize(raw.Rows, raw.Cols)
	}
	for r, row := range raw.Pads {
		if len(row) != raw.Cols {
			return fault.Wrap(ErrInvalidSize,
				fmsg.With(fmt.Sprintf("row %d has %d pads, want %d", r, len(row), raw.Cols)),
				ftag.With(ftag.InvalidArgument))
		}
		for c := range row {
			p := &row[c]
			p.Row, p.Col = r, c
			if p.ID == "" {
				p.ID = uuid.NewString()
			}
			if p.SoundID == "" {
				p.Active = false
			}
		}
	}
	g.rows, g.cols, g.pads = raw.Rows, raw.Cols, raw.Pads
	return nil
}
