package grid

// Toggle flips the active flag of the pad at row, col. A pad without a
// sound stays inactive; the result is still a fresh copy.
func Toggle(g *Grid, row, col int) (*Grid, error) {
	if !g.inRange(row, col) {
		return nil, outOfRange(g, row, col)
	}
	out := g.clone()
	p := &out.pads[row][col]
	if p.SoundID != "" {
		p.Active = !p.Active
	}
	return out, nil
}

// AssignSound binds soundID to the pad at row, col and switches it on.
// An empty id clears the pad. Assigning the id the pad already holds
// clears the pad as well, so picking the same sound twice acts as remove.
func AssignSound(g *Grid, row, col int, soundID string) (*Grid, error) {
	if !g.inRange(row, col) {
		return nil, outOfRange(g, row, col)
	}
	out := g.clone()
	p := &out.pads[row][col]
	if soundID == "" || soundID == p.SoundID {
		p.SoundID = ""
		p.Active = false
		return out, nil
	}
	p.SoundID = soundID
	p.Active = true
	return out, nil
}

// Resize grows or shrinks the grid. Pads in the overlapping region are kept
// as is; new positions get empty pads; pads outside the new bounds are lost.
func Resize(g *Grid, rows, cols int) (*Grid, error) {
	if rows < 1 || cols < 1 {
		return nil, invalidSize(rows, cols)
	}
	out, _ := New(rows, cols)
	for r := 0; r < rows && r < g.Rows(); r++ {
		for c := 0; c < cols && c < g.Cols(); c++ {
			out.pads[r][c] = g.pads[r][c]
		}
	}
	return out, nil
}

// AddRow appends an empty row at the bottom
func AddRow(g *Grid) (*Grid, error) {
	return Resize(g, g.Rows()+1, g.Cols())
}

// RemoveRow drops the last row, never going below one row
func RemoveRow(g *Grid) (*Grid, error) {
	return Resize(g, max(g.Rows()-1, 1), g.Cols())
}

// AddColumn appends an empty column on the right
func AddColumn(g *Grid) (*Grid, error) {
	return Resize(g, g.Rows(), g.Cols()+1)
}

// RemoveColumn drops the last column, never going below one column
func RemoveColumn(g *Grid) (*Grid, error) {
	return Resize(g, g.Rows(), max(g.Cols()-1, 1))
}

// Clear switches every pad off, keeping sound assignments
func Clear(g *Grid) *Grid {
	if g == nil {
		return nil
	}
	out := g.clone()
	for r := range out.pads {
		for c := range out.pads[r] {
			out.pads[r][c].Active = false
		}
	}
	return out
}
