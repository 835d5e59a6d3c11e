package theme

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

type Theme struct {
	Palette *Palette
	Symbols Symbols
}

type Symbols struct {
	// Beat grid (no cursor)
	PadNone     rune // · no sound assigned
	PadOff      rune // ○ sound assigned, inactive
	PadOn       rune // ● active
	PadPlayhead rune // ▶ active pad being played

	// Beat grid (with cursor)
	CursorNone     rune // ◦ cursor on unassigned pad
	CursorOff      rune // ◎ cursor on inactive pad
	CursorOn       rune // ◉ cursor on active pad
	CursorPlayhead rune // ▷ cursor on the playhead column

	Recording rune // ⏺
}

func New(palette *Palette) *Theme {
	if palette == nil {
		palette = DefaultPalette()
	}
	return &Theme{
		Palette: palette,
		Symbols: Symbols{
			PadNone:     '·',
			PadOff:      '○',
			PadOn:       '●',
			PadPlayhead: '▶',

			CursorNone:     '◦',
			CursorOff:      '◎',
			CursorOn:       '◉',
			CursorPlayhead: '▷',

			Recording: '⏺',
		},
	}
}

// Color roles mapped to palette positions (0-1)
const (
	RoleSurface = 0.1 // dark purple
	RoleMuted   = 0.2 // purple-magenta
	RoleFG      = 0.4 // pink-purple (readable)
	RoleAccent  = 0.5 // vivid magenta
	RoleCursor  = 0.6 // rose pink
	RoleActive  = 0.7 // soft red
	RoleWarning = 0.8 // orange
	RoleSuccess = 1.0 // bright yellow
)

// Style helpers

func (t *Theme) FG() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleFG))
}

func (t *Theme) Accent() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleAccent))
}

func (t *Theme) Muted() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleMuted))
}

func (t *Theme) Active() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleActive))
}

func (t *Theme) Cursor() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleCursor))
}

func (t *Theme) Warning() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleWarning))
}

func (t *Theme) Success() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleSuccess))
}

func rgbToLipgloss(c RGB) lipgloss.Color {
	return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2]))
}

// RowRGB spreads beat grid rows over the bright half of the palette
func (t *Theme) RowRGB(row, rows int) RGB {
	if rows <= 1 {
		return t.Palette.Lookup(RoleAccent)
	}
	return t.Palette.Lookup(0.4 + 0.6*float64(row)/float64(rows-1))
}

// Row returns the lipgloss color of a beat grid row
func (t *Theme) Row(row, rows int) lipgloss.Color {
	return rgbToLipgloss(t.RowRGB(row, rows))
}
