package widgets

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"beatpad/midi"
)

// RenderPad renders a single colored pad
func RenderPad(color [3]uint8) string {
	style := lipgloss.NewStyle().Foreground(lipgloss.Color(rgbToHex(color)))
	return style.Render("■")
}

// RenderPadRow renders a row of colored pads with spacing
func RenderPadRow(colors [][3]uint8) string {
	var out strings.Builder
	for i, c := range colors {
		if i > 0 {
			out.WriteString(" ")
		}
		out.WriteString(RenderPad(c))
	}
	return out.String()
}

// RenderLaunchpad mirrors a Launchpad LED frame: the top button row first,
// then pad rows 7 down to 0, each followed by its scene button. LEDs not in
// the frame render dark.
func RenderLaunchpad(leds []midi.LEDUpdate, dark [3]uint8) string {
	var frame [9][9][3]uint8
	for r := range frame {
		for c := range frame[r] {
			frame[r][c] = dark
		}
	}
	for _, led := range leds {
		if led.Row < 0 || led.Row > 8 || led.Col < 0 || led.Col > 8 {
			continue
		}
		frame[led.Row][led.Col] = led.Color
	}

	lines := make([]string, 0, 9)
	for row := 8; row >= 0; row-- {
		cols := frame[row][:]
		if row == 8 {
			cols = cols[:8] // no LED at the top-right corner
		}
		lines = append(lines, RenderPadRow(cols))
	}
	return strings.Join(lines, "\n")
}

// RenderLegendItem renders a single legend item: "■ Name - description"
func RenderLegendItem(color [3]uint8, name, desc string) string {
	return fmt.Sprintf("  %s %s - %s", RenderPad(color), name, desc)
}

func rgbToHex(c [3]uint8) string {
	return fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2])
}
