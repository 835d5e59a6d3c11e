package midi

import "testing"

func TestNoteMappingRoundTrip(t *testing.T) {
	for row := 0; row < 8; row++ {
		for col := 0; col < 9; col++ {
			r, c := noteToRowCol(rowColToNote(row, col))
			if r != row || c != col {
				t.Errorf("(%d,%d) -> note %d -> (%d,%d)", row, col, rowColToNote(row, col), r, c)
			}
		}
	}
	for col := 0; col < 8; col++ {
		r, c := ccToRowCol(rowColToNote(8, col))
		if r != 8 || c != col {
			t.Errorf("top row col %d -> (%d,%d)", col, r, c)
		}
	}
}

func TestNoteMappingRejectsOffGrid(t *testing.T) {
	for _, note := range []uint8{0, 5, 10, 20, 90, 99, 127} {
		if r, _ := noteToRowCol(note); r != -1 {
			t.Errorf("note %d mapped to row %d", note, r)
		}
	}
	if r, _ := ccToRowCol(64); r != -1 {
		t.Error("cc 64 should not map")
	}
}

func TestMapRGBToLaunchpad(t *testing.T) {
	cases := []struct {
		rgb  [3]uint8
		want uint8
	}{
		{[3]uint8{0, 0, 0}, 0},
		{[3]uint8{255, 0, 0}, 5},
		{[3]uint8{0, 255, 0}, 21},
		{[3]uint8{250, 250, 250}, 119},
	}
	for _, tc := range cases {
		if got := mapRGBToLaunchpad(tc.rgb); got != tc.want {
			t.Errorf("mapRGBToLaunchpad(%v) = %d, want %d", tc.rgb, got, tc.want)
		}
	}
}

func TestModelFromName(t *testing.T) {
	cases := map[string]Model{
		"Launchpad X LPX MIDI":         ModelX,
		"Launchpad Mini MK3 LPMiniMK3": ModelMini,
		"Launchpad Pro MK3 LPProMK3":   ModelPro,
	}
	for name, want := range cases {
		if got := ModelFromName(name); got != want {
			t.Errorf("ModelFromName(%q) = %#x, want %#x", name, byte(got), byte(want))
		}
	}
}

func TestPortClassification(t *testing.T) {
	if !isLaunchpad("Launchpad X LPX MIDI") || isLaunchpad("Launchpad X LPX DAW") {
		t.Error("launchpad detection wrong")
	}
	if !isThrough("Midi Through Port-0") {
		t.Error("through port not detected")
	}
}
