package theme

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadGPL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.gpl")
	data := "GIMP Palette\nName: Test\nColumns: 2\n# comment\n0 0 0\tblack\n255 255 255\twhite\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	p, err := LoadGPL(path)
	if err != nil {
		t.Fatalf("LoadGPL: %v", err)
	}
	if p.Name != "Test" || len(p.Colors) != 2 {
		t.Fatalf("palette = %+v", p)
	}
	if got := p.Lookup(0.5); got != (RGB{127, 127, 127}) {
		t.Errorf("Lookup(0.5) = %v", got)
	}
	if got := p.Index(9); got != (RGB{255, 255, 255}) {
		t.Errorf("Index past end = %v", got)
	}
}

func TestLoadGPLEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.gpl")
	if err := os.WriteFile(path, []byte("GIMP Palette\nName: Empty\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadGPL(path); !errors.Is(err, ErrEmptyPalette) {
		t.Errorf("err = %v, want ErrEmptyPalette", err)
	}
}

func TestLoadOrDefault(t *testing.T) {
	p, err := LoadOrDefault("")
	if err != nil || p.Name != "Plasma" {
		t.Errorf("empty path: %v %v", p, err)
	}
	p, err = LoadOrDefault(filepath.Join(t.TempDir(), "missing.gpl"))
	if err == nil {
		t.Error("missing file should report an error")
	}
	if p == nil || len(p.Colors) == 0 {
		t.Error("missing file should still return the default palette")
	}
}

func TestRowColorsDiffer(t *testing.T) {
	th := New(nil)
	if th.RowRGB(0, 4) == th.RowRGB(3, 4) {
		t.Error("first and last rows share a color")
	}
	if th.Row(0, 1) != th.Accent() {
		t.Error("single row should use the accent color")
	}
}
