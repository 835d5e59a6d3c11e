package debug

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLogWritesCategoryLines(t *testing.T) {
	dir := t.TempDir()
	if err := EnableAt(dir); err != nil {
		t.Fatalf("EnableAt: %v", err)
	}
	defer Disable()

	Log("clock", "tick column=%d", 3)
	for i := 0; i < 4; i++ {
		LogEvery(2, "play", "kick")
	}

	data, err := os.ReadFile(filepath.Join(dir, "debug.log"))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, "clock") || !strings.Contains(out, "tick column=3") {
		t.Errorf("expected clock line, got:\n%s", out)
	}
	if n := strings.Count(out, "kick (every 2"); n != 2 {
		t.Errorf("expected 2 sampled lines, got %d:\n%s", n, out)
	}
}

func TestLogDisabledIsNoop(t *testing.T) {
	Disable()
	if Enabled() {
		t.Fatal("expected logging disabled")
	}
	defer func() {
		if r := recover(); r != nil {
			t.Errorf("Log panicked while disabled: %v", r)
		}
	}()
	Log("sound", "missing %s", "x")
}
