package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingReturnsDefaults(t *testing.T) {
	SetDir(t.TempDir())
	defer SetDir("")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	def := DefaultConfig()
	if cfg.Sequencer.BPM != def.Sequencer.BPM || cfg.Sequencer.Rows != 4 || cfg.Sequencer.Cols != 4 {
		t.Errorf("expected defaults, got %+v", cfg.Sequencer)
	}
	if cfg.Recorder.MaxDurationMs != 3000 {
		t.Errorf("expected 3000ms record limit, got %d", cfg.Recorder.MaxDurationMs)
	}
}

func TestSaveLoad(t *testing.T) {
	dir := t.TempDir()
	SetDir(dir)
	defer SetDir("")

	cfg := DefaultConfig()
	cfg.Sequencer.BPM = 96
	cfg.Author.Name = "Taylor"
	cfg.AddController(ControllerConfig{PortName: "Launchpad Mini", Type: ControllerLaunchpadMini})
	if err := cfg.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "config.json")); err != nil {
		t.Fatalf("config file not written: %v", err)
	}

	loaded, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Sequencer.BPM != 96 || loaded.Author.Name != "Taylor" {
		t.Errorf("round trip lost fields: %+v", loaded)
	}
	if loaded.FindController("Launchpad Mini") == nil {
		t.Error("expected saved controller")
	}
	if len(loaded.AutoConnectControllers()) != 1 {
		t.Errorf("expected only the default controller to auto-connect, got %d", len(loaded.AutoConnectControllers()))
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	SetDir(dir)
	defer SetDir("")

	if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte(`{"sequencer":{"bpm":140}}`), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Sequencer.BPM != 140 {
		t.Errorf("expected bpm 140, got %v", cfg.Sequencer.BPM)
	}
	if cfg.Audio.SampleRate != 44100 {
		t.Errorf("expected default sample rate, got %d", cfg.Audio.SampleRate)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("BEATPAD_SAMPLE_RATE", "48000")
	t.Setenv("BEATPAD_BPM", "150")
	t.Setenv("BEATPAD_RECORD_MS", "1500")
	t.Setenv("BEATPAD_VOLUME", "250")
	t.Setenv("BEATPAD_FEED_URL", "http://localhost:3000")

	cfg := DefaultConfig()
	cfg.ApplyEnv()

	if cfg.Audio.SampleRate != 48000 {
		t.Errorf("sample rate = %d", cfg.Audio.SampleRate)
	}
	if cfg.Sequencer.BPM != 150 {
		t.Errorf("bpm = %v", cfg.Sequencer.BPM)
	}
	if cfg.Recorder.MaxDurationMs != 1500 {
		t.Errorf("record ms = %d", cfg.Recorder.MaxDurationMs)
	}
	if cfg.Audio.Volume != 1 {
		t.Errorf("volume should clamp to 1, got %v", cfg.Audio.Volume)
	}
	if cfg.Library.FeedURL != "http://localhost:3000" {
		t.Errorf("feed url = %q", cfg.Library.FeedURL)
	}
}

func TestDerivedDirs(t *testing.T) {
	dir := t.TempDir()
	SetDir(dir)
	defer SetDir("")

	cfg := DefaultConfig()
	rec, err := cfg.RecordingsDir()
	if err != nil || rec != filepath.Join(dir, "recordings") {
		t.Errorf("RecordingsDir = %q, %v", rec, err)
	}
	cfg.Recorder.Dir = "/tmp/clips"
	if rec, _ := cfg.RecordingsDir(); rec != "/tmp/clips" {
		t.Errorf("explicit recordings dir ignored: %q", rec)
	}
	if posts, _ := cfg.PostsDir(); posts != filepath.Join(dir, "posts") {
		t.Errorf("PostsDir = %q", posts)
	}
}

func TestAllowPort(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AddController(ControllerConfig{PortName: "Launchpad Mini", Type: ControllerLaunchpadMini})

	if !cfg.AllowPort("Launchpad X LPX MIDI") {
		t.Error("auto-connect controller refused")
	}
	if cfg.AllowPort("Launchpad Mini") {
		t.Error("controller saved without auto-connect was allowed")
	}
	if !cfg.AllowPort("Some Keyboard") {
		t.Error("unknown port refused")
	}
}
