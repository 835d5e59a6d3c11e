package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
)

// ControllerType identifies the kind of controller
type ControllerType string

const (
	ControllerLaunchpadX    ControllerType = "launchpad-x"
	ControllerLaunchpadMini ControllerType = "launchpad-mini"
	ControllerLaunchpadPro  ControllerType = "launchpad-pro"
)

// ControllerConfig defines a saved controller configuration
type ControllerConfig struct {
	PortName    string         `json:"portName"`
	Type        ControllerType `json:"type"`
	AutoConnect bool           `json:"autoConnect"`
}

// AudioConfig holds output device settings
type AudioConfig struct {
	SampleRate int     `json:"sampleRate"`
	BufferMs   int     `json:"bufferMs"`
	Volume     float64 `json:"volume"` // 0.0-1.0
}

// SequencerConfig holds the defaults for a new beat
type SequencerConfig struct {
	BPM        float64 `json:"bpm"`
	Rows       int     `json:"rows"`
	Cols       int     `json:"cols"`
	SeedSounds bool    `json:"seedSounds"` // pre-assign row i to sound i
}

// RecorderConfig holds microphone capture settings
type RecorderConfig struct {
	MaxDurationMs int    `json:"maxDurationMs"`
	Dir           string `json:"dir,omitempty"` // empty = <config dir>/recordings
}

// LibraryConfig tells the app where sounds come from
type LibraryConfig struct {
	KitPath    string `json:"kitPath,omitempty"`    // YAML kit; empty = built-in kit
	SamplesDir string `json:"samplesDir,omitempty"` // empty = <config dir>/samples
	FeedURL    string `json:"feedUrl,omitempty"`    // sound descriptor backend
	PageSize   int    `json:"pageSize,omitempty"`
}

// AuthorConfig identifies who publishes posts from this machine
type AuthorConfig struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// UIConfig stores UI preferences
type UIConfig struct {
	LastTempo float64 `json:"lastTempo,omitempty"`
	Palette   string  `json:"palette,omitempty"`   // GIMP .gpl file; empty = built-in
	Keyboards bool    `json:"keyboards,omitempty"` // audition sounds from MIDI keyboards
}

// Config is the main configuration structure
type Config struct {
	Audio       AudioConfig        `json:"audio"`
	Sequencer   SequencerConfig    `json:"sequencer"`
	Recorder    RecorderConfig     `json:"recorder"`
	Library     LibraryConfig      `json:"library"`
	Author      AuthorConfig       `json:"author"`
	Controllers []ControllerConfig `json:"controllers,omitempty"`
	UI          UIConfig           `json:"ui,omitempty"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Audio: AudioConfig{
			SampleRate: 44100,
			BufferMs:   50,
			Volume:     1.0,
		},
		Sequencer: SequencerConfig{
			BPM:        120,
			Rows:       4,
			Cols:       4,
			SeedSounds: true,
		},
		Recorder: RecorderConfig{
			MaxDurationMs: 3000,
		},
		Library: LibraryConfig{
			PageSize: 10,
		},
		Author: AuthorConfig{
			ID:   "local",
			Name: "You",
		},
		Controllers: []ControllerConfig{
			{
				PortName:    "Launchpad X LPX MIDI",
				Type:        ControllerLaunchpadX,
				AutoConnect: true,
			},
		},
	}
}

// dirOverride lets tests point the config directory somewhere else
var dirOverride string

// SetDir overrides the config directory (empty restores the default)
func SetDir(dir string) {
	dirOverride = dir
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	if dirOverride != "" {
		return dirOverride, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "beatpad"), nil
}

// ConfigPath returns the full path to config.json
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the config from disk, or returns defaults if not found
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	// Unmarshal over defaults so fields missing from older files keep sane values
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the config to disk
func (c *Config) Save() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}

	// Create directory if it doesn't exist
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	path, err := ConfigPath()
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// ApplyEnv overrides fields from BEATPAD_* environment variables
func (c *Config) ApplyEnv() {
	if v := os.Getenv("BEATPAD_SAMPLE_RATE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Audio.SampleRate = n
		}
	}

	if v := os.Getenv("BEATPAD_BPM"); v != "" {
		if bpm, err := strconv.ParseFloat(v, 64); err == nil && bpm > 0 {
			c.Sequencer.BPM = bpm
		}
	}

	if v := os.Getenv("BEATPAD_RECORD_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Recorder.MaxDurationMs = n
		}
	}

	if v := os.Getenv("BEATPAD_VOLUME"); v != "" {
		// 0-100 converted to 0.0-1.0
		if n, err := strconv.Atoi(v); err == nil {
			c.Audio.Volume = min(max(float64(n)/100.0, 0), 1)
		}
	}

	if v := os.Getenv("BEATPAD_FEED_URL"); v != "" {
		c.Library.FeedURL = v
	}

	if v := os.Getenv("BEATPAD_KIT"); v != "" {
		c.Library.KitPath = v
	}
}

// RecordingsDir resolves where captured clips are written
func (c *Config) RecordingsDir() (string, error) {
	if c.Recorder.Dir != "" {
		return c.Recorder.Dir, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "recordings"), nil
}

// SamplesDir resolves where the built-in kit looks for sample files
func (c *Config) SamplesDir() (string, error) {
	if c.Library.SamplesDir != "" {
		return c.Library.SamplesDir, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "samples"), nil
}

// PostsDir returns where published posts are stored
func (c *Config) PostsDir() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "posts"), nil
}

// FindController finds a controller config by port name
func (c *Config) FindController(portName string) *ControllerConfig {
	for i := range c.Controllers {
		if c.Controllers[i].PortName == portName {
			return &c.Controllers[i]
		}
	}
	return nil
}

// AddController adds or updates a controller config
func (c *Config) AddController(ctrl ControllerConfig) {
	for i := range c.Controllers {
		if c.Controllers[i].PortName == ctrl.PortName {
			c.Controllers[i] = ctrl
			return
		}
	}
	c.Controllers = append(c.Controllers, ctrl)
}

// AllowPort reports whether a detected port may be opened. Ports saved
// with autoConnect off are skipped; unknown ports are allowed.
func (c *Config) AllowPort(portName string) bool {
	if ctrl := c.FindController(portName); ctrl != nil {
		return ctrl.AutoConnect
	}
	return true
}

// AutoConnectControllers returns controllers with autoConnect enabled
func (c *Config) AutoConnectControllers() []ControllerConfig {
	var result []ControllerConfig
	for _, ctrl := range c.Controllers {
		if ctrl.AutoConnect {
			result = append(result, ctrl)
		}
	}
	return result
}
