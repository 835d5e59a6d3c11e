package main

import (
	"context"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"beatpad/config"
	"beatpad/debug"
	"beatpad/feed"
	"beatpad/grid"
	"beatpad/midi"
	"beatpad/playback"
	"beatpad/recorder"
	"beatpad/sequencer"
	"beatpad/sound"
	"beatpad/theme"
	"beatpad/tui"
)

func main() {
	if os.Getenv("BEATPAD_DEBUG") == "1" {
		if err := debug.Enable(); err != nil {
			fmt.Printf("Debug log unavailable: %v\n", err)
		}
		defer debug.Disable()
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Config error (using defaults): %v\n", err)
		cfg = config.DefaultConfig()
	}
	cfg.ApplyEnv()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Audio output; a failure here leaves the app usable but silent
	reg := sound.NewRegistry(sound.NewSpeakerOutput(cfg.Audio.Volume),
		sound.WithSampleRate(cfg.Audio.SampleRate),
		sound.WithBufferMs(cfg.Audio.BufferMs))

	g, err := grid.New(cfg.Sequencer.Rows, cfg.Sequencer.Cols)
	if err != nil {
		fmt.Printf("Grid size %dx%d invalid, using 4x4\n", cfg.Sequencer.Rows, cfg.Sequencer.Cols)
		g, _ = grid.New(4, 4)
	}

	recDir, err := cfg.RecordingsDir()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	rec := recorder.New(reg, recorder.PortAudioMicrophone{}, recorder.WithDir(recDir))

	tempo := cfg.Sequencer.BPM
	if cfg.UI.LastTempo > 0 {
		tempo = cfg.UI.LastTempo
	}

	player := playback.New(reg, sequencer.NewClock(reg), rec,
		playback.WithGrid(g),
		playback.WithTempo(tempo),
		playback.WithMaxRecording(time.Duration(cfg.Recorder.MaxDurationMs)*time.Millisecond))
	defer player.Close()

	if err := player.Init(); err != nil {
		debug.Log("main", "audio init: %v", err)
	}

	library := collectLibrary(ctx, cfg)
	if n, err := player.LoadSounds(ctx, library); err != nil {
		debug.Log("main", "library: %d loaded: %v", n, err)
	}
	if cfg.Sequencer.SeedSounds {
		var ids []string
		for _, d := range library {
			ids = append(ids, d.ID)
		}
		if err := player.LoadGrid(grid.Seed(player.Grid(), ids), player.Tempo()); err != nil {
			debug.Log("main", "seed grid: %v", err)
		}
	}

	surface := playback.NewSurface(player)
	go surface.Run(ctx)

	// Controllers are picked up as they are plugged in
	deviceMgr := midi.NewDeviceManager()
	deviceMgr.Keyboards = cfg.UI.Keyboards
	deviceMgr.Allow = cfg.AllowPort
	go deviceMgr.Run(ctx)

	postsDir, err := cfg.PostsDir()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	store := feed.NewStore(postsDir)

	palette, err := theme.LoadOrDefault(cfg.UI.Palette)
	if err != nil {
		debug.Log("main", "palette %s: %v", cfg.UI.Palette, err)
	}
	th := theme.New(palette)

	m := tui.NewModel(ctx, player, surface, deviceMgr, store, cfg, th)
	m.Library = library
	p := tea.NewProgram(m, tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	cfg.UI.LastTempo = player.Tempo()
	if err := cfg.Save(); err != nil {
		fmt.Printf("Could not save config: %v\n", err)
	}
}

// collectLibrary lists the kit sounds followed by the feed's sounds, when a
// feed is configured. A feed that cannot be reached is skipped.
func collectLibrary(ctx context.Context, cfg *config.Config) []sound.Descriptor {
	var kit *sound.Kit
	if cfg.Library.KitPath != "" {
		k, err := sound.LoadKit(cfg.Library.KitPath)
		if err != nil {
			debug.Log("main", "kit %s: %v", cfg.Library.KitPath, err)
		} else {
			kit = k
		}
	}
	if kit == nil {
		samples, err := cfg.SamplesDir()
		if err != nil {
			debug.Log("main", "samples dir: %v", err)
		}
		kit = sound.DefaultKit(samples)
	}
	ds := kit.Sounds

	if cfg.Library.FeedURL == "" {
		return ds
	}
	fetchCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	remote, err := feed.NewClient(cfg.Library.FeedURL, nil).AllSounds(fetchCtx, cfg.Library.PageSize)
	if err != nil {
		debug.Log("main", "feed sounds: %v", err)
		return ds
	}
	return append(ds, remote...)
}
