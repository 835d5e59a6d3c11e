package playback

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"

	"beatpad/debug"
	"beatpad/feed"
	"beatpad/grid"
	"beatpad/recorder"
	"beatpad/sequencer"
	"beatpad/sound"
)

// Tempo range offered to users
const (
	MinTempo     = 60
	MaxTempo     = 180
	DefaultTempo = 120
)

var ErrNoRecorder = errors.New("no recorder attached")

// ClampTempo limits bpm to [MinTempo, MaxTempo]. NaN passes through so the
// clock can reject it.
func ClampTempo(bpm float64) float64 {
	if bpm < MinTempo {
		return MinTempo
	}
	if bpm > MaxTempo {
		return MaxTempo
	}
	return bpm
}

// State is what UIs render
type State struct {
	sequencer.State
	Recording  bool
	AudioReady bool
	Rows, Cols int
}

// Player owns the editing grid and tempo and drives the clock, registry
// and recorder on behalf of the UI layers
type Player struct {
	reg   *sound.Registry
	clock *sequencer.Clock
	rec   *recorder.Recorder

	mu        sync.RWMutex
	grid      *grid.Grid
	bpm       float64
	maxRecord time.Duration
	watchers  []func()

	done      chan struct{}
	closeOnce sync.Once

	// Notify TUI of updates
	UpdateChan chan struct{}
}

// Option configures a Player
type Option func(*Player)

// WithGrid sets the initial grid
func WithGrid(g *grid.Grid) Option {
	return func(p *Player) {
		if g != nil {
			p.grid = g
		}
	}
}

// WithTempo sets the initial tempo (clamped)
func WithTempo(bpm float64) Option {
	return func(p *Player) { p.bpm = ClampTempo(bpm) }
}

// WithMaxRecording bounds recordings started through Record
func WithMaxRecording(d time.Duration) Option {
	return func(p *Player) { p.maxRecord = d }
}

// New creates a player. Without WithGrid it starts from a 4x4 grid whose
// rows are seeded with the registry's first sounds.
func New(reg *sound.Registry, clock *sequencer.Clock, rec *recorder.Recorder, opts ...Option) *Player {
	p := &Player{
		reg:        reg,
		clock:      clock,
		rec:        rec,
		bpm:        DefaultTempo,
		maxRecord:  recorder.DefaultMaxDuration,
		done:       make(chan struct{}),
		UpdateChan: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.grid == nil {
		g, _ := grid.New(4, 4)
		p.grid = grid.Seed(g, p.soundIDs())
	}
	if err := clock.SetTempo(p.bpm); err != nil {
		debug.Log("player", "initial tempo %v rejected, using %d: %v", p.bpm, DefaultTempo, err)
		p.bpm = DefaultTempo
		_ = clock.SetTempo(p.bpm)
	}
	go p.watchClock()
	return p
}

// Init opens the audio output. Playback and recording need it.
func (p *Player) Init() error {
	if err := p.reg.Open(); err != nil {
		return err
	}
	p.notifyUpdate()
	return nil
}

// Close stops playback and any recording and releases the output
func (p *Player) Close() {
	p.closeOnce.Do(func() {
		close(p.done)
		p.clock.Stop()
		if p.rec != nil {
			p.rec.Stop()
		}
		p.reg.Close()
	})
}

// Start plays the editing grid from column 0
func (p *Player) Start() error {
	if !p.reg.Ready() {
		return fault.Wrap(sound.ErrAudioNotInitialized,
			fmsg.WithDesc("start playback", "Audio is not ready yet, press a key to enable sound"),
			ftag.With(sound.KindAudioUnavailable))
	}
	// Edits wait until the clock holds g
	p.mu.Lock()
	defer p.mu.Unlock()
	g, bpm := p.grid, p.bpm
	if err := p.clock.Start(g, bpm); err != nil {
		return err
	}
	debug.Log("player", "play %dx%d at %.0f bpm", g.Rows(), g.Cols(), bpm)
	return nil
}

// Stop halts playback. No sound is triggered after it returns.
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clock.Stop()
}

// TogglePlayback starts a stopped player and stops a playing one
func (p *Player) TogglePlayback() error {
	if p.clock.State().Playing {
		p.Stop()
		return nil
	}
	return p.Start()
}

// Playing reports whether the clock is running
func (p *Player) Playing() bool {
	return p.clock.State().Playing
}

// SetTempo clamps bpm and applies it, rescheduling a running clock
func (p *Player) SetTempo(bpm float64) error {
	bpm = ClampTempo(bpm)
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.clock.SetTempo(bpm); err != nil {
		return err
	}
	p.bpm = bpm
	return nil
}

// Tempo returns the current tempo
func (p *Player) Tempo() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.bpm
}

// Toggle flips pad (row, col)
func (p *Player) Toggle(row, col int) error {
	return p.edit(func(g *grid.Grid) (*grid.Grid, error) { return grid.Toggle(g, row, col) })
}

// AssignSound binds soundID to pad (row, col). Assigning the sound the pad
// already holds clears it.
func (p *Player) AssignSound(row, col int, soundID string) error {
	if soundID != "" {
		if _, ok := p.reg.Get(soundID); !ok {
			return fault.Wrap(sound.ErrNotFound,
				fmsg.WithDesc("assign "+soundID, "That sound is not loaded"),
				ftag.With(ftag.NotFound))
		}
	}
	return p.edit(func(g *grid.Grid) (*grid.Grid, error) { return grid.AssignSound(g, row, col, soundID) })
}

// Resize changes the grid dimensions keeping the overlap
func (p *Player) Resize(rows, cols int) error {
	return p.edit(func(g *grid.Grid) (*grid.Grid, error) { return grid.Resize(g, rows, cols) })
}

func (p *Player) AddRow() error { return p.edit(grid.AddRow) }

func (p *Player) RemoveRow() error { return p.edit(grid.RemoveRow) }

func (p *Player) AddColumn() error { return p.edit(grid.AddColumn) }

func (p *Player) RemoveColumn() error { return p.edit(grid.RemoveColumn) }

// ClearGrid deactivates every pad
func (p *Player) ClearGrid() error {
	return p.edit(func(g *grid.Grid) (*grid.Grid, error) { return grid.Clear(g), nil })
}

// LoadGrid replaces the grid and tempo, e.g. when remixing a post
func (p *Player) LoadGrid(g *grid.Grid, bpm float64) error {
	if g == nil {
		return fault.Wrap(sequencer.ErrNoGrid, fmsg.With("load grid"), ftag.With(ftag.InvalidArgument))
	}
	if err := p.edit(func(*grid.Grid) (*grid.Grid, error) { return g, nil }); err != nil {
		return err
	}
	if bpm > 0 {
		return p.SetTempo(bpm)
	}
	return nil
}

// edit publishes the grid fn computes. A running clock is re-pointed at
// it so the next tick plays the edit.
func (p *Player) edit(fn func(*grid.Grid) (*grid.Grid, error)) error {
	p.mu.Lock()
	next, err := fn(p.grid)
	if err != nil {
		p.mu.Unlock()
		return err
	}
	p.grid = next
	p.clock.SetGrid(next)
	p.mu.Unlock()

	p.notifyUpdate()
	return nil
}

// Grid returns the editing grid
func (p *Player) Grid() *grid.Grid {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.grid
}

// State returns a snapshot for rendering
func (p *Player) State() State {
	p.mu.RLock()
	rows, cols, bpm := p.grid.Rows(), p.grid.Cols(), p.bpm
	p.mu.RUnlock()

	cs := p.clock.State()
	cs.BPM = bpm
	return State{
		State:      cs,
		Recording:  p.rec != nil && p.rec.Recording(),
		AudioReady: p.reg.Ready(),
		Rows:       rows,
		Cols:       cols,
	}
}

// Sounds returns the loaded sounds in registration order
func (p *Player) Sounds() []sound.Sound {
	return p.reg.Sounds()
}

// LoadSounds loads the descriptors whose ids are not registered yet, e.g.
// the sounds of a post being remixed. It returns how many were loaded.
func (p *Player) LoadSounds(ctx context.Context, ds []sound.Descriptor) (int, error) {
	var missing []sound.Descriptor
	for _, d := range ds {
		if _, ok := p.reg.Get(d.ID); !ok {
			missing = append(missing, d)
		}
	}
	if len(missing) == 0 {
		return 0, nil
	}
	loaded, err := p.reg.LoadDescriptors(ctx, missing)
	p.notifyUpdate()
	return len(loaded), err
}

// Audition plays one sound outside the sequence
func (p *Player) Audition(id string) {
	p.reg.Audition(id)
}

// Record captures a clip from the microphone and registers it as a sound
func (p *Player) Record(ctx context.Context) (sound.Sound, error) {
	if p.rec == nil {
		return sound.Sound{}, fault.Wrap(ErrNoRecorder,
			fmsg.WithDesc("record", "Recording is not available"),
			ftag.With(ftag.Internal))
	}
	p.mu.RLock()
	limit := p.maxRecord
	p.mu.RUnlock()

	p.notifyUpdate()
	s, err := p.rec.Record(ctx, limit)
	p.notifyUpdate()
	if err != nil {
		return sound.Sound{}, err
	}
	debug.Log("player", "recorded %s (%v)", s.Name, s.Duration())
	return s, nil
}

// StopRecording ends the current recording, keeping what was captured
func (p *Player) StopRecording() {
	if p.rec != nil {
		p.rec.Stop()
	}
}

// Snapshot returns a post draft holding the grid, tempo and the sounds the
// grid uses
func (p *Player) Snapshot(authorID, authorName string) feed.Post {
	p.mu.RLock()
	g, bpm := p.grid, p.bpm
	p.mu.RUnlock()

	var descs []sound.Descriptor
	for _, id := range g.SoundIDs() {
		if s, ok := p.reg.Get(id); ok {
			descs = append(descs, s.Descriptor())
		}
	}
	return feed.Post{
		AuthorID:   authorID,
		AuthorName: authorName,
		Grid:       g,
		BPM:        bpm,
		Sounds:     descs,
	}
}

// Watch registers f to run after every change (edits, ticks, recording)
func (p *Player) Watch(f func()) {
	p.mu.Lock()
	p.watchers = append(p.watchers, f)
	p.mu.Unlock()
}

func (p *Player) watchClock() {
	for {
		select {
		case <-p.done:
			return
		case <-p.clock.Updates():
			p.notifyUpdate()
		}
	}
}

// notifyUpdate runs watchers and notifies the TUI
func (p *Player) notifyUpdate() {
	p.mu.RLock()
	watchers := p.watchers
	p.mu.RUnlock()
	for _, f := range watchers {
		f()
	}
	select {
	case p.UpdateChan <- struct{}{}:
	default:
	}
}

func (p *Player) soundIDs() []string {
	sounds := p.reg.Sounds()
	ids := make([]string, len(sounds))
	for i, s := range sounds {
		ids[i] = s.ID
	}
	return ids
}
