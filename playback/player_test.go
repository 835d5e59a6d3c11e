package playback

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Southclaws/fault/ftag"

	"beatpad/grid"
	"beatpad/recorder"
	"beatpad/sequencer"
	"beatpad/sound"
)

// endlessMic serves quiet sine blocks until closed
type endlessMic struct{}

type endlessStream struct {
	frames int
	n      int
}

func (endlessMic) Open(sampleRate, frames int) (recorder.InputStream, error) {
	return &endlessStream{frames: frames}, nil
}

func (s *endlessStream) Read() ([]float32, error) {
	block := make([]float32, s.frames)
	for i := range block {
		block[i] = float32(0.3 * math.Sin(float64(s.n)/8))
		s.n++
	}
	return block, nil
}

func (s *endlessStream) Close() error { return nil }

type rig struct {
	out   *sound.HeadlessOutput
	reg   *sound.Registry
	sched *sequencer.ManualScheduler
	clock *sequencer.Clock
	p     *Player
	kick  sound.Sound
	snare sound.Sound
}

// newRig opens a headless registry with two tone sounds and a player on
// virtual time
func newRig(t *testing.T, opts ...Option) *rig {
	t.Helper()
	r := &rig{out: sound.NewHeadlessOutput()}
	r.reg = sound.NewRegistry(r.out, sound.WithToneFrequency(func() float64 { return 440 }))
	if err := r.reg.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	ctx := context.Background()
	var err error
	if r.kick, err = r.reg.Load(ctx, "", "Kick"); err != nil {
		t.Fatal(err)
	}
	if r.snare, err = r.reg.Load(ctx, "", "Snare"); err != nil {
		t.Fatal(err)
	}

	r.sched = sequencer.NewManualScheduler(time.Unix(0, 0))
	r.clock = sequencer.NewClock(r.reg, sequencer.WithScheduler(r.sched))
	rec := recorder.New(r.reg, endlessMic{}, recorder.WithDir(t.TempDir()))
	r.p = New(r.reg, r.clock, rec, opts...)
	t.Cleanup(r.p.Close)
	return r
}

func TestNewSeedsRowsWithSounds(t *testing.T) {
	r := newRig(t)
	g := r.p.Grid()
	if g.Rows() != 4 || g.Cols() != 4 {
		t.Fatalf("grid = %dx%d, want 4x4", g.Rows(), g.Cols())
	}
	pad, _ := g.Pad(0, 3)
	if pad.SoundID != r.kick.ID || pad.Active {
		t.Errorf("row 0 pad = %+v, want inactive kick", pad)
	}
	pad, _ = g.Pad(2, 0)
	if pad.SoundID != "" {
		t.Errorf("row 2 should be empty, got %q", pad.SoundID)
	}
}

func TestStartWithoutAudio(t *testing.T) {
	reg := sound.NewRegistry(sound.NewHeadlessOutput())
	clock := sequencer.NewClock(reg, sequencer.WithScheduler(sequencer.NewManualScheduler(time.Unix(0, 0))))
	p := New(reg, clock, nil)
	defer p.Close()

	err := p.Start()
	if !errors.Is(err, sound.ErrAudioNotInitialized) {
		t.Fatalf("Start = %v, want ErrAudioNotInitialized", err)
	}
	if ftag.Get(err) != sound.KindAudioUnavailable {
		t.Errorf("kind = %v", ftag.Get(err))
	}
	if p.Playing() {
		t.Error("player entered playing state without audio")
	}

	if err := p.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := p.Start(); err != nil {
		t.Fatalf("Start after Init: %v", err)
	}
	if !p.Playing() {
		t.Error("not playing after Init+Start")
	}
}

func TestEditWhilePlayingHeardNextTick(t *testing.T) {
	r := newRig(t)
	if err := r.p.Start(); err != nil {
		t.Fatal(err)
	}
	interval := sequencer.Interval(120)

	if err := r.p.Toggle(0, 1); err != nil {
		t.Fatal(err)
	}
	r.sched.Advance(interval)
	if got := r.out.Plays(); got != 1 {
		t.Fatalf("plays after first tick = %d, want 1", got)
	}

	// Untoggle before the pattern comes round again
	if err := r.p.Toggle(0, 1); err != nil {
		t.Fatal(err)
	}
	r.sched.Advance(4 * interval)
	if got := r.out.Plays(); got != 1 {
		t.Errorf("plays after untoggle = %d, want 1", got)
	}
}

func TestResizeWhilePlayingRepointsClock(t *testing.T) {
	r := newRig(t)
	if err := r.p.Start(); err != nil {
		t.Fatal(err)
	}
	if err := r.p.AddColumn(); err != nil {
		t.Fatal(err)
	}
	if cols := r.clock.Grid().Cols(); cols != 5 {
		t.Errorf("clock grid cols = %d, want 5", cols)
	}
	if err := r.p.Resize(2, 2); err != nil {
		t.Fatal(err)
	}
	r.sched.Advance(3 * sequencer.Interval(120))
	if col := r.clock.State().Column; col != 1 {
		t.Errorf("column = %d, want 1 on a 2-column grid", col)
	}
}

func TestEditWhileStoppedLeavesClockAlone(t *testing.T) {
	r := newRig(t)
	if err := r.p.Toggle(0, 0); err != nil {
		t.Fatal(err)
	}
	if r.clock.Grid() != nil {
		t.Error("stopped clock was handed a grid")
	}
}

func TestTransportRacingEditsKeepsClockInSync(t *testing.T) {
	r := newRig(t)
	for i := 0; i < 200; i++ {
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			if i%2 == 0 {
				if err := r.p.Start(); err != nil {
					t.Error(err)
				}
			} else {
				r.p.Stop()
			}
		}()
		go func() {
			defer wg.Done()
			if err := r.p.Toggle(0, i%4); err != nil {
				t.Error(err)
			}
		}()
		wg.Wait()

		played := r.clock.Grid()
		if r.p.Playing() {
			if !played.Equal(r.p.Grid()) {
				t.Fatalf("iteration %d: clock plays a stale grid", i)
			}
		} else if played != nil {
			t.Fatalf("iteration %d: stopped clock holds a grid", i)
		}
	}
}

func TestInvalidInitialTempoFallsBack(t *testing.T) {
	r := newRig(t, WithTempo(math.NaN()))
	if got := r.p.Tempo(); got != DefaultTempo {
		t.Fatalf("tempo = %v, want %v", got, DefaultTempo)
	}
	if err := r.p.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := r.clock.State().BPM; got != DefaultTempo {
		t.Errorf("clock bpm = %v", got)
	}
}

func TestSetTempoClamps(t *testing.T) {
	r := newRig(t)
	cases := []struct {
		in, want float64
	}{
		{300, MaxTempo},
		{10, MinTempo},
		{95, 95},
	}
	for _, tc := range cases {
		if err := r.p.SetTempo(tc.in); err != nil {
			t.Fatalf("SetTempo(%v): %v", tc.in, err)
		}
		if got := r.p.Tempo(); got != tc.want {
			t.Errorf("SetTempo(%v) -> %v, want %v", tc.in, got, tc.want)
		}
		if got := r.clock.State().BPM; got != tc.want {
			t.Errorf("clock bpm = %v, want %v", got, tc.want)
		}
	}
	if err := r.p.SetTempo(math.NaN()); !errors.Is(err, sequencer.ErrInvalidTempo) {
		t.Errorf("SetTempo(NaN) = %v", err)
	}
	if r.p.Tempo() != 95 {
		t.Errorf("rejected tempo changed bpm to %v", r.p.Tempo())
	}
}

func TestAssignUnknownSound(t *testing.T) {
	r := newRig(t)
	err := r.p.AssignSound(0, 0, "nope")
	if !errors.Is(err, sound.ErrNotFound) {
		t.Fatalf("AssignSound = %v, want ErrNotFound", err)
	}

	if err := r.p.AssignSound(3, 3, r.snare.ID); err != nil {
		t.Fatal(err)
	}
	pad, _ := r.p.Grid().Pad(3, 3)
	if !pad.Active || pad.SoundID != r.snare.ID {
		t.Errorf("pad = %+v", pad)
	}
	if err := r.p.AssignSound(9, 9, r.snare.ID); !errors.Is(err, grid.ErrOutOfRange) {
		t.Errorf("out of range assign = %v", err)
	}
}

func TestLoadGridAndSnapshot(t *testing.T) {
	r := newRig(t)
	if err := r.p.LoadGrid(nil, 100); !errors.Is(err, sequencer.ErrNoGrid) {
		t.Fatalf("LoadGrid(nil) = %v", err)
	}

	g, _ := grid.New(2, 8)
	g, _ = grid.AssignSound(g, 1, 4, r.snare.ID)
	if err := r.p.LoadGrid(g, 140); err != nil {
		t.Fatal(err)
	}

	post := r.p.Snapshot("u1", "Ada")
	if post.BPM != 140 || !post.Grid.Equal(g) {
		t.Errorf("snapshot bpm=%v grid equal=%v", post.BPM, post.Grid.Equal(g))
	}
	if len(post.Sounds) != 1 || post.Sounds[0].ID != r.snare.ID || post.Sounds[0].Name != "Snare" {
		t.Errorf("snapshot sounds = %+v", post.Sounds)
	}
	if post.AuthorID != "u1" || post.AuthorName != "Ada" {
		t.Errorf("author = %q %q", post.AuthorID, post.AuthorName)
	}
}

func TestRecordRegistersSound(t *testing.T) {
	r := newRig(t, WithMaxRecording(100*time.Millisecond))
	before := len(r.p.Sounds())

	s, err := r.p.Record(context.Background())
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if s.Name != "Recording 1" {
		t.Errorf("name = %q", s.Name)
	}
	if d := s.Duration(); d < 90*time.Millisecond || d > 110*time.Millisecond {
		t.Errorf("duration = %v, want about 100ms", d)
	}
	if got := len(r.p.Sounds()); got != before+1 {
		t.Errorf("sounds = %d, want %d", got, before+1)
	}
	if r.p.State().Recording {
		t.Error("still recording")
	}
}

func TestRecordWithoutRecorder(t *testing.T) {
	reg := sound.NewRegistry(sound.NewHeadlessOutput())
	p := New(reg, sequencer.NewClock(reg), nil)
	defer p.Close()
	if _, err := p.Record(context.Background()); !errors.Is(err, ErrNoRecorder) {
		t.Errorf("Record = %v, want ErrNoRecorder", err)
	}
}

func TestUpdateChanAndWatchers(t *testing.T) {
	r := newRig(t)
	// Drain anything from construction
	select {
	case <-r.p.UpdateChan:
	default:
	}

	var calls atomic.Int32
	r.p.Watch(func() { calls.Add(1) })
	if err := r.p.ClearGrid(); err != nil {
		t.Fatal(err)
	}
	select {
	case <-r.p.UpdateChan:
	case <-time.After(time.Second):
		t.Fatal("no update after edit")
	}
	if calls.Load() == 0 {
		t.Error("watcher not called")
	}
}

func TestClampTempo(t *testing.T) {
	if ClampTempo(59.9) != 60 || ClampTempo(180.1) != 180 || ClampTempo(120) != 120 {
		t.Error("ClampTempo out of range")
	}
	if !math.IsNaN(ClampTempo(math.NaN())) {
		t.Error("NaN should pass through")
	}
}

func TestLoadSoundsSkipsKnownIDs(t *testing.T) {
	r := newRig(t)
	ds := []sound.Descriptor{
		r.kick.Descriptor(),
		{ID: "cowbell-1", Name: "Cowbell"},
	}
	n, err := r.p.LoadSounds(context.Background(), ds)
	if err != nil || n != 1 {
		t.Fatalf("LoadSounds = %d, %v; want 1", n, err)
	}
	if s, ok := r.reg.Get("cowbell-1"); !ok || !s.Playable() {
		t.Error("cowbell not registered with its descriptor id")
	}
	if n, _ := r.p.LoadSounds(context.Background(), ds); n != 0 {
		t.Errorf("second load = %d, want 0", n)
	}
}
