package sound

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/gopxl/beep"
)

// writeWAV writes a 16-bit mono sine of length d at rate to path
func writeWAV(t *testing.T, path string, rate int, d time.Duration) []byte {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	n := int(float64(rate) * d.Seconds())
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: rate},
		SourceBitDepth: 16,
		Data:           make([]int, n),
	}
	for i := range buf.Data {
		buf.Data[i] = int(8000 * math.Sin(2*math.Pi*440*float64(i)/float64(rate)))
	}
	enc := wav.NewEncoder(f, rate, 16, 1, 1)
	if err := enc.Write(buf); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func openRegistry(t *testing.T, opts ...RegistryOption) (*Registry, *HeadlessOutput) {
	t.Helper()
	out := NewHeadlessOutput()
	r := NewRegistry(out, opts...)
	if err := r.Open(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(r.Close)
	return r, out
}

func near(got, want, tol int) bool {
	return got >= want-tol && got <= want+tol
}

func TestLoadBeforeOpen(t *testing.T) {
	r := NewRegistry(NewHeadlessOutput())
	_, err := r.Load(context.Background(), "missing.wav", "x")
	if !errors.Is(err, ErrAudioNotInitialized) {
		t.Errorf("err = %v, want ErrAudioNotInitialized", err)
	}
	if r.Len() != 0 {
		t.Error("nothing should be registered")
	}
}

func TestOpenFailure(t *testing.T) {
	out := NewHeadlessOutput()
	out.OpenErr = errors.New("no device")
	r := NewRegistry(out)
	if err := r.Open(); err == nil {
		t.Fatal("expected open error")
	}
	if r.Ready() {
		t.Error("registry ready after failed open")
	}
}

func TestLoadFailureFallsBackToTone(t *testing.T) {
	r, _ := openRegistry(t)

	s, err := r.Load(context.Background(), filepath.Join(t.TempDir(), "nope.wav"), "Ghost")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !s.Synthetic || !s.Playable() {
		t.Fatalf("expected a playable tone, got %+v", s)
	}
	if s.ToneHz < 200 || s.ToneHz >= 700 {
		t.Errorf("tone frequency %v outside [200,700)", s.ToneHz)
	}
	if d := s.Duration(); d < 490*time.Millisecond || d > 510*time.Millisecond {
		t.Errorf("tone duration = %v", d)
	}
	if got, ok := r.Get(s.ID); !ok || got.Name != "Ghost" {
		t.Error("tone not registered")
	}
}

func TestLoadGarbageFallsBackToTone(t *testing.T) {
	r, _ := openRegistry(t, WithToneFrequency(func() float64 { return 440 }))
	path := filepath.Join(t.TempDir(), "junk.wav")
	if err := os.WriteFile(path, []byte("definitely not audio"), 0644); err != nil {
		t.Fatal(err)
	}
	s, err := r.Load(context.Background(), path, "Junk")
	if err != nil {
		t.Fatal(err)
	}
	if !s.Synthetic || s.ToneHz != 440 {
		t.Errorf("expected 440Hz tone, got %+v", s)
	}
}

func TestLoadBadWAVHeaderFallsBackToTone(t *testing.T) {
	for _, rate := range []int32{0, -8000} {
		r, _ := openRegistry(t, WithToneFrequency(func() float64 { return 440 }))
		dir := t.TempDir()
		data := writeWAV(t, filepath.Join(dir, "ok.wav"), 8000, 50*time.Millisecond)
		// fmt chunk sample rate of the canonical 44-byte header
		binary.LittleEndian.PutUint32(data[24:28], uint32(rate))
		path := filepath.Join(dir, "bad.wav")
		if err := os.WriteFile(path, data, 0644); err != nil {
			t.Fatal(err)
		}

		type result struct {
			s   Sound
			err error
		}
		done := make(chan result, 1)
		go func() {
			s, err := r.Load(context.Background(), path, "Bad")
			done <- result{s, err}
		}()

		select {
		case res := <-done:
			if res.err != nil {
				t.Fatalf("rate %d: %v", rate, res.err)
			}
			if !res.s.Synthetic || !res.s.Playable() {
				t.Errorf("rate %d: expected a playable tone, got %+v", rate, res.s)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("rate %d: Load did not return", rate)
		}
	}
}

func TestLoadWAVResamples(t *testing.T) {
	r, _ := openRegistry(t, WithSampleRate(44100))
	path := filepath.Join(t.TempDir(), "beep.wav")
	writeWAV(t, path, 22050, 250*time.Millisecond)

	s, err := r.Load(context.Background(), path, "Beep")
	if err != nil {
		t.Fatal(err)
	}
	if s.Synthetic {
		t.Fatal("valid wav fell back to tone")
	}
	if s.Format().SampleRate != 44100 || s.Format().NumChannels != 2 {
		t.Errorf("format = %+v", s.Format())
	}
	if !near(s.Len(), 11025, 64) {
		t.Errorf("len = %d samples, want about 11025", s.Len())
	}
}

func TestLoadDataURIAndHTTP(t *testing.T) {
	r, _ := openRegistry(t)
	data := writeWAV(t, filepath.Join(t.TempDir(), "clip.wav"), 44100, 100*time.Millisecond)

	uri := "data:audio/wav;base64," + base64.StdEncoding.EncodeToString(data)
	s, err := r.Load(context.Background(), uri, "Inline")
	if err != nil || s.Synthetic {
		t.Errorf("data uri: %+v, %v", s, err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path != "/clip.wav" {
			http.NotFound(w, req)
			return
		}
		w.Write(data)
	}))
	defer srv.Close()

	s, err = r.Load(context.Background(), srv.URL+"/clip.wav", "Remote")
	if err != nil || s.Synthetic {
		t.Errorf("http: %+v, %v", s, err)
	}
	if !near(s.Len(), 4410, 8) {
		t.Errorf("http clip len = %d", s.Len())
	}

	s, err = r.Load(context.Background(), srv.URL+"/missing.wav", "Gone")
	if err != nil || !s.Synthetic {
		t.Errorf("404 should degrade to tone: %+v, %v", s, err)
	}
}

func TestDecodeIsStrict(t *testing.T) {
	r, _ := openRegistry(t)
	if _, err := r.Decode([]byte("RIFF"), "Bad", ""); err == nil {
		t.Error("expected decode error")
	}
	if r.Len() != 0 {
		t.Error("failed decode registered a sound")
	}

	data := writeWAV(t, filepath.Join(t.TempDir(), "ok.wav"), 44100, 50*time.Millisecond)
	s, err := r.Decode(data, "Good", "mic")
	if err != nil {
		t.Fatal(err)
	}
	if s.Synthetic || !s.Playable() {
		t.Errorf("decoded sound not playable: %+v", s)
	}
}

func TestLoadDescriptorsKeepIDsAndOrder(t *testing.T) {
	r, _ := openRegistry(t)
	ds := []Descriptor{
		{ID: "kick", Name: "Kick", SourceURL: "missing-kick.wav"},
		{ID: "snare", Name: "Snare", SourceURL: "missing-snare.wav"},
		{Name: "Anon", SourceURL: "missing.wav"},
	}
	loaded, err := r.LoadDescriptors(context.Background(), ds)
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded) != 3 {
		t.Fatalf("loaded %d", len(loaded))
	}
	sounds := r.Sounds()
	if sounds[0].ID != "kick" || sounds[1].ID != "snare" || sounds[2].ID == "" {
		t.Errorf("unexpected ids/order: %v %v %v", sounds[0].ID, sounds[1].ID, sounds[2].ID)
	}

	// reloading replaces in place
	if _, err := r.LoadDescriptor(context.Background(), ds[0]); err != nil {
		t.Fatal(err)
	}
	if r.Len() != 3 {
		t.Errorf("reload duplicated sound, len=%d", r.Len())
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.LoadDescriptors(ctx, ds); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled batch err = %v", err)
	}
}

type panicOutput struct{ HeadlessOutput }

func (p *panicOutput) Play(beep.Streamer) { panic("device gone") }

func TestPlayNeverPanics(t *testing.T) {
	r, out := openRegistry(t)
	s, _ := r.Load(context.Background(), "missing.wav", "Tone")

	r.Play(s.ID)
	r.Play(s.ID)
	r.Play("unknown")
	if out.Plays() != 2 {
		t.Errorf("plays = %d, want 2", out.Plays())
	}

	// each play is an independent voice
	played := out.Played()
	a := make([][2]float64, 100)
	b := make([][2]float64, 100)
	played[0].Stream(a)
	played[1].Stream(b)
	if a[50] != b[50] {
		t.Error("voices share a read position")
	}

	r.Close()
	r.Play(s.ID)
	if out.Plays() != 2 {
		t.Error("played on a closed output")
	}

	p := &panicOutput{}
	pr := NewRegistry(p)
	if err := pr.Open(); err != nil {
		t.Fatal(err)
	}
	ps, _ := pr.Load(context.Background(), "missing.wav", "Tone")
	pr.Play(ps.ID) // must not panic
}

func TestDecayToneFades(t *testing.T) {
	rate := beep.SampleRate(8000)
	tone := newDecayTone(300, 500*time.Millisecond, rate)
	samples := make([][2]float64, 4000)
	n, _ := tone.Stream(samples)
	if n != 4000 {
		t.Fatalf("n = %d", n)
	}

	peak := func(from, to int) float64 {
		m := 0.0
		for _, s := range samples[from:to] {
			m = math.Max(m, math.Abs(s[0]))
		}
		return m
	}
	early, late := peak(0, 400), peak(3600, 4000)
	if late >= early/5 {
		t.Errorf("tone did not decay: early=%v late=%v", early, late)
	}
	if n, ok := tone.Stream(samples); n != 0 || ok {
		t.Errorf("drained tone streamed %d, %v", n, ok)
	}
}
