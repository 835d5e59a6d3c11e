package sound

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/google/uuid"
	"github.com/gopxl/beep"

	"beatpad/debug"
)

// Registry owns every playable sound. It must be opened before sounds can
// be loaded or played.
type Registry struct {
	out      Output
	rate     beep.SampleRate
	bufferMs int
	client   *http.Client
	toneHz   func() float64

	ready atomic.Bool

	mu     sync.RWMutex
	sounds map[string]Sound
	order  []string
}

// RegistryOption configures a Registry
type RegistryOption func(*Registry)

// WithSampleRate sets the output sample rate every sound is resampled to
func WithSampleRate(hz int) RegistryOption {
	return func(r *Registry) {
		if hz > 0 {
			r.rate = beep.SampleRate(hz)
		}
	}
}

// WithBufferMs sets the speaker buffer length
func WithBufferMs(ms int) RegistryOption {
	return func(r *Registry) {
		if ms > 0 {
			r.bufferMs = ms
		}
	}
}

// WithHTTPClient sets the client used for http(s) sources
func WithHTTPClient(c *http.Client) RegistryOption {
	return func(r *Registry) { r.client = c }
}

// WithToneFrequency replaces the random fallback tone frequency
func WithToneFrequency(f func() float64) RegistryOption {
	return func(r *Registry) { r.toneHz = f }
}

// NewRegistry creates a closed registry playing through out
func NewRegistry(out Output, opts ...RegistryOption) *Registry {
	r := &Registry{
		out:      out,
		rate:     beep.SampleRate(44100),
		bufferMs: 50,
		client:   &http.Client{Timeout: 15 * time.Second},
		toneHz:   randomToneHz,
		sounds:   make(map[string]Sound),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Open initializes the output device. Opening twice is a no-op.
func (r *Registry) Open() error {
	if r.ready.Load() {
		return nil
	}
	size := r.rate.N(time.Duration(r.bufferMs) * time.Millisecond)
	if err := r.out.Open(r.rate, size); err != nil {
		debug.Log("sound", "open output failed: %v", err)
		return fault.Wrap(err,
			fmsg.WithDesc("open audio output", "No audio output device is available"),
			ftag.With(KindAudioUnavailable))
	}
	r.ready.Store(true)
	debug.Log("sound", "output open rate=%d buffer=%dms", r.rate, r.bufferMs)
	return nil
}

// Close releases the output device. Loaded sounds are kept.
func (r *Registry) Close() {
	if !r.ready.CompareAndSwap(true, false) {
		return
	}
	r.out.Close()
	debug.Log("sound", "output closed")
}

// Ready reports whether the output is open
func (r *Registry) Ready() bool {
	return r.ready.Load()
}

// SampleRate returns the rate every buffer is stored at
func (r *Registry) SampleRate() beep.SampleRate {
	return r.rate
}

// Load fetches and decodes src under a new id. Sources that cannot be
// fetched or decoded are replaced by a synthesized tone so the caller
// always gets something playable.
func (r *Registry) Load(ctx context.Context, src, name string) (Sound, error) {
	return r.load(ctx, uuid.NewString(), src, name)
}

// LoadDescriptor loads d keeping its id, so grids saved against the same
// descriptors resolve across sessions
func (r *Registry) LoadDescriptor(ctx context.Context, d Descriptor) (Sound, error) {
	id := d.ID
	if id == "" {
		id = uuid.NewString()
	}
	return r.load(ctx, id, d.SourceURL, d.Name)
}

// LoadDescriptors loads every descriptor. A bad source degrades to a tone
// and never aborts the batch; only a closed output or a cancelled context
// stops it early, returning what was loaded so far.
func (r *Registry) LoadDescriptors(ctx context.Context, ds []Descriptor) ([]Sound, error) {
	out := make([]Sound, 0, len(ds))
	for _, d := range ds {
		if err := ctx.Err(); err != nil {
			return out, fault.Wrap(err, ftag.With(ftag.Cancelled))
		}
		s, err := r.LoadDescriptor(ctx, d)
		if err != nil {
			return out, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (r *Registry) load(ctx context.Context, id, src, name string) (Sound, error) {
	if !r.Ready() {
		return Sound{}, notInitialized("load " + name)
	}

	s := Sound{ID: id, Name: name, Source: src}
	data, err := r.fetch(ctx, src)
	if err == nil {
		s.buffer, err = decodeBuffer(data, r.rate)
	}
	if err != nil {
		s.Synthetic = true
		s.ToneHz = r.toneHz()
		s.buffer = toneBuffer(s.ToneHz, r.rate)
		debug.Log("sound", "load %q from %q failed, using %.0fHz tone: %v", name, src, s.ToneHz, err)
	} else {
		debug.Log("sound", "loaded %q (%v)", name, s.Duration())
	}

	r.register(s)
	return s, nil
}

// Decode registers data as a new sound with no fallback. Captured audio
// that cannot be decoded is an error for the caller.
func (r *Registry) Decode(data []byte, name, source string) (Sound, error) {
	if !r.Ready() {
		return Sound{}, notInitialized("decode " + name)
	}
	buf, err := decodeBuffer(data, r.rate)
	if err != nil {
		return Sound{}, fault.Wrap(err,
			fmsg.WithDesc("decode "+name, "The recording could not be decoded"),
			ftag.With(ftag.InvalidArgument))
	}
	s := Sound{ID: uuid.NewString(), Name: name, Source: source, buffer: buf}
	r.register(s)
	debug.Log("sound", "decoded %q (%v)", name, s.Duration())
	return s, nil
}

// register adds s, replacing a sound with the same id in place
func (r *Registry) register(s Sound) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sounds[s.ID]; !exists {
		r.order = append(r.order, s.ID)
	}
	r.sounds[s.ID] = s
}

// Get looks up a sound by id
func (r *Registry) Get(id string) (Sound, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sounds[id]
	return s, ok
}

// Sounds returns every sound in registration order
func (r *Registry) Sounds() []Sound {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Sound, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.sounds[id])
	}
	return out
}

// Len returns the number of registered sounds
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Play starts an independent voice of sound id. It never fails: missing
// sounds, a closed output or a panicking device are logged and ignored.
func (r *Registry) Play(id string) {
	defer func() {
		if rec := recover(); rec != nil {
			debug.Log("sound", "play %s panicked: %v", id, rec)
		}
	}()

	if !r.Ready() {
		debug.LogEvery(32, "sound", "play %s dropped: output closed", id)
		return
	}
	s, ok := r.Get(id)
	if !ok {
		debug.LogEvery(32, "sound", "play %s: %v", id, ErrNotFound)
		return
	}
	if !s.Playable() {
		debug.Log("sound", "play %s: %v", id, ErrEmptyAudio)
		return
	}
	r.out.Play(s.Streamer())
}

// Audition previews a sound outside the sequencer
func (r *Registry) Audition(id string) {
	debug.Log("sound", "audition %s", id)
	r.Play(id)
}
