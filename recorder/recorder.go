package recorder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/gopxl/beep"

	"beatpad/debug"
	"beatpad/sound"
)

// DefaultMaxDuration bounds a recording when the caller gives no limit
const DefaultMaxDuration = 3 * time.Second

var (
	ErrBusy           = errors.New("already recording")
	ErrEmptyRecording = errors.New("recording captured no audio")
	ErrMicrophone     = errors.New("microphone unavailable")
)

// Registry is where finished recordings are decoded and stored
type Registry interface {
	Ready() bool
	SampleRate() beep.SampleRate
	Decode(data []byte, name, source string) (sound.Sound, error)
}

// Recorder captures short clips from a microphone and registers them as
// sounds. One recording runs at a time.
type Recorder struct {
	reg    Registry
	mic    Microphone
	dir    string
	frames int // 0 = 10ms blocks at the registry rate

	busy  atomic.Bool
	count atomic.Int64

	mu   sync.Mutex
	stop chan struct{}
}

// Option configures a Recorder
type Option func(*Recorder)

// WithDir sets where captured clips are written
func WithDir(dir string) Option {
	return func(r *Recorder) { r.dir = dir }
}

// WithBlockFrames sets the number of frames read per block
func WithBlockFrames(n int) Option {
	return func(r *Recorder) { r.frames = n }
}

// New creates a recorder capturing from mic into reg
func New(reg Registry, mic Microphone, opts ...Option) *Recorder {
	r := &Recorder{reg: reg, mic: mic}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Recording reports whether a capture is in progress
func (r *Recorder) Recording() bool {
	return r.busy.Load()
}

// Stop ends the current recording early. What was captured so far is kept.
func (r *Recorder) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stop != nil {
		close(r.stop)
		r.stop = nil
	}
}

// Record captures up to maxDuration of audio (DefaultMaxDuration if <= 0)
// and returns it as a registered sound. Stop truncates the clip;
// cancelling ctx abandons it.
func (r *Recorder) Record(ctx context.Context, maxDuration time.Duration) (sound.Sound, error) {
	if maxDuration <= 0 {
		maxDuration = DefaultMaxDuration
	}
	if !r.reg.Ready() {
		return sound.Sound{}, fault.Wrap(sound.ErrAudioNotInitialized,
			fmsg.WithDesc("record", "Audio is not ready yet, press a key to enable sound"),
			ftag.With(sound.KindAudioUnavailable))
	}
	if !r.busy.CompareAndSwap(false, true) {
		return sound.Sound{}, fault.Wrap(ErrBusy,
			fmsg.WithDesc("record", "A recording is already in progress"),
			ftag.With(ftag.AlreadyExists))
	}
	defer r.busy.Store(false)

	stop := make(chan struct{})
	r.mu.Lock()
	r.stop = stop
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.stop = nil
		r.mu.Unlock()
	}()

	rate := int(r.reg.SampleRate())
	frames := r.frames
	if frames <= 0 {
		frames = rate / 100
	}

	stream, err := r.mic.Open(rate, frames)
	if err != nil {
		debug.Log("rec", "open microphone: %v", err)
		return sound.Sound{}, fault.Wrap(errors.Join(ErrMicrophone, err),
			fmsg.WithDesc("open microphone", "Microphone access was denied or no input device is available"),
			ftag.With(ftag.PermissionDenied))
	}
	defer func() {
		if err := stream.Close(); err != nil {
			debug.Log("rec", "close microphone: %v", err)
		}
	}()

	maxSamples := beep.SampleRate(rate).N(maxDuration)
	samples, err := capture(ctx, stream, stop, maxSamples)
	if err != nil {
		return sound.Sound{}, err
	}
	if len(samples) == 0 {
		return sound.Sound{}, fault.Wrap(ErrEmptyRecording,
			fmsg.WithDesc("record", "Nothing was recorded"),
			ftag.With(ftag.InvalidArgument))
	}
	debug.Log("rec", "captured %d samples (%v)", len(samples), beep.SampleRate(rate).D(len(samples)))

	n := r.count.Load() + 1
	name := fmt.Sprintf("Recording %d", n)
	path, err := r.save(samples, rate, n)
	if err != nil {
		return sound.Sound{}, fault.Wrap(err, fmsg.WithDesc("save recording", "The recording could not be saved"))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return sound.Sound{}, fault.Wrap(err, fmsg.With("read back "+path))
	}
	s, err := r.reg.Decode(data, name, path)
	if err != nil {
		return sound.Sound{}, err
	}
	r.count.Store(n)
	return s, nil
}

// capture reads blocks until stop, ctx or maxSamples, truncating to maxSamples
func capture(ctx context.Context, stream InputStream, stop <-chan struct{}, maxSamples int) ([]float32, error) {
	out := make([]float32, 0, maxSamples)
	for len(out) < maxSamples {
		select {
		case <-stop:
			return out, nil
		case <-ctx.Done():
			return nil, fault.Wrap(ctx.Err(), fmsg.With("recording cancelled"), ftag.With(ftag.Cancelled))
		default:
		}

		block, err := stream.Read()
		if err != nil {
			return nil, fault.Wrap(errors.Join(ErrMicrophone, err),
				fmsg.WithDesc("read microphone", "The microphone stopped delivering audio"),
				ftag.With(ftag.Internal))
		}
		out = append(out, block...)
	}
	return out[:maxSamples], nil
}

func (r *Recorder) save(samples []float32, rate int, n int64) (string, error) {
	dir := r.dir
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "beatpad-recordings")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	name := fmt.Sprintf("recording-%s-%d.wav", time.Now().Format("20060102-150405"), n)
	path := filepath.Join(dir, name)
	if err := writeWAV(path, samples, rate); err != nil {
		return "", err
	}
	return path, nil
}
