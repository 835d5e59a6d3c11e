package sound

import (
	"errors"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/gopxl/beep"
)

// KindAudioUnavailable tags errors caused by an output device that was
// never opened (or failed to open)
const KindAudioUnavailable ftag.Kind = "AUDIO_UNAVAILABLE"

var (
	ErrAudioNotInitialized = errors.New("audio not initialized")
	ErrUnknownFormat       = errors.New("unrecognized audio format")
	ErrEmptyAudio          = errors.New("audio contains no samples")
	ErrNotFound            = errors.New("sound not found")
)

// Sound is an immutable decoded clip. Pads refer to it by ID only.
type Sound struct {
	ID        string
	Name      string
	Source    string
	Synthetic bool    // fallback tone standing in for an undecodable source
	ToneHz    float64 // frequency of a synthetic tone, 0 otherwise

	buffer *beep.Buffer
}

// Descriptor names a sound and where to fetch it from
type Descriptor struct {
	ID        string `json:"id" yaml:"id,omitempty"`
	Name      string `json:"name" yaml:"name"`
	SourceURL string `json:"sourceUrl" yaml:"src"`
}

// Descriptor returns the descriptor this sound was loaded from
func (s Sound) Descriptor() Descriptor {
	return Descriptor{ID: s.ID, Name: s.Name, SourceURL: s.Source}
}

// Playable reports whether the sound has audio to play
func (s Sound) Playable() bool {
	return s.buffer != nil && s.buffer.Len() > 0
}

// Len returns the clip length in samples
func (s Sound) Len() int {
	if s.buffer == nil {
		return 0
	}
	return s.buffer.Len()
}

// Format returns the buffer format
func (s Sound) Format() beep.Format {
	if s.buffer == nil {
		return beep.Format{}
	}
	return s.buffer.Format()
}

// Duration returns the clip length
func (s Sound) Duration() time.Duration {
	if s.buffer == nil {
		return 0
	}
	return s.buffer.Format().SampleRate.D(s.buffer.Len())
}

// Streamer returns a fresh, independent streamer over the whole clip
func (s Sound) Streamer() beep.StreamSeeker {
	return s.buffer.Streamer(0, s.buffer.Len())
}

func notInitialized(op string) error {
	return fault.Wrap(ErrAudioNotInitialized,
		fmsg.WithDesc(op, "Audio is not ready yet, press a key to enable sound"),
		ftag.With(KindAudioUnavailable),
	)
}
