package sound

import (
	"math"
	"sync"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
	"github.com/gopxl/beep/speaker"
)

// Output is the device sounds are played on
type Output interface {
	Open(sr beep.SampleRate, bufferSize int) error
	Play(s beep.Streamer)
	Close()
}

// SpeakerOutput plays through the system speaker. All voices share one
// mixer that stays attached to the speaker for the lifetime of the output.
type SpeakerOutput struct {
	volume float64
	mixer  *beep.Mixer
}

// NewSpeakerOutput creates a speaker output at volume (0.0-1.0)
func NewSpeakerOutput(volume float64) *SpeakerOutput {
	return &SpeakerOutput{volume: volume}
}

func (o *SpeakerOutput) Open(sr beep.SampleRate, bufferSize int) error {
	if err := speaker.Init(sr, bufferSize); err != nil {
		return err
	}
	o.mixer = &beep.Mixer{}
	speaker.Play(newVolume(o.mixer, o.volume))
	return nil
}

func (o *SpeakerOutput) Play(s beep.Streamer) {
	if o.mixer == nil {
		return
	}
	speaker.Lock()
	o.mixer.Add(s)
	speaker.Unlock()
}

func (o *SpeakerOutput) Close() {
	if o.mixer == nil {
		return
	}
	speaker.Clear()
	speaker.Close()
	o.mixer = nil
}

// newVolume wraps s in a volume effect; log2(0) is -Inf so zero means silent
func newVolume(s beep.Streamer, vol float64) beep.Streamer {
	if vol <= 0 {
		return &effects.Volume{Streamer: s, Base: 2, Volume: 0, Silent: true}
	}
	return &effects.Volume{Streamer: s, Base: 2, Volume: math.Log2(vol), Silent: false}
}

// HeadlessOutput accepts plays without a device. It keeps every streamer
// it was handed so callers can count or render them.
type HeadlessOutput struct {
	// OpenErr, if set, is returned by Open
	OpenErr error

	mu     sync.Mutex
	open   bool
	rate   beep.SampleRate
	played []beep.Streamer
	onPlay func(beep.Streamer)
}

// NewHeadlessOutput creates a device-less output
func NewHeadlessOutput() *HeadlessOutput {
	return &HeadlessOutput{}
}

// OnPlay registers a hook run for every play
func (o *HeadlessOutput) OnPlay(f func(beep.Streamer)) {
	o.mu.Lock()
	o.onPlay = f
	o.mu.Unlock()
}

func (o *HeadlessOutput) Open(sr beep.SampleRate, bufferSize int) error {
	if o.OpenErr != nil {
		return o.OpenErr
	}
	o.mu.Lock()
	o.open = true
	o.rate = sr
	o.mu.Unlock()
	return nil
}

func (o *HeadlessOutput) Play(s beep.Streamer) {
	o.mu.Lock()
	if !o.open {
		o.mu.Unlock()
		return
	}
	o.played = append(o.played, s)
	hook := o.onPlay
	o.mu.Unlock()

	if hook != nil {
		hook(s)
	}
}

func (o *HeadlessOutput) Close() {
	o.mu.Lock()
	o.open = false
	o.mu.Unlock()
}

// Plays returns how many streamers were played
func (o *HeadlessOutput) Plays() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.played)
}

// Played returns the streamers handed to Play, oldest first
func (o *HeadlessOutput) Played() []beep.Streamer {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]beep.Streamer, len(o.played))
	copy(out, o.played)
	return out
}

// SampleRate returns the rate the output was opened at
func (o *HeadlessOutput) SampleRate() beep.SampleRate {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.rate
}
