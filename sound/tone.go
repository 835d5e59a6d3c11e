package sound

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/gopxl/beep"
)

// Fallback tone shape
const (
	toneMinHz    = 200.0
	toneSpanHz   = 500.0
	toneDuration = 500 * time.Millisecond
	toneDecay    = 3.0
)

// randomToneHz picks a frequency in [200, 700) Hz
func randomToneHz() float64 {
	return toneMinHz + rand.Float64()*toneSpanHz
}

// decayTone is a sine that fades out exponentially over its length
type decayTone struct {
	freq  float64
	rate  beep.SampleRate
	pos   int
	total int
}

// newDecayTone creates a tone of freq Hz lasting d
func newDecayTone(freq float64, d time.Duration, rate beep.SampleRate) *decayTone {
	return &decayTone{freq: freq, rate: rate, total: rate.N(d)}
}

func (t *decayTone) Stream(samples [][2]float64) (n int, ok bool) {
	for i := range samples {
		if t.pos >= t.total {
			return i, i > 0
		}
		env := math.Exp(-toneDecay * float64(t.pos) / float64(t.total))
		val := math.Sin(2*math.Pi*t.freq*float64(t.pos)/float64(t.rate)) * env
		samples[i][0] = val
		samples[i][1] = val
		t.pos++
	}
	return len(samples), true
}

func (t *decayTone) Err() error { return nil }

// toneBuffer renders a fallback tone into a buffer at rate
func toneBuffer(freq float64, rate beep.SampleRate) *beep.Buffer {
	buf := beep.NewBuffer(beep.Format{SampleRate: rate, NumChannels: 2, Precision: 2})
	buf.Append(newDecayTone(freq, toneDuration, rate))
	return buf
}
