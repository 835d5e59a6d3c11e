package playback

import (
	"context"
	"sync"
	"time"

	"beatpad/debug"
	"beatpad/midi"
)

// LED refresh rate
const ledFPS = 30

// Launchpad layout: the 8x8 pads show grid rows 0-7 top down, the right
// scene column holds transport and the top row holds tempo/size buttons.
const (
	padRows = 8
	padCols = 8

	sceneCol    = 8
	scenePlay   = 7 // top scene button
	sceneStop   = 6
	topRow      = 8
	topSlower   = 0
	topFaster   = 1
	topFewer    = 2
	topMore     = 3
	tempoStep   = 5
	auditionVel = 1
)

var (
	colorOff      = [3]uint8{0, 0, 0}
	colorCursor   = [3]uint8{40, 60, 120}
	colorHit      = [3]uint8{255, 255, 255}
	colorPlay     = [3]uint8{0, 255, 0}
	colorPlayIdle = [3]uint8{0, 100, 0}
	colorStop     = [3]uint8{180, 60, 60}
	colorTempo    = [3]uint8{180, 180, 60}
	colorSize     = [3]uint8{80, 150, 255}
)

// Per-row colors for active pads and their dimmed assigned-but-off form
var (
	rowColors = [][3]uint8{
		{255, 0, 0}, {255, 100, 0}, {255, 200, 0}, {0, 255, 0},
		{0, 200, 200}, {0, 100, 255}, {150, 0, 200}, {255, 80, 180},
	}
	rowColorsDimmed = [][3]uint8{
		{180, 60, 60}, {180, 80, 40}, {180, 180, 60}, {0, 100, 0},
		{0, 200, 200}, {40, 60, 120}, {150, 0, 200}, {255, 80, 180},
	}
)

// Button describes a fixed-function controller button for on-screen legends
type Button struct {
	Color [3]uint8
	Name  string
	Desc  string
}

// Buttons lists the transport and edit buttons in layout order
func Buttons() []Button {
	return []Button{
		{colorPlay, "Play", "top scene button, start/stop"},
		{colorStop, "Stop", "second scene button"},
		{colorTempo, "Tempo", "top row 1-2, -5/+5 bpm"},
		{colorSize, "Steps", "top row 3-4, remove/add column"},
	}
}

// Surface binds a grid controller to a Player: pads toggle grid pads, the
// scene column starts and stops playback and the LEDs mirror the grid.
type Surface struct {
	p *Player

	mu       sync.Mutex
	ctrl     midi.Controller
	ledDirty bool
	prevLEDs map[[2]int]midi.LEDUpdate
}

// NewSurface creates a surface for p and subscribes to its updates
func NewSurface(p *Player) *Surface {
	s := &Surface{
		p:        p,
		prevLEDs: make(map[[2]int]midi.LEDUpdate),
	}
	p.Watch(s.markLEDsDirty)
	return s
}

// Bind attaches a controller and starts consuming its events. Events stop
// when the controller is closed.
func (s *Surface) Bind(c midi.Controller) {
	s.mu.Lock()
	s.ctrl = c
	s.prevLEDs = make(map[[2]int]midi.LEDUpdate) // diff will repaint everything
	s.ledDirty = true
	s.mu.Unlock()

	debug.Log("surface", "bound %s (%s)", c.ID(), c.Type())
	go func() {
		for ev := range c.PadEvents() {
			s.HandlePad(ev.Row, ev.Col)
		}
	}()
	go func() {
		for ev := range c.NoteEvents() {
			s.HandleNote(ev.Note, ev.Velocity)
		}
	}()
}

// Listen consumes only note events from c, e.g. a keyboard used to
// audition sounds while a Launchpad stays bound
func (s *Surface) Listen(c midi.Controller) {
	debug.Log("surface", "listening to %s", c.ID())
	go func() {
		for ev := range c.NoteEvents() {
			s.HandleNote(ev.Note, ev.Velocity)
		}
	}()
}

// Unbind detaches the controller with the given id, if bound
func (s *Surface) Unbind(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctrl != nil && s.ctrl.ID() == id {
		debug.Log("surface", "unbound %s", id)
		s.ctrl = nil
	}
}

// Controller returns the bound controller (or nil)
func (s *Surface) Controller() midi.Controller {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctrl
}

// Run flushes LED changes at a fixed rate until ctx is done
func (s *Surface) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Second / ledFPS)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			dirty := s.ledDirty
			s.ledDirty = false
			s.mu.Unlock()

			if dirty {
				s.flushLEDs()
			}
		}
	}
}

// HandlePad applies a press at controller coordinates
func (s *Surface) HandlePad(row, col int) {
	var err error
	switch {
	case row < padRows && col < padCols:
		err = s.p.Toggle(padRows-1-row, col)
	case col == sceneCol && row == scenePlay:
		err = s.p.TogglePlayback()
	case col == sceneCol && row == sceneStop:
		s.p.Stop()
	case row == topRow && col == topSlower:
		err = s.p.SetTempo(s.p.Tempo() - tempoStep)
	case row == topRow && col == topFaster:
		err = s.p.SetTempo(s.p.Tempo() + tempoStep)
	case row == topRow && col == topFewer:
		err = s.p.RemoveColumn()
	case row == topRow && col == topMore:
		if s.p.Grid().Cols() < padCols {
			err = s.p.AddColumn()
		}
	}
	if err != nil {
		debug.Log("surface", "pad (%d,%d): %v", row, col, err)
	}
	s.markLEDsDirty()
}

// HandleNote auditions sound note modulo the number of loaded sounds
func (s *Surface) HandleNote(note, velocity uint8) {
	if velocity < auditionVel {
		return
	}
	sounds := s.p.Sounds()
	if len(sounds) == 0 {
		return
	}
	s.p.Audition(sounds[int(note)%len(sounds)].ID)
}

// RenderLEDs returns the full LED frame for the current state
func (s *Surface) RenderLEDs() []midi.LEDUpdate {
	g := s.p.Grid()
	st := s.p.State()

	var leds []midi.LEDUpdate
	for r := 0; r < g.Rows() && r < padRows; r++ {
		for c := 0; c < g.Cols() && c < padCols; c++ {
			pad, _ := g.Pad(r, c)
			cursor := st.Playing && c == st.Column

			var color [3]uint8
			switch {
			case pad.Active && cursor:
				color = colorHit
			case pad.Active:
				color = rowColors[r%len(rowColors)]
			case cursor:
				color = colorCursor
			case pad.SoundID != "":
				color = rowColorsDimmed[r%len(rowColorsDimmed)]
			default:
				continue
			}
			leds = append(leds, midi.LEDUpdate{Row: padRows - 1 - r, Col: c, Color: color})
		}
	}

	play := midi.LEDUpdate{Row: scenePlay, Col: sceneCol, Color: colorPlayIdle}
	if st.Playing {
		play.Color = colorPlay
		play.Channel = midi.ChannelPulse
	}
	leds = append(leds,
		play,
		midi.LEDUpdate{Row: sceneStop, Col: sceneCol, Color: colorStop},
		midi.LEDUpdate{Row: topRow, Col: topSlower, Color: colorTempo},
		midi.LEDUpdate{Row: topRow, Col: topFaster, Color: colorTempo},
		midi.LEDUpdate{Row: topRow, Col: topFewer, Color: colorSize},
		midi.LEDUpdate{Row: topRow, Col: topMore, Color: colorSize},
	)
	return leds
}

func (s *Surface) markLEDsDirty() {
	s.mu.Lock()
	s.ledDirty = true
	s.mu.Unlock()
}

// flushLEDs sends only changed LEDs to the controller (diffing + batching)
func (s *Surface) flushLEDs() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctrl == nil {
		return
	}

	newLEDs := s.RenderLEDs()
	newMap := make(map[[2]int]midi.LEDUpdate, len(newLEDs))

	var updates []midi.LEDUpdate
	for _, led := range newLEDs {
		key := [2]int{led.Row, led.Col}
		newMap[key] = led
		if prev, ok := s.prevLEDs[key]; !ok || prev != led {
			updates = append(updates, led)
		}
	}

	// Clear LEDs that are no longer present
	for key := range s.prevLEDs {
		if _, ok := newMap[key]; !ok {
			updates = append(updates, midi.LEDUpdate{Row: key[0], Col: key[1], Color: colorOff})
		}
	}

	if len(updates) > 0 {
		debug.LogEvery(30, "led", "flushLEDs: batch=%d prev=%d", len(updates), len(s.prevLEDs))
		if err := s.ctrl.SetLEDBatch(updates); err != nil {
			debug.Log("led", "send failed: %v", err)
		}
	}
	s.prevLEDs = newMap
}
