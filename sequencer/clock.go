package sequencer

import (
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"

	"beatpad/debug"
	"beatpad/grid"
)

var (
	ErrNoGrid       = errors.New("no grid to play")
	ErrInvalidTempo = errors.New("tempo must be positive")
)

// Trigger plays a sound by id. It is called from the tick path and must
// not block or call back into the clock.
type Trigger interface {
	Play(id string)
}

// TriggerFunc adapts a function to Trigger
type TriggerFunc func(id string)

func (f TriggerFunc) Play(id string) { f(id) }

// State is a read-only view of the clock
type State struct {
	Playing  bool
	Column   int
	BPM      float64
	Interval time.Duration
	Ticks    uint64
}

// Interval returns the sixteenth-note step length for bpm (60000/bpm/4 ms)
func Interval(bpm float64) time.Duration {
	return time.Duration(float64(time.Minute) / bpm / 4)
}

// Clock advances a cursor over grid columns at a tempo-derived interval
// and triggers the active pads of each column it lands on.
//
// The grid being played lives in an atomic cell: edits publish a fresh
// grid with SetGrid and the next tick reads it. Everything else is
// guarded by mu, which a tick holds for its whole duration, so Stop and
// SetTempo never interleave with a tick in progress.
type Clock struct {
	mu       sync.Mutex
	sched    Scheduler
	trigger  Trigger
	grid     atomic.Pointer[grid.Grid]
	playing  bool
	column   int
	bpm      float64
	interval time.Duration
	next     time.Time // absolute deadline of the pending tick
	timer    Timer
	gen      uint64 // bumped on every cancel; stale callbacks compare and bail
	ticks    uint64

	updates chan State
}

// Option configures a Clock
type Option func(*Clock)

// WithScheduler replaces the wall-clock scheduler
func WithScheduler(s Scheduler) Option {
	return func(c *Clock) { c.sched = s }
}

// NewClock creates a stopped clock that fires sounds through trigger
func NewClock(trigger Trigger, opts ...Option) *Clock {
	c := &Clock{
		sched:   RealScheduler{},
		trigger: trigger,
		bpm:     120,
		updates: make(chan State, 1),
	}
	c.interval = Interval(c.bpm)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start begins playing g at bpm from column 0. A running clock is
// restarted; its pending tick is cancelled first.
func (c *Clock) Start(g *grid.Grid, bpm float64) error {
	if g == nil {
		return fault.Wrap(ErrNoGrid, fmsg.With("start clock"), ftag.With(ftag.InvalidArgument))
	}
	if err := checkTempo(bpm); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.cancel()
	c.grid.Store(g)
	c.playing = true
	c.column = 0
	c.ticks = 0
	c.bpm = bpm
	c.interval = Interval(bpm)
	c.next = c.sched.Now()
	c.arm()

	debug.Log("clock", "start bpm=%.1f interval=%v grid=%dx%d", bpm, c.interval, g.Rows(), g.Cols())
	c.notify()
	return nil
}

// Stop cancels the pending tick, rewinds to column 0 and drops the grid.
// No tick runs after Stop returns. Stopping a stopped clock is a no-op.
func (c *Clock) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.playing {
		c.column = 0
		return
	}
	c.cancel()
	c.playing = false
	c.column = 0
	c.grid.Store(nil)

	debug.Log("clock", "stop after %d ticks", c.ticks)
	c.notify()
}

// SetTempo changes the tempo. A running clock cancels its pending tick and
// re-arms one interval from now, keeping the current column.
func (c *Clock) SetTempo(bpm float64) error {
	if err := checkTempo(bpm); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.bpm = bpm
	c.interval = Interval(bpm)
	if c.playing {
		c.cancel()
		c.next = c.sched.Now()
		c.arm()
	}

	debug.Log("clock", "tempo bpm=%.1f interval=%v playing=%v", bpm, c.interval, c.playing)
	c.notify()
	return nil
}

// SetGrid publishes g as the grid the next tick reads. A grid with fewer
// columns than the cursor position wraps on the next advance. A stopped
// clock holds no grid, so the call is ignored until Start.
func (c *Clock) SetGrid(g *grid.Grid) {
	if g == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.playing {
		return
	}
	c.grid.Store(g)
}

// Grid returns the grid being played (nil when stopped)
func (c *Clock) Grid() *grid.Grid {
	return c.grid.Load()
}

// State returns a snapshot of the clock
func (c *Clock) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state()
}

// Updates delivers the latest state after each change. Only the most
// recent state is kept; slow readers skip intermediate ones.
func (c *Clock) Updates() <-chan State {
	return c.updates
}

func (c *Clock) state() State {
	return State{
		Playing:  c.playing,
		Column:   c.column,
		BPM:      c.bpm,
		Interval: c.interval,
		Ticks:    c.ticks,
	}
}

func (c *Clock) tick(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.playing || gen != c.gen {
		return
	}
	g := c.grid.Load()
	if g == nil {
		return
	}

	c.column = (c.column + 1) % g.Cols()
	c.ticks++
	ids := g.ActiveInColumn(c.column)
	for _, id := range ids {
		c.play(id)
	}
	debug.LogEvery(16, "clock", "tick column=%d triggers=%d", c.column, len(ids))

	c.arm()
	c.notify()
}

func (c *Clock) play(id string) {
	defer func() {
		if r := recover(); r != nil {
			debug.Log("clock", "trigger %s panicked: %v", id, r)
		}
	}()
	c.trigger.Play(id)
}

// arm schedules the next tick one interval after the previous deadline.
// Must be called with mu held.
func (c *Clock) arm() {
	now := c.sched.Now()
	c.next = c.next.Add(c.interval)
	if late := now.Sub(c.next); late > c.interval {
		debug.Log("clock", "behind by %v, resyncing", late)
		c.next = now
	}
	wait := c.next.Sub(now)
	if wait < 0 {
		wait = 0
	}
	gen := c.gen
	c.timer = c.sched.AfterFunc(wait, func() { c.tick(gen) })
}

// cancel stops the pending timer and invalidates any callback already
// waiting on mu. Must be called with mu held.
func (c *Clock) cancel() {
	c.gen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Clock) notify() {
	s := c.state()
	select {
	case c.updates <- s:
	default:
		select {
		case <-c.updates:
		default:
		}
		select {
		case c.updates <- s:
		default:
		}
	}
}

func checkTempo(bpm float64) error {
	if bpm <= 0 || math.IsNaN(bpm) || math.IsInf(bpm, 0) {
		return fault.Wrap(ErrInvalidTempo,
			fmsg.WithDesc("tempo rejected", "Tempo must be a positive number"),
			ftag.With(ftag.InvalidArgument))
	}
	return nil
}
