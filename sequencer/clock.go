package sequencer

import (
	"math/rand/v2"
	"time"

	"go-drum/debug"
)

// Clock defaults
const (
	DefaultLookahead     = 2
	DefaultJitterDivisor = 8.0
)

// ClockOptions tune the scheduling
type ClockOptions struct {
	// Lookahead is how many steps ahead of the highlighted step a tick
	// schedules triggers. Triggers fire one interval later, so a note sounds
	// Lookahead-1 steps before its column is lit: one step early with the
	// default of 2, in sync with 1.
	Lookahead int
	// JitterDivisor maps voice timing (0-100) to a standard deviation in ms
	JitterDivisor float64
	Rand          *rand.Rand
}

// ClockStats counts clock activity
type ClockStats struct {
	Ticks    uint64
	Triggers uint64
	Pending  int
}

// Clock is the self-rescheduling step clock. It owns the next tick handle and
// every trigger handle it created, so Stop leaves nothing behind.
type Clock struct {
	sched     Scheduler
	grid      *Grid
	transport *Transport
	voices    []*Voice
	listener  func() Listener

	lookahead int
	divisor   float64
	rng       *rand.Rand

	next    Timer
	pending map[uint64]Timer
	nextID  uint64
	gen     uint64 // bumped on Stop, stale callbacks compare against it

	ticks    uint64
	triggers uint64
}

// NewClock creates a stopped clock. listener is looked up on every tick so the
// sequencer can swap it.
func NewClock(sched Scheduler, g *Grid, t *Transport, voices []*Voice, listener func() Listener, opts ClockOptions) *Clock {
	if opts.Lookahead < 0 {
		opts.Lookahead = 0
	}
	if opts.JitterDivisor <= 0 {
		opts.JitterDivisor = DefaultJitterDivisor
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x9e3779b97f4a7c15))
	}
	if listener == nil {
		listener = func() Listener { return NopListener{} }
	}
	return &Clock{
		sched:     sched,
		grid:      g,
		transport: t,
		voices:    voices,
		listener:  listener,
		lookahead: opts.Lookahead,
		divisor:   opts.JitterDivisor,
		rng:       rng,
		pending:   make(map[uint64]Timer),
	}
}

func (c *Clock) Running() bool { return c.transport.Running() }

// Start schedules the first tick immediately. No-op when running.
func (c *Clock) Start() {
	if c.transport.running {
		return
	}
	c.transport.running = true
	gen := c.gen
	c.next = c.sched.After(0, func() { c.tick(gen) })
	debug.Log("clock", "start bpm=%d step=%d", c.transport.BPM(), c.transport.CurrentStep())
}

// Stop cancels the next tick and every pending trigger. No-op when stopped.
func (c *Clock) Stop() {
	if !c.transport.running {
		return
	}
	c.transport.running = false
	c.gen++
	if c.next != nil {
		c.next.Cancel()
		c.next = nil
	}
	n := len(c.pending)
	for id, t := range c.pending {
		t.Cancel()
		delete(c.pending, id)
	}
	debug.Log("clock", "stop step=%d cancelled=%d", c.transport.CurrentStep(), n)
}

// Toggle flips between running and stopped; the step position is kept
func (c *Clock) Toggle() {
	if c.transport.running {
		c.Stop()
	} else {
		c.Start()
	}
}

func (c *Clock) tick(gen uint64) {
	if gen != c.gen || !c.transport.running {
		return
	}

	// reschedule first so trigger work never delays the next tick
	interval := c.transport.Interval()
	c.next = c.sched.After(interval, func() { c.tick(gen) })

	steps := c.grid.Steps()
	prev := c.transport.CurrentStep()
	curr := c.transport.Advance(steps)
	trig := (curr + c.lookahead) % steps

	for row, v := range c.voices {
		if !c.grid.Active(row, trig) || !v.Playable() {
			continue
		}
		d := interval + v.Jitter(c.rng, c.divisor)
		if d < 0 {
			d = 0
		}
		c.schedule(gen, v, d)
	}
	c.ticks++

	debug.LogEvery(64, "clock", "tick %d step=%d trig=%d pending=%d", c.ticks, curr, trig, len(c.pending))
	c.listener().OnStepHighlightChanged(prev, curr)
}

func (c *Clock) schedule(gen uint64, v *Voice, d time.Duration) {
	id := c.nextID
	c.nextID++
	c.pending[id] = c.sched.After(d, func() {
		delete(c.pending, id)
		if gen != c.gen {
			return
		}
		v.Trigger()
		c.triggers++
	})
}

func (c *Clock) Stats() ClockStats {
	return ClockStats{Ticks: c.ticks, Triggers: c.triggers, Pending: len(c.pending)}
}
