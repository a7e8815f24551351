package sequencer

import (
	"errors"
	"math/rand/v2"
	"sort"
	"testing"
	"time"

	"go-drum/audio"
)

// fakeScheduler is a manual clock: callbacks run only from Advance
type fakeScheduler struct {
	now       time.Duration
	seq       int
	timers    []*fakeTimer
	requested []time.Duration
}

type fakeTimer struct {
	at        time.Duration
	seq       int
	fn        func()
	cancelled bool
	fired     bool
}

func (t *fakeTimer) Cancel() bool {
	if t.fired || t.cancelled {
		return false
	}
	t.cancelled = true
	return true
}

func (f *fakeScheduler) After(d time.Duration, fn func()) Timer {
	f.requested = append(f.requested, d)
	if d < 0 {
		d = 0
	}
	t := &fakeTimer{at: f.now + d, seq: f.seq, fn: fn}
	f.seq++
	f.timers = append(f.timers, t)
	return t
}

// Advance runs every due callback in time order (ties in scheduling order)
func (f *fakeScheduler) Advance(d time.Duration) {
	target := f.now + d
	for {
		var due []*fakeTimer
		for _, t := range f.timers {
			if !t.fired && !t.cancelled && t.at <= target {
				due = append(due, t)
			}
		}
		if len(due) == 0 {
			break
		}
		sort.Slice(due, func(i, j int) bool {
			if due[i].at != due[j].at {
				return due[i].at < due[j].at
			}
			return due[i].seq < due[j].seq
		})
		t := due[0]
		f.now = t.at
		t.fired = true
		t.fn()
	}
	f.now = target
}

// Live counts timers that could still fire
func (f *fakeScheduler) Live() int {
	n := 0
	for _, t := range f.timers {
		if !t.fired && !t.cancelled {
			n++
		}
	}
	return n
}

type playCall struct {
	h      audio.Handle
	buf    *audio.Buffer
	fadeIn time.Duration
	maxDur time.Duration
	at     time.Duration
}

// fakeEngine records calls. Samples are 500ms of mono at 1000 Hz.
type fakeEngine struct {
	sched *fakeScheduler

	loaded    []string
	plays     []playCall
	stops     []audio.Handle
	fadeouts  []audio.Handle
	volumes   map[audio.Handle]float64
	resamples int

	failLoad     map[string]bool
	failResample bool
	onPlay       func(playCall)
}

func newFakeEngine(sched *fakeScheduler) *fakeEngine {
	return &fakeEngine{
		sched:    sched,
		volumes:  make(map[audio.Handle]float64),
		failLoad: make(map[string]bool),
	}
}

func (e *fakeEngine) LoadSample(path string) (audio.Handle, *audio.Buffer, error) {
	if e.failLoad[path] {
		return 0, nil, errors.New("corrupt sample")
	}
	h := audio.Handle(len(e.loaded))
	e.loaded = append(e.loaded, path)
	buf := &audio.Buffer{Channels: 1, SampleRate: 1000, Data: make([]float32, 500)}
	return h, buf, nil
}

func (e *fakeEngine) Play(h audio.Handle, buf *audio.Buffer, fadeIn, maxDuration time.Duration) {
	var at time.Duration
	if e.sched != nil {
		at = e.sched.now
	}
	p := playCall{h: h, buf: buf, fadeIn: fadeIn, maxDur: maxDuration, at: at}
	e.plays = append(e.plays, p)
	if e.onPlay != nil {
		e.onPlay(p)
	}
}

func (e *fakeEngine) Stop(h audio.Handle)                     { e.stops = append(e.stops, h) }
func (e *fakeEngine) Fadeout(h audio.Handle, d time.Duration) { e.fadeouts = append(e.fadeouts, h) }
func (e *fakeEngine) SetVolume(h audio.Handle, gain float64)  { e.volumes[h] = gain }

func (e *fakeEngine) Resample(buf *audio.Buffer, ratio float64) (*audio.Buffer, error) {
	e.resamples++
	if e.failResample {
		return nil, errors.New("resampler exploded")
	}
	return audio.Resample(buf, ratio)
}

func (e *fakeEngine) playsFor(h audio.Handle) []playCall {
	var out []playCall
	for _, p := range e.plays {
		if p.h == h {
			out = append(out, p)
		}
	}
	return out
}

type cellEcho struct {
	row, step int
	active    bool
}

type paramEcho struct {
	row   int
	param Param
	value float64
}

// recorder is a Listener that keeps everything it is told
type recorder struct {
	highlight  int
	highlights [][2]int
	cells      []cellEcho
	params     []paramEcho
	transports []TransportInfo
}

func newRecorder() *recorder { return &recorder{highlight: -1} }

func (r *recorder) OnStepHighlightChanged(prev, curr int) {
	r.highlight = curr
	r.highlights = append(r.highlights, [2]int{prev, curr})
}

func (r *recorder) OnCellStateChanged(row, step int, active bool) {
	r.cells = append(r.cells, cellEcho{row, step, active})
}

func (r *recorder) OnVoiceParamEchoed(row int, param Param, value float64) {
	r.params = append(r.params, paramEcho{row, param, value})
}

func (r *recorder) OnTransportChanged(info TransportInfo) {
	r.transports = append(r.transports, info)
}

// newTestSequencer builds a sequencer on the fakes with audition off and a
// fixed random source
func newTestSequencer(t *testing.T, opts Options, ids ...string) (*Sequencer, *fakeScheduler, *fakeEngine, *recorder) {
	t.Helper()
	sched := &fakeScheduler{}
	eng := newFakeEngine(sched)
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewPCG(1, 2))
	}
	seq, err := New(eng, sched, testSamples(ids...), opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	rec := newRecorder()
	seq.SetListener(rec)
	return seq, sched, eng, rec
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.AuditionOnToggle = false
	return opts
}

func testSamples(ids ...string) []Sample {
	out := make([]Sample, len(ids))
	for i, id := range ids {
		out[i] = Sample{ID: id, Path: id + ".wav"}
	}
	return out
}
