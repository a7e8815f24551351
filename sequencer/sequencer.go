package sequencer

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"runtime"
	"time"

	"go-drum/audio"
	"go-drum/debug"
)

// ErrNoSamples is returned when a sequencer is created without samples
var ErrNoSamples = errors.New("no samples")

// Sample is one entry of the sample list
type Sample struct {
	ID   string
	Path string
}

// Options configure a Sequencer. Zero values fall back to defaults.
type Options struct {
	Steps         int
	BPM           int
	MasterVolume  int
	Lookahead     int
	JitterDivisor float64
	FadeIn        time.Duration
	RetriggerFade time.Duration

	// AuditionOnToggle plays a voice when one of its cells is switched on
	AuditionOnToggle bool
	SaveDir          string
	Rand             *rand.Rand
}

// Defaults
const (
	DefaultSteps        = 16
	DefaultBPM          = 120
	DefaultMasterVolume = 100
	DefaultFadeIn       = 2 * time.Millisecond
)

// DefaultOptions returns the options used by the CLI when no config overrides them
func DefaultOptions() Options {
	return Options{
		Steps:            DefaultSteps,
		BPM:              DefaultBPM,
		MasterVolume:     DefaultMasterVolume,
		Lookahead:        DefaultLookahead,
		JitterDivisor:    DefaultJitterDivisor,
		FadeIn:           DefaultFadeIn,
		AuditionOnToggle: true,
	}
}

// Sequencer owns the grid, transport, voices, resample cache and clock of one
// drum machine. All methods except Prewarm must run on the loop goroutine.
type Sequencer struct {
	opts      Options
	engine    audio.Engine
	grid      *Grid
	transport *Transport
	voices    []*Voice
	byID      map[string]*Voice
	cache     *ResampleCache
	clock     *Clock
	listener  Listener
}

// New loads every sample through engine and builds a stopped sequencer.
// A sample that fails to load gives an unplayable voice, not an error.
func New(engine audio.Engine, sched Scheduler, samples []Sample, opts Options) (*Sequencer, error) {
	if len(samples) == 0 {
		return nil, ErrNoSamples
	}
	if opts.Steps <= 0 {
		opts.Steps = DefaultSteps
	}
	if opts.BPM == 0 {
		opts.BPM = DefaultBPM
	}

	s := &Sequencer{
		opts:      opts,
		engine:    engine,
		grid:      NewGrid(len(samples), opts.Steps),
		transport: NewTransport(opts.BPM, opts.MasterVolume),
		byID:      make(map[string]*Voice, len(samples)),
		cache:     NewResampleCache(engine.Resample),
		listener:  NopListener{},
	}
	vopts := VoiceOptions{FadeIn: opts.FadeIn, RetriggerFade: opts.RetriggerFade}
	for row, smp := range samples {
		id := smp.ID
		if id == "" {
			id = smp.Path
		}
		if _, dup := s.byID[id]; dup {
			return nil, fmt.Errorf("duplicate sample id %q", id)
		}
		h, buf, err := engine.LoadSample(smp.Path)
		if err != nil {
			debug.Log("voice", "load %s: %v", smp.Path, err)
		}
		v := NewVoice(id, row, engine, h, buf, s.cache, s.transport, vopts, err)
		s.voices = append(s.voices, v)
		s.byID[id] = v
	}
	s.clock = NewClock(sched, s.grid, s.transport, s.voices, func() Listener { return s.listener }, ClockOptions{
		Lookahead:     opts.Lookahead,
		JitterDivisor: opts.JitterDivisor,
		Rand:          opts.Rand,
	})
	debug.Log("voice", "sequencer ready: %d voices x %d steps", len(s.voices), s.grid.Steps())
	return s, nil
}

// SetListener replaces the listener; nil installs NopListener
func (s *Sequencer) SetListener(l Listener) {
	if l == nil {
		l = NopListener{}
	}
	s.listener = l
}

func (s *Sequencer) Grid() *Grid                { return s.grid }
func (s *Sequencer) Transport() *Transport      { return s.transport }
func (s *Sequencer) Voices() []*Voice           { return s.voices }
func (s *Sequencer) Cache() *ResampleCache      { return s.cache }
func (s *Sequencer) Clock() *Clock              { return s.clock }
func (s *Sequencer) Rows() int                  { return s.grid.Rows() }
func (s *Sequencer) Steps() int                 { return s.grid.Steps() }
func (s *Sequencer) VoiceByID(id string) *Voice { return s.byID[id] }

// Voice returns the voice of a row, or nil
func (s *Sequencer) Voice(row int) *Voice {
	if row < 0 || row >= len(s.voices) {
		return nil
	}
	return s.voices[row]
}

// SampleIDs returns voice ids in row order
func (s *Sequencer) SampleIDs() []string {
	ids := make([]string, len(s.voices))
	for i, v := range s.voices {
		ids[i] = v.ID()
	}
	return ids
}

// ToggleCell flips a cell, echoes it, and auditions the voice when switched on
func (s *Sequencer) ToggleCell(row, step int) bool {
	if !s.grid.InRange(row, step) {
		return false
	}
	on := s.grid.Toggle(row, step)
	s.listener.OnCellStateChanged(row, step, on)
	if on && s.opts.AuditionOnToggle {
		s.voices[row].Play()
	}
	return on
}

// SetCell sets a cell and echoes it when it changed
func (s *Sequencer) SetCell(row, step int, active bool) {
	if s.grid.Set(row, step, active) {
		s.listener.OnCellStateChanged(row, step, active)
	}
}

// Audition plays a voice once outside the clock
func (s *Sequencer) Audition(row int) {
	if v := s.Voice(row); v != nil {
		v.Play()
	}
}

// SetVoiceVolume sets the local volume (0-1.2) and echoes the stored value
func (s *Sequencer) SetVoiceVolume(row int, vol float64) {
	v := s.Voice(row)
	if v == nil {
		return
	}
	s.listener.OnVoiceParamEchoed(row, ParamVolume, v.SetVolume(vol))
}

// SetVoicePitch retunes a voice. A resample failure makes that voice
// unplayable and is returned; the pitch is echoed either way.
func (s *Sequencer) SetVoicePitch(row, semitones int) error {
	v := s.Voice(row)
	if v == nil {
		return fmt.Errorf("row %d out of range", row)
	}
	err := v.SetPitch(semitones)
	s.listener.OnVoiceParamEchoed(row, ParamPitch, float64(v.Pitch()))
	return err
}

// SetVoiceTiming sets the humanization amount (0-100) and echoes it
func (s *Sequencer) SetVoiceTiming(row int, timing float64) {
	v := s.Voice(row)
	if v == nil {
		return
	}
	s.listener.OnVoiceParamEchoed(row, ParamTiming, v.SetTiming(timing))
}

// SetBPM takes effect at the next reschedule
func (s *Sequencer) SetBPM(bpm int) {
	s.transport.SetBPM(bpm)
	s.transportChanged()
}

// SetMasterVolume recomposes the effective volume of every voice
func (s *Sequencer) SetMasterVolume(v int) {
	s.transport.SetMasterVolume(v)
	for _, voice := range s.voices {
		voice.ApplyMaster()
	}
	s.transportChanged()
}

func (s *Sequencer) Start() {
	s.clock.Start()
	s.transportChanged()
}

func (s *Sequencer) Stop() {
	s.clock.Stop()
	s.transportChanged()
}

// ToggleRun starts or stops the clock
func (s *Sequencer) ToggleRun() {
	s.clock.Toggle()
	s.transportChanged()
}

// Rewind moves the playhead before step 0 so the next tick plays step 0
func (s *Sequencer) Rewind() {
	prev := s.transport.CurrentStep()
	s.transport.Rewind()
	s.listener.OnStepHighlightChanged(prev, -1)
	s.transportChanged()
}

// ClearAll turns every cell off and echoes the ones that changed
func (s *Sequencer) ClearAll() {
	for _, c := range s.grid.Clear() {
		s.listener.OnCellStateChanged(c.Row, c.Step, false)
	}
}

// StopVoices silences every voice immediately
func (s *Sequencer) StopVoices() {
	for _, v := range s.voices {
		v.Stop()
	}
}

// ShiftPatternSlot moves the save slot by delta (never below 1)
func (s *Sequencer) ShiftPatternSlot(delta int) int {
	slot := s.transport.ShiftSlot(delta)
	s.transportChanged()
	return slot
}

// Prewarm fills the resample cache for every voice. Ids never change after
// New, so it is safe to call from any goroutine.
func (s *Sequencer) Prewarm(ctx context.Context) error {
	return s.cache.Prewarm(ctx, s.SampleIDs(), max(1, runtime.NumCPU()-1))
}

func (s *Sequencer) transportChanged() {
	s.listener.OnTransportChanged(s.transport.Info())
}
