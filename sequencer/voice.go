package sequencer

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"go-drum/audio"
	"go-drum/debug"
)

// ErrUnplayable marks a voice whose buffer could not be produced
var ErrUnplayable = errors.New("voice unplayable")

// Voice parameter limits
const (
	MaxVoiceVolume = 1.2
	MinPitch       = -12
	MaxPitch       = 12
	MaxTiming      = 100
)

// Param identifies an echoed voice parameter
type Param int

const (
	ParamVolume Param = iota
	ParamPitch
	ParamTiming
)

func (p Param) String() string {
	switch p {
	case ParamVolume:
		return "volume"
	case ParamPitch:
		return "pitch"
	case ParamTiming:
		return "timing"
	}
	return fmt.Sprintf("param(%d)", int(p))
}

// PitchRatio converts semitones to a playback speed ratio. 0 is exactly 1.
func PitchRatio(semitones int) float64 {
	if semitones == 0 {
		return 1
	}
	return math.Pow(2, float64(semitones)/12)
}

// Voice is one sample bound to one grid row
type Voice struct {
	id        string
	row       int
	engine    audio.Engine
	handle    audio.Handle
	cache     *ResampleCache
	transport *Transport

	source *audio.Buffer // unshifted sample
	active *audio.Buffer
	volume float64 // local, 0-1.2
	pitch  int
	timing float64 // humanization amount, 0-100

	fadeIn        time.Duration
	retriggerFade time.Duration

	envelope    time.Duration
	hasEnvelope bool

	loaded bool  // false when the handle is not a real engine channel
	err    error // non-nil once the voice is unplayable
}

// VoiceOptions are per-voice playback settings shared by all voices
type VoiceOptions struct {
	FadeIn        time.Duration
	RetriggerFade time.Duration
}

// NewVoice binds a loaded sample to a row. src may be nil when loading failed,
// in which case the voice is created unplayable with loadErr.
func NewVoice(id string, row int, engine audio.Engine, h audio.Handle, src *audio.Buffer, cache *ResampleCache, t *Transport, opts VoiceOptions, loadErr error) *Voice {
	v := &Voice{
		id:            id,
		row:           row,
		engine:        engine,
		handle:        h,
		cache:         cache,
		transport:     t,
		source:        src,
		active:        src,
		volume:        1,
		fadeIn:        opts.FadeIn,
		retriggerFade: opts.RetriggerFade,
	}
	switch {
	case loadErr != nil:
		v.err = fmt.Errorf("%w: %s: %w", ErrUnplayable, id, loadErr)
	case src == nil:
		v.err = fmt.Errorf("%w: %s: no sample data", ErrUnplayable, id)
	default:
		v.loaded = true
		cache.Add(id, src)
		v.ApplyMaster()
	}
	return v
}

func (v *Voice) ID() string              { return v.id }
func (v *Voice) Row() int                { return v.row }
func (v *Voice) Volume() float64         { return v.volume }
func (v *Voice) Pitch() int              { return v.pitch }
func (v *Voice) Timing() float64         { return v.timing }
func (v *Voice) Err() error              { return v.err }
func (v *Voice) Playable() bool          { return v.err == nil }
func (v *Voice) Buffer() *audio.Buffer   { return v.active }
func (v *Voice) Handle() audio.Handle    { return v.handle }
func (v *Voice) Envelope() time.Duration { return v.envelope }

// EffectiveVolume is local volume scaled by the master volume
func (v *Voice) EffectiveVolume() float64 {
	return v.volume * v.transport.MasterGain()
}

// Play starts the sample. The envelope length is the unshifted sample's
// duration, computed on the first play and kept across pitch changes.
func (v *Voice) Play() {
	if v.err != nil {
		return
	}
	if !v.hasEnvelope {
		v.envelope = v.source.Duration()
		v.hasEnvelope = true
	}
	v.engine.Play(v.handle, v.active, v.fadeIn, v.envelope)
}

// Trigger is what the clock calls: optional short fade of the previous hit, then Play
func (v *Voice) Trigger() {
	if v.err != nil {
		return
	}
	if v.retriggerFade > 0 {
		v.engine.Fadeout(v.handle, v.retriggerFade)
	}
	v.Play()
}

func (v *Voice) Stop() {
	if v.loaded {
		v.engine.Stop(v.handle)
	}
}

func (v *Voice) Fadeout(d time.Duration) {
	if v.loaded {
		v.engine.Fadeout(v.handle, d)
	}
}

// SetPitch swaps the active buffer for the cached resample at the new pitch.
// A failure leaves the voice unplayable.
func (v *Voice) SetPitch(semitones int) error {
	v.pitch = max(MinPitch, min(MaxPitch, semitones))
	if !v.loaded {
		return v.err
	}
	buf, err := v.cache.Get(v.id, PitchRatio(v.pitch))
	if err != nil {
		v.err = fmt.Errorf("%w: %s: %w", ErrUnplayable, v.id, err)
		v.engine.Stop(v.handle)
		debug.Log("voice", "%s pitch %d failed: %v", v.id, v.pitch, err)
		return v.err
	}
	v.active = buf
	v.err = nil
	v.ApplyMaster()
	return nil
}

// SetVolume clamps to [0, MaxVoiceVolume] and returns the stored value
func (v *Voice) SetVolume(vol float64) float64 {
	if math.IsNaN(vol) {
		vol = 0
	}
	v.volume = max(0, min(MaxVoiceVolume, vol))
	v.ApplyMaster()
	return v.volume
}

// SetTiming clamps to [0, MaxTiming] and returns the stored value
func (v *Voice) SetTiming(t float64) float64 {
	if math.IsNaN(t) {
		t = 0
	}
	v.timing = max(0, min(MaxTiming, t))
	return v.timing
}

// ApplyMaster pushes the effective volume to the engine
func (v *Voice) ApplyMaster() {
	if !v.loaded {
		return
	}
	v.engine.SetVolume(v.handle, v.EffectiveVolume())
}

// Jitter draws a humanization offset: round(N(0, timing/divisor)) milliseconds
func (v *Voice) Jitter(rng *rand.Rand, divisor float64) time.Duration {
	if v.timing <= 0 || divisor <= 0 || rng == nil {
		return 0
	}
	sd := v.timing / divisor
	ms := math.Round(rng.NormFloat64() * sd)
	return time.Duration(ms) * time.Millisecond
}
