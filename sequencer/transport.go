package sequencer

import "time"

// Transport limits
const (
	MinBPM          = 40
	MaxBPM          = 240
	MaxMasterVolume = 120
	StepsPerBeat    = 4 // 16th notes
)

// TransportInfo is a read-only copy of the transport for listeners
type TransportInfo struct {
	BPM          int
	MasterVolume int
	Slot         int
	Running      bool
	Step         int
}

// Transport holds the global playback parameters of one sequencer.
// It is shared by the clock and the voices and only touched on the loop.
type Transport struct {
	bpm          int
	masterVolume int
	slot         int
	running      bool
	currentStep  int // -1 before the first tick
}

// NewTransport creates a stopped transport positioned before step 0
func NewTransport(bpm, masterVolume int) *Transport {
	t := &Transport{slot: 1, currentStep: -1}
	t.SetBPM(bpm)
	t.SetMasterVolume(masterVolume)
	return t
}

func (t *Transport) BPM() int          { return t.bpm }
func (t *Transport) MasterVolume() int { return t.masterVolume }
func (t *Transport) Slot() int         { return t.slot }
func (t *Transport) Running() bool     { return t.running }
func (t *Transport) CurrentStep() int  { return t.currentStep }

// SetBPM clamps to [MinBPM, MaxBPM] and returns the stored value
func (t *Transport) SetBPM(bpm int) int {
	t.bpm = max(MinBPM, min(MaxBPM, bpm))
	return t.bpm
}

// SetMasterVolume clamps to [0, MaxMasterVolume] percent and returns the stored value
func (t *Transport) SetMasterVolume(v int) int {
	t.masterVolume = max(0, min(MaxMasterVolume, v))
	return t.masterVolume
}

// MasterGain is the master volume as a multiplier
func (t *Transport) MasterGain() float64 {
	return float64(t.masterVolume) / 100
}

// ShiftSlot moves the save slot by delta, never below 1
func (t *Transport) ShiftSlot(delta int) int {
	t.slot = max(1, t.slot+delta)
	return t.slot
}

// Advance moves to the next step modulo steps and returns it.
// steps is passed in each time so a resized pattern never sees a stale modulus.
func (t *Transport) Advance(steps int) int {
	if steps <= 0 {
		return t.currentStep
	}
	t.currentStep = (t.currentStep + 1) % steps
	if t.currentStep < 0 {
		t.currentStep += steps
	}
	return t.currentStep
}

// Rewind puts the playhead back before step 0
func (t *Transport) Rewind() {
	t.currentStep = -1
}

// IntervalMs is the step length in milliseconds: 60000 / (4 * bpm)
func (t *Transport) IntervalMs() float64 {
	return 60000 / float64(StepsPerBeat*t.bpm)
}

// Interval is the step length as a duration
func (t *Transport) Interval() time.Duration {
	return time.Minute / time.Duration(StepsPerBeat*t.bpm)
}

// Info returns a copy for listeners
func (t *Transport) Info() TransportInfo {
	return TransportInfo{
		BPM:          t.bpm,
		MasterVolume: t.masterVolume,
		Slot:         t.slot,
		Running:      t.running,
		Step:         t.currentStep,
	}
}
