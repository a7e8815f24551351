package tui

import (
	"sync"

	"go-drum/sequencer"
)

// Row is the mirrored state of one voice row
type Row struct {
	ID     string
	Cells  []bool
	Volume float64
	Pitch  int
	Timing float64
	Broken bool
}

// Frame is a consistent copy of everything the view draws
type Frame struct {
	Rows      []Row
	Highlight int
	Transport sequencer.TransportInfo
	Status    string
}

// State mirrors sequencer echoes for the view. The sequencer calls it on the
// loop goroutine; the view reads it from the bubbletea goroutine.
type State struct {
	mu         sync.RWMutex
	rows       []Row
	highlight  int
	transport  sequencer.TransportInfo
	status     string
	UpdateChan chan struct{}
}

// NewState copies the current sequencer state. Call it on the loop.
func NewState(seq *sequencer.Sequencer) *State {
	s := &State{
		highlight:  seq.Transport().CurrentStep(),
		transport:  seq.Transport().Info(),
		UpdateChan: make(chan struct{}, 1),
	}
	for _, v := range seq.Voices() {
		s.rows = append(s.rows, Row{
			ID:     v.ID(),
			Cells:  seq.Grid().Row(v.Row()),
			Volume: v.Volume(),
			Pitch:  v.Pitch(),
			Timing: v.Timing(),
			Broken: !v.Playable(),
		})
	}
	return s
}

// notify wakes the view without ever blocking the loop
func (s *State) notify() {
	select {
	case s.UpdateChan <- struct{}{}:
	default:
	}
}

func (s *State) OnStepHighlightChanged(prev, curr int) {
	s.mu.Lock()
	s.highlight = curr
	s.mu.Unlock()
	s.notify()
}

func (s *State) OnCellStateChanged(row, step int, active bool) {
	s.mu.Lock()
	if row >= 0 && row < len(s.rows) && step >= 0 && step < len(s.rows[row].Cells) {
		s.rows[row].Cells[step] = active
	}
	s.mu.Unlock()
	s.notify()
}

func (s *State) OnVoiceParamEchoed(row int, param sequencer.Param, value float64) {
	s.mu.Lock()
	if row >= 0 && row < len(s.rows) {
		r := &s.rows[row]
		switch param {
		case sequencer.ParamVolume:
			r.Volume = value
		case sequencer.ParamPitch:
			r.Pitch = int(value)
		case sequencer.ParamTiming:
			r.Timing = value
		}
	}
	s.mu.Unlock()
	s.notify()
}

func (s *State) OnTransportChanged(info sequencer.TransportInfo) {
	s.mu.Lock()
	s.transport = info
	s.mu.Unlock()
	s.notify()
}

// SetBroken marks a row unplayable, or playable again
func (s *State) SetBroken(row int, broken bool) {
	s.mu.Lock()
	if row >= 0 && row < len(s.rows) {
		s.rows[row].Broken = broken
	}
	s.mu.Unlock()
	s.notify()
}

// SetStatus shows a one-line message under the grid
func (s *State) SetStatus(msg string) {
	s.mu.Lock()
	s.status = msg
	s.mu.Unlock()
	s.notify()
}

// Frame returns a deep copy safe to use without the lock
func (s *State) Frame() Frame {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f := Frame{
		Rows:      make([]Row, len(s.rows)),
		Highlight: s.highlight,
		Transport: s.transport,
		Status:    s.status,
	}
	for i, r := range s.rows {
		r.Cells = append([]bool(nil), r.Cells...)
		f.Rows[i] = r
	}
	return f
}
