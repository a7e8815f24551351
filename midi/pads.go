package midi

import (
	"fmt"
	"sync"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

// NoteEvent is sent when a note is played on a pad controller or keyboard
type NoteEvent struct {
	Note     uint8
	Velocity uint8
	Channel  uint8
}

// PadInput listens to a MIDI input port for note-ons
type PadInput struct {
	name     string
	stopFunc func()

	mu       sync.Mutex
	closed   bool
	noteChan chan NoteEvent
}

// OpenPadInput finds port by name and starts listening
func OpenPadInput(port string) (*PadInput, error) {
	in, err := FindInPort(port, ScanTimeout)
	if err != nil {
		return nil, err
	}
	return NewPadInput(in)
}

// NewPadInput listens on inPort. Events are dropped when the reader falls behind.
func NewPadInput(inPort drivers.In) (*PadInput, error) {
	p := &PadInput{
		name:     inPort.String(),
		noteChan: make(chan NoteEvent, 32),
	}
	stop, err := gomidi.ListenTo(inPort, func(msg gomidi.Message, timestampms int32) {
		p.handle(msg)
	})
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	p.stopFunc = stop
	return p, nil
}

func (p *PadInput) handle(msg gomidi.Message) {
	var channel, note, velocity uint8
	if !msg.GetNoteOn(&channel, &note, &velocity) || velocity == 0 {
		return
	}
	// the driver may still deliver a message while Close runs
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	select {
	case p.noteChan <- NoteEvent{Note: note, Velocity: velocity, Channel: channel}:
	default:
	}
}

func (p *PadInput) Name() string { return p.name }

// Notes returns the note-on events; closed by Close
func (p *PadInput) Notes() <-chan NoteEvent {
	return p.noteChan
}

// Close stops listening and closes Notes. Safe to call more than once.
func (p *PadInput) Close() error {
	if p.stopFunc != nil {
		p.stopFunc()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.noteChan)
	}
	return nil
}
