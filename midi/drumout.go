package midi

import (
	"math"
	"path/filepath"
	"sync"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"

	"go-drum/audio"
	"go-drum/debug"
)

// Sender sends one MIDI message
type Sender func(gomidi.Message) error

// DrumOutOptions configure the mirror
type DrumOutOptions struct {
	Port    string
	Channel int // 1-16, 10 is the GM drum channel
	Kit     string
	// Notes overrides the guessed note per sample path
	Notes map[string]uint8
}

// DrumOut is an audio.Engine that also sends every trigger as a drum note.
// Audio always plays; MIDI is best effort and never blocks the caller.
type DrumOut struct {
	audio.Engine

	channel uint8
	kit     string
	port    string

	mu        sync.RWMutex
	notes     map[audio.Handle]uint8
	gains     map[audio.Handle]float64
	overrides map[string]uint8
	loaded    int

	senderMu   sync.RWMutex
	send       Sender
	connecting bool
	failed     bool // no automatic retry after a failed open
	open       func(port string) (Sender, error)
}

// NewDrumOut wraps inner. The port is opened on first use.
func NewDrumOut(inner audio.Engine, opts DrumOutOptions) *DrumOut {
	ch := opts.Channel
	if ch < 1 || ch > 16 {
		ch = 10
	}
	if opts.Kit == "" {
		opts.Kit = DefaultKit
	}
	return &DrumOut{
		Engine:    inner,
		channel:   uint8(ch - 1),
		kit:       opts.Kit,
		port:      opts.Port,
		notes:     make(map[audio.Handle]uint8),
		gains:     make(map[audio.Handle]float64),
		overrides: opts.Notes,
		open:      openSender,
	}
}

func openSender(port string) (Sender, error) {
	out, err := FindOutPort(port, ScanTimeout)
	if err != nil {
		return nil, err
	}
	send, err := gomidi.SendTo(out)
	if err != nil {
		return nil, err
	}
	return send, nil
}

// Connect opens the port now, retrying after an earlier failure.
// Safe to call from any goroutine.
func (d *DrumOut) Connect() error {
	d.senderMu.Lock()
	if d.send != nil {
		d.senderMu.Unlock()
		return nil
	}
	d.connecting = true
	d.failed = false
	d.senderMu.Unlock()
	return d.connect()
}

func (d *DrumOut) connect() error {
	send, err := d.open(d.port)

	d.senderMu.Lock()
	defer d.senderMu.Unlock()
	d.connecting = false
	if err != nil {
		d.failed = true
		debug.Log("midi", "open %q: %v", d.port, err)
		return err
	}
	d.send = send
	debug.Log("midi", "mirroring to %q channel %d kit %s", d.port, d.channel+1, d.kit)
	return nil
}

// sender returns the open sender, or nil while the port is not open.
// The first miss starts a background connect so Play never waits on a scan.
func (d *DrumOut) sender() Sender {
	d.senderMu.RLock()
	if d.send != nil || d.connecting || d.failed {
		s := d.send
		d.senderMu.RUnlock()
		return s
	}
	d.senderMu.RUnlock()

	d.senderMu.Lock()
	defer d.senderMu.Unlock()

	// Double-check after acquiring write lock
	if d.send != nil || d.connecting || d.failed || d.port == "" {
		return d.send
	}
	d.connecting = true
	go d.connect()
	return nil
}

// Note returns the note assigned to h
func (d *DrumOut) Note(h audio.Handle) (uint8, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	n, ok := d.notes[h]
	return n, ok
}

// LoadSample loads through the wrapped engine and assigns a note to the handle
func (d *DrumOut) LoadSample(path string) (audio.Handle, *audio.Buffer, error) {
	h, buf, err := d.Engine.LoadSample(path)
	if err != nil {
		return h, buf, err
	}
	d.mu.Lock()
	note, ok := d.overrides[path]
	if !ok || note == 0 {
		note = NoteFor(filepath.Base(path), d.kit, d.loaded)
	}
	d.loaded++
	d.notes[h] = note
	d.gains[h] = 1
	d.mu.Unlock()
	debug.Log("midi", "%s -> note %d", filepath.Base(path), note)
	return h, buf, nil
}

// SetVolume keeps the gain for note velocity
func (d *DrumOut) SetVolume(h audio.Handle, gain float64) {
	d.mu.Lock()
	d.gains[h] = gain
	d.mu.Unlock()
	d.Engine.SetVolume(h, gain)
}

// Velocity maps an effective gain to a note velocity; 0 means silent
func Velocity(gain float64) uint8 {
	if gain <= 0 || math.IsNaN(gain) {
		return 0
	}
	return uint8(max(1, min(127, math.Round(gain*100))))
}

// Play plays audio, then sends note on/off
func (d *DrumOut) Play(h audio.Handle, buf *audio.Buffer, fadeIn, maxDuration time.Duration) {
	d.Engine.Play(h, buf, fadeIn, maxDuration)

	d.mu.RLock()
	note, ok := d.notes[h]
	vel := Velocity(d.gains[h])
	d.mu.RUnlock()
	if !ok || vel == 0 {
		return
	}
	send := d.sender()
	if send == nil {
		return
	}
	if err := send(gomidi.NoteOn(d.channel, note, vel)); err != nil {
		debug.Log("midi", "note on %d: %v", note, err)
		return
	}
	send(gomidi.NoteOff(d.channel, note))
}

// Stop silences audio and releases the note
func (d *DrumOut) Stop(h audio.Handle) {
	d.Engine.Stop(h)
	note, ok := d.Note(h)
	if !ok {
		return
	}
	if send := d.sender(); send != nil {
		send(gomidi.NoteOff(d.channel, note))
	}
}
