package audio

import (
	"encoding/binary"
	"math"
	"sync"
	"time"

	"github.com/viterin/vek/vek32"

	"go-drum/debug"
)

// Output format defaults
const (
	DefaultSampleRate = 44100
	DefaultChannels   = 2
)

// instance is one triggered playback of a buffer
type instance struct {
	buf    *Buffer
	pos    int // frame
	end    int // frame after which the instance is silent
	fadeIn int // frames

	fadeLen  int // fade-out length in frames, 0 = not fading
	fadeLeft int
}

func (in *instance) done() bool {
	return in.pos >= in.end || (in.fadeLen > 0 && in.fadeLeft <= 0)
}

// envelope returns the gain for the current frame
func (in *instance) envelope() float32 {
	env := float32(1)
	if in.fadeIn > 0 && in.pos < in.fadeIn {
		env = float32(in.pos) / float32(in.fadeIn)
	}
	if in.fadeLen > 0 {
		env *= float32(in.fadeLeft) / float32(in.fadeLen)
	}
	return env
}

// channel holds the sounding instance plus the one fading out behind it
type channel struct {
	gain    float32
	current *instance
	tail    *instance
}

// Mixer is a software Engine. It renders all channels into one interleaved
// float32 stream and implements io.Reader for the audio output.
type Mixer struct {
	mu         sync.Mutex
	sampleRate int
	channels   int
	voices     []*channel
	tmp        []float32
	load       func(path string, channels, sampleRate int) (*Buffer, error)
}

// NewMixer creates a mixer. Zero arguments use DefaultSampleRate/DefaultChannels.
func NewMixer(sampleRate, channels int) *Mixer {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	if channels <= 0 {
		channels = DefaultChannels
	}
	return &Mixer{
		sampleRate: sampleRate,
		channels:   channels,
		load:       LoadWAV,
	}
}

func (m *Mixer) SampleRate() int { return m.sampleRate }
func (m *Mixer) Channels() int   { return m.channels }

// LoadSample decodes a file and allocates a channel for it
func (m *Mixer) LoadSample(path string) (Handle, *Buffer, error) {
	buf, err := m.load(path, m.channels, m.sampleRate)
	if err != nil {
		return 0, nil, err
	}
	return m.AddChannel(), buf, nil
}

// AddChannel allocates a playback channel without loading anything
func (m *Mixer) AddChannel() Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.voices = append(m.voices, &channel{gain: 1})
	return Handle(len(m.voices) - 1)
}

func (m *Mixer) channel(h Handle) *channel {
	if int(h) < 0 || int(h) >= len(m.voices) {
		return nil
	}
	return m.voices[h]
}

func (m *Mixer) frames(d time.Duration) int {
	return int(d * time.Duration(m.sampleRate) / time.Second)
}

// Play starts buf on channel h, replacing whatever was sounding there.
// maxDuration <= 0 plays the whole buffer.
func (m *Mixer) Play(h Handle, buf *Buffer, fadeIn, maxDuration time.Duration) {
	if buf == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	ch := m.channel(h)
	if ch == nil {
		return
	}
	end := buf.Frames()
	if maxDuration > 0 {
		end = min(end, m.frames(maxDuration))
	}
	ch.current = &instance{buf: buf, end: end, fadeIn: m.frames(fadeIn)}
}

// Stop silences channel h immediately
func (m *Mixer) Stop(h Handle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ch := m.channel(h); ch != nil {
		ch.current = nil
		ch.tail = nil
	}
}

// Fadeout moves the sounding instance to the tail and ramps it to silence over d.
// A following Play starts fresh while the tail finishes.
func (m *Mixer) Fadeout(h Handle, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch := m.channel(h)
	if ch == nil || ch.current == nil {
		return
	}
	n := m.frames(d)
	if n <= 0 {
		ch.current = nil
		return
	}
	in := ch.current
	in.fadeLen = n
	in.fadeLeft = n
	ch.tail = in
	ch.current = nil
}

// SetVolume sets the linear gain of channel h
func (m *Mixer) SetVolume(h Handle, gain float64) {
	if gain < 0 {
		gain = 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if ch := m.channel(h); ch != nil {
		ch.gain = float32(gain)
	}
}

// Resample implements Engine with the libsamplerate pitch converter
func (m *Mixer) Resample(buf *Buffer, ratio float64) (*Buffer, error) {
	return Resample(buf, ratio)
}

// Playing reports whether channel h has a sounding (non-tail) instance
func (m *Mixer) Playing(h Handle) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := m.channel(h)
	return ch != nil && ch.current != nil
}

// Render mixes the next len(out)/channels frames into out (overwriting it)
func (m *Mixer) Render(out []float32) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range out {
		out[i] = 0
	}
	if cap(m.tmp) < len(out) {
		m.tmp = make([]float32, len(out))
	}
	tmp := m.tmp[:len(out)]

	for _, ch := range m.voices {
		if ch.current != nil {
			m.renderInstance(out, tmp, ch.current, ch.gain)
			if ch.current.done() {
				ch.current = nil
			}
		}
		if ch.tail != nil {
			m.renderInstance(out, tmp, ch.tail, ch.gain)
			if ch.tail.done() {
				ch.tail = nil
			}
		}
	}
}

func (m *Mixer) renderInstance(out, tmp []float32, in *instance, gain float32) {
	n := 0
	nc := m.channels
	bc := in.buf.Channels
	for f := 0; f*nc < len(out) && !in.done(); f++ {
		env := in.envelope()
		src := in.pos * bc
		for c := 0; c < nc; c++ {
			tmp[f*nc+c] = in.buf.Data[src+c%bc] * env
		}
		in.pos++
		if in.fadeLen > 0 {
			in.fadeLeft--
		}
		n = (f + 1) * nc
	}
	if n == 0 {
		return
	}
	vek32.MulNumber_Inplace(tmp[:n], gain)
	vek32.Add_Inplace(out[:n], tmp[:n])
}

// Read renders float32 little-endian frames; it never blocks and never runs dry
func (m *Mixer) Read(p []byte) (int, error) {
	frameBytes := 4 * m.channels
	n := len(p) / frameBytes * frameBytes
	if n == 0 {
		return 0, nil
	}
	buf := make([]float32, n/4)
	m.Render(buf)
	for i, v := range buf {
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		binary.LittleEndian.PutUint32(p[i*4:], math.Float32bits(v))
	}
	debug.LogEvery(1000, "audio", "rendered %d frames", n/frameBytes)
	return n, nil
}
