package audio

import (
	"math"
	"time"

	"github.com/dh1tw/gosamplerate"
	"github.com/pkg/errors"
)

// Buffer is interleaved float32 PCM
type Buffer struct {
	Channels   int
	SampleRate int
	Data       []float32
}

// Frames returns the number of sample frames (one value per channel)
func (b *Buffer) Frames() int {
	if b == nil || b.Channels <= 0 {
		return 0
	}
	return len(b.Data) / b.Channels
}

// Duration returns the playback length at the buffer's sample rate
func (b *Buffer) Duration() time.Duration {
	if b == nil || b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(b.Frames()) * time.Second / time.Duration(b.SampleRate)
}

// Converters for Resample and LoadWAV
const (
	PitchConverter = int(gosamplerate.SRC_SINC_FASTEST)
	RateConverter  = int(gosamplerate.SRC_SINC_BEST_QUALITY)
)

// Resample changes the playback speed of buf by ratio: 2 plays an octave
// higher in half the frames, 0.5 an octave lower. The result always has
// round(frames/ratio) frames and depends only on the inputs.
func Resample(buf *Buffer, ratio float64) (*Buffer, error) {
	return resample(buf, ratio, PitchConverter)
}

func resample(buf *Buffer, ratio float64, converter int) (*Buffer, error) {
	if buf == nil || buf.Frames() == 0 {
		return nil, errors.New("resample: empty buffer")
	}
	if ratio <= 0 || math.IsNaN(ratio) || math.IsInf(ratio, 0) {
		return nil, errors.Errorf("resample: invalid ratio %v", ratio)
	}

	ch := buf.Channels
	outFrames := max(1, int(math.Round(float64(buf.Frames())/ratio)))
	out := &Buffer{
		Channels:   ch,
		SampleRate: buf.SampleRate,
		Data:       make([]float32, outFrames*ch),
	}
	if ratio == 1 {
		copy(out.Data, buf.Data)
		return out, nil
	}

	// libsamplerate's ratio is output rate over input rate
	data, err := gosamplerate.Simple(buf.Data[:buf.Frames()*ch], 1/ratio, ch, converter)
	if err != nil {
		return nil, errors.Wrapf(err, "resample x%.4f", ratio)
	}
	// the converter may emit a frame more or less; pad with silence
	copy(out.Data, data)
	return out, nil
}

// convertChannels mixes down or duplicates channels to reach want
func convertChannels(buf *Buffer, want int) *Buffer {
	if buf.Channels == want {
		return buf
	}
	frames := buf.Frames()
	out := &Buffer{Channels: want, SampleRate: buf.SampleRate, Data: make([]float32, frames*want)}
	for i := 0; i < frames; i++ {
		var sum float32
		for c := 0; c < buf.Channels; c++ {
			sum += buf.Data[i*buf.Channels+c]
		}
		mono := sum / float32(buf.Channels)
		for c := 0; c < want; c++ {
			if buf.Channels == 1 || c >= buf.Channels {
				out.Data[i*want+c] = mono
			} else {
				out.Data[i*want+c] = buf.Data[i*buf.Channels+c]
			}
		}
	}
	return out
}
