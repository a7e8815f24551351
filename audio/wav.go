package audio

import (
	"os"

	"github.com/go-audio/wav"
	"github.com/pkg/errors"
)

// LoadWAV decodes a WAV file and converts it to the given channel count and
// sample rate so the mixer never has to convert at playback time.
func LoadWAV(path string, channels, sampleRate int) (*Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening sample")
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		return nil, errors.Errorf("%s: not a valid wav file", path)
	}
	pcm, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, errors.Wrapf(err, "decoding %s", path)
	}
	if pcm.Format == nil || pcm.Format.NumChannels <= 0 || len(pcm.Data) == 0 {
		return nil, errors.Errorf("%s: no audio data", path)
	}

	depth := pcm.SourceBitDepth
	if depth <= 0 {
		depth = int(decoder.BitDepth)
	}
	if depth <= 0 {
		depth = 16
	}
	scale := float32(int64(1) << (depth - 1))

	buf := &Buffer{
		Channels:   pcm.Format.NumChannels,
		SampleRate: pcm.Format.SampleRate,
		Data:       make([]float32, len(pcm.Data)),
	}
	for i, v := range pcm.Data {
		buf.Data[i] = float32(v) / scale // normalize to [-1, 1]
	}

	buf = convertChannels(buf, channels)
	if buf.SampleRate != sampleRate && buf.SampleRate > 0 {
		rate := buf.SampleRate
		buf, err = resample(buf, float64(rate)/float64(sampleRate), RateConverter)
		if err != nil {
			return nil, errors.Wrapf(err, "converting %s from %d Hz", path, rate)
		}
	}
	buf.SampleRate = sampleRate
	return buf, nil
}
