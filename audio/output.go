package audio

import (
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/pkg/errors"
)

const outputBufferSize = 20 * time.Millisecond

// Output plays a Mixer through the system audio device
type Output struct {
	ctx    *oto.Context
	player *oto.Player
}

// NewOutput opens the audio device and starts pulling from m
func NewOutput(m *Mixer) (*Output, error) {
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   m.SampleRate(),
		ChannelCount: m.Channels(),
		Format:       oto.FormatFloat32LE,
		BufferSize:   outputBufferSize,
	})
	if err != nil {
		return nil, errors.Wrap(err, "cannot create oto context")
	}
	<-ready

	player := ctx.NewPlayer(m)
	player.Play()
	return &Output{ctx: ctx, player: player}, nil
}

// Close stops pulling audio and suspends the device
func (o *Output) Close() error {
	o.player.Pause()
	if err := o.player.Err(); err != nil {
		return errors.Wrap(err, "oto player")
	}
	if err := o.ctx.Suspend(); err != nil {
		return errors.Wrap(err, "cannot suspend oto context")
	}
	return nil
}
