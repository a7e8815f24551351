package audio

import "time"

// Handle identifies one playback channel. Each loaded sample gets its own
// channel, so playing a handle again steals it (retrigger) instead of layering.
type Handle int

// Engine is the audio subsystem the sequencer drives. Play, Stop, Fadeout and
// SetVolume must not block: they are called from the sequencer's event loop.
type Engine interface {
	LoadSample(path string) (Handle, *Buffer, error)
	Play(h Handle, buf *Buffer, fadeIn, maxDuration time.Duration)
	Stop(h Handle)
	Fadeout(h Handle, d time.Duration)
	SetVolume(h Handle, gain float64)
	Resample(buf *Buffer, ratio float64) (*Buffer, error)
}
