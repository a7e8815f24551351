package midi

import (
	"errors"
	"fmt"
	"strings"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // Register MIDI driver
)

// ScanTimeout bounds a port listing; CoreMIDI can hang indefinitely
const ScanTimeout = 3 * time.Second

// ErrScanTimeout is returned when the MIDI system does not answer in time.
// Fix on macOS: sudo killall coreaudiod midiserver
var ErrScanTimeout = errors.New("midi port scan timed out")

// ErrPortNotFound is returned when no port matches a name
var ErrPortNotFound = errors.New("midi port not found")

type portsResult struct {
	ins  []drivers.In
	outs []drivers.Out
}

func scanPorts(timeout time.Duration) (portsResult, error) {
	ch := make(chan portsResult, 1)
	go func() {
		ch <- portsResult{ins: gomidi.GetInPorts(), outs: gomidi.GetOutPorts()}
	}()
	select {
	case r := <-ch:
		return r, nil
	case <-time.After(timeout):
		return portsResult{}, ErrScanTimeout
	}
}

// OutPorts lists output ports, giving up after timeout
func OutPorts(timeout time.Duration) ([]drivers.Out, error) {
	r, err := scanPorts(timeout)
	return r.outs, err
}

// InPorts lists input ports, giving up after timeout
func InPorts(timeout time.Duration) ([]drivers.In, error) {
	r, err := scanPorts(timeout)
	return r.ins, err
}

// matchPort prefers an exact name, then a case-insensitive substring
func matchPort(names []string, want string) int {
	for i, n := range names {
		if n == want {
			return i
		}
	}
	lw := strings.ToLower(want)
	for i, n := range names {
		if strings.Contains(strings.ToLower(n), lw) {
			return i
		}
	}
	return -1
}

// FindOutPort finds an output port by name
func FindOutPort(name string, timeout time.Duration) (drivers.Out, error) {
	outs, err := OutPorts(timeout)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(outs))
	for i, p := range outs {
		names[i] = p.String()
	}
	if i := matchPort(names, name); i >= 0 {
		return outs[i], nil
	}
	return nil, fmt.Errorf("%w: %q", ErrPortNotFound, name)
}

// FindInPort finds an input port by name
func FindInPort(name string, timeout time.Duration) (drivers.In, error) {
	ins, err := InPorts(timeout)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(ins))
	for i, p := range ins {
		names[i] = p.String()
	}
	if i := matchPort(names, name); i >= 0 {
		return ins[i], nil
	}
	return nil, fmt.Errorf("%w: %q", ErrPortNotFound, name)
}

// CloseDriver releases the MIDI driver
func CloseDriver() {
	gomidi.CloseDriver()
}
