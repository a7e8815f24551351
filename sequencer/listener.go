package sequencer

// Listener receives state echoes from the core. Calls happen on the loop
// goroutine; implementations must not block.
type Listener interface {
	OnStepHighlightChanged(prev, curr int)
	OnCellStateChanged(row, step int, active bool)
	OnVoiceParamEchoed(row int, param Param, value float64)
	OnTransportChanged(info TransportInfo)
}

// NopListener ignores everything
type NopListener struct{}

func (NopListener) OnStepHighlightChanged(prev, curr int)                  {}
func (NopListener) OnCellStateChanged(row, step int, active bool)          {}
func (NopListener) OnVoiceParamEchoed(row int, param Param, value float64) {}
func (NopListener) OnTransportChanged(info TransportInfo)                  {}
