// Package bridge is the acquisition core: it owns the shared instrument
// configuration, the arm/poll/capture state machine, the control plane
// dispatcher, and the data plane streamer, coordinating one control
// connection and one data connection against a single physical device.
package bridge

import (
	"github.com/benchtop-labs/wfmbridge/oscilloscope"
)

// ArmSnapshot is the copy of configuration taken at the instant an
// acquisition is armed.  The streamer reads only the snapshot when
// assembling a capture, so commands can keep mutating live state without
// ever producing a frame with mixed old and new configuration.  Exactly one
// snapshot is live at a time; it is replaced wholesale on the next arm.
type ArmSnapshot struct {
	// EnabledChannels is the sorted set of channel indices that were
	// enabled at arm time
	EnabledChannels []int

	// SampleIntervalFs is the sample spacing at arm time
	SampleIntervalFs int64

	// Depth is the capture memory depth at arm time
	Depth int
}

// InstrumentState aggregates the live configuration model.  It is plain
// data; the Controller's mutex guards every access, together with all
// hardware calls.
type InstrumentState struct {
	// Channels holds the front end configuration per analog input
	Channels []oscilloscope.Channel

	// SampleIntervalFs is femtoseconds per sample
	SampleIntervalFs int64

	// MemDepth is the configured capture length in samples
	MemDepth int

	// Trigger is the edge trigger descriptor
	Trigger oscilloscope.Trigger

	// Armed is true iff a capture has been requested and not yet fully
	// drained (one shot) or is continuously re-armed (repeating)
	Armed bool

	// OneShot makes the capture disarm itself after one acquisition
	OneShot bool

	// MemDepthChanged tells the streamer its sample buffers are stale
	MemDepthChanged bool

	// Snapshot is the live arm snapshot
	Snapshot ArmSnapshot

	// TriggerSampleIndex is the precomputed trigger delay in whole
	// samples, refreshed at every arm
	TriggerSampleIndex int
}

func newInstrumentState(channels int) InstrumentState {
	st := InstrumentState{
		Channels: make([]oscilloscope.Channel, channels),
		MemDepth: 1000000,
	}
	for i := range st.Channels {
		st.Channels[i] = oscilloscope.DefaultChannel()
	}
	return st
}

// enabledIndices returns the indices of enabled channels in ascending order.
func (s *InstrumentState) enabledIndices() []int {
	var out []int
	for i, ch := range s.Channels {
		if ch.Enabled {
			out = append(out, i)
		}
	}
	return out
}
