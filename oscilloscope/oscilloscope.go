// Package oscilloscope provides the shared data model for analog capture:
// front end channel configuration, trigger descriptors, and completed
// acquisitions with enough metadata to convert to physical units and time.
package oscilloscope

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Time is kept in integer femtoseconds internally so that sample intervals
// and trigger delays are exact across the full frequency range of the
// hardware.
const (
	FsPerSecond  = 1e15
	SecondsPerFs = 1e-15
)

// Coupling is the input coupling of an analog front end channel.
type Coupling int

const (
	// CouplingDC1M is DC coupling into a 1 megohm input.
	CouplingDC1M Coupling = iota

	// CouplingAC1M is AC coupling into a 1 megohm input.
	CouplingAC1M
)

func (c Coupling) String() string {
	if c == CouplingAC1M {
		return "AC1M"
	}
	return "DC1M"
}

// ParseCoupling converts a wire mnemonic to a Coupling.
func ParseCoupling(s string) (Coupling, error) {
	switch strings.ToUpper(s) {
	case "DC1M":
		return CouplingDC1M, nil
	case "AC1M":
		return CouplingAC1M, nil
	default:
		return CouplingDC1M, fmt.Errorf("unknown coupling %q", s)
	}
}

// EdgeDirection is the slope an edge trigger fires on.
type EdgeDirection int

const (
	// EdgeRising fires on a rising edge
	EdgeRising EdgeDirection = iota

	// EdgeFalling fires on a falling edge
	EdgeFalling

	// EdgeAny fires on either slope
	EdgeAny
)

func (e EdgeDirection) String() string {
	switch e {
	case EdgeFalling:
		return "FALLING"
	case EdgeAny:
		return "ANY"
	default:
		return "RISING"
	}
}

// ParseEdgeDirection converts a wire mnemonic to an EdgeDirection.
func ParseEdgeDirection(s string) (EdgeDirection, error) {
	switch strings.ToUpper(s) {
	case "RISING":
		return EdgeRising, nil
	case "FALLING":
		return EdgeFalling, nil
	case "ANY":
		return EdgeAny, nil
	default:
		return EdgeRising, fmt.Errorf("unknown edge direction %q", s)
	}
}

// Channel is the front end configuration of one analog input.  Channels are
// created at device open time for every physical input and live as long as
// the session; commands only mutate them.
type Channel struct {
	// Enabled indicates the channel participates in captures
	Enabled bool

	// Coupling is the input coupling
	Coupling Coupling

	// RangeVolts is the full scale vertical range
	RangeVolts float64

	// OffsetVolts is the vertical offset
	OffsetVolts float64

	// Attenuation is the probe attenuation factor (1, 10, ...)
	Attenuation float64
}

// DefaultChannel returns the post-reset state of a front end channel.
func DefaultChannel() Channel {
	return Channel{
		Coupling:    CouplingDC1M,
		RangeVolts:  5,
		Attenuation: 1,
	}
}

// Trigger describes a simple single channel edge trigger.
type Trigger struct {
	// SourceChannel is the zero based index of the trigger input
	SourceChannel int

	// LevelVolts is the threshold voltage
	LevelVolts float64

	// Edge is the slope to fire on
	Edge EdgeDirection

	// DelayFs is the trigger delay relative to the start of the
	// capture buffer, in femtoseconds
	DelayFs int64

	// DeltaSec is the rounding error between the requested and actual
	// hardware trigger position, captured when the delay was last
	// pushed to the device.  Seconds.
	DeltaSec float64
}

// CaptureChannel is one channel's data within a completed acquisition.
type CaptureChannel struct {
	// Index is the zero based channel index
	Index int

	// Samples holds the voltage record
	Samples []float64
}

// Capture is one completed acquisition.  All fields describe the
// configuration at the instant the capture was armed, not the live
// configuration, so a capture is always self consistent.
type Capture struct {
	// SampleIntervalFs is the time between samples in femtoseconds
	SampleIntervalFs int64

	// TriggerPhaseFs is the sub-sample trigger time correction in
	// femtoseconds
	TriggerPhaseFs float32

	// Sequence numbers captures within a session, starting at 1
	Sequence uint64

	// Channels holds the data for each channel enabled at arm time
	Channels []CaptureChannel
}

// EncodeCSV writes the capture as CSV with a leading time column in seconds.
func (c *Capture) EncodeCSV(w io.Writer) error {
	bw := bufio.NewWriter(w)
	cw := csv.NewWriter(bw)
	header := make([]string, len(c.Channels)+1)
	header[0] = "time"
	for i, ch := range c.Channels {
		header[i+1] = "C" + strconv.Itoa(ch.Index+1)
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	if len(c.Channels) == 0 {
		cw.Flush()
		if err := cw.Error(); err != nil {
			return err
		}
		return bw.Flush()
	}
	depth := len(c.Channels[0].Samples)
	record := make([]string, len(header))
	for i := 0; i < depth; i++ {
		// dividing by FsPerSecond keeps decade intervals exact,
		// multiplying by 1e-15 does not
		sec := float64(i) * float64(c.SampleIntervalFs) / FsPerSecond
		record[0] = strconv.FormatFloat(sec, 'G', -1, 64)
		for j, ch := range c.Channels {
			record[j+1] = strconv.FormatFloat(ch.Samples[i], 'G', -1, 64)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	return bw.Flush()
}
