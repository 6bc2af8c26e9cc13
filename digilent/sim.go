package digilent

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/benchtop-labs/wfmbridge/oscilloscope"
)

// ErrClosed is returned by all Sim methods after Close.
var ErrClosed = errors.New("device is closed")

func init() {
	RegisterDriver("sim", func(mode interface{}) (Device, error) {
		return NewSim(SimConfig{}), nil
	})
}

// SimConfig tunes the simulated instrument.
type SimConfig struct {
	// Channels is the number of analog inputs.  Zero means 2.
	Channels int

	// SignalHz is the frequency of the synthetic sine source.
	// Zero means 1 MHz.
	SignalHz float64

	// AmplitudeVolts is the peak amplitude of the source.  Zero means 1.
	AmplitudeVolts float64

	// Instant makes acquisitions complete immediately rather than in
	// real time.  Used by tests.
	Instant bool
}

// Sim is an in-memory Device that produces phase staggered sine waves.
// Acquisition timing is derived from the configured sample rate and depth
// so the samples-left poll behaves like real hardware.
type Sim struct {
	mu sync.Mutex

	cfg    SimConfig
	closed bool

	enabled []bool
	freqHz  int64
	depth   int

	trigSource int
	trigLevel  float64
	trigEdge   oscilloscope.EdgeDirection
	trigPos    float64
	posSet     bool

	armed    bool
	armedAt  time.Time
	armDepth int
	armFreq  int64
}

const (
	simMinFreq  = 1.0
	simMaxFreq  = 100e6
	simMinDepth = 16
	simMaxDepth = 65536
)

// NewSim builds a simulated device.
func NewSim(cfg SimConfig) *Sim {
	if cfg.Channels <= 0 {
		cfg.Channels = 2
	}
	if cfg.SignalHz == 0 {
		cfg.SignalHz = 1e6
	}
	if cfg.AmplitudeVolts == 0 {
		cfg.AmplitudeVolts = 1
	}
	s := &Sim{cfg: cfg}
	s.reset()
	return s
}

func (s *Sim) reset() {
	s.enabled = make([]bool, s.cfg.Channels)
	s.freqHz = int64(simMaxFreq)
	s.depth = 65536
	s.trigSource = 0
	s.trigLevel = 0
	s.trigEdge = oscilloscope.EdgeRising
	s.trigPos = 0
	s.posSet = false
	s.armed = false
}

// Reset restores power-on defaults.
func (s *Sim) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.reset()
	return nil
}

// Identity reports a fixed synthetic identity.
func (s *Sim) Identity() Identity {
	return Identity{
		Make:           "Digilent",
		Model:          "Simulated ADP3450",
		Serial:         "SIM000001",
		Firmware:       "0.0",
		AnalogChannels: s.cfg.Channels,
	}
}

func (s *Sim) checkChannel(ch int) error {
	if s.closed {
		return ErrClosed
	}
	if ch < 0 || ch >= s.cfg.Channels {
		return fmt.Errorf("channel %d out of range [0, %d)", ch, s.cfg.Channels)
	}
	return nil
}

func (s *Sim) SetChannelEnabled(ch int, on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkChannel(ch); err != nil {
		return err
	}
	s.enabled[ch] = on
	return nil
}

func (s *Sim) SetChannelCoupling(ch int, c oscilloscope.Coupling) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checkChannel(ch)
}

func (s *Sim) SetChannelRange(ch int, volts float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checkChannel(ch)
}

func (s *Sim) SetChannelOffset(ch int, volts float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checkChannel(ch)
}

func (s *Sim) SetChannelAttenuation(ch int, atten float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checkChannel(ch)
}

func (s *Sim) SetFrequency(hz int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if hz <= 0 {
		return fmt.Errorf("sample rate %d out of range", hz)
	}
	s.freqHz = hz
	return nil
}

func (s *Sim) FrequencyInfo() (float64, float64, error) {
	if s.closed {
		return 0, 0, ErrClosed
	}
	return simMinFreq, simMaxFreq, nil
}

func (s *Sim) SetBufferSize(depth int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if depth < simMinDepth || depth > simMaxDepth {
		return fmt.Errorf("depth %d out of range [%d, %d]", depth, simMinDepth, simMaxDepth)
	}
	s.depth = depth
	return nil
}

func (s *Sim) BufferSizeInfo() (int, int, error) {
	if s.closed {
		return 0, 0, ErrClosed
	}
	return simMinDepth, simMaxDepth, nil
}

func (s *Sim) SetTriggerModeEdge() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

func (s *Sim) SetTriggerSource(ch int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkChannel(ch); err != nil {
		return err
	}
	s.trigSource = ch
	return nil
}

func (s *Sim) SetTriggerLevel(volts float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.trigLevel = volts
	return nil
}

func (s *Sim) SetTriggerEdge(e oscilloscope.EdgeDirection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.trigEdge = e
	return nil
}

// SetTriggerPosition rounds the requested position to a whole number of
// sample intervals, the same way the hardware register does.
func (s *Sim) SetTriggerPosition(sec float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	dt := 1 / float64(s.freqHz)
	s.trigPos = math.Round(sec/dt) * dt
	s.posSet = true
	return nil
}

func (s *Sim) TriggerPosition() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	return s.trigPos, nil
}

// Arm starts a single acquisition.  The capture completes after
// depth/frequency seconds of wall time unless Instant is set.
func (s *Sim) Arm() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.armed = true
	s.armedAt = time.Now()
	s.armDepth = s.depth
	s.armFreq = s.freqHz
	return nil
}

func (s *Sim) Disarm() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.armed = false
	return nil
}

func (s *Sim) SamplesLeft() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	if !s.armed || s.cfg.Instant {
		return 0, nil
	}
	elapsed := time.Since(s.armedAt).Seconds()
	acquired := int(elapsed * float64(s.armFreq))
	if acquired >= s.armDepth {
		return 0, nil
	}
	return s.armDepth - acquired, nil
}

// ReadBuffer synthesizes the channel's record: a sine at the configured
// source frequency, staggered 45 degrees per channel so multi channel
// captures are distinguishable.  The record is phase aligned so the
// trigger source channel crosses the trigger level, with the configured
// edge, half a sample after the trigger sample.
func (s *Sim) ReadBuffer(ch int, dst []float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkChannel(ch); err != nil {
		return err
	}
	freq := s.armFreq
	if freq == 0 {
		freq = s.freqHz
	}
	dt := 1 / float64(freq)
	step := 2 * math.Pi * s.cfg.SignalHz * dt

	frac := s.trigLevel / s.cfg.AmplitudeVolts
	frac = math.Max(-1, math.Min(1, frac))
	cross := math.Asin(frac)
	if s.trigEdge == oscilloscope.EdgeFalling {
		cross = math.Pi - cross
	}
	align := cross - (float64(s.trigSample())+0.5)*step

	phase := align + float64(ch-s.trigSource)*math.Pi/4
	for i := range dst {
		dst[i] = s.cfg.AmplitudeVolts * math.Sin(phase+float64(i)*step)
	}
	return nil
}

// trigSample backs the trigger sample index out of the pushed trigger
// position the same way the position was formed, record midpoint minus
// delay.  An unset position means the trigger sits at the record start.
// Caller holds the lock.
func (s *Sim) trigSample() int {
	if !s.posSet {
		return 0
	}
	depth := s.armDepth
	if depth == 0 {
		depth = s.depth
	}
	freq := s.armFreq
	if freq == 0 {
		freq = s.freqHz
	}
	n := depth/2 - int(math.Round(s.trigPos*float64(freq)))
	if n < 0 {
		return 0
	}
	if n >= depth {
		return depth - 1
	}
	return n
}

func (s *Sim) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
