package bridge

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/benchtop-labs/wfmbridge/digilent"
	"github.com/benchtop-labs/wfmbridge/oscilloscope"
)

// Controller owns the acquisition state machine.  It is the only component
// that transitions armed state or produces ArmSnapshots, and the single
// mutex inside it guards both the configuration model and every hardware
// call.  The mutex is never held across network I/O.
type Controller struct {
	mu  sync.Mutex
	dev digilent.Device
	log *zap.SugaredLogger

	st  InstrumentState
	seq uint64
}

// NewController wraps an opened device.  Pass a nil logger to discard logs.
func NewController(dev digilent.Device, log *zap.SugaredLogger) *Controller {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Controller{
		dev: dev,
		log: log,
		st:  newInstrumentState(dev.Identity().AnalogChannels),
	}
}

// hw logs a failed hardware call.  Hardware sync is best effort: the
// in-memory model is updated regardless, and the next command or arm cycle
// will push configuration again through normal transitions.
func (c *Controller) hw(op string, err error) {
	if err != nil {
		c.log.Errorw("hardware call failed", "op", op, "error", err)
	}
}

// Identity reports the opened device's identity.
func (c *Controller) Identity() digilent.Identity {
	return c.dev.Identity()
}

// Reset restores the device and the model to power-on defaults.  A failed
// device reset is the one fatal hardware error: a session cannot proceed
// without a known good starting state.
func (c *Controller) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.dev.Reset(); err != nil {
		return fmt.Errorf("device reset failed: %w", err)
	}
	n := len(c.st.Channels)
	c.st = newInstrumentState(n)
	if _, maxFreq, err := c.dev.FrequencyInfo(); err != nil {
		c.hw("FrequencyInfo", err)
	} else if maxFreq > 0 {
		c.st.SampleIntervalFs = int64(oscilloscope.FsPerSecond / maxFreq)
	}
	if _, maxDepth, err := c.dev.BufferSizeInfo(); err != nil {
		c.hw("BufferSizeInfo", err)
	} else if maxDepth > 0 && c.st.MemDepth > maxDepth {
		c.st.MemDepth = maxDepth
	}
	return nil
}

// rearm restarts the in-flight acquisition so a configuration change takes
// effect on the next capture.  One shot captures are left alone; only an
// explicit re-arm command restarts those.
func (c *Controller) rearm() {
	if c.st.Armed && !c.st.OneShot {
		c.start()
	}
}

// start snapshots configuration and arms the hardware.  Preconditions are
// the caller's business; this is the one and only producer of ArmSnapshots.
// Caller holds the lock.
func (c *Controller) start() {
	c.st.Snapshot = ArmSnapshot{
		EnabledChannels:  c.st.enabledIndices(),
		SampleIntervalFs: c.st.SampleIntervalFs,
		Depth:            c.st.MemDepth,
	}
	if c.st.SampleIntervalFs > 0 {
		c.st.TriggerSampleIndex = int(c.st.Trigger.DelayFs / c.st.SampleIntervalFs)
	}
	c.hw("Arm", c.dev.Arm())
	c.st.Armed = true
}

// StartAcquisition arms a capture.  It is ignored with a warning when a
// capture is already armed or when no channel is enabled.
func (c *Controller) StartAcquisition(oneShot bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.st.Armed {
		c.log.Warnw("ignoring start, trigger already armed")
		return
	}
	if len(c.st.enabledIndices()) == 0 {
		c.log.Warnw("ignoring start, no channels are active")
		return
	}
	c.start()
	c.st.OneShot = oneShot
}

// ForceTrigger arms a capture without requiring any channel to be enabled,
// for manual trigger testing.
func (c *Controller) ForceTrigger() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.st.Armed {
		c.log.Warnw("ignoring force trigger, already armed")
		return
	}
	c.start()
}

// Stop disarms unconditionally.  Stopping an idle controller is a no-op
// beyond the disarm call itself.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hw("Disarm", c.dev.Disarm())
	c.st.Armed = false
}

// Armed reports whether a capture is in flight.
func (c *Controller) Armed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.st.Armed
}

// Snapshot returns a copy of the live arm snapshot.
func (c *Controller) Snapshot() ArmSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap := c.st.Snapshot
	snap.EnabledChannels = append([]int(nil), snap.EnabledChannels...)
	return snap
}

// CaptureReady polls the hardware for acquisition completion.  The lock is
// taken per call, not for the whole poll, so a configuration command can
// interleave between polls.
func (c *Controller) CaptureReady() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.st.Armed {
		return false
	}
	left, err := c.dev.SamplesLeft()
	if err != nil {
		c.hw("SamplesLeft", err)
		return false
	}
	return left == 0
}

// FetchCapture downloads the completed acquisition under lock and builds a
// self consistent Capture from the arm snapshot.  buffers is the streamer's
// reusable per-channel storage; it is reallocated here when the depth dirty
// flag is set or the shape no longer matches.  No network I/O happens here.
func (c *Controller) FetchCapture(buffers [][]float64) ([][]float64, *oscilloscope.Capture) {
	c.mu.Lock()
	defer c.mu.Unlock()

	depth := c.st.Snapshot.Depth
	if depth <= 0 {
		return buffers, nil
	}
	if len(buffers) != len(c.st.Channels) || c.st.MemDepthChanged ||
		len(buffers) == 0 || len(buffers[0]) != depth {
		buffers = make([][]float64, len(c.st.Channels))
		for i := range buffers {
			buffers[i] = make([]float64, depth)
		}
		c.st.MemDepthChanged = false
	}
	for i := range buffers {
		c.hw("ReadBuffer", c.dev.ReadBuffer(i, buffers[i]))
	}

	var phase float64
	src := c.st.Trigger.SourceChannel
	if src >= 0 && src < len(buffers) {
		phase = InterpolateTriggerTime(buffers[src], c.st.TriggerSampleIndex, c.st.Trigger.LevelVolts)
	}
	interval := float64(c.st.Snapshot.SampleIntervalFs)
	trigFs := float32(-phase*interval + interval + c.st.Trigger.DeltaSec*oscilloscope.FsPerSecond)

	c.seq++
	capt := &oscilloscope.Capture{
		SampleIntervalFs: c.st.Snapshot.SampleIntervalFs,
		TriggerPhaseFs:   trigFs,
		Sequence:         c.seq,
	}
	for _, idx := range c.st.Snapshot.EnabledChannels {
		capt.Channels = append(capt.Channels, oscilloscope.CaptureChannel{
			Index:   idx,
			Samples: buffers[idx],
		})
	}
	return buffers, capt
}

// FinishCapture runs the post-send transition: one shot captures disarm,
// repeating captures re-arm with a fresh snapshot so the next poll targets
// a new acquisition rather than the one just sent.
func (c *Controller) FinishCapture() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.st.OneShot {
		c.st.Armed = false
		return
	}
	c.start()
}

// InterpolateTriggerTime linearly interpolates the fractional sample offset
// at which buf crosses level between samples i and i+1.  It returns 0 when
// i is at or beyond the last valid pair.
func InterpolateTriggerTime(buf []float64, i int, level float64) float64 {
	if i < 0 || i >= len(buf)-1 {
		return 0
	}
	return (level - buf[i]) / (buf[i+1] - buf[i])
}
