package bridge

import (
	"github.com/benchtop-labs/wfmbridge/oscilloscope"
)

// Every mutator below is one atomic operation: take the lock, push the
// change to hardware, update the model, and re-arm if a repeating capture
// is in flight so the change takes effect on the next acquisition.  A
// failed hardware push is logged and the model keeps the new value.

// SetChannelEnabled turns one channel on or off.
func (c *Controller) SetChannelEnabled(ch int, on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ch < 0 || ch >= len(c.st.Channels) {
		return
	}
	c.hw("SetChannelEnabled", c.dev.SetChannelEnabled(ch, on))
	c.st.Channels[ch].Enabled = on
	// buffers for this channel come or go on the next capture
	c.st.MemDepthChanged = true
	c.rearm()
}

// SetCoupling selects the input coupling of one channel.
func (c *Controller) SetCoupling(ch int, coup oscilloscope.Coupling) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ch < 0 || ch >= len(c.st.Channels) {
		return
	}
	c.hw("SetChannelCoupling", c.dev.SetChannelCoupling(ch, coup))
	c.st.Channels[ch].Coupling = coup
	c.rearm()
}

// SetRange sets the full scale vertical range of one channel in volts.
func (c *Controller) SetRange(ch int, volts float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ch < 0 || ch >= len(c.st.Channels) {
		return
	}
	c.hw("SetChannelRange", c.dev.SetChannelRange(ch, volts))
	c.st.Channels[ch].RangeVolts = volts
	c.rearm()
}

// SetOffset sets the vertical offset of one channel in volts.
func (c *Controller) SetOffset(ch int, volts float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ch < 0 || ch >= len(c.st.Channels) {
		return
	}
	c.hw("SetChannelOffset", c.dev.SetChannelOffset(ch, volts))
	c.st.Channels[ch].OffsetVolts = volts
	c.rearm()
}

// SetAttenuation sets the probe attenuation factor of one channel.
func (c *Controller) SetAttenuation(ch int, atten float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ch < 0 || ch >= len(c.st.Channels) {
		return
	}
	c.hw("SetChannelAttenuation", c.dev.SetChannelAttenuation(ch, atten))
	c.st.Channels[ch].Attenuation = atten
	c.rearm()
}

// SetSampleRate sets the sample rate in hertz.  The model stores the
// equivalent sample interval in integer femtoseconds.
func (c *Controller) SetSampleRate(hz int64) {
	if hz <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hw("SetFrequency", c.dev.SetFrequency(hz))
	c.st.SampleIntervalFs = int64(oscilloscope.FsPerSecond) / hz
	c.rearm()
}

// SetMemDepth sets the capture length in samples and marks streamer
// buffers stale.
func (c *Controller) SetMemDepth(depth int) {
	if depth <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hw("SetBufferSize", c.dev.SetBufferSize(depth))
	c.st.MemDepth = depth
	c.st.MemDepthChanged = true
	c.rearm()
}

// SetTriggerModeEdge selects edge triggering, the only supported type.
func (c *Controller) SetTriggerModeEdge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hw("SetTriggerModeEdge", c.dev.SetTriggerModeEdge())
	c.rearm()
}

// SetTriggerSource selects the trigger input.  The channel is not required
// to be enabled; arming with a disabled trigger source captures whatever is
// in that channel's buffer.
func (c *Controller) SetTriggerSource(ch int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hw("SetTriggerSource", c.dev.SetTriggerSource(ch))
	c.st.Trigger.SourceChannel = ch
	c.rearm()
}

// SetTriggerLevel sets the edge detector threshold in volts.
func (c *Controller) SetTriggerLevel(volts float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hw("SetTriggerLevel", c.dev.SetTriggerLevel(volts))
	c.st.Trigger.LevelVolts = volts
	c.rearm()
}

// SetTriggerEdge sets the slope the trigger fires on.
func (c *Controller) SetTriggerEdge(e oscilloscope.EdgeDirection) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hw("SetTriggerEdge", c.dev.SetTriggerEdge(e))
	c.st.Trigger.Edge = e
	c.rearm()
}

// SetTriggerDelay sets the trigger delay in femtoseconds, measured from
// the start of the capture buffer.  The hardware trigger position register
// is relative to the buffer midpoint and may round the requested value;
// the rounding error is captured as a per-arm time correction.
func (c *Controller) SetTriggerDelay(delayFs int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.st.Trigger.DelayFs = delayFs

	offsetFs := int64(c.st.MemDepth/2) * c.st.SampleIntervalFs
	positionFs := offsetFs - delayFs
	requested := float64(positionFs) * oscilloscope.SecondsPerFs
	c.hw("SetTriggerPosition", c.dev.SetTriggerPosition(requested))
	actual, err := c.dev.TriggerPosition()
	if err != nil {
		c.hw("TriggerPosition", err)
	} else {
		c.st.Trigger.DeltaSec = actual - requested
	}
	c.rearm()
}

// SampleRatesFs reports the legal sample rates as intervals in
// femtoseconds: a 1-2-5 geometric stepdown from the hardware's maximum
// frequency to a floor of 1 kHz.
func (c *Controller) SampleRatesFs() []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	minFreq, maxFreq, err := c.dev.FrequencyInfo()
	if err != nil {
		c.hw("FrequencyInfo", err)
		return nil
	}
	if minFreq < 1000 {
		minFreq = 1000
	}
	var out []int64
	for freq := maxFreq; freq >= minFreq; freq /= 10 {
		out = append(out,
			int64(oscilloscope.FsPerSecond/freq),
			int64(oscilloscope.FsPerSecond/(freq/2)),
			int64(oscilloscope.FsPerSecond/(freq/5)))
	}
	return out
}

// SampleDepths reports the legal capture memory depths.  Only the maximum
// depth is advertised.
func (c *Controller) SampleDepths() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, maxDepth, err := c.dev.BufferSizeInfo()
	if err != nil {
		c.hw("BufferSizeInfo", err)
		return nil
	}
	return []int{maxDepth}
}

// StateView is a point in time copy of the configuration model for
// observability surfaces.
type StateView struct {
	Channels         []oscilloscope.Channel `json:"channels"`
	SampleIntervalFs int64                  `json:"sampleIntervalFs"`
	MemDepth         int                    `json:"memDepth"`
	Trigger          oscilloscope.Trigger   `json:"trigger"`
	Armed            bool                   `json:"armed"`
	OneShot          bool                   `json:"oneShot"`
	Captures         uint64                 `json:"captures"`
}

// View copies the current model under lock.
func (c *Controller) View() StateView {
	c.mu.Lock()
	defer c.mu.Unlock()
	return StateView{
		Channels:         append([]oscilloscope.Channel(nil), c.st.Channels...),
		SampleIntervalFs: c.st.SampleIntervalFs,
		MemDepth:         c.st.MemDepth,
		Trigger:          c.st.Trigger,
		Armed:            c.st.Armed,
		OneShot:          c.st.OneShot,
		Captures:         c.seq,
	}
}

// NumChannels reports the analog channel count.
func (c *Controller) NumChannels() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.st.Channels)
}
