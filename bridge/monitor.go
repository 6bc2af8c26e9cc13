package bridge

import "sync"

// Summary describes one completed capture without carrying the sample
// data.  It is what the monitor websocket pushes to observers.
type Summary struct {
	Sequence         uint64  `json:"sequence"`
	SampleIntervalFs int64   `json:"sampleIntervalFs"`
	TriggerPhaseFs   float32 `json:"triggerPhaseFs"`
	Channels         []int   `json:"channels"`
	Depth            int     `json:"depth"`
}

// Monitor fans capture summaries out to any number of subscribers.
// Publishing never blocks; a subscriber that falls behind misses
// summaries rather than stalling the streamer.
type Monitor struct {
	sync.Mutex
	subs map[chan Summary]struct{}
}

// NewMonitor returns a Monitor with no subscribers.
func NewMonitor() *Monitor {
	return &Monitor{subs: map[chan Summary]struct{}{}}
}

// Subscribe registers a new observer.  The returned cancel func must be
// called when the observer goes away.
func (m *Monitor) Subscribe() (<-chan Summary, func()) {
	ch := make(chan Summary, 8)
	m.Lock()
	m.subs[ch] = struct{}{}
	m.Unlock()
	cancel := func() {
		m.Lock()
		delete(m.subs, ch)
		m.Unlock()
	}
	return ch, cancel
}

// Publish delivers a summary to every subscriber that has room for it.
func (m *Monitor) Publish(s Summary) {
	m.Lock()
	defer m.Unlock()
	for ch := range m.subs {
		select {
		case ch <- s:
		default:
		}
	}
}
