package digilent

import (
	"math"
	"testing"

	"github.com/benchtop-labs/wfmbridge/oscilloscope"
)

func TestSimRegistered(t *testing.T) {
	found := false
	for _, name := range Drivers() {
		if name == "sim" {
			found = true
		}
	}
	if !found {
		t.Fatalf("sim driver not registered, have %v", Drivers())
	}
	dev, err := Open("sim", Enumeration{})
	if err != nil {
		t.Fatal(err)
	}
	defer dev.Close()
	if dev.Identity().AnalogChannels != 2 {
		t.Errorf("default channel count = %d, want 2", dev.Identity().AnalogChannels)
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	if _, err := Open("definitely-not-registered", Enumeration{}); err == nil {
		t.Error("expected an error for an unknown driver")
	}
}

func TestSimChannelRangeChecks(t *testing.T) {
	s := NewSim(SimConfig{})
	if err := s.SetChannelEnabled(5, true); err == nil {
		t.Error("expected an error for channel 5 on a two channel device")
	}
	if err := s.SetChannelEnabled(1, true); err != nil {
		t.Errorf("unexpected error enabling channel 1: %v", err)
	}
}

func TestSimTriggerPositionRounds(t *testing.T) {
	s := NewSim(SimConfig{})
	if err := s.SetFrequency(1000); err != nil {
		t.Fatal(err)
	}
	// 1 kHz sampling, 1 ms per sample; 1.6 ms rounds to 2 ms
	if err := s.SetTriggerPosition(1.6e-3); err != nil {
		t.Fatal(err)
	}
	pos, err := s.TriggerPosition()
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(pos-2e-3) > 1e-12 {
		t.Errorf("position = %g, want 2e-3", pos)
	}
}

func TestSimInstantCapture(t *testing.T) {
	s := NewSim(SimConfig{Instant: true})
	if err := s.Arm(); err != nil {
		t.Fatal(err)
	}
	left, err := s.SamplesLeft()
	if err != nil {
		t.Fatal(err)
	}
	if left != 0 {
		t.Errorf("samples left = %d, want 0 for an instant capture", left)
	}

	buf := make([]float64, 256)
	if err := s.ReadBuffer(0, buf); err != nil {
		t.Fatal(err)
	}
	var notZero bool
	for _, v := range buf {
		if v != 0 {
			notZero = true
		}
		if math.Abs(v) > 1 {
			t.Fatalf("sample %g outside unit amplitude", v)
		}
	}
	if !notZero {
		t.Error("synthesized buffer is all zeros")
	}

	// channels are phase staggered so multi channel captures differ
	buf2 := make([]float64, 256)
	if err := s.ReadBuffer(1, buf2); err != nil {
		t.Fatal(err)
	}
	same := true
	for i := range buf {
		if buf[i] != buf2[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("channel 0 and 1 produced identical records")
	}
}

func TestSimRecordCrossesTriggerLevel(t *testing.T) {
	s := NewSim(SimConfig{})
	s.SetTriggerSource(0)
	s.SetTriggerLevel(0.5)
	s.SetTriggerEdge(oscilloscope.EdgeRising)
	buf := make([]float64, 256)
	if err := s.ReadBuffer(0, buf); err != nil {
		t.Fatal(err)
	}
	if buf[0] >= 0.5 || buf[1] <= 0.5 {
		t.Errorf("no rising 0.5 V crossing at the trigger sample: buf[0]=%g buf[1]=%g", buf[0], buf[1])
	}

	s.SetTriggerEdge(oscilloscope.EdgeFalling)
	if err := s.ReadBuffer(0, buf); err != nil {
		t.Fatal(err)
	}
	if buf[0] <= 0.5 || buf[1] >= 0.5 {
		t.Errorf("no falling 0.5 V crossing at the trigger sample: buf[0]=%g buf[1]=%g", buf[0], buf[1])
	}
}

func TestSimTriggerSampleFollowsPosition(t *testing.T) {
	s := NewSim(SimConfig{SignalHz: 10})
	s.SetFrequency(1000)
	s.SetBufferSize(16)
	// record midpoint is 8 ms, so a 5 ms position is a 3 sample delay
	if err := s.SetTriggerPosition(5e-3); err != nil {
		t.Fatal(err)
	}
	buf := make([]float64, 16)
	if err := s.ReadBuffer(0, buf); err != nil {
		t.Fatal(err)
	}
	if buf[3] >= 0 || buf[4] <= 0 {
		t.Errorf("expected a rising zero crossing between samples 3 and 4, got %g and %g", buf[3], buf[4])
	}
}

func TestSimClosedErrors(t *testing.T) {
	s := NewSim(SimConfig{})
	s.Close()
	if err := s.Reset(); err != ErrClosed {
		t.Errorf("Reset after Close = %v, want ErrClosed", err)
	}
	if err := s.Arm(); err != ErrClosed {
		t.Errorf("Arm after Close = %v, want ErrClosed", err)
	}
	if _, _, err := s.FrequencyInfo(); err != ErrClosed {
		t.Errorf("FrequencyInfo after Close = %v, want ErrClosed", err)
	}
}

func TestSimResetRestoresDefaults(t *testing.T) {
	s := NewSim(SimConfig{})
	s.SetChannelEnabled(0, true)
	s.SetTriggerLevel(2.5)
	s.SetTriggerEdge(oscilloscope.EdgeFalling)
	if err := s.Reset(); err != nil {
		t.Fatal(err)
	}
	if s.enabled[0] {
		t.Error("channel still enabled after reset")
	}
	if s.trigLevel != 0 || s.trigEdge != oscilloscope.EdgeRising {
		t.Error("trigger config survived reset")
	}
}
