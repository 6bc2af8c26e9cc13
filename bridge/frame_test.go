package bridge_test

import (
	"bytes"
	"math"
	"testing"

	"github.com/benchtop-labs/wfmbridge/bridge"
	"github.com/benchtop-labs/wfmbridge/oscilloscope"
)

func TestFrameRoundTrip(t *testing.T) {
	in := &oscilloscope.Capture{
		SampleIntervalFs: 10_000_000,
		TriggerPhaseFs:   float32(1234.5),
		Channels: []oscilloscope.CaptureChannel{
			{Index: 0, Samples: []float64{0, 0.5, -0.5, 1, -1, math.Pi}},
			{Index: 3, Samples: []float64{1e-9, -1e9, math.SmallestNonzeroFloat64}},
		},
	}

	var buf bytes.Buffer
	if err := bridge.EncodeFrame(&buf, in); err != nil {
		t.Fatal(err)
	}
	out, err := bridge.DecodeFrame(&buf)
	if err != nil {
		t.Fatal(err)
	}

	if out.SampleIntervalFs != in.SampleIntervalFs {
		t.Errorf("interval = %d, want %d", out.SampleIntervalFs, in.SampleIntervalFs)
	}
	if out.TriggerPhaseFs != in.TriggerPhaseFs {
		t.Errorf("trigger phase = %g, want %g", out.TriggerPhaseFs, in.TriggerPhaseFs)
	}
	if len(out.Channels) != len(in.Channels) {
		t.Fatalf("channel count = %d, want %d", len(out.Channels), len(in.Channels))
	}
	for i, ch := range in.Channels {
		got := out.Channels[i]
		if got.Index != ch.Index {
			t.Errorf("channel %d index = %d, want %d", i, got.Index, ch.Index)
		}
		if len(got.Samples) != len(ch.Samples) {
			t.Fatalf("channel %d depth = %d, want %d", i, len(got.Samples), len(ch.Samples))
		}
		for j := range ch.Samples {
			// bit for bit, not approximately
			if math.Float64bits(got.Samples[j]) != math.Float64bits(ch.Samples[j]) {
				t.Errorf("channel %d sample %d = %x, want %x",
					i, j, math.Float64bits(got.Samples[j]), math.Float64bits(ch.Samples[j]))
			}
		}
	}
}

func TestFrameEmptyCapture(t *testing.T) {
	var buf bytes.Buffer
	if err := bridge.EncodeFrame(&buf, &oscilloscope.Capture{SampleIntervalFs: 1}); err != nil {
		t.Fatal(err)
	}
	out, err := bridge.DecodeFrame(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Channels) != 0 {
		t.Errorf("expected no channels, got %d", len(out.Channels))
	}
}

func TestDecodeFrameShortInput(t *testing.T) {
	if _, err := bridge.DecodeFrame(bytes.NewReader([]byte{0x01})); err == nil {
		t.Error("expected an error on truncated input")
	}
}
