package oscilloscope_test

import (
	"strings"
	"testing"

	"github.com/benchtop-labs/wfmbridge/oscilloscope"
)

func TestParseCoupling(t *testing.T) {
	cases := []struct {
		s    string
		want oscilloscope.Coupling
		err  bool
	}{
		{"DC1M", oscilloscope.CouplingDC1M, false},
		{"dc1m", oscilloscope.CouplingDC1M, false},
		{"AC1M", oscilloscope.CouplingAC1M, false},
		{"AC50", 0, true},
		{"", 0, true},
	}
	for _, tc := range cases {
		got, err := oscilloscope.ParseCoupling(tc.s)
		if (err != nil) != tc.err {
			t.Errorf("ParseCoupling(%q) error = %v", tc.s, err)
			continue
		}
		if !tc.err && got != tc.want {
			t.Errorf("ParseCoupling(%q) = %v, want %v", tc.s, got, tc.want)
		}
	}
}

func TestParseEdgeDirection(t *testing.T) {
	cases := []struct {
		s    string
		want oscilloscope.EdgeDirection
		err  bool
	}{
		{"RISING", oscilloscope.EdgeRising, false},
		{"falling", oscilloscope.EdgeFalling, false},
		{"Any", oscilloscope.EdgeAny, false},
		{"BOTH", 0, true},
	}
	for _, tc := range cases {
		got, err := oscilloscope.ParseEdgeDirection(tc.s)
		if (err != nil) != tc.err {
			t.Errorf("ParseEdgeDirection(%q) error = %v", tc.s, err)
			continue
		}
		if !tc.err && got != tc.want {
			t.Errorf("ParseEdgeDirection(%q) = %v, want %v", tc.s, got, tc.want)
		}
	}
}

func TestCouplingRoundTrip(t *testing.T) {
	for _, c := range []oscilloscope.Coupling{oscilloscope.CouplingDC1M, oscilloscope.CouplingAC1M} {
		got, err := oscilloscope.ParseCoupling(c.String())
		if err != nil || got != c {
			t.Errorf("round trip of %v failed: %v %v", c, got, err)
		}
	}
}

func TestEncodeCSV(t *testing.T) {
	c := &oscilloscope.Capture{
		SampleIntervalFs: 1e9, // 1 microsecond
		Channels: []oscilloscope.CaptureChannel{
			{Index: 0, Samples: []float64{0, 1}},
			{Index: 2, Samples: []float64{-1, 0.5}},
		},
	}
	var sb strings.Builder
	if err := c.EncodeCSV(&sb); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(sb.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d lines", len(lines))
	}
	if lines[0] != "time,C1,C3" {
		t.Errorf("header = %q", lines[0])
	}
	if lines[1] != "0,0,-1" {
		t.Errorf("first row = %q", lines[1])
	}
	if lines[2] != "1E-06,1,0.5" {
		t.Errorf("second row = %q, expected 1 microsecond timestamp", lines[2])
	}
}

func TestEncodeCSVTimeColumnExact(t *testing.T) {
	samples := make([]float64, 1001)
	c := &oscilloscope.Capture{
		SampleIntervalFs: 1e9,
		Channels:         []oscilloscope.CaptureChannel{{Index: 0, Samples: samples}},
	}
	var sb strings.Builder
	if err := c.EncodeCSV(&sb); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(sb.String()), "\n")
	if got := lines[len(lines)-1]; got != "0.001,0" {
		t.Errorf("last row = %q, expected an exact 1 millisecond timestamp", got)
	}
}

func TestEncodeCSVEmpty(t *testing.T) {
	c := &oscilloscope.Capture{SampleIntervalFs: 1}
	var sb strings.Builder
	if err := c.EncodeCSV(&sb); err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(sb.String()) != "time" {
		t.Errorf("expected a bare header, got %q", sb.String())
	}
}
