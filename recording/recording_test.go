package recording_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/segmentio/parquet-go"

	"github.com/benchtop-labs/wfmbridge/digilent"
	"github.com/benchtop-labs/wfmbridge/oscilloscope"
	"github.com/benchtop-labs/wfmbridge/recording"
)

func testCapture() *oscilloscope.Capture {
	return &oscilloscope.Capture{
		SampleIntervalFs: 1e9,
		Sequence:         1,
		Channels: []oscilloscope.CaptureChannel{
			{Index: 0, Samples: []float64{0, 1, -1}},
			{Index: 1, Samples: []float64{0.5, -0.5, 0.25}},
		},
	}
}

func TestParquetSinkRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rec.parquet")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	sink := recording.NewParquetSink(f, digilent.Identity{Make: "Digilent", Model: "Test"})
	if err := sink.Write(testCapture()); err != nil {
		t.Fatal(err)
	}
	if err := sink.Close(); err != nil {
		t.Fatal(err)
	}

	rows, err := parquet.ReadFile[recording.Row](path)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 6 {
		t.Fatalf("row count = %d, want 6", len(rows))
	}
	first := rows[0]
	if first.Capture != 1 || first.Channel != 0 || first.SampleIndex != 0 || first.Volts != 0 {
		t.Errorf("first row = %+v", first)
	}
	// long format: time advances one interval per sample within a channel
	if rows[1].TimeFs != 1e9 {
		t.Errorf("second row time = %d, want 1e9", rows[1].TimeFs)
	}
}

func TestCSVSink(t *testing.T) {
	var sb strings.Builder
	sink := recording.NewCSVSink(&sb)
	if err := sink.Write(testCapture()); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(sb.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected header plus 3 rows, got %d lines", len(lines))
	}
	if lines[0] != "time,C1,C2" {
		t.Errorf("header = %q", lines[0])
	}
}
