package scpi_test

import (
	"reflect"
	"strings"
	"testing"

	"github.com/benchtop-labs/wfmbridge/scpi"
)

func TestParseLine(t *testing.T) {
	cases := []struct {
		line string
		want scpi.Command
	}{
		{"START", scpi.Command{Name: "START"}},
		{"*IDN?", scpi.Command{Name: "*IDN", Query: true}},
		{"RATES?", scpi.Command{Name: "RATES", Query: true}},
		{"C1:RANGE 5.0", scpi.Command{Subject: "C1", Name: "RANGE", Args: []string{"5.0"}}},
		{"C2:COUP AC1M", scpi.Command{Subject: "C2", Name: "COUP", Args: []string{"AC1M"}}},
		{"TRIG:EDGE:DIR RISING", scpi.Command{Subject: "TRIG", Name: "EDGE:DIR", Args: []string{"RISING"}}},
		{"DEPTH 65536", scpi.Command{Name: "DEPTH", Args: []string{"65536"}}},
		// commas and spaces both split; consecutive delimiters collapse
		{"C1:OFFS 0.5,,1.5", scpi.Command{Subject: "C1", Name: "OFFS", Args: []string{"0.5", "1.5"}}},
		// a colon after the first space does not create a subject
		{"CMD ARG:1", scpi.Command{Name: "CMD", Args: []string{"ARG:1"}}},
		// query mark can ride anywhere on the line
		{"C1:ON?", scpi.Command{Subject: "C1", Name: "ON", Query: true}},
		{"", scpi.Command{}},
	}
	for _, tc := range cases {
		got := scpi.ParseLine(tc.line)
		if !reflect.DeepEqual(got, tc.want) {
			t.Errorf("ParseLine(%q) = %+v, want %+v", tc.line, got, tc.want)
		}
	}
}

func TestChannelIndex(t *testing.T) {
	cases := []struct {
		s    string
		n    int
		want int
		ok   bool
	}{
		{"C1", 4, 0, true},
		{"c2", 4, 1, true},
		{"C4", 4, 3, true},
		// out of range values clamp, not reject
		{"C9", 4, 4, true},
		{"C0", 4, 0, true},
		{"C-3", 4, 0, true},
		{"X1", 4, 0, false},
		{"C", 4, 0, false},
		{"", 4, 0, false},
	}
	for _, tc := range cases {
		got, ok := scpi.ChannelIndex(tc.s, tc.n)
		if got != tc.want || ok != tc.ok {
			t.Errorf("ChannelIndex(%q, %d) = %d, %v, want %d, %v", tc.s, tc.n, got, ok, tc.want, tc.ok)
		}
	}
}

func TestReadCommandSplitsOnBothTerminators(t *testing.T) {
	r := strings.NewReader("C1:ON;START\nSTOP\n")
	want := []string{"C1:ON", "START", "STOP"}
	for _, exp := range want {
		got, err := scpi.ReadCommand(r)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != exp {
			t.Errorf("expected %q got %q", exp, got)
		}
	}
}

func TestReadCommandEOF(t *testing.T) {
	r := strings.NewReader("partial")
	got, err := scpi.ReadCommand(r)
	if err == nil {
		t.Error("expected an error at EOF")
	}
	if got != "partial" {
		t.Errorf("expected the partial line back, got %q", got)
	}
}

func TestWriteReply(t *testing.T) {
	var sb strings.Builder
	if err := scpi.WriteReply(&sb, "2"); err != nil {
		t.Fatal(err)
	}
	if sb.String() != "2\n" {
		t.Errorf("expected %q got %q", "2\n", sb.String())
	}
}
