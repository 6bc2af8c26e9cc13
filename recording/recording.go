// Package recording persists streamed captures to disk, either as
// parquet in long format (one row per sample) or as CSV.
package recording

import (
	"encoding/json"
	"io"

	"github.com/segmentio/parquet-go"

	"github.com/benchtop-labs/wfmbridge/digilent"
	"github.com/benchtop-labs/wfmbridge/oscilloscope"
)

// Row is one sample of one channel of one capture.  Long format keeps
// the schema fixed regardless of how many channels are enabled.
type Row struct {
	Capture     uint64  `parquet:"capture"`
	Channel     int32   `parquet:"channel"`
	SampleIndex int64   `parquet:"sample"`
	TimeFs      int64   `parquet:"time_fs"`
	Volts       float64 `parquet:"volts"`
}

// ParquetSink writes captures to a parquet file.  The instrument
// identity rides along as file metadata so a recording is traceable to
// the device that produced it.
type ParquetSink struct {
	file   io.Closer
	writer *parquet.GenericWriter[Row]
	rows   []Row
}

// NewParquetSink wraps f.  Closing the sink closes f.
func NewParquetSink(f io.WriteCloser, id digilent.Identity) *ParquetSink {
	idStr := "{}"
	if b, err := json.Marshal(id); err == nil {
		idStr = string(b)
	}
	return &ParquetSink{
		file: f,
		writer: parquet.NewGenericWriter[Row](f,
			parquet.KeyValueMetadata("instrument", idStr),
		),
	}
}

// Write appends every sample of the capture as rows.
func (s *ParquetSink) Write(capt *oscilloscope.Capture) error {
	s.rows = s.rows[:0]
	for _, ch := range capt.Channels {
		for j, v := range ch.Samples {
			s.rows = append(s.rows, Row{
				Capture:     capt.Sequence,
				Channel:     int32(ch.Index),
				SampleIndex: int64(j),
				TimeFs:      int64(j) * capt.SampleIntervalFs,
				Volts:       v,
			})
		}
	}
	_, err := s.writer.Write(s.rows)
	return err
}

// Close flushes the parquet footer and closes the underlying file.
func (s *ParquetSink) Close() error {
	if err := s.writer.Close(); err != nil {
		s.file.Close()
		return err
	}
	return s.file.Close()
}

// CSVSink writes captures as CSV, one block per capture.
type CSVSink struct {
	w io.Writer
}

// NewCSVSink wraps w.
func NewCSVSink(w io.Writer) *CSVSink {
	return &CSVSink{w: w}
}

// Write renders the capture as CSV.
func (s *CSVSink) Write(capt *oscilloscope.Capture) error {
	return capt.EncodeCSV(s.w)
}
