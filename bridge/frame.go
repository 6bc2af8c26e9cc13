package bridge

import (
	"encoding/binary"
	"io"
	"math"
	"unsafe"

	"github.com/benchtop-labs/wfmbridge/oscilloscope"
)

var nativeEndian binary.ByteOrder

func init() {
	buf := [2]byte{}
	*(*uint16)(unsafe.Pointer(&buf[0])) = uint16(0xABCD)

	switch buf {
	case [2]byte{0xCD, 0xAB}:
		nativeEndian = binary.LittleEndian
	case [2]byte{0xAB, 0xCD}:
		nativeEndian = binary.BigEndian
	default:
		panic("Could not determine native endianness.")
	}
}

// EncodeFrame writes one capture to w in the data plane wire format.
// All integers and floats are written in machine byte order; clients run
// on the same machine family as the bridge and skip swap overhead on
// multi megasample transfers.
//
// Layout:
//
//	uint16  channel count
//	int64   sample interval, femtoseconds
//	per channel:
//	  uint64    channel index
//	  uint64    sample count
//	  float32   trigger phase, femtoseconds
//	  float64[] samples, volts
func EncodeFrame(w io.Writer, capt *oscilloscope.Capture) error {
	var scratch [8]byte
	nativeEndian.PutUint16(scratch[:2], uint16(len(capt.Channels)))
	if _, err := w.Write(scratch[:2]); err != nil {
		return err
	}
	nativeEndian.PutUint64(scratch[:], uint64(capt.SampleIntervalFs))
	if _, err := w.Write(scratch[:]); err != nil {
		return err
	}
	for _, ch := range capt.Channels {
		nativeEndian.PutUint64(scratch[:], uint64(ch.Index))
		if _, err := w.Write(scratch[:]); err != nil {
			return err
		}
		nativeEndian.PutUint64(scratch[:], uint64(len(ch.Samples)))
		if _, err := w.Write(scratch[:]); err != nil {
			return err
		}
		nativeEndian.PutUint32(scratch[:4], math.Float32bits(capt.TriggerPhaseFs))
		if _, err := w.Write(scratch[:4]); err != nil {
			return err
		}
		for _, v := range ch.Samples {
			nativeEndian.PutUint64(scratch[:], math.Float64bits(v))
			if _, err := w.Write(scratch[:]); err != nil {
				return err
			}
		}
	}
	return nil
}

// DecodeFrame reads one capture from r in the data plane wire format.
// It is the inverse of EncodeFrame and is what wfmctl uses to pull
// waveforms off the data plane socket.
func DecodeFrame(r io.Reader) (*oscilloscope.Capture, error) {
	var scratch [8]byte
	if _, err := io.ReadFull(r, scratch[:2]); err != nil {
		return nil, err
	}
	count := int(nativeEndian.Uint16(scratch[:2]))
	if _, err := io.ReadFull(r, scratch[:]); err != nil {
		return nil, err
	}
	capt := &oscilloscope.Capture{
		SampleIntervalFs: int64(nativeEndian.Uint64(scratch[:])),
		Channels:         make([]oscilloscope.CaptureChannel, 0, count),
	}
	for i := 0; i < count; i++ {
		if _, err := io.ReadFull(r, scratch[:]); err != nil {
			return nil, err
		}
		idx := int(nativeEndian.Uint64(scratch[:]))
		if _, err := io.ReadFull(r, scratch[:]); err != nil {
			return nil, err
		}
		depth := int(nativeEndian.Uint64(scratch[:]))
		if _, err := io.ReadFull(r, scratch[:4]); err != nil {
			return nil, err
		}
		capt.TriggerPhaseFs = math.Float32frombits(nativeEndian.Uint32(scratch[:4]))
		samples := make([]float64, depth)
		for j := range samples {
			if _, err := io.ReadFull(r, scratch[:]); err != nil {
				return nil, err
			}
			samples[j] = math.Float64frombits(nativeEndian.Uint64(scratch[:]))
		}
		capt.Channels = append(capt.Channels, oscilloscope.CaptureChannel{
			Index:   idx,
			Samples: samples,
		})
	}
	return capt, nil
}
