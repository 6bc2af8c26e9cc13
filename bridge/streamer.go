package bridge

import (
	"bufio"
	"context"
	"io"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/benchtop-labs/wfmbridge/oscilloscope"
)

// Sink receives every completed capture in addition to the data plane
// stream, for recording to disk.
type Sink interface {
	Write(*oscilloscope.Capture) error
}

// Streamer runs the acquisition side of a session: it watches for armed
// captures, polls the hardware to completion, and pushes framed waveforms
// down the data plane connection.  All hardware access goes through the
// controller so the device lock is never held across a socket write.
type Streamer struct {
	ctrl *Controller
	log  *zap.SugaredLogger

	// Sink, when non-nil, receives a copy of every streamed capture.
	Sink Sink

	// Monitor, when non-nil, is notified with a summary of every
	// streamed capture.
	Monitor *Monitor
}

// NewStreamer binds a streamer to a controller.
func NewStreamer(ctrl *Controller, log *zap.SugaredLogger) *Streamer {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Streamer{ctrl: ctrl, log: log}
}

// Run streams captures to conn until ctx is canceled or a write fails.
// The vendor API has no blocking completion primitive, so completion is
// observed by polling at millisecond scale; the limiter doubles as a
// cancellable sleep so shutdown never waits out a raw timer.
func (s *Streamer) Run(ctx context.Context, conn io.Writer) error {
	lim := rate.NewLimiter(rate.Every(time.Millisecond), 1)
	bw := bufio.NewWriter(conn)
	var buffers [][]float64
	for {
		if err := lim.Wait(ctx); err != nil {
			return nil
		}
		if !s.ctrl.Armed() || !s.ctrl.CaptureReady() {
			continue
		}

		var capt *oscilloscope.Capture
		buffers, capt = s.ctrl.FetchCapture(buffers)
		if capt == nil {
			continue
		}

		// lock is released; network and disk I/O happen here
		if err := EncodeFrame(bw, capt); err != nil {
			return err
		}
		if err := bw.Flush(); err != nil {
			return err
		}
		if s.Sink != nil {
			if err := s.Sink.Write(capt); err != nil {
				s.log.Errorw("capture sink write failed", "error", err)
			}
		}
		if s.Monitor != nil {
			s.Monitor.Publish(summarize(capt))
		}

		s.ctrl.FinishCapture()
	}
}

func summarize(capt *oscilloscope.Capture) Summary {
	sum := Summary{
		Sequence:         capt.Sequence,
		SampleIntervalFs: capt.SampleIntervalFs,
		TriggerPhaseFs:   capt.TriggerPhaseFs,
	}
	for _, ch := range capt.Channels {
		sum.Channels = append(sum.Channels, ch.Index)
		sum.Depth = len(ch.Samples)
	}
	return sum
}
