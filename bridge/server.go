package bridge

import (
	"context"
	"errors"
	"net"
	"os"
	"time"

	"go.uber.org/zap"
)

// Server accepts paired control and data plane connections and runs one
// session at a time against the single physical device.  A session is a
// control connection plus the data connection that follows it; the next
// client is not accepted until the current session tears down.
type Server struct {
	Ctrl *Controller
	Log  *zap.SugaredLogger

	// Sink and Monitor are handed to each session's streamer.
	Sink    Sink
	Monitor *Monitor
}

// ListenAndServe serves sessions on the two addresses until ctx is
// canceled.  Control carries SCPI text; data carries framed waveforms.
func (s *Server) ListenAndServe(ctx context.Context, controlAddr, dataAddr string) error {
	if s.Log == nil {
		s.Log = zap.NewNop().Sugar()
	}
	ctrlL, err := net.Listen("tcp", controlAddr)
	if err != nil {
		return err
	}
	defer ctrlL.Close()
	dataL, err := net.Listen("tcp", dataAddr)
	if err != nil {
		return err
	}
	defer dataL.Close()
	s.Log.Infow("listening", "control", controlAddr, "data", dataAddr)

	for {
		conn, err := acceptCtx(ctx, ctrlL.(*net.TCPListener))
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		s.Log.Infow("control connection", "peer", conn.RemoteAddr())
		if err := s.serveSession(ctx, conn, dataL.(*net.TCPListener)); err != nil {
			conn.Close()
			return err
		}
		conn.Close()
		if ctx.Err() != nil {
			return nil
		}
	}
}

// serveSession runs one full session lifetime.  A failed device reset at
// session start is fatal; every other error just ends the session.
func (s *Server) serveSession(ctx context.Context, ctrlConn *net.TCPConn, dataL *net.TCPListener) error {
	if err := s.Ctrl.Reset(); err != nil {
		return err
	}
	// waveform frames are large and latency sensitive
	ctrlConn.SetNoDelay(true)

	dataConn, err := acceptCtx(ctx, dataL)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	defer dataConn.Close()
	dataConn.SetNoDelay(true)
	s.Log.Infow("data connection", "peer", dataConn.RemoteAddr())

	sessCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	streamer := NewStreamer(s.Ctrl, s.Log)
	streamer.Sink = s.Sink
	streamer.Monitor = s.Monitor
	done := make(chan error, 1)
	go func() {
		done <- streamer.Run(sessCtx, dataConn)
	}()

	sess := NewSession(s.Ctrl, s.Log)
	if err := sess.Serve(ctrlConn); err != nil {
		s.Log.Infow("control session ended", "error", err)
	}

	// stop the streamer before touching the device again
	cancel()
	dataConn.Close()
	if err := <-done; err != nil {
		s.Log.Infow("data stream ended", "error", err)
	}
	s.Ctrl.Stop()
	if err := s.Ctrl.Reset(); err != nil {
		s.Log.Errorw("post-session reset failed", "error", err)
	}
	return nil
}

// acceptCtx accepts one connection, waking periodically to honor ctx
// cancellation.  Accept has no context variant, so a short deadline is
// used instead.
func acceptCtx(ctx context.Context, l *net.TCPListener) (*net.TCPConn, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := l.SetDeadline(time.Now().Add(250 * time.Millisecond)); err != nil {
			return nil, err
		}
		conn, err := l.AcceptTCP()
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				continue
			}
			return nil, err
		}
		return conn, nil
	}
}
