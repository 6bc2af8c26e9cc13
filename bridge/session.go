package bridge

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/benchtop-labs/wfmbridge/oscilloscope"
	"github.com/benchtop-labs/wfmbridge/scpi"
)

// Session dispatches control plane commands onto a Controller.  One
// Session serves one control connection; query replies go back on the
// same connection, everything else is fire and forget.
type Session struct {
	ctrl *Controller
	log  *zap.SugaredLogger
}

// NewSession wraps a controller for command dispatch.
func NewSession(ctrl *Controller, log *zap.SugaredLogger) *Session {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Session{ctrl: ctrl, log: log}
}

// Execute runs one command line.  The reply is empty for non-queries.
// quit reports that the peer asked to end the session.
func (s *Session) Execute(line string) (reply string, quit bool) {
	cmd := scpi.ParseLine(line)
	if cmd.Query {
		return s.query(cmd), false
	}
	if ch, ok := scpi.ChannelIndex(cmd.Subject, s.ctrl.NumChannels()); ok {
		s.channelCommand(ch, cmd)
		return "", false
	}
	if strings.EqualFold(cmd.Subject, "TRIG") {
		s.triggerCommand(cmd)
		return "", false
	}
	return "", s.globalCommand(cmd)
}

// Serve runs the command loop on conn until EXIT or read failure.
func (s *Session) Serve(conn io.ReadWriter) error {
	for {
		line, err := scpi.ReadCommand(conn)
		if err != nil {
			return err
		}
		if line == "" {
			continue
		}
		reply, quit := s.Execute(line)
		if reply != "" {
			if err := scpi.WriteReply(conn, reply); err != nil {
				return err
			}
		}
		if quit {
			return nil
		}
	}
}

func (s *Session) query(cmd scpi.Command) string {
	switch strings.ToUpper(cmd.Name) {
	case "*IDN":
		id := s.ctrl.Identity()
		return fmt.Sprintf("%s,%s,%s,%s", id.Make, id.Model, id.Serial, id.Firmware)
	case "CHANS":
		return strconv.Itoa(s.ctrl.NumChannels())
	case "RATES":
		return joinInt64s(s.ctrl.SampleRatesFs())
	case "DEPTHS":
		return joinInts(s.ctrl.SampleDepths())
	default:
		s.log.Debugw("unrecognized query", "subject", cmd.Subject, "name", cmd.Name)
		return ""
	}
}

func (s *Session) channelCommand(ch int, cmd scpi.Command) {
	switch strings.ToUpper(cmd.Name) {
	case "ON":
		s.ctrl.SetChannelEnabled(ch, true)
	case "OFF":
		s.ctrl.SetChannelEnabled(ch, false)
	case "COUP":
		if len(cmd.Args) < 1 {
			return
		}
		coup, err := oscilloscope.ParseCoupling(cmd.Args[0])
		if err != nil {
			s.log.Debugw("bad coupling", "arg", cmd.Args[0])
			return
		}
		s.ctrl.SetCoupling(ch, coup)
	case "OFFS":
		if v, ok := floatArg(cmd.Args); ok {
			s.ctrl.SetOffset(ch, v)
		}
	case "ATTEN":
		if v, ok := floatArg(cmd.Args); ok {
			s.ctrl.SetAttenuation(ch, v)
		}
	case "RANGE":
		if v, ok := floatArg(cmd.Args); ok {
			s.ctrl.SetRange(ch, v)
		}
	default:
		s.log.Debugw("unrecognized channel command", "channel", ch, "name", cmd.Name)
	}
}

func (s *Session) triggerCommand(cmd scpi.Command) {
	switch strings.ToUpper(cmd.Name) {
	case "MODE":
		// EDGE is the only supported type
		s.ctrl.SetTriggerModeEdge()
	case "EDGE:DIR":
		if len(cmd.Args) < 1 {
			return
		}
		dir, err := oscilloscope.ParseEdgeDirection(cmd.Args[0])
		if err != nil {
			s.log.Debugw("bad edge direction", "arg", cmd.Args[0])
			return
		}
		s.ctrl.SetTriggerEdge(dir)
	case "LEV":
		if v, ok := floatArg(cmd.Args); ok {
			s.ctrl.SetTriggerLevel(v)
		}
	case "SOU":
		if len(cmd.Args) < 1 {
			return
		}
		if ch, ok := scpi.ChannelIndex(cmd.Args[0], s.ctrl.NumChannels()); ok {
			s.ctrl.SetTriggerSource(ch)
		}
	case "DELAY":
		if len(cmd.Args) < 1 {
			return
		}
		fs, err := strconv.ParseInt(cmd.Args[0], 10, 64)
		if err != nil {
			s.log.Debugw("bad trigger delay", "arg", cmd.Args[0])
			return
		}
		s.ctrl.SetTriggerDelay(fs)
	default:
		s.log.Debugw("unrecognized trigger command", "name", cmd.Name)
	}
}

func (s *Session) globalCommand(cmd scpi.Command) (quit bool) {
	switch strings.ToUpper(cmd.Name) {
	case "RATE":
		if len(cmd.Args) < 1 {
			return false
		}
		hz, err := strconv.ParseInt(cmd.Args[0], 10, 64)
		if err != nil {
			s.log.Debugw("bad sample rate", "arg", cmd.Args[0])
			return false
		}
		s.ctrl.SetSampleRate(hz)
	case "DEPTH":
		if len(cmd.Args) < 1 {
			return false
		}
		depth, err := strconv.Atoi(cmd.Args[0])
		if err != nil {
			s.log.Debugw("bad memory depth", "arg", cmd.Args[0])
			return false
		}
		s.ctrl.SetMemDepth(depth)
	case "START":
		s.ctrl.StartAcquisition(false)
	case "SINGLE":
		s.ctrl.StartAcquisition(true)
	case "FORCE":
		s.ctrl.ForceTrigger()
	case "STOP":
		s.ctrl.Stop()
	case "EXIT":
		return true
	default:
		s.log.Debugw("unrecognized command", "subject", cmd.Subject, "name", cmd.Name)
	}
	return false
}

func floatArg(args []string) (float64, bool) {
	if len(args) < 1 {
		return 0, false
	}
	v, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func joinInt64s(vals []int64) string {
	strs := make([]string, len(vals))
	for i, v := range vals {
		strs[i] = strconv.FormatInt(v, 10)
	}
	return strings.Join(strs, ",")
}

func joinInts(vals []int) string {
	strs := make([]string, len(vals))
	for i, v := range vals {
		strs[i] = strconv.Itoa(v)
	}
	return strings.Join(strs, ",")
}
