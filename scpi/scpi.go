// Package scpi implements the SCPI-derived command grammar spoken on the
// bridge control plane: line framing, subject/command/query decomposition,
// and a client for driving the bridge from Go programs.
package scpi

import (
	"io"
	"strconv"
	"strings"
)

// Command is one parsed control plane line.
type Command struct {
	// Subject is the channel or category identifier before the first
	// colon, or empty when the line has none ("START", "*IDN?")
	Subject string

	// Name is the command mnemonic ("RANGE", "EDGE:DIR", "*IDN")
	Name string

	// Query is true when the line carried a '?' anywhere; the mark
	// itself is stripped
	Query bool

	// Args are the remaining tokens as plain strings; numeric parsing
	// is the consumer's problem
	Args []string
}

// ParseLine decomposes one line of the control stream.
//
// Everything up to the first colon is the subject, if a colon appears
// before any space, comma, or query mark.  Remaining tokens split on
// spaces and commas; consecutive delimiters collapse.  A '?' anywhere
// marks the command as a query.
func ParseLine(line string) Command {
	var c Command
	if i := strings.IndexAny(line, ":? ,\t"); i >= 0 && line[i] == ':' {
		c.Subject = line[:i]
		line = line[i+1:]
	}
	if strings.ContainsRune(line, '?') {
		c.Query = true
		line = strings.ReplaceAll(line, "?", "")
	}
	fields := strings.FieldsFunc(line, func(r rune) bool {
		return r == ' ' || r == ',' || r == '\t' || r == '\r'
	})
	if len(fields) == 0 {
		return c
	}
	c.Name = fields[0]
	if len(fields) > 1 {
		c.Args = fields[1:]
	}
	return c
}

// ChannelIndex extracts a zero based channel index from a subject or
// argument of the form "C<n>" (1-indexed on the wire).  Out of range
// values are clamped into [0, numChannels], not rejected.
func ChannelIndex(s string, numChannels int) (int, bool) {
	if s == "" || (s[0] != 'C' && s[0] != 'c') {
		return 0, false
	}
	n, err := strconv.Atoi(s[1:])
	if err != nil {
		return 0, false
	}
	idx := n - 1
	if idx < 0 {
		idx = 0
	}
	if idx > numChannels {
		idx = numChannels
	}
	return idx, true
}

// ReadCommand reads one command from r: bytes up to a newline or
// semicolon, either of which terminates the command and is discarded.
func ReadCommand(r io.Reader) (string, error) {
	var sb strings.Builder
	buf := make([]byte, 1)
	for {
		n, err := r.Read(buf)
		if n == 1 {
			if buf[0] == '\n' || buf[0] == ';' {
				return sb.String(), nil
			}
			sb.WriteByte(buf[0])
		}
		if err != nil {
			return sb.String(), err
		}
	}
}

// WriteReply sends a single line query reply.
func WriteReply(w io.Writer, reply string) error {
	_, err := io.WriteString(w, reply+"\n")
	return err
}
