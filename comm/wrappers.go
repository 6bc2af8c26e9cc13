package comm

import (
	"bufio"
	"errors"
	"io"
	"time"
)

// ErrNoDeadline is returned by NewTimeout when the wrapped value cannot
// carry deadlines.
var ErrNoDeadline = errors.New("underlying connection does not support deadlines")

// Terminator wraps a ReadWriter, appending the Tx terminator to each write
// and consuming through the Rx terminator on each read, stripping it from
// the returned data.
type Terminator struct {
	rw io.ReadWriter
	br *bufio.Reader
	tx byte
	rx byte
}

// NewTerminator wraps rw with the given termination bytes.
func NewTerminator(rw io.ReadWriter, tx, rx byte) *Terminator {
	return &Terminator{rw: rw, br: bufio.NewReader(rw), tx: tx, rx: rx}
}

func (t *Terminator) Write(p []byte) (int, error) {
	buf := make([]byte, len(p)+1)
	copy(buf, p)
	buf[len(p)] = t.tx
	n, err := t.rw.Write(buf)
	if n > len(p) {
		n = len(p)
	}
	return n, err
}

// Read reads one terminated message into p.  If the message is longer than
// p, the remainder is available on the next call.
func (t *Terminator) Read(p []byte) (int, error) {
	msg, err := t.br.ReadBytes(t.rx)
	if len(msg) > 0 && msg[len(msg)-1] == t.rx {
		msg = msg[:len(msg)-1]
	} else if err == nil {
		err = ErrTerminatorNotFound
	}
	n := copy(p, msg)
	return n, err
}

type deadliner interface {
	SetReadDeadline(time.Time) error
	SetWriteDeadline(time.Time) error
}

// Timeout applies a fresh deadline to the underlying connection before each
// read and write.
type Timeout struct {
	rw io.ReadWriter
	d  deadliner
	to time.Duration
}

// NewTimeout wraps rw so each I/O call gets a deadline of d from now.  The
// wrapped value (or, for a Terminator, its underlying connection) must
// support deadlines.
func NewTimeout(rw io.ReadWriter, d time.Duration) (io.ReadWriter, error) {
	probe := rw
	if t, ok := rw.(*Terminator); ok {
		probe = t.rw
	}
	dl, ok := probe.(deadliner)
	if !ok {
		return nil, ErrNoDeadline
	}
	return &Timeout{rw: rw, d: dl, to: d}, nil
}

func (t *Timeout) Read(p []byte) (int, error) {
	t.d.SetReadDeadline(time.Now().Add(t.to))
	return t.rw.Read(p)
}

func (t *Timeout) Write(p []byte) (int, error) {
	t.d.SetWriteDeadline(time.Now().Add(t.to))
	return t.rw.Write(p)
}
