/*Package comm provides connection plumbing for talking to the bridge and to
networked lab hardware: a dial-with-backoff remote endpoint, a lazily
reclaimed connection pool, and io wrappers for line termination and
deadlines.

Most users want a Pool fed by a closure over a retrying dial:

	maker := func() (io.ReadWriteCloser, error) {
		rd := comm.NewRemoteDevice("scope-bridge:5025", false)
		if err := rd.Open(); err != nil {
			return nil, err
		}
		return rd.Conn, nil
	}
	pool := comm.NewPool(1, time.Minute, maker)
*/
package comm

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/tarm/serial"
)

var (
	// ErrNotConnected is generated when Conn is nil and Send or Recv is called.
	ErrNotConnected = errors.New("conn is nil, not connected to remote")

	// ErrTerminatorNotFound is generated when the termination byte is not found in a response
	ErrTerminatorNotFound = errors.New("termination byte not found")
)

// Terminators holds the line termination bytes used in each direction.
type Terminators struct {
	Tx byte
	Rx byte
}

// RemoteDevice is a TCP or serial endpoint with retrying dial behavior.
// It is not concurrent safe; wrap it in a Pool for shared use.
type RemoteDevice struct {
	Addr     string
	IsSerial bool
	Serial   *serial.Config
	Conn     io.ReadWriteCloser
	Term     Terminators
}

// NewRemoteDevice creates a new RemoteDevice instance with newline
// terminators.
func NewRemoteDevice(addr string, isSerial bool) RemoteDevice {
	return RemoteDevice{
		Addr:     addr,
		IsSerial: isSerial,
		Term:     Terminators{Tx: '\n', Rx: '\n'},
	}
}

// Open establishes the connection, setting the Conn variable.  Dials are
// retried with exponential backoff; embedded controllers in instruments do
// not like being connection thrashed.
func (rd *RemoteDevice) Open() error {
	wasTimeout := false
	op := func() error {
		err := rd.open()
		if err != nil {
			errS := strings.ToLower(err.Error())
			if strings.Contains(errS, "refused") {
				return err
			}
			wasTimeout = true
			return nil
		}
		return nil
	}
	err := backoff.Retry(op, &backoff.ExponentialBackOff{
		InitialInterval:     25 * time.Millisecond,
		RandomizationFactor: 0.,
		Multiplier:          2.,
		MaxInterval:         1 * time.Second,
		MaxElapsedTime:      3 * time.Second,
		Clock:               backoff.SystemClock})
	if err == nil && !wasTimeout {
		return nil
	}
	if wasTimeout {
		return fmt.Errorf("connection timeout to %s", rd.Addr)
	}
	return err
}

func (rd *RemoteDevice) open() error {
	var (
		conn io.ReadWriteCloser
		err  error
	)
	if rd.IsSerial {
		if rd.Serial == nil {
			return fmt.Errorf("device at %s is serial but has no serial config", rd.Addr)
		}
		conn, err = serial.OpenPort(rd.Serial)
	} else {
		conn, err = TCPSetup(rd.Addr, 3*time.Second)
	}
	if err != nil {
		return err
	}
	rd.Conn = conn
	return nil
}

// Close the connection, nil-ing the Conn variable.
func (rd *RemoteDevice) Close() error {
	if rd.Conn == nil {
		return nil
	}
	err := rd.Conn.Close()
	if err == nil {
		rd.Conn = nil
	}
	return err
}

// Send writes data to the remote with the Tx terminator appended.
func (rd *RemoteDevice) Send(b []byte) error {
	if rd.Conn == nil {
		return ErrNotConnected
	}
	b = append(b, rd.Term.Tx)
	_, err := rd.Conn.Write(b)
	return err
}

// Recv reads from the remote and strips the Rx terminator.
func (rd *RemoteDevice) Recv() ([]byte, error) {
	if rd.Conn == nil {
		return nil, ErrNotConnected
	}
	buf, err := bufio.NewReader(rd.Conn).ReadBytes(rd.Term.Rx)
	if err != nil {
		return []byte{}, err
	}
	if bytes.HasSuffix(buf, []byte{rd.Term.Rx}) {
		return buf[:len(buf)-1], nil
	}
	return buf, ErrTerminatorNotFound
}

// SendRecv sends a buffer, then returns the response with the Rx
// terminator stripped.
func (rd *RemoteDevice) SendRecv(b []byte) ([]byte, error) {
	if err := rd.Send(b); err != nil {
		return []byte{}, err
	}
	return rd.Recv()
}

// TCPSetup opens a new TCP connection and sets a timeout on connect, read,
// and write.
func TCPSetup(addr string, timeout time.Duration) (net.Conn, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, err
	}
	deadline := time.Now().Add(timeout)
	conn.SetReadDeadline(deadline)
	conn.SetWriteDeadline(deadline)
	return conn, nil
}
