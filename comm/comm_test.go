package comm_test

import (
	"bytes"
	"io"
	"net"
	"testing"
	"time"

	"github.com/benchtop-labs/wfmbridge/comm"
)

func TestTerminatorAppendsAndStrips(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	term := comm.NewTerminator(a, '\n', '\n')
	go func() {
		term.Write([]byte("*IDN?"))
	}()

	buf := make([]byte, 64)
	n, err := b.Read(buf)
	if err != nil {
		t.Fatal(err)
	}
	if string(buf[:n]) != "*IDN?\n" {
		t.Errorf("wire bytes = %q, want %q", buf[:n], "*IDN?\n")
	}

	go func() {
		b.Write([]byte("Digilent,ADP3450,X,1\n"))
	}()
	n, err = term.Read(buf)
	if err != nil {
		t.Fatal(err)
	}
	if string(buf[:n]) != "Digilent,ADP3450,X,1" {
		t.Errorf("read %q, want the reply without its terminator", buf[:n])
	}
}

func TestRemoteDeviceOpenSendRecv(t *testing.T) {
	l, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()
	go func() {
		conn, err := l.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 64)
		n, _ := conn.Read(buf)
		conn.Write(buf[:n])
	}()

	rd := comm.NewRemoteDevice(l.Addr().String(), false)
	if err := rd.Open(); err != nil {
		t.Fatal(err)
	}
	if rd.Conn == nil {
		t.Fatal("Open succeeded but Conn is nil")
	}
	resp, err := rd.SendRecv([]byte("*IDN?"))
	if err != nil {
		t.Fatal(err)
	}
	if string(resp) != "*IDN?" {
		t.Errorf("echo = %q, want the sent bytes without the terminator", resp)
	}
	if err := rd.Close(); err != nil {
		t.Fatal(err)
	}
	if rd.Conn != nil {
		t.Error("Conn not nil after Close")
	}
}

func TestRemoteDeviceNotConnected(t *testing.T) {
	rd := comm.NewRemoteDevice("localhost:1", false)
	if err := rd.Send([]byte("x")); err != comm.ErrNotConnected {
		t.Errorf("Send before Open: %v, want ErrNotConnected", err)
	}
	if _, err := rd.Recv(); err != comm.ErrNotConnected {
		t.Errorf("Recv before Open: %v, want ErrNotConnected", err)
	}
}

func TestRemoteDeviceSerialNeedsConfig(t *testing.T) {
	rd := comm.NewRemoteDevice("/dev/ttyUSB0", true)
	if err := rd.Open(); err == nil {
		rd.Close()
		t.Error("expected an error opening a serial device with no serial config")
	}
}

func TestTimeoutRequiresDeadlines(t *testing.T) {
	var buf bytes.Buffer
	if _, err := comm.NewTimeout(&buf, time.Second); err != comm.ErrNoDeadline {
		t.Errorf("expected ErrNoDeadline, got %v", err)
	}
}

func TestTimeoutExpiresBlockedRead(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	rw, err := comm.NewTimeout(a, 10*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 1)
	if _, err := rw.Read(buf); err == nil {
		t.Error("expected a deadline error on a silent peer")
	}
}

func TestTimeoutProbesTerminator(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	term := comm.NewTerminator(a, '\n', '\n')
	if _, err := comm.NewTimeout(term, time.Second); err != nil {
		t.Errorf("terminator over a net.Conn should carry deadlines, got %v", err)
	}
}

type fakeConn struct {
	bytes.Buffer
	closed bool
}

func (f *fakeConn) Close() error {
	f.closed = true
	return nil
}

func TestPoolLeaseAndReturn(t *testing.T) {
	made := 0
	maker := func() (io.ReadWriteCloser, error) {
		made++
		return &fakeConn{}, nil
	}
	pool := comm.NewPool(2, time.Minute, maker)

	c1, err := pool.Get()
	if err != nil {
		t.Fatal(err)
	}
	if pool.Active() != 1 || pool.Size() != 1 {
		t.Errorf("active=%d size=%d after one lease", pool.Active(), pool.Size())
	}

	pool.Put(c1)
	if pool.Active() != 0 || pool.Size() != 1 {
		t.Errorf("active=%d size=%d after return", pool.Active(), pool.Size())
	}

	c2, err := pool.Get()
	if err != nil {
		t.Fatal(err)
	}
	if made != 1 {
		t.Errorf("maker ran %d times, expected the connection to be reused", made)
	}

	pool.ReturnWithError(c2, io.ErrUnexpectedEOF)
	if pool.Size() != 0 {
		t.Errorf("size=%d after destroying the only connection", pool.Size())
	}
	if !c2.(*fakeConn).closed {
		t.Error("bad connection was not closed")
	}
}
