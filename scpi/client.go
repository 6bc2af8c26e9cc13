package scpi

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/benchtop-labs/wfmbridge/comm"
)

const (
	clientTimeout = 5 * time.Second

	replyBufSize = 1500
)

// Client speaks the bridge control plane over a connection pool.  Commands
// are fire and forget; only queries produce a reply line.
type Client struct {
	Pool *comm.Pool
}

// NewClient builds a client that dials addr lazily and keeps one
// connection alive between calls.  Dials retry with backoff, so a client
// built before the bridge comes up still connects.
func NewClient(addr string) *Client {
	maker := func() (io.ReadWriteCloser, error) {
		rd := comm.NewRemoteDevice(addr, false)
		if err := rd.Open(); err != nil {
			return nil, err
		}
		return rd.Conn, nil
	}
	return &Client{Pool: comm.NewPool(1, time.Minute, maker)}
}

func (c *Client) wrap() (io.ReadWriter, io.ReadWriter, error) {
	conn, err := c.Pool.Get()
	if err != nil {
		return nil, nil, err
	}
	var wrapped io.ReadWriter = comm.NewTerminator(conn, '\n', '\n')
	wrapped, err = comm.NewTimeout(wrapped, clientTimeout)
	if err != nil {
		c.Pool.ReturnWithError(conn, err)
		return nil, nil, err
	}
	return conn, wrapped, nil
}

// Send issues a command and does not wait for anything; the bridge sends no
// acknowledgement for non-query commands.
func (c *Client) Send(cmd string) error {
	conn, wrapped, err := c.wrap()
	if err != nil {
		return err
	}
	defer func() { c.Pool.ReturnWithError(conn, err) }()
	_, err = io.WriteString(wrapped, cmd)
	return err
}

// Query issues a query and returns its single line reply.
func (c *Client) Query(cmd string) (string, error) {
	conn, wrapped, err := c.wrap()
	if err != nil {
		return "", err
	}
	defer func() { c.Pool.ReturnWithError(conn, err) }()
	if !strings.Contains(cmd, "?") {
		return "", fmt.Errorf("%q is not a query", cmd)
	}
	if _, err = io.WriteString(wrapped, cmd); err != nil {
		return "", err
	}
	buf := make([]byte, replyBufSize)
	n, err := wrapped.Read(buf)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(buf[:n]), "\r"), nil
}

// QueryInt issues a query and parses the reply as an integer.
func (c *Client) QueryInt(cmd string) (int, error) {
	resp, err := c.Query(cmd)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(resp)
}

// QueryInts issues a query and parses the reply as a comma separated
// integer list, the shape of the RATES? and DEPTHS? capability replies.
func (c *Client) QueryInts(cmd string) ([]int64, error) {
	resp, err := c.Query(cmd)
	if err != nil {
		return nil, err
	}
	pieces := strings.Split(resp, ",")
	out := make([]int64, 0, len(pieces))
	for _, p := range pieces {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return out, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Raw sends a line and returns a response if it was a query, else a blank
// string.
func (c *Client) Raw(line string) (string, error) {
	if strings.Contains(line, "?") {
		return c.Query(line)
	}
	return "", c.Send(line)
}
