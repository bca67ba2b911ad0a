// Package diskclient is the fs server's block transport: it dials the disk
// server once, learns its geometry, and translates absolute block indices
// into (cylinder, sector) read/write requests.
package diskclient

import (
	"bufio"
	"net"
	"sync"

	"github.com/pkg/errors"

	"github.com/hugo0713/netfs/pkg/diskproto"
)

// ErrTransport wraps any failure talking to the disk server, per the
// design note that transport failures should be a distinct, inspectable
// error kind rather than silently discarded.
type ErrTransport struct {
	cause error
}

func (e *ErrTransport) Error() string { return "diskclient: transport failure: " + e.cause.Error() }
func (e *ErrTransport) Unwrap() error { return e.cause }

func transportErr(err error) error {
	if err == nil {
		return nil
	}
	return &ErrTransport{cause: err}
}

// Client is a connection to the disk server, safe for concurrent use
// (requests are serialized over the single underlying TCP connection).
type Client struct {
	mu   sync.Mutex
	conn net.Conn
	r    *bufio.Reader
	nsec int
	ncyl int
}

// Dial connects to the disk server at addr and queries its geometry.
func Dial(addr string) (*Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, transportErr(errors.Wrapf(err, "diskclient: dial %s", addr))
	}
	c := &Client{conn: conn, r: bufio.NewReader(conn)}
	if err := c.fetchInfo(); err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

func (c *Client) fetchInfo() error {
	if err := diskproto.WriteFrame(c.conn, diskproto.EncodeInfoRequest()); err != nil {
		return transportErr(err)
	}
	frame, err := diskproto.ReadFrame(c.r)
	if err != nil {
		return transportErr(err)
	}
	payload, ok := diskproto.IsYes(frame)
	if !ok {
		return transportErr(errors.Errorf("diskclient: info query failed: %s", frame))
	}
	info, err := diskproto.ParseInfoReply(payload)
	if err != nil {
		return transportErr(err)
	}
	c.ncyl, c.nsec = info.NCyl, info.NSec
	return nil
}

// Geometry returns the disk's (ncyl, nsec) as learned at dial time.
func (c *Client) Geometry() (ncyl, nsec int) {
	return c.ncyl, c.nsec
}

// NumBlocks returns the total addressable block count (ncyl * nsec).
func (c *Client) NumBlocks() uint32 {
	return uint32(c.ncyl) * uint32(c.nsec)
}

func (c *Client) blockToCylSec(b uint32) (cyl, sec int) {
	return int(b) / c.nsec, int(b) % c.nsec
}

// ReadBlock reads absolute block b into buf (must be BlockSize bytes).
func (c *Client) ReadBlock(b uint32, buf []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	cyl, sec := c.blockToCylSec(b)
	if err := diskproto.WriteFrame(c.conn, diskproto.EncodeReadRequest(cyl, sec)); err != nil {
		return transportErr(err)
	}
	frame, err := diskproto.ReadFrame(c.r)
	if err != nil {
		return transportErr(err)
	}
	payload, ok := diskproto.IsYes(frame)
	if !ok {
		return transportErr(errors.Errorf("diskclient: read block %d failed: %s", b, frame))
	}
	if len(payload) < diskproto.BlockSize {
		return transportErr(errors.Errorf("diskclient: short read reply for block %d", b))
	}
	copy(buf, payload[:diskproto.BlockSize])
	return nil
}

// WriteBlock writes buf (must be BlockSize bytes) to absolute block b.
func (c *Client) WriteBlock(b uint32, buf []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	cyl, sec := c.blockToCylSec(b)
	if err := diskproto.WriteFrame(c.conn, diskproto.EncodeWriteRequest(cyl, sec, buf)); err != nil {
		return transportErr(err)
	}
	frame, err := diskproto.ReadFrame(c.r)
	if err != nil {
		return transportErr(err)
	}
	if _, ok := diskproto.IsYes(frame); !ok {
		return transportErr(errors.Errorf("diskclient: write block %d failed: %s", b, frame))
	}
	return nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
