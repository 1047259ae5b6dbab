// Package daemon implements an ads101x transport that reaches the I²C bus and GPIO pins
// through a pigpio daemon (pigpiod) over its socket interface. See
// https://abyz.me.uk/rpi/pigpio/sif.html for the protocol.
package daemon

import (
	"context"
	"encoding/binary"
	"io"
	"net"
	"strconv"
	"sync"
	"time"
)

const (
	DefaultHost = "localhost"
	DefaultPort = 8888

	defaultTimeout = 5 * time.Second
)

// Socket interface command numbers.
const (
	cmdBR1   = 10
	cmdNB    = 19
	cmdNC    = 21
	cmdI2CO  = 54
	cmdI2CC  = 55
	cmdI2CRW = 63
	cmdI2CWW = 64
	cmdNOIB  = 99
)

var commandNames = map[uint32]string{
	cmdBR1:   "read gpio bank",
	cmdNB:    "notify begin",
	cmdNC:    "notify close",
	cmdI2CO:  "i2c open",
	cmdI2CC:  "i2c close",
	cmdI2CRW: "i2c read word",
	cmdI2CWW: "i2c write word",
	cmdNOIB:  "notify open in band",
}

// Client is a connection to a pigpio daemon. Commands are serialized, so a Client may be shared
// by several transports.
type Client struct {
	addr    string
	timeout time.Duration

	mu   sync.Mutex
	conn net.Conn
}

// Connect dials the daemon at host:port.
func Connect(ctx context.Context, host string, port int) (*Client, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, socketError("connect to "+addr, pigifBadConnect, err)
	}
	return NewClient(conn), nil
}

// NewClient uses an established connection to the daemon. The Client takes ownership of conn.
func NewClient(conn net.Conn) *Client {
	return &Client{
		addr:    conn.RemoteAddr().String(),
		timeout: defaultTimeout,
		conn:    conn,
	}
}

// Addr returns the daemon's address.
func (c *Client) Addr() string {
	return c.addr
}

// Close disconnects from the daemon. Closing a closed Client does nothing.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// command sends one command and returns the daemon's result. A negative result is returned
// as an error.
func (c *Client) command(cmd, p1, p2 uint32, ext []byte) (int32, error) {
	res, err := c.exchange(cmd, p1, p2, ext)
	if err != nil {
		return res, err
	}
	if res < 0 {
		return res, newError(commandNames[cmd], res)
	}
	return res, nil
}

// commandBits is command for commands whose result is a bit mask, such as a GPIO bank read.
// Every result is valid, so the sign bit is not taken as an error.
func (c *Client) commandBits(cmd, p1, p2 uint32, ext []byte) (uint32, error) {
	res, err := c.exchange(cmd, p1, p2, ext)
	if err != nil {
		return 0, err
	}
	return uint32(res), nil
}

// exchange sends one command and returns the raw result word. Only a failure to talk to the
// daemon is an error.
func (c *Client) exchange(cmd, p1, p2 uint32, ext []byte) (int32, error) {
	op := commandNames[cmd]

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return pigifUnconnected, newError(op, pigifUnconnected)
	}

	res, err := roundTrip(c.conn, c.timeout, cmd, p1, p2, ext)
	if err != nil {
		return res, socketError(op, res, err)
	}
	return res, nil
}

// roundTrip writes a command frame and reads the reply frame. On failure the returned code
// says which direction failed.
func roundTrip(conn net.Conn, timeout time.Duration, cmd, p1, p2 uint32, ext []byte) (int32, error) {
	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return pigifBadSend, err
	}

	req := make([]byte, 16, 16+len(ext))
	binary.LittleEndian.PutUint32(req[0:], cmd)
	binary.LittleEndian.PutUint32(req[4:], p1)
	binary.LittleEndian.PutUint32(req[8:], p2)
	binary.LittleEndian.PutUint32(req[12:], uint32(len(ext)))
	req = append(req, ext...)
	if _, err := conn.Write(req); err != nil {
		return pigifBadSend, err
	}

	var resp [16]byte
	if _, err := io.ReadFull(conn, resp[:]); err != nil {
		return pigifBadRecv, err
	}
	return int32(binary.LittleEndian.Uint32(resp[12:])), nil
}

// openNotify dials a second connection to the daemon and turns it into a notification
// stream. It returns the connection and the notification handle.
func (c *Client) openNotify() (net.Conn, uint32, error) {
	op := commandNames[cmdNOIB]

	conn, err := net.DialTimeout("tcp", c.addr, c.timeout)
	if err != nil {
		return nil, 0, socketError(op, pigifBadConnect, err)
	}

	res, err := roundTrip(conn, c.timeout, cmdNOIB, 0, 0, nil)
	if err != nil {
		conn.Close()
		return nil, 0, socketError(op, pigifBadNoIB, err)
	}
	if res < 0 {
		conn.Close()
		return nil, 0, newError(op, res)
	}

	// Reports arrive whenever pins change; the stream has no deadline.
	if err := conn.SetDeadline(time.Time{}); err != nil {
		conn.Close()
		return nil, 0, socketError(op, pigifBadNoIB, err)
	}
	return conn, uint32(res), nil
}

func uint32Ext(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}
