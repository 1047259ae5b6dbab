package daemon

import (
	"fmt"
	"math/bits"
	"sync"

	"github.com/mtraver/ads101x"
	"github.com/sirupsen/logrus"
)

const noHandle = -1

var (
	_ ads101x.Transport   = (*Transport)(nil)
	_ ads101x.Interrupter = (*Transport)(nil)
)

type Option func(t *Transport)

// WithFlags sets the flags passed to the daemon when opening an I²C session. pigpio defines
// none yet, so the default is 0.
func WithFlags(flags uint32) Option {
	return func(t *Transport) {
		t.flags = flags
	}
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(t *Transport) {
		t.log = log
	}
}

// Transport is an ads101x.Transport and ads101x.Interrupter backed by a pigpio daemon.
type Transport struct {
	client *Client
	flags  uint32
	log    logrus.FieldLogger

	handle int32

	notifyMu sync.Mutex
	notify   *notifier
}

// New returns a Transport that issues its commands through c. The caller keeps ownership of c.
func New(c *Client, opts ...Option) *Transport {
	t := &Transport{
		client: c,
		log:    logrus.StandardLogger(),
		handle: noHandle,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Transport) OpenSession(bus uint32, addr uint8) error {
	if err := t.CloseSession(); err != nil {
		return err
	}

	h, err := t.client.command(cmdI2CO, bus, uint32(addr), uint32Ext(t.flags))
	if err != nil {
		return err
	}

	t.handle = h
	t.log.WithFields(logrus.Fields{
		"daemon": t.client.Addr(),
		"bus":    bus,
		"addr":   fmt.Sprintf("0x%02x", addr),
		"handle": h,
	}).Debug("Opened I²C session")
	return nil
}

func (t *Transport) CloseSession() error {
	if t.handle < 0 {
		return nil
	}

	if _, err := t.client.command(cmdI2CC, uint32(t.handle), 0, nil); err != nil {
		return err
	}
	t.log.WithFields(logrus.Fields{"daemon": t.client.Addr(), "handle": t.handle}).Debug("Closed I²C session")
	t.handle = noHandle
	return nil
}

// WriteRegister writes an SMBus word. SMBus sends the low byte first but the chip expects the
// most significant byte first, so the bytes are swapped before sending.
func (t *Transport) WriteRegister(reg uint8, value uint16) error {
	if t.handle < 0 {
		return newError(commandNames[cmdI2CWW], piNoHandle)
	}

	_, err := t.client.command(cmdI2CWW, uint32(t.handle), uint32(reg), uint32Ext(uint32(bits.ReverseBytes16(value))))
	return err
}

// ReadRegister reads an SMBus word and swaps it back to host order.
func (t *Transport) ReadRegister(reg uint8) (uint16, error) {
	if t.handle < 0 {
		return 0, newError(commandNames[cmdI2CRW], piNoHandle)
	}

	res, err := t.client.command(cmdI2CRW, uint32(t.handle), uint32(reg), nil)
	if err != nil {
		return 0, err
	}
	return bits.ReverseBytes16(uint16(res)), nil
}
