// Package local implements an ads101x transport with in-process access to the I2C bus and GPIO
// pins through periph.io.
package local

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/mtraver/ads101x"
	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

const defaultPollInterval = 500 * time.Millisecond

// ErrNotOpen is returned by register I/O when no session is open.
var ErrNotOpen = errors.New("local: no I²C session open")

// Init loads the periph host drivers. It must be called once before the transport is used,
// unless the application has already initialized periph.
func Init() error {
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("local: failed to initialize periph: %w", err)
	}
	return nil
}

type Option func(t *Transport)

// WithBusOpener replaces i2creg.Open as the way bus names are opened.
func WithBusOpener(open func(name string) (i2c.BusCloser, error)) Option {
	return func(t *Transport) {
		t.openBus = open
	}
}

// WithPinLookup replaces gpioreg.ByName as the way pin numbers are resolved.
func WithPinLookup(byName func(name string) gpio.PinIO) Option {
	return func(t *Transport) {
		t.pinByName = byName
	}
}

// WithPollInterval sets how long a pin watcher waits for an edge before checking whether it
// has been stopped.
func WithPollInterval(d time.Duration) Option {
	return func(t *Transport) {
		t.poll = d
	}
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(t *Transport) {
		t.log = log
	}
}

// Transport is an ads101x.Transport and ads101x.Interrupter backed by periph.io.
type Transport struct {
	openBus   func(name string) (i2c.BusCloser, error)
	pinByName func(name string) gpio.PinIO
	poll      time.Duration
	log       logrus.FieldLogger

	bus i2c.BusCloser
	dev *i2c.Dev

	mu       sync.Mutex
	watchers map[uint32]*watcher
}

func New(opts ...Option) *Transport {
	t := &Transport{
		openBus:   i2creg.Open,
		pinByName: gpioreg.ByName,
		poll:      defaultPollInterval,
		log:       logrus.StandardLogger(),
		watchers:  make(map[uint32]*watcher),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// OpenSession opens the I²C bus with the given number, e.g. 1 for /dev/i2c-1.
func (t *Transport) OpenSession(bus uint32, addr uint8) error {
	if err := t.CloseSession(); err != nil {
		return err
	}

	b, err := t.openBus(strconv.FormatUint(uint64(bus), 10))
	if err != nil {
		return &ads101x.TransportError{Op: fmt.Sprintf("open I²C bus %d", bus), Err: err}
	}

	t.bus = b
	t.dev = &i2c.Dev{Bus: b, Addr: uint16(addr)}
	t.log.WithFields(logrus.Fields{"bus": b.String(), "addr": fmt.Sprintf("0x%02x", addr)}).Debug("Opened I²C session")
	return nil
}

func (t *Transport) CloseSession() error {
	if t.bus == nil {
		return nil
	}

	b := t.bus
	t.bus = nil
	t.dev = nil
	if err := b.Close(); err != nil {
		return &ads101x.TransportError{Op: "close I²C bus", Err: err}
	}
	t.log.WithField("bus", b.String()).Debug("Closed I²C session")
	return nil
}

// WriteRegister writes value most significant byte first.
func (t *Transport) WriteRegister(reg uint8, value uint16) error {
	if t.dev == nil {
		return &ads101x.TransportError{Op: "write register", Err: ErrNotOpen}
	}

	w := []byte{reg, 0, 0}
	binary.BigEndian.PutUint16(w[1:], value)
	if err := t.dev.Tx(w, nil); err != nil {
		return &ads101x.TransportError{Op: fmt.Sprintf("write register 0x%02x", reg), Err: err}
	}
	return nil
}

// ReadRegister sets the register pointer and reads two bytes, most significant first.
func (t *Transport) ReadRegister(reg uint8) (uint16, error) {
	if t.dev == nil {
		return 0, &ads101x.TransportError{Op: "read register", Err: ErrNotOpen}
	}

	var r [2]byte
	if err := t.dev.Tx([]byte{reg}, r[:]); err != nil {
		return 0, &ads101x.TransportError{Op: fmt.Sprintf("read register 0x%02x", reg), Err: err}
	}
	return binary.BigEndian.Uint16(r[:]), nil
}

// AttachInterrupt watches both edges of the GPIO pin with the given number. Watching a pin that
// is already watched replaces the handler.
func (t *Transport) AttachInterrupt(pin uint32, h ads101x.InterruptHandler) error {
	name := strconv.FormatUint(uint64(pin), 10)
	p := t.pinByName(name)
	if p == nil {
		return &ads101x.TransportError{Op: "attach interrupt", Err: fmt.Errorf("no GPIO pin %s", name)}
	}

	if err := t.DetachInterrupt(pin); err != nil {
		return err
	}

	if err := p.In(gpio.PullNoChange, gpio.BothEdges); err != nil {
		return &ads101x.TransportError{Op: fmt.Sprintf("enable edge detection on %s", p), Err: err}
	}

	w := &watcher{
		pin:  p,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}

	t.mu.Lock()
	t.watchers[pin] = w
	t.mu.Unlock()

	go w.run(pin, h, t.poll)
	t.log.WithField("pin", p.String()).Debug("Watching pin for edges")
	return nil
}

// DetachInterrupt stops watching pin and waits for its watcher to exit. Detaching a pin that
// isn't watched does nothing.
func (t *Transport) DetachInterrupt(pin uint32) error {
	t.mu.Lock()
	w, ok := t.watchers[pin]
	delete(t.watchers, pin)
	t.mu.Unlock()

	if !ok {
		return nil
	}

	close(w.stop)
	if err := w.pin.Halt(); err != nil {
		t.log.WithField("pin", w.pin.String()).Warnf("Failed to halt pin: %v", err)
	}
	<-w.done

	if err := w.pin.In(gpio.PullNoChange, gpio.NoEdge); err != nil {
		return &ads101x.TransportError{Op: fmt.Sprintf("disable edge detection on %s", w.pin), Err: err}
	}
	t.log.WithField("pin", w.pin.String()).Debug("Stopped watching pin")
	return nil
}

type watcher struct {
	pin  gpio.PinIO
	stop chan struct{}
	done chan struct{}
}

func (w *watcher) stopped() bool {
	select {
	case <-w.stop:
		return true
	default:
		return false
	}
}

func (w *watcher) run(pin uint32, h ads101x.InterruptHandler, poll time.Duration) {
	defer close(w.done)

	for !w.stopped() {
		// A wait that times out is not an edge.
		if !w.pin.WaitForEdge(poll) {
			continue
		}
		if w.stopped() {
			return
		}
		h(pin, w.pin.Read() == gpio.High)
	}
}
