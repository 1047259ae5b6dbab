// Package ads101x provides a transport-independent driver for the ADS101x family of 12-bit
// I2C analog-to-digital converters (ADS1013, ADS1014, ADS1015).
// Datasheet: https://www.ti.com/lit/ds/symlink/ads1015.pdf
//
// A Driver speaks the chip's register protocol over any Transport. Concrete transports live in
// transport/local (in-process access through periph.io) and transport/daemon (a pigpio daemon
// reached over TCP).
package ads101x

import (
	"fmt"
	"sync"
)

// Transport is the I2C session a Driver talks through. Register values are 16 bits and travel
// big-endian on the wire; implementations convert to and from host order.
type Transport interface {
	// OpenSession opens a session with the device at the 7-bit address addr on the given bus.
	OpenSession(bus uint32, addr uint8) error
	// CloseSession closes the current session. It must succeed if no session is open.
	CloseSession() error
	WriteRegister(reg uint8, value uint16) error
	ReadRegister(reg uint8) (uint16, error)
}

// InterruptHandler receives pin edges from a transport. level is true when the pin went high.
type InterruptHandler func(pin uint32, level bool)

// Interrupter is implemented by transports that can watch a GPIO pin for edges. Transports
// that cannot do so don't implement it.
type Interrupter interface {
	// AttachInterrupt starts delivering edges on pin to h. Watchdog or timeout reports are
	// not edges and must not be delivered.
	AttachInterrupt(pin uint32, h InterruptHandler) error
	// DetachInterrupt stops delivery for pin. Once it returns, h is not called again.
	DetachInterrupt(pin uint32) error
}

// AlertFunc is called with the new level of the ALERT/RDY pin. It runs on the transport's
// delivery goroutine, so it must return quickly. It may perform register I/O on the driver
// but must not call AttachAlert or DetachAlert.
type AlertFunc func(level bool)

// Driver is an ADS101x driver. It is not safe for concurrent use, with the exception that the
// transport may deliver alerts from its own goroutine.
type Driver struct {
	transport Transport
	started   bool

	alertMu       sync.Mutex
	alertPin      uint32
	alertCallback AlertFunc
	alertAttached bool
}

// New returns an idle Driver that talks through t.
func New(t Transport) *Driver {
	return &Driver{
		transport: t,
	}
}

// Start opens a session with the chip at addr on the given bus. Any open session is closed
// first. The driver counts as stopped from the moment Start is called until it succeeds.
func (d *Driver) Start(bus uint32, addr SlaveAddress) error {
	d.started = false
	if err := d.transport.CloseSession(); err != nil {
		return wrapTransport("close session", err)
	}

	if err := d.transport.OpenSession(bus, uint8(addr)); err != nil {
		return wrapTransport(fmt.Sprintf("open session on bus %d at %v", bus, addr), err)
	}
	d.started = true
	return nil
}

// Stop closes the session. Stopping a stopped driver does nothing. The driver is stopped
// afterwards even if the transport fails to close the session.
func (d *Driver) Stop() error {
	d.started = false
	if err := d.transport.CloseSession(); err != nil {
		return wrapTransport("close session", err)
	}
	return nil
}

// Close detaches any alert and stops the driver. It returns the first error encountered, but
// always attempts both.
func (d *Driver) Close() error {
	detachErr := d.DetachAlert()
	stopErr := d.Stop()
	if detachErr != nil {
		return detachErr
	}
	return stopErr
}

// Started reports whether the last Start succeeded and Stop has not been called since. A Start
// or Stop that fails leaves the driver stopped.
func (d *Driver) Started() bool {
	return d.started
}

// WriteConfig writes cfg to the CONFIG register.
func (d *Driver) WriteConfig(cfg Configuration) error {
	return d.write(Config, cfg.Encode())
}

// ReadConfig reads the CONFIG register.
func (d *Driver) ReadConfig() (Configuration, error) {
	v, err := d.read(Config)
	if err != nil {
		return Configuration{}, err
	}
	return Decode(v), nil
}

// ReadConversion returns the latest 12-bit conversion result. The chip left-aligns it in
// the register; the raw two's-complement value is returned, see Signed and Volts.
func (d *Driver) ReadConversion() (uint16, error) {
	return d.read12(Conversion)
}

// WriteLoThresh writes the 12-bit comparator low threshold. Bits above the low 12 are lost.
func (d *Driver) WriteLoThresh(value uint16) error {
	return d.write(LoThresh, value<<4)
}

// ReadLoThresh returns the 12-bit comparator low threshold.
func (d *Driver) ReadLoThresh() (uint16, error) {
	return d.read12(LoThresh)
}

// WriteHiThresh writes the 12-bit comparator high threshold. Bits above the low 12 are lost.
func (d *Driver) WriteHiThresh(value uint16) error {
	return d.write(HiThresh, value<<4)
}

// ReadHiThresh returns the 12-bit comparator high threshold.
func (d *Driver) ReadHiThresh() (uint16, error) {
	return d.read12(HiThresh)
}

func (d *Driver) write(reg RegisterAddress, value uint16) error {
	if err := d.transport.WriteRegister(uint8(reg), value); err != nil {
		return wrapTransport(fmt.Sprintf("write %v", reg), err)
	}
	return nil
}

func (d *Driver) read(reg RegisterAddress) (uint16, error) {
	v, err := d.transport.ReadRegister(uint8(reg))
	if err != nil {
		return 0, wrapTransport(fmt.Sprintf("read %v", reg), err)
	}
	return v, nil
}

// read12 reads a register holding a 12-bit value in bits 15-4.
func (d *Driver) read12(reg RegisterAddress) (uint16, error) {
	v, err := d.read(reg)
	if err != nil {
		return 0, err
	}
	return v >> 4, nil
}

// AttachAlert calls cb whenever the GPIO pin wired to ALERT/RDY changes level. An existing
// attachment is detached first. If the transport fails, nothing is left attached.
func (d *Driver) AttachAlert(pin uint32, cb AlertFunc) error {
	if cb == nil {
		return fmt.Errorf("%w: alert callback is nil", ErrInvalidArgument)
	}

	if err := d.DetachAlert(); err != nil {
		return err
	}

	intr, ok := d.transport.(Interrupter)
	if !ok {
		return fmt.Errorf("%w: %T cannot watch pins", ErrUnsupported, d.transport)
	}

	if err := intr.AttachInterrupt(pin, d.raiseAlert); err != nil {
		return wrapTransport(fmt.Sprintf("attach interrupt on pin %d", pin), err)
	}

	// Edges delivered before the registration is stored are dropped by raiseAlert.
	d.alertMu.Lock()
	defer d.alertMu.Unlock()
	d.alertPin = pin
	d.alertCallback = cb
	d.alertAttached = true
	return nil
}

// DetachAlert removes the alert attachment. It does nothing if none exists. The attachment is
// dropped even if the transport fails to detach; that error is still returned.
func (d *Driver) DetachAlert() error {
	d.alertMu.Lock()
	if !d.alertAttached {
		d.alertMu.Unlock()
		return nil
	}
	pin := d.alertPin
	d.alertPin = 0
	d.alertCallback = nil
	d.alertAttached = false
	d.alertMu.Unlock()

	// The lock is released before calling into the transport, which may wait for its delivery
	// goroutine to finish a raiseAlert call.
	intr, ok := d.transport.(Interrupter)
	if !ok {
		return nil
	}
	if err := intr.DetachInterrupt(pin); err != nil {
		return wrapTransport(fmt.Sprintf("detach interrupt on pin %d", pin), err)
	}
	return nil
}

// AlertPin returns the pin of the current alert attachment, if any.
func (d *Driver) AlertPin() (uint32, bool) {
	d.alertMu.Lock()
	defer d.alertMu.Unlock()
	return d.alertPin, d.alertAttached
}

// raiseAlert is the InterruptHandler given to the transport.
func (d *Driver) raiseAlert(pin uint32, level bool) {
	d.alertMu.Lock()
	cb := d.alertCallback
	ok := d.alertAttached && d.alertPin == pin
	d.alertMu.Unlock()

	if !ok || cb == nil {
		return
	}
	cb(level)
}
