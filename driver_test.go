package ads101x

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// fakeTransport records every call made through it.
type fakeTransport struct {
	ops []string

	bus  uint32
	addr uint8
	open bool

	writeReg   uint8
	writeValue uint16
	readReg    uint8
	readValue  uint16

	openErr  error
	closeErr error
	writeErr error
	readErr  error
}

func (f *fakeTransport) OpenSession(bus uint32, addr uint8) error {
	f.ops = append(f.ops, "open")
	if f.openErr != nil {
		return f.openErr
	}
	f.bus = bus
	f.addr = addr
	f.open = true
	return nil
}

func (f *fakeTransport) CloseSession() error {
	f.ops = append(f.ops, "close")
	if f.closeErr != nil {
		return f.closeErr
	}
	f.open = false
	return nil
}

func (f *fakeTransport) WriteRegister(reg uint8, value uint16) error {
	f.ops = append(f.ops, "write")
	f.writeReg = reg
	f.writeValue = value
	return f.writeErr
}

func (f *fakeTransport) ReadRegister(reg uint8) (uint16, error) {
	f.ops = append(f.ops, "read")
	f.readReg = reg
	return f.readValue, f.readErr
}

// fakeInterrupter adds pin watching to fakeTransport. Edges are simulated with edge.
type fakeInterrupter struct {
	fakeTransport

	handlers  map[uint32]InterruptHandler
	attachErr error
	detachErr error
}

func newFakeInterrupter() *fakeInterrupter {
	return &fakeInterrupter{handlers: make(map[uint32]InterruptHandler)}
}

func (f *fakeInterrupter) AttachInterrupt(pin uint32, h InterruptHandler) error {
	f.ops = append(f.ops, "attach")
	if f.attachErr != nil {
		return f.attachErr
	}
	f.handlers[pin] = h
	return nil
}

func (f *fakeInterrupter) DetachInterrupt(pin uint32) error {
	f.ops = append(f.ops, "detach")
	delete(f.handlers, pin)
	return f.detachErr
}

func (f *fakeInterrupter) edge(pin uint32, level bool) {
	if h, ok := f.handlers[pin]; ok {
		h(pin, level)
	}
}

const testValue12 = 0b0000101010101010

func TestStart(t *testing.T) {
	ft := &fakeTransport{}
	d := New(ft)

	if err := d.Start(0x12345678, SDA); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if ft.bus != 0x12345678 {
		t.Errorf("Bus is 0x%x, expected 0x12345678", ft.bus)
	}
	if ft.addr != 0x4A {
		t.Errorf("Address is 0x%02x, expected 0x4a", ft.addr)
	}
	if diff := cmp.Diff(ft.ops, []string{"close", "open"}); diff != "" {
		t.Errorf("Unexpected result (-got +want):\n%s", diff)
	}
	if !d.Started() {
		t.Errorf("Driver not started")
	}
}

func TestRestartClosesFirst(t *testing.T) {
	ft := &fakeTransport{}
	d := New(ft)

	if err := d.Start(1, GND); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if err := d.Start(1, VDD); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if diff := cmp.Diff(ft.ops, []string{"close", "open", "close", "open"}); diff != "" {
		t.Errorf("Unexpected result (-got +want):\n%s", diff)
	}
	if ft.addr != uint8(VDD) {
		t.Errorf("Address is 0x%02x, expected 0x%02x", ft.addr, uint8(VDD))
	}
}

func TestStartErrors(t *testing.T) {
	cases := []struct {
		name     string
		openErr  error
		closeErr error
		wantOps  []string
	}{
		{"open", errors.New("no bus"), nil, []string{"close", "open"}},
		{"close", nil, errors.New("bad handle"), []string{"close"}},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			ft := &fakeTransport{openErr: c.openErr, closeErr: c.closeErr}
			d := New(ft)

			err := d.Start(1, GND)
			var te *TransportError
			if !errors.As(err, &te) {
				t.Fatalf("Got %v, expected a *TransportError", err)
			}
			if diff := cmp.Diff(ft.ops, c.wantOps); diff != "" {
				t.Errorf("Unexpected result (-got +want):\n%s", diff)
			}
			if d.Started() {
				t.Errorf("Driver started after failure")
			}
		})
	}
}

func TestTransportErrorPassesThrough(t *testing.T) {
	want := &TransportError{Op: "i2c open", Code: -71, Err: errors.New("i2c open failed")}
	d := New(&fakeTransport{openErr: want})

	err := d.Start(1, GND)
	var got *TransportError
	if !errors.As(err, &got) || got != want {
		t.Errorf("Got %v, expected %v", err, want)
	}
}

func TestStop(t *testing.T) {
	ft := &fakeTransport{}
	d := New(ft)

	if err := d.Stop(); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if err := d.Stop(); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if diff := cmp.Diff(ft.ops, []string{"close", "close"}); diff != "" {
		t.Errorf("Unexpected result (-got +want):\n%s", diff)
	}
}

func TestFailedCloseLeavesDriverStopped(t *testing.T) {
	cases := []struct {
		name string
		op   func(d *Driver) error
	}{
		{"restart", func(d *Driver) error { return d.Start(1, VDD) }},
		{"stop", func(d *Driver) error { return d.Stop() }},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			ft := &fakeTransport{}
			d := New(ft)
			if err := d.Start(1, GND); err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}

			ft.closeErr = errors.New("boom")
			if err := c.op(d); err == nil {
				t.Fatalf("Got nil error, expected non-nil")
			}
			if d.Started() {
				t.Errorf("Driver reports started after failed close")
			}
		})
	}
}

func TestWriteConfig(t *testing.T) {
	ft := &fakeTransport{}
	d := New(ft)

	if err := d.WriteConfig(Decode(0x1234)); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if ft.writeReg != uint8(Config) {
		t.Errorf("Wrote register 0x%02x, expected 0x%02x", ft.writeReg, uint8(Config))
	}
	if ft.writeValue != 0x1234 {
		t.Errorf("Wrote 0x%04x, expected 0x1234", ft.writeValue)
	}
}

func TestReadConfig(t *testing.T) {
	ft := &fakeTransport{readValue: 0x1234}
	d := New(ft)

	cfg, err := d.ReadConfig()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if ft.readReg != uint8(Config) {
		t.Errorf("Read register 0x%02x, expected 0x%02x", ft.readReg, uint8(Config))
	}
	if cfg.Encode() != 0x1234 {
		t.Errorf("Got 0x%04x, expected 0x1234", cfg.Encode())
	}
}

func TestRead12(t *testing.T) {
	cases := []struct {
		name string
		reg  RegisterAddress
		read func(d *Driver) (uint16, error)
	}{
		{"conversion", Conversion, (*Driver).ReadConversion},
		{"lo_thresh", LoThresh, (*Driver).ReadLoThresh},
		{"hi_thresh", HiThresh, (*Driver).ReadHiThresh},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			ft := &fakeTransport{readValue: testValue12 << 4}
			got, err := c.read(New(ft))
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if ft.readReg != uint8(c.reg) {
				t.Errorf("Read register 0x%02x, expected 0x%02x", ft.readReg, uint8(c.reg))
			}
			if got != testValue12 {
				t.Errorf("Got 0x%04x, expected 0x%04x", got, testValue12)
			}
		})
	}
}

func TestWriteThresh(t *testing.T) {
	cases := []struct {
		name  string
		reg   RegisterAddress
		write func(d *Driver, v uint16) error
		value uint16
		want  uint16
	}{
		{"lo", LoThresh, (*Driver).WriteLoThresh, 0x0AAA, 0x0AAA << 4},
		{"hi", HiThresh, (*Driver).WriteHiThresh, testValue12, testValue12 << 4},
		{"truncated", HiThresh, (*Driver).WriteHiThresh, 0xF123, 0x1230},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			ft := &fakeTransport{}
			if err := c.write(New(ft), c.value); err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if ft.writeReg != uint8(c.reg) {
				t.Errorf("Wrote register 0x%02x, expected 0x%02x", ft.writeReg, uint8(c.reg))
			}
			if ft.writeValue != c.want {
				t.Errorf("Wrote 0x%04x, expected 0x%04x", ft.writeValue, c.want)
			}
		})
	}
}

func TestRegisterErrors(t *testing.T) {
	ft := &fakeTransport{readErr: errors.New("nack"), writeErr: errors.New("nack")}
	d := New(ft)

	var te *TransportError
	if _, err := d.ReadConfig(); !errors.As(err, &te) {
		t.Errorf("ReadConfig: got %v, expected a *TransportError", err)
	}
	if _, err := d.ReadConversion(); !errors.As(err, &te) {
		t.Errorf("ReadConversion: got %v, expected a *TransportError", err)
	}
	if err := d.WriteConfig(NewConfiguration()); !errors.As(err, &te) {
		t.Errorf("WriteConfig: got %v, expected a *TransportError", err)
	}
	if err := d.WriteLoThresh(1); !errors.As(err, &te) {
		t.Errorf("WriteLoThresh: got %v, expected a *TransportError", err)
	}
}

func TestAlert(t *testing.T) {
	fi := newFakeInterrupter()
	d := New(fi)

	var got []bool
	if err := d.AttachAlert(17, func(level bool) { got = append(got, level) }); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if pin, ok := d.AlertPin(); !ok || pin != 17 {
		t.Errorf("AlertPin() = %d, %v, expected 17, true", pin, ok)
	}

	fi.edge(17, true)
	fi.edge(17, false)
	if diff := cmp.Diff(got, []bool{true, false}); diff != "" {
		t.Errorf("Unexpected result (-got +want):\n%s", diff)
	}

	// Keep the handler so edges can still be delivered after detaching.
	h := fi.handlers[17]
	if err := d.DetachAlert(); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	h(17, true)
	fi.edge(17, true)
	if len(got) != 2 {
		t.Errorf("Callback called after detach: %v", got)
	}
	if _, ok := d.AlertPin(); ok {
		t.Errorf("Alert still attached")
	}
}

func TestAlertIgnoresOtherPins(t *testing.T) {
	fi := newFakeInterrupter()
	d := New(fi)

	calls := 0
	if err := d.AttachAlert(4, func(bool) { calls++ }); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	d.raiseAlert(5, true)
	if calls != 0 {
		t.Errorf("Callback called %d times, expected 0", calls)
	}
}

func TestAttachAlertNilCallback(t *testing.T) {
	fi := newFakeInterrupter()
	d := New(fi)

	if err := d.AttachAlert(17, nil); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Got %v, expected ErrInvalidArgument", err)
	}
	if len(fi.ops) != 0 {
		t.Errorf("Transport called: %v", fi.ops)
	}
}

func TestAttachAlertUnsupported(t *testing.T) {
	d := New(&fakeTransport{})

	if err := d.AttachAlert(17, func(bool) {}); !errors.Is(err, ErrUnsupported) {
		t.Errorf("Got %v, expected ErrUnsupported", err)
	}
	if _, ok := d.AlertPin(); ok {
		t.Errorf("Alert attached")
	}
}

func TestAttachAlertTwiceDetachesFirst(t *testing.T) {
	fi := newFakeInterrupter()
	d := New(fi)

	first, second := 0, 0
	if err := d.AttachAlert(4, func(bool) { first++ }); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if err := d.AttachAlert(5, func(bool) { second++ }); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if diff := cmp.Diff(fi.ops, []string{"attach", "detach", "attach"}); diff != "" {
		t.Errorf("Unexpected result (-got +want):\n%s", diff)
	}

	fi.edge(4, true)
	fi.edge(5, true)
	if first != 0 || second != 1 {
		t.Errorf("Got %d and %d calls, expected 0 and 1", first, second)
	}
}

func TestAttachAlertTransportFailure(t *testing.T) {
	fi := newFakeInterrupter()
	fi.attachErr = errors.New("bad gpio")
	d := New(fi)

	err := d.AttachAlert(17, func(bool) {})
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("Got %v, expected a *TransportError", err)
	}
	if _, ok := d.AlertPin(); ok {
		t.Errorf("Alert attached after failure")
	}

	// Nothing is attached, so detaching must not reach the transport.
	fi.ops = nil
	if err := d.DetachAlert(); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
	if len(fi.ops) != 0 {
		t.Errorf("Transport called: %v", fi.ops)
	}
}

func TestDetachAlertFailureStillDetaches(t *testing.T) {
	fi := newFakeInterrupter()
	d := New(fi)

	if err := d.AttachAlert(17, func(bool) {}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	fi.detachErr = errors.New("bad gpio")

	if err := d.DetachAlert(); err == nil {
		t.Errorf("Expected error, got nil")
	}
	if _, ok := d.AlertPin(); ok {
		t.Errorf("Alert still attached")
	}
	if err := d.DetachAlert(); err != nil {
		t.Errorf("Second detach: unexpected error: %v", err)
	}
}

func TestDetachAlertNotAttached(t *testing.T) {
	fi := newFakeInterrupter()
	d := New(fi)

	if err := d.DetachAlert(); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
	if len(fi.ops) != 0 {
		t.Errorf("Transport called: %v", fi.ops)
	}
}

func TestClose(t *testing.T) {
	fi := newFakeInterrupter()
	d := New(fi)

	if err := d.Start(1, GND); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if err := d.AttachAlert(17, func(bool) {}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if diff := cmp.Diff(fi.ops, []string{"close", "open", "attach", "detach", "close"}); diff != "" {
		t.Errorf("Unexpected result (-got +want):\n%s", diff)
	}
	if fi.open || d.Started() {
		t.Errorf("Session still open")
	}
}
