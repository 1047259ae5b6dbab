package daemon

import (
	"encoding/binary"
	"errors"
	"io"
	"net"
	"sync"

	"github.com/mtraver/ads101x"
	"github.com/sirupsen/logrus"
)

// Flags of a notification report.
const (
	ntfyFlagsEvent = 1 << 7
	ntfyFlagsAlive = 1 << 6
	ntfyFlagsWdog  = 1 << 5

	reportSize = 12
	maxGPIO    = 31
)

// notifier owns the notification stream shared by all watched pins of a Transport.
type notifier struct {
	conn   net.Conn
	handle uint32
	log    logrus.FieldLogger
	done   chan struct{}

	// mu is held while a handler runs, so a detached handler is never called after
	// DetachInterrupt returns.
	mu       sync.Mutex
	handlers map[uint32]ads101x.InterruptHandler
	levels   uint32
}

func (n *notifier) mask() uint32 {
	var m uint32
	for pin := range n.handlers {
		m |= 1 << pin
	}
	return m
}

func (n *notifier) run() {
	defer close(n.done)

	var buf [reportSize]byte
	for {
		if _, err := io.ReadFull(n.conn, buf[:]); err != nil {
			if !errors.Is(err, net.ErrClosed) && !errors.Is(err, io.EOF) {
				n.log.Warnf("Notification stream failed: %v", err)
			}
			return
		}

		flags := binary.LittleEndian.Uint16(buf[2:])
		level := binary.LittleEndian.Uint32(buf[8:])

		// Watchdog reports carry the timeout pseudo-level, not an edge. Keepalives and
		// custom events carry no level change either.
		if flags&(ntfyFlagsWdog|ntfyFlagsAlive|ntfyFlagsEvent) != 0 {
			continue
		}
		n.dispatch(level)
	}
}

func (n *notifier) dispatch(level uint32) {
	n.mu.Lock()
	defer n.mu.Unlock()

	changed := n.levels ^ level
	n.levels = level
	for pin, h := range n.handlers {
		if changed&(1<<pin) != 0 {
			h(pin, level&(1<<pin) != 0)
		}
	}
}

// AttachInterrupt asks the daemon to report level changes on the GPIO pin. The first attached
// pin opens the notification stream.
func (t *Transport) AttachInterrupt(pin uint32, h ads101x.InterruptHandler) error {
	if pin > maxGPIO {
		return newError("attach interrupt", piBadUserGPIO)
	}

	t.notifyMu.Lock()
	defer t.notifyMu.Unlock()

	if t.notify == nil {
		n, err := t.openNotifier()
		if err != nil {
			return err
		}
		t.notify = n
	}
	n := t.notify

	n.mu.Lock()
	n.handlers[pin] = h
	mask := n.mask()
	n.mu.Unlock()

	if _, err := t.client.command(cmdNB, n.handle, mask, nil); err != nil {
		n.mu.Lock()
		delete(n.handlers, pin)
		empty := len(n.handlers) == 0
		n.mu.Unlock()
		if empty {
			t.closeNotifier()
		}
		return err
	}

	t.log.WithFields(logrus.Fields{"daemon": t.client.Addr(), "pin": pin}).Debug("Watching pin for edges")
	return nil
}

// DetachInterrupt stops reporting pin. Detaching the last pin closes the notification stream.
func (t *Transport) DetachInterrupt(pin uint32) error {
	t.notifyMu.Lock()
	defer t.notifyMu.Unlock()

	n := t.notify
	if n == nil {
		return nil
	}

	n.mu.Lock()
	if _, ok := n.handlers[pin]; !ok {
		n.mu.Unlock()
		return nil
	}
	delete(n.handlers, pin)
	mask := n.mask()
	n.mu.Unlock()

	t.log.WithFields(logrus.Fields{"daemon": t.client.Addr(), "pin": pin}).Debug("Stopped watching pin")
	if mask == 0 {
		return t.closeNotifier()
	}
	_, err := t.client.command(cmdNB, n.handle, mask, nil)
	return err
}

// openNotifier opens the notification stream and seeds the known levels so the first report
// only triggers handlers for pins that actually changed.
func (t *Transport) openNotifier() (*notifier, error) {
	levels, err := t.client.commandBits(cmdBR1, 0, 0, nil)
	if err != nil {
		return nil, err
	}

	conn, handle, err := t.client.openNotify()
	if err != nil {
		return nil, err
	}

	n := &notifier{
		conn:     conn,
		handle:   handle,
		log:      t.log.WithField("daemon", t.client.Addr()),
		done:     make(chan struct{}),
		handlers: make(map[uint32]ads101x.InterruptHandler),
		levels:   levels,
	}
	go n.run()
	return n, nil
}

// closeNotifier closes the stream and waits for its reader. t.notifyMu must be held.
func (t *Transport) closeNotifier() error {
	n := t.notify
	t.notify = nil

	_, err := t.client.command(cmdNC, n.handle, 0, nil)
	n.conn.Close()
	<-n.done
	return err
}
