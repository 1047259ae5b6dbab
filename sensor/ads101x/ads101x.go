// Package ads101x adapts an ADS101x converter to the sensor.Sensor interface.
package ads101x

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/mtraver/ads101x"
	"github.com/mtraver/ads101x/sample"
	"github.com/mtraver/ads101x/transport/daemon"
	"github.com/mtraver/ads101x/transport/local"
	"github.com/sirupsen/logrus"
)

// Transports that a Config may name.
const (
	Local  = "local"
	Daemon = "daemon"
	Dummy  = "dummy"
)

// Config describes one converter and what to read from it.
type Config struct {
	ID         string                `json:"id"`
	Transport  string                `json:"transport"`
	DaemonHost string                `json:"daemon_host,omitempty"`
	DaemonPort int                   `json:"daemon_port,omitempty"`
	Bus        uint32                `json:"bus"`
	Address    ads101x.SlaveAddress  `json:"address"`
	FSR        ads101x.FSR           `json:"fsr"`
	DataRate   ads101x.DataRate      `json:"data_rate"`
	Channels   []ads101x.Multiplexer `json:"channels"`
	// Samples is the number of conversions averaged into each reported sample.
	Samples int          `json:"samples,omitempty"`
	Alert   *AlertConfig `json:"alert,omitempty"`
}

// AlertConfig enables the comparator and forwards edges on the ALERT/RDY pin.
type AlertConfig struct {
	Pin        uint32 `json:"pin"`
	LoThresh   uint16 `json:"lo_thresh"`
	HiThresh   uint16 `json:"hi_thresh"`
	Window     bool   `json:"window,omitempty"`
	ActiveHigh bool   `json:"active_high,omitempty"`
	Latching   bool   `json:"latching,omitempty"`
	// Queue is the number of successive out-of-range conversions before the pin asserts.
	Queue int `json:"queue"`
}

var queues = map[int]ads101x.ComparatorQueue{
	1: ads101x.After1,
	2: ads101x.After2,
	4: ads101x.After4,
}

// Validate checks c and fills in defaults.
func (c *Config) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("device id must be given")
	}
	if strings.Contains(c.ID, "#") {
		return fmt.Errorf("device id %q must not contain '#'", c.ID)
	}

	switch c.Transport {
	case Local, Dummy:
	case Daemon:
		if c.DaemonHost == "" {
			c.DaemonHost = daemon.DefaultHost
		}
		if c.DaemonPort == 0 {
			c.DaemonPort = daemon.DefaultPort
		}
	default:
		return fmt.Errorf("device %q: unknown transport %q", c.ID, c.Transport)
	}

	if c.Address == 0 {
		c.Address = ads101x.GND
	}

	if len(c.Channels) == 0 && c.Transport != Dummy {
		return fmt.Errorf("device %q: at least one channel must be given", c.ID)
	}

	if c.Samples == 0 {
		c.Samples = 1
	}
	if c.Samples < 0 {
		return fmt.Errorf("device %q: samples must be at least 1, got %d", c.ID, c.Samples)
	}

	if c.Alert != nil {
		if _, ok := queues[c.Alert.Queue]; !ok {
			return fmt.Errorf("device %q: alert queue must be 1, 2 or 4, got %d", c.ID, c.Alert.Queue)
		}
	}

	return nil
}

// Alert is an edge on a converter's ALERT/RDY pin.
type Alert struct {
	DeviceID  string    `json:"device_id"`
	Pin       uint32    `json:"pin"`
	Level     bool      `json:"level"`
	Timestamp time.Time `json:"timestamp"`
}

type Option func(s *ADS101x)

func WithLogger(log logrus.FieldLogger) Option {
	return func(s *ADS101x) {
		s.log = log
	}
}

// WithAlertHandler sets the function called for each alert edge. It runs on the transport's
// delivery goroutine, so it should hand the Alert off and return.
func WithAlertHandler(h func(Alert)) Option {
	return func(s *ADS101x) {
		s.onAlert = h
	}
}

// WithTransport makes Init use t instead of the transport named by the Config.
func WithTransport(t ads101x.Transport) Option {
	return func(s *ADS101x) {
		s.open = func(ctx context.Context) (ads101x.Transport, io.Closer, error) {
			return t, nil, nil
		}
	}
}

// ADS101x is a sensor.Sensor reading a converter's channels in single-shot mode.
type ADS101x struct {
	cfg     Config
	log     logrus.FieldLogger
	onAlert func(Alert)
	open    func(ctx context.Context) (ads101x.Transport, io.Closer, error)

	mu     sync.Mutex
	drv    *ads101x.Driver
	closer io.Closer
}

// New returns a sensor for the converter described by cfg, which must have been validated.
func New(cfg Config, opts ...Option) *ADS101x {
	s := &ADS101x{
		cfg: cfg,
		log: logrus.StandardLogger(),
	}
	s.open = s.openTransport
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.WithField("device", cfg.ID)
	return s
}

func (s *ADS101x) openTransport(ctx context.Context) (ads101x.Transport, io.Closer, error) {
	switch s.cfg.Transport {
	case Local:
		if err := local.Init(); err != nil {
			return nil, nil, err
		}
		return local.New(local.WithLogger(s.log)), nil, nil
	case Daemon:
		c, err := daemon.Connect(ctx, s.cfg.DaemonHost, s.cfg.DaemonPort)
		if err != nil {
			return nil, nil, err
		}
		return daemon.New(c, daemon.WithLogger(s.log)), c, nil
	}
	return nil, nil, fmt.Errorf("unknown transport %q", s.cfg.Transport)
}

// Init opens the transport, starts the driver and, if configured, programs the comparator
// thresholds and attaches the alert pin. Calling Init again reinitializes the sensor.
func (s *ADS101x) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.shutdown(); err != nil {
		s.log.Warnf("Failed to shut down before init: %v", err)
	}

	t, closer, err := s.open(ctx)
	if err != nil {
		return err
	}
	drv := ads101x.New(t)

	fail := func(err error) error {
		drv.Close()
		if closer != nil {
			closer.Close()
		}
		return err
	}

	if err := drv.Start(s.cfg.Bus, s.cfg.Address); err != nil {
		return fail(err)
	}

	if a := s.cfg.Alert; a != nil {
		if err := drv.WriteLoThresh(a.LoThresh); err != nil {
			return fail(err)
		}
		if err := drv.WriteHiThresh(a.HiThresh); err != nil {
			return fail(err)
		}
		if err := drv.AttachAlert(a.Pin, s.alertFunc(a.Pin)); err != nil {
			return fail(err)
		}
	}

	s.drv = drv
	s.closer = closer
	s.log.WithFields(logrus.Fields{
		"bus":      s.cfg.Bus,
		"address":  s.cfg.Address,
		"channels": len(s.cfg.Channels),
	}).Info("Initialized converter")
	return nil
}

func (s *ADS101x) alertFunc(pin uint32) ads101x.AlertFunc {
	return func(level bool) {
		if s.onAlert == nil {
			return
		}
		s.onAlert(Alert{
			DeviceID:  s.cfg.ID,
			Pin:       pin,
			Level:     level,
			Timestamp: time.Now().UTC(),
		})
	}
}

// configuration returns the single-shot configuration for reading channel.
func (s *ADS101x) configuration(channel ads101x.Multiplexer) ads101x.Configuration {
	c := ads101x.NewConfiguration()
	c.SetMultiplexer(channel)
	c.SetFSR(s.cfg.FSR)
	c.SetDataRate(s.cfg.DataRate)

	a := s.cfg.Alert
	if a == nil {
		c.SetComparatorQueue(ads101x.QueueDisabled)
		return c
	}

	if a.Window {
		c.SetComparatorMode(ads101x.Window)
	} else {
		c.SetComparatorMode(ads101x.Traditional)
	}
	if a.ActiveHigh {
		c.SetComparatorPolarity(ads101x.ActiveHigh)
	} else {
		c.SetComparatorPolarity(ads101x.ActiveLow)
	}
	if a.Latching {
		c.SetComparatorLatch(ads101x.Latching)
	} else {
		c.SetComparatorLatch(ads101x.NonLatching)
	}
	c.SetComparatorQueue(queues[a.Queue])
	return c
}

// Sense reads every channel Samples times and returns the per-channel averages.
func (s *ADS101x) Sense(ctx context.Context) ([]sample.Sample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.drv == nil {
		return nil, fmt.Errorf("sensor %q is not initialized", s.cfg.ID)
	}

	samples := make([]sample.Sample, 0, s.cfg.Samples*len(s.cfg.Channels))
	for i := 0; i < s.cfg.Samples; i++ {
		for _, ch := range s.cfg.Channels {
			raw, err := s.drv.ReadSingleShot(ctx, s.configuration(ch))
			if err != nil {
				return nil, fmt.Errorf("failed to read %v: %w", ch, err)
			}
			samples = append(samples, sample.New(s.cfg.ID, time.Now().UTC(), ch, raw, s.cfg.FSR))
		}
	}

	return sample.Average(samples), nil
}

// Shutdown detaches the alert, stops the driver and closes the transport.
func (s *ADS101x) Shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.shutdown()
}

func (s *ADS101x) shutdown() error {
	if s.drv == nil {
		return nil
	}

	errs := []error{s.drv.Close()}
	if s.closer != nil {
		errs = append(errs, s.closer.Close())
	}
	s.drv = nil
	s.closer = nil
	return errors.Join(errs...)
}
