// Program adsread performs one single-shot conversion on an ADS101x and prints the result.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mtraver/ads101x"
	"github.com/mtraver/ads101x/sample"
	"github.com/mtraver/ads101x/transport/daemon"
	"github.com/mtraver/ads101x/transport/local"
	log "github.com/sirupsen/logrus"
)

// Flags.
var (
	transport  string
	daemonHost string
	daemonPort int
	bus        uint
	addr       = ads101x.GND
	mux        = ads101x.MuxAIN0
	fsr        = ads101x.FSR2V048
	rate       = ads101x.SPS1600
	jsonOut    bool
	verbose    bool
)

func init() {
	flag.StringVar(&transport, "transport", "local", "how to reach the bus: local or daemon (pigpiod)")
	flag.StringVar(&daemonHost, "host", daemon.DefaultHost, "pigpiod host, for -transport daemon")
	flag.IntVar(&daemonPort, "dport", daemon.DefaultPort, "pigpiod port, for -transport daemon")
	flag.UintVar(&bus, "bus", 1, "I²C bus number")
	flag.TextVar(&addr, "addr", addr, "slave address: GND, VDD, SDA, SCL or a number such as 0x48")
	flag.TextVar(&mux, "mux", mux, "input multiplexer, e.g. AIN0 or AIN0_AIN1")
	flag.TextVar(&fsr, "fsr", fsr, "full-scale range in volts, e.g. 2.048")
	flag.TextVar(&rate, "rate", rate, "data rate in samples per second")
	flag.BoolVar(&jsonOut, "json", false, "print the sample as JSON rather than the voltage")
	flag.BoolVar(&verbose, "v", false, "log transport activity")
}

func parseFlags() error {
	flag.Parse()

	if transport != "local" && transport != "daemon" {
		return fmt.Errorf("transport must be local or daemon, got %q", transport)
	}

	return nil
}

// newTransport returns the transport named by the flags and a function that releases it.
func newTransport(ctx context.Context, name string) (ads101x.Transport, func() error, error) {
	switch name {
	case "local":
		if err := local.Init(); err != nil {
			return nil, nil, fmt.Errorf("failed to initialize periph: %w", err)
		}
		return local.New(), func() error { return nil }, nil
	case "daemon":
		c, err := daemon.Connect(ctx, daemonHost, daemonPort)
		if err != nil {
			return nil, nil, err
		}
		return daemon.New(c), c.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown transport %q", name)
}

func configuration() ads101x.Configuration {
	cfg := ads101x.NewConfiguration()
	cfg.SetMultiplexer(mux)
	cfg.SetFSR(fsr)
	cfg.SetDataRate(rate)
	cfg.SetComparatorQueue(ads101x.QueueDisabled)
	return cfg
}

func toJSON(s sample.Sample) (string, error) {
	b, err := s.MarshalJSON()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func read(ctx context.Context, t ads101x.Transport) (sample.Sample, error) {
	drv := ads101x.New(t)
	if err := drv.Start(uint32(bus), addr); err != nil {
		return sample.Sample{}, err
	}
	defer drv.Close()

	raw, err := drv.ReadSingleShot(ctx, configuration())
	if err != nil {
		return sample.Sample{}, err
	}
	return sample.New("none", time.Now().UTC(), mux, raw, fsr), nil
}

func main() {
	if err := parseFlags(); err != nil {
		fmt.Printf("argument error: %v\n", err)
		os.Exit(2)
	}

	if verbose {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetOutput(io.Discard)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	t, release, err := newTransport(ctx, transport)
	if err != nil {
		fmt.Printf("Error connecting to converter: %v\n", err)
		os.Exit(1)
	}

	s, err := read(ctx, t)
	release()
	if err != nil {
		fmt.Printf("Failed to read conversion: %v\n", err)
		os.Exit(1)
	}

	if !jsonOut {
		fmt.Println(s.Potential())
		return
	}

	out, err := toJSON(s)
	if err != nil {
		fmt.Printf("Failed to encode sample: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(out)
}
