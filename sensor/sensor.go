package sensor

import (
	"context"
	"fmt"
	"sync"

	"github.com/mtraver/ads101x/sample"
)

var (
	sensorsMu sync.Mutex
	sensors   map[string]Sensor
)

type Sensor interface {
	// Init performs any sensor-specific initialization, such as opening the bus.
	Init(ctx context.Context) error
	// Sense reads the sensor and returns one sample per channel it measures.
	Sense(ctx context.Context) ([]sample.Sample, error)
	// Shutdown performs any sensor-specific shutdown or cleanup operations.
	Shutdown() error
}

// Register adds a Sensor to the set of available sensors.
func Register(name string, s Sensor) {
	sensorsMu.Lock()
	defer sensorsMu.Unlock()

	if sensors == nil {
		sensors = make(map[string]Sensor)
	}
	sensors[name] = s
}

// Get looks up a sensor by name. It returns an error if no sensor with
// the given name is found.
func Get(name string) (Sensor, error) {
	sensorsMu.Lock()
	defer sensorsMu.Unlock()

	if _, ok := sensors[name]; !ok {
		return nil, fmt.Errorf("unknown sensor %q", name)
	}
	return sensors[name], nil
}

// Unregister removes a sensor. It does nothing if no sensor with the given name is registered.
func Unregister(name string) {
	sensorsMu.Lock()
	defer sensorsMu.Unlock()

	delete(sensors, name)
}
