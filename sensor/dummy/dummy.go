package dummy

import (
	"context"
	"time"

	"github.com/mtraver/ads101x"
	"github.com/mtraver/ads101x/sample"
	"github.com/sirupsen/logrus"
)

// Dummy stands in for a converter when no hardware is attached. Each Sense returns one
// mid-scale sample on AIN0.
type Dummy struct {
	DeviceID string
	Log      logrus.FieldLogger
}

func (d Dummy) logger() logrus.FieldLogger {
	if d.Log == nil {
		return logrus.StandardLogger()
	}
	return d.Log
}

func (d Dummy) Init(ctx context.Context) error {
	d.logger().WithField("device", d.DeviceID).Info("DUMMY SENSOR INIT")
	return nil
}

func (d Dummy) Sense(ctx context.Context) ([]sample.Sample, error) {
	d.logger().WithField("device", d.DeviceID).Info("DUMMY SENSOR SENSE")
	return []sample.Sample{
		sample.New(d.DeviceID, time.Now().UTC(), ads101x.MuxAIN0, 0x400, ads101x.FSR2V048),
	}, nil
}

func (d Dummy) Shutdown() error {
	d.logger().WithField("device", d.DeviceID).Info("DUMMY SENSOR SHUTDOWN")
	return nil
}
