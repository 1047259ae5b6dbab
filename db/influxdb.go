// Package db writes samples to InfluxDB.
package db

import (
	"context"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/mtraver/ads101x/sample"
)

const measurementName = "adc"

func newInfluxDBPoints(samples []sample.Sample) []*write.Point {
	points := make([]*write.Point, 0, len(samples))
	for _, s := range samples {
		p := influxdb2.NewPointWithMeasurement(measurementName).
			AddTag("device", s.DeviceID).
			AddTag("channel", s.Channel.String()).
			AddField("raw", int64(s.Raw)).
			AddField("volts", s.Volts).
			SetTime(s.Timestamp)
		points = append(points, p)
	}

	return points
}

type InfluxDB struct {
	serverURL string
	token     string
	org       string
	bucket    string
}

func NewInfluxDB(serverURL, token, org, bucket string) *InfluxDB {
	return &InfluxDB{
		serverURL: serverURL,
		token:     token,
		org:       org,
		bucket:    bucket,
	}
}

// Save writes the samples and waits for the server to accept them.
func (db *InfluxDB) Save(ctx context.Context, samples []sample.Sample) error {
	if len(samples) == 0 {
		return nil
	}

	client := influxdb2.NewClient(db.serverURL, db.token)
	defer client.Close()

	writeAPI := client.WriteAPIBlocking(db.org, db.bucket)
	return writeAPI.WritePoint(ctx, newInfluxDBPoints(samples)...)
}
