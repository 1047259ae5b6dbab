package main

import (
	"encoding/json"

	"github.com/mtraver/ads101x/cmd/adslogger/pending"
	adssensor "github.com/mtraver/ads101x/sensor/ads101x"
	log "github.com/sirupsen/logrus"
)

const alertQueueSize = 64

// alertForwarder moves alerts off the transports' delivery goroutines and publishes them.
type alertForwarder struct {
	pub    pending.Publisher
	topic  string
	status *status
	alerts chan adssensor.Alert
	done   chan struct{}
}

func newAlertForwarder(pub pending.Publisher, topic string, st *status) *alertForwarder {
	return &alertForwarder{
		pub:    pub,
		topic:  topic + "/alert",
		status: st,
		alerts: make(chan adssensor.Alert, alertQueueSize),
		done:   make(chan struct{}),
	}
}

// handle queues a, dropping it if the queue is full. It never blocks.
func (f *alertForwarder) handle(a adssensor.Alert) {
	select {
	case f.alerts <- a:
	default:
		log.WithField("device", a.DeviceID).Warn("Alert queue full, dropping alert")
	}
}

func (f *alertForwarder) run() {
	defer close(f.done)

	for a := range f.alerts {
		if f.status != nil {
			f.status.alert(a)
		}

		l := log.WithFields(log.Fields{"device": a.DeviceID, "pin": a.Pin, "level": a.Level})
		if f.pub == nil {
			l.Info("Alert")
			continue
		}

		b, err := json.Marshal(a)
		if err != nil {
			l.Errorf("Failed to marshal alert: %v", err)
			continue
		}
		if err := publish(f.pub, f.topic, b); err != nil {
			l.Errorf("Failed to publish alert: %v", err)
		}
	}
}

// close stops the forwarder once queued alerts are published. handle must not be called after.
func (f *alertForwarder) close() {
	close(f.alerts)
	<-f.done
}
