package main

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/mtraver/ads101x/cmd/adslogger/pending"
	"github.com/mtraver/ads101x/sample"
	"github.com/mtraver/ads101x/sensor"
	log "github.com/sirupsen/logrus"
)

const defaultSenseTimeout = 30 * time.Second

// Saver stores samples, e.g. in InfluxDB.
type Saver interface {
	Save(ctx context.Context, samples []sample.Sample) error
}

type SetupJob struct {
	Sensors []string
}

func (j SetupJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), defaultSenseTimeout)
	defer cancel()

	for _, name := range j.Sensors {
		s, err := sensor.Get(name)
		if err != nil {
			log.Errorf("Error getting sensor %q: %v", name, err)
			continue
		}
		if err := s.Init(ctx); err != nil {
			log.WithField("device", name).Errorf("Failed to init: %v", err)
			continue
		}
	}
}

type SenseJob struct {
	Sensors []string
	// Publisher may be nil, in which case samples are only saved to DB.
	Publisher pending.Publisher
	Topic     string
	DB        Saver
	SpoolDir  string
	Status    *status
	Dryrun    bool
	Timeout   time.Duration
}

func (j SenseJob) Run() {
	timeout := j.Timeout
	if timeout == 0 {
		timeout = defaultSenseTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var samples []sample.Sample
	for _, name := range j.Sensors {
		s, err := sensor.Get(name)
		if err != nil {
			log.Errorf("Error getting sensor %q: %v", name, err)
			continue
		}
		ss, err := s.Sense(ctx)
		if err != nil {
			log.WithField("device", name).Errorf("Failed to take samples: %v", err)
			continue
		}
		samples = append(samples, ss...)
	}

	if len(samples) == 0 {
		log.Warn("Took no samples, will not publish")
		return
	}

	if j.Status != nil {
		j.Status.update(samples)
	}

	if j.Dryrun {
		for _, s := range samples {
			log.Info(s.String())
		}
		return
	}

	if j.DB != nil {
		if err := j.DB.Save(ctx, samples); err != nil {
			log.Errorf("Failed to save samples to DB: %v", err)
		}
	}

	if j.Publisher != nil {
		if err := j.publish(samples); err != nil {
			log.Errorf("Failed to publish samples: %v", err)
		}
	}
}

// publish sends each sample concurrently. Nothing is sent unless every sample encodes. Samples that fail to send are spooled to disk, and if
// everything went out the spool is drained.
func (j SenseJob) publish(samples []sample.Sample) error {
	payloads := make([][]byte, len(samples))
	for i, s := range samples {
		b, err := json.Marshal(s)
		if err != nil {
			return err
		}
		payloads[i] = b
	}

	var wg sync.WaitGroup

	errs := make(chan error, 2*len(samples))

	for i, s := range samples {
		wg.Add(1)
		go func(s sample.Sample, b []byte) {
			defer wg.Done()

			if err := publish(j.Publisher, j.Topic, b); err != nil {
				errs <- err
				if err := pending.Save(s, j.SpoolDir); err != nil {
					errs <- err
				}
				return
			}
			log.WithFields(log.Fields{"device": s.DeviceID, "channel": s.Channel}).Debug("Successful publish")
		}(s, payloads[i])
	}

	wg.Wait()
	close(errs)

	errSlice := []error{}
	for e := range errs {
		errSlice = append(errSlice, e)
	}
	if len(errSlice) > 0 {
		return errors.Join(errSlice...)
	}

	n, err := pending.PublishAll(j.Publisher, j.Topic, j.SpoolDir)
	if n > 0 {
		log.Infof("Published %d pending samples", n)
	}
	return err
}

type ShutdownJob struct {
	Sensors []string
}

func (j ShutdownJob) Run() {
	for _, name := range j.Sensors {
		s, err := sensor.Get(name)
		if err != nil {
			log.Errorf("Error getting sensor %q: %v", name, err)
			continue
		}
		if err := s.Shutdown(); err != nil {
			log.WithField("device", name).Errorf("Failed to shut down: %v", err)
			continue
		}
	}
}
