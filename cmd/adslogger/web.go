package main

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/mtraver/ads101x/sample"
	adssensor "github.com/mtraver/ads101x/sensor/ads101x"
)

// status holds what the index page shows.
type status struct {
	mu      sync.Mutex
	samples map[string]sample.Sample
	alerts  map[string]adssensor.Alert
}

func newStatus() *status {
	return &status{
		samples: make(map[string]sample.Sample),
		alerts:  make(map[string]adssensor.Alert),
	}
}

func (s *status) update(samples []sample.Sample) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, smp := range sample.Latest(samples) {
		s.samples[smp.Key()] = smp
	}
}

func (s *status) alert(a adssensor.Alert) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.alerts[a.DeviceID] = a
}

type indexHandler struct {
	devices []string
	status  *status
}

func (h indexHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.status.mu.Lock()
	defer h.status.mu.Unlock()

	for _, id := range h.devices {
		fmt.Fprintf(w, "%s\n", id)
		if a, ok := h.status.alerts[id]; ok {
			fmt.Fprintf(w, "  alert pin %d level %v at %s\n", a.Pin, a.Level, a.Timestamp.Format(time.RFC3339))
		}
	}

	for _, k := range sample.SortedKeys(h.status.samples) {
		fmt.Fprintln(w, h.status.samples[k])
	}
}
