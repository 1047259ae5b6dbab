package main

import (
	"encoding/json"
	"fmt"
	"os"

	adssensor "github.com/mtraver/ads101x/sensor/ads101x"
)

// Config is the contents of the -config file.
type Config struct {
	Devices []adssensor.Config `json:"devices"`
}

func parseConfig(b []byte) (Config, error) {
	var c Config
	if err := json.Unmarshal(b, &c); err != nil {
		return Config{}, err
	}

	if len(c.Devices) == 0 {
		return Config{}, fmt.Errorf("no devices configured")
	}

	seen := make(map[string]bool)
	for i := range c.Devices {
		d := &c.Devices[i]
		if err := d.Validate(); err != nil {
			return Config{}, err
		}
		if seen[d.ID] {
			return Config{}, fmt.Errorf("duplicate device id %q", d.ID)
		}
		seen[d.ID] = true
	}

	return c, nil
}

func loadConfig(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	c, err := parseConfig(b)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}
