// Package awsiotcore builds MQTT clients for devices registered with AWS IoT Core.
package awsiotcore

import (
	"encoding/json"
	"fmt"
	"os"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	aic "github.com/mtraver/awsiotcore"
)

// LoadDevice reads a JSON-encoded device. A device without an ID takes the one derived from
// its certificate.
func LoadDevice(path string) (aic.Device, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return aic.Device{}, err
	}

	var device aic.Device
	if err := json.Unmarshal(b, &device); err != nil {
		return aic.Device{}, fmt.Errorf("%s: %v", path, err)
	}
	if device.CertPath == "" {
		return aic.Device{}, fmt.Errorf("%s: device has no certificate path", path)
	}

	if device.DeviceID == "" {
		id, err := aic.DeviceIDFromCert(device.CertPath)
		if err != nil {
			return aic.Device{}, err
		}
		device.DeviceID = id
	}

	return device, nil
}

// adapt turns plain client options into the form aic.Device.NewClient takes.
func adapt(options []func(*mqtt.ClientOptions)) []func(*aic.Device, *mqtt.ClientOptions) error {
	out := make([]func(*aic.Device, *mqtt.ClientOptions) error, 0, len(options))
	for _, o := range options {
		o := o
		out = append(out, func(_ *aic.Device, opts *mqtt.ClientOptions) error {
			o(opts)
			return nil
		})
	}
	return out
}

// NewClient returns an unconnected client for device with options applied on top of the
// endpoint, credentials and client ID the device carries.
func NewClient(device aic.Device, options ...func(*mqtt.ClientOptions)) (mqtt.Client, error) {
	client, err := device.NewClient(adapt(options)...)
	if err != nil {
		return nil, fmt.Errorf("failed to make MQTT client for %s: %v", device.DeviceID, err)
	}
	return client, nil
}
