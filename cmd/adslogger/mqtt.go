package main

import (
	"fmt"
	"os"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/mtraver/ads101x/cmd/adslogger/pending"
	"github.com/sirupsen/logrus"
)

// publishTimeout bounds every wait on the broker, connecting included.
var publishTimeout = 10 * time.Second

func withFileStore(dir string) func(*mqtt.ClientOptions) {
	return func(opts *mqtt.ClientOptions) {
		opts.SetStore(mqtt.NewFileStore(dir))
	}
}

func withConnectionLog(log logrus.FieldLogger) func(*mqtt.ClientOptions) {
	return func(opts *mqtt.ClientOptions) {
		opts.SetOnConnectHandler(func(client mqtt.Client) {
			log.Info("Connected to MQTT broker")
		})
		opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
			log.Warnf("Connection to MQTT broker lost: %v", err)
		})
	}
}

// clientOptions are the options shared by every client the logger makes. Queued messages are
// kept in storeDir, which is created if needed.
func clientOptions(storeDir string, log logrus.FieldLogger) ([]func(*mqtt.ClientOptions), error) {
	if err := os.MkdirAll(storeDir, 0700); err != nil {
		return nil, err
	}
	return []func(*mqtt.ClientOptions){withFileStore(storeDir), withConnectionLog(log)}, nil
}

// newBrokerClient returns an unconnected client for a plain MQTT broker such as Mosquitto.
func newBrokerClient(broker, clientID string, options ...func(*mqtt.ClientOptions)) mqtt.Client {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true)
	for _, o := range options {
		o(opts)
	}
	return mqtt.NewClient(opts)
}

func connect(client mqtt.Client) (mqtt.Client, error) {
	if err := waitToken(client.Connect(), "connect to MQTT broker"); err != nil {
		return nil, err
	}
	return client, nil
}

func waitToken(token mqtt.Token, what string) error {
	if ok := token.WaitTimeout(publishTimeout); !ok {
		return fmt.Errorf("%s: timed out after %v", what, publishTimeout)
	} else if token.Error() != nil {
		return fmt.Errorf("failed to %s: %v", what, token.Error())
	}

	return nil
}

func publish(pub pending.Publisher, topic string, payload []byte) error {
	return waitToken(pub.Publish(topic, 1, false, payload), "publish")
}
