// Program adslogger samples ADS101x converters on a cron schedule and publishes the samples
// over MQTT and to InfluxDB.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/mtraver/ads101x/cmd/adslogger/awsiotcore"
	"github.com/mtraver/ads101x/cmd/adslogger/pending"
	"github.com/mtraver/ads101x/db"
	"github.com/mtraver/ads101x/sensor"
	adssensor "github.com/mtraver/ads101x/sensor/ads101x"
	"github.com/mtraver/ads101x/sensor/dummy"
	cron "github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

// Flags.
var (
	configPath    string
	broker        string
	topic         string
	awsDeviceFile string
	cronSpec      string
	port          int
	dryrun        bool
	debug         bool

	influxURL    string
	influxToken  string
	influxOrg    string
	influxBucket string
)

var (
	// This directory is where we'll store anything the program needs to persist, like the
	// config and samples that are pending upload. This is joined with the user's home directory
	// in init.
	dotDir = ".adslogger"

	// The directory in which the MQTT client stores in-flight messages. It's used to configure
	// an mqtt.NewFileStore. This is joined with the user's home directory in init.
	mqttStoreDir = path.Join(dotDir, "mqtt_store")

	// The directory in which to store samples that failed to publish, e.g. because the network
	// went down. This is joined with the user's home directory in init.
	pendingDir = path.Join(dotDir, "pending")
)

func init() {
	// Update directory and file paths by joining them to the user's home directory.
	home, err := homedir.Dir()
	if err != nil {
		log.Fatalf("Failed to get home dir: %v", err)
	}
	dotDir = path.Join(home, dotDir)
	mqttStoreDir = path.Join(home, mqttStoreDir)
	pendingDir = path.Join(home, pendingDir)

	flag.StringVar(&configPath, "config", path.Join(dotDir, "config.json"), "path to a JSON file describing the converters to sample")
	flag.StringVar(&broker, "broker", "", "MQTT broker URL, e.g. tcp://localhost:1883")
	flag.StringVar(&topic, "topic", "ads101x", "MQTT topic for samples; alerts go to <topic>/alert")
	flag.StringVar(&awsDeviceFile, "aws_device", "", "path to a file containing a JSON-encoded AWS IoT Core device (see github.com/mtraver/awsiotcore)")
	flag.StringVar(&cronSpec, "cronspec", "", "cron spec that specifies when to take and publish samples")
	flag.IntVar(&port, "port", 8080, "port on which the device's web server should listen")
	flag.BoolVar(&dryrun, "dryrun", false, "set to true to print rather than publish samples")
	flag.BoolVar(&debug, "debug", false, "log at debug level")

	flag.StringVar(&influxURL, "influx_url", "", "InfluxDB server URL; samples are also written there if set")
	flag.StringVar(&influxToken, "influx_token", "", "InfluxDB API token")
	flag.StringVar(&influxOrg, "influx_org", "", "InfluxDB organization")
	flag.StringVar(&influxBucket, "influx_bucket", "", "InfluxDB bucket")

	// Make all directories required by the program.
	dirs := []string{dotDir, mqttStoreDir, pendingDir}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0700); err != nil {
			log.Fatalf("Failed to make dir %s: %v", dir, err)
		}
	}
}

func parseFlags() error {
	flag.Parse()

	if cronSpec == "" {
		return fmt.Errorf("cronspec flag must be given")
	}

	if broker != "" && awsDeviceFile != "" {
		return fmt.Errorf("at most one of broker and aws_device may be given")
	}

	if influxURL != "" && (influxOrg == "" || influxBucket == "") {
		return fmt.Errorf("influx_org and influx_bucket must be given with influx_url")
	}

	if !dryrun && broker == "" && awsDeviceFile == "" && influxURL == "" {
		return fmt.Errorf("one of broker, aws_device or influx_url must be given unless dryrun is set")
	}

	return nil
}

func mqttConnect() (mqtt.Client, error) {
	if dryrun || (awsDeviceFile == "" && broker == "") {
		return nil, nil
	}

	if awsDeviceFile == "" {
		options, err := clientOptions(mqttStoreDir, log.WithField("broker", broker))
		if err != nil {
			return nil, err
		}
		return connect(newBrokerClient(broker, "adslogger-"+hostname(), options...))
	}

	device, err := awsiotcore.LoadDevice(awsDeviceFile)
	if err != nil {
		return nil, fmt.Errorf("failed to parse device file: %v", err)
	}
	options, err := clientOptions(mqttStoreDir, log.WithField("aws_device", device.DeviceID))
	if err != nil {
		return nil, err
	}
	client, err := awsiotcore.NewClient(device, options...)
	if err != nil {
		return nil, err
	}
	return connect(client)
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return h
}

// registerSensors registers one sensor per configured device and returns their names.
func registerSensors(cfg Config, alerts *alertForwarder) []string {
	var names []string
	for _, d := range cfg.Devices {
		if d.Transport == adssensor.Dummy {
			sensor.Register(d.ID, dummy.Dummy{DeviceID: d.ID})
		} else {
			sensor.Register(d.ID, adssensor.New(d, adssensor.WithAlertHandler(alerts.handle)))
		}
		names = append(names, d.ID)
	}
	return names
}

func main() {
	if err := parseFlags(); err != nil {
		fmt.Printf("argument error: %v\n", err)
		os.Exit(2)
	}

	if debug {
		log.SetLevel(log.DebugLevel)
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	client, err := mqttConnect()
	if err != nil {
		log.Fatal(err)
	}

	var pub pending.Publisher
	if client != nil {
		pub = client
	}

	var saver Saver
	if influxURL != "" && !dryrun {
		saver = db.NewInfluxDB(influxURL, influxToken, influxOrg, influxBucket)
	}

	st := newStatus()
	alerts := newAlertForwarder(pub, topic, st)
	go alerts.run()

	names := registerSensors(cfg, alerts)
	SetupJob{Sensors: names}.Run()

	// Schedule the sampling routine.
	cr := cron.New()
	log.Infof("Starting cron scheduler with spec %q", cronSpec)
	if _, err := cr.AddJob(cronSpec, SenseJob{
		Sensors:   names,
		Publisher: pub,
		Topic:     topic,
		DB:        saver,
		SpoolDir:  pendingDir,
		Status:    st,
		Dryrun:    dryrun,
	}); err != nil {
		log.Fatalf("Failed to schedule sense job: %v", err)
	}
	cr.Start()

	// If the program is killed, shut down the sensors and disconnect from the MQTT server.
	c := make(chan os.Signal, 2)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		log.Info("Cleaning up...")
		<-cr.Stop().Done()
		ShutdownJob{Sensors: names}.Run()
		alerts.close()
		if client != nil {
			client.Disconnect(250)
			time.Sleep(500 * time.Millisecond)
		}
		os.Exit(1)
	}()

	// Start up a web server that provides basic info about the device.
	http.Handle("/", indexHandler{
		devices: names,
		status:  st,
	})
	if err := http.ListenAndServe(fmt.Sprintf(":%v", port), nil); err != nil {
		log.Fatal(err)
	}
}
