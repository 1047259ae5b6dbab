// Package pending spools samples that failed to publish and republishes them later.
package pending

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/mtraver/ads101x/sample"
)

const fileExt = ".json"

var waitDur = 10 * time.Second

// Publisher is the part of mqtt.Client used for publishing.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Save converts the given Sample to JSON and saves it to disk. Saving the same Sample twice
// leaves one file.
func Save(s sample.Sample, dir string) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}

	filename := fmt.Sprintf("%x%s", sha256.Sum256(b), fileExt)
	return os.WriteFile(filepath.Join(dir, filename), b, 0644)
}

// PublishAll reads any Samples saved to disk and attempts to publish
// them using the given publisher. It returns the first error encountered,
// or nil if all publishes succeed. Published files are removed.
func PublishAll(pub Publisher, topic string, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), fileExt) {
			continue
		}

		path := filepath.Join(dir, e.Name())
		if err := publish(pub, topic, path); err != nil {
			return count, err
		}
		if err := os.Remove(path); err != nil {
			return count, err
		}
		count++
	}

	return count, nil
}

func publish(pub Publisher, topic string, path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var s sample.Sample
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("pending: %s: %w", filepath.Base(path), err)
	}

	// Set the upload timestamp, since this is a delayed upload.
	s.UploadTimestamp = time.Now().UTC()

	payload, err := json.Marshal(s)
	if err != nil {
		return err
	}

	token := pub.Publish(topic, 1, false, payload)
	if ok := token.WaitTimeout(waitDur); !ok {
		return fmt.Errorf("pending: publish timed out after %v", waitDur)
	} else if token.Error() != nil {
		return fmt.Errorf("pending: publish failed: %v", token.Error())
	}

	return nil
}
