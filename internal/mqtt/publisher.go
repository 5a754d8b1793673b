package mqtt

import (
	"encoding/json"
	"log"
	"strconv"
	"time"

	"enviroagent/internal/calibration"
)

// Availability payloads
const (
	PayloadOnline  = "online"
	PayloadOffline = "offline"
)

const offlineTimeout = 2 * time.Second

// StatePublisher publishes the device's retained state topics.
type StatePublisher struct {
	client *Client
	topics Topics
	logger *log.Logger
}

// NewStatePublisher creates a StatePublisher for the device's topics.
func NewStatePublisher(client *Client, topics Topics, logger *log.Logger) *StatePublisher {
	return &StatePublisher{
		client: client,
		topics: topics,
		logger: logger,
	}
}

// Topics returns the publisher's topic layout.
func (p *StatePublisher) Topics() Topics {
	return p.topics
}

// PublishValue publishes one metric value retained, so a late
// subscriber immediately receives the last-known reading.
func (p *StatePublisher) PublishValue(metricKey, value string) error {
	err := p.client.Publish(p.topics.State(metricKey), 1, true, value)
	if err != nil && p.logger != nil {
		p.logger.Printf("[publisher] Failed to publish %s: %v", metricKey, err)
	}
	return err
}

// PublishOnline marks the device available.
func (p *StatePublisher) PublishOnline() error {
	return p.client.Publish(p.topics.Availability, 1, true, PayloadOnline)
}

// PublishOffline marks the device unavailable. Bounded wait: this runs
// on shutdown and command paths that must not hang.
func (p *StatePublisher) PublishOffline() error {
	err := p.client.PublishTimeout(p.topics.Availability, 1, true, PayloadOffline, offlineTimeout)
	if err != nil && p.logger != nil {
		p.logger.Printf("[publisher] Failed to publish offline: %v", err)
	}
	return err
}

// PublishSetValue republishes a calibration value retained on its set
// topic. The set topic is also the HA number entity's state topic, so
// consumers see the applied value, not the requested one.
func (p *StatePublisher) PublishSetValue(field string, value float64) error {
	payload := strconv.FormatFloat(value, 'f', -1, 64)
	err := p.client.Publish(p.topics.Set(field), 1, true, payload)
	if err != nil && p.logger != nil {
		p.logger.Printf("[publisher] Failed to publish set/%s: %v", field, err)
	}
	return err
}

// PublishCalibration republishes all calibration values retained.
// Called on every (re)connect so HA shows the current values.
func (p *StatePublisher) PublishCalibration(params calibration.Params) {
	p.PublishSetValue(calibration.FieldTempOffset, params.TempOffsetC)
	p.PublishSetValue(calibration.FieldHumOffset, params.HumOffsetPct)
	p.PublishSetValue(calibration.FieldCPUTempFactor, params.CPUTempFactor)
}

// PublishDeviceAttributes publishes the static device attribute block
// retained (model and serial, read once at startup).
func (p *StatePublisher) PublishDeviceAttributes(model, serial string) error {
	payload, err := json.Marshal(map[string]string{
		"model":  model,
		"serial": serial,
	})
	if err != nil {
		return err
	}

	err = p.client.Publish(p.topics.Root+"/device/attributes", 1, true, payload)
	if err != nil && p.logger != nil {
		p.logger.Printf("[publisher] Failed to publish device attributes: %v", err)
	}
	return err
}

// FormatValue renders a metric value for publication. Floats are
// published in their shortest decimal form; rounding to 2 decimals
// happens in the compensation engine.
func FormatValue(v interface{}) string {
	switch val := v.(type) {
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(val, 10)
	case string:
		return val
	default:
		return ""
	}
}
