package mqtt

import (
	"encoding/json"
	"log"
	"strings"
)

// Metric describes one published sensor entity. The table is static:
// unique ids derive only from the device id and the metric key, never
// from timestamps or random values, so they are stable across
// restarts.
type Metric struct {
	Key         string // state topic tail, e.g. "bme280/temperature"
	Name        string // display name
	Unit        string // unit of measurement, empty for text sensors
	DeviceClass string // HA semantic class, optional
	Icon        string // optional mdi icon
}

// Button describes a momentary action control.
type Button struct {
	Key  string // command payload
	Name string
	Icon string
}

// Number describes a numeric range control bound to a calibration
// field.
type Number struct {
	Key  string // calibration field / set topic tail
	Name string
	Unit string
	Min  float64
	Max  float64
	Step float64
}

// Metrics is the full sensor table, one row per published metric.
var Metrics = []Metric{
	{Key: "bme280/temperature", Name: "Temperature", Unit: "°C", DeviceClass: "temperature"},
	{Key: "bme280/humidity", Name: "Humidity", Unit: "%", DeviceClass: "humidity"},
	{Key: "bme280/pressure", Name: "Pressure", Unit: "hPa", DeviceClass: "atmospheric_pressure"},
	{Key: "ltr559/lux", Name: "Illuminance", Unit: "lx", DeviceClass: "illuminance"},
	{Key: "gas/oxidising", Name: "Gas Oxidising (kΩ)", Unit: "kΩ"},
	{Key: "gas/reducing", Name: "Gas Reducing (kΩ)", Unit: "kΩ"},
	{Key: "gas/nh3", Name: "Gas NH3 (kΩ)", Unit: "kΩ"},
	{Key: "host/cpu_temp", Name: "CPU Temp", Unit: "°C", DeviceClass: "temperature"},
	{Key: "host/cpu_usage", Name: "CPU Usage", Unit: "%"},
	{Key: "host/mem_usage", Name: "Mem Usage", Unit: "%"},
	{Key: "host/mem_size", Name: "Mem Size", Unit: "GB"},
	{Key: "host/uptime", Name: "Uptime", Unit: "s", DeviceClass: "duration"},
	{Key: "host/hostname", Name: "Host Name"},
	{Key: "host/network", Name: "Network Address"},
	{Key: "host/os_release", Name: "OS Release"},
	{Key: "meta/last_update", Name: "Last Update"},
}

// Buttons is the momentary action table.
var Buttons = []Button{
	{Key: "reboot", Name: "Reboot", Icon: "mdi:restart"},
	{Key: "shutdown", Name: "Shutdown", Icon: "mdi:power"},
	{Key: "restart_service", Name: "Restart Agent", Icon: "mdi:refresh"},
}

// Numbers is the calibration control table. Bounds match the domains
// enforced by the calibration store.
var Numbers = []Number{
	{Key: "temp_offset", Name: "Temp Offset", Unit: "°C", Min: -10, Max: 10, Step: 0.1},
	{Key: "hum_offset", Name: "Humidity Offset", Unit: "%", Min: -20, Max: 20, Step: 0.5},
	{Key: "cpu_temp_factor", Name: "CPU Temp Factor", Min: 0.1, Max: 10, Step: 0.05},
}

// Document is one discovery config: a topic and its JSON payload.
type Document struct {
	Topic   string
	Payload []byte
}

// BuildDiscoveryDocuments generates the full set of Home Assistant
// discovery documents for a device. Deterministic and side-effect
// free: payloads are marshaled from maps (encoding/json sorts keys),
// so republishing unchanged metadata produces byte-identical output.
func BuildDiscoveryDocuments(topics Topics, discoveryPrefix, swVersion string) []Document {
	deviceID := topics.Root
	device := map[string]interface{}{
		"identifiers":  []string{deviceID},
		"name":         "Enviro+",
		"manufacturer": "Pimoroni",
		"model":        "Enviro+ (no PMS5003)",
		"sw_version":   swVersion,
	}

	docs := make([]Document, 0, len(Metrics)+len(Buttons)+len(Numbers))

	for _, m := range Metrics {
		object := objectID(m.Key)
		cfg := map[string]interface{}{
			"name":               m.Name,
			"unique_id":          deviceID + "_" + object,
			"state_topic":        topics.State(m.Key),
			"availability_topic": topics.Availability,
			"device":             device,
		}
		if m.Unit != "" {
			cfg["unit_of_measurement"] = m.Unit
			// Text sensors carry no state_class
			cfg["state_class"] = "measurement"
		}
		if m.DeviceClass != "" {
			cfg["device_class"] = m.DeviceClass
		}
		if m.Icon != "" {
			cfg["icon"] = m.Icon
		}

		docs = append(docs, Document{
			Topic:   discoveryPrefix + "/sensor/" + deviceID + "/" + object + "/config",
			Payload: mustMarshal(cfg),
		})
	}

	for _, b := range Buttons {
		cfg := map[string]interface{}{
			"name":               b.Name,
			"unique_id":          deviceID + "_btn_" + b.Key,
			"command_topic":      topics.Command,
			"payload_press":      b.Key,
			"availability_topic": topics.Availability,
			"device":             device,
			"icon":               b.Icon,
		}

		docs = append(docs, Document{
			Topic:   discoveryPrefix + "/button/" + deviceID + "/" + b.Key + "/config",
			Payload: mustMarshal(cfg),
		})
	}

	for _, n := range Numbers {
		// The set topic is both command and state topic, so the
		// entity reflects the retained applied value.
		cfg := map[string]interface{}{
			"name":               n.Name,
			"unique_id":          deviceID + "_num_" + n.Key,
			"command_topic":      topics.Set(n.Key),
			"state_topic":        topics.Set(n.Key),
			"availability_topic": topics.Availability,
			"device":             device,
			"min":                n.Min,
			"max":                n.Max,
			"step":               n.Step,
			"mode":               "box",
		}
		if n.Unit != "" {
			cfg["unit_of_measurement"] = n.Unit
		}

		docs = append(docs, Document{
			Topic:   discoveryPrefix + "/number/" + deviceID + "/" + n.Key + "/config",
			Payload: mustMarshal(cfg),
		})
	}

	return docs
}

// PublishDiscovery publishes discovery documents retained. Safe to
// call on every reconnect; unchanged metadata republishes byte-
// identical payloads.
func PublishDiscovery(client *Client, docs []Document, logger *log.Logger) {
	published := 0
	for _, doc := range docs {
		if err := client.Publish(doc.Topic, 1, true, doc.Payload); err != nil {
			if logger != nil {
				logger.Printf("[discovery] Failed to publish %s: %v", doc.Topic, err)
			}
			continue
		}
		published++
	}
	if logger != nil {
		logger.Printf("[discovery] Published %d/%d discovery documents", published, len(docs))
	}
}

// objectID converts a metric key to a discovery object id.
func objectID(metricKey string) string {
	return strings.ReplaceAll(metricKey, "/", "_")
}

// mustMarshal marshals a discovery config map. The tables are static
// and always marshalable; a failure here is a programming error.
func mustMarshal(v map[string]interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}
