package mqtt

// Topics is the per-device topic layout. The root doubles as the
// device identifier and MQTT client ID.
type Topics struct {
	Root         string // e.g. enviro_livingroom
	Availability string // <root>/status, retained online/offline
	Command      string // <root>/cmd, payload reboot|shutdown|restart_service
	SetWildcard  string // <root>/set/+, retained calibration setters
}

// TopicsFor builds the topic layout for a device identifier.
func TopicsFor(deviceID string) Topics {
	return Topics{
		Root:         deviceID,
		Availability: deviceID + "/status",
		Command:      deviceID + "/cmd",
		SetWildcard:  deviceID + "/set/+",
	}
}

// State returns the full state topic for a metric key such as
// "bme280/temperature".
func (t Topics) State(metricKey string) string {
	return t.Root + "/" + metricKey
}

// Set returns the full setter topic for a calibration field.
func (t Topics) Set(field string) string {
	return t.Root + "/set/" + field
}
