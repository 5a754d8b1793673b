// Package config provides agent configuration with env-file persistence.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Environment variable names
const (
	EnvMQTTBroker      = "ENVIRO_MQTT_BROKER"
	EnvMQTTUsername    = "ENVIRO_MQTT_USERNAME"
	EnvMQTTPassword    = "ENVIRO_MQTT_PASSWORD"
	EnvMQTTUseTLS      = "ENVIRO_MQTT_USE_TLS"
	EnvDiscoveryPrefix = "ENVIRO_DISCOVERY_PREFIX"
	EnvPollInterval    = "ENVIRO_POLL_SEC"
	EnvTempOffset      = "ENVIRO_TEMP_OFFSET"
	EnvHumOffset       = "ENVIRO_HUM_OFFSET"
	EnvCPUTempFactor   = "ENVIRO_CPU_TEMP_FACTOR"
	EnvAPIAddr         = "ENVIRO_API_ADDR"
	EnvDataPath        = "ENVIRO_DATA_PATH"
	EnvSimulate        = "ENVIRO_SIMULATE_SENSORS"
)

// Default values
const (
	DefaultMQTTBroker      = "tcp://homeassistant.local:1883"
	DefaultDiscoveryPrefix = "homeassistant"
	DefaultPollInterval    = 2 * time.Second
	DefaultTempOffset      = 0.0
	DefaultHumOffset       = 0.0
	DefaultCPUTempFactor   = 0.55
	DefaultAPIAddr         = "127.0.0.1:8099"
	DefaultDataPath        = "enviroagent.db"
	DefaultSimulate        = false
)

// Config holds all agent configuration.
// All access should be through getter methods for thread safety.
type Config struct {
	mu       sync.RWMutex
	filePath string

	mqttBroker      string
	mqttUsername    string
	mqttPassword    string
	mqttUseTLS      bool
	discoveryPrefix string
	pollInterval    time.Duration
	tempOffset      float64
	humOffset       float64
	cpuTempFactor   float64
	apiAddr         string
	dataPath        string
	simulate        bool
}

// Load loads configuration for the given env file path.
// Precedence: compiled-in defaults, then the file, then process
// environment variables. A missing file is not an error; it will be
// created on the first calibration write-back.
func Load(filePath string) (*Config, error) {
	cfg := &Config{
		filePath: filePath,
	}

	cfg.setDefaults()

	if err := cfg.loadFromFile(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	cfg.applyProcessEnv()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) setDefaults() {
	c.mqttBroker = DefaultMQTTBroker
	c.mqttUsername = ""
	c.mqttPassword = ""
	c.mqttUseTLS = false
	c.discoveryPrefix = DefaultDiscoveryPrefix
	c.pollInterval = DefaultPollInterval
	c.tempOffset = DefaultTempOffset
	c.humOffset = DefaultHumOffset
	c.cpuTempFactor = DefaultCPUTempFactor
	c.apiAddr = DefaultAPIAddr
	c.dataPath = DefaultDataPath
	c.simulate = DefaultSimulate
}

func (c *Config) loadFromFile() error {
	file, err := os.Open(c.filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	values, err := ParseEnvFile(file)
	if err != nil {
		return err
	}

	c.applyValues(values)
	return nil
}

// applyProcessEnv lets real environment variables override the file,
// matching how the agent is configured under systemd EnvironmentFile.
func (c *Config) applyProcessEnv() {
	env := make(map[string]string)
	for _, key := range []string{
		EnvMQTTBroker, EnvMQTTUsername, EnvMQTTPassword, EnvMQTTUseTLS,
		EnvDiscoveryPrefix, EnvPollInterval, EnvTempOffset, EnvHumOffset,
		EnvCPUTempFactor, EnvAPIAddr, EnvDataPath, EnvSimulate,
	} {
		if v, ok := os.LookupEnv(key); ok {
			env[key] = v
		}
	}
	c.applyValues(env)
}

// applyValues applies parsed key-value pairs to config.
func (c *Config) applyValues(values map[string]string) {
	if v, ok := values[EnvMQTTBroker]; ok && v != "" {
		c.mqttBroker = v
	}
	if v, ok := values[EnvMQTTUsername]; ok {
		c.mqttUsername = v
	}
	if v, ok := values[EnvMQTTPassword]; ok {
		c.mqttPassword = v
	}
	if v, ok := values[EnvMQTTUseTLS]; ok {
		c.mqttUseTLS = parseBool(v)
	}
	if v, ok := values[EnvDiscoveryPrefix]; ok && v != "" {
		c.discoveryPrefix = v
	}
	if v, ok := values[EnvPollInterval]; ok && v != "" {
		if secs, err := strconv.ParseFloat(v, 64); err == nil && secs > 0 {
			c.pollInterval = time.Duration(secs * float64(time.Second))
		}
	}
	if v, ok := values[EnvTempOffset]; ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.tempOffset = f
		}
	}
	if v, ok := values[EnvHumOffset]; ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.humOffset = f
		}
	}
	if v, ok := values[EnvCPUTempFactor]; ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.cpuTempFactor = f
		}
	}
	if v, ok := values[EnvAPIAddr]; ok {
		c.apiAddr = v
	}
	if v, ok := values[EnvDataPath]; ok && v != "" {
		c.dataPath = v
	}
	if v, ok := values[EnvSimulate]; ok {
		c.simulate = parseBool(v)
	}
}

// validate checks if configuration is valid.
func (c *Config) validate() error {
	if c.mqttBroker == "" {
		return errors.New("MQTT broker address cannot be empty")
	}
	if !strings.Contains(c.mqttBroker, "://") {
		return fmt.Errorf("MQTT broker address must include a scheme (e.g. tcp://): %s", c.mqttBroker)
	}

	if c.pollInterval < 500*time.Millisecond {
		return fmt.Errorf("poll interval too short: %v", c.pollInterval)
	}
	if c.pollInterval > time.Hour {
		return fmt.Errorf("poll interval too long: %v", c.pollInterval)
	}

	for name, v := range map[string]float64{
		"temp offset":     c.tempOffset,
		"humidity offset": c.humOffset,
		"CPU temp factor": c.cpuTempFactor,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s is not a finite number", name)
		}
	}

	return nil
}

// Save writes current configuration to the env file.
func (c *Config) Save() error {
	c.mu.RLock()
	values := c.toMap()
	filePath := c.filePath
	c.mu.RUnlock()

	return WriteEnvFile(filePath, values)
}

// toMap converts config to key-value map for saving.
func (c *Config) toMap() map[string]string {
	return map[string]string{
		EnvMQTTBroker:      c.mqttBroker,
		EnvMQTTUsername:    c.mqttUsername,
		EnvMQTTPassword:    c.mqttPassword,
		EnvMQTTUseTLS:      strconv.FormatBool(c.mqttUseTLS),
		EnvDiscoveryPrefix: c.discoveryPrefix,
		EnvPollInterval:    strconv.FormatFloat(c.pollInterval.Seconds(), 'f', -1, 64),
		EnvTempOffset:      strconv.FormatFloat(c.tempOffset, 'f', -1, 64),
		EnvHumOffset:       strconv.FormatFloat(c.humOffset, 'f', -1, 64),
		EnvCPUTempFactor:   strconv.FormatFloat(c.cpuTempFactor, 'f', -1, 64),
		EnvAPIAddr:         c.apiAddr,
		EnvDataPath:        c.dataPath,
		EnvSimulate:        strconv.FormatBool(c.simulate),
	}
}

// Getters (thread-safe)

// MQTTBroker returns the MQTT broker address.
func (c *Config) MQTTBroker() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mqttBroker
}

// MQTTUsername returns the MQTT username.
func (c *Config) MQTTUsername() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mqttUsername
}

// MQTTPassword returns the MQTT password.
func (c *Config) MQTTPassword() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mqttPassword
}

// MQTTUseTLS returns whether TLS is enabled for MQTT.
func (c *Config) MQTTUseTLS() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mqttUseTLS
}

// DiscoveryPrefix returns the Home Assistant discovery prefix.
func (c *Config) DiscoveryPrefix() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.discoveryPrefix
}

// PollInterval returns the sensor poll interval.
func (c *Config) PollInterval() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pollInterval
}

// TempOffset returns the configured temperature offset in °C.
func (c *Config) TempOffset() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tempOffset
}

// HumOffset returns the configured humidity offset in %.
func (c *Config) HumOffset() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.humOffset
}

// CPUTempFactor returns the CPU heat compensation factor.
func (c *Config) CPUTempFactor() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cpuTempFactor
}

// APIAddr returns the local diagnostics API listen address.
// Empty disables the API.
func (c *Config) APIAddr() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.apiAddr
}

// DataPath returns the bolt database path.
func (c *Config) DataPath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dataPath
}

// Simulate returns whether the simulated sensor source is selected.
func (c *Config) Simulate() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.simulate
}

// FilePath returns the path to the env file.
func (c *Config) FilePath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.filePath
}

// SetCalibration updates the persisted calibration values and rewrites
// the env file atomically. Values are validated by the calibration
// store before they reach this point.
func (c *Config) SetCalibration(tempOffset, humOffset, cpuTempFactor float64) error {
	c.mu.Lock()
	c.tempOffset = tempOffset
	c.humOffset = humOffset
	c.cpuTempFactor = cpuTempFactor
	c.mu.Unlock()

	return c.Save()
}

// parseBool parses a boolean string value.
// Accepts: true, false, 1, 0, yes, no, on, off (case-insensitive)
func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "on":
		return true
	default:
		return false
	}
}
