// Package mqtt provides the agent's MQTT transport: connection
// management, retained state publishing and Home Assistant discovery.
package mqtt

import (
	"crypto/tls"
	"fmt"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Config holds MQTT client configuration
type Config struct {
	Broker   string // MQTT broker address (e.g., "tcp://localhost:1883")
	ClientID string // Unique client ID
	Username string // MQTT username (optional)
	Password string // MQTT password (optional)
	UseTLS   bool   // Enable TLS connection

	// Last-will registered before connecting; the broker publishes it
	// retained if the agent disconnects uncleanly.
	WillTopic   string
	WillPayload string
}

// MessageHandler receives inbound messages. It is invoked from the
// paho delivery goroutine and must not panic.
type MessageHandler func(topic string, payload []byte)

// Client wraps the paho MQTT client with additional functionality
type Client struct {
	client   mqtt.Client
	config   Config
	mu       sync.RWMutex
	logger   *log.Logger
	isActive bool

	onConnect func()
}

// New creates a new MQTT client
func New(cfg Config, logger *log.Logger) (*Client, error) {
	if cfg.Broker == "" {
		return nil, fmt.Errorf("MQTT broker address is required")
	}

	if cfg.ClientID == "" {
		cfg.ClientID = fmt.Sprintf("enviroagent-%d", time.Now().Unix())
	}

	c := &Client{
		config: cfg,
		logger: logger,
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}

	if cfg.UseTLS {
		tlsConfig := &tls.Config{
			InsecureSkipVerify: false,
		}
		opts.SetTLSConfig(tlsConfig)
	}

	if cfg.WillTopic != "" {
		opts.SetWill(cfg.WillTopic, cfg.WillPayload, 1, true)
	}

	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		if c.logger != nil {
			c.logger.Printf("[MQTT] Connection lost: %v", err)
		}
	})

	opts.SetOnConnectHandler(func(client mqtt.Client) {
		if c.logger != nil {
			c.logger.Printf("[MQTT] Connected to broker: %s", cfg.Broker)
		}
		c.mu.RLock()
		hook := c.onConnect
		c.mu.RUnlock()
		if hook != nil {
			hook()
		}
	})

	opts.SetReconnectingHandler(func(client mqtt.Client, options *mqtt.ClientOptions) {
		if c.logger != nil {
			c.logger.Printf("[MQTT] Attempting to reconnect...")
		}
	})

	// Auto-reconnect settings
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(10 * time.Second)

	// Keep alive settings
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	opts.SetCleanSession(true)

	c.client = mqtt.NewClient(opts)
	return c, nil
}

// SetOnConnect registers a hook invoked on every (re)connect. The
// agent uses it to republish discovery and retained state so a
// consumer that joined mid-outage resynchronizes. Must be set before
// Connect.
func (c *Client) SetOnConnect(hook func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onConnect = hook
}

// Connect establishes connection to the MQTT broker
func (c *Client) Connect() error {
	c.mu.Lock()
	if c.isActive {
		c.mu.Unlock()
		return nil // Already connected
	}
	c.isActive = true
	c.mu.Unlock()

	if c.logger != nil {
		c.logger.Printf("[MQTT] Connecting to broker: %s", c.config.Broker)
	}

	token := c.client.Connect()
	if token.Wait() && token.Error() != nil {
		c.mu.Lock()
		c.isActive = false
		c.mu.Unlock()
		return fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	return nil
}

// Disconnect closes connection to the MQTT broker
func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.isActive {
		return
	}

	c.client.Disconnect(250) // Wait up to 250ms for graceful disconnect
	c.isActive = false

	if c.logger != nil {
		c.logger.Printf("[MQTT] Disconnected from broker")
	}
}

// Publish publishes a message with explicit QoS and retained settings.
func (c *Client) Publish(topic string, qos byte, retained bool, payload interface{}) error {
	c.mu.RLock()
	active := c.isActive
	c.mu.RUnlock()

	if !active {
		return fmt.Errorf("MQTT client is not connected")
	}

	token := c.client.Publish(topic, qos, retained, payload)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to publish message: %w", token.Error())
	}

	return nil
}

// PublishTimeout publishes without waiting longer than timeout for the
// broker acknowledgment. Used on the shutdown path so the final
// offline publish cannot hang the process.
func (c *Client) PublishTimeout(topic string, qos byte, retained bool, payload interface{}, timeout time.Duration) error {
	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("publish to %s timed out after %v", topic, timeout)
	}
	if token.Error() != nil {
		return fmt.Errorf("failed to publish message: %w", token.Error())
	}
	return nil
}

// Subscribe registers handler for topic. The handler is wrapped so a
// panic in message handling never tears down the paho delivery
// goroutine.
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	token := c.client.Subscribe(topic, qos, func(_ mqtt.Client, msg mqtt.Message) {
		defer func() {
			if r := recover(); r != nil && c.logger != nil {
				c.logger.Printf("[MQTT] Panic handling message on %s: %v", msg.Topic(), r)
			}
		}()
		handler(msg.Topic(), msg.Payload())
	})

	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", topic, token.Error())
	}

	if c.logger != nil {
		c.logger.Printf("[MQTT] Subscribed to %s (QoS %d)", topic, qos)
	}

	return nil
}

// IsConnected returns true if client is connected to the broker
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isActive && c.client.IsConnected()
}

// GetConfig returns the current MQTT configuration
func (c *Client) GetConfig() Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.config
}
