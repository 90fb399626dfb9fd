package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/nightcharge/nightcharge/internal/config"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

const (
	PayloadOn  = "ON"
	PayloadOff = "OFF"

	defaultTimeout = 10 * time.Second
)

func OptsFromConfig(cfg *config.MQTTConfig) *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Host, cfg.Port))
	opts.SetClientID(fmt.Sprintf("nightcharge_%d", rand.Intn(1000)))
	if cfg.Username != "" && cfg.Password != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	return opts
}

// Client wraps the paho client with the synchronous, timeout-bounded calls a
// run-to-completion process wants. Publishing is best effort: a failed
// publish never unwinds a decision that was already made.
type Client struct {
	client  mqtt.Client
	cfg     config.MQTTConfig
	timeout time.Duration
	logger  *zap.Logger
}

func NewClient(cfg config.MQTTConfig, logger *zap.Logger) *Client {
	return &Client{
		client:  mqtt.NewClient(OptsFromConfig(&cfg)),
		cfg:     cfg,
		timeout: defaultTimeout,
		logger:  logger,
	}
}

func (c *Client) Connect() error {
	token := c.client.Connect()
	if !token.WaitTimeout(c.timeout) {
		return errors.New("MQTT connect timed out")
	}
	return token.Error()
}

func (c *Client) Disconnect() {
	c.client.Disconnect(uint(c.timeout.Milliseconds()))
}

// Publish sends a payload and waits for broker confirmation. Non-string
// payloads are JSON-encoded.
func (c *Client) Publish(topic string, payload any, qos byte, retain bool) error {
	var data []byte
	switch p := payload.(type) {
	case string:
		data = []byte(p)
	case []byte:
		data = p
	default:
		var err error
		data, err = json.Marshal(p)
		if err != nil {
			return err
		}
	}
	token := c.client.Publish(topic, qos, retain, data)
	if !token.WaitTimeout(c.timeout) {
		return fmt.Errorf("MQTT publish to %s timed out", topic)
	}
	return token.Error()
}

func (c *Client) BaseTopic() string {
	return c.cfg.BaseTopic
}

func (c *Client) StatusTopic() string {
	return fmt.Sprintf("%s/status", c.cfg.BaseTopic)
}

func (c *Client) ValueTopic(key string) string {
	return fmt.Sprintf("%s/%s", c.cfg.BaseTopic, key)
}

// BoolPayload encodes a boolean as the two-valued token Home Assistant
// binary sensors expect.
func BoolPayload(b bool) string {
	if b {
		return PayloadOn
	}
	return PayloadOff
}
