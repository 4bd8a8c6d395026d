// Package mqtt publishes the relay state and the computed solar events to an
// MQTT broker, with Home Assistant discovery messages.
package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/devskill-org/dusk-lights/lighting"
)

const (
	connectWait = 5 * time.Second
	publishWait = 2 * time.Second
)

// ErrNotConnected is returned by publishes made while the broker is down
var ErrNotConnected = errors.New("MQTT broker not connected")

// Publisher sends lighting decisions to a broker. A disabled publisher
// accepts every call and does nothing.
type Publisher struct {
	client      mqtt.Client
	topicPrefix string
	enabled     bool
	logger      *log.Logger
}

// PublisherConfig configures the broker connection
type PublisherConfig struct {
	Broker      string `json:"broker"`
	ClientID    string `json:"client_id"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	TopicPrefix string `json:"topic_prefix"`
	Enabled     bool   `json:"enabled"`
}

// NewPublisher connects to the broker when cfg.Enabled is set. It waits at
// most connectWait for the first connection; an unreachable broker is left
// to the client's retry loop and the publisher is returned anyway.
func NewPublisher(cfg PublisherConfig, logger *log.Logger) (*Publisher, error) {
	if logger == nil {
		logger = log.Default()
	}
	if !cfg.Enabled {
		return &Publisher{enabled: false, logger: logger}, nil
	}

	p := &Publisher{topicPrefix: cfg.TopicPrefix, enabled: true, logger: logger}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetWriteTimeout(publishWait).
		SetConnectionLostHandler(func(c mqtt.Client, err error) {
			logger.Printf("MQTT connection lost: %v", err)
		}).
		SetOnConnectHandler(func(c mqtt.Client) {
			logger.Println("MQTT connected")
			// retained discovery is repeated on every connect
			if err := p.PublishHomeAssistantDiscovery(); err != nil {
				logger.Printf("MQTT discovery failed: %v", err)
			}
		})

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	p.client = mqtt.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(connectWait) {
		logger.Printf("MQTT broker %s not reachable yet, retrying in background", cfg.Broker)
		return p, nil
	}
	if token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	return p, nil
}

func newPublisherWithClient(client mqtt.Client, topicPrefix string, logger *log.Logger) *Publisher {
	if logger == nil {
		logger = log.Default()
	}
	return &Publisher{
		client:      client,
		topicPrefix: topicPrefix,
		enabled:     true,
		logger:      logger,
	}
}

// OnDecision publishes a decision. It satisfies lighting.Observer.
// Decisions made while the broker is down are dropped silently.
func (p *Publisher) OnDecision(d lighting.Decision) {
	if err := p.Publish(d); err != nil && !errors.Is(err, ErrNotConnected) {
		p.logger.Printf("MQTT publish failed: %v", err)
	}
}

// Publish sends the relay state, the event times and the full decision
func (p *Publisher) Publish(d lighting.Decision) error {
	if !p.enabled {
		return nil
	}
	if !p.client.IsConnectionOpen() {
		return ErrNotConnected
	}

	if state, ok := relayState(d); ok {
		p.publish(p.topic("state"), true, state)
	}

	if d.Events != nil {
		p.publish(p.topic("sunrise"), true, d.Events.Sunrise.Format(time.RFC3339))
		p.publish(p.topic("sunset"), true, d.Events.Sunset.Format(time.RFC3339))
		p.publish(p.topic("civil_dawn"), true, d.Events.CivilDawn.Format(time.RFC3339))
		p.publish(p.topic("civil_dusk"), true, d.Events.CivilDusk.Format(time.RFC3339))
	}

	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to marshal decision: %w", err)
	}

	token := p.client.Publish(p.topic("decision/"+d.Policy), 0, false, payload)
	if err := wait(token); err != nil {
		return fmt.Errorf("failed to publish decision: %w", err)
	}
	return nil
}

// PublishHomeAssistantDiscovery announces the light and the event sensors
func (p *Publisher) PublishHomeAssistantDiscovery() error {
	if !p.enabled {
		return nil
	}
	if !p.client.IsConnectionOpen() {
		return ErrNotConnected
	}

	device := map[string]interface{}{
		"identifiers":  []string{"dusk_lights"},
		"name":         "Dusk Lights",
		"manufacturer": "devskill-org",
		"model":        "dusk-lights",
	}

	entities := []struct {
		Component   string
		ID          string
		Name        string
		DeviceClass string
	}{
		{"binary_sensor", "state", "Light", "light"},
		{"sensor", "sunrise", "Sunrise", "timestamp"},
		{"sensor", "sunset", "Sunset", "timestamp"},
		{"sensor", "civil_dawn", "Civil Dawn", "timestamp"},
		{"sensor", "civil_dusk", "Civil Dusk", "timestamp"},
	}

	for _, e := range entities {
		config := map[string]interface{}{
			"name":         fmt.Sprintf("Dusk Lights %s", e.Name),
			"unique_id":    fmt.Sprintf("dusk_lights_%s", e.ID),
			"state_topic":  p.topic(e.ID),
			"device_class": e.DeviceClass,
			"device":       device,
		}
		if e.Component == "binary_sensor" {
			config["payload_on"] = "ON"
			config["payload_off"] = "OFF"
		}

		payload, err := json.Marshal(config)
		if err != nil {
			return fmt.Errorf("failed to marshal discovery config: %w", err)
		}
		discoveryTopic := fmt.Sprintf("homeassistant/%s/dusk_lights/%s/config", e.Component, e.ID)
		token := p.client.Publish(discoveryTopic, 0, true, payload)
		if err := wait(token); err != nil {
			return fmt.Errorf("failed to publish discovery for %s: %w", e.ID, err)
		}
	}

	return nil
}

// IsConnected reports whether the broker connection is up. A client that
// is still retrying its first connection is not connected.
func (p *Publisher) IsConnected() bool {
	if !p.enabled {
		return false
	}
	return p.client.IsConnectionOpen()
}

// Close disconnects from the broker
func (p *Publisher) Close() {
	if p.enabled && p.client != nil {
		p.client.Disconnect(1000)
	}
}

func (p *Publisher) topic(name string) string {
	return fmt.Sprintf("%s/%s", p.topicPrefix, name)
}

func (p *Publisher) publish(topic string, retained bool, payload string) {
	token := p.client.Publish(topic, 0, retained, payload)
	if err := wait(token); err != nil {
		p.logger.Printf("Failed to publish to %s: %v", topic, err)
	}
}

func wait(token mqtt.Token) error {
	if !token.WaitTimeout(publishWait) {
		return fmt.Errorf("no acknowledgement within %s", publishWait)
	}
	return token.Error()
}

// relayState returns the state the relay is known to be in after d
func relayState(d lighting.Decision) (string, bool) {
	switch {
	case d.Commanded && d.Action == lighting.ActionOn:
		return "ON", true
	case d.Commanded && d.Action == lighting.ActionOff:
		return "OFF", true
	case d.Observed != nil && *d.Observed:
		return "ON", true
	case d.Observed != nil:
		return "OFF", true
	default:
		return "", false
	}
}
