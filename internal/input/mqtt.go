package input

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/ivlev/greetcard/internal/config"
	"github.com/ivlev/greetcard/internal/logging"
)

// ErrMQTTTimeout is returned when the broker does not answer in time.
var ErrMQTTTimeout = errors.New("input: mqtt operation timed out")

// MQTT receives events published by a remote panel. Messages are JSON
// objects such as {"type": "click"}.
type MQTT struct {
	client  pahomqtt.Client
	topic   string
	qos     byte
	timeout time.Duration
	log     *logging.Logger
}

type mqttMessage struct {
	Type string `json:"type"`
}

// DialMQTT connects to the broker named in cfg.
func DialMQTT(cfg config.MQTTConfig, log *logging.Logger) (*MQTT, error) {
	if log == nil {
		log = logging.Nop()
	}
	log = log.With("component", "input.mqtt")
	timeout := time.Duration(cfg.ConnectTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(timeout)
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		log.Warn("connection lost", "error", err)
	})

	client := pahomqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(timeout) {
		return nil, fmt.Errorf("connecting to %s: %w", cfg.Broker, ErrMQTTTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", cfg.Broker, err)
	}
	log.Info("connected", "broker", cfg.Broker, "topic", cfg.Topic)

	return &MQTT{
		client:  client,
		topic:   cfg.Topic,
		qos:     cfg.QoS,
		timeout: timeout,
		log:     log,
	}, nil
}

// Run subscribes to the input topic and dispatches until ctx is done, then
// disconnects.
func (m *MQTT) Run(ctx context.Context, bus *Bus) error {
	token := m.client.Subscribe(m.topic, m.qos, func(_ pahomqtt.Client, msg pahomqtt.Message) {
		ev, err := decodeMessage(msg.Payload())
		if err != nil {
			m.log.Warn("ignoring message", "topic", msg.Topic(), "error", err)
			return
		}
		bus.Dispatch(ev)
	})
	if !token.WaitTimeout(m.timeout) {
		return fmt.Errorf("subscribing to %s: %w", m.topic, ErrMQTTTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribing to %s: %w", m.topic, err)
	}

	<-ctx.Done()

	m.client.Unsubscribe(m.topic).WaitTimeout(time.Second)
	m.client.Disconnect(250)
	return nil
}

func decodeMessage(payload []byte) (Event, error) {
	var msg mqttMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Event{}, fmt.Errorf("decoding payload: %w", err)
	}
	if msg.Type == "" {
		return Event{}, fmt.Errorf("payload without type")
	}
	kind, err := ParseKind(msg.Type)
	if err != nil {
		return Event{}, err
	}
	return Event{Kind: kind, Source: "mqtt"}, nil
}
