package telemetry

import (
	"context"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/sebastiankruger/fiber-twin/internal/firmware"
)

const mqttTimeout = 10 * time.Second

// MQTTPublisher publishes envelopes as JSON to an MQTT topic.
type MQTTPublisher struct {
	client mqtt.Client
	topic  string
}

// NewMQTTPublisher connects to broker and publishes to topic.
func NewMQTTPublisher(broker, clientID, topic string) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(mqttTimeout)
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		log.Warn().Err(err).Str("broker", broker).Msg("MQTT connection lost")
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(mqttTimeout) {
		return nil, fmt.Errorf("connect to MQTT broker %s: timed out", broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to MQTT broker %s: %w", broker, err)
	}

	log.Info().Str("broker", broker).Str("topic", topic).Msg("MQTT publisher connected")
	return &MQTTPublisher{client: client, topic: topic}, nil
}

// Publish sends env at QoS 0.
func (p *MQTTPublisher) Publish(ctx context.Context, env Envelope) error {
	payload, err := env.Marshal()
	if err != nil {
		return err
	}
	token := p.client.Publish(p.topic, 0, false, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", p.topic, err)
	}
	return nil
}

// SubscribeCommands feeds controller commands received on topic into s.
// Query replies are published on topic + "/reply".
func (p *MQTTPublisher) SubscribeCommands(topic string, s *firmware.Session) error {
	replyTopic := topic + "/reply"
	token := p.client.Subscribe(topic, 0, func(c mqtt.Client, msg mqtt.Message) {
		for _, reply := range applyCommands(s, msg.Payload()) {
			c.Publish(replyTopic, 0, false, reply)
		}
	})
	if !token.WaitTimeout(mqttTimeout) {
		return fmt.Errorf("subscribe to %s: timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe to %s: %w", topic, err)
	}
	log.Info().Str("topic", topic).Msg("Subscribed to controller commands")
	return nil
}

// Close disconnects from the broker.
func (p *MQTTPublisher) Close() error {
	p.client.Disconnect(250)
	return nil
}

// applyCommands runs every line of payload through s and returns the
// non-empty replies.
func applyCommands(s *firmware.Session, payload []byte) []string {
	var replies []string
	lines := strings.FieldsFunc(string(payload), func(r rune) bool { return r == '\r' || r == '\n' })
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		cmd, err := firmware.ParseCommand(line)
		if err != nil {
			log.Warn().Err(err).Str("line", line).Msg("Ignoring MQTT command")
			continue
		}
		if reply := s.Handle(cmd); reply != "" {
			replies = append(replies, reply)
		}
	}
	return replies
}
