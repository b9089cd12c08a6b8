package robot

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTSinkConfig configures MQTTSink.
type MQTTSinkConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string // default "turtle1/cmd_vel"
}

// MQTTSink republishes twists as JSON, e.g. for an MQTT-to-ROS relay.
type MQTTSink struct {
	client mqtt.Client
	topic  string
}

// NewMQTTSink connects to the broker and waits for the connection.
func NewMQTTSink(cfg MQTTSinkConfig) (*MQTTSink, error) {
	if cfg.Topic == "" {
		cfg.Topic = "turtle1/cmd_vel"
	}
	if cfg.ClientID == "" {
		cfg.ClientID = fmt.Sprintf("vrteleop-bridge-%d", time.Now().Unix())
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetOrderMatters(true)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("mqtt connect timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect failed: %w", err)
	}
	return &MQTTSink{client: client, topic: cfg.Topic}, nil
}

// Publish implements Sink.
func (s *MQTTSink) Publish(_ context.Context, t Twist) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal twist: %w", err)
	}
	s.client.Publish(s.topic, 0, false, data)
	return nil
}

// Close implements Sink.
func (s *MQTTSink) Close() error {
	s.client.Disconnect(250)
	return nil
}
