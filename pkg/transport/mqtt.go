package transport

import (
	"crypto/tls"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/edaniels/golog"
	"go.uber.org/zap"

	"github.com/Anil-CAI/vrteleop/pkg/control"
)

// MQTTConfig configures the MQTT sender.
type MQTTConfig struct {
	Broker          string // tcp://host:1883 or tls://host:8883
	ClientID        string
	Username        string
	Password        string
	Topic           string // default "vrteleop/cmd_vel"
	InsecureSkipTLS bool
	ConnectTimeout  time.Duration
}

// MQTT publishes commands at QoS 0. The paho client reconnects the session
// on its own; commands issued while disconnected are dropped, never queued.
type MQTT struct {
	cfg    MQTTConfig
	client mqtt.Client
	logger golog.Logger
	state  stateVar
	stats  counters
}

// DialMQTT starts connecting to the broker. Like DialWebSocket it returns
// before the connection is established.
func DialMQTT(cfg MQTTConfig, logger golog.Logger) (*MQTT, error) {
	if cfg.Broker == "" {
		return nil, fmt.Errorf("mqtt: broker is required")
	}
	if cfg.Topic == "" {
		cfg.Topic = "vrteleop/cmd_vel"
	}
	if cfg.ClientID == "" {
		cfg.ClientID = fmt.Sprintf("vrteleop-%d", time.Now().Unix())
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	m := &MQTT{cfg: cfg, logger: logger}
	m.state.store(Connecting)

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	if cfg.InsecureSkipTLS {
		opts.SetTLSConfig(&tls.Config{InsecureSkipVerify: true})
	}
	opts.SetConnectTimeout(cfg.ConnectTimeout)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetMaxReconnectInterval(10 * time.Second)
	// Stale velocity commands must not be replayed after a reconnect.
	opts.SetCleanSession(true)
	opts.SetOrderMatters(true)

	opts.OnConnect = func(mqtt.Client) {
		m.state.store(Open)
		m.logger.Infow("mqtt connected", "broker", cfg.Broker, "topic", cfg.Topic)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		m.state.store(Closed)
		m.logger.Warnw("mqtt connection lost", "error", err)
	}
	opts.OnReconnecting = func(mqtt.Client, *mqtt.ClientOptions) {
		m.state.store(Connecting)
	}

	m.client = mqtt.NewClient(opts)
	m.client.Connect()
	return m, nil
}

// State returns the connection state.
func (m *MQTT) State() State {
	return m.state.load()
}

// Stats returns send counters.
func (m *MQTT) Stats() Stats {
	return m.stats.snapshot()
}

// Send publishes cmd without waiting for the broker, or drops it if the
// client is not connected.
func (m *MQTT) Send(cmd control.Command) {
	if m.state.load() != Open || !m.client.IsConnectionOpen() {
		m.stats.dropped.Add(1)
		return
	}
	data, err := Encode(cmd)
	if err != nil {
		m.logger.Errorw("dropping command", "error", err)
		m.stats.dropped.Add(1)
		return
	}
	m.client.Publish(m.cfg.Topic, 0, false, data)
	m.stats.sent.Add(1)
}

// Close disconnects from the broker.
func (m *MQTT) Close() error {
	m.client.Disconnect(250)
	m.state.store(Closed)
	return nil
}
