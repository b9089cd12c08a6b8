// Package config reads and writes the vrteleop.json configuration file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/Anil-CAI/vrteleop/pkg/control"
	"github.com/Anil-CAI/vrteleop/pkg/robot"
	"github.com/Anil-CAI/vrteleop/pkg/transport"
)

const DefaultConfigFile = "vrteleop.json"

// Transport names accepted in ClientConfig.Transport.
const (
	TransportWebSocket = "websocket"
	TransportMQTT      = "mqtt"
)

// Config holds the whole configuration file.
type Config struct {
	Control ControlConfig `json:"control"`
	Client  ClientConfig  `json:"client"`
	Bridge  BridgeConfig  `json:"bridge"`
}

// ControlConfig holds the mapping constants of the control core.
type ControlConfig struct {
	YawLimit        float64 `json:"yaw_limit"`
	PitchLimit      float64 `json:"pitch_limit"`
	AngularScale    float64 `json:"angular_scale"`
	LinearScale     float64 `json:"linear_scale"`
	Deadzone        float64 `json:"deadzone"`
	SmoothFactor    float64 `json:"smooth_factor"`
	ClutchThreshold float64 `json:"clutch_threshold"`
	ClutchButton    int     `json:"clutch_button"`
	WatchdogMS      int     `json:"watchdog_ms"`
}

// ClientConfig configures the headset side.
type ClientConfig struct {
	Transport   string     `json:"transport"` // websocket or mqtt
	URL         string     `json:"url"`
	Insecure    bool       `json:"insecure,omitempty"` // accept the bridge's self-signed certificate
	ReconnectMS int        `json:"reconnect_ms,omitempty"`
	MQTT        MQTTConfig `json:"mqtt"`
	Hz          int        `json:"hz"`
	Record      string     `json:"record,omitempty"`
}

// MQTTConfig configures a broker connection.
type MQTTConfig struct {
	Broker   string `json:"broker,omitempty"`
	ClientID string `json:"client_id,omitempty"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	Topic    string `json:"topic,omitempty"`
}

// BridgeConfig configures the robot side.
type BridgeConfig struct {
	Addr             string      `json:"addr"`
	CertFile         string      `json:"cert_file,omitempty"`
	KeyFile          string      `json:"key_file,omitempty"`
	StaticDir        string      `json:"static_dir,omitempty"`
	StaticAddr       string      `json:"static_addr,omitempty"`
	CommandTimeoutMS int         `json:"command_timeout_ms,omitempty"`
	Sinks            SinksConfig `json:"sinks"`
}

// SinksConfig selects where the bridge forwards twists. Unset sinks are off.
type SinksConfig struct {
	Log     bool           `json:"log"`
	MQTT    *MQTTConfig    `json:"mqtt,omitempty"`
	CAN     *CANConfig     `json:"can,omitempty"`
	Serial  *SerialConfig  `json:"serial,omitempty"`
	Feetech *FeetechConfig `json:"feetech,omitempty"`
}

// CANConfig configures the SocketCAN drive sink.
type CANConfig struct {
	Interface string `json:"interface"`
	ID        uint32 `json:"id,omitempty"`
}

// SerialConfig configures the serial drive sink.
type SerialConfig struct {
	Port string `json:"port"`
	Baud int    `json:"baud,omitempty"`
}

// FeetechConfig configures a differential base driven by two Feetech
// servos in wheel mode. Zero values take the robot package defaults.
type FeetechConfig struct {
	Port        string  `json:"port"`
	LeftID      int     `json:"left_id,omitempty"`
	RightID     int     `json:"right_id,omitempty"`
	WheelRadius float64 `json:"wheel_radius,omitempty"`
	TrackWidth  float64 `json:"track_width,omitempty"`
	MaxSpeed    int     `json:"max_speed,omitempty"`
	InvertLeft  bool    `json:"invert_left,omitempty"`
	InvertRight bool    `json:"invert_right,omitempty"`
}

// Wheels converts c to the wheel sink configuration.
func (c FeetechConfig) Wheels() robot.WheelConfig {
	return robot.WheelConfig{
		Port:        c.Port,
		LeftID:      c.LeftID,
		RightID:     c.RightID,
		WheelRadius: c.WheelRadius,
		TrackWidth:  c.TrackWidth,
		MaxSpeed:    c.MaxSpeed,
		InvertLeft:  c.InvertLeft,
		InvertRight: c.InvertRight,
	}
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	cc := control.DefaultConfig()
	return &Config{
		Control: ControlConfig{
			YawLimit:        cc.YawLimit,
			PitchLimit:      cc.PitchLimit,
			AngularScale:    cc.AngularScale,
			LinearScale:     cc.LinearScale,
			Deadzone:        cc.Deadzone,
			SmoothFactor:    cc.SmoothFactor,
			ClutchThreshold: cc.ClutchThreshold,
			ClutchButton:    cc.ClutchButton,
			WatchdogMS:      int(cc.WatchdogTimeout / time.Millisecond),
		},
		Client: ClientConfig{
			Transport: TransportWebSocket,
			URL:       "wss://localhost:8765",
			Hz:        72,
		},
		Bridge: BridgeConfig{
			Addr:  ":8765",
			Sinks: SinksConfig{Log: true},
		},
	}
}

// ToControl converts c to the control core's configuration.
func (c ControlConfig) ToControl() control.Config {
	return control.Config{
		YawLimit:        c.YawLimit,
		PitchLimit:      c.PitchLimit,
		AngularScale:    c.AngularScale,
		LinearScale:     c.LinearScale,
		Deadzone:        c.Deadzone,
		SmoothFactor:    c.SmoothFactor,
		ClutchThreshold: c.ClutchThreshold,
		ClutchButton:    c.ClutchButton,
		WatchdogTimeout: time.Duration(c.WatchdogMS) * time.Millisecond,
	}
}

// WebSocket returns the WebSocket sender configuration.
func (c ClientConfig) WebSocket() transport.WebSocketConfig {
	cfg := transport.WebSocketConfig{
		URL:                c.URL,
		InsecureSkipVerify: c.Insecure,
	}
	if c.ReconnectMS > 0 {
		cfg.ReconnectMin = time.Duration(c.ReconnectMS) * time.Millisecond
		cfg.ReconnectMax = 10 * cfg.ReconnectMin
	}
	return cfg
}

// MQTTSender returns the MQTT sender configuration.
func (c ClientConfig) MQTTSender() transport.MQTTConfig {
	return transport.MQTTConfig{
		Broker:          c.MQTT.Broker,
		ClientID:        c.MQTT.ClientID,
		Username:        c.MQTT.Username,
		Password:        c.MQTT.Password,
		Topic:           c.MQTT.Topic,
		InsecureSkipTLS: c.Insecure,
	}
}

// Validate checks the file for values that would make the tools misbehave.
func (c *Config) Validate() error {
	if err := c.Control.ToControl().Validate(); err != nil {
		return err
	}
	switch c.Client.Transport {
	case TransportWebSocket, TransportMQTT:
	default:
		return fmt.Errorf("invalid config: unknown transport %q", c.Client.Transport)
	}
	if c.Client.Hz < 0 {
		return fmt.Errorf("invalid config: hz must not be negative")
	}
	return nil
}

// LoadFrom loads configuration from a specific file. Missing fields keep
// their default values.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault loads path if it exists and returns the defaults otherwise.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}
	return LoadFrom(path)
}

// SaveTo saves configuration to a specific file.
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Exists reports whether a config file exists at path.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
