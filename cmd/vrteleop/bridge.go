package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/edaniels/golog"

	"github.com/Anil-CAI/vrteleop/pkg/bridge"
	"github.com/Anil-CAI/vrteleop/pkg/config"
	"github.com/Anil-CAI/vrteleop/pkg/robot"
)

type BridgeCommand struct {
	Addr      string `long:"addr" description:"WebSocket listen address, overrides the config file"`
	Cert      string `long:"cert" description:"TLS certificate file"`
	Key       string `long:"key" description:"TLS key file"`
	StaticDir string `long:"static" description:"Directory with the headset page to serve"`
}

func (c *BridgeCommand) Execute(args []string) error {
	cfg, err := config.LoadOrDefault(opts.Config)
	if err != nil {
		return err
	}
	bc := cfg.Bridge
	if c.Addr != "" {
		bc.Addr = c.Addr
	}
	if c.Cert != "" {
		bc.CertFile = c.Cert
	}
	if c.Key != "" {
		bc.KeyFile = c.Key
	}
	if c.StaticDir != "" {
		bc.StaticDir = c.StaticDir
	}

	logger, err := newLogger("")
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	sink, err := openSinks(ctx, bc.Sinks, logger)
	if err != nil {
		return err
	}
	defer sink.Close()

	srv, err := bridge.NewServer(bridge.Config{
		Addr:           bc.Addr,
		CertFile:       bc.CertFile,
		KeyFile:        bc.KeyFile,
		StaticDir:      bc.StaticDir,
		StaticAddr:     bc.StaticAddr,
		CommandTimeout: time.Duration(bc.CommandTimeoutMS) * time.Millisecond,
		Sink:           sink,
		Logger:         logger.Named("bridge"),
	})
	if err != nil {
		return err
	}
	if bc.CertFile == "" {
		logger.Warn("no TLS certificate configured, headset browsers will refuse ws:// from an https page")
	}

	err = srv.ListenAndServe(ctx)
	st := srv.Stats()
	logger.Infow("bridge stopped", "received", st.Received, "published", st.Published, "skipped", st.Skipped, "timeouts", st.Timeouts)
	return err
}

// openSinks builds the configured sinks. Sinks opened before a failure are
// closed again.
func openSinks(ctx context.Context, cfg config.SinksConfig, logger golog.Logger) (robot.Sink, error) {
	var sinks robot.MultiSink
	fail := func(err error) (robot.Sink, error) {
		sinks.Close()
		return nil, err
	}

	if cfg.Log {
		sinks = append(sinks, robot.LogSink{Logger: logger.Named("cmd_vel")})
	}
	if cfg.MQTT != nil {
		s, err := robot.NewMQTTSink(robot.MQTTSinkConfig{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			Username: cfg.MQTT.Username,
			Password: cfg.MQTT.Password,
			Topic:    cfg.MQTT.Topic,
		})
		if err != nil {
			return fail(err)
		}
		sinks = append(sinks, s)
	}
	if cfg.CAN != nil {
		id := cfg.CAN.ID
		if id == 0 {
			id = robot.DefaultCANID
		}
		s, err := robot.DialCANSink(ctx, cfg.CAN.Interface, id)
		if err != nil {
			return fail(err)
		}
		sinks = append(sinks, s)
	}
	if cfg.Serial != nil {
		s, err := robot.OpenSerialSink(cfg.Serial.Port, cfg.Serial.Baud)
		if err != nil {
			return fail(err)
		}
		sinks = append(sinks, s)
	}
	if cfg.Feetech != nil {
		s, err := robot.OpenFeetechSink(ctx, cfg.Feetech.Wheels())
		if err != nil {
			return fail(err)
		}
		sinks = append(sinks, s)
	}

	if len(sinks) == 0 {
		return nil, fmt.Errorf("open sinks: no sink configured")
	}
	return sinks, nil
}
