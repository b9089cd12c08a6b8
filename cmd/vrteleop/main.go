package main

import (
	"fmt"
	"os"

	"github.com/edaniels/golog"
	"github.com/jessevdk/go-flags"
	"go.uber.org/zap"
)

type Options struct {
	Config  string `short:"c" long:"config" default:"vrteleop.json" description:"Configuration file"`
	Verbose bool   `short:"v" long:"verbose" description:"Log command traces at debug level"`

	Setup  SetupCommand  `command:"setup" description:"Write a configuration file interactively"`
	Drive  DriveCommand  `command:"drive" description:"Drive the robot from tracked or simulated controllers"`
	Bridge BridgeCommand `command:"bridge" description:"Run the robot-side WebSocket bridge"`
}

var opts Options
var parser = flags.NewParser(&opts, flags.Default)

func main() {
	parser.LongDescription = "vrteleop - drive a mobile robot with VR controller orientation"

	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
		}
		os.Exit(1)
	}
}

// newLogger builds the structured logger. An empty path logs to stdout;
// the drive TUI passes a file so log output does not tear the alt screen.
func newLogger(path string) (golog.Logger, error) {
	cfg := golog.NewDevelopmentLoggerConfig()
	if opts.Verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	if path != "" {
		cfg.OutputPaths = []string{path}
		cfg.ErrorOutputPaths = []string{path}
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger.Sugar(), nil
}
