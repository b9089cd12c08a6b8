package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/Anil-CAI/vrteleop/pkg/config"
	"github.com/Anil-CAI/vrteleop/pkg/robot"
)

var (
	headerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	subHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	successStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type SetupCommand struct{}

func (c *SetupCommand) Execute(args []string) error {
	fmt.Println(headerStyle.Render("vrteleop Setup"))
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━"))
	fmt.Println()

	if config.Exists(opts.Config) {
		overwrite := true
		err := huh.NewConfirm().
			Title(fmt.Sprintf("%s exists. Edit it?", opts.Config)).
			Description("Current values are used as defaults.").
			Value(&overwrite).
			Run()
		if err != nil || !overwrite {
			fmt.Println()
			os.Exit(0)
		}
	}

	cfg, err := config.LoadOrDefault(opts.Config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ignoring unreadable %s: %v\n", opts.Config, err)
		cfg = config.Default()
	}

	// Step 1: headset side
	fmt.Println(subHeaderStyle.Render("━━━ Headset ━━━"))
	if err := clientForm(&cfg.Client).Run(); err != nil {
		fmt.Println()
		os.Exit(0)
	}

	// Save after the headset side so an aborted bridge step keeps it.
	if err := cfg.SaveTo(opts.Config); err != nil {
		return err
	}

	// Step 2: robot side
	fmt.Println()
	fmt.Println(subHeaderStyle.Render("━━━ Robot bridge ━━━"))
	if err := setupBridge(&cfg.Bridge); err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.SaveTo(opts.Config); err != nil {
		return err
	}

	fmt.Println()
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"))
	fmt.Println(successStyle.Render("Setup complete!"))
	fmt.Printf("Configuration saved to %s\n", opts.Config)
	fmt.Println()
	fmt.Println("On the robot run:   " + headerStyle.Render("vrteleop bridge"))
	fmt.Println("To test a drive:    " + headerStyle.Render("vrteleop drive"))

	return nil
}

func clientForm(cc *config.ClientConfig) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Command transport").
				Options(
					huh.NewOption("WebSocket to the bridge", config.TransportWebSocket),
					huh.NewOption("MQTT broker", config.TransportMQTT),
				).
				Value(&cc.Transport),
			huh.NewInput().
				Title("Bridge URL").
				Description("wss://<robot-ip>:8765").
				Value(&cc.URL),
			huh.NewConfirm().
				Title("Accept a self-signed bridge certificate?").
				Value(&cc.Insecure),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("MQTT broker").
				Description("tcp://host:1883").
				Value(&cc.MQTT.Broker),
			huh.NewInput().
				Title("MQTT topic").
				Placeholder("vrteleop/cmd_vel").
				Value(&cc.MQTT.Topic),
		).WithHideFunc(func() bool { return cc.Transport != config.TransportMQTT }),
	)
}

func setupBridge(bc *config.BridgeConfig) error {
	var chosen []string
	if bc.Sinks.Log {
		chosen = append(chosen, "log")
	}
	if bc.Sinks.MQTT != nil {
		chosen = append(chosen, "mqtt")
	}
	if bc.Sinks.CAN != nil {
		chosen = append(chosen, "can")
	}
	if bc.Sinks.Serial != nil {
		chosen = append(chosen, "serial")
	}
	if bc.Sinks.Feetech != nil {
		chosen = append(chosen, "feetech")
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Listen address").Value(&bc.Addr),
			huh.NewInput().Title("TLS certificate file").Value(&bc.CertFile),
			huh.NewInput().Title("TLS key file").Value(&bc.KeyFile),
			huh.NewMultiSelect[string]().
				Title("Where should commands go?").
				Options(
					huh.NewOption("Log only (dry run)", "log"),
					huh.NewOption("MQTT topic (ROS relay)", "mqtt"),
					huh.NewOption("CAN bus motor controller", "can"),
					huh.NewOption("Serial microcontroller", "serial"),
					huh.NewOption("Feetech wheel servos", "feetech"),
				).
				Validate(func(s []string) error {
					if len(s) == 0 {
						return fmt.Errorf("pick at least one output")
					}
					return nil
				}).
				Value(&chosen),
		),
	)
	if err := form.Run(); err != nil {
		fmt.Println()
		os.Exit(0)
	}

	sinks := config.SinksConfig{}
	for _, name := range chosen {
		switch name {
		case "log":
			sinks.Log = true
		case "mqtt":
			sinks.MQTT = withDefault(bc.Sinks.MQTT, &config.MQTTConfig{Topic: "turtle1/cmd_vel"})
			if err := mqttSinkForm(sinks.MQTT).Run(); err != nil {
				os.Exit(0)
			}
		case "can":
			sinks.CAN = withDefault(bc.Sinks.CAN, &config.CANConfig{Interface: "can0", ID: robot.DefaultCANID})
			if err := canForm(sinks.CAN).Run(); err != nil {
				os.Exit(0)
			}
		case "serial":
			sinks.Serial = withDefault(bc.Sinks.Serial, &config.SerialConfig{Baud: 115200})
			if err := serialForm(sinks.Serial); err != nil {
				return err
			}
		case "feetech":
			sinks.Feetech = withDefault(bc.Sinks.Feetech, &config.FeetechConfig{LeftID: 1, RightID: 2, WheelRadius: 0.05, TrackWidth: 0.2})
			if err := feetechForm(sinks.Feetech); err != nil {
				return err
			}
		}
	}
	bc.Sinks = sinks
	return nil
}

func withDefault[T any](cur, def *T) *T {
	if cur != nil {
		return cur
	}
	return def
}

func mqttSinkForm(mc *config.MQTTConfig) *huh.Form {
	return huh.NewForm(huh.NewGroup(
		huh.NewInput().Title("MQTT broker").Description("tcp://host:1883").Value(&mc.Broker),
		huh.NewInput().Title("Twist topic").Value(&mc.Topic),
	))
}

func canForm(cc *config.CANConfig) *huh.Form {
	id := fmt.Sprintf("0x%X", cc.ID)
	return huh.NewForm(huh.NewGroup(
		huh.NewInput().Title("CAN interface").Description("can0, vcan0, ...").Value(&cc.Interface),
		huh.NewInput().
			Title("Drive frame ID").
			Value(&id).
			Validate(func(s string) error {
				v, err := strconv.ParseUint(strings.TrimSpace(s), 0, 29)
				if err != nil {
					return fmt.Errorf("not a CAN ID: %w", err)
				}
				cc.ID = uint32(v)
				return nil
			}),
	))
}

func portOptions(device string) ([]huh.Option[string], error) {
	ports, err := robot.SerialPorts()
	if err != nil {
		return nil, err
	}

	var options []huh.Option[string]
	for _, port := range ports {
		// Skip Bluetooth ports on macOS
		if strings.Contains(port, "Bluetooth") {
			continue
		}
		options = append(options, huh.NewOption(port, port))
	}
	if len(options) == 0 {
		fmt.Println("No serial ports found.")
		fmt.Printf("Make sure the %s is connected.\n", device)
		os.Exit(1)
	}
	return options, nil
}

func serialForm(sc *config.SerialConfig) error {
	options, err := portOptions("microcontroller")
	if err != nil {
		return err
	}

	baud := strconv.Itoa(sc.Baud)
	form := huh.NewForm(huh.NewGroup(
		huh.NewSelect[string]().
			Title("Serial port").
			Options(options...).
			Value(&sc.Port),
		huh.NewInput().
			Title("Baud rate").
			Value(&baud).
			Validate(func(s string) error {
				v, err := strconv.Atoi(s)
				if err != nil || v <= 0 {
					return fmt.Errorf("baud rate must be a positive number")
				}
				sc.Baud = v
				return nil
			}),
	))
	if err := form.Run(); err != nil {
		fmt.Println()
		os.Exit(0)
	}
	return nil
}

func feetechForm(fc *config.FeetechConfig) error {
	options, err := portOptions("servo bus adapter")
	if err != nil {
		return err
	}

	ids := fmt.Sprintf("%d,%d", fc.LeftID, fc.RightID)
	geometry := fmt.Sprintf("%g,%g", fc.WheelRadius, fc.TrackWidth)
	form := huh.NewForm(huh.NewGroup(
		huh.NewSelect[string]().
			Title("Servo bus port").
			Options(options...).
			Value(&fc.Port),
		huh.NewInput().
			Title("Left,right servo IDs").
			Value(&ids).
			Validate(func(s string) error {
				l, r, ok := strings.Cut(s, ",")
				left, err1 := strconv.Atoi(strings.TrimSpace(l))
				right, err2 := strconv.Atoi(strings.TrimSpace(r))
				if !ok || err1 != nil || err2 != nil || left < 1 || right < 1 || left > 253 || right > 253 || left == right {
					return fmt.Errorf("enter two different IDs between 1 and 253, e.g. 1,2")
				}
				fc.LeftID, fc.RightID = left, right
				return nil
			}),
		huh.NewInput().
			Title("Wheel radius,track width").
			Description("meters").
			Value(&geometry).
			Validate(func(s string) error {
				r, w, ok := strings.Cut(s, ",")
				radius, err1 := strconv.ParseFloat(strings.TrimSpace(r), 64)
				track, err2 := strconv.ParseFloat(strings.TrimSpace(w), 64)
				if !ok || err1 != nil || err2 != nil || radius <= 0 || track <= 0 {
					return fmt.Errorf("enter two positive lengths, e.g. 0.05,0.2")
				}
				fc.WheelRadius, fc.TrackWidth = radius, track
				return nil
			}),
		huh.NewConfirm().
			Title("Left servo mounted mirrored?").
			Value(&fc.InvertLeft),
	))
	if err := form.Run(); err != nil {
		fmt.Println()
		os.Exit(0)
	}
	return nil
}
