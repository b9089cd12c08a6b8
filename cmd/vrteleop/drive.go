package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/edaniels/golog"

	"github.com/NimbleMarkets/ntcharts/canvas/runes"
	"github.com/NimbleMarkets/ntcharts/linechart/streamlinechart"

	"github.com/Anil-CAI/vrteleop/pkg/config"
	"github.com/Anil-CAI/vrteleop/pkg/pose"
	"github.com/Anil-CAI/vrteleop/pkg/record"
	"github.com/Anil-CAI/vrteleop/pkg/teleop"
	"github.com/Anil-CAI/vrteleop/pkg/transport"
)

type DriveCommand struct {
	URL       string `long:"url" description:"Bridge URL, overrides the config file"`
	Transport string `long:"transport" choice:"websocket" choice:"mqtt" description:"Command transport, overrides the config file"`
	Hz        int    `long:"hz" description:"Control loop frequency, overrides the config file"`
	Replay    string `long:"replay" description:"Replay controller poses from a recorded CSV instead of the keyboard"`
	Loop      bool   `long:"loop" description:"Loop the replay"`
	Record    string `long:"record" description:"Record every tick to a CSV file"`
	LogFile   string `long:"log-file" default:"vrteleop.log" description:"Structured log output"`
}

const (
	headerHeight = 2 // title + blank line
	legendHeight = 2 // legend row + blank
	statusHeight = 7 // status table
	footerHeight = 7 // log box height
	maxLogs      = 5 // number of log messages to show
	borderSize   = 2 // chart border

	nudge = 0.05 // radians per key press
)

var seriesColors = map[string]string{
	"linear":  "46", // green
	"angular": "51", // cyan
}

var seriesNames = []string{"linear", "angular"}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	chartStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	onStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	alertStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
)

type driveModel struct {
	ctrl     *teleop.Controller
	virtual  *pose.Virtual // nil when replaying
	chart    *streamlinechart.Model
	state    teleop.State
	width    int      // terminal width
	height   int      // terminal height
	logs     []string // last N log messages
	quitting bool
	lost     bool // right controller tracking dropped by the user
}

func (m *driveModel) addLog(msg string) {
	m.logs = append(m.logs, msg)
	if len(m.logs) > maxLogs {
		m.logs = m.logs[len(m.logs)-maxLogs:]
	}
}

// Messages from the controller
type stateMsg teleop.State
type logMsg string

func waitForState(ctrl *teleop.Controller) tea.Cmd {
	return func() tea.Msg {
		return stateMsg(<-ctrl.States())
	}
}

func waitForLog(ctrl *teleop.Controller) tea.Cmd {
	return func() tea.Msg {
		return logMsg(<-ctrl.Logs())
	}
}

// chartSize calculates the size of the chart based on terminal dimensions
func (m *driveModel) chartSize() (width, height int) {
	if m.width == 0 || m.height == 0 {
		return 80, 12 // default size before we know terminal size
	}
	width = m.width - borderSize - 2
	if width < 40 {
		width = 40
	}
	height = m.height - headerHeight - legendHeight - statusHeight - footerHeight - borderSize
	if height < 6 {
		height = 6
	}
	return width, height
}

func (m *driveModel) resizeChart() {
	w, h := m.chartSize()
	m.chart.Resize(w, h)
}

func initialDriveModel(ctrl *teleop.Controller, virtual *pose.Virtual) driveModel {
	cfg := ctrl.Session().Config()
	limit := cfg.AngularScale
	if cfg.LinearScale > limit {
		limit = cfg.LinearScale
	}
	chart := streamlinechart.New(80, 12,
		streamlinechart.WithYRange(-limit, limit),
	)
	for _, name := range seriesNames {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(seriesColors[name]))
		chart.SetDataSetStyles(name, runes.ThinLineStyle, style)
	}

	return driveModel{
		ctrl:    ctrl,
		virtual: virtual,
		chart:   &chart,
	}
}

func (m driveModel) Init() tea.Cmd {
	return tea.Batch(
		waitForState(m.ctrl),
		waitForLog(m.ctrl),
	)
}

func (m driveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeChart()
		return m, nil

	case tea.KeyMsg:
		key := msg.String()
		switch key {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "tab":
			m.ctrl.SetDirect(!m.state.Direct)
			return m, nil
		}
		if m.state.Direct {
			m.directKey(key)
		} else if m.virtual != nil {
			m.virtualKey(key)
		}

	case stateMsg:
		m.state = teleop.State(msg)
		sent := m.state.Frame.Sent
		m.chart.PushDataSet("linear", sent.Linear)
		m.chart.PushDataSet("angular", sent.Angular)
		m.chart.DrawAll()
		return m, waitForState(m.ctrl)

	case logMsg:
		m.addLog(string(msg))
		return m, waitForLog(m.ctrl)
	}

	return m, nil
}

// virtualKey steers the simulated controllers: left/right yaw the left
// controller, up/down pitch the right one.
func (m *driveModel) virtualKey(key string) {
	switch key {
	case "left":
		m.virtual.Nudge(pose.Left, pose.Euler{Y: nudge})
	case "right":
		m.virtual.Nudge(pose.Left, pose.Euler{Y: -nudge})
	case "up":
		m.virtual.Nudge(pose.Right, pose.Euler{X: -nudge})
	case "down":
		m.virtual.Nudge(pose.Right, pose.Euler{X: nudge})
	case "g", " ":
		if m.virtual.Grip() > 0.5 {
			m.virtual.SetGrip(0)
		} else {
			m.virtual.SetGrip(1)
		}
	case "c":
		m.virtual.Center()
	case "t":
		m.lost = !m.lost
		m.virtual.SetTracked(pose.Right, !m.lost)
	}
}

// directKey maps WASD to held keys. Terminals report no key release, so a
// key keeps driving until space or another key replaces it.
func (m *driveModel) directKey(key string) {
	var k transport.Keys
	switch key {
	case "w":
		k.Forward = true
	case "s":
		k.Back = true
	case "a":
		k.Left = true
	case "d":
		k.Right = true
	case " ":
	default:
		return
	}
	m.ctrl.SetKeys(k)
}

func (m driveModel) View() string {
	if m.quitting {
		return "Teleoperation stopped.\n"
	}

	var sb strings.Builder

	// Header
	sb.WriteString(titleStyle.Render("VR Teleoperate"))
	sb.WriteString(fmt.Sprintf(" - %d Hz - bridge %s", m.ctrl.Hz(), m.state.Transport))
	if m.width > 0 {
		sb.WriteString(statusStyle.Render(fmt.Sprintf("  [%dx%d]", m.width, m.height)))
	}
	sb.WriteString("\n\n")

	// Chart
	sb.WriteString(chartStyle.Render(m.chart.View()))
	sb.WriteString("\n")
	sb.WriteString(renderLegend())
	sb.WriteString("\n\n")

	sb.WriteString(m.renderStatus())
	sb.WriteString("\n")

	// Log box
	logStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Width(max(m.width-4, 20)).
		Foreground(lipgloss.Color("9")) // bright red

	var logLines string
	if len(m.logs) == 0 {
		logLines = statusStyle.Render(m.help())
	} else {
		logLines = strings.Join(m.logs, "\n")
	}
	sb.WriteString(logStyle.Render(logLines))
	sb.WriteString("\n")
	sb.WriteString(statusStyle.Render(m.help()))

	return sb.String()
}

func (m driveModel) help() string {
	if m.state.Direct {
		return "WASD drive  space stop  tab controller mode  q quit"
	}
	if m.virtual == nil {
		return "replaying  tab keyboard mode  q quit"
	}
	return "←/→ yaw  ↑/↓ pitch  g grip  c center  t tracking  tab keyboard mode  q quit"
}

func (m driveModel) renderStatus() string {
	f := m.state.Frame
	rows := [][]string{
		{"raw", fmt.Sprintf("%+.3f", f.Raw.Linear), fmt.Sprintf("%+.3f", f.Raw.Angular)},
		{"smoothed", fmt.Sprintf("%+.3f", f.Smoothed.Linear), fmt.Sprintf("%+.3f", f.Smoothed.Angular)},
		{"sent", fmt.Sprintf("%+.3f", f.Sent.Linear), fmt.Sprintf("%+.3f", f.Sent.Angular)},
	}

	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)
	labelStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(statusStyle).
		Headers("", "linear m/s", "angular rad/s").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == 0 {
				return labelStyle
			}
			return cellStyle
		})

	flags := []string{flag("clutch", f.Clutch, onStyle), fmt.Sprintf("grip %.2f", f.Grip)}
	flags = append(flags, flag("tracked", m.state.Tracked, onStyle))
	flags = append(flags, flag("watchdog", f.Watchdog, alertStyle))
	if m.state.Direct {
		flags = append(flags, onStyle.Render("keyboard"))
	}

	return lipgloss.JoinHorizontal(lipgloss.Center, t.Render(), "  "+strings.Join(flags, "  "))
}

func flag(name string, on bool, style lipgloss.Style) string {
	if on {
		return style.Render(name)
	}
	return statusStyle.Render(name)
}

func renderLegend() string {
	var items []string
	for _, name := range seriesNames {
		colorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(seriesColors[name])).Bold(true)
		items = append(items, colorStyle.Render("━━")+" "+name)
	}
	return strings.Join(items, "  ")
}

func (c *DriveCommand) Execute(args []string) error {
	cfg, err := config.LoadOrDefault(opts.Config)
	if err != nil {
		return err
	}
	if c.URL != "" {
		cfg.Client.URL = c.URL
	}
	if c.Transport != "" {
		cfg.Client.Transport = c.Transport
	}
	if c.Hz > 0 {
		cfg.Client.Hz = c.Hz
	}
	if c.Record != "" {
		cfg.Client.Record = c.Record
	}

	logger, err := newLogger(c.LogFile)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		poses   pose.Provider
		inputs  pose.InputSources
		virtual *pose.Virtual
	)
	if c.Replay != "" {
		replay, err := record.Open(c.Replay, c.Loop)
		if err != nil {
			return err
		}
		fmt.Printf("Replaying %d samples (%s) from %s\n", len(replay.Samples()), replay.Duration(), c.Replay)
		poses, inputs = replay, replay
	} else {
		virtual = pose.NewVirtual()
		poses, inputs = virtual, virtual
	}

	sender, err := dialSender(ctx, cfg.Client, logger.Named("transport"))
	if err != nil {
		return err
	}

	tc := teleop.Config{
		Control: cfg.Control.ToControl(),
		Poses:   poses,
		Inputs:  inputs,
		Sender:  sender,
		Logger:  logger.Named("teleop"),
		Hz:      cfg.Client.Hz,
	}
	if cfg.Client.Record != "" {
		rec, err := record.Create(cfg.Client.Record)
		if err != nil {
			sender.Close()
			return err
		}
		defer rec.Close()
		tc.Recorder = rec
	}

	ctrl, err := teleop.NewController(tc)
	if err != nil {
		sender.Close()
		return err
	}
	defer ctrl.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := ctrl.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("Controller error: %v", err)
		}
	}()

	p := tea.NewProgram(initialDriveModel(ctrl, virtual), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		log.Fatalf("Error running program: %v", err)
	}

	// Let the loop send its final stop before the sender closes.
	cancel()
	<-done
	return nil
}

// dialSender opens the configured command transport.
func dialSender(ctx context.Context, cfg config.ClientConfig, logger golog.Logger) (transport.Sender, error) {
	switch cfg.Transport {
	case config.TransportMQTT:
		return transport.DialMQTT(cfg.MQTTSender(), logger)
	default:
		return transport.DialWebSocket(ctx, cfg.WebSocket(), logger)
	}
}
