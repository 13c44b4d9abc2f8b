package ui

import (
	"fmt"
	"strconv"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"serialbridge/config"
	"serialbridge/format"
	"serialbridge/session"
)

// fallbackConfigPath is tried when the installed config is missing
const fallbackConfigPath = "configs/example-config.json"

// PortForm holds the editable startup connection settings as entered
type PortForm struct {
	Port             string
	BaudRate         string
	DataBits         string
	StopBits         string
	Parity           string
	AutoConnect      bool
	SimulatorEnabled bool
}

// PortConfigTab edits the connection the service opens on startup
type PortConfigTab struct {
	configPath string
	config     *config.Config
	window     fyne.Window

	summary *widget.Label
}

// NewPortConfigTab creates a new port configuration tab
func NewPortConfigTab(window fyne.Window, configPath string) *PortConfigTab {
	return &PortConfigTab{
		configPath: configPath,
		window:     window,
	}
}

// Build constructs the port configuration UI
func (p *PortConfigTab) Build() *fyne.Container {
	p.summary = widget.NewLabel("")
	p.summary.Wrapping = fyne.TextWrapWord

	// Load configuration
	p.loadConfig()

	editBtn := widget.NewButton("Edit Startup Port", func() {
		if p.config == nil {
			dialog.ShowInformation("No Configuration", "Load a configuration first", p.window)
			return
		}
		p.showEditDialog()
	})

	saveBtn := widget.NewButton("Save Configuration", func() {
		p.saveConfig()
	})
	saveBtn.Importance = widget.HighImportance

	reloadBtn := widget.NewButton("Reload Configuration", func() {
		p.loadConfig()
	})

	buttons := container.NewVBox(
		editBtn,
		widget.NewSeparator(),
		saveBtn,
		reloadBtn,
	)

	// Info panel
	infoLabel := widget.NewLabel("Configuration file: " + p.configPath)
	infoLabel.Wrapping = fyne.TextWrapWord

	return container.NewBorder(
		container.NewVBox(
			widget.NewLabel("Startup Connection"),
			widget.NewSeparator(),
			infoLabel,
		),
		nil,
		nil,
		buttons,
		container.NewVScroll(p.summary),
	)
}

// loadConfig loads the configuration from file
func (p *PortConfigTab) loadConfig() {
	cfg, err := config.Load(p.configPath)
	if err != nil {
		// Try local config
		p.configPath = fallbackConfigPath
		cfg, err = config.Load(p.configPath)
		if err != nil {
			dialog.ShowError(fmt.Errorf("failed to load config: %w", err), p.window)
			return
		}
	}

	p.config = cfg
	p.summary.SetText(describeSession(cfg))
}

// saveConfig validates and writes the configuration
func (p *PortConfigTab) saveConfig() {
	if p.config == nil {
		return
	}
	if err := config.Validate(p.config, format.List()); err != nil {
		dialog.ShowError(fmt.Errorf("invalid configuration: %w", err), p.window)
		return
	}
	if err := config.Save(p.configPath, p.config); err != nil {
		dialog.ShowError(err, p.window)
		return
	}

	dialog.ShowInformation("Success", "Configuration saved. Restart the service to apply it.", p.window)
}

// showEditDialog shows the startup port form
func (p *PortConfigTab) showEditDialog() {
	current := formFromConfig(p.config)

	portEntry := widget.NewEntry()
	portEntry.SetText(current.Port)
	portEntry.SetPlaceHolder("/dev/ttyUSB0 or COM3")

	baudOptions := make([]string, 0, len(session.StandardBaudRates))
	for _, rate := range session.StandardBaudRates {
		baudOptions = append(baudOptions, strconv.Itoa(rate))
	}
	baudEntry := widget.NewSelectEntry(baudOptions)
	baudEntry.SetText(current.BaudRate)

	dataBitsSelect := widget.NewSelect([]string{"5", "6", "7", "8"}, nil)
	dataBitsSelect.SetSelected(current.DataBits)

	stopBitsSelect := widget.NewSelect([]string{"1", "2"}, nil)
	stopBitsSelect.SetSelected(current.StopBits)

	paritySelect := widget.NewSelect([]string{"none", "odd", "even", "mark", "space"}, nil)
	paritySelect.SetSelected(current.Parity)

	autoConnectCheck := widget.NewCheck("", nil)
	autoConnectCheck.SetChecked(current.AutoConnect)

	simulatorCheck := widget.NewCheck("", nil)
	simulatorCheck.SetChecked(current.SimulatorEnabled)

	items := []*widget.FormItem{
		{Text: "Port", Widget: portEntry},
		{Text: "Baud Rate", Widget: baudEntry},
		{Text: "Data Bits", Widget: dataBitsSelect},
		{Text: "Stop Bits", Widget: stopBitsSelect},
		{Text: "Parity", Widget: paritySelect},
		{Text: "Connect on Start", Widget: autoConnectCheck},
		{Text: "Simulator", Widget: simulatorCheck},
	}

	dialog.ShowForm("Edit Startup Port", "Apply", "Cancel", items, func(submitted bool) {
		if !submitted {
			return
		}
		form := PortForm{
			Port:             portEntry.Text,
			BaudRate:         baudEntry.Text,
			DataBits:         dataBitsSelect.Selected,
			StopBits:         stopBitsSelect.Selected,
			Parity:           paritySelect.Selected,
			AutoConnect:      autoConnectCheck.Checked,
			SimulatorEnabled: simulatorCheck.Checked,
		}
		if err := applyForm(p.config, form); err != nil {
			dialog.ShowError(err, p.window)
			return
		}
		p.summary.SetText(describeSession(p.config))
	}, p.window)
}

func formFromConfig(cfg *config.Config) PortForm {
	s := cfg.Session
	return PortForm{
		Port:             s.Port,
		BaudRate:         strconv.Itoa(s.BaudRate),
		DataBits:         strconv.Itoa(s.DataBits),
		StopBits:         strconv.Itoa(s.StopBits),
		Parity:           s.Parity,
		AutoConnect:      s.AutoConnect,
		SimulatorEnabled: cfg.Simulator.Enabled,
	}
}

// applyForm parses form into cfg. cfg is left untouched on error.
func applyForm(cfg *config.Config, form PortForm) error {
	baudRate, err := strconv.Atoi(strings.TrimSpace(form.BaudRate))
	if err != nil || baudRate <= 0 {
		return fmt.Errorf("invalid baud rate: %q", form.BaudRate)
	}
	dataBits, err := strconv.Atoi(form.DataBits)
	if err != nil {
		return fmt.Errorf("invalid data bits: %q", form.DataBits)
	}
	stopBits, err := strconv.Atoi(form.StopBits)
	if err != nil {
		return fmt.Errorf("invalid stop bits: %q", form.StopBits)
	}

	port := strings.TrimSpace(form.Port)
	if form.SimulatorEnabled && port == "" {
		port = config.SimulatorDevice
	}
	if form.AutoConnect && port == "" {
		return fmt.Errorf("a port is required to connect on start")
	}

	cfg.Session = config.SessionConfig{
		Port:        port,
		BaudRate:    baudRate,
		DataBits:    dataBits,
		StopBits:    stopBits,
		Parity:      form.Parity,
		AutoConnect: form.AutoConnect,
	}
	cfg.Simulator.Enabled = form.SimulatorEnabled
	return nil
}

// describeSession summarizes the startup connection for the tab body
func describeSession(cfg *config.Config) string {
	s := cfg.Session
	port := s.Port
	if port == "" {
		port = "(none)"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Port: %s\n", port)
	fmt.Fprintf(&b, "Settings: %d baud, %d data bits, %d stop bits, parity %s\n", s.BaudRate, s.DataBits, s.StopBits, s.Parity)
	if !session.IsStandardBaudRate(s.BaudRate) {
		b.WriteString("Warning: non-standard baud rate\n")
	}
	if s.AutoConnect {
		b.WriteString("Connects on service start\n")
	} else {
		b.WriteString("Waits for a connect command\n")
	}
	if cfg.Simulator.Enabled {
		fmt.Fprintf(&b, "Simulator: %s every %dms\n", strings.Join(cfg.Simulator.Sequence, ", "), cfg.Simulator.IntervalMs)
	}
	return b.String()
}
