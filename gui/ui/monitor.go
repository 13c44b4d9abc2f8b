package ui

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	"serialbridge/gui/client"
	"serialbridge/monitoring"
	"serialbridge/serial"
	"serialbridge/session"
)

// TestPayload is what the Test button writes to the device
const TestPayload = "TEST\r\n"

// MonitorTab shows live scale and barcode readings and drives the session
type MonitorTab struct {
	client   *client.Client
	readings *client.Readings

	ports    []serial.PortDescriptor
	selected string
	baudRate int

	portSelect    *widget.Select
	baudSelect    *widget.Select
	refreshBtn    *widget.Button
	connectBtn    *widget.Button
	disconnectBtn *widget.Button
	testBtn       *widget.Button
	indicator     *widget.Label
	statusLabel   *widget.Label
	weightLabel   *widget.Label
	barcodeLabel  *widget.Label
	recordList    *widget.List
	recent        []session.Record

	cancel context.CancelFunc
}

// NewMonitorTab creates a new monitor tab
func NewMonitorTab(c *client.Client) *MonitorTab {
	return &MonitorTab{
		client:   c,
		readings: client.NewReadings(),
		baudRate: session.DefaultBaudRate,
	}
}

// Build constructs the monitor UI
func (m *MonitorTab) Build() *fyne.Container {
	m.portSelect = widget.NewSelect(nil, func(value string) {
		m.selected = m.pathFor(value)
		m.render()
	})
	m.portSelect.PlaceHolder = "Select port..."

	baudOptions := make([]string, 0, len(session.StandardBaudRates))
	for _, rate := range session.StandardBaudRates {
		baudOptions = append(baudOptions, strconv.Itoa(rate))
	}
	m.baudSelect = widget.NewSelect(baudOptions, func(value string) {
		if rate, err := strconv.Atoi(value); err == nil {
			m.baudRate = rate
		}
	})
	m.baudSelect.SetSelected(strconv.Itoa(m.baudRate))

	m.refreshBtn = widget.NewButton("Refresh Ports", func() { go m.loadPorts() })
	m.connectBtn = widget.NewButton("Connect", func() {
		path, baud := m.selected, m.baudRate
		go m.connect(path, baud)
	})
	m.connectBtn.Importance = widget.HighImportance
	m.disconnectBtn = widget.NewButton("Disconnect", func() { go m.disconnect() })
	m.testBtn = widget.NewButton("Test", func() { go m.sendTest() })

	m.indicator = widget.NewLabelWithStyle("Disconnected", fyne.TextAlignLeading, fyne.TextStyle{Bold: true})
	m.statusLabel = widget.NewLabel("")
	m.statusLabel.Wrapping = fyne.TextWrapWord

	m.weightLabel = widget.NewLabelWithStyle("No data", fyne.TextAlignCenter, fyne.TextStyle{Bold: true, Monospace: true})
	m.barcodeLabel = widget.NewLabelWithStyle("No data", fyne.TextAlignCenter, fyne.TextStyle{Bold: true, Monospace: true})

	m.recordList = widget.NewList(
		func() int {
			return len(m.recent)
		},
		func() fyne.CanvasObject {
			return widget.NewLabelWithStyle("", fyne.TextAlignLeading, fyne.TextStyle{Monospace: true})
		},
		func(id widget.ListItemID, obj fyne.CanvasObject) {
			if id < len(m.recent) {
				obj.(*widget.Label).SetText(formatRecord(m.recent[id]))
			}
		},
	)

	controls := container.NewVBox(
		container.NewGridWithColumns(2,
			container.NewBorder(nil, nil, widget.NewLabel("Serial Port:"), nil, m.portSelect),
			container.NewBorder(nil, nil, widget.NewLabel("Baud Rate:"), nil, m.baudSelect),
		),
		container.NewGridWithColumns(4, m.refreshBtn, m.connectBtn, m.disconnectBtn, m.testBtn),
		container.NewHBox(m.indicator, m.statusLabel),
	)

	readings := container.NewGridWithColumns(2,
		widget.NewCard("Scale", "", m.weightLabel),
		widget.NewCard("Barcode", "", m.barcodeLabel),
	)

	content := container.NewBorder(
		container.NewVBox(controls, widget.NewSeparator(), readings),
		nil,
		nil,
		nil,
		widget.NewCard(fmt.Sprintf("Received Data (last %d)", client.RecentLimit), "", m.recordList),
	)

	m.render()

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	go m.loadPorts()
	go m.follow(ctx)

	return content
}

// Stop ends the event stream
func (m *MonitorTab) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
}

// follow keeps a stream open, reconnecting while the service is away
func (m *MonitorTab) follow(ctx context.Context) {
	for {
		err := m.client.Stream(ctx, client.StreamHandlers{
			OnSnapshot: func(info session.Info) {
				m.readings.ApplySnapshot(info)
				fyne.Do(m.render)
			},
			OnEvent: func(ev session.Event) {
				m.readings.Apply(ev)
				fyne.Do(m.render)
			},
		})
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			m.readings.SetStatus("Service unavailable: " + err.Error())
			fyne.Do(m.render)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(2 * time.Second):
		}
	}
}

func (m *MonitorTab) loadPorts() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := m.client.Ports(ctx)
	if err != nil {
		m.readings.SetStatus("Error loading ports: " + err.Error())
		fyne.Do(m.render)
		return
	}
	if resp.Warning != "" {
		m.readings.SetStatus(resp.Warning)
	}

	fyne.Do(func() {
		m.ports = resp.Ports
		options := make([]string, 0, len(m.ports))
		for _, p := range m.ports {
			options = append(options, portLabel(p))
		}
		m.portSelect.SetOptions(options)
		m.render()
	})
}

func (m *MonitorTab) connect(path string, baudRate int) {
	if path == "" {
		return
	}
	m.readings.SetStatus("Connecting...")
	fyne.Do(m.render)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	m.result(m.client.Connect(ctx, session.Config{PortPath: path, BaudRate: baudRate}))
}

func (m *MonitorTab) disconnect() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	m.result(m.client.Disconnect(ctx))
}

func (m *MonitorTab) sendTest() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := m.client.Send(ctx, TestPayload)
	if err == nil {
		resp.Message = "Test command sent"
	}
	m.result(resp, err)
}

func (m *MonitorTab) result(resp *monitoring.CommandResponse, err error) {
	if err != nil {
		m.readings.SetStatus("Error: " + err.Error())
	} else {
		m.readings.SetStatus(resp.Message)
	}
	fyne.Do(m.render)
}

// render copies the readings model into the widgets. Runs on the UI goroutine.
func (m *MonitorTab) render() {
	snap := m.readings.Snapshot()

	if snap.Connected {
		m.indicator.SetText("Connected")
		m.indicator.Importance = widget.SuccessImportance
	} else {
		m.indicator.SetText(stateLabel(snap.State))
		m.indicator.Importance = widget.DangerImportance
	}
	m.indicator.Refresh()
	m.statusLabel.SetText(snap.Status)

	m.weightLabel.SetText(orNoData(snap.Weight))
	m.barcodeLabel.SetText(orNoData(snap.Barcode))

	m.recent = snap.Recent
	m.recordList.Refresh()

	// port and baud are fixed while a session is live
	busy := snap.State == session.StateOpen || snap.State == session.StateConnecting
	setEnabled(m.portSelect, !busy)
	setEnabled(m.baudSelect, !busy)
	setEnabled(m.refreshBtn, !busy)
	setEnabled(m.connectBtn, !busy && m.selected != "")
	setEnabled(m.disconnectBtn, snap.Connected || snap.State == session.StateFaulted)
	setEnabled(m.testBtn, snap.Connected)
}

func (m *MonitorTab) pathFor(label string) string {
	for _, p := range m.ports {
		if portLabel(p) == label {
			return p.Path
		}
	}
	return ""
}

type disableable interface {
	Enable()
	Disable()
}

func setEnabled(w disableable, enabled bool) {
	if enabled {
		w.Enable()
	} else {
		w.Disable()
	}
}

// portLabel renders a port the way the selector lists it
func portLabel(p serial.PortDescriptor) string {
	name := p.Manufacturer
	if name == "" {
		name = p.Product
	}
	if name == "" {
		name = "Unknown"
	}
	return fmt.Sprintf("%s - %s", p.Path, name)
}

func stateLabel(state session.State) string {
	switch state {
	case session.StateConnecting:
		return "Connecting"
	case session.StateFaulted:
		return "Faulted"
	case session.StateClosing:
		return "Closing"
	}
	return "Disconnected"
}

func formatRecord(rec session.Record) string {
	return fmt.Sprintf("%s  %s  %s", rec.ObservedAt.Local().Format("15:04:05"), rec.SourcePort, rec.Payload)
}

func orNoData(s string) string {
	if s == "" {
		return "No data"
	}
	return s
}
