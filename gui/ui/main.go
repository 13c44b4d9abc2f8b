package ui

import (
	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	"serialbridge/gui/client"
)

// Title is shown in the window bar and the header
const Title = "Scale & Barcode Monitor"

// MainUI represents the main user interface
type MainUI struct {
	window     fyne.Window
	client     *client.Client
	monitor    *MonitorTab
	dashboard  *DashboardTab
	portConfig *PortConfigTab
	control    *ControlTab
}

// NewMainUI creates a new main UI talking to the service behind c
func NewMainUI(window fyne.Window, c *client.Client, configPath string) *MainUI {
	ui := &MainUI{
		window: window,
		client: c,
	}

	// Create tabs
	ui.monitor = NewMonitorTab(c)
	ui.dashboard = NewDashboardTab(c)
	ui.portConfig = NewPortConfigTab(window, configPath)
	ui.control = NewControlTab()

	return ui
}

// Build constructs the UI layout
func (m *MainUI) Build() *fyne.Container {
	tabs := container.NewAppTabs(
		container.NewTabItem("Monitor", m.monitor.Build()),
		container.NewTabItem("Dashboard", m.dashboard.Build()),
		container.NewTabItem("Port Configuration", m.portConfig.Build()),
		container.NewTabItem("Service Control", m.control.Build()),
	)

	return container.NewBorder(
		m.buildHeader(),
		m.buildFooter(),
		nil,
		nil,
		tabs,
	)
}

// Close stops background streams
func (m *MainUI) Close() {
	m.monitor.Stop()
}

// buildHeader creates the header section
func (m *MainUI) buildHeader() *fyne.Container {
	title := widget.NewLabelWithStyle(Title,
		fyne.TextAlignCenter,
		fyne.TextStyle{Bold: true})

	return container.NewVBox(
		title,
		widget.NewSeparator(),
	)
}

// buildFooter creates the footer section
func (m *MainUI) buildFooter() *fyne.Container {
	status := widget.NewLabel("Service: " + m.client.BaseURL())

	return container.NewVBox(
		widget.NewSeparator(),
		status,
	)
}
