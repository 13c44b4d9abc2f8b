package ui

import (
	"fmt"
	"os/exec"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
)

// ServiceName is the systemd unit the control tab manages
const ServiceName = "serialbridge.service"

// ControlTab represents the service control UI
type ControlTab struct {
	serviceName string
	statusLabel *widget.Label
	outputText  *widget.Entry
}

// NewControlTab creates a new control tab
func NewControlTab() *ControlTab {
	return &ControlTab{
		serviceName: ServiceName,
	}
}

// Build constructs the control UI
func (c *ControlTab) Build() *fyne.Container {
	// Status display
	c.statusLabel = widget.NewLabel("Service Status: Unknown")
	c.statusLabel.TextStyle = fyne.TextStyle{Bold: true}

	statusCard := widget.NewCard("Current Status", c.serviceName, c.statusLabel)

	// Control buttons
	startBtn := widget.NewButton("Start Service", func() {
		go c.executeCommand("start")
	})
	startBtn.Importance = widget.SuccessImportance

	stopBtn := widget.NewButton("Stop Service", func() {
		go c.executeCommand("stop")
	})
	stopBtn.Importance = widget.DangerImportance

	restartBtn := widget.NewButton("Restart Service", func() {
		go c.executeCommand("restart")
	})
	restartBtn.Importance = widget.WarningImportance

	statusBtn := widget.NewButton("Check Status", func() {
		go c.checkStatus()
	})

	enableBtn := widget.NewButton("Enable Auto-Start", func() {
		go c.executeCommand("enable")
	})

	disableBtn := widget.NewButton("Disable Auto-Start", func() {
		go c.executeCommand("disable")
	})

	// Output log
	c.outputText = widget.NewMultiLineEntry()
	c.outputText.SetPlaceHolder("Command output will appear here...")
	c.outputText.Wrapping = fyne.TextWrapWord

	outputCard := widget.NewCard("Command Output", "", container.NewScroll(c.outputText))

	content := container.NewBorder(
		container.NewVBox(
			statusCard,
			widget.NewSeparator(),
			widget.NewLabel("Service Control"),
			container.NewGridWithColumns(3, startBtn, stopBtn, restartBtn),
			statusBtn,
			widget.NewSeparator(),
			widget.NewLabel("Auto-Start Configuration"),
			container.NewGridWithColumns(2, enableBtn, disableBtn),
			widget.NewSeparator(),
		),
		nil,
		nil,
		nil,
		outputCard,
	)

	// Initial status check
	go c.checkStatus()

	return content
}

// executeCommand runs a systemctl action against the unit
func (c *ControlTab) executeCommand(action string) {
	c.appendOutput(fmt.Sprintf("Executing: systemctl %s %s\n", action, c.serviceName))

	output, err := exec.Command("systemctl", action, c.serviceName).CombinedOutput()
	if err != nil {
		c.appendOutput(fmt.Sprintf("Error: %v\n", err))
	}
	c.appendOutput(string(output) + "\n")

	// Update status after command
	c.checkStatus()
}

// checkStatus checks the current service status
func (c *ControlTab) checkStatus() {
	output, err := exec.Command("systemctl", "status", c.serviceName).CombinedOutput()
	text, importance := parseServiceStatus(string(output))

	fyne.Do(func() {
		c.statusLabel.SetText("Service Status: " + text)
		c.statusLabel.Importance = importance
		c.statusLabel.Refresh()
	})

	// systemctl status exits non-zero for stopped units
	if err != nil && text == "UNKNOWN" {
		c.appendOutput(fmt.Sprintf("Status check error: %v\n", err))
	}
}

// parseServiceStatus reads the Active: line of systemctl status output
func parseServiceStatus(output string) (string, widget.Importance) {
	switch {
	case strings.Contains(output, "Active: active (running)"):
		return "RUNNING", widget.SuccessImportance
	case strings.Contains(output, "Active: activating"):
		return "STARTING", widget.WarningImportance
	case strings.Contains(output, "Active: inactive"):
		return "STOPPED", widget.MediumImportance
	case strings.Contains(output, "Active: failed"):
		return "FAILED", widget.DangerImportance
	}
	return "UNKNOWN", widget.WarningImportance
}

// appendOutput appends text to the output display
func (c *ControlTab) appendOutput(text string) {
	fyne.Do(func() {
		c.outputText.SetText(c.outputText.Text + text)
		c.outputText.CursorRow = len(strings.Split(c.outputText.Text, "\n"))
	})
}
