package ui

import (
	"context"
	"fmt"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	"serialbridge/gui/client"
	"serialbridge/monitoring"
	"serialbridge/session"
)

// DashboardTab represents the dashboard UI
type DashboardTab struct {
	client          *client.Client
	statusLabel     *widget.Label
	instanceLabel   *widget.Label
	versionLabel    *widget.Label
	uptimeLabel     *widget.Label
	statsTable      *widget.Table
	refreshInterval time.Duration
	rows            [][2]string
	stopRefresh     chan bool
}

// NewDashboardTab creates a new dashboard tab
func NewDashboardTab(c *client.Client) *DashboardTab {
	return &DashboardTab{
		client:          c,
		refreshInterval: 2 * time.Second,
		stopRefresh:     make(chan bool),
	}
}

// Build constructs the dashboard UI
func (d *DashboardTab) Build() *fyne.Container {
	// Status section
	d.statusLabel = widget.NewLabel("Status: Unknown")
	d.instanceLabel = widget.NewLabel("Instance: -")
	d.versionLabel = widget.NewLabel("Version: -")
	d.uptimeLabel = widget.NewLabel("Uptime: -")

	statusCard := widget.NewCard("Service Status", d.client.BaseURL(), container.NewVBox(
		d.statusLabel,
		d.instanceLabel,
		d.versionLabel,
		d.uptimeLabel,
	))

	// Session table
	d.statsTable = widget.NewTable(
		func() (int, int) {
			return len(d.rows), 2
		},
		func() fyne.CanvasObject {
			return widget.NewLabel("")
		},
		func(id widget.TableCellID, cell fyne.CanvasObject) {
			label := cell.(*widget.Label)
			if id.Row >= len(d.rows) {
				return
			}
			row := d.rows[id.Row]
			label.SetText(row[id.Col])
			label.TextStyle = fyne.TextStyle{Bold: id.Col == 0}
			label.Importance = widget.MediumImportance
			if id.Col == 1 && id.Row == 0 {
				label.Importance = stateImportance(session.State(row[1]))
			}
			label.Refresh()
		},
	)
	d.statsTable.SetColumnWidth(0, 160)
	d.statsTable.SetColumnWidth(1, 320)

	sessionCard := widget.NewCard("Session", "", container.NewScroll(d.statsTable))

	// Refresh button
	refreshBtn := widget.NewButton("Refresh Now", func() {
		go d.fetchHealth()
	})

	// Auto-refresh toggle
	autoRefreshCheck := widget.NewCheck("Auto-refresh (2s)", func(checked bool) {
		if checked {
			go d.startAutoRefresh()
		} else {
			d.stopRefresh <- true
		}
	})
	// SetChecked fires the callback, which starts the refresh loop
	autoRefreshCheck.SetChecked(true)

	controls := container.NewHBox(
		refreshBtn,
		autoRefreshCheck,
	)

	return container.NewBorder(
		container.NewVBox(statusCard, controls),
		nil,
		nil,
		nil,
		sessionCard,
	)
}

// fetchHealth retrieves health data from the API
func (d *DashboardTab) fetchHealth() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	health, err := d.client.Health(ctx)
	fyne.Do(func() {
		if err != nil {
			d.statusLabel.SetText("Status: Error - " + err.Error())
			return
		}
		d.statusLabel.SetText(fmt.Sprintf("Status: %s", health.Status))
		d.instanceLabel.SetText(fmt.Sprintf("Instance: %s", health.InstanceID))
		d.versionLabel.SetText(fmt.Sprintf("Version: %s", health.Version))
		d.uptimeLabel.SetText(fmt.Sprintf("Uptime: %s", formatUptime(health.UptimeSec)))

		d.rows = sessionRows(health)
		d.statsTable.Refresh()
	})
}

// startAutoRefresh starts the automatic refresh loop
func (d *DashboardTab) startAutoRefresh() {
	ticker := time.NewTicker(d.refreshInterval)
	defer ticker.Stop()

	// Initial fetch
	d.fetchHealth()

	for {
		select {
		case <-ticker.C:
			d.fetchHealth()
		case <-d.stopRefresh:
			return
		}
	}
}

// sessionRows flattens the session part of a health reply into table rows
func sessionRows(health *monitoring.HealthResponse) [][2]string {
	info := health.Session
	port, baud := "-", "-"
	if info.Config != nil {
		port = info.Config.PortPath
		baud = fmt.Sprintf("%d", info.Config.BaudRate)
	}

	rows := [][2]string{
		{"State", string(info.State)},
		{"Port", port},
		{"Baud Rate", baud},
		{"Records", fmt.Sprintf("%d", info.Stats.RecordsReceived)},
		{"Bytes In", fmt.Sprintf("%d", info.Stats.BytesReceived)},
		{"Bytes Out", fmt.Sprintf("%d", info.Stats.BytesSent)},
		{"Buffered", fmt.Sprintf("%d", info.Buffered)},
		{"Errors", fmt.Sprintf("%d", info.Stats.Errors)},
		{"Subscribers", fmt.Sprintf("%d", info.Subscribers)},
		{"Last Record", formatClock(info.Stats.LastRecordTime)},
	}
	if info.Stats.LastError != "" {
		rows = append(rows, [2]string{"Last Error", info.Stats.LastError})
	}
	return rows
}

func stateImportance(state session.State) widget.Importance {
	switch state {
	case session.StateOpen:
		return widget.SuccessImportance
	case session.StateFaulted:
		return widget.DangerImportance
	case session.StateConnecting, session.StateClosing:
		return widget.WarningImportance
	}
	return widget.MediumImportance
}

func formatClock(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("15:04:05")
}

// formatUptime formats uptime seconds into a readable string
func formatUptime(seconds int64) string {
	duration := time.Duration(seconds) * time.Second
	hours := int(duration.Hours())
	minutes := int(duration.Minutes()) % 60
	secs := int(duration.Seconds()) % 60

	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, secs)
	} else if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, secs)
	}
	return fmt.Sprintf("%ds", secs)
}
