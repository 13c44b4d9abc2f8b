package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"serialbridge/config"
	"serialbridge/session"
)

// SlackNotifier sends session lifecycle notifications to Slack
type SlackNotifier struct {
	config     *config.SlackConfig
	appName    string
	instanceID string
	logger     *slog.Logger
	client     *http.Client
}

// SlackMessage represents a Slack webhook message
type SlackMessage struct {
	Text        string            `json:"text,omitempty"`
	Attachments []SlackAttachment `json:"attachments,omitempty"`
}

// SlackAttachment represents a Slack message attachment
type SlackAttachment struct {
	Color      string       `json:"color,omitempty"`
	Title      string       `json:"title,omitempty"`
	Text       string       `json:"text,omitempty"`
	Fields     []SlackField `json:"fields,omitempty"`
	Footer     string       `json:"footer,omitempty"`
	FooterIcon string       `json:"footer_icon,omitempty"`
	Timestamp  int64        `json:"ts,omitempty"`
}

// SlackField represents a field in a Slack attachment
type SlackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

// NewSlackNotifier creates a new Slack notifier
func NewSlackNotifier(cfg *config.SlackConfig, app *config.AppConfig, logger *slog.Logger) *SlackNotifier {
	return &SlackNotifier{
		config:     cfg,
		appName:    app.Name,
		instanceID: app.InstanceID,
		logger:     logger.With("component", "slack"),
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// IsEnabled returns true if Slack notifications are configured
func (s *SlackNotifier) IsEnabled() bool {
	return s.config.WebhookURL != ""
}

// NotifyStartup sends a startup notification
func (s *SlackNotifier) NotifyStartup(ctx context.Context, port string) error {
	if !s.IsEnabled() || !s.config.NotifyStartup {
		return nil
	}

	if port == "" {
		port = "(none)"
	}
	return s.send(ctx, s.attachment("good", s.appName+" Started",
		SlackField{Title: "Instance", Value: s.instanceID, Short: true},
		SlackField{Title: "Port", Value: port, Short: true},
	))
}

// NotifyShutdown sends a shutdown notification
func (s *SlackNotifier) NotifyShutdown(ctx context.Context, stats session.Stats, uptime time.Duration) error {
	if !s.IsEnabled() || !s.config.NotifyShutdown {
		return nil
	}

	return s.send(ctx, s.attachment("warning", s.appName+" Stopped",
		SlackField{Title: "Instance", Value: s.instanceID, Short: true},
		SlackField{Title: "Uptime", Value: formatDuration(uptime), Short: true},
		SlackField{Title: "Records Received", Value: fmt.Sprintf("%d", stats.RecordsReceived), Short: true},
		SlackField{Title: "Errors", Value: fmt.Sprintf("%d", stats.Errors), Short: true},
	))
}

// NotifyError sends a transport error notification
func (s *SlackNotifier) NotifyError(ctx context.Context, port, message string) error {
	if !s.IsEnabled() || !s.config.NotifyErrors {
		return nil
	}

	return s.send(ctx, s.attachment("danger", s.appName+" Error",
		SlackField{Title: "Instance", Value: s.instanceID, Short: true},
		SlackField{Title: "Port", Value: port, Short: true},
		SlackField{Title: "Error", Value: message, Short: false},
	))
}

// Watch forwards the manager's transport errors to Slack and returns the
// subscription ID
func (s *SlackNotifier) Watch(m *session.Manager) string {
	return m.OnError(func(message string) {
		port := ""
		if cfg, ok := m.Config(); ok {
			port = cfg.PortPath
		}
		ctx, cancel := context.WithTimeout(context.Background(), s.client.Timeout)
		defer cancel()
		if err := s.NotifyError(ctx, port, message); err != nil {
			s.logger.Warn("Failed to send error notification", "error", err)
		}
	})
}

func (s *SlackNotifier) attachment(color, title string, fields ...SlackField) SlackMessage {
	return SlackMessage{
		Attachments: []SlackAttachment{
			{
				Color:     color,
				Title:     title,
				Fields:    fields,
				Footer:    s.appName,
				Timestamp: time.Now().Unix(),
			},
		},
	}
}

func (s *SlackNotifier) send(ctx context.Context, msg SlackMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal Slack message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send Slack message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("Slack returned non-OK status: %d", resp.StatusCode)
	}

	s.logger.Debug("Slack notification sent", "title", msg.Attachments[0].Title)
	return nil
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
