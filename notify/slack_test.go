package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serialbridge/config"
	"serialbridge/serial"
	"serialbridge/session"
)

type webhook struct {
	mu       sync.Mutex
	messages []SlackMessage
	status   int
}

func (h *webhook) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var msg SlackMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.mu.Lock()
	h.messages = append(h.messages, msg)
	status := h.status
	h.mu.Unlock()
	if status != 0 {
		w.WriteHeader(status)
	}
}

func (h *webhook) received() []SlackMessage {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]SlackMessage(nil), h.messages...)
}

func newTestNotifier(t *testing.T, hook *webhook, cfg config.SlackConfig) *SlackNotifier {
	t.Helper()
	srv := httptest.NewServer(hook)
	t.Cleanup(srv.Close)
	cfg.WebhookURL = srv.URL
	app := &config.AppConfig{Name: "SerialBridge", InstanceID: "lane-3"}
	return NewSlackNotifier(&cfg, app, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func fieldValue(msg SlackMessage, title string) string {
	for _, f := range msg.Attachments[0].Fields {
		if f.Title == title {
			return f.Value
		}
	}
	return ""
}

func TestSlackNotifier_Disabled(t *testing.T) {
	n := NewSlackNotifier(&config.SlackConfig{NotifyStartup: true}, &config.AppConfig{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.False(t, n.IsEnabled())
	assert.NoError(t, n.NotifyStartup(context.Background(), "COM3"))
}

func TestSlackNotifier_Lifecycle(t *testing.T) {
	hook := &webhook{}
	n := newTestNotifier(t, hook, config.SlackConfig{NotifyStartup: true, NotifyShutdown: true})
	ctx := context.Background()

	require.NoError(t, n.NotifyStartup(ctx, "/dev/ttyUSB0"))
	require.NoError(t, n.NotifyShutdown(ctx, session.Stats{RecordsReceived: 42, Errors: 1}, 90*time.Minute+5*time.Second))
	// errors not enabled
	require.NoError(t, n.NotifyError(ctx, "/dev/ttyUSB0", "boom"))

	msgs := hook.received()
	require.Len(t, msgs, 2)

	assert.Equal(t, "SerialBridge Started", msgs[0].Attachments[0].Title)
	assert.Equal(t, "good", msgs[0].Attachments[0].Color)
	assert.Equal(t, "/dev/ttyUSB0", fieldValue(msgs[0], "Port"))
	assert.Equal(t, "lane-3", fieldValue(msgs[0], "Instance"))

	assert.Equal(t, "SerialBridge Stopped", msgs[1].Attachments[0].Title)
	assert.Equal(t, "42", fieldValue(msgs[1], "Records Received"))
	assert.Equal(t, "1h 30m 5s", fieldValue(msgs[1], "Uptime"))
}

func TestSlackNotifier_BadStatus(t *testing.T) {
	hook := &webhook{status: http.StatusForbidden}
	n := newTestNotifier(t, hook, config.SlackConfig{NotifyErrors: true})

	err := n.NotifyError(context.Background(), "COM3", "framing error")
	assert.EqualError(t, err, "Slack returned non-OK status: 403")
}

func TestSlackNotifier_WatchForwardsTransportErrors(t *testing.T) {
	hook := &webhook{}
	n := newTestNotifier(t, hook, config.SlackConfig{NotifyErrors: true})

	driver := serial.NewMockDriver()
	m := session.NewManager(driver, slog.New(slog.NewTextHandler(io.Discard, nil)))
	defer m.Close()
	n.Watch(m)

	_, err := m.Connect(context.Background(), session.Config{PortPath: "/dev/ttyUSB0"})
	require.NoError(t, err)
	driver.Last().Fail(errors.New("device unplugged"))

	require.Eventually(t, func() bool { return len(hook.received()) == 1 }, 2*time.Second, 10*time.Millisecond)
	msg := hook.received()[0]
	assert.Equal(t, "danger", msg.Attachments[0].Color)
	assert.Equal(t, "/dev/ttyUSB0", fieldValue(msg, "Port"))
	assert.Contains(t, fieldValue(msg, "Error"), "device unplugged")
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "45s", formatDuration(45*time.Second))
	assert.Equal(t, "2m 3s", formatDuration(123*time.Second))
	assert.Equal(t, "1h 0m 0s", formatDuration(time.Hour))
}
