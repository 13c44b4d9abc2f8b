// Package client talks to the serialbridge monitoring API. It carries no UI
// dependencies so the control panel logic can be tested without a display.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"serialbridge/monitoring"
	"serialbridge/session"
)

// DefaultURL is the monitoring address of a locally installed service
const DefaultURL = "http://localhost:8080"

// APIError is a non-2xx reply from the service
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

// Client is an HTTP and websocket client for one service instance
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client for the service at baseURL
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// BaseURL returns the service address
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Health fetches /health. A degraded service answers 503 with a full body,
// which is returned without error.
func (c *Client) Health(ctx context.Context) (*monitoring.HealthResponse, error) {
	var health monitoring.HealthResponse
	err := c.do(ctx, http.MethodGet, "/health", nil, &health, http.StatusServiceUnavailable)
	if err != nil {
		return nil, err
	}
	return &health, nil
}

// Ports lists the serial ports the service can see
func (c *Client) Ports(ctx context.Context) (*monitoring.PortsResponse, error) {
	var resp monitoring.PortsResponse
	if err := c.do(ctx, http.MethodGet, "/api/ports", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Session returns the current session snapshot
func (c *Client) Session(ctx context.Context) (*session.Info, error) {
	var info session.Info
	if err := c.do(ctx, http.MethodGet, "/api/session", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Connect asks the service to open cfg
func (c *Client) Connect(ctx context.Context, cfg session.Config) (*monitoring.CommandResponse, error) {
	return c.command(ctx, "/api/connect", cfg)
}

// Disconnect asks the service to close the session
func (c *Client) Disconnect(ctx context.Context) (*monitoring.CommandResponse, error) {
	return c.command(ctx, "/api/disconnect", struct{}{})
}

// Send writes data to the device unchanged
func (c *Client) Send(ctx context.Context, data string) (*monitoring.CommandResponse, error) {
	return c.command(ctx, "/api/send", monitoring.SendRequest{Data: data})
}

// Records returns up to limit recent records, oldest first
func (c *Client) Records(ctx context.Context, limit int) ([]monitoring.RecentRecord, error) {
	var resp struct {
		Records []monitoring.RecentRecord `json:"records"`
	}
	path := "/api/records"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Records, nil
}

func (c *Client) command(ctx context.Context, path string, body any) (*monitoring.CommandResponse, error) {
	var resp monitoring.CommandResponse
	if err := c.do(ctx, http.MethodPost, path, body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// do performs a JSON request. Statuses listed in accept are decoded like 2xx.
func (c *Client) do(ctx context.Context, method, path string, body, out any, accept ...int) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("cannot reach service: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("cannot read response: %w", err)
	}

	ok := resp.StatusCode >= 200 && resp.StatusCode < 300
	for _, status := range accept {
		if resp.StatusCode == status {
			ok = true
		}
	}
	if !ok {
		var apiErr monitoring.ErrorResponse
		if json.Unmarshal(data, &apiErr) != nil || apiErr.Error == "" {
			apiErr.Error = strings.TrimSpace(string(data))
		}
		return &APIError{Status: resp.StatusCode, Message: apiErr.Error}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("invalid response: %w", err)
	}
	return nil
}

// StreamHandlers receive frames from Stream. Nil handlers are skipped.
type StreamHandlers struct {
	OnSnapshot func(session.Info)
	OnEvent    func(session.Event)
}

// Stream follows /ws until ctx ends or the service closes the stream. It
// returns nil when ctx was cancelled.
func (c *Client) Stream(ctx context.Context, h StreamHandlers) error {
	ws, _, err := websocket.Dial(ctx, c.wsURL(), nil)
	if err != nil {
		return fmt.Errorf("cannot open stream: %w", err)
	}
	defer ws.Close(websocket.StatusNormalClosure, "")

	for {
		var raw json.RawMessage
		if err := wsjson.Read(ctx, ws, &raw); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			var ce websocket.CloseError
			if errors.As(err, &ce) && ce.Code == websocket.StatusNormalClosure {
				return nil
			}
			return err
		}
		if err := dispatch(raw, h); err != nil {
			return err
		}
	}
}

func dispatch(raw json.RawMessage, h StreamHandlers) error {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return fmt.Errorf("invalid frame: %w", err)
	}

	if head.Type == "session" {
		var snap monitoring.SnapshotFrame
		if err := json.Unmarshal(raw, &snap); err != nil {
			return fmt.Errorf("invalid snapshot: %w", err)
		}
		if h.OnSnapshot != nil {
			h.OnSnapshot(snap.Session)
		}
		return nil
	}

	var ev session.Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return fmt.Errorf("invalid event: %w", err)
	}
	if h.OnEvent != nil {
		h.OnEvent(ev)
	}
	return nil
}

func (c *Client) wsURL() string {
	switch {
	case strings.HasPrefix(c.baseURL, "https://"):
		return "wss://" + strings.TrimPrefix(c.baseURL, "https://") + "/ws"
	case strings.HasPrefix(c.baseURL, "http://"):
		return "ws://" + strings.TrimPrefix(c.baseURL, "http://") + "/ws"
	}
	return c.baseURL + "/ws"
}
