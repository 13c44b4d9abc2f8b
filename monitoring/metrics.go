package monitoring

import (
	"fmt"
	"net/http"

	"serialbridge/session"
)

var allStates = []session.State{
	session.StateIdle,
	session.StateConnecting,
	session.StateOpen,
	session.StateClosing,
	session.StateFaulted,
}

// MetricsHandler creates an HTTP handler for Prometheus metrics
type MetricsHandler struct {
	manager *session.Manager
}

// NewMetricsHandler creates a new metrics handler
func NewMetricsHandler(manager *session.Manager) *MetricsHandler {
	return &MetricsHandler{
		manager: manager,
	}
}

// ServeHTTP handles the /metrics endpoint in Prometheus format
func (h *MetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	info := h.manager.Info()
	port := ""
	if info.Config != nil {
		port = info.Config.PortPath
	}

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	counter(w, "serialbridge_records_total", "Total records framed from the line", port, info.Stats.RecordsReceived)
	counter(w, "serialbridge_bytes_received_total", "Total bytes read from the line", port, info.Stats.BytesReceived)
	counter(w, "serialbridge_bytes_sent_total", "Total bytes written to the line", port, info.Stats.BytesSent)
	counter(w, "serialbridge_errors_total", "Total connection, transport and send errors", port, info.Stats.Errors)
	counter(w, "serialbridge_connects_total", "Total successful connects", port, info.Stats.Connects)

	// Session state
	fmt.Fprintln(w, "# HELP serialbridge_session_state Current session state (1 for the active state)")
	fmt.Fprintln(w, "# TYPE serialbridge_session_state gauge")
	for _, state := range allStates {
		v := 0
		if info.State == state {
			v = 1
		}
		fmt.Fprintf(w, "serialbridge_session_state{state=%q} %d\n", state, v)
	}

	// Subscribers
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "# HELP serialbridge_subscribers Attached event subscribers")
	fmt.Fprintln(w, "# TYPE serialbridge_subscribers gauge")
	fmt.Fprintf(w, "serialbridge_subscribers %d\n", info.Subscribers)

	// Frame buffer
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "# HELP serialbridge_buffered_bytes Bytes waiting for a line terminator")
	fmt.Fprintln(w, "# TYPE serialbridge_buffered_bytes gauge")
	fmt.Fprintf(w, "serialbridge_buffered_bytes %d\n", info.Buffered)

	// Last record timestamp
	if !info.Stats.LastRecordTime.IsZero() {
		fmt.Fprintln(w, "")
		fmt.Fprintln(w, "# HELP serialbridge_last_record_timestamp Unix timestamp of last record received")
		fmt.Fprintln(w, "# TYPE serialbridge_last_record_timestamp gauge")
		fmt.Fprintf(w, "serialbridge_last_record_timestamp{port=%q} %d\n", port, info.Stats.LastRecordTime.Unix())
	}
}

func counter(w http.ResponseWriter, name, help, port string, value int64) {
	fmt.Fprintf(w, "# HELP %s %s\n", name, help)
	fmt.Fprintf(w, "# TYPE %s counter\n", name)
	fmt.Fprintf(w, "%s{port=%q} %d\n", name, port, value)
	fmt.Fprintln(w, "")
}
