package monitoring

import (
	"bufio"
	"io"
	"net/http"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// procSerialPath is the kernel's UART status table
var procSerialPath = "/proc/tty/driver/serial"

// e.g. "4: uart:16550A port:000002F0 irq:7 tx:1195 rx:1170 CTS|DSR|CD"
var uartLine = regexp.MustCompile(`^\s*(\d+):\s+uart:(\S+)\s+port:([0-9A-Fa-f]+)\s+irq:(\d+)\s+tx:(\d+)\s+rx:(\d+)(.*)$`)

// SysPortInfo contains system-level serial port information
type SysPortInfo struct {
	Device  string `json:"device"`
	UART    string `json:"uart"`
	Port    string `json:"port"`
	IRQ     int    `json:"irq"`
	TX      int64  `json:"tx"`
	RX      int64  `json:"rx"`
	Signals string `json:"signals"`
	Active  bool   `json:"active"`
	COMPort string `json:"com_port"`
}

// SysPortsHandler handles requests for system serial port info
type SysPortsHandler struct{}

// NewSysPortsHandler creates a new system ports handler
func NewSysPortsHandler() *SysPortsHandler {
	return &SysPortsHandler{}
}

// ServeHTTP handles system port info requests
func (h *SysPortsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	file, err := os.Open(procSerialPath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer file.Close()

	ports, err := parseSysPorts(file)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ports": ports,
	})
}

// parseSysPorts reads hardware UARTs from the kernel table, skipping
// "unknown" entries
func parseSysPorts(r io.Reader) ([]SysPortInfo, error) {
	ports := []SysPortInfo{}
	scanner := bufio.NewScanner(r)

	for scanner.Scan() {
		matches := uartLine.FindStringSubmatch(scanner.Text())
		if len(matches) < 8 || matches[2] == "unknown" {
			continue
		}

		portNum, _ := strconv.Atoi(matches[1])
		irq, _ := strconv.Atoi(matches[4])
		tx, _ := strconv.ParseInt(matches[5], 10, 64)
		rx, _ := strconv.ParseInt(matches[6], 10, 64)
		signals := strings.TrimSpace(matches[7])

		// A peer is present when it raises CTS/DSR/CD or traffic flowed both ways
		hasRemoteSignals := strings.Contains(signals, "CTS") ||
			strings.Contains(signals, "DSR") ||
			strings.Contains(signals, "CD")
		hasBidirectional := tx > 0 && rx > 0

		ports = append(ports, SysPortInfo{
			Device:  "/dev/ttyS" + strconv.Itoa(portNum),
			UART:    matches[2],
			Port:    "0x" + strings.ToUpper(matches[3]),
			IRQ:     irq,
			TX:      tx,
			RX:      rx,
			Signals: signals,
			Active:  hasRemoteSignals || hasBidirectional,
			COMPort: "COM" + strconv.Itoa(portNum+1),
		})
	}

	return ports, scanner.Err()
}
