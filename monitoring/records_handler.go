package monitoring

import (
	"net/http"
	"strconv"
	"sync"

	"serialbridge/format"
	"serialbridge/session"
)

const defaultRecordLimit = 10

// RecentRecord is a received record with its classification
type RecentRecord struct {
	session.Record
	Kind string `json:"kind"`
}

// RecordBuffer keeps the most recent records in memory
type RecordBuffer struct {
	mu      sync.Mutex
	records []RecentRecord
	next    int
	full    bool

	manager *session.Manager
	subID   string
}

// NewRecordBuffer creates a buffer holding up to size records
func NewRecordBuffer(size int) *RecordBuffer {
	if size < 1 {
		size = 1
	}
	return &RecordBuffer{records: make([]RecentRecord, size)}
}

// Attach subscribes the buffer to the manager's records
func (b *RecordBuffer) Attach(m *session.Manager) {
	b.mu.Lock()
	b.manager = m
	b.mu.Unlock()

	id := m.OnRecord(b.Add)

	b.mu.Lock()
	b.subID = id
	b.mu.Unlock()
}

// Detach drops the subscription made by Attach
func (b *RecordBuffer) Detach() {
	b.mu.Lock()
	m, id := b.manager, b.subID
	b.manager, b.subID = nil, ""
	b.mu.Unlock()

	if m != nil && id != "" {
		m.Unsubscribe(id)
	}
}

// Add stores rec, evicting the oldest record when full
func (b *RecordBuffer) Add(rec session.Record) {
	entry := RecentRecord{Record: rec, Kind: format.Classify(rec.Payload)}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.records[b.next] = entry
	b.next = (b.next + 1) % len(b.records)
	if b.next == 0 {
		b.full = true
	}
}

// Recent returns up to limit records, oldest first
func (b *RecordBuffer) Recent(limit int) []RecentRecord {
	b.mu.Lock()
	defer b.mu.Unlock()

	count := b.next
	if b.full {
		count = len(b.records)
	}
	if limit <= 0 || limit > count {
		limit = count
	}

	out := make([]RecentRecord, 0, limit)
	start := b.next - limit
	for i := 0; i < limit; i++ {
		idx := (start + i + len(b.records)) % len(b.records)
		out = append(out, b.records[idx])
	}
	return out
}

// RecordsHandler handles requests for recent records
type RecordsHandler struct {
	buffer *RecordBuffer
}

// NewRecordsHandler creates a new records handler
func NewRecordsHandler(buffer *RecordBuffer) *RecordsHandler {
	return &RecordsHandler{
		buffer: buffer,
	}
}

// ServeHTTP handles record requests
func (h *RecordsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	limit := defaultRecordLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"records": h.buffer.Recent(limit),
	})
}
