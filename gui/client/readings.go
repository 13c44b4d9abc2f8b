package client

import (
	"sync"

	"serialbridge/format"
	"serialbridge/session"
)

// RecentLimit is how many received records the monitor keeps
const RecentLimit = 10

// Snapshot is a copy of the readings state for rendering
type Snapshot struct {
	State     session.State
	Port      string
	Status    string
	Weight    string
	Barcode   string
	Recent    []session.Record
	Connected bool
}

// Readings folds stream frames into what the monitor displays: the
// connection state, the last scale weight, the last barcode and the last
// RecentLimit records.
type Readings struct {
	mu      sync.Mutex
	state   session.State
	port    string
	status  string
	weight  string
	barcode string
	recent  []session.Record
}

// NewReadings creates an empty, idle model
func NewReadings() *Readings {
	return &Readings{state: session.StateIdle}
}

// ApplySnapshot resets the state from a session snapshot
func (r *Readings) ApplySnapshot(info session.Info) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = info.State
	r.port = ""
	if info.Config != nil {
		r.port = info.Config.PortPath
	}
	if info.Stats.LastError != "" && info.State == session.StateFaulted {
		r.status = "Error: " + info.Stats.LastError
	}
}

// Apply folds one event into the model
func (r *Readings) Apply(ev session.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch ev.Kind {
	case session.EventRecord:
		if ev.Record == nil {
			return
		}
		r.addRecordLocked(*ev.Record)
	case session.EventError:
		r.status = "Error: " + ev.Error
	case session.EventState:
		if ev.State == nil {
			return
		}
		r.state = ev.State.To
		if ev.State.Port != "" {
			r.port = ev.State.Port
		}
		// a fresh session starts with an empty log
		if ev.State.To == session.StateIdle {
			r.recent = nil
		}
	}
}

func (r *Readings) addRecordLocked(rec session.Record) {
	r.recent = append(r.recent, rec)
	if len(r.recent) > RecentLimit {
		r.recent = append([]session.Record(nil), r.recent[len(r.recent)-RecentLimit:]...)
	}

	switch format.Classify(rec.Payload) {
	case "scale":
		r.weight = rec.Payload
	case "barcode":
		r.barcode = rec.Payload
	}
}

// SetStatus replaces the status line, e.g. with a command result
func (r *Readings) SetStatus(status string) {
	r.mu.Lock()
	r.status = status
	r.mu.Unlock()
}

// Snapshot copies the current state
func (r *Readings) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Snapshot{
		State:     r.state,
		Port:      r.port,
		Status:    r.status,
		Weight:    r.weight,
		Barcode:   r.barcode,
		Recent:    append([]session.Record(nil), r.recent...),
		Connected: r.state == session.StateOpen,
	}
}
