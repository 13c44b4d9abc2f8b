package client

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serialbridge/session"
)

func recordEvent(payload string) session.Event {
	return session.Event{
		Kind:   session.EventRecord,
		Record: &session.Record{SourcePort: testPort, Payload: payload, ObservedAt: time.Now()},
	}
}

func stateEvent(from, to session.State) session.Event {
	return session.Event{
		Kind:  session.EventState,
		State: &session.StateChange{From: from, To: to, Port: testPort, At: time.Now()},
	}
}

func TestReadings_Classifies(t *testing.T) {
	r := NewReadings()
	r.Apply(stateEvent(session.StateIdle, session.StateConnecting))
	r.Apply(stateEvent(session.StateConnecting, session.StateOpen))
	r.Apply(recordEvent("12.50"))
	r.Apply(recordEvent("ABC123DEF456"))
	r.Apply(recordEvent("NOISE"))

	snap := r.Snapshot()
	assert.True(t, snap.Connected)
	assert.Equal(t, testPort, snap.Port)
	assert.Equal(t, "12.50", snap.Weight)
	assert.Equal(t, "ABC123DEF456", snap.Barcode)
	require.Len(t, snap.Recent, 3)
	assert.Equal(t, "NOISE", snap.Recent[2].Payload)
}

func TestReadings_NumericCodeReadsAsWeight(t *testing.T) {
	r := NewReadings()
	r.Apply(recordEvent("1234567890123"))

	snap := r.Snapshot()
	assert.Equal(t, "1234567890123", snap.Weight)
	assert.Empty(t, snap.Barcode)
}

func TestReadings_KeepsLastTen(t *testing.T) {
	r := NewReadings()
	for i := 0; i < RecentLimit+5; i++ {
		r.Apply(recordEvent(fmt.Sprintf("%d.00", i)))
	}

	snap := r.Snapshot()
	require.Len(t, snap.Recent, RecentLimit)
	assert.Equal(t, "5.00", snap.Recent[0].Payload)
	assert.Equal(t, "14.00", snap.Recent[RecentLimit-1].Payload)
}

func TestReadings_ErrorAndIdle(t *testing.T) {
	r := NewReadings()
	r.Apply(stateEvent(session.StateConnecting, session.StateOpen))
	r.Apply(recordEvent("1.00"))
	r.Apply(session.Event{Kind: session.EventError, Error: "device unplugged"})
	r.Apply(stateEvent(session.StateOpen, session.StateFaulted))

	snap := r.Snapshot()
	assert.False(t, snap.Connected)
	assert.Equal(t, "Error: device unplugged", snap.Status)
	assert.Len(t, snap.Recent, 1)

	r.Apply(stateEvent(session.StateClosing, session.StateIdle))
	r.SetStatus(session.MsgDisconnected)
	snap = r.Snapshot()
	assert.Empty(t, snap.Recent)
	assert.Equal(t, "1.00", snap.Weight)
	assert.Equal(t, session.MsgDisconnected, snap.Status)
}

func TestReadings_ApplySnapshot(t *testing.T) {
	r := NewReadings()
	cfg := session.Config{PortPath: "COM3", BaudRate: 9600}
	r.ApplySnapshot(session.Info{
		State:  session.StateFaulted,
		Config: &cfg,
		Stats:  session.Stats{LastError: "read timeout"},
	})

	snap := r.Snapshot()
	assert.Equal(t, session.StateFaulted, snap.State)
	assert.Equal(t, "COM3", snap.Port)
	assert.Equal(t, "Error: read timeout", snap.Status)
	assert.False(t, snap.Connected)
}
