package session

import (
	"encoding/json"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBus() *bus {
	return newBus(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func recordEvent(payload string) Event {
	return Event{Kind: EventRecord, Record: &Record{SourcePort: "COM3", Payload: payload}}
}

func TestBus_SlowSubscriberDoesNotBlockOthers(t *testing.T) {
	b := newTestBus()
	defer b.removeAll()

	release := make(chan struct{})
	b.subscribe(func(Event) { <-release })

	fast := make(chan string, 8)
	b.subscribe(func(ev Event) { fast <- ev.Record.Payload })

	for _, p := range []string{"a", "b", "c"} {
		b.publish(recordEvent(p))
	}

	var got []string
	for len(got) < 3 {
		select {
		case p := <-fast:
			got = append(got, p)
		case <-time.After(2 * time.Second):
			t.Fatalf("fast subscriber starved, got %v", got)
		}
	}
	assert.Equal(t, []string{"a", "b", "c"}, got)
	close(release)
}

func TestBus_PanickingHandlerKeepsReceiving(t *testing.T) {
	b := newTestBus()
	defer b.removeAll()

	var calls atomic.Int32
	done := make(chan struct{})
	b.subscribe(func(ev Event) {
		if calls.Add(1) == 1 {
			panic("boom")
		}
		close(done)
	})

	b.publish(recordEvent("first"))
	b.publish(recordEvent("second"))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler not called after panic")
	}
	assert.Equal(t, int32(2), calls.Load())
}

func TestBus_UnsubscribeStopsDelivery(t *testing.T) {
	b := newTestBus()

	got := make(chan Event, 4)
	id := b.subscribe(func(ev Event) { got <- ev })
	require.Equal(t, 1, b.count())

	assert.True(t, b.unsubscribe(id))
	assert.Equal(t, 0, b.count())
	b.publish(recordEvent("late"))

	select {
	case ev := <-got:
		t.Fatalf("unexpected event %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBus_RemoveAll(t *testing.T) {
	b := newTestBus()
	b.subscribe(func(Event) {})
	b.subscribe(func(Event) {})
	assert.Equal(t, 2, b.removeAll())
	assert.Equal(t, 0, b.count())
	assert.Equal(t, 0, b.removeAll())
}

func TestEvent_JSON(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ev := Event{Kind: EventRecord, Record: &Record{SourcePort: "/dev/ttyUSB0", Payload: "12.34", ObservedAt: ts}}

	data, err := json.Marshal(ev)
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"type":"record","record":{"port":"/dev/ttyUSB0","data":"12.34","timestamp":"2026-03-01T12:00:00Z"}}`,
		string(data))

	data, err = json.Marshal(Event{Kind: EventError, Error: "transport error on COM3: EOF"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"error","error":"transport error on COM3: EOF"}`, string(data))
}
