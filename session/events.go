package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventKind identifies the payload carried by an Event
type EventKind string

const (
	EventRecord EventKind = "record"
	EventError  EventKind = "error"
	EventState  EventKind = "state"
)

// Record is one framed line received from the device
type Record struct {
	SourcePort string    `json:"port"`
	Payload    string    `json:"data"`
	ObservedAt time.Time `json:"timestamp"`
}

// StateChange describes a session state transition
type StateChange struct {
	From State     `json:"from"`
	To   State     `json:"to"`
	Port string    `json:"port,omitempty"`
	At   time.Time `json:"at"`
}

// Event is what subscribers receive. Exactly one of Record, Error or State is
// set, according to Kind.
type Event struct {
	Kind   EventKind    `json:"type"`
	Record *Record      `json:"record,omitempty"`
	Error  string       `json:"error,omitempty"`
	State  *StateChange `json:"state,omitempty"`
}

// bus fans events out to subscribers. Every subscriber has its own unbounded
// queue and delivery goroutine: publish never blocks, a slow handler only
// delays itself, and each handler sees events in publish order.
type bus struct {
	logger *slog.Logger

	mu   sync.Mutex
	subs map[string]*subscriber
}

type subscriber struct {
	id      string
	handler func(Event)
	logger  *slog.Logger

	mu     sync.Mutex
	queue  []Event
	closed bool
	wake   chan struct{}
}

func newBus(logger *slog.Logger) *bus {
	return &bus{
		logger: logger,
		subs:   make(map[string]*subscriber),
	}
}

func (b *bus) subscribe(handler func(Event)) string {
	s := &subscriber{
		id:      uuid.NewString(),
		handler: handler,
		logger:  b.logger,
		wake:    make(chan struct{}, 1),
	}

	b.mu.Lock()
	b.subs[s.id] = s
	b.mu.Unlock()

	go s.loop()
	return s.id
}

func (b *bus) unsubscribe(id string) bool {
	b.mu.Lock()
	s, ok := b.subs[id]
	delete(b.subs, id)
	b.mu.Unlock()

	if ok {
		s.stop()
	}
	return ok
}

func (b *bus) removeAll() int {
	b.mu.Lock()
	subs := b.subs
	b.subs = make(map[string]*subscriber)
	b.mu.Unlock()

	for _, s := range subs {
		s.stop()
	}
	return len(subs)
}

func (b *bus) publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range b.subs {
		s.push(ev)
	}
}

func (b *bus) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func (s *subscriber) push(ev Event) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, ev)
	s.mu.Unlock()
	s.signal()
}

// stop discards undelivered events and ends the delivery goroutine
func (s *subscriber) stop() {
	s.mu.Lock()
	s.closed = true
	s.queue = nil
	s.mu.Unlock()
	s.signal()
}

func (s *subscriber) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscriber) next() (Event, bool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Event{}, false, true
	}
	if len(s.queue) == 0 {
		return Event{}, false, false
	}
	ev := s.queue[0]
	s.queue[0] = Event{}
	s.queue = s.queue[1:]
	return ev, true, false
}

func (s *subscriber) loop() {
	for {
		ev, ok, closed := s.next()
		if closed {
			return
		}
		if !ok {
			<-s.wake
			continue
		}
		s.deliver(ev)
	}
}

func (s *subscriber) deliver(ev Event) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Subscriber panicked", "subscription", s.id, "event", ev.Kind, "panic", r)
		}
	}()
	s.handler(ev)
}
