// Package events is the world's pub/sub spine: typed events, queued or
// immediate delivery, and a bounded history of everything dispatched.
package events

import (
	"fmt"
	"log"

	"github.com/google/uuid"
)

type Type string

const (
	TypeNPCSpawned     Type = "npc_spawned"
	TypeNPCRemoved     Type = "npc_removed"
	TypeNPCDeparted    Type = "npc_departed"
	TypeNPCArrived     Type = "npc_arrived"
	TypeItemCrafted    Type = "item_crafted"
	TypeMarketOpened   Type = "market_opened"
	TypeMarketClosed   Type = "market_closed"
	TypeWeatherChanged Type = "weather_changed"
	TypeHourPassed     Type = "hour_passed"
	TypeDayPassed      Type = "day_passed"
)

// Event timestamps are sim minutes, stamped when the event is
// dispatched, not when it is published.
type Event struct {
	ID        string         `json:"id"`
	Type      Type           `json:"type"`
	Timestamp int64          `json:"timestamp"`
	Source    string         `json:"source,omitempty"`
	Target    string         `json:"target,omitempty"`
	Location  string         `json:"location,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

type Handler func(ev Event) error

// Bus dispatches events to global listeners first, then to the type's
// subscribers, then appends to history. A handler error or panic is
// logged and isolated; it never stops delivery to later handlers.
type Bus struct {
	now    func() int64
	logger *log.Logger

	global []Handler
	subs   map[Type][]Handler

	queue   []Event
	history []Event
	histCap int
}

func New(historyCap int) *Bus {
	if historyCap <= 0 {
		historyCap = 256
	}
	return &Bus{
		subs:    map[Type][]Handler{},
		histCap: historyCap,
	}
}

// SetClock wires the sim-minute source used for timestamps. Without
// one, events are stamped 0.
func (b *Bus) SetClock(now func() int64) { b.now = now }

func (b *Bus) SetLogger(l *log.Logger) { b.logger = l }

func (b *Bus) Subscribe(t Type, h Handler) {
	b.subs[t] = append(b.subs[t], h)
}

// SubscribeAll registers a listener for every event type. Global
// listeners run before type subscribers.
func (b *Bus) SubscribeAll(h Handler) {
	b.global = append(b.global, h)
}

// Publish delivers ev now when immediate, otherwise enqueues it for
// the next Process call. The event id is minted here if absent.
func (b *Bus) Publish(ev Event, immediate bool) {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if !immediate {
		b.queue = append(b.queue, ev)
		return
	}
	b.dispatch(ev)
}

// Process dispatches queued events in FIFO order, at most max of them;
// max <= 0 drains the queue. Events published by handlers during the
// drain join the back of the queue and are processed in turn. Returns
// the dispatch count and all isolated handler faults.
func (b *Bus) Process(max int) (int, []error) {
	var faults []error
	n := 0
	for n < len(b.queue) && (max <= 0 || n < max) {
		faults = append(faults, b.dispatch(b.queue[n])...)
		n++
	}
	if n > 0 {
		b.queue = append([]Event(nil), b.queue[n:]...)
		if len(b.queue) == 0 {
			b.queue = nil
		}
	}
	return n, faults
}

// QueueLen reports how many events await Process.
func (b *Bus) QueueLen() int { return len(b.queue) }

// RestoreHistory replaces the history buffer, keeping only the newest
// entries past the cap. Used when rebuilding a world from a snapshot.
func (b *Bus) RestoreHistory(evs []Event) {
	if len(evs) > b.histCap {
		evs = evs[len(evs)-b.histCap:]
	}
	b.history = append([]Event(nil), evs...)
}

func (b *Bus) dispatch(ev Event) []error {
	if b.now != nil {
		ev.Timestamp = b.now()
	}

	var faults []error
	for _, h := range b.global {
		if err := b.call(h, ev); err != nil {
			faults = append(faults, err)
		}
	}
	for _, h := range b.subs[ev.Type] {
		if err := b.call(h, ev); err != nil {
			faults = append(faults, err)
		}
	}

	b.history = append(b.history, ev)
	if len(b.history) > b.histCap {
		b.history = append([]Event(nil), b.history[len(b.history)-b.histCap:]...)
	}
	return faults
}

func (b *Bus) call(h Handler, ev Event) error {
	err := safeCall(h, ev)
	if err != nil {
		err = fmt.Errorf("handler for %s: %w", ev.Type, err)
		if b.logger != nil {
			b.logger.Printf("event %s: %v", ev.ID, err)
		}
	}
	return err
}

func safeCall(h Handler, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return h(ev)
}
