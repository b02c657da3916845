package eventlog

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event types emitted by the lending engine.
const (
	TypeBookAdded      = "book.added"
	TypeUserRegistered = "user.registered"
	TypeLoanCreated    = "loan.created"
	TypeLoanReturned   = "loan.returned"
)

// DefaultCapacity is the number of events retained before the oldest is evicted.
const DefaultCapacity = 50

var (
	ErrInvalidCapacity   = errors.New("capacity must be a positive number")
	ErrEmptyEventType    = errors.New("event type must not be empty")
	ErrNilHandler        = errors.New("handler must not be nil")
	ErrNilLoggerSupplied = errors.New("logger must not be nil")
)

// Event is one immutable fact recorded in the log.
type Event struct {
	ID        uuid.UUID      `json:"id"`
	Type      string         `json:"type"`
	Data      map[string]any `json:"data"`
	Timestamp time.Time      `json:"timestamp"`
}

// Handler receives an event synchronously, on the emitting goroutine.
type Handler func(event Event)

// Logger is the minimal logging interface the event log reports through.
type Logger interface {
	Warn(msg string, args ...any)
}

// Option configures a Log during construction.
type Option func(l *Log) error

// WithCapacity overrides the retention capacity of the log.
func WithCapacity(capacity int) Option {
	return func(l *Log) error {
		if capacity <= 0 {
			return ErrInvalidCapacity
		}

		l.capacity = capacity

		return nil
	}
}

// WithLogger supplies a logger for reporting panicking handlers.
func WithLogger(logger Logger) Option {
	return func(l *Log) error {
		if logger == nil {
			return ErrNilLoggerSupplied
		}

		l.logger = logger

		return nil
	}
}

// Log is a bounded, in-memory event log with synchronous subscriptions.
// All methods are safe for concurrent use.
type Log struct {
	mu       sync.Mutex
	capacity int
	events   []Event
	handlers map[string][]Handler
	logger   Logger
}

// NewLog builds an event log with the given options applied.
func NewLog(options ...Option) (*Log, error) {
	log := &Log{
		capacity: DefaultCapacity,
		handlers: make(map[string][]Handler),
	}

	for _, applyOption := range options {
		if err := applyOption(log); err != nil {
			return nil, err
		}
	}

	return log, nil
}

// Subscribe registers a handler for one event type. Handlers for the same
// type are invoked in registration order.
func (l *Log) Subscribe(eventType string, handler Handler) error {
	if eventType == "" {
		return ErrEmptyEventType
	}

	if handler == nil {
		return ErrNilHandler
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.handlers[eventType] = append(l.handlers[eventType], handler)

	return nil
}

// Emit records an event and synchronously invokes every handler subscribed
// to its type, in registration order. A panicking handler is isolated: it
// neither prevents later handlers from running nor unwinds the emitter.
// Emit returns the recorded event with its assigned ID and timestamp.
func (l *Log) Emit(eventType string, data map[string]any) Event {
	event := Event{
		ID:        uuid.New(),
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now(),
	}

	l.mu.Lock()

	l.events = append(l.events, event)
	if len(l.events) > l.capacity {
		l.events = l.events[len(l.events)-l.capacity:]
	}

	handlers := make([]Handler, len(l.handlers[eventType]))
	copy(handlers, l.handlers[eventType])

	l.mu.Unlock()

	// Handlers run outside the lock so they may emit or subscribe themselves.
	for _, handler := range handlers {
		l.invoke(handler, event)
	}

	return event
}

func (l *Log) invoke(handler Handler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			if l.logger != nil {
				l.logger.Warn("event handler panicked", "eventType", event.Type, "eventID", event.ID.String(), "panic", r)
			}
		}
	}()

	handler(event)
}

// Recent returns up to limit events, newest first. A non-positive limit
// returns all retained events.
func (l *Log) Recent(limit int) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	if limit <= 0 || limit > len(l.events) {
		limit = len(l.events)
	}

	recent := make([]Event, 0, limit)
	for i := len(l.events) - 1; i >= len(l.events)-limit; i-- {
		recent = append(recent, l.events[i])
	}

	return recent
}

// Len returns the number of events currently retained.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.events)
}
