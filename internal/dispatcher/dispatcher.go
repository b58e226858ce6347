package dispatcher

import (
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/scenewalk/scenewalk/internal/queue"
)

// ErrQueueFull is returned by Post when the event queue is at capacity.
var ErrQueueFull = errors.New("event queue full")

// Event is a command delivered to the engine loop. Producers on other goroutines
// Post events; only the loop dispatches them.
type Event struct {
	Command   string
	Args      []string
	Payload   any
	Timestamp time.Time
}

// HandlerFunc processes an event and returns a result.
type HandlerFunc func(Event) (any, error)

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures handler registration.
type Option func(*config)

type config struct {
	blocking bool
	logged   bool
}

// Blocking exempts the command from the queue limit. Use it for events that must
// not be lost, such as load results.
func Blocking() Option {
	return func(c *config) {
		c.blocking = true
	}
}

// Logged adds debug logging to the handler.
func Logged() Option {
	return func(c *config) {
		c.logged = true
	}
}

// Dispatcher routes events to registered handlers.
type Dispatcher struct {
	handlers map[string]HandlerFunc
	blocking map[string]bool
	logger   Logger

	events   *queue.Queue[Event]
	capacity int

	metrics *instruments
}

// New creates a Dispatcher whose queue holds at most capacity events (non-positive
// means unbounded). Metrics go to the global OTel meter provider.
func New(logger Logger, capacity int) (*Dispatcher, error) {
	d := &Dispatcher{
		handlers: make(map[string]HandlerFunc),
		blocking: make(map[string]bool),
		logger:   logger,
		events:   queue.New[Event](),
		capacity: capacity,
	}

	ins, err := newInstruments(otel.Meter(instrumentationName), d.events.Len)
	if err != nil {
		return nil, err
	}
	d.metrics = ins
	return d, nil
}

// Register adds a handler for the given command with optional configuration.
// Handlers must be registered before events are posted.
func (d *Dispatcher) Register(command string, h HandlerFunc, opts ...Option) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	handler := h

	if cfg.logged {
		handler = d.withLogging(command, handler)
	}

	d.handlers[command] = handler
	d.blocking[command] = cfg.blocking
}

// Dispatch routes an event to its registered handler immediately.
func (d *Dispatcher) Dispatch(e Event) (any, error) {
	h, ok := d.handlers[e.Command]
	if !ok {
		return nil, fmt.Errorf("unknown command: %s", e.Command)
	}
	return h(e)
}

// HasHandler returns true if a handler is registered for the command.
func (d *Dispatcher) HasHandler(command string) bool {
	_, ok := d.handlers[command]
	return ok
}

// Post queues an event for the next Drain. It is safe for concurrent use.
func (d *Dispatcher) Post(e Event) error {
	if !d.HasHandler(e.Command) {
		return fmt.Errorf("unknown command: %s", e.Command)
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	limit := d.capacity
	if d.blocking[e.Command] {
		limit = 0
	}
	if !d.events.TryPush(limit, e) {
		d.metrics.drop(e.Command)
		return fmt.Errorf("%w: %s", ErrQueueFull, e.Command)
	}
	return nil
}

// Drain dispatches queued events in post order until the queue is empty,
// including events posted by the handlers themselves. It returns how many ran.
func (d *Dispatcher) Drain() int {
	n := 0
	for {
		batch := d.events.Drain()
		if len(batch) == 0 {
			return n
		}
		for _, e := range batch {
			start := time.Now()
			if _, err := d.Dispatch(e); err != nil && d.logger != nil {
				d.logger.Error("dispatch failed", "command", e.Command, "error", err)
			}
			d.metrics.handled(e.Command, time.Since(start))
			n++
		}
	}
}

// Ready receives after events are posted.
func (d *Dispatcher) Ready() <-chan struct{} {
	return d.events.Ready()
}

// Len returns the number of queued events.
func (d *Dispatcher) Len() int {
	return d.events.Len()
}

func (d *Dispatcher) withLogging(command string, h HandlerFunc) HandlerFunc {
	return func(e Event) (any, error) {
		start := time.Now()
		d.logger.Debug("handling event", "command", command, "args", len(e.Args))

		result, err := h(e)

		if err != nil {
			d.logger.Error("event failed", "command", command, "duration", time.Since(start), "error", err)
		} else {
			d.logger.Debug("event complete", "command", command, "duration", time.Since(start))
		}

		return result, err
	}
}
