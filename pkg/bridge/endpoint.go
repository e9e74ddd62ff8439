// Package bridge carries typed messages between the UI side and the host
// side of the plugin. Each side owns an Endpoint whose handlers run one at a
// time on a single event loop.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gnana997/stylesync/pkg/util"
)

// ErrClosed is returned when posting to a stopped endpoint.
var ErrClosed = errors.New("bridge endpoint closed")

// Type identifies a message.
type Type string

// UI to host requests.
const (
	RequestSelection     Type = "REQUEST_SELECTION"
	GetFileInfo          Type = "GET_FILE_INFO"
	GetComponentVariants Type = "GET_COMPONENT_VARIANTS"
	GetSelectionVariants Type = "GET_SELECTION_VARIANTS"
	GetCollections       Type = "GET_COLLECTIONS"
	ParseJSON            Type = "PARSE_JSON"
	ApplyChanges         Type = "APPLY_CHANGES"
	Notify               Type = "NOTIFY"
	Close                Type = "CLOSE"
)

// Host to UI replies and events.
const (
	SelectionChanged  Type = "SELECTION_CHANGED"
	FileInfo          Type = "FILE_INFO"
	ComponentVariants Type = "COMPONENT_VARIANTS"
	CollectionsResult Type = "COLLECTIONS_RESULT"
	ParseResult       Type = "PARSE_RESULT"
	ApplyResult       Type = "APPLY_RESULT"
)

// Message is the {type, payload} envelope exchanged by endpoints.
type Message struct {
	Type    Type            `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewMessage encodes payload into a message. A nil payload is omitted.
func NewMessage(t Type, payload any) (Message, error) {
	m := Message{Type: t}
	if payload == nil {
		return m, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("encode %s payload: %w", t, err)
	}
	m.Payload = raw
	return m, nil
}

// Decode unmarshals the payload into v.
func (m Message) Decode(v any) error {
	if len(m.Payload) == 0 {
		return fmt.Errorf("%s: missing payload", m.Type)
	}
	if err := json.Unmarshal(m.Payload, v); err != nil {
		return fmt.Errorf("%s: decode payload: %w", m.Type, err)
	}
	return nil
}

// Handler processes one message on the endpoint's loop.
type Handler func(ctx context.Context, m Message)

type envelope struct {
	msg Message
	fn  func(ctx context.Context)
}

// Endpoint is one side of the bridge.
type Endpoint struct {
	name     string
	in       chan envelope
	handlers map[Type]Handler
	logger   *slog.Logger

	peer *Endpoint

	stopOnce sync.Once
	done     chan struct{}
}

// NewEndpoint creates an endpoint with a queue of the given size.
func NewEndpoint(name string, buffer int, logger *slog.Logger) *Endpoint {
	if buffer <= 0 {
		buffer = 64
	}
	return &Endpoint{
		name:     name,
		in:       make(chan envelope, buffer),
		handlers: make(map[Type]Handler),
		logger:   util.OrDefault(logger).With("endpoint", name),
		done:     make(chan struct{}),
	}
}

// Pipe creates a connected UI and host endpoint pair.
func Pipe(logger *slog.Logger) (ui, host *Endpoint) {
	ui = NewEndpoint("ui", 0, logger)
	host = NewEndpoint("host", 0, logger)
	ui.peer = host
	host.peer = ui
	return ui, host
}

// On registers h for t. Handlers must be registered before Run.
func (e *Endpoint) On(t Type, h Handler) {
	e.handlers[t] = h
}

func (e *Endpoint) enqueue(env envelope) error {
	select {
	case <-e.done:
		return ErrClosed
	default:
	}
	select {
	case e.in <- env:
		return nil
	case <-e.done:
		return ErrClosed
	}
}

// Post delivers m to this endpoint's own loop.
func (e *Endpoint) Post(m Message) error {
	return e.enqueue(envelope{msg: m})
}

// Do schedules fn on this endpoint's loop.
func (e *Endpoint) Do(fn func(ctx context.Context)) error {
	return e.enqueue(envelope{fn: fn})
}

// Emit sends a message to the connected peer.
func (e *Endpoint) Emit(t Type, payload any) error {
	if e.peer == nil {
		return fmt.Errorf("%s endpoint is not connected", e.name)
	}
	m, err := NewMessage(t, payload)
	if err != nil {
		return err
	}
	e.logger.Debug("emit", "type", t)
	return e.peer.Post(m)
}

// Stop ends the loop. It is safe to call more than once.
func (e *Endpoint) Stop() {
	e.stopOnce.Do(func() { close(e.done) })
}

// Done is closed once the endpoint stops.
func (e *Endpoint) Done() <-chan struct{} {
	return e.done
}

// Run processes messages until ctx is cancelled or Stop is called.
func (e *Endpoint) Run(ctx context.Context) error {
	e.logger.Debug("loop started")
	defer e.logger.Debug("loop stopped")
	for {
		select {
		case <-ctx.Done():
			e.Stop()
			return ctx.Err()
		case <-e.done:
			return nil
		case env := <-e.in:
			e.dispatch(ctx, env)
		}
	}
}

func (e *Endpoint) dispatch(ctx context.Context, env envelope) {
	if env.fn != nil {
		env.fn(ctx)
		return
	}
	h, ok := e.handlers[env.msg.Type]
	if !ok {
		e.logger.Warn("unhandled message", "type", env.msg.Type)
		return
	}
	h(ctx, env.msg)
}
