package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gnana997/stylesync/pkg/host"
	"github.com/gnana997/stylesync/pkg/style"
	"github.com/gnana997/stylesync/pkg/transfer"
	"github.com/gnana997/stylesync/pkg/util"
	"github.com/gnana997/stylesync/pkg/variants"
)

var replyTypes = []Type{SelectionChanged, FileInfo, ComponentVariants, CollectionsResult, ParseResult, ApplyResult}

// Client is the UI side of the bridge. It turns request/reply pairs into
// blocking calls and tracks the latest selection.
type Client struct {
	ep     *Endpoint
	logger *slog.Logger

	// reqMu keeps one request in flight so replies match their request.
	reqMu sync.Mutex

	mu        sync.Mutex
	waiters   map[Type]chan Message
	selection *style.ExtractedStyle
	listeners []func(*style.ExtractedStyle)
}

// NewClient registers the reply handlers on ep.
func NewClient(ep *Endpoint, logger *slog.Logger) *Client {
	c := &Client{
		ep:      ep,
		logger:  util.OrDefault(logger),
		waiters: make(map[Type]chan Message),
	}
	for _, t := range replyTypes {
		ep.On(t, c.deliver)
	}
	return c
}

func (c *Client) deliver(_ context.Context, m Message) {
	c.mu.Lock()
	var listeners []func(*style.ExtractedStyle)
	var sel *style.ExtractedStyle
	if m.Type == SelectionChanged {
		sel = decodeSelection(m)
		c.selection = sel
		listeners = append(listeners, c.listeners...)
	}
	w, ok := c.waiters[m.Type]
	if ok {
		delete(c.waiters, m.Type)
	}
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(sel)
	}
	if ok {
		w <- m
	} else if m.Type != SelectionChanged {
		c.logger.Debug("reply without request", "type", m.Type)
	}
}

func decodeSelection(m Message) *style.ExtractedStyle {
	if len(m.Payload) == 0 || string(m.Payload) == "null" {
		return nil
	}
	var s style.ExtractedStyle
	if err := json.Unmarshal(m.Payload, &s); err != nil {
		return nil
	}
	return &s
}

// OnSelection registers fn for every SELECTION_CHANGED, solicited or not.
func (c *Client) OnSelection(fn func(*style.ExtractedStyle)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// LatestSelection returns the last selection the host reported.
func (c *Client) LatestSelection() *style.ExtractedStyle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selection
}

// Request sends t and waits for the reply of type reply.
func (c *Client) Request(ctx context.Context, t Type, payload any, reply Type) (Message, error) {
	c.reqMu.Lock()
	defer c.reqMu.Unlock()

	w := make(chan Message, 1)
	c.mu.Lock()
	c.waiters[reply] = w
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		if c.waiters[reply] == w {
			delete(c.waiters, reply)
		}
		c.mu.Unlock()
	}()

	if err := c.ep.Emit(t, payload); err != nil {
		return Message{}, err
	}
	select {
	case m := <-w:
		return m, nil
	case <-ctx.Done():
		return Message{}, ctx.Err()
	case <-c.ep.peer.Done():
		return Message{}, ErrClosed
	}
}

// Send emits a message that has no reply.
func (c *Client) Send(t Type, payload any) error {
	return c.ep.Emit(t, payload)
}

// Selection asks the host for the current selection. Nil means nothing is selected.
func (c *Client) Selection(ctx context.Context) (*style.ExtractedStyle, error) {
	m, err := c.Request(ctx, RequestSelection, nil, SelectionChanged)
	if err != nil {
		return nil, err
	}
	return decodeSelection(m), nil
}

// FileInfo returns the host document's name and key.
func (c *Client) FileInfo(ctx context.Context) (host.FileInfo, error) {
	var info host.FileInfo
	err := c.call(ctx, GetFileInfo, nil, FileInfo, &info)
	return info, err
}

// ComponentVariants resolves the variant properties of a library component.
func (c *Client) ComponentVariants(ctx context.Context, key string) (variants.Result, error) {
	var res variants.Result
	err := c.call(ctx, GetComponentVariants, key, ComponentVariants, &res)
	return res, err
}

// SelectionVariants resolves the variant properties of the selected component.
func (c *Client) SelectionVariants(ctx context.Context) (variants.Result, error) {
	var res variants.Result
	err := c.call(ctx, GetSelectionVariants, nil, ComponentVariants, &res)
	return res, err
}

// Collections lists the host's token collections.
func (c *Client) Collections(ctx context.Context) ([]CollectionInfo, error) {
	var infos []CollectionInfo
	err := c.call(ctx, GetCollections, nil, CollectionsResult, &infos)
	return infos, err
}

// Parse sends an export document for preview.
func (c *Client) Parse(ctx context.Context, document string) (ParseResultPayload, error) {
	var res ParseResultPayload
	err := c.call(ctx, ParseJSON, document, ParseResult, &res)
	return res, err
}

// Apply writes preview items under modes.
func (c *Client) Apply(ctx context.Context, modes []string, items []transfer.PreviewItem) (transfer.ApplyResult, error) {
	var res transfer.ApplyResult
	err := c.call(ctx, ApplyChanges, ApplyRequest{Modes: modes, Items: items}, ApplyResult, &res)
	return res, err
}

// Notify shows msg through the host notifier.
func (c *Client) Notify(msg string) error {
	return c.Send(Notify, msg)
}

// Close asks the host to stop.
func (c *Client) Close() error {
	return c.Send(Close, nil)
}

func (c *Client) call(ctx context.Context, t Type, payload any, reply Type, out any) error {
	m, err := c.Request(ctx, t, payload, reply)
	if err != nil {
		return err
	}
	if err := m.Decode(out); err != nil {
		return fmt.Errorf("bridge: %w", err)
	}
	return nil
}
