package bridge

import (
	"context"
	"errors"
	"sync"
)

// Conn is a running host and client pair over a Pipe.
type Conn struct {
	Client *Client
	Host   *Host

	ui, host *Endpoint
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	mu   sync.Mutex
	errs []error
}

// Connect builds a host for cfg, a client, and runs both loops until ctx is
// done, Stop is called or the client sends CLOSE.
func Connect(ctx context.Context, cfg HostConfig) (*Conn, error) {
	ui, hostEp := Pipe(cfg.Logger)
	h, err := NewHost(hostEp, cfg)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(ctx)
	c := &Conn{
		Client: NewClient(ui, cfg.Logger),
		Host:   h,
		ui:     ui,
		host:   hostEp,
		cancel: cancel,
	}

	c.run(ctx, hostEp)
	c.run(ctx, ui)
	go func() {
		<-hostEp.Done()
		ui.Stop()
		h.Detach()
		cancel()
	}()
	return c, nil
}

func (c *Conn) run(ctx context.Context, ep *Endpoint) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := ep.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			c.mu.Lock()
			c.errs = append(c.errs, err)
			c.mu.Unlock()
		}
	}()
}

// HostEndpoint returns the host side, for scheduling work on its loop.
func (c *Conn) HostEndpoint() *Endpoint { return c.host }

// Stop ends both loops.
func (c *Conn) Stop() {
	c.host.Stop()
	c.cancel()
}

// Wait blocks until both loops have stopped.
func (c *Conn) Wait() error {
	c.wg.Wait()
	c.mu.Lock()
	defer c.mu.Unlock()
	return errors.Join(c.errs...)
}
