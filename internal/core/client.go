package core

import "context"

const defaultClientBuffer = 8

// Client is a single connection as seen by the core layer.
// The transport writes to Commands and reads from Events until Done is closed.
type Client struct {
	ID       string
	Commands chan *Command
	Events   chan *Event

	ctx    context.Context
	cancel context.CancelFunc

	// identity is only touched by the goroutine serving this client.
	identity *Identity
}

// NewClient constructs a client with buffered channels of the given size.
func NewClient(id string, buffer int) *Client {
	if buffer <= 0 {
		buffer = defaultClientBuffer
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		ID:       id,
		Commands: make(chan *Command, buffer),
		Events:   make(chan *Event, buffer),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Done is closed once the client has been unregistered or the hub stopped.
func (c *Client) Done() <-chan struct{} {
	return c.ctx.Done()
}

func (c *Client) close() {
	c.cancel()
}

func (c *Client) closed() bool {
	return c.ctx.Err() != nil
}

// deliver enqueues ev without blocking. Events is never closed, so a send
// racing with close is safe; it just lands in a buffer nobody drains.
func (c *Client) deliver(ev *Event) bool {
	if c.closed() {
		return false
	}
	select {
	case c.Events <- ev:
		return true
	default:
		return false
	}
}
