// Package wsclient is a small client for the chat WebSocket protocol. It
// dials with the configured retry policy and exchanges proto envelopes.
package wsclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/quantumspace/chatcore/internal/config"
	"github.com/quantumspace/chatcore/internal/proto"
)

// Client is one WebSocket connection to the chat server.
type Client struct {
	conn *websocket.Conn
	log  *zerolog.Logger
}

// Dial connects to url, retrying with exponential backoff as described by policy.
// Handshake rejections in the 4xx range are not retried.
func Dial(ctx context.Context, url string, policy config.RetryPolicy, logger *zerolog.Logger) (*Client, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = policy.BaseDelay
	if policy.Factor > 0 {
		b.Multiplier = policy.Factor
	}
	if policy.MaxDelay > 0 {
		b.MaxInterval = policy.MaxDelay
	}

	attempts := policy.MaxAttempts
	if attempts == 0 {
		attempts = 1
	}

	dial := func() (*websocket.Conn, error) {
		conn, resp, err := websocket.Dial(ctx, url, nil)
		if err != nil {
			if resp != nil && resp.StatusCode >= http.StatusBadRequest && resp.StatusCode < http.StatusInternalServerError {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		return conn, nil
	}

	conn, err := backoff.Retry(ctx, dial,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(attempts),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.Warn().Err(err).Dur("retry_in", next).Str("url", url).Msg("dial failed")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return &Client{conn: conn, log: logger}, nil
}

// Send writes one inbound envelope.
func (c *Client) Send(ctx context.Context, msgType string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", msgType, err)
	}
	return wsjson.Write(ctx, c.conn, proto.Inbound{Type: msgType, Data: raw})
}

// Next reads the next outbound envelope.
func (c *Client) Next(ctx context.Context) (proto.OutboundFrame, error) {
	var frame proto.OutboundFrame
	if err := wsjson.Read(ctx, c.conn, &frame); err != nil {
		return frame, err
	}
	return frame, nil
}

// ErrRejected is returned by Expect when the server answers with an error frame.
var ErrRejected = errors.New("rejected by server")

// Expect reads frames until one carries the named event, decoding its data into out.
// An error frame ends the wait with ErrRejected.
func (c *Client) Expect(ctx context.Context, event string, out any) error {
	for {
		frame, err := c.Next(ctx)
		if err != nil {
			return err
		}
		if frame.Type == proto.OutboundTypeError && frame.Error != nil {
			return fmt.Errorf("%w: %s: %s", ErrRejected, frame.Error.Code, frame.Error.Msg)
		}
		if frame.Event != event {
			c.log.Debug().Str("event", frame.Event).Msg("skipping frame")
			continue
		}
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(frame.Data, out); err != nil {
			return fmt.Errorf("decode %s: %w", event, err)
		}
		return nil
	}
}

// Authenticate sends the token and waits for the acknowledgment.
func (c *Client) Authenticate(ctx context.Context, token string) (proto.User, error) {
	if err := c.Send(ctx, proto.InboundTypeAuthenticate, proto.AuthenticateData{Token: token}); err != nil {
		return proto.User{}, err
	}
	var ack proto.AuthenticatedData
	if err := c.Expect(ctx, proto.EventAuthenticated, &ack); err != nil {
		return proto.User{}, err
	}
	return ack.User, nil
}

// Close closes the connection normally.
func (c *Client) Close() error {
	return c.conn.Close(websocket.StatusNormalClosure, "bye")
}
