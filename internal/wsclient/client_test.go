package wsclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantumspace/chatcore/internal/config"
	"github.com/quantumspace/chatcore/internal/proto"
)

var fastRetry = config.RetryPolicy{
	MaxAttempts: 3,
	BaseDelay:   10 * time.Millisecond,
	Factor:      2,
	MaxDelay:    50 * time.Millisecond,
}

func wsURL(ts *httptest.Server) string {
	return strings.Replace(ts.URL, "http", "ws", 1)
}

func TestDialRetriesUntilServerAccepts(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "warming up", http.StatusServiceUnavailable)
			return
		}
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "")

		var in proto.Inbound
		if err := wsjson.Read(r.Context(), conn, &in); err != nil {
			return
		}
		_ = wsjson.Write(r.Context(), conn, proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventAuthenticated,
			Data:  proto.AuthenticatedData{User: proto.User{UserID: 7, Username: "alice"}},
		})
		_, _, _ = conn.Read(r.Context())
	}))
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, err := Dial(ctx, wsURL(ts), fastRetry, nil)
	require.NoError(t, err)
	defer c.Close()
	assert.EqualValues(t, 3, calls.Load())

	user, err := c.Authenticate(ctx, "token")
	require.NoError(t, err)
	assert.Equal(t, int64(7), user.UserID)
}

func TestDialGivesUpAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer ts.Close()

	_, err := Dial(context.Background(), wsURL(ts), fastRetry, nil)
	require.Error(t, err)
	assert.EqualValues(t, fastRetry.MaxAttempts, calls.Load())
}

func TestDialDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer ts.Close()

	_, err := Dial(context.Background(), wsURL(ts), fastRetry, nil)
	require.Error(t, err)
	assert.EqualValues(t, 1, calls.Load())
}

func TestExpectReturnsRejection(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "")
		_ = wsjson.Write(r.Context(), conn, proto.Outbound{
			Type:  proto.OutboundTypeError,
			Event: proto.EventAuthError,
			Error: &proto.Error{Code: "auth_error", Msg: "authentication failed"},
		})
		_, _, _ = conn.Read(r.Context())
	}))
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, err := Dial(ctx, wsURL(ts), fastRetry, nil)
	require.NoError(t, err)
	defer c.Close()

	err = c.Expect(ctx, proto.EventAuthenticated, nil)
	assert.True(t, errors.Is(err, ErrRejected), "got %v", err)
}
