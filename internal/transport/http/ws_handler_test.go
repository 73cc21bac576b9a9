package http

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantumspace/chatcore/internal/config"
	"github.com/quantumspace/chatcore/internal/core"
	"github.com/quantumspace/chatcore/internal/proto"
	"github.com/quantumspace/chatcore/internal/wsclient"
)

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t)

	resp, err := env.ts.Client().Get(env.ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, 200, resp.StatusCode)
}

func TestWebSocketUpgradeThroughServer(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := strings.Replace(env.ts.URL, "http", "ws", 1) + "/ws"
	conn, resp, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")
	assert.Equal(t, 101, resp.StatusCode)

	// the handler answers on the upgraded connection
	require.NoError(t, wsjson.Write(ctx, conn, proto.Inbound{Type: "nope"}))
	var frame proto.OutboundFrame
	require.NoError(t, wsjson.Read(ctx, conn, &frame))
	assert.Equal(t, proto.OutboundTypeError, frame.Type)
	require.NotNil(t, frame.Error)
	assert.Equal(t, core.ErrCodeInvalidMessage, frame.Error.Code)
}

func TestWebSocketRoomScenario(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	general := env.room(t, "general")
	alice, aliceToken := env.user(t, "alice", general)
	bob, bobToken := env.user(t, "bob", general)

	a := env.dial(t, ctx)
	me, err := a.Authenticate(ctx, aliceToken)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, me.UserID)

	require.NoError(t, a.Send(ctx, proto.InboundTypeJoinRoom, proto.RoomData{RoomID: general.ID}))
	var snapshot proto.RoomUsersData
	require.NoError(t, a.Expect(ctx, proto.EventRoomUsers, &snapshot))
	assert.Equal(t, general.ID, snapshot.RoomID)
	assert.NotNil(t, snapshot.Users)
	assert.Empty(t, snapshot.Users)

	b := env.dial(t, ctx)
	_, err = b.Authenticate(ctx, bobToken)
	require.NoError(t, err)
	require.NoError(t, b.Send(ctx, proto.InboundTypeJoinRoom, proto.RoomData{RoomID: general.ID}))
	require.NoError(t, b.Expect(ctx, proto.EventRoomUsers, &snapshot))
	require.Len(t, snapshot.Users, 1)
	assert.Equal(t, "alice", snapshot.Users[0].Username)

	var joined proto.PresenceChangeData
	require.NoError(t, a.Expect(ctx, proto.EventUserJoined, &joined))
	assert.Equal(t, bob.ID, joined.UserID)
	assert.NotZero(t, joined.Timestamp)

	require.NoError(t, b.Send(ctx, proto.InboundTypeSendMessage, proto.SendMessageData{RoomID: general.ID, Content: "hi"}))
	for _, c := range []*wsclient.Client{a, b} {
		var msg proto.MessageData
		require.NoError(t, c.Expect(ctx, proto.EventNewMessage, &msg))
		assert.Equal(t, "hi", msg.Message.Content)
		assert.Equal(t, bob.ID, msg.Message.SenderID)
		assert.Equal(t, "text", msg.Message.MessageType)
	}

	require.NoError(t, b.Close())
	var left proto.PresenceChangeData
	require.NoError(t, a.Expect(ctx, proto.EventUserLeft, &left))
	assert.Equal(t, bob.ID, left.UserID)
	var farewell proto.MessageData
	require.NoError(t, a.Expect(ctx, proto.EventSystemMessage, &farewell))
	assert.Equal(t, "bob left the room", farewell.Message.Content)
	assert.Equal(t, "system", farewell.Message.MessageType)

	users := env.hub.RoomUsers(general.ID)
	require.Len(t, users, 1)
	assert.Equal(t, alice.ID, users[0].UserID)

	// join, send, leave were persisted
	msgs, err := env.store.ListMessages(ctx, general.ID, 10)
	require.NoError(t, err)
	bodies := make([]string, 0, len(msgs))
	for _, m := range msgs {
		bodies = append(bodies, m.Body)
	}
	assert.Equal(t, []string{"alice joined the room", "bob joined the room", "hi", "bob left the room"}, bodies)

	room, err := env.store.GetRoomByID(ctx, general.ID)
	require.NoError(t, err)
	require.NotNil(t, room.LastMessageID)
	assert.Equal(t, msgs[2].ID, *room.LastMessageID)
}

func TestWebSocketTypingReachesOthersOnly(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	general := env.room(t, "general")
	alice, aliceToken := env.user(t, "alice", general)
	_, bobToken := env.user(t, "bob", general)

	a := env.dial(t, ctx)
	_, err := a.Authenticate(ctx, aliceToken)
	require.NoError(t, err)
	require.NoError(t, a.Send(ctx, proto.InboundTypeJoinRoom, proto.RoomData{RoomID: general.ID}))
	require.NoError(t, a.Expect(ctx, proto.EventRoomUsers, nil))

	b := env.dial(t, ctx)
	_, err = b.Authenticate(ctx, bobToken)
	require.NoError(t, err)
	require.NoError(t, b.Send(ctx, proto.InboundTypeJoinRoom, proto.RoomData{RoomID: general.ID}))
	require.NoError(t, b.Expect(ctx, proto.EventRoomUsers, nil))

	require.NoError(t, a.Send(ctx, proto.InboundTypeTyping, proto.TypingData{RoomID: general.ID, IsTyping: true}))
	var typing proto.UserTypingData
	require.NoError(t, b.Expect(ctx, proto.EventUserTyping, &typing))
	assert.Equal(t, alice.ID, typing.UserID)
	assert.True(t, typing.IsTyping)

	// alice's next frame must be her own message, not her typing echo
	require.NoError(t, a.Send(ctx, proto.InboundTypeSendMessage, proto.SendMessageData{RoomID: general.ID, Content: "done"}))
	for {
		frame, err := a.Next(ctx)
		require.NoError(t, err)
		require.NotEqual(t, proto.EventUserTyping, frame.Event)
		if frame.Event == proto.EventNewMessage {
			break
		}
	}
}

func TestWebSocketRejections(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	general := env.room(t, "general")
	private := env.room(t, "private")
	_, token := env.user(t, "alice", general)

	c := env.dial(t, ctx)

	expectError := func(code string) {
		t.Helper()
		frame, err := c.Next(ctx)
		require.NoError(t, err)
		require.Equal(t, proto.OutboundTypeError, frame.Type)
		require.NotNil(t, frame.Error)
		assert.Equal(t, code, frame.Error.Code)
	}

	// before authentication
	require.NoError(t, c.Send(ctx, proto.InboundTypeJoinRoom, proto.RoomData{RoomID: general.ID}))
	expectError(core.ErrCodeUnauthorized)

	// bad token keeps the connection open
	require.NoError(t, c.Send(ctx, proto.InboundTypeAuthenticate, proto.AuthenticateData{Token: "garbage"}))
	frame, err := c.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, proto.EventAuthError, frame.Event)
	assert.Equal(t, core.ErrCodeAuth, frame.Error.Code)

	_, err = c.Authenticate(ctx, token)
	require.NoError(t, err)

	require.NoError(t, c.Send(ctx, proto.InboundTypeJoinRoom, proto.RoomData{RoomID: private.ID}))
	expectError(core.ErrCodeUnauthorized)

	require.NoError(t, c.Send(ctx, proto.InboundTypeSendMessage, proto.SendMessageData{RoomID: general.ID, Content: "hi"}))
	expectError(core.ErrCodeNotInRoom)

	require.NoError(t, c.Send(ctx, proto.InboundTypeJoinRoom, map[string]any{"roomId": 0}))
	expectError(core.ErrCodeBadRequest)

	require.NoError(t, c.Send(ctx, "shout", map[string]any{}))
	expectError(core.ErrCodeInvalidMessage)

	require.NoError(t, c.Send(ctx, proto.InboundTypeJoinRoom, proto.RoomData{RoomID: general.ID}))
	require.NoError(t, c.Expect(ctx, proto.EventRoomUsers, nil))

	require.NoError(t, c.Send(ctx, proto.InboundTypeSendMessage, proto.SendMessageData{RoomID: general.ID, Content: "   "}))
	expectError(core.ErrCodeInvalidContent)
}

func TestWebSocketMalformedFrameKeepsConnection(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, token := env.user(t, "alice")

	url := "ws" + env.ts.URL[len("http"):] + "/ws"
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "done")

	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte("{not json")))
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	assert.Contains(t, string(data), core.ErrCodeBadRequest)

	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(`{"type":"authenticate","data":{"token":"`+token+`"}}`)))
	_, data, err = conn.Read(ctx)
	require.NoError(t, err)
	assert.Contains(t, string(data), proto.EventAuthenticated)
}

func TestWebSocketRateLimit(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) { cfg.RateLimitPerMinute = 2 })
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c := env.dial(t, ctx)
	for i := 0; i < 3; i++ {
		require.NoError(t, c.Send(ctx, proto.InboundTypeTyping, proto.TypingData{RoomID: 1}))
	}

	codes := make([]string, 0, 3)
	for i := 0; i < 3; i++ {
		frame, err := c.Next(ctx)
		require.NoError(t, err)
		require.NotNil(t, frame.Error)
		codes = append(codes, frame.Error.Code)
	}
	assert.Contains(t, codes, core.ErrCodeRateLimited)
	assert.Equal(t, 2, countCode(codes, core.ErrCodeUnauthorized))
}

func countCode(codes []string, code string) int {
	n := 0
	for _, c := range codes {
		if c == code {
			n++
		}
	}
	return n
}
