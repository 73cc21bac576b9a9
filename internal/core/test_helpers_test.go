package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/quantumspace/chatcore/internal/store"
)

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

// drain collects events until the channel stays quiet for the given duration.
func drain(ch <-chan *Event, quiet time.Duration) []*Event {
	var events []*Event
	for {
		select {
		case ev := <-ch:
			events = append(events, ev)
		case <-time.After(quiet):
			return events
		}
	}
}

func countKind(events []*Event, kind EventKind) int {
	n := 0
	for _, ev := range events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

var errInvalidToken = errors.New("invalid token")

type fakeGate struct {
	tokens map[string]Identity
}

func (g *fakeGate) Authenticate(_ context.Context, token string) (Identity, error) {
	id, ok := g.tokens[token]
	if !ok {
		return Identity{}, errInvalidToken
	}
	return id, nil
}

type fakeStore struct {
	mu        sync.Mutex
	members   map[int64]map[int64]bool // room -> user
	messages  []*store.Message
	touched   map[int64]int64 // room -> last message id
	failWrite bool
	// memberGate, when set, holds IsMember until it is closed.
	memberGate chan struct{}
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		members: make(map[int64]map[int64]bool),
		touched: make(map[int64]int64),
	}
}

func (s *fakeStore) addMember(roomID int64, userIDs ...int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.members[roomID] == nil {
		s.members[roomID] = make(map[int64]bool)
	}
	for _, id := range userIDs {
		s.members[roomID][id] = true
	}
}

func (s *fakeStore) setFailWrite(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWrite = fail
}

func (s *fakeStore) saved() []*store.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*store.Message(nil), s.messages...)
}

func (s *fakeStore) IsMember(_ context.Context, userID, roomID int64) (bool, error) {
	if s.memberGate != nil {
		<-s.memberGate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.members[roomID][userID], nil
}

func (s *fakeStore) CreateMessage(_ context.Context, roomID, senderID int64, body string, msgType store.MessageType) (*store.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrite {
		return nil, errors.New("disk full")
	}
	msg := &store.Message{
		ID:        int64(len(s.messages) + 1),
		RoomID:    roomID,
		UserID:    senderID,
		Body:      body,
		Type:      msgType,
		CreatedAt: time.Now(),
	}
	s.messages = append(s.messages, msg)
	return msg, nil
}

func (s *fakeStore) TouchRoomActivity(_ context.Context, roomID, messageID int64, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touched[roomID] = messageID
	return nil
}

var (
	alice = Identity{UserID: 1, Username: "alice", DisplayName: "Alice"}
	bob   = Identity{UserID: 2, Username: "bob"}
	carol = Identity{UserID: 3, Username: "carol"}
)

func newTestHub(t *testing.T, st *fakeStore, opts ...Option) *Hub {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	gate := &fakeGate{tokens: map[string]Identity{
		"alice-token": alice,
		"bob-token":   bob,
		"carol-token": carol,
	}}
	hub := NewHub(gate, st, nil, opts...)
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return hub
}

// connect registers a client and authenticates it with token.
func connect(t *testing.T, hub *Hub, id, token string) *Client {
	t.Helper()

	c := NewClient(id, 64)
	hub.RegisterClient(c)
	c.Commands <- &Command{Kind: CommandAuthenticate, Token: token}
	mustEvent(t, c.Events, EventAuthenticated)
	return c
}

// join joins roomID and returns the room-users snapshot.
func join(t *testing.T, c *Client, roomID int64) *Event {
	t.Helper()

	c.Commands <- &Command{Kind: CommandJoinRoom, RoomID: roomID}
	return mustEvent(t, c.Events, EventRoomUsers)
}
