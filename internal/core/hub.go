package core

import (
	"context"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/quantumspace/chatcore/internal/presence"
	"github.com/quantumspace/chatcore/internal/store"
)

const defaultMaxMessageLength = 1000

// Authenticator resolves a token to the identity of an active account.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (Identity, error)
}

// Persistence is the slice of durable storage the hub depends on.
type Persistence interface {
	IsMember(ctx context.Context, userID, roomID int64) (bool, error)
	CreateMessage(ctx context.Context, roomID, senderID int64, body string, msgType store.MessageType) (*store.Message, error)
	TouchRoomActivity(ctx context.Context, roomID, messageID int64, at time.Time) error
}

// Option customizes a Hub.
type Option func(*Hub)

// WithMaxMessageLength caps chat message content, counted in runes.
func WithMaxMessageLength(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.maxMessageLength = n
		}
	}
}

// WithClock overrides the time source used for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(h *Hub) {
		if now != nil {
			h.now = now
		}
	}
}

// Hub coordinates connections, room presence and broadcasts.
// Each registered client is served by its own goroutine, so commands of one
// connection run in order; room side effects are serialized per room.
type Hub struct {
	gate   Authenticator
	store  Persistence
	logger *zerolog.Logger

	sessions  *Registry
	presence  *presence.Tracker
	broadcast *Broadcaster
	rooms     *roomLocks
	validate  *validator.Validate

	maxMessageLength int
	now              func() time.Time

	// ctx outlives individual connections; departure messages are written with it.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	clients map[string]*Client
}

// NewHub creates a hub. Call Run to tie its lifetime to a context.
func NewHub(gate Authenticator, st Persistence, logger *zerolog.Logger, opts ...Option) *Hub {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	hubLogger := logger.With().Str("component", "hub").Logger()

	ctx, cancel := context.WithCancel(context.Background())
	sessions := NewRegistry()
	tracker := presence.NewTracker()

	h := &Hub{
		gate:             gate,
		store:            st,
		logger:           &hubLogger,
		sessions:         sessions,
		presence:         tracker,
		broadcast:        NewBroadcaster(tracker, sessions, &hubLogger),
		rooms:            newRoomLocks(),
		validate:         validator.New(),
		maxMessageLength: defaultMaxMessageLength,
		now:              time.Now,
		ctx:              ctx,
		cancel:           cancel,
		clients:          make(map[string]*Client),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run blocks until ctx is cancelled, then disconnects every client and waits
// for their cleanup to finish.
func (h *Hub) Run(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-h.ctx.Done():
	}

	h.mu.Lock()
	h.cancel()
	clients := lo.Values(h.clients)
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
	h.wg.Wait()
	h.logger.Info().Msg("hub stopped")
}

// RegisterClient starts serving c. A client registered after shutdown is closed immediately.
func (h *Hub) RegisterClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.ctx.Err() != nil {
		c.close()
		return
	}
	h.clients[c.ID] = c
	h.wg.Add(1)
	go h.serve(c)
	h.logger.Debug().Str("conn_id", c.ID).Msg("client registered")
}

// UnregisterClient disconnects c. Its session disappears at once; presence is
// swept by the serving goroutine once any in-flight command returns.
func (h *Hub) UnregisterClient(c *Client) {
	c.close()
	h.sessions.Remove(c.ID)
}

// RoomUsers returns the identities currently present in roomID.
func (h *Hub) RoomUsers(roomID int64) []Identity {
	return h.identities(h.presence.PresentUsers(roomID))
}

// Stats is a point-in-time view of live connections.
type Stats struct {
	Connections int
	Users       int
	Rooms       int
}

// Stats reports live connection, user and room counts.
func (h *Hub) Stats() Stats {
	conns, users := h.sessions.Count()
	return Stats{
		Connections: conns,
		Users:       users,
		Rooms:       len(h.presence.Rooms()),
	}
}

func (h *Hub) serve(c *Client) {
	defer h.wg.Done()
	defer h.cleanup(c)

	for {
		select {
		case <-c.Done():
			return
		case <-h.ctx.Done():
			return
		case cmd := <-c.Commands:
			if cmd == nil {
				continue
			}
			if c.closed() {
				return
			}
			h.dispatch(c, cmd)
		}
	}
}

// cleanup runs the disconnect sequence. It always completes, whatever the
// outcome of the last command.
func (h *Hub) cleanup(c *Client) {
	c.close()
	h.sessions.Remove(c.ID)

	h.mu.Lock()
	delete(h.clients, c.ID)
	h.mu.Unlock()

	if c.identity == nil {
		h.presence.RemoveConnection(c.ID)
		return
	}

	// each room's presence is dropped under that room's lock, like leave
	rooms := h.presence.RoomsOf(c.ID)
	for _, roomID := range rooms {
		unlock := h.rooms.lock(roomID)
		removed, last := h.presence.MarkAbsent(roomID, c.identity.UserID, c.ID)
		if removed && last {
			h.depart(roomID, *c.identity)
		}
		unlock()
	}
	h.presence.RemoveConnection(c.ID)

	h.logger.Debug().
		Str("conn_id", c.ID).
		Int64("user_id", c.identity.UserID).
		Int("rooms", len(rooms)).
		Msg("client disconnected")
}

func (h *Hub) identities(userIDs []int64) []Identity {
	return lo.FilterMap(userIDs, func(id int64, _ int) (Identity, bool) {
		return h.sessions.IdentityOf(id)
	})
}
