package core

import (
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/quantumspace/chatcore/internal/presence"
)

// Broadcaster delivers events to the connections present in a room, to every
// connection of a user, or to a single connection.
type Broadcaster struct {
	presence *presence.Tracker
	sessions *Registry
	logger   *zerolog.Logger
}

// NewBroadcaster builds a broadcaster over the given presence and session state.
func NewBroadcaster(tracker *presence.Tracker, sessions *Registry, logger *zerolog.Logger) *Broadcaster {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Broadcaster{presence: tracker, sessions: sessions, logger: logger}
}

// Room delivers ev to the connections present in roomID at call time, skipping
// any listed in exclude. It returns how many connections accepted the event.
func (b *Broadcaster) Room(roomID int64, ev *Event, exclude ...string) int {
	delivered := 0
	for _, connID := range b.presence.PresentConnections(roomID) {
		if lo.Contains(exclude, connID) {
			continue
		}
		s, ok := b.sessions.Lookup(connID)
		if !ok {
			continue
		}
		if b.Send(s.Client, ev) {
			delivered++
		}
	}
	return delivered
}

// Unicast delivers ev to every live connection of userID.
func (b *Broadcaster) Unicast(userID int64, ev *Event) int {
	delivered := 0
	for _, c := range b.sessions.Connections(userID) {
		if b.Send(c, ev) {
			delivered++
		}
	}
	return delivered
}

// Send delivers ev to one connection. A full or closed connection drops the event.
func (b *Broadcaster) Send(c *Client, ev *Event) bool {
	if c.deliver(ev) {
		return true
	}
	b.logger.Warn().
		Str("conn_id", c.ID).
		Stringer("event", ev.Kind).
		Int64("room_id", ev.RoomID).
		Msg("event dropped")
	return false
}
