// Package presence tracks which users are currently present in which rooms,
// keyed by the connection that made them present.
package presence

import (
	"slices"
	"sync"

	"github.com/samber/lo"
)

// Departure describes a (room, user) pair a connection was present in when it went away.
// Last is true when no other connection keeps the user present in that room.
type Departure struct {
	RoomID int64
	UserID int64
	Last   bool
}

type roomState struct {
	// user id -> set of connection ids
	users map[int64]map[string]struct{}
}

// Tracker is safe for concurrent use. Rooms are created on first presence
// and removed when their last user departs.
type Tracker struct {
	mu    sync.Mutex
	rooms map[int64]*roomState
	// connection id -> room id -> user id
	conns map[string]map[int64]int64
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		rooms: make(map[int64]*roomState),
		conns: make(map[string]map[int64]int64),
	}
}

// MarkPresent records connID as making userID present in roomID.
// added reports whether the connection was newly recorded; first reports
// whether this is the user's first connection in the room.
func (t *Tracker) MarkPresent(roomID, userID int64, connID string) (added, first bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	room, ok := t.rooms[roomID]
	if !ok {
		room = &roomState{users: make(map[int64]map[string]struct{})}
		t.rooms[roomID] = room
	}

	userConns, ok := room.users[userID]
	if !ok {
		userConns = make(map[string]struct{})
		room.users[userID] = userConns
	}
	if _, exists := userConns[connID]; exists {
		return false, false
	}

	first = len(userConns) == 0
	userConns[connID] = struct{}{}

	byRoom, ok := t.conns[connID]
	if !ok {
		byRoom = make(map[int64]int64)
		t.conns[connID] = byRoom
	}
	byRoom[roomID] = userID
	return true, first
}

// MarkAbsent removes connID's presence for userID in roomID.
// removed reports whether anything was removed; last reports whether the
// user no longer has any connection in the room.
func (t *Tracker) MarkAbsent(roomID, userID int64, connID string) (removed, last bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.markAbsentLocked(roomID, userID, connID)
}

func (t *Tracker) markAbsentLocked(roomID, userID int64, connID string) (removed, last bool) {
	room, ok := t.rooms[roomID]
	if !ok {
		return false, false
	}
	userConns, ok := room.users[userID]
	if !ok {
		return false, false
	}
	if _, exists := userConns[connID]; !exists {
		return false, false
	}

	delete(userConns, connID)
	if len(userConns) == 0 {
		delete(room.users, userID)
		last = true
	}
	if len(room.users) == 0 {
		delete(t.rooms, roomID)
	}

	if byRoom, ok := t.conns[connID]; ok {
		delete(byRoom, roomID)
		if len(byRoom) == 0 {
			delete(t.conns, connID)
		}
	}
	return true, last
}

// RemoveConnection drops every presence held by connID and reports what it left.
func (t *Tracker) RemoveConnection(connID string) []Departure {
	t.mu.Lock()
	defer t.mu.Unlock()

	byRoom, ok := t.conns[connID]
	if !ok {
		return nil
	}

	roomIDs := lo.Keys(byRoom)
	slices.Sort(roomIDs)

	departures := make([]Departure, 0, len(roomIDs))
	for _, roomID := range roomIDs {
		userID := byRoom[roomID]
		if removed, last := t.markAbsentLocked(roomID, userID, connID); removed {
			departures = append(departures, Departure{RoomID: roomID, UserID: userID, Last: last})
		}
	}
	return departures
}

// RoomsOf returns the rooms connID is present in, sorted by id.
func (t *Tracker) RoomsOf(connID string) []int64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	byRoom, ok := t.conns[connID]
	if !ok {
		return nil
	}
	roomIDs := lo.Keys(byRoom)
	slices.Sort(roomIDs)
	return roomIDs
}

// IsPresent reports whether connID currently holds presence in roomID.
func (t *Tracker) IsPresent(roomID int64, connID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, ok := t.conns[connID][roomID]
	return ok
}

// HasUser reports whether any connection of userID is present in roomID.
func (t *Tracker) HasUser(roomID, userID int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	room, ok := t.rooms[roomID]
	if !ok {
		return false
	}
	_, ok = room.users[userID]
	return ok
}

// PresentUsers returns the distinct users present in roomID, sorted by id.
func (t *Tracker) PresentUsers(roomID int64) []int64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	room, ok := t.rooms[roomID]
	if !ok {
		return nil
	}
	users := lo.Keys(room.users)
	slices.Sort(users)
	return users
}

// PresentConnections returns every connection present in roomID.
func (t *Tracker) PresentConnections(roomID int64) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	room, ok := t.rooms[roomID]
	if !ok {
		return nil
	}
	var conns []string
	for _, userConns := range room.users {
		conns = append(conns, lo.Keys(userConns)...)
	}
	slices.Sort(conns)
	return conns
}

// Rooms returns the number of present users per non-empty room.
func (t *Tracker) Rooms() map[int64]int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return lo.MapValues(t.rooms, func(room *roomState, _ int64) int {
		return len(room.users)
	})
}
