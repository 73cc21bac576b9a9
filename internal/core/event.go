package core

import "time"

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventAuthenticated acknowledges a successful authenticate.
	EventAuthenticated EventKind = iota
	// EventAuthError reports a rejected token. The connection stays open.
	EventAuthError
	// EventRoomUsers delivers the present-users snapshot to a joining connection.
	EventRoomUsers
	// EventUserJoined notifies a room that a user became present.
	EventUserJoined
	// EventUserLeft notifies a room that a user's last connection left.
	EventUserLeft
	// EventSystemMessage carries a persisted join/leave announcement.
	EventSystemMessage
	// EventNewMessage carries a persisted chat message.
	EventNewMessage
	// EventUserTyping carries a transient typing signal.
	EventUserTyping
	// EventError notifies a client about a rejected operation.
	EventError
)

var eventNames = [...]string{
	EventAuthenticated: "authenticated",
	EventAuthError:     "auth-error",
	EventRoomUsers:     "room-users",
	EventUserJoined:    "user-joined",
	EventUserLeft:      "user-left",
	EventSystemMessage: "system-message",
	EventNewMessage:    "new-message",
	EventUserTyping:    "user-typing",
	EventError:         "error",
}

func (k EventKind) String() string {
	if k < 0 || int(k) >= len(eventNames) {
		return "unknown"
	}
	return eventNames[k]
}

// Event is sent to clients to describe what happened in the system.
type Event struct {
	Kind     EventKind
	RoomID   int64
	User     *Identity  // subject of join/leave/typing, or the authenticated identity
	Users    []Identity // EventRoomUsers
	Message  *Message   // EventSystemMessage, EventNewMessage
	IsTyping bool
	At       time.Time
	Error    *CoreError
}
