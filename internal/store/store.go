package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a looked-up record does not exist.
var ErrNotFound = errors.New("not found")

// User represents an account known to the chat core.
type User struct {
	ID          int64
	Username    string
	DisplayName string
	IsActive    bool
	CreatedAt   time.Time
}

// Room represents a persisted chat room.
type Room struct {
	ID             int64
	Name           string
	LastMessageID  *int64
	LastActivityAt *time.Time
	CreatedAt      time.Time
}

// MessageType classifies a persisted message.
type MessageType string

const (
	MessageTypeText   MessageType = "text"
	MessageTypeImage  MessageType = "image"
	MessageTypeFile   MessageType = "file"
	MessageTypeSystem MessageType = "system"
)

// Message represents a persisted chat message. It is never updated after creation.
type Message struct {
	ID        int64
	RoomID    int64
	UserID    int64
	Body      string
	Type      MessageType
	CreatedAt time.Time
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateUser creates a new active user.
	CreateUser(ctx context.Context, username, displayName string) (*User, error)

	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id int64) (*User, error)

	// GetUserByUsername retrieves a user by username.
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	// SetUserActive enables or disables an account.
	SetUserActive(ctx context.Context, id int64, active bool) error
}

// RoomStore handles room and membership persistence.
type RoomStore interface {
	// CreateRoom creates a new room.
	CreateRoom(ctx context.Context, name string) (*Room, error)

	// GetRoomByID retrieves a room by ID.
	GetRoomByID(ctx context.Context, id int64) (*Room, error)

	// GetRoomByName retrieves a room by name.
	GetRoomByName(ctx context.Context, name string) (*Room, error)

	// AddMember adds a user to a room. Adding an existing member is a no-op.
	AddMember(ctx context.Context, userID, roomID int64) error

	// RemoveMember removes a user from a room.
	RemoveMember(ctx context.Context, userID, roomID int64) error

	// IsMember checks if user is a persisted member of the room.
	IsMember(ctx context.Context, userID, roomID int64) (bool, error)

	// ListMembers lists all members of a room.
	ListMembers(ctx context.Context, roomID int64) ([]int64, error)

	// TouchRoomActivity records the room's latest message and activity time.
	TouchRoomActivity(ctx context.Context, roomID, messageID int64, at time.Time) error
}

// MessageStore handles message persistence.
type MessageStore interface {
	// CreateMessage persists a new message and returns it with ID and timestamp set.
	CreateMessage(ctx context.Context, roomID, senderID int64, body string, msgType MessageType) (*Message, error)

	// ListMessages returns up to limit latest messages of a room in chronological order.
	ListMessages(ctx context.Context, roomID int64, limit int) ([]*Message, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	RoomStore
	MessageStore

	// Close closes the underlying database connection.
	Close() error
}
