package proto

import "encoding/json"

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	InboundTypeAuthenticate = "authenticate"
	InboundTypeJoinRoom     = "join-room"
	InboundTypeLeaveRoom    = "leave-room"
	InboundTypeSendMessage  = "send-message"
	InboundTypeTyping       = "typing"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"

	EventAuthenticated = "authenticated"
	EventAuthError     = "auth-error"
	EventRoomUsers     = "room-users"
	EventUserJoined    = "user-joined"
	EventUserLeft      = "user-left"
	EventSystemMessage = "system-message"
	EventNewMessage    = "new-message"
	EventUserTyping    = "user-typing"
)

// AuthenticateData carries the token issued by the account service.
type AuthenticateData struct {
	Token string `json:"token"`
}

// RoomData addresses a room for join-room and leave-room.
type RoomData struct {
	RoomID int64 `json:"roomId" validate:"required,gt=0"`
}

// SendMessageData is a chat message from the client. Content rules are
// enforced by the hub so that they apply the configured length limit.
type SendMessageData struct {
	RoomID      int64  `json:"roomId" validate:"required,gt=0"`
	Content     string `json:"content"`
	MessageType string `json:"messageType,omitempty"`
}

// TypingData toggles the typing indicator in a room.
type TypingData struct {
	RoomID   int64 `json:"roomId" validate:"required,gt=0"`
	IsTyping bool  `json:"isTyping"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// OutboundFrame is Outbound as seen by a client decoding it.
type OutboundFrame struct {
	Type  string          `json:"type"`
	Event string          `json:"event,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error *Error          `json:"error,omitempty"`
}

// User is the public identity of an account.
type User struct {
	UserID      int64  `json:"userId"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName,omitempty"`
}

// AuthenticatedData acknowledges a successful authenticate.
type AuthenticatedData struct {
	User User `json:"user"`
}

// RoomUsersData is the presence snapshot sent to a joining connection.
type RoomUsersData struct {
	RoomID int64  `json:"roomId"`
	Users  []User `json:"users"`
}

// PresenceChangeData is the payload of user-joined and user-left.
type PresenceChangeData struct {
	RoomID    int64  `json:"roomId"`
	UserID    int64  `json:"userId"`
	Username  string `json:"username"`
	Timestamp int64  `json:"timestamp"`
}

// Message is a persisted chat or system message.
type Message struct {
	ID          int64  `json:"id"`
	RoomID      int64  `json:"roomId"`
	SenderID    int64  `json:"senderId"`
	SenderName  string `json:"senderName"`
	Content     string `json:"content"`
	MessageType string `json:"messageType"`
	CreatedAt   int64  `json:"createdAt"`
}

// MessageData is the payload of new-message and system-message.
type MessageData struct {
	RoomID  int64   `json:"roomId"`
	Message Message `json:"message"`
}

// UserTypingData is the payload of user-typing.
type UserTypingData struct {
	RoomID    int64  `json:"roomId"`
	UserID    int64  `json:"userId"`
	Username  string `json:"username"`
	IsTyping  bool   `json:"isTyping"`
	Timestamp int64  `json:"timestamp"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
