package core

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandAuthenticate binds the connection to the identity behind a token.
	CommandAuthenticate CommandKind = iota
	// CommandJoinRoom marks the connection present in a room.
	CommandJoinRoom
	// CommandLeaveRoom drops the connection's presence in a room.
	CommandLeaveRoom
	// CommandSendMessage persists and broadcasts a chat message.
	CommandSendMessage
	// CommandTyping forwards a typing signal to the rest of the room.
	CommandTyping
)

// Command represents an action requested by a client.
type Command struct {
	Kind        CommandKind
	Token       string
	RoomID      int64
	Content     string
	MessageType string
	IsTyping    bool
}
