package core

import (
	"time"

	"github.com/quantumspace/chatcore/internal/store"
)

// Message is the broadcast form of a persisted chat message.
type Message struct {
	ID        int64
	RoomID    int64
	Sender    Identity
	Body      string
	Type      store.MessageType
	CreatedAt time.Time
}

func messageFrom(m *store.Message, sender Identity) *Message {
	return &Message{
		ID:        m.ID,
		RoomID:    m.RoomID,
		Sender:    sender,
		Body:      m.Body,
		Type:      m.Type,
		CreatedAt: m.CreatedAt,
	}
}
