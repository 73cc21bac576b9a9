package core

import (
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/quantumspace/chatcore/internal/store"
)

var sendableTypes = []store.MessageType{
	store.MessageTypeText,
	store.MessageTypeImage,
	store.MessageTypeFile,
}

func (h *Hub) dispatch(c *Client, cmd *Command) {
	var err error
	switch cmd.Kind {
	case CommandAuthenticate:
		err = h.handleAuthenticate(c, cmd)
	case CommandJoinRoom:
		err = h.handleJoin(c, cmd)
	case CommandLeaveRoom:
		err = h.handleLeave(c, cmd)
	case CommandSendMessage:
		err = h.handleSend(c, cmd)
	case CommandTyping:
		err = h.handleTyping(c, cmd)
	default:
		err = fmt.Errorf("unknown command kind %d", cmd.Kind)
	}
	if err != nil {
		h.logger.Debug().Err(err).Str("conn_id", c.ID).Int64("room_id", cmd.RoomID).Msg("command rejected")
		h.broadcast.Send(c, &Event{Kind: EventError, RoomID: cmd.RoomID, Error: toCoreError(err), At: h.now()})
	}
}

func (h *Hub) requireIdentity(c *Client) (Identity, error) {
	if c.identity == nil {
		return Identity{}, ErrNotAuthenticated
	}
	return *c.identity, nil
}

func (h *Hub) handleAuthenticate(c *Client, cmd *Command) error {
	if c.identity != nil {
		return ErrAlreadyAuthenticated
	}

	ident, err := h.gate.Authenticate(c.ctx, cmd.Token)
	if err != nil {
		h.logger.Info().Err(err).Str("conn_id", c.ID).Msg("authentication failed")
		h.broadcast.Send(c, &Event{
			Kind:  EventAuthError,
			Error: coreError(ErrCodeAuth, "authentication failed"),
			At:    h.now(),
		})
		return nil
	}

	if err := h.sessions.Add(c, ident); err != nil {
		return fmt.Errorf("register session: %w", err)
	}
	c.identity = &ident

	h.logger.Info().Str("conn_id", c.ID).Int64("user_id", ident.UserID).Msg("client authenticated")
	h.broadcast.Send(c, &Event{Kind: EventAuthenticated, User: &ident, At: h.now()})
	return nil
}

func (h *Hub) handleJoin(c *Client, cmd *Command) error {
	ident, err := h.requireIdentity(c)
	if err != nil {
		return err
	}

	if h.presence.IsPresent(cmd.RoomID, c.ID) {
		h.sendRoomUsers(c, cmd.RoomID, ident)
		return nil
	}

	member, err := h.store.IsMember(c.ctx, ident.UserID, cmd.RoomID)
	if err != nil {
		return fmt.Errorf("check membership: %w: %w", ErrPersistence, err)
	}
	if !member {
		return ErrNotAuthorized
	}

	unlock := h.rooms.lock(cmd.RoomID)
	defer unlock()

	// the connection may have gone away while membership was checked
	if _, ok := h.sessions.Lookup(c.ID); !ok {
		h.logger.Debug().Str("conn_id", c.ID).Int64("room_id", cmd.RoomID).Msg("join dropped: connection gone")
		return nil
	}

	added, first := h.presence.MarkPresent(cmd.RoomID, ident.UserID, c.ID)
	if added && first {
		h.broadcast.Room(cmd.RoomID, &Event{
			Kind:   EventUserJoined,
			RoomID: cmd.RoomID,
			User:   &ident,
			At:     h.now(),
		}, c.ID)
		h.announce(cmd.RoomID, ident, fmt.Sprintf("%s joined the room", ident.Name()))
	}

	h.sendRoomUsers(c, cmd.RoomID, ident)
	return nil
}

func (h *Hub) handleLeave(c *Client, cmd *Command) error {
	ident, err := h.requireIdentity(c)
	if err != nil {
		return err
	}

	unlock := h.rooms.lock(cmd.RoomID)
	defer unlock()

	removed, last := h.presence.MarkAbsent(cmd.RoomID, ident.UserID, c.ID)
	if removed && last {
		h.depart(cmd.RoomID, ident)
	}
	return nil
}

func (h *Hub) handleSend(c *Client, cmd *Command) error {
	ident, err := h.requireIdentity(c)
	if err != nil {
		return err
	}
	if !h.presence.IsPresent(cmd.RoomID, c.ID) {
		return ErrNotInRoom
	}

	body, msgType, err := h.validateContent(cmd.Content, cmd.MessageType)
	if err != nil {
		return err
	}

	unlock := h.rooms.lock(cmd.RoomID)
	defer unlock()

	saved, err := h.store.CreateMessage(c.ctx, cmd.RoomID, ident.UserID, body, msgType)
	if err != nil {
		return fmt.Errorf("create message: %w: %w", ErrPersistence, err)
	}
	if err := h.store.TouchRoomActivity(c.ctx, cmd.RoomID, saved.ID, saved.CreatedAt); err != nil {
		return fmt.Errorf("touch room: %w: %w", ErrPersistence, err)
	}

	h.broadcast.Room(cmd.RoomID, &Event{
		Kind:    EventNewMessage,
		RoomID:  cmd.RoomID,
		Message: messageFrom(saved, ident),
		At:      saved.CreatedAt,
	})
	return nil
}

func (h *Hub) handleTyping(c *Client, cmd *Command) error {
	ident, err := h.requireIdentity(c)
	if err != nil {
		return err
	}
	if !h.presence.IsPresent(cmd.RoomID, c.ID) {
		return ErrNotInRoom
	}

	h.broadcast.Room(cmd.RoomID, &Event{
		Kind:     EventUserTyping,
		RoomID:   cmd.RoomID,
		User:     &ident,
		IsTyping: cmd.IsTyping,
		At:       h.now(),
	}, c.ID)
	return nil
}

// depart announces that ident has no connection left in roomID.
// Callers hold the room lock.
func (h *Hub) depart(roomID int64, ident Identity) {
	h.broadcast.Room(roomID, &Event{
		Kind:   EventUserLeft,
		RoomID: roomID,
		User:   &ident,
		At:     h.now(),
	})
	h.announce(roomID, ident, fmt.Sprintf("%s left the room", ident.Name()))
}

// announce persists and broadcasts a system message. Failures are logged only;
// presence changes never depend on them.
func (h *Hub) announce(roomID int64, ident Identity, body string) {
	saved, err := h.store.CreateMessage(h.ctx, roomID, ident.UserID, body, store.MessageTypeSystem)
	if err != nil {
		h.logger.Warn().Err(err).Int64("room_id", roomID).Int64("user_id", ident.UserID).Msg("system message not saved")
		return
	}
	h.broadcast.Room(roomID, &Event{
		Kind:    EventSystemMessage,
		RoomID:  roomID,
		Message: messageFrom(saved, ident),
		At:      saved.CreatedAt,
	})
}

// sendRoomUsers sends the joiner the users present in roomID, itself excluded.
func (h *Hub) sendRoomUsers(c *Client, roomID int64, self Identity) {
	others := lo.Without(h.presence.PresentUsers(roomID), self.UserID)
	h.broadcast.Send(c, &Event{
		Kind:   EventRoomUsers,
		RoomID: roomID,
		Users:  h.identities(others),
		At:     h.now(),
	})
}

func (h *Hub) validateContent(content, kind string) (string, store.MessageType, error) {
	body := strings.TrimSpace(content)
	if err := h.validate.Var(body, "required"); err != nil {
		return "", "", fmt.Errorf("%w: message is empty", ErrInvalidContent)
	}
	if err := h.validate.Var(body, fmt.Sprintf("max=%d", h.maxMessageLength)); err != nil {
		return "", "", fmt.Errorf("%w: message exceeds %d characters", ErrInvalidContent, h.maxMessageLength)
	}

	msgType := store.MessageType(kind)
	if msgType == "" {
		msgType = store.MessageTypeText
	}
	if !lo.Contains(sendableTypes, msgType) {
		return "", "", fmt.Errorf("%w: unsupported message type %q", ErrInvalidContent, kind)
	}
	return body, msgType, nil
}
