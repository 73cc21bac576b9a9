package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/quantumspace/chatcore/internal/proto"
	"github.com/quantumspace/chatcore/internal/store"
)

// APIHandlers serves read-only views of live presence.
type APIHandlers struct {
	hub   Hub
	rooms store.RoomStore
	log   *zerolog.Logger
}

// NewAPIHandlers creates a new API handlers instance.
func NewAPIHandlers(hub Hub, rooms store.RoomStore, logger *zerolog.Logger) *APIHandlers {
	return &APIHandlers{
		hub:   hub,
		rooms: rooms,
		log:   logger,
	}
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// StatsResponse reports live connection counts.
type StatsResponse struct {
	Online      int `json:"online"`
	Connections int `json:"connections"`
	Rooms       int `json:"rooms"`
}

// RoomPresence returns the users currently present in a room the caller belongs to.
// GET /api/rooms/:id/presence
func (h *APIHandlers) RoomPresence(c *gin.Context) {
	roomID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || roomID <= 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid room id"})
		return
	}

	identity, ok := identityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	member, err := h.rooms.IsMember(c.Request.Context(), identity.UserID, roomID)
	if err != nil {
		h.log.Error().Err(err).Int64("room_id", roomID).Int64("user_id", identity.UserID).Msg("failed to check membership")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "not a member of this room"})
		return
	}

	c.JSON(http.StatusOK, proto.RoomUsersData{
		RoomID: roomID,
		Users:  usersToProto(h.hub.RoomUsers(roomID)),
	})
}

// Stats returns how many users, connections and rooms are live.
// GET /api/stats
func (h *APIHandlers) Stats(c *gin.Context) {
	stats := h.hub.Stats()
	c.JSON(http.StatusOK, StatsResponse{
		Online:      stats.Users,
		Connections: stats.Connections,
		Rooms:       stats.Rooms,
	})
}
