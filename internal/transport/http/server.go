package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/quantumspace/chatcore/internal/config"
	"github.com/quantumspace/chatcore/internal/core"
	"github.com/quantumspace/chatcore/internal/store"
)

// Hub is the part of core.Hub the transport drives.
type Hub interface {
	RegisterClient(c *core.Client)
	UnregisterClient(c *core.Client)
	RoomUsers(roomID int64) []core.Identity
	Stats() core.Stats
}

// NewServer builds the HTTP server: health, the WebSocket endpoint and the presence API.
func NewServer(hub Hub, gate core.Authenticator, rooms store.RoomStore, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger))

	router.GET("/health", func(c *gin.Context) {
		c.String(stdhttp.StatusOK, "ok")
	})

	api := NewAPIHandlers(hub, rooms, logger)
	authed := router.Group("/api", AuthMiddleware(gate, logger))
	authed.GET("/rooms/:id/presence", api.RoomPresence)
	authed.GET("/stats", api.Stats)

	// the upgrade bypasses gin, whose response writer rewrites the 101 status
	mux := stdhttp.NewServeMux()
	mux.Handle("/ws", NewWSHandler(hub, cfg, logger))
	mux.Handle("/", router)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}
