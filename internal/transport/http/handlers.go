package http

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/dkeye/Collab/internal/adapters/signal"
	"github.com/dkeye/Collab/internal/app/orch"
	"github.com/dkeye/Collab/internal/directory"
	"github.com/dkeye/Collab/internal/domain"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type NickRequest struct {
	Name string `json:"name"`
}

type NickResponse struct {
	Message string `json:"message"`
	Name    string `json:"name"`
}

// Handlers serves the REST side of the server.
type Handlers struct {
	Orch      *orch.Orchestrator
	Directory directory.Directory
}

func (h *Handlers) Register(api *gin.RouterGroup) {
	api.GET("/health", h.health)
	api.GET("/room-id", h.roomID)
	api.GET("/rooms", h.listRooms)
	api.GET("/rooms/:id", h.getRoom)
	api.POST("/profile", h.profile)
}

func (h *Handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handlers) roomID(c *gin.Context) {
	id := h.Orch.GenerateRoomID(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"roomId": id})
}

func (h *Handlers) listRooms(c *gin.Context) {
	rooms, err := h.Directory.List(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Str("module", "transport.http").Msg("list rooms")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "directory unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"rooms": rooms})
}

func (h *Handlers) getRoom(c *gin.Context) {
	info, err := h.Directory.Get(c.Request.Context(), domain.RoomID(c.Param("id")))
	if errors.Is(err, directory.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}
	if err != nil {
		log.Error().Err(err).Str("module", "transport.http").Msg("get room")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "directory unavailable"})
		return
	}
	c.JSON(http.StatusOK, info)
}

// profile remembers the display name used by later WebSocket sessions.
func (h *Handlers) profile(c *gin.Context) {
	var req NickRequest
	name := ""
	if err := c.ShouldBindJSON(&req); err == nil {
		name = domain.NormalizeName(req.Name)
	}
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid name"})
		return
	}

	session := sessions.Default(c)
	session.Set(signal.SessionNameKey, name)
	if err := session.Save(); err != nil {
		log.Error().Err(err).Str("module", "transport.http").Msg("save session")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "session unavailable"})
		return
	}

	c.JSON(http.StatusOK, NickResponse{
		Message: fmt.Sprintf("Hello %s!", name),
		Name:    name,
	})
}
