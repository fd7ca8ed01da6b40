package room

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Himu336/MockManch-Backend-Gateway/internal/api"
	"github.com/Himu336/MockManch-Backend-Gateway/internal/auth"
	"github.com/Himu336/MockManch-Backend-Gateway/internal/logger"
)

const roomIDKey = "room_id"

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

type RoomRequest struct {
	RoomID string `json:"room_id" binding:"required"`
}

// ValidateJoin rejects joins to unknown rooms before the caller is charged.
func (h *Handler) ValidateJoin(c *gin.Context) {
	var req RoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.Abort(c, http.StatusBadRequest, "room_id is required")
		return
	}

	exists, err := h.service.RoomExists(c.Request.Context(), req.RoomID)
	if err != nil {
		logger.WithError(err).WithField("room_id", req.RoomID).Error("Room lookup failed")
		api.Abort(c, http.StatusInternalServerError, "failed to load room")
		return
	}
	if !exists {
		api.Abort(c, http.StatusNotFound, "Room not found")
		return
	}

	c.Set(roomIDKey, req.RoomID)
	c.Next()
}

// Create godoc
// @Summary      Open a group practice room hosted by the caller
// @Tags         room
// @Security     BearerAuth
// @Produce      json
// @Success      201 {object} api.Envelope
// @Failure      402 {object} api.ErrorResponse
// @Router       /api/v1/room/create [post]
func (h *Handler) Create(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		api.Fail(c, http.StatusUnauthorized, "User not authenticated")
		return
	}

	room, err := h.service.CreateRoom(c.Request.Context(), userID)
	if err != nil {
		logger.WithError(err).WithField("user_id", userID).Error("Create room failed")
		api.Fail(c, http.StatusInternalServerError, "failed to create room")
		return
	}

	api.OK(c, http.StatusCreated, room)
}

// Join godoc
// @Summary      Join an existing room
// @Tags         room
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request body RoomRequest true "Room to join"
// @Success      200 {object} api.Envelope
// @Failure      402 {object} api.ErrorResponse
// @Failure      404 {object} api.ErrorResponse
// @Router       /api/v1/room/join [post]
func (h *Handler) Join(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		api.Fail(c, http.StatusUnauthorized, "User not authenticated")
		return
	}

	roomID, ok := roomFromContext(c)
	if !ok {
		return
	}

	p, err := h.service.JoinRoom(c.Request.Context(), roomID, userID)
	if err != nil {
		if errors.Is(err, ErrRoomNotFound) {
			api.Fail(c, http.StatusNotFound, "Room not found")
			return
		}
		logger.WithError(err).WithFields(map[string]interface{}{
			"user_id": userID,
			"room_id": roomID,
		}).Error("Join room failed")
		api.Fail(c, http.StatusInternalServerError, "failed to join room")
		return
	}

	api.OK(c, http.StatusOK, p)
}

// Leave godoc
// @Summary      Leave a room
// @Tags         room
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request body RoomRequest true "Room to leave"
// @Success      200 {object} api.Envelope
// @Failure      404 {object} api.ErrorResponse
// @Router       /api/v1/room/leave [post]
func (h *Handler) Leave(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		api.Fail(c, http.StatusUnauthorized, "User not authenticated")
		return
	}

	roomID, ok := roomFromContext(c)
	if !ok {
		return
	}

	err := h.service.LeaveRoom(c.Request.Context(), roomID, userID)
	switch {
	case err == nil:
		api.OK(c, http.StatusOK, gin.H{"room_id": roomID, "user_id": userID})
	case errors.Is(err, ErrNotParticipant):
		api.Fail(c, http.StatusNotFound, "You are not in this room")
	default:
		logger.WithError(err).WithField("room_id", roomID).Error("Leave room failed")
		api.Fail(c, http.StatusInternalServerError, "failed to leave room")
	}
}

// Get godoc
// @Summary      Room details with active participants and recent events
// @Tags         room
// @Security     BearerAuth
// @Produce      json
// @Param        roomID path string true "Room ID"
// @Success      200 {object} api.Envelope
// @Failure      404 {object} api.ErrorResponse
// @Router       /api/v1/room/{roomID} [get]
func (h *Handler) Get(c *gin.Context) {
	roomID := c.Param("roomID")

	details, err := h.service.GetRoom(c.Request.Context(), roomID)
	if err != nil {
		if errors.Is(err, ErrRoomNotFound) {
			api.Fail(c, http.StatusNotFound, "Room not found")
			return
		}
		logger.WithError(err).WithField("room_id", roomID).Error("Get room failed")
		api.Fail(c, http.StatusInternalServerError, "failed to load room")
		return
	}

	api.OK(c, http.StatusOK, details)
}

// roomFromContext reads the room id set by ValidateJoin, or binds it from the body.
func roomFromContext(c *gin.Context) (string, bool) {
	if v, ok := c.Get(roomIDKey); ok {
		if id, ok := v.(string); ok && id != "" {
			return id, true
		}
	}

	var req RoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.Fail(c, http.StatusBadRequest, "room_id is required")
		return "", false
	}
	return req.RoomID, true
}
