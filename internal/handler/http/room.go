package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"live-poll/internal/domain"
	"live-poll/internal/service"
	"live-poll/internal/session"
)

// RoomHandler serves room lifecycle endpoints.
type RoomHandler struct {
	roomService *service.RoomService
	pollService *service.PollService
}

// NewRoomHandler creates a RoomHandler.
func NewRoomHandler(roomService *service.RoomService, pollService *service.PollService) *RoomHandler {
	return &RoomHandler{roomService: roomService, pollService: pollService}
}

// CreateRoomRequest is the body of POST /rooms.
type CreateRoomRequest struct {
	Name string `json:"name" binding:"required,max=191"`
}

// RoomResponse is a room with its live state, when it has one.
type RoomResponse struct {
	Room  *domain.Room   `json:"room"`
	State *session.State `json:"state,omitempty"`
}

// CreateRoom handles POST /rooms. The caller becomes the host.
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	logCtx := logrus.WithField("user_id", userID)

	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logCtx.WithError(err).Warn("Handler.CreateRoom: Invalid input format")
		ErrorCodeResponse(c, http.StatusBadRequest, "validation", "Invalid input: name is required")
		return
	}

	room, err := h.roomService.CreateRoom(c.Request.Context(), userID, req.Name)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	logCtx.WithFields(logrus.Fields{"room_id": room.ID, "invite_code": room.InviteCode}).Info("Handler.CreateRoom: Room created successfully")
	SuccessResponse(c, http.StatusCreated, RoomResponse{Room: room})
}

// GetRoom handles GET /rooms/:roomId.
func (h *RoomHandler) GetRoom(c *gin.Context) {
	roomID := c.Param("roomId")
	room, err := h.roomService.FindRoomByID(c.Request.Context(), roomID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	resp := RoomResponse{Room: room}
	if room.IsActive {
		st, err := h.pollService.CurrentState(c.Request.Context(), roomID)
		if err != nil {
			HandleServiceError(c, err)
			return
		}
		resp.State = &st
	}
	SuccessResponse(c, http.StatusOK, resp)
}

// DeactivateRoom handles DELETE /rooms/:roomId.
func (h *RoomHandler) DeactivateRoom(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	if err := h.roomService.DeactivateRoom(c.Request.Context(), userID, c.Param("roomId")); err != nil {
		HandleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
