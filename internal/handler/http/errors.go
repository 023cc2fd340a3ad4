package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"live-poll/internal/service"
	"live-poll/internal/session"
)

// HandleServiceError maps service and room session errors to HTTP responses.
func HandleServiceError(c *gin.Context, err error) {
	var ve *session.ValidationError
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"error": ve.Error(), "code": "validation", "field": ve.Field})
	case errors.Is(err, service.ErrInvalidInput):
		ErrorCodeResponse(c, http.StatusBadRequest, "validation", err.Error())
	case errors.Is(err, service.ErrDuplicate):
		c.JSON(http.StatusOK, gin.H{"status": "already_voted"})
	case errors.Is(err, service.ErrStale):
		ErrorCodeResponse(c, http.StatusConflict, "stale", err.Error())
	case errors.Is(err, service.ErrConflict), errors.Is(err, service.ErrPollInProgress):
		ErrorCodeResponse(c, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, service.ErrRoomGone):
		ErrorCodeResponse(c, http.StatusGone, "room_gone", err.Error())
	case errors.Is(err, service.ErrRoomNotFound), errors.Is(err, service.ErrResultNotFound):
		ErrorCodeResponse(c, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, service.ErrNotHost):
		ErrorCodeResponse(c, http.StatusForbidden, "not_host", err.Error())
	default:
		logrus.WithError(err).Error("Unhandled internal server error")
		ErrorResponse(c, http.StatusInternalServerError, "An unexpected error occurred")
	}
}

// currentUserID reads the id the auth middleware stored. It writes the
// error response itself and returns false when the id is missing.
func currentUserID(c *gin.Context) (uint, bool) {
	userIDAny, exists := c.Get("user_id")
	if !exists {
		logrus.Warn("User ID not found in context, auth middleware missing or failed?")
		ErrorResponse(c, http.StatusUnauthorized, "User not authenticated")
		return 0, false
	}
	userID, ok := userIDAny.(uint)
	if !ok {
		logrus.Error("User ID in context is not uint")
		ErrorResponse(c, http.StatusInternalServerError, "Internal server error processing user ID")
		return 0, false
	}
	return userID, true
}
