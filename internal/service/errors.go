package service

import (
	"errors"

	"live-poll/internal/session"
)

var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrNotHost        = errors.New("only the room host can do this")
	ErrInvalidInput   = errors.New("invalid input")
	ErrResultNotFound = errors.New("poll result not found")
	ErrPollInProgress = errors.New("poll is still accepting votes")
	ErrInternalServer = errors.New("internal server error")
)

// Room session errors pass through the service layer unchanged.
var (
	ErrConflict  = session.ErrConflict
	ErrDuplicate = session.ErrDuplicate
	ErrStale     = session.ErrStale
	ErrRoomGone  = session.ErrRoomGone
)
