package session

import (
	"errors"
	"fmt"
)

var (
	// ErrConflict: a poll is already accepting votes in this room.
	ErrConflict = errors.New("a poll is already active in this room")
	// ErrDuplicate: the participant already voted in this poll. Callers treat it as an acknowledgement.
	ErrDuplicate = errors.New("participant already voted in this poll")
	// ErrStale: the vote targets a poll that is not the one currently voting.
	ErrStale = errors.New("poll is no longer accepting votes")
	// ErrRoomGone: the session was evicted from the registry.
	ErrRoomGone = errors.New("room is no longer active")
)

// ValidationError reports malformed poll or vote input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
