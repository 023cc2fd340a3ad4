package repository

import (
	"context"

	"live-poll/internal/domain"
)

// PollRepository keeps the durable history of polls and their votes.
type PollRepository interface {
	// SavePollStarted stores a poll the moment it opens. Saving the same
	// (room, poll) twice is not an error.
	SavePollStarted(ctx context.Context, poll domain.Poll) error

	// SavePollRecord stores the final tally and every vote of a closed poll.
	// It is idempotent so a retried task does not duplicate votes.
	SavePollRecord(ctx context.Context, record domain.PollRecord) error

	// FindRecord returns ErrPollNotFound when the poll has no final record yet.
	FindRecord(ctx context.Context, roomID string, pollID int64) (*domain.PollRecord, error)

	// LastPollID returns the highest poll id stored for roomID, 0 when none.
	LastPollID(ctx context.Context, roomID string) (int64, error)
}
