package repository

import (
	"context"

	"live-poll/internal/domain"
)

// RoomRepository stores and loads rooms.
type RoomRepository interface {
	// FindByID returns ErrRoomNotFound when the room does not exist.
	FindByID(ctx context.Context, id string) (*domain.Room, error)

	// Save creates or updates the room. A clashing invite code yields ErrDuplicateEntry.
	Save(ctx context.Context, room *domain.Room) error

	// FindAllActive returns the rooms among roomIDs that are still active.
	// Used by the reaper to find sessions whose room was deactivated elsewhere.
	FindAllActive(ctx context.Context, roomIDs []string) ([]domain.Room, error)

	// IsInviteCodeExists reports whether code is already taken.
	IsInviteCodeExists(ctx context.Context, code string) (bool, error)

	// Deactivate marks the room inactive.
	Deactivate(ctx context.Context, id string) error
}
