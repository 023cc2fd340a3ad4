package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"live-poll/internal/domain"
	"live-poll/internal/repository"
	"live-poll/internal/session"
)

const maxRoomNameLength = 191

// RoomEvents is notified after a room session has been evicted.
type RoomEvents interface {
	RoomClosed(ctx context.Context, roomID string) error
}

// RoomService handles room lifecycle.
type RoomService struct {
	roomRepo repository.RoomRepository
	registry *session.Registry
	events   RoomEvents
}

// NewRoomService creates a RoomService. events may be nil.
func NewRoomService(roomRepo repository.RoomRepository, registry *session.Registry, events RoomEvents) *RoomService {
	if roomRepo == nil {
		panic("RoomRepository cannot be nil for RoomService")
	}
	if registry == nil {
		panic("session Registry cannot be nil for RoomService")
	}
	return &RoomService{roomRepo: roomRepo, registry: registry, events: events}
}

// CreateRoom creates an active room hosted by hostID.
func (s *RoomService) CreateRoom(ctx context.Context, hostID uint, name string) (*domain.Room, error) {
	logCtx := logrus.WithField("host_id", hostID)

	name = strings.TrimSpace(name)
	if name == "" || len(name) > maxRoomNameLength {
		return nil, fmt.Errorf("%w: room name must be 1-%d characters", ErrInvalidInput, maxRoomNameLength)
	}

	inviteCode, err := s.generateUniqueInviteCode(ctx)
	if err != nil {
		logCtx.WithError(err).Error("Failed to generate unique invite code")
		return nil, ErrInternalServer
	}

	room := &domain.Room{
		ID:         uuid.NewString(),
		Name:       name,
		HostID:     hostID,
		InviteCode: inviteCode,
		IsActive:   true,
	}
	logCtx = logCtx.WithFields(logrus.Fields{"room_id": room.ID, "invite_code": inviteCode})

	if err := s.roomRepo.Save(ctx, room); err != nil {
		if errors.Is(err, repository.ErrDuplicateEntry) {
			logCtx.WithError(err).Error("Failed to save new room due to duplicate entry (invite code race?)")
		} else {
			logCtx.WithError(err).Error("Failed to save new room to database")
		}
		return nil, ErrInternalServer
	}

	logCtx.Info("Room created successfully")
	return room, nil
}

// FindRoomByID loads a room.
func (s *RoomService) FindRoomByID(ctx context.Context, roomID string) (*domain.Room, error) {
	logCtx := logrus.WithField("room_id", roomID)
	room, err := s.roomRepo.FindByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			logCtx.Debug("FindRoomByID: Room not found")
			return nil, ErrRoomNotFound
		}
		logCtx.WithError(err).Error("FindRoomByID: Repository error")
		return nil, ErrInternalServer
	}
	if room == nil {
		return nil, ErrRoomNotFound
	}
	return room, nil
}

// DeactivateRoom closes a room for good. Only the host may do it; any
// poll still voting ends immediately and subscribers are disconnected.
func (s *RoomService) DeactivateRoom(ctx context.Context, userID uint, roomID string) error {
	room, err := s.FindRoomByID(ctx, roomID)
	if err != nil {
		return err
	}
	if !room.IsHost(userID) {
		return ErrNotHost
	}
	return s.deactivate(ctx, room.ID, "host request")
}

// DeactivateOnHostLeave applies the deactivate host-disconnect policy.
func (s *RoomService) DeactivateOnHostLeave(ctx context.Context, roomID string) error {
	return s.deactivate(ctx, roomID, "host disconnected")
}

func (s *RoomService) deactivate(ctx context.Context, roomID, reason string) error {
	logCtx := logrus.WithFields(logrus.Fields{"room_id": roomID, "reason": reason})
	if err := s.roomRepo.Deactivate(ctx, roomID); err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return ErrRoomNotFound
		}
		logCtx.WithError(err).Error("Failed to deactivate room")
		return ErrInternalServer
	}
	s.EvictRoom(ctx, roomID)
	logCtx.Info("Room deactivated")
	return nil
}

// EvictRoom drops the in-memory session of roomID, if any, and notifies events.
func (s *RoomService) EvictRoom(ctx context.Context, roomID string) bool {
	if !s.registry.Evict(roomID) {
		return false
	}
	if s.events != nil {
		if err := s.events.RoomClosed(ctx, roomID); err != nil {
			logrus.WithField("room_id", roomID).WithError(err).Warn("Failed to publish room closed task")
		}
	}
	return true
}

// generateUniqueInviteCode draws 6-character codes until one is free.
func (s *RoomService) generateUniqueInviteCode(ctx context.Context) (string, error) {
	const maxAttempts = 10

	for attempt := 0; attempt < maxAttempts; attempt++ {
		code, err := newInviteCode(rand.Reader)
		if err != nil {
			return "", err
		}

		exists, err := s.roomRepo.IsInviteCodeExists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("database error checking invite code: %w", err)
		}
		if !exists {
			return code, nil
		}
		logrus.WithField("invite_code", code).Warnf("Generated invite code already exists, retrying (attempt %d)...", attempt+1)
	}
	return "", fmt.Errorf("failed to generate a unique invite code after %d attempts", maxAttempts)
}

const (
	inviteAlphabet   = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	inviteCodeLength = 6
	// largest multiple of len(inviteAlphabet) that fits in a byte
	inviteByteLimit = 256 - 256%len(inviteAlphabet)
)

// newInviteCode maps random bytes onto the alphabet, discarding bytes at or
// above inviteByteLimit so every character is equally likely.
func newInviteCode(src io.Reader) (string, error) {
	code := make([]byte, 0, inviteCodeLength)
	buf := make([]byte, inviteCodeLength*2)
	for len(code) < inviteCodeLength {
		if _, err := io.ReadFull(src, buf); err != nil {
			return "", fmt.Errorf("failed to generate random bytes: %w", err)
		}
		for _, b := range buf {
			if int(b) >= inviteByteLimit {
				continue
			}
			code = append(code, inviteAlphabet[int(b)%len(inviteAlphabet)])
			if len(code) == inviteCodeLength {
				break
			}
		}
	}
	return string(code), nil
}
