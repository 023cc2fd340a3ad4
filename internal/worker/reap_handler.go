package worker

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"live-poll/internal/repository"
	"live-poll/internal/session"
)

// DefaultRoomIdleTTL is how long a session with no poll and no subscribers is kept.
const DefaultRoomIdleTTL = 30 * time.Minute

// SubscriberCounter reports live push connections per room.
type SubscriberCounter interface {
	SubscriberCount(roomID string) int
}

// RoomEvictor evicts a room's session.
type RoomEvictor interface {
	EvictRoom(ctx context.Context, roomID string) bool
}

// RoomReapHandler handles the periodic room:reap task. It evicts sessions
// whose room was deactivated and sessions that sat idle and unwatched for
// longer than idleTTL.
type RoomReapHandler struct {
	registry    *session.Registry
	subscribers SubscriberCounter
	roomRepo    repository.RoomRepository
	evictor     RoomEvictor
	clock       session.Clock
	idleTTL     time.Duration
}

// NewRoomReapHandler creates the handler. idleTTL <= 0 uses DefaultRoomIdleTTL.
func NewRoomReapHandler(registry *session.Registry, subscribers SubscriberCounter, roomRepo repository.RoomRepository,
	evictor RoomEvictor, clock session.Clock, idleTTL time.Duration) *RoomReapHandler {
	if registry == nil {
		panic("session Registry cannot be nil for RoomReapHandler")
	}
	if subscribers == nil || roomRepo == nil || evictor == nil {
		panic("subscriber counter, RoomRepository and evictor are required for RoomReapHandler")
	}
	if clock == nil {
		clock = session.SystemClock()
	}
	if idleTTL <= 0 {
		idleTTL = DefaultRoomIdleTTL
	}
	return &RoomReapHandler{
		registry:    registry,
		subscribers: subscribers,
		roomRepo:    roomRepo,
		evictor:     evictor,
		clock:       clock,
		idleTTL:     idleTTL,
	}
}

// ProcessTask implements asynq.Handler.
func (h *RoomReapHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	logCtx := taskLogger(ctx, t)

	sessions := h.registry.Active()
	if len(sessions) == 0 {
		logCtx.Debug("No room sessions, skipping reap")
		return nil
	}
	ids := lo.Map(sessions, func(s *session.RoomSession, _ int) string { return s.RoomID() })

	queryCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	active, err := h.roomRepo.FindAllActive(queryCtx, ids)
	if err != nil {
		logCtx.WithError(err).Error("Failed to load active rooms")
		return err
	}
	// Rooms missing from the result were deactivated or deleted.
	activeIDs := make(map[string]struct{}, len(active))
	for _, r := range active {
		activeIDs[r.ID] = struct{}{}
	}

	now := h.clock.Now()
	evicted := 0
	for _, s := range sessions {
		roomID := s.RoomID()
		reason := ""
		if _, ok := activeIDs[roomID]; !ok {
			reason = "room inactive"
		} else if h.subscribers.SubscriberCount(roomID) == 0 && s.IdleFor(now) >= h.idleTTL {
			reason = "idle"
		}
		if reason == "" {
			continue
		}
		// false when another eviction already removed it.
		if h.evictor.EvictRoom(ctx, roomID) {
			evicted++
			logCtx.WithFields(logrus.Fields{"room_id": roomID, "reason": reason}).Info("Room session reaped")
		}
	}

	logCtx.WithFields(logrus.Fields{"sessions": len(sessions), "evicted": evicted}).Debug("Room reap completed")
	return nil
}
