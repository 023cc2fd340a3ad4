package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"live-poll/internal/repository"
	"live-poll/internal/tasks"
)

// taskLogger builds the per-task log context. Tasks built outside a server
// have no ResultWriter, so the id may be empty.
func taskLogger(ctx context.Context, t *asynq.Task) *logrus.Entry {
	taskID := ""
	if rw := t.ResultWriter(); rw != nil {
		taskID = rw.TaskID()
	}
	currentRetry, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)
	return logrus.WithFields(logrus.Fields{
		"task_id":   taskID,
		"task_type": t.Type(),
		"retry":     currentRetry,
		"max_retry": maxRetry,
	})
}

// PollHistoryHandler writes poll history to the database.
type PollHistoryHandler struct {
	pollRepo  repository.PollRepository
	stateRepo repository.StateRepository
	cacheTTL  time.Duration
}

// NewPollHistoryHandler creates the handler. stateRepo may be nil to skip cache warming.
func NewPollHistoryHandler(pollRepo repository.PollRepository, stateRepo repository.StateRepository, cacheTTL time.Duration) *PollHistoryHandler {
	if pollRepo == nil {
		panic("PollRepository cannot be nil for PollHistoryHandler")
	}
	return &PollHistoryHandler{pollRepo: pollRepo, stateRepo: stateRepo, cacheTTL: cacheTTL}
}

// ProcessPollStarted handles poll:started.
func (h *PollHistoryHandler) ProcessPollStarted(ctx context.Context, t *asynq.Task) error {
	logCtx := taskLogger(ctx, t)

	var payload tasks.PollStartedPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		logCtx.WithError(err).Error("Failed to unmarshal task payload")
		return fmt.Errorf("failed to unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}
	logCtx = logCtx.WithFields(logrus.Fields{"room_id": payload.Poll.RoomID, "poll_id": payload.Poll.ID})

	if err := h.pollRepo.SavePollStarted(ctx, payload.Poll); err != nil {
		logCtx.WithError(err).Error("Failed to save started poll")
		return fmt.Errorf("failed to save poll %d: %w", payload.Poll.ID, err)
	}
	logCtx.Debug("Started poll stored")
	return nil
}

// ProcessPollEnded handles poll:ended and warms the result cache.
func (h *PollHistoryHandler) ProcessPollEnded(ctx context.Context, t *asynq.Task) error {
	logCtx := taskLogger(ctx, t)

	var payload tasks.PollEndedPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		logCtx.WithError(err).Error("Failed to unmarshal task payload")
		return fmt.Errorf("failed to unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}
	record := payload.Record
	logCtx = logCtx.WithFields(logrus.Fields{"room_id": record.Poll.RoomID, "poll_id": record.Poll.ID, "votes": record.Tally.Total})

	if err := h.pollRepo.SavePollRecord(ctx, record); err != nil {
		logCtx.WithError(err).Error("Failed to save poll record")
		return fmt.Errorf("failed to save record of poll %d: %w", record.Poll.ID, err)
	}

	if h.stateRepo != nil {
		if err := h.stateRepo.SetResultCache(ctx, &record, h.cacheTTL); err != nil {
			logCtx.WithError(err).Warn("Failed to cache poll result")
		}
	}
	logCtx.Info("Poll record stored")
	return nil
}

// RoomClosedHandler drops cached state of an evicted room.
type RoomClosedHandler struct {
	stateRepo repository.StateRepository
}

// NewRoomClosedHandler creates the handler.
func NewRoomClosedHandler(stateRepo repository.StateRepository) *RoomClosedHandler {
	if stateRepo == nil {
		panic("StateRepository cannot be nil for RoomClosedHandler")
	}
	return &RoomClosedHandler{stateRepo: stateRepo}
}

// ProcessTask handles room:closed.
func (h *RoomClosedHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	logCtx := taskLogger(ctx, t)

	var payload tasks.RoomClosedPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		logCtx.WithError(err).Error("Failed to unmarshal task payload")
		return fmt.Errorf("failed to unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}
	if err := h.stateRepo.CleanupRoomState(ctx, payload.RoomID); err != nil {
		logCtx.WithField("room_id", payload.RoomID).WithError(err).Warn("Failed to clean up room state")
		return err
	}
	return nil
}
