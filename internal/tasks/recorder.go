package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"live-poll/internal/domain"
)

// Enqueuer is the part of *asynq.Client the recorder needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Recorder hands poll history to the worker through asynq so a room's hot
// path never waits on MySQL.
type Recorder struct {
	client Enqueuer
	log    *logrus.Entry
}

// NewRecorder creates a Recorder enqueuing through client.
func NewRecorder(client Enqueuer, logger *logrus.Logger) *Recorder {
	if client == nil {
		panic("asynq client cannot be nil for Recorder")
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Recorder{client: client, log: logger.WithField("component", "history_recorder")}
}

// PollStarted enqueues a poll:started task.
func (r *Recorder) PollStarted(ctx context.Context, poll domain.Poll) error {
	payload, err := NewPollStartedTask(poll)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", TypePollStarted, err)
	}
	return r.enqueue(ctx, asynq.NewTask(TypePollStarted, payload),
		asynq.Queue(QueueDefault), asynq.MaxRetry(5), asynq.Timeout(30*time.Second))
}

// PollEnded enqueues a poll:ended task on the critical queue.
func (r *Recorder) PollEnded(ctx context.Context, record domain.PollRecord) error {
	payload, err := NewPollEndedTask(record)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", TypePollEnded, err)
	}
	return r.enqueue(ctx, asynq.NewTask(TypePollEnded, payload),
		asynq.Queue(QueueCritical), asynq.MaxRetry(10), asynq.Timeout(time.Minute))
}

// RoomClosed enqueues a room:closed task.
func (r *Recorder) RoomClosed(ctx context.Context, roomID string) error {
	payload, err := NewRoomClosedTask(roomID)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", TypeRoomClosed, err)
	}
	return r.enqueue(ctx, asynq.NewTask(TypeRoomClosed, payload), asynq.Queue(QueueLow), asynq.MaxRetry(3))
}

func (r *Recorder) enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) error {
	info, err := r.client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", task.Type(), err)
	}
	r.log.WithFields(logrus.Fields{"task_id": info.ID, "task_type": task.Type(), "queue": info.Queue}).Debug("Task enqueued")
	return nil
}
