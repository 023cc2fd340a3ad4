package tasks_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"live-poll/internal/domain"
	"live-poll/internal/tasks"
)

type enqueued struct {
	task *asynq.Task
	opts []asynq.Option
}

type fakeEnqueuer struct {
	got []enqueued
	err error
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.got = append(f.got, enqueued{task: task, opts: opts})
	queue := tasks.QueueDefault
	for _, o := range opts {
		if o.Type() == asynq.QueueOpt {
			queue = o.Value().(string)
		}
	}
	return &asynq.TaskInfo{ID: "t1", Queue: queue, Type: task.Type()}, nil
}

func queueOf(opts []asynq.Option) string {
	for _, o := range opts {
		if o.Type() == asynq.QueueOpt {
			return o.Value().(string)
		}
	}
	return ""
}

func TestRecorder_PollEndedGoesToCriticalQueue(t *testing.T) {
	fe := &fakeEnqueuer{}
	rec := tasks.NewRecorder(fe, nil)
	record := domain.PollRecord{
		Poll:    domain.Poll{ID: 3, RoomID: "room-1", Question: "Q"},
		Tally:   domain.Tally{Total: 2, LeaderID: 1},
		Votes:   []domain.Vote{{PollID: 3, ParticipantID: 1, OptionID: 1, TimeTaken: 1500 * time.Millisecond}},
		EndedAt: time.Date(2024, 5, 1, 12, 0, 10, 0, time.UTC),
	}

	require.NoError(t, rec.PollEnded(context.Background(), record))
	require.Len(t, fe.got, 1)
	assert.Equal(t, tasks.TypePollEnded, fe.got[0].task.Type())
	assert.Equal(t, tasks.QueueCritical, queueOf(fe.got[0].opts))

	var payload tasks.PollEndedPayload
	require.NoError(t, json.Unmarshal(fe.got[0].task.Payload(), &payload))
	assert.Equal(t, record.Poll.ID, payload.Record.Poll.ID)
	assert.Equal(t, 1500*time.Millisecond, payload.Record.Votes[0].TimeTaken)
}

func TestRecorder_PollStartedAndRoomClosed(t *testing.T) {
	fe := &fakeEnqueuer{}
	rec := tasks.NewRecorder(fe, nil)

	require.NoError(t, rec.PollStarted(context.Background(), domain.Poll{ID: 1, RoomID: "room-1"}))
	require.NoError(t, rec.RoomClosed(context.Background(), "room-1"))
	require.Len(t, fe.got, 2)
	assert.Equal(t, tasks.TypePollStarted, fe.got[0].task.Type())
	assert.Equal(t, tasks.QueueDefault, queueOf(fe.got[0].opts))
	assert.Equal(t, tasks.TypeRoomClosed, fe.got[1].task.Type())
	assert.Equal(t, tasks.QueueLow, queueOf(fe.got[1].opts))
}

func TestRecorder_EnqueueErrorIsReturned(t *testing.T) {
	rec := tasks.NewRecorder(&fakeEnqueuer{err: errors.New("redis down")}, nil)
	err := rec.PollStarted(context.Background(), domain.Poll{ID: 1})
	assert.ErrorContains(t, err, "redis down")
}
