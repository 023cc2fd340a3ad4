package worker

import (
	"context"
	"errors"
	"net/http"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"live-poll/internal/tasks"
)

// Handlers groups the task handlers the worker serves.
type Handlers struct {
	History    *PollHistoryHandler
	RoomClosed *RoomClosedHandler
	Reaper     *RoomReapHandler
}

// WorkerServer wraps the asynq server lifecycle.
type WorkerServer struct {
	server   *asynq.Server
	log      *logrus.Entry
	handlers Handlers
}

// NewWorkerServer creates a WorkerServer.
func NewWorkerServer(redisOpt asynq.RedisClientOpt, concurrency int, handlers Handlers, logger *logrus.Logger) *WorkerServer {
	logEntry := logger.WithField("component", "worker_server")
	if concurrency <= 0 {
		concurrency = 10
	}

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: concurrency,
			Queues: map[string]int{
				tasks.QueueCritical: 6,
				tasks.QueueDefault:  3,
				tasks.QueueLow:      1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				taskID := ""
				if rw := task.ResultWriter(); rw != nil {
					taskID = rw.TaskID()
				}
				retryCount, _ := asynq.GetRetryCount(ctx)
				maxRetry, _ := asynq.GetMaxRetry(ctx)
				logEntry.WithFields(logrus.Fields{
					"task_id":   taskID,
					"task_type": task.Type(),
					"retries":   retryCount,
					"max_retry": maxRetry,
				}).Errorf("Task failed: %v", err)
			}),
			Logger: logger,
		},
	)

	return &WorkerServer{server: server, log: logEntry, handlers: handlers}
}

// Mux returns the task routing table.
func (ws *WorkerServer) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	if h := ws.handlers.History; h != nil {
		mux.HandleFunc(tasks.TypePollStarted, h.ProcessPollStarted)
		mux.HandleFunc(tasks.TypePollEnded, h.ProcessPollEnded)
	}
	if h := ws.handlers.RoomClosed; h != nil {
		mux.Handle(tasks.TypeRoomClosed, h)
	}
	if h := ws.handlers.Reaper; h != nil {
		mux.Handle(tasks.TypeRoomReap, h)
	}
	return mux
}

// Start runs the server; call it in its own goroutine.
func (ws *WorkerServer) Start() {
	ws.log.Info("Worker server starting...")
	if err := ws.server.Run(ws.Mux()); err != nil {
		if !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, asynq.ErrServerClosed) {
			ws.log.Fatalf("Could not run worker server: %v", err)
		} else {
			ws.log.Info("Worker server stopped.")
		}
	}
}

// Shutdown stops the server gracefully.
func (ws *WorkerServer) Shutdown() {
	ws.log.Info("Shutting down worker server...")
	ws.server.Shutdown()
	ws.log.Info("Worker server shut down complete.")
}
