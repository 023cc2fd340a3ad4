package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"live-poll/internal/domain"
	httpHandler "live-poll/internal/handler/http"
	"live-poll/internal/hub"
	"live-poll/internal/repository"
	"live-poll/internal/repository/mocks"
	"live-poll/internal/service"
	"live-poll/internal/session"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	router    *gin.Engine
	roomRepo  *mocks.RoomRepository
	pollRepo  *mocks.PollRepository
	stateRepo *mocks.StateRepository
	clock     *fakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	f := &fixture{
		roomRepo:  new(mocks.RoomRepository),
		pollRepo:  new(mocks.PollRepository),
		stateRepo: new(mocks.StateRepository),
		clock:     &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)},
	}
	reg := session.NewRegistry(f.clock, hub.NewHub(nil), nil, nil)
	roomService := service.NewRoomService(f.roomRepo, reg, nil)
	pollService := service.NewPollService(f.roomRepo, f.pollRepo, reg)
	resultService := service.NewResultService(pollService, f.pollRepo, f.stateRepo, time.Hour)
	rooms := httpHandler.NewRoomHandler(roomService, pollService)
	polls := httpHandler.NewPollHandler(pollService, resultService)

	r := gin.New()
	api := r.Group("/api", func(c *gin.Context) {
		// stands in for the JWT middleware: X-User carries the caller id
		var id uint
		_ = json.Unmarshal([]byte(c.GetHeader("X-User")), &id)
		c.Set("user_id", id)
		c.Next()
	})
	api.POST("/rooms", rooms.CreateRoom)
	api.GET("/rooms/:roomId", rooms.GetRoom)
	api.DELETE("/rooms/:roomId", rooms.DeactivateRoom)
	api.POST("/rooms/:roomId/polls", polls.StartPoll)
	api.POST("/rooms/:roomId/polls/:pollId/votes", polls.SubmitVote)
	api.GET("/rooms/:roomId/state", polls.State)
	api.GET("/rooms/:roomId/polls/:pollId/results", polls.Results)
	f.router = r

	f.roomRepo.On("FindByID", mock.Anything, "room-1").
		Return(&domain.Room{ID: "room-1", Name: "Quiz", HostID: 5, IsActive: true}, nil).Maybe()
	f.roomRepo.On("FindByID", mock.Anything, "missing").Return(nil, repository.ErrRoomNotFound).Maybe()
	f.pollRepo.On("LastPollID", mock.Anything, "room-1").Return(int64(0), nil).Maybe()
	return f
}

func (f *fixture) do(method, path, user string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User", user)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func startBody() gin.H {
	return gin.H{"question": "Which letter?", "options": []string{"A", "B", "C"}, "duration": 10, "correct_option_id": 2}
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestPollEndpoints_VoteFlow(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodPost, "/api/rooms/room-1/polls", "5", startBody())
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.EqualValues(t, 1, decode(t, w)["id"])

	w = f.do(http.MethodPost, "/api/rooms/room-1/polls", "5", startBody())
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "conflict", decode(t, w)["code"])

	f.clock.Advance(2 * time.Second)
	w = f.do(http.MethodPost, "/api/rooms/room-1/polls/1/votes", "11", gin.H{"option_id": 2, "time_taken": 0.1})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "accepted", decode(t, w)["status"])

	w = f.do(http.MethodPost, "/api/rooms/room-1/polls/1/votes", "11", gin.H{"option_id": 1})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "already_voted", decode(t, w)["status"])

	w = f.do(http.MethodPost, "/api/rooms/room-1/polls/1/votes", "12", gin.H{"option_id": 7})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "option_id", decode(t, w)["field"])

	w = f.do(http.MethodGet, "/api/rooms/room-1/state", "12", nil)
	require.Equal(t, http.StatusOK, w.Code)
	state := decode(t, w)
	assert.Equal(t, "voting", state["status"])
	assert.InDelta(t, 8, state["remaining_seconds"], 0.001)

	f.clock.Advance(8 * time.Second)
	w = f.do(http.MethodPost, "/api/rooms/room-1/polls/1/votes", "12", gin.H{"option_id": 1})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "stale", decode(t, w)["code"])

	w = f.do(http.MethodGet, "/api/rooms/room-1/polls/1/results", "12", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decode(t, w)
	assert.EqualValues(t, 1, res["total_votes"])
	assert.EqualValues(t, 2, res["correct_option_id"])
}

func TestPollEndpoints_Rejections(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodPost, "/api/rooms/room-1/polls", "6", startBody())
	assert.Equal(t, http.StatusForbidden, w.Code)

	body := startBody()
	body["duration"] = 301
	w = f.do(http.MethodPost, "/api/rooms/room-1/polls", "5", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "duration", decode(t, w)["field"])

	w = f.do(http.MethodPost, "/api/rooms/missing/polls/1/votes", "11", gin.H{"option_id": 1})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(http.MethodPost, "/api/rooms/room-1/polls/abc/votes", "11", gin.H{"option_id": 1})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	f.stateRepo.On("GetResultCache", mock.Anything, "room-1", int64(3)).Return(nil, repository.ErrCacheMiss).Once()
	f.pollRepo.On("FindRecord", mock.Anything, "room-1", int64(3)).Return(nil, repository.ErrPollNotFound).Once()
	w = f.do(http.MethodGet, "/api/rooms/room-1/polls/3/results", "11", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRoomEndpoints(t *testing.T) {
	f := newFixture(t)

	f.roomRepo.On("IsInviteCodeExists", mock.Anything, mock.Anything).Return(false, nil).Once()
	f.roomRepo.On("Save", mock.Anything, mock.AnythingOfType("*domain.Room")).Return(nil).Once()
	w := f.do(http.MethodPost, "/api/rooms", "5", gin.H{"name": "Quiz"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	room := decode(t, w)["room"].(map[string]any)
	assert.Equal(t, "Quiz", room["name"])
	assert.EqualValues(t, 5, room["host_id"])

	w = f.do(http.MethodPost, "/api/rooms", "5", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(http.MethodGet, "/api/rooms/room-1", "7", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "idle", decode(t, w)["state"].(map[string]any)["status"])

	w = f.do(http.MethodDelete, "/api/rooms/room-1", "7", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	f.roomRepo.On("Deactivate", mock.Anything, "room-1").Return(nil).Once()
	w = f.do(http.MethodDelete, "/api/rooms/room-1", "5", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestHandleServiceError_RoomGone(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	httpHandler.HandleServiceError(c, service.ErrRoomGone)
	assert.Equal(t, http.StatusGone, w.Code)

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	httpHandler.HandleServiceError(c, context.DeadlineExceeded)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
