package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"live-poll/internal/domain"
	"live-poll/internal/repository"
	"live-poll/internal/repository/mocks"
	"live-poll/internal/service"
	"live-poll/internal/session"
)

func TestRoomService_CreateRoom_Success(t *testing.T) {
	mockRoomRepo := new(mocks.RoomRepository)
	reg, _ := newRegistry()
	roomService := service.NewRoomService(mockRoomRepo, reg, nil)
	ctx := context.Background()

	mockRoomRepo.On("IsInviteCodeExists", ctx, mock.AnythingOfType("string")).Return(true, nil).Once()
	mockRoomRepo.On("IsInviteCodeExists", ctx, mock.AnythingOfType("string")).Return(false, nil).Once()
	mockRoomRepo.On("Save", ctx, mock.MatchedBy(func(room *domain.Room) bool {
		_, err := uuid.Parse(room.ID)
		return err == nil && room.Name == "Quiz night" && room.HostID == 5 && room.IsActive && len(room.InviteCode) == 6
	})).Return(nil).Once()

	room, err := roomService.CreateRoom(ctx, 5, "  Quiz night ")

	require.NoError(t, err)
	assert.Equal(t, uint(5), room.HostID)
	assert.Regexp(t, "^[0-9A-Z]{6}$", room.InviteCode)
	mockRoomRepo.AssertExpectations(t)
}

func TestRoomService_CreateRoom_InvalidName(t *testing.T) {
	mockRoomRepo := new(mocks.RoomRepository)
	reg, _ := newRegistry()
	roomService := service.NewRoomService(mockRoomRepo, reg, nil)

	_, err := roomService.CreateRoom(context.Background(), 5, "   ")
	assert.ErrorIs(t, err, service.ErrInvalidInput)
	mockRoomRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestRoomService_CreateRoom_SaveFails(t *testing.T) {
	mockRoomRepo := new(mocks.RoomRepository)
	reg, _ := newRegistry()
	roomService := service.NewRoomService(mockRoomRepo, reg, nil)
	ctx := context.Background()

	mockRoomRepo.On("IsInviteCodeExists", ctx, mock.Anything).Return(false, nil).Once()
	mockRoomRepo.On("Save", ctx, mock.Anything).Return(repository.ErrDuplicateEntry).Once()

	_, err := roomService.CreateRoom(ctx, 5, "Quiz")
	assert.ErrorIs(t, err, service.ErrInternalServer)
	mockRoomRepo.AssertExpectations(t)
}

func TestRoomService_FindRoomByID_NotFound(t *testing.T) {
	mockRoomRepo := new(mocks.RoomRepository)
	reg, _ := newRegistry()
	roomService := service.NewRoomService(mockRoomRepo, reg, nil)
	ctx := context.Background()

	mockRoomRepo.On("FindByID", ctx, "missing").Return(nil, repository.ErrRoomNotFound).Once()
	_, err := roomService.FindRoomByID(ctx, "missing")
	assert.ErrorIs(t, err, service.ErrRoomNotFound)

	mockRoomRepo.On("FindByID", ctx, "broken").Return(nil, errors.New("db down")).Once()
	_, err = roomService.FindRoomByID(ctx, "broken")
	assert.ErrorIs(t, err, service.ErrInternalServer)
}

func TestRoomService_DeactivateRoom(t *testing.T) {
	mockRoomRepo := new(mocks.RoomRepository)
	events := new(mockRoomEvents)
	reg, _ := newRegistry()
	roomService := service.NewRoomService(mockRoomRepo, reg, events)
	ctx := context.Background()
	room := &domain.Room{ID: "room-1", HostID: 5, IsActive: true}

	sess := reg.GetOrCreate("room-1")
	_, err := sess.StartPoll(quizSpec())
	require.NoError(t, err)

	mockRoomRepo.On("FindByID", ctx, "room-1").Return(room, nil).Twice()
	err = roomService.DeactivateRoom(ctx, 6, "room-1")
	assert.ErrorIs(t, err, service.ErrNotHost)
	assert.False(t, sess.Gone())

	mockRoomRepo.On("Deactivate", ctx, "room-1").Return(nil).Once()
	events.On("RoomClosed", ctx, "room-1").Return(nil).Once()
	require.NoError(t, roomService.DeactivateRoom(ctx, 5, "room-1"))

	assert.True(t, sess.Gone())
	_, _, err = sess.SubmitVote(1, 9, 1, 0)
	assert.ErrorIs(t, err, session.ErrRoomGone)
	_, ok := reg.Get("room-1")
	assert.False(t, ok)
	mockRoomRepo.AssertExpectations(t)
	events.AssertExpectations(t)
}

func TestRoomService_EvictRoomWithoutSession(t *testing.T) {
	events := new(mockRoomEvents)
	reg, _ := newRegistry()
	roomService := service.NewRoomService(new(mocks.RoomRepository), reg, events)

	assert.False(t, roomService.EvictRoom(context.Background(), "nobody-here"))
	events.AssertNotCalled(t, "RoomClosed", mock.Anything, mock.Anything)
}
