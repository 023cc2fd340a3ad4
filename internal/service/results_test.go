package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"live-poll/internal/domain"
	"live-poll/internal/repository"
	"live-poll/internal/repository/mocks"
	"live-poll/internal/service"
)

type resultsFixture struct {
	roomRepo  *mocks.RoomRepository
	pollRepo  *mocks.PollRepository
	stateRepo *mocks.StateRepository
	polls     *service.PollService
	results   *service.ResultService
	clock     *fakeClock
}

func newResultsFixture() *resultsFixture {
	f := &resultsFixture{
		roomRepo:  new(mocks.RoomRepository),
		pollRepo:  new(mocks.PollRepository),
		stateRepo: new(mocks.StateRepository),
	}
	reg, clock := newRegistry()
	f.clock = clock
	f.polls = service.NewPollService(f.roomRepo, f.pollRepo, reg)
	f.results = service.NewResultService(f.polls, f.pollRepo, f.stateRepo, time.Hour)
	return f
}

func storedRecord() *domain.PollRecord {
	return &domain.PollRecord{
		Poll: domain.Poll{
			ID: 4, RoomID: "room-1", Question: "Q",
			Options: []domain.Option{
				{ID: 1, Text: "A"},
				{ID: 2, Text: "B", IsCorrect: true},
				{ID: 3, Text: "C"},
			},
			CorrectOptionID: 2,
		},
		Tally: domain.Tally{
			Counts:   []domain.OptionCount{{OptionID: 1, Count: 1}, {OptionID: 2, Count: 2}, {OptionID: 3}},
			Total:    3,
			LeaderID: 2,
		},
		EndedAt: t0,
	}
}

func TestResultService_FromLiveSession(t *testing.T) {
	f := newResultsFixture()
	ctx := context.Background()
	f.roomRepo.On("FindByID", ctx, "room-1").Return(activeRoom(), nil)
	f.pollRepo.On("LastPollID", ctx, "room-1").Return(int64(0), nil).Once()

	poll, err := f.polls.StartPoll(ctx, 5, "room-1", quizSpec())
	require.NoError(t, err)
	_, err = f.polls.SubmitVote(ctx, 11, "room-1", poll.ID, 2, 0)
	require.NoError(t, err)

	_, err = f.results.Results(ctx, "room-1", poll.ID)
	assert.ErrorIs(t, err, service.ErrPollInProgress)

	f.clock.Advance(10 * time.Second)
	res, err := f.results.Results(ctx, "room-1", poll.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, res.TotalVotes)
	assert.Equal(t, 2, res.CorrectOptionID)
	assert.Equal(t, 100.0, res.Options[1].Percentage)
	f.stateRepo.AssertNotCalled(t, "GetResultCache", mock.Anything, mock.Anything, mock.Anything)
}

func TestResultService_CacheHit(t *testing.T) {
	f := newResultsFixture()
	ctx := context.Background()
	f.roomRepo.On("FindByID", ctx, "room-1").Return(activeRoom(), nil)
	f.pollRepo.On("LastPollID", ctx, "room-1").Return(int64(4), nil).Once()
	f.stateRepo.On("GetResultCache", ctx, "room-1", int64(4)).Return(storedRecord(), nil).Once()

	res, err := f.results.Results(ctx, "room-1", 4)
	require.NoError(t, err)
	assert.Equal(t, 3, res.TotalVotes)
	assert.Equal(t, []float64{33.33, 66.67, 0}, []float64{res.Options[0].Percentage, res.Options[1].Percentage, res.Options[2].Percentage})
	f.pollRepo.AssertNotCalled(t, "FindRecord", mock.Anything, mock.Anything, mock.Anything)
}

func TestResultService_DatabaseHitWarmsCache(t *testing.T) {
	f := newResultsFixture()
	ctx := context.Background()
	rec := storedRecord()
	f.roomRepo.On("FindByID", ctx, "room-1").Return(activeRoom(), nil)
	f.pollRepo.On("LastPollID", ctx, "room-1").Return(int64(4), nil).Once()
	f.stateRepo.On("GetResultCache", ctx, "room-1", int64(4)).Return(nil, repository.ErrCacheMiss).Once()
	f.pollRepo.On("FindRecord", ctx, "room-1", int64(4)).Return(rec, nil).Once()
	f.stateRepo.On("SetResultCache", ctx, rec, time.Hour).Return(errors.New("redis down")).Once()

	res, err := f.results.Results(ctx, "room-1", 4)
	require.NoError(t, err, "a failed cache write must not fail the read")
	assert.Equal(t, 2, res.LeaderID)
	f.pollRepo.AssertExpectations(t)
	f.stateRepo.AssertExpectations(t)
}

func TestResultService_NotFound(t *testing.T) {
	f := newResultsFixture()
	ctx := context.Background()
	f.roomRepo.On("FindByID", ctx, "room-1").Return(activeRoom(), nil)
	f.pollRepo.On("LastPollID", ctx, "room-1").Return(int64(0), nil).Once()
	f.stateRepo.On("GetResultCache", ctx, "room-1", int64(9)).Return(nil, repository.ErrCacheMiss).Once()
	f.pollRepo.On("FindRecord", ctx, "room-1", int64(9)).Return(nil, repository.ErrPollNotFound).Once()

	_, err := f.results.Results(ctx, "room-1", 9)
	assert.ErrorIs(t, err, service.ErrResultNotFound)
}

func TestResultService_ClosedRoomStillServesHistory(t *testing.T) {
	f := newResultsFixture()
	ctx := context.Background()
	closed := activeRoom()
	closed.IsActive = false
	f.roomRepo.On("FindByID", ctx, "room-1").Return(closed, nil)
	f.stateRepo.On("GetResultCache", ctx, "room-1", int64(4)).Return(storedRecord(), nil).Once()

	res, err := f.results.Results(ctx, "room-1", 4)
	require.NoError(t, err)
	assert.Equal(t, int64(4), res.PollID)
}

func TestResultService_PreviousPollServedFromMemoryBeforeWorkerRuns(t *testing.T) {
	f := newResultsFixture()
	ctx := context.Background()
	f.roomRepo.On("FindByID", ctx, "room-1").Return(activeRoom(), nil)
	f.pollRepo.On("LastPollID", ctx, "room-1").Return(int64(0), nil).Once()

	first, err := f.polls.StartPoll(ctx, 5, "room-1", quizSpec())
	require.NoError(t, err)
	_, err = f.polls.SubmitVote(ctx, 11, "room-1", first.ID, 1, 0)
	require.NoError(t, err)
	f.clock.Advance(10 * time.Second)

	second, err := f.polls.StartPoll(ctx, 5, "room-1", quizSpec())
	require.NoError(t, err)
	require.NotEqual(t, first.ID, second.ID)

	// no cache or DB expectations: the lookup must not leave the session
	res, err := f.results.Results(ctx, "room-1", first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, res.PollID)
	assert.Equal(t, 1, res.TotalVotes)
	f.stateRepo.AssertNotCalled(t, "GetResultCache", mock.Anything, mock.Anything, mock.Anything)
	f.pollRepo.AssertNotCalled(t, "FindRecord", mock.Anything, mock.Anything, mock.Anything)
}
