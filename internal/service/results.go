package service

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"live-poll/internal/domain"
	"live-poll/internal/repository"
	"live-poll/internal/session"
)

// DefaultResultCacheTTL bounds how long a final result stays in Redis.
const DefaultResultCacheTTL = 24 * time.Hour

// OptionResult is one option's share of a closed poll.
type OptionResult struct {
	ID         int     `json:"id"`
	Text       string  `json:"text"`
	IsCorrect  bool    `json:"is_correct"`
	Votes      int     `json:"votes"`
	Percentage float64 `json:"percentage"`
}

// PollResult is the final outcome of a closed poll.
type PollResult struct {
	RoomID          string         `json:"room_id"`
	PollID          int64          `json:"poll_id"`
	Question        string         `json:"question"`
	Options         []OptionResult `json:"options"`
	TotalVotes      int            `json:"total_votes"`
	LeaderID        int            `json:"leader_id"`
	CorrectOptionID int            `json:"correct_option_id"`
	EndedAt         time.Time      `json:"ended_at"`
}

// ResultService serves final poll results: the session's last result
// first, then the Redis cache, then the database, warming the cache on a
// database hit.
type ResultService struct {
	polls     *PollService
	pollRepo  repository.PollRepository
	stateRepo repository.StateRepository
	cacheTTL  time.Duration
}

// NewResultService creates a ResultService. cacheTTL <= 0 uses DefaultResultCacheTTL.
func NewResultService(polls *PollService, pollRepo repository.PollRepository, stateRepo repository.StateRepository, cacheTTL time.Duration) *ResultService {
	if polls == nil || pollRepo == nil || stateRepo == nil {
		panic("PollService, PollRepository and StateRepository are required for ResultService")
	}
	if cacheTTL <= 0 {
		cacheTTL = DefaultResultCacheTTL
	}
	return &ResultService{polls: polls, pollRepo: pollRepo, stateRepo: stateRepo, cacheTTL: cacheTTL}
}

// Results returns the final result of pollID in roomID.
func (s *ResultService) Results(ctx context.Context, roomID string, pollID int64) (*PollResult, error) {
	logCtx := logrus.WithFields(logrus.Fields{"room_id": roomID, "poll_id": pollID, "operation": "Results"})

	sess, err := s.polls.Session(ctx, roomID)
	if err != nil && !errors.Is(err, session.ErrRoomGone) {
		return nil, err
	}
	if sess != nil {
		sess.TickNow()
		if rec, ok := sess.RecentResult(pollID); ok {
			return newPollResult(rec), nil
		}
		if st := sess.CurrentState(); st.Status == session.StatusVoting && st.Poll != nil && st.Poll.ID == pollID {
			return nil, ErrPollInProgress
		}
	}

	cached, err := s.stateRepo.GetResultCache(ctx, roomID, pollID)
	if err == nil && cached != nil {
		logCtx.Debug("Result cache hit")
		return newPollResult(*cached), nil
	}
	if err != nil && !errors.Is(err, repository.ErrCacheMiss) {
		logCtx.WithError(err).Warn("Failed to read result cache")
	}

	rec, err := s.pollRepo.FindRecord(ctx, roomID, pollID)
	if err != nil {
		if errors.Is(err, repository.ErrPollNotFound) {
			return nil, ErrResultNotFound
		}
		logCtx.WithError(err).Error("Failed to load poll record from database")
		return nil, ErrInternalServer
	}

	if err := s.stateRepo.SetResultCache(ctx, rec, s.cacheTTL); err != nil {
		logCtx.WithError(err).Warn("Failed to warm result cache after DB load")
	}
	return newPollResult(*rec), nil
}

func newPollResult(rec domain.PollRecord) *PollResult {
	total := rec.Tally.Total
	return &PollResult{
		RoomID:   rec.Poll.RoomID,
		PollID:   rec.Poll.ID,
		Question: rec.Poll.Question,
		Options: lo.Map(rec.Poll.Options, func(o domain.Option, _ int) OptionResult {
			votes := rec.Tally.CountFor(o.ID)
			return OptionResult{
				ID:         o.ID,
				Text:       o.Text,
				IsCorrect:  o.IsCorrect,
				Votes:      votes,
				Percentage: percentage(votes, total),
			}
		}),
		TotalVotes:      total,
		LeaderID:        rec.Tally.LeaderID,
		CorrectOptionID: rec.Poll.CorrectOptionID,
		EndedAt:         rec.EndedAt,
	}
}

// percentage rounds to two decimals; 0 when nobody voted.
func percentage(votes, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(votes)/float64(total)*10000) / 100
}
