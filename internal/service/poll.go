package service

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"live-poll/internal/domain"
	"live-poll/internal/repository"
	"live-poll/internal/session"
)

// VoteResult is what an accepted vote returns to its caller.
type VoteResult struct {
	Vote  domain.Vote  `json:"vote"`
	Tally domain.Tally `json:"tally"`
}

// PollService routes poll operations to the room's in-memory session.
type PollService struct {
	roomRepo repository.RoomRepository
	pollRepo repository.PollRepository
	registry *session.Registry
}

// NewPollService creates a PollService.
func NewPollService(roomRepo repository.RoomRepository, pollRepo repository.PollRepository, registry *session.Registry) *PollService {
	if roomRepo == nil {
		panic("RoomRepository cannot be nil for PollService")
	}
	if pollRepo == nil {
		panic("PollRepository cannot be nil for PollService")
	}
	if registry == nil {
		panic("session Registry cannot be nil for PollService")
	}
	return &PollService{roomRepo: roomRepo, pollRepo: pollRepo, registry: registry}
}

// Session returns the live session of an active room, creating it on first
// use with poll numbering continued from stored history.
func (s *PollService) Session(ctx context.Context, roomID string) (*session.RoomSession, error) {
	if sess, ok := s.registry.Get(roomID); ok {
		return sess, nil
	}
	room, err := s.activeRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return s.sessionFor(ctx, room)
}

func (s *PollService) sessionFor(ctx context.Context, room *domain.Room) (*session.RoomSession, error) {
	if sess, ok := s.registry.Get(room.ID); ok {
		return sess, nil
	}
	lastID, err := s.pollRepo.LastPollID(ctx, room.ID)
	if err != nil {
		logrus.WithField("room_id", room.ID).WithError(err).Error("Failed to load last poll id")
		return nil, ErrInternalServer
	}
	return s.registry.GetOrCreate(room.ID, session.WithLastPollID(lastID)), nil
}

func (s *PollService) activeRoom(ctx context.Context, roomID string) (*domain.Room, error) {
	room, err := s.roomRepo.FindByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return nil, ErrRoomNotFound
		}
		logrus.WithField("room_id", roomID).WithError(err).Error("Failed to load room")
		return nil, ErrInternalServer
	}
	if !room.IsActive {
		return nil, ErrRoomGone
	}
	return room, nil
}

// StartPoll opens a poll in roomID on behalf of its host.
func (s *PollService) StartPoll(ctx context.Context, userID uint, roomID string, spec session.PollSpec) (domain.Poll, error) {
	room, err := s.activeRoom(ctx, roomID)
	if err != nil {
		return domain.Poll{}, err
	}
	if !room.IsHost(userID) {
		return domain.Poll{}, ErrNotHost
	}
	sess, err := s.sessionFor(ctx, room)
	if err != nil {
		return domain.Poll{}, err
	}
	return sess.StartPoll(spec)
}

// SubmitVote records userID's vote. ErrDuplicate is returned as is so the
// edge can acknowledge it.
func (s *PollService) SubmitVote(ctx context.Context, userID uint, roomID string, pollID int64, optionID int, clientTimeTaken float64) (*VoteResult, error) {
	sess, err := s.Session(ctx, roomID)
	if err != nil {
		return nil, err
	}
	vote, tally, err := sess.SubmitVote(pollID, userID, optionID, clientTimeTaken)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"room_id":        roomID,
			"poll_id":        pollID,
			"participant_id": userID,
		}).WithError(err).Debug("Vote rejected")
		return nil, err
	}
	return &VoteResult{Vote: vote, Tally: tally}, nil
}

// CurrentState returns the room's state snapshot.
func (s *PollService) CurrentState(ctx context.Context, roomID string) (session.State, error) {
	sess, err := s.Session(ctx, roomID)
	if err != nil {
		return session.State{}, err
	}
	return sess.CurrentState(), nil
}
