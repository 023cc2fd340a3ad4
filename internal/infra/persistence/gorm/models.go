package gormpersistence

import (
	"time"

	"live-poll/internal/domain"
)

// PollModel is one row per (room, poll). EndedAt stays NULL until the
// final record is written.
type PollModel struct {
	ID              uint   `gorm:"primaryKey"`
	RoomID          string `gorm:"size:36;not null;uniqueIndex:idx_room_poll,priority:1"`
	PollID          int64  `gorm:"not null;uniqueIndex:idx_room_poll,priority:2"`
	Question        string `gorm:"size:500;not null"`
	Duration        int    `gorm:"not null"`
	CorrectOptionID int    `gorm:"not null"`
	StartedAt       time.Time
	EndsAt          time.Time
	EndedAt         *time.Time
	TotalVotes      int
	LeaderID        int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (PollModel) TableName() string { return "polls" }

// OptionModel stores an option and, once the poll closed, its final count.
type OptionModel struct {
	ID        uint   `gorm:"primaryKey"`
	RoomID    string `gorm:"size:36;not null;uniqueIndex:idx_room_poll_option,priority:1"`
	PollID    int64  `gorm:"not null;uniqueIndex:idx_room_poll_option,priority:2"`
	OptionID  int    `gorm:"not null;uniqueIndex:idx_room_poll_option,priority:3"`
	Text      string `gorm:"size:200;not null"`
	IsCorrect bool
	Votes     int
}

func (OptionModel) TableName() string { return "poll_options" }

// VoteModel is one accepted vote. The unique index mirrors the one vote per
// participant rule so replays of the same record are harmless.
type VoteModel struct {
	ID              uint   `gorm:"primaryKey"`
	RoomID          string `gorm:"size:36;not null;uniqueIndex:idx_room_poll_participant,priority:1"`
	PollID          int64  `gorm:"not null;uniqueIndex:idx_room_poll_participant,priority:2"`
	ParticipantID   uint   `gorm:"not null;uniqueIndex:idx_room_poll_participant,priority:3"`
	OptionID        int    `gorm:"not null"`
	TimeTakenMs     int64
	ClientTimeTaken float64
	CastAt          time.Time
}

func (VoteModel) TableName() string { return "poll_votes" }

// Models lists every table the poll history needs, for migrations.
func Models() []any {
	return []any{&domain.Room{}, &PollModel{}, &OptionModel{}, &VoteModel{}}
}

func newPollModel(p domain.Poll) PollModel {
	return PollModel{
		RoomID:          p.RoomID,
		PollID:          p.ID,
		Question:        p.Question,
		Duration:        p.Duration,
		CorrectOptionID: p.CorrectOptionID,
		StartedAt:       p.StartedAt,
		EndsAt:          p.EndsAt,
	}
}

func newOptionModels(p domain.Poll, tally *domain.Tally) []OptionModel {
	out := make([]OptionModel, len(p.Options))
	for i, o := range p.Options {
		out[i] = OptionModel{
			RoomID:    p.RoomID,
			PollID:    p.ID,
			OptionID:  o.ID,
			Text:      o.Text,
			IsCorrect: o.IsCorrect,
		}
		if tally != nil {
			out[i].Votes = tally.CountFor(o.ID)
		}
	}
	return out
}

func newVoteModels(roomID string, votes []domain.Vote) []VoteModel {
	out := make([]VoteModel, len(votes))
	for i, v := range votes {
		out[i] = VoteModel{
			RoomID:          roomID,
			PollID:          v.PollID,
			ParticipantID:   v.ParticipantID,
			OptionID:        v.OptionID,
			TimeTakenMs:     v.TimeTaken.Milliseconds(),
			ClientTimeTaken: v.ClientTimeTaken,
			CastAt:          v.CastAt,
		}
	}
	return out
}

// toRecord rebuilds the immutable record of a closed poll.
func toRecord(pm PollModel, options []OptionModel, votes []VoteModel) *domain.PollRecord {
	rec := &domain.PollRecord{
		Poll: domain.Poll{
			ID:              pm.PollID,
			RoomID:          pm.RoomID,
			Question:        pm.Question,
			Options:         make([]domain.Option, len(options)),
			Duration:        pm.Duration,
			CorrectOptionID: pm.CorrectOptionID,
			StartedAt:       pm.StartedAt,
			EndsAt:          pm.EndsAt,
		},
		Tally: domain.Tally{
			Counts:   make([]domain.OptionCount, len(options)),
			Total:    pm.TotalVotes,
			LeaderID: pm.LeaderID,
		},
		Votes: make([]domain.Vote, len(votes)),
	}
	if pm.EndedAt != nil {
		rec.EndedAt = *pm.EndedAt
	}
	for i, o := range options {
		rec.Poll.Options[i] = domain.Option{ID: o.OptionID, Text: o.Text, IsCorrect: o.IsCorrect}
		rec.Tally.Counts[i] = domain.OptionCount{OptionID: o.OptionID, Count: o.Votes}
	}
	for i, v := range votes {
		rec.Votes[i] = domain.Vote{
			PollID:          v.PollID,
			ParticipantID:   v.ParticipantID,
			OptionID:        v.OptionID,
			TimeTaken:       time.Duration(v.TimeTakenMs) * time.Millisecond,
			ClientTimeTaken: v.ClientTimeTaken,
			CastAt:          v.CastAt,
		}
	}
	return rec
}
