package gormpersistence

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"live-poll/internal/domain"
	"live-poll/internal/repository"
)

const voteBatchSize = 200

// GormPollRepository is the GORM implementation of repository.PollRepository.
type GormPollRepository struct {
	db *gorm.DB
}

// NewGormPollRepository creates a GormPollRepository.
func NewGormPollRepository(db *gorm.DB) *GormPollRepository {
	if db == nil {
		panic("database connection cannot be nil for GormPollRepository")
	}
	return &GormPollRepository{db: db}
}

// SavePollStarted inserts the poll and its options, ignoring rows that already exist.
func (r *GormPollRepository) SavePollStarted(ctx context.Context, poll domain.Poll) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		pm := newPollModel(poll)
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&pm).Error; err != nil {
			return fmt.Errorf("gorm: save poll %d of room %s: %w", poll.ID, poll.RoomID, err)
		}
		options := newOptionModels(poll, nil)
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&options).Error; err != nil {
			return fmt.Errorf("gorm: save options of poll %d: %w", poll.ID, err)
		}
		return nil
	})
}

// SavePollRecord upserts the poll with its final counts and inserts the votes.
func (r *GormPollRepository) SavePollRecord(ctx context.Context, record domain.PollRecord) error {
	poll := record.Poll
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		pm := newPollModel(poll)
		endedAt := record.EndedAt
		pm.EndedAt = &endedAt
		pm.TotalVotes = record.Tally.Total
		pm.LeaderID = record.Tally.LeaderID
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "room_id"}, {Name: "poll_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"ended_at", "total_votes", "leader_id", "updated_at"}),
		}).Create(&pm).Error
		if err != nil {
			return fmt.Errorf("gorm: save record of poll %d (room %s): %w", poll.ID, poll.RoomID, err)
		}

		options := newOptionModels(poll, &record.Tally)
		err = tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "room_id"}, {Name: "poll_id"}, {Name: "option_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"votes"}),
		}).Create(&options).Error
		if err != nil {
			return fmt.Errorf("gorm: save option counts of poll %d: %w", poll.ID, err)
		}

		if len(record.Votes) == 0 {
			return nil
		}
		votes := newVoteModels(poll.RoomID, record.Votes)
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(&votes, voteBatchSize).Error; err != nil {
			return fmt.Errorf("gorm: save %d votes of poll %d: %w", len(votes), poll.ID, err)
		}
		return nil
	})
}

// FindRecord loads a closed poll with its options and votes.
func (r *GormPollRepository) FindRecord(ctx context.Context, roomID string, pollID int64) (*domain.PollRecord, error) {
	db := r.db.WithContext(ctx)

	var pm PollModel
	err := db.Where("room_id = ? AND poll_id = ? AND ended_at IS NOT NULL", roomID, pollID).First(&pm).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrPollNotFound
		}
		return nil, fmt.Errorf("gorm: find poll %d of room %s: %w", pollID, roomID, err)
	}

	var options []OptionModel
	if err := db.Where("room_id = ? AND poll_id = ?", roomID, pollID).Order("option_id ASC").Find(&options).Error; err != nil {
		return nil, fmt.Errorf("gorm: find options of poll %d: %w", pollID, err)
	}
	var votes []VoteModel
	if err := db.Where("room_id = ? AND poll_id = ?", roomID, pollID).Order("cast_at ASC, participant_id ASC").Find(&votes).Error; err != nil {
		return nil, fmt.Errorf("gorm: find votes of poll %d: %w", pollID, err)
	}
	return toRecord(pm, options, votes), nil
}

// LastPollID returns the highest stored poll id of a room.
func (r *GormPollRepository) LastPollID(ctx context.Context, roomID string) (int64, error) {
	var id int64
	err := r.db.WithContext(ctx).Model(&PollModel{}).
		Where("room_id = ?", roomID).
		Select("COALESCE(MAX(poll_id), 0)").
		Scan(&id).Error
	if err != nil {
		return 0, fmt.Errorf("gorm: last poll id of room %s: %w", roomID, err)
	}
	return id, nil
}
