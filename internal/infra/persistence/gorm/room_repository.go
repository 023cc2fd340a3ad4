package gormpersistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"

	"live-poll/internal/domain"
	"live-poll/internal/repository"
)

// GormRoomRepository is the GORM implementation of repository.RoomRepository.
type GormRoomRepository struct {
	db *gorm.DB
}

// NewGormRoomRepository creates a GormRoomRepository.
func NewGormRoomRepository(db *gorm.DB) *GormRoomRepository {
	if db == nil {
		panic("database connection cannot be nil for GormRoomRepository")
	}
	return &GormRoomRepository{db: db}
}

// FindByID loads a room by its id.
func (r *GormRoomRepository) FindByID(ctx context.Context, id string) (*domain.Room, error) {
	var room domain.Room
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&room).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrRoomNotFound
		}
		return nil, fmt.Errorf("gorm: find room by id %s: %w", id, err)
	}
	return &room, nil
}

// Save creates or updates a room.
func (r *GormRoomRepository) Save(ctx context.Context, room *domain.Room) error {
	if err := r.db.WithContext(ctx).Save(room).Error; err != nil {
		if isDuplicateEntry(err) {
			return repository.ErrDuplicateEntry
		}
		return fmt.Errorf("gorm: save room (id: %s, invite_code: %s): %w", room.ID, room.InviteCode, err)
	}
	return nil
}

// FindAllActive returns the active rooms among roomIDs.
func (r *GormRoomRepository) FindAllActive(ctx context.Context, roomIDs []string) ([]domain.Room, error) {
	var rooms []domain.Room
	if len(roomIDs) == 0 {
		return rooms, nil
	}
	err := r.db.WithContext(ctx).Where("id IN ? AND is_active = ?", roomIDs, true).Find(&rooms).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: find active rooms by ids: %w", err)
	}
	return rooms, nil
}

// IsInviteCodeExists reports whether an invite code is taken.
func (r *GormRoomRepository) IsInviteCodeExists(ctx context.Context, code string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Room{}).Where("invite_code = ?", code).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("gorm: count rooms by invite code '%s': %w", code, err)
	}
	return count > 0, nil
}

// Deactivate flips is_active off. Deactivating an inactive room is a no-op.
func (r *GormRoomRepository) Deactivate(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Model(&domain.Room{}).Where("id = ?", id).Update("is_active", false)
	if res.Error != nil {
		return fmt.Errorf("gorm: deactivate room %s: %w", id, res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}
	// MySQL reports zero affected rows when the value did not change.
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.Room{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return fmt.Errorf("gorm: count room %s: %w", id, err)
	}
	if count == 0 {
		return repository.ErrRoomNotFound
	}
	return nil
}

// isDuplicateEntry detects MySQL unique key violations.
func isDuplicateEntry(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == 1062
}
