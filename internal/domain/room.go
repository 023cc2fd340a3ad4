package domain

import "time"

// Room is a named polling session hosted by one user.
type Room struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	Name       string    `gorm:"size:191;not null" json:"name"`
	HostID     uint      `gorm:"index;not null" json:"host_id"`
	InviteCode string    `gorm:"uniqueIndex;size:16;not null" json:"invite_code"`
	IsActive   bool      `gorm:"index;not null;default:true" json:"is_active"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsHost reports whether userID hosts the room.
func (r *Room) IsHost(userID uint) bool {
	return r != nil && r.HostID == userID
}
