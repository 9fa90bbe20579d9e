package models

import (
	"time"

	"gorm.io/gorm"
)

// UserProgress is the local reward ledger row for a member: XP, level, rank
// and currency balance (denormalized for performance)
type UserProgress struct {
	ID             string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	ExternalUserID string `gorm:"uniqueIndex;type:varchar(128);not null" json:"external_user_id"` // chat-platform member id

	// Core progression
	TotalXP  int64 `json:"total_xp" gorm:"not null"`
	Level    int   `json:"level" gorm:"not null"`
	Rank     int   `json:"rank" gorm:"not null"` // Bronze(1)→Silver(2)→Gold(3)→Platinum(4)→Diamond(5)
	Currency int64 `json:"currency" gorm:"not null"`
	Title    string `json:"title,omitempty"`

	// Milestones
	LastLevelUpAt *time.Time `json:"last_level_up_at,omitempty"`
	LastRankUpAt  *time.Time `json:"last_rank_up_at,omitempty"`

	Timestamps
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}
