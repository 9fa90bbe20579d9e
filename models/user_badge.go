package models

import "time"

// AwardSource records which path granted a badge.
type AwardSource string

const (
	SourceProgress   AwardSource = "progress"
	SourceAdmin      AwardSource = "admin"
	SourceRule       AwardSource = "rule"
	SourceCollection AwardSource = "collection"
)

// UserBadge: authoritative ownership. The unique (user_id, badge_id) index
// is what makes awarding idempotent under concurrent callers.
type UserBadge struct {
	ID        string      `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID    string      `gorm:"uniqueIndex:idx_user_badge;type:varchar(128);not null" json:"user_id"`
	BadgeID   string      `gorm:"uniqueIndex:idx_user_badge;index;type:varchar(128);not null" json:"badge_id"`
	EarnedAt  time.Time   `gorm:"not null" json:"earned_at"`
	Notified  bool        `gorm:"not null" json:"notified"`
	Source    AwardSource `gorm:"type:varchar(16)" json:"source"`
	CreatedAt time.Time   `gorm:"autoCreateTime" json:"created_at"`
}

// OwnedBadge joins a UserBadge with its catalog definition for display.
type OwnedBadge struct {
	Badge    BadgeDefinition `json:"badge"`
	EarnedAt time.Time       `json:"earned_at"`
	Notified bool            `json:"notified"`
}
