package models

import "time"

// BadgeNotification is an outbox row for a badge-earned event. The SSE
// stream delivers rows newer than the client's cursor.
type BadgeNotification struct {
	ID          string        `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID      string        `gorm:"index;type:varchar(128);not null" json:"user_id"`
	BadgeID     string        `gorm:"type:varchar(128);not null" json:"badge_id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Icon        string        `json:"icon"`
	Category    BadgeCategory `gorm:"type:varchar(32)" json:"category"`
	Rarity      Rarity        `gorm:"type:varchar(16)" json:"rarity"`
	EarnedAt    time.Time     `json:"earned_at"`
	CreatedAt   time.Time     `gorm:"autoCreateTime;index" json:"created_at"`
}

// AllModels lists every table for AutoMigrate.
func AllModels() []interface{} {
	return []interface{}{
		&BadgeDefinition{},
		&UserBadge{},
		&ProgressValue{},
		&Collection{},
		&DynamicRule{},
		&RuleState{},
		&UserStat{},
		&UserStatWindow{},
		&CheckInStreak{},
		&UserProgress{},
		&Reward{},
		&BadgeNotification{},
	}
}
