package models

import "time"

// UserStat is the all-time snapshot of one stat for one user. It is the
// source of the dynamic-rule context and of the eligible population.
type UserStat struct {
	UserID    string    `gorm:"primaryKey;type:varchar(128)" json:"user_id"`
	StatType  StatType  `gorm:"primaryKey;type:varchar(64)" json:"stat_type"`
	Value     float64   `gorm:"not null" json:"value"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// UserStatWindow aggregates one stat within a daily/weekly/monthly period.
type UserStatWindow struct {
	UserID      string    `gorm:"primaryKey;type:varchar(128)" json:"user_id"`
	StatType    StatType  `gorm:"primaryKey;type:varchar(64)" json:"stat_type"`
	Timeframe   Timeframe `gorm:"primaryKey;type:varchar(16)" json:"timeframe"`
	PeriodStart time.Time `gorm:"primaryKey" json:"period_start"`
	Value       float64   `gorm:"not null" json:"value"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// CheckInStreak tracks daily check-in continuity.
type CheckInStreak struct {
	UserID      string    `gorm:"primaryKey;type:varchar(128)" json:"user_id"`
	LastCheckIn time.Time `gorm:"index" json:"last_check_in"` // UTC day
	Current     int       `gorm:"not null" json:"current"`
	Longest     int       `gorm:"not null" json:"longest"`
	Total       int       `gorm:"not null" json:"total"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
