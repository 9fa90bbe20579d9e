package models

import "time"

// ProgressMode selects how an activity delta is applied.
type ProgressMode string

const (
	ModeSet       ProgressMode = "set"       // snapshot stats such as level
	ModeIncrement ProgressMode = "increment" // cumulative counters such as kills
)

func (m ProgressMode) Valid() bool {
	return m == ModeSet || m == ModeIncrement
}

// ProgressValue is one (user, badge, stat) accumulator row.
// Rows are created lazily and deleted once the badge is owned.
type ProgressValue struct {
	UserID    string    `gorm:"primaryKey;type:varchar(128)" json:"user_id"`
	BadgeID   string    `gorm:"primaryKey;type:varchar(128);index" json:"badge_id"`
	StatType  StatType  `gorm:"primaryKey;type:varchar(64)" json:"stat_type"`
	Value     float64   `gorm:"not null" json:"value"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// ProgressEntry is the assembled view of a user's progress toward one badge.
type ProgressEntry struct {
	UserID  string               `json:"user_id"`
	BadgeID string               `json:"badge_id"`
	Values  map[StatType]float64 `json:"values"`
}

// Value returns the cached value for stat, 0 if never observed.
func (e ProgressEntry) Value(stat StatType) float64 {
	return e.Values[stat]
}

// RequirementStatus pairs a requirement with its current evaluation.
type RequirementStatus struct {
	Requirement Requirement `json:"requirement"`
	Current     float64     `json:"current"`
	Satisfied   bool        `json:"satisfied"`
}

// ProgressReport answers getProgress for one (user, badge).
type ProgressReport struct {
	Entry        ProgressEntry       `json:"entry"`
	Requirements []RequirementStatus `json:"requirements"`
	Owned        bool                `json:"owned"`
	EarnedAt     *time.Time          `json:"earned_at,omitempty"`
}
