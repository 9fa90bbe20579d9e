package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
)

// BadgeCategory groups badges for catalog display.
type BadgeCategory string

const (
	CategoryActivity      BadgeCategory = "activity"
	CategorySocial        BadgeCategory = "social"
	CategoryParticipation BadgeCategory = "participation"
	CategoryAchievement   BadgeCategory = "achievement"
	CategorySpecial       BadgeCategory = "special"
	CategorySeasonal      BadgeCategory = "seasonal"
)

func (c BadgeCategory) Valid() bool {
	switch c {
	case CategoryActivity, CategorySocial, CategoryParticipation,
		CategoryAchievement, CategorySpecial, CategorySeasonal:
		return true
	}
	return false
}

// Rarity is an ordered display scale. It never gates behavior.
type Rarity string

const (
	RarityCommon    Rarity = "common"
	RarityUncommon  Rarity = "uncommon"
	RarityRare      Rarity = "rare"
	RarityEpic      Rarity = "epic"
	RarityLegendary Rarity = "legendary"
	RarityMythic    Rarity = "mythic"
	RarityExclusive Rarity = "exclusive"
	RarityFounder   Rarity = "founder"
	RaritySeasonal  Rarity = "seasonal"
	RarityLimited   Rarity = "limited"
)

var rarityRank = map[Rarity]int{
	RarityCommon:    0,
	RarityUncommon:  1,
	RarityRare:      2,
	RarityEpic:      3,
	RarityLegendary: 4,
	RarityMythic:    5,
	RarityExclusive: 6,
	RarityFounder:   7,
	RaritySeasonal:  8,
	RarityLimited:   9,
}

// Rank returns the position of r on the rarity scale, -1 if unknown.
func (r Rarity) Rank() int {
	if rank, ok := rarityRank[r]; ok {
		return rank
	}
	return -1
}

func (r Rarity) Valid() bool { return r.Rank() >= 0 }

// Rewards granted alongside a badge. Each channel is dispatched independently.
type Rewards struct {
	XP       int64  `json:"xp,omitempty"`
	Currency int64  `json:"currency,omitempty"`
	Role     string `gorm:"type:varchar(64)" json:"role,omitempty"`
	Title    string `gorm:"type:varchar(128)" json:"title,omitempty"`
}

func (r Rewards) IsZero() bool {
	return r.XP == 0 && r.Currency == 0 && r.Role == "" && r.Title == ""
}

// BadgeDefinition: catalog entry (loaded from DB, seeded from JSON)
type BadgeDefinition struct {
	ID           string                          `gorm:"primaryKey;type:varchar(128)" json:"id"`
	Name         string                          `gorm:"not null" json:"name"`
	Description  string                          `gorm:"type:text" json:"description"`
	Icon         string                          `gorm:"type:text" json:"icon"`
	Category     BadgeCategory                   `gorm:"type:varchar(32);not null" json:"category"`
	Rarity       Rarity                          `gorm:"type:varchar(16);not null" json:"rarity"`
	Requirements datatypes.JSONSlice[Requirement] `json:"requirements"`
	Rewards      Rewards                         `gorm:"embedded;embeddedPrefix:reward_" json:"rewards"`
	IsSecret     bool                            `gorm:"not null" json:"is_secret"`
	IsActive     bool                            `gorm:"not null;index" json:"is_active"`

	SeasonID          string                     `gorm:"type:varchar(64);index" json:"season_id,omitempty"`
	ExclusiveUntil    *time.Time                 `json:"exclusive_until,omitempty"`
	Prerequisites     datatypes.JSONSlice[string] `json:"prerequisites,omitempty"`
	MaxHolders        int                        `json:"max_holders,omitempty"`
	ExclusiveHolderID string                     `gorm:"type:varchar(128)" json:"exclusive_holder_id,omitempty"` // single-holder badges (e.g. founder)
	RuleID            string                     `gorm:"type:varchar(128);index" json:"rule_id,omitempty"`        // set on badges minted by a dynamic rule

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// BadgeMetadata is the display payload handed to notification sinks.
type BadgeMetadata struct {
	BadgeID     string        `json:"badge_id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Icon        string        `json:"icon"`
	Category    BadgeCategory `json:"category"`
	Rarity      Rarity        `json:"rarity"`
	EarnedAt    time.Time     `json:"earned_at"`
}

// References reports whether any requirement tracks stat.
func (b *BadgeDefinition) References(stat StatType) bool {
	for _, req := range b.Requirements {
		if req.StatType == stat {
			return true
		}
	}
	return false
}

func (b *BadgeDefinition) IsSingleHolder() bool {
	return b.ExclusiveHolderID != ""
}

// IsMinted reports whether b was minted for a single user by a rule trigger.
// Minted badges are only ever granted by the sweep that created them.
func (b *BadgeDefinition) IsMinted() bool {
	return b.RuleID != ""
}

// EarnableAt reports whether the progress path may still grant b at now.
func (b *BadgeDefinition) EarnableAt(now time.Time) bool {
	if !b.IsActive || b.IsMinted() || len(b.Requirements) == 0 {
		return false
	}
	return b.ExclusiveUntil == nil || now.Before(*b.ExclusiveUntil)
}

func (b *BadgeDefinition) Metadata(earnedAt time.Time) BadgeMetadata {
	return BadgeMetadata{
		BadgeID:     b.ID,
		Name:        b.Name,
		Description: b.Description,
		Icon:        b.Icon,
		Category:    b.Category,
		Rarity:      b.Rarity,
		EarnedAt:    earnedAt,
	}
}

// Clone returns a deep copy so callers never share slices with the catalog.
func (b BadgeDefinition) Clone() BadgeDefinition {
	cp := b
	if b.Requirements != nil {
		cp.Requirements = append(datatypes.JSONSlice[Requirement]{}, b.Requirements...)
	}
	if b.Prerequisites != nil {
		cp.Prerequisites = append(datatypes.JSONSlice[string]{}, b.Prerequisites...)
	}
	if b.ExclusiveUntil != nil {
		until := *b.ExclusiveUntil
		cp.ExclusiveUntil = &until
	}
	return cp
}

// Validate checks the fields a caller controls.
func (b *BadgeDefinition) Validate() error {
	if strings.TrimSpace(b.ID) == "" {
		return errors.New("badge id is required")
	}
	if strings.TrimSpace(b.Name) == "" {
		return fmt.Errorf("badge %s: name is required", b.ID)
	}
	if !b.Category.Valid() {
		return fmt.Errorf("badge %s: unknown category %q", b.ID, b.Category)
	}
	if !b.Rarity.Valid() {
		return fmt.Errorf("badge %s: unknown rarity %q", b.ID, b.Rarity)
	}
	if b.MaxHolders < 0 {
		return fmt.Errorf("badge %s: max holders must not be negative", b.ID)
	}
	for i, req := range b.Requirements {
		if err := req.Validate(); err != nil {
			return fmt.Errorf("badge %s: requirement %d: %w", b.ID, i, err)
		}
	}
	return nil
}
