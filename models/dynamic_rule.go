package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
)

// BadgeTemplate is a BadgeDefinition without identity; a dynamic rule
// materializes one definition per trigger.
type BadgeTemplate struct {
	Name         string        `json:"name"`
	Description  string        `json:"description"`
	Icon         string        `json:"icon"`
	Category     BadgeCategory `json:"category"`
	Rarity       Rarity        `json:"rarity"`
	Requirements []Requirement `json:"requirements,omitempty"`
	Rewards      Rewards       `json:"rewards"`
	IsSecret     bool          `json:"is_secret"`
}

// Materialize builds the one-off definition for a rule trigger.
func (t BadgeTemplate) Materialize(id string) BadgeDefinition {
	category := t.Category
	if category == "" {
		category = CategorySpecial
	}
	rarity := t.Rarity
	if rarity == "" {
		rarity = RarityRare
	}
	def := BadgeDefinition{
		ID:          id,
		Name:        t.Name,
		Description: t.Description,
		Icon:        t.Icon,
		Category:    category,
		Rarity:      rarity,
		Rewards:     t.Rewards,
		IsSecret:    t.IsSecret,
		IsActive:    true,
	}
	if len(t.Requirements) > 0 {
		def.Requirements = append(datatypes.JSONSlice[Requirement]{}, t.Requirements...)
	}
	return def
}

// DynamicRule is a periodically evaluated condition that mints and awards a badge.
type DynamicRule struct {
	ID               string                           `gorm:"primaryKey;type:varchar(128)" json:"id"`
	Name             string                           `json:"name"`
	Condition        string                           `gorm:"type:text;not null" json:"condition"`
	Template         datatypes.JSONType[BadgeTemplate] `json:"template"`
	CooldownMinutes  int                              `gorm:"not null" json:"cooldown_minutes"`
	MaxAwardsPerUser int                              `gorm:"not null" json:"max_awards_per_user"`
	IsActive         bool                             `gorm:"not null;index" json:"is_active"`
	CreatedAt        time.Time                        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time                        `gorm:"autoUpdateTime" json:"updated_at"`
}

func (r *DynamicRule) Cooldown() time.Duration {
	return time.Duration(r.CooldownMinutes) * time.Minute
}

func (r *DynamicRule) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return errors.New("rule id is required")
	}
	if strings.TrimSpace(r.Condition) == "" {
		return fmt.Errorf("rule %s: condition is required", r.ID)
	}
	if r.CooldownMinutes < 0 {
		return fmt.Errorf("rule %s: cooldown must not be negative", r.ID)
	}
	if r.MaxAwardsPerUser < 1 {
		return fmt.Errorf("rule %s: max awards per user must be at least 1", r.ID)
	}
	tpl := r.Template.Data()
	if strings.TrimSpace(tpl.Name) == "" {
		return fmt.Errorf("rule %s: template name is required", r.ID)
	}
	if tpl.Category != "" && !tpl.Category.Valid() {
		return fmt.Errorf("rule %s: unknown template category %q", r.ID, tpl.Category)
	}
	if tpl.Rarity != "" && !tpl.Rarity.Valid() {
		return fmt.Errorf("rule %s: unknown template rarity %q", r.ID, tpl.Rarity)
	}
	return nil
}

// RuleState is the persisted per (user, rule) cooldown and cap bookkeeping.
type RuleState struct {
	UserID          string    `gorm:"primaryKey;type:varchar(128)" json:"user_id"`
	RuleID          string    `gorm:"primaryKey;type:varchar(128)" json:"rule_id"`
	LastEvaluatedAt time.Time `json:"last_evaluated_at"`
	AwardCount      int       `gorm:"not null" json:"award_count"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
