package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
)

// CollectionBadgePrefix namespaces the synthetic badge granted on completion.
const CollectionBadgePrefix = "collection:"

// Collection is a named set of badges whose joint ownership grants a meta-badge.
type Collection struct {
	ID              string                     `gorm:"primaryKey;type:varchar(128)" json:"id"`
	Name            string                     `gorm:"not null" json:"name"`
	Description     string                     `gorm:"type:text" json:"description"`
	Icon            string                     `gorm:"type:text" json:"icon"`
	Rarity          Rarity                     `gorm:"type:varchar(16)" json:"rarity"`
	BadgeIDs        datatypes.JSONSlice[string] `json:"badge_ids"`
	Rewards         Rewards                    `gorm:"embedded;embeddedPrefix:reward_" json:"rewards"`
	CompletionBonus Rewards                    `gorm:"embedded;embeddedPrefix:bonus_" json:"completion_bonus"`
	CreatedAt       time.Time                  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time                  `gorm:"autoUpdateTime" json:"updated_at"`
}

func CollectionBadgeID(collectionID string) string {
	return CollectionBadgePrefix + collectionID
}

// BadgeID is the synthetic badge id for c.
func (c *Collection) BadgeID() string {
	return CollectionBadgeID(c.ID)
}

// CompletedBy reports whether owned ⊇ c.BadgeIDs.
func (c *Collection) CompletedBy(owned map[string]struct{}) bool {
	for _, id := range c.BadgeIDs {
		if _, ok := owned[id]; !ok {
			return false
		}
	}
	return true
}

// Badge materializes the synthetic catalog entry for c. It carries no
// requirements, so only the collection engine can grant it.
func (c *Collection) Badge() BadgeDefinition {
	rarity := c.Rarity
	if rarity == "" {
		rarity = RarityLegendary
	}
	return BadgeDefinition{
		ID:          c.BadgeID(),
		Name:        c.Name,
		Description: c.Description,
		Icon:        c.Icon,
		Category:    CategoryAchievement,
		Rarity:      rarity,
		Rewards:     c.Rewards,
		IsActive:    true,
	}
}

func (c *Collection) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return errors.New("collection id is required")
	}
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("collection %s: name is required", c.ID)
	}
	if len(c.BadgeIDs) == 0 {
		return fmt.Errorf("collection %s: at least one badge is required", c.ID)
	}
	seen := make(map[string]struct{}, len(c.BadgeIDs))
	for _, id := range c.BadgeIDs {
		if id == c.BadgeID() {
			return fmt.Errorf("collection %s: cannot contain its own badge", c.ID)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("collection %s: duplicate badge %s", c.ID, id)
		}
		seen[id] = struct{}{}
	}
	if c.Rarity != "" && !c.Rarity.Valid() {
		return fmt.Errorf("collection %s: unknown rarity %q", c.ID, c.Rarity)
	}
	return nil
}
