package services

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"badge-engine/models"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SortOrder selects how ListActive orders badges by rarity.
type SortOrder int

const (
	RarityAscending  SortOrder = iota // catalog view
	RarityDescending                  // trophy view
)

// badgeUpsertColumns are overwritten when a definition is registered again.
var badgeUpsertColumns = []string{
	"name", "description", "icon", "category", "rarity", "requirements",
	"reward_xp", "reward_currency", "reward_role", "reward_title",
	"is_secret", "is_active", "season_id", "exclusive_until", "prerequisites",
	"max_holders", "exclusive_holder_id", "rule_id", "updated_at",
}

// Catalog is the in-memory badge table backed by badge_definitions.
type Catalog struct {
	DB  *gorm.DB
	Log *zap.Logger

	mu     sync.RWMutex
	badges map[string]models.BadgeDefinition
}

func NewCatalog(db *gorm.DB, log *zap.Logger) *Catalog {
	return &Catalog{DB: db, Log: log, badges: make(map[string]models.BadgeDefinition)}
}

// Load replaces the in-memory table with what is stored.
func (c *Catalog) Load(ctx context.Context) error {
	var defs []models.BadgeDefinition
	if err := c.DB.WithContext(ctx).Find(&defs).Error; err != nil {
		return fmt.Errorf("load badge catalog: %w", err)
	}
	table := make(map[string]models.BadgeDefinition, len(defs))
	for _, def := range defs {
		table[def.ID] = def
	}
	c.mu.Lock()
	c.badges = table
	c.mu.Unlock()
	c.Log.Info("[CATALOG] loaded", zap.Int("badges", len(table)))
	return nil
}

// Register validates def and upserts it by ID. When the badge already has
// holders a rarity change is dropped so earned badges keep their rarity.
func (c *Catalog) Register(ctx context.Context, def models.BadgeDefinition) error {
	if err := def.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	def = def.Clone()

	if existing, ok := c.Get(def.ID); ok && existing.Rarity != def.Rarity {
		holders, err := c.holderCount(ctx, def.ID)
		if err != nil {
			return err
		}
		if holders > 0 {
			c.Log.Warn("[CATALOG] rarity change ignored for held badge",
				zap.String("badge_id", def.ID),
				zap.String("rarity", string(existing.Rarity)),
				zap.String("requested", string(def.Rarity)),
				zap.Int64("holders", holders))
			def.Rarity = existing.Rarity
		}
	}

	err := c.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns(badgeUpsertColumns),
	}).Create(&def).Error
	if err != nil {
		return fmt.Errorf("upsert badge %s: %w", def.ID, err)
	}

	c.mu.Lock()
	c.badges[def.ID] = def
	c.mu.Unlock()
	return nil
}

// Get returns a copy of the definition.
func (c *Catalog) Get(id string) (models.BadgeDefinition, bool) {
	c.mu.RLock()
	def, ok := c.badges[id]
	c.mu.RUnlock()
	if !ok {
		return models.BadgeDefinition{}, false
	}
	return def.Clone(), true
}

// All returns every definition, active or not, ordered by ID.
func (c *Catalog) All() []models.BadgeDefinition {
	return c.filter(func(models.BadgeDefinition) bool { return true }, func(a, b models.BadgeDefinition) bool {
		return a.ID < b.ID
	})
}

// ListActive returns active badges ordered by rarity. Secret badges are
// hidden unless includeSecret is set. Rule-minted badges belong to one
// holder and are never listed.
func (c *Catalog) ListActive(includeSecret bool, order SortOrder) []models.BadgeDefinition {
	keep := func(def models.BadgeDefinition) bool {
		return def.IsActive && !def.IsMinted() && (includeSecret || !def.IsSecret)
	}
	less := func(a, b models.BadgeDefinition) bool {
		ra, rb := a.Rarity.Rank(), b.Rarity.Rank()
		if ra != rb {
			if order == RarityDescending {
				return ra > rb
			}
			return ra < rb
		}
		return a.ID < b.ID
	}
	return c.filter(keep, less)
}

// ByStat returns the active, progress-earnable badges with a requirement on stat.
func (c *Catalog) ByStat(stat models.StatType) []models.BadgeDefinition {
	return c.filter(func(def models.BadgeDefinition) bool {
		return def.IsActive && !def.IsMinted() && def.References(stat)
	}, func(a, b models.BadgeDefinition) bool { return a.ID < b.ID })
}

func (c *Catalog) filter(keep func(models.BadgeDefinition) bool, less func(a, b models.BadgeDefinition) bool) []models.BadgeDefinition {
	c.mu.RLock()
	out := make([]models.BadgeDefinition, 0, len(c.badges))
	for _, def := range c.badges {
		if keep(def) {
			out = append(out, def.Clone())
		}
	}
	c.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

// Deactivate stops a badge from being earned without deleting it.
func (c *Catalog) Deactivate(ctx context.Context, id string) error {
	return c.update(ctx, id, map[string]interface{}{"is_active": false}, func(def *models.BadgeDefinition) {
		def.IsActive = false
	})
}

// UpdateRequirements replaces the requirement list of a badge.
func (c *Catalog) UpdateRequirements(ctx context.Context, id string, reqs []models.Requirement) error {
	for i, req := range reqs {
		if err := req.Validate(); err != nil {
			return fmt.Errorf("%w: badge %s requirement %d: %v", ErrValidation, id, i, err)
		}
	}
	slice := datatypes.JSONSlice[models.Requirement](append([]models.Requirement(nil), reqs...))
	return c.update(ctx, id, map[string]interface{}{"requirements": slice}, func(def *models.BadgeDefinition) {
		def.Requirements = slice
	})
}

func (c *Catalog) update(ctx context.Context, id string, columns map[string]interface{}, apply func(*models.BadgeDefinition)) error {
	if _, ok := c.Get(id); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownBadge, id)
	}
	err := c.DB.WithContext(ctx).Model(&models.BadgeDefinition{}).
		Where("id = ?", id).
		Updates(columns).Error
	if err != nil {
		return fmt.Errorf("update badge %s: %w", id, err)
	}
	c.mu.Lock()
	if def, ok := c.badges[id]; ok {
		apply(&def)
		c.badges[id] = def
	}
	c.mu.Unlock()
	return nil
}

func (c *Catalog) holderCount(ctx context.Context, id string) (int64, error) {
	var n int64
	err := c.DB.WithContext(ctx).Model(&models.UserBadge{}).Where("badge_id = ?", id).Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count holders of %s: %w", id, err)
	}
	return n, nil
}
