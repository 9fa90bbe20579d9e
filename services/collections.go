package services

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"badge-engine/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CollectionEngine grants a meta-badge once a user owns every badge of a
// collection, and pays the completion bonus exactly once with it.
type CollectionEngine struct {
	DB         *gorm.DB
	Log        *zap.Logger
	Catalog    *Catalog
	Awards     *AwardEngine
	Dispatcher *Dispatcher

	mu          sync.RWMutex
	collections map[string]models.Collection
}

func NewCollectionEngine(db *gorm.DB, log *zap.Logger, catalog *Catalog, awards *AwardEngine, dispatcher *Dispatcher) *CollectionEngine {
	return &CollectionEngine{
		DB:          db,
		Log:         log,
		Catalog:     catalog,
		Awards:      awards,
		Dispatcher:  dispatcher,
		collections: make(map[string]models.Collection),
	}
}

// Load reads stored collections and makes sure each synthetic badge is in
// the catalog.
func (e *CollectionEngine) Load(ctx context.Context) error {
	var rows []models.Collection
	if err := e.DB.WithContext(ctx).Find(&rows).Error; err != nil {
		return fmt.Errorf("load collections: %w", err)
	}
	table := make(map[string]models.Collection, len(rows))
	for _, c := range rows {
		if _, ok := e.Catalog.Get(c.BadgeID()); !ok {
			if err := e.Catalog.Register(ctx, c.Badge()); err != nil {
				return err
			}
		}
		table[c.ID] = c
	}
	e.mu.Lock()
	e.collections = table
	e.mu.Unlock()
	return nil
}

// RegisterCollection stores c and registers its synthetic badge.
func (e *CollectionEngine) RegisterCollection(ctx context.Context, c models.Collection) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	err := e.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "description", "icon", "rarity", "badge_ids",
			"reward_xp", "reward_currency", "reward_role", "reward_title",
			"bonus_xp", "bonus_currency", "bonus_role", "bonus_title", "updated_at",
		}),
	}).Create(&c).Error
	if err != nil {
		return fmt.Errorf("upsert collection %s: %w", c.ID, err)
	}
	if err := e.Catalog.Register(ctx, c.Badge()); err != nil {
		return err
	}
	e.mu.Lock()
	e.collections[c.ID] = c
	e.mu.Unlock()
	return nil
}

func (e *CollectionEngine) List() []models.Collection {
	e.mu.RLock()
	out := make([]models.Collection, 0, len(e.collections))
	for _, c := range e.collections {
		out = append(out, c)
	}
	e.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// CheckCollections awards every collection userID has just completed and
// returns their ids.
func (e *CollectionEngine) CheckCollections(ctx context.Context, userID string) ([]string, error) {
	owned, err := e.Awards.OwnedIDs(ctx, userID)
	if err != nil {
		return nil, err
	}

	var completed []string
	for _, c := range e.List() {
		if _, ok := owned[c.BadgeID()]; ok {
			continue
		}
		if !c.CompletedBy(owned) {
			continue
		}
		res, err := e.Awards.AwardFrom(ctx, models.SourceCollection, userID, c.BadgeID(), true)
		if err != nil {
			return completed, err
		}
		owned[c.BadgeID()] = struct{}{}
		if !res.Awarded {
			continue
		}
		completed = append(completed, c.ID)
		e.Log.Info("[COLLECTION] completed", zap.String("user_id", userID), zap.String("collection_id", c.ID))
		if e.Dispatcher != nil && !c.CompletionBonus.IsZero() {
			e.Dispatcher.DispatchRewards(userID, c.CompletionBonus, models.RewardCategoryCollectionBonus, "collection "+c.ID)
		}
	}
	return completed, nil
}
