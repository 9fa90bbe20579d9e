package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"badge-engine/models"

	"github.com/gosimple/slug"
	"go.uber.org/zap"
)

// SeasonalBadgeLifetime is how long a seasonal badge stays earnable.
const SeasonalBadgeLifetime = 90 * 24 * time.Hour

// SeasonTemplate is a badge issued fresh at the start of every season.
type SeasonTemplate struct {
	Key      string               `json:"key"`
	Template models.BadgeTemplate `json:"template"`
}

// SeasonManager rotates seasonal badges when the season changes.
type SeasonManager struct {
	Catalog   *Catalog
	Source    SeasonSource
	Templates []SeasonTemplate
	Log       *zap.Logger
	Now       func() time.Time
}

func NewSeasonManager(catalog *Catalog, source SeasonSource, templates []SeasonTemplate, log *zap.Logger) *SeasonManager {
	return &SeasonManager{Catalog: catalog, Source: source, Templates: templates, Log: log, Now: time.Now}
}

// SeasonalBadgeID builds the stable id of a template for a season.
func SeasonalBadgeID(seasonID, key string) string {
	return "season-" + slug.Make(seasonID) + "-" + slug.Make(key)
}

// OnSeasonChange retires the previous season's badges and issues the
// templates for seasonID. It returns false when seasonID was already set up.
func (m *SeasonManager) OnSeasonChange(ctx context.Context, seasonID string) (bool, error) {
	if strings.TrimSpace(seasonID) == "" {
		return false, fmt.Errorf("%w: season id is required", ErrValidation)
	}
	all := m.Catalog.All()
	for _, def := range all {
		if def.SeasonID == seasonID {
			return false, nil
		}
	}

	for _, def := range all {
		if def.SeasonID == "" || !def.IsActive {
			continue
		}
		if err := m.Catalog.Deactivate(ctx, def.ID); err != nil {
			return false, err
		}
		m.Log.Info("[SEASON] retired badge", zap.String("badge_id", def.ID), zap.String("season_id", def.SeasonID))
	}

	until := m.Now().Add(SeasonalBadgeLifetime).UTC()
	for _, tpl := range m.Templates {
		def := tpl.Template.Materialize(SeasonalBadgeID(seasonID, tpl.Key))
		def.Category = models.CategorySeasonal
		if tpl.Template.Rarity == "" {
			def.Rarity = models.RaritySeasonal
		}
		def.SeasonID = seasonID
		def.ExclusiveUntil = &until
		if err := m.Catalog.Register(ctx, def); err != nil {
			return false, err
		}
	}
	m.Log.Info("[SEASON] season started", zap.String("season_id", seasonID), zap.Int("badges", len(m.Templates)))
	return true, nil
}

// CheckSeason asks the season source for the current season and rotates when
// it is new.
func (m *SeasonManager) CheckSeason(ctx context.Context) (bool, error) {
	if m.Source == nil {
		return false, nil
	}
	seasonID, err := m.Source.CurrentSeason(ctx)
	if err != nil {
		return false, fmt.Errorf("current season: %w", err)
	}
	if seasonID == "" {
		return false, nil
	}
	return m.OnSeasonChange(ctx, seasonID)
}
