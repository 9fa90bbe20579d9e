package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"badge-engine/models"

	"go.uber.org/zap"
)

// Seed is the catalog bundle loaded at startup or with `badge-engine seed`.
type Seed struct {
	Badges          []models.BadgeDefinition `json:"badges"`
	Collections     []models.Collection      `json:"collections"`
	Rules           []models.DynamicRule     `json:"rules"`
	SeasonTemplates []SeasonTemplate         `json:"season_templates"`
}

func ParseSeed(data []byte) (Seed, error) {
	var seed Seed
	if err := json.Unmarshal(data, &seed); err != nil {
		return seed, fmt.Errorf("%w: seed: %v", ErrValidation, err)
	}
	return seed, nil
}

// ApplySeed registers everything in seed. Badges go first so collections
// and rules can refer to them.
func (e *Engine) ApplySeed(ctx context.Context, seed Seed) error {
	for _, def := range seed.Badges {
		if err := e.Catalog.Register(ctx, def); err != nil {
			return err
		}
	}
	for _, c := range seed.Collections {
		if err := e.Collections.RegisterCollection(ctx, c); err != nil {
			return err
		}
	}
	for _, r := range seed.Rules {
		if err := e.Rules.RegisterRule(ctx, r); err != nil {
			return err
		}
	}
	if len(seed.SeasonTemplates) > 0 {
		e.Seasons.Templates = append([]SeasonTemplate(nil), seed.SeasonTemplates...)
	}
	e.Log.Info("[SEED] applied",
		zap.Int("badges", len(seed.Badges)),
		zap.Int("collections", len(seed.Collections)),
		zap.Int("rules", len(seed.Rules)),
		zap.Int("season_templates", len(seed.SeasonTemplates)))
	return nil
}

// ExportSeed renders the live catalog as a seed bundle. Synthetic collection
// badges are left out since registering the collection recreates them, and
// so are rule-minted badges.
func (e *Engine) ExportSeed() ([]byte, error) {
	seed := Seed{
		Collections:     e.Collections.List(),
		Rules:           e.Rules.List(),
		SeasonTemplates: e.Seasons.Templates,
	}
	for _, def := range e.Catalog.All() {
		if def.IsMinted() || strings.HasPrefix(def.ID, models.CollectionBadgePrefix) {
			continue
		}
		seed.Badges = append(seed.Badges, def)
	}
	return json.MarshalIndent(seed, "", "  ")
}
