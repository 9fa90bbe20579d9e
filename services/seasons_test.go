package services

import (
	"context"
	"testing"
	"time"

	"badge-engine/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSeason struct{ id string }

func (s stubSeason) CurrentSeason(context.Context) (string, error) { return s.id, nil }

func seasonTemplates() []SeasonTemplate {
	return []SeasonTemplate{
		{Key: "Grinder", Template: models.BadgeTemplate{Name: "Season Grinder", Requirements: []models.Requirement{gte(models.StatMatches, 20)}}},
		{Key: "champion", Template: models.BadgeTemplate{Name: "Season Champion", Rarity: models.RarityLegendary, Requirements: []models.Requirement{gte(models.StatWins, 50)}}},
	}
}

func TestOnSeasonChangeRotatesBadges(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.SeasonTemplates = seasonTemplates() })

	started, err := f.eng.OnSeasonChange(f.ctx, "Winter 2026")
	require.NoError(t, err)
	assert.True(t, started)

	grinder, ok := f.eng.Catalog.Get("season-winter-2026-grinder")
	require.True(t, ok)
	assert.Equal(t, models.CategorySeasonal, grinder.Category)
	assert.Equal(t, models.RaritySeasonal, grinder.Rarity)
	assert.Equal(t, "Winter 2026", grinder.SeasonID)
	require.NotNil(t, grinder.ExclusiveUntil)
	assert.True(t, grinder.ExclusiveUntil.Equal(f.now.Add(90*24*time.Hour)))

	champion, ok := f.eng.Catalog.Get("season-winter-2026-champion")
	require.True(t, ok)
	assert.Equal(t, models.RarityLegendary, champion.Rarity)

	again, err := f.eng.OnSeasonChange(f.ctx, "Winter 2026")
	require.NoError(t, err)
	assert.False(t, again)

	started, err = f.eng.OnSeasonChange(f.ctx, "Spring 2027")
	require.NoError(t, err)
	assert.True(t, started)

	old, _ := f.eng.Catalog.Get("season-winter-2026-grinder")
	assert.False(t, old.IsActive)
	fresh, _ := f.eng.Catalog.Get("season-spring-2027-grinder")
	assert.True(t, fresh.IsActive)

	_, err = f.eng.OnSeasonChange(f.ctx, " ")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestSeasonalBadgeExpires(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.SeasonTemplates = seasonTemplates() })
	_, err := f.eng.OnSeasonChange(f.ctx, "s1")
	require.NoError(t, err)

	f.now = f.now.Add(91 * 24 * time.Hour)
	assert.Empty(t, f.progress("u1", models.StatMatches, 25, models.ModeIncrement))
}

func TestCheckSeasonPollsSource(t *testing.T) {
	f := newFixture(t, func(o *Options) {
		o.SeasonTemplates = seasonTemplates()
		o.SeasonSource = stubSeason{id: "s2"}
	})
	started, err := f.eng.Seasons.CheckSeason(f.ctx)
	require.NoError(t, err)
	assert.True(t, started)

	started, err = f.eng.Seasons.CheckSeason(f.ctx)
	require.NoError(t, err)
	assert.False(t, started)

	f.eng.Seasons.Source = stubSeason{}
	started, err = f.eng.Seasons.CheckSeason(f.ctx)
	require.NoError(t, err)
	assert.False(t, started)
}
