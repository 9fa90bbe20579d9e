package services

import (
	"testing"

	"badge-engine/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const seedJSON = `{
  "badges": [
    {"id": "first_kill", "name": "First Blood", "category": "activity", "rarity": "common", "is_active": true,
     "requirements": [{"stat_type": "kills", "operator": ">=", "value": 1}],
     "rewards": {"xp": 50, "currency": 25}},
    {"id": "first_win", "name": "Winner", "category": "activity", "rarity": "uncommon", "is_active": true,
     "requirements": [{"stat_type": "wins", "operator": ">=", "value": 1}]}
  ],
  "collections": [
    {"id": "starter", "name": "Starter Pack", "badge_ids": ["first_kill", "first_win"],
     "completion_bonus": {"currency": 100}}
  ],
  "rules": [
    {"id": "chatty", "name": "Chatty", "condition": "messages >= 100", "cooldown_minutes": 1440,
     "max_awards_per_user": 1, "is_active": true, "template": {"name": "Chatterbox"}}
  ],
  "season_templates": [
    {"key": "grinder", "template": {"name": "Season Grinder"}}
  ]
}`

func TestApplySeedAndReload(t *testing.T) {
	f := newFixture(t)
	seed, err := ParseSeed([]byte(seedJSON))
	require.NoError(t, err)
	require.NoError(t, f.eng.ApplySeed(f.ctx, seed))

	assert.Len(t, f.eng.Collections.List(), 1)
	_, ok := f.eng.Catalog.Get(models.CollectionBadgeID("starter"))
	assert.True(t, ok)
	require.Len(t, f.eng.Seasons.Templates, 1)

	fresh := NewEngine(f.db, zap.NewNop(), Options{Ledger: f.ledger, Sink: f.sink})
	t.Cleanup(fresh.Close)
	require.NoError(t, fresh.Load(f.ctx))

	def, ok := fresh.Catalog.Get("first_kill")
	require.True(t, ok)
	assert.Equal(t, int64(50), def.Rewards.XP)
	require.Len(t, def.Requirements, 1)
	assert.Equal(t, models.StatKills, def.Requirements[0].StatType)
	assert.Len(t, fresh.Collections.List(), 1)
	assert.Len(t, fresh.Rules.activeRules(), 1)

	res, err := fresh.UpdateProgress(f.ctx, "u1", models.StatKills, 1, models.ModeIncrement)
	require.NoError(t, err)
	assert.Equal(t, []string{"first_kill"}, res.Awarded)
}

func TestParseSeedRejectsGarbage(t *testing.T) {
	_, err := ParseSeed([]byte(`{"badges": [`))
	assert.ErrorIs(t, err, ErrValidation)
}

func TestApplySeedStopsOnInvalidBadge(t *testing.T) {
	f := newFixture(t)
	err := f.eng.ApplySeed(f.ctx, Seed{Badges: []models.BadgeDefinition{{ID: "nameless"}}})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestExportSeedRoundTrip(t *testing.T) {
	f := newFixture(t)
	seed, err := ParseSeed([]byte(seedJSON))
	require.NoError(t, err)
	require.NoError(t, f.eng.ApplySeed(f.ctx, seed))

	data, err := f.eng.ExportSeed()
	require.NoError(t, err)
	exported, err := ParseSeed(data)
	require.NoError(t, err)

	ids := make([]string, len(exported.Badges))
	for i, b := range exported.Badges {
		ids[i] = b.ID
	}
	assert.Equal(t, []string{"first_kill", "first_win"}, ids)
	require.Len(t, exported.Collections, 1)
	assert.Equal(t, []string{"first_kill", "first_win"}, []string(exported.Collections[0].BadgeIDs))
	require.Len(t, exported.Rules, 1)
	assert.Equal(t, "Chatterbox", exported.Rules[0].Template.Data().Name)
	assert.Len(t, exported.SeasonTemplates, 1)

	other := newFixture(t)
	require.NoError(t, other.eng.ApplySeed(other.ctx, exported))
	_, ok := other.eng.Catalog.Get(models.CollectionBadgeID("starter"))
	assert.True(t, ok)
}
