package services

import (
	"testing"

	"badge-engine/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCatalogRegisterValidates(t *testing.T) {
	f := newFixture(t)

	cases := []models.BadgeDefinition{
		{Name: "no id", Category: models.CategoryActivity, Rarity: models.RarityCommon},
		{ID: "x", Name: "bad category", Category: "nope", Rarity: models.RarityCommon},
		{ID: "x", Name: "bad rarity", Category: models.CategoryActivity, Rarity: "shiny"},
		badge("x", models.RarityCommon, models.Requirement{StatType: models.StatKills, Operator: "~"}),
		badge("x", models.RarityCommon, models.Requirement{StatType: models.StatKills, Operator: models.OpBetween, Value: 5, Max: 1}),
	}
	for _, def := range cases {
		err := f.eng.Catalog.Register(f.ctx, def)
		assert.ErrorIs(t, err, ErrValidation, def.Name)
	}
	_, ok := f.eng.Catalog.Get("x")
	assert.False(t, ok)
}

func TestCatalogGetReturnsCopy(t *testing.T) {
	f := newFixture(t)
	f.register(badge("first_kill", models.RarityCommon, gte(models.StatKills, 1)))

	def, ok := f.eng.Catalog.Get("first_kill")
	require.True(t, ok)
	def.Requirements[0].Value = 999
	def.Name = "changed"

	again, _ := f.eng.Catalog.Get("first_kill")
	assert.Equal(t, float64(1), again.Requirements[0].Value)
	assert.Equal(t, "first_kill", again.Name)
}

func TestCatalogListActiveOrdering(t *testing.T) {
	f := newFixture(t)
	secret := badge("hidden", models.RarityMythic, gte(models.StatWins, 1))
	secret.IsSecret = true
	inactive := badge("retired", models.RarityLegendary, gte(models.StatWins, 1))
	inactive.IsActive = false
	f.register(
		badge("b-epic", models.RarityEpic, gte(models.StatKills, 1)),
		badge("a-common", models.RarityCommon, gte(models.StatKills, 1)),
		badge("c-rare", models.RarityRare, gte(models.StatKills, 1)),
		secret, inactive,
	)

	ids := func(defs []models.BadgeDefinition) []string {
		out := make([]string, len(defs))
		for i, d := range defs {
			out[i] = d.ID
		}
		return out
	}
	assert.Equal(t, []string{"a-common", "c-rare", "b-epic"}, ids(f.eng.Catalog.ListActive(false, RarityAscending)))
	assert.Equal(t, []string{"hidden", "b-epic", "c-rare", "a-common"}, ids(f.eng.Catalog.ListActive(true, RarityDescending)))
	assert.Len(t, f.eng.Catalog.All(), 5)
}

func TestCatalogUpsertAndReload(t *testing.T) {
	f := newFixture(t)
	def := badge("chatter", models.RarityCommon, gte(models.StatMessages, 10))
	f.register(def)

	def.Name = "Chatterbox"
	def.Rewards = models.Rewards{XP: 10}
	f.register(def)

	fresh := NewCatalog(f.db, zap.NewNop())
	require.NoError(t, fresh.Load(f.ctx))
	got, ok := fresh.Get("chatter")
	require.True(t, ok)
	assert.Equal(t, "Chatterbox", got.Name)
	assert.Equal(t, int64(10), got.Rewards.XP)
	assert.Equal(t, models.StatMessages, got.Requirements[0].StatType)
}

func TestCatalogRarityFrozenOnceHeld(t *testing.T) {
	f := newFixture(t)
	def := badge("veteran", models.RarityRare, gte(models.StatMatches, 50))
	f.register(def)

	def.Rarity = models.RarityEpic
	f.register(def)
	got, _ := f.eng.Catalog.Get("veteran")
	assert.Equal(t, models.RarityEpic, got.Rarity, "no holders yet, rarity may change")

	_, err := f.eng.Award(f.ctx, "u1", "veteran", false)
	require.NoError(t, err)

	def.Rarity = models.RarityCommon
	def.Description = "played a lot"
	f.register(def)
	got, _ = f.eng.Catalog.Get("veteran")
	assert.Equal(t, models.RarityEpic, got.Rarity)
	assert.Equal(t, "played a lot", got.Description)
}

func TestCatalogDeactivateAndUpdateRequirements(t *testing.T) {
	f := newFixture(t)
	f.register(badge("grinder", models.RarityCommon, gte(models.StatKills, 10)))

	require.NoError(t, f.eng.Catalog.UpdateRequirements(f.ctx, "grinder", []models.Requirement{gte(models.StatKills, 12)}))
	got, _ := f.eng.Catalog.Get("grinder")
	assert.Equal(t, float64(12), got.Requirements[0].Value)

	assert.Len(t, f.eng.Catalog.ByStat(models.StatKills), 1)
	require.NoError(t, f.eng.Catalog.Deactivate(f.ctx, "grinder"))
	assert.Empty(t, f.eng.Catalog.ByStat(models.StatKills))

	var stored models.BadgeDefinition
	require.NoError(t, f.db.First(&stored, "id = ?", "grinder").Error)
	assert.False(t, stored.IsActive)
	assert.Equal(t, float64(12), stored.Requirements[0].Value)

	assert.ErrorIs(t, f.eng.Catalog.Deactivate(f.ctx, "missing"), ErrUnknownBadge)
	err := f.eng.Catalog.UpdateRequirements(f.ctx, "grinder", []models.Requirement{{StatType: models.StatKills, Operator: "?"}})
	assert.ErrorIs(t, err, ErrValidation)
}
