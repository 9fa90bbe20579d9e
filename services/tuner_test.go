package services

import (
	"context"
	"fmt"
	"testing"

	"badge-engine/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedPopulation int64

func (p fixedPopulation) TotalEligibleUsers(context.Context) (int64, error) { return int64(p), nil }

func TestScaleRequirements(t *testing.T) {
	reqs := []models.Requirement{
		gte(models.StatKills, 100),
		gte(models.StatWins, 1),
		{StatType: models.StatLevel, Operator: models.OpBetween, Value: 10, Max: 20},
	}

	harder := ScaleRequirements(reqs, 1.2)
	assert.Equal(t, float64(120), harder[0].Value)
	assert.Equal(t, float64(1), harder[1].Value)
	assert.Equal(t, float64(12), harder[2].Value)
	assert.Equal(t, float64(24), harder[2].Max)

	easier := ScaleRequirements(reqs, 0.8)
	assert.Equal(t, float64(80), easier[0].Value)
	assert.Equal(t, float64(1), easier[1].Value, "never below 1")
	assert.Equal(t, float64(16), easier[2].Max)

	assert.Equal(t, float64(100), reqs[0].Value, "input untouched")
}

func TestRetuneAdjustsByCompletionRate(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.Population = fixedPopulation(10) })
	f.register(
		badge("easy", models.RarityCommon, gte(models.StatKills, 10)),
		badge("hard", models.RarityLegendary, gte(models.StatKills, 1000)),
		badge("fair", models.RarityRare, gte(models.StatKills, 50)),
	)
	for i := 0; i < 9; i++ {
		_, err := f.eng.Award(f.ctx, fmt.Sprintf("u%d", i), "easy", false)
		require.NoError(t, err)
	}
	for i := 0; i < 3; i++ {
		_, err := f.eng.Award(f.ctx, fmt.Sprintf("u%d", i), "fair", false)
		require.NoError(t, err)
	}

	report, err := f.eng.RetuneDifficulty(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(10), report.TotalUsers)
	assert.Equal(t, 3, report.Examined)
	assert.Equal(t, []string{"easy"}, report.Harder)
	assert.Equal(t, []string{"hard"}, report.Easier)

	easy, _ := f.eng.Catalog.Get("easy")
	hard, _ := f.eng.Catalog.Get("hard")
	fair, _ := f.eng.Catalog.Get("fair")
	assert.Equal(t, float64(12), easy.Requirements[0].Value)
	assert.Equal(t, float64(800), hard.Requirements[0].Value)
	assert.Equal(t, float64(50), fair.Requirements[0].Value)

	assert.Len(t, f.owned("u0"), 2, "holders keep their badges")
}

func TestRetuneSkipsWithoutUsers(t *testing.T) {
	f := newFixture(t)
	f.register(badge("lonely", models.RarityCommon, gte(models.StatKills, 5)))

	report, err := f.eng.RetuneDifficulty(f.ctx)
	require.NoError(t, err)
	assert.True(t, report.Skipped)

	def, _ := f.eng.Catalog.Get("lonely")
	assert.Equal(t, float64(5), def.Requirements[0].Value)
}

func TestRetuneDoesNotRewriteProgress(t *testing.T) {
	f := newFixture(t)
	f.register(badge("marathon", models.RarityEpic, gte(models.StatMatches, 100)))
	f.progress("u1", models.StatMatches, 85, models.ModeIncrement)

	// one user, no holders: 0% completion makes it easier (100 -> 80)
	report, err := f.eng.RetuneDifficulty(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"marathon"}, report.Easier)

	pr, err := f.eng.GetProgress(f.ctx, "u1", "marathon")
	require.NoError(t, err)
	assert.Equal(t, float64(85), pr.Entry.Value(models.StatMatches))
	assert.True(t, pr.Requirements[0].Satisfied)
	assert.False(t, pr.Owned, "awarding waits for the next activity")

	assert.Equal(t, []string{"marathon"}, f.progress("u1", models.StatMatches, 1, models.ModeIncrement))
}
