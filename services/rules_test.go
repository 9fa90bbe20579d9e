package services

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"badge-engine/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func nightOwlRule() models.DynamicRule {
	return models.DynamicRule{
		ID:               "night_owl",
		Name:             "Night Owl",
		Condition:        "messages >= 10 && hour >= 12",
		Template:         datatypes.NewJSONType(models.BadgeTemplate{Name: "Night Owl", Rewards: models.Rewards{XP: 5}}),
		CooldownMinutes:  60,
		MaxAwardsPerUser: 2,
		IsActive:         true,
	}
}

func TestSweepMintsAndAwards(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.eng.Rules.RegisterRule(f.ctx, nightOwlRule()))
	f.progress("u1", models.StatMessages, 12, models.ModeIncrement)
	f.progress("u2", models.StatMessages, 3, models.ModeIncrement)

	report, err := f.eng.SweepDynamicRules(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Users)
	assert.Equal(t, 2, report.Evaluated)
	assert.Equal(t, 1, report.Triggered)
	assert.Equal(t, 1, report.Awarded)
	assert.Zero(t, report.Errors)

	owned := f.owned("u1")
	require.Len(t, owned, 1)
	assert.True(t, strings.HasPrefix(owned[0], fmt.Sprintf("night_owl-%d-", f.now.Unix())))
	assert.Empty(t, f.owned("u2"))

	def, ok := f.eng.Catalog.Get(owned[0])
	require.True(t, ok)
	assert.Equal(t, models.CategorySpecial, def.Category)
	assert.Equal(t, models.RarityRare, def.Rarity)

	f.eng.Dispatcher.Wait()
	assert.Equal(t, int64(5), f.ledger.XP("u1"))
}

func TestSweepHonorsCooldownAndCap(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.eng.Rules.RegisterRule(f.ctx, nightOwlRule()))
	f.progress("u1", models.StatMessages, 20, models.ModeIncrement)

	report, err := f.eng.SweepDynamicRules(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Awarded)

	f.now = f.now.Add(30 * time.Minute)
	report, err = f.eng.SweepDynamicRules(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Cooldown)
	assert.Zero(t, report.Evaluated)

	f.now = f.now.Add(31 * time.Minute)
	report, err = f.eng.SweepDynamicRules(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Awarded)

	f.now = f.now.Add(2 * time.Hour)
	report, err = f.eng.SweepDynamicRules(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Capped)
	assert.Len(t, f.owned("u1"), 2)

	st, err := f.eng.Rules.State.Get(f.ctx, "u1", "night_owl")
	require.NoError(t, err)
	assert.Equal(t, 2, st.AwardCount)
}

func TestFalseConditionStillStartsCooldown(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.eng.Rules.RegisterRule(f.ctx, nightOwlRule()))
	f.progress("u1", models.StatMessages, 1, models.ModeIncrement)

	report, err := f.eng.SweepDynamicRules(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Evaluated)
	assert.Zero(t, report.Triggered)

	f.progress("u1", models.StatMessages, 50, models.ModeIncrement)
	report, err = f.eng.SweepDynamicRules(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Cooldown)
	assert.Empty(t, f.owned("u1"))
}

func TestFailingConditionEvaluatesFalse(t *testing.T) {
	f := newFixture(t)
	rule := nightOwlRule()
	rule.ID = "broken"
	rule.Condition = "kills / matches > 1"
	require.NoError(t, f.eng.Rules.RegisterRule(f.ctx, rule))
	f.progress("u1", models.StatKills, 3, models.ModeIncrement)

	report, err := f.eng.SweepDynamicRules(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Evaluated)
	assert.Zero(t, report.Triggered)
	assert.Zero(t, report.Errors)
}

func TestRuleContextFields(t *testing.T) {
	f := newFixture(t)
	f.now = time.Date(2026, 10, 17, 23, 0, 0, 0, time.UTC) // Saturday
	rule := nightOwlRule()
	rule.ID = "weekend_warrior"
	rule.Condition = `isWeekend and dayOfWeek == 6 and hour == 23 and badgesEarned == 1 and wins == 0 and userId == "u1"`
	require.NoError(t, f.eng.Rules.RegisterRule(f.ctx, rule))
	f.register(badge("first_kill", models.RarityCommon, gte(models.StatKills, 1)))
	f.progress("u1", models.StatKills, 1, models.ModeIncrement)
	f.progress("u2", models.StatKills, 1, models.ModeIncrement)

	report, err := f.eng.SweepDynamicRules(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Triggered)
	assert.Len(t, f.owned("u1"), 2)
	assert.Len(t, f.owned("u2"), 1)
}

func TestRegisterRuleRejectsBadCondition(t *testing.T) {
	f := newFixture(t)
	rule := nightOwlRule()
	rule.Condition = "os.Exit(1)"
	assert.ErrorIs(t, f.eng.Rules.RegisterRule(f.ctx, rule), ErrValidation)

	rule = nightOwlRule()
	rule.MaxAwardsPerUser = 0
	assert.ErrorIs(t, f.eng.Rules.RegisterRule(f.ctx, rule), ErrValidation)

	assert.ErrorIs(t, f.eng.Rules.SetActive(f.ctx, "missing", false), ErrUnknownRule)
}

func TestInactiveRuleIsSkippedAndReloadable(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.eng.Rules.RegisterRule(f.ctx, nightOwlRule()))
	require.NoError(t, f.eng.Rules.SetActive(f.ctx, "night_owl", false))
	f.progress("u1", models.StatMessages, 50, models.ModeIncrement)

	report, err := f.eng.SweepDynamicRules(f.ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Evaluated)

	require.NoError(t, f.eng.Rules.SetActive(f.ctx, "night_owl", true))
	require.NoError(t, f.eng.Rules.Load(f.ctx))
	report, err = f.eng.SweepDynamicRules(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Awarded)
}

func TestSweepManyUsersInParallel(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.SweepParallelism = 4 })
	require.NoError(t, f.eng.Rules.RegisterRule(f.ctx, nightOwlRule()))
	for i := 0; i < 12; i++ {
		f.progress(fmt.Sprintf("user-%02d", i), models.StatMessages, float64(i*2), models.ModeIncrement)
	}

	report, err := f.eng.SweepDynamicRules(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 12, report.Users)
	assert.Equal(t, 12, report.Evaluated)
	assert.Equal(t, 7, report.Awarded) // users 5..11 have >= 10 messages
}

func TestMintedBadgeIsNotEarnableThroughProgress(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.eng.Rules.RegisterRule(f.ctx, models.DynamicRule{
		ID:        "grinder",
		Name:      "Grinder",
		Condition: "kills >= 5",
		Template: datatypes.NewJSONType(models.BadgeTemplate{
			Name:         "Grinder",
			Requirements: []models.Requirement{gte(models.StatKills, 5)},
		}),
		MaxAwardsPerUser: 1,
		IsActive:         true,
	}))
	f.progress("a", models.StatKills, 5, models.ModeIncrement)

	report, err := f.eng.SweepDynamicRules(f.ctx)
	require.NoError(t, err)
	require.Equal(t, 1, report.Awarded)
	minted := f.owned("a")
	require.Len(t, minted, 1)

	def, ok := f.eng.Catalog.Get(minted[0])
	require.True(t, ok)
	assert.Equal(t, "grinder", def.RuleID)
	assert.False(t, def.EarnableAt(f.now))

	assert.Empty(t, f.progress("b", models.StatKills, 5, models.ModeIncrement))
	assert.Empty(t, f.owned("b"))
	assert.Empty(t, f.eng.Catalog.ByStat(models.StatKills))
	assert.Empty(t, f.eng.GetAvailableBadges(true))

	retune, err := f.eng.RetuneDifficulty(f.ctx)
	require.NoError(t, err)
	assert.Zero(t, retune.Examined)

	// the cap still binds the user it was minted for
	f.now = f.now.Add(time.Hour)
	report, err = f.eng.SweepDynamicRules(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Capped)
	assert.Len(t, f.owned("a"), 1)
}

func TestSweepIncludesMembersWithoutStats(t *testing.T) {
	f := newFixture(t)
	f.register(badge("welcome", models.RarityCommon))
	_, err := f.eng.Award(f.ctx, "gifted", "welcome", false)
	require.NoError(t, err)

	total, err := f.eng.Stats.TotalEligibleUsers(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)

	require.NoError(t, f.eng.Rules.RegisterRule(f.ctx, models.DynamicRule{
		ID:               "collector",
		Condition:        "badgesEarned >= 1",
		Template:         datatypes.NewJSONType(models.BadgeTemplate{Name: "Collector"}),
		MaxAwardsPerUser: 1,
		IsActive:         true,
	}))
	report, err := f.eng.SweepDynamicRules(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Users)
	assert.Equal(t, 1, report.Awarded)
	assert.Len(t, f.owned("gifted"), 2)
}
