package services

import (
	"context"
	"testing"

	"badge-engine/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestXPForNextLevel(t *testing.T) {
	assert.Equal(t, int64(100), xpForNextLevel(0))
	assert.Equal(t, int64(100), xpForNextLevel(1))
	assert.Equal(t, int64(229), xpForNextLevel(2))
}

func TestDetermineRank(t *testing.T) {
	cases := map[int]int{1: 1, 9: 1, 10: 2, 24: 2, 25: 3, 50: 4, 99: 4, 100: 5, 250: 5}
	for level, rank := range cases {
		assert.Equal(t, rank, determineRank(level), "level %d", level)
	}
}

func TestLedgerGrants(t *testing.T) {
	db := openTestDB(t)
	ledger := NewProgressionLedger(db, zap.NewNop())
	ctx := WithRewardCategory(context.Background(), models.RewardCategoryBadge)

	require.NoError(t, ledger.GrantXP(ctx, "u1", 250, "badge first_kill"))
	require.NoError(t, ledger.GrantCurrency(ctx, "u1", 40, "badge first_kill"))
	require.NoError(t, ledger.GrantCurrency(context.Background(), "u1", 2, "manual"))
	require.NoError(t, ledger.GrantRole(ctx, "u1", "veteran", "badge first_kill"))
	require.NoError(t, ledger.GrantTitle(ctx, "u1", "The Reaper", "badge first_kill"))

	prog, err := ledger.Progress(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(250), prog.TotalXP)
	assert.Equal(t, 2, prog.Level)
	assert.Equal(t, 1, prog.Rank)
	assert.NotNil(t, prog.LastLevelUpAt)
	assert.Equal(t, int64(42), prog.Currency)
	assert.Equal(t, "The Reaper", prog.Title)

	var rewards []models.Reward
	require.NoError(t, db.Where("user_id = ?", "u1").Order("created_at ASC").Find(&rewards).Error)
	require.Len(t, rewards, 5)

	byType := map[models.RewardType]int{}
	categories := map[models.RewardCategory]int{}
	for _, r := range rewards {
		byType[r.Type]++
		categories[r.Category]++
	}
	assert.Equal(t, map[models.RewardType]int{
		models.RewardTypeXP: 1, models.RewardTypeCurrency: 2, models.RewardTypeRole: 1, models.RewardTypeTitle: 1,
	}, byType)
	assert.Equal(t, 4, categories[models.RewardCategoryBadge])
	assert.Equal(t, 1, categories[models.RewardCategoryOther])
}

func TestLedgerRankUp(t *testing.T) {
	db := openTestDB(t)
	ledger := NewProgressionLedger(db, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, ledger.GrantXP(ctx, "grinder", 5000, "bulk"))
	prog, err := ledger.Progress(ctx, "grinder")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, prog.Level, 10)
	assert.Equal(t, determineRank(prog.Level), prog.Rank)
	assert.NotNil(t, prog.LastRankUpAt)
}

func TestProgressCreatesRecordOnce(t *testing.T) {
	db := openTestDB(t)
	ledger := NewProgressionLedger(db, zap.NewNop())
	ctx := context.Background()

	a, err := ledger.Progress(ctx, "u1")
	require.NoError(t, err)
	b, err := ledger.Progress(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, a.ID, b.ID)
	assert.Equal(t, 1, a.Level)

	var n int64
	require.NoError(t, db.Model(&models.UserProgress{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}
