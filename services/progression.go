package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"badge-engine/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LevelConfig: XP needed for *next* level (e.g., level 1 → 2 needs BaseXPPerLevel * 1^1.2)
const BaseXPPerLevel = 100

// xpForNextLevel returns XP required to reach level+1 from current level
func xpForNextLevel(currentLevel int) int64 {
	if currentLevel < 1 {
		currentLevel = 1
	}
	// L_n = floor(BaseXPPerLevel * n^1.2)
	return int64(float64(BaseXPPerLevel) * math.Pow(float64(currentLevel), 1.2))
}

// RankThresholds: levels required before rank-up
var RankThresholds = map[int]int{ // rank → min level
	1: 1,   // Bronze (start)
	2: 10,  // Silver
	3: 25,  // Gold
	4: 50,  // Platinum
	5: 100, // Diamond
}

func determineRank(level int) int {
	for rank := 5; rank >= 1; rank-- {
		if level >= RankThresholds[rank] {
			return rank
		}
	}
	return 1
}

// ProgressionLedger is the local RewardLedger: XP drives level and rank,
// currency accumulates on the member's row, and every grant leaves a
// Reward row behind.
type ProgressionLedger struct {
	DB  *gorm.DB
	Log *zap.Logger
}

func NewProgressionLedger(db *gorm.DB, log *zap.Logger) *ProgressionLedger {
	return &ProgressionLedger{DB: db, Log: log}
}

// ensureRecord creates the member's row if missing (idempotent under races)
// and returns it locked for update.
func ensureRecord(tx *gorm.DB, externalUserID string) (models.UserProgress, error) {
	seed := models.UserProgress{
		ID:             uuid.NewString(),
		ExternalUserID: externalUserID,
		Level:          1,
		Rank:           1,
	}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "external_user_id"}},
		DoNothing: true,
	}).Create(&seed).Error
	if err != nil {
		return models.UserProgress{}, err
	}
	var prog models.UserProgress
	err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("external_user_id = ?", externalUserID).
		First(&prog).Error
	return prog, err
}

// Progress returns the member's ledger row, creating it on first use.
func (l *ProgressionLedger) Progress(ctx context.Context, externalUserID string) (models.UserProgress, error) {
	var prog models.UserProgress
	err := l.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		prog, err = ensureRecord(tx, externalUserID)
		return err
	})
	if err != nil {
		return prog, fmt.Errorf("progress record for %s: %w", externalUserID, err)
	}
	return prog, nil
}

// GrantXP atomically updates XP, level, rank
func (l *ProgressionLedger) GrantXP(ctx context.Context, externalUserID string, xp int64, reason string) error {
	var prog models.UserProgress
	err := l.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		prog, err = ensureRecord(tx, externalUserID)
		if err != nil {
			return err
		}
		oldRank := prog.Rank
		prog.TotalXP += xp

		// Level-up logic: accumulate until enough for next level
		for prog.TotalXP >= int64(BaseXPPerLevel)*int64(prog.Level)+xpForNextLevel(prog.Level) {
			prog.Level++
			now := time.Now()
			prog.LastLevelUpAt = &now
		}

		if newRank := determineRank(prog.Level); newRank > oldRank {
			now := time.Now()
			prog.Rank = newRank
			prog.LastRankUpAt = &now
		}

		if err := tx.Save(&prog).Error; err != nil {
			return err
		}
		return tx.Create(newReward(ctx, externalUserID, models.RewardTypeXP, xp, "", reason)).Error
	})
	if err != nil {
		return fmt.Errorf("grant %d xp to %s: %w", xp, externalUserID, err)
	}
	l.Log.Info("🎮 [LEDGER] XP awarded",
		zap.String("user_id", externalUserID),
		zap.Int64("total_xp", prog.TotalXP),
		zap.Int("level", prog.Level),
		zap.Int("rank", prog.Rank),
		zap.String("reason", reason))
	return nil
}

func (l *ProgressionLedger) GrantCurrency(ctx context.Context, externalUserID string, amount int64, reason string) error {
	err := l.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := ensureRecord(tx, externalUserID); err != nil {
			return err
		}
		err := tx.Model(&models.UserProgress{}).
			Where("external_user_id = ?", externalUserID).
			Update("currency", gorm.Expr("currency + ?", amount)).Error
		if err != nil {
			return err
		}
		return tx.Create(newReward(ctx, externalUserID, models.RewardTypeCurrency, amount, "", reason)).Error
	})
	if err != nil {
		return fmt.Errorf("grant %d currency to %s: %w", amount, externalUserID, err)
	}
	l.Log.Info("💰 [LEDGER] currency awarded",
		zap.String("user_id", externalUserID), zap.Int64("amount", amount), zap.String("reason", reason))
	return nil
}

// GrantRole records the role grant; the chat platform applies it from the
// reward feed.
func (l *ProgressionLedger) GrantRole(ctx context.Context, externalUserID, role, reason string) error {
	err := l.DB.WithContext(ctx).Create(newReward(ctx, externalUserID, models.RewardTypeRole, 0, role, reason)).Error
	if err != nil {
		return fmt.Errorf("grant role %s to %s: %w", role, externalUserID, err)
	}
	l.Log.Info("🏷️ [LEDGER] role granted",
		zap.String("user_id", externalUserID), zap.String("role", role), zap.String("reason", reason))
	return nil
}

func (l *ProgressionLedger) GrantTitle(ctx context.Context, externalUserID, title, reason string) error {
	err := l.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := ensureRecord(tx, externalUserID); err != nil {
			return err
		}
		err := tx.Model(&models.UserProgress{}).
			Where("external_user_id = ?", externalUserID).
			Update("title", title).Error
		if err != nil {
			return err
		}
		return tx.Create(newReward(ctx, externalUserID, models.RewardTypeTitle, 0, title, reason)).Error
	})
	if err != nil {
		return fmt.Errorf("grant title %s to %s: %w", title, externalUserID, err)
	}
	return nil
}

func newReward(ctx context.Context, userID string, typ models.RewardType, amount int64, item, reason string) *models.Reward {
	return &models.Reward{
		ID:       uuid.NewString(),
		UserID:   userID,
		Type:     typ,
		Category: RewardCategoryFrom(ctx),
		Amount:   amount,
		Item:     item,
		Reason:   reason,
	}
}

type rewardCategoryKey struct{}

// WithRewardCategory tags grants made with ctx so the ledger can file them.
func WithRewardCategory(ctx context.Context, category models.RewardCategory) context.Context {
	return context.WithValue(ctx, rewardCategoryKey{}, category)
}

func RewardCategoryFrom(ctx context.Context) models.RewardCategory {
	if c, ok := ctx.Value(rewardCategoryKey{}).(models.RewardCategory); ok {
		return c
	}
	return models.RewardCategoryOther
}
