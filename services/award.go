package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"badge-engine/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AwardReason explains the outcome of an award attempt.
type AwardReason string

const (
	ReasonAwarded         AwardReason = "awarded"
	ReasonAlreadyOwned    AwardReason = "already_owned"
	ReasonUnknownBadge    AwardReason = "unknown_badge"
	ReasonExclusiveHolder AwardReason = "exclusive_holder"
	ReasonHolderLimit     AwardReason = "holder_limit"
)

type AwardResult struct {
	Awarded  bool        `json:"awarded"`
	Reason   AwardReason `json:"reason"`
	EarnedAt *time.Time  `json:"earned_at,omitempty"`
}

// AwardEngine records badge ownership exactly once per (user, badge) and
// fans out rewards and notifications for the winning insert.
type AwardEngine struct {
	DB          *gorm.DB
	Log         *zap.Logger
	Catalog     *Catalog
	Dispatcher  *Dispatcher
	Collections *CollectionEngine // optional; set after construction
	Now         func() time.Time
}

func NewAwardEngine(db *gorm.DB, log *zap.Logger, catalog *Catalog, dispatcher *Dispatcher) *AwardEngine {
	return &AwardEngine{DB: db, Log: log, Catalog: catalog, Dispatcher: dispatcher, Now: time.Now}
}

// Award grants badgeID to userID on behalf of an operator.
func (a *AwardEngine) Award(ctx context.Context, userID, badgeID string, notify bool) (AwardResult, error) {
	return a.AwardFrom(ctx, models.SourceAdmin, userID, badgeID, notify)
}

// AwardFrom is Award with an explicit source recorded on the ownership row.
func (a *AwardEngine) AwardFrom(ctx context.Context, source models.AwardSource, userID, badgeID string, notify bool) (AwardResult, error) {
	if strings.TrimSpace(userID) == "" {
		return AwardResult{}, fmt.Errorf("%w: user id is required", ErrValidation)
	}
	def, ok := a.Catalog.Get(badgeID)
	if !ok {
		return AwardResult{Reason: ReasonUnknownBadge}, fmt.Errorf("%w: %s", ErrUnknownBadge, badgeID)
	}
	if def.IsSingleHolder() && def.ExclusiveHolderID != userID {
		a.Log.Warn("[AWARD] exclusive badge refused",
			zap.String("user_id", userID), zap.String("badge_id", badgeID))
		return AwardResult{Reason: ReasonExclusiveHolder}, nil
	}

	rec := models.UserBadge{
		ID:       uuid.NewString(),
		UserID:   userID,
		BadgeID:  badgeID,
		EarnedAt: a.Now().UTC(),
		Source:   source,
	}
	reason := ReasonAwarded
	err := a.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if def.MaxHolders > 0 {
			var holders int64
			if err := tx.Model(&models.UserBadge{}).Where("badge_id = ?", badgeID).Count(&holders).Error; err != nil {
				return err
			}
			if holders >= int64(def.MaxHolders) {
				reason = ReasonHolderLimit
				return nil
			}
		}
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "badge_id"}},
			DoNothing: true,
		}).Create(&rec)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			reason = ReasonAlreadyOwned
			return nil
		}
		return tx.Where("user_id = ? AND badge_id = ?", userID, badgeID).Delete(&models.ProgressValue{}).Error
	})
	if err != nil {
		return AwardResult{}, fmt.Errorf("award %s to %s: %w", badgeID, userID, err)
	}
	if reason != ReasonAwarded {
		return AwardResult{Reason: reason}, nil
	}

	a.Log.Info("[AWARD] badge awarded",
		zap.String("user_id", userID),
		zap.String("badge_id", badgeID),
		zap.String("source", string(source)))

	if a.Dispatcher != nil {
		category := models.RewardCategoryBadge
		a.Dispatcher.DispatchRewards(userID, def.Rewards, category, "badge "+badgeID)
		if notify {
			a.Dispatcher.Notify(userID, def.Metadata(rec.EarnedAt))
		}
	}
	if a.Collections != nil {
		if _, err := a.Collections.CheckCollections(ctx, userID); err != nil {
			a.Log.Error("[AWARD] collection check failed", zap.String("user_id", userID), zap.Error(err))
		}
	}

	earned := rec.EarnedAt
	return AwardResult{Awarded: true, Reason: ReasonAwarded, EarnedAt: &earned}, nil
}

// OwnedIDs returns the set of badge ids userID holds.
func (a *AwardEngine) OwnedIDs(ctx context.Context, userID string) (map[string]struct{}, error) {
	var ids []string
	err := a.DB.WithContext(ctx).Model(&models.UserBadge{}).
		Where("user_id = ?", userID).
		Pluck("badge_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("load owned badges for %s: %w", userID, err)
	}
	owned := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		owned[id] = struct{}{}
	}
	return owned, nil
}

// GetOwnedBadges returns userID's badges, rarest first.
func (a *AwardEngine) GetOwnedBadges(ctx context.Context, userID string) ([]models.OwnedBadge, error) {
	var recs []models.UserBadge
	if err := a.DB.WithContext(ctx).Where("user_id = ?", userID).Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("load badges for %s: %w", userID, err)
	}
	out := make([]models.OwnedBadge, 0, len(recs))
	for _, rec := range recs {
		def, ok := a.Catalog.Get(rec.BadgeID)
		if !ok {
			a.Log.Warn("[AWARD] owned badge missing from catalog",
				zap.String("user_id", userID), zap.String("badge_id", rec.BadgeID))
			continue
		}
		out = append(out, models.OwnedBadge{Badge: def, EarnedAt: rec.EarnedAt, Notified: rec.Notified})
	}
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := out[i].Badge.Rarity.Rank(), out[j].Badge.Rarity.Rank()
		if ri != rj {
			return ri > rj
		}
		if !out[i].EarnedAt.Equal(out[j].EarnedAt) {
			return out[i].EarnedAt.Before(out[j].EarnedAt)
		}
		return out[i].Badge.ID < out[j].Badge.ID
	})
	return out, nil
}

// HolderCount returns how many users own badgeID.
func (a *AwardEngine) HolderCount(ctx context.Context, badgeID string) (int64, error) {
	var n int64
	err := a.DB.WithContext(ctx).Model(&models.UserBadge{}).Where("badge_id = ?", badgeID).Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count holders of %s: %w", badgeID, err)
	}
	return n, nil
}

// RevokeBadge removes an ownership record. Rewards already granted stay.
func (a *AwardEngine) RevokeBadge(ctx context.Context, userID, badgeID string) (bool, error) {
	res := a.DB.WithContext(ctx).
		Where("user_id = ? AND badge_id = ?", userID, badgeID).
		Delete(&models.UserBadge{})
	if res.Error != nil {
		return false, fmt.Errorf("revoke %s from %s: %w", badgeID, userID, res.Error)
	}
	if res.RowsAffected > 0 {
		a.Log.Info("[AWARD] badge revoked", zap.String("user_id", userID), zap.String("badge_id", badgeID))
	}
	return res.RowsAffected > 0, nil
}
