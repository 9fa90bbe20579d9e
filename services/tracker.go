package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"badge-engine/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ProgressResult lists the badges a single activity completed.
type ProgressResult struct {
	Awarded []string `json:"awarded"`
}

// Tracker turns activity events into per-badge progress and awards badges
// whose requirements all hold.
type Tracker struct {
	DB      *gorm.DB
	Log     *zap.Logger
	Catalog *Catalog
	Stats   *StatStore
	Awards  *AwardEngine
	Now     func() time.Time
}

func NewTracker(db *gorm.DB, log *zap.Logger, catalog *Catalog, stats *StatStore, awards *AwardEngine) *Tracker {
	return &Tracker{DB: db, Log: log, Catalog: catalog, Stats: stats, Awards: awards, Now: time.Now}
}

// UpdateProgress applies delta to stat for userID and awards every badge
// the activity completes.
func (t *Tracker) UpdateProgress(ctx context.Context, userID string, stat models.StatType, delta float64, mode models.ProgressMode) (ProgressResult, error) {
	var res ProgressResult
	if strings.TrimSpace(userID) == "" {
		return res, fmt.Errorf("%w: user id is required", ErrValidation)
	}
	if strings.TrimSpace(string(stat)) == "" {
		return res, fmt.Errorf("%w: stat type is required", ErrValidation)
	}
	if !mode.Valid() {
		return res, fmt.Errorf("%w: unknown mode %q", ErrValidation, mode)
	}

	now := t.Now()
	if err := t.Stats.Apply(ctx, userID, stat, delta, mode, now); err != nil {
		return res, err
	}

	candidates := t.Catalog.ByStat(stat)
	if len(candidates) == 0 {
		return res, nil
	}
	owned, err := t.Awards.OwnedIDs(ctx, userID)
	if err != nil {
		return res, err
	}

	for _, def := range candidates {
		if _, ok := owned[def.ID]; ok {
			continue
		}
		if !def.EarnableAt(now) || !hasAll(owned, def.Prerequisites) {
			continue
		}

		entry, err := t.applyProgress(ctx, userID, def.ID, stat, delta, mode)
		if err != nil {
			return res, err
		}
		statuses, err := t.evaluate(ctx, def, entry, now)
		if err != nil {
			return res, err
		}
		if !allSatisfied(statuses) {
			continue
		}

		award, err := t.Awards.AwardFrom(ctx, models.SourceProgress, userID, def.ID, true)
		if err != nil {
			return res, err
		}
		if award.Awarded {
			res.Awarded = append(res.Awarded, def.ID)
			owned[def.ID] = struct{}{}
		}
	}
	return res, nil
}

func (t *Tracker) applyProgress(ctx context.Context, userID, badgeID string, stat models.StatType, delta float64, mode models.ProgressMode) (models.ProgressEntry, error) {
	row := models.ProgressValue{UserID: userID, BadgeID: badgeID, StatType: stat, Value: delta}
	err := t.DB.WithContext(ctx).
		Clauses(upsertValue("progress_values", []string{"user_id", "badge_id", "stat_type"}, delta, mode)).
		Create(&row).Error
	if err != nil {
		return models.ProgressEntry{}, fmt.Errorf("apply progress %s/%s: %w", userID, badgeID, err)
	}
	return t.loadEntry(ctx, userID, badgeID)
}

func (t *Tracker) loadEntry(ctx context.Context, userID, badgeID string) (models.ProgressEntry, error) {
	var rows []models.ProgressValue
	err := t.DB.WithContext(ctx).Where("user_id = ? AND badge_id = ?", userID, badgeID).Find(&rows).Error
	if err != nil {
		return models.ProgressEntry{}, fmt.Errorf("load progress %s/%s: %w", userID, badgeID, err)
	}
	entry := models.ProgressEntry{UserID: userID, BadgeID: badgeID, Values: make(map[models.StatType]float64, len(rows))}
	for _, r := range rows {
		entry.Values[r.StatType] = r.Value
	}
	return entry, nil
}

// evaluate checks every requirement of def. Stats the entry has never seen
// count as 0; windowed requirements read the current period bucket.
func (t *Tracker) evaluate(ctx context.Context, def models.BadgeDefinition, entry models.ProgressEntry, now time.Time) ([]models.RequirementStatus, error) {
	out := make([]models.RequirementStatus, 0, len(def.Requirements))
	for _, req := range def.Requirements {
		current := entry.Value(req.StatType)
		if tf := req.Timeframe.Normalize(); tf != models.TimeframeAllTime {
			v, err := t.Stats.WindowValue(ctx, entry.UserID, req.StatType, tf, now)
			if err != nil {
				return nil, err
			}
			current = v
		}
		out = append(out, models.RequirementStatus{
			Requirement: req,
			Current:     current,
			Satisfied:   req.Satisfied(current),
		})
	}
	return out, nil
}

// GetProgress reports userID's standing toward badgeID.
func (t *Tracker) GetProgress(ctx context.Context, userID, badgeID string) (models.ProgressReport, error) {
	def, ok := t.Catalog.Get(badgeID)
	if !ok {
		return models.ProgressReport{}, fmt.Errorf("%w: %s", ErrUnknownBadge, badgeID)
	}
	entry, err := t.loadEntry(ctx, userID, badgeID)
	if err != nil {
		return models.ProgressReport{}, err
	}
	report := models.ProgressReport{Entry: entry}

	var rec models.UserBadge
	err = t.DB.WithContext(ctx).Where("user_id = ? AND badge_id = ?", userID, badgeID).First(&rec).Error
	switch {
	case err == nil:
		report.Owned = true
		earned := rec.EarnedAt
		report.EarnedAt = &earned
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return report, fmt.Errorf("load ownership %s/%s: %w", userID, badgeID, err)
	}

	report.Requirements, err = t.evaluate(ctx, def, entry, t.Now())
	if err != nil {
		return report, err
	}
	if report.Owned {
		for i := range report.Requirements {
			report.Requirements[i].Satisfied = true
		}
	}
	return report, nil
}

func hasAll(owned map[string]struct{}, ids []string) bool {
	for _, id := range ids {
		if _, ok := owned[id]; !ok {
			return false
		}
	}
	return true
}

func allSatisfied(statuses []models.RequirementStatus) bool {
	if len(statuses) == 0 {
		return false
	}
	for _, s := range statuses {
		if !s.Satisfied {
			return false
		}
	}
	return true
}
