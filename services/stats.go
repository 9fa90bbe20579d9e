package services

import (
	"context"
	"fmt"
	"time"

	"badge-engine/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StatStore keeps each user's all-time stat totals and the daily, weekly and
// monthly buckets windowed requirements are evaluated against.
type StatStore struct {
	DB  *gorm.DB
	Log *zap.Logger
}

func NewStatStore(db *gorm.DB, log *zap.Logger) *StatStore {
	return &StatStore{DB: db, Log: log}
}

// Apply records one activity for userID at the given instant.
func (s *StatStore) Apply(ctx context.Context, userID string, stat models.StatType, delta float64, mode models.ProgressMode, at time.Time) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		snapshot := models.UserStat{UserID: userID, StatType: stat, Value: delta}
		err := tx.Clauses(upsertValue("user_stats", []string{"user_id", "stat_type"}, delta, mode)).
			Create(&snapshot).Error
		if err != nil {
			return fmt.Errorf("apply stat %s for %s: %w", stat, userID, err)
		}
		for _, tf := range models.Windowed {
			bucket := models.UserStatWindow{
				UserID:      userID,
				StatType:    stat,
				Timeframe:   tf,
				PeriodStart: tf.PeriodStart(at),
				Value:       delta,
			}
			err := tx.Clauses(upsertValue("user_stat_windows", []string{"user_id", "stat_type", "timeframe", "period_start"}, delta, mode)).
				Create(&bucket).Error
			if err != nil {
				return fmt.Errorf("apply %s window of %s for %s: %w", tf, stat, userID, err)
			}
		}
		return nil
	})
}

// upsertValue builds the ON CONFLICT clause shared by every accumulator
// table: set overwrites, increment adds to the stored value atomically.
func upsertValue(table string, keys []string, delta float64, mode models.ProgressMode) clause.OnConflict {
	cols := make([]clause.Column, len(keys))
	for i, k := range keys {
		cols[i] = clause.Column{Name: k}
	}
	if mode == models.ModeIncrement {
		return clause.OnConflict{
			Columns: cols,
			DoUpdates: clause.Assignments(map[string]interface{}{
				"value":      gorm.Expr(table+".value + ?", delta),
				"updated_at": time.Now(),
			}),
		}
	}
	return clause.OnConflict{
		Columns:   cols,
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}
}

// Snapshot returns every all-time stat recorded for userID.
func (s *StatStore) Snapshot(ctx context.Context, userID string) (map[models.StatType]float64, error) {
	var rows []models.UserStat
	if err := s.DB.WithContext(ctx).Where("user_id = ?", userID).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load stats for %s: %w", userID, err)
	}
	out := make(map[models.StatType]float64, len(rows))
	for _, r := range rows {
		out[r.StatType] = r.Value
	}
	return out, nil
}

// WindowValue returns the value of stat inside the tf period containing at.
func (s *StatStore) WindowValue(ctx context.Context, userID string, stat models.StatType, tf models.Timeframe, at time.Time) (float64, error) {
	var rows []models.UserStatWindow
	err := s.DB.WithContext(ctx).
		Where("user_id = ? AND stat_type = ? AND timeframe = ? AND period_start = ?", userID, stat, tf, tf.PeriodStart(at)).
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return 0, fmt.Errorf("load %s window of %s for %s: %w", tf, stat, userID, err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].Value, nil
}

// memberIDs selects every user with a recorded stat or an owned badge.
// Members granted badges by hand never touch user_stats.
const memberIDs = "SELECT user_id FROM user_stats UNION SELECT user_id FROM user_badges"

// Users lists every known member, ordered by id.
func (s *StatStore) Users(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.DB.WithContext(ctx).Raw(memberIDs + " ORDER BY user_id").Scan(&ids).Error
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return ids, nil
}

// TotalEligibleUsers implements PopulationProvider.
func (s *StatStore) TotalEligibleUsers(ctx context.Context) (int64, error) {
	var n int64
	err := s.DB.WithContext(ctx).Raw("SELECT COUNT(*) FROM (" + memberIDs + ") AS members").Scan(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

// PruneWindows drops buckets whose period started before cutoff.
func (s *StatStore) PruneWindows(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.DB.WithContext(ctx).Where("period_start < ?", cutoff).Delete(&models.UserStatWindow{})
	if res.Error != nil {
		return 0, fmt.Errorf("prune stat windows: %w", res.Error)
	}
	return res.RowsAffected, nil
}
