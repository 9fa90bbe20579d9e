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

// CheckInResult reports a check-in and any badges it completed.
type CheckInResult struct {
	Streak  models.CheckInStreak `json:"streak"`
	Counted bool                 `json:"counted"`
	Awarded []string             `json:"awarded,omitempty"`
}

// StreakTracker keeps daily check-in streaks and feeds them to the tracker
// as the checkIns and consecutiveDays stats.
type StreakTracker struct {
	DB      *gorm.DB
	Log     *zap.Logger
	Tracker *Tracker
}

func NewStreakTracker(db *gorm.DB, log *zap.Logger, tracker *Tracker) *StreakTracker {
	return &StreakTracker{DB: db, Log: log, Tracker: tracker}
}

func utcDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// CheckIn records userID's check-in for the UTC day containing at. A second
// check-in on the same day changes nothing.
func (s *StreakTracker) CheckIn(ctx context.Context, userID string, at time.Time) (CheckInResult, error) {
	var res CheckInResult
	if strings.TrimSpace(userID) == "" {
		return res, fmt.Errorf("%w: user id is required", ErrValidation)
	}
	day := utcDay(at)

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var st models.CheckInStreak
		err := tx.Where("user_id = ?", userID).First(&st).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			st = models.CheckInStreak{UserID: userID}
		case err != nil:
			return err
		}

		last := utcDay(st.LastCheckIn)
		switch {
		case st.Total > 0 && last.Equal(day):
			res.Streak = st
			return nil
		case st.Total > 0 && last.AddDate(0, 0, 1).Equal(day):
			st.Current++
		default:
			st.Current = 1
		}
		if st.Current > st.Longest {
			st.Longest = st.Current
		}
		st.Total++
		st.LastCheckIn = day
		res.Streak = st
		res.Counted = true
		return tx.Save(&st).Error
	})
	if err != nil {
		return res, fmt.Errorf("check in %s: %w", userID, err)
	}
	if !res.Counted {
		return res, nil
	}

	for _, upd := range []struct {
		stat  models.StatType
		delta float64
		mode  models.ProgressMode
	}{
		{models.StatCheckIns, 1, models.ModeIncrement},
		{models.StatConsecutiveDays, float64(res.Streak.Current), models.ModeSet},
	} {
		pr, err := s.Tracker.UpdateProgress(ctx, userID, upd.stat, upd.delta, upd.mode)
		if err != nil {
			return res, err
		}
		res.Awarded = append(res.Awarded, pr.Awarded...)
	}
	s.Log.Info("[STREAK] check-in",
		zap.String("user_id", userID),
		zap.Int("current", res.Streak.Current),
		zap.Int("longest", res.Streak.Longest))
	return res, nil
}

// ResetBroken zeroes every streak whose last check-in is older than
// yesterday and returns how many were reset.
func (s *StreakTracker) ResetBroken(ctx context.Context, now time.Time) (int, error) {
	cutoff := utcDay(now).AddDate(0, 0, -1)
	var stale []models.CheckInStreak
	err := s.DB.WithContext(ctx).
		Where("current > 0 AND last_check_in < ?", cutoff).
		Find(&stale).Error
	if err != nil {
		return 0, fmt.Errorf("find broken streaks: %w", err)
	}

	reset := 0
	for _, st := range stale {
		err := s.DB.WithContext(ctx).Model(&models.CheckInStreak{}).
			Where("user_id = ?", st.UserID).
			Update("current", 0).Error
		if err != nil {
			s.Log.Error("[STREAK] reset failed", zap.String("user_id", st.UserID), zap.Error(err))
			continue
		}
		if _, err := s.Tracker.UpdateProgress(ctx, st.UserID, models.StatConsecutiveDays, 0, models.ModeSet); err != nil {
			s.Log.Error("[STREAK] progress reset failed", zap.String("user_id", st.UserID), zap.Error(err))
		}
		reset++
	}
	if reset > 0 {
		s.Log.Info("[STREAK] broken streaks reset", zap.Int("count", reset))
	}
	return reset, nil
}
