package services

import (
	"context"
	"time"

	"badge-engine/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Options configures the collaborators an Engine does not build itself.
// Nil fields fall back to the local implementations.
type Options struct {
	Ledger           RewardLedger
	Sink             NotificationSink
	Population       PopulationProvider
	SeasonSource     SeasonSource
	RuleState        RuleStateStore
	SeasonTemplates  []SeasonTemplate
	SweepParallelism int
	Now              func() time.Time
}

// Engine wires every badge component together and is the single entry
// point used by the HTTP layer, the CLI and the scheduler.
type Engine struct {
	DB  *gorm.DB
	Log *zap.Logger

	Catalog       *Catalog
	Stats         *StatStore
	Dispatcher    *Dispatcher
	Awards        *AwardEngine
	Tracker       *Tracker
	Collections   *CollectionEngine
	Rules         *RuleEngine
	Tuner         *Tuner
	Seasons       *SeasonManager
	Streaks       *StreakTracker
	Ledger        *ProgressionLedger
	Notifications *NotificationService
}

func NewEngine(db *gorm.DB, log *zap.Logger, opts Options) *Engine {
	e := &Engine{DB: db, Log: log}
	e.Ledger = NewProgressionLedger(db, log)
	e.Notifications = NewNotificationService(db, log)

	var ledger RewardLedger = e.Ledger
	if opts.Ledger != nil {
		ledger = opts.Ledger
	}
	var sink NotificationSink = e.Notifications
	if opts.Sink != nil {
		sink = opts.Sink
	}

	e.Catalog = NewCatalog(db, log)
	e.Stats = NewStatStore(db, log)
	e.Dispatcher = NewDispatcher(db, log, ledger, sink)
	e.Awards = NewAwardEngine(db, log, e.Catalog, e.Dispatcher)
	e.Collections = NewCollectionEngine(db, log, e.Catalog, e.Awards, e.Dispatcher)
	e.Awards.Collections = e.Collections
	e.Tracker = NewTracker(db, log, e.Catalog, e.Stats, e.Awards)
	e.Rules = NewRuleEngine(db, log, e.Catalog, e.Awards, e.Stats, opts.RuleState)
	if opts.SweepParallelism > 0 {
		e.Rules.Parallelism = opts.SweepParallelism
	}

	var population PopulationProvider = e.Stats
	if opts.Population != nil {
		population = opts.Population
	}
	e.Tuner = NewTuner(e.Catalog, e.Awards, population, log)
	e.Seasons = NewSeasonManager(e.Catalog, opts.SeasonSource, opts.SeasonTemplates, log)
	e.Streaks = NewStreakTracker(db, log, e.Tracker)

	if opts.Now != nil {
		e.Awards.Now = opts.Now
		e.Tracker.Now = opts.Now
		e.Rules.Now = opts.Now
		e.Seasons.Now = opts.Now
	}
	return e
}

// Load reads the catalog, collections and rules from storage.
func (e *Engine) Load(ctx context.Context) error {
	if err := e.Catalog.Load(ctx); err != nil {
		return err
	}
	if err := e.Collections.Load(ctx); err != nil {
		return err
	}
	return e.Rules.Load(ctx)
}

// Close waits for in-flight reward and notification deliveries.
func (e *Engine) Close() {
	e.Dispatcher.Wait()
}

func (e *Engine) UpdateProgress(ctx context.Context, userID string, stat models.StatType, delta float64, mode models.ProgressMode) (ProgressResult, error) {
	return e.Tracker.UpdateProgress(ctx, userID, stat, delta, mode)
}

func (e *Engine) Award(ctx context.Context, userID, badgeID string, notify bool) (AwardResult, error) {
	return e.Awards.Award(ctx, userID, badgeID, notify)
}

func (e *Engine) GetOwnedBadges(ctx context.Context, userID string) ([]models.OwnedBadge, error) {
	return e.Awards.GetOwnedBadges(ctx, userID)
}

// GetAvailableBadges is the public catalog, least rare first.
func (e *Engine) GetAvailableBadges(includeSecret bool) []models.BadgeDefinition {
	return e.Catalog.ListActive(includeSecret, RarityAscending)
}

func (e *Engine) GetProgress(ctx context.Context, userID, badgeID string) (models.ProgressReport, error) {
	return e.Tracker.GetProgress(ctx, userID, badgeID)
}

func (e *Engine) CheckCollections(ctx context.Context, userID string) ([]string, error) {
	return e.Collections.CheckCollections(ctx, userID)
}

func (e *Engine) SweepDynamicRules(ctx context.Context) (SweepReport, error) {
	return e.Rules.Sweep(ctx)
}

func (e *Engine) RetuneDifficulty(ctx context.Context) (RetuneReport, error) {
	return e.Tuner.Retune(ctx)
}

func (e *Engine) OnSeasonChange(ctx context.Context, seasonID string) (bool, error) {
	return e.Seasons.OnSeasonChange(ctx, seasonID)
}

func (e *Engine) CheckIn(ctx context.Context, userID string, at time.Time) (CheckInResult, error) {
	return e.Streaks.CheckIn(ctx, userID, at)
}

func (e *Engine) RevokeBadge(ctx context.Context, userID, badgeID string) (bool, error) {
	return e.Awards.RevokeBadge(ctx, userID, badgeID)
}
