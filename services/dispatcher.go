package services

import (
	"context"
	"sync"
	"time"

	"badge-engine/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Dispatcher delivers rewards and notifications off the caller's path.
// Every channel is attempted on its own; failures are logged and dropped.
type Dispatcher struct {
	DB      *gorm.DB
	Log     *zap.Logger
	Ledger  RewardLedger
	Sink    NotificationSink
	Timeout time.Duration

	wg sync.WaitGroup
}

func NewDispatcher(db *gorm.DB, log *zap.Logger, ledger RewardLedger, sink NotificationSink) *Dispatcher {
	return &Dispatcher{DB: db, Log: log, Ledger: ledger, Sink: sink, Timeout: 30 * time.Second}
}

// DispatchRewards grants each non-empty channel of r to userID.
func (d *Dispatcher) DispatchRewards(userID string, r models.Rewards, category models.RewardCategory, reason string) {
	if d.Ledger == nil || r.IsZero() {
		return
	}
	tag := func(fn func(ctx context.Context) error) func(ctx context.Context) error {
		return func(ctx context.Context) error { return fn(WithRewardCategory(ctx, category)) }
	}
	if r.XP > 0 {
		d.run("xp", userID, tag(func(ctx context.Context) error {
			return d.Ledger.GrantXP(ctx, userID, r.XP, reason)
		}))
	}
	if r.Currency > 0 {
		d.run("currency", userID, tag(func(ctx context.Context) error {
			return d.Ledger.GrantCurrency(ctx, userID, r.Currency, reason)
		}))
	}
	if r.Role != "" {
		d.run("role", userID, tag(func(ctx context.Context) error {
			return d.Ledger.GrantRole(ctx, userID, r.Role, reason)
		}))
	}
	if tg, ok := d.Ledger.(TitleGranter); ok && r.Title != "" {
		d.run("title", userID, tag(func(ctx context.Context) error {
			return tg.GrantTitle(ctx, userID, r.Title, reason)
		}))
	}
	d.Log.Debug("[REWARD] dispatched",
		zap.String("user_id", userID),
		zap.String("category", string(category)),
		zap.String("reason", reason))
}

// Notify hands a badge-earned event to the sink and marks the ownership row
// notified once the sink accepts it.
func (d *Dispatcher) Notify(userID string, meta models.BadgeMetadata) {
	if d.Sink == nil {
		return
	}
	d.run("notify", userID, func(ctx context.Context) error {
		if err := d.Sink.NotifyBadgeEarned(ctx, userID, meta); err != nil {
			return err
		}
		return d.DB.WithContext(ctx).Model(&models.UserBadge{}).
			Where("user_id = ? AND badge_id = ?", userID, meta.BadgeID).
			Update("notified", true).Error
	})
}

func (d *Dispatcher) run(channel, userID string, fn func(ctx context.Context) error) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		timeout := d.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			d.Log.Error("[REWARD] channel failed",
				zap.String("channel", channel),
				zap.String("user_id", userID),
				zap.Error(err))
		}
	}()
}

// Wait blocks until every in-flight delivery has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
