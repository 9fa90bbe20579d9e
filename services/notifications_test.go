package services

import (
	"testing"
	"time"

	"badge-engine/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAwardWritesNotificationOutbox(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.Sink = nil })
	f.register(badge("first_kill", models.RarityCommon, gte(models.StatKills, 1)))

	res, err := f.eng.Award(f.ctx, "u1", "first_kill", true)
	require.NoError(t, err)
	require.True(t, res.Awarded)
	f.eng.Dispatcher.Wait()

	events, err := f.eng.Notifications.Since(f.ctx, "u1", time.Time{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "first_kill", events[0].BadgeID)
	assert.Equal(t, models.RarityCommon, events[0].Rarity)

	var ub models.UserBadge
	require.NoError(t, f.db.Where("user_id = ? AND badge_id = ?", "u1", "first_kill").First(&ub).Error)
	assert.True(t, ub.Notified)

	cursor, err := f.eng.Notifications.latestCursor(f.ctx, "u1")
	require.NoError(t, err)
	events, err = f.eng.Notifications.Since(f.ctx, "u1", cursor)
	require.NoError(t, err)
	assert.Empty(t, events)

	cursor, err = f.eng.Notifications.latestCursor(f.ctx, "nobody")
	require.NoError(t, err)
	assert.True(t, cursor.IsZero())
}

func TestSilentAwardSkipsNotification(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.Sink = nil })
	f.register(badge("quiet", models.RarityCommon))

	_, err := f.eng.Award(f.ctx, "u1", "quiet", false)
	require.NoError(t, err)
	f.eng.Dispatcher.Wait()

	events, err := f.eng.Notifications.Since(f.ctx, "u1", time.Time{})
	require.NoError(t, err)
	assert.Empty(t, events)
}
