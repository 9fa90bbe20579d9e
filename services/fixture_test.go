package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"badge-engine/models"
	"badge-engine/utils"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type recordingLedger struct {
	mu       sync.Mutex
	xp       map[string]int64
	currency map[string]int64
	roles    map[string][]string
	titles   map[string]string
	grants   int
	failXP   bool
}

func newRecordingLedger() *recordingLedger {
	return &recordingLedger{
		xp:       map[string]int64{},
		currency: map[string]int64{},
		roles:    map[string][]string{},
		titles:   map[string]string{},
	}
}

func (l *recordingLedger) GrantXP(_ context.Context, userID string, amount int64, _ string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failXP {
		return errors.New("xp service down")
	}
	l.xp[userID] += amount
	l.grants++
	return nil
}

func (l *recordingLedger) GrantCurrency(_ context.Context, userID string, amount int64, _ string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.currency[userID] += amount
	l.grants++
	return nil
}

func (l *recordingLedger) GrantRole(_ context.Context, userID, role, _ string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.roles[userID] = append(l.roles[userID], role)
	l.grants++
	return nil
}

func (l *recordingLedger) GrantTitle(_ context.Context, userID, title, _ string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.titles[userID] = title
	l.grants++
	return nil
}

func (l *recordingLedger) XP(userID string) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.xp[userID]
}

func (l *recordingLedger) Currency(userID string) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.currency[userID]
}

type recordingSink struct {
	mu     sync.Mutex
	events []models.BadgeMetadata
	fail   bool
}

func (s *recordingSink) NotifyBadgeEarned(_ context.Context, _ string, meta models.BadgeMetadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("sink unavailable")
	}
	s.events = append(s.events, meta)
	return nil
}

func (s *recordingSink) BadgeIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, len(s.events))
	for i, e := range s.events {
		ids[i] = e.BadgeID
	}
	return ids
}

type fixture struct {
	t      *testing.T
	ctx    context.Context
	db     *gorm.DB
	eng    *Engine
	ledger *recordingLedger
	sink   *recordingSink
	now    time.Time
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := utils.OpenDatabase("sqlite", "file::memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// newFixture builds an engine over a private in-memory database with
// recording ledger and sink. The clock is frozen at a Wednesday noon UTC.
func newFixture(t *testing.T, mutate ...func(*Options)) *fixture {
	t.Helper()
	f := &fixture{
		t:      t,
		ctx:    context.Background(),
		db:     openTestDB(t),
		ledger: newRecordingLedger(),
		sink:   &recordingSink{},
		now:    time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC),
	}
	opts := Options{
		Ledger: f.ledger,
		Sink:   f.sink,
		Now:    func() time.Time { return f.now },
	}
	for _, m := range mutate {
		m(&opts)
	}
	f.eng = NewEngine(f.db, zap.NewNop(), opts)
	t.Cleanup(f.eng.Close)
	return f
}

func (f *fixture) register(defs ...models.BadgeDefinition) {
	f.t.Helper()
	for _, def := range defs {
		require.NoError(f.t, f.eng.Catalog.Register(f.ctx, def))
	}
}

func (f *fixture) progress(userID string, stat models.StatType, delta float64, mode models.ProgressMode) []string {
	f.t.Helper()
	res, err := f.eng.UpdateProgress(f.ctx, userID, stat, delta, mode)
	require.NoError(f.t, err)
	return res.Awarded
}

func (f *fixture) owned(userID string) []string {
	f.t.Helper()
	badges, err := f.eng.GetOwnedBadges(f.ctx, userID)
	require.NoError(f.t, err)
	ids := make([]string, len(badges))
	for i, b := range badges {
		ids[i] = b.Badge.ID
	}
	return ids
}

func gte(stat models.StatType, v float64) models.Requirement {
	return models.Requirement{StatType: stat, Operator: models.OpGTE, Value: v}
}

func badge(id string, rarity models.Rarity, reqs ...models.Requirement) models.BadgeDefinition {
	return models.BadgeDefinition{
		ID:           id,
		Name:         id,
		Category:     models.CategoryActivity,
		Rarity:       rarity,
		Requirements: reqs,
		IsActive:     true,
	}
}
