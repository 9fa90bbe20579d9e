package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"badge-engine/expr"
	"badge-engine/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SweepReport summarizes one pass of the dynamic rule engine.
type SweepReport struct {
	Users     int `json:"users"`
	Evaluated int `json:"evaluated"`
	Cooldown  int `json:"cooldown"`
	Capped    int `json:"capped"`
	Triggered int `json:"triggered"`
	Awarded   int `json:"awarded"`
	Errors    int `json:"errors"`
}

type sweepCounters struct {
	evaluated, cooldown, capped, triggered, awarded, errors atomic.Int64
}

type compiledRule struct {
	rule    models.DynamicRule
	program *expr.Program
}

// RuleEngine evaluates dynamic conditions for every user on a schedule and
// mints a badge each time one fires.
type RuleEngine struct {
	DB          *gorm.DB
	Log         *zap.Logger
	Catalog     *Catalog
	Awards      *AwardEngine
	Stats       *StatStore
	State       RuleStateStore
	Parallelism int
	Now         func() time.Time

	mu    sync.RWMutex
	rules map[string]compiledRule
}

func NewRuleEngine(db *gorm.DB, log *zap.Logger, catalog *Catalog, awards *AwardEngine, stats *StatStore, state RuleStateStore) *RuleEngine {
	if state == nil {
		state = &GormRuleStateStore{DB: db}
	}
	return &RuleEngine{
		DB:          db,
		Log:         log,
		Catalog:     catalog,
		Awards:      awards,
		Stats:       stats,
		State:       state,
		Parallelism: 8,
		Now:         time.Now,
		rules:       make(map[string]compiledRule),
	}
}

// Load compiles every stored rule. Rules whose condition no longer parses
// are logged and left out.
func (e *RuleEngine) Load(ctx context.Context) error {
	var rows []models.DynamicRule
	if err := e.DB.WithContext(ctx).Find(&rows).Error; err != nil {
		return fmt.Errorf("load rules: %w", err)
	}
	table := make(map[string]compiledRule, len(rows))
	for _, r := range rows {
		prog, err := expr.Parse(r.Condition)
		if err != nil {
			e.Log.Error("[RULES] stored rule does not compile", zap.String("rule_id", r.ID), zap.Error(err))
			continue
		}
		table[r.ID] = compiledRule{rule: r, program: prog}
	}
	e.mu.Lock()
	e.rules = table
	e.mu.Unlock()
	return nil
}

// RegisterRule validates and compiles rule, then stores it.
func (e *RuleEngine) RegisterRule(ctx context.Context, rule models.DynamicRule) error {
	if err := rule.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	prog, err := expr.Parse(rule.Condition)
	if err != nil {
		return fmt.Errorf("%w: rule %s: %v", ErrValidation, rule.ID, err)
	}
	err = e.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "condition", "template", "cooldown_minutes", "max_awards_per_user", "is_active", "updated_at"}),
	}).Create(&rule).Error
	if err != nil {
		return fmt.Errorf("upsert rule %s: %w", rule.ID, err)
	}
	e.mu.Lock()
	e.rules[rule.ID] = compiledRule{rule: rule, program: prog}
	e.mu.Unlock()
	return nil
}

// SetActive toggles a rule without deleting its state.
func (e *RuleEngine) SetActive(ctx context.Context, ruleID string, active bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	cr, ok := e.rules[ruleID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRule, ruleID)
	}
	err := e.DB.WithContext(ctx).Model(&models.DynamicRule{}).Where("id = ?", ruleID).Update("is_active", active).Error
	if err != nil {
		return fmt.Errorf("update rule %s: %w", ruleID, err)
	}
	cr.rule.IsActive = active
	e.rules[ruleID] = cr
	return nil
}

// List returns every loaded rule ordered by id.
func (e *RuleEngine) List() []models.DynamicRule {
	e.mu.RLock()
	out := make([]models.DynamicRule, 0, len(e.rules))
	for _, cr := range e.rules {
		out = append(out, cr.rule)
	}
	e.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (e *RuleEngine) activeRules() []compiledRule {
	e.mu.RLock()
	out := make([]compiledRule, 0, len(e.rules))
	for _, cr := range e.rules {
		if cr.rule.IsActive {
			out = append(out, cr)
		}
	}
	e.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].rule.ID < out[j].rule.ID })
	return out
}

// Sweep evaluates every active rule for every known user. A failure for one
// user is counted and does not stop the others.
func (e *RuleEngine) Sweep(ctx context.Context) (SweepReport, error) {
	var report SweepReport
	rules := e.activeRules()
	if len(rules) == 0 {
		return report, nil
	}
	users, err := e.Stats.Users(ctx)
	if err != nil {
		return report, err
	}
	report.Users = len(users)

	now := e.Now()
	var c sweepCounters
	g, gctx := errgroup.WithContext(ctx)
	limit := e.Parallelism
	if limit < 1 {
		limit = 1
	}
	g.SetLimit(limit)
	for _, userID := range users {
		userID := userID
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			e.sweepUser(gctx, userID, rules, now, &c)
			return nil
		})
	}
	_ = g.Wait()

	report.Evaluated = int(c.evaluated.Load())
	report.Cooldown = int(c.cooldown.Load())
	report.Capped = int(c.capped.Load())
	report.Triggered = int(c.triggered.Load())
	report.Awarded = int(c.awarded.Load())
	report.Errors = int(c.errors.Load())

	e.Log.Info("[SWEEP] finished",
		zap.Int("users", report.Users),
		zap.Int("evaluated", report.Evaluated),
		zap.Int("triggered", report.Triggered),
		zap.Int("awarded", report.Awarded),
		zap.Int("errors", report.Errors))
	return report, ctx.Err()
}

func (e *RuleEngine) sweepUser(ctx context.Context, userID string, rules []compiledRule, now time.Time, c *sweepCounters) {
	var vars expr.Context
	for _, cr := range rules {
		if ctx.Err() != nil {
			return
		}
		st, err := e.State.Get(ctx, userID, cr.rule.ID)
		if err != nil {
			e.Log.Error("[SWEEP] rule state unavailable", zap.String("user_id", userID), zap.String("rule_id", cr.rule.ID), zap.Error(err))
			c.errors.Add(1)
			continue
		}
		if !st.LastEvaluatedAt.IsZero() && now.Sub(st.LastEvaluatedAt) < cr.rule.Cooldown() {
			c.cooldown.Add(1)
			continue
		}
		if st.AwardCount >= cr.rule.MaxAwardsPerUser {
			c.capped.Add(1)
			continue
		}

		if vars == nil {
			vars, err = e.buildContext(ctx, userID, now)
			if err != nil {
				e.Log.Error("[SWEEP] context build failed", zap.String("user_id", userID), zap.Error(err))
				c.errors.Add(1)
				return
			}
		}

		fired := e.evaluate(cr, userID, vars)
		c.evaluated.Add(1)
		st.UserID, st.RuleID = userID, cr.rule.ID
		st.LastEvaluatedAt = now
		if fired {
			st.AwardCount++
		}
		if err := e.State.Put(ctx, st); err != nil {
			e.Log.Error("[SWEEP] rule state not saved", zap.String("user_id", userID), zap.String("rule_id", cr.rule.ID), zap.Error(err))
			c.errors.Add(1)
			continue
		}
		if !fired {
			continue
		}
		c.triggered.Add(1)

		awarded, err := e.mint(ctx, cr.rule, userID, now)
		if err != nil {
			e.Log.Error("[SWEEP] mint failed", zap.String("user_id", userID), zap.String("rule_id", cr.rule.ID), zap.Error(err))
			c.errors.Add(1)
			continue
		}
		if awarded {
			c.awarded.Add(1)
		}
	}
}

// evaluate runs the rule condition. Any failure counts as false.
func (e *RuleEngine) evaluate(cr compiledRule, userID string, vars expr.Context) (fired bool) {
	defer func() {
		if r := recover(); r != nil {
			e.Log.Error("[SWEEP] condition panicked", zap.String("rule_id", cr.rule.ID), zap.Any("panic", r))
			fired = false
		}
	}()
	ok, err := cr.program.Eval(vars)
	if err != nil {
		e.Log.Warn("[SWEEP] condition failed",
			zap.String("rule_id", cr.rule.ID),
			zap.String("user_id", userID),
			zap.Error(err))
		return false
	}
	return ok
}

func (e *RuleEngine) mint(ctx context.Context, rule models.DynamicRule, userID string, now time.Time) (bool, error) {
	id := fmt.Sprintf("%s-%d-%s", rule.ID, now.Unix(), uuid.NewString()[:8])
	def := rule.Template.Data().Materialize(id)
	def.RuleID = rule.ID
	if err := e.Catalog.Register(ctx, def); err != nil {
		return false, err
	}
	res, err := e.Awards.AwardFrom(ctx, models.SourceRule, userID, id, true)
	if err != nil {
		return false, err
	}
	return res.Awarded, nil
}

// buildContext assembles the variables a condition can read.
func (e *RuleEngine) buildContext(ctx context.Context, userID string, now time.Time) (expr.Context, error) {
	stats, err := e.Stats.Snapshot(ctx, userID)
	if err != nil {
		return nil, err
	}
	owned, err := e.Awards.OwnedIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	vars := make(expr.Context, len(models.StatTypes)+len(stats)+4)
	for _, st := range models.StatTypes {
		vars[string(st)] = 0.0
	}
	for st, v := range stats {
		vars[string(st)] = v
	}
	vars[string(models.StatBadgesEarned)] = float64(len(owned))
	vars["isWeekend"] = now.Weekday() == time.Saturday || now.Weekday() == time.Sunday
	vars["hour"] = float64(now.Hour())
	vars["dayOfWeek"] = float64(now.Weekday())
	vars["userId"] = userID
	return vars, nil
}
