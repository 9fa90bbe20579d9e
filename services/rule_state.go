package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"badge-engine/models"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RuleStateStore persists per (user, rule) cooldown and cap bookkeeping.
type RuleStateStore interface {
	Get(ctx context.Context, userID, ruleID string) (models.RuleState, error)
	Put(ctx context.Context, st models.RuleState) error
}

// GormRuleStateStore keeps rule state in the rule_states table.
type GormRuleStateStore struct {
	DB *gorm.DB
}

func (s *GormRuleStateStore) Get(ctx context.Context, userID, ruleID string) (models.RuleState, error) {
	var st models.RuleState
	err := s.DB.WithContext(ctx).Where("user_id = ? AND rule_id = ?", userID, ruleID).First(&st).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.RuleState{UserID: userID, RuleID: ruleID}, nil
	}
	if err != nil {
		return st, fmt.Errorf("load rule state %s/%s: %w", ruleID, userID, err)
	}
	return st, nil
}

func (s *GormRuleStateStore) Put(ctx context.Context, st models.RuleState) error {
	err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "rule_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_evaluated_at", "award_count", "updated_at"}),
	}).Create(&st).Error
	if err != nil {
		return fmt.Errorf("save rule state %s/%s: %w", st.RuleID, st.UserID, err)
	}
	return nil
}

// RedisRuleStateStore keeps rule state in one hash per (rule, user).
type RedisRuleStateStore struct {
	Client *redis.Client
	Prefix string
}

func NewRedisRuleStateStore(client *redis.Client) *RedisRuleStateStore {
	return &RedisRuleStateStore{Client: client, Prefix: "badge:rule_state"}
}

func (s *RedisRuleStateStore) key(userID, ruleID string) string {
	return s.Prefix + ":" + ruleID + ":" + userID
}

func (s *RedisRuleStateStore) Get(ctx context.Context, userID, ruleID string) (models.RuleState, error) {
	st := models.RuleState{UserID: userID, RuleID: ruleID}
	fields, err := s.Client.HGetAll(ctx, s.key(userID, ruleID)).Result()
	if err != nil {
		return st, fmt.Errorf("load rule state %s/%s: %w", ruleID, userID, err)
	}
	if v, ok := fields["last_evaluated_at"]; ok {
		nanos, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return st, fmt.Errorf("decode rule state %s/%s: %w", ruleID, userID, err)
		}
		st.LastEvaluatedAt = time.Unix(0, nanos).UTC()
	}
	if v, ok := fields["award_count"]; ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return st, fmt.Errorf("decode rule state %s/%s: %w", ruleID, userID, err)
		}
		st.AwardCount = n
	}
	return st, nil
}

func (s *RedisRuleStateStore) Put(ctx context.Context, st models.RuleState) error {
	err := s.Client.HSet(ctx, s.key(st.UserID, st.RuleID),
		"last_evaluated_at", strconv.FormatInt(st.LastEvaluatedAt.UnixNano(), 10),
		"award_count", strconv.Itoa(st.AwardCount),
	).Err()
	if err != nil {
		return fmt.Errorf("save rule state %s/%s: %w", st.RuleID, st.UserID, err)
	}
	return nil
}
