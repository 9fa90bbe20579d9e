package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// StatType names a trackable counter.
type StatType string

const (
	StatKills           StatType = "kills"
	StatWins            StatType = "wins"
	StatMessages        StatType = "messages"
	StatVoiceSeconds    StatType = "voiceSeconds"
	StatCheckIns        StatType = "checkIns"
	StatConsecutiveDays StatType = "consecutiveDays"
	StatLevel           StatType = "level"
	StatCurrencyEarned  StatType = "currencyEarned"
	StatBadgesEarned    StatType = "badgesEarned"
	StatMatches         StatType = "matches"
	StatClipsShared     StatType = "clipsShared"
)

// StatTypes lists every known stat. Rule contexts default each to 0.
var StatTypes = []StatType{
	StatKills, StatWins, StatMessages, StatVoiceSeconds, StatCheckIns,
	StatConsecutiveDays, StatLevel, StatCurrencyEarned, StatBadgesEarned,
	StatMatches, StatClipsShared,
}

type Operator string

const (
	OpGTE     Operator = ">="
	OpLTE     Operator = "<="
	OpEQ      Operator = "="
	OpBetween Operator = "between"
)

type Timeframe string

const (
	TimeframeDaily   Timeframe = "daily"
	TimeframeWeekly  Timeframe = "weekly"
	TimeframeMonthly Timeframe = "monthly"
	TimeframeAllTime Timeframe = "all_time"
)

// Windowed lists the timeframes that are aggregated into period buckets.
var Windowed = []Timeframe{TimeframeDaily, TimeframeWeekly, TimeframeMonthly}

// Normalize maps the empty timeframe to all_time.
func (t Timeframe) Normalize() Timeframe {
	if t == "" {
		return TimeframeAllTime
	}
	return t
}

// PeriodStart returns the UTC start of the window containing at.
// Weeks start on Monday.
func (t Timeframe) PeriodStart(at time.Time) time.Time {
	at = at.UTC()
	day := time.Date(at.Year(), at.Month(), at.Day(), 0, 0, 0, 0, time.UTC)
	switch t {
	case TimeframeDaily:
		return day
	case TimeframeWeekly:
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	case TimeframeMonthly:
		return time.Date(at.Year(), at.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
	return time.Time{}
}

// Requirement is a single numeric condition over a tracked stat.
// For OpBetween, Value is the lower bound and Max the upper bound.
type Requirement struct {
	StatType  StatType  `json:"stat_type"`
	Operator  Operator  `json:"operator"`
	Value     float64   `json:"value"`
	Max       float64   `json:"max,omitempty"`
	Timeframe Timeframe `json:"timeframe,omitempty"`
}

// Satisfied evaluates the requirement against an observed value.
func (r Requirement) Satisfied(value float64) bool {
	switch r.Operator {
	case OpGTE:
		return value >= r.Value
	case OpLTE:
		return value <= r.Value
	case OpEQ:
		return value == r.Value
	case OpBetween:
		return r.Value <= value && value <= r.Max
	}
	return false
}

func (r Requirement) Validate() error {
	if strings.TrimSpace(string(r.StatType)) == "" {
		return errors.New("stat type is required")
	}
	switch r.Operator {
	case OpGTE, OpLTE, OpEQ:
	case OpBetween:
		if r.Value > r.Max {
			return fmt.Errorf("between range [%v,%v] is inverted", r.Value, r.Max)
		}
	default:
		return fmt.Errorf("unknown operator %q", r.Operator)
	}
	switch r.Timeframe.Normalize() {
	case TimeframeDaily, TimeframeWeekly, TimeframeMonthly, TimeframeAllTime:
	default:
		return fmt.Errorf("unknown timeframe %q", r.Timeframe)
	}
	return nil
}
