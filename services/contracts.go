package services

import (
	"context"

	"badge-engine/models"
)

// RewardLedger receives the reward channels of an awarded badge. Each call is
// independent; a failure in one channel never blocks the others.
type RewardLedger interface {
	GrantXP(ctx context.Context, userID string, amount int64, reason string) error
	GrantCurrency(ctx context.Context, userID string, amount int64, reason string) error
	GrantRole(ctx context.Context, userID, role, reason string) error
}

// TitleGranter is implemented by ledgers that can also assign display titles.
type TitleGranter interface {
	GrantTitle(ctx context.Context, userID, title, reason string) error
}

type NotificationSink interface {
	NotifyBadgeEarned(ctx context.Context, userID string, meta models.BadgeMetadata) error
}

// PopulationProvider answers how many users could have earned any badge.
type PopulationProvider interface {
	TotalEligibleUsers(ctx context.Context) (int64, error)
}

// SeasonSource reports the identifier of the season currently running, or ""
// when no season is active.
type SeasonSource interface {
	CurrentSeason(ctx context.Context) (string, error)
}
