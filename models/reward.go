package models

import (
	"time"
)

// RewardType is the ledger channel a grant went through
type RewardType string

const (
	RewardTypeXP       RewardType = "xp"
	RewardTypeCurrency RewardType = "currency"
	RewardTypeRole     RewardType = "role"
	RewardTypeTitle    RewardType = "title"
)

type RewardCategory string

const (
	RewardCategoryBadge           RewardCategory = "badge"
	RewardCategoryCollectionBonus RewardCategory = "collection_bonus"
	RewardCategoryOther           RewardCategory = "other"
)

// Reward is one ledger entry written for every granted reward channel.
type Reward struct {
	ID        string         `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID    string         `gorm:"index;type:varchar(128);not null" json:"user_id"`
	Type      RewardType     `gorm:"type:varchar(16);not null" json:"type"`
	Category  RewardCategory `gorm:"type:varchar(32);not null" json:"category"`
	Amount    int64          `json:"amount"`
	Item      string         `json:"item,omitempty"` // role key or title
	Reason    string         `json:"reason,omitempty"`
	Viewed    bool           `gorm:"not null;index" json:"viewed"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
}
