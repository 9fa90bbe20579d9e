// services/reward_service.go
package services

import (
	"errors"
	"strconv"
	"strings"

	"badge-engine/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RewardService exposes a member's reward feed: the rows the ledger writes
// for every granted channel.
type RewardService struct {
	DB     *gorm.DB
	Log    *zap.Logger
	Ledger *ProgressionLedger
}

func NewRewardService(db *gorm.DB, log *zap.Logger, ledger *ProgressionLedger) *RewardService {
	return &RewardService{DB: db, Log: log, Ledger: ledger}
}

// GetUserRewards lists the authenticated user's rewards, newest first
func (s *RewardService) GetUserRewards(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	if userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "User ID not found in context"})
	}

	query := s.DB.WithContext(c.UserContext()).Where("user_id = ?", userID)

	if limitStr := c.Query("limit"); limitStr != "" {
		l, err := strconv.Atoi(limitStr)
		if err != nil || l <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid limit parameter"})
		}
		query = query.Limit(l)
	}

	// viewed=all (default), viewed=true, viewed=false
	switch strings.ToLower(c.Query("viewed")) {
	case "true":
		query = query.Where("viewed = ?", true)
	case "false":
		query = query.Where("viewed = ?", false)
	}

	if typ := c.Query("type"); typ != "" {
		query = query.Where("type = ?", models.RewardType(strings.ToLower(typ)))
	}

	var rewards []models.Reward
	if err := query.Order("created_at DESC").Find(&rewards).Error; err != nil {
		s.Log.Error("DB Error fetching rewards", zap.String("user_id", userID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch rewards"})
	}
	return c.JSON(rewards)
}

// GetUserRewardCountsEndpoint returns the total and unviewed reward counts
// for the authenticated user; cheap enough to poll.
func (s *RewardService) GetUserRewardCountsEndpoint(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)

	var totalCount, unviewedCount int64
	base := func() *gorm.DB {
		return s.DB.WithContext(c.UserContext()).Model(&models.Reward{}).Where("user_id = ?", userID)
	}
	if err := base().Count(&totalCount).Error; err != nil {
		s.Log.Error("DB Error counting total rewards", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error counting total rewards"})
	}
	if err := base().Where("viewed = ?", false).Count(&unviewedCount).Error; err != nil {
		s.Log.Error("DB Error counting unviewed rewards", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error counting unviewed rewards"})
	}

	return c.JSON(fiber.Map{
		"total_count":    totalCount,
		"unviewed_count": unviewedCount,
	})
}

// GetUserProgress returns XP, level, rank and currency for the authenticated user
func (s *RewardService) GetUserProgress(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	prog, err := s.Ledger.Progress(c.UserContext(), userID)
	if err != nil {
		s.Log.Error("DB Error loading progress", zap.String("user_id", userID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load progress"})
	}
	return c.JSON(prog)
}

// MarkRewardAsViewed marks a single reward as viewed (idempotent)
func (s *RewardService) MarkRewardAsViewed(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	rewardID := c.Params("id")

	if _, err := uuid.Parse(rewardID); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid reward ID"})
	}

	var reward models.Reward
	if err := s.DB.WithContext(c.UserContext()).Where("id = ? AND user_id = ?", rewardID, userID).First(&reward).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Reward not found or not owned"})
		}
		s.Log.Error("DB error fetching reward", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	if !reward.Viewed {
		if err := s.DB.WithContext(c.UserContext()).Model(&reward).Update("viewed", true).Error; err != nil {
			s.Log.Error("Failed to update viewed status", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to mark as viewed"})
		}
	}

	return c.JSON(fiber.Map{"message": "OK", "reward_id": reward.ID, "viewed": true})
}

// MarkAllRewardsAsViewed marks every unviewed reward of the user as viewed
func (s *RewardService) MarkAllRewardsAsViewed(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)

	result := s.DB.WithContext(c.UserContext()).Model(&models.Reward{}).
		Where("user_id = ? AND viewed = ?", userID, false).
		Update("viewed", true)

	if result.Error != nil {
		s.Log.Error("Bulk mark viewed failed", zap.Error(result.Error))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update rewards"})
	}

	return c.JSON(fiber.Map{
		"message":      "OK",
		"marked_count": result.RowsAffected,
	})
}
