package services

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"badge-engine/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// NotificationService is the outbox NotificationSink. Badge-earned events
// are stored and streamed to connected clients over SSE.
type NotificationService struct {
	DB           *gorm.DB
	Log          *zap.Logger
	PollInterval time.Duration
}

func NewNotificationService(db *gorm.DB, log *zap.Logger) *NotificationService {
	return &NotificationService{DB: db, Log: log, PollInterval: 2 * time.Second}
}

func (s *NotificationService) NotifyBadgeEarned(ctx context.Context, userID string, meta models.BadgeMetadata) error {
	n := models.BadgeNotification{
		ID:          uuid.NewString(),
		UserID:      userID,
		BadgeID:     meta.BadgeID,
		Name:        meta.Name,
		Description: meta.Description,
		Icon:        meta.Icon,
		Category:    meta.Category,
		Rarity:      meta.Rarity,
		EarnedAt:    meta.EarnedAt,
	}
	if err := s.DB.WithContext(ctx).Create(&n).Error; err != nil {
		return fmt.Errorf("store notification %s/%s: %w", userID, meta.BadgeID, err)
	}
	return nil
}

// Since returns the user's notifications created after cursor, oldest first.
func (s *NotificationService) Since(ctx context.Context, userID string, cursor time.Time) ([]models.BadgeNotification, error) {
	var out []models.BadgeNotification
	err := s.DB.WithContext(ctx).
		Where("user_id = ? AND created_at > ?", userID, cursor).
		Order("created_at ASC").
		Find(&out).Error
	return out, err
}

// latestCursor is the created_at of the user's newest notification.
func (s *NotificationService) latestCursor(ctx context.Context, userID string) (time.Time, error) {
	var latest models.BadgeNotification
	err := s.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		First(&latest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return time.Time{}, nil
	}
	return latest.CreatedAt, err
}

// StreamBadgeNotificationsSSE streams badge-earned events for the authenticated user
func (s *NotificationService) StreamBadgeNotificationsSSE(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	if userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "User ID not found in context"})
	}
	interval := s.PollInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no") // nginx

	done := c.Context().Done()
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		ctx := context.Background()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		cursor, err := s.latestCursor(ctx, userID)
		if err != nil {
			s.Log.Error("SSE init error", zap.String("user_id", userID), zap.Error(err))
		}

		// Initial keepalive (comment event)
		w.WriteString(":\n\n")
		if err := w.Flush(); err != nil {
			return
		}

		for {
			select {
			case <-ticker.C:
				events, err := s.Since(ctx, userID, cursor)
				if err != nil {
					s.Log.Error("SSE query error", zap.String("user_id", userID), zap.Error(err))
					continue
				}
				if len(events) == 0 {
					continue
				}
				cursor = events[len(events)-1].CreatedAt
				for _, n := range events {
					payload, _ := json.Marshal(n)
					fmt.Fprintf(w, "event: badge\ndata: %s\n\n", payload)
				}
				if err := w.Flush(); err != nil {
					// Client disconnected
					return
				}
			case <-done:
				return
			}
		}
	})
	return nil
}
