package handlers

import (
	"errors"
	"strings"
	"time"

	"badge-engine/middleware"
	"badge-engine/models"
	"badge-engine/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// BadgeHandler exposes the engine over HTTP. The gateway forwards
// /api/v1/badges/* here.
type BadgeHandler struct {
	Engine *services.Engine
	Log    *zap.Logger
	Now    func() time.Time
}

func NewBadgeHandler(engine *services.Engine, log *zap.Logger) *BadgeHandler {
	return &BadgeHandler{Engine: engine, Log: log, Now: time.Now}
}

func SetupBadgeRoutes(app *fiber.App, h *BadgeHandler, rewards *services.RewardService) {
	userCtx := middleware.UserContextMiddleware(h.Log)

	// 🔓 Public catalog
	app.Get("/badges", userCtx, h.ListBadges)

	// 🔐 Secured routes
	secured := app.Group("/s", userCtx)
	secured.Post("/activity", h.RecordActivity)
	secured.Post("/checkin", h.CheckIn)
	secured.Get("/user/badges", h.OwnedBadges)
	secured.Get("/user/badges/:id/progress", h.Progress)
	secured.Get("/user/notifications/stream", h.Engine.Notifications.StreamBadgeNotificationsSSE)

	secured.Get("/user/progress", rewards.GetUserProgress)
	secured.Get("/user/rewards", rewards.GetUserRewards)
	secured.Get("/user/rewards/counts", rewards.GetUserRewardCountsEndpoint)
	secured.Patch("/user/rewards/viewed", rewards.MarkAllRewardsAsViewed)
	secured.Patch("/user/rewards/:id/viewed", rewards.MarkRewardAsViewed)

	// Admin endpoints
	admin := secured.Group("/admin", middleware.RequireRole("admin"))
	admin.Post("/badges", h.RegisterBadge)
	admin.Post("/badges/award", h.AwardBadge)
	admin.Post("/badges/retune", h.Retune)
	admin.Delete("/badges/:user/:badge", h.RevokeBadge)
	admin.Post("/collections", h.RegisterCollection)
	admin.Post("/rules", h.RegisterRule)
	admin.Patch("/rules/:id", h.SetRuleActive)
	admin.Post("/rules/sweep", h.Sweep)
	admin.Post("/seasons/:id", h.StartSeason)
}

// fail maps engine errors onto HTTP statuses.
func (h *BadgeHandler) fail(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrValidation):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrUnknownBadge), errors.Is(err, services.ErrUnknownRule):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	}
	h.Log.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
}

func badRequest(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": "invalid JSON",
		"cause": err.Error(),
	})
}

func userID(c *fiber.Ctx) string {
	id, _ := c.Locals(middleware.LocalUserID).(string)
	return id
}

func (h *BadgeHandler) ListBadges(c *fiber.Ctx) error {
	includeSecret := c.QueryBool("include_secret") && middleware.HasRole(c, "admin")
	return c.JSON(h.Engine.GetAvailableBadges(includeSecret))
}

func (h *BadgeHandler) RecordActivity(c *fiber.Ctx) error {
	var req struct {
		StatType models.StatType     `json:"stat_type"`
		Delta    float64             `json:"delta"`
		Mode     models.ProgressMode `json:"mode"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, err)
	}
	if req.Mode == "" {
		req.Mode = models.ModeIncrement
	}
	res, err := h.Engine.UpdateProgress(c.UserContext(), userID(c), req.StatType, req.Delta, req.Mode)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(res)
}

func (h *BadgeHandler) CheckIn(c *fiber.Ctx) error {
	res, err := h.Engine.CheckIn(c.UserContext(), userID(c), h.Now())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(res)
}

func (h *BadgeHandler) OwnedBadges(c *fiber.Ctx) error {
	badges, err := h.Engine.GetOwnedBadges(c.UserContext(), userID(c))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(badges)
}

func (h *BadgeHandler) Progress(c *fiber.Ctx) error {
	report, err := h.Engine.GetProgress(c.UserContext(), userID(c), c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(report)
}

func (h *BadgeHandler) RegisterBadge(c *fiber.Ctx) error {
	var def models.BadgeDefinition
	if err := c.BodyParser(&def); err != nil {
		return badRequest(c, err)
	}
	if err := h.Engine.Catalog.Register(c.UserContext(), def); err != nil {
		return h.fail(c, err)
	}
	stored, _ := h.Engine.Catalog.Get(def.ID)
	return c.Status(fiber.StatusCreated).JSON(stored)
}

func (h *BadgeHandler) AwardBadge(c *fiber.Ctx) error {
	var req struct {
		UserID  string `json:"user_id"`
		BadgeID string `json:"badge_id"`
		Notify  *bool  `json:"notify"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, err)
	}
	notify := req.Notify == nil || *req.Notify
	res, err := h.Engine.Award(c.UserContext(), req.UserID, req.BadgeID, notify)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(res)
}

func (h *BadgeHandler) RevokeBadge(c *fiber.Ctx) error {
	removed, err := h.Engine.RevokeBadge(c.UserContext(), c.Params("user"), c.Params("badge"))
	if err != nil {
		return h.fail(c, err)
	}
	if !removed {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "badge not owned"})
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *BadgeHandler) Retune(c *fiber.Ctx) error {
	report, err := h.Engine.RetuneDifficulty(c.UserContext())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(report)
}

func (h *BadgeHandler) RegisterCollection(c *fiber.Ctx) error {
	var col models.Collection
	if err := c.BodyParser(&col); err != nil {
		return badRequest(c, err)
	}
	if err := h.Engine.Collections.RegisterCollection(c.UserContext(), col); err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(col)
}

func (h *BadgeHandler) RegisterRule(c *fiber.Ctx) error {
	var rule models.DynamicRule
	if err := c.BodyParser(&rule); err != nil {
		return badRequest(c, err)
	}
	if err := h.Engine.Rules.RegisterRule(c.UserContext(), rule); err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(rule)
}

func (h *BadgeHandler) SetRuleActive(c *fiber.Ctx) error {
	var req struct {
		IsActive bool `json:"is_active"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, err)
	}
	if err := h.Engine.Rules.SetActive(c.UserContext(), c.Params("id"), req.IsActive); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"rule_id": c.Params("id"), "is_active": req.IsActive})
}

func (h *BadgeHandler) Sweep(c *fiber.Ctx) error {
	report, err := h.Engine.SweepDynamicRules(c.UserContext())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(report)
}

func (h *BadgeHandler) StartSeason(c *fiber.Ctx) error {
	seasonID := strings.TrimSpace(c.Params("id"))
	started, err := h.Engine.OnSeasonChange(c.UserContext(), seasonID)
	if err != nil {
		return h.fail(c, err)
	}
	status := fiber.StatusOK
	if started {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(fiber.Map{"season_id": seasonID, "started": started})
}
