package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"badge-engine/handlers"
	"badge-engine/middleware"
	"badge-engine/services"
	"badge-engine/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the background scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.ServiceToken == "" {
			return fmt.Errorf("GAME_SERVICE_TOKEN is not set: service cannot authenticate Gateway")
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		rt, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()

		if seed, ok, err := loadSeed(ctx, ""); err != nil {
			return err
		} else if ok {
			if err := rt.engine.ApplySeed(ctx, seed); err != nil {
				return err
			}
		}

		sched, err := workers.NewScheduler(rt.engine, workers.Schedule{
			SweepInterval:   cfg.SweepInterval,
			RetuneCron:      cfg.RetuneCron,
			SeasonInterval:  cfg.SeasonInterval,
			StreakResetCron: cfg.StreakResetCron,
		}, logger)
		if err != nil {
			return err
		}
		sched.Start()
		defer func() {
			if err := sched.Shutdown(); err != nil {
				logger.Error("scheduler shutdown", zap.Error(err))
			}
		}()

		app := fiber.New(fiber.Config{
			BodyLimit:             1 * 1024 * 1024,
			DisableStartupMessage: true,
		})

		// 🔐❗ GLOBAL: Only Gateway requests allowed
		app.Use(middleware.GatewayAuthMiddleware(cfg.ServiceToken, logger))
		app.Use(cors.New(cors.Config{
			AllowOrigins:     strings.Join(cfg.AllowedOrigins, ","),
			AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
			AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, Cache-Control, X-Service-Token, X-User-ID, X-User-Roles",
			ExposeHeaders:    "Content-Length, Content-Type, X-Request-ID",
			AllowCredentials: true,
			MaxAge:           86400,
		}))

		handlers.SetupBadgeRoutes(app,
			handlers.NewBadgeHandler(rt.engine, logger),
			services.NewRewardService(rt.db, logger, rt.engine.Ledger))

		addr := fmt.Sprintf(":%d", cfg.Port)
		go func() {
			if err := app.Listen(addr); err != nil {
				logger.Error("Server error", zap.Error(err))
				stop()
			}
		}()
		logger.Info("✅ Server running",
			zap.String("addr", addr),
			zap.Strings("cors_origins", cfg.AllowedOrigins),
			zap.String("rule_state", cfg.RuleStateBackend))

		<-ctx.Done()
		logger.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return app.ShutdownWithContext(shutdownCtx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
