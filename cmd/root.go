package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"badge-engine/config"
	"badge-engine/services"
	"badge-engine/utils"
	"badge-engine/workers"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	cfgFile  string
	logLevel string
	timeout  time.Duration

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:           "badge-engine",
	Short:         "Badge rule and progress engine",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return err
		}
		if logLevel != "" {
			cfg.LogLevel = logLevel
		}
		logger, err = utils.NewLogger(cfg.LogLevel)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (yaml, json or toml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override LOG_LEVEL")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Minute, "timeout for one-shot commands")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// runtime is everything a command needs once config and logger exist.
type runtime struct {
	db     *gorm.DB
	engine *services.Engine
	redis  *redis.Client
}

func (r *runtime) Close() {
	if r.engine != nil {
		r.engine.Close()
	}
	if r.redis != nil {
		_ = r.redis.Close()
	}
	if sqlDB, err := r.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// bootstrap opens storage, wires the engine and loads the catalog.
func bootstrap(ctx context.Context) (*runtime, error) {
	db, err := utils.OpenDatabase(cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	rt := &runtime{db: db}

	opts := services.Options{SweepParallelism: cfg.SweepParallelism}
	if cfg.RuleStateBackend == "redis" {
		rt.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := rt.redis.Ping(ctx).Err(); err != nil {
			rt.Close()
			return nil, fmt.Errorf("connect redis %s: %w", cfg.RedisAddr, err)
		}
		opts.RuleState = services.NewRedisRuleStateStore(rt.redis)
	}
	if cfg.SeasonServiceURL != "" {
		opts.SeasonSource = workers.NewHTTPSeasonSource(cfg.SeasonServiceURL, cfg.SeasonPath, cfg.ServiceToken, logger)
	}

	rt.engine = services.NewEngine(db, logger, opts)
	if err := rt.engine.Load(ctx); err != nil {
		rt.Close()
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	return rt, nil
}

// loadSeed reads the configured seed bundle from R2 or disk. It returns
// false when none is configured.
func loadSeed(ctx context.Context, path string) (services.Seed, bool, error) {
	var (
		data []byte
		err  error
	)
	switch {
	case path != "":
		data, err = utils.ReadFileLimited(path)
	case cfg.UseR2():
		var bucket *utils.R2Bucket
		bucket, err = utils.NewR2Bucket(ctx, cfg.R2AccountID, cfg.R2AccessKeyID, cfg.R2AccessKeySecret, cfg.R2Bucket)
		if err == nil {
			data, err = bucket.FetchObject(ctx, cfg.SeedKey)
		}
	case cfg.SeedFile != "":
		data, err = utils.ReadFileLimited(cfg.SeedFile)
	default:
		return services.Seed{}, false, nil
	}
	if err != nil {
		return services.Seed{}, false, fmt.Errorf("read seed: %w", err)
	}
	seed, err := services.ParseSeed(data)
	return seed, true, err
}

func withTimeout(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), timeout)
}
