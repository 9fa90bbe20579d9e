// Package config loads service settings from .env, the environment and an
// optional config file.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port           int
	AllowedOrigins []string
	ServiceToken   string
	LogLevel       string

	DBDriver    string // postgres | sqlite
	DatabaseURL string

	RuleStateBackend string // database | redis
	RedisAddr        string
	RedisPassword    string
	RedisDB          int

	SeedFile string
	SeedKey  string // object key in the R2 bucket; wins over SeedFile

	R2AccountID       string
	R2AccessKeyID     string
	R2AccessKeySecret string
	R2Bucket          string

	SeasonServiceURL string
	SeasonPath       string

	SweepInterval    time.Duration
	SweepParallelism int
	RetuneCron       string
	SeasonInterval   time.Duration
	StreakResetCron  string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", 5200)
	v.SetDefault("ALLOWED_ORIGINS", "http://localhost:3000")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_DRIVER", "postgres")
	v.SetDefault("RULE_STATE_BACKEND", "database")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("SEASON_PATH", "/api/v1/seasons/current")
	v.SetDefault("SWEEP_INTERVAL", "30m")
	v.SetDefault("SWEEP_PARALLELISM", 8)
	v.SetDefault("RETUNE_CRON", "0 4 * * 1") // Mondays 04:00
	v.SetDefault("SEASON_INTERVAL", "1h")
	v.SetDefault("STREAK_RESET_CRON", "5 0 * * *")
}

// Load reads .env (if present), then the environment. A non-empty file
// path is merged on top of the defaults before the environment is applied.
func Load(file string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Port:              v.GetInt("PORT"),
		ServiceToken:      v.GetString("GAME_SERVICE_TOKEN"),
		LogLevel:          v.GetString("LOG_LEVEL"),
		DBDriver:          strings.ToLower(v.GetString("DB_DRIVER")),
		DatabaseURL:       v.GetString("DATABASE_URL"),
		RuleStateBackend:  strings.ToLower(v.GetString("RULE_STATE_BACKEND")),
		RedisAddr:         v.GetString("REDIS_ADDR"),
		RedisPassword:     v.GetString("REDIS_PASSWORD"),
		RedisDB:           v.GetInt("REDIS_DB"),
		SeedFile:          v.GetString("SEED_FILE"),
		SeedKey:           v.GetString("SEED_KEY"),
		R2AccountID:       v.GetString("CLOUDFLARE_ACCOUNT_ID"),
		R2AccessKeyID:     v.GetString("R2_ACCESS_KEY_ID"),
		R2AccessKeySecret: v.GetString("R2_ACCESS_KEY_SECRET"),
		R2Bucket:          v.GetString("R2_BUCKET_NAME"),
		SeasonServiceURL:  v.GetString("SEASON_SERVICE_URL"),
		SeasonPath:        v.GetString("SEASON_PATH"),
		SweepInterval:     v.GetDuration("SWEEP_INTERVAL"),
		SweepParallelism:  v.GetInt("SWEEP_PARALLELISM"),
		RetuneCron:        v.GetString("RETUNE_CRON"),
		SeasonInterval:    v.GetDuration("SEASON_INTERVAL"),
		StreakResetCron:   v.GetString("STREAK_RESET_CRON"),
	}
	for _, origin := range strings.Split(v.GetString("ALLOWED_ORIGINS"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, origin)
		}
	}
	return cfg, cfg.Validate()
}

func (c *Config) Validate() error {
	switch c.DBDriver {
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL environment variable not set")
		}
	case "sqlite":
		if c.DatabaseURL == "" {
			c.DatabaseURL = "badges.db"
		}
	default:
		return fmt.Errorf("unknown DB_DRIVER %q", c.DBDriver)
	}
	switch c.RuleStateBackend {
	case "database", "redis":
	default:
		return fmt.Errorf("unknown RULE_STATE_BACKEND %q", c.RuleStateBackend)
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL must be positive")
	}
	if c.SeasonInterval <= 0 {
		return fmt.Errorf("SEASON_INTERVAL must be positive")
	}
	for _, origin := range c.AllowedOrigins {
		// cors refuses a wildcard when credentials are allowed
		if origin == "*" {
			return fmt.Errorf("ALLOWED_ORIGINS must list explicit origins")
		}
	}
	if c.SeedKey != "" && c.R2Bucket == "" {
		return fmt.Errorf("SEED_KEY requires R2_BUCKET_NAME")
	}
	return nil
}

// UseR2 reports whether the R2 client must be initialized.
func (c *Config) UseR2() bool {
	return c.SeedKey != ""
}
