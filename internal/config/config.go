package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Auth         AuthConfig         `mapstructure:"auth"`
	Gamification GamificationConfig `mapstructure:"gamification"`
	Log          LogConfig          `mapstructure:"log"`
}

type ServerConfig struct {
	Port        string   `mapstructure:"port"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxOpen  int    `mapstructure:"max_open_conns"`
	MaxIdle  int    `mapstructure:"max_idle_conns"`
}

// DSN renders the lib/pq connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

type GamificationConfig struct {
	ReclaimVotePoints       bool `mapstructure:"reclaim_vote_points"`
	LeaderboardDefaultLimit int  `mapstructure:"leaderboard_default_limit"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

var ErrMissingJWTSecret = errors.New("JWT_SECRET is required")

// Load reads config.yaml from . or ./config when present, then applies
// environment overrides. Env always wins over the file.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("server.port", "8080")
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "forum_user")
	v.SetDefault("database.password", "forum_password")
	v.SetDefault("database.name", "forum")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("gamification.reclaim_vote_points", true)
	v.SetDefault("gamification.leaderboard_default_limit", 20)
	v.SetDefault("log.level", "info")

	v.BindEnv("server.port", "PORT")
	v.BindEnv("server.cors_origins", "CORS_ORIGINS")
	v.BindEnv("database.host", "DB_HOST")
	v.BindEnv("database.port", "DB_PORT")
	v.BindEnv("database.user", "DB_USER")
	v.BindEnv("database.password", "DB_PASSWORD")
	v.BindEnv("database.name", "DB_NAME")
	v.BindEnv("database.sslmode", "DB_SSLMODE")
	v.BindEnv("auth.jwt_secret", "JWT_SECRET")
	v.BindEnv("gamification.reclaim_vote_points", "GAMIFICATION_RECLAIM_VOTE_POINTS")
	v.BindEnv("gamification.leaderboard_default_limit", "LEADERBOARD_DEFAULT_LIMIT")
	v.BindEnv("log.level", "LOG_LEVEL")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Server.CORSOrigins = splitOrigins(cfg.Server.CORSOrigins)

	if cfg.Auth.JWTSecret == "" {
		return nil, ErrMissingJWTSecret
	}
	return &cfg, nil
}

// splitOrigins accepts both a YAML list and a comma separated env value.
func splitOrigins(in []string) []string {
	var out []string
	for _, s := range in {
		for _, o := range strings.Split(s, ",") {
			if o = strings.TrimSpace(o); o != "" {
				out = append(out, o)
			}
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
