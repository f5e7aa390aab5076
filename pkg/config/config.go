package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	API       APIConfig
	Sync      SyncConfig
	Cache     CacheConfig
	Retention RetentionConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// APIConfig tunes the external read API.
type APIConfig struct {
	MaxRecords     int
	DefaultLimit   int
	RateLimitDaily int
	AllowGetMethod bool
}

// SyncConfig governs the scheduled incremental sync pass.
type SyncConfig struct {
	Enabled        bool
	CronSpec       string
	LookbackHours  int
	MaxRunTime     time.Duration
	BatchSize      int
	LockStaleAfter time.Duration
}

// CacheConfig sets response-cache defaults; companies can override TTL and
// disable caching entirely through their settings.
type CacheConfig struct {
	Enabled       bool
	DefaultTTL    time.Duration
	SweepCronSpec string
}

// RetentionConfig controls request-log housekeeping.
type RetentionConfig struct {
	RequestLogDays int
	CleanupCron    string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		Issuer:     v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.API = APIConfig{
		MaxRecords:     v.GetInt("API_MAX_RECORDS"),
		DefaultLimit:   v.GetInt("API_DEFAULT_LIMIT"),
		RateLimitDaily: v.GetInt("API_RATE_LIMIT_DAILY"),
		AllowGetMethod: v.GetBool("API_ALLOW_GET_METHOD"),
	}

	cfg.Sync = SyncConfig{
		Enabled:        v.GetBool("SYNC_ENABLED"),
		CronSpec:       v.GetString("SYNC_CRON_SPEC"),
		LookbackHours:  v.GetInt("SYNC_LOOKBACK_HOURS"),
		MaxRunTime:     parseDuration(v.GetString("SYNC_MAX_RUN_TIME"), 5*time.Minute),
		BatchSize:      v.GetInt("SYNC_BATCH_SIZE"),
		LockStaleAfter: parseDuration(v.GetString("SYNC_LOCK_STALE_AFTER"), 15*time.Minute),
	}

	cfg.Cache = CacheConfig{
		Enabled:       v.GetBool("CACHE_ENABLED"),
		DefaultTTL:    parseDuration(v.GetString("CACHE_DEFAULT_TTL"), 30*time.Minute),
		SweepCronSpec: v.GetString("CACHE_SWEEP_CRON_SPEC"),
	}

	cfg.Retention = RetentionConfig{
		RequestLogDays: v.GetInt("REQUEST_LOG_RETENTION_DAYS"),
		CleanupCron:    v.GetString("REQUEST_LOG_CLEANUP_CRON"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "alx_report")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("JWT_ISSUER", "alx-report-api")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("API_MAX_RECORDS", 1000)
	v.SetDefault("API_DEFAULT_LIMIT", 100)
	v.SetDefault("API_RATE_LIMIT_DAILY", 100)
	v.SetDefault("API_ALLOW_GET_METHOD", false)

	v.SetDefault("SYNC_ENABLED", true)
	v.SetDefault("SYNC_CRON_SPEC", "0 * * * *")
	v.SetDefault("SYNC_LOOKBACK_HOURS", 1)
	v.SetDefault("SYNC_MAX_RUN_TIME", "5m")
	v.SetDefault("SYNC_BATCH_SIZE", 1000)
	v.SetDefault("SYNC_LOCK_STALE_AFTER", "15m")

	v.SetDefault("CACHE_ENABLED", true)
	v.SetDefault("CACHE_DEFAULT_TTL", "30m")
	v.SetDefault("CACHE_SWEEP_CRON_SPEC", "30 * * * *")

	v.SetDefault("REQUEST_LOG_RETENTION_DAYS", 90)
	v.SetDefault("REQUEST_LOG_CLEANUP_CRON", "15 2 * * *")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
