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

	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	CORS     CORSConfig
	Log      LogConfig
	Metrics  MetricsConfig
	PowerBI  PowerBIConfig
	Exports  ExportsConfig
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

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// MetricsConfig tunes the response metrics endpoints.
type MetricsConfig struct {
	CacheEnabled          bool
	CacheTTL              time.Duration
	DefaultLimit          int
	MaxLimit              int
	TopThemesLimit        int
	TopNeighborhoodsLimit int
	DistributionLimit     int
}

// PowerBIConfig holds the credentials for the embed token exchange.
type PowerBIConfig struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	WorkspaceID  string
	ReportID     string
	TokenTimeout time.Duration
}

// ExportsConfig controls CSV/PDF export generation.
type ExportsConfig struct {
	Enabled    bool
	StorageDir string
	MaxRows    int
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

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:            v.GetString("JWT_SECRET"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Metrics = MetricsConfig{
		CacheEnabled:          v.GetBool("METRICS_CACHE_ENABLED"),
		CacheTTL:              parseDuration(v.GetString("METRICS_CACHE_TTL"), 5*time.Minute),
		DefaultLimit:          v.GetInt("METRICS_DEFAULT_LIMIT"),
		MaxLimit:              v.GetInt("METRICS_MAX_LIMIT"),
		TopThemesLimit:        v.GetInt("METRICS_TOP_THEMES_LIMIT"),
		TopNeighborhoodsLimit: v.GetInt("METRICS_TOP_NEIGHBORHOODS_LIMIT"),
		DistributionLimit:     v.GetInt("METRICS_DISTRIBUTION_LIMIT"),
	}

	cfg.PowerBI = PowerBIConfig{
		TenantID:     v.GetString("POWERBI_TENANT_ID"),
		ClientID:     v.GetString("POWERBI_CLIENT_ID"),
		ClientSecret: v.GetString("POWERBI_CLIENT_SECRET"),
		WorkspaceID:  v.GetString("POWERBI_WORKSPACE_ID"),
		ReportID:     v.GetString("POWERBI_REPORT_ID"),
		TokenTimeout: parseDuration(v.GetString("POWERBI_TOKEN_TIMEOUT"), 10*time.Second),
	}

	cfg.Exports = ExportsConfig{
		Enabled:    v.GetBool("ENABLE_EXPORTS"),
		StorageDir: v.GetString("EXPORTS_STORAGE_DIR"),
		MaxRows:    v.GetInt("EXPORTS_MAX_ROWS"),
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
	v.SetDefault("DB_NAME", "escuta_cidada")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "168h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("METRICS_CACHE_ENABLED", false)
	v.SetDefault("METRICS_CACHE_TTL", "5m")
	v.SetDefault("METRICS_DEFAULT_LIMIT", 50)
	v.SetDefault("METRICS_MAX_LIMIT", 200)
	v.SetDefault("METRICS_TOP_THEMES_LIMIT", 5)
	v.SetDefault("METRICS_TOP_NEIGHBORHOODS_LIMIT", 5)
	v.SetDefault("METRICS_DISTRIBUTION_LIMIT", 20)

	v.SetDefault("POWERBI_TENANT_ID", "")
	v.SetDefault("POWERBI_CLIENT_ID", "")
	v.SetDefault("POWERBI_CLIENT_SECRET", "")
	v.SetDefault("POWERBI_WORKSPACE_ID", "")
	v.SetDefault("POWERBI_REPORT_ID", "")
	v.SetDefault("POWERBI_TOKEN_TIMEOUT", "10s")

	v.SetDefault("ENABLE_EXPORTS", false)
	v.SetDefault("EXPORTS_STORAGE_DIR", "./exports")
	v.SetDefault("EXPORTS_MAX_ROWS", 10000)
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
