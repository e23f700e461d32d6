package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// RedisConfig Redis配置
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Config 湿度监控服务配置
type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig

	// Nest API 凭据
	Nest struct {
		ClientID     string
		ClientSecret string
		RefreshToken string
		ProjectID    string
	}

	// 监控配置
	Monitor struct {
		HumidityThreshold    float64 // 湿度阈值（0-100），严格大于才触发
		CheckIntervalMinutes int     // 轮询间隔（分钟），至少 1
		EnableNotifications  bool    // 是否实际发送 PagerDuty 通知
	}

	// PagerDuty 配置
	PagerDuty struct {
		IntegrationKey string
		Severity       string // info, warning, error, critical
	}

	// Redis 实时缓存配置
	Cache struct {
		ReadingKeyPrefix string // 实时读数缓存键前缀，如 "humidity:device:"
		ReadingSuffix    string // 实时读数缓存键后缀，如 ":latest"
		ReadingTTL       int    // 读数缓存 TTL（秒）
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load 从环境变量加载配置（带默认值），不做合法性校验
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = getEnvInt("DB_PORT", 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "humidity")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = 0

	cfg.Nest.ClientID = getEnv("NEST_CLIENT_ID", "")
	cfg.Nest.ClientSecret = getEnv("NEST_CLIENT_SECRET", "")
	cfg.Nest.RefreshToken = getEnv("NEST_REFRESH_TOKEN", "")
	cfg.Nest.ProjectID = getEnv("NEST_PROJECT_ID", "")

	cfg.Monitor.HumidityThreshold = getEnvFloat("HUMIDITY_THRESHOLD", 60)
	cfg.Monitor.CheckIntervalMinutes = getEnvInt("CHECK_INTERVAL_MINUTES", 5)
	cfg.Monitor.EnableNotifications = getEnv("ENABLE_NOTIFICATIONS", "") == "true"

	cfg.PagerDuty.IntegrationKey = getEnv("PAGERDUTY_INTEGRATION_KEY", "")
	cfg.PagerDuty.Severity = getEnv("PAGERDUTY_SEVERITY", "error")

	cfg.Cache.ReadingKeyPrefix = getEnv("CACHE_READING_PREFIX", "humidity:device:")
	cfg.Cache.ReadingSuffix = ":latest"
	cfg.Cache.ReadingTTL = getEnvInt("CACHE_READING_TTL", 600)

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg, nil
}

// Validate 启动时校验配置，返回所有错误的汇总（仅启动时致命）
func (c *Config) Validate() error {
	var errs []string

	if c.Nest.ClientID == "" {
		errs = append(errs, "NEST_CLIENT_ID is required")
	}
	if c.Nest.ClientSecret == "" {
		errs = append(errs, "NEST_CLIENT_SECRET is required")
	}
	if c.Nest.RefreshToken == "" {
		errs = append(errs, "NEST_REFRESH_TOKEN is required")
	}
	if c.Nest.ProjectID == "" {
		errs = append(errs, "NEST_PROJECT_ID is required")
	}

	if c.Monitor.HumidityThreshold < 0 || c.Monitor.HumidityThreshold > 100 {
		errs = append(errs, "HUMIDITY_THRESHOLD must be between 0 and 100")
	}
	if c.Monitor.CheckIntervalMinutes < 1 {
		errs = append(errs, "CHECK_INTERVAL_MINUTES must be at least 1")
	}

	if c.Monitor.EnableNotifications && c.PagerDuty.IntegrationKey == "" {
		errs = append(errs, "PAGERDUTY_INTEGRATION_KEY is required when notifications are enabled")
	}

	switch c.PagerDuty.Severity {
	case "info", "warning", "error", "critical":
	default:
		errs = append(errs, "PAGERDUTY_SEVERITY must be one of: info, warning, error, critical")
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
