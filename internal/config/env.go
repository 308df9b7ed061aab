package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvConfig 环境变量配置管理
type EnvConfig struct {
	prefix string
}

// NewEnvConfig 创建环境变量配置管理器
func NewEnvConfig(prefix string) *EnvConfig {
	return &EnvConfig{
		prefix: strings.ToUpper(prefix),
	}
}

// GetString 获取字符串环境变量
func (e *EnvConfig) GetString(key, defaultValue string) string {
	envKey := e.prefix + "_" + strings.ToUpper(key)
	if value := os.Getenv(envKey); value != "" {
		return value
	}
	return defaultValue
}

// GetInt 获取整数环境变量
func (e *EnvConfig) GetInt(key string, defaultValue int) int {
	envKey := e.prefix + "_" + strings.ToUpper(key)
	if value := os.Getenv(envKey); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// GetBool 获取布尔环境变量
func (e *EnvConfig) GetBool(key string, defaultValue bool) bool {
	envKey := e.prefix + "_" + strings.ToUpper(key)
	if value := os.Getenv(envKey); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// GetDuration 获取时间间隔环境变量
func (e *EnvConfig) GetDuration(key string, defaultValue time.Duration) time.Duration {
	envKey := e.prefix + "_" + strings.ToUpper(key)
	if value := os.Getenv(envKey); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// LoadFromEnv 从环境变量加载配置到现有配置结构
func LoadFromEnv(cfg *Config) {
	env := NewEnvConfig("RANKPULSE")

	// 服务器配置
	cfg.Server.Host = env.GetString("SERVER_HOST", cfg.Server.Host)
	cfg.Server.Port = env.GetInt("SERVER_PORT", cfg.Server.Port)
	cfg.Server.Mode = env.GetString("SERVER_MODE", cfg.Server.Mode)

	// 存储配置
	cfg.Store.Driver = env.GetString("STORE_DRIVER", cfg.Store.Driver)
	cfg.Store.Path = env.GetString("STORE_PATH", cfg.Store.Path)
	cfg.Store.Host = env.GetString("DB_HOST", cfg.Store.Host)
	cfg.Store.Port = env.GetInt("DB_PORT", cfg.Store.Port)
	cfg.Store.User = env.GetString("DB_USER", cfg.Store.User)
	cfg.Store.Password = env.GetString("DB_PASSWORD", cfg.Store.Password)
	cfg.Store.Database = env.GetString("DB_NAME", cfg.Store.Database)
	cfg.Store.SSLMode = env.GetString("DB_SSLMODE", cfg.Store.SSLMode)

	// 归档配置
	cfg.Archive.URI = env.GetString("ARCHIVE_URI", cfg.Archive.URI)
	cfg.Archive.Database = env.GetString("ARCHIVE_DB", cfg.Archive.Database)

	// 爬虫配置
	cfg.Crawler.Mode = env.GetString("CRAWLER_MODE", cfg.Crawler.Mode)
	cfg.Crawler.ScriptDir = env.GetString("CRAWLER_SCRIPT_DIR", cfg.Crawler.ScriptDir)
	cfg.Crawler.PythonPath = env.GetString("CRAWLER_PYTHON_PATH", cfg.Crawler.PythonPath)
	cfg.Crawler.Timeout = env.GetDuration("CRAWLER_TIMEOUT", cfg.Crawler.Timeout)
	cfg.Crawler.Headless = env.GetBool("CRAWLER_HEADLESS", cfg.Crawler.Headless)

	// AI 配置
	cfg.AI.BaseURL = env.GetString("AI_BASE_URL", cfg.AI.BaseURL)
	cfg.AI.Timeout = env.GetDuration("AI_TIMEOUT", cfg.AI.Timeout)

	// 日志配置
	cfg.Log.Level = env.GetString("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = env.GetString("LOG_FORMAT", cfg.Log.Format)
	cfg.Log.OutputPath = env.GetString("LOG_OUTPUT", cfg.Log.OutputPath)
}

// GetEnvExample 获取环境变量示例
func GetEnvExample() map[string]string {
	return map[string]string{
		"RANKPULSE_SERVER_PORT":        "8090",
		"RANKPULSE_SERVER_MODE":        "debug",
		"RANKPULSE_STORE_DRIVER":       "sqlite",
		"RANKPULSE_STORE_PATH":         "data/rankpulse.db",
		"RANKPULSE_DB_HOST":            "localhost",
		"RANKPULSE_DB_PORT":            "5432",
		"RANKPULSE_DB_USER":            "postgres",
		"RANKPULSE_DB_PASSWORD":        "postgres",
		"RANKPULSE_DB_NAME":            "rankpulse",
		"RANKPULSE_CRAWLER_MODE":       "script",
		"RANKPULSE_CRAWLER_SCRIPT_DIR": "scripts",
		"RANKPULSE_LOG_LEVEL":          "info",
		"RANKPULSE_LOG_FORMAT":         "console",
	}
}
