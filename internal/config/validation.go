package config

import (
	"fmt"
	"strconv"
)

// ValidationError 配置验证错误
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   string `json:"value"`
}

// Error 实现error接口
func (e ValidationError) Error() string {
	return fmt.Sprintf("配置验证失败 [%s]: %s (当前值: %s)", e.Field, e.Message, e.Value)
}

// ValidationResult 验证结果
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors"`
}

// ConfigValidator 配置验证器
type ConfigValidator struct {
	errors []ValidationError
}

// NewConfigValidator 创建配置验证器
func NewConfigValidator() *ConfigValidator {
	return &ConfigValidator{
		errors: make([]ValidationError, 0),
	}
}

// ValidateConfig 验证完整配置
func (v *ConfigValidator) ValidateConfig(config *Config) *ValidationResult {
	v.errors = make([]ValidationError, 0)

	v.validateServerConfig(&config.Server)
	v.validateStoreConfig(config)
	v.validateCrawlerConfig(&config.Crawler)
	v.validateLogConfig(config)
	v.validateRetentionConfig(&config.Retention)

	return &ValidationResult{
		Valid:  len(v.errors) == 0,
		Errors: v.errors,
	}
}

// validateServerConfig 验证服务器配置
func (v *ConfigValidator) validateServerConfig(config *ServerConfig) {
	if config.Port < 1 || config.Port > 65535 {
		v.addError("server.port", "端口必须在1-65535范围内", strconv.Itoa(config.Port))
	}

	validModes := []string{"debug", "release", "test"}
	if !v.contains(validModes, config.Mode) {
		v.addError("server.mode", "模式必须是debug、release或test之一", config.Mode)
	}
}

// validateStoreConfig 验证存储配置
func (v *ConfigValidator) validateStoreConfig(config *Config) {
	st := &config.Store

	validDrivers := []string{"", "sqlite", "postgres", "postgresql", "mysql"}
	if !v.contains(validDrivers, st.Driver) {
		v.addError("store.driver", "存储驱动必须是sqlite、postgres或mysql之一", st.Driver)
	}

	// 网络数据库需要连接参数
	if st.Driver == "postgres" || st.Driver == "postgresql" || st.Driver == "mysql" {
		if st.Host == "" {
			v.addError("store.host", "数据库主机不能为空", "")
		}
		if st.Port < 1 || st.Port > 65535 {
			v.addError("store.port", "数据库端口必须在1-65535范围内", strconv.Itoa(st.Port))
		}
		if st.User == "" {
			v.addError("store.user", "数据库用户名不能为空", "")
		}
		if st.Database == "" {
			v.addError("store.database", "数据库名不能为空", "")
		}
	}

	if st.Driver == "postgres" || st.Driver == "postgresql" {
		validSSLModes := []string{"", "disable", "require", "verify-ca", "verify-full"}
		if !v.contains(validSSLModes, st.SSLMode) {
			v.addError("store.ssl_mode", "无效的SSL模式", st.SSLMode)
		}
	}
}

// validateCrawlerConfig 验证爬虫配置
func (v *ConfigValidator) validateCrawlerConfig(config *CrawlerConfig) {
	validModes := []string{"script", "browser"}
	if !v.contains(validModes, config.Mode) {
		v.addError("crawler.mode", "爬虫模式必须是script或browser之一", config.Mode)
	}

	if config.Timeout < 0 {
		v.addError("crawler.timeout", "抓取超时不能为负", config.Timeout.String())
	}
}

// validateLogConfig 验证日志配置
func (v *ConfigValidator) validateLogConfig(config *Config) {
	validLevels := []string{"debug", "info", "warn", "error"}
	if !v.contains(validLevels, config.Log.Level) {
		v.addError("log.level", "日志级别必须是debug、info、warn或error之一", config.Log.Level)
	}

	validFormats := []string{"json", "console"}
	if !v.contains(validFormats, config.Log.Format) {
		v.addError("log.format", "日志格式必须是json或console之一", config.Log.Format)
	}
}

// validateRetentionConfig 验证保留期配置
func (v *ConfigValidator) validateRetentionConfig(config *RetentionConfig) {
	if config.TaskLogDays < 1 {
		v.addError("retention.task_log_days", "保留天数必须大于0", strconv.Itoa(config.TaskLogDays))
	}
	if config.ResearchRunDays < 1 {
		v.addError("retention.research_run_days", "保留天数必须大于0", strconv.Itoa(config.ResearchRunDays))
	}
	if config.SnapshotDays < 1 {
		v.addError("retention.snapshot_days", "保留天数必须大于0", strconv.Itoa(config.SnapshotDays))
	}
}

// addError 添加验证错误
func (v *ConfigValidator) addError(field, message, value string) {
	v.errors = append(v.errors, ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	})
}

// contains 检查切片是否包含指定值
func (v *ConfigValidator) contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
