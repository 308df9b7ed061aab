package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rankpulse/monitor/internal/logger"
	"github.com/rankpulse/monitor/internal/store"
)

// Config 监控服务配置
type Config struct {
	Server    ServerConfig        `yaml:"server"`
	Log       logger.Config       `yaml:"log"`
	Store     store.Config        `yaml:"store"`
	Archive   store.ArchiveConfig `yaml:"archive"`
	Crawler   CrawlerConfig       `yaml:"crawler"`
	AI        AIConfig            `yaml:"ai"`
	Retention RetentionConfig     `yaml:"retention"`
}

// ServerConfig 控制面 HTTP 服务配置
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	Mode string `yaml:"mode"` // debug, release
}

// CrawlerConfig 爬虫配置
type CrawlerConfig struct {
	Mode       string        `yaml:"mode"`        // script, browser
	ScriptDir  string        `yaml:"script_dir"`  // script 模式下 Python 脚本目录
	PythonPath string        `yaml:"python_path"` // 为空时自动探测 python3/python
	Timeout    time.Duration `yaml:"timeout"`     // 单次抓取超时
	Headless   bool          `yaml:"headless"`    // browser 模式
	Proxies    []string      `yaml:"proxies"`     // 轮换代理池，为空直连
}

// AIConfig AI 报告配置
type AIConfig struct {
	BaseURL string        `yaml:"base_url"` // 为空使用 DeepSeek 官方地址
	Timeout time.Duration `yaml:"timeout"`
}

// RetentionConfig 保留期清理配置
type RetentionConfig struct {
	Cron            string `yaml:"cron"`              // cron 表达式，为空用默认（每天 04:30）
	TaskLogDays     int    `yaml:"task_log_days"`     // 批量检测日志保留天数
	ResearchRunDays int    `yaml:"research_run_days"` // 调研执行记录保留天数
	SnapshotDays    int    `yaml:"snapshot_days"`     // 快照保留天数
}

// LoadConfig 加载配置文件；path 为空或文件不存在时返回默认配置
func LoadConfig(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, err
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	cfg.applyDefaults()
	LoadFromEnv(cfg)
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: 8090, Mode: "release"},
		Log:    logger.Config{Level: "info", Format: "console", OutputPath: "stdout"},
		Store:  store.Config{Driver: "sqlite", Path: "data/rankpulse.db"},
	}
}

// applyDefaults 填充零值字段
func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8090
	}
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Mode == "" {
		c.Server.Mode = "release"
	}
	if c.Crawler.Mode == "" {
		c.Crawler.Mode = "script"
	}
	if c.Crawler.Timeout == 0 {
		c.Crawler.Timeout = 5 * time.Minute
	}
	if c.AI.Timeout == 0 {
		c.AI.Timeout = 2 * time.Minute
	}
	if c.Retention.Cron == "" {
		c.Retention.Cron = "30 4 * * *"
	}
	if c.Retention.TaskLogDays == 0 {
		c.Retention.TaskLogDays = 90
	}
	if c.Retention.ResearchRunDays == 0 {
		c.Retention.ResearchRunDays = 180
	}
	if c.Retention.SnapshotDays == 0 {
		c.Retention.SnapshotDays = 180
	}
}
