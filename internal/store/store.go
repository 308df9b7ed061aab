package store

import (
	"context"
	"fmt"
	"time"

	"github.com/rankpulse/monitor/internal/models"
)

// Store 持久层接口
//
// 调度器通过它读取设置与任务、写回检测结果；具体实现由配置的
// driver 决定（sqlite / postgres / mysql），上层不感知方言。
type Store interface {
	// 设置 KV，值为不透明字符串；键不存在返回空串而不是错误
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error

	// 产品与监控项
	CreateProduct(ctx context.Context, p models.Product) (int64, error)
	ListProducts(ctx context.Context) ([]models.Product, error)
	CreateTarget(ctx context.Context, t models.MonitoringTarget) (int64, error)
	ListTargets(ctx context.Context) ([]models.MonitoringTarget, error)
	GetTarget(ctx context.Context, id int64) (*models.MonitoringTarget, error)
	// ListPendingTargets 返回指定产品下超过 horizon 未检测的监控项
	ListPendingTargets(ctx context.Context, productID int64, horizon time.Duration) ([]models.MonitoringTarget, error)
	// UpdateTargetRanking 写回排名字段并推进 last_checked_at
	UpdateTargetRanking(ctx context.Context, id int64, upd models.RankingUpdate) error

	// 批量检测任务日志
	CreateTaskLog(ctx context.Context, kind string, total int64) (int64, error)
	UpdateTaskProgress(ctx context.Context, id int64, completed int64) error
	CompleteTaskLog(ctx context.Context, id int64, success, failed int64) error
	GetTaskLog(ctx context.Context, id int64) (*models.TaskLog, error)
	ListTaskLogs(ctx context.Context, limit int) ([]models.TaskLog, error)

	// 市场调研任务与执行记录
	CreateResearchTask(ctx context.Context, t models.ResearchTask) (int64, error)
	ListResearchTasks(ctx context.Context) ([]models.ResearchTask, error)
	ListEnabledResearchTasks(ctx context.Context) ([]models.ResearchTask, error)
	UpdateTaskLastRun(ctx context.Context, id int64, status string, at time.Time) error
	CreateResearchRun(ctx context.Context, taskID int64) (int64, error)
	FailResearchRun(ctx context.Context, id int64, errMsg string) error
	CompleteResearchRun(ctx context.Context, id int64, summary string, report *string, snapshotID *int64) error
	GetResearchRun(ctx context.Context, id int64) (*models.ResearchRun, error)
	ListResearchRuns(ctx context.Context, limit int) ([]models.ResearchRun, error)

	// BSR 快照
	SaveSnapshot(ctx context.Context, s models.Snapshot) (int64, error)

	// 保留期清理，返回删除行数
	PruneTaskLogs(ctx context.Context, before time.Time) (int64, error)
	PruneResearchRuns(ctx context.Context, before time.Time) (int64, error)
	PruneSnapshots(ctx context.Context, before time.Time) (int64, error)

	Ping(ctx context.Context) error
	Close() error
}

// Config 持久层配置
type Config struct {
	Driver string `yaml:"driver"` // sqlite, postgres, mysql
	// sqlite
	Path string `yaml:"path"`
	// postgres / mysql
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`
}

// Open 按配置打开持久层
func Open(cfg Config) (Store, error) {
	switch cfg.Driver {
	case "", "sqlite":
		return openSQL(cfg)
	case "postgres", "postgresql", "mysql":
		return openSQL(cfg)
	default:
		return nil, fmt.Errorf("不支持的存储驱动: %s", cfg.Driver)
	}
}
