package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/rankpulse/monitor/internal/config"
	"github.com/rankpulse/monitor/internal/logger"
	"github.com/rankpulse/monitor/internal/metrics"
	"github.com/rankpulse/monitor/internal/store"
)

// CleanupScheduler 保留期清理调度器
//
// 按 cron 表达式定期删除过期的任务日志、调研执行记录和快照。
type CleanupScheduler struct {
	config  config.RetentionConfig
	store   store.Store
	metrics *metrics.Metrics
	log     *logger.Logger
	cron    *cron.Cron

	now func() time.Time
}

// NewCleanupScheduler 创建清理调度器
func NewCleanupScheduler(cfg config.RetentionConfig, st store.Store, m *metrics.Metrics, log *logger.Logger) *CleanupScheduler {
	return &CleanupScheduler{
		config:  cfg,
		store:   st,
		metrics: m,
		log:     log.WithComponent("cleanup"),
		cron:    cron.New(),
		now:     time.Now,
	}
}

// Start 启动清理调度器
func (cs *CleanupScheduler) Start() error {
	_, err := cs.cron.AddFunc(cs.config.Cron, cs.runCleanup)
	if err != nil {
		return fmt.Errorf("添加清理任务失败: %w", err)
	}
	cs.cron.Start()
	cs.log.Info("保留期清理调度器已启动", zap.String("cron", cs.config.Cron))
	return nil
}

// Stop 停止清理调度器
func (cs *CleanupScheduler) Stop() {
	cs.cron.Stop()
	cs.log.Info("保留期清理调度器已停止")
}

// runCleanup 执行一轮清理
func (cs *CleanupScheduler) runCleanup() {
	ctx := context.Background()
	now := cs.now()

	type target struct {
		table string
		days  int
		prune func(context.Context, time.Time) (int64, error)
	}
	targets := []target{
		{"task_logs", cs.config.TaskLogDays, cs.store.PruneTaskLogs},
		{"research_runs", cs.config.ResearchRunDays, cs.store.PruneResearchRuns},
		{"snapshots", cs.config.SnapshotDays, cs.store.PruneSnapshots},
	}

	for _, t := range targets {
		before := now.AddDate(0, 0, -t.days)
		removed, err := t.prune(ctx, before)
		if err != nil {
			cs.log.Error("清理失败", zap.String("table", t.table), zap.Error(err))
			if cs.metrics != nil {
				cs.metrics.RecordError("cleanup")
			}
			continue
		}
		if removed > 0 {
			cs.log.Info("清理完成",
				zap.String("table", t.table),
				zap.Int64("removed", removed),
				zap.Int("retention_days", t.days))
		}
		if cs.metrics != nil {
			cs.metrics.RecordPruned(t.table, removed)
		}
	}
}
