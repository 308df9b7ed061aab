package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/rankpulse/monitor/internal/crawler"
	"github.com/rankpulse/monitor/internal/eventbus"
	"github.com/rankpulse/monitor/internal/logger"
	"github.com/rankpulse/monitor/internal/metrics"
	"github.com/rankpulse/monitor/internal/models"
	"github.com/rankpulse/monitor/internal/rank"
	"github.com/rankpulse/monitor/internal/store"
)

const (
	// SettingsKey 调度器设置在 KV 中的键
	SettingsKey = "scheduler_settings"
	// maxBrowsersKey 并发浏览器数设置键
	maxBrowsersKey = "max_browsers"

	defaultMaxBrowsers = 3
	tickInterval       = time.Minute
	checkInterval      = time.Hour
	// 自动检测路径的默认新鲜度：期限内检测过的监控项不重复检测，
	// 可通过设置的 freshness_hours 调整
	defaultFreshnessHorizon = 4 * time.Hour
)

// freshnessHorizon 设置中的新鲜度期限，非法值回落到默认 4 小时
func freshnessHorizon(settings models.SchedulerSettings) time.Duration {
	if settings.FreshnessHours <= 0 {
		return defaultFreshnessHorizon
	}
	return time.Duration(settings.FreshnessHours) * time.Hour
}

// BatchRunner 批量检测编排器合同
type BatchRunner interface {
	CheckRankingsBatch(ctx context.Context, jobs []crawler.Job, maxPages, maxBrowsers int64, progress crawler.ProgressFunc) ([]crawler.JobResult, error)
}

// RankingScheduler 关键词排名监控调度器
//
// 长驻循环，每分钟醒来一次；真正的检测频率由小时级限流和
// 时间窗口共同决定。Stop 只阻止下一轮 tick，进行中的批量
// 检测会执行完毕（优雅停止）。
type RankingScheduler struct {
	store   store.Store
	batcher BatchRunner
	bus     eventbus.Bus
	metrics *metrics.Metrics
	log     *logger.Logger

	mu        sync.Mutex
	settings  models.SchedulerSettings
	lastCheck *time.Time

	running atomic.Bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	// now 可注入，测试用
	now func() time.Time
}

// NewRankingScheduler 创建排名监控调度器
func NewRankingScheduler(st store.Store, batcher BatchRunner, bus eventbus.Bus, m *metrics.Metrics, log *logger.Logger) *RankingScheduler {
	return &RankingScheduler{
		store:    st,
		batcher:  batcher,
		bus:      bus,
		metrics:  m,
		log:      log.WithComponent("ranking-scheduler"),
		settings: models.DefaultSchedulerSettings(),
		now:      time.Now,
	}
}

// LoadSettings 从持久层加载设置；未持久化过时使用默认值
func (s *RankingScheduler) LoadSettings(ctx context.Context) error {
	raw, err := s.store.GetSetting(ctx, SettingsKey)
	if err != nil {
		return err
	}
	settings := models.DefaultSchedulerSettings()
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &settings); err != nil {
			return fmt.Errorf("解析调度器设置失败: %w", err)
		}
	}
	s.mu.Lock()
	s.settings = settings
	s.mu.Unlock()
	return nil
}

// UpdateSettings 更新并持久化设置
func (s *RankingScheduler) UpdateSettings(ctx context.Context, settings models.SchedulerSettings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return err
	}
	if err := s.store.SetSetting(ctx, SettingsKey, string(data)); err != nil {
		return err
	}
	s.mu.Lock()
	s.settings = settings
	s.mu.Unlock()
	return nil
}

// Settings 返回当前设置的副本
func (s *RankingScheduler) Settings() models.SchedulerSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// IsRunning 调度循环是否在运行
func (s *RankingScheduler) IsRunning() bool {
	return s.running.Load()
}

// Start 启动调度循环；已在运行时为空操作
func (s *RankingScheduler) Start(ctx context.Context) {
	// 通道先就位、循环先启动，再置运行标志，全程持锁，
	// 并发的 Stop 不会关到 nil 通道或等不到退出信号
	s.mu.Lock()
	if s.running.Load() {
		s.mu.Unlock()
		return
	}
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.running.Store(true)
	go s.loop()
	s.mu.Unlock()

	if err := s.LoadSettings(ctx); err != nil {
		s.log.Warn("加载调度器设置失败，使用默认值", zap.Error(err))
	}

	if s.metrics != nil {
		s.metrics.SchedulerRunning.Set(1)
	}
	s.log.Info("排名监控调度器已启动")
}

// Stop 停止调度循环，等待当前 tick 结束
func (s *RankingScheduler) Stop() {
	s.mu.Lock()
	if !s.running.Load() {
		s.mu.Unlock()
		return
	}
	s.running.Store(false)
	close(s.stopCh)
	doneCh := s.doneCh
	s.mu.Unlock()

	<-doneCh
	if s.metrics != nil {
		s.metrics.SchedulerRunning.Set(0)
	}
	s.log.Info("排名监控调度器已停止")
}

func (s *RankingScheduler) loop() {
	defer close(s.doneCh)
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			// 进行中的批量检测不接受取消
			s.tick(context.Background())
		}
	}
}

// tick 一次调度循环：小时级限流 + 时间窗口过滤 + 批量检测
func (s *RankingScheduler) tick(ctx context.Context) {
	settings := s.Settings()
	if !settings.Enabled {
		return
	}

	now := s.now()

	s.mu.Lock()
	due := s.lastCheck == nil || now.Sub(*s.lastCheck) >= checkInterval
	s.mu.Unlock()
	if !due {
		return
	}

	jobs, targets := s.collectDue(ctx, settings)

	if len(jobs) > 0 {
		s.runBatch(ctx, "auto", jobs, targets, settings)
	}

	// 空批次也推进最后检测时间，避免窗口外每分钟重查
	checked := s.now()
	s.mu.Lock()
	s.lastCheck = &checked
	s.mu.Unlock()
}

// collectDue 收集所有窗口内产品下超过新鲜度期限的监控项
func (s *RankingScheduler) collectDue(ctx context.Context, settings models.SchedulerSettings) ([]crawler.Job, map[int64]models.MonitoringTarget) {
	products, err := s.store.ListProducts(ctx)
	if err != nil {
		s.log.Error("读取产品列表失败", zap.Error(err))
		return nil, nil
	}

	var jobs []crawler.Job
	targets := make(map[int64]models.MonitoringTarget)
	now := s.now()

	for _, product := range products {
		country := product.Country
		if country == "" {
			country = "US"
		}
		if !rank.InCheckWindow(now, country, settings) {
			continue
		}
		pending, err := s.store.ListPendingTargets(ctx, product.ID, freshnessHorizon(settings))
		if err != nil {
			s.log.Error("读取待检测监控项失败", zap.Int64("product_id", product.ID), zap.Error(err))
			continue
		}
		for _, t := range pending {
			jobs = append(jobs, crawler.Job{
				ID:      t.ID,
				Keyword: t.Keyword,
				ASIN:    t.ASIN,
				Country: t.Country,
			})
			targets[t.ID] = t
		}
	}
	return jobs, targets
}

// RunManualCheck 立即对指定监控项执行一次批量检测，不受窗口和新鲜度限制。
// 返回任务日志 id。
func (s *RankingScheduler) RunManualCheck(ctx context.Context, targetIDs []int64) (int64, error) {
	if len(targetIDs) == 0 {
		return 0, fmt.Errorf("没有指定监控项")
	}

	settings := s.Settings()
	var jobs []crawler.Job
	targets := make(map[int64]models.MonitoringTarget)
	for _, id := range targetIDs {
		t, err := s.store.GetTarget(ctx, id)
		if err != nil {
			return 0, err
		}
		if t == nil {
			return 0, fmt.Errorf("监控项 %d 不存在", id)
		}
		jobs = append(jobs, crawler.Job{ID: t.ID, Keyword: t.Keyword, ASIN: t.ASIN, Country: t.Country})
		targets[t.ID] = *t
	}

	return s.runBatch(ctx, "manual", jobs, targets, settings), nil
}

// runBatch 执行一次批量检测并完成全部记账
func (s *RankingScheduler) runBatch(ctx context.Context, kind string, jobs []crawler.Job, targets map[int64]models.MonitoringTarget, settings models.SchedulerSettings) int64 {
	start := s.now()
	total := int64(len(jobs))

	taskLogID, err := s.store.CreateTaskLog(ctx, kind, total)
	if err != nil {
		s.log.Error("创建任务日志失败", zap.Error(err))
	}
	s.log.Info("开始批量检测",
		zap.String("kind", kind),
		zap.Int64("task_log_id", taskLogID),
		zap.Int64("total", total))

	s.publish(eventbus.EventBatchCheckStart, eventbus.BatchCheckStart{
		TaskLogID: taskLogID, Kind: kind, Total: int(total),
	})

	maxBrowsers := s.maxBrowsers(ctx)

	progress := func(completed, total int64, message string) {
		if taskLogID != 0 {
			if err := s.store.UpdateTaskProgress(ctx, taskLogID, completed); err != nil {
				s.log.Warn("更新任务进度失败", zap.Error(err))
			}
		}
		s.publish(eventbus.EventBatchCheckProgress, eventbus.BatchCheckProgress{
			TaskLogID: taskLogID, Completed: int(completed), Total: int(total), Message: message,
		})
	}

	results, batchErr := s.batcher.CheckRankingsBatch(ctx, jobs, settings.MaxPages, maxBrowsers, progress)
	if batchErr != nil {
		// 子系统整体不可用：为每个任务合成失败结果，记账保持一致
		s.log.Error("批量检测整体失败", zap.Error(batchErr))
		if s.metrics != nil {
			s.metrics.RecordError("crawler")
		}
		results = crawler.SynthesizeFailures(jobs, batchErr)
	}

	var success, failed int64
	for _, jr := range results {
		if jr.Result.Error != "" {
			failed++
			s.log.Warn("检测失败",
				zap.Int64("target_id", jr.JobID),
				zap.String("keyword", jr.Result.Keyword),
				zap.String("error", jr.Result.Error))
			continue
		}
		success++
		s.applyResult(ctx, jr, targets[jr.JobID], settings)
	}

	if taskLogID != 0 {
		if err := s.store.CompleteTaskLog(ctx, taskLogID, success, failed); err != nil {
			s.log.Error("完成任务日志失败", zap.Error(err))
		}
	}

	s.publish(eventbus.EventBatchCheckComplete, eventbus.BatchCheckComplete{
		TaskLogID: taskLogID, Success: int(success), Failed: int(failed),
	})
	if s.metrics != nil {
		s.metrics.RecordBatchCheck(kind, int(success), int(failed), s.now().Sub(start))
	}
	s.log.Info("批量检测完成",
		zap.Int64("task_log_id", taskLogID),
		zap.Int64("success", success),
		zap.Int64("failed", failed))

	return taskLogID
}

// applyResult 写回单个成功结果并评估排名变化
func (s *RankingScheduler) applyResult(ctx context.Context, jr crawler.JobResult, target models.MonitoringTarget, settings models.SchedulerSettings) {
	res := jr.Result

	upd := models.RankingUpdate{
		OrganicRank:   res.OrganicRank,
		OrganicPage:   res.OrganicPage,
		SponsoredRank: res.SponsoredRank,
		SponsoredPage: res.SponsoredPage,
	}
	if info := res.ProductInfo; info != nil {
		upd.ImageURL = info.ImageURL
		upd.Price = info.Price
		upd.ReviewsCount = info.ReviewsCount
		upd.Rating = info.Rating
	}
	if err := s.store.UpdateTargetRanking(ctx, jr.JobID, upd); err != nil {
		// 尽力写回，写失败不中断循环
		s.log.Error("写回排名失败", zap.Int64("target_id", jr.JobID), zap.Error(err))
	}

	delta, changeType, ok := rank.Classify(target.OrganicRank, res.OrganicRank)
	if !ok {
		return
	}
	if s.metrics != nil {
		s.metrics.RecordRankChange(string(changeType))
	}
	if !rank.ShouldNotify(delta, changeType, settings) {
		return
	}

	s.publish(eventbus.EventRankChange, eventbus.RankChange{
		TargetID:   target.ID,
		Keyword:    target.Keyword,
		ASIN:       target.ASIN,
		Country:    target.Country,
		OldRank:    target.OrganicRank,
		NewRank:    res.OrganicRank,
		Delta:      delta,
		ChangeType: string(changeType),
	})
}

// maxBrowsers 读取并发浏览器数设置，缺省 3
func (s *RankingScheduler) maxBrowsers(ctx context.Context) int64 {
	raw, err := s.store.GetSetting(ctx, maxBrowsersKey)
	if err != nil || raw == "" {
		return defaultMaxBrowsers
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n <= 0 {
		return defaultMaxBrowsers
	}
	return n
}

// Status 返回调度器状态
func (s *RankingScheduler) Status() models.SchedulerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := models.SchedulerStatus{
		IsRunning: s.running.Load() && s.settings.Enabled,
	}
	if s.lastCheck != nil {
		t := *s.lastCheck
		status.LastCheckTime = &t
		next := t.Add(checkInterval)
		status.NextCheckTime = &next
	}
	return status
}

func (s *RankingScheduler) publish(typ string, data any) {
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: typ, Data: data})
	}
}
