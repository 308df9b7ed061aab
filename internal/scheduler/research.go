package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
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

// CategoryCrawler 类目 BSR 爬取合同
type CategoryCrawler interface {
	FetchCategoryBSR(ctx context.Context, marketplace, categoryID string) (*crawler.BSRResult, error)
}

// ReportGenerator AI 报告生成合同
type ReportGenerator interface {
	GenerateMarketReport(ctx context.Context, model, marketplace, categoryName, productsJSON string) (string, error)
}

// SnapshotArchiver 快照归档合同，*store.Archive 满足该接口
type SnapshotArchiver interface {
	SaveSnapshot(ctx context.Context, snap models.Snapshot) error
}

// ResearchScheduler 市场调研调度器
//
// 每分钟醒来一次，按业务时区做分钟级精确匹配；每个任务每个
// 自然日最多执行一次。一个 tick 内的到期任务串行执行，同一
// 时刻最多占用一个爬取会话。
type ResearchScheduler struct {
	store   store.Store
	crawler CategoryCrawler
	ai      ReportGenerator
	archive SnapshotArchiver
	bus     eventbus.Bus
	metrics *metrics.Metrics
	log     *logger.Logger

	mu      sync.Mutex
	running atomic.Bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	now func() time.Time
}

// NewResearchScheduler 创建市场调研调度器；archive 可为 nil
func NewResearchScheduler(st store.Store, cr CategoryCrawler, ai ReportGenerator, archive SnapshotArchiver, bus eventbus.Bus, m *metrics.Metrics, log *logger.Logger) *ResearchScheduler {
	return &ResearchScheduler{
		store:   st,
		crawler: cr,
		ai:      ai,
		archive: archive,
		bus:     bus,
		metrics: m,
		log:     log.WithComponent("research-scheduler"),
		now:     time.Now,
	}
}

// IsRunning 调度循环是否在运行
func (s *ResearchScheduler) IsRunning() bool {
	return s.running.Load()
}

// Start 启动调度循环；已在运行时为空操作
func (s *ResearchScheduler) Start() {
	// 与排名调度器相同：通道就位、循环启动后才置运行标志
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

	s.log.Info("市场调研调度器已启动")
}

// Stop 停止调度循环，等待当前 tick 结束
func (s *ResearchScheduler) Stop() {
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
	s.log.Info("市场调研调度器已停止")
}

func (s *ResearchScheduler) loop() {
	defer close(s.doneCh)
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.tick(context.Background())
		}
	}
}

// tick 一次调度循环：对每个启用任务做分钟级精确匹配
func (s *ResearchScheduler) tick(ctx context.Context) {
	tasks, err := s.store.ListEnabledResearchTasks(ctx)
	if err != nil {
		s.log.Error("读取调研任务失败", zap.Error(err))
		return
	}

	now := s.now().In(rank.BusinessZone)

	for _, task := range tasks {
		if !s.isDue(task, now) {
			continue
		}
		s.runTask(ctx, task)
	}
}

// isDue 任务是否在当前分钟到期
//
// 精确匹配 HH:MM：错过的分钟当天不再补跑。周任务的日集合
// 以 0=周日 记录，与 time.Weekday 一致。
func (s *ResearchScheduler) isDue(task models.ResearchTask, now time.Time) bool {
	parts := strings.Split(task.ScheduleTime, ":")
	if len(parts) != 2 {
		return false
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		hour = 0
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		minute = 0
	}

	if now.Hour() != hour || now.Minute() != minute {
		return false
	}

	switch task.ScheduleType {
	case "daily":
		// 每天都到期
	case "weekly":
		weekday := int(now.Weekday())
		found := false
		for _, d := range task.ScheduleDays {
			if d == weekday {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	default:
		return false
	}

	// 今天已经跑过就不再跑
	if task.LastRunAt != nil {
		today := now.Format("2006-01-02")
		if task.LastRunAt.In(rank.BusinessZone).Format("2006-01-02") == today {
			return false
		}
	}
	return true
}

// runTask 执行一个到期任务：爬取 → 快照 → 摘要 → AI 报告
func (s *ResearchScheduler) runTask(ctx context.Context, task models.ResearchTask) {
	start := s.now()
	s.log.Info("执行调研任务", zap.Int64("task_id", task.ID), zap.String("name", task.Name))

	runID, err := s.store.CreateResearchRun(ctx, task.ID)
	if err != nil {
		s.log.Error("创建执行记录失败", zap.Int64("task_id", task.ID), zap.Error(err))
		return
	}

	bsr, err := s.crawler.FetchCategoryBSR(ctx, task.Marketplace, task.CategoryID)
	if err != nil {
		// 爬取失败：执行记录先进终态，任务再标记失败
		errMsg := err.Error()
		if e := s.store.FailResearchRun(ctx, runID, errMsg); e != nil {
			s.log.Error("标记执行失败失败", zap.Int64("run_id", runID), zap.Error(e))
		}
		if e := s.store.UpdateTaskLastRun(ctx, task.ID, "failed", s.now()); e != nil {
			s.log.Error("更新任务最后运行失败", zap.Int64("task_id", task.ID), zap.Error(e))
		}
		s.publish(task, runID, "failed", "", errMsg)
		if s.metrics != nil {
			s.metrics.RecordResearchRun("failed", s.now().Sub(start))
			s.metrics.RecordError("research-crawler")
		}
		s.log.Warn("调研任务爬取失败", zap.Int64("task_id", task.ID), zap.String("error", errMsg))
		return
	}

	productsData, err := json.Marshal(bsr.Products)
	if err != nil {
		productsData = []byte("[]")
	}
	productsJSON := string(productsData)

	var snapshotID *int64
	snap := models.Snapshot{
		Marketplace:  task.Marketplace,
		CategoryID:   task.CategoryID,
		CategoryName: task.CategoryName,
		ProductsJSON: productsJSON,
		ProductCount: int64(len(bsr.Products)),
	}
	if id, err := s.store.SaveSnapshot(ctx, snap); err != nil {
		s.log.Error("保存快照失败", zap.Int64("task_id", task.ID), zap.Error(err))
	} else {
		snapshotID = &id
		snap.ID = id
	}
	if s.archive != nil {
		if err := s.archive.SaveSnapshot(ctx, snap); err != nil {
			// 归档尽力而为
			s.log.Warn("快照归档失败", zap.Int64("task_id", task.ID), zap.Error(err))
		}
	}

	summary := buildSummary(task, bsr.Products)

	categoryName := task.CategoryID
	if task.CategoryName != nil && *task.CategoryName != "" {
		categoryName = *task.CategoryName
	}

	// AI 失败不算执行失败，降级为只有摘要
	var report *string
	if content, err := s.ai.GenerateMarketReport(ctx, task.AIModel, task.Marketplace, categoryName, productsJSON); err != nil {
		s.log.Warn("AI 报告生成失败", zap.Int64("task_id", task.ID), zap.Error(err))
		if s.metrics != nil {
			s.metrics.RecordError("ai")
		}
	} else {
		report = &content
	}

	if err := s.store.CompleteResearchRun(ctx, runID, summary, report, snapshotID); err != nil {
		s.log.Error("完成执行记录失败", zap.Int64("run_id", runID), zap.Error(err))
	}
	if err := s.store.UpdateTaskLastRun(ctx, task.ID, "completed", s.now()); err != nil {
		s.log.Error("更新任务最后运行失败", zap.Int64("task_id", task.ID), zap.Error(err))
	}

	s.publish(task, runID, "completed", summary, "")
	if s.metrics != nil {
		s.metrics.RecordResearchRun("completed", s.now().Sub(start))
	}
	s.log.Info("调研任务完成", zap.Int64("task_id", task.ID), zap.Int64("run_id", runID))
}

// buildSummary 产品数与价格区间的简要摘要
func buildSummary(task models.ResearchTask, products []crawler.BSRProduct) string {
	var prices []float64
	for _, p := range products {
		if p.Price == nil {
			continue
		}
		if v, ok := parsePrice(*p.Price); ok {
			prices = append(prices, v)
		}
	}

	priceInfo := "价格信息暂无"
	if len(prices) > 0 {
		minPrice, maxPrice := prices[0], prices[0]
		for _, v := range prices[1:] {
			if v < minPrice {
				minPrice = v
			}
			if v > maxPrice {
				maxPrice = v
			}
		}
		priceInfo = fmt.Sprintf("价格范围: $%.2f - $%.2f", minPrice, maxPrice)
	}

	categoryName := task.CategoryID
	if task.CategoryName != nil && *task.CategoryName != "" {
		categoryName = *task.CategoryName
	}

	return fmt.Sprintf("类目: %s (%s)\n获取 %d 个产品\n%s",
		categoryName, task.Marketplace, len(products), priceInfo)
}

// parsePrice 从自由文本价格中提取数值，例如 "$19.99" -> 19.99。
// 去掉前导的非数字字符后整体解析，解析不了的条目由调用方排除。
func parsePrice(raw string) (float64, bool) {
	trimmed := strings.TrimLeftFunc(raw, func(r rune) bool {
		return r < '0' || r > '9'
	})
	v, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func (s *ResearchScheduler) publish(task models.ResearchTask, runID int64, status, summary, errMsg string) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventbus.Event{
		Type: eventbus.EventMarketResearchComplete,
		Data: eventbus.MarketResearchComplete{
			TaskID:   task.ID,
			TaskName: task.Name,
			RunID:    runID,
			Status:   status,
			Summary:  summary,
			Error:    errMsg,
		},
	})
}
