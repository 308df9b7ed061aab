package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rankpulse/monitor/internal/crawler"
	"github.com/rankpulse/monitor/internal/logger"
	"github.com/rankpulse/monitor/internal/models"
	"github.com/rankpulse/monitor/internal/store"
)

func testLogger() *logger.Logger {
	l, _ := logger.NewLogger(&logger.Config{Level: "error", Format: "console"})
	return l
}

func int64p(v int64) *int64 { return &v }
func strp(v string) *string { return &v }

// fakeStore 内存版持久层，只实现调度器用到的方法。
// 嵌入接口让未覆盖的方法留空实现。
type fakeStore struct {
	store.Store

	mu          sync.Mutex
	settings    map[string]string
	products    []models.Product
	pending     map[int64][]models.MonitoringTarget
	targets     map[int64]models.MonitoringTarget
	lastHorizon time.Duration

	taskLogs     map[int64]*models.TaskLog
	nextTaskLog  int64
	researchruns map[int64]*models.ResearchRun
	nextRun      int64
	tasks        []models.ResearchTask
	snapshots    []models.Snapshot

	// 记录调用顺序，验证执行记录先于任务更新进入终态
	callOrder []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		settings:     map[string]string{},
		pending:      map[int64][]models.MonitoringTarget{},
		targets:      map[int64]models.MonitoringTarget{},
		taskLogs:     map[int64]*models.TaskLog{},
		researchruns: map[int64]*models.ResearchRun{},
	}
}

func (f *fakeStore) GetSetting(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.settings[key], nil
}

func (f *fakeStore) SetSetting(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.settings[key] = value
	return nil
}

func (f *fakeStore) ListProducts(_ context.Context) ([]models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Product(nil), f.products...), nil
}

func (f *fakeStore) ListPendingTargets(_ context.Context, productID int64, horizon time.Duration) ([]models.MonitoringTarget, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastHorizon = horizon
	return append([]models.MonitoringTarget(nil), f.pending[productID]...), nil
}

func (f *fakeStore) GetTarget(_ context.Context, id int64) (*models.MonitoringTarget, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.targets[id]; ok {
		return &t, nil
	}
	return nil, nil
}

func (f *fakeStore) UpdateTargetRanking(_ context.Context, id int64, upd models.RankingUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callOrder = append(f.callOrder, "UpdateTargetRanking")
	if t, ok := f.targets[id]; ok {
		t.OrganicRank = upd.OrganicRank
		t.OrganicPage = upd.OrganicPage
		now := time.Now()
		t.LastCheckedAt = &now
		f.targets[id] = t
	}
	return nil
}

func (f *fakeStore) CreateTaskLog(_ context.Context, kind string, total int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextTaskLog++
	f.taskLogs[f.nextTaskLog] = &models.TaskLog{
		ID: f.nextTaskLog, Kind: kind, Total: total, Status: "running", StartedAt: time.Now(),
	}
	return f.nextTaskLog, nil
}

func (f *fakeStore) UpdateTaskProgress(_ context.Context, id, completed int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if l, ok := f.taskLogs[id]; ok {
		l.Completed = completed
	}
	return nil
}

func (f *fakeStore) CompleteTaskLog(_ context.Context, id, success, failed int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if l, ok := f.taskLogs[id]; ok {
		l.Success = success
		l.Failed = failed
		l.Completed = success + failed
		l.Status = "completed"
	}
	return nil
}

func (f *fakeStore) ListEnabledResearchTasks(_ context.Context) ([]models.ResearchTask, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var enabled []models.ResearchTask
	for _, t := range f.tasks {
		if t.Enabled {
			enabled = append(enabled, t)
		}
	}
	return enabled, nil
}

func (f *fakeStore) UpdateTaskLastRun(_ context.Context, id int64, status string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callOrder = append(f.callOrder, "UpdateTaskLastRun")
	for i := range f.tasks {
		if f.tasks[i].ID == id {
			t := at
			f.tasks[i].LastRunAt = &t
			f.tasks[i].LastRunStatus = status
		}
	}
	return nil
}

func (f *fakeStore) CreateResearchRun(_ context.Context, taskID int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextRun++
	f.researchruns[f.nextRun] = &models.ResearchRun{
		ID: f.nextRun, TaskID: taskID, Status: "running", StartedAt: time.Now(),
	}
	return f.nextRun, nil
}

func (f *fakeStore) FailResearchRun(_ context.Context, id int64, errMsg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callOrder = append(f.callOrder, "FailResearchRun")
	if r, ok := f.researchruns[id]; ok {
		r.Status = "failed"
		r.Error = &errMsg
	}
	return nil
}

func (f *fakeStore) CompleteResearchRun(_ context.Context, id int64, summary string, report *string, snapshotID *int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callOrder = append(f.callOrder, "CompleteResearchRun")
	if r, ok := f.researchruns[id]; ok {
		r.Status = "completed"
		r.Summary = &summary
		r.Report = report
		r.SnapshotID = snapshotID
	}
	return nil
}

func (f *fakeStore) SaveSnapshot(_ context.Context, snap models.Snapshot) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	snap.ID = int64(len(f.snapshots) + 1)
	f.snapshots = append(f.snapshots, snap)
	return snap.ID, nil
}

// fakeBatcher 记录调用的批量编排器
type fakeBatcher struct {
	mu       sync.Mutex
	calls    int
	lastJobs []crawler.Job
	results  func(jobs []crawler.Job) []crawler.JobResult
	err      error
}

func (f *fakeBatcher) CheckRankingsBatch(_ context.Context, jobs []crawler.Job, _, _ int64, progress crawler.ProgressFunc) ([]crawler.JobResult, error) {
	f.mu.Lock()
	f.calls++
	f.lastJobs = jobs
	f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}

	results := f.results(jobs)
	for i := range results {
		if progress != nil {
			progress(int64(i+1), int64(len(jobs)), "正在检测: "+jobs[i].Keyword)
		}
	}
	return results, nil
}

func (f *fakeBatcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// okResults 所有任务都返回指定有机排名
func okResults(rank int64) func(jobs []crawler.Job) []crawler.JobResult {
	return func(jobs []crawler.Job) []crawler.JobResult {
		out := make([]crawler.JobResult, 0, len(jobs))
		for _, j := range jobs {
			r := rank
			out = append(out, crawler.JobResult{
				JobID: j.ID,
				Result: crawler.Result{
					Keyword:     j.Keyword,
					TargetASIN:  j.ASIN,
					Country:     j.Country,
					OrganicRank: &r,
					OrganicPage: int64p(1),
					CheckedAt:   time.Now(),
				},
			})
		}
		return out
	}
}

// fakeCategoryCrawler 固定返回的 BSR 爬虫
type fakeCategoryCrawler struct {
	mu     sync.Mutex
	calls  int
	result *crawler.BSRResult
	err    error
}

func (f *fakeCategoryCrawler) FetchCategoryBSR(_ context.Context, marketplace, categoryID string) (*crawler.BSRResult, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &crawler.BSRResult{
		Marketplace: marketplace,
		CategoryID:  categoryID,
		Products: []crawler.BSRProduct{
			{ASIN: "B001", Title: "Top Product", Price: strp("$29.99"), BSRRank: 1},
			{ASIN: "B002", Title: "Runner Up", Price: strp("$9.99"), BSRRank: 2},
			{ASIN: "B003", Title: "No Price", BSRRank: 3},
		},
		CrawledAt: time.Now(),
	}, nil
}

func (f *fakeCategoryCrawler) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeReporter AI 报告生成桩
type fakeReporter struct {
	report string
	err    error
}

func (f *fakeReporter) GenerateMarketReport(_ context.Context, _, _, _, _ string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.report, nil
}
