package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rankpulse/monitor/internal/crawler"
	"github.com/rankpulse/monitor/internal/eventbus"
	"github.com/rankpulse/monitor/internal/models"
	"github.com/rankpulse/monitor/internal/rank"
)

// mondayAt 2026-08-31 是周一
func mondayAt(hour, minute int) time.Time {
	return time.Date(2026, 8, 31, hour, minute, 0, 0, rank.BusinessZone)
}

func weeklyTask(id int64, days []int, at string) models.ResearchTask {
	return models.ResearchTask{
		ID: id, Name: "周报任务", Marketplace: "US", CategoryID: "electronics",
		CategoryName: strp("Electronics"),
		AIProvider:   "deepseek", AIModel: "deepseek-chat",
		ScheduleType: "weekly", ScheduleDays: days, ScheduleTime: at,
		Enabled: true,
	}
}

func newResearchFixture(st *fakeStore, cr *fakeCategoryCrawler, ai *fakeReporter) (*ResearchScheduler, eventbus.Bus) {
	bus := eventbus.New()
	s := NewResearchScheduler(st, cr, ai, nil, bus, nil, testLogger())
	return s, bus
}

func TestResearchTick(t *testing.T) {
	t.Run("分钟精确匹配才到期", func(t *testing.T) {
		st := newFakeStore()
		st.tasks = []models.ResearchTask{weeklyTask(1, []int{1}, "09:00")}
		cr := &fakeCategoryCrawler{}
		s, _ := newResearchFixture(st, cr, &fakeReporter{report: "# 报告"})

		s.now = func() time.Time { return mondayAt(9, 1) }
		s.tick(context.Background())
		if cr.callCount() != 0 {
			t.Errorf("09:01 不应执行, 实际 %d 次", cr.callCount())
		}

		s.now = func() time.Time { return mondayAt(9, 0) }
		s.tick(context.Background())
		if cr.callCount() != 1 {
			t.Errorf("09:00 应执行, 实际 %d 次", cr.callCount())
		}
	})

	t.Run("周任务只在配置的星期执行", func(t *testing.T) {
		st := newFakeStore()
		// 0=周日，周一是 1；配置周日任务，周一不应执行
		st.tasks = []models.ResearchTask{weeklyTask(1, []int{0}, "09:00")}
		cr := &fakeCategoryCrawler{}
		s, _ := newResearchFixture(st, cr, &fakeReporter{report: "# 报告"})
		s.now = func() time.Time { return mondayAt(9, 0) }

		s.tick(context.Background())
		if cr.callCount() != 0 {
			t.Errorf("周一不应执行周日任务, 实际 %d 次", cr.callCount())
		}
	})

	t.Run("每日任务到期执行并只执行一次", func(t *testing.T) {
		st := newFakeStore()
		task := weeklyTask(1, nil, "09:00")
		task.ScheduleType = "daily"
		st.tasks = []models.ResearchTask{task}
		cr := &fakeCategoryCrawler{}
		s, _ := newResearchFixture(st, cr, &fakeReporter{report: "# 报告"})
		s.now = func() time.Time { return mondayAt(9, 0) }

		s.tick(context.Background())
		// 同一分钟再 tick 一次：last_run_at 已是今天，不再执行
		s.tick(context.Background())

		if cr.callCount() != 1 {
			t.Fatalf("当天期望恰好 1 次执行, 实际 %d", cr.callCount())
		}
	})

	t.Run("成功执行完整流水线", func(t *testing.T) {
		st := newFakeStore()
		st.tasks = []models.ResearchTask{weeklyTask(1, []int{1}, "09:00")}
		cr := &fakeCategoryCrawler{}
		s, bus := newResearchFixture(st, cr, &fakeReporter{report: "# AI 报告"})
		s.now = func() time.Time { return mondayAt(9, 0) }

		ch, unsub := bus.Subscribe(8)
		defer unsub()

		s.tick(context.Background())

		run := st.researchruns[1]
		if run == nil || run.Status != "completed" {
			t.Fatalf("执行记录不符: %+v", run)
		}
		if run.Report == nil || *run.Report != "# AI 报告" {
			t.Errorf("报告未保存: %v", run.Report)
		}
		if run.SnapshotID == nil {
			t.Error("快照引用缺失")
		}
		if run.Summary == nil || *run.Summary == "" {
			t.Error("摘要缺失")
		}

		if len(st.snapshots) != 1 || st.snapshots[0].ProductCount != 3 {
			t.Errorf("快照不符: %+v", st.snapshots)
		}

		// 执行记录先进终态，之后才更新任务
		var completeIdx, lastRunIdx int
		for i, call := range st.callOrder {
			switch call {
			case "CompleteResearchRun":
				completeIdx = i
			case "UpdateTaskLastRun":
				lastRunIdx = i
			}
		}
		if completeIdx > lastRunIdx {
			t.Errorf("执行记录应在任务更新前进入终态: %v", st.callOrder)
		}

		if st.tasks[0].LastRunStatus != "completed" || st.tasks[0].LastRunAt == nil {
			t.Errorf("任务最后运行信息不符: %+v", st.tasks[0])
		}

		select {
		case e := <-ch:
			done := e.Data.(eventbus.MarketResearchComplete)
			if done.Status != "completed" || done.TaskID != 1 {
				t.Errorf("完成事件不符: %+v", done)
			}
			if done.TaskName != "周报任务" {
				t.Errorf("事件任务名 = %q, 期望携带任务名", done.TaskName)
			}
		default:
			t.Error("未收到完成事件")
		}
	})

	t.Run("爬取失败标记失败并继续后续任务", func(t *testing.T) {
		st := newFakeStore()
		st.tasks = []models.ResearchTask{
			weeklyTask(1, []int{1}, "09:00"),
			weeklyTask(2, []int{1}, "09:00"),
		}
		cr := &fakeCategoryCrawler{err: errors.New("浏览器启动失败")}
		s, bus := newResearchFixture(st, cr, &fakeReporter{report: "# 报告"})
		s.now = func() time.Time { return mondayAt(9, 0) }

		ch, unsub := bus.Subscribe(8)
		defer unsub()

		s.tick(context.Background())

		// 两个任务都被尝试过
		if cr.callCount() != 2 {
			t.Errorf("期望尝试 2 个任务, 实际 %d", cr.callCount())
		}
		for id := int64(1); id <= 2; id++ {
			run := st.researchruns[id]
			if run == nil || run.Status != "failed" || run.Error == nil {
				t.Errorf("任务 %d 执行记录不符: %+v", id, run)
			}
		}
		if st.tasks[0].LastRunStatus != "failed" {
			t.Errorf("任务最后运行状态不符: %s", st.tasks[0].LastRunStatus)
		}

		events := 0
		for len(ch) > 0 {
			e := <-ch
			done := e.Data.(eventbus.MarketResearchComplete)
			if done.Status != "failed" || done.Error == "" || done.TaskName == "" {
				t.Errorf("失败事件不符: %+v", done)
			}
			events++
		}
		if events != 2 {
			t.Errorf("期望 2 个失败事件, 实际 %d", events)
		}
	})

	t.Run("AI 失败降级为只有摘要的完成", func(t *testing.T) {
		st := newFakeStore()
		st.tasks = []models.ResearchTask{weeklyTask(1, []int{1}, "09:00")}
		cr := &fakeCategoryCrawler{}
		s, _ := newResearchFixture(st, cr, &fakeReporter{err: errors.New("API 返回错误 401")})
		s.now = func() time.Time { return mondayAt(9, 0) }

		s.tick(context.Background())

		run := st.researchruns[1]
		if run == nil || run.Status != "completed" {
			t.Fatalf("AI 失败后执行记录应为 completed: %+v", run)
		}
		if run.Report != nil {
			t.Errorf("AI 失败不应有报告: %v", *run.Report)
		}
		if run.Summary == nil || *run.Summary == "" {
			t.Error("摘要缺失")
		}
	})

	t.Run("非法时间格式的任务被跳过", func(t *testing.T) {
		st := newFakeStore()
		st.tasks = []models.ResearchTask{weeklyTask(1, []int{1}, "0900")}
		cr := &fakeCategoryCrawler{}
		s, _ := newResearchFixture(st, cr, &fakeReporter{report: "# 报告"})
		s.now = func() time.Time { return mondayAt(9, 0) }

		s.tick(context.Background())
		if cr.callCount() != 0 {
			t.Errorf("非法时间格式不应执行, 实际 %d 次", cr.callCount())
		}
	})
}

func TestResearchStartStop(t *testing.T) {
	st := newFakeStore()
	s, _ := newResearchFixture(st, &fakeCategoryCrawler{}, &fakeReporter{})

	s.Start()
	s.Start()
	if !s.IsRunning() {
		t.Fatal("调度器应在运行")
	}
	s.Stop()
	s.Stop()
	if s.IsRunning() {
		t.Error("调度器应已停止")
	}

	t.Run("启动与停止并发安全", func(t *testing.T) {
		for i := 0; i < 20; i++ {
			var wg sync.WaitGroup
			wg.Add(2)
			go func() {
				defer wg.Done()
				s.Start()
			}()
			go func() {
				defer wg.Done()
				s.Stop()
			}()
			wg.Wait()
			s.Stop()
		}
		if s.IsRunning() {
			t.Error("调度器应已停止")
		}
	})
}

func TestBuildSummary(t *testing.T) {
	task := weeklyTask(1, []int{1}, "09:00")

	t.Run("价格范围取自可解析条目", func(t *testing.T) {
		products := []crawler.BSRProduct{
			{ASIN: "B001", Price: strp("$29.99")},
			{ASIN: "B002", Price: strp("$9.99")},
			{ASIN: "B003"},
			{ASIN: "B004", Price: strp("N/A")}, // 解析失败被排除
		}
		got := buildSummary(task, products)
		want := "类目: Electronics (US)\n获取 4 个产品\n价格范围: $9.99 - $29.99"
		if got != want {
			t.Errorf("摘要不符:\n%s\n!=\n%s", got, want)
		}
	})

	t.Run("无可解析价格", func(t *testing.T) {
		got := buildSummary(task, []crawler.BSRProduct{{ASIN: "B001"}})
		if got != "类目: Electronics (US)\n获取 1 个产品\n价格信息暂无" {
			t.Errorf("摘要不符: %s", got)
		}
	})
}

func TestParsePrice(t *testing.T) {
	cases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"$19.99", 19.99, true},
		{"US$ 5", 5, true},
		{"42", 42, true},
		{"N/A", 0, false},
		{"", 0, false},
		{"$19.99 - $24.99", 0, false}, // 带尾缀整体解析失败
	}
	for _, c := range cases {
		got, ok := parsePrice(c.in)
		if ok != c.ok || (ok && got != c.want) {
			t.Errorf("parsePrice(%q) = (%v, %v), 期望 (%v, %v)", c.in, got, ok, c.want, c.ok)
		}
	}
}
