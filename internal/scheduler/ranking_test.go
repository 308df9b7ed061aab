package scheduler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rankpulse/monitor/internal/eventbus"
	"github.com/rankpulse/monitor/internal/models"
	"github.com/rankpulse/monitor/internal/rank"
)

// inWindow 返回一个落在早间窗口内的业务时间（周一 09:00）
func inWindow() time.Time {
	return time.Date(2026, 8, 31, 9, 0, 0, 0, rank.BusinessZone)
}

func newRankingFixture(st *fakeStore, batcher *fakeBatcher) (*RankingScheduler, eventbus.Bus) {
	bus := eventbus.New()
	s := NewRankingScheduler(st, batcher, bus, nil, testLogger())
	return s, bus
}

func enableSettings(s *RankingScheduler) {
	settings := models.DefaultSchedulerSettings()
	settings.Enabled = true
	_ = s.UpdateSettings(context.Background(), settings)
}

func seedTarget(st *fakeStore, oldRank *int64) {
	st.products = []models.Product{{ID: 1, Name: "耳机", ASIN: "B00X", Country: "US"}}
	target := models.MonitoringTarget{
		ID: 101, ProductID: 1, Keyword: "wireless earbuds", ASIN: "B00X", Country: "US",
		OrganicRank: oldRank,
	}
	st.pending[1] = []models.MonitoringTarget{target}
	st.targets[101] = target
}

func TestRankingTick(t *testing.T) {
	t.Run("到期且在窗口内触发批量检测", func(t *testing.T) {
		st := newFakeStore()
		seedTarget(st, int64p(20))
		batcher := &fakeBatcher{results: okResults(12)}
		s, _ := newRankingFixture(st, batcher)
		enableSettings(s)
		s.now = inWindow

		s.tick(context.Background())

		if batcher.callCount() != 1 {
			t.Fatalf("期望 1 次批量检测, 实际 %d", batcher.callCount())
		}
		log := st.taskLogs[1]
		if log == nil || log.Kind != "auto" || log.Status != "completed" || log.Success != 1 {
			t.Errorf("任务日志不符: %+v", log)
		}
	})

	t.Run("未启用时不做任何事", func(t *testing.T) {
		st := newFakeStore()
		seedTarget(st, nil)
		batcher := &fakeBatcher{results: okResults(5)}
		s, _ := newRankingFixture(st, batcher)
		s.now = inWindow

		s.tick(context.Background())

		if batcher.callCount() != 0 {
			t.Errorf("未启用不应检测, 实际 %d 次", batcher.callCount())
		}
		if s.Status().LastCheckTime != nil {
			t.Error("未启用不应推进最后检测时间")
		}
	})

	t.Run("小时级限流", func(t *testing.T) {
		st := newFakeStore()
		seedTarget(st, int64p(20))
		batcher := &fakeBatcher{results: okResults(12)}
		s, _ := newRankingFixture(st, batcher)
		enableSettings(s)

		base := inWindow()
		s.now = func() time.Time { return base }
		s.tick(context.Background())
		// 同一小时内的后续 tick 不再检测
		s.now = func() time.Time { return base.Add(30 * time.Minute) }
		s.tick(context.Background())
		if batcher.callCount() != 1 {
			t.Fatalf("一小时内期望 1 次检测, 实际 %d", batcher.callCount())
		}
		// 满一小时后再次检测
		s.now = func() time.Time { return base.Add(time.Hour) }
		s.tick(context.Background())
		if batcher.callCount() != 2 {
			t.Errorf("满一小时期望 2 次检测, 实际 %d", batcher.callCount())
		}
	})

	t.Run("窗口外空批次仍推进最后检测时间", func(t *testing.T) {
		st := newFakeStore()
		seedTarget(st, int64p(20))
		batcher := &fakeBatcher{results: okResults(12)}
		s, _ := newRankingFixture(st, batcher)
		enableSettings(s)
		// 12 点不在 [8,10) 或 [18,21) 内
		s.now = func() time.Time { return time.Date(2026, 8, 31, 12, 0, 0, 0, rank.BusinessZone) }

		s.tick(context.Background())

		if batcher.callCount() != 0 {
			t.Errorf("窗口外不应检测, 实际 %d 次", batcher.callCount())
		}
		if s.Status().LastCheckTime == nil {
			t.Error("空批次也应推进最后检测时间")
		}
	})

	t.Run("批级失败合成逐任务失败", func(t *testing.T) {
		st := newFakeStore()
		seedTarget(st, int64p(20))
		batcher := &fakeBatcher{err: errors.New("python 进程不可用")}
		s, _ := newRankingFixture(st, batcher)
		enableSettings(s)
		s.now = inWindow

		s.tick(context.Background())

		log := st.taskLogs[1]
		if log == nil || log.Status != "completed" || log.Failed != 1 || log.Success != 0 {
			t.Errorf("批级失败后任务日志不符: %+v", log)
		}
		// 失败的任务不写回排名
		if st.targets[101].LastCheckedAt != nil {
			t.Error("失败任务不应写回排名")
		}
	})

	t.Run("显著排名变化发布事件", func(t *testing.T) {
		st := newFakeStore()
		seedTarget(st, int64p(20))
		batcher := &fakeBatcher{results: okResults(12)} // delta = 8 >= 阈值 5
		s, bus := newRankingFixture(st, batcher)

		settings := models.DefaultSchedulerSettings()
		settings.Enabled = true
		settings.RankChangeThreshold = 5
		_ = s.UpdateSettings(context.Background(), settings)
		s.now = inWindow

		ch, unsub := bus.Subscribe(32)
		defer unsub()

		s.tick(context.Background())

		var change *eventbus.RankChange
		for len(ch) > 0 {
			e := <-ch
			if e.Type == eventbus.EventRankChange {
				c := e.Data.(eventbus.RankChange)
				change = &c
			}
		}
		if change == nil {
			t.Fatal("未收到排名变化事件")
		}
		if change.Delta != 8 || change.ChangeType != "improved" {
			t.Errorf("变化事件不符: %+v", change)
		}
	})

	t.Run("新鲜度期限可配置", func(t *testing.T) {
		st := newFakeStore()
		seedTarget(st, int64p(20))
		batcher := &fakeBatcher{results: okResults(12)}
		s, _ := newRankingFixture(st, batcher)
		enableSettings(s)
		s.now = inWindow

		s.tick(context.Background())
		if st.lastHorizon != 4*time.Hour {
			t.Errorf("默认期限 = %v, 期望 4h", st.lastHorizon)
		}

		settings := s.Settings()
		settings.FreshnessHours = 8
		settings.MorningEnd = 12
		_ = s.UpdateSettings(context.Background(), settings)
		s.now = func() time.Time { return inWindow().Add(time.Hour) } // 过小时级限流

		s.tick(context.Background())
		if st.lastHorizon != 8*time.Hour {
			t.Errorf("期限 = %v, 期望 8h", st.lastHorizon)
		}
	})

	t.Run("进度事件携带检测描述", func(t *testing.T) {
		st := newFakeStore()
		seedTarget(st, int64p(20))
		batcher := &fakeBatcher{results: okResults(12)}
		s, bus := newRankingFixture(st, batcher)
		enableSettings(s)
		s.now = inWindow

		ch, unsub := bus.Subscribe(32)
		defer unsub()

		s.tick(context.Background())

		var progress *eventbus.BatchCheckProgress
		for len(ch) > 0 {
			e := <-ch
			if e.Type == eventbus.EventBatchCheckProgress {
				p := e.Data.(eventbus.BatchCheckProgress)
				progress = &p
			}
		}
		if progress == nil {
			t.Fatal("未收到进度事件")
		}
		if progress.Completed != 1 || progress.Total != 1 {
			t.Errorf("进度不符: %+v", progress)
		}
		if !strings.Contains(progress.Message, "wireless earbuds") {
			t.Errorf("进度描述 = %q, 期望携带关键词", progress.Message)
		}
	})

	t.Run("低于阈值不发布事件", func(t *testing.T) {
		st := newFakeStore()
		seedTarget(st, int64p(14))
		batcher := &fakeBatcher{results: okResults(12)} // delta = 2 < 阈值 10
		s, bus := newRankingFixture(st, batcher)
		enableSettings(s)
		s.now = inWindow

		ch, unsub := bus.Subscribe(32)
		defer unsub()

		s.tick(context.Background())

		for len(ch) > 0 {
			if e := <-ch; e.Type == eventbus.EventRankChange {
				t.Errorf("不应收到排名变化事件: %+v", e.Data)
			}
		}
	})
}

func TestRankingStartStop(t *testing.T) {
	t.Run("重复启动是空操作", func(t *testing.T) {
		st := newFakeStore()
		batcher := &fakeBatcher{results: okResults(1)}
		s, _ := newRankingFixture(st, batcher)

		s.Start(context.Background())
		s.Start(context.Background())
		if !s.IsRunning() {
			t.Fatal("调度器应在运行")
		}

		s.Stop()
		if s.IsRunning() {
			t.Error("调度器应已停止")
		}
		// 重复停止安全
		s.Stop()
	})

	t.Run("启动时从持久层加载设置", func(t *testing.T) {
		st := newFakeStore()
		st.settings[SettingsKey] = `{"enabled":true,"morning_start":6,"morning_end":12,"evening_start":18,"evening_end":21,"rank_change_threshold":3,"max_pages":1}`
		batcher := &fakeBatcher{results: okResults(1)}
		s, _ := newRankingFixture(st, batcher)

		s.Start(context.Background())
		defer s.Stop()

		got := s.Settings()
		if !got.Enabled || got.MorningStart != 6 || got.RankChangeThreshold != 3 {
			t.Errorf("设置未加载: %+v", got)
		}
	})

	t.Run("启动与停止并发安全", func(t *testing.T) {
		st := newFakeStore()
		batcher := &fakeBatcher{results: okResults(1)}
		s, _ := newRankingFixture(st, batcher)

		for i := 0; i < 20; i++ {
			var wg sync.WaitGroup
			wg.Add(2)
			go func() {
				defer wg.Done()
				s.Start(context.Background())
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

func TestManualCheck(t *testing.T) {
	st := newFakeStore()
	seedTarget(st, int64p(20))
	batcher := &fakeBatcher{results: okResults(3)}
	s, _ := newRankingFixture(st, batcher)
	s.now = inWindow

	taskLogID, err := s.RunManualCheck(context.Background(), []int64{101})
	if err != nil {
		t.Fatalf("RunManualCheck 失败: %v", err)
	}

	log := st.taskLogs[taskLogID]
	if log == nil || log.Kind != "manual" || log.Status != "completed" || log.Success != 1 {
		t.Errorf("手动检测任务日志不符: %+v", log)
	}

	t.Run("不存在的监控项报错", func(t *testing.T) {
		if _, err := s.RunManualCheck(context.Background(), []int64{999}); err == nil {
			t.Error("期望错误")
		}
	})

	t.Run("空列表报错", func(t *testing.T) {
		if _, err := s.RunManualCheck(context.Background(), nil); err == nil {
			t.Error("期望错误")
		}
	})
}
