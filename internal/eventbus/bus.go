package eventbus

import (
	"sync"
	"sync/atomic"
	"time"
)

// 事件类型
const (
	// 批量检测生命周期
	EventBatchCheckStart    = "batch_check_start"
	EventBatchCheckProgress = "batch_check_progress"
	EventBatchCheckComplete = "batch_check_complete"
	// 单个监控项排名发生显著变化
	EventRankChange = "rank_change"
	// 市场调研任务完成（成功或失败）
	EventMarketResearchComplete = "market_research_complete"
)

// Event 进程内事件
//
// 约定：Publish 不阻塞；订阅方消费慢时事件会被丢弃。
// Data 应当可 JSON 序列化，SSE 推送会直接编码它。
type Event struct {
	Type string    `json:"type"`
	Time time.Time `json:"time"`
	Data any       `json:"data"`
}

// BatchCheckStart 批量检测开始
type BatchCheckStart struct {
	TaskLogID int64  `json:"task_log_id"`
	Kind      string `json:"kind"` // auto, manual
	Total     int    `json:"total"`
}

// BatchCheckProgress 批量检测进度，completed 单调递增
type BatchCheckProgress struct {
	TaskLogID int64  `json:"task_log_id"`
	Completed int    `json:"completed"`
	Total     int    `json:"total"`
	Message   string `json:"message"` // 当前正在检测的关键词描述
}

// BatchCheckComplete 批量检测结束
type BatchCheckComplete struct {
	TaskLogID int64 `json:"task_log_id"`
	Success   int   `json:"success"`
	Failed    int   `json:"failed"`
}

// RankChange 排名显著变化
type RankChange struct {
	TargetID   int64  `json:"target_id"`
	Keyword    string `json:"keyword"`
	ASIN       string `json:"asin"`
	Country    string `json:"country"`
	OldRank    *int64 `json:"old_rank"`
	NewRank    *int64 `json:"new_rank"`
	Delta      int64  `json:"delta"`
	ChangeType string `json:"change_type"`
}

// MarketResearchComplete 市场调研任务结束
type MarketResearchComplete struct {
	TaskID   int64  `json:"task_id"`
	TaskName string `json:"task_name"`
	RunID    int64  `json:"run_id"`
	Status   string `json:"status"` // completed, failed
	Summary  string `json:"summary,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Bus 进程内事件总线
type Bus interface {
	Publish(e Event)
	Subscribe(buffer int) (ch <-chan Event, unsubscribe func())
}

// New 创建内存扇出总线，不持有任何后台 goroutine
func New() Bus {
	return &memBus{subs: map[uint64]chan Event{}}
}

type memBus struct {
	mu   sync.RWMutex
	subs map[uint64]chan Event
	seq  atomic.Uint64
}

func (b *memBus) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	// 先快照订阅者，发送时不持锁
	b.mu.RLock()
	chs := make([]chan Event, 0, len(b.subs))
	for _, ch := range b.subs {
		chs = append(chs, ch)
	}
	b.mu.RUnlock()

	for _, ch := range chs {
		// 非阻塞投递，订阅方消费慢则丢弃。
		// 并发退订会关闭通道，send 的 panic 在这里吸收。
		func() {
			defer func() { _ = recover() }()
			select {
			case ch <- e:
			default:
			}
		}()
	}
}

func (b *memBus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 8
	}
	ch := make(chan Event, buffer)
	id := b.seq.Add(1)

	b.mu.Lock()
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, unsub
}
