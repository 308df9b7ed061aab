package models

import "time"

// Product 被跟踪的产品
type Product struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	ASIN      string    `json:"asin"`
	Country   string    `json:"country"` // US, UK, DE, FR, IT, ES
	CreatedAt time.Time `json:"created_at"`
}

// MonitoringTarget 关键词排名监控项
//
// 每个监控项对应一个 (keyword, asin, country) 组合。
// 排名字段由调度器在每次检测后写回。
type MonitoringTarget struct {
	ID            int64      `json:"id"`
	ProductID     int64      `json:"product_id"`
	Keyword       string     `json:"keyword"`
	ASIN          string     `json:"asin"`
	Country       string     `json:"country"`
	OrganicRank   *int64     `json:"organic_rank"`
	OrganicPage   *int64     `json:"organic_page"`
	SponsoredRank *int64     `json:"sponsored_rank"`
	SponsoredPage *int64     `json:"sponsored_page"`
	ImageURL      *string    `json:"image_url"`
	Price         *string    `json:"price"`
	ReviewsCount  *int64     `json:"reviews_count"`
	Rating        *float64   `json:"rating"`
	LastCheckedAt *time.Time `json:"last_checked_at"`
	CreatedAt     time.Time  `json:"created_at"`
}

// RankingUpdate 一次成功检测后写回监控项的字段
type RankingUpdate struct {
	OrganicRank   *int64
	OrganicPage   *int64
	SponsoredRank *int64
	SponsoredPage *int64
	ImageURL      *string
	Price         *string
	ReviewsCount  *int64
	Rating        *float64
}

// SchedulerSettings 排名监控调度器设置
//
// 时间窗口为半开区间 [start, end)，单位小时，使用固定 UTC+8 业务时区。
// start == end 表示空窗口，永远不命中。
type SchedulerSettings struct {
	Enabled             bool  `json:"enabled"`
	MorningStart        int   `json:"morning_start"`
	MorningEnd          int   `json:"morning_end"`
	EveningStart        int   `json:"evening_start"`
	EveningEnd          int   `json:"evening_end"`
	RankChangeThreshold int64 `json:"rank_change_threshold"`
	NotifyOnEnterTop10  bool  `json:"notify_on_enter_top10"`
	NotifyOnExitTop10   bool  `json:"notify_on_exit_top10"`
	NotifyOnNewRank     bool  `json:"notify_on_new_rank"`
	NotifyOnLostRank    bool  `json:"notify_on_lost_rank"`
	MaxPages            int64 `json:"max_pages"`       // 监控页数: 1/3/5
	FreshnessHours      int   `json:"freshness_hours"` // 自动检测新鲜度期限，<=0 时取默认 4 小时
}

// DefaultSchedulerSettings 默认调度器设置
func DefaultSchedulerSettings() SchedulerSettings {
	return SchedulerSettings{
		Enabled:             false,
		MorningStart:        8,
		MorningEnd:          10,
		EveningStart:        18,
		EveningEnd:          21,
		RankChangeThreshold: 10,
		NotifyOnEnterTop10:  true,
		NotifyOnExitTop10:   true,
		NotifyOnNewRank:     true,
		NotifyOnLostRank:    true,
		MaxPages:            5,
		FreshnessHours:      4,
	}
}

// SchedulerStatus 调度器运行状态
type SchedulerStatus struct {
	IsRunning     bool       `json:"is_running"`
	LastCheckTime *time.Time `json:"last_check_time"`
	NextCheckTime *time.Time `json:"next_check_time"`
}

// TaskLog 一次批量检测的持久化记录
//
// 生命周期: created -> running (进度更新) -> completed。
// 由创建它的调度器独占更新。
type TaskLog struct {
	ID          int64      `json:"id"`
	Kind        string     `json:"kind"` // auto, manual
	Total       int64      `json:"total"`
	Completed   int64      `json:"completed"`
	Success     int64      `json:"success"`
	Failed      int64      `json:"failed"`
	Status      string     `json:"status"` // running, completed
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`
}

// ResearchTask 市场调研定时任务
//
// 除 LastRunAt/LastRunStatus 外的字段归 UI/持久层所有，
// 调度器只在每次执行后更新最后运行信息。
type ResearchTask struct {
	ID            int64      `json:"id"`
	Name          string     `json:"name"`
	Marketplace   string     `json:"marketplace"`
	CategoryID    string     `json:"category_id"`
	CategoryName  *string    `json:"category_name"`
	AIProvider    string     `json:"ai_provider"`
	AIModel       string     `json:"ai_model"`
	ScheduleType  string     `json:"schedule_type"` // daily, weekly
	ScheduleDays  []int      `json:"schedule_days"` // weekly 时生效，0=周日
	ScheduleTime  string     `json:"schedule_time"` // "HH:MM"
	Enabled       bool       `json:"enabled"`
	LastRunAt     *time.Time `json:"last_run_at"`
	LastRunStatus string     `json:"last_run_status"`
	CreatedAt     time.Time  `json:"created_at"`
}

// ResearchRun 市场调研任务的一次执行
//
// 在任务的 last_run_at 更新之前进入终态（completed 或 failed），
// 这样进程中途崩溃时任务当天仍可重试，UI 上会留下一条 running 记录。
type ResearchRun struct {
	ID         int64      `json:"id"`
	TaskID     int64      `json:"task_id"`
	Status     string     `json:"status"` // running, completed, failed
	Summary    *string    `json:"summary"`
	Report     *string    `json:"report"`
	SnapshotID *int64     `json:"snapshot_id"`
	Error      *string    `json:"error"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at"`
}

// Snapshot BSR 榜单快照
type Snapshot struct {
	ID           int64     `json:"id"`
	Marketplace  string    `json:"marketplace"`
	CategoryID   string    `json:"category_id"`
	CategoryName *string   `json:"category_name"`
	ProductsJSON string    `json:"products_json"`
	ProductCount int64     `json:"product_count"`
	CreatedAt    time.Time `json:"created_at"`
}
