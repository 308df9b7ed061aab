package crawler

import (
	"context"
	"time"
)

// Job 一次关键词排名检测任务
type Job struct {
	ID      int64  // monitoring target id
	Keyword string
	ASIN    string
	Country string
	Proxy   string // 为空表示直连
}

// ProductInfo 目标产品在搜索结果中的详细信息
type ProductInfo struct {
	ASIN         string   `json:"asin"`
	Title        *string  `json:"title"`
	Price        *string  `json:"price"`
	Rating       *float64 `json:"rating"`
	ReviewsCount *int64   `json:"reviews_count"`
	ImageURL     *string  `json:"image_url"`
}

// Result 排名检测结果
//
// Error 非空表示该任务失败；失败的任务不携带排名数据。
// 每个提交的任务都会得到恰好一个 Result，失败不会中断同批次的其他任务。
type Result struct {
	Keyword       string       `json:"keyword"`
	TargetASIN    string       `json:"target_asin"`
	Country       string       `json:"country"`
	OrganicRank   *int64       `json:"organic_rank"`
	OrganicPage   *int64       `json:"organic_page"`
	SponsoredRank *int64       `json:"sponsored_rank"`
	SponsoredPage *int64       `json:"sponsored_page"`
	ProductInfo   *ProductInfo `json:"product_info"`
	CheckedAt     time.Time    `json:"checked_at"`
	Error         string       `json:"error,omitempty"`
}

// BSRProduct BSR 榜单上的一个产品
type BSRProduct struct {
	ASIN         string  `json:"asin"`
	Title        string  `json:"title"`
	Price        *string `json:"price"`
	Rating       *string `json:"rating"`
	ReviewsCount *string `json:"reviews_count"`
	ImageURL     *string `json:"image_url"`
	BSRRank      int64   `json:"bsr_rank"`
}

// BSRResult 类目 BSR 爬取结果
type BSRResult struct {
	Marketplace string       `json:"marketplace"`
	CategoryID  string       `json:"category_id"`
	Products    []BSRProduct `json:"products"`
	CrawledAt   time.Time    `json:"crawled_at"`
}

// Client 爬虫子系统接口
//
// 实现可以是外部 Python 进程 (script)，也可以是进程内浏览器 (browser)；
// 调用方不感知具体实现。
type Client interface {
	// Preflight 检查爬虫子系统是否可用（依赖、可执行文件等）。
	// 返回错误表示整个子系统不可用，批量检测应整体失败。
	Preflight(ctx context.Context) error

	// CheckRanking 检测单个关键词排名。
	// 失败通过 Result.Error 返回，不返回 Go error。
	CheckRanking(ctx context.Context, job Job, maxPages int64) Result

	// FetchCategoryBSR 抓取类目 BSR 榜单。
	FetchCategoryBSR(ctx context.Context, marketplace, categoryID string) (*BSRResult, error)
}

// failedResult 构造统一的失败结果
func failedResult(job Job, errMsg string) Result {
	return Result{
		Keyword:    job.Keyword,
		TargetASIN: job.ASIN,
		Country:    job.Country,
		CheckedAt:  time.Now(),
		Error:      errMsg,
	}
}
