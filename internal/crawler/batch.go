package crawler

import (
	"context"
	"fmt"
	"sync"
)

// ProgressFunc 批量检测进度回调
//
// completed 按完成顺序单调递增，与提交顺序无关；每个任务至少回调一次。
type ProgressFunc func(completed, total int64, message string)

// JobResult 单个任务的终态结果
type JobResult struct {
	JobID  int64
	Result Result
}

// Batcher 批量检测编排器
//
// 内部最多并发 maxBrowsers 个爬取会话；对外表现为一次阻塞调用。
type Batcher struct {
	client Client
	proxy  *ProxyManager
}

// NewBatcher 创建批量编排器
func NewBatcher(client Client, proxy *ProxyManager) *Batcher {
	return &Batcher{client: client, proxy: proxy}
}

// CheckRankingsBatch 批量检测关键词排名
//
// 合同：
//   - 每个提交的任务恰好产生一个终态结果，单个任务失败不影响其他任务；
//   - 子系统整体不可用时返回批级错误，不产生任何结果（调用方负责
//     为每个任务合成失败结果）；
//   - progress 按完成顺序同步调用，结果切片按提交顺序返回。
func (b *Batcher) CheckRankingsBatch(
	ctx context.Context,
	jobs []Job,
	maxPages int64,
	maxBrowsers int64,
	progress ProgressFunc,
) ([]JobResult, error) {
	if err := b.client.Preflight(ctx); err != nil {
		return nil, fmt.Errorf("爬虫子系统不可用: %w", err)
	}

	total := int64(len(jobs))
	if total == 0 {
		return nil, nil
	}
	if maxBrowsers <= 0 {
		maxBrowsers = 1
	}

	results := make([]JobResult, len(jobs))

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		completed int64
	)
	sem := make(chan struct{}, maxBrowsers)

	for i, job := range jobs {
		wg.Add(1)
		go func(idx int, job Job) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if b.proxy != nil && job.Proxy == "" {
				job.Proxy = b.proxy.Next()
			}

			var res Result
			if ctx.Err() != nil {
				res = failedResult(job, fmt.Sprintf("批量检测被取消: %v", ctx.Err()))
			} else {
				res = b.client.CheckRanking(ctx, job, maxPages)
			}

			// 回调在锁内执行，保证 completed 对外单调递增
			mu.Lock()
			results[idx] = JobResult{JobID: job.ID, Result: res}
			completed++
			if progress != nil {
				progress(completed, total, fmt.Sprintf("正在检测: %s", job.Keyword))
			}
			mu.Unlock()
		}(i, job)
	}
	wg.Wait()

	return results, nil
}

// SynthesizeFailures 为批级失败合成逐任务失败结果
//
// 子系统整体不可用时调用，保证下游记账（任务日志、最后检测时间）
// 仍然对每个任务看到恰好一个终态。
func SynthesizeFailures(jobs []Job, batchErr error) []JobResult {
	results := make([]JobResult, 0, len(jobs))
	for _, job := range jobs {
		results = append(results, JobResult{
			JobID:  job.ID,
			Result: failedResult(job, batchErr.Error()),
		})
	}
	return results
}
