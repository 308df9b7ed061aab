package crawler

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"
)

// ScriptCrawler 外部 Python 爬虫进程
//
// 每次检测启动一次脚本，结果通过 stdout 的 JSON 返回。
// 脚本输出可能不完整（反爬、超时），解析时逐字段容错提取。
type ScriptCrawler struct {
	mu         sync.Mutex
	pythonCmd  string // 解析出的 python 命令，首次解析后缓存，mu 保护
	scriptDir  string // 脚本目录，为空时按候选路径查找
	rankScript string
	bsrScript  string
}

// NewScriptCrawler 创建外部进程爬虫；pythonPath 为空时自动探测 python3/python
func NewScriptCrawler(scriptDir, pythonPath string) *ScriptCrawler {
	return &ScriptCrawler{
		pythonCmd:  pythonPath,
		scriptDir:  scriptDir,
		rankScript: "amazon_crawler.py",
		bsrScript:  "amazon_bsr_crawler.py",
	}
}

// Preflight 检查 Python 与依赖是否可用
func (s *ScriptCrawler) Preflight(ctx context.Context) error {
	cmd, err := s.resolvePython(ctx)
	if err != nil {
		return err
	}

	const check = `
import sys
try:
    import cloudscraper
    import bs4
    print("ok")
except ImportError as e:
    print(f"missing:{e}")
    sys.exit(1)
`
	out, err := exec.CommandContext(ctx, cmd, "-c", check).Output()
	if err != nil || strings.TrimSpace(string(out)) != "ok" {
		return fmt.Errorf("缺少 Python 依赖，请运行: %s -m pip install cloudscraper beautifulsoup4", cmd)
	}

	if _, err := s.scriptPath(s.rankScript); err != nil {
		return err
	}
	return nil
}

// CheckRanking 调用脚本检测单个关键词
func (s *ScriptCrawler) CheckRanking(ctx context.Context, job Job, maxPages int64) Result {
	python, err := s.resolvePython(ctx)
	if err != nil {
		return failedResult(job, err.Error())
	}
	script, err := s.scriptPath(s.rankScript)
	if err != nil {
		return failedResult(job, err.Error())
	}

	args := []string{script, job.Keyword, job.ASIN, job.Country, strconv.FormatInt(maxPages, 10)}
	cmd := exec.CommandContext(ctx, python, args...)
	if job.Proxy != "" {
		cmd.Env = append(os.Environ(), "CRAWLER_PROXY="+job.Proxy)
	}

	out, err := cmd.Output()
	if err != nil {
		var stderr string
		if ee, ok := err.(*exec.ExitError); ok {
			stderr = string(ee.Stderr)
		}
		return failedResult(job, fmt.Sprintf("执行爬虫脚本失败: %v %s", err, truncate(stderr, 500)))
	}

	return s.parseRankingOutput(job, out)
}

// parseRankingOutput 容错解析脚本输出
func (s *ScriptCrawler) parseRankingOutput(job Job, out []byte) Result {
	if !gjson.ValidBytes(out) {
		return failedResult(job, fmt.Sprintf("解析爬虫输出失败: %s", truncate(string(out), 500)))
	}

	root := gjson.ParseBytes(out)
	if errMsg := root.Get("error").String(); errMsg != "" {
		return failedResult(job, errMsg)
	}

	res := Result{
		Keyword:    job.Keyword,
		TargetASIN: job.ASIN,
		Country:    job.Country,
		CheckedAt:  time.Now(),
	}
	res.OrganicRank = optInt(root.Get("organic_rank"))
	res.OrganicPage = optInt(root.Get("organic_page"))
	res.SponsoredRank = optInt(root.Get("sponsored_rank"))
	res.SponsoredPage = optInt(root.Get("sponsored_page"))

	if info := root.Get("product_info"); info.Exists() {
		res.ProductInfo = &ProductInfo{
			ASIN:         info.Get("asin").String(),
			Title:        optStr(info.Get("title")),
			Price:        optStr(info.Get("price")),
			Rating:       optFloat(info.Get("rating")),
			ReviewsCount: optInt(info.Get("reviews_count")),
			ImageURL:     optStr(info.Get("image_url")),
		}
	}
	return res
}

// FetchCategoryBSR 调用脚本抓取类目榜单
func (s *ScriptCrawler) FetchCategoryBSR(ctx context.Context, marketplace, categoryID string) (*BSRResult, error) {
	python, err := s.resolvePython(ctx)
	if err != nil {
		return nil, err
	}
	script, err := s.scriptPath(s.bsrScript)
	if err != nil {
		return nil, err
	}

	out, err := exec.CommandContext(ctx, python, script, marketplace, categoryID).Output()
	if err != nil {
		var stderr string
		if ee, ok := err.(*exec.ExitError); ok {
			stderr = string(ee.Stderr)
		}
		return nil, fmt.Errorf("执行 BSR 脚本失败: %v %s", err, truncate(stderr, 500))
	}

	root := gjson.ParseBytes(out)
	if errMsg := root.Get("error").String(); errMsg != "" {
		return nil, fmt.Errorf("BSR 爬取失败: %s", errMsg)
	}

	result := &BSRResult{
		Marketplace: marketplace,
		CategoryID:  categoryID,
		CrawledAt:   time.Now(),
	}
	root.Get("products").ForEach(func(_, p gjson.Result) bool {
		result.Products = append(result.Products, BSRProduct{
			ASIN:         p.Get("asin").String(),
			Title:        p.Get("title").String(),
			Price:        optStr(p.Get("price")),
			Rating:       optStr(p.Get("rating")),
			ReviewsCount: optStr(p.Get("reviews_count")),
			ImageURL:     optStr(p.Get("image_url")),
			BSRRank:      p.Get("bsr_rank").Int(),
		})
		return true
	})
	return result, nil
}

// resolvePython 依次尝试 python3 / python
//
// 排名调度器的并发批次和调研调度器会同时走到这里，缓存读写必须持锁。
func (s *ScriptCrawler) resolvePython(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pythonCmd != "" {
		return s.pythonCmd, nil
	}
	for _, candidate := range []string{"python3", "python"} {
		if err := exec.CommandContext(ctx, candidate, "--version").Run(); err == nil {
			s.pythonCmd = candidate
			return candidate, nil
		}
	}
	return "", fmt.Errorf("未找到 Python，请确保已安装 Python 3 并加入 PATH")
}

// scriptPath 在候选目录中查找脚本
func (s *ScriptCrawler) scriptPath(name string) (string, error) {
	candidates := []string{}
	if s.scriptDir != "" {
		candidates = append(candidates, filepath.Join(s.scriptDir, name))
	}
	if wd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(wd, "scripts", name))
	}
	if exe, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(exe), "scripts", name))
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("找不到爬虫脚本 %s", name)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func optInt(r gjson.Result) *int64 {
	if !r.Exists() || r.Type == gjson.Null {
		return nil
	}
	v := r.Int()
	return &v
}

func optFloat(r gjson.Result) *float64 {
	if !r.Exists() || r.Type == gjson.Null {
		return nil
	}
	v := r.Float()
	return &v
}

func optStr(r gjson.Result) *string {
	if !r.Exists() || r.Type == gjson.Null {
		return nil
	}
	v := r.String()
	return &v
}
