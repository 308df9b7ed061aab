package crawler

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"
)

// marketplaceDomains 站点代码到 Amazon 域名的映射
var marketplaceDomains = map[string]string{
	"US": "www.amazon.com",
	"UK": "www.amazon.co.uk",
	"DE": "www.amazon.de",
	"FR": "www.amazon.fr",
	"IT": "www.amazon.it",
	"ES": "www.amazon.es",
}

// BrowserCrawler 进程内浏览器爬虫（基于 Chromedp）
//
// 与外部脚本爬虫实现同一接口，适合没有 Python 环境的部署。
type BrowserCrawler struct {
	headless bool
	timeout  time.Duration
	proxy    *ProxyManager
}

// NewBrowserCrawler 创建浏览器爬虫
func NewBrowserCrawler(headless bool, timeoutSec int, proxy *ProxyManager) *BrowserCrawler {
	if timeoutSec <= 0 {
		timeoutSec = 60
	}
	return &BrowserCrawler{
		headless: headless,
		timeout:  time.Duration(timeoutSec) * time.Second,
		proxy:    proxy,
	}
}

// Preflight 浏览器爬虫无外部依赖，Chrome 缺失会在首次爬取时报错
func (b *BrowserCrawler) Preflight(ctx context.Context) error {
	return nil
}

// CheckRanking 在搜索结果页中逐页查找目标 ASIN
func (b *BrowserCrawler) CheckRanking(ctx context.Context, job Job, maxPages int64) Result {
	domain, ok := marketplaceDomains[strings.ToUpper(job.Country)]
	if !ok {
		return failedResult(job, fmt.Sprintf("不支持的站点: %s", job.Country))
	}

	res := Result{
		Keyword:    job.Keyword,
		TargetASIN: job.ASIN,
		Country:    job.Country,
		CheckedAt:  time.Now(),
	}

	var organicCount, sponsoredCount int64
	for page := int64(1); page <= maxPages; page++ {
		searchURL := fmt.Sprintf("https://%s/s?k=%s&page=%d", domain, url.QueryEscape(job.Keyword), page)
		html, err := b.fetchHTML(ctx, searchURL, job.Proxy)
		if err != nil {
			return failedResult(job, fmt.Sprintf("访问搜索页失败 (page=%d): %v", page, err))
		}

		doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
		if err != nil {
			return failedResult(job, fmt.Sprintf("解析搜索页失败: %v", err))
		}

		found := false
		doc.Find("div.s-result-item[data-asin]").Each(func(_ int, sel *goquery.Selection) {
			asin, _ := sel.Attr("data-asin")
			if asin == "" {
				return
			}
			sponsored := sel.Find("[data-component-type='sp-sponsored-result']").Length() > 0 ||
				sel.Find(".puis-sponsored-label-text").Length() > 0

			if sponsored {
				sponsoredCount++
			} else {
				organicCount++
			}

			if asin != job.ASIN {
				return
			}
			found = true
			if sponsored {
				if res.SponsoredRank == nil {
					rank, pg := sponsoredCount, page
					res.SponsoredRank, res.SponsoredPage = &rank, &pg
				}
			} else {
				if res.OrganicRank == nil {
					rank, pg := organicCount, page
					res.OrganicRank, res.OrganicPage = &rank, &pg
				}
			}
			if res.ProductInfo == nil {
				res.ProductInfo = extractProductInfo(sel, asin)
			}
		})

		// 自然排名已命中即可提前结束，广告位可能在更深页，不值得继续翻页
		if found && res.OrganicRank != nil {
			break
		}
	}

	return res
}

// FetchCategoryBSR 抓取类目 BSR 榜单（前100名，两页）
func (b *BrowserCrawler) FetchCategoryBSR(ctx context.Context, marketplace, categoryID string) (*BSRResult, error) {
	domain, ok := marketplaceDomains[strings.ToUpper(marketplace)]
	if !ok {
		return nil, fmt.Errorf("不支持的站点: %s", marketplace)
	}

	result := &BSRResult{
		Marketplace: marketplace,
		CategoryID:  categoryID,
		CrawledAt:   time.Now(),
	}

	proxy := ""
	if b.proxy != nil {
		proxy = b.proxy.Next()
	}

	for page := 1; page <= 2; page++ {
		bsrURL := fmt.Sprintf("https://%s/gp/bestsellers/%s?pg=%d", domain, categoryID, page)
		html, err := b.fetchHTML(ctx, bsrURL, proxy)
		if err != nil {
			if page == 1 {
				return nil, fmt.Errorf("访问 BSR 页面失败: %w", err)
			}
			break // 第二页失败时保留第一页结果
		}

		doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
		if err != nil {
			return nil, fmt.Errorf("解析 BSR 页面失败: %w", err)
		}

		doc.Find("div#gridItemRoot").Each(func(i int, sel *goquery.Selection) {
			product := BSRProduct{
				BSRRank: int64(len(result.Products) + 1),
			}
			if rankText := sel.Find(".zg-bdg-text").First().Text(); rankText != "" {
				if rank, err := strconv.ParseInt(strings.TrimPrefix(strings.TrimSpace(rankText), "#"), 10, 64); err == nil {
					product.BSRRank = rank
				}
			}
			if href, ok := sel.Find("a.a-link-normal").First().Attr("href"); ok {
				product.ASIN = extractASIN(href)
			}
			product.Title = strings.TrimSpace(sel.Find("a.a-link-normal span div").First().Text())
			if product.Title == "" {
				product.Title = strings.TrimSpace(sel.Find("a.a-link-normal").First().Text())
			}
			if price := strings.TrimSpace(sel.Find("span.a-color-price span").First().Text()); price != "" {
				product.Price = &price
			} else if price := strings.TrimSpace(sel.Find("span[class*='price']").First().Text()); price != "" {
				product.Price = &price
			}
			if rating := strings.TrimSpace(sel.Find("span.a-icon-alt").First().Text()); rating != "" {
				product.Rating = &rating
			}
			if reviews := strings.TrimSpace(sel.Find("span.a-size-small").First().Text()); reviews != "" {
				product.ReviewsCount = &reviews
			}
			if img, ok := sel.Find("img").First().Attr("src"); ok {
				product.ImageURL = &img
			}
			if product.ASIN != "" || product.Title != "" {
				result.Products = append(result.Products, product)
			}
		})
	}

	if len(result.Products) == 0 {
		return nil, fmt.Errorf("BSR 页面未解析到任何产品，可能被反爬拦截")
	}
	return result, nil
}

// fetchHTML 启动浏览器访问页面并返回完整 HTML
func (b *BrowserCrawler) fetchHTML(ctx context.Context, pageURL, proxy string) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", b.headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if proxy != "" {
		opts = append(opts, chromedp.ProxyServer(proxy))
	}
	if b.proxy != nil {
		if ua := b.proxy.UserAgent(); ua != "" {
			opts = append(opts, chromedp.UserAgent(ua))
		}
	}

	allocCtx, cancel := chromedp.NewExecAllocator(ctx, opts...)
	defer cancel()
	chromeCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()
	chromeCtx, cancel = context.WithTimeout(chromeCtx, b.timeout)
	defer cancel()

	var html string
	err := chromedp.Run(chromeCtx,
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body"),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return "", err
	}
	return html, nil
}

// extractProductInfo 从搜索结果条目中提取产品信息
func extractProductInfo(sel *goquery.Selection, asin string) *ProductInfo {
	info := &ProductInfo{ASIN: asin}

	if title := strings.TrimSpace(sel.Find("h2 span").First().Text()); title != "" {
		info.Title = &title
	}
	if price := strings.TrimSpace(sel.Find(".a-price .a-offscreen").First().Text()); price != "" {
		info.Price = &price
	}
	if ratingText := sel.Find("span.a-icon-alt").First().Text(); ratingText != "" {
		// 形如 "4.5 out of 5 stars" / "4,5 von 5 Sternen"
		fields := strings.Fields(strings.ReplaceAll(ratingText, ",", "."))
		if len(fields) > 0 {
			if rating, err := strconv.ParseFloat(fields[0], 64); err == nil {
				info.Rating = &rating
			}
		}
	}
	if reviewsText := sel.Find("span[aria-label] span.a-size-base").First().Text(); reviewsText != "" {
		cleaned := strings.NewReplacer(",", "", ".", "").Replace(strings.TrimSpace(reviewsText))
		if reviews, err := strconv.ParseInt(cleaned, 10, 64); err == nil {
			info.ReviewsCount = &reviews
		}
	}
	if img, ok := sel.Find("img.s-image").First().Attr("src"); ok {
		info.ImageURL = &img
	}
	return info
}

// extractASIN 从产品链接中提取 ASIN（/dp/B0XXXXXXXX/...）
func extractASIN(href string) string {
	parts := strings.Split(href, "/")
	for i, part := range parts {
		if part == "dp" && i+1 < len(parts) {
			asin := parts[i+1]
			if idx := strings.IndexAny(asin, "?#"); idx >= 0 {
				asin = asin[:idx]
			}
			return asin
		}
	}
	return ""
}
