package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
)

// DefaultBaseURL DeepSeek API 地址
const DefaultBaseURL = "https://api.deepseek.com"

const (
	defaultModel = "deepseek-chat"
	temperature  = 0.7
	maxTokens    = 2000
)

// Client DeepSeek 对话接口客户端
type Client struct {
	http    *resty.Client
	baseURL string
	apiKey  string
}

// NewClient 创建客户端；baseURL 为空时使用官方地址
func NewClient(apiKey, baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	client := resty.New()
	client.SetTimeout(timeout)
	return &Client{
		http:    client,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

// GenerateMarketReport 基于 BSR 榜单数据生成市场调研报告
//
// productsJSON 是快照里的产品数组。AI 不可用或返回异常时返回错误，
// 调用方决定降级策略。
func (c *Client) GenerateMarketReport(ctx context.Context, model, marketplace, categoryName, productsJSON string) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("未配置 DeepSeek API Key")
	}
	if model == "" {
		model = defaultModel
	}

	products := gjson.Parse(productsJSON)
	if !products.IsArray() {
		return "", fmt.Errorf("解析产品数据失败: 不是 JSON 数组")
	}

	prompt := buildPrompt(marketplace, categoryName, products)

	req := chatRequest{
		Model:       model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+c.apiKey).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		Post(c.baseURL + "/chat/completions")
	if err != nil {
		return "", fmt.Errorf("API 请求失败: %w", err)
	}
	if resp.StatusCode() != 200 {
		return "", fmt.Errorf("API 返回错误 %d: %s", resp.StatusCode(), truncate(string(resp.Body()), 200))
	}

	content := gjson.GetBytes(resp.Body(), "choices.0.message.content")
	if !content.Exists() || content.String() == "" {
		return "", fmt.Errorf("API 返回空响应")
	}
	return content.String(), nil
}

// buildPrompt 构建榜单摘要提示词，最多取前 20 个产品
func buildPrompt(marketplace, categoryName string, products gjson.Result) string {
	var lines []string
	i := 0
	total := 0
	products.ForEach(func(_, p gjson.Result) bool {
		total++
		if i >= 20 {
			return true
		}
		i++
		title := strOr(p.Get("title"), "未知")
		price := strOr(p.Get("price"), "N/A")
		rating := strOr(p.Get("rating"), "N/A")
		reviews := strOr(p.Get("reviews_count"), "N/A")
		bsr := p.Get("bsr_rank").Int()
		lines = append(lines, fmt.Sprintf("%d. BSR #%d | %s | %s | %s 评价 | %s",
			i, bsr, price, rating, reviews, truncate(title, 60)))
		return true
	})

	return fmt.Sprintf(`你是一位专业的亚马逊市场分析师。请基于以下 %s 站点 "%s" 类目的 BSR 榜单数据，生成一份简洁的市场调研报告。

## 榜单数据（共 %d 个产品，显示前20）:
%s

## 报告要求:
请用 Markdown 格式输出，包含以下内容：

### 1. 市场概览
- 类目整体情况
- 价格带分布

### 2. 头部产品分析
- Top 5 产品特点
- 价格策略

### 3. 市场机会
- 潜在机会点
- 进入建议

### 4. 风险提示
- 主要风险
- 注意事项

请保持报告简洁，重点突出，总字数控制在 800 字以内。`,
		marketplace, categoryName, total, strings.Join(lines, "\n"))
}

func strOr(r gjson.Result, fallback string) string {
	if r.Exists() && r.String() != "" {
		return r.String()
	}
	return fallback
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
