package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const sampleProducts = `[
	{"asin":"B001","title":"Wireless Earbuds Pro","price":"$29.99","rating":"4.5","reviews_count":"12,345","bsr_rank":1},
	{"asin":"B002","title":"Budget Earbuds","price":"$9.99","rating":"4.0","reviews_count":"890","bsr_rank":2}
]`

func TestGenerateMarketReport(t *testing.T) {
	t.Run("正常响应返回报告内容", func(t *testing.T) {
		var gotReq map[string]any
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/chat/completions" {
				t.Errorf("请求路径不符: %s", r.URL.Path)
			}
			if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
				t.Errorf("认证头不符: %s", auth)
			}
			_ = json.NewDecoder(r.Body).Decode(&gotReq)
			_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"# 市场分析报告"}}]}`))
		}))
		defer srv.Close()

		c := NewClient("test-key", srv.URL, 5*time.Second)
		report, err := c.GenerateMarketReport(context.Background(), "", "US", "Electronics", sampleProducts)
		if err != nil {
			t.Fatalf("GenerateMarketReport 失败: %v", err)
		}
		if report != "# 市场分析报告" {
			t.Errorf("报告内容不符: %q", report)
		}
		if gotReq["model"] != "deepseek-chat" {
			t.Errorf("默认模型不符: %v", gotReq["model"])
		}

		msgs := gotReq["messages"].([]any)
		content := msgs[0].(map[string]any)["content"].(string)
		if !strings.Contains(content, "BSR #1") || !strings.Contains(content, "Wireless Earbuds Pro") {
			t.Errorf("提示词缺少榜单摘要:\n%s", content)
		}
		if !strings.Contains(content, "共 2 个产品") {
			t.Errorf("提示词缺少产品总数:\n%s", content)
		}
	})

	t.Run("非 200 状态码返回错误", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"invalid api key"}`))
		}))
		defer srv.Close()

		c := NewClient("bad-key", srv.URL, 5*time.Second)
		_, err := c.GenerateMarketReport(context.Background(), "", "US", "Electronics", sampleProducts)
		if err == nil {
			t.Fatal("期望错误")
		}
		if !strings.Contains(err.Error(), "401") {
			t.Errorf("错误信息应包含状态码: %v", err)
		}
	})

	t.Run("空 choices 返回错误", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"choices":[]}`))
		}))
		defer srv.Close()

		c := NewClient("test-key", srv.URL, 5*time.Second)
		if _, err := c.GenerateMarketReport(context.Background(), "", "US", "Electronics", sampleProducts); err == nil {
			t.Fatal("期望错误")
		}
	})

	t.Run("未配置密钥直接失败", func(t *testing.T) {
		c := NewClient("", "", 5*time.Second)
		if _, err := c.GenerateMarketReport(context.Background(), "", "US", "Electronics", sampleProducts); err == nil {
			t.Fatal("期望错误")
		}
	})

	t.Run("非数组产品数据返回错误", func(t *testing.T) {
		c := NewClient("test-key", "", 5*time.Second)
		if _, err := c.GenerateMarketReport(context.Background(), "", "US", "Electronics", `{"not":"array"}`); err == nil {
			t.Fatal("期望错误")
		}
	})
}
