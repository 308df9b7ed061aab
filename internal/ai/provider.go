package ai

import (
	"context"
	"errors"
	"time"
)

// 设置 KV 中存放 DeepSeek API 密钥的键
const apiKeySetting = "deepseek"

// SettingGetter 读取设置项，键不存在返回空串
type SettingGetter interface {
	GetSetting(ctx context.Context, key string) (string, error)
}

// SettingsGenerator 在每次生成报告时从设置 KV 读取 API 密钥。
// 密钥可以在运行期通过设置接口更换，无需重启进程。
type SettingsGenerator struct {
	settings SettingGetter
	baseURL  string
	timeout  time.Duration
}

func NewSettingsGenerator(settings SettingGetter, baseURL string, timeout time.Duration) *SettingsGenerator {
	return &SettingsGenerator{settings: settings, baseURL: baseURL, timeout: timeout}
}

// GenerateMarketReport 读取密钥并调用 DeepSeek 生成市场分析报告
func (g *SettingsGenerator) GenerateMarketReport(ctx context.Context, model, marketplace, categoryName, productsJSON string) (string, error) {
	key, err := g.settings.GetSetting(ctx, apiKeySetting)
	if err != nil {
		return "", err
	}
	if key == "" {
		return "", errors.New("未配置 DeepSeek API 密钥")
	}
	client := NewClient(key, g.baseURL, g.timeout)
	return client.GenerateMarketReport(ctx, model, marketplace, categoryName, productsJSON)
}
