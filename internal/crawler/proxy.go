package crawler

import (
	"math/rand"
	"sync"
)

// ProxyManager 代理与 User-Agent 轮换
//
// 代理按顺序轮换，User-Agent 随机选取。
type ProxyManager struct {
	mu         sync.Mutex
	proxies    []string
	userAgents []string
	proxyIndex int
}

var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
}

// NewProxyManager 创建代理管理器，proxies 可以为空（直连）
func NewProxyManager(proxies []string) *ProxyManager {
	return &ProxyManager{
		proxies:    proxies,
		userAgents: defaultUserAgents,
	}
}

// Next 返回下一个代理，没有配置代理时返回空字符串
func (m *ProxyManager) Next() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.proxies) == 0 {
		return ""
	}
	proxy := m.proxies[m.proxyIndex]
	m.proxyIndex = (m.proxyIndex + 1) % len(m.proxies)
	return proxy
}

// UserAgent 随机返回一个 User-Agent
func (m *ProxyManager) UserAgent() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.userAgents) == 0 {
		return ""
	}
	return m.userAgents[rand.Intn(len(m.userAgents))]
}
