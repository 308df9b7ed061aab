package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/rankpulse/monitor/internal/ai"
	"github.com/rankpulse/monitor/internal/api"
	"github.com/rankpulse/monitor/internal/config"
	"github.com/rankpulse/monitor/internal/crawler"
	"github.com/rankpulse/monitor/internal/eventbus"
	"github.com/rankpulse/monitor/internal/logger"
	"github.com/rankpulse/monitor/internal/metrics"
	"github.com/rankpulse/monitor/internal/scheduler"
	"github.com/rankpulse/monitor/internal/store"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "config/monitor.yaml", "配置文件路径")
	flag.Parse()

	// 加载并校验配置
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	validator := config.NewConfigValidator()
	if result := validator.ValidateConfig(cfg); !result.Valid {
		for _, e := range result.Errors {
			log.Printf("配置错误: %s: %s", e.Field, e.Message)
		}
		log.Fatal("配置校验失败")
	}

	logg, err := logger.NewLogger(&cfg.Log)
	if err != nil {
		log.Fatalf("创建日志器失败: %v", err)
	}
	defer logg.Sync()

	// 持久层
	st, err := store.Open(cfg.Store)
	if err != nil {
		logg.Fatal("打开持久层失败", zap.Error(err))
	}
	defer st.Close()

	archive, err := store.OpenArchive(cfg.Archive)
	if err != nil {
		logg.Fatal("连接归档存储失败", zap.Error(err))
	}
	defer archive.Close(context.Background())

	m := metrics.NewMetrics()
	bus := eventbus.New()

	// 爬虫子系统
	proxies := crawler.NewProxyManager(cfg.Crawler.Proxies)
	var client crawler.Client
	switch cfg.Crawler.Mode {
	case "browser":
		client = crawler.NewBrowserCrawler(cfg.Crawler.Headless, int(cfg.Crawler.Timeout.Seconds()), proxies)
	default:
		client = crawler.NewScriptCrawler(cfg.Crawler.ScriptDir, cfg.Crawler.PythonPath)
	}
	batcher := crawler.NewBatcher(client, proxies)

	// 调度器
	ranking := scheduler.NewRankingScheduler(st, batcher, bus, m, logg)
	reporter := ai.NewSettingsGenerator(st, cfg.AI.BaseURL, cfg.AI.Timeout)
	research := scheduler.NewResearchScheduler(st, client, reporter, archive, bus, m, logg)
	cleanup := scheduler.NewCleanupScheduler(cfg.Retention, st, m, logg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ranking.Start(ctx)
	research.Start()
	if err := cleanup.Start(); err != nil {
		logg.Fatal("启动清理调度器失败", zap.Error(err))
	}

	// 控制面 HTTP 服务
	gin.SetMode(cfg.Server.Mode)
	router := api.NewRouter(api.Deps{
		Store:    st,
		Ranking:  ranking,
		Research: research,
		Bus:      bus,
		Log:      logg,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		logg.Info("控制面服务已启动", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logg.Fatal("HTTP 服务启动失败", zap.Error(err))
		}
	}()

	// 等待退出信号
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logg.Info("收到退出信号，正在优雅关闭")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logg.Warn("HTTP 服务关闭失败", zap.Error(err))
	}

	// 等待进行中的批量检测结束后再关闭调度器
	ranking.Stop()
	research.Stop()
	cleanup.Stop()

	logg.Info("进程已退出")
}
