package api

import (
	"github.com/gin-gonic/gin"

	"github.com/rankpulse/monitor/internal/eventbus"
	"github.com/rankpulse/monitor/internal/logger"
	"github.com/rankpulse/monitor/internal/metrics"
	"github.com/rankpulse/monitor/internal/scheduler"
	"github.com/rankpulse/monitor/internal/store"
)

// Deps 路由依赖
type Deps struct {
	Store    store.Store
	Ranking  *scheduler.RankingScheduler
	Research *scheduler.ResearchScheduler
	Bus      eventbus.Bus
	Log      *logger.Logger
}

// NewRouter 创建并装配 gin 路由
func NewRouter(deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Log))
	r.Use(CORSMiddleware())

	// 健康检查与指标（无需认证）
	r.GET("/healthz", HealthCheck)
	r.GET("/readyz", ReadyCheck(deps.Store))
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	v1 := r.Group("/api/v1")
	{
		// 通用设置 KV
		settingsHandler := NewSettingsHandler(deps.Store, deps.Ranking, deps.Log)
		v1.GET("/settings/scheduler", settingsHandler.GetSchedulerSettings)
		v1.PUT("/settings/scheduler", settingsHandler.UpdateSchedulerSettings)
		v1.GET("/settings/:key", settingsHandler.GetSetting)
		v1.PUT("/settings/:key", settingsHandler.SetSetting)

		// 排名监控调度器
		schedulerHandler := NewSchedulerHandler(deps.Ranking, deps.Log)
		v1.GET("/scheduler/status", schedulerHandler.Status)
		v1.POST("/scheduler/start", schedulerHandler.Start)
		v1.POST("/scheduler/stop", schedulerHandler.Stop)
		v1.POST("/scheduler/check", schedulerHandler.ManualCheck)

		// 产品与监控项
		targetHandler := NewTargetHandler(deps.Store, deps.Log)
		v1.GET("/products", targetHandler.ListProducts)
		v1.POST("/products", targetHandler.CreateProduct)
		v1.GET("/targets", targetHandler.ListTargets)
		v1.POST("/targets", targetHandler.CreateTarget)
		v1.GET("/targets/:id", targetHandler.GetTarget)

		// 批量检测日志
		taskLogHandler := NewTaskLogHandler(deps.Store, deps.Log)
		v1.GET("/task-logs", taskLogHandler.List)
		v1.GET("/task-logs/:id", taskLogHandler.Get)

		// 市场调研
		researchHandler := NewResearchHandler(deps.Store, deps.Research, deps.Log)
		v1.GET("/research/scheduler/status", researchHandler.SchedulerStatus)
		v1.POST("/research/scheduler/start", researchHandler.StartScheduler)
		v1.POST("/research/scheduler/stop", researchHandler.StopScheduler)
		v1.GET("/research/tasks", researchHandler.ListTasks)
		v1.POST("/research/tasks", researchHandler.CreateTask)
		v1.GET("/research/runs", researchHandler.ListRuns)
		v1.GET("/research/runs/:id", researchHandler.GetRun)

		// 事件推送 SSE
		eventsHandler := NewEventsHandler(deps.Bus, deps.Log)
		v1.GET("/events", eventsHandler.Stream)
	}

	return r
}
