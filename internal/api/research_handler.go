package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/rankpulse/monitor/internal/logger"
	"github.com/rankpulse/monitor/internal/models"
	"github.com/rankpulse/monitor/internal/scheduler"
	"github.com/rankpulse/monitor/internal/store"
)

// ResearchHandler 市场调研任务、执行记录与调度器控制
type ResearchHandler struct {
	store store.Store
	sched *scheduler.ResearchScheduler
	log   *logger.Logger
}

func NewResearchHandler(st store.Store, sched *scheduler.ResearchScheduler, log *logger.Logger) *ResearchHandler {
	return &ResearchHandler{store: st, sched: sched, log: log}
}

// SchedulerStatus 调研调度器状态
func (h *ResearchHandler) SchedulerStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"is_running": h.sched.IsRunning()})
}

// StartScheduler 启动调研调度循环
func (h *ResearchHandler) StartScheduler(c *gin.Context) {
	h.sched.Start()
	c.JSON(http.StatusOK, gin.H{"is_running": h.sched.IsRunning()})
}

// StopScheduler 停止调研调度循环
func (h *ResearchHandler) StopScheduler(c *gin.Context) {
	h.sched.Stop()
	c.JSON(http.StatusOK, gin.H{"is_running": h.sched.IsRunning()})
}

// ListTasks 获取调研任务列表
func (h *ResearchHandler) ListTasks(c *gin.Context) {
	tasks, err := h.store.ListResearchTasks(c.Request.Context())
	if err != nil {
		h.log.Error("查询调研任务失败", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": tasks})
}

// CreateTask 创建调研任务
func (h *ResearchHandler) CreateTask(c *gin.Context) {
	var req struct {
		Name         string  `json:"name" binding:"required"`
		Marketplace  string  `json:"marketplace" binding:"required"`
		CategoryID   string  `json:"category_id" binding:"required"`
		CategoryName *string `json:"category_name"`
		AIProvider   string  `json:"ai_provider"`
		AIModel      string  `json:"ai_model"`
		ScheduleType string  `json:"schedule_type" binding:"required"`
		ScheduleDays []int   `json:"schedule_days"`
		ScheduleTime string  `json:"schedule_time" binding:"required"`
		Enabled      bool    `json:"enabled"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求参数错误"})
		return
	}
	if req.ScheduleType != "daily" && req.ScheduleType != "weekly" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "调度类型必须是 daily 或 weekly"})
		return
	}
	if !validScheduleTime(req.ScheduleTime) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "调度时间格式必须是 HH:MM"})
		return
	}
	for _, d := range req.ScheduleDays {
		if d < 0 || d > 6 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "星期取值必须在 0-6 之间"})
			return
		}
	}
	if req.AIProvider == "" {
		req.AIProvider = "deepseek"
	}
	if req.AIModel == "" {
		req.AIModel = "deepseek-chat"
	}

	id, err := h.store.CreateResearchTask(c.Request.Context(), models.ResearchTask{
		Name:         req.Name,
		Marketplace:  req.Marketplace,
		CategoryID:   req.CategoryID,
		CategoryName: req.CategoryName,
		AIProvider:   req.AIProvider,
		AIModel:      req.AIModel,
		ScheduleType: req.ScheduleType,
		ScheduleDays: req.ScheduleDays,
		ScheduleTime: req.ScheduleTime,
		Enabled:      req.Enabled,
	})
	if err != nil {
		h.log.Error("创建调研任务失败", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "创建失败"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

// ListRuns 获取最近的调研执行记录
func (h *ResearchHandler) ListRuns(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit <= 0 || limit > 200 {
		limit = 20
	}

	runs, err := h.store.ListResearchRuns(c.Request.Context(), limit)
	if err != nil {
		h.log.Error("查询调研记录失败", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": runs})
}

// GetRun 获取单条调研执行记录（含完整报告）
func (h *ResearchHandler) GetRun(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的记录ID"})
		return
	}

	run, err := h.store.GetResearchRun(c.Request.Context(), id)
	if err != nil {
		h.log.Error("查询调研记录失败", zap.Int64("id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询失败"})
		return
	}
	if run == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "记录不存在"})
		return
	}
	c.JSON(http.StatusOK, run)
}

func validScheduleTime(s string) bool {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return false
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return false
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return false
	}
	return true
}
