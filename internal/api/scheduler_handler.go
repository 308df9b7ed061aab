package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/rankpulse/monitor/internal/logger"
	"github.com/rankpulse/monitor/internal/scheduler"
)

// SchedulerHandler 排名监控调度器控制
type SchedulerHandler struct {
	ranking *scheduler.RankingScheduler
	log     *logger.Logger
}

func NewSchedulerHandler(ranking *scheduler.RankingScheduler, log *logger.Logger) *SchedulerHandler {
	return &SchedulerHandler{ranking: ranking, log: log}
}

// Status 获取调度器状态
func (h *SchedulerHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.ranking.Status())
}

// Start 启动调度循环
func (h *SchedulerHandler) Start(c *gin.Context) {
	// 调度循环的生命周期不跟随请求，加载设置用独立 context
	h.ranking.Start(context.Background())
	c.JSON(http.StatusOK, h.ranking.Status())
}

// Stop 停止调度循环，等待当前 tick 结束
func (h *SchedulerHandler) Stop(c *gin.Context) {
	h.ranking.Stop()
	c.JSON(http.StatusOK, h.ranking.Status())
}

// ManualCheck 对指定监控项立即发起一次批量检测
func (h *SchedulerHandler) ManualCheck(c *gin.Context) {
	var req struct {
		TargetIDs []int64 `json:"target_ids"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求参数错误"})
		return
	}
	if len(req.TargetIDs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "监控项列表不能为空"})
		return
	}

	// 手动检测可能耗时数分钟，不能挂在请求 context 上；
	// 任务日志 ID 在检测完成后返回，进度通过 /events 推送
	taskLogID, err := h.ranking.RunManualCheck(context.Background(), req.TargetIDs)
	if err != nil {
		h.log.Error("手动检测失败", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"task_log_id": taskLogID})
}
