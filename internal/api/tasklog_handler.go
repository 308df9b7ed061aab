package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/rankpulse/monitor/internal/logger"
	"github.com/rankpulse/monitor/internal/store"
)

// TaskLogHandler 批量检测日志查询
type TaskLogHandler struct {
	store store.Store
	log   *logger.Logger
}

func NewTaskLogHandler(st store.Store, log *logger.Logger) *TaskLogHandler {
	return &TaskLogHandler{store: st, log: log}
}

// List 获取最近的批量检测日志
func (h *TaskLogHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit <= 0 || limit > 200 {
		limit = 20
	}

	logs, err := h.store.ListTaskLogs(c.Request.Context(), limit)
	if err != nil {
		h.log.Error("查询检测日志失败", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": logs})
}

// Get 获取单条检测日志
func (h *TaskLogHandler) Get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的日志ID"})
		return
	}

	taskLog, err := h.store.GetTaskLog(c.Request.Context(), id)
	if err != nil {
		h.log.Error("查询检测日志失败", zap.Int64("id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询失败"})
		return
	}
	if taskLog == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "日志不存在"})
		return
	}
	c.JSON(http.StatusOK, taskLog)
}
