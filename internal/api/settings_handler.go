package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/rankpulse/monitor/internal/logger"
	"github.com/rankpulse/monitor/internal/models"
	"github.com/rankpulse/monitor/internal/scheduler"
	"github.com/rankpulse/monitor/internal/store"
)

// SettingsHandler 设置管理
//
// 调度器设置走结构化接口并同步到运行中的调度器；
// 其余设置（如 deepseek 密钥、max_browsers）走通用 KV 接口。
type SettingsHandler struct {
	store   store.Store
	ranking *scheduler.RankingScheduler
	log     *logger.Logger
}

func NewSettingsHandler(st store.Store, ranking *scheduler.RankingScheduler, log *logger.Logger) *SettingsHandler {
	return &SettingsHandler{store: st, ranking: ranking, log: log}
}

// GetSchedulerSettings 获取调度器设置
func (h *SettingsHandler) GetSchedulerSettings(c *gin.Context) {
	c.JSON(http.StatusOK, h.ranking.Settings())
}

// UpdateSchedulerSettings 更新调度器设置
func (h *SettingsHandler) UpdateSchedulerSettings(c *gin.Context) {
	var settings models.SchedulerSettings
	if err := c.ShouldBindJSON(&settings); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求参数错误"})
		return
	}
	if !validHour(settings.MorningStart) || !validHour(settings.MorningEnd) ||
		!validHour(settings.EveningStart) || !validHour(settings.EveningEnd) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "时间窗口小时必须在 0-23 之间"})
		return
	}
	if settings.RankChangeThreshold < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "排名变化阈值不能为负数"})
		return
	}

	if err := h.ranking.UpdateSettings(c.Request.Context(), settings); err != nil {
		h.log.Error("保存调度器设置失败", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "保存设置失败"})
		return
	}
	c.JSON(http.StatusOK, settings)
}

// GetSetting 读取单个设置项，不存在返回空字符串
func (h *SettingsHandler) GetSetting(c *gin.Context) {
	key := c.Param("key")
	value, err := h.store.GetSetting(c.Request.Context(), key)
	if err != nil {
		h.log.Error("读取设置失败", zap.String("key", key), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "读取设置失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": key, "value": value})
}

// SetSetting 写入单个设置项
func (h *SettingsHandler) SetSetting(c *gin.Context) {
	key := c.Param("key")
	var req struct {
		Value string `json:"value"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求参数错误"})
		return
	}
	if err := h.store.SetSetting(c.Request.Context(), key, req.Value); err != nil {
		h.log.Error("写入设置失败", zap.String("key", key), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "写入设置失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": key, "value": req.Value})
}

func validHour(h int) bool {
	return h >= 0 && h <= 23
}
