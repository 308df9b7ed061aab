package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/rankpulse/monitor/internal/logger"
	"github.com/rankpulse/monitor/internal/models"
	"github.com/rankpulse/monitor/internal/store"
)

// TargetHandler 产品与监控项管理
type TargetHandler struct {
	store store.Store
	log   *logger.Logger
}

func NewTargetHandler(st store.Store, log *logger.Logger) *TargetHandler {
	return &TargetHandler{store: st, log: log}
}

// ListProducts 获取产品列表
func (h *TargetHandler) ListProducts(c *gin.Context) {
	products, err := h.store.ListProducts(c.Request.Context())
	if err != nil {
		h.log.Error("查询产品列表失败", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": products})
}

// CreateProduct 创建产品
func (h *TargetHandler) CreateProduct(c *gin.Context) {
	var req struct {
		Name    string `json:"name" binding:"required"`
		ASIN    string `json:"asin" binding:"required"`
		Country string `json:"country"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求参数错误"})
		return
	}
	if req.Country == "" {
		req.Country = "US"
	}

	id, err := h.store.CreateProduct(c.Request.Context(), models.Product{
		Name:    req.Name,
		ASIN:    req.ASIN,
		Country: req.Country,
	})
	if err != nil {
		h.log.Error("创建产品失败", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "创建失败"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

// ListTargets 获取监控项列表
func (h *TargetHandler) ListTargets(c *gin.Context) {
	targets, err := h.store.ListTargets(c.Request.Context())
	if err != nil {
		h.log.Error("查询监控项列表失败", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": targets})
}

// CreateTarget 创建监控项
func (h *TargetHandler) CreateTarget(c *gin.Context) {
	var req struct {
		ProductID int64  `json:"product_id" binding:"required"`
		Keyword   string `json:"keyword" binding:"required"`
		ASIN      string `json:"asin" binding:"required"`
		Country   string `json:"country"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求参数错误"})
		return
	}
	if req.Country == "" {
		req.Country = "US"
	}

	id, err := h.store.CreateTarget(c.Request.Context(), models.MonitoringTarget{
		ProductID: req.ProductID,
		Keyword:   req.Keyword,
		ASIN:      req.ASIN,
		Country:   req.Country,
	})
	if err != nil {
		h.log.Error("创建监控项失败", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "创建失败"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

// GetTarget 获取单个监控项
func (h *TargetHandler) GetTarget(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的监控项ID"})
		return
	}

	target, err := h.store.GetTarget(c.Request.Context(), id)
	if err != nil {
		h.log.Error("查询监控项失败", zap.Int64("id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询失败"})
		return
	}
	if target == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "监控项不存在"})
		return
	}
	c.JSON(http.StatusOK, target)
}
