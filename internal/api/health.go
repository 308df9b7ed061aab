package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rankpulse/monitor/internal/store"
)

// HealthCheck 健康检查
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// ReadyCheck 就绪检查
func ReadyCheck(st store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 检查数据库连接
		if err := st.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "not ready",
				"error":  "数据库连接失败",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "ready",
		})
	}
}
