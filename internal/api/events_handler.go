package api

import (
	"io"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rankpulse/monitor/internal/eventbus"
	"github.com/rankpulse/monitor/internal/logger"
)

// 心跳间隔，防止中间代理断开空闲连接
const heartbeatInterval = 30 * time.Second

// EventsHandler 通过 SSE 向客户端推送进程内事件
type EventsHandler struct {
	bus eventbus.Bus
	log *logger.Logger
}

func NewEventsHandler(bus eventbus.Bus, log *logger.Logger) *EventsHandler {
	return &EventsHandler{bus: bus, log: log}
}

// Stream 订阅事件总线并持续推送，客户端断开时自动退订
func (h *EventsHandler) Stream(c *gin.Context) {
	ch, unsubscribe := h.bus.Subscribe(64)
	defer unsubscribe()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case e, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent(e.Type, e)
			return true
		case <-heartbeat.C:
			c.SSEvent("heartbeat", gin.H{"time": time.Now()})
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
