package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jefferypippitt/essential-todo/pkg/logger"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	store  Pinger
	Logger *logger.LokiLogger
}

func NewHealthHandler(store Pinger, log *logger.LokiLogger) *HealthHandler {
	if log == nil {
		log = logger.NewNop()
	}

	return &HealthHandler{store: store, Logger: log}
}

func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		h.Logger.ErrorWithTrace(ctx, "Health check failed", zap.Error(err))

		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":   "unavailable",
			"database": "down",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"database": "up",
	})
}
