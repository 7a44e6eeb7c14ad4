package handler

import (
	"context"
	"net/http"
	"time"

	response "iqupdate/backend/internal/infra/common"
	appLogger "iqupdate/backend/internal/infra/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Pinger 由 *sql.DB 实现。
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler 提供存活探针。
type HealthHandler struct {
	db     Pinger
	logger *zap.SugaredLogger
}

// NewHealthHandler 构造 handler。
func NewHealthHandler(db Pinger) *HealthHandler {
	return &HealthHandler{db: db, logger: appLogger.S().With("component", "health.handler")}
}

// Healthz 在数据库可达时返回 {ok:true}。
func (h *HealthHandler) Healthz(c *gin.Context) {
	if h.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			h.logger.Warnw("database ping failed", "error", err)
			response.Fail(c, http.StatusServiceUnavailable, response.ErrInternal, "database unavailable", nil)
			return
		}
	}
	response.Success(c, http.StatusOK, gin.H{"ok": true}, nil)
}
