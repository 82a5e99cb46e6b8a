package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-concert-service/internal/pkg/logger"
)

const healthCheckTimeout = 2 * time.Second

// HealthHandler はヘルスチェックハンドラー
type HealthHandler struct {
	store Pinger
}

// NewHealthHandler はHealthHandlerを作成する
// store が nil の場合は常に ok を返す
func NewHealthHandler(store Pinger) *HealthHandler {
	return &HealthHandler{store: store}
}

// HealthResponse はヘルスチェックのレスポンス
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// Check はヘルスチェックを行う
// @Summary ヘルスチェック
// @Description ストアへの疎通を含めてアプリケーションの健全性を確認する
// @Tags health
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /health [get]
func (h *HealthHandler) Check(c echo.Context) error {
	status, code := "ok", http.StatusOK
	if h.store != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), healthCheckTimeout)
		defer cancel()
		if err := h.store.Ping(ctx); err != nil {
			logger.Warn("ストアへの疎通確認に失敗", zap.Error(err))
			status, code = "unavailable", http.StatusServiceUnavailable
		}
	}

	return c.JSON(code, HealthResponse{
		Status:    status,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}
