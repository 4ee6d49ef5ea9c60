package handlers

import (
	"net/http"
	"time"

	"stash-backend/pkg/config"
	"stash-backend/pkg/database"
	"stash-backend/pkg/utils"
)

// HealthHandler 健康检查处理器
type HealthHandler struct {
	config *config.Config
	db     database.Store
}

// NewHealthHandler 创建健康检查处理器
func NewHealthHandler(cfg *config.Config, db database.Store) *HealthHandler {
	return &HealthHandler{
		config: cfg,
		db:     db,
	}
}

// Health 健康检查接口（无需认证）
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	dbStatus := "ok"
	if err := h.db.HealthCheck(); err != nil {
		dbStatus = "error: " + err.Error()
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{
		"status":      "ok",
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
		"version":     "1.0.0",
		"environment": h.config.Environment,
		"database":    dbStatus,
		"features": []string{
			"content-ingestion",
			"ai-extraction",
			"link-preview",
			"social-scraping",
			"feedback",
			"feature-voting",
		},
	})
}
