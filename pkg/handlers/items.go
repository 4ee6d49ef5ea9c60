package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"stash-backend/pkg/config"
	"stash-backend/pkg/database"
	"stash-backend/pkg/middleware"
	"stash-backend/pkg/models"
	"stash-backend/pkg/pipeline"
	"stash-backend/pkg/utils"
)

const maxTitleLength = 100

// ItemHandler 保存条目处理器
type ItemHandler struct {
	config   *config.Config
	db       database.Store
	pipeline *pipeline.Pipeline
}

// NewItemHandler 创建条目处理器
func NewItemHandler(cfg *config.Config, db database.Store, p *pipeline.Pipeline) *ItemHandler {
	return &ItemHandler{
		config:   cfg,
		db:       db,
		pipeline: p,
	}
}

// ProcessContent 完整摄取一条内容（解析→提取→持久化）
func (h *ItemHandler) ProcessContent(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	var req models.ProcessContentRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}

	if strings.TrimSpace(req.Content) == "" {
		utils.WriteBadRequestResponse(w, "Content is required")
		return
	}

	contentType := models.ContentType(req.ContentType)
	if !contentType.IsValid() {
		utils.WriteBadRequestResponse(w, "contentType must be one of: image, url, text")
		return
	}

	item, err := h.pipeline.Ingest(r.Context(), user.Email, req.Content, contentType)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to process content: "+err.Error())
		return
	}

	utils.WriteCreatedResponse(w, item)
}

// ListItems 列出当前用户的条目（可按分类过滤）
func (h *ItemHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	category := utils.GetQueryParam(r, "category", "")

	items, err := h.db.ListSavedItems(user.Email, category)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to list items: "+err.Error())
		return
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{
		"items": items,
		"count": len(items),
	})
}

// GetItem 获取单个条目详情，并记录一次访问（view_count+1）
func (h *ItemHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	itemID := chi.URLParam(r, "itemId")
	if !isValidItemID(itemID) {
		utils.WriteBadRequestResponse(w, "Invalid item ID format (expected UUID)")
		return
	}

	item, err := h.db.IncrementItemViews(user.Email, itemID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			utils.WriteNotFoundResponse(w, "Item not found or access denied")
			return
		}
		utils.WriteInternalServerErrorResponse(w, "Failed to get item: "+err.Error())
		return
	}

	utils.WriteSuccessResponse(w, item)
}

// ToggleCompletion 标记条目完成/未完成
func (h *ItemHandler) ToggleCompletion(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	var req models.ToggleCompletionRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}

	// 格式校验在任何数据库访问之前
	if !isValidItemID(req.ItemID) {
		utils.WriteBadRequestResponse(w, "Invalid item ID format (expected UUID)")
		return
	}

	item, err := h.db.UpdateSavedItem(user.Email, req.ItemID, map[string]interface{}{
		"is_completed": req.Completed,
		"updated_at":   time.Now().UTC(),
	})
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			utils.WriteNotFoundResponse(w, "Item not found or access denied")
			return
		}
		utils.WriteInternalServerErrorResponse(w, "Failed to update item: "+err.Error())
		return
	}

	utils.WriteSuccessResponse(w, item)
}

// UpdateTitle 更新条目标题
func (h *ItemHandler) UpdateTitle(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	var req models.UpdateTitleRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}

	if !isValidItemID(req.ItemID) {
		utils.WriteBadRequestResponse(w, "Invalid item ID format (expected UUID)")
		return
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		utils.WriteBadRequestResponse(w, "Title cannot be empty")
		return
	}
	if len([]rune(title)) > maxTitleLength {
		utils.WriteBadRequestResponse(w, "Title must be 100 characters or fewer")
		return
	}

	item, err := h.db.UpdateSavedItem(user.Email, req.ItemID, map[string]interface{}{
		"title":      title,
		"updated_at": time.Now().UTC(),
	})
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			utils.WriteNotFoundResponse(w, "Item not found or access denied")
			return
		}
		utils.WriteInternalServerErrorResponse(w, "Failed to update title: "+err.Error())
		return
	}

	utils.WriteSuccessResponse(w, item)
}

// DeleteItem 删除条目并返回被删除的内容
func (h *ItemHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	var req models.DeleteItemRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}

	if !isValidItemID(req.ItemID) {
		utils.WriteBadRequestResponse(w, "Invalid item ID format (expected UUID)")
		return
	}

	item, err := h.db.DeleteSavedItem(user.Email, req.ItemID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			utils.WriteNotFoundResponse(w, "Item not found or access denied")
			return
		}
		utils.WriteInternalServerErrorResponse(w, "Failed to delete item: "+err.Error())
		return
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{
		"message": "Item deleted successfully",
		"item":    item,
	})
}

// GetUserStats 用户统计：总数、完成率、分类分布
func (h *ItemHandler) GetUserStats(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	items, err := h.db.ListSavedItems(user.Email, "")
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to compute stats: "+err.Error())
		return
	}

	stats := models.UserStats{
		TotalItems:        len(items),
		CategoryBreakdown: map[string]int{},
	}
	for _, item := range items {
		if item.IsCompleted {
			stats.CompletedItems++
		}
		category := item.AICategory
		if category == "" {
			category = "Other"
		}
		stats.CategoryBreakdown[category]++
	}
	stats.PendingItems = stats.TotalItems - stats.CompletedItems
	if stats.TotalItems > 0 {
		stats.CompletionRate = float64(stats.CompletedItems) / float64(stats.TotalItems)
	}

	utils.WriteSuccessResponse(w, stats)
}

// UploadImage 独立的图片上传接口（不创建条目）
func (h *ItemHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	var req models.UploadImageRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}

	if strings.TrimSpace(req.ImageData) == "" {
		utils.WriteBadRequestResponse(w, "imageData is required")
		return
	}

	publicURL, path, size, err := h.pipeline.UploadImage(r.Context(), user.Email, req.ImageData)
	if err != nil {
		utils.WriteBadRequestResponse(w, err.Error())
		return
	}

	utils.WriteCreatedResponse(w, map[string]interface{}{
		"url":        publicURL,
		"path":       path,
		"size_bytes": size,
	})
}

// isValidItemID 条目ID必须是UUID
func isValidItemID(id string) bool {
	if id == "" {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}
