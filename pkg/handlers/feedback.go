package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"stash-backend/pkg/config"
	"stash-backend/pkg/database"
	"stash-backend/pkg/middleware"
	"stash-backend/pkg/models"
	"stash-backend/pkg/utils"
)

const maxFeedbackMessageLength = 1000

// FeedbackHandler 用户反馈处理器
type FeedbackHandler struct {
	config *config.Config
	db     database.Store
}

// NewFeedbackHandler 创建反馈处理器
func NewFeedbackHandler(cfg *config.Config, db database.Store) *FeedbackHandler {
	return &FeedbackHandler{
		config: cfg,
		db:     db,
	}
}

// SubmitFeedback 提交反馈
func (h *FeedbackHandler) SubmitFeedback(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	var req models.SubmitFeedbackRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}

	feedbackType := models.FeedbackType(req.Type)
	if !feedbackType.IsValid() {
		utils.WriteBadRequestResponse(w, "type must be one of: rating, feature_request, bug_report, general")
		return
	}

	// rating类型必须带1-5的评分，其他类型不允许带
	if feedbackType == models.FeedbackRating {
		if req.Rating < 1 || req.Rating > 5 {
			utils.WriteBadRequestResponse(w, "Rating must be between 1 and 5")
			return
		}
	} else if req.Rating != 0 {
		utils.WriteBadRequestResponse(w, "Rating is only allowed for rating feedback")
		return
	}

	// message可选，仅在携带时校验长度
	message := strings.TrimSpace(req.Message)
	if len([]rune(message)) > maxFeedbackMessageLength {
		utils.WriteBadRequestResponse(w, "Message must be 1000 characters or fewer")
		return
	}

	entry := &models.FeedbackEntry{
		ID:        uuid.NewString(),
		UserEmail: user.Email,
		Type:      feedbackType,
		Rating:    req.Rating,
		Message:   message,
		Category:  strings.TrimSpace(req.Category),
		Status:    "new",
		CreatedAt: time.Now().UTC(),
	}

	if err := h.db.CreateFeedback(entry); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to save feedback: "+err.Error())
		return
	}

	utils.WriteCreatedResponse(w, entry)
}

// ListFeedback 列出全部反馈（仅管理员）
func (h *FeedbackHandler) ListFeedback(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	if !h.config.IsAdmin(user.Email) {
		utils.WriteForbiddenResponse(w, "Admin access required")
		return
	}

	entries, err := h.db.ListFeedback()
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to list feedback: "+err.Error())
		return
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{
		"feedback": entries,
		"count":    len(entries),
	})
}
