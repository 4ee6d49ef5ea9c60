package handlers

import (
	"errors"
	"fmt"
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

// FeatureHandler 功能建议与投票处理器
type FeatureHandler struct {
	config *config.Config
	db     database.Store
}

// NewFeatureHandler 创建功能建议处理器
func NewFeatureHandler(cfg *config.Config, db database.Store) *FeatureHandler {
	return &FeatureHandler{
		config: cfg,
		db:     db,
	}
}

// SubmitFeature 提交功能建议。提交者自动算一张赞成票。
func (h *FeatureHandler) SubmitFeature(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	var req models.SubmitFeatureRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		utils.WriteBadRequestResponse(w, "Title is required")
		return
	}
	if len([]rune(title)) > maxTitleLength {
		utils.WriteBadRequestResponse(w, "Title must be 100 characters or fewer")
		return
	}

	// 去重：与已有建议标题双向包含即视为重复
	existing, err := h.db.ListFeatureSuggestions()
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to check existing suggestions: "+err.Error())
		return
	}
	for _, f := range existing {
		if isDuplicateTitle(title, f.Title) {
			utils.WriteConflictResponse(w, fmt.Sprintf("A similar suggestion already exists: %q", f.Title))
			return
		}
	}

	feature := &models.FeatureSuggestion{
		ID:          uuid.NewString(),
		UserEmail:   user.Email,
		Title:       title,
		Description: strings.TrimSpace(req.Description),
		VoteCount:   1,
		Status:      "proposed",
		Category:    strings.TrimSpace(req.Category),
		CreatedAt:   time.Now().UTC(),
	}

	if err := h.db.CreateFeatureSuggestion(feature); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to save suggestion: "+err.Error())
		return
	}

	// 提交者的赞成票记录在案，后续toggle语义正常生效
	vote := &models.FeatureVote{
		ID:        uuid.NewString(),
		UserEmail: user.Email,
		FeatureID: feature.ID,
		VoteType:  models.VoteUp,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.db.CreateFeatureVote(vote); err != nil {
		fmt.Printf("⚠️ 提交者自动投票记录失败: %v\n", err)
	}

	utils.WriteCreatedResponse(w, feature)
}

// ListFeatures 列出全部功能建议，附带当前用户的投票状态
func (h *FeatureHandler) ListFeatures(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	features, err := h.db.ListFeatureSuggestions()
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to list suggestions: "+err.Error())
		return
	}

	userVotes := map[string]string{}
	for _, f := range features {
		vote, err := h.db.GetFeatureVote(user.Email, f.ID)
		if err != nil {
			continue
		}
		userVotes[f.ID] = string(vote.VoteType)
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{
		"features":  features,
		"userVotes": userVotes,
		"count":     len(features),
	})
}

// Vote 投票，toggle语义：
// 无记录→新建；同方向→撤销；反方向→翻转（票数变动±2）
func (h *FeatureHandler) Vote(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	var req models.VoteRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}

	if !isValidItemID(req.FeatureID) {
		utils.WriteBadRequestResponse(w, "Invalid feature ID format (expected UUID)")
		return
	}

	voteType := models.VoteType(req.VoteType)
	if !voteType.IsValid() {
		utils.WriteBadRequestResponse(w, "voteType must be one of: upvote, downvote")
		return
	}

	if _, err := h.db.GetFeatureSuggestion(req.FeatureID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			utils.WriteNotFoundResponse(w, "Feature suggestion not found")
			return
		}
		utils.WriteInternalServerErrorResponse(w, "Failed to load suggestion: "+err.Error())
		return
	}

	action, err := h.applyVote(user.Email, req.FeatureID, voteType)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to apply vote: "+err.Error())
		return
	}

	feature, err := h.db.GetFeatureSuggestion(req.FeatureID)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to reload suggestion: "+err.Error())
		return
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{
		"action":  action,
		"feature": feature,
	})
}

// applyVote 执行toggle状态机，返回发生的动作（created/removed/switched）
func (h *FeatureHandler) applyVote(ownerEmail, featureID string, voteType models.VoteType) (string, error) {
	existing, err := h.db.GetFeatureVote(ownerEmail, featureID)
	if err != nil {
		if !errors.Is(err, database.ErrNotFound) {
			return "", err
		}

		// 无记录：新建投票
		vote := &models.FeatureVote{
			ID:        uuid.NewString(),
			UserEmail: ownerEmail,
			FeatureID: featureID,
			VoteType:  voteType,
			CreatedAt: time.Now().UTC(),
		}
		if err := h.db.CreateFeatureVote(vote); err != nil {
			return "", err
		}
		return "created", h.db.AdjustFeatureVotes(featureID, voteDelta(voteType))
	}

	if existing.VoteType == voteType {
		// 同方向：撤销投票
		if err := h.db.DeleteFeatureVote(ownerEmail, featureID); err != nil {
			return "", err
		}
		return "removed", h.db.AdjustFeatureVotes(featureID, -voteDelta(voteType))
	}

	// 反方向：翻转，净变动两倍
	existing.VoteType = voteType
	if err := h.db.UpdateFeatureVote(existing); err != nil {
		return "", err
	}
	return "switched", h.db.AdjustFeatureVotes(featureID, 2*voteDelta(voteType))
}

// voteDelta 单张票对票数的贡献
func voteDelta(voteType models.VoteType) int {
	if voteType == models.VoteDown {
		return -1
	}
	return 1
}

// isDuplicateTitle 大小写不敏感的双向包含判断
func isDuplicateTitle(a, b string) bool {
	la := strings.ToLower(strings.TrimSpace(a))
	lb := strings.ToLower(strings.TrimSpace(b))
	if la == "" || lb == "" {
		return false
	}
	return strings.Contains(la, lb) || strings.Contains(lb, la)
}
