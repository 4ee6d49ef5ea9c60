package database

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"stash-backend/pkg/models"
)

// SupabaseStore Supabase数据库实现（PostgREST）
type SupabaseStore struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewSupabaseStore 创建Supabase数据库实例
func NewSupabaseStore(supabaseURL, key string) Store {
	// 确保URL格式正确
	if !strings.HasPrefix(supabaseURL, "http") {
		supabaseURL = "https://" + supabaseURL
	}

	return &SupabaseStore{
		baseURL: supabaseURL,
		apiKey:  key,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// makeRequest 发送HTTP请求到Supabase
func (db *SupabaseStore) makeRequest(method, endpoint string, body interface{}) ([]byte, error) {
	var reqBody io.Reader

	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	reqURL := db.baseURL + "/rest/v1" + endpoint
	req, err := http.NewRequest(method, reqURL, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	// 设置请求头
	req.Header.Set("apikey", db.apiKey)
	req.Header.Set("Authorization", "Bearer "+db.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=representation")

	resp, err := db.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}

// esc 转义过滤器里的值（邮箱可能包含 + 等字符）
func esc(v string) string {
	return url.QueryEscape(v)
}

// ================= Saved items =================

// CreateSavedItem 创建保存的内容
func (db *SupabaseStore) CreateSavedItem(item *models.SavedItem) error {
	payload := map[string]interface{}{
		"id":           item.ID,
		"user_email":   item.UserEmail,
		"content_type": string(item.ContentType),
		"title":        item.Title,
		"ai_summary":   item.AISummary,
		"ai_category":  item.AICategory,
		"ai_tags":      item.AITags,
		"is_completed": item.IsCompleted,
		"view_count":   item.ViewCount,
	}
	// image 类型不保留原始文本载荷
	if item.ContentType != models.ContentTypeImage {
		payload["original_content"] = item.OriginalContent
	}
	if item.OriginalImageURL != "" {
		payload["original_image_url"] = item.OriginalImageURL
	}
	if item.PreviewData != nil {
		payload["preview_data"] = item.PreviewData
	}
	if item.ContentMetadata != nil {
		payload["content_metadata"] = item.ContentMetadata
	}

	data, err := db.makeRequest("POST", "/saved_items", payload)
	if err != nil {
		return fmt.Errorf("failed to create saved item: %w", err)
	}

	// 解析返回行以获取数据库生成的时间戳
	var rows []models.SavedItem
	if err := json.Unmarshal(data, &rows); err == nil && len(rows) > 0 {
		item.CreatedAt = rows[0].CreatedAt
		item.UpdatedAt = rows[0].UpdatedAt
	}

	fmt.Printf("💾 Saved %s item %s for %s via Supabase REST\n", item.ContentType, item.ID, item.UserEmail)
	return nil
}

// ListSavedItems 列出用户的内容（可按分类过滤，最新优先）
func (db *SupabaseStore) ListSavedItems(ownerEmail, category string) ([]models.SavedItem, error) {
	endpoint := fmt.Sprintf("/saved_items?user_email=eq.%s&select=*&order=created_at.desc", esc(ownerEmail))
	if category != "" {
		endpoint += "&ai_category=eq." + esc(category)
	}

	data, err := db.makeRequest("GET", endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list saved items: %w", err)
	}

	var items []models.SavedItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to parse saved items: %w", err)
	}
	return items, nil
}

// GetSavedItem 获取单条内容（所有权过滤）
func (db *SupabaseStore) GetSavedItem(ownerEmail, id string) (*models.SavedItem, error) {
	endpoint := fmt.Sprintf("/saved_items?id=eq.%s&user_email=eq.%s&select=*", esc(id), esc(ownerEmail))

	data, err := db.makeRequest("GET", endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get saved item: %w", err)
	}

	var items []models.SavedItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to parse saved item: %w", err)
	}
	if len(items) == 0 {
		return nil, ErrNotFound
	}
	return &items[0], nil
}

// UpdateSavedItem 部分更新（所有权在过滤器里复查；未命中即 ErrNotFound）
func (db *SupabaseStore) UpdateSavedItem(ownerEmail, id string, patch map[string]interface{}) (*models.SavedItem, error) {
	if patch == nil {
		patch = map[string]interface{}{}
	}
	patch["updated_at"] = time.Now().Format(time.RFC3339)

	endpoint := fmt.Sprintf("/saved_items?id=eq.%s&user_email=eq.%s", esc(id), esc(ownerEmail))
	data, err := db.makeRequest("PATCH", endpoint, patch)
	if err != nil {
		return nil, fmt.Errorf("failed to update saved item: %w", err)
	}

	var items []models.SavedItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to parse updated item: %w", err)
	}
	if len(items) == 0 {
		// PATCH 匹配零行：不存在或不属于该用户
		return nil, ErrNotFound
	}
	return &items[0], nil
}

// DeleteSavedItem 删除内容（所有权过滤，返回被删除的行）
func (db *SupabaseStore) DeleteSavedItem(ownerEmail, id string) (*models.SavedItem, error) {
	endpoint := fmt.Sprintf("/saved_items?id=eq.%s&user_email=eq.%s", esc(id), esc(ownerEmail))
	data, err := db.makeRequest("DELETE", endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to delete saved item: %w", err)
	}

	var items []models.SavedItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to parse deleted item: %w", err)
	}
	if len(items) == 0 {
		return nil, ErrNotFound
	}

	fmt.Printf("🗑️ Deleted item %s for %s\n", id, ownerEmail)
	return &items[0], nil
}

// IncrementItemViews 详情页访问计数。优先走原子 RPC，失败退回读-改-写。
// 载荷键名必须与 increment_item_views(p_owner_email, p_item_id) 的形参一致，
// PostgREST 按命名参数匹配函数。
func (db *SupabaseStore) IncrementItemViews(ownerEmail, id string) (*models.SavedItem, error) {
	payload := map[string]interface{}{
		"p_owner_email": ownerEmail,
		"p_item_id":     id,
	}
	if data, err := db.makeRequest("POST", "/rpc/increment_item_views", payload); err == nil {
		// RPC RETURNING 直接带回更新后的行
		var items []models.SavedItem
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, fmt.Errorf("failed to parse incremented item: %w", err)
		}
		if len(items) == 0 {
			return nil, ErrNotFound
		}
		return &items[0], nil
	}

	// RPC 不可用：非原子回退
	item, err := db.GetSavedItem(ownerEmail, id)
	if err != nil {
		return nil, err
	}
	fmt.Printf("⚠️ increment_item_views RPC unavailable, falling back to read-modify-write\n")
	return db.UpdateSavedItem(ownerEmail, id, map[string]interface{}{
		"view_count":     item.ViewCount + 1,
		"last_viewed_at": time.Now().Format(time.RFC3339),
	})
}

// ================= Feedback =================

// CreateFeedback 保存用户反馈
func (db *SupabaseStore) CreateFeedback(entry *models.FeedbackEntry) error {
	payload := map[string]interface{}{
		"id":         entry.ID,
		"user_email": entry.UserEmail,
		"type":       string(entry.Type),
		"message":    entry.Message,
		"category":   entry.Category,
		"status":     entry.Status,
	}
	if entry.Rating > 0 {
		payload["rating"] = entry.Rating
	}

	data, err := db.makeRequest("POST", "/feedback", payload)
	if err != nil {
		return fmt.Errorf("failed to create feedback: %w", err)
	}

	var rows []models.FeedbackEntry
	if err := json.Unmarshal(data, &rows); err == nil && len(rows) > 0 {
		entry.CreatedAt = rows[0].CreatedAt
	}
	return nil
}

// ListFeedback 列出全部反馈（仅管理员可达，处理器层控制）
func (db *SupabaseStore) ListFeedback() ([]models.FeedbackEntry, error) {
	data, err := db.makeRequest("GET", "/feedback?select=*&order=created_at.desc", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list feedback: %w", err)
	}

	var rows []models.FeedbackEntry
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse feedback: %w", err)
	}
	return rows, nil
}

// ================= Feature suggestions & votes =================

// CreateFeatureSuggestion 创建功能建议
func (db *SupabaseStore) CreateFeatureSuggestion(f *models.FeatureSuggestion) error {
	payload := map[string]interface{}{
		"id":          f.ID,
		"user_email":  f.UserEmail,
		"title":       f.Title,
		"description": f.Description,
		"vote_count":  f.VoteCount,
		"status":      f.Status,
		"category":    f.Category,
	}

	data, err := db.makeRequest("POST", "/feature_suggestions", payload)
	if err != nil {
		return fmt.Errorf("failed to create feature suggestion: %w", err)
	}

	var rows []models.FeatureSuggestion
	if err := json.Unmarshal(data, &rows); err == nil && len(rows) > 0 {
		f.CreatedAt = rows[0].CreatedAt
	}
	return nil
}

// ListFeatureSuggestions 按票数排序列出功能建议
func (db *SupabaseStore) ListFeatureSuggestions() ([]models.FeatureSuggestion, error) {
	data, err := db.makeRequest("GET", "/feature_suggestions?select=*&order=vote_count.desc", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list feature suggestions: %w", err)
	}

	var rows []models.FeatureSuggestion
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse feature suggestions: %w", err)
	}
	return rows, nil
}

// GetFeatureSuggestion 获取单条功能建议
func (db *SupabaseStore) GetFeatureSuggestion(id string) (*models.FeatureSuggestion, error) {
	endpoint := fmt.Sprintf("/feature_suggestions?id=eq.%s&select=*", esc(id))
	data, err := db.makeRequest("GET", endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get feature suggestion: %w", err)
	}

	var rows []models.FeatureSuggestion
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse feature suggestion: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return &rows[0], nil
}

// GetFeatureVote 获取某用户对某建议的现有投票
func (db *SupabaseStore) GetFeatureVote(ownerEmail, featureID string) (*models.FeatureVote, error) {
	endpoint := fmt.Sprintf("/feature_votes?user_email=eq.%s&feature_id=eq.%s&select=*", esc(ownerEmail), esc(featureID))
	data, err := db.makeRequest("GET", endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get feature vote: %w", err)
	}

	var rows []models.FeatureVote
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse feature vote: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return &rows[0], nil
}

// CreateFeatureVote 创建投票
func (db *SupabaseStore) CreateFeatureVote(v *models.FeatureVote) error {
	payload := map[string]interface{}{
		"id":         v.ID,
		"user_email": v.UserEmail,
		"feature_id": v.FeatureID,
		"vote_type":  string(v.VoteType),
	}
	_, err := db.makeRequest("POST", "/feature_votes", payload)
	if err != nil {
		return fmt.Errorf("failed to create feature vote: %w", err)
	}
	return nil
}

// UpdateFeatureVote 改投（翻转方向）
func (db *SupabaseStore) UpdateFeatureVote(v *models.FeatureVote) error {
	endpoint := fmt.Sprintf("/feature_votes?user_email=eq.%s&feature_id=eq.%s", esc(v.UserEmail), esc(v.FeatureID))
	_, err := db.makeRequest("PATCH", endpoint, map[string]interface{}{
		"vote_type": string(v.VoteType),
	})
	if err != nil {
		return fmt.Errorf("failed to update feature vote: %w", err)
	}
	return nil
}

// DeleteFeatureVote 撤回投票
func (db *SupabaseStore) DeleteFeatureVote(ownerEmail, featureID string) error {
	endpoint := fmt.Sprintf("/feature_votes?user_email=eq.%s&feature_id=eq.%s", esc(ownerEmail), esc(featureID))
	_, err := db.makeRequest("DELETE", endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to delete feature vote: %w", err)
	}
	return nil
}

// AdjustFeatureVotes 调整票数。优先走原子 RPC；失败退回读-改-写。
// 回退路径在并发投票下存在丢失更新的竞态，钳制在0以上兜底。
func (db *SupabaseStore) AdjustFeatureVotes(featureID string, delta int) error {
	payload := map[string]interface{}{
		"p_feature_id": featureID,
		"p_delta":      delta,
	}
	if _, err := db.makeRequest("POST", "/rpc/adjust_feature_votes", payload); err == nil {
		return nil
	}

	fmt.Printf("⚠️ adjust_feature_votes RPC unavailable, falling back to read-modify-write\n")
	f, err := db.GetFeatureSuggestion(featureID)
	if err != nil {
		return err
	}
	newCount := f.VoteCount + delta
	if newCount < 0 {
		newCount = 0
	}
	endpoint := fmt.Sprintf("/feature_suggestions?id=eq.%s", esc(featureID))
	_, err = db.makeRequest("PATCH", endpoint, map[string]interface{}{
		"vote_count": newCount,
	})
	if err != nil {
		return fmt.Errorf("failed to adjust vote count: %w", err)
	}
	return nil
}

// HealthCheck 健康检查
func (db *SupabaseStore) HealthCheck() error {
	// 发送简单的查询来检查连接
	_, err := db.makeRequest("GET", "/saved_items?select=id&limit=1", nil)
	return err
}

// Close 关闭连接
func (db *SupabaseStore) Close() error {
	// HTTP客户端无需显式关闭
	return nil
}
