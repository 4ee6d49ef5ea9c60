package database

import (
	"sort"
	"sync"
	"time"

	"stash-backend/pkg/models"
)

// MemoryStore 内存数据库实现。
// 本地开发和测试用；并发安全由单把互斥锁提供。
type MemoryStore struct {
	mu       sync.Mutex
	items    map[string]*models.SavedItem
	feedback []models.FeedbackEntry
	features map[string]*models.FeatureSuggestion
	votes    map[string]*models.FeatureVote // key: user_email + "|" + feature_id
}

// NewMemoryStore 创建内存数据库实例
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items:    make(map[string]*models.SavedItem),
		features: make(map[string]*models.FeatureSuggestion),
		votes:    make(map[string]*models.FeatureVote),
	}
}

func voteKey(ownerEmail, featureID string) string {
	return ownerEmail + "|" + featureID
}

func copyItem(item *models.SavedItem) *models.SavedItem {
	c := *item
	if item.PreviewData != nil {
		p := *item.PreviewData
		c.PreviewData = &p
	}
	if item.ContentMetadata != nil {
		m := make(map[string]interface{}, len(item.ContentMetadata))
		for k, v := range item.ContentMetadata {
			m[k] = v
		}
		c.ContentMetadata = m
	}
	c.AITags = append([]string(nil), item.AITags...)
	if item.LastViewedAt != nil {
		t := *item.LastViewedAt
		c.LastViewedAt = &t
	}
	return &c
}

// CreateSavedItem 创建保存的内容
func (db *MemoryStore) CreateSavedItem(item *models.SavedItem) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	now := time.Now()
	item.CreatedAt = now
	item.UpdatedAt = now
	if item.ContentType == models.ContentTypeImage {
		item.OriginalContent = ""
	}
	db.items[item.ID] = copyItem(item)
	return nil
}

// ListSavedItems 列出用户的内容（可按分类过滤，最新优先）
func (db *MemoryStore) ListSavedItems(ownerEmail, category string) ([]models.SavedItem, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var items []models.SavedItem
	for _, item := range db.items {
		if item.UserEmail != ownerEmail {
			continue
		}
		if category != "" && item.AICategory != category {
			continue
		}
		items = append(items, *copyItem(item))
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	return items, nil
}

// GetSavedItem 获取单条内容（所有权过滤）
func (db *MemoryStore) GetSavedItem(ownerEmail, id string) (*models.SavedItem, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	item, ok := db.items[id]
	if !ok || item.UserEmail != ownerEmail {
		return nil, ErrNotFound
	}
	return copyItem(item), nil
}

// UpdateSavedItem 部分更新（所有权复查；未命中即 ErrNotFound）
func (db *MemoryStore) UpdateSavedItem(ownerEmail, id string, patch map[string]interface{}) (*models.SavedItem, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	item, ok := db.items[id]
	if !ok || item.UserEmail != ownerEmail {
		return nil, ErrNotFound
	}

	for col, val := range patch {
		switch col {
		case "title":
			if s, ok := val.(string); ok {
				item.Title = s
			}
		case "is_completed":
			if b, ok := val.(bool); ok {
				item.IsCompleted = b
			}
		case "view_count":
			if n, ok := val.(int); ok {
				item.ViewCount = n
			}
		case "last_viewed_at":
			if t, ok := val.(time.Time); ok {
				item.LastViewedAt = &t
			}
		}
	}
	item.UpdatedAt = time.Now()
	return copyItem(item), nil
}

// DeleteSavedItem 删除内容（所有权过滤，返回被删除的行）
func (db *MemoryStore) DeleteSavedItem(ownerEmail, id string) (*models.SavedItem, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	item, ok := db.items[id]
	if !ok || item.UserEmail != ownerEmail {
		return nil, ErrNotFound
	}
	delete(db.items, id)
	return copyItem(item), nil
}

// IncrementItemViews 详情页访问计数
func (db *MemoryStore) IncrementItemViews(ownerEmail, id string) (*models.SavedItem, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	item, ok := db.items[id]
	if !ok || item.UserEmail != ownerEmail {
		return nil, ErrNotFound
	}
	now := time.Now()
	item.ViewCount++
	item.LastViewedAt = &now
	return copyItem(item), nil
}

// CreateFeedback 保存用户反馈
func (db *MemoryStore) CreateFeedback(entry *models.FeedbackEntry) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	entry.CreatedAt = time.Now()
	db.feedback = append(db.feedback, *entry)
	return nil
}

// ListFeedback 列出全部反馈
func (db *MemoryStore) ListFeedback() ([]models.FeedbackEntry, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	entries := append([]models.FeedbackEntry(nil), db.feedback...)
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
	return entries, nil
}

// CreateFeatureSuggestion 创建功能建议
func (db *MemoryStore) CreateFeatureSuggestion(f *models.FeatureSuggestion) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	f.CreatedAt = time.Now()
	c := *f
	db.features[f.ID] = &c
	return nil
}

// ListFeatureSuggestions 按票数排序列出功能建议
func (db *MemoryStore) ListFeatureSuggestions() ([]models.FeatureSuggestion, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var features []models.FeatureSuggestion
	for _, f := range db.features {
		features = append(features, *f)
	}
	sort.Slice(features, func(i, j int) bool {
		if features[i].VoteCount != features[j].VoteCount {
			return features[i].VoteCount > features[j].VoteCount
		}
		return features[i].CreatedAt.After(features[j].CreatedAt)
	})
	return features, nil
}

// GetFeatureSuggestion 获取单条功能建议
func (db *MemoryStore) GetFeatureSuggestion(id string) (*models.FeatureSuggestion, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	f, ok := db.features[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *f
	return &c, nil
}

// GetFeatureVote 获取某用户对某建议的现有投票
func (db *MemoryStore) GetFeatureVote(ownerEmail, featureID string) (*models.FeatureVote, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	v, ok := db.votes[voteKey(ownerEmail, featureID)]
	if !ok {
		return nil, ErrNotFound
	}
	c := *v
	return &c, nil
}

// CreateFeatureVote 创建投票
func (db *MemoryStore) CreateFeatureVote(v *models.FeatureVote) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	v.CreatedAt = time.Now()
	c := *v
	db.votes[voteKey(v.UserEmail, v.FeatureID)] = &c
	return nil
}

// UpdateFeatureVote 改投（翻转方向）
func (db *MemoryStore) UpdateFeatureVote(v *models.FeatureVote) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	existing, ok := db.votes[voteKey(v.UserEmail, v.FeatureID)]
	if !ok {
		return ErrNotFound
	}
	existing.VoteType = v.VoteType
	return nil
}

// DeleteFeatureVote 撤回投票
func (db *MemoryStore) DeleteFeatureVote(ownerEmail, featureID string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	delete(db.votes, voteKey(ownerEmail, featureID))
	return nil
}

// AdjustFeatureVotes 调整票数（钳制在0以上）
func (db *MemoryStore) AdjustFeatureVotes(featureID string, delta int) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	f, ok := db.features[featureID]
	if !ok {
		return ErrNotFound
	}
	f.VoteCount += delta
	if f.VoteCount < 0 {
		f.VoteCount = 0
	}
	return nil
}

// HealthCheck 健康检查
func (db *MemoryStore) HealthCheck() error {
	return nil
}

// Close 关闭连接
func (db *MemoryStore) Close() error {
	return nil
}
