package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"stash-backend/pkg/models"
)

// PostgresStore PostgreSQL数据库实现
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore 创建PostgreSQL数据库实例
func NewPostgresStore(dsn string) Store {
	// 尝试多种连接策略来解决Vercel Lambda的IPv6问题
	// Sanitize DSN to avoid stray CR/LF from env values
	dsn = strings.TrimSpace(dsn)
	strategies := []string{
		addConnectionParams(dsn, "prefer_simple_protocol=true"),
		addConnectionParams(dsn, "prefer_simple_protocol=true&connect_timeout=10"),
		addConnectionParams(dsn, "sslmode=require&prefer_simple_protocol=true"),
		dsn, // 最后尝试原始DSN
	}

	var db *sql.DB
	var err error

	for i, strategy := range strategies {
		fmt.Printf("🔄 Trying connection strategy %d...\n", i+1)

		db, err = sql.Open("postgres", strategy)
		if err != nil {
			fmt.Printf("❌ Strategy %d failed to open: %v\n", i+1, err)
			continue
		}

		// 设置连接池参数，适合无服务器环境
		db.SetMaxOpenConns(5)                  // 限制最大连接数
		db.SetMaxIdleConns(2)                  // 限制空闲连接数
		db.SetConnMaxLifetime(5 * time.Minute) // 连接最大生命周期

		// 测试连接
		if err = db.Ping(); err != nil {
			fmt.Printf("❌ Strategy %d failed to ping: %v\n", i+1, err)
			db.Close()
			continue
		}

		fmt.Printf("✅ PostgreSQL connection established successfully with strategy %d\n", i+1)
		return &PostgresStore{db: db}
	}

	// 所有策略都失败了
	panic(fmt.Sprintf("Failed to connect to PostgreSQL with all strategies. Last error: %v", err))
}

// addConnectionParams 添加连接参数到DSN
func addConnectionParams(dsn, params string) string {
	if params == "" {
		return dsn
	}

	separator := "?"
	if strings.Contains(dsn, "?") {
		separator = "&"
	}

	return dsn + separator + params
}

const savedItemColumns = `
    id, user_email, content_type,
    COALESCE(original_content, ''), COALESCE(original_image_url, ''),
    preview_data, content_metadata,
    COALESCE(title, ''), COALESCE(ai_summary, ''), COALESCE(ai_category, ''), ai_tags,
    is_completed, view_count, last_viewed_at, created_at, updated_at
`

// scanSavedItem 从一行记录中扫描SavedItem（jsonb字段反序列化）
func scanSavedItem(row interface{ Scan(...interface{}) error }) (*models.SavedItem, error) {
	var item models.SavedItem
	var previewJSON, metadataJSON []byte
	var lastViewed sql.NullTime

	err := row.Scan(
		&item.ID, &item.UserEmail, &item.ContentType,
		&item.OriginalContent, &item.OriginalImageURL,
		&previewJSON, &metadataJSON,
		&item.Title, &item.AISummary, &item.AICategory, pq.Array(&item.AITags),
		&item.IsCompleted, &item.ViewCount, &lastViewed, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(previewJSON) > 0 {
		var preview models.LinkPreview
		if json.Unmarshal(previewJSON, &preview) == nil {
			item.PreviewData = &preview
		}
	}
	if len(metadataJSON) > 0 {
		_ = json.Unmarshal(metadataJSON, &item.ContentMetadata)
	}
	if lastViewed.Valid {
		item.LastViewedAt = &lastViewed.Time
	}
	return &item, nil
}

// CreateSavedItem 创建保存的内容
func (db *PostgresStore) CreateSavedItem(item *models.SavedItem) error {
	var previewJSON, metadataJSON []byte
	if item.PreviewData != nil {
		previewJSON, _ = json.Marshal(item.PreviewData)
	}
	if item.ContentMetadata != nil {
		metadataJSON, _ = json.Marshal(item.ContentMetadata)
	}

	// image 类型不保留原始文本载荷
	originalContent := item.OriginalContent
	if item.ContentType == models.ContentTypeImage {
		originalContent = ""
	}

	query := `
        INSERT INTO public.saved_items
            (id, user_email, content_type, original_content, original_image_url,
             preview_data, content_metadata, title, ai_summary, ai_category, ai_tags,
             is_completed, view_count, created_at, updated_at)
        VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6, $7, $8, $9, $10, $11, $12, $13, NOW(), NOW())
        RETURNING created_at, updated_at
    `
	err := db.db.QueryRow(query,
		item.ID, item.UserEmail, string(item.ContentType), originalContent, item.OriginalImageURL,
		nullableJSON(previewJSON), nullableJSON(metadataJSON),
		item.Title, item.AISummary, item.AICategory, pq.Array(item.AITags),
		item.IsCompleted, item.ViewCount,
	).Scan(&item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create saved item: %w", err)
	}

	fmt.Printf("💾 Saved %s item %s for %s via PostgreSQL\n", item.ContentType, item.ID, item.UserEmail)
	return nil
}

// nullableJSON 空JSON写入NULL而不是空串
func nullableJSON(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return b
}

// ListSavedItems 列出用户的内容（可按分类过滤，最新优先）
func (db *PostgresStore) ListSavedItems(ownerEmail, category string) ([]models.SavedItem, error) {
	query := `SELECT ` + savedItemColumns + `
        FROM public.saved_items
        WHERE user_email = $1`
	args := []interface{}{ownerEmail}
	if category != "" {
		query += ` AND ai_category = $2`
		args = append(args, category)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := db.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list saved items: %w", err)
	}
	defer rows.Close()

	var items []models.SavedItem
	for rows.Next() {
		item, err := scanSavedItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan saved item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// GetSavedItem 获取单条内容（所有权过滤）
func (db *PostgresStore) GetSavedItem(ownerEmail, id string) (*models.SavedItem, error) {
	query := `SELECT ` + savedItemColumns + `
        FROM public.saved_items
        WHERE id = $1 AND user_email = $2`

	item, err := scanSavedItem(db.db.QueryRow(query, id, ownerEmail))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get saved item: %w", err)
	}
	return item, nil
}

// savedItemPatchColumns 部分更新允许触碰的列
var savedItemPatchColumns = map[string]bool{
	"title":          true,
	"is_completed":   true,
	"view_count":     true,
	"last_viewed_at": true,
}

// UpdateSavedItem 部分更新（所有权在UPDATE语句里复查；未命中即 ErrNotFound）
func (db *PostgresStore) UpdateSavedItem(ownerEmail, id string, patch map[string]interface{}) (*models.SavedItem, error) {
	sets := []string{"updated_at = NOW()"}
	args := []interface{}{}
	i := 1

	for col, val := range patch {
		if col == "updated_at" {
			continue
		}
		if !savedItemPatchColumns[col] {
			return nil, fmt.Errorf("column %q is not updatable", col)
		}
		sets = append(sets, fmt.Sprintf("%s = $%d", col, i))
		args = append(args, val)
		i++
	}

	query := fmt.Sprintf(`
        UPDATE public.saved_items
        SET %s
        WHERE id = $%d AND user_email = $%d
        RETURNING `+savedItemColumns, strings.Join(sets, ", "), i, i+1)
	args = append(args, id, ownerEmail)

	item, err := scanSavedItem(db.db.QueryRow(query, args...))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to update saved item: %w", err)
	}
	return item, nil
}

// DeleteSavedItem 删除内容（所有权过滤，返回被删除的行）
func (db *PostgresStore) DeleteSavedItem(ownerEmail, id string) (*models.SavedItem, error) {
	query := `
        DELETE FROM public.saved_items
        WHERE id = $1 AND user_email = $2
        RETURNING ` + savedItemColumns

	item, err := scanSavedItem(db.db.QueryRow(query, id, ownerEmail))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to delete saved item: %w", err)
	}

	fmt.Printf("🗑️ Deleted item %s for %s\n", id, ownerEmail)
	return item, nil
}

// IncrementItemViews 详情页访问计数（单条原子UPDATE，所有权复查）
func (db *PostgresStore) IncrementItemViews(ownerEmail, id string) (*models.SavedItem, error) {
	query := `
        UPDATE public.saved_items
        SET view_count = view_count + 1, last_viewed_at = NOW()
        WHERE id = $1 AND user_email = $2
        RETURNING ` + savedItemColumns

	item, err := scanSavedItem(db.db.QueryRow(query, id, ownerEmail))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to increment item views: %w", err)
	}
	return item, nil
}

// ================= Feedback =================

// CreateFeedback 保存用户反馈
func (db *PostgresStore) CreateFeedback(entry *models.FeedbackEntry) error {
	query := `
        INSERT INTO public.feedback (id, user_email, type, rating, message, category, status, created_at)
        VALUES ($1, $2, $3, NULLIF($4, 0), $5, $6, $7, NOW())
        RETURNING created_at
    `
	err := db.db.QueryRow(query,
		entry.ID, entry.UserEmail, string(entry.Type), entry.Rating,
		entry.Message, entry.Category, entry.Status,
	).Scan(&entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create feedback: %w", err)
	}
	return nil
}

// ListFeedback 列出全部反馈（仅管理员可达，处理器层控制）
func (db *PostgresStore) ListFeedback() ([]models.FeedbackEntry, error) {
	query := `
        SELECT id, user_email, type, COALESCE(rating, 0), COALESCE(message, ''),
               COALESCE(category, ''), COALESCE(status, 'new'), created_at
        FROM public.feedback
        ORDER BY created_at DESC
    `
	rows, err := db.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list feedback: %w", err)
	}
	defer rows.Close()

	var entries []models.FeedbackEntry
	for rows.Next() {
		var e models.FeedbackEntry
		if err := rows.Scan(&e.ID, &e.UserEmail, &e.Type, &e.Rating, &e.Message, &e.Category, &e.Status, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan feedback: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ================= Feature suggestions & votes =================

// CreateFeatureSuggestion 创建功能建议
func (db *PostgresStore) CreateFeatureSuggestion(f *models.FeatureSuggestion) error {
	query := `
        INSERT INTO public.feature_suggestions (id, user_email, title, description, vote_count, status, category, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
        RETURNING created_at
    `
	err := db.db.QueryRow(query,
		f.ID, f.UserEmail, f.Title, f.Description, f.VoteCount, f.Status, f.Category,
	).Scan(&f.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create feature suggestion: %w", err)
	}
	return nil
}

// ListFeatureSuggestions 按票数排序列出功能建议
func (db *PostgresStore) ListFeatureSuggestions() ([]models.FeatureSuggestion, error) {
	query := `
        SELECT id, user_email, title, COALESCE(description, ''), vote_count,
               COALESCE(status, 'proposed'), COALESCE(category, ''), created_at
        FROM public.feature_suggestions
        ORDER BY vote_count DESC, created_at DESC
    `
	rows, err := db.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list feature suggestions: %w", err)
	}
	defer rows.Close()

	var features []models.FeatureSuggestion
	for rows.Next() {
		var f models.FeatureSuggestion
		if err := rows.Scan(&f.ID, &f.UserEmail, &f.Title, &f.Description, &f.VoteCount, &f.Status, &f.Category, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan feature suggestion: %w", err)
		}
		features = append(features, f)
	}
	return features, rows.Err()
}

// GetFeatureSuggestion 获取单条功能建议
func (db *PostgresStore) GetFeatureSuggestion(id string) (*models.FeatureSuggestion, error) {
	query := `
        SELECT id, user_email, title, COALESCE(description, ''), vote_count,
               COALESCE(status, 'proposed'), COALESCE(category, ''), created_at
        FROM public.feature_suggestions
        WHERE id = $1
    `
	var f models.FeatureSuggestion
	err := db.db.QueryRow(query, id).Scan(
		&f.ID, &f.UserEmail, &f.Title, &f.Description, &f.VoteCount, &f.Status, &f.Category, &f.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get feature suggestion: %w", err)
	}
	return &f, nil
}

// GetFeatureVote 获取某用户对某建议的现有投票
func (db *PostgresStore) GetFeatureVote(ownerEmail, featureID string) (*models.FeatureVote, error) {
	query := `
        SELECT id, user_email, feature_id, vote_type, created_at
        FROM public.feature_votes
        WHERE user_email = $1 AND feature_id = $2
    `
	var v models.FeatureVote
	err := db.db.QueryRow(query, ownerEmail, featureID).Scan(
		&v.ID, &v.UserEmail, &v.FeatureID, &v.VoteType, &v.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get feature vote: %w", err)
	}
	return &v, nil
}

// CreateFeatureVote 创建投票
func (db *PostgresStore) CreateFeatureVote(v *models.FeatureVote) error {
	query := `
        INSERT INTO public.feature_votes (id, user_email, feature_id, vote_type, created_at)
        VALUES ($1, $2, $3, $4, NOW())
    `
	_, err := db.db.Exec(query, v.ID, v.UserEmail, v.FeatureID, string(v.VoteType))
	if err != nil {
		return fmt.Errorf("failed to create feature vote: %w", err)
	}
	return nil
}

// UpdateFeatureVote 改投（翻转方向）
func (db *PostgresStore) UpdateFeatureVote(v *models.FeatureVote) error {
	query := `
        UPDATE public.feature_votes
        SET vote_type = $1
        WHERE user_email = $2 AND feature_id = $3
    `
	_, err := db.db.Exec(query, string(v.VoteType), v.UserEmail, v.FeatureID)
	if err != nil {
		return fmt.Errorf("failed to update feature vote: %w", err)
	}
	return nil
}

// DeleteFeatureVote 撤回投票
func (db *PostgresStore) DeleteFeatureVote(ownerEmail, featureID string) error {
	query := `DELETE FROM public.feature_votes WHERE user_email = $1 AND feature_id = $2`
	_, err := db.db.Exec(query, ownerEmail, featureID)
	if err != nil {
		return fmt.Errorf("failed to delete feature vote: %w", err)
	}
	return nil
}

// AdjustFeatureVotes 单条原子UPDATE调整票数（GREATEST钳制在0以上）
func (db *PostgresStore) AdjustFeatureVotes(featureID string, delta int) error {
	query := `
        UPDATE public.feature_suggestions
        SET vote_count = GREATEST(vote_count + $1, 0)
        WHERE id = $2
    `
	result, err := db.db.Exec(query, delta, featureID)
	if err != nil {
		return fmt.Errorf("failed to adjust vote count: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// HealthCheck 健康检查
func (db *PostgresStore) HealthCheck() error {
	return db.db.Ping()
}

// Close 关闭连接
func (db *PostgresStore) Close() error {
	return db.db.Close()
}
