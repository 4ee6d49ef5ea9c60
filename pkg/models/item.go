package models

import "time"

// ContentType 已保存内容的类型（创建后不可变）
type ContentType string

const (
	ContentTypeImage ContentType = "image"
	ContentTypeURL   ContentType = "url"
	ContentTypeText  ContentType = "text"
)

// IsValid 检查内容类型是否受支持
func (t ContentType) IsValid() bool {
	switch t {
	case ContentTypeImage, ContentTypeURL, ContentTypeText:
		return true
	}
	return false
}

// SavedItem represents one captured piece of content (screenshot, link or note)
type SavedItem struct {
	ID               string                 `json:"id" db:"id"`
	UserEmail        string                 `json:"user_email" db:"user_email"`
	ContentType      ContentType            `json:"content_type" db:"content_type"`
	OriginalContent  string                 `json:"original_content,omitempty" db:"original_content"`
	OriginalImageURL string                 `json:"original_image_url,omitempty" db:"original_image_url"`
	PreviewData      *LinkPreview           `json:"preview_data,omitempty" db:"preview_data"`
	ContentMetadata  map[string]interface{} `json:"content_metadata,omitempty" db:"content_metadata"`
	Title            string                 `json:"title" db:"title"`
	AISummary        string                 `json:"ai_summary" db:"ai_summary"`
	AICategory       string                 `json:"ai_category" db:"ai_category"`
	AITags           []string               `json:"ai_tags" db:"ai_tags"`
	IsCompleted      bool                   `json:"is_completed" db:"is_completed"`
	ViewCount        int                    `json:"view_count" db:"view_count"`
	LastViewedAt     *time.Time             `json:"last_viewed_at,omitempty" db:"last_viewed_at"`
	CreatedAt        time.Time              `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time              `json:"updated_at" db:"updated_at"`
}

// LinkPreview 链接的抓取预览数据（仅 url 类型）
// PostType/Author/Note 仅在社交媒体链接时填充
type LinkPreview struct {
	Domain      string `json:"domain,omitempty"`
	FaviconURL  string `json:"favicon_url,omitempty"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
	SiteName    string `json:"site_name,omitempty"`
	PostType    string `json:"post_type,omitempty"`
	Author      string `json:"author,omitempty"`
	Note        string `json:"note,omitempty"`
}

// ProcessContentRequest POST /process-content 请求体
type ProcessContentRequest struct {
	Content     string `json:"content"`
	ContentType string `json:"contentType"`
}

// AnalyzeRequest POST /analyze 请求体
type AnalyzeRequest struct {
	Content     string `json:"content"`
	ContentType string `json:"contentType"`
}

// ScrapeRequest POST /scrape 和 /scrape-social 请求体
type ScrapeRequest struct {
	URL string `json:"url"`
}

// ToggleCompletionRequest PATCH /toggle-completion 请求体
type ToggleCompletionRequest struct {
	ItemID    string `json:"itemId"`
	Completed bool   `json:"completed"`
}

// UpdateTitleRequest PATCH /update-title 请求体
type UpdateTitleRequest struct {
	ItemID string `json:"itemId"`
	Title  string `json:"title"`
}

// DeleteItemRequest DELETE /delete-item 请求体
type DeleteItemRequest struct {
	ItemID string `json:"itemId"`
}

// UploadImageRequest POST /storage/upload-image 请求体
type UploadImageRequest struct {
	ImageData string `json:"imageData"`
	FileName  string `json:"fileName"`
}

// UserStats GET /user-stats 响应
type UserStats struct {
	TotalItems        int            `json:"totalItems"`
	CompletedItems    int            `json:"completedItems"`
	PendingItems      int            `json:"pendingItems"`
	CompletionRate    float64        `json:"completionRate"`
	CategoryBreakdown map[string]int `json:"categoryBreakdown"`
}
