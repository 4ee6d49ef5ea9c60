package pipeline

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"stash-backend/pkg/ai"
	"stash-backend/pkg/database"
	"stash-backend/pkg/models"
	"stash-backend/pkg/scraper"
	"stash-backend/pkg/storage"
)

// Pipeline 内容摄取编排器：解析 → 提取 → 持久化。
// 所有依赖显式注入，没有包级全局状态。
type Pipeline struct {
	db        database.Store
	blobs     storage.BlobStore
	extractor *ai.Extractor
	scraper   *scraper.Scraper
}

// NewPipeline 创建摄取管线
func NewPipeline(db database.Store, blobs storage.BlobStore, extractor *ai.Extractor, sc *scraper.Scraper) *Pipeline {
	return &Pipeline{
		db:        db,
		blobs:     blobs,
		extractor: extractor,
		scraper:   sc,
	}
}

// Ingest 完整摄取一条内容并返回持久化后的条目。
// 提取失败降级为类型级占位元数据；只有持久化失败才向上返回错误。
func (p *Pipeline) Ingest(ctx context.Context, ownerEmail, rawContent string, contentType models.ContentType) (*models.SavedItem, error) {
	item := &models.SavedItem{
		ID:          uuid.NewString(),
		UserEmail:   ownerEmail,
		ContentType: contentType,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}

	content, err := p.resolve(ctx, ownerEmail, rawContent, contentType, item)
	if err != nil {
		return nil, err
	}

	extraction := p.Analyze(ctx, content)
	item.Title = extraction.Title
	item.AISummary = extraction.Summary
	item.AICategory = extraction.Category
	item.AITags = extraction.Tags
	if extraction.ExtractedInfo != nil {
		if item.ContentMetadata == nil {
			item.ContentMetadata = map[string]interface{}{}
		}
		item.ContentMetadata["extracted_info"] = extraction.ExtractedInfo
	}

	if err := p.db.CreateSavedItem(item); err != nil {
		return nil, fmt.Errorf("failed to persist item: %w", err)
	}

	fmt.Printf("✅ 内容摄取完成: %s (%s) -> %s\n", item.ID, contentType, item.Title)
	return item, nil
}

// Analyze 只做提取不持久化。提取出错时吸收错误并返回占位元数据。
func (p *Pipeline) Analyze(ctx context.Context, content ai.Content) *ai.Extraction {
	extraction, err := p.extractor.Extract(ctx, content)
	if err != nil {
		fmt.Printf("⚠️ 元数据提取失败，使用占位结果: %v\n", err)
		return ai.Fallback(content)
	}
	return extraction
}

// UploadImage 解码并上传一张图片，返回公开URL和存储路径。
// 供独立的上传接口复用摄取管线的存储布局（<owner>/<uuid>.<ext>）。
func (p *Pipeline) UploadImage(ctx context.Context, ownerEmail, imageData string) (publicURL, path string, size int, err error) {
	data, mimeType, err := decodeImagePayload(imageData)
	if err != nil {
		return "", "", 0, fmt.Errorf("invalid image payload: %w", err)
	}

	path = fmt.Sprintf("%s/%s.%s", ownerEmail, uuid.NewString(), extensionForMime(mimeType))
	publicURL, err = p.blobs.Upload(ctx, path, data, mimeType)
	if err != nil {
		return "", "", 0, fmt.Errorf("failed to upload image: %w", err)
	}
	return publicURL, path, len(data), nil
}

// BuildContent 把原始输入包装成提取器的内容变体（不触发上传/抓取之外的副作用）。
// /analyze 这类无持久化的接口用它来复用同一套提取策略。
func (p *Pipeline) BuildContent(ctx context.Context, rawContent string, contentType models.ContentType) (ai.Content, error) {
	switch contentType {
	case models.ContentTypeImage:
		return ai.ImageContent{ImageURL: rawContent}, nil
	case models.ContentTypeURL:
		normalized := scraper.NormalizeURL(rawContent)
		preview := p.scrapeLink(ctx, rawContent)
		return ai.URLContent{URL: normalized, Preview: preview}, nil
	case models.ContentTypeText:
		return ai.TextContent{Text: rawContent}, nil
	default:
		return nil, fmt.Errorf("unsupported content type: %s", contentType)
	}
}

// resolve 按内容类型做前置处理（上传截图/抓取预览/统计笔记），
// 填充item的原始内容字段并返回提取器输入
func (p *Pipeline) resolve(ctx context.Context, ownerEmail, rawContent string, contentType models.ContentType, item *models.SavedItem) (ai.Content, error) {
	switch contentType {
	case models.ContentTypeImage:
		return p.resolveImage(ctx, ownerEmail, rawContent, item)
	case models.ContentTypeURL:
		return p.resolveURL(ctx, rawContent, item)
	case models.ContentTypeText:
		return p.resolveText(rawContent, item), nil
	default:
		return nil, fmt.Errorf("unsupported content type: %s", contentType)
	}
}

// resolveImage 解码base64截图，上传到对象存储
func (p *Pipeline) resolveImage(ctx context.Context, ownerEmail, rawContent string, item *models.SavedItem) (ai.Content, error) {
	data, mimeType, err := decodeImagePayload(rawContent)
	if err != nil {
		return nil, fmt.Errorf("invalid image payload: %w", err)
	}

	path := fmt.Sprintf("%s/%s.%s", ownerEmail, uuid.NewString(), extensionForMime(mimeType))
	publicURL, err := p.blobs.Upload(ctx, path, data, mimeType)
	if err != nil {
		return nil, fmt.Errorf("failed to upload image: %w", err)
	}

	item.OriginalImageURL = publicURL
	item.ContentMetadata = map[string]interface{}{
		"storage_path": path,
		"uploaded_at":  time.Now().UTC().Format(time.RFC3339),
		"size_bytes":   len(data),
	}
	return ai.ImageContent{ImageURL: publicURL}, nil
}

// resolveURL 抓取链接预览（社交链接走专用抓取器）
func (p *Pipeline) resolveURL(ctx context.Context, rawContent string, item *models.SavedItem) (ai.Content, error) {
	normalized := scraper.NormalizeURL(rawContent)
	preview := p.scrapeLink(ctx, rawContent)

	item.OriginalContent = rawContent
	item.PreviewData = preview
	item.ContentMetadata = map[string]interface{}{
		"domain":   preview.Domain,
		"protocol": urlProtocol(normalized),
	}
	return ai.URLContent{URL: normalized, Preview: preview}, nil
}

// resolveText 统计笔记指标
func (p *Pipeline) resolveText(rawContent string, item *models.SavedItem) ai.Content {
	words := len(strings.Fields(rawContent))
	readMinutes := (words + 199) / 200
	if readMinutes < 1 {
		readMinutes = 1
	}

	item.OriginalContent = rawContent
	item.ContentMetadata = map[string]interface{}{
		"word_count":        words,
		"char_count":        len([]rune(rawContent)),
		"read_time_minutes": readMinutes,
	}
	return ai.TextContent{Text: rawContent}
}

// scrapeLink 抓取链接预览，社交链接附带帖子信息
func (p *Pipeline) scrapeLink(ctx context.Context, rawURL string) *models.LinkPreview {
	if scraper.IsSocialURL(rawURL) {
		social := p.scraper.ScrapeSocial(ctx, rawURL)
		normalized := scraper.NormalizeURL(rawURL)
		domain := domainOf(normalized)
		return &models.LinkPreview{
			Domain:      domain,
			FaviconURL:  "https://www.google.com/s2/favicons?domain=" + domain + "&sz=64",
			Title:       social.Title,
			Description: social.Description,
			ImageURL:    social.Thumbnail,
			SiteName:    "Instagram",
			PostType:    social.PostType,
			Author:      social.Author,
			Note:        social.Note,
		}
	}
	return p.scraper.ScrapePreview(ctx, rawURL)
}

// decodeImagePayload 解码base64图片（兼容data URL前缀）
func decodeImagePayload(payload string) ([]byte, string, error) {
	mimeType := "image/png"
	encoded := payload

	if strings.HasPrefix(payload, "data:") {
		parts := strings.SplitN(payload, ",", 2)
		if len(parts) != 2 {
			return nil, "", fmt.Errorf("malformed data url")
		}
		header := parts[0]
		encoded = parts[1]
		if m := strings.TrimSuffix(strings.TrimPrefix(header, "data:"), ";base64"); m != "" {
			mimeType = m
		}
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, "", fmt.Errorf("base64 decode failed: %w", err)
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("empty image data")
	}
	return data, mimeType, nil
}

func extensionForMime(mimeType string) string {
	switch mimeType {
	case "image/jpeg", "image/jpg":
		return "jpg"
	case "image/webp":
		return "webp"
	case "image/gif":
		return "gif"
	default:
		return "png"
	}
}

func urlProtocol(normalized string) string {
	if strings.HasPrefix(normalized, "http://") {
		return "http"
	}
	return "https"
}

func domainOf(normalized string) string {
	parsed, err := url.Parse(normalized)
	if err != nil || parsed.Host == "" {
		return normalized
	}
	return strings.TrimPrefix(parsed.Host, "www.")
}
