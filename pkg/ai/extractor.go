package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"stash-backend/pkg/models"
)

// ErrInvalidExtraction 解析成功但缺少必填字段（title/category/summary）
var ErrInvalidExtraction = errors.New("invalid extraction result")

// 输出长度上限
const (
	maxTitleLen   = 60
	maxSummaryLen = 300
	maxTags       = 5
)

// Extraction 提取器输出：所有内容类型统一的结构化元数据
type Extraction struct {
	Title         string         `json:"title"`
	Category      string         `json:"category"`
	Summary       string         `json:"summary"`
	Tags          []string       `json:"tags"`
	ExtractedInfo *ExtractedInfo `json:"extracted_info,omitempty"`
}

// ExtractedInfo 截图里识别出的可执行信息（各字段可空）
type ExtractedInfo struct {
	Deadline     *string `json:"deadline"`
	Price        *string `json:"price"`
	Code         *string `json:"code"`
	ActionNeeded *string `json:"action_needed"`
}

// Content 待提取内容的封闭联合类型，每种内容类型一个变体
type Content interface {
	isContent()
}

// ImageContent 截图（已上传到对象存储的公开URL）
type ImageContent struct {
	ImageURL string
}

// URLContent 链接及其抓取到的预览数据
type URLContent struct {
	URL     string
	Preview *models.LinkPreview
}

// TextContent 自由文本笔记
type TextContent struct {
	Text string
}

func (ImageContent) isContent() {}
func (URLContent) isContent()   {}
func (TextContent) isContent()  {}

const categoryList = "Shopping, Travel, Work, Study, Entertainment, Food, Finance, Health, Social Media, Other"

const imagePrompt = `Analyze this screenshot and respond with ONLY a JSON object (no markdown, no explanation):
{
  "title": "short descriptive title, max 60 chars",
  "category": "one of: ` + categoryList + `",
  "summary": "what this screenshot shows and why someone would save it, max 300 chars",
  "tags": ["up to 5 short lowercase tags"],
  "extracted_info": {
    "deadline": "date/time if visible, else null",
    "price": "price or amount if visible, else null",
    "code": "coupon/confirmation code if visible, else null",
    "action_needed": "required follow-up if any, else null"
  }
}`

const urlPromptTemplate = `A user saved this link. Based on the page metadata below, respond with ONLY a JSON object (no markdown):
{
  "title": "specific, non-generic title, max 60 chars",
  "category": "one of: ` + categoryList + `",
  "summary": "specific description of what this page contains, max 300 chars. Never write vague filler like 'a webpage about'",
  "tags": ["up to 5 short lowercase tags"]
}

Page title: %s
Page description: %s
URL: %s`

const textPromptTemplate = `A user saved this note. Keep their wording and tone; do not rewrite it. Respond with ONLY a JSON object (no markdown):
{
  "title": "short title drawn from the first line, max 60 chars",
  "category": "one of: ` + categoryList + `",
  "summary": "the note's content, lightly condensed in the user's own words, max 300 chars",
  "tags": ["up to 5 short lowercase tags"]
}

Note:
%s`

// Extractor 把原始内容变成结构化元数据
type Extractor struct {
	client Client
}

// NewExtractor 创建提取器
func NewExtractor(client Client) *Extractor {
	return &Extractor{client: client}
}

// Extract 按内容类型分派提取策略。
// 各分支统一后置条件：title≤60、summary≤300、tags≤5；
// 缺少必填字段返回 ErrInvalidExtraction。
func (e *Extractor) Extract(ctx context.Context, content Content) (*Extraction, error) {
	var result *Extraction
	var err error

	switch c := content.(type) {
	case ImageContent:
		result, err = e.extractImage(ctx, c)
	case URLContent:
		result, err = e.extractURL(ctx, c)
	case TextContent:
		result, err = e.extractText(ctx, c)
	default:
		return nil, fmt.Errorf("unsupported content variant: %T", content)
	}
	if err != nil {
		return nil, err
	}

	clampExtraction(result)
	if result.Title == "" || result.Category == "" || result.Summary == "" {
		return nil, fmt.Errorf("%w: missing title, category or summary", ErrInvalidExtraction)
	}
	return result, nil
}

// extractImage 视觉模型分析截图
func (e *Extractor) extractImage(ctx context.Context, c ImageContent) (*Extraction, error) {
	resp, err := e.client.Generate(ctx, Request{
		UserPrompt: imagePrompt,
		ImageURL:   c.ImageURL,
	})
	if err != nil {
		return nil, fmt.Errorf("vision model call failed: %w", err)
	}
	return Normalize(resp.Content)
}

// extractURL 链接提取。社交媒体帖子走无模型的轻量策略——
// 模型对这类内容会编造不可靠的细节，抓取到的元数据反而更可信。
func (e *Extractor) extractURL(ctx context.Context, c URLContent) (*Extraction, error) {
	if c.Preview != nil && c.Preview.PostType != "" {
		return e.extractSocial(c), nil
	}

	var title, description string
	if c.Preview != nil {
		title = c.Preview.Title
		description = c.Preview.Description
	}

	resp, err := e.client.Generate(ctx, Request{
		UserPrompt: fmt.Sprintf(urlPromptTemplate, title, description, c.URL),
	})
	if err != nil {
		return nil, fmt.Errorf("text model call failed: %w", err)
	}
	return Normalize(resp.Content)
}

// extractText 笔记提取（轻触碰：保留用户的措辞）
func (e *Extractor) extractText(ctx context.Context, c TextContent) (*Extraction, error) {
	resp, err := e.client.Generate(ctx, Request{
		UserPrompt: fmt.Sprintf(textPromptTemplate, c.Text),
	})
	if err != nil {
		return nil, fmt.Errorf("text model call failed: %w", err)
	}
	return Normalize(resp.Content)
}

// Instagram 页面标题里的固定品牌后缀
var socialBoilerplate = []string{
	" • Instagram photos and videos",
	" • Instagram",
	" | Instagram",
	" - Instagram",
	"Instagram",
}

// extractSocial 社交帖子的轻量策略：复用抓取结果，剥掉品牌样板文案，
// 剩余文本太短或太泛时用作者句柄合成一个模板化标题
func (e *Extractor) extractSocial(c URLContent) *Extraction {
	p := c.Preview

	title := p.Title
	for _, b := range socialBoilerplate {
		title = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(title), b))
	}

	if len(strings.TrimSpace(title)) < 10 {
		title = socialTemplateTitle(p.PostType, p.Author)
	}

	summary := strings.TrimSpace(p.Description)
	if summary == "" {
		summary = socialTemplateTitle(p.PostType, p.Author)
	}

	tags := []string{"instagram"}
	if p.PostType != "" {
		tags = append(tags, p.PostType)
	}

	return &Extraction{
		Title:    title,
		Category: "Social Media",
		Summary:  summary,
		Tags:     tags,
	}
}

// socialTemplateTitle 确定性的模板标题（按帖子类型固定，不随机）
func socialTemplateTitle(postType, author string) string {
	kind := "Post"
	if postType == "reel" {
		kind = "Reel"
	}
	if author != "" {
		return fmt.Sprintf("Instagram %s by @%s", kind, author)
	}
	return "Instagram " + kind
}

// Fallback 确定性的类型级占位元数据。
// 提取失败时由编排层使用，保证用户的保存动作永远有结果。
func Fallback(content Content) *Extraction {
	switch c := content.(type) {
	case ImageContent:
		return &Extraction{
			Title:    "Saved Screenshot",
			Category: "Other",
			Summary:  "A screenshot saved for later reference.",
			Tags:     []string{"screenshot", "saved"},
		}
	case URLContent:
		title := "Saved Link"
		if c.Preview != nil && strings.TrimSpace(c.Preview.Title) != "" {
			title = truncateRunes(strings.TrimSpace(c.Preview.Title), maxTitleLen)
		}
		return &Extraction{
			Title:    title,
			Category: "Other",
			Summary:  truncateRunes("Link saved: "+c.URL, maxSummaryLen),
			Tags:     []string{"link", "saved"},
		}
	case TextContent:
		return &Extraction{
			Title:    "Saved Note",
			Category: "Other",
			Summary:  "A note saved for later reference.",
			Tags:     []string{"note", "saved"},
		}
	default:
		return &Extraction{
			Title:    "Saved Item",
			Category: "Other",
			Summary:  "Content saved for later reference.",
			Tags:     []string{"saved"},
		}
	}
}

// clampExtraction 应用统一的长度上限
func clampExtraction(e *Extraction) {
	e.Title = truncateRunes(strings.TrimSpace(e.Title), maxTitleLen)
	e.Summary = truncateRunes(strings.TrimSpace(e.Summary), maxSummaryLen)
	if len(e.Tags) > maxTags {
		e.Tags = e.Tags[:maxTags]
	}
}

// truncateRunes 按字符数截断（不按字节，避免截断多字节字符）
func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
