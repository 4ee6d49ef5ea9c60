package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"stash-backend/pkg/models"
)

// 抓取输出的长度上限
const (
	maxBasicTitleLen  = 100
	maxBasicDescLen   = 300
	maxPreviewDescLen = 200
)

const browserUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// ScrapeResult 页面元数据的基础抓取结果
type ScrapeResult struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	Image       string `json:"image,omitempty"`
	SiteName    string `json:"site_name,omitempty"`
}

// Scraper 网页元数据抓取器。
// 出站请求经过限速器，避免把目标站点当成攻击来源。
type Scraper struct {
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewScraper 创建抓取器
func NewScraper() *Scraper {
	return &Scraper{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		// 每秒5次，突发10
		limiter: rate.NewLimiter(rate.Limit(5), 10),
	}
}

// NormalizeURL 补全缺失的协议前缀
func NormalizeURL(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return trimmed
	}
	if !strings.HasPrefix(trimmed, "http://") && !strings.HasPrefix(trimmed, "https://") {
		return "https://" + trimmed
	}
	return trimmed
}

// Scrape 抓取页面标题和描述。永不返回错误：
// 任何失败都降级成含原始输入URL的占位结果，保存流程不被网络问题打断。
func (s *Scraper) Scrape(ctx context.Context, rawURL string) *ScrapeResult {
	doc, finalURL, err := s.fetch(ctx, rawURL)
	if err != nil {
		fmt.Printf("⚠️ 页面抓取失败，返回降级结果: %s (%v)\n", rawURL, err)
		return &ScrapeResult{
			Title:       "Saved Link",
			Description: "Link saved: " + rawURL,
			URL:         rawURL,
		}
	}

	title := firstNonEmpty(
		metaContent(doc, `meta[property="og:title"]`),
		metaContent(doc, `meta[name="twitter:title"]`),
		strings.TrimSpace(doc.Find("title").First().Text()),
	)
	if title == "" {
		title = "Saved Link"
	}

	description := firstNonEmpty(
		metaContent(doc, `meta[property="og:description"]`),
		metaContent(doc, `meta[name="twitter:description"]`),
		metaContent(doc, `meta[name="description"]`),
	)

	return &ScrapeResult{
		Title:       truncate(title, maxBasicTitleLen),
		Description: truncate(description, maxBasicDescLen),
		URL:         finalURL,
		Image: firstNonEmpty(
			metaContent(doc, `meta[property="og:image"]`),
			metaContent(doc, `meta[name="twitter:image"]`),
		),
		SiteName: metaContent(doc, `meta[property="og:site_name"]`),
	}
}

// ScrapePreview 抓取链接预览（域名、favicon、og元数据）。
// 与 Scrape 一样永不返回错误。
func (s *Scraper) ScrapePreview(ctx context.Context, rawURL string) *models.LinkPreview {
	normalized := NormalizeURL(rawURL)
	domain := extractDomain(normalized)

	preview := &models.LinkPreview{
		Domain:     domain,
		FaviconURL: faviconURL(domain),
	}

	doc, _, err := s.fetch(ctx, rawURL)
	if err != nil {
		fmt.Printf("⚠️ 预览抓取失败，返回基础预览: %s (%v)\n", rawURL, err)
		return preview
	}

	preview.Title = truncate(firstNonEmpty(
		metaContent(doc, `meta[property="og:title"]`),
		metaContent(doc, `meta[name="twitter:title"]`),
		strings.TrimSpace(doc.Find("title").First().Text()),
	), maxBasicTitleLen)
	preview.Description = truncate(firstNonEmpty(
		metaContent(doc, `meta[property="og:description"]`),
		metaContent(doc, `meta[name="twitter:description"]`),
		metaContent(doc, `meta[name="description"]`),
	), maxPreviewDescLen)
	preview.ImageURL = firstNonEmpty(
		metaContent(doc, `meta[property="og:image"]`),
		metaContent(doc, `meta[name="twitter:image"]`),
	)
	preview.SiteName = metaContent(doc, `meta[property="og:site_name"]`)

	return preview
}

// fetch 请求页面并解析成goquery文档
func (s *Scraper) fetch(ctx context.Context, rawURL string) (*goquery.Document, string, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, "", fmt.Errorf("rate limiter: %w", err)
	}

	normalized := NormalizeURL(rawURL)
	if _, err := url.ParseRequestURI(normalized); err != nil {
		return nil, "", fmt.Errorf("invalid url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "GET", normalized, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to parse html: %w", err)
	}
	return doc, normalized, nil
}

// metaContent 读取第一个匹配的meta标签的content属性
func metaContent(doc *goquery.Document, selector string) string {
	content, _ := doc.Find(selector).First().Attr("content")
	return strings.TrimSpace(content)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// extractDomain 提取域名（去掉www前缀）
func extractDomain(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return strings.TrimPrefix(strings.TrimSpace(rawURL), "www.")
	}
	return strings.TrimPrefix(parsed.Host, "www.")
}

// faviconURL Google favicon服务的稳定URL
func faviconURL(domain string) string {
	return "https://www.google.com/s2/favicons?domain=" + domain + "&sz=64"
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
