package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
)

// SocialResult 社交媒体帖子的结构化抓取结果
type SocialResult struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	Thumbnail   string `json:"thumbnail,omitempty"`
	Author      string `json:"author,omitempty"`
	PostType    string `json:"post_type"`
	PostID      string `json:"post_id,omitempty"`
	Note        string `json:"note,omitempty"`
}

var (
	reelPathRe = regexp.MustCompile(`/reels?/([A-Za-z0-9_-]+)`)
	postPathRe = regexp.MustCompile(`/p/([A-Za-z0-9_-]+)`)
	// 用户名是路径的第一段（排除保留段）
	authorPathRe = regexp.MustCompile(`^/([A-Za-z0-9_.]+)/`)
)

var reservedPathSegments = map[string]bool{
	"p": true, "reel": true, "reels": true, "tv": true,
	"stories": true, "explore": true, "accounts": true,
}

// IsSocialURL 判断是否为受支持的社交媒体链接
func IsSocialURL(rawURL string) bool {
	parsed, err := url.Parse(NormalizeURL(rawURL))
	if err != nil {
		return false
	}
	host := strings.TrimPrefix(parsed.Host, "www.")
	return host == "instagram.com" || host == "instagr.am"
}

// ScrapeSocial 抓取社交帖子信息。三层降级，永不返回错误：
// oEmbed接口 → 页面HTML启发式 → 确定性模板。
// 同一URL多次调用产出同样的模板结果，不引入随机性。
func (s *Scraper) ScrapeSocial(ctx context.Context, rawURL string) *SocialResult {
	normalized := NormalizeURL(rawURL)
	postType, postID, author := parseSocialPath(normalized)

	// 第一层：oEmbed
	if result := s.socialFromOEmbed(ctx, normalized, postType, postID); result != nil {
		return result
	}

	// 第二层：页面HTML
	if result := s.socialFromHTML(ctx, normalized, postType, postID, author); result != nil {
		return result
	}

	// 第三层：确定性模板
	fmt.Printf("⚠️ 社交帖子抓取全部失败，使用模板结果: %s\n", rawURL)
	return &SocialResult{
		Title:       socialFallbackTitle(postType, author),
		Description: "Instagram content saved for later viewing.",
		URL:         normalized,
		Author:      author,
		PostType:    postType,
		PostID:      postID,
		Note:        "Instagram blocks most automated access; limited info available.",
	}
}

// parseSocialPath 从URL路径解析帖子类型、ID和作者
func parseSocialPath(rawURL string) (postType, postID, author string) {
	postType = "post"
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return postType, "", ""
	}
	path := parsed.Path

	if m := reelPathRe.FindStringSubmatch(path); m != nil {
		postType = "reel"
		postID = m[1]
	} else if m := postPathRe.FindStringSubmatch(path); m != nil {
		postID = m[1]
	}

	if m := authorPathRe.FindStringSubmatch(path); m != nil && !reservedPathSegments[m[1]] {
		author = m[1]
	}
	return postType, postID, author
}

// socialFromOEmbed 尝试oEmbed接口
func (s *Scraper) socialFromOEmbed(ctx context.Context, postURL, postType, postID string) *SocialResult {
	endpoint := "https://www.instagram.com/api/v1/oembed/?url=" + url.QueryEscape(postURL)

	if err := s.limiter.Wait(ctx); err != nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", browserUserAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil
	}

	var oembed struct {
		Title        string `json:"title"`
		AuthorName   string `json:"author_name"`
		ThumbnailURL string `json:"thumbnail_url"`
	}
	if err := json.Unmarshal(body, &oembed); err != nil {
		return nil
	}
	if oembed.Title == "" && oembed.AuthorName == "" {
		return nil
	}

	title := oembed.Title
	if title == "" {
		title = socialFallbackTitle(postType, oembed.AuthorName)
	}

	return &SocialResult{
		Title:       truncate(title, maxBasicTitleLen),
		Description: truncate(oembed.Title, maxBasicDescLen),
		URL:         postURL,
		Thumbnail:   oembed.ThumbnailURL,
		Author:      oembed.AuthorName,
		PostType:    postType,
		PostID:      postID,
	}
}

// socialFromHTML 从页面HTML提取og元数据
func (s *Scraper) socialFromHTML(ctx context.Context, postURL, postType, postID, author string) *SocialResult {
	doc, _, err := s.fetch(ctx, postURL)
	if err != nil {
		return nil
	}

	title := firstNonEmpty(
		metaContent(doc, `meta[property="og:title"]`),
		strings.TrimSpace(doc.Find("title").First().Text()),
	)
	description := metaContent(doc, `meta[property="og:description"]`)
	if title == "" && description == "" {
		return nil
	}

	if title == "" {
		title = socialFallbackTitle(postType, author)
	}

	return &SocialResult{
		Title:       truncate(title, maxBasicTitleLen),
		Description: truncate(description, maxBasicDescLen),
		URL:         postURL,
		Thumbnail:   metaContent(doc, `meta[property="og:image"]`),
		Author:      author,
		PostType:    postType,
		PostID:      postID,
	}
}

// socialFallbackTitle 模板标题（与作者/类型确定性对应）
func socialFallbackTitle(postType, author string) string {
	kind := "Post"
	if postType == "reel" {
		kind = "Reel"
	}
	if author != "" {
		return fmt.Sprintf("Instagram %s by @%s", kind, author)
	}
	return "Instagram " + kind
}
