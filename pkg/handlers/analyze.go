package handlers

import (
	"net/http"
	"strings"

	"stash-backend/pkg/config"
	"stash-backend/pkg/middleware"
	"stash-backend/pkg/models"
	"stash-backend/pkg/pipeline"
	"stash-backend/pkg/scraper"
	"stash-backend/pkg/utils"
)

// AnalyzeHandler 内容分析与抓取处理器（无持久化副作用）
type AnalyzeHandler struct {
	config   *config.Config
	pipeline *pipeline.Pipeline
	scraper  *scraper.Scraper
}

// NewAnalyzeHandler 创建分析处理器
func NewAnalyzeHandler(cfg *config.Config, p *pipeline.Pipeline, sc *scraper.Scraper) *AnalyzeHandler {
	return &AnalyzeHandler{
		config:   cfg,
		pipeline: p,
		scraper:  sc,
	}
}

// Analyze 只做元数据提取不保存（内部调用，无需认证）。
// 提取失败时与摄取流程一致：返回占位元数据而不是错误。
func (h *AnalyzeHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req models.AnalyzeRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}

	if strings.TrimSpace(req.Content) == "" {
		utils.WriteBadRequestResponse(w, "Content is required")
		return
	}

	contentType := models.ContentType(req.ContentType)
	if !contentType.IsValid() {
		utils.WriteBadRequestResponse(w, "contentType must be one of: image, url, text")
		return
	}

	content, err := h.pipeline.BuildContent(r.Context(), req.Content, contentType)
	if err != nil {
		utils.WriteBadRequestResponse(w, err.Error())
		return
	}

	extraction := h.pipeline.Analyze(r.Context(), content)
	utils.WriteSuccessResponse(w, extraction)
}

// Scrape 抓取页面元数据（无需认证）。抓取失败返回降级结果，不返回错误。
func (h *AnalyzeHandler) Scrape(w http.ResponseWriter, r *http.Request) {
	var req models.ScrapeRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}

	if strings.TrimSpace(req.URL) == "" {
		utils.WriteBadRequestResponse(w, "URL is required")
		return
	}

	result := h.scraper.Scrape(r.Context(), req.URL)
	utils.WriteSuccessResponse(w, result)
}

// ScrapeSocial 抓取社交帖子信息
func (h *AnalyzeHandler) ScrapeSocial(w http.ResponseWriter, r *http.Request) {
	if _, err := middleware.RequireUser(r.Context()); err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	var req models.ScrapeRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}

	if strings.TrimSpace(req.URL) == "" {
		utils.WriteBadRequestResponse(w, "URL is required")
		return
	}

	if !scraper.IsSocialURL(req.URL) {
		utils.WriteBadRequestResponse(w, "Only Instagram URLs are supported")
		return
	}

	result := h.scraper.ScrapeSocial(r.Context(), req.URL)
	utils.WriteSuccessResponse(w, result)
}
