package handler

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"stash-backend/pkg/ai"
	"stash-backend/pkg/config"
	"stash-backend/pkg/database"
	"stash-backend/pkg/handlers"
	customMiddleware "stash-backend/pkg/middleware"
	"stash-backend/pkg/pipeline"
	"stash-backend/pkg/scraper"
	"stash-backend/pkg/storage"
	"stash-backend/pkg/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Handler 是Vercel函数的入口点。
// 单体路由模式：所有API端点集中在一个Chi路由器中管理。
func Handler(w http.ResponseWriter, r *http.Request) {
	router, err := getRouter()
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Configuration error: "+err.Error())
		return
	}
	router.ServeHTTP(w, r)
}

// Cached router (initialized once per cold start, reused across warm invocations)
var (
	cachedRouter *chi.Mux
	routerErr    error
	routerOnce   sync.Once
)

// getRouter 构建并缓存完整的应用（配置、存储、管线、路由）
func getRouter() (*chi.Mux, error) {
	routerOnce.Do(func() {
		cfg := config.GetCached()

		if err := cfg.Validate(); err != nil {
			routerErr = err
			return
		}

		db := database.GetCachedStore(database.StoreConfig{
			PostgresDSN: cfg.PostgresDSN,
			SupabaseURL: cfg.SupabaseURL,
			SupabaseKey: cfg.SupabaseKey,
			Debug:       cfg.Debug,
		})

		blobs, err := storage.NewBlobStore(cfg)
		if err != nil {
			routerErr = err
			return
		}

		// 组装摄取管线（依赖全部显式注入）
		aiClient := ai.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.VisionModel)
		extractor := ai.NewExtractor(aiClient)
		sc := scraper.NewScraper()
		p := pipeline.NewPipeline(db, blobs, extractor, sc)

		router := chi.NewRouter()
		setupMiddleware(router, cfg)
		setupRoutes(router, cfg, db, p, sc)
		cachedRouter = router
	})
	return cachedRouter, routerErr
}

// setupMiddleware 设置全局中间件
func setupMiddleware(router *chi.Mux, cfg *config.Config) {
	// 基础中间件
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	// Normalize path and restore scheme/host before logging and routing
	router.Use(customMiddleware.Normalize())
	router.Use(customMiddleware.Logger(cfg))
	router.Use(customMiddleware.Recovery(cfg))

	// CORS中间件
	router.Use(customMiddleware.CORS(cfg))

	// 超时中间件（Vercel函数有时间限制）
	router.Use(middleware.Timeout(25 * time.Second)) // 留5秒缓冲

	// 压缩中间件
	router.Use(middleware.Compress(5))

	// 请求体大小限制（截图base64可能较大）
	router.Use(customMiddleware.MaxBodySize(15 << 20)) // 15MB

	// 开发环境额外中间件
	if cfg.IsDevelopment() {
		router.Use(middleware.Heartbeat("/ping"))
	}
}

// setupRoutes 设置所有API路由
func setupRoutes(router *chi.Mux, cfg *config.Config, db database.Store, p *pipeline.Pipeline, sc *scraper.Scraper) {
	// 创建处理器
	healthHandler := handlers.NewHealthHandler(cfg, db)
	itemHandler := handlers.NewItemHandler(cfg, db, p)
	analyzeHandler := handlers.NewAnalyzeHandler(cfg, p, sc)
	feedbackHandler := handlers.NewFeedbackHandler(cfg, db)
	featureHandler := handlers.NewFeatureHandler(cfg, db)

	// 公开端点（无需认证）
	router.Get("/", healthHandler.Health)
	router.Get("/health", healthHandler.Health)
	router.Post("/analyze", analyzeHandler.Analyze)
	router.Post("/scrape", analyzeHandler.Scrape)

	// 需要认证的路由
	router.Group(func(r chi.Router) {
		r.Use(customMiddleware.AuthMiddleware(cfg))
		r.Use(customMiddleware.ContentTypeJSON)

		// 内容摄取与条目管理
		r.Post("/process-content", itemHandler.ProcessContent)
		r.Get("/saved-items", itemHandler.ListItems)
		r.Get("/item/{itemId}", itemHandler.GetItem)
		r.Patch("/toggle-completion", itemHandler.ToggleCompletion)
		r.Patch("/update-title", itemHandler.UpdateTitle)
		r.Delete("/delete-item", itemHandler.DeleteItem)
		r.Get("/user-stats", itemHandler.GetUserStats)

		// 社交抓取（为一致性要求认证）
		r.Post("/scrape-social", analyzeHandler.ScrapeSocial)

		// 对象存储
		r.Post("/storage/upload-image", itemHandler.UploadImage)

		// 反馈
		r.Post("/feedback", feedbackHandler.SubmitFeedback)
		r.Get("/feedback", feedbackHandler.ListFeedback)

		// 功能建议与投票
		r.Post("/features", featureHandler.SubmitFeature)
		r.Get("/features", featureHandler.ListFeatures)
		r.Post("/features/vote", featureHandler.Vote)
	})

	// 404处理
	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		utils.WriteNotFoundResponse(w, fmt.Sprintf("Route not found: %s %s", r.Method, r.URL.Path))
	})

	// 405处理
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		utils.WriteErrorResponseWithCode(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED",
			fmt.Sprintf("Method %s not allowed for %s", r.Method, r.URL.Path), "")
	})
}
