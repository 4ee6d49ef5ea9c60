package database

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"stash-backend/pkg/models"
)

// ErrNotFound 所有权过滤后未命中任何行。
// 对外统一表述为 "not found or access denied"，不区分记录不存在和属于他人。
var ErrNotFound = errors.New("record not found")

// Store 定义数据访问接口
// 所有 SavedItem 读写都必须带 ownerEmail 谓词（行级隔离）
type Store interface {
	// Saved items
	CreateSavedItem(item *models.SavedItem) error
	ListSavedItems(ownerEmail, category string) ([]models.SavedItem, error)
	GetSavedItem(ownerEmail, id string) (*models.SavedItem, error)
	// UpdateSavedItem performs a partial update using the provided patch map.
	// Allowed keys: "title","is_completed","view_count","last_viewed_at","updated_at".
	// 所有权在更新语句本身中复查，而不只是读取时。
	UpdateSavedItem(ownerEmail, id string, patch map[string]interface{}) (*models.SavedItem, error)
	DeleteSavedItem(ownerEmail, id string) (*models.SavedItem, error)
	// IncrementItemViews 详情页访问的副作用：view_count+1 并刷新 last_viewed_at
	IncrementItemViews(ownerEmail, id string) (*models.SavedItem, error)

	// Feedback
	CreateFeedback(entry *models.FeedbackEntry) error
	ListFeedback() ([]models.FeedbackEntry, error)

	// Feature suggestions & votes
	CreateFeatureSuggestion(f *models.FeatureSuggestion) error
	ListFeatureSuggestions() ([]models.FeatureSuggestion, error)
	GetFeatureSuggestion(id string) (*models.FeatureSuggestion, error)
	GetFeatureVote(ownerEmail, featureID string) (*models.FeatureVote, error)
	CreateFeatureVote(v *models.FeatureVote) error
	UpdateFeatureVote(v *models.FeatureVote) error
	DeleteFeatureVote(ownerEmail, featureID string) error
	// AdjustFeatureVotes 调整建议的票数。PostgreSQL 用单条原子 UPDATE；
	// Supabase 先尝试 RPC，失败后退回读-改-写（钳制在0以上）。
	AdjustFeatureVotes(featureID string, delta int) error

	// 健康检查
	HealthCheck() error

	// 关闭连接
	Close() error
}

// StoreConfig 数据库配置
type StoreConfig struct {
	PostgresDSN string
	SupabaseURL string
	SupabaseKey string
	Debug       bool
}

// NewStore 根据环境与配置选择数据库实现
func NewStore(config StoreConfig) Store {
	// 是否在 Vercel 生产环境
	isVercelProduction := isVercelEnvironment()

	if isVercelProduction {
		fmt.Printf("🧭 Detected Vercel production environment\n")

		// Vercel 优先使用 Supabase（避免 IPv6）
		if config.SupabaseURL != "" && config.SupabaseKey != "" {
			fmt.Printf("🚀  Using Supabase REST API (Vercel optimized)\n")
			return NewSupabaseStore(config.SupabaseURL, config.SupabaseKey)
		}

		// 次选 PostgreSQL
		if config.PostgresDSN != "" {
			fmt.Printf("🌐  Using PostgreSQL in Vercel (may have IPv6 issues)\n")
			return NewPostgresStore(config.PostgresDSN)
		}

		// 未配置受支持的数据库，直接失败
		panic("No valid database configured for Vercel environment. Please set SUPABASE_URL+SUPABASE_SERVICE_KEY or POSTGRES_DSN")
	}

	// 非 Vercel 环境：PostgreSQL > Supabase
	if config.PostgresDSN != "" {
		fmt.Printf("🗄️  Using PostgreSQL database\n")
		return NewPostgresStore(config.PostgresDSN)
	}

	if config.SupabaseURL != "" && config.SupabaseKey != "" {
		fmt.Printf("🧰  Using Supabase REST API\n")
		return NewSupabaseStore(config.SupabaseURL, config.SupabaseKey)
	}

	panic("No valid database configuration found. Please configure POSTGRES_DSN or SUPABASE_URL+SUPABASE_SERVICE_KEY")
}

// Cached store (initialized once per cold start, reused across warm invocations)
var (
	cachedStore Store
	storeOnce   sync.Once
)

// GetCachedStore 返回进程级缓存的 Store，避免每个请求重建连接
func GetCachedStore(config StoreConfig) Store {
	storeOnce.Do(func() {
		cachedStore = NewStore(config)
	})
	return cachedStore
}

// isVercelEnvironment 内部检查 Vercel 环境
func isVercelEnvironment() bool {
	vercelEnv := os.Getenv("VERCEL_ENV")
	vercelURL := os.Getenv("VERCEL_URL")
	awsLambda := os.Getenv("AWS_LAMBDA_FUNCTION_NAME")
	return vercelEnv != "" || vercelURL != "" || awsLambda != ""
}
