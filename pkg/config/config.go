package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
)

// Config 应用配置结构
type Config struct {
	// 环境配置
	Environment string
	Port        string

	// 数据库配置
	PostgresDSN string
	SupabaseURL string
	SupabaseKey string

	// JWT配置（与身份提供方共享的签名密钥）
	JWTSecret string

	// AI配置
	OpenAIAPIKey string
	OpenAIModel  string
	VisionModel  string

	// 对象存储配置
	StorageBackend string // "supabase" 或 "s3"
	StorageBucket  string
	S3Bucket       string
	S3Region       string
	S3AccessKey    string
	S3SecretKey    string

	// 管理员配置（允许读取反馈的邮箱列表）
	AdminEmails []string

	// CORS配置
	AllowedOrigins []string

	// 调试配置
	Debug bool
}

// LoadConfig 加载配置（支持本地和Vercel环境）
func LoadConfig() *Config {
	// 根据环境加载对应的 .env 文件
	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "development" // 默认开发环境
	}

	// 按优先级加载环境文件
	switch env {
	case "production":
		loadEnvFile(".env.production")
	default:
		loadEnvFile(".env.local")
	}

	config := &Config{
		// 默认值
		Environment:    getEnvWithDefault("ENVIRONMENT", "development"),
		Port:           getEnvWithDefault("PORT", "3000"),
		JWTSecret:      getEnvWithDefault("JWT_SECRET", "your-secret-key-change-in-production"),
		OpenAIModel:    getEnvWithDefault("OPENAI_MODEL", "gpt-4o-mini"),
		VisionModel:    getEnvWithDefault("VISION_MODEL", "gpt-4o"),
		StorageBackend: getEnvWithDefault("STORAGE_BACKEND", "supabase"),
		StorageBucket:  getEnvWithDefault("STORAGE_BUCKET", "screenshots"),
		Debug:          getEnvBool("DEBUG", false),
	}

	// 数据库配置
	// Trim whitespace to avoid trailing spaces/newlines from env sources
	config.PostgresDSN = strings.TrimSpace(os.Getenv("POSTGRES_DSN"))
	config.SupabaseURL = strings.TrimSpace(os.Getenv("SUPABASE_URL"))
	config.SupabaseKey = strings.TrimSpace(os.Getenv("SUPABASE_SERVICE_KEY"))

	// AI配置
	config.OpenAIAPIKey = strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))

	// S3配置（备选对象存储）
	config.S3Bucket = strings.TrimSpace(os.Getenv("S3_BUCKET"))
	config.S3Region = getEnvWithDefault("S3_REGION", "us-east-1")
	config.S3AccessKey = strings.TrimSpace(os.Getenv("S3_ACCESS_KEY"))
	config.S3SecretKey = strings.TrimSpace(os.Getenv("S3_SECRET_KEY"))

	// 管理员邮箱列表（逗号分隔）
	if admins := os.Getenv("ADMIN_EMAILS"); admins != "" {
		for _, a := range strings.Split(admins, ",") {
			if a = strings.TrimSpace(strings.ToLower(a)); a != "" {
				config.AdminEmails = append(config.AdminEmails, a)
			}
		}
	}

	// CORS配置
	allowedOrigins := getEnvWithDefault("ALLOWED_ORIGINS", "*")
	if allowedOrigins == "*" {
		config.AllowedOrigins = []string{"*"}
	} else {
		config.AllowedOrigins = strings.Split(allowedOrigins, ",")
	}

	// 环境特定配置
	if config.Environment == "production" {
		// 生产环境关闭调试
		config.Debug = false
	}

	return config
}

// Cached config (initialized once per cold start)
var (
	cachedConfig *Config
	configOnce   sync.Once
)

// GetCached returns the process-wide cached Config.
// On serverless (Vercel), it initializes once per cold start and
// reuses it across warm invocations, avoiding per-request parsing.
func GetCached() *Config {
	configOnce.Do(func() {
		cachedConfig = LoadConfig()
	})
	return cachedConfig
}

// Validate 验证配置
func (c *Config) Validate() error {
	// 验证端口
	if c.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	// 验证JWT密钥
	if c.JWTSecret == "" || c.JWTSecret == "your-secret-key-change-in-production" {
		if c.Environment == "production" {
			return fmt.Errorf("JWT_SECRET must be set in production")
		}
		if c.Environment == "development" {
			fmt.Println("⚠️  Using default JWT secret (not recommended for production)")
		}
	}

	// 验证数据库配置
	if c.PostgresDSN != "" {
		// 使用PostgreSQL，无需额外验证
	} else if c.SupabaseURL != "" && c.SupabaseKey != "" {
		// 使用Supabase，无需额外验证
	} else {
		return fmt.Errorf("数据库配置不完整：请配置 POSTGRES_DSN 或 SUPABASE_URL+SUPABASE_SERVICE_KEY")
	}

	// 验证对象存储配置
	switch c.StorageBackend {
	case "supabase":
		if c.SupabaseURL == "" || c.SupabaseKey == "" {
			return fmt.Errorf("supabase storage backend requires SUPABASE_URL and SUPABASE_SERVICE_KEY")
		}
	case "s3":
		if c.S3Bucket == "" {
			return fmt.Errorf("s3 storage backend requires S3_BUCKET")
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND: %s", c.StorageBackend)
	}

	// AI未配置时降级为确定性占位内容，仅提示
	if c.OpenAIAPIKey == "" {
		fmt.Println("⚠️  OPENAI_API_KEY not set: content analysis will use fallback metadata")
	}

	return nil
}

// IsProduction 检查是否为生产环境
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// IsDevelopment 检查是否为开发环境
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsAdmin 检查邮箱是否在管理员列表中
func (c *Config) IsAdmin(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	for _, a := range c.AdminEmails {
		if a == email {
			return true
		}
	}
	return false
}

// 辅助函数

// getEnvWithDefault 获取环境变量，如果不存在则使用默认值
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool 获取布尔类型的环境变量
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// loadEnvFile 加载 .env 文件到环境变量
func loadEnvFile(filename string) {
	// 检查文件是否存在
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return // 文件不存在，静默返回
	}

	file, err := os.Open(filename)
	if err != nil {
		return // 无法打开文件，静默返回
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// 跳过空行和注释行
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// 解析 KEY=VALUE 格式
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// 移除值两端的引号（如果有）
		if len(value) >= 2 {
			if (strings.HasPrefix(value, "\"") && strings.HasSuffix(value, "\"")) ||
				(strings.HasPrefix(value, "'") && strings.HasSuffix(value, "'")) {
				value = value[1 : len(value)-1]
			}
		}

		// 只有当环境变量不存在时才设置
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
