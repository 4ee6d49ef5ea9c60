package storage

import (
	"context"
	"fmt"

	"stash-backend/pkg/config"
)

// BlobStore 对象存储接口：按路径上传并返回公开访问URL
type BlobStore interface {
	// Upload 上传对象，返回公开URL。path 必须带所有者前缀（调用方负责）。
	Upload(ctx context.Context, path string, data []byte, contentType string) (string, error)
}

// NewBlobStore 根据配置选择对象存储实现
func NewBlobStore(cfg *config.Config) (BlobStore, error) {
	switch cfg.StorageBackend {
	case "supabase":
		fmt.Printf("🖼️  Using Supabase Storage (bucket: %s)\n", cfg.StorageBucket)
		return NewSupabaseStorage(cfg.SupabaseURL, cfg.SupabaseKey, cfg.StorageBucket), nil
	case "s3":
		fmt.Printf("🪣  Using S3 storage (bucket: %s, region: %s)\n", cfg.S3Bucket, cfg.S3Region)
		return NewS3Storage(cfg.S3Bucket, cfg.S3Region, cfg.S3AccessKey, cfg.S3SecretKey)
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.StorageBackend)
	}
}
