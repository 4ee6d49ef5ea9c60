package pipeline

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"stash-backend/pkg/ai"
	"stash-backend/pkg/database"
	"stash-backend/pkg/models"
	"stash-backend/pkg/scraper"
)

// fakeAI 返回固定内容或固定错误
type fakeAI struct {
	response string
	err      error
}

func (f *fakeAI) Generate(ctx context.Context, req ai.Request) (ai.Response, error) {
	if f.err != nil {
		return ai.Response{}, f.err
	}
	return ai.Response{Content: f.response, Model: "fake"}, nil
}

// fakeBlobs 记录上传参数
type fakeBlobs struct {
	lastPath        string
	lastContentType string
	lastSize        int
	err             error
}

func (f *fakeBlobs) Upload(ctx context.Context, path string, data []byte, contentType string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.lastPath = path
	f.lastContentType = contentType
	f.lastSize = len(data)
	return "https://cdn.example.com/" + path, nil
}

// failingStore 持久化必定失败
type failingStore struct {
	database.Store
}

func (failingStore) CreateSavedItem(*models.SavedItem) error {
	return errors.New("connection reset")
}

func newTestPipeline(client ai.Client, blobs *fakeBlobs, db database.Store) *Pipeline {
	return NewPipeline(db, blobs, ai.NewExtractor(client), scraper.NewScraper())
}

func TestIngestText(t *testing.T) {
	db := database.NewMemoryStore()
	client := &fakeAI{response: `{"title":"Meeting notes","category":"Work","summary":"Q3 planning notes","tags":["meeting"]}`}
	p := newTestPipeline(client, &fakeBlobs{}, db)

	note := "Q3 planning\n" + strings.Repeat("word ", 420)
	item, err := p.Ingest(context.Background(), "alice@example.com", note, models.ContentTypeText)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if item.Title != "Meeting notes" {
		t.Errorf("Title = %q", item.Title)
	}
	if item.UserEmail != "alice@example.com" {
		t.Errorf("UserEmail = %q", item.UserEmail)
	}
	if item.OriginalContent != note {
		t.Error("OriginalContent not preserved")
	}

	// 422 words -> ceil(422/200) = 3 minutes
	if got := item.ContentMetadata["word_count"]; got != 422 {
		t.Errorf("word_count = %v, want 422", got)
	}
	if got := item.ContentMetadata["read_time_minutes"]; got != 3 {
		t.Errorf("read_time_minutes = %v, want 3", got)
	}

	// 确认已持久化
	stored, err := db.GetSavedItem("alice@example.com", item.ID)
	if err != nil {
		t.Fatalf("item not persisted: %v", err)
	}
	if stored.AICategory != "Work" {
		t.Errorf("AICategory = %q", stored.AICategory)
	}
}

func TestIngestShortTextReadTime(t *testing.T) {
	db := database.NewMemoryStore()
	client := &fakeAI{response: `{"title":"t","category":"Other","summary":"s","tags":[]}`}
	p := newTestPipeline(client, &fakeBlobs{}, db)

	item, err := p.Ingest(context.Background(), "a@b.c", "two words", models.ContentTypeText)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := item.ContentMetadata["read_time_minutes"]; got != 1 {
		t.Errorf("read_time_minutes = %v, want minimum 1", got)
	}
}

func TestIngestExtractionFailureFallsBack(t *testing.T) {
	db := database.NewMemoryStore()
	client := &fakeAI{err: errors.New("model unavailable")}
	p := newTestPipeline(client, &fakeBlobs{}, db)

	item, err := p.Ingest(context.Background(), "alice@example.com", "a note", models.ContentTypeText)
	if err != nil {
		t.Fatalf("extraction failure must not fail ingestion: %v", err)
	}
	if item.Title != "Saved Note" {
		t.Errorf("Title = %q, want fallback Saved Note", item.Title)
	}
	if item.AICategory != "Other" {
		t.Errorf("AICategory = %q, want Other", item.AICategory)
	}

	if _, err := db.GetSavedItem("alice@example.com", item.ID); err != nil {
		t.Errorf("fallback item not persisted: %v", err)
	}
}

func TestIngestImage(t *testing.T) {
	db := database.NewMemoryStore()
	blobs := &fakeBlobs{}
	client := &fakeAI{response: `{"title":"Screenshot","category":"Other","summary":"s","tags":[]}`}
	p := newTestPipeline(client, blobs, db)

	raw := []byte("fake-png-bytes")
	payload := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(raw)

	item, err := p.Ingest(context.Background(), "alice@example.com", payload, models.ContentTypeImage)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.HasPrefix(blobs.lastPath, "alice@example.com/") {
		t.Errorf("upload path = %q, want owner prefix", blobs.lastPath)
	}
	if !strings.HasSuffix(blobs.lastPath, ".jpg") {
		t.Errorf("upload path = %q, want .jpg extension", blobs.lastPath)
	}
	if blobs.lastContentType != "image/jpeg" {
		t.Errorf("content type = %q", blobs.lastContentType)
	}
	if item.OriginalImageURL == "" {
		t.Error("OriginalImageURL not set")
	}
	if got := item.ContentMetadata["size_bytes"]; got != len(raw) {
		t.Errorf("size_bytes = %v, want %d", got, len(raw))
	}
	if item.ContentMetadata["storage_path"] != blobs.lastPath {
		t.Errorf("storage_path = %v", item.ContentMetadata["storage_path"])
	}
}

func TestIngestInvalidImagePayload(t *testing.T) {
	db := database.NewMemoryStore()
	p := newTestPipeline(&fakeAI{}, &fakeBlobs{}, db)

	if _, err := p.Ingest(context.Background(), "a@b.c", "not base64 at all!!!", models.ContentTypeImage); err == nil {
		t.Fatal("expected error for invalid base64")
	}
}

func TestIngestURLDegradedScrape(t *testing.T) {
	db := database.NewMemoryStore()
	client := &fakeAI{err: errors.New("model unavailable")}
	p := newTestPipeline(client, &fakeBlobs{}, db)

	item, err := p.Ingest(context.Background(), "alice@example.com", "this-host-does-not-exist.invalid", models.ContentTypeURL)
	if err != nil {
		t.Fatalf("scrape failure must not fail ingestion: %v", err)
	}
	if item.PreviewData == nil {
		t.Fatal("PreviewData missing")
	}
	if item.PreviewData.Domain != "this-host-does-not-exist.invalid" {
		t.Errorf("Domain = %q", item.PreviewData.Domain)
	}
	if item.ContentMetadata["protocol"] != "https" {
		t.Errorf("protocol = %v", item.ContentMetadata["protocol"])
	}
	// 原始输入原样保留
	if item.OriginalContent != "this-host-does-not-exist.invalid" {
		t.Errorf("OriginalContent = %q", item.OriginalContent)
	}
}

func TestIngestPersistenceFailureIsHard(t *testing.T) {
	client := &fakeAI{response: `{"title":"t","category":"Other","summary":"s","tags":[]}`}
	p := newTestPipeline(client, &fakeBlobs{}, failingStore{})

	if _, err := p.Ingest(context.Background(), "a@b.c", "note", models.ContentTypeText); err == nil {
		t.Fatal("persistence failure must surface as error")
	}
}

func TestUploadImage(t *testing.T) {
	blobs := &fakeBlobs{}
	p := newTestPipeline(&fakeAI{}, blobs, database.NewMemoryStore())

	payload := base64.StdEncoding.EncodeToString([]byte("png-bytes"))
	url, path, size, err := p.UploadImage(context.Background(), "bob@example.com", payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(path, "bob@example.com/") {
		t.Errorf("path = %q", path)
	}
	if !strings.HasSuffix(path, ".png") {
		t.Errorf("path = %q, want default .png", path)
	}
	if size != len("png-bytes") {
		t.Errorf("size = %d", size)
	}
	if !strings.Contains(url, path) {
		t.Errorf("url = %q does not contain path", url)
	}
}
