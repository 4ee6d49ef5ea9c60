package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"stash-backend/pkg/models"
)

// fakeClient 返回固定内容或固定错误
type fakeClient struct {
	response string
	err      error
	calls    int
	lastReq  Request
}

func (f *fakeClient) Generate(ctx context.Context, req Request) (Response, error) {
	f.calls++
	f.lastReq = req
	if f.err != nil {
		return Response{}, f.err
	}
	return Response{Content: f.response, Model: "fake"}, nil
}

func TestExtractText(t *testing.T) {
	client := &fakeClient{
		response: `{"title":"Grocery list","category":"Food","summary":"Milk, eggs, bread","tags":["groceries"]}`,
	}
	e := NewExtractor(client)

	got, err := e.Extract(context.Background(), TextContent{Text: "milk\neggs\nbread"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Title != "Grocery list" {
		t.Errorf("Title = %q", got.Title)
	}
	if got.Category != "Food" {
		t.Errorf("Category = %q", got.Category)
	}
	if client.calls != 1 {
		t.Errorf("model calls = %d, want 1", client.calls)
	}
}

func TestExtractImageUsesVisionRequest(t *testing.T) {
	client := &fakeClient{
		response: `{"title":"Receipt","category":"Finance","summary":"Dinner receipt","tags":["receipt"],"extracted_info":{"price":"$42.50"}}`,
	}
	e := NewExtractor(client)

	got, err := e.Extract(context.Background(), ImageContent{ImageURL: "https://cdn.example.com/u/shot.png"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.lastReq.ImageURL != "https://cdn.example.com/u/shot.png" {
		t.Errorf("request ImageURL = %q", client.lastReq.ImageURL)
	}
	if got.ExtractedInfo == nil || got.ExtractedInfo.Price == nil || *got.ExtractedInfo.Price != "$42.50" {
		t.Errorf("ExtractedInfo = %+v", got.ExtractedInfo)
	}
}

func TestExtractClampsOutput(t *testing.T) {
	longTitle := strings.Repeat("标题x", 40) // 120 runes
	client := &fakeClient{
		response: fmt.Sprintf(`{"title":%q,"category":"Other","summary":%q,"tags":["a","b","c","d","e","f","g"]}`,
			longTitle, strings.Repeat("s", 500)),
	}
	e := NewExtractor(client)

	got, err := e.Extract(context.Background(), TextContent{Text: "x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := len([]rune(got.Title)); n != 60 {
		t.Errorf("title length = %d runes, want 60", n)
	}
	if n := len([]rune(got.Summary)); n != 300 {
		t.Errorf("summary length = %d runes, want 300", n)
	}
	if len(got.Tags) != 5 {
		t.Errorf("tags = %d, want 5", len(got.Tags))
	}
}

func TestExtractMissingFields(t *testing.T) {
	client := &fakeClient{response: `{"title":"only a title"}`}
	e := NewExtractor(client)

	_, err := e.Extract(context.Background(), TextContent{Text: "x"})
	if !errors.Is(err, ErrInvalidExtraction) {
		t.Fatalf("error = %v, want ErrInvalidExtraction", err)
	}
}

func TestExtractPropagatesClientError(t *testing.T) {
	client := &fakeClient{err: errors.New("connection refused")}
	e := NewExtractor(client)

	if _, err := e.Extract(context.Background(), TextContent{Text: "x"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestExtractSocialSkipsModel(t *testing.T) {
	client := &fakeClient{err: errors.New("model must not be called")}
	e := NewExtractor(client)

	got, err := e.Extract(context.Background(), URLContent{
		URL: "https://instagram.com/reel/abc123",
		Preview: &models.LinkPreview{
			Title:       "Amazing pasta carbonara recipe • Instagram photos and videos",
			Description: "Quick weeknight pasta",
			PostType:    "reel",
			Author:      "chefmarco",
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.calls != 0 {
		t.Errorf("model calls = %d, want 0 for social posts", client.calls)
	}
	if got.Title != "Amazing pasta carbonara recipe" {
		t.Errorf("Title = %q, boilerplate not stripped", got.Title)
	}
	if got.Category != "Social Media" {
		t.Errorf("Category = %q", got.Category)
	}
}

func TestExtractSocialSynthesizesShortTitle(t *testing.T) {
	client := &fakeClient{err: errors.New("model must not be called")}
	e := NewExtractor(client)

	got, err := e.Extract(context.Background(), URLContent{
		URL: "https://instagram.com/reel/abc123",
		Preview: &models.LinkPreview{
			Title:    "Instagram",
			PostType: "reel",
			Author:   "chefmarco",
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Title != "Instagram Reel by @chefmarco" {
		t.Errorf("Title = %q", got.Title)
	}
}

func TestFallback(t *testing.T) {
	tests := []struct {
		name      string
		content   Content
		wantTitle string
	}{
		{"image", ImageContent{ImageURL: "x"}, "Saved Screenshot"},
		{"url without preview", URLContent{URL: "example.com"}, "Saved Link"},
		{"url with preview title", URLContent{URL: "example.com", Preview: &models.LinkPreview{Title: "Example Site"}}, "Example Site"},
		{"text", TextContent{Text: "x"}, "Saved Note"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Fallback(tt.content)
			if got.Title != tt.wantTitle {
				t.Errorf("Title = %q, want %q", got.Title, tt.wantTitle)
			}
			if got.Category != "Other" {
				t.Errorf("Category = %q, want Other", got.Category)
			}
			if got.Summary == "" {
				t.Error("Summary is empty")
			}
		})
	}
}

func TestFallbackURLKeepsRawInput(t *testing.T) {
	got := Fallback(URLContent{URL: "example.com"})
	if !strings.Contains(got.Summary, "example.com") {
		t.Errorf("Summary = %q, want raw url included", got.Summary)
	}
}
