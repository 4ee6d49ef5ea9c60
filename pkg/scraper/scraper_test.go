package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"example.com", "https://example.com"},
		{"  example.com/path ", "https://example.com/path"},
		{"https://example.com", "https://example.com"},
		{"http://example.com", "http://example.com"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeURL(tt.in); got != tt.want {
			t.Errorf("NormalizeURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestScrapePrefersOpenGraph(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head>
			<title>Plain Title</title>
			<meta property="og:title" content="OG Title">
			<meta property="og:description" content="OG description here">
			<meta property="og:image" content="https://cdn.example.com/img.png">
			<meta property="og:site_name" content="Example">
		</head><body></body></html>`))
	}))
	defer srv.Close()

	result := NewScraper().Scrape(context.Background(), srv.URL)
	if result.Title != "OG Title" {
		t.Errorf("Title = %q, want OG Title", result.Title)
	}
	if result.Description != "OG description here" {
		t.Errorf("Description = %q", result.Description)
	}
	if result.Image != "https://cdn.example.com/img.png" {
		t.Errorf("Image = %q", result.Image)
	}
	if result.SiteName != "Example" {
		t.Errorf("SiteName = %q", result.SiteName)
	}
}

func TestScrapeFallsBackToTitleTag(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head><title>  Only a title tag  </title></head><body></body></html>`))
	}))
	defer srv.Close()

	result := NewScraper().Scrape(context.Background(), srv.URL)
	if result.Title != "Only a title tag" {
		t.Errorf("Title = %q", result.Title)
	}
}

func TestScrapeTwitterFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head>
			<title>Plain</title>
			<meta name="twitter:title" content="Twitter Title">
			<meta name="twitter:description" content="Twitter description">
		</head><body></body></html>`))
	}))
	defer srv.Close()

	result := NewScraper().Scrape(context.Background(), srv.URL)
	if result.Title != "Twitter Title" {
		t.Errorf("Title = %q", result.Title)
	}
	if result.Description != "Twitter description" {
		t.Errorf("Description = %q", result.Description)
	}
}

func TestScrapeDegradedKeepsRawInput(t *testing.T) {
	// 无协议前缀且不可达：降级结果必须原样保留用户输入
	raw := "this-host-does-not-exist.invalid"

	result := NewScraper().Scrape(context.Background(), raw)
	if result.URL != raw {
		t.Errorf("URL = %q, want raw input %q", result.URL, raw)
	}
	if result.Title != "Saved Link" {
		t.Errorf("Title = %q, want Saved Link", result.Title)
	}
	if !strings.Contains(result.Description, raw) {
		t.Errorf("Description = %q, want raw input included", result.Description)
	}
}

func TestScrapeTruncatesLongMetadata(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head>
			<meta property="og:title" content="` + strings.Repeat("t", 200) + `">
			<meta property="og:description" content="` + strings.Repeat("d", 500) + `">
		</head><body></body></html>`))
	}))
	defer srv.Close()

	result := NewScraper().Scrape(context.Background(), srv.URL)
	if n := len([]rune(result.Title)); n != 100 {
		t.Errorf("title length = %d, want 100", n)
	}
	if n := len([]rune(result.Description)); n != 300 {
		t.Errorf("description length = %d, want 300", n)
	}
}

func TestScrapeErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	result := NewScraper().Scrape(context.Background(), srv.URL)
	if result.Title != "Saved Link" {
		t.Errorf("Title = %q, want degraded result for 403", result.Title)
	}
}

func TestScrapePreviewAlwaysHasDomainAndFavicon(t *testing.T) {
	preview := NewScraper().ScrapePreview(context.Background(), "this-host-does-not-exist.invalid/article")
	if preview.Domain != "this-host-does-not-exist.invalid" {
		t.Errorf("Domain = %q", preview.Domain)
	}
	if !strings.Contains(preview.FaviconURL, "google.com/s2/favicons") {
		t.Errorf("FaviconURL = %q", preview.FaviconURL)
	}
}

func TestScrapePreviewMetadata(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head>
			<meta property="og:title" content="Preview Title">
			<meta name="description" content="Standard description">
		</head><body></body></html>`))
	}))
	defer srv.Close()

	preview := NewScraper().ScrapePreview(context.Background(), srv.URL)
	if preview.Title != "Preview Title" {
		t.Errorf("Title = %q", preview.Title)
	}
	if preview.Description != "Standard description" {
		t.Errorf("Description = %q", preview.Description)
	}
}
