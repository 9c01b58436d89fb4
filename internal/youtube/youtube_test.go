package youtube

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestExtractVideoID(t *testing.T) {
	id, err := ExtractVideoID("https://www.youtube.com/watch?v=dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if id != "dQw4w9WgXcQ" {
		t.Errorf("Expected 'dQw4w9WgXcQ', got '%s'", id)
	}
}

func TestExtractVideoID_ShortURL(t *testing.T) {
	id, err := ExtractVideoID("https://youtu.be/dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if id != "dQw4w9WgXcQ" {
		t.Errorf("Expected 'dQw4w9WgXcQ', got '%s'", id)
	}
}

func TestExtractVideoID_StripsQueryParams(t *testing.T) {
	id, err := ExtractVideoID("https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=42s")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if id != "dQw4w9WgXcQ" {
		t.Errorf("Expected 'dQw4w9WgXcQ', got '%s'", id)
	}
}

func TestExtractVideoID_Invalid(t *testing.T) {
	_, err := ExtractVideoID("https://example.com/not-a-video")
	if !errors.Is(err, ErrInvalidURL) {
		t.Errorf("Expected ErrInvalidURL, got %v", err)
	}
}

func TestMetadata(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("key") != "test-key" {
			t.Errorf("Expected API key 'test-key', got '%s'", r.URL.Query().Get("key"))
		}
		if r.URL.Query().Get("id") != "abc123" {
			t.Errorf("Expected video ID 'abc123', got '%s'", r.URL.Query().Get("id"))
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"items": [{
				"snippet": {
					"title": "Test Video",
					"description": "A test",
					"tags": ["go", "testing"]
				},
				"contentDetails": {"duration": "PT4M13S"},
				"statistics": {"viewCount": "1000", "likeCount": "42"}
			}]
		}`)
	}))
	defer server.Close()

	client := NewClient("test-key")
	client.apiBaseURL = server.URL

	metadata, err := client.Metadata(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if metadata.Title != "Test Video" {
		t.Errorf("Expected title 'Test Video', got '%s'", metadata.Title)
	}

	if metadata.Duration != "PT4M13S" {
		t.Errorf("Expected duration 'PT4M13S', got '%s'", metadata.Duration)
	}

	if len(metadata.Tags) != 2 {
		t.Errorf("Expected 2 tags, got %d", len(metadata.Tags))
	}

	if metadata.Stats["viewCount"] != "1000" {
		t.Errorf("Expected viewCount '1000', got '%s'", metadata.Stats["viewCount"])
	}
}

func TestMetadata_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"items": []}`)
	}))
	defer server.Close()

	client := NewClient("test-key")
	client.apiBaseURL = server.URL

	_, err := client.Metadata(context.Background(), "missing")
	if !errors.Is(err, ErrVideoNotFound) {
		t.Errorf("Expected ErrVideoNotFound, got %v", err)
	}
}

func TestMetadata_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"error": {"message": "quota exceeded"}}`)
	}))
	defer server.Close()

	client := NewClient("test-key")
	client.apiBaseURL = server.URL

	_, err := client.Metadata(context.Background(), "abc123")

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected APIError, got %v", err)
	}

	if apiErr.StatusCode != http.StatusForbidden {
		t.Errorf("Expected status 403, got %d", apiErr.StatusCode)
	}
}

func TestCaptions(t *testing.T) {
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/watch", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("v") != "abc123" {
			t.Errorf("Expected video ID 'abc123', got '%s'", r.URL.Query().Get("v"))
		}
		page := fmt.Sprintf(`<html>var config = {"captionTracks":[{"baseUrl":"%s/timedtext?v=abc123","languageCode":"en"}],"other":1};</html>`, server.URL)
		fmt.Fprint(w, page)
	})

	mux.HandleFunc("/timedtext", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("fmt") != "json3" {
			t.Errorf("Expected fmt 'json3', got '%s'", r.URL.Query().Get("fmt"))
		}
		fmt.Fprint(w, `{
			"events": [
				{"tStartMs": 0, "dDurationMs": 2000, "segs": [{"utf8": "Hello"}, {"utf8": " world"}]},
				{"tStartMs": 2000, "dDurationMs": 1500, "segs": [{"utf8": "\n"}]},
				{"tStartMs": 3500, "dDurationMs": 2500, "segs": [{"utf8": "Second segment"}]}
			]
		}`)
	})

	client := NewClient("")
	client.watchBase = server.URL

	captions, err := client.Captions(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if captions.Captions != "Hello world Second segment" {
		t.Errorf("Unexpected combined captions: '%s'", captions.Captions)
	}

	// Newline-only event is dropped
	if len(captions.Segments) != 2 {
		t.Fatalf("Expected 2 segments, got %d", len(captions.Segments))
	}

	if captions.Segments[0].Start != 0 || captions.Segments[0].Duration != 2 {
		t.Errorf("Unexpected first segment timing: %+v", captions.Segments[0])
	}

	if captions.Segments[1].Text != "Second segment" {
		t.Errorf("Expected 'Second segment', got '%s'", captions.Segments[1].Text)
	}
}

func TestCaptions_NoTracks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html>no captions here</html>`)
	}))
	defer server.Close()

	client := NewClient("")
	client.watchBase = server.URL

	_, err := client.Captions(context.Background(), "abc123")
	if !errors.Is(err, ErrNoCaptions) {
		t.Errorf("Expected ErrNoCaptions, got %v", err)
	}
}

func TestPickCaptionTrack(t *testing.T) {
	tracks := []captionTrack{
		{BaseURL: "fr", LanguageCode: "fr"},
		{BaseURL: "en-asr", LanguageCode: "en", Kind: "asr"},
		{BaseURL: "en-manual", LanguageCode: "en"},
	}

	picked := pickCaptionTrack(tracks)
	if picked.BaseURL != "en-manual" {
		t.Errorf("Expected manual English track, got '%s'", picked.BaseURL)
	}
}

func TestPickCaptionTrack_ASRFallback(t *testing.T) {
	tracks := []captionTrack{
		{BaseURL: "fr", LanguageCode: "fr"},
		{BaseURL: "en-asr", LanguageCode: "en", Kind: "asr"},
	}

	picked := pickCaptionTrack(tracks)
	if picked.BaseURL != "en-asr" {
		t.Errorf("Expected auto-generated English track, got '%s'", picked.BaseURL)
	}
}

func TestPickCaptionTrack_FirstFallback(t *testing.T) {
	tracks := []captionTrack{
		{BaseURL: "fr", LanguageCode: "fr"},
		{BaseURL: "de", LanguageCode: "de"},
	}

	picked := pickCaptionTrack(tracks)
	if picked.BaseURL != "fr" {
		t.Errorf("Expected first track, got '%s'", picked.BaseURL)
	}
}
