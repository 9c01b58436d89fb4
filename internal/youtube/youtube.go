package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"summary-server/internal/types"
)

const (
	dataAPIBaseURL = "https://www.googleapis.com/youtube/v3"

	videosTemplate = "%s/videos?part=snippet,contentDetails,statistics&id=%s&key=%s"
	watchTemplate  = "https://www.youtube.com/watch?v=%s"

	// Desktop UA so the watch page ships the player config with caption tracks
	watchUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
)

var (
	videoIDPattern      = regexp.MustCompile(`(?:v=|youtu\.be/)([^&]+)`)
	captionTracksRegexp = regexp.MustCompile(`"captionTracks":(\[.*?\])`)
)

var (
	// ErrInvalidURL is returned when no video ID can be extracted from a URL
	ErrInvalidURL = errors.New("invalid YouTube URL")

	// ErrVideoNotFound is returned when the Data API has no item for the ID
	ErrVideoNotFound = errors.New("video not found")

	// ErrNoCaptions is returned when the watch page carries no caption tracks
	ErrNoCaptions = errors.New("no caption tracks available")
)

// APIError represents a non-OK response from the YouTube Data API
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("youtube data api returned %d: %s", e.StatusCode, e.Body)
}

// ExtractVideoID extracts the video ID from a YouTube URL
func ExtractVideoID(videoURL string) (string, error) {
	m := videoIDPattern.FindStringSubmatch(videoURL)
	if m == nil {
		return "", ErrInvalidURL
	}
	return m[1], nil
}

// Client queries the YouTube Data API and the public watch page
type Client struct {
	apiKey     string
	apiBaseURL string
	watchBase  string
	httpClient *http.Client
}

// NewClient creates a YouTube client using the given Data API key
func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:     apiKey,
		apiBaseURL: dataAPIBaseURL,
		watchBase:  "https://www.youtube.com",
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Data API response shapes (only the fields the service forwards)
type videosResponse struct {
	Items []videoItem `json:"items"`
}

type videoItem struct {
	Snippet struct {
		Title       string   `json:"title"`
		Description string   `json:"description"`
		Tags        []string `json:"tags"`
	} `json:"snippet"`
	ContentDetails struct {
		Duration string `json:"duration"`
	} `json:"contentDetails"`
	Statistics map[string]string `json:"statistics"`
}

// Metadata fetches title, description, tags, duration and stats for a video
func (c *Client) Metadata(ctx context.Context, videoID string) (*types.VideoMetadata, error) {
	path := fmt.Sprintf(videosTemplate, c.apiBaseURL, url.QueryEscape(videoID), c.apiKey)

	var parsed videosResponse
	if err := c.getJSON(ctx, path, &parsed); err != nil {
		return nil, err
	}

	if len(parsed.Items) == 0 {
		return nil, ErrVideoNotFound
	}

	item := parsed.Items[0]
	stats := item.Statistics
	if stats == nil {
		stats = map[string]string{}
	}
	tags := item.Snippet.Tags
	if tags == nil {
		tags = []string{}
	}

	return &types.VideoMetadata{
		Title:       item.Snippet.Title,
		Description: item.Snippet.Description,
		Tags:        tags,
		Duration:    item.ContentDetails.Duration,
		Stats:       stats,
	}, nil
}

// captionTrack is one entry of the watch page's captionTracks array
type captionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind"` // "asr" for auto-generated tracks
}

// json3 transcript format served by the timedtext endpoint
type json3Transcript struct {
	Events []struct {
		StartMs    int64 `json:"tStartMs"`
		DurationMs int64 `json:"dDurationMs"`
		Segs       []struct {
			UTF8 string `json:"utf8"`
		} `json:"segs"`
	} `json:"events"`
}

// Captions fetches the video's caption track and returns the combined text
// with timed segments. Manually authored tracks are preferred over
// auto-generated ones, English over other languages.
func (c *Client) Captions(ctx context.Context, videoID string) (*types.CaptionsResponse, error) {
	track, err := c.findCaptionTrack(ctx, videoID)
	if err != nil {
		return nil, err
	}

	trackURL := track.BaseURL
	if strings.Contains(trackURL, "?") {
		trackURL += "&fmt=json3"
	} else {
		trackURL += "?fmt=json3"
	}

	var transcript json3Transcript
	if err := c.getJSON(ctx, trackURL, &transcript); err != nil {
		return nil, fmt.Errorf("failed to fetch caption track: %w", err)
	}

	var segments []types.CaptionSegment
	var texts []string
	for _, event := range transcript.Events {
		var sb strings.Builder
		for _, seg := range event.Segs {
			sb.WriteString(seg.UTF8)
		}
		text := strings.TrimSpace(strings.ReplaceAll(sb.String(), "\n", " "))
		if text == "" {
			continue
		}
		segments = append(segments, types.CaptionSegment{
			Text:     text,
			Start:    float64(event.StartMs) / 1000,
			Duration: float64(event.DurationMs) / 1000,
		})
		texts = append(texts, text)
	}

	if len(segments) == 0 {
		return nil, ErrNoCaptions
	}

	return &types.CaptionsResponse{
		Captions: strings.Join(texts, " "),
		Segments: segments,
	}, nil
}

// findCaptionTrack scrapes the watch page for the captionTracks player config
func (c *Client) findCaptionTrack(ctx context.Context, videoID string) (*captionTrack, error) {
	watchURL := fmt.Sprintf(watchTemplate, videoID)
	if c.watchBase != "https://www.youtube.com" {
		watchURL = fmt.Sprintf("%s/watch?v=%s", c.watchBase, videoID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, watchURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", watchUserAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch watch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: "watch page unavailable"}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	m := captionTracksRegexp.FindSubmatch(body)
	if m == nil {
		return nil, ErrNoCaptions
	}

	var tracks []captionTrack
	if err := json.Unmarshal(m[1], &tracks); err != nil {
		logrus.WithError(err).WithField("videoId", videoID).Warn("Failed to parse captionTracks JSON")
		return nil, ErrNoCaptions
	}
	if len(tracks) == 0 {
		return nil, ErrNoCaptions
	}

	return pickCaptionTrack(tracks), nil
}

// pickCaptionTrack prefers manual English, then auto-generated English,
// then whatever track comes first
func pickCaptionTrack(tracks []captionTrack) *captionTrack {
	var asrEnglish *captionTrack
	for i := range tracks {
		track := &tracks[i]
		if !strings.HasPrefix(track.LanguageCode, "en") {
			continue
		}
		if track.Kind != "asr" {
			return track
		}
		if asrEnglish == nil {
			asrEnglish = track
		}
	}
	if asrEnglish != nil {
		return asrEnglish
	}
	return &tracks[0]
}

// getJSON performs a GET and decodes the JSON response into target
func (c *Client) getJSON(ctx context.Context, path string, target interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
