package assemblyai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"summary-server/internal/types"
)

const defaultBaseURL = "https://api.assemblyai.com/v2"

// DefaultPollInterval is the delay between transcript status checks
const DefaultPollInterval = 5 * time.Second

// Transcript statuses reported by the API
const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusError      = "error"
)

// ErrTranscriptionFailed is returned when the API reports an errored transcript
var ErrTranscriptionFailed = errors.New("transcription failed")

// Client talks to the AssemblyAI v2 REST API
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates an AssemblyAI client authenticated with the given key
func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		// Uploads can carry hours of audio, keep the client patient
		httpClient: &http.Client{Timeout: 10 * time.Minute},
	}
}

// Transcript represents the transcript resource returned by the API
type Transcript struct {
	ID         string            `json:"id"`
	Status     string            `json:"status"`
	Text       string            `json:"text"`
	Error      string            `json:"error,omitempty"`
	Utterances []types.Utterance `json:"utterances,omitempty"`
}

// uploadResponse is the body of POST /upload
type uploadResponse struct {
	UploadURL string `json:"upload_url"`
}

// transcriptRequest is the body of POST /transcript
type transcriptRequest struct {
	AudioURL      string `json:"audio_url"`
	SpeakerLabels bool   `json:"speaker_labels"`
}

// paragraphsResponse is the body of GET /transcript/{id}/paragraphs
type paragraphsResponse struct {
	Paragraphs []types.Paragraph `json:"paragraphs"`
}

// Upload streams an audio file to AssemblyAI and returns the upload URL
func (c *Client) Upload(ctx context.Context, audio io.Reader) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload", audio)
	if err != nil {
		return "", err
	}
	req.Header.Set("authorization", c.apiKey)
	req.Header.Set("Content-Type", "application/octet-stream")

	var parsed uploadResponse
	if err := c.do(req, &parsed); err != nil {
		return "", fmt.Errorf("upload failed: %w", err)
	}
	if parsed.UploadURL == "" {
		return "", errors.New("upload response missing upload_url")
	}
	return parsed.UploadURL, nil
}

// Submit requests a transcription with speaker labels for the uploaded audio
func (c *Client) Submit(ctx context.Context, audioURL string) (string, error) {
	body, err := json.Marshal(transcriptRequest{
		AudioURL:      audioURL,
		SpeakerLabels: true,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transcript", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("authorization", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	var parsed Transcript
	if err := c.do(req, &parsed); err != nil {
		return "", fmt.Errorf("transcription request failed: %w", err)
	}
	if parsed.ID == "" {
		return "", errors.New("transcript response missing id")
	}
	return parsed.ID, nil
}

// Get fetches the current state of a transcript
func (c *Client) Get(ctx context.Context, transcriptID string) (*Transcript, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/transcript/"+transcriptID, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("authorization", c.apiKey)

	var parsed Transcript
	if err := c.do(req, &parsed); err != nil {
		return nil, err
	}
	return &parsed, nil
}

// Paragraphs fetches the paragraph breakdown of a completed transcript.
// The endpoint only exists once the transcript is completed, so failures
// here are soft.
func (c *Client) Paragraphs(ctx context.Context, transcriptID string) []types.Paragraph {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/transcript/"+transcriptID+"/paragraphs", nil)
	if err != nil {
		return nil
	}
	req.Header.Set("authorization", c.apiKey)

	var parsed paragraphsResponse
	if err := c.do(req, &parsed); err != nil {
		logrus.WithError(err).WithField("transcriptId", transcriptID).Warn("Failed to fetch transcript paragraphs")
		return nil
	}
	return parsed.Paragraphs
}

// Poll blocks until the transcript completes, errors out, or ctx is done
func (c *Client) Poll(ctx context.Context, transcriptID string, interval time.Duration) (*Transcript, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		transcript, err := c.Get(ctx, transcriptID)
		if err != nil {
			return nil, err
		}

		switch transcript.Status {
		case StatusCompleted:
			return transcript, nil
		case StatusError:
			logrus.WithFields(logrus.Fields{
				"transcriptId": transcriptID,
				"apiError":     transcript.Error,
			}).Error("AssemblyAI reported transcription error")
			return nil, ErrTranscriptionFailed
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// do executes the request and decodes a JSON body into target
func (c *Client) do(req *http.Request, target interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("assemblyai returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
