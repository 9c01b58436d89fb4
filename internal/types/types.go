package types

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// VideoURLRequest represents a request carrying a raw YouTube URL
type VideoURLRequest struct {
	VideoURL string `json:"video_url"`
}

// VideoIDResponse represents the extracted video ID
type VideoIDResponse struct {
	VideoID string `json:"video_id"`
}

// TranscribeRequest represents a transcription request
type TranscribeRequest struct {
	VideoID string `json:"video_id"`
}

// Response represents an API response
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	File    string `json:"file,omitempty"`
}

// VideoMetadata represents metadata fetched from the YouTube Data API
type VideoMetadata struct {
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Tags        []string          `json:"tags"`
	Duration    string            `json:"duration"`
	Stats       map[string]string `json:"stats"`
}

// CaptionSegment represents a single timed caption segment
type CaptionSegment struct {
	Text     string  `json:"text"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
}

// CaptionsResponse represents the caption fallback payload
type CaptionsResponse struct {
	Captions string           `json:"captions"`
	Segments []CaptionSegment `json:"segments"`
}

// Utterance represents a speaker-labelled span of the transcript
type Utterance struct {
	Speaker    string  `json:"speaker"`
	Text       string  `json:"text"`
	Start      int64   `json:"start"`
	End        int64   `json:"end"`
	Confidence float64 `json:"confidence"`
}

// Paragraph represents a paragraph of the transcript
type Paragraph struct {
	Text  string `json:"text"`
	Start int64  `json:"start"`
	End   int64  `json:"end"`
}

// TranscriptResult represents the final transcription payload
type TranscriptResult struct {
	Transcript    string      `json:"transcript"`
	Paragraphs    []Paragraph `json:"paragraphs"`
	SpeakerLabels []Utterance `json:"speaker_labels"`
}

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type    string            `json:"type"`
	JobID   string            `json:"jobId,omitempty"`
	Percent float64           `json:"percent,omitempty"`
	File    string            `json:"file,omitempty"`
	Message string            `json:"message,omitempty"`
	Audio   []string          `json:"audio,omitempty"`
	Queue   []JobStatus       `json:"queue,omitempty"`
	Result  *TranscriptResult `json:"result,omitempty"`
}

// WSClientMessage represents a message from the WebSocket client
type WSClientMessage struct {
	Action string `json:"action"`
	JobID  string `json:"jobId,omitempty"`
}

// WSClient represents a WebSocket client connection
type WSClient struct {
	Conn *websocket.Conn
	Mu   sync.Mutex
}

// TranscribeJob represents a queued transcription task
type TranscribeJob struct {
	ID            string             `json:"id"`
	VideoID       string             `json:"videoId"`
	CreatedAt     time.Time          `json:"createdAt"`
	CancelContext context.Context    `json:"-"`
	CancelFunc    context.CancelFunc `json:"-"`
}

// WatchURL returns the canonical short URL for the job's video
func (j *TranscribeJob) WatchURL() string {
	return "https://youtu.be/" + j.VideoID
}

// JobStatus represents the status of a transcription job
type JobStatus struct {
	Job         *TranscribeJob    `json:"job"`
	Status      string            `json:"status"`                // "queued", "processing", "downloading", "converting", "uploading", "transcribing", "completed", "error", "cancelled"
	Progress    string            `json:"progress"`              // Current progress message
	Error       string            `json:"error,omitempty"`       // Error message if any
	CompletedAt *time.Time        `json:"completedAt,omitempty"` // Completion timestamp
	AudioFile   string            `json:"audioFile,omitempty"`   // Downloaded audio filename
	Result      *TranscriptResult `json:"result,omitempty"`      // Final transcript once completed
	Cancelled   bool              `json:"cancelled"`             // Whether the job was cancelled
}
