package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"summary-server/internal/transcribe"
	"summary-server/internal/types"
	"summary-server/internal/websocket"
	"summary-server/pkg/config"
)

// TranscribeHandler enqueues a transcription job and returns its ID.
// Expects JSON body: { "video_id": "<ID>" }
func TranscribeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req types.TranscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	if req.VideoID == "" {
		sendError(w, "Missing 'video_id' in request body", http.StatusBadRequest)
		return
	}

	if config.AssemblyAIKey() == "" {
		sendError(w, "ASSEMBLYAI_API_KEY not set", http.StatusInternalServerError)
		return
	}

	logrus.WithField("videoId", req.VideoID).Info("Adding transcription job to queue")

	jobID := transcribe.GenerateJobID()

	// Create cancel context for the job
	cancelCtx, cancelFunc := context.WithCancel(context.Background())

	job := &types.TranscribeJob{
		ID:            jobID,
		VideoID:       req.VideoID,
		CreatedAt:     time.Now(),
		CancelContext: cancelCtx,
		CancelFunc:    cancelFunc,
	}

	jobStatus := &types.JobStatus{
		Job:      job,
		Status:   "queued",
		Progress: "Waiting to be processed",
	}

	config.SetJobStatus(jobID, jobStatus)

	// Add job to queue (non-blocking)
	select {
	case config.GetTranscribeJobs() <- job:
		logrus.WithFields(logrus.Fields{
			"jobId":   jobID,
			"videoId": req.VideoID,
		}).Info("Transcription job added to queue")

		websocket.BroadcastQueueStatus()

		sendSuccess(w, fmt.Sprintf("Transcription queued (ID: %s)", jobID), jobID)
	default:
		logrus.WithField("jobId", jobID).Warn("Queue channel is full, cannot add job")
		config.DeleteJobStatus(jobID)
		cancelFunc()

		sendError(w, "Transcription queue is full, please retry later", http.StatusServiceUnavailable)
	}
}

// TranscribeStatusHandler returns a job's status and, once completed, its transcript
func TranscribeStatusHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Extract jobID from URL path (/transcribe/:jobID)
	jobID := strings.TrimSpace(strings.TrimPrefix(r.URL.Path, "/transcribe/"))
	if jobID == "" {
		sendError(w, "Missing job ID", http.StatusBadRequest)
		return
	}

	status, exists := config.SnapshotJobStatuses()[jobID]
	if !exists {
		sendError(w, "Job not found", http.StatusNotFound)
		return
	}

	sendJSON(w, status)
}

// QueueStatusHandler returns the current transcription queue status
func QueueStatusHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sendJSON(w, config.SnapshotJobStatuses())
}

// ClearQueueHandler clears completed and error jobs from the queue
func ClearQueueHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	for id, status := range config.SnapshotJobStatuses() {
		if status.Status == "completed" || status.Status == "error" {
			config.DeleteJobStatus(id)
		}
	}

	websocket.BroadcastQueueStatus()

	sendSuccess(w, "Queue cleared", "")
}
