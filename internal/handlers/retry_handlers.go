package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"
	"summary-server/internal/types"
	"summary-server/pkg/config"
)

// RetryJobHandler retries a failed transcription by re-adding it to the queue
func RetryJobHandler(w http.ResponseWriter, r *http.Request, transcribeJobs chan<- *types.TranscribeJob, broadcastQueue func()) {
	if r.Method != http.MethodPost {
		sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Extract jobID from URL path (/retry/:jobID)
	jobID := strings.TrimSpace(strings.TrimPrefix(r.URL.Path, "/retry/"))
	if jobID == "" {
		sendError(w, "Missing job ID", http.StatusBadRequest)
		return
	}

	logrus.WithField("jobId", jobID).Info("Retry request received")

	var newJob *types.TranscribeJob
	rejected := false

	exists := config.MutateJobStatus(jobID, func(jobStatus *types.JobStatus) {
		// Only allow retry for error or completed jobs
		if jobStatus.Status != "error" && jobStatus.Status != "completed" {
			rejected = true
			return
		}

		// Create a new job with the same parameters, fresh cancel context
		cancelCtx, cancelFunc := context.WithCancel(context.Background())
		newJob = &types.TranscribeJob{
			ID:            jobID, // Keep the same ID so clients can track it
			VideoID:       jobStatus.Job.VideoID,
			CreatedAt:     jobStatus.Job.CreatedAt, // Keep original creation time
			CancelContext: cancelCtx,
			CancelFunc:    cancelFunc,
		}

		// Reset job status to queued
		jobStatus.Job = newJob
		jobStatus.Status = "queued"
		jobStatus.Progress = "Retrying..."
		jobStatus.Error = ""
		jobStatus.Cancelled = false
		jobStatus.CompletedAt = nil
		jobStatus.Result = nil
	})

	if !exists {
		sendJSON(w, types.Response{
			Success: false,
			Message: "Job not found",
		})
		return
	}

	if rejected {
		sendJSON(w, types.Response{
			Success: false,
			Message: "Only errored or completed jobs can be retried",
		})
		return
	}

	// Try to add to queue (non-blocking)
	select {
	case transcribeJobs <- newJob:
		logrus.WithField("jobId", jobID).Info("Job re-added to queue for retry")

		if broadcastQueue != nil {
			broadcastQueue()
		}

		sendJSON(w, types.Response{
			Success: true,
			Message: "Transcription retried",
			File:    jobID,
		})
	default:
		logrus.WithField("jobId", jobID).Warn("Queue full, cannot retry")
		newJob.CancelFunc()
		sendJSON(w, types.Response{
			Success: false,
			Message: "Queue is full, please retry later",
		})
	}
}
