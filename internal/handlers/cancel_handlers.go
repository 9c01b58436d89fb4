package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"summary-server/internal/types"
	"summary-server/internal/websocket"
	"summary-server/pkg/config"
)

// CancelJobHandler cancels a transcription job
func CancelJobHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Extract jobID from URL path (/cancel/:jobID)
	jobID := strings.TrimSpace(strings.TrimPrefix(r.URL.Path, "/cancel/"))
	if jobID == "" {
		sendError(w, "Missing job ID", http.StatusBadRequest)
		return
	}

	logrus.WithField("jobId", jobID).Info("Cancel request received")

	var cancelFunc context.CancelFunc
	finished := false

	exists := config.MutateJobStatus(jobID, func(jobStatus *types.JobStatus) {
		// Only allow cancellation for jobs that have not finished yet
		switch jobStatus.Status {
		case "completed", "error", "cancelled":
			finished = true
			return
		}

		jobStatus.Status = "cancelled"
		jobStatus.Progress = "Cancelled"
		jobStatus.Cancelled = true
		now := time.Now()
		jobStatus.CompletedAt = &now

		cancelFunc = jobStatus.Job.CancelFunc
	})

	if !exists {
		sendJSON(w, types.Response{
			Success: false,
			Message: "Job not found",
		})
		return
	}

	if finished {
		sendJSON(w, types.Response{
			Success: false,
			Message: "Only queued or running jobs can be cancelled",
		})
		return
	}

	// Call the cancel function outside the registry lock
	if cancelFunc != nil {
		logrus.WithField("jobId", jobID).Info("Calling cancel function for job")
		cancelFunc()
	}

	websocket.BroadcastQueueStatus()

	// Schedule cleanup of cancelled job after 3 seconds
	go func() {
		time.Sleep(3 * time.Second)
		config.DeleteJobStatus(jobID)
		logrus.WithField("jobId", jobID).Info("Cancelled job cleaned up from queue")
		websocket.BroadcastQueueStatus()
	}()

	sendJSON(w, types.Response{
		Success: true,
		Message: "Transcription cancelled",
		File:    jobID,
	})
}
