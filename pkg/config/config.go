package config

import (
	"net/http"
	"os"
	"sync"

	"github.com/gorilla/websocket"
	"summary-server/internal/types"
)

// Constants
const (
	AudioDir = "/audio"

	// AudioKeepCount is the number of most recent audio files kept on disk
	AudioKeepCount = 10
)

// Global variables for the application
var (
	// API keys loaded from the environment at startup
	youtubeAPIKey string
	assemblyAIKey string
	keysMutex     sync.RWMutex

	// Transcription queue and job management
	transcribeJobs   = make(chan *types.TranscribeJob, 100)
	jobStatuses      = make(map[string]*types.JobStatus) // jobId -> status
	jobStatusesMutex sync.RWMutex

	// WebSocket management
	wsClients      = make(map[*types.WSClient]bool)
	wsClientsMutex sync.RWMutex
	upgrader       = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true // Allow all origins for development
		},
	}
)

// LoadEnv reads the API keys from the environment
func LoadEnv() {
	keysMutex.Lock()
	defer keysMutex.Unlock()
	youtubeAPIKey = os.Getenv("YOUTUBE_API_KEY")
	assemblyAIKey = os.Getenv("ASSEMBLYAI_API_KEY")
}

// YoutubeAPIKey returns the YouTube Data API key
func YoutubeAPIKey() string {
	keysMutex.RLock()
	defer keysMutex.RUnlock()
	return youtubeAPIKey
}

// AssemblyAIKey returns the AssemblyAI API key
func AssemblyAIKey() string {
	keysMutex.RLock()
	defer keysMutex.RUnlock()
	return assemblyAIKey
}

// GetTranscribeJobs returns the transcription jobs channel
func GetTranscribeJobs() chan *types.TranscribeJob {
	return transcribeJobs
}

// GetJobStatuses returns a copy of the job statuses map (thread-safe)
func GetJobStatuses() map[string]*types.JobStatus {
	jobStatusesMutex.RLock()
	defer jobStatusesMutex.RUnlock()

	statuses := make(map[string]*types.JobStatus)
	for k, v := range jobStatuses {
		statuses[k] = v
	}
	return statuses
}

// SnapshotJobStatuses returns value copies of all job statuses (thread-safe).
// Readers that serialize or inspect status fields use this so they never see
// a status mid-mutation.
func SnapshotJobStatuses() map[string]types.JobStatus {
	jobStatusesMutex.RLock()
	defer jobStatusesMutex.RUnlock()

	statuses := make(map[string]types.JobStatus, len(jobStatuses))
	for k, v := range jobStatuses {
		statuses[k] = *v
	}
	return statuses
}

// MutateJobStatus applies fn to a job status while holding the registry lock.
// Returns false when the job is unknown.
func MutateJobStatus(id string, fn func(*types.JobStatus)) bool {
	jobStatusesMutex.Lock()
	defer jobStatusesMutex.Unlock()

	status, exists := jobStatuses[id]
	if !exists {
		return false
	}
	fn(status)
	return true
}

// SetJobStatus sets a job status in the global map (thread-safe)
func SetJobStatus(id string, status *types.JobStatus) {
	jobStatusesMutex.Lock()
	jobStatuses[id] = status
	jobStatusesMutex.Unlock()
}

// DeleteJobStatus removes a job status from the global map (thread-safe)
func DeleteJobStatus(id string) {
	jobStatusesMutex.Lock()
	delete(jobStatuses, id)
	jobStatusesMutex.Unlock()
}

// GetJobStatusesMutex returns the job statuses mutex
func GetJobStatusesMutex() *sync.RWMutex {
	return &jobStatusesMutex
}

// GetWSMutex returns the WebSocket clients mutex
func GetWSMutex() *sync.RWMutex {
	return &wsClientsMutex
}

// GetWSClients returns the WebSocket clients map
func GetWSClients() map[*types.WSClient]bool {
	wsClientsMutex.RLock()
	defer wsClientsMutex.RUnlock()

	clients := make(map[*types.WSClient]bool)
	for k, v := range wsClients {
		clients[k] = v
	}
	return clients
}

// AddWSClient adds a WebSocket client to the global map (thread-safe)
func AddWSClient(client *types.WSClient) {
	wsClientsMutex.Lock()
	wsClients[client] = true
	wsClientsMutex.Unlock()
}

// RemoveWSClient removes a WebSocket client from the global map (thread-safe)
func RemoveWSClient(client *types.WSClient) {
	wsClientsMutex.Lock()
	delete(wsClients, client)
	wsClientsMutex.Unlock()
}

// GetUpgrader returns the WebSocket upgrader
func GetUpgrader() websocket.Upgrader {
	return upgrader
}
