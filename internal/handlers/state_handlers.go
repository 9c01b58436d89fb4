package handlers

import (
	"net/http"

	"summary-server/internal/state"
	"summary-server/pkg/config"
)

// ServerStateHandler returns the global server state
func ServerStateHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ytdlpStatus, ytdlpMessage, ytdlpUpdatedAt := state.GetYtdlpStatus()

	response := map[string]interface{}{
		"ytdlp": map[string]interface{}{
			"status":    ytdlpStatus,
			"message":   ytdlpMessage,
			"updatedAt": ytdlpUpdatedAt,
		},
		"queueSize": len(config.GetJobStatuses()),
		"keys": map[string]interface{}{
			"youtube":    config.YoutubeAPIKey() != "",
			"assemblyai": config.AssemblyAIKey() != "",
		},
	}

	sendJSON(w, response)
}
