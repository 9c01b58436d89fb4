package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"
	"summary-server/internal/types"
	"summary-server/internal/youtube"
	"summary-server/pkg/config"
)

// ExtractVideoIDHandler extracts the video ID from a YouTube URL.
// Expects JSON body: { "video_url": "<URL>" }
func ExtractVideoIDHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req types.VideoURLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	if req.VideoURL == "" {
		sendError(w, "Missing 'video_url' in request body", http.StatusBadRequest)
		return
	}

	videoID, err := youtube.ExtractVideoID(req.VideoURL)
	if err != nil {
		sendError(w, "Invalid YouTube URL", http.StatusBadRequest)
		return
	}

	logrus.WithFields(logrus.Fields{
		"url":     req.VideoURL,
		"videoId": videoID,
	}).Info("Video ID extracted")

	sendJSON(w, types.VideoIDResponse{VideoID: videoID})
}

// MetadataHandler fetches video metadata from the YouTube Data API
func MetadataHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	videoID := r.URL.Query().Get("video_id")
	if videoID == "" {
		sendError(w, "Missing 'video_id' query parameter", http.StatusBadRequest)
		return
	}

	apiKey := config.YoutubeAPIKey()
	if apiKey == "" {
		sendError(w, "YOUTUBE_API_KEY not set", http.StatusInternalServerError)
		return
	}

	client := youtube.NewClient(apiKey)
	metadata, err := client.Metadata(r.Context(), videoID)
	if err != nil {
		var apiErr *youtube.APIError
		switch {
		case errors.Is(err, youtube.ErrVideoNotFound):
			sendError(w, "Video not found", http.StatusNotFound)
		case errors.As(err, &apiErr):
			// Propagate the upstream status so the caller sees the API failure
			sendError(w, apiErr.Body, apiErr.StatusCode)
		default:
			logrus.WithError(err).WithField("videoId", videoID).Error("Metadata fetch failed")
			sendError(w, fmt.Sprintf("Metadata error: %v", err), http.StatusInternalServerError)
		}
		return
	}

	logrus.WithFields(logrus.Fields{
		"videoId": videoID,
		"title":   metadata.Title,
	}).Info("Metadata fetched")

	sendJSON(w, metadata)
}

// CaptionsHandler is the fallback to YouTube caption tracks when
// transcription is not wanted or fails
func CaptionsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	videoID := r.URL.Query().Get("video_id")
	if videoID == "" {
		sendError(w, "Missing 'video_id' query parameter", http.StatusBadRequest)
		return
	}

	client := youtube.NewClient(config.YoutubeAPIKey())
	captions, err := client.Captions(r.Context(), videoID)
	if err != nil {
		logrus.WithError(err).WithField("videoId", videoID).Error("Captions fetch failed")
		sendError(w, fmt.Sprintf("Captions error: %v", err), http.StatusInternalServerError)
		return
	}

	logrus.WithFields(logrus.Fields{
		"videoId":  videoID,
		"segments": len(captions.Segments),
	}).Info("Captions fetched")

	sendJSON(w, captions)
}

// SummarizeHandler echoes back all gathered data so the downstream LLM
// step can generate the final summary
func SummarizeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var payload map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		sendError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	logrus.WithField("keys", len(payload)).Info("Summarize payload echoed")
	sendJSON(w, payload)
}
