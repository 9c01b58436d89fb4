package handlers

import (
	"encoding/json"
	"net/http"

	"summary-server/internal/types"
	"summary-server/web"
)

// HomeHandler serves the main HTML page
func HomeHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(web.IndexHTML)
}

// StylesHandler serves the CSS styles
func StylesHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Write(web.StylesCSS)
}

// sendError sends an error response
func sendError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(types.Response{
		Success: false,
		Message: message,
	})
}

// sendSuccess sends a success response
func sendSuccess(w http.ResponseWriter, message string, file string) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(types.Response{
		Success: true,
		Message: message,
		File:    file,
	})
}

// sendJSON encodes an arbitrary payload as the response body
func sendJSON(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(payload)
}
