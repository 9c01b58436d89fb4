package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"summary-server/internal/types"
)

func TestSendError(t *testing.T) {
	w := httptest.NewRecorder()
	sendError(w, "Test error", http.StatusBadRequest)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status %d, got %d", http.StatusBadRequest, w.Code)
	}

	var resp types.Response
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if resp.Success {
		t.Error("Expected success to be false")
	}

	if resp.Message != "Test error" {
		t.Errorf("Expected message 'Test error', got '%s'", resp.Message)
	}
}

func TestSendSuccess(t *testing.T) {
	w := httptest.NewRecorder()
	sendSuccess(w, "Test success", "tr_1_1")

	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, w.Code)
	}

	var resp types.Response
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if !resp.Success {
		t.Error("Expected success to be true")
	}

	if resp.Message != "Test success" {
		t.Errorf("Expected message 'Test success', got '%s'", resp.Message)
	}

	if resp.File != "tr_1_1" {
		t.Errorf("Expected file 'tr_1_1', got '%s'", resp.File)
	}
}

func TestHomeHandler(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	w := httptest.NewRecorder()

	HomeHandler(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, w.Code)
	}

	contentType := w.Header().Get("Content-Type")
	if contentType != "text/html; charset=utf-8" {
		t.Errorf("Expected Content-Type 'text/html; charset=utf-8', got '%s'", contentType)
	}
}

func TestStylesHandler(t *testing.T) {
	req := httptest.NewRequest("GET", "/styles.css", nil)
	w := httptest.NewRecorder()

	StylesHandler(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, w.Code)
	}

	contentType := w.Header().Get("Content-Type")
	if contentType != "text/css; charset=utf-8" {
		t.Errorf("Expected Content-Type 'text/css; charset=utf-8', got '%s'", contentType)
	}
}
