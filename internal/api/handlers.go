package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/najimovi/starting-ragchatbot-codebase/internal/core"
)

type APIHandler struct {
	chatService *core.ChatService
}

func NewAPIHandler(cs *core.ChatService) *APIHandler {
	return &APIHandler{chatService: cs}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

type ErrorResponse struct {
	Detail string `json:"detail"`
}

type QueryRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id,omitempty"`
}

func (h *APIHandler) QueryHandler(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Detail: "Invalid request body: " + err.Error()})
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Detail: "Query cannot be empty"})
		return
	}

	result, err := h.chatService.Query(r.Context(), req.Query, req.SessionID)
	if err != nil {
		if errors.Is(err, core.ErrGenerationFailed) {
			writeJSON(w, http.StatusBadGateway, ErrorResponse{Detail: "The assistant could not produce an answer. Please try again."})
			return
		}
		log.Printf("Error answering query for session %q: %v", req.SessionID, err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Detail: "Failed to process query"})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *APIHandler) CoursesHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.chatService.CourseStats())
}

type ClearSessionRequest struct {
	SessionID string `json:"session_id"`
}

type ClearSessionResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (h *APIHandler) ClearSessionHandler(w http.ResponseWriter, r *http.Request) {
	var req ClearSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Detail: "Invalid request body: " + err.Error()})
		return
	}
	if req.SessionID == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Detail: "session_id is required"})
		return
	}
	h.chatService.ClearSession(req.SessionID)
	writeJSON(w, http.StatusOK, ClearSessionResponse{Success: true, Message: "Session cleared"})
}
