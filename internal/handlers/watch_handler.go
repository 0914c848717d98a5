package handlers

import (
	"encoding/json"
	"io"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sub4sub/backend/internal/services"
)

type WatchHandler struct {
	watch     *services.WatchService
	validator *services.ValidationHelper
}

func NewWatchHandler(watch *services.WatchService) *WatchHandler {
	return &WatchHandler{
		watch:     watch,
		validator: services.NewValidationHelper(),
	}
}

// CreateRoom creates a watch room, charging the creator up front
// @Summary Create watch room
// @Description Debit the room budget and open it for viewers
// @Tags watch
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{contentUrl=string,contentTitle=string,requiredMinutes=int,maxParticipants=int} true "Room request"
// @Success 200 {object} services.CreateRoomResult
// @Failure 400 {object} services.ErrorResponse
// @Failure 402 {object} services.ErrorResponse
// @Router /rooms [post]
func (h *WatchHandler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(int64)
	if !ok || userID == 0 {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req struct {
		ContentURL      string `json:"contentUrl" validate:"required,url"`
		ContentTitle    string `json:"contentTitle" validate:"required,min=2,max=200"`
		RequiredMinutes int    `json:"requiredMinutes" validate:"required,gt=0,lte=60"`
		MaxParticipants int    `json:"maxParticipants" validate:"required,gt=0,lte=500"`
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		services.SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	result, err := h.watch.CreateRoom(userID, req.ContentURL, req.ContentTitle, req.RequiredMinutes, req.MaxParticipants)
	if err != nil {
		log.Printf("[WATCH] Room creation failed for user %d: %v", userID, err)
		status, msg := services.BusinessErrorStatus(err)
		services.SendErrorResponse(w, msg, status, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// StartSession registers the caller as a viewer in a room
// @Summary Start watch session
// @Tags watch
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{sessionId=string}
// @Failure 404 {object} services.ErrorResponse
// @Router /rooms/{roomId}/sessions [post]
func (h *WatchHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(int64)
	if !ok || userID == 0 {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	roomID := chi.URLParam(r, "roomId")
	sessionID, err := h.watch.StartSession(roomID, userID)
	if err != nil {
		services.SendErrorResponse(w, "Room not found or closed", http.StatusNotFound, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"sessionId": sessionID})
}

// CompleteSession completes a session and pays the viewer once
// @Summary Complete watch session
// @Description Pay out watch credits, premium multiplier applied, daily cap enforced
// @Tags watch
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{minutesWatched=int} true "Completion request"
// @Success 200 {object} services.CompleteSessionResult
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /sessions/{sessionId}/complete [post]
func (h *WatchHandler) CompleteSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(int64)
	if !ok || userID == 0 {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req struct {
		MinutesWatched int `json:"minutesWatched" validate:"required,gt=0"`
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	sessionID := chi.URLParam(r, "sessionId")
	result, err := h.watch.CompleteSession(userID, sessionID, req.MinutesWatched)
	if err != nil {
		log.Printf("[WATCH] Completion failed for session %s: %v", sessionID, err)
		status, msg := services.BusinessErrorStatus(err)
		services.SendErrorResponse(w, msg, status, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}
