package handlers

import (
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/constants"
)

// AttendanceHandler serves the attendance log.
type AttendanceHandler struct {
	recorder attendance.Recorder
}

// NewAttendanceHandler creates a new attendance handler.
func NewAttendanceHandler(recorder attendance.Recorder) *AttendanceHandler {
	return &AttendanceHandler{recorder: recorder}
}

// countResponse is the number of successful check-ins of one user.
type countResponse struct {
	UserID string `json:"userId"`
	Count  int    `json:"count"`
}

// Recent returns the most recent attendance records, newest first.
func (h *AttendanceHandler) Recent(w http.ResponseWriter, r *http.Request) {
	limit := constants.DefaultRecentLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, constants.MaxRecentLimit)
	}

	records, err := h.recorder.Recent(r.Context(), limit)
	if err != nil {
		log.Printf("Failed to read attendance log: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to read attendance log")
		return
	}
	respondJSON(w, http.StatusOK, records)
}

// Count returns the number of successful check-ins of the user in the path.
func (h *AttendanceHandler) Count(w http.ResponseWriter, r *http.Request) {
	counter, ok := h.recorder.(attendance.Counter)
	if !ok {
		respondError(w, http.StatusNotImplemented, "attendance backend cannot count check-ins")
		return
	}

	userID := chi.URLParam(r, "userId")
	count, err := counter.CountByUser(r.Context(), userID)
	if err != nil {
		log.Printf("Failed to count attendance for %s: %v", sanitizeForLog(userID), err)
		respondError(w, http.StatusInternalServerError, "failed to read attendance log")
		return
	}
	respondJSON(w, http.StatusOK, countResponse{UserID: userID, Count: count})
}
