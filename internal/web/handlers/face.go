package handlers

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/extractor"
	"github.com/kozaktomas/face-attendance/internal/recognition"
)

// codeResponse is the body envelope the kiosk client understands. Business
// outcomes are always sent with HTTP 200 and carry their status in Code.
type codeResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// verifyResponse is the body of a completed verification.
type verifyResponse struct {
	Code    int     `json:"code"`
	IsMatch bool    `json:"isMatch"`
	UserID  *string `json:"userId"`
	Score   float64 `json:"score"`
	Msg     string  `json:"msg"`
	Address string  `json:"address"`
}

// identityResponse summarizes one enrolled user.
type identityResponse struct {
	UserID  string `json:"userId"`
	Samples int    `json:"samples"`
}

// usersResponse lists the enrolled users.
type usersResponse struct {
	Count int                `json:"count"`
	Users []identityResponse `json:"users"`
}

// FaceHandler handles face verification and registration endpoints.
type FaceHandler struct {
	service       *recognition.Service
	maxUploadSize int64
}

// NewFaceHandler creates a new face handler.
func NewFaceHandler(service *recognition.Service) *FaceHandler {
	return &FaceHandler{service: service, maxUploadSize: constants.MaxUploadSize}
}

// parseUpload caps the request body and parses the multipart form. It writes
// the error response and returns false on failure.
func (h *FaceHandler) parseUpload(w http.ResponseWriter, r *http.Request) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, constants.MsgTooLarge)
			return false
		}
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return false
	}
	return true
}

// readUpload returns the content of the multipart file field.
func readUpload(r *http.Request, field string) ([]byte, error) {
	file, _, err := r.FormFile(field)
	if err != nil {
		return nil, fmt.Errorf("%s is required", field)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s", field)
	}
	return data, nil
}

// respondFaceError maps extraction and internal errors onto the envelope.
func respondFaceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, extractor.ErrInvalidImage):
		respondJSON(w, http.StatusOK, codeResponse{Code: http.StatusBadRequest, Msg: constants.MsgInvalidImage})
	case errors.Is(err, extractor.ErrNoFace):
		respondJSON(w, http.StatusOK, codeResponse{Code: http.StatusBadRequest, Msg: constants.MsgNoFace})
	default:
		log.Printf("Error: %v", err)
		respondJSON(w, http.StatusOK, codeResponse{Code: http.StatusInternalServerError, Msg: err.Error()})
	}
}

// Verify matches the uploaded face against the gallery and records attendance.
func (h *FaceHandler) Verify(w http.ResponseWriter, r *http.Request) {
	if !h.parseUpload(w, r) {
		return
	}

	if strings.TrimSpace(r.FormValue("token")) == "" {
		respondError(w, http.StatusBadRequest, "token is required")
		return
	}

	image, err := readUpload(r, "file")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	address := sanitizeForLog(r.FormValue("address"))
	result, err := h.service.Verify(r.Context(), image, address)
	if err != nil {
		respondFaceError(w, err)
		return
	}

	resp := verifyResponse{
		Code:    http.StatusOK,
		IsMatch: result.IsMatch,
		Score:   result.Score,
		Msg:     result.Message,
		Address: result.Address,
	}
	if result.IsMatch {
		resp.UserID = &result.UserID
	}
	respondJSON(w, http.StatusOK, resp)
}

// Register enrolls the uploaded face under user_id and saves the gallery.
func (h *FaceHandler) Register(w http.ResponseWriter, r *http.Request) {
	if !h.parseUpload(w, r) {
		return
	}

	userID := strings.TrimSpace(r.FormValue("user_id"))
	if userID == "" {
		respondError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	image, err := readUpload(r, "file")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.service.Register(r.Context(), userID, image); err != nil {
		respondFaceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, codeResponse{Code: http.StatusOK, Msg: constants.MsgRegistered})
}

// Users lists the enrolled identities with their sample counts.
func (h *FaceHandler) Users(w http.ResponseWriter, r *http.Request) {
	identities := h.service.Gallery().Identities()

	users := make([]identityResponse, 0, len(identities))
	for _, id := range identities {
		users = append(users, identityResponse{UserID: id.UserID, Samples: id.Samples})
	}
	respondJSON(w, http.StatusOK, usersResponse{Count: len(users), Users: users})
}
