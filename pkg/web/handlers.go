package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrCodeEU/facelogin/pkg/auth"
	"github.com/MrCodeEU/facelogin/pkg/imageutil"
	"github.com/MrCodeEU/facelogin/pkg/logging"
)

const (
	modeDetection = "REAL_DETECTION"
	modeLive      = "LIVE_RECOGNITION"
)

type registerRequest struct {
	UserID string `json:"user_id"`
	Image  string `json:"image"`
}

type verifyRequest struct {
	Image string `json:"image"`
}

type errorResponse struct {
	Success bool           `json:"success"`
	Error   string         `json:"error"`
	Code    auth.ErrorCode `json:"code,omitempty"`
	Retry   bool           `json:"retry,omitempty"`
}

type registerResponse struct {
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	UserID        string `json:"user_id"`
	EnrollmentID  string `json:"enrollment_id"`
	FacesDetected int    `json:"faces_detected"`
	Mode          string `json:"mode"`
}

type verifyResponse struct {
	Success       bool           `json:"success"`
	Authenticated bool           `json:"authenticated"`
	UserID        string         `json:"user_id,omitempty"`
	Confidence    float64        `json:"confidence"`
	Message       string         `json:"message"`
	Reason        auth.ErrorCode `json:"reason,omitempty"`
	LoginCount    int            `json:"login_count,omitempty"`
	FacesDetected *int           `json:"faces_detected,omitempty"`
	FaceDetected  *bool          `json:"face_detected,omitempty"`
	MultipleFaces bool           `json:"multiple_faces,omitempty"`
	Mode          string         `json:"mode"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			logging.Component("http").WithError(err).Warn("Failed to encode response")
		}
	}
}

func respondError(w http.ResponseWriter, status int, code auth.ErrorCode, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}

// respondAuthError maps a service error onto an HTTP status.
func respondAuthError(w http.ResponseWriter, err error) {
	var authErr *auth.AuthError
	if !errors.As(err, &authErr) {
		respondError(w, http.StatusInternalServerError, "", err.Error())
		return
	}

	status := http.StatusInternalServerError
	switch authErr.Code {
	case auth.ErrCodeInvalidInput:
		status = http.StatusBadRequest
	case auth.ErrCodeNoFace, auth.ErrCodeMultipleFaces:
		status = http.StatusUnprocessableEntity
	case auth.ErrCodeNotEnrolled:
		status = http.StatusNotFound
	}
	respondJSON(w, status, errorResponse{
		Error: authErr.Message,
		Code:  authErr.Code,
		Retry: authErr.Retry,
	})
}

// decodeBody reads a size-limited JSON body into v and writes the error
// response itself when that fails.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, auth.ErrCodeInvalidInput,
				fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
			return false
		}
		respondError(w, http.StatusBadRequest, auth.ErrCodeInvalidInput, "invalid request body")
		return false
	}
	return true
}

func decodeImage(w http.ResponseWriter, payload string) (image.Image, bool) {
	img, err := imageutil.DecodeBase64(payload)
	if err != nil {
		respondError(w, http.StatusBadRequest, auth.ErrCodeInvalidInput, "invalid image")
		return nil, false
	}
	return img, true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":   "ok",
		"version":  s.opts.Version,
		"mode":     modeDetection,
		"detector": s.service.Detector().Name(),
	})
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.service.ListUsers(r.Context())
	if err != nil {
		respondAuthError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"total_users": users.TotalUsers,
		"users":       users.Users,
		"mode":        modeDetection,
	})
}

func (s *Server) handleRemoveUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if err := s.service.Remove(r.Context(), userID); err != nil {
		respondAuthError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "User removed",
		"user_id": userID,
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if req.UserID == "" || req.Image == "" {
		respondError(w, http.StatusBadRequest, auth.ErrCodeInvalidInput, auth.GetErrorMessage(auth.ErrCodeInvalidInput))
		return
	}

	img, ok := decodeImage(w, req.Image)
	if !ok {
		return
	}

	res, err := s.service.Enroll(r.Context(), req.UserID, img)
	if err != nil {
		respondAuthError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, registerResponse{
		Success:       true,
		Message:       res.Message,
		UserID:        res.UserID,
		EnrollmentID:  res.EnrollmentID,
		FacesDetected: res.FacesDetected,
		Mode:          modeDetection,
	})
}

func (s *Server) handleVerify(mode auth.Mode) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req verifyRequest
		if !s.decodeBody(w, r, &req) {
			return
		}
		if req.Image == "" {
			respondError(w, http.StatusBadRequest, auth.ErrCodeInvalidInput, "image is required")
			return
		}

		img, ok := decodeImage(w, req.Image)
		if !ok {
			return
		}

		res, err := s.service.Authenticate(r.Context(), img, mode)
		if err != nil {
			respondAuthError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, newVerifyResponse(res))
	}
}

func newVerifyResponse(res *auth.AuthResult) verifyResponse {
	resp := verifyResponse{
		Success:       true,
		Authenticated: res.Authenticated,
		UserID:        res.UserID,
		Confidence:    res.Confidence,
		Message:       res.Message,
		Reason:        res.Reason,
		LoginCount:    res.LoginCount,
	}

	if res.Mode == auth.ModeLive {
		detected := res.FacesDetected > 0
		resp.FaceDetected = &detected
		resp.MultipleFaces = res.FacesDetected > 1
		resp.Mode = modeLive
		return resp
	}

	faces := res.FacesDetected
	resp.FacesDetected = &faces
	resp.Mode = modeDetection
	return resp
}
