package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MimeLyc/syncdub/internal/apperr"
	"github.com/MimeLyc/syncdub/internal/backend"
	"github.com/MimeLyc/syncdub/internal/config"
	"github.com/MimeLyc/syncdub/internal/subtitle"
	"github.com/MimeLyc/syncdub/pkg/log"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "OK",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

type loadVideoRequest struct {
	VideoURL string `json:"video_url"`
}

func (s *Server) handleLoadVideo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req loadVideoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if strings.TrimSpace(req.VideoURL) == "" {
		writeError(w, http.StatusBadRequest, "video_url is required")
		return
	}
	info, err := s.svc.LoadVideo(r.Context(), req.VideoURL)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleCurrentVideo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	info, ok := s.svc.CurrentVideo()
	if !ok {
		writeError(w, http.StatusNotFound, "no video loaded")
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, s.svc.Snapshot())
}

type startRequest struct {
	TargetLanguage string `json:"target_language"`
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	// the body is optional
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	snap, err := s.svc.Start(req.TargetLanguage)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, s.svc.Stop())
}

type playerReport struct {
	Position *float64 `json:"position"`
	State    string   `json:"state"`
}

func (s *Server) handlePlayer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req playerReport
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if req.Position == nil {
		writeError(w, http.StatusBadRequest, "position is required")
		return
	}
	if err := s.svc.ReportPlayer(subtitle.Seconds(*req.Position), req.State); err != nil {
		writeAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type volumeRequest struct {
	Volume *float64 `json:"volume"`
}

func (s *Server) handleVolume(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req volumeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Volume == nil {
		writeError(w, http.StatusBadRequest, "volume is required")
		return
	}
	if err := s.svc.SetVolume(*req.Volume); err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"volume": *req.Volume})
}

func (s *Server) handleAudio(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	handle := pathParam(r.URL.Path, "/api/audio/")
	data, format, ok := s.svc.Audio(handle)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown audio handle")
		return
	}
	w.Header().Set("Content-Type", format)
	w.Header().Set("Cache-Control", "private, max-age=3600")
	// ServeContent answers the range requests media elements send
	http.ServeContent(w, r, handle, time.Time{}, bytes.NewReader(data))
}

type clipLoadedRequest struct {
	Duration *float64 `json:"duration"`
}

func (s *Server) handleClipLoaded(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	// /api/clips/{id}/loaded
	rest := strings.TrimPrefix(r.URL.Path, "/api/clips/")
	if !strings.HasSuffix(rest, "/loaded") {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	clipID := pathParam(strings.TrimSuffix(rest, "/loaded"), "")
	if clipID == "" {
		writeError(w, http.StatusBadRequest, "missing clip id")
		return
	}

	var req clipLoadedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Duration == nil || *req.Duration <= 0 {
		writeError(w, http.StatusBadRequest, "a positive duration is required")
		return
	}
	if err := s.svc.ClipLoaded(clipID, subtitle.Seconds(*req.Duration)); err != nil {
		writeAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	if s.settings == nil {
		writeError(w, http.StatusNotImplemented, "settings store is not configured")
		return
	}

	switch r.Method {
	case http.MethodGet:
		settings, err := s.settings.GetRuntimeSettings()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, settings)
	case http.MethodPut:
		var req config.RuntimeSettings
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body")
			return
		}
		if err := req.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		saved, err := s.settings.UpdateRuntimeSettings(req)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if s.apply != nil {
			if err := s.apply(saved); err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
		}
		writeJSON(w, http.StatusOK, saved)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func pathParam(p, prefix string) string {
	v := strings.Trim(strings.TrimPrefix(p, prefix), "/")
	if decoded, err := url.PathUnescape(v); err == nil {
		v = decoded
	}
	return v
}

func statusFor(err error) int {
	switch apperr.TypeOf(err) {
	case apperr.Validation:
		return http.StatusBadRequest
	case apperr.Acquisition, apperr.Network, apperr.API:
		return http.StatusBadGateway
	case apperr.Config:
		return http.StatusServiceUnavailable
	case apperr.Resource:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeAppError maps the error taxonomy onto a status and a body carrying
// the backend message when there is one.
func writeAppError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := backend.Message(err)
	var statusErr *backend.StatusError
	var appErr *apperr.Error
	hasAppErr := errors.As(err, &appErr)
	if hasAppErr && !errors.As(err, &statusErr) {
		msg = appErr.Message
	}

	body := map[string]any{
		"error": msg,
		"type":  apperr.TypeOf(err).String(),
	}
	if hasAppErr {
		body["advice"] = appErr.Advice()
	}
	if status >= http.StatusInternalServerError {
		log.Warn("Request failed: %v", err)
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}
