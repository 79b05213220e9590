// Package server exposes the speech cache over HTTP: a synthesis endpoint
// mirroring the original generate-tts function contract, and an artifact
// endpoint serving stored audio.
package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/charmbracelet/log"

	"github.com/studify-ai/studify-speech/internal/store"
	"github.com/studify-ai/studify-speech/speech"
)

// Server routes HTTP requests to the speech service and store.
type Server struct {
	svc    *speech.Service
	store  *store.Store
	logger *log.Logger
}

// New creates a Server.
func New(svc *speech.Service, st *store.Store, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{svc: svc, store: st, logger: logger}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/tts", s.handleTTS)
	mux.HandleFunc("OPTIONS /v1/tts", s.handlePreflight)
	mux.HandleFunc("GET /v1/audio/{name}", s.handleAudio)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return mux
}

type ttsRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice,omitempty"`
}

type ttsResponse struct {
	URL      *string `json:"url"`
	Cached   bool    `json:"cached"`
	MimeType string  `json:"mimeType,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// The original endpoint was called straight from the browser, so keep the
// same permissive CORS surface.
func cors(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Headers", "authorization, content-type")
	h.Set("Access-Control-Allow-Methods", "POST, OPTIONS")
}

func (s *Server) handlePreflight(w http.ResponseWriter, _ *http.Request) {
	cors(w)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleTTS(w http.ResponseWriter, r *http.Request) {
	cors(w)

	var req ttsRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	result, err := s.svc.GetOrSynthesize(r.Context(), req.Text, req.Voice)
	if err != nil {
		s.logger.Error("tts request failed", "err", err)
		switch {
		case errors.Is(err, speech.ErrSynthesisUnavailable):
			writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
		default:
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		}
		return
	}

	// Blank input is a no-op response with a null url, not an error.
	resp := ttsResponse{Cached: result.Cached, MimeType: result.MimeType}
	if result.Location != "" {
		resp.URL = &result.Location
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAudio(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	data, mimeType, err := s.store.Object(name)
	switch {
	case errors.Is(err, store.ErrNotFound):
		http.NotFound(w, r)
		return
	case err != nil:
		s.logger.Error("audio fetch failed", "path", name, "err", err)
		http.Error(w, "storage failure", http.StatusInternalServerError)
		return
	}

	h := w.Header()
	h.Set("Content-Type", mimeType)
	// Artifacts are content-addressed and immutable.
	h.Set("Cache-Control", "public, max-age=31536000, immutable")
	_, _ = w.Write(data)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
