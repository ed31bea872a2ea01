// Package http provides the HTTP server infrastructure.
// Clean Architecture: Framework/driver layer - outermost circle.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/0xcro3dile/therapychat-go/internal/adapters/session"
	"github.com/0xcro3dile/therapychat-go/internal/domain/entities"
	"github.com/0xcro3dile/therapychat-go/internal/domain/usecases"
)

// SessionHeader carries the session id on requests and responses.
const SessionHeader = "X-Session-ID"

const defaultMaxAudioBytes = 10 << 20

// Options configures the server. Zero values select defaults.
type Options struct {
	Addr          string
	MaxAudioBytes int64
}

// Server is the HTTP server for the chat API and UI.
type Server struct {
	sessions *session.Registry
	addr     string
	maxAudio int64
	logger   zerolog.Logger
}

// NewServer creates a new HTTP server over a session registry.
func NewServer(sessions *session.Registry, opts Options, logger zerolog.Logger) *Server {
	if opts.Addr == "" {
		opts.Addr = ":8000"
	}
	if opts.MaxAudioBytes <= 0 {
		opts.MaxAudioBytes = defaultMaxAudioBytes
	}
	return &Server{
		sessions: sessions,
		addr:     opts.Addr,
		maxAudio: opts.MaxAudioBytes,
		logger:   logger.With().Str("component", "http").Logger(),
	}
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// UI
	mux.HandleFunc("GET /{$}", s.handleIndex)

	// API
	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("POST /api/audio", s.handleAudio)
	mux.HandleFunc("GET /api/history", s.handleHistory)
	mux.HandleFunc("DELETE /api/history", s.handleReset)
	mux.HandleFunc("GET /api/health", s.handleHealth)

	return corsMiddleware(s.loggingMiddleware(mux))
}

// Start runs the HTTP server until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 300 * time.Second, // model calls are slow
	}

	s.logger.Info().Str("addr", s.addr).Msg("therapychat server starting")

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type chatResponse struct {
	SessionID  string         `json:"session_id"`
	Transcript string         `json:"transcript,omitempty"`
	Answer     string         `json:"answer"`
	Route      entities.Route `json:"route"`
	Sources    []string       `json:"sources,omitempty"`
}

type historyResponse struct {
	SessionID string          `json:"session_id"`
	State     string          `json:"state"`
	Turns     []entities.Turn `json:"turns"`
}

type errorResponse struct {
	SessionID string `json:"session_id,omitempty"`
	Error     string `json:"error"`
	Message   string `json:"message"`
}

// handleChat answers one typed message.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "bad_request", Message: "invalid JSON body"})
			return
		}
	} else {
		req.SessionID = r.FormValue("session_id")
		req.Message = r.FormValue("message")
	}
	if req.SessionID == "" {
		req.SessionID = sessionID(r)
	}

	conv, _ := s.sessions.GetOrCreate(req.SessionID)
	w.Header().Set(SessionHeader, conv.ID())

	ex, err := conv.SubmitText(r.Context(), req.Message)
	if err != nil {
		s.writeTurnError(w, conv.ID(), err)
		return
	}
	writeJSON(w, http.StatusOK, toChatResponse(conv.ID(), ex))
}

// handleAudio transcribes an uploaded recording and answers it. The audio is
// either the "audio" field of a multipart form or the raw request body.
func (s *Server) handleAudio(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxAudio)

	audio, id, err := readAudio(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "too_large", Message: "recording is too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "bad_request", Message: err.Error()})
		return
	}
	if id == "" {
		id = sessionID(r)
	}

	conv, _ := s.sessions.GetOrCreate(id)
	w.Header().Set(SessionHeader, conv.ID())

	ex, err := conv.SubmitRecording(r.Context(), audio)
	if err != nil {
		s.writeTurnError(w, conv.ID(), err)
		return
	}
	resp := toChatResponse(conv.ID(), ex)
	resp.Transcript = ex.User.Content
	writeJSON(w, http.StatusOK, resp)
}

func readAudio(r *http.Request) ([]byte, string, error) {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		audio, err := io.ReadAll(r.Body)
		return audio, "", err
	}

	file, _, err := r.FormFile("audio")
	if err != nil {
		return nil, "", errors.New("missing audio field")
	}
	defer file.Close()

	audio, err := io.ReadAll(file)
	return audio, r.FormValue("session_id"), err
}

// handleHistory returns the turns of a session.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	conv, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, historyResponse{
		SessionID: conv.ID(),
		State:     conv.State().String(),
		Turns:     conv.History(),
	})
}

// handleReset clears the history of a session.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	conv, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if err := conv.Reset(); err != nil {
		s.writeTurnError(w, conv.ID(), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*usecases.Conversation, bool) {
	id := sessionID(r)
	if id == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "bad_request", Message: "session id required"})
		return nil, false
	}
	conv, err := s.sessions.Get(id)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResponse{SessionID: id, Error: "not_found", Message: err.Error()})
		return nil, false
	}
	return conv, true
}

// handleHealth returns server health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "sessions": s.sessions.Len()})
}

func (s *Server) writeTurnError(w http.ResponseWriter, id string, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error().Err(err).Str("session", id).Msg("turn failed")
	}
	writeJSON(w, status, errorResponse{SessionID: id, Error: code, Message: usecases.UserMessage(err)})
}

// statusFor maps a turn error to an HTTP status and error code.
func statusFor(err error) (int, string) {
	var recErr *usecases.RecognitionError
	switch {
	case errors.As(err, &recErr):
		return http.StatusUnprocessableEntity, string(recErr.Kind)
	case errors.Is(err, entities.ErrEmptyMessage):
		return http.StatusBadRequest, "empty_message"
	case errors.Is(err, entities.ErrBusy):
		return http.StatusConflict, "busy"
	case errors.Is(err, entities.ErrRetrievalShortfall):
		return http.StatusServiceUnavailable, "retrieval_shortfall"
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout, "cancelled"
	}
	return http.StatusBadGateway, "upstream"
}

func toChatResponse(id string, ex *usecases.Exchange) chatResponse {
	resp := chatResponse{SessionID: id, Answer: ex.Response.Answer, Route: ex.Response.Route}
	for _, src := range ex.Response.Sources {
		resp.Sources = append(resp.Sources, src.SourceDoc)
	}
	return resp
}

func sessionID(r *http.Request) string {
	if id := r.Header.Get(SessionHeader); id != "" {
		return id
	}
	return r.URL.Query().Get("session_id")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("took", time.Since(start)).
			Msg("request")
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+SessionHeader)
		w.Header().Set("Access-Control-Expose-Headers", SessionHeader)
		if r.Method == http.MethodOptions {
			return
		}
		next.ServeHTTP(w, r)
	})
}
