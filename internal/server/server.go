// Package server exposes the studio's AI features over HTTP: the streaming
// rewrite relay plus the single-shot analyze, suggestions, and assistant
// endpoints.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"poststudio/internal/actions"
	"poststudio/internal/gateway"
	"poststudio/internal/logging"
	"poststudio/internal/stream"
)

// Server serves the studio API.
type Server struct {
	addr            string
	gw              *gateway.Gateway
	svc             *actions.Service
	idleTimeout     time.Duration
	shutdownTimeout time.Duration
	log             *zap.Logger
}

// New creates a server. idleTimeout bounds the gap between upstream stream
// frames; <= 0 disables it.
func New(addr string, gw *gateway.Gateway, svc *actions.Service, idleTimeout, shutdownTimeout time.Duration, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &Server{
		addr:            addr,
		gw:              gw,
		svc:             svc,
		idleTimeout:     idleTimeout,
		shutdownTimeout: shutdownTimeout,
		log:             log,
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/stream-rewrite", s.requirePost(s.handleStreamRewrite))
	mux.HandleFunc("/api/analyze", s.requirePost(s.handleAnalyze))
	mux.HandleFunc("/api/suggestions", s.requirePost(s.handleSuggestions))
	mux.HandleFunc("/api/assistant", s.requirePost(s.handleAssistant))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	return s.logged(mux)
}

// Run serves until ctx is canceled, then drains with the shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.log.Info("listening", zap.String("addr", s.addr))
		logging.Server("listening on %s", s.addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

type streamRewriteRequest struct {
	Prompt string `json:"prompt"`
	APIKey string `json:"apiKey,omitempty"`
}

// handleStreamRewrite opens an upstream streaming completion and relays it
// to the client re-framed as "data: {\"content\": ...}" events, terminated
// by the [DONE] sentinel. Malformed upstream frames are dropped, not
// forwarded.
func (s *Server) handleStreamRewrite(w http.ResponseWriter, r *http.Request) {
	var req streamRewriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		s.writeError(w, http.StatusBadRequest, "prompt is required")
		return
	}

	body, err := s.gw.OpenStream(r.Context(), req.APIKey, "", req.Prompt)
	if err != nil {
		s.writeMappedError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		body.Close()
		s.writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	session := stream.NewSession(r.Context(), body, s.idleTimeout)
	_, streamErr := session.Run(func(delta string) {
		payload, err := json.Marshal(map[string]string{"content": delta})
		if err != nil {
			return
		}
		fmt.Fprintf(w, "data: %s\n\n", payload)
		flusher.Flush()
	})
	if streamErr != nil {
		// Headers are long gone; all we can do is cut the stream short and
		// log. The client treats closure without the sentinel as
		// best-effort completion.
		s.log.Warn("stream relay interrupted", zap.Error(streamErr))
		logging.ServerError("stream relay interrupted: %v", streamErr)
		return
	}

	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req actions.AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	result, err := s.svc.AnalyzePost(r.Context(), req)
	if err != nil {
		s.writeMappedError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	var req actions.AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	result, err := s.svc.SuggestRewrites(r.Context(), req)
	if err != nil {
		s.writeMappedError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleAssistant(w http.ResponseWriter, r *http.Request) {
	var req actions.AssistantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	reply, err := s.svc.AssistantChat(r.Context(), req)
	if err != nil {
		s.writeMappedError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"reply": reply})
}

// writeMappedError translates the error taxonomy into HTTP statuses.
func (s *Server) writeMappedError(w http.ResponseWriter, err error) {
	var rl *gateway.RateLimitError
	switch {
	case errors.As(err, &rl):
		s.writeJSON(w, http.StatusTooManyRequests, map[string]any{
			"error":             "usage limit reached",
			"retryAfterMinutes": rl.RetryAfterMinutes,
		})
	case errors.Is(err, gateway.ErrMissingCredential):
		s.writeError(w, http.StatusUnauthorized, "API key not configured")
	case errors.Is(err, gateway.ErrEmptyInput):
		s.writeError(w, http.StatusBadRequest, "content is required")
	case errors.Is(err, gateway.ErrInvalidResponse):
		s.writeError(w, http.StatusBadGateway, "completion backend returned an invalid response")
	default:
		var upstream *gateway.UpstreamError
		if errors.As(err, &upstream) {
			s.writeError(w, http.StatusBadGateway, "completion backend request failed")
			return
		}
		s.log.Error("request failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("encode response", zap.Error(err))
	}
}

func (s *Server) requirePost(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		next(w, r)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (s *Server) logged(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		s.log.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}
