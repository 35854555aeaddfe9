package aiproxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/inkpost/apiserver/config"
	"github.com/inkpost/apiserver/internal/logging"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"
)

const (
	statusText        = "AI Assistant Server is running"
	generationFailure = "Failed to generate content"
	maxRequestBody    = 64 << 10
)

// GenerateRequest asks for a draft body for Title.
type GenerateRequest struct {
	Title string `json:"title"`
}

type GenerateResponse struct {
	Content string `json:"content"`
}

// AskRequest is a chat turn. Message is accepted as an alias of Prompt.
type AskRequest struct {
	Prompt  string `json:"prompt"`
	Message string `json:"message"`
	History []Turn `json:"history,omitempty"`
}

type AskResponse struct {
	Text string `json:"text"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// Server is the HTTP front of a Provider.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
}

// New builds the provider from cfg and wraps it in a server.
func New(ctx context.Context, cfg config.AIConfig) (*Server, error) {
	provider, err := NewProvider(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewWithProvider(provider, cfg.Port), nil
}

func NewWithProvider(provider Provider, port int) *Server {
	router := chi.NewRouter()
	router.Use(logging.Middleware(log.Logger)...)
	router.Use(
		middleware.Recoverer,
		cors.AllowAll().Handler,
		middleware.Timeout(90*time.Second),
	)
	Routes(router, provider)

	if port == 0 {
		port = 5000
	}
	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 100 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		router: router,
	}
}

// Routes registers the proxy endpoints on r.
func Routes(r chi.Router, provider Provider) {
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(statusText))
	})

	r.Post("/generate", func(w http.ResponseWriter, r *http.Request) {
		var req GenerateRequest
		if err := decodeJSON(w, r, &req); err != nil || strings.TrimSpace(req.Title) == "" {
			writeError(w, http.StatusBadRequest, "Title is required")
			return
		}
		content, err := provider.Generate(r.Context(), req.Title)
		if err != nil {
			hlog.FromRequest(r).Error().Err(err).Msg("generate draft")
			writeError(w, http.StatusInternalServerError, generationFailure)
			return
		}
		writeJSON(w, http.StatusOK, GenerateResponse{Content: content})
	})

	r.Post("/askAi", func(w http.ResponseWriter, r *http.Request) {
		var req AskRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request")
			return
		}
		prompt := strings.TrimSpace(req.Prompt)
		if prompt == "" {
			prompt = strings.TrimSpace(req.Message)
		}
		if prompt == "" {
			writeError(w, http.StatusBadRequest, "Prompt is required")
			return
		}
		text, err := provider.Ask(r.Context(), prompt, req.History)
		if err != nil {
			hlog.FromRequest(r).Error().Err(err).Msg("ask assistant")
			writeError(w, http.StatusInternalServerError, generationFailure)
			return
		}
		writeJSON(w, http.StatusOK, AskResponse{Text: text})
	})
}

func (s *Server) Router() *chi.Mux {
	return s.router
}

func (s *Server) Start() error {
	log.Info().Str("addr", s.httpServer.Addr).Msg("ai proxy listening")
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(dst)
}
