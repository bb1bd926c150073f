// Package apiserver serves the /api/chat contract consumed by the backend
// client. It is the bundled reference implementation of the explanation
// service.
package apiserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/linanwx/hypermath/explainer"
	"github.com/linanwx/hypermath/internal/health"
	"github.com/linanwx/hypermath/logger"
)

const (
	maxRequestBody = 1 << 20
	videoURLPrefix = "/api/static/videos/"
)

// Options configures a Server.
type Options struct {
	Addr      string
	StaticDir string
	Explainer explainer.Explainer
	Renderer  VideoRenderer

	// Retention removes rendered files older than this; 0 keeps them.
	Retention     time.Duration
	SweepSchedule string
}

// Server is the reference explanation service.
type Server struct {
	addr      string
	staticDir string
	explainer explainer.Explainer
	renderer  VideoRenderer
	sweeper   *Sweeper
	newID     func() string
	handler   http.Handler

	mu     sync.Mutex
	server *http.Server
	wg     sync.WaitGroup
}

// New creates a server and its static directories.
func New(opts Options) (*Server, error) {
	if opts.Explainer == nil {
		opts.Explainer = explainer.NewDemo()
	}
	if opts.Renderer == nil {
		opts.Renderer = NewCommandRenderer("", nil)
	}
	if strings.TrimSpace(opts.StaticDir) == "" {
		return nil, fmt.Errorf("apiserver: static dir is required")
	}
	for _, sub := range []string{videosDir, codeDir} {
		if err := os.MkdirAll(filepath.Join(opts.StaticDir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("apiserver: create %s dir: %w", sub, err)
		}
	}

	s := &Server{
		addr:      opts.Addr,
		staticDir: opts.StaticDir,
		explainer: opts.Explainer,
		renderer:  opts.Renderer,
		sweeper:   NewSweeper(opts.StaticDir, opts.Retention),
		newID:     func() string { return uuid.NewString()[:8] },
	}
	if opts.Retention > 0 {
		if err := s.sweeper.Schedule(opts.SweepSchedule); err != nil {
			return nil, err
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/api/chat", s.handleChat)
	mux.Handle("/api/static/", http.StripPrefix("/api/static/", http.FileServer(http.Dir(opts.StaticDir))))

	s.handler = chainMiddlewares(mux, withCORS, withLogging)
	return s, nil
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler { return s.handler }

// Start listens on the configured address in the background.
func (s *Server) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server != nil {
		return fmt.Errorf("apiserver: already started")
	}
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		logger.Info("backend listening", "addr", s.addr, "explainer", s.explainer.Name(), "staticDir", s.staticDir)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("backend server error", "err", err)
		}
	}()
	s.sweeper.Start()
	return nil
}

// Stop shuts the listener down and waits for in-flight requests.
func (s *Server) Stop() error {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := srv.Shutdown(ctx)
	s.wg.Wait()
	s.sweeper.Stop()
	logger.Info("backend stopped")
	return err
}

type chatResponse struct {
	Explanation string  `json:"explanation"`
	VideoURL    *string `json:"video_url"`
	ManimCode   *string `json:"manim_code"`
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "API is running"})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, health.Collect(health.Options{Component: "backend", StaticDir: s.staticDir}))
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "Method not allowed"})
		return
	}

	raw, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil || !gjson.ValidBytes(raw) {
		badRequest(w)
		return
	}
	field := gjson.GetBytes(raw, "prompt")
	if field.Type != gjson.String {
		badRequest(w)
		return
	}
	prompt := strings.ToLower(field.Str)
	id := s.newID()
	logger.Info("received prompt", "requestId", r.Header.Get("X-Request-ID"), "videoId", id, "prompt", prompt)

	exp, err := s.explainer.Explain(r.Context(), prompt)
	if err == nil && exp == nil {
		err = explainer.ErrEmptyAnswer
	}
	if err != nil {
		logger.Error("error processing request", "explainer", s.explainer.Name(), "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":   "Failed to process the math request",
			"details": err.Error(),
		})
		return
	}

	resp := chatResponse{Explanation: exp.Markdown}
	if exp.HasCode() {
		file, err := s.render(r.Context(), id, exp.ManimCode)
		if err != nil {
			logger.Error("error rendering video", "videoId", id, "err", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error":   "Failed to process the math request",
				"details": err.Error(),
			})
			return
		}
		url := videoURLPrefix + file
		code := exp.ManimCode
		resp.VideoURL = &url
		resp.ManimCode = &code
	}
	writeJSON(w, http.StatusOK, resp)
}

// render stores the scene source and produces the video, returning the video
// file name.
func (s *Server) render(ctx context.Context, id, code string) (string, error) {
	scene := filepath.Join(s.staticDir, codeDir, id+"_scene.py")
	if err := os.WriteFile(scene, []byte(code), 0o644); err != nil {
		return "", fmt.Errorf("write scene: %w", err)
	}
	file := id + "_animation.mp4"
	if err := s.renderer.Render(ctx, scene, filepath.Join(s.staticDir, videosDir, file)); err != nil {
		return "", err
	}
	return file, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func badRequest(w http.ResponseWriter) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request"})
}
