package apiserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/linanwx/hypermath/backend"
	"github.com/linanwx/hypermath/explainer"
)

type fileRenderer struct{ calls int }

func (f *fileRenderer) Render(_ context.Context, scenePath, outPath string) error {
	f.calls++
	if _, err := os.Stat(scenePath); err != nil {
		return err
	}
	return os.WriteFile(outPath, []byte("mp4"), 0o644)
}

type failingExplainer struct{}

func (failingExplainer) Name() string { return "failing" }
func (failingExplainer) Explain(context.Context, string) (*explainer.Explanation, error) {
	return nil, errors.New("model unavailable")
}

func newTestServer(t *testing.T, exp explainer.Explainer) (*Server, *fileRenderer, string) {
	t.Helper()
	dir := t.TempDir()
	r := &fileRenderer{}
	s, err := New(Options{StaticDir: dir, Explainer: exp, Renderer: r})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	s.newID = func() string { return "deadbeef" }
	return s, r, dir
}

func post(t *testing.T, h http.Handler, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	var out map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

func TestChatKnownTopicRendersVideo(t *testing.T) {
	s, r, dir := newTestServer(t, nil)
	w, out := post(t, s.Handler(), `{"prompt":"Explain the Pythagorean Theorem"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body=%s", w.Code, w.Body.String())
	}
	if out["video_url"] != "/api/static/videos/deadbeef_animation.mp4" {
		t.Fatalf("video_url = %v", out["video_url"])
	}
	if code, _ := out["manim_code"].(string); !strings.Contains(code, "class PythagoreanTheorem") {
		t.Fatalf("manim_code = %v", out["manim_code"])
	}
	if r.calls != 1 {
		t.Fatalf("renderer calls = %d", r.calls)
	}
	if _, err := os.Stat(filepath.Join(dir, "videos", "deadbeef_animation.mp4")); err != nil {
		t.Fatalf("video not written: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "manim_code", "deadbeef_scene.py")); err != nil {
		t.Fatalf("scene not written: %v", err)
	}
}

func TestChatUnknownTopicHasNullFields(t *testing.T) {
	s, r, _ := newTestServer(t, nil)
	w, out := post(t, s.Handler(), `{"prompt":"Derivatives"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	v, ok := out["video_url"]
	if !ok || v != nil || out["manim_code"] != nil {
		t.Fatalf("expected explicit nulls, got %v", out)
	}
	if !strings.Contains(out["explanation"].(string), "asking about derivatives") {
		t.Fatalf("explanation = %v", out["explanation"])
	}
	if r.calls != 0 {
		t.Fatalf("renderer should not run")
	}
}

func TestChatInvalidRequests(t *testing.T) {
	s, _, _ := newTestServer(t, nil)
	for _, body := range []string{``, `not json`, `{}`, `{"prompt":3}`, `[1,2]`} {
		w, out := post(t, s.Handler(), body)
		if w.Code != http.StatusBadRequest || out["error"] != "Invalid request" {
			t.Fatalf("body %q: status=%d out=%v", body, w.Code, out)
		}
	}
}

func TestChatExplainerFailure(t *testing.T) {
	s, _, _ := newTestServer(t, failingExplainer{})
	w, out := post(t, s.Handler(), `{"prompt":"x"}`)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
	if out["error"] != "Failed to process the math request" || out["details"] != "model unavailable" {
		t.Fatalf("body = %v", out)
	}
}

func TestChatRejectsGet(t *testing.T) {
	s, _, _ := newTestServer(t, nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/chat", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestIndexHealthAndCORS(t *testing.T) {
	s, _, _ := newTestServer(t, nil)
	h := s.Handler()

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "API is running") {
		t.Fatalf("index = %d %s", w.Code, w.Body.String())
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("missing CORS header")
	}

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"component":"backend"`) {
		t.Fatalf("healthz = %d %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/api/chat", nil))
	if w.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d", w.Code)
	}

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown path status = %d", w.Code)
	}
}

func TestStaticServesRenderedVideo(t *testing.T) {
	s, _, _ := newTestServer(t, nil)
	post(t, s.Handler(), `{"prompt":"quadratic equations"}`)

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/static/videos/deadbeef_animation.mp4", nil))
	if w.Code != http.StatusOK || w.Body.String() != "mp4" {
		t.Fatalf("static = %d %q", w.Code, w.Body.String())
	}
}

func TestCommandRendererFallsBackToPlaceholder(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "x.mp4")
	r := NewCommandRenderer("hypermath-no-such-binary", nil)
	if err := r.Render(context.Background(), filepath.Join(dir, "scene.py"), out); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil || string(data) != placeholderVideo {
		t.Fatalf("placeholder = %q, %v", data, err)
	}
}

func TestClientAgainstServer(t *testing.T) {
	s, _, _ := newTestServer(t, nil)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	c, err := backend.NewClient(backend.Config{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	reply, err := c.Send(context.Background(), "Pythagorean theorem")
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if reply.VideoRef != srv.URL+"/api/static/videos/deadbeef_animation.mp4" || reply.CodeText == "" {
		t.Fatalf("reply = %+v", reply)
	}

	reply, err = c.Send(context.Background(), "limits")
	if err != nil || reply.VideoRef != "" || reply.CodeText != "" {
		t.Fatalf("generic reply = %+v, %v", reply, err)
	}
}
