package channel

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/linanwx/hypermath/backend"
	"github.com/linanwx/hypermath/bus"
	"github.com/linanwx/hypermath/controller"
	"github.com/linanwx/hypermath/conversation"
)

func TestIndexPageStructure(t *testing.T) {
	w := NewWebChannel("", controller.New(nil, nil), nil)
	rec := httptest.NewRecorder()
	w.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	doc, err := goquery.NewDocumentFromReader(rec.Body)
	if err != nil {
		t.Fatalf("parse page: %v", err)
	}
	if got := doc.Find("title").Text(); got != "HyperMath" {
		t.Fatalf("title = %q", got)
	}
	if doc.Find("form#composer input#prompt").Length() != 1 {
		t.Fatalf("composer input missing")
	}
	if got := strings.TrimSpace(doc.Find("#artifact-empty h2").Text()); got != "No Visualization Yet" {
		t.Fatalf("placeholder = %q", got)
	}
	if got := strings.TrimSpace(doc.Find("#artifact-full h2").Text()); got != "Visual Explanation" {
		t.Fatalf("artifact title = %q", got)
	}
	if doc.Find("#artifact-full video#video").Length() != 1 {
		t.Fatalf("video element missing")
	}
	if got := strings.TrimSpace(doc.Find("#busy").Text()); got != "Processing your request..." {
		t.Fatalf("busy text = %q", got)
	}

	rec = httptest.NewRecorder()
	w.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown path status = %d", rec.Code)
	}
}

func TestBuildView(t *testing.T) {
	art := &conversation.Artifact{VideoRef: "http://x/v.mp4", CodeText: "code"}
	st := controller.State{
		Version: 7,
		Turns: []conversation.Turn{
			{ID: "1", Role: conversation.RoleAssistant, Content: "# Title\n\n<script>alert(1)</script>"},
			{ID: "2", Role: conversation.RoleUser, Content: "<b>why</b>"},
			{ID: "3", Role: conversation.RoleAssistant, Content: "answer", Artifact: art},
		},
		Artifact: art,
	}
	w := NewWebChannel("", controller.New(nil, nil), nil)
	v := w.BuildView(st)

	if v.Version != 7 || v.Busy || len(v.Turns) != 3 || v.Artifact == nil {
		t.Fatalf("view = %+v", v)
	}
	if !strings.Contains(v.Turns[0].HTML, "<h1>Title</h1>") || strings.Contains(v.Turns[0].HTML, "<script>") {
		t.Fatalf("assistant html = %q", v.Turns[0].HTML)
	}
	if v.Turns[1].HTML != "<p>&lt;b&gt;why&lt;/b&gt;</p>" {
		t.Fatalf("user html = %q", v.Turns[1].HTML)
	}
	if v.Turns[0].Artifact != nil || v.Turns[2].Artifact == nil {
		t.Fatalf("turn artifacts = %v / %v", v.Turns[0].Artifact, v.Turns[2].Artifact)
	}

	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, key := range []string{`"version":7`, `"busy":false`, `"turns":[`, `"video_ref":"http://x/v.mp4"`, `"role":"user"`} {
		if !strings.Contains(string(data), key) {
			t.Fatalf("view json missing %s: %s", key, data)
		}
	}
}

func TestBuildViewNullArtifact(t *testing.T) {
	w := NewWebChannel("", controller.New(nil, nil), nil)
	data, _ := json.Marshal(w.BuildView(controller.New(nil, nil).Snapshot()))
	if !strings.Contains(string(data), `"artifact":null`) {
		t.Fatalf("expected explicit null artifact: %s", data)
	}
}

func TestHealthz(t *testing.T) {
	w := NewWebChannel("", controller.New(nil, nil), nil)
	rec := httptest.NewRecorder()
	w.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	var body struct {
		Status       string `json:"status"`
		Conversation struct {
			Turns int `json:"turns"`
		} `json:"conversation"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "healthy" || body.Conversation.Turns != 1 {
		t.Fatalf("healthz = %+v", body)
	}
}

func TestWebSocketRoundTrip(t *testing.T) {
	b := bus.New(0)
	defer b.Close()
	ctrl := controller.New(conversation.New(nil), replySender(backend.Reply{
		Explanation: "# Pythagoras",
		VideoRef:    "http://x/v.mp4",
	}), controller.WithBus(b))

	w := NewWebChannel("127.0.0.1:0", ctrl, b)
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer w.Stop()

	srv := httptest.NewServer(w.Handler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	var v View
	if err := wsjson.Read(ctx, conn, &v); err != nil {
		t.Fatalf("read first view: %v", err)
	}
	if len(v.Turns) != 1 || v.Turns[0].Role != conversation.RoleAssistant || v.Artifact != nil {
		t.Fatalf("first view = %+v", v)
	}

	if err := wsjson.Write(ctx, conn, map[string]string{"type": "submit", "text": "pythagorean theorem"}); err != nil {
		t.Fatalf("write submit: %v", err)
	}

	for len(v.Turns) != 3 || v.Busy {
		var next View
		if err := wsjson.Read(ctx, conn, &next); err != nil {
			t.Fatalf("read view: %v (last %+v)", err, v)
		}
		if next.Version <= v.Version {
			t.Fatalf("view version went from %d to %d", v.Version, next.Version)
		}
		v = next
	}
	if v.Artifact == nil || v.Artifact.VideoRef != "http://x/v.mp4" {
		t.Fatalf("artifact = %+v", v.Artifact)
	}
	if !strings.Contains(v.Turns[2].HTML, "<h1>Pythagoras</h1>") {
		t.Fatalf("reply html = %q", v.Turns[2].HTML)
	}
}
