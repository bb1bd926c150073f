package channel

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/tidwall/gjson"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/linanwx/hypermath/bus"
	"github.com/linanwx/hypermath/controller"
	"github.com/linanwx/hypermath/conversation"
	"github.com/linanwx/hypermath/internal/health"
	"github.com/linanwx/hypermath/logger"
)

//go:embed web/index.html
var webFS embed.FS

const (
	defaultWebAddr   = "127.0.0.1:8080"
	wsWriteTimeout   = 10 * time.Second
	wsMaxFrameBytes  = 64 << 10
	webShutdownGrace = 5 * time.Second
)

// TurnView is one turn as the browser draws it.
type TurnView struct {
	ID       string                 `json:"id"`
	Role     conversation.Role      `json:"role"`
	HTML     string                 `json:"html"`
	Artifact *conversation.Artifact `json:"artifact,omitempty"`
}

// View is the JSON frame pushed to every websocket client.
type View struct {
	Version  uint64                 `json:"version"`
	Busy     bool                   `json:"busy"`
	Turns    []TurnView             `json:"turns"`
	Artifact *conversation.Artifact `json:"artifact"`
}

// WebChannel serves the browser front-end. Every tab shares the single
// conversation.
type WebChannel struct {
	addr    string
	ctrl    *controller.Controller
	bus     *bus.Bus
	md      goldmark.Markdown
	handler http.Handler

	server *http.Server
	subID  string
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	clients map[*wsClient]struct{}
	html    map[string]string // turn id -> rendered html
}

// NewWebChannel creates a web front-end listening on addr.
func NewWebChannel(addr string, ctrl *controller.Controller, b *bus.Bus) *WebChannel {
	if addr == "" {
		addr = defaultWebAddr
	}
	w := &WebChannel{
		addr:    addr,
		ctrl:    ctrl,
		bus:     b,
		md:      goldmark.New(goldmark.WithExtensions(extension.GFM)),
		clients: make(map[*wsClient]struct{}),
		html:    make(map[string]string),
	}
	w.ctx, w.cancel = context.WithCancel(context.Background())

	mux := http.NewServeMux()
	mux.HandleFunc("/", w.handleIndex)
	mux.HandleFunc("/ws", w.handleWS)
	mux.HandleFunc("/healthz", w.handleHealth)
	w.handler = mux
	return w
}

func (w *WebChannel) Name() string { return "web" }

// Handler returns the HTTP routes, for tests and embedding.
func (w *WebChannel) Handler() http.Handler { return w.handler }

func (w *WebChannel) Start(_ context.Context) error {
	if w.bus != nil {
		w.subID = w.bus.Subscribe(bus.EventStateChanged, func(_ context.Context, e *bus.Event) {
			var st controller.State
			if err := e.ParseData(&st); err != nil {
				logger.Warn("web state decode failed", "err", err)
				return
			}
			w.broadcast(st)
		})
	}

	w.server = &http.Server{
		Addr:              w.addr,
		Handler:           w.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		logger.Info("web channel listening", "addr", w.addr)
		if err := w.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("web server error", "err", err)
		}
	}()
	logger.Info("web channel started")
	return nil
}

func (w *WebChannel) Stop() error {
	if w.subID != "" {
		w.bus.Unsubscribe(w.subID)
		w.subID = ""
	}
	w.cancel()
	var err error
	if w.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), webShutdownGrace)
		defer cancel()
		err = w.server.Shutdown(ctx)
	}
	w.wg.Wait()
	logger.Info("web channel stopped")
	return err
}

func (w *WebChannel) handleIndex(rw http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(rw, r)
		return
	}
	page, err := webFS.ReadFile("web/index.html")
	if err != nil {
		http.Error(rw, "page unavailable", http.StatusInternalServerError)
		return
	}
	rw.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = rw.Write(page)
}

func (w *WebChannel) handleHealth(rw http.ResponseWriter, _ *http.Request) {
	snap := health.Collect(health.Options{
		Component: "web",
		State:     health.StateFunc(w.stats),
	})
	rw.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(rw).Encode(snap)
}

func (w *WebChannel) stats() health.ConversationInfo {
	st := w.ctrl.Snapshot()
	return health.ConversationInfo{
		Turns:       len(st.Turns),
		Busy:        st.Busy,
		Version:     st.Version,
		HasArtifact: st.Artifact != nil,
	}
}

func (w *WebChannel) handleWS(rw http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(rw, r, nil)
	if err != nil {
		logger.Warn("websocket accept failed", "err", err)
		return
	}
	conn.SetReadLimit(wsMaxFrameBytes)

	c := &wsClient{conn: conn, notify: make(chan struct{}, 1)}
	w.mu.Lock()
	w.clients[c] = struct{}{}
	n := len(w.clients)
	w.mu.Unlock()
	logger.Info("web client connected", "clients", n, "remote", r.RemoteAddr)

	defer func() {
		w.mu.Lock()
		delete(w.clients, c)
		w.mu.Unlock()
		conn.CloseNow()
		logger.Info("web client disconnected", "remote", r.RemoteAddr)
	}()

	ctx, cancel := context.WithCancel(w.ctx)
	defer cancel()

	// First frame: the full current view.
	st := w.ctrl.Snapshot()
	c.offer(st.Version, w.encode(st))
	go c.writeLoop(ctx, cancel)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		w.handleFrame(ctx, data)
	}
}

func (w *WebChannel) handleFrame(ctx context.Context, data []byte) {
	if !gjson.ValidBytes(data) {
		logger.Debug("web frame ignored", "reason", "invalid json")
		return
	}
	frame := gjson.ParseBytes(data)
	switch frame.Get("type").String() {
	case "submit":
		if !w.ctrl.Send(ctx, frame.Get("text").String()) {
			logger.Debug("web submission rejected")
		}
	default:
		logger.Debug("web frame ignored", "type", frame.Get("type").String())
	}
}

func (w *WebChannel) broadcast(st controller.State) {
	payload := w.encode(st)
	if payload == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	for c := range w.clients {
		c.offer(st.Version, payload)
	}
}

func (w *WebChannel) encode(st controller.State) []byte {
	data, err := json.Marshal(w.BuildView(st))
	if err != nil {
		logger.Error("encode web view", "err", err)
		return nil
	}
	return data
}

// BuildView converts a controller snapshot into the browser view.
func (w *WebChannel) BuildView(st controller.State) View {
	v := View{
		Version:  st.Version,
		Busy:     st.Busy,
		Turns:    make([]TurnView, 0, len(st.Turns)),
		Artifact: st.Artifact,
	}
	for _, t := range st.Turns {
		tv := TurnView{ID: t.ID, Role: t.Role, HTML: w.turnHTML(t)}
		if t.HasArtifact() {
			tv.Artifact = t.Artifact
		}
		v.Turns = append(v.Turns, tv)
	}
	return v
}

// turnHTML renders a turn once; turns never change after they are appended.
func (w *WebChannel) turnHTML(t conversation.Turn) string {
	w.mu.Lock()
	cached, ok := w.html[t.ID]
	w.mu.Unlock()
	if ok {
		return cached
	}

	var out string
	if t.IsUser() {
		out = "<p>" + html.EscapeString(t.Content) + "</p>"
	} else {
		var buf bytes.Buffer
		if err := w.md.Convert([]byte(t.Content), &buf); err != nil {
			out = "<p>" + html.EscapeString(t.Content) + "</p>"
		} else {
			out = buf.String()
		}
	}

	w.mu.Lock()
	w.html[t.ID] = out
	w.mu.Unlock()
	return out
}

// wsClient coalesces pending views: only the newest unsent frame is kept,
// and a frame older than one already offered is dropped.
type wsClient struct {
	conn   *websocket.Conn
	notify chan struct{}

	mu      sync.Mutex
	latest  []byte
	version uint64
}

func (c *wsClient) offer(version uint64, payload []byte) {
	if payload == nil {
		return
	}
	c.mu.Lock()
	if version <= c.version {
		c.mu.Unlock()
		return
	}
	c.version = version
	c.latest = payload
	c.mu.Unlock()
	select {
	case c.notify <- struct{}{}:
	default:
	}
}

func (c *wsClient) writeLoop(ctx context.Context, cancel context.CancelFunc) {
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.notify:
		}
		c.mu.Lock()
		payload := c.latest
		c.latest = nil
		c.mu.Unlock()
		if payload == nil {
			continue
		}

		wctx, wcancel := context.WithTimeout(ctx, wsWriteTimeout)
		err := c.conn.Write(wctx, websocket.MessageText, payload)
		wcancel()
		if err != nil {
			return
		}
	}
}
