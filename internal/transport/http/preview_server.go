// Package httpserver handles all message traffic between the editor and the browser.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"go-live-lottie/internal/contracts"
	"go-live-lottie/internal/render"
)

// ErrClosed is returned when sending through a stopped server.
var ErrClosed = errors.New("preview server closed")

const (
	writeTimeout    = 5 * time.Second
	shutdownTimeout = 2 * time.Second
	// revealGrace is how long a reveal waits for its page before another
	// reveal may launch the browser again.
	revealGrace     = 15 * time.Second
	assetsPrefix    = "/assets/"
)

// Options configures a PreviewServer.
type Options struct {
	// Addr is the listen address; a zero port picks a free one.
	Addr string
	// AssetsDir is the only directory served under /assets/.
	AssetsDir string
	// OpenBrowser launches the browser on Reveal when no page is connected.
	OpenBrowser    bool
	BrowserCommand string
	Logger         *slog.Logger
}

// ShellFunc renders the page shell for one load.
type ShellFunc func(render.ShellParams) string

// PreviewServer serves one preview page and keeps a WebSocket to it.
type PreviewServer struct {
	opts   Options
	shell  ShellFunc
	logger *slog.Logger

	server *http.Server
	url    string

	mu          sync.Mutex
	title       string
	subscribers map[int]func(contracts.Feedback)
	nextID      int
	revealedAt  time.Time

	connected atomic.Bool
	closeOnce sync.Once

	updates    chan contracts.UpdateMessage
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	stopLoop   chan struct{}

	upgrader websocket.Upgrader
}

// NewPreviewServer creates a preview server. Call Start to begin listening.
func NewPreviewServer(opts Options, shell ShellFunc) *PreviewServer {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &PreviewServer{
		opts:   opts,
		shell:  shell,
		logger: logger.With("component", "preview-server"),

		subscribers: map[int]func(contracts.Feedback){},
		updates:     make(chan contracts.UpdateMessage, 64),
		register:    make(chan *websocket.Conn),
		unregister:  make(chan *websocket.Conn),
		stopLoop:    make(chan struct{}),
		// A nil CheckOrigin rejects cross-origin upgrades.
		upgrader: websocket.Upgrader{},
	}
}

// Start binds the listen address and starts serving.
func (m *PreviewServer) Start() error {
	ln, err := net.Listen("tcp", m.opts.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", m.opts.Addr, err)
	}
	m.url = "http://" + ln.Addr().String()

	mux := http.NewServeMux()
	mux.HandleFunc("/", m.handleIndex)
	mux.HandleFunc("/ws", m.handleWS)
	mux.HandleFunc(assetsPrefix, m.handleAsset)
	m.server = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go m.runLoop()
	go func() {
		if err := m.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error("preview server stopped", "error", err)
		}
	}()

	m.logger.Info("preview server listening", "url", m.url)
	return nil
}

// URL returns the browser URL for the preview server.
func (m *PreviewServer) URL() string {
	return m.url
}

// Connected reports whether a page is attached.
func (m *PreviewServer) Connected() bool {
	return m.connected.Load()
}

// Send queues an update for the connected page. Updates leave in call order;
// with no page attached they are dropped.
func (m *PreviewServer) Send(msg contracts.UpdateMessage) error {
	msg.Type = contracts.MessageTypeUpdate
	select {
	case <-m.stopLoop:
		return ErrClosed
	default:
	}
	select {
	case m.updates <- msg:
		return nil
	case <-m.stopLoop:
		return ErrClosed
	}
}

// Subscribe registers fn for browser feedback. Call release to unsubscribe.
func (m *PreviewServer) Subscribe(fn func(contracts.Feedback)) (release func()) {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.subscribers[id] = fn
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subscribers, id)
			m.mu.Unlock()
		})
	}
}

// SetTitle sets the title used for the next page load.
func (m *PreviewServer) SetTitle(title string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.title = title
}

func (m *PreviewServer) currentTitle() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.title
}

// Reveal opens the page in a browser unless one is already attached or an
// earlier reveal is still waiting for its page. started reports whether this
// call began a new reveal.
func (m *PreviewServer) Reveal() (started bool, err error) {
	if m.Connected() || !m.beginReveal() {
		return false, nil
	}
	if !m.opts.OpenBrowser {
		return true, nil
	}
	return true, openBrowser(m.opts.BrowserCommand, m.url)
}

func (m *PreviewServer) beginReveal() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.revealedAt.IsZero() && time.Since(m.revealedAt) < revealGrace {
		return false
	}
	m.revealedAt = time.Now()
	return true
}

func (m *PreviewServer) endReveal() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revealedAt = time.Time{}
}

// Close gracefully shuts down the HTTP server and run loop.
func (m *PreviewServer) Close() error {
	var err error
	m.closeOnce.Do(func() {
		close(m.stopLoop)
		if m.server == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err = m.server.Shutdown(ctx)
	})
	return err
}

// handleIndex serves the page shell with a fresh script nonce.
func (m *PreviewServer) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	nonce := newNonce()
	csp := contentSecurityPolicy(nonce, r.Host)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Security-Policy", csp)
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write([]byte(m.shell(render.ShellParams{
		Title: m.currentTitle(),
		Nonce: nonce,
		CSP:   csp,
	})))
}

// handleWS upgrades the connection and dispatches browser feedback.
func (m *PreviewServer) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	select {
	case m.register <- conn:
	case <-m.stopLoop:
		_ = conn.Close()
		return
	}
	defer func() {
		select {
		case m.unregister <- conn:
		case <-m.stopLoop:
		}
	}()

	// Block here until the connection closes / errors out
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		fb, ok := contracts.DecodeFeedback(raw)
		if !ok {
			continue
		}
		m.dispatch(fb)
	}
}

func (m *PreviewServer) dispatch(fb contracts.Feedback) {
	m.mu.Lock()
	subs := make([]func(contracts.Feedback), 0, len(m.subscribers))
	for _, fn := range m.subscribers {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	for _, fn := range subs {
		fn(fb)
	}
}

// handleAsset serves files from the configured assets directory only.
func (m *PreviewServer) handleAsset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if m.opts.AssetsDir == "" {
		http.NotFound(w, r)
		return
	}

	rel := path.Clean("/" + strings.TrimPrefix(r.URL.Path, assetsPrefix))
	if rel == "/" {
		http.NotFound(w, r)
		return
	}

	assetPath := filepath.Join(m.opts.AssetsDir, filepath.FromSlash(rel))
	info, err := os.Stat(assetPath)
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}

	http.ServeFile(w, r, assetPath)
}

// runLoop serializes websocket writes on a single goroutine.
func (m *PreviewServer) runLoop() {
	var conn *websocket.Conn
	drop := func() {
		conn = nil
		m.connected.Store(false)
	}

	for {
		select {
		case update := <-m.updates:
			if conn == nil {
				continue
			}
			if !writeJSON(conn, update) {
				drop()
			}

		case c := <-m.register:
			if conn != nil {
				closeWith(conn, contracts.CloseReplaced, "replaced by a newer page")
			}
			conn = c
			m.connected.Store(true)
			m.endReveal()

		case c := <-m.unregister:
			if conn == c {
				_ = conn.Close()
				drop()
			}

		case <-m.stopLoop:
			if conn != nil {
				closeWith(conn, websocket.CloseGoingAway, "preview closed")
				drop()
			}
			return
		}
	}
}

// closeWith sends a close frame carrying code before closing conn.
func closeWith(conn *websocket.Conn, code int, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
		time.Now().Add(time.Second))
	_ = conn.Close()
}

// writeJSON writes a JSON message and reports whether the connection is usable.
func writeJSON(conn *websocket.Conn, v any) bool {
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(v); err != nil {
		_ = conn.Close()
		return false
	}
	return true
}

// newNonce returns 32 random hex characters.
func newNonce() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// contentSecurityPolicy allows only nonce-tagged scripts, same-origin assets,
// inline styles and the preview socket.
func contentSecurityPolicy(nonce string, host string) string {
	return strings.Join([]string{
		"default-src 'none'",
		"script-src 'nonce-" + nonce + "'",
		"style-src 'self' 'unsafe-inline'",
		"img-src 'self' data:",
		"connect-src ws://" + host,
	}, "; ")
}
