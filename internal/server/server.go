// Package server is the development server: it serves the build
// directory, injects the live-reload client into HTML pages and pushes
// reload notifications over a websocket.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/conneroisu/blockpipe/internal/config"
	"github.com/conneroisu/blockpipe/internal/logging"
	"github.com/conneroisu/blockpipe/internal/validation"
	"github.com/conneroisu/blockpipe/internal/version"
)

// Internal routes.
const (
	WebSocketPath = "/__blockpipe/ws"
	HealthPath    = "/__blockpipe/health"
)

// Server serves a build directory with live reload.
type Server struct {
	settings config.ServerSettings
	buildDir string
	files    fs.FS
	hub      *Hub
	logger   logging.Logger
	started  time.Time
	status   func() map[string]interface{}

	mu         sync.Mutex
	httpServer *http.Server
	closed     bool
}

// New creates a server for buildDir. The directory may not exist yet.
func New(buildDir string, settings config.ServerSettings, logger logging.Logger) *Server {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	logger = logger.WithComponent("server")

	origins := append([]string{net.JoinHostPort(settings.Host, strconv.Itoa(settings.Port))}, settings.AllowedOrigins...)

	return &Server{
		settings: settings,
		buildDir: buildDir,
		files:    os.DirFS(buildDir),
		hub:      NewHub(logger, origins),
		logger:   logger,
		started:  time.Now(),
	}
}

// Hub returns the reload hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// SetBuildStatus adds the result of fn to the health response under
// "build".
func (s *Server) SetBuildStatus(fn func() map[string]interface{}) {
	s.status = fn
}

// Addr is the listen address.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.settings.Host, strconv.Itoa(s.settings.Port))
}

// URL is the address of the start page.
func (s *Server) URL() string {
	return "http://" + s.Addr() + "/" + strings.TrimPrefix(s.settings.StartPath, "/")
}

// Handler returns the HTTP routes of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(WebSocketPath, s.hub)
	mux.HandleFunc(ReloadScriptPath, s.handleReloadScript)
	mux.HandleFunc(HealthPath, s.handleHealth)
	mux.HandleFunc("/", s.handleStatic)
	return mux
}

// ListenAndServe serves until Shutdown is called.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.httpServer = &http.Server{
		Addr:              s.Addr(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	httpServer := s.httpServer
	s.mu.Unlock()

	ln, err := net.Listen("tcp", httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", httpServer.Addr, err)
	}

	s.logger.Info(ctx, "Serving build directory", "url", s.URL(), "dir", s.buildDir)
	if s.settings.Open {
		go s.openBrowser(ctx, s.URL())
	}

	if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown closes the reload connections and stops the HTTP server. A
// server shut down before it started never serves.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Shutdown()

	s.mu.Lock()
	s.closed = true
	httpServer := s.httpServer
	s.mu.Unlock()

	if httpServer == nil {
		return nil
	}
	return httpServer.Shutdown(ctx)
}

func (s *Server) handleReloadScript(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write([]byte(reloadScript))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	_, statErr := os.Stat(s.buildDir)
	status := map[string]interface{}{
		"status":    "ok",
		"clients":   s.hub.Clients(),
		"build_dir": s.buildDir,
		"built":     statErr == nil,
		"uptime":    time.Since(s.started).Round(time.Second).String(),
		"version":   version.Get().Short(),
	}
	if s.status != nil {
		status["build"] = s.status()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(status); err != nil {
		s.logger.Warn(context.Background(), err, "Failed to write health response")
	}
}

func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	name := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
	if name == "" {
		name = "."
	}

	info, err := fs.Stat(s.files, name)
	switch {
	case err != nil && name == ".":
		s.serveIndex(w, r)
		return
	case err != nil:
		http.NotFound(w, r)
		return
	case info.IsDir():
		index := path.Join(name, "index.html")
		if _, err := fs.Stat(s.files, index); err == nil {
			name = index
		} else if name == "." {
			s.serveIndex(w, r)
			return
		} else {
			http.NotFound(w, r)
			return
		}
	}

	w.Header().Set("Cache-Control", "no-cache")

	if path.Ext(name) == ".html" {
		s.serveHTML(w, r, name)
		return
	}

	http.ServeFileFS(w, r, s.files, name)
}

func (s *Server) serveHTML(w http.ResponseWriter, r *http.Request, name string) {
	f, err := s.files.Open(name)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()

	page, err := InjectReloadScript(f)
	if err != nil {
		s.logger.Warn(r.Context(), err, "Reload injection failed", "page", name)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(len(page)))
	if r.Method == http.MethodHead {
		return
	}
	_, _ = bytes.NewReader(page).WriteTo(w)
}

func (s *Server) serveIndex(w http.ResponseWriter, r *http.Request) {
	entries, err := listOutput(s.files)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.logger.Warn(r.Context(), err, "Listing build directory failed")
	}

	var buf bytes.Buffer
	if err := outputIndex("blockpipe: "+s.buildDir, entries).Render(r.Context(), &buf); err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	page, err := InjectReloadScript(&buf)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(page)
}

func (s *Server) openBrowser(ctx context.Context, url string) {
	time.Sleep(100 * time.Millisecond)

	if err := validation.ValidateURL(url); err != nil {
		s.logger.Warn(ctx, err, "Browser open failed due to invalid URL")
		return
	}

	var err error
	switch runtime.GOOS {
	case "linux":
		err = exec.Command("xdg-open", url).Start()
	case "windows":
		err = exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	case "darwin":
		err = exec.Command("open", url).Start()
	default:
		err = fmt.Errorf("unsupported platform %s", runtime.GOOS)
	}

	if err != nil {
		s.logger.Warn(ctx, err, "Failed to open browser")
	}
}
