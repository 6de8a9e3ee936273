// Package admin serves the operator dashboard: persona editing, message
// counters, and recent logs, behind a session-cookie login.
package admin

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/maya-labs/maya/internal/logbuf"
	"github.com/maya-labs/maya/internal/metrics"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/admin.js
var staticFS embed.FS

const sessionCookie = "maya_admin_session"
const sessionTTL = time.Hour

// BotService is what the admin server needs from the relay.
type BotService interface {
	Persona() string
	SetPersona(p string) error
}

// Config holds admin server configuration.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
}

// Server is the admin web server.
type Server struct {
	svc       BotService
	cfg       Config
	logger    *slog.Logger
	logs      *logbuf.Buffer
	collector *metrics.Collector
	tmpl      *template.Template
	srv       *http.Server

	mu       sync.Mutex
	sessions map[string]time.Time // token → expiry
}

// NewServer creates the admin server. logs and collector may be nil.
func NewServer(svc BotService, cfg Config, logger *slog.Logger, logs *logbuf.Buffer, collector *metrics.Collector) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if collector == nil {
		collector = metrics.NewCollector()
	}

	s := &Server{
		svc:       svc,
		cfg:       cfg,
		logger:    logger,
		logs:      logs,
		collector: collector,
		tmpl:      template.Must(template.ParseFS(templateFS, "templates/*.html")),
		sessions:  make(map[string]time.Time),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /metrics", collector.Handler())
	mux.HandleFunc("GET /admin/login", s.handleLoginForm)
	mux.HandleFunc("POST /admin/login", s.handleLogin)
	mux.HandleFunc("GET /admin/logout", s.handleLogout)
	mux.HandleFunc("GET /admin/dashboard", s.requireAuth(s.handleDashboard))
	mux.HandleFunc("POST /admin/persona", s.requireAuth(s.handlePersona))
	mux.HandleFunc("GET /admin/logs", s.requireAuth(s.handleLogs))
	mux.Handle("GET /admin/static/", http.StripPrefix("/admin/", http.FileServerFS(staticFS)))
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/admin/dashboard", http.StatusFound)
	})

	s.srv = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start begins listening. Blocks until context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.srv.Shutdown(shutCtx)
	}()

	s.logger.Info("admin server starting", "addr", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("admin server: %w", err)
	}
	return nil
}

// Handler returns the underlying http.Handler for testing.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// --- Sessions ---

func (s *Server) newSession() string {
	buf := make([]byte, 32)
	rand.Read(buf)
	token := hex.EncodeToString(buf)

	s.mu.Lock()
	s.sessions[token] = time.Now().Add(sessionTTL)
	// Drop expired sessions while we hold the lock.
	for t, exp := range s.sessions {
		if time.Now().After(exp) {
			delete(s.sessions, t)
		}
	}
	s.mu.Unlock()
	return token
}

func (s *Server) validSession(r *http.Request) bool {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.sessions[c.Value]
	return ok && time.Now().Before(exp)
}

func (s *Server) dropSession(r *http.Request) {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return
	}
	s.mu.Lock()
	delete(s.sessions, c.Value)
	s.mu.Unlock()
}

func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.validSession(r) {
			http.Redirect(w, r, "/admin/login", http.StatusFound)
			return
		}
		next(w, r)
	}
}

// --- Handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type flash struct {
	Kind string // "success", "danger", "warning"
	Text string
}

func flashFromQuery(r *http.Request) *flash {
	text := r.URL.Query().Get("msg")
	if text == "" {
		return nil
	}
	kind := r.URL.Query().Get("kind")
	if kind == "" {
		kind = "success"
	}
	return &flash{Kind: kind, Text: text}
}

func redirectFlash(w http.ResponseWriter, r *http.Request, path, kind, text string) {
	http.Redirect(w, r, path+"?kind="+url.QueryEscape(kind)+"&msg="+url.QueryEscape(text), http.StatusFound)
}

func (s *Server) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, "login.html", map[string]any{"Flash": flashFromQuery(r)})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	username := r.PostFormValue("username")
	password := r.PostFormValue("password")

	if username == "" || password == "" {
		redirectFlash(w, r, "/admin/login", "danger", "Please provide both username and password")
		return
	}

	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.cfg.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(s.cfg.Password)) == 1
	if !userOK || !passOK {
		s.logger.Warn("failed admin login", "username", username)
		redirectFlash(w, r, "/admin/login", "danger", "Invalid credentials")
		return
	}

	token := s.newSession()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		MaxAge:   int(sessionTTL.Seconds()),
		SameSite: http.SameSiteLaxMode,
	})
	s.logger.Info("admin login", "username", username)
	http.Redirect(w, r, "/admin/dashboard", http.StatusFound)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.dropSession(r)
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "", Path: "/", MaxAge: -1})
	redirectFlash(w, r, "/admin/login", "success", "You have been logged out")
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	s.render(w, "dashboard.html", map[string]any{
		"Flash":    flashFromQuery(r),
		"Persona":  s.svc.Persona(),
		"Messages": s.collector.Counter("maya_messages_total", "Total inbound messages handled").Value(),
		"Replies":  s.collector.Counter("maya_replies_total", "Total replies sent").Value(),
		"Failures": s.collector.Counter("maya_failures_total", "Total AI provider failures").Value(),
		"Uptime":   s.collector.Uptime().Round(time.Second).String(),
	})
}

func (s *Server) handlePersona(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	if err := s.svc.SetPersona(r.PostFormValue("persona")); err != nil {
		redirectFlash(w, r, "/admin/dashboard", "danger", "Persona text cannot be empty")
		return
	}
	s.logger.Info("persona updated via admin")
	redirectFlash(w, r, "/admin/dashboard", "success", "Bot personality updated successfully!")
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	if s.logs == nil {
		writeJSON(w, http.StatusOK, []logbuf.Entry{})
		return
	}
	level := slog.LevelInfo
	if lv := r.URL.Query().Get("level"); lv != "" {
		level.UnmarshalText([]byte(lv))
	}
	limit := 100
	writeJSON(w, http.StatusOK, s.logs.Recent(level, limit))
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tmpl.ExecuteTemplate(w, name, data); err != nil {
		s.logger.Error("template render failed", "template", name, "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
