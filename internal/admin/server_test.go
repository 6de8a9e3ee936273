package admin

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/maya-labs/maya/internal/logbuf"
	"github.com/maya-labs/maya/internal/metrics"
)

// mockBot implements BotService.
type mockBot struct {
	persona string
}

func (m *mockBot) Persona() string { return m.persona }
func (m *mockBot) SetPersona(p string) error {
	if strings.TrimSpace(p) == "" {
		return fmt.Errorf("empty persona")
	}
	m.persona = p
	return nil
}

func newTestServer(bot BotService) *Server {
	return NewServer(bot, Config{
		Host:     "127.0.0.1",
		Port:     0,
		Username: "admin",
		Password: "secret",
	}, nil, nil, nil)
}

func login(t *testing.T, srv *Server) *http.Cookie {
	t.Helper()
	form := url.Values{"username": {"admin"}, "password": {"secret"}}
	req := httptest.NewRequest("POST", "/admin/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusFound {
		t.Fatalf("login status = %d", w.Code)
	}
	for _, c := range w.Result().Cookies() {
		if c.Name == sessionCookie {
			return c
		}
	}
	t.Fatal("no session cookie set")
	return nil
}

func TestHealth(t *testing.T) {
	srv := newTestServer(&mockBot{})
	req := httptest.NewRequest("GET", "/api/health", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d", w.Code)
	}
	var body map[string]string
	json.NewDecoder(w.Body).Decode(&body)
	if body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
}

func TestDashboard_RequiresLogin(t *testing.T) {
	srv := newTestServer(&mockBot{})
	req := httptest.NewRequest("GET", "/admin/dashboard", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusFound {
		t.Fatalf("status = %d, want redirect", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/admin/login" {
		t.Errorf("location = %q", loc)
	}
}

func TestLogin_BadCredentials(t *testing.T) {
	srv := newTestServer(&mockBot{})
	form := url.Values{"username": {"admin"}, "password": {"wrong"}}
	req := httptest.NewRequest("POST", "/admin/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusFound {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.HasPrefix(w.Header().Get("Location"), "/admin/login") {
		t.Errorf("location = %q, want back to login", w.Header().Get("Location"))
	}
	for _, c := range w.Result().Cookies() {
		if c.Name == sessionCookie && c.Value != "" {
			t.Error("session cookie set on failed login")
		}
	}
}

func TestLogin_ThenDashboard(t *testing.T) {
	bot := &mockBot{persona: "You are Maya."}
	srv := newTestServer(bot)
	cookie := login(t, srv)

	req := httptest.NewRequest("GET", "/admin/dashboard", nil)
	req.AddCookie(cookie)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "You are Maya.") {
		t.Error("dashboard missing persona text")
	}
}

func TestUpdatePersona(t *testing.T) {
	bot := &mockBot{persona: "old"}
	srv := newTestServer(bot)
	cookie := login(t, srv)

	form := url.Values{"persona": {"You are a pirate."}}
	req := httptest.NewRequest("POST", "/admin/persona", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(cookie)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusFound {
		t.Fatalf("status = %d", w.Code)
	}
	if bot.persona != "You are a pirate." {
		t.Errorf("persona = %q", bot.persona)
	}
}

func TestUpdatePersona_EmptyRejected(t *testing.T) {
	bot := &mockBot{persona: "old"}
	srv := newTestServer(bot)
	cookie := login(t, srv)

	form := url.Values{"persona": {"   "}}
	req := httptest.NewRequest("POST", "/admin/persona", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(cookie)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if bot.persona != "old" {
		t.Errorf("persona changed to %q", bot.persona)
	}
	if !strings.Contains(w.Header().Get("Location"), "danger") {
		t.Errorf("location = %q, want danger flash", w.Header().Get("Location"))
	}
}

func TestLogout_InvalidatesSession(t *testing.T) {
	srv := newTestServer(&mockBot{})
	cookie := login(t, srv)

	req := httptest.NewRequest("GET", "/admin/logout", nil)
	req.AddCookie(cookie)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	req = httptest.NewRequest("GET", "/admin/dashboard", nil)
	req.AddCookie(cookie)
	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusFound {
		t.Errorf("status = %d, want redirect after logout", w.Code)
	}
}

func TestLogs(t *testing.T) {
	buf := logbuf.New(10)
	buf.Write(logbuf.Entry{Time: time.Now(), Level: "INFO", Message: "handling message"})
	buf.Write(logbuf.Entry{Time: time.Now(), Level: "DEBUG", Message: "noise"})

	srv := NewServer(&mockBot{}, Config{Username: "admin", Password: "secret"}, nil, buf, nil)
	cookie := login(t, srv)

	req := httptest.NewRequest("GET", "/admin/logs", nil)
	req.AddCookie(cookie)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var entries []logbuf.Entry
	if err := json.NewDecoder(w.Body).Decode(&entries); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(entries) != 1 || entries[0].Message != "handling message" {
		t.Errorf("entries = %+v", entries)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	collector := metrics.NewCollector()
	collector.Counter("maya_messages_total", "Total inbound messages handled").Inc()

	srv := NewServer(&mockBot{}, Config{Username: "admin", Password: "secret"}, slog.Default(), nil, collector)
	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "maya_messages_total 1") {
		t.Errorf("metrics output = %q", w.Body.String())
	}
}
