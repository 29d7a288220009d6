package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/FocuswithJustin/legacyfix/core/cache"
	"github.com/FocuswithJustin/legacyfix/core/fixer"
	"github.com/FocuswithJustin/legacyfix/core/journal"
)

// envelope mirrors APIResponse with raw data for per-test decoding.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *APIError       `json:"error"`
	Meta    *APIMeta        `json:"meta"`
}

type testServer struct {
	*Server
	journal *journal.Journal
}

func newTestServer(t *testing.T, cfg Config, engineCfg fixer.Config) *testServer {
	t.Helper()
	engine, err := fixer.New(engineCfg)
	if err != nil {
		t.Fatalf("fixer.New() error = %v", err)
	}
	j, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("journal.Open() error = %v", err)
	}
	s, err := New(cfg, Deps{Engine: engine, Cache: cache.NewDocumentCache(16, 0), Journal: j})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() {
		s.Close()
		j.Close()
	})
	return &testServer{Server: s, journal: j}
}

func do(t *testing.T, h http.Handler, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("%s %s: decode response %q: %v", method, path, rec.Body.String(), err)
		}
	}
	return rec, env
}

func decodeData[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(env.Data, &v); err != nil {
		t.Fatalf("decode data %s: %v", env.Data, err)
	}
	return v
}

func TestNewRequiresEngine(t *testing.T) {
	if _, err := New(Config{}, Deps{}); err == nil {
		t.Error("New() without engine succeeded")
	}
}

func TestNewRejectsWeakAPIKey(t *testing.T) {
	engine, err := fixer.New(fixer.Config{})
	if err != nil {
		t.Fatalf("fixer.New() error = %v", err)
	}
	_, err = New(Config{Auth: AuthConfig{Enabled: true, APIKey: "short"}}, Deps{Engine: engine})
	if err == nil {
		t.Error("New() accepted a short API key")
	}
}

func TestAuthMiddleware(t *testing.T) {
	key := "0123456789abcdef0123"
	s := newTestServer(t, Config{Auth: AuthConfig{Enabled: true, APIKey: key}}, fixer.Config{})
	h := s.Handler()

	tests := []struct {
		name   string
		path   string
		key    string
		status int
	}{
		{"health is public", "/health", "", http.StatusOK},
		{"missing key", "/kinds", "", http.StatusUnauthorized},
		{"wrong key", "/kinds", "0123456789abcdef9999", http.StatusUnauthorized},
		{"valid key", "/kinds", key, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.key != "" {
				req.Header.Set("X-API-Key", tt.key)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
		})
	}
}

func TestCORSMiddleware(t *testing.T) {
	s := newTestServer(t, Config{AllowedOrigins: []string{"https://tools.example"}}, fixer.Config{})
	h := s.Handler()

	tests := []struct {
		name       string
		method     string
		origin     string
		status     int
		wantHeader string
	}{
		{"allowed origin", http.MethodGet, "https://tools.example", http.StatusOK, "https://tools.example"},
		{"other origin", http.MethodGet, "https://evil.example", http.StatusOK, ""},
		{"allowed preflight", http.MethodOptions, "https://tools.example", http.StatusOK, "https://tools.example"},
		{"rejected preflight", http.MethodOptions, "https://evil.example", http.StatusForbidden, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/health", nil)
			req.Header.Set("Origin", tt.origin)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantHeader {
				t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, tt.wantHeader)
			}
		})
	}
}

func TestCORSAllowAll(t *testing.T) {
	s := newTestServer(t, Config{}, fixer.Config{})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://anywhere.example")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want *", got)
	}
	if rec.Header().Get("Access-Control-Allow-Credentials") != "" {
		t.Error("credentials allowed with wildcard origin")
	}
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, Config{RateLimitRequests: 60, RateLimitBurst: 2}, fixer.Config{})
	h := s.Handler()

	codes := make([]int, 3)
	for i := range codes {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.RemoteAddr = "192.0.2.7:1234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes[i] = rec.Code
		if i == 2 && rec.Header().Get("Retry-After") == "" {
			t.Error("limited response has no Retry-After")
		}
	}
	want := []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}
	for i := range want {
		if codes[i] != want[i] {
			t.Errorf("request %d status = %d, want %d", i, codes[i], want[i])
		}
	}

	// Another client has its own bucket.
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.RemoteAddr = "192.0.2.8:1234"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("second client status = %d, want 200", rec.Code)
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"remote addr", nil, "192.0.2.1:5000", "192.0.2.1"},
		{"forwarded", map[string]string{"X-Forwarded-For": "203.0.113.5, 10.0.0.1"}, "10.0.0.1:1", "203.0.113.5"},
		{"bad forwarded falls back", map[string]string{"X-Forwarded-For": "nonsense", "X-Real-IP": "203.0.113.9"}, "10.0.0.1:1", "203.0.113.9"},
		{"garbage remote", nil, "not-an-ip", "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := clientIP(req); got != tt.want {
				t.Errorf("clientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSecurityAndRequestIDHeaders(t *testing.T) {
	s := newTestServer(t, Config{}, fixer.Config{})
	rec, _ := do(t, s.Handler(), http.MethodGet, "/health", nil)
	for _, h := range []string{"X-Content-Type-Options", "X-Frame-Options", "Content-Security-Policy", "X-Request-ID"} {
		if rec.Header().Get(h) == "" {
			t.Errorf("header %s missing", h)
		}
	}
}
