package middleware

import (
	"bytes"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/klauspost/compress/gzip"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(io.Discard) })
	return &buf
}

func TestResponseWriterRecordsFirstStatus(t *testing.T) {
	rw := newResponseWriter(httptest.NewRecorder())
	if rw.statusCode != http.StatusOK {
		t.Errorf("default status = %d, want 200", rw.statusCode)
	}

	rw.WriteHeader(http.StatusNotFound)
	rw.WriteHeader(http.StatusInternalServerError)
	if rw.statusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rw.statusCode)
	}

	n, err := rw.Write([]byte("hello"))
	if err != nil || n != 5 {
		t.Fatalf("Write() = %d, %v", n, err)
	}
	if rw.bytesWritten != 5 {
		t.Errorf("bytesWritten = %d, want 5", rw.bytesWritten)
	}
}

func TestSanitizeLogField(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "/api/images/1", "/api/images/1"},
		{"newline", "a\nb\rc", "a b c"},
		{"null byte", "a\x00b", "ab"},
		{"ansi escape", "\x1b[31mred", "[31mred"},
		{"tab kept", "a\tb", "a\tb"},
		{"delete char", "a\x7fb", "ab"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizeLogField(tt.in); got != tt.want {
				t.Errorf("sanitizeLogField(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestShouldSkip(t *testing.T) {
	def := DefaultLoggingConfig()
	quiet := LoggingConfig{LogHealthChecks: false}
	tests := []struct {
		name   string
		path   string
		config LoggingConfig
		want   bool
	}{
		{"api call", "/api/stats", def, false},
		{"metrics prefix", "/metrics", def, true},
		{"thumbnail skipped by default", "/api/images/4/thumbnail", def, true},
		{"thumbnail logged when enabled", "/api/images/4/thumbnail", LoggingConfig{LogThumbnails: true, LogHealthChecks: true}, false},
		{"image detail logged", "/api/images/4", def, false},
		{"health logged by default", "/healthz", def, false},
		{"health skipped when disabled", "/readyz", quiet, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := shouldSkip(tt.path, tt.config); got != tt.want {
				t.Errorf("shouldSkip(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded chain", map[string]string{"X-Forwarded-For": "10.0.0.1, 10.0.0.2"}, "1.2.3.4:80", "10.0.0.1"},
		{"real ip", map[string]string{"X-Real-IP": "10.0.0.9"}, "1.2.3.4:80", "10.0.0.9"},
		{"remote addr", nil, "192.168.1.5:5123", "192.168.1.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if got := getClientIP(r); got != tt.want {
				t.Errorf("getClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEscapeW3CField(t *testing.T) {
	if got := escapeW3CField("curl/8.0"); got != "curl/8.0" {
		t.Errorf("got %q", got)
	}
	if got := escapeW3CField(`Mozilla/5.0 "x"`); got != `"Mozilla/5.0 ""x"""` {
		t.Errorf("got %q", got)
	}
}

func TestFormatW3C(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/images/7?full=1", http.NoBody)
	r.RemoteAddr = "127.0.0.1:9999"
	r.Header.Set("User-Agent", "evil\nagent")
	rw := newResponseWriter(httptest.NewRecorder())
	rw.WriteHeader(http.StatusNotFound)

	now := time.Date(2024, 3, 1, 12, 30, 45, 0, time.UTC)
	line := formatW3C(now, r, rw, 15*time.Millisecond)

	want := `2024-03-01 12:30:45 127.0.0.1 GET /api/images/7 full=1 404 0 15 - "evil agent" -`
	if line != want {
		t.Errorf("formatW3C() =\n%q\nwant\n%q", line, want)
	}
}

func TestLoggerWritesAccessLine(t *testing.T) {
	buf := captureLog(t)

	handler := Logger(DefaultLoggingConfig())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("ok"))
	}))

	for _, path := range []string{"/api/import", "/api/images/1/thumbnail"} {
		req := httptest.NewRequest(http.MethodPost, path, http.NoBody)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusCreated {
			t.Errorf("%s: status = %d", path, w.Code)
		}
	}

	out := buf.String()
	if !strings.Contains(out, "POST /api/import - 201 2") {
		t.Errorf("access line missing, got:\n%s", out)
	}
	if strings.Contains(out, "/thumbnail") {
		t.Errorf("thumbnail request should not be logged:\n%s", out)
	}
}

func TestCompression(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		contentType    string
		acceptEncoding string
		method         string
		wantGzip       bool
	}{
		{"large json", strings.Repeat(`{"key":"value"}`, 200), "application/json", "gzip", http.MethodGet, true},
		{"json with charset", strings.Repeat(`{"k":1}`, 400), "application/json; charset=utf-8", "gzip, deflate", http.MethodGet, true},
		{"small json", `{"ok":true}`, "application/json", "gzip", http.MethodGet, false},
		{"jpeg thumbnail", strings.Repeat("x", 4096), "image/jpeg", "gzip", http.MethodGet, false},
		{"client without gzip", strings.Repeat("data", 500), "text/plain", "", http.MethodGet, false},
		{"head request", strings.Repeat("data", 500), "text/plain", "gzip", http.MethodHead, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := Compression(DefaultCompressionConfig())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", tt.contentType)
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte(tt.body))
			}))

			req := httptest.NewRequest(tt.method, "/api/stats", http.NoBody)
			if tt.acceptEncoding != "" {
				req.Header.Set("Accept-Encoding", tt.acceptEncoding)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != http.StatusOK {
				t.Errorf("status = %d, want 200", w.Code)
			}
			gotGzip := w.Header().Get("Content-Encoding") == "gzip"
			if gotGzip != tt.wantGzip {
				t.Fatalf("gzip = %v, want %v", gotGzip, tt.wantGzip)
			}

			body := w.Body.Bytes()
			if gotGzip {
				gr, err := gzip.NewReader(bytes.NewReader(body))
				if err != nil {
					t.Fatalf("gzip.NewReader: %v", err)
				}
				defer gr.Close()
				if body, err = io.ReadAll(gr); err != nil {
					t.Fatalf("decompress: %v", err)
				}
			}
			if tt.method != http.MethodHead && string(body) != tt.body {
				t.Error("body does not round-trip")
			}
		})
	}
}

func TestCompressionPreservesStatus(t *testing.T) {
	handler := Compression(DefaultCompressionConfig())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":"busy"}`))
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/import", http.NoBody)
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", w.Code)
	}
	if w.Body.String() != `{"error":"busy"}` {
		t.Errorf("body = %q", w.Body.String())
	}
}

func TestCompressionLevels(t *testing.T) {
	for _, level := range []int{gzip.BestSpeed, gzip.BestCompression} {
		cfg := DefaultCompressionConfig()
		cfg.Level = level
		handler := Compression(cfg)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/plain")
			_, _ = w.Write([]byte(strings.Repeat("abc", 1000)))
		}))
		req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
		req.Header.Set("Accept-Encoding", "gzip")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Header().Get("Content-Encoding") != "gzip" {
			t.Errorf("level %d: response not compressed", level)
		}
	}
}

func TestNormalizePath(t *testing.T) {
	tests := map[string]string{
		"/api/images/42":           "/api/images/{id}",
		"/api/images/42/thumbnail": "/api/images/{id}/thumbnail",
		"/api/stats":               "/api/stats",
		"/":                        "/",
	}
	for in, want := range tests {
		if got := normalizePath(in); got != want {
			t.Errorf("normalizePath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRoutePathUsesTemplate(t *testing.T) {
	var got string
	router := mux.NewRouter()
	router.HandleFunc("/api/images/{id}", func(_ http.ResponseWriter, r *http.Request) {
		got = routePath(r)
	})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/images/abc", http.NoBody))
	if got != "/api/images/{id}" {
		t.Errorf("routePath() = %q, want template", got)
	}
}

func TestMetricsMiddleware(t *testing.T) {
	called := false
	handler := Metrics(DefaultMetricsConfig())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.WriteHeader(http.StatusTeapot)
	}))

	for _, path := range []string{"/api/stats", "/metrics"} {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, http.NoBody))
		if w.Code != http.StatusTeapot {
			t.Errorf("%s: status = %d", path, w.Code)
		}
	}
	if !called {
		t.Error("handler not called")
	}
}
