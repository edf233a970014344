package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestBearerAuth(t *testing.T) {
	h := BearerAuth("sekrit")(okHandler())

	tests := []struct {
		name   string
		header string
		query  string
		want   int
	}{
		{"valid_header", "Bearer sekrit", "", http.StatusOK},
		{"wrong_token", "Bearer nope", "", http.StatusUnauthorized},
		{"missing", "", "", http.StatusUnauthorized},
		{"query_token", "", "sekrit", http.StatusOK},
		{"wrong_query_token", "", "nope", http.StatusUnauthorized},
		{"malformed_header", "sekrit", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			url := "/x"
			if tt.query != "" {
				url += "?token=" + tt.query
			}
			r := httptest.NewRequest(http.MethodGet, url, nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, r)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestBearerAuthDisabledWhenNoToken(t *testing.T) {
	h := BearerAuth("")(okHandler())
	r := httptest.NewRequest(http.MethodGet, "/x", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Errorf("empty configured token must disable auth, got %d", w.Code)
	}
}

func TestRequestIDGeneratedAndEchoed(t *testing.T) {
	h := RequestID(okHandler())

	r := httptest.NewRequest(http.MethodGet, "/x", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("no request id generated")
	}

	r = httptest.NewRequest(http.MethodGet, "/x", nil)
	r.Header.Set("X-Request-ID", "given-id")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	if got := w.Header().Get("X-Request-ID"); got != "given-id" {
		t.Errorf("provided request id not echoed, got %q", got)
	}
}

func TestRecovererTurnsPanicInto500(t *testing.T) {
	h := Logger(zerolog.Nop())(Recoverer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})))

	r := httptest.NewRequest(http.MethodGet, "/x", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	h := CORS(okHandler())
	r := httptest.NewRequest(http.MethodOptions, "/x", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS origin header")
	}
}
