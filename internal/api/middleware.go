package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

const requestIDHeader = "X-Request-ID"

// RequestID tags every request with an id, honoring one supplied by the
// caller. The id is echoed on the response so the UI can quote it when
// reporting a problem.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
			r.Header.Set(requestIDHeader, id)
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

// Logger emits one structured access line per request, carrying the
// request id so log lines can be matched to UI error reports.
func Logger(log zerolog.Logger) func(http.Handler) http.Handler {
	access := hlog.AccessHandler(func(r *http.Request, status, size int, dur time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("request_id", r.Header.Get(requestIDHeader)).
			Int("status", status).
			Int("size", size).
			Dur("duration_ms", dur).
			Msg("request")
	})
	return func(next http.Handler) http.Handler {
		return hlog.NewHandler(log)(access(next))
	}
}

// Recoverer converts a handler panic into a JSON 500 instead of killing
// the connection mid-response.
func Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rv := recover()
			if rv == nil {
				return
			}
			hlog.FromRequest(r).Error().Interface("panic", rv).Msg("recovered from panic")
			WriteError(w, http.StatusInternalServerError, "internal server error")
		}()
		next.ServeHTTP(w, r)
	})
}

// CORS allows the browser UI to call the API from any origin. The app
// binds to localhost, so the permissive origin is acceptable.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type, Last-Event-ID")
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		h.Set("Access-Control-Expose-Headers", requestIDHeader)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// bearerToken pulls the credential from the Authorization header, or
// from the token query parameter for clients that cannot set headers
// (the browser's EventSource).
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if rest, ok := strings.CutPrefix(auth, "Bearer "); ok {
		return rest
	}
	return r.URL.Query().Get("token")
}

// BearerAuth rejects requests that do not carry the configured token.
// An empty configured token disables authentication entirely.
func BearerAuth(token string) func(http.Handler) http.Handler {
	want := []byte(token)
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := []byte(bearerToken(r))
			if subtle.ConstantTimeCompare(got, want) != 1 {
				WriteError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
