package middleware

import (
	"context"
	"log"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// quietPaths are probe endpoints hit every few seconds; logged only on failure.
var quietPaths = map[string]bool{
	"/live":    true,
	"/ready":   true,
	"/metrics": true,
}

// statusRecorder captures status and body size for the access log.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

func (rec *statusRecorder) Write(b []byte) (int, error) {
	n, err := rec.ResponseWriter.Write(b)
	rec.bytes += int64(n)
	return n, err
}

// logUserKey holds a slot JWTAuth fills in, since it only sees a derived request.
const logUserKey contextKey = "log_user"

type logUser struct{ id string }

func levelFor(status int) string {
	switch {
	case status >= 500:
		return "error"
	case status >= 400:
		return "warn"
	}
	return "info"
}

// LoggingMiddleware writes one key=value access line per request.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		slot := &logUser{}

		next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), logUserKey, slot)))

		if quietPaths[r.URL.Path] && rec.status < 400 {
			return
		}
		user := slot.id
		if user == "" {
			user = "-"
		}
		log.Printf("level=%s method=%s path=%s status=%d duration=%s bytes=%d request_id=%s user=%s ip=%s",
			levelFor(rec.status), r.Method, r.URL.Path, rec.status, time.Since(start).Round(time.Millisecond),
			rec.bytes, chimw.GetReqID(r.Context()), user, r.RemoteAddr)
	})
}
