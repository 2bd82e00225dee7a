package httpserver

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	appai "github.com/bryanwahyu/rxguard/internal/application/ai"
	appauth "github.com/bryanwahyu/rxguard/internal/application/auth"
	appprescriptions "github.com/bryanwahyu/rxguard/internal/application/prescriptions"
	appprofile "github.com/bryanwahyu/rxguard/internal/application/profile"
	domai "github.com/bryanwahyu/rxguard/internal/domain/ai"
	"github.com/bryanwahyu/rxguard/internal/domain/prescriptions"
	"github.com/bryanwahyu/rxguard/internal/domain/users"
	"github.com/bryanwahyu/rxguard/internal/middleware"
)

// Deps are the services and settings the HTTP layer needs.
type Deps struct {
	Prescriptions *appprescriptions.Service
	Auth          *appauth.Service
	Profile       *appprofile.Service
	AI            *appai.Service

	HealthCheckers map[string]middleware.HealthChecker
	CORSOrigins    []string
	RateLimiter    *middleware.RateLimiter // nil disables rate limiting
	MaxUploadBytes int64
}

type Router struct {
	rxSvc      *appprescriptions.Service
	authSvc    *appauth.Service
	profileSvc *appprofile.Service
	aiSvc      *appai.Service
	maxUpload  int64
}

func NewRouter(d Deps) http.Handler {
	r := &Router{
		rxSvc:      d.Prescriptions,
		authSvc:    d.Auth,
		profileSvc: d.Profile,
		aiSvc:      d.AI,
		maxUpload:  d.MaxUploadBytes,
	}
	if r.maxUpload <= 0 {
		r.maxUpload = 10 << 20
	}

	mux := chi.NewRouter()
	mux.Use(chimw.RequestID)
	mux.Use(chimw.Recoverer)
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: d.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	}))
	mux.Use(middleware.LoggingMiddleware)
	mux.Use(middleware.MetricsMiddleware)

	checkers := d.HealthCheckers
	if checkers == nil {
		checkers = map[string]middleware.HealthChecker{}
	}
	mux.Get("/health", middleware.HealthHandler(checkers))
	mux.Get("/live", middleware.LivenessHandler)
	mux.Get("/ready", middleware.ReadinessHandler)
	mux.Get("/metrics", middleware.MetricsHandler)

	mux.Route("/auth", func(rt chi.Router) {
		rt.Post("/register", r.wrap(r.handleRegister))
		rt.Post("/login", r.wrap(r.handleLogin))
	})

	mux.Get("/ai/status", r.wrap(r.handleAIStatus))

	mux.Group(func(rt chi.Router) {
		rt.Use(middleware.JWTAuth(d.Auth))

		rt.Get("/profile", r.wrap(r.handleGetProfile))
		rt.Put("/profile", r.wrap(r.handleUpdateProfile))

		rt.Route("/prescription", func(rt chi.Router) {
			rt.With(middleware.RateLimit(d.RateLimiter)).Post("/analyze", r.wrap(r.handleAnalyze))
			rt.With(middleware.RateLimit(d.RateLimiter)).Post("/upload", r.wrap(r.handleUpload))
			rt.Get("/history", r.wrap(r.handleHistory))
			rt.Get("/page", r.wrap(r.handlePage))
			rt.Get("/summary", r.wrap(r.handleSummary))
			rt.Get("/failures", r.wrap(r.handleFailures))
			rt.Get("/{id}", r.wrap(r.handleGet))
		})
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

// validationError is a 400 raised by the HTTP layer itself.
type validationError struct{ msg string }

func (e validationError) Error() string { return e.msg }

func badRequest(msg string) error { return validationError{msg: msg} }

type errorBody struct {
	Error      string `json:"error"`
	Code       string `json:"code"`
	Suggestion string `json:"suggestion,omitempty"`
}

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			status, body := errorResponse(err)
			if status >= http.StatusInternalServerError {
				log.Printf("http: %s %s status=%d request_id=%s err=%v",
					req.Method, req.URL.Path, status, chimw.GetReqID(req.Context()), err)
			}
			writeJSON(w, status, body)
		}
	}
}

// errorResponse maps a handler error to status and body.
func errorResponse(err error) (int, errorBody) {
	var ext *domai.ExtractionError
	if errors.As(err, &ext) {
		status, body := http.StatusServiceUnavailable, errorBody{Error: ext.Error(), Code: string(domai.KindManualEntry)}
		if ext.Cause != nil {
			status, body = errorResponse(ext.Cause)
		}
		if ext.Suggestion != "" {
			body.Suggestion = ext.Suggestion
		}
		return status, body
	}

	var verr validationError
	switch {
	case errors.As(err, &verr), errors.Is(err, appauth.ErrMissingFields):
		return http.StatusBadRequest, errorBody{Error: err.Error(), Code: "validation_error"}
	case errors.Is(err, appauth.ErrInvalidCredentials), errors.Is(err, appauth.ErrInvalidToken):
		return http.StatusUnauthorized, errorBody{Error: err.Error(), Code: "unauthorized"}
	case errors.Is(err, prescriptions.ErrNotFound), errors.Is(err, users.ErrNotFound):
		return http.StatusNotFound, errorBody{Error: err.Error(), Code: "not_found"}
	case errors.Is(err, users.ErrEmailTaken):
		return http.StatusConflict, errorBody{Error: err.Error(), Code: "conflict"}
	}

	kind := domai.KindOf(err)
	body := errorBody{Error: err.Error(), Code: string(kind), Suggestion: domai.HintOf(err)}
	switch kind {
	case domai.KindInputRequired, domai.KindNoTextExtracted:
		return http.StatusBadRequest, body
	case domai.KindModelNotInstalled:
		return http.StatusNotFound, body
	case domai.KindQuotaExceeded:
		return http.StatusTooManyRequests, body
	case domai.KindServiceNotRunning, domai.KindTimeout, domai.KindUpstreamServer,
		domai.KindAPI, domai.KindEmptyResponse, domai.KindManualEntry:
		return http.StatusServiceUnavailable, body
	}
	return http.StatusInternalServerError, errorBody{Error: "internal server error", Code: "internal_error"}
}

// success envelope
type envelope struct {
	Message string `json:"message"`
	Data    any    `json:"data"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("http: encode response: %v", err)
	}
}

func respond(w http.ResponseWriter, status int, message string, data any) error {
	writeJSON(w, status, envelope{Message: message, Data: data})
	return nil
}

func decodeJSON(req *http.Request, dst any) error {
	if err := json.NewDecoder(req.Body).Decode(dst); err != nil {
		return badRequest("invalid JSON body")
	}
	return nil
}
