package httpserver

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	appauth "github.com/bryanwahyu/rxguard/internal/application/auth"
	appprescriptions "github.com/bryanwahyu/rxguard/internal/application/prescriptions"
	domai "github.com/bryanwahyu/rxguard/internal/domain/ai"
	"github.com/bryanwahyu/rxguard/internal/domain/prescriptions"
	"github.com/bryanwahyu/rxguard/internal/domain/users"
	"github.com/bryanwahyu/rxguard/internal/middleware"
)

// POST /auth/register
func (r *Router) handleRegister(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		Name        string `json:"name"`
		Email       string `json:"email"`
		Password    string `json:"password"`
		Phone       string `json:"phone"`
		DateOfBirth string `json:"dateOfBirth"`
		Address     string `json:"address"`
		City        string `json:"city"`
		State       string `json:"state"`
		ZipCode     string `json:"zipCode"`
		Country     string `json:"country"`
	}
	if err := decodeJSON(req, &body); err != nil {
		return err
	}
	body.Name = middleware.SanitizeString(body.Name)
	if body.Name == "" {
		return badRequest("name is required")
	}
	if err := middleware.ValidateEmail(body.Email); err != nil {
		return badRequest(err.Error())
	}
	if err := middleware.ValidatePassword(body.Password); err != nil {
		return badRequest(err.Error())
	}

	sess, err := r.authSvc.Register(req.Context(), appauth.RegisterCommand{
		Name:        body.Name,
		Email:       body.Email,
		Password:    body.Password,
		Phone:       middleware.SanitizeString(body.Phone),
		DateOfBirth: middleware.SanitizeString(body.DateOfBirth),
		Address:     middleware.SanitizeString(body.Address),
		City:        middleware.SanitizeString(body.City),
		State:       middleware.SanitizeString(body.State),
		ZipCode:     middleware.SanitizeString(body.ZipCode),
		Country:     middleware.SanitizeString(body.Country),
	})
	if err != nil {
		return err
	}
	return respond(w, http.StatusCreated, "User registered successfully", sess)
}

// POST /auth/login
func (r *Router) handleLogin(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(req, &body); err != nil {
		return err
	}
	if err := middleware.ValidateEmail(body.Email); err != nil {
		return badRequest(err.Error())
	}
	if body.Password == "" {
		return badRequest("password is required")
	}

	sess, err := r.authSvc.Login(req.Context(), body.Email, body.Password)
	if err != nil {
		return err
	}
	return respond(w, http.StatusOK, "Login successful", sess)
}

// GET /profile
func (r *Router) handleGetProfile(w http.ResponseWriter, req *http.Request) error {
	u, err := r.profileSvc.Get(req.Context(), middleware.GetUserFromContext(req.Context()))
	if err != nil {
		return err
	}
	return respond(w, http.StatusOK, "Profile retrieved successfully", u)
}

// PUT /profile
// Body: any subset of {name, phone, dateOfBirth, address, city, state, zipCode, country}
func (r *Router) handleUpdateProfile(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		Name        *string `json:"name"`
		Phone       *string `json:"phone"`
		DateOfBirth *string `json:"dateOfBirth"`
		Address     *string `json:"address"`
		City        *string `json:"city"`
		State       *string `json:"state"`
		ZipCode     *string `json:"zipCode"`
		Country     *string `json:"country"`
	}
	if err := decodeJSON(req, &body); err != nil {
		return err
	}
	if body.Name != nil {
		name := middleware.SanitizeString(*body.Name)
		if name == "" {
			return badRequest("name cannot be empty")
		}
		body.Name = &name
	}

	u, err := r.profileSvc.Update(req.Context(), middleware.GetUserFromContext(req.Context()), users.ProfileUpdate{
		Name:        body.Name,
		Phone:       body.Phone,
		DateOfBirth: body.DateOfBirth,
		Address:     body.Address,
		City:        body.City,
		State:       body.State,
		ZipCode:     body.ZipCode,
		Country:     body.Country,
	})
	if err != nil {
		return err
	}
	return respond(w, http.StatusOK, "Profile updated successfully", u)
}

// POST /prescription/analyze
// Body: {"rawText": "...", "uploadedImagePath": "..."}
func (r *Router) handleAnalyze(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		RawText           string `json:"rawText"`
		UploadedImagePath string `json:"uploadedImagePath"`
	}
	if err := decodeJSON(req, &body); err != nil {
		return err
	}

	middleware.IncrementAnalyses()
	middleware.IncrementAnalysesRunning()
	defer middleware.DecrementAnalysesRunning()

	res, err := r.rxSvc.AnalyzePrescription(req.Context(), appprescriptions.AnalyzeCommand{
		UserID:   middleware.GetUserFromContext(req.Context()),
		RawText:  body.RawText,
		ImageRef: body.UploadedImagePath,
	})
	if err != nil {
		middleware.IncrementAnalysesFailed()
		return err
	}
	return respond(w, http.StatusOK, "Prescription analyzed successfully", res)
}

// POST /prescription/upload (multipart, field "image")
func (r *Router) handleUpload(w http.ResponseWriter, req *http.Request) error {
	req.Body = http.MaxBytesReader(w, req.Body, r.maxUpload+(1<<20))
	if err := req.ParseMultipartForm(r.maxUpload); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return badRequest("image too large")
		}
		return badRequest("expected multipart form with an image field")
	}
	defer func() { _ = req.MultipartForm.RemoveAll() }()

	file, header, err := req.FormFile("image")
	if err != nil {
		return badRequest("no image file provided")
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, r.maxUpload+1))
	if err != nil {
		return err
	}
	contentType, err := middleware.ValidateImage(data, r.maxUpload)
	if err != nil {
		return badRequest(err.Error())
	}

	middleware.IncrementExtractions()
	middleware.IncrementAnalysesRunning()
	defer middleware.DecrementAnalysesRunning()

	res, err := r.rxSvc.AnalyzeImage(req.Context(), appprescriptions.AnalyzeImageCommand{
		UserID:      middleware.GetUserFromContext(req.Context()),
		Image:       data,
		Filename:    header.Filename,
		ContentType: contentType,
	})
	if err != nil {
		var ext *domai.ExtractionError
		if errors.As(err, &ext) || errors.Is(err, domai.ErrNoTextExtracted) {
			middleware.IncrementExtractionsFailed()
		} else {
			middleware.IncrementAnalysesFailed()
		}
		return err
	}
	middleware.IncrementAnalyses()
	return respond(w, http.StatusOK, "Prescription image analyzed successfully", res)
}

// GET /prescription/history?limit=20
func (r *Router) handleHistory(w http.ResponseWriter, req *http.Request) error {
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))

	list, err := r.rxSvc.History(req.Context(), middleware.GetUserFromContext(req.Context()), middleware.ValidateLimit(limit))
	if err != nil {
		return err
	}
	return respond(w, http.StatusOK, "Prescription history retrieved successfully", list)
}

// GET /prescription/page?page=1&page_size=20
func (r *Router) handlePage(w http.ResponseWriter, req *http.Request) error {
	page, _ := strconv.Atoi(req.URL.Query().Get("page"))
	size, _ := strconv.Atoi(req.URL.Query().Get("page_size"))

	res, err := r.rxSvc.Page(req.Context(), middleware.GetUserFromContext(req.Context()), page, middleware.ValidateLimit(size))
	if err != nil {
		return err
	}
	return respond(w, http.StatusOK, "Prescriptions retrieved successfully", res)
}

// GET /prescription/summary?days=7
func (r *Router) handleSummary(w http.ResponseWriter, req *http.Request) error {
	days, _ := strconv.Atoi(req.URL.Query().Get("days"))

	sum, err := r.rxSvc.Summary(req.Context(), middleware.GetUserFromContext(req.Context()), middleware.ValidateDays(days))
	if err != nil {
		return err
	}
	return respond(w, http.StatusOK, "Prescription summary retrieved successfully", sum)
}

// GET /prescription/failures?limit=20
func (r *Router) handleFailures(w http.ResponseWriter, req *http.Request) error {
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))

	list, err := r.rxSvc.Failures(req.Context(), middleware.GetUserFromContext(req.Context()), middleware.ValidateLimit(limit))
	if err != nil {
		return err
	}
	return respond(w, http.StatusOK, "Failures retrieved successfully", list)
}

// GET /prescription/{id}
func (r *Router) handleGet(w http.ResponseWriter, req *http.Request) error {
	id := chi.URLParam(req, "id")
	if err := middleware.ValidatePrescriptionID(id); err != nil {
		return badRequest(err.Error())
	}

	p, err := r.rxSvc.Get(req.Context(), middleware.GetUserFromContext(req.Context()), prescriptions.ID(id))
	if err != nil {
		return err
	}
	return respond(w, http.StatusOK, "Prescription retrieved successfully", p)
}

// GET /ai/status
func (r *Router) handleAIStatus(w http.ResponseWriter, req *http.Request) error {
	return respond(w, http.StatusOK, "AI status retrieved successfully", r.aiSvc.Status(req.Context()))
}
