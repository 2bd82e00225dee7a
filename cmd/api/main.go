package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/bryanwahyu/rxguard/internal/application"
	appai "github.com/bryanwahyu/rxguard/internal/application/ai"
	appauth "github.com/bryanwahyu/rxguard/internal/application/auth"
	appprescriptions "github.com/bryanwahyu/rxguard/internal/application/prescriptions"
	appprofile "github.com/bryanwahyu/rxguard/internal/application/profile"
	"github.com/bryanwahyu/rxguard/internal/config"
	domai "github.com/bryanwahyu/rxguard/internal/domain/ai"
	"github.com/bryanwahyu/rxguard/internal/domain/failures"
	"github.com/bryanwahyu/rxguard/internal/domain/prescriptions"
	"github.com/bryanwahyu/rxguard/internal/domain/users"
	"github.com/bryanwahyu/rxguard/internal/infra/ai/ollama"
	openaiclient "github.com/bryanwahyu/rxguard/internal/infra/ai/openai"
	"github.com/bryanwahyu/rxguard/internal/infra/ai/vision"
	"github.com/bryanwahyu/rxguard/internal/infra/db/memory"
	mysqlp "github.com/bryanwahyu/rxguard/internal/infra/db/mysql"
	"github.com/bryanwahyu/rxguard/internal/infra/db/postgres"
	"github.com/bryanwahyu/rxguard/internal/infra/httpserver"
	minioStore "github.com/bryanwahyu/rxguard/internal/infra/storage"
	"github.com/bryanwahyu/rxguard/internal/middleware"
)

type repositories struct {
	prescriptions prescriptions.Repository
	failures      failures.Repository
	users         users.Repository
	db            *sql.DB // nil for the memory driver
}

func main() {
	// .env optional, env asli tetap menang
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("dotenv: %v", err)
	}

	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	// load config
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// init repos
	repos, err := openRepositories(ctx, cfg)
	if err != nil {
		log.Fatalf("database error: %v", err)
	}
	if repos.db != nil {
		defer repos.db.Close()
	}

	checkers := map[string]middleware.HealthChecker{}
	if repos.db != nil {
		checkers["database"] = &middleware.DatabaseHealthChecker{DB: repos.db}
	}

	// init minio (optional)
	var images prescriptions.ImageStore
	if cfg.Minio.Enabled {
		store, err := minioStore.New(ctx,
			cfg.Minio.Endpoint,
			cfg.Minio.Region,
			cfg.Minio.BucketName,
			cfg.Minio.AccessKey,
			cfg.Minio.SecretKey,
			cfg.Minio.UseSSL,
		)
		if err != nil {
			log.Fatalf("minio init error: %v", err)
		}
		images = store
		checkers["storage"] = middleware.CheckerFunc(store.Healthy)
	}

	// one pooled client for every outbound model call
	httpClient := ollama.NewHTTPClient()
	ollamaClient := ollama.NewClient(httpClient, ollama.Options{
		BaseURL:       cfg.LLM.Ollama.BaseURL,
		Model:         cfg.LLM.Ollama.Model,
		VisionModel:   cfg.LLM.Ollama.VisionModel,
		Timeout:       cfg.LLM.Ollama.Timeout,
		VisionTimeout: cfg.LLM.Ollama.VisionTimeout,
		HealthTimeout: cfg.LLM.Ollama.HealthTimeout,
		Temperature:   cfg.LLM.Ollama.Temperature,
		TopP:          cfg.LLM.Ollama.TopP,
		NumPredict:    cfg.LLM.Ollama.NumPredict,
	})

	var (
		analyzer domai.Analyzer = ollamaClient
		model                   = ollamaClient.Model()
	)
	if cfg.LLM.Provider == "openai" {
		oc := openaiclient.NewClient(httpClient, openaiclient.Options{
			APIKey:      cfg.LLM.OpenAI.APIKey,
			BaseURL:     cfg.LLM.OpenAI.BaseURL,
			Model:       cfg.LLM.OpenAI.Model,
			Timeout:     cfg.LLM.OpenAI.Timeout,
			Temperature: float32(cfg.LLM.Ollama.Temperature),
			TopP:        float32(cfg.LLM.Ollama.TopP),
			JSONMode:    cfg.LLM.OpenAI.JSONMode,
		})
		analyzer, model = oc, oc.Model()
	}

	// vision chain: chat dulu, lalu generate; kalau disabled langsung manual entry
	visionModel := ollamaClient.VisionModel()
	var extractor domai.TextExtractor = vision.ManualEntry{VisionModel: visionModel}
	if cfg.LLM.Vision.Enabled {
		extractor = vision.NewChain(visionModel, ollamaClient.ChatVision(), ollamaClient.GenerateVision())
	}

	aiSvc := appai.NewService(analyzer, cfg.LLM.Provider, model, visionModel, cfg.LLM.Vision.Enabled)
	checkers["llm"] = middleware.CheckerFunc(aiSvc.Healthy)
	warnMissingModels(ctx, cfg, aiSvc, ollamaClient)

	tokens, err := appauth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.ExpiresIn)
	if err != nil {
		log.Fatalf("auth init error: %v", err)
	}

	// init services
	clock := application.SystemClock{}
	rxSvc := &appprescriptions.Service{
		Repo:       repos.prescriptions,
		FailureLog: repos.failures,
		Analyzer:   analyzer,
		Extractor:  extractor,
		Images:     images,
		Clock:      clock,
		Model:      model,
		Suggestion: vision.Suggestion(visionModel),
	}
	authSvc := &appauth.Service{Users: repos.users, Tokens: tokens, Clock: clock}
	profileSvc := &appprofile.Service{Users: repos.users, Clock: clock}

	var limiter *middleware.RateLimiter
	if cfg.RateLimit.Capacity > 0 {
		limiter = middleware.NewRateLimiter(cfg.RateLimit.Capacity, cfg.RateLimit.RefillRate)
		go limiter.Run(ctx)
	}

	// init router
	handler := httpserver.NewRouter(httpserver.Deps{
		Prescriptions:  rxSvc,
		Auth:           authSvc,
		Profile:        profileSvc,
		AI:             aiSvc,
		HealthCheckers: checkers,
		CORSOrigins:    cfg.CORS.Origins,
		RateLimiter:    limiter,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// run server
	go func() {
		log.Printf("server listening on %s provider=%s model=%s db=%s", addr, cfg.LLM.Provider, model, cfg.Database.Driver)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// graceful shutdown
	<-ctx.Done()
	log.Println("shutting down server...")

	ctx2, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

func openRepositories(ctx context.Context, cfg *config.Config) (repositories, error) {
	switch cfg.Database.Driver {
	case "mysql":
		db, err := mysqlp.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			return repositories{}, fmt.Errorf("mysql connect: %w", err)
		}
		return repositories{
			prescriptions: mysqlp.NewPrescriptionRepository(db),
			failures:      mysqlp.NewFailureRepository(db),
			users:         mysqlp.NewUserRepository(db),
			db:            db,
		}, nil
	case "postgres":
		db, err := postgres.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			return repositories{}, fmt.Errorf("postgres connect: %w", err)
		}
		return repositories{
			prescriptions: postgres.NewPrescriptionRepository(db),
			failures:      postgres.NewFailureRepository(db),
			users:         postgres.NewUserRepository(db),
			db:            db,
		}, nil
	default:
		log.Println("database driver=memory, data is lost on restart")
		return repositories{
			prescriptions: memory.NewPrescriptionRepository(),
			failures:      memory.NewFailureRepository(),
			users:         memory.NewUserRepository(),
		}, nil
	}
}

// warnMissingModels logs startup hints; the server runs either way.
func warnMissingModels(ctx context.Context, cfg *config.Config, aiSvc *appai.Service, oc *ollama.Client) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	st := aiSvc.Status(ctx)
	switch {
	case !st.Reachable:
		log.Printf("warning: %s is not reachable, analysis requests will fail until it starts", cfg.LLM.Provider)
	case !st.ModelAvailable:
		log.Printf("warning: model %s not available (ollama pull %s)", st.Model, st.Model)
	}
	if cfg.LLM.Vision.Enabled && !oc.VerifyVisionModelAvailable(ctx) {
		log.Printf("warning: vision model %s not available, image uploads fall back to manual entry (ollama pull %s)",
			oc.VisionModel(), oc.VisionModel())
	}
}
