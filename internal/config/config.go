package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"readTimeout"`
		WriteTimeout    time.Duration `yaml:"writeTimeout"`
		ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
		MaxUploadBytes  int64         `yaml:"maxUploadBytes"`
	} `yaml:"server"`

	Database struct {
		Driver   string `yaml:"driver"` // memory | mysql | postgres
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
		SSLMode  string `yaml:"sslMode"`
	} `yaml:"database"`

	Minio struct {
		Enabled    bool   `yaml:"enabled"`
		Endpoint   string `yaml:"endpoint"`
		AccessKey  string `yaml:"accessKey"`
		SecretKey  string `yaml:"secretKey"`
		BucketName string `yaml:"bucketName"`
		Region     string `yaml:"region"`
		UseSSL     bool   `yaml:"useSSL"`
	} `yaml:"minio"`

	LLM struct {
		Provider string `yaml:"provider"` // ollama | openai
		Ollama   struct {
			BaseURL       string        `yaml:"baseURL"`
			Model         string        `yaml:"model"`
			VisionModel   string        `yaml:"visionModel"`
			Timeout       time.Duration `yaml:"timeout"`
			VisionTimeout time.Duration `yaml:"visionTimeout"`
			HealthTimeout time.Duration `yaml:"healthTimeout"`
			Temperature   float64       `yaml:"temperature"`
			TopP          float64       `yaml:"topP"`
			NumPredict    int           `yaml:"numPredict"`
		} `yaml:"ollama"`
		OpenAI struct {
			APIKey   string        `yaml:"apiKey"`
			BaseURL  string        `yaml:"baseURL"`
			Model    string        `yaml:"model"`
			Timeout  time.Duration `yaml:"timeout"`
			JSONMode bool          `yaml:"jsonMode"`
		} `yaml:"openai"`
		Vision struct {
			Enabled bool `yaml:"enabled"`
		} `yaml:"vision"`
	} `yaml:"llm"`

	Auth struct {
		JWTSecret string        `yaml:"jwtSecret"`
		ExpiresIn time.Duration `yaml:"expiresIn"`
	} `yaml:"auth"`

	CORS struct {
		Origins []string `yaml:"origins"`
	} `yaml:"cors"`

	RateLimit struct {
		Capacity   int `yaml:"capacity"` // 0 disables the limiter
		RefillRate int `yaml:"refillRate"`
	} `yaml:"rateLimit"`
}

// Default returns the configuration used when no file or env sets a value.
func Default() *Config {
	var c Config
	c.Server.Port = 8080
	c.Server.ReadTimeout = 15 * time.Second
	c.Server.ShutdownTimeout = 10 * time.Second
	c.Server.MaxUploadBytes = 10 << 20

	c.Database.Driver = "memory"

	c.LLM.Provider = "ollama"
	c.LLM.Ollama.BaseURL = "http://localhost:11434"
	c.LLM.Ollama.Model = "qwen2.5:1.5b"
	c.LLM.Ollama.VisionModel = "llava:latest"
	c.LLM.Ollama.Timeout = 60 * time.Second
	c.LLM.Ollama.VisionTimeout = 120 * time.Second
	c.LLM.Ollama.HealthTimeout = 5 * time.Second
	c.LLM.Ollama.Temperature = 0.1
	c.LLM.Ollama.TopP = 0.9
	c.LLM.Ollama.NumPredict = 2048
	c.LLM.OpenAI.Timeout = 60 * time.Second
	c.LLM.Vision.Enabled = true

	c.Auth.ExpiresIn = 168 * time.Hour
	c.CORS.Origins = []string{"*"}
	c.RateLimit.RefillRate = 1

	c.Server.WriteTimeout = c.PipelineBudget() + writeHeadroom
	return &c
}

// writeHeadroom covers decoding, persistence and response encoding on top
// of the model calls.
const writeHeadroom = 30 * time.Second

// PipelineBudget is the longest an image upload can spend waiting on models:
// both vision attempts with their own budget, then the text analysis.
func (c *Config) PipelineBudget() time.Duration {
	text := c.LLM.Ollama.Timeout
	if c.LLM.Provider == "openai" {
		text = c.LLM.OpenAI.Timeout
	}
	if !c.LLM.Vision.Enabled {
		return text
	}
	return 2*c.LLM.Ollama.VisionTimeout + text
}

// Load baca file config.yaml di atas default, lalu override dari env.
// File yang tidak ada bukan error.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	// write deadline tidak boleh memotong response upload yang masih jalan
	cfg.Server.WriteTimeout = max(cfg.Server.WriteTimeout, cfg.PipelineBudget()+writeHeadroom)
	return cfg, cfg.Validate()
}

// Validate rejects values the server cannot start with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "memory", "mysql", "postgres":
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
	switch c.LLM.Provider {
	case "ollama":
	case "openai":
		if c.LLM.OpenAI.APIKey == "" {
			return errors.New("llm.openai.apiKey is required for the openai provider")
		}
	default:
		return fmt.Errorf("unknown llm provider %q", c.LLM.Provider)
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwtSecret (JWT_SECRET) is required")
	}
	if c.Auth.ExpiresIn <= 0 {
		return errors.New("auth.expiresIn must be positive")
	}
	return nil
}

type lookupFunc func(string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	var errs []error
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}
	flag := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}

	num("PORT", &c.Server.Port)

	str("DB_DRIVER", &c.Database.Driver)
	str("DB_HOST", &c.Database.Host)
	num("DB_PORT", &c.Database.Port)
	str("DB_USER", &c.Database.User)
	str("DB_PASSWORD", &c.Database.Password)
	str("DB_NAME", &c.Database.Name)

	flag("MINIO_ENABLED", &c.Minio.Enabled)
	str("MINIO_ENDPOINT", &c.Minio.Endpoint)
	str("MINIO_ACCESS_KEY", &c.Minio.AccessKey)
	str("MINIO_SECRET_KEY", &c.Minio.SecretKey)
	str("MINIO_BUCKET", &c.Minio.BucketName)

	str("LLM_PROVIDER", &c.LLM.Provider)
	str("OLLAMA_BASE_URL", &c.LLM.Ollama.BaseURL)
	str("OLLAMA_MODEL", &c.LLM.Ollama.Model)
	str("OLLAMA_VISION_MODEL", &c.LLM.Ollama.VisionModel)
	dur("OLLAMA_TIMEOUT", &c.LLM.Ollama.Timeout)
	flag("VISION_ENABLED", &c.LLM.Vision.Enabled)
	str("OPENAI_API_KEY", &c.LLM.OpenAI.APIKey)
	str("OPENAI_BASE_URL", &c.LLM.OpenAI.BaseURL)
	str("OPENAI_MODEL", &c.LLM.OpenAI.Model)

	str("JWT_SECRET", &c.Auth.JWTSecret)
	dur("JWT_EXPIRES_IN", &c.Auth.ExpiresIn)

	if v, ok := lookup("CORS_ORIGIN"); ok && v != "" {
		c.CORS.Origins = splitList(v)
	}
	num("RATE_LIMIT_CAPACITY", &c.RateLimit.Capacity)

	c.LLM.Ollama.BaseURL = strings.TrimRight(c.LLM.Ollama.BaseURL, "/")
	return errors.Join(errs...)
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Helper untuk build DSN MySQL
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}

// PostgresDSN builds a lib/pq connection string
func (c *Config) PostgresDSN() string {
	sslMode := c.Database.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		sslMode,
	)
}
