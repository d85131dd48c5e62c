package config

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	BaseURL        *url.URL
	APIToken       string
	Timeout        time.Duration
	UserAgent      string
	VerifyTLS      bool
	PageSize       int
	MaxConcurrency int
	BucketHints    bool
	APIBaseURL     string
	Transport      string
	HTTPAddr       string
	HTTPPath       string
	HTTPAuthToken  string
	AllowedOrigins []string
	LogLevel       string
	ServerName     string
	ServerVersion  string
	Protocol       string
}

// fileConfig is the optional YAML overlay named by CANVAS_MCP_CONFIG.
// Environment variables win over file values.
type fileConfig struct {
	Canvas struct {
		BaseURL        string `yaml:"baseUrl"`
		APIToken       string `yaml:"apiToken"`
		TimeoutSeconds int    `yaml:"timeoutSeconds"`
		UserAgent      string `yaml:"userAgent"`
		VerifyTLS      *bool  `yaml:"verifyTls"`
		PageSize       int    `yaml:"pageSize"`
		MaxConcurrency int    `yaml:"maxConcurrency"`
		BucketHints    *bool  `yaml:"bucketHints"`
	} `yaml:"canvas"`
	MCP struct {
		Transport      string   `yaml:"transport"`
		HTTPAddr       string   `yaml:"httpAddr"`
		HTTPPath       string   `yaml:"httpPath"`
		HTTPAuthToken  string   `yaml:"httpAuthToken"`
		AllowedOrigins []string `yaml:"allowedOrigins"`
	} `yaml:"mcp"`
	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

const (
	configPathEnv = "CANVAS_MCP_CONFIG"

	defaultTimeoutSeconds = 20
	defaultUserAgent      = "canvas-mcp/0.1"
	defaultPageSize       = 100
	maxPageSize           = 100
	defaultConcurrency    = 4
	defaultHTTPAddr       = "127.0.0.1:8080"
	defaultHTTPPath       = "/mcp"
)

// Load reads an optional .env file, then the optional YAML file, then the
// environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var file fileConfig
	if path := strings.TrimSpace(os.Getenv(configPathEnv)); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read %s: %w", configPathEnv, err)
		}
		if err := yaml.Unmarshal(raw, &file); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", configPathEnv, err)
		}
	}
	return fromSources(file)
}

func fromSources(file fileConfig) (Config, error) {
	baseRaw := envOr("CANVAS_BASE_URL", file.Canvas.BaseURL)
	if baseRaw == "" {
		return Config{}, errors.New("CANVAS_BASE_URL is required")
	}

	baseURL, err := url.Parse(baseRaw)
	if err != nil {
		return Config{}, fmt.Errorf("parse CANVAS_BASE_URL: %w", err)
	}
	if baseURL.Scheme == "" || baseURL.Host == "" {
		return Config{}, errors.New("CANVAS_BASE_URL must include scheme and host")
	}
	if err := validateScheme(baseURL); err != nil {
		return Config{}, err
	}

	token := envOr("CANVAS_API_TOKEN", file.Canvas.APIToken)
	if token == "" {
		return Config{}, errors.New("CANVAS_API_TOKEN is required")
	}

	timeoutSeconds, err := readIntEnv("CANVAS_TIMEOUT_SECONDS", orInt(file.Canvas.TimeoutSeconds, defaultTimeoutSeconds))
	if err != nil {
		return Config{}, err
	}
	if timeoutSeconds <= 0 {
		return Config{}, errors.New("CANVAS_TIMEOUT_SECONDS must be > 0")
	}

	pageSize, err := readIntEnv("CANVAS_PAGE_SIZE", orInt(file.Canvas.PageSize, defaultPageSize))
	if err != nil {
		return Config{}, err
	}
	if pageSize <= 0 || pageSize > maxPageSize {
		return Config{}, fmt.Errorf("CANVAS_PAGE_SIZE must be between 1 and %d", maxPageSize)
	}

	concurrency, err := readIntEnv("CANVAS_MAX_CONCURRENCY", orInt(file.Canvas.MaxConcurrency, defaultConcurrency))
	if err != nil {
		return Config{}, err
	}
	if concurrency <= 0 {
		return Config{}, errors.New("CANVAS_MAX_CONCURRENCY must be > 0")
	}

	verifyTLS, err := readBoolEnv("CANVAS_VERIFY_TLS", orBool(file.Canvas.VerifyTLS, true))
	if err != nil {
		return Config{}, err
	}

	bucketHints, err := readBoolEnv("CANVAS_BUCKET_HINTS", orBool(file.Canvas.BucketHints, true))
	if err != nil {
		return Config{}, err
	}

	transport := strings.ToLower(envOr("MCP_TRANSPORT", file.MCP.Transport))
	switch transport {
	case "":
		transport = "stdio"
	case "stdio", "http", "streamable-http":
	default:
		return Config{}, fmt.Errorf("MCP_TRANSPORT must be stdio or http, got %q", transport)
	}

	httpPath := envOr("MCP_HTTP_PATH", file.MCP.HTTPPath)
	if httpPath == "" {
		httpPath = defaultHTTPPath
	}
	if !strings.HasPrefix(httpPath, "/") {
		httpPath = "/" + httpPath
	}

	origins := file.MCP.AllowedOrigins
	if raw := strings.TrimSpace(os.Getenv("MCP_ALLOWED_ORIGINS")); raw != "" {
		origins = splitList(raw)
	}

	baseURL.Path = strings.TrimRight(baseURL.Path, "/")
	apiBase := strings.TrimRight(baseURL.String(), "/") + "/api/v1"

	cfg := Config{
		BaseURL:        baseURL,
		APIToken:       token,
		Timeout:        time.Duration(timeoutSeconds) * time.Second,
		UserAgent:      firstNonEmpty(envOr("CANVAS_USER_AGENT", file.Canvas.UserAgent), defaultUserAgent),
		VerifyTLS:      verifyTLS,
		PageSize:       pageSize,
		MaxConcurrency: concurrency,
		BucketHints:    bucketHints,
		APIBaseURL:     apiBase,
		Transport:      transport,
		HTTPAddr:       firstNonEmpty(envOr("MCP_HTTP_ADDR", file.MCP.HTTPAddr), defaultHTTPAddr),
		HTTPPath:       httpPath,
		HTTPAuthToken:  envOr("MCP_HTTP_AUTH_TOKEN", file.MCP.HTTPAuthToken),
		AllowedOrigins: origins,
		LogLevel:       firstNonEmpty(envOr("LOG_LEVEL", file.Logging.Level), "info"),
		ServerName:     "canvas-mcp",
		ServerVersion:  "0.1.0",
		Protocol:       "2025-06-18",
	}
	return cfg, nil
}

func NewHTTPClient(cfg Config) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{MinVersion: tls.VersionTLS12, InsecureSkipVerify: !cfg.VerifyTLS}
	return &http.Client{
		Timeout:   cfg.Timeout,
		Transport: transport,
	}
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return strings.TrimSpace(fallback)
}

func readIntEnv(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", key)
	}
	return v, nil
}

func readBoolEnv(key string, fallback bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s must be true/false", key)
	}
	return v, nil
}

func orInt(v, fallback int) int {
	if v != 0 {
		return v
	}
	return fallback
}

func orBool(v *bool, fallback bool) bool {
	if v != nil {
		return *v
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func validateScheme(u *url.URL) error {
	if u.Scheme == "https" {
		return nil
	}
	if u.Scheme != "http" {
		return errors.New("CANVAS_BASE_URL must use https (or http for localhost)")
	}
	host := strings.ToLower(u.Hostname())
	if host == "localhost" || host == "127.0.0.1" || host == "::1" {
		return nil
	}
	return errors.New("CANVAS_BASE_URL must use https unless pointing to localhost")
}
