package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

var envKeys = []string{
	configPathEnv,
	"CANVAS_BASE_URL", "CANVAS_API_TOKEN", "CANVAS_TIMEOUT_SECONDS", "CANVAS_PAGE_SIZE",
	"CANVAS_MAX_CONCURRENCY", "CANVAS_VERIFY_TLS", "CANVAS_USER_AGENT", "CANVAS_BUCKET_HINTS",
	"MCP_TRANSPORT", "MCP_HTTP_ADDR", "MCP_HTTP_PATH", "MCP_HTTP_AUTH_TOKEN", "MCP_ALLOWED_ORIGINS",
	"LOG_LEVEL",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("CANVAS_BASE_URL", "https://canvas.example.edu/")
	t.Setenv("CANVAS_API_TOKEN", "secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.APIBaseURL != "https://canvas.example.edu/api/v1" {
		t.Fatalf("APIBaseURL = %q", cfg.APIBaseURL)
	}
	if cfg.Timeout != 20*time.Second || cfg.PageSize != 100 || cfg.MaxConcurrency != 4 {
		t.Fatalf("unexpected numeric defaults: %+v", cfg)
	}
	if !cfg.VerifyTLS || !cfg.BucketHints {
		t.Fatalf("expected TLS verification and bucket hints on by default")
	}
	if cfg.Transport != "stdio" || cfg.HTTPAddr != defaultHTTPAddr || cfg.HTTPPath != "/mcp" {
		t.Fatalf("unexpected transport defaults: %+v", cfg)
	}
	if cfg.UserAgent != defaultUserAgent || cfg.LogLevel != "info" {
		t.Fatalf("unexpected defaults: ua=%q level=%q", cfg.UserAgent, cfg.LogLevel)
	}
}

func TestLoadValidation(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"missing base url", map[string]string{"CANVAS_API_TOKEN": "x"}, "CANVAS_BASE_URL is required"},
		{"missing token", map[string]string{"CANVAS_BASE_URL": "https://c.example"}, "CANVAS_API_TOKEN is required"},
		{"plain http remote", map[string]string{"CANVAS_BASE_URL": "http://c.example", "CANVAS_API_TOKEN": "x"}, "must use https"},
		{"bad page size", map[string]string{"CANVAS_BASE_URL": "https://c.example", "CANVAS_API_TOKEN": "x", "CANVAS_PAGE_SIZE": "500"}, "CANVAS_PAGE_SIZE"},
		{"bad concurrency", map[string]string{"CANVAS_BASE_URL": "https://c.example", "CANVAS_API_TOKEN": "x", "CANVAS_MAX_CONCURRENCY": "0"}, "CANVAS_MAX_CONCURRENCY"},
		{"bad bool", map[string]string{"CANVAS_BASE_URL": "https://c.example", "CANVAS_API_TOKEN": "x", "CANVAS_VERIFY_TLS": "maybe"}, "CANVAS_VERIFY_TLS"},
		{"bad transport", map[string]string{"CANVAS_BASE_URL": "https://c.example", "CANVAS_API_TOKEN": "x", "MCP_TRANSPORT": "grpc"}, "MCP_TRANSPORT"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestLoadAllowsLocalhostHTTP(t *testing.T) {
	clearEnv(t)
	t.Setenv("CANVAS_BASE_URL", "http://localhost:3000")
	t.Setenv("CANVAS_API_TOKEN", "x")
	if _, err := Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
}

func TestLoadYAMLOverlayWithEnvPrecedence(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "canvas-mcp.yaml")
	body := `canvas:
  baseUrl: https://file.example.edu
  apiToken: from-file
  pageSize: 50
  maxConcurrency: 2
  bucketHints: false
mcp:
  transport: http
  httpPath: rpc
  allowedOrigins: ["https://a.example"]
logging:
  level: debug
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(configPathEnv, path)
	t.Setenv("CANVAS_API_TOKEN", "from-env")
	t.Setenv("MCP_ALLOWED_ORIGINS", "https://b.example, https://c.example")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.APIBaseURL != "https://file.example.edu/api/v1" {
		t.Fatalf("APIBaseURL = %q", cfg.APIBaseURL)
	}
	if cfg.APIToken != "from-env" {
		t.Fatalf("env should override file token, got %q", cfg.APIToken)
	}
	if cfg.PageSize != 50 || cfg.MaxConcurrency != 2 || cfg.BucketHints {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.Transport != "http" || cfg.HTTPPath != "/rpc" || cfg.LogLevel != "debug" {
		t.Fatalf("mcp/logging values not applied: %+v", cfg)
	}
	if diff := cmp.Diff([]string{"https://b.example", "https://c.example"}, cfg.AllowedOrigins); diff != "" {
		t.Fatalf("origins mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadRejectsUnreadableFile(t *testing.T) {
	clearEnv(t)
	t.Setenv(configPathEnv, filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := Load(); err == nil || !strings.Contains(err.Error(), configPathEnv) {
		t.Fatalf("expected config path error, got %v", err)
	}
}
