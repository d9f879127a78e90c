package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/invopop/jsonschema"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// FileEnvVar names the optional YAML file applied beneath environment variables.
const FileEnvVar = "CHATSYNC_CONFIG_FILE"

// Config holds all configuration for the chat sync client.
type Config struct {
	// Service settings
	ServiceName string `env:"SERVICE_NAME" envDefault:"chatsync" json:"service_name"`
	Environment string `env:"ENVIRONMENT" envDefault:"development" json:"environment"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"warn" json:"log_level" jsonschema:"enum=trace,enum=debug,enum=info,enum=warn,enum=error"`
	LogFormat   string `env:"LOG_FORMAT" envDefault:"console" json:"log_format" jsonschema:"enum=console,enum=json"`
	PIILevel    string `env:"PII_LEVEL" envDefault:"hashed" json:"pii_level" jsonschema:"enum=none,enum=hashed,enum=full"`

	// Backend
	APIBaseURL  string        `env:"API_BASE_URL" envDefault:"http://localhost:8080/api" json:"api_base_url" jsonschema:"description=Chat backend base URL"`
	HTTPTimeout time.Duration `env:"HTTP_TIMEOUT" envDefault:"30s" json:"http_timeout"`

	// Circuit breaker around the backend client
	BreakerMaxFailures uint32        `env:"BREAKER_MAX_FAILURES" envDefault:"5" json:"breaker_max_failures"`
	BreakerTimeout     time.Duration `env:"BREAKER_TIMEOUT" envDefault:"30s" json:"breaker_timeout"`

	// Local state
	StateFile string `env:"STATE_FILE" json:"state_file" jsonschema:"description=bbolt file holding the session token and preferences"`

	// Caching
	CacheTTL        time.Duration `env:"CACHE_TTL" envDefault:"5m" json:"cache_ttl" jsonschema:"description=Age after which a loaded conversation list is refetched; 0 disables expiry"`
	RefreshInterval time.Duration `env:"REFRESH_INTERVAL" envDefault:"30s" json:"refresh_interval"`
	ListPageSize    int           `env:"LIST_PAGE_SIZE" envDefault:"50" json:"list_page_size"`

	// OpenTelemetry
	EnableTracing bool   `env:"OTEL_ENABLED" envDefault:"false" json:"otel_enabled"`
	OTLPEndpoint  string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"" json:"otel_exporter_otlp_endpoint"`

	// Prometheus endpoint served by long running commands; empty disables it
	MetricsAddr string `env:"METRICS_ADDR" envDefault:"" json:"metrics_addr"`
}

// Load reads configuration. Precedence from low to high: struct defaults,
// the YAML file named by CHATSYNC_CONFIG_FILE, then environment variables.
func Load() (*Config, error) {
	return LoadFrom(os.Getenv(FileEnvVar), env.ToMap(os.Environ()))
}

// LoadFrom is Load with an explicit YAML path and environment.
func LoadFrom(path string, environ map[string]string) (*Config, error) {
	merged, err := readYAML(path)
	if err != nil {
		return nil, err
	}
	for k, v := range environ {
		merged[k] = v
	}

	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Environment: merged}); err != nil {
		return nil, fmt.Errorf("parse env config: %w", err)
	}
	if strings.TrimSpace(cfg.StateFile) == "" {
		cfg.StateFile = DefaultStateFile()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// readYAML loads a flat YAML document whose keys are the environment variable
// names, in either case. A missing path is not an error.
func readYAML(path string) (map[string]string, error) {
	out := make(map[string]string)
	if strings.TrimSpace(path) == "" {
		return out, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return out, nil
		}
		return nil, fmt.Errorf("read yaml file: %w", err)
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}
	for k, v := range raw {
		if v == nil {
			continue
		}
		out[strings.ToUpper(k)] = fmt.Sprint(v)
	}
	return out, nil
}

// Validate checks values env parsing cannot.
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("API_BASE_URL must be an absolute URL, got %q", c.APIBaseURL)
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive")
	}
	if c.ListPageSize < 1 || c.ListPageSize > 100 {
		return fmt.Errorf("LIST_PAGE_SIZE must be between 1 and 100")
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("CACHE_TTL cannot be negative")
	}
	if c.RefreshInterval <= 0 {
		return fmt.Errorf("REFRESH_INTERVAL must be positive")
	}
	switch strings.ToLower(c.LogFormat) {
	case "console", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be console or json")
	}
	switch strings.ToLower(c.PIILevel) {
	case "none", "hashed", "full":
	default:
		return fmt.Errorf("PII_LEVEL must be none, hashed or full")
	}
	if c.EnableTracing && strings.TrimSpace(c.OTLPEndpoint) == "" {
		return fmt.Errorf("OTEL_EXPORTER_OTLP_ENDPOINT is required when OTEL_ENABLED is true")
	}
	return nil
}

// DefaultStateFile is the per-user location of the local state database.
func DefaultStateFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "chatsync", "state.db")
}

// LoadEnvFiles applies .env files without overriding variables already set.
func LoadEnvFiles(paths ...string) {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to load %s: %v\n", path, err)
			}
		}
	}
}

// Schema returns the JSON schema of the configuration file.
func Schema() ([]byte, error) {
	reflector := &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
		ExpandedStruct:            true,
	}
	schema := reflector.Reflect(&Config{})
	schema.Title = "chatsync configuration"
	schema.Description = "Keys may also be given as upper-case environment variables"
	return json.MarshalIndent(schema, "", "  ")
}
