// Package config handles loading and validating cloudbase-mcp configuration.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

func init() {
	// Load .env file if it exists
	_ = godotenv.Load()
}

// Config is the root configuration for cloudbase-mcp.
type Config struct {
	Server        ServerConfig         `json:"server" yaml:"server"`
	CloudBase     *CloudBaseConfig     `json:"cloudbase,omitempty" yaml:"cloudbase,omitempty"` // nil = resolve credentials and env id at call time
	Plugins       PluginsConfig        `json:"plugins" yaml:"plugins"`
	Auth          AuthConfig           `json:"auth" yaml:"auth"`
	Setup         SetupConfig          `json:"setup" yaml:"setup"`
	RateLimit     *RateLimitConfig     `json:"rate_limit,omitempty" yaml:"rate_limit,omitempty"`       // nil = unlimited
	Observability *ObservabilityConfig `json:"observability,omitempty" yaml:"observability,omitempty"` // nil = observability disabled
	Secrets       *SecretsConfig       `json:"secrets,omitempty" yaml:"secrets,omitempty"`             // Backends for vault:// references in the cloudbase block.
	IDE           string               `json:"ide,omitempty" yaml:"ide,omitempty"`                     // Calling assistant, e.g. "cursor", "codebuddy".
	Locale        string               `json:"locale,omitempty" yaml:"locale,omitempty"`               // "en" (default) or "zh".
}

// ServerConfig controls the tool-protocol server.
type ServerConfig struct {
	Name         string `json:"name" yaml:"name"`                   // Default: "cloudbase-mcp".
	Transport    string `json:"transport" yaml:"transport"`         // "stdio" (default) or "http".
	ListenAddr   string `json:"listen_addr" yaml:"listen_addr"`     // HTTP transport only. Default: "127.0.0.1:8080".
	EndpointPath string `json:"endpoint_path" yaml:"endpoint_path"` // HTTP transport only. Default: "/mcp".

	// APIKeys are accepted as bearer tokens on the HTTP endpoint. Empty
	// means no authentication, which is only sensible on loopback.
	APIKeys []string `json:"api_keys,omitempty" yaml:"api_keys,omitempty"`
}

// CloudBaseConfig is a fully explicit client configuration. When present it
// bypasses credential and environment resolution entirely.
type CloudBaseConfig struct {
	SecretID     string         `json:"secret_id" yaml:"secret_id"`
	SecretKey    string         `json:"secret_key" yaml:"secret_key"`
	SessionToken string         `json:"token,omitempty" yaml:"token,omitempty"`
	EnvID        string         `json:"env_id,omitempty" yaml:"env_id,omitempty"`
	Region       string         `json:"region,omitempty" yaml:"region,omitempty"`
	Proxy        string         `json:"proxy,omitempty" yaml:"proxy,omitempty"`
	Extra        map[string]any `json:"extra,omitempty" yaml:"extra,omitempty"` // Forwarded verbatim to the client.
}

// PluginsConfig holds the enable/disable lists passed to the plugin registry.
// Both are merged with CLOUDBASE_MCP_PLUGINS_ENABLED / CLOUDBASE_MCP_PLUGINS_DISABLED.
type PluginsConfig struct {
	Enabled  []string `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Disabled []string `json:"disabled,omitempty" yaml:"disabled,omitempty"`
}

// AuthConfig configures the interactive browser sign-in.
type AuthConfig struct {
	BaseURL       string `json:"base_url,omitempty" yaml:"base_url,omitempty"` // Authorization page. Default: DefaultAuthBaseURL.
	FromLoginPage bool   `json:"from_login_page" yaml:"from_login_page"`       // Route through the CloudBase login page.
	NoBrowser     bool   `json:"no_browser" yaml:"no_browser"`                 // Print the URL instead of opening a browser.
}

// SetupConfig configures automatic environment setup.
type SetupConfig struct {
	SelectionTimeoutSeconds int  `json:"selection_timeout_seconds" yaml:"selection_timeout_seconds"` // Default: 600.
	SkipServiceInit         bool `json:"skip_service_init" yaml:"skip_service_init"`                 // Fail instead of initializing a not yet enabled CloudBase service.
	SkipEnvCreation         bool `json:"skip_env_creation" yaml:"skip_env_creation"`                 // Fail instead of creating an environment when the account has none.

	// EnvAlias names the environment created for an account that has none.
	// Default: "cloudbase-mcp".
	EnvAlias string `json:"env_alias,omitempty" yaml:"env_alias,omitempty"`
}

// SelectionTimeout returns how long the interactive environment picker waits.
func (s SetupConfig) SelectionTimeout() time.Duration {
	if s.SelectionTimeoutSeconds > 0 {
		return time.Duration(s.SelectionTimeoutSeconds) * time.Second
	}
	return 600 * time.Second
}

// SecretsConfig configures secret backends beyond env:// and file://.
type SecretsConfig struct {
	Vault *VaultConfig `json:"vault,omitempty" yaml:"vault,omitempty"`
}

// VaultConfig configures a HashiCorp Vault KV v2 backend. VAULT_ADDR,
// VAULT_TOKEN and VAULT_NAMESPACE override the file values.
type VaultConfig struct {
	Address        string `json:"address" yaml:"address"`
	Token          string `json:"token,omitempty" yaml:"token,omitempty"`
	Namespace      string `json:"namespace,omitempty" yaml:"namespace,omitempty"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty" yaml:"timeout_seconds,omitempty"` // Default: 5.
	TLSSkipVerify  bool   `json:"tls_skip_verify,omitempty" yaml:"tls_skip_verify,omitempty"`
}

// RateLimitConfig configures per-tool call limits.
type RateLimitConfig struct {
	RequestsPerMinute int `json:"requests_per_minute" yaml:"requests_per_minute"` // 0 = unlimited.
	BurstSize         int `json:"burst_size" yaml:"burst_size"`                   // 0 = RequestsPerMinute.
}

// ObservabilityConfig configures metrics, tracing and health checks.
// When nil, all observability features are disabled with zero overhead.
type ObservabilityConfig struct {
	Metrics *MetricsConfig `json:"metrics,omitempty" yaml:"metrics,omitempty"`
	Tracing *TracingConfig `json:"tracing,omitempty" yaml:"tracing,omitempty"`
	Anomaly *AnomalyConfig `json:"anomaly,omitempty" yaml:"anomaly,omitempty"`

	// AuditLogPath appends every cloud API result as JSONL. Empty disables it.
	AuditLogPath string `json:"audit_log_path,omitempty" yaml:"audit_log_path,omitempty"`
}

// AnomalyConfig configures error-rate warnings for tool calls.
type AnomalyConfig struct {
	ErrorRateThreshold float64 `json:"error_rate_threshold" yaml:"error_rate_threshold"` // 0..1, 0 = disabled
	WindowSeconds      int     `json:"window_seconds" yaml:"window_seconds"`             // Default: 300
}

// MetricsConfig configures Prometheus metrics exposition.
type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Path    string `json:"path" yaml:"path"` // Default: "/metrics"
}

// TracingConfig configures OpenTelemetry distributed tracing.
type TracingConfig struct {
	Enabled     bool    `json:"enabled" yaml:"enabled"`
	Endpoint    string  `json:"endpoint" yaml:"endpoint"`         // OTLP endpoint, e.g. "localhost:4317"
	Protocol    string  `json:"protocol" yaml:"protocol"`         // "grpc" or "http". Default: "grpc"
	ServiceName string  `json:"service_name" yaml:"service_name"` // Default: "cloudbase-mcp"
	SampleRate  float64 `json:"sample_rate" yaml:"sample_rate"`   // 0.0–1.0. Default: 1.0
	Insecure    bool    `json:"insecure" yaml:"insecure"`         // Skip TLS for dev
}

// DefaultAuthBaseURL is the CloudBase CLI authorization page.
const DefaultAuthBaseURL = "https://console.cloud.tencent.com/tcb/auth"

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// DefaultConfigPath returns the default config file path (~/.cloudbase-mcp/config.yaml).
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "cloudbase-mcp.yaml"
	}
	return filepath.Join(home, ".cloudbase-mcp", "config.yaml")
}

// Load reads a JSON or YAML config file and returns a validated Config.
// The format is detected by file extension: .yml/.yaml for YAML, everything else for JSON.
// A missing file at the default path is not an error; defaults are returned instead.
func Load(path string) (*Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return nil, fmt.Errorf("resolving config path %s: %w", path, err)
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && path == DefaultConfigPath() {
			return Default(), nil
		}
		return nil, fmt.Errorf("reading config %s: %w", resolved, err)
	}

	var cfg Config
	switch ext := strings.ToLower(filepath.Ext(resolved)); ext {
	case ".yml", ".yaml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing YAML config %s: %w", resolved, err)
		}
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing JSON config %s: %w", resolved, err)
		}
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// resolvePath expands ~ to the user home directory and returns an absolute path.
func resolvePath(path string) (string, error) {
	if strings.HasPrefix(path, "~/") || path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, path[1:])
	}
	return filepath.Abs(path)
}

func (c *Config) applyDefaults() {
	if c.Server.Name == "" {
		c.Server.Name = "cloudbase-mcp"
	}
	if c.Server.Transport == "" {
		c.Server.Transport = "stdio"
	}
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = "127.0.0.1:8080"
	}
	if c.Server.EndpointPath == "" {
		c.Server.EndpointPath = "/mcp"
	}
	if c.Auth.BaseURL == "" {
		c.Auth.BaseURL = DefaultAuthBaseURL
	}
	if c.Locale == "" {
		c.Locale = "en"
	}
}

func (c *Config) validate() error {
	switch c.Server.Transport {
	case "stdio", "http":
	default:
		return fmt.Errorf("server.transport must be \"stdio\" or \"http\", got %q", c.Server.Transport)
	}
	if !strings.HasPrefix(c.Server.EndpointPath, "/") {
		return fmt.Errorf("server.endpoint_path must start with /")
	}
	switch c.Locale {
	case "en", "zh":
	default:
		return fmt.Errorf("locale must be \"en\" or \"zh\", got %q", c.Locale)
	}
	if _, err := ParseIDE(c.IDE); err != nil {
		return err
	}
	if cb := c.CloudBase; cb != nil {
		if cb.SecretID == "" || cb.SecretKey == "" {
			return fmt.Errorf("cloudbase.secret_id and cloudbase.secret_key are required when the cloudbase block is set")
		}
		if cb.Region != "" && !IsValidRegion(cb.Region) {
			return fmt.Errorf("cloudbase.region %q is not a supported region", cb.Region)
		}
	}
	if rl := c.RateLimit; rl != nil {
		if rl.RequestsPerMinute < 0 || rl.BurstSize < 0 {
			return fmt.Errorf("rate_limit values must not be negative")
		}
	}
	if o := c.Observability; o != nil && o.Anomaly != nil {
		if t := o.Anomaly.ErrorRateThreshold; t < 0 || t > 1 {
			return fmt.Errorf("observability.anomaly.error_rate_threshold must be between 0 and 1")
		}
	}
	if c.Setup.SelectionTimeoutSeconds < 0 {
		return fmt.Errorf("setup.selection_timeout_seconds must not be negative")
	}
	return nil
}
