package config

import (
	"os"
	"strings"
	"sync"

	goutils "github.com/jkaninda/go-utils"
)

// Environment variables read by the resolvers and the plugin registry.
const (
	EnvSecretID        = "TENCENTCLOUD_SECRETID"
	EnvSecretKey       = "TENCENTCLOUD_SECRETKEY"
	EnvSessionToken    = "TENCENTCLOUD_SESSIONTOKEN"
	EnvEnvID           = "CLOUDBASE_ENV_ID"
	EnvRegion          = "TCB_REGION"
	EnvProxy           = "http_proxy"
	EnvPluginsEnabled  = "CLOUDBASE_MCP_PLUGINS_ENABLED"
	EnvPluginsDisabled = "CLOUDBASE_MCP_PLUGINS_DISABLED"
	EnvConfigPath      = "CLOUDBASE_MCP_CONFIG"
)

// Env is the process environment as seen by the resolvers. Production code
// uses OSEnv; tests use MapEnv so cases never share state.
type Env interface {
	Get(key string) string
	Set(key, value string)
	Unset(key string)
}

// OSEnv reads and writes the real process environment.
type OSEnv struct{}

func (OSEnv) Get(key string) string { return goutils.Env(key, "") }

func (OSEnv) Set(key, value string) { _ = os.Setenv(key, value) }

func (OSEnv) Unset(key string) { _ = os.Unsetenv(key) }

// MapEnv is an in-memory Env. Safe for concurrent use.
type MapEnv struct {
	mu   sync.RWMutex
	vars map[string]string
}

// NewMapEnv creates a MapEnv seeded with vars.
func NewMapEnv(vars map[string]string) *MapEnv {
	m := &MapEnv{vars: make(map[string]string, len(vars))}
	for k, v := range vars {
		m.vars[k] = v
	}
	return m
}

func (m *MapEnv) Get(key string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.vars[key]
}

func (m *MapEnv) Set(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vars[key] = value
}

func (m *MapEnv) Unset(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.vars, key)
}

// SplitList parses a comma-separated list, trimming blanks and dropping empty entries.
func SplitList(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
