// Package plugins decides which tool groups are registered on the server.
package plugins

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/jkaninda/cloudbase-mcp/internal/config"
	"github.com/jkaninda/cloudbase-mcp/internal/observability"
	"github.com/jkaninda/cloudbase-mcp/internal/server"
)

// Plugin is a named group of tools.
type Plugin struct {
	Name     string
	Register func(ctx context.Context, srv *server.Server) error
}

// Registry holds the known plugins and the default enabled set.
type Registry struct {
	plugins  map[string]Plugin
	defaults []string
	env      config.Env
	metrics  *observability.MetricsCollector
	logger   *slog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithDefaults overrides the list used when nothing is configured.
// By default every known plugin is enabled, in registration order.
func WithDefaults(names ...string) Option {
	return func(r *Registry) { r.defaults = names }
}

// WithMetrics reports the number of registered plugins.
func WithMetrics(m *observability.MetricsCollector) Option {
	return func(r *Registry) { r.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// NewRegistry creates a Registry. Later plugins with a duplicate name
// replace earlier ones.
func NewRegistry(env config.Env, known []Plugin, opts ...Option) *Registry {
	r := &Registry{
		plugins: make(map[string]Plugin, len(known)),
		env:     env,
		logger:  slog.Default(),
	}
	for _, p := range known {
		if _, dup := r.plugins[p.Name]; !dup {
			r.defaults = append(r.defaults, p.Name)
		}
		r.plugins[p.Name] = p
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Defaults returns the default enabled list.
func (r *Registry) Defaults() []string { return slices.Clone(r.defaults) }

// Known reports whether name is a registered plugin.
func (r *Registry) Known(name string) bool {
	_, ok := r.plugins[name]
	return ok
}

// ResolveEnabled computes the enabled list. The base list is paramsEnabled,
// else CLOUDBASE_MCP_PLUGINS_ENABLED, else the defaults. Names in
// CLOUDBASE_MCP_PLUGINS_DISABLED or paramsDisabled are removed. Order is kept
// and duplicates dropped. Unknown names are kept; RegisterAll skips them.
func (r *Registry) ResolveEnabled(paramsEnabled, paramsDisabled []string) []string {
	base := paramsEnabled
	if len(base) == 0 {
		if v := r.env.Get(config.EnvPluginsEnabled); v != "" {
			base = config.SplitList(v)
		} else {
			base = r.defaults
		}
	}

	disabled := append(config.SplitList(r.env.Get(config.EnvPluginsDisabled)), paramsDisabled...)

	out := make([]string, 0, len(base))
	for _, name := range base {
		if slices.Contains(disabled, name) || slices.Contains(out, name) {
			continue
		}
		out = append(out, name)
	}
	return out
}

// RegisterAll registers the named plugins one after another. Unknown names
// are skipped; the first registration error stops the loop.
func (r *Registry) RegisterAll(ctx context.Context, srv *server.Server, names []string) error {
	registered := 0
	defer func() {
		if r.metrics != nil {
			r.metrics.PluginsRegistered.Set(float64(registered))
		}
	}()

	for _, name := range names {
		p, ok := r.plugins[name]
		if !ok {
			r.logger.Debug("skipping unknown plugin", slog.String("plugin", name))
			continue
		}
		if err := p.Register(ctx, srv); err != nil {
			return fmt.Errorf("registering plugin %s: %w", name, err)
		}
		registered++
		r.logger.Debug("plugin registered", slog.String("plugin", name))
	}
	r.logger.Info("plugins registered", slog.Int("count", registered), slog.Any("plugins", names))
	return nil
}
