// Package manager builds ready-to-use cloud API clients from the current
// credential, environment id and transport settings.
package manager

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jkaninda/cloudbase-mcp/internal/auth"
	"github.com/jkaninda/cloudbase-mcp/internal/cloudapi"
	"github.com/jkaninda/cloudbase-mcp/internal/config"
)

// CredentialSource yields the credential for one build.
type CredentialSource interface {
	Resolve(ctx context.Context, opts auth.ResolveOptions) (*auth.Credential, error)
}

// EnvIDSource yields the target environment id.
type EnvIDSource interface {
	Peek() (string, bool)
	Resolve(ctx context.Context, ide config.IDE) (string, error)
}

// ClientBuilder is what tool handlers depend on.
type ClientBuilder interface {
	Build(ctx context.Context, opts ...BuildOption) (*cloudapi.Client, error)
}

// CloudBaseOptions is a fully explicit client configuration. When given,
// neither resolver is consulted.
type CloudBaseOptions struct {
	SecretID     string
	SecretKey    string
	SessionToken string
	EnvID        string
	Region       string
	Proxy        string
	Extra        map[string]any
}

// FromConfig converts the config file block, or returns nil when absent.
func FromConfig(c *config.CloudBaseConfig) *CloudBaseOptions {
	if c == nil {
		return nil
	}
	return &CloudBaseOptions{
		SecretID:     c.SecretID,
		SecretKey:    c.SecretKey,
		SessionToken: c.SessionToken,
		EnvID:        c.EnvID,
		Region:       c.Region,
		Proxy:        c.Proxy,
		Extra:        c.Extra,
	}
}

// BuildSettings is the effective result of a set of BuildOptions.
type BuildSettings struct {
	RequireEnvID bool
	CloudBase    *CloudBaseOptions
	IDE          config.IDE
}

// Mode names the path Build takes for these settings.
func (s BuildSettings) Mode() string {
	if s.CloudBase != nil {
		return "explicit"
	}
	return "resolved"
}

// BuildOption tunes one Build call.
type BuildOption func(*BuildSettings)

// WithoutEnvID builds a client that does not need a target environment.
func WithoutEnvID() BuildOption {
	return func(s *BuildSettings) { s.RequireEnvID = false }
}

// WithCloudBaseOptions bypasses both resolvers. A nil value is ignored.
func WithCloudBaseOptions(o *CloudBaseOptions) BuildOption {
	return func(s *BuildSettings) { s.CloudBase = o }
}

// WithIDE passes the IDE hint on to environment auto-setup.
func WithIDE(ide config.IDE) BuildOption {
	return func(s *BuildSettings) { s.IDE = ide }
}

// Settings applies opts over the defaults.
func Settings(opts ...BuildOption) BuildSettings {
	s := BuildSettings{RequireEnvID: true}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// Factory composes clients.
type Factory struct {
	creds      CredentialSource
	envIDs     EnvIDSource
	env        config.Env
	clientOpts []cloudapi.Option
	logger     *slog.Logger
}

// FactoryOption configures a Factory.
type FactoryOption func(*Factory)

// WithClientOptions is appended to every cloudapi.New call.
func WithClientOptions(opts ...cloudapi.Option) FactoryOption {
	return func(f *Factory) { f.clientOpts = append(f.clientOpts, opts...) }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) FactoryOption {
	return func(f *Factory) { f.logger = l }
}

// NewFactory creates a Factory.
func NewFactory(creds CredentialSource, envIDs EnvIDSource, env config.Env, opts ...FactoryOption) *Factory {
	f := &Factory{
		creds:  creds,
		envIDs: envIDs,
		env:    env,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Build returns a configured client.
func (f *Factory) Build(ctx context.Context, opts ...BuildOption) (*cloudapi.Client, error) {
	s := Settings(opts...)

	var cfg cloudapi.Config
	if s.CloudBase != nil {
		cfg = f.explicitConfig(s.CloudBase)
	} else {
		region := f.env.Get(config.EnvRegion)
		cred, err := f.creds.Resolve(ctx, auth.ResolveOptions{Region: region})
		if err != nil {
			return nil, fmt.Errorf("resolve credential: %w", err)
		}

		var envID string
		if s.RequireEnvID {
			envID, err = f.envID(ctx, cred, s.IDE)
			if err != nil {
				return nil, fmt.Errorf("resolve environment id: %w", err)
			}
		}
		cfg = ComposeConfig(cred, envID, f.env)
	}

	client, err := cloudapi.New(cfg, append([]cloudapi.Option{cloudapi.WithLogger(f.logger)}, f.clientOpts...)...)
	if err != nil {
		return nil, err
	}
	f.logger.Debug("cloud client built", slog.String("mode", s.Mode()), slog.Any("config", cfg))
	return client, nil
}

// envID picks the cached id, then the sign-in hint, then a full resolution.
func (f *Factory) envID(ctx context.Context, cred *auth.Credential, ide config.IDE) (string, error) {
	if id, ok := f.envIDs.Peek(); ok {
		return id, nil
	}
	if cred.EnvIDHint != "" {
		return cred.EnvIDHint, nil
	}
	return f.envIDs.Resolve(ctx, ide)
}

func (f *Factory) explicitConfig(o *CloudBaseOptions) cloudapi.Config {
	region := o.Region
	if region == "" {
		region = f.env.Get(config.EnvRegion)
	}
	proxy := o.Proxy
	if proxy == "" {
		proxy = f.env.Get(config.EnvProxy)
	}
	return cloudapi.Config{
		SecretID:     o.SecretID,
		SecretKey:    o.SecretKey,
		SessionToken: o.SessionToken,
		EnvID:        o.EnvID,
		Region:       region,
		Proxy:        proxy,
		Extra:        o.Extra,
	}
}

// ComposeConfig combines a credential and environment id with the region and
// proxy overrides from env.
func ComposeConfig(cred *auth.Credential, envID string, env config.Env) cloudapi.Config {
	return cloudapi.Config{
		SecretID:     cred.SecretID,
		SecretKey:    cred.SecretKey,
		SessionToken: cred.SessionToken,
		EnvID:        envID,
		Region:       env.Get(config.EnvRegion),
		Proxy:        env.Get(config.EnvProxy),
	}
}
