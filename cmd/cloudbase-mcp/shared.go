package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	goutils "github.com/jkaninda/go-utils"
	"github.com/spf13/cobra"

	"github.com/jkaninda/cloudbase-mcp/internal/auth"
	"github.com/jkaninda/cloudbase-mcp/internal/auth/webauth"
	"github.com/jkaninda/cloudbase-mcp/internal/config"
	"github.com/jkaninda/cloudbase-mcp/internal/envid"
	"github.com/jkaninda/cloudbase-mcp/internal/interactive"
	"github.com/jkaninda/cloudbase-mcp/internal/manager"
	"github.com/jkaninda/cloudbase-mcp/internal/observability"
	"github.com/jkaninda/cloudbase-mcp/internal/secrets"
	"github.com/jkaninda/cloudbase-mcp/internal/setup"
)

// envIntegrationIDE names the calling assistant when neither --ide nor the
// config file does.
const envIntegrationIDE = "INTEGRATION_IDE"

// SharedComponents holds the subsystems every command needs. Built once by
// initShared, torn down by Cleanup.
type SharedComponents struct {
	Config *config.Config
	Logger *slog.Logger
	Env    config.Env
	IDE    config.IDE
	Obs    *observability.Observability

	Creds   *auth.Resolver
	EnvIDs  *envid.Resolver
	Clients manager.ClientBuilder

	// Explicit is non-nil when the config file pins credentials and
	// environment, bypassing both resolvers.
	Explicit *manager.CloudBaseOptions

	cleanups []func()
}

// Cleanup runs all deferred cleanup functions in reverse order.
func (sc *SharedComponents) Cleanup() {
	for i := len(sc.cleanups) - 1; i >= 0; i-- {
		sc.cleanups[i]()
	}
}

func (sc *SharedComponents) addCleanup(fn func()) {
	sc.cleanups = append(sc.cleanups, fn)
}

// BuildOptions are the client build options every command starts from.
func (sc *SharedComponents) BuildOptions() []manager.BuildOption {
	opts := []manager.BuildOption{manager.WithIDE(sc.IDE)}
	if sc.Explicit != nil {
		opts = append(opts, manager.WithCloudBaseOptions(sc.Explicit))
	}
	return opts
}

// newLogger writes JSON logs to stderr. Stdout belongs to the stdio transport.
func newLogger() (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q: %w", logLevel, err)
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})), nil
}

// loadConfig resolves the config path: an explicit --config flag takes
// priority over CLOUDBASE_MCP_CONFIG.
func loadConfig(cmd *cobra.Command) (*config.Config, string, error) {
	path := configPath
	if !cmd.Flags().Changed("config") {
		path = goutils.Env(config.EnvConfigPath, configPath)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, path, fmt.Errorf("loading config: %w", err)
	}
	return cfg, path, nil
}

func resolveIDE(cfg *config.Config) (config.IDE, error) {
	name := cfg.IDE
	if ideName != "" {
		name = ideName
	}
	if name == "" {
		name = goutils.Env(envIntegrationIDE, "")
	}
	return config.ParseIDE(name)
}

// initShared loads configuration and wires the credential and environment
// layers. Callers must call sc.Cleanup() when done.
func initShared(cmd *cobra.Command) (*SharedComponents, error) {
	logger, err := newLogger()
	if err != nil {
		return nil, err
	}
	cfg, path, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger.Debug("config loaded", slog.String("path", path))

	ide, err := resolveIDE(cfg)
	if err != nil {
		return nil, err
	}

	env := config.OSEnv{}
	if err := expandSecrets(cmd.Context(), cfg, env); err != nil {
		return nil, err
	}

	sc := &SharedComponents{
		Config:   cfg,
		Logger:   logger,
		Env:      env,
		IDE:      ide,
		Explicit: manager.FromConfig(cfg.CloudBase),
	}

	// Observability.
	obs, err := observability.New(cfg.Observability, logger)
	if err != nil {
		return nil, fmt.Errorf("initializing observability: %w", err)
	}
	sc.Obs = obs
	sc.addCleanup(func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		obs.Shutdown(shutdownCtx)
	})
	if obs != nil {
		logger.Debug("observability initialized",
			slog.Bool("metrics", obs.Metrics != nil),
			slog.Bool("tracing", obs.Tracer != nil),
			slog.Bool("anomaly", obs.Anomaly != nil),
		)
	}

	// Credentials.
	sc.Creds = auth.NewResolver(sc.Env,
		auth.WithAuthorizer(webauth.FromConfig(cfg.Auth, logger)),
		auth.WithLogger(logger),
	)
	var creds manager.CredentialSource = sc.Creds
	if obs != nil {
		creds = observability.NewInstrumentedCredentialSource(sc.Creds, obs.MetricsOrNil(), obs.TracerOrNil())
	}

	// Environment id.
	var open interactive.Opener = interactive.BrowserOpener
	if cfg.Auth.NoBrowser {
		open = nil
	}
	autoSetup := setup.New(creds, sc.Env,
		setup.WithSkipServiceInit(cfg.Setup.SkipServiceInit),
		setup.WithSkipEnvCreation(cfg.Setup.SkipEnvCreation),
		setup.WithEnvAlias(cfg.Setup.EnvAlias),
		setup.WithSelectionTimeout(cfg.Setup.SelectionTimeout()),
		setup.WithOpener(open),
		setup.WithLogger(logger),
	)
	sc.EnvIDs = envid.NewResolver(sc.Env, autoSetup,
		envid.WithLocale(cfg.Locale),
		envid.WithLogger(logger),
	)
	var envIDs manager.EnvIDSource = sc.EnvIDs
	if obs != nil {
		envIDs = observability.NewInstrumentedEnvIDSource(sc.EnvIDs, obs.MetricsOrNil(), obs.TracerOrNil(), obs.AnomalyOrNil())
	}

	// Client factory.
	var clients manager.ClientBuilder = manager.NewFactory(creds, envIDs, sc.Env, manager.WithLogger(logger))
	if obs != nil {
		clients = observability.NewInstrumentedClientBuilder(clients, obs.MetricsOrNil(), obs.TracerOrNil())
	}
	sc.Clients = clients

	logger.Debug("resolvers initialized",
		slog.String("ide", string(ide)),
		slog.Bool("explicit_cloudbase", sc.Explicit != nil),
		slog.String("region", sc.Env.Get(config.EnvRegion)),
	)
	return sc, nil
}

// expandSecrets replaces env://, file:// and vault:// references in the
// cloudbase block with their values.
func expandSecrets(ctx context.Context, cfg *config.Config, env config.Env) error {
	cb := cfg.CloudBase
	if cb == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var vault secrets.Provider
	if cfg.Secrets != nil && cfg.Secrets.Vault != nil {
		vp, err := secrets.NewVaultProvider(*cfg.Secrets.Vault, env)
		if err != nil {
			return fmt.Errorf("configuring vault: %w", err)
		}
		vault = vp
	}
	provider := secrets.NewCompositeProvider(secrets.NewEnvProvider(env), secrets.NewFileProvider(), vault)

	err := secrets.ExpandAll(ctx, provider, map[string]*string{
		"cloudbase.secret_id":     &cb.SecretID,
		"cloudbase.secret_key":    &cb.SecretKey,
		"cloudbase.session_token": &cb.SessionToken,
		"cloudbase.proxy":         &cb.Proxy,
	})
	if err != nil {
		return fmt.Errorf("expanding config secrets: %w", err)
	}
	return nil
}

// errNoCredential is reported by readiness when a tool call would need an
// interactive sign-in.
var errNoCredential = errors.New("no credential: set " + config.EnvSecretID + "/" + config.EnvSecretKey + " or sign in")

// errNoEnvID is reported by readiness until an environment id is known.
var errNoEnvID = errors.New("environment id not resolved yet: set " + config.EnvEnvID + " or sign in")

// addHealthChecks registers readiness checks on the resolvers. They never
// start a sign-in.
func addHealthChecks(sc *SharedComponents) {
	if sc.Obs == nil || sc.Obs.Health == nil {
		return
	}
	sc.Obs.Health.AddCheck("credentials", func(context.Context) error {
		if sc.Explicit != nil {
			return nil
		}
		if _, ok := sc.Creds.Lookup(auth.ResolveOptions{}); !ok {
			return errNoCredential
		}
		return nil
	})
	sc.Obs.Health.AddCheck("env_id", func(context.Context) error {
		if sc.Explicit != nil && sc.Explicit.EnvID != "" {
			return nil
		}
		if _, ok := sc.EnvIDs.Peek(); ok {
			return nil
		}
		if sc.Env.Get(config.EnvEnvID) != "" {
			return nil
		}
		return errNoEnvID
	})
}
