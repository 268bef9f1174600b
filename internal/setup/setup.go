// Package setup finds a usable CloudBase environment for an account that has
// none configured: sign in, make sure the service is initialized, list the
// environments (creating one when there are none) and pick one.
package setup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jkaninda/cloudbase-mcp/internal/auth"
	"github.com/jkaninda/cloudbase-mcp/internal/cloudapi"
	"github.com/jkaninda/cloudbase-mcp/internal/config"
	"github.com/jkaninda/cloudbase-mcp/internal/envid"
	"github.com/jkaninda/cloudbase-mcp/internal/interactive"
	"github.com/jkaninda/cloudbase-mcp/internal/manager"
)

// Error codes carried in envid.FailureInfo.
const (
	CodeLoginFailed        = "LOGIN_FAILED"
	CodeServiceNotEnabled  = "TCB_NOT_ENABLED"
	CodeTCBInitFailed      = "TCB_INIT_FAILED"
	CodeEnvQueryFailed     = "ENV_QUERY_FAILED"
	CodeNoEnvironments     = "NO_ENVIRONMENTS"
	CodeEnvCreationFailed  = "ENV_CREATION_FAILED"
	CodeCancelled          = "SETUP_CANCELLED"
	CodeSelectionCancelled = "SELECTION_CANCELLED"
	CodeSelectionTimeout   = "SELECTION_TIMEOUT"
)

// Defaults for the environment created for an account that has none.
const (
	DefaultEnvAlias   = "cloudbase-mcp"
	DefaultEnvPackage = "baas_free"
)

// Environment is one CloudBase environment of the signed-in account.
type Environment struct {
	EnvID  string `json:"EnvId"`
	Alias  string `json:"Alias"`
	Status string `json:"Status"`
	Region string `json:"Region"`
}

// Label is the text shown for the environment in pickers.
func (e Environment) Label() string {
	if e.Alias == "" || e.Alias == e.EnvID {
		return e.EnvID
	}
	return fmt.Sprintf("%s (%s)", e.Alias, e.EnvID)
}

// AutoSetup is the production envid.Setup.
type AutoSetup struct {
	creds            manager.CredentialSource
	env              config.Env
	clientOpts       []cloudapi.Option
	skipInit         bool
	skipCreate       bool
	envAlias         string
	selectionTimeout time.Duration
	open             interactive.Opener
	logger           *slog.Logger
}

// Option configures AutoSetup.
type Option func(*AutoSetup)

// WithClientOptions passes options to every cloudapi client built here.
func WithClientOptions(opts ...cloudapi.Option) Option {
	return func(a *AutoSetup) { a.clientOpts = append(a.clientOpts, opts...) }
}

// WithSkipServiceInit fails instead of initializing a disabled service.
func WithSkipServiceInit(skip bool) Option {
	return func(a *AutoSetup) { a.skipInit = skip }
}

// WithSkipEnvCreation reports no_environments instead of creating an
// environment for an account that has none.
func WithSkipEnvCreation(skip bool) Option {
	return func(a *AutoSetup) { a.skipCreate = skip }
}

// WithEnvAlias sets the alias of a created environment.
func WithEnvAlias(alias string) Option {
	return func(a *AutoSetup) {
		if alias != "" {
			a.envAlias = alias
		}
	}
}

// WithSelectionTimeout bounds how long the environment picker waits.
func WithSelectionTimeout(d time.Duration) Option {
	return func(a *AutoSetup) { a.selectionTimeout = d }
}

// WithOpener replaces the browser opener. Nil disables the picker page.
func WithOpener(o interactive.Opener) Option {
	return func(a *AutoSetup) { a.open = o }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *AutoSetup) { a.logger = l }
}

// New creates an AutoSetup.
func New(creds manager.CredentialSource, env config.Env, opts ...Option) *AutoSetup {
	a := &AutoSetup{
		creds:            creds,
		env:              env,
		envAlias:         DefaultEnvAlias,
		selectionTimeout: config.SetupConfig{}.SelectionTimeout(),
		open:             interactive.BrowserOpener,
		logger:           slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// AutoSetup runs the setup steps. Expected failures come back as
// SetupResult.Failure; the error return is reserved for broken invariants.
func (a *AutoSetup) AutoSetup(ctx context.Context, ide config.IDE) (envid.SetupResult, error) {
	region := a.env.Get(config.EnvRegion)
	cred, err := a.creds.Resolve(ctx, auth.ResolveOptions{Region: region})
	if err != nil {
		if ctx.Err() != nil {
			return failed(envid.ReasonCancelled, CodeCancelled, err, envid.Details{}), nil
		}
		return failed(envid.ReasonLoginFailed, CodeLoginFailed, err, envid.Details{}), nil
	}
	if cred.EnvIDHint != "" {
		a.logger.Info("using environment chosen during sign-in", slog.String("env_id", cred.EnvIDHint))
		return envid.SetupResult{EnvID: cred.EnvIDHint}, nil
	}

	client, err := cloudapi.New(manager.ComposeConfig(cred, "", a.env), a.clientOpts...)
	if err != nil {
		return envid.SetupResult{}, fmt.Errorf("building client: %w", err)
	}

	if res, ok := a.ensureService(ctx, client); !ok {
		return res, nil
	}

	envs, err := ListEnvironments(ctx, client)
	if err != nil {
		return failed(envid.ReasonEnvQueryFailed, CodeEnvQueryFailed, err, envid.Details{QueryEnvError: err.Error()}), nil
	}
	switch len(envs) {
	case 0:
		return a.createEnv(ctx, client), nil
	case 1:
		a.logger.Info("selected the only environment", slog.String("env_id", envs[0].EnvID))
		return envid.SetupResult{EnvID: envs[0].EnvID}, nil
	}

	if !ide.CanOpenBrowser() || a.open == nil {
		a.logger.Info("no browser available, selecting the first environment",
			slog.String("env_id", envs[0].EnvID), slog.Int("candidates", len(envs)))
		return envid.SetupResult{EnvID: envs[0].EnvID}, nil
	}
	return a.pick(ctx, envs)
}

// ensureService initializes CloudBase when the account has not enabled it.
func (a *AutoSetup) ensureService(ctx context.Context, client *cloudapi.Client) (envid.SetupResult, bool) {
	var check struct {
		Initialized bool `json:"Initialized"`
	}
	if err := client.CallInto(ctx, cloudapi.Request{Service: "tcb", Action: "CheckTcbService"}, &check); err != nil {
		return failed(envid.ReasonTCBInitFailed, CodeTCBInitFailed, err, envid.Details{InitTCB: initError(err)}), false
	}
	if check.Initialized {
		return envid.SetupResult{}, true
	}
	if a.skipInit {
		err := errors.New("CloudBase is not enabled for this account")
		return failed(envid.ReasonTCBInitFailed, CodeServiceNotEnabled, err, envid.Details{
			InitTCB: &envid.InitTCBError{Code: CodeServiceNotEnabled, Message: err.Error()},
		}), false
	}

	a.logger.Info("initializing CloudBase service")
	if _, err := client.Call(ctx, cloudapi.Request{Service: "tcb", Action: "InitTcb"}); err != nil {
		return failed(envid.ReasonTCBInitFailed, CodeTCBInitFailed, err, envid.Details{InitTCB: initError(err)}), false
	}
	return envid.SetupResult{}, true
}

// createEnv creates a free environment for an account that has none.
func (a *AutoSetup) createEnv(ctx context.Context, client *cloudapi.Client) envid.SetupResult {
	if a.skipCreate {
		return failed(envid.ReasonNoEnvironments, CodeNoEnvironments,
			errors.New("the account has no usable CloudBase environment"), envid.Details{})
	}

	a.logger.Info("creating CloudBase environment", slog.String("alias", a.envAlias))
	var created struct {
		EnvID string `json:"EnvId"`
	}
	err := client.CallInto(ctx, cloudapi.Request{
		Service: "tcb",
		Action:  "CreateEnv",
		Params: map[string]any{
			"Alias":     a.envAlias,
			"PackageId": DefaultEnvPackage,
			"Resources": []string{"flexdb", "storage", "function"},
		},
	}, &created)
	if err != nil {
		return failed(envid.ReasonEnvCreationFailed, CodeEnvCreationFailed, err, envid.Details{CreateEnv: createError(err)})
	}
	if created.EnvID != "" {
		a.logger.Info("environment created", slog.String("env_id", created.EnvID))
		return envid.SetupResult{EnvID: created.EnvID}
	}

	// Older API versions answer without the id; the new environment is listed.
	envs, err := ListEnvironments(ctx, client)
	if err != nil {
		return failed(envid.ReasonEnvQueryFailed, CodeEnvQueryFailed, err, envid.Details{QueryEnvError: err.Error()})
	}
	if len(envs) == 0 {
		err := errors.New("environment creation returned no environment id")
		return failed(envid.ReasonEnvCreationFailed, CodeEnvCreationFailed, err, envid.Details{
			CreateEnv: &envid.CreateEnvError{Code: CodeEnvCreationFailed, Message: err.Error()},
		})
	}
	a.logger.Info("environment created", slog.String("env_id", envs[0].EnvID))
	return envid.SetupResult{EnvID: envs[0].EnvID}
}

// ListEnvironments returns the environments that can serve requests.
func ListEnvironments(ctx context.Context, client *cloudapi.Client) ([]Environment, error) {
	var out struct {
		EnvList []Environment `json:"EnvList"`
	}
	if err := client.CallInto(ctx, cloudapi.Request{Service: "tcb", Action: "DescribeEnvs"}, &out); err != nil {
		return nil, err
	}
	envs := make([]Environment, 0, len(out.EnvList))
	for _, e := range out.EnvList {
		if e.EnvID == "" {
			continue
		}
		if e.Status != "" && e.Status != "NORMAL" {
			continue
		}
		envs = append(envs, e)
	}
	return envs, nil
}

// initError classifies service initialization errors. Real-name and CAM
// problems need the user to act in the console.
func initError(err error) *envid.InitTCBError {
	var apiErr *cloudapi.APIError
	if !errors.As(err, &apiErr) {
		return &envid.InitTCBError{Message: err.Error()}
	}
	code := strings.ToLower(apiErr.Code)
	return &envid.InitTCBError{
		Code:             apiErr.Code,
		Message:          apiErr.Message,
		NeedRealNameAuth: strings.Contains(code, "realname"),
		NeedCamAuth:      strings.HasPrefix(code, "unauthorizedoperation") || strings.Contains(code, "cam"),
	}
}

func createError(err error) *envid.CreateEnvError {
	var apiErr *cloudapi.APIError
	if errors.As(err, &apiErr) {
		return &envid.CreateEnvError{Code: apiErr.Code, Message: apiErr.Message}
	}
	return &envid.CreateEnvError{Message: err.Error()}
}

func failed(reason envid.Reason, code string, err error, details envid.Details) envid.SetupResult {
	return envid.SetupResult{Failure: &envid.FailureInfo{
		Reason:    reason,
		Error:     err.Error(),
		ErrorCode: code,
		HelpURL:   envid.DefaultHelpURL,
		Details:   details,
	}}
}
